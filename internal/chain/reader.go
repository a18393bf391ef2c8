// Package chain implements domain.StateReader over an Ethereum JSON-RPC
// endpoint using go-ethereum. It provides the balance, approval and
// signature-recovery primitives the protocol adapters consume; it does not
// interpret protocol semantics itself.
package chain

import (
	"context"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/floorline/floorline/internal/domain"
)

// Method selectors (first four bytes of keccak256 of the canonical
// signature).
var (
	selBalanceOf        = ethcrypto.Keccak256([]byte("balanceOf(address)"))[:4]
	selBalanceOf1155    = ethcrypto.Keccak256([]byte("balanceOf(address,uint256)"))[:4]
	selOwnerOf          = ethcrypto.Keccak256([]byte("ownerOf(uint256)"))[:4]
	selIsApprovedForAll = ethcrypto.Keccak256([]byte("isApprovedForAll(address,address)"))[:4]
	selAllowance        = ethcrypto.Keccak256([]byte("allowance(address,address)"))[:4]
)

// Reader implements domain.StateReader via eth_call against a single RPC
// node.
type Reader struct {
	client *ethclient.Client
}

// Dial connects to the given RPC URL and verifies the chain id matches.
func Dial(ctx context.Context, rpcURL string, chainID int) (*Reader, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", rpcURL, err)
	}

	got, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("chain: chain id: %w", err)
	}
	if got.Int64() != int64(chainID) {
		client.Close()
		return nil, fmt.Errorf("chain: expected chain id %d, node reports %s", chainID, got)
	}

	return &Reader{client: client}, nil
}

// Close releases the underlying RPC connection.
func (r *Reader) Close() {
	r.client.Close()
}

func (r *Reader) call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	msg := ethereum.CallMsg{To: &to, Data: data}
	out, err := r.client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: call %s: %w", to.Hex(), err)
	}
	return out, nil
}

// TokenBalance returns how many units of tokenID at contract the owner
// holds. It first tries the ERC-1155 balanceOf(address,uint256); contracts
// that revert on that selector are treated as ERC-721 and probed via
// ownerOf.
func (r *Reader) TokenBalance(ctx context.Context, contract, tokenID, owner string) (*big.Int, error) {
	to := common.HexToAddress(contract)
	ownerAddr := common.HexToAddress(owner)

	id, ok := new(big.Int).SetString(tokenID, 10)
	if !ok {
		return nil, fmt.Errorf("chain: invalid token id %q", tokenID)
	}

	data := concatBytes(
		selBalanceOf1155,
		common.LeftPadBytes(ownerAddr.Bytes(), 32),
		bigIntTo32Bytes(id),
	)
	if out, err := r.call(ctx, to, data); err == nil && len(out) >= 32 {
		return new(big.Int).SetBytes(out[:32]), nil
	}

	// ERC-721 fallback: the owner holds either one or zero of the token.
	out, err := r.call(ctx, to, concatBytes(selOwnerOf, bigIntTo32Bytes(id)))
	if err != nil {
		return nil, err
	}
	if len(out) >= 32 && common.BytesToAddress(out[12:32]) == ownerAddr {
		return big.NewInt(1), nil
	}
	return big.NewInt(0), nil
}

// CurrencyBalance returns the owner's balance of an ERC-20 currency, or the
// native balance for the zero address.
func (r *Reader) CurrencyBalance(ctx context.Context, currency, owner string) (*big.Int, error) {
	ownerAddr := common.HexToAddress(owner)

	if currency == "" || common.HexToAddress(currency) == (common.Address{}) {
		bal, err := r.client.BalanceAt(ctx, ownerAddr, nil)
		if err != nil {
			return nil, fmt.Errorf("chain: native balance %s: %w", owner, err)
		}
		return bal, nil
	}

	data := concatBytes(selBalanceOf, common.LeftPadBytes(ownerAddr.Bytes(), 32))
	out, err := r.call(ctx, common.HexToAddress(currency), data)
	if err != nil {
		return nil, err
	}
	if len(out) < 32 {
		return nil, fmt.Errorf("chain: short balanceOf response from %s", currency)
	}
	return new(big.Int).SetBytes(out[:32]), nil
}

// IsApproved reports whether owner has approved operator for all tokens of
// contract (ERC-721/1155 setApprovalForAll).
func (r *Reader) IsApproved(ctx context.Context, contract, owner, operator string) (bool, error) {
	data := concatBytes(
		selIsApprovedForAll,
		common.LeftPadBytes(common.HexToAddress(owner).Bytes(), 32),
		common.LeftPadBytes(common.HexToAddress(operator).Bytes(), 32),
	)
	out, err := r.call(ctx, common.HexToAddress(contract), data)
	if err != nil {
		return false, err
	}
	if len(out) < 32 {
		return false, fmt.Errorf("chain: short isApprovedForAll response from %s", contract)
	}
	return out[31] == 1, nil
}

// CurrencyAllowance returns the ERC-20 allowance owner granted to operator.
func (r *Reader) CurrencyAllowance(ctx context.Context, currency, owner, operator string) (*big.Int, error) {
	data := concatBytes(
		selAllowance,
		common.LeftPadBytes(common.HexToAddress(owner).Bytes(), 32),
		common.LeftPadBytes(common.HexToAddress(operator).Bytes(), 32),
	)
	out, err := r.call(ctx, common.HexToAddress(currency), data)
	if err != nil {
		return nil, err
	}
	if len(out) < 32 {
		return nil, fmt.Errorf("chain: short allowance response from %s", currency)
	}
	return new(big.Int).SetBytes(out[:32]), nil
}

// RecoverSigner recovers the address that produced signature over the
// 32-byte digest. It accepts both v in {0,1} and v in {27,28}.
func (r *Reader) RecoverSigner(digest []byte, signature []byte) (string, error) {
	return RecoverSigner(digest, signature)
}

// RecoverSigner is the package-level form used by tests and adapters that
// do not hold an RPC connection.
func RecoverSigner(digest []byte, signature []byte) (string, error) {
	if len(digest) != 32 {
		return "", fmt.Errorf("chain: digest must be 32 bytes, got %d", len(digest))
	}
	if len(signature) != 65 {
		return "", fmt.Errorf("chain: signature must be 65 bytes, got %d", len(signature))
	}

	sig := make([]byte, 65)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pub, err := ethcrypto.SigToPub(digest, sig)
	if err != nil {
		return "", fmt.Errorf("chain: recover signer: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub).Hex(), nil
}

// Compile-time interface check.
var _ domain.StateReader = (*Reader)(nil)
