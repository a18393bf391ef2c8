package ingest

import (
	"context"
	"encoding/hex"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/floorline/floorline/internal/domain"
)

// In-memory doubles for the pipeline's dependencies. They implement just
// enough semantics for the tests: idempotent inserts, conflict-skip
// batching, claim-once.

type memOrderStore struct {
	mu        sync.Mutex
	orders    map[string]domain.Order
	insertErr error
	existsErr error
}

func newMemOrderStore() *memOrderStore {
	return &memOrderStore{orders: make(map[string]domain.Order)}
}

func (s *memOrderStore) InsertBatch(_ context.Context, orders []domain.Order) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	var inserted []string
	for _, o := range orders {
		if _, ok := s.orders[o.ID]; ok {
			continue
		}
		s.orders[o.ID] = o
		inserted = append(inserted, o.ID)
	}
	return inserted, nil
}

func (s *memOrderStore) Exists(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.existsErr != nil {
		return false, s.existsErr
	}
	_, ok := s.orders[id]
	return ok, nil
}

func (s *memOrderStore) GetByID(_ context.Context, id string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

func (s *memOrderStore) ListByMaker(context.Context, string, domain.ListOpts) ([]domain.Order, error) {
	return nil, nil
}

func (s *memOrderStore) ListByTokenSet(context.Context, string, domain.ListOpts) ([]domain.Order, error) {
	return nil, nil
}

type memTokenSetStore struct {
	mu      sync.Mutex
	sets    map[string]domain.TokenSet
	inserts int
}

func newMemTokenSetStore() *memTokenSetStore {
	return &memTokenSetStore{sets: make(map[string]domain.TokenSet)}
}

func (s *memTokenSetStore) Insert(_ context.Context, set domain.TokenSet) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sets[set.ID]; ok {
		return false, nil
	}
	s.sets[set.ID] = set
	s.inserts++
	return true, nil
}

func (s *memTokenSetStore) GetByID(_ context.Context, id string) (domain.TokenSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[id]
	if !ok {
		return domain.TokenSet{}, domain.ErrNotFound
	}
	return set, nil
}

func (s *memTokenSetStore) ListTokens(_ context.Context, id string) ([]string, error) {
	set, err := s.GetByID(context.Background(), id)
	if err != nil {
		return nil, err
	}
	return set.TokenIDs, nil
}

type memSourceStore struct {
	mu       sync.Mutex
	byDomain map[string]domain.Source
	nextID   int64
}

func newMemSourceStore(seed ...domain.Source) *memSourceStore {
	s := &memSourceStore{byDomain: make(map[string]domain.Source), nextID: 1}
	for _, src := range seed {
		src.ID = s.nextID
		s.nextID++
		s.byDomain[src.Domain] = src
	}
	return s
}

func (s *memSourceStore) GetOrCreate(_ context.Context, dom string) (domain.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if src, ok := s.byDomain[dom]; ok {
		return src, nil
	}
	src := domain.Source{ID: s.nextID, Domain: dom, CreatedAt: time.Now()}
	s.nextID++
	s.byDomain[dom] = src
	return src, nil
}

func (s *memSourceStore) GetByDomain(_ context.Context, dom string) (domain.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.byDomain[dom]
	if !ok {
		return domain.Source{}, domain.ErrNotFound
	}
	return src, nil
}

func (s *memSourceStore) GetByAddress(_ context.Context, address string) (domain.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, src := range s.byDomain {
		if src.Address == address {
			return src, nil
		}
	}
	return domain.Source{}, domain.ErrNotFound
}

func (s *memSourceStore) List(context.Context) ([]domain.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Source, 0, len(s.byDomain))
	for _, src := range s.byDomain {
		out = append(out, src)
	}
	return out, nil
}

type memCollectionStore struct {
	mu         sync.Mutex
	byContract map[string]domain.Collection
}

func newMemCollectionStore() *memCollectionStore {
	return &memCollectionStore{byContract: make(map[string]domain.Collection)}
}

func (s *memCollectionStore) GetByContract(_ context.Context, contract string) (domain.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byContract[contract]
	if !ok {
		return domain.Collection{}, domain.ErrNotFound
	}
	return c, nil
}

func (s *memCollectionStore) Upsert(_ context.Context, c domain.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byContract[c.Contract] = c
	return nil
}

type memClaims struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMemClaims() *memClaims { return &memClaims{held: make(map[string]bool)} }

func (c *memClaims) Claim(_ context.Context, key string, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.held[key] {
		return false, nil
	}
	c.held[key] = true
	return true, nil
}

func (c *memClaims) Release(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.held, key)
	return nil
}

type queuedJob struct {
	queue string
	job   domain.Job
}

type memQueue struct {
	mu   sync.Mutex
	jobs []queuedJob
}

func (q *memQueue) Enqueue(_ context.Context, queue string, job domain.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, queuedJob{queue: queue, job: job})
	return nil
}

func (q *memQueue) byTrigger(trigger string) []queuedJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []queuedJob
	for _, j := range q.jobs {
		if j.job.Trigger == trigger {
			out = append(out, j)
		}
	}
	return out
}

// memOracle converts at a fixed numerator/denominator rate per currency.
// The native currency passes through unchanged; unknown currencies have no
// price.
type memOracle struct {
	native string
	rates  map[string]*big.Rat
	err    error
}

func (o *memOracle) ToNative(_ context.Context, currency string, amount *big.Int, _ time.Time) (*big.Int, error) {
	if o.err != nil {
		return nil, o.err
	}
	if normAddr(currency) == normAddr(o.native) {
		return new(big.Int).Set(amount), nil
	}
	rate, ok := o.rates[normAddr(currency)]
	if !ok {
		return nil, domain.ErrNoPrice
	}
	out := new(big.Rat).SetInt(amount)
	out.Mul(out, rate)
	return new(big.Int).Quo(out.Num(), out.Denom()), nil
}

// memState answers on-chain probes from fixed tables. The signer recovered
// from any signature is state.signer, so tests pick signature validity by
// pointing signer at (or away from) the maker.
type memState struct {
	mu          sync.Mutex
	signer      string
	tokenBal    map[string]*big.Int // contract:tokenID:owner
	currencyBal map[string]*big.Int // currency:owner
	approvals   map[string]bool     // contract:owner
	allowances  map[string]*big.Int // currency:owner
	probeErr    error
	probeGate   chan struct{} // when set, probes block until released
	inFlight    int
	maxInFlight int
}

func newMemState(signer string) *memState {
	return &memState{
		signer:      signer,
		tokenBal:    make(map[string]*big.Int),
		currencyBal: make(map[string]*big.Int),
		approvals:   make(map[string]bool),
		allowances:  make(map[string]*big.Int),
	}
}

func (s *memState) enter() {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	gate := s.probeGate
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
}

func (s *memState) leave() {
	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()
}

func (s *memState) TokenBalance(_ context.Context, contract, tokenID, owner string) (*big.Int, error) {
	s.enter()
	defer s.leave()
	if s.probeErr != nil {
		return nil, s.probeErr
	}
	if bal, ok := s.tokenBal[contract+":"+tokenID+":"+normAddr(owner)]; ok {
		return bal, nil
	}
	return big.NewInt(1), nil
}

func (s *memState) CurrencyBalance(_ context.Context, currency, owner string) (*big.Int, error) {
	s.enter()
	defer s.leave()
	if s.probeErr != nil {
		return nil, s.probeErr
	}
	if bal, ok := s.currencyBal[normAddr(currency)+":"+normAddr(owner)]; ok {
		return bal, nil
	}
	return veryLarge(), nil
}

func (s *memState) IsApproved(_ context.Context, contract, owner, _ string) (bool, error) {
	s.enter()
	defer s.leave()
	if s.probeErr != nil {
		return false, s.probeErr
	}
	if approved, ok := s.approvals[contract+":"+normAddr(owner)]; ok {
		return approved, nil
	}
	return true, nil
}

func (s *memState) CurrencyAllowance(_ context.Context, currency, owner, _ string) (*big.Int, error) {
	s.enter()
	defer s.leave()
	if s.probeErr != nil {
		return nil, s.probeErr
	}
	if a, ok := s.allowances[normAddr(currency)+":"+normAddr(owner)]; ok {
		return a, nil
	}
	return veryLarge(), nil
}

func (s *memState) RecoverSigner(_ []byte, signature []byte) (string, error) {
	if len(signature) == 0 {
		return "", ErrBadSignature
	}
	return s.signer, nil
}

type memAudit struct {
	mu      sync.Mutex
	batches [][]domain.Order
	err     error
}

func (a *memAudit) Relay(_ context.Context, orders []domain.Order) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.batches = append(a.batches, orders)
	return nil
}

func veryLarge() *big.Int {
	n, _ := new(big.Int).SetString("1000000000000000000000000000", 10)
	return n
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func hexSig() string {
	return "0x" + hex.EncodeToString(make([]byte, 65))
}
