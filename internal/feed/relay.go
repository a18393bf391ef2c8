// Package feed consumes the shared order-relay WebSocket: a firehose of
// signed orders broadcast by partner marketplaces. Received orders are
// batched and handed to the ingestion pipeline.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/floorline/floorline/internal/domain"
	"github.com/floorline/floorline/internal/ingest"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// Submitter is the slice of the ingestion pipeline the relay feed needs.
type Submitter interface {
	Submit(ctx context.Context, raws []domain.RawOrderInput, opts ingest.SubmitOptions) ([]domain.PipelineResult, error)
}

// RelayConfig tunes the relay consumer.
type RelayConfig struct {
	URL        string
	BatchSize  int
	FlushEvery time.Duration
}

// Relay connects to the order-relay WebSocket, accumulates incoming orders
// and submits them in batches. It reconnects with exponential backoff on
// disconnect.
type Relay struct {
	cfg       RelayConfig
	submitter Submitter
	logger    *slog.Logger

	mu      sync.Mutex
	pending []domain.RawOrderInput

	closeOnce sync.Once
	done      chan struct{}
}

func NewRelay(cfg RelayConfig, submitter Submitter, logger *slog.Logger) *Relay {
	return &Relay{
		cfg:       cfg,
		submitter: submitter,
		logger:    logger.With(slog.String("component", "order_relay_feed")),
		done:      make(chan struct{}),
	}
}

// Run consumes the relay until ctx is cancelled or Close is called.
func (r *Relay) Run(ctx context.Context) error {
	flush := time.NewTicker(r.cfg.FlushEvery)
	defer flush.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.done:
				return
			case <-flush.C:
				r.flush(ctx)
			}
		}
	}()

	delay := reconnectDelay
	for {
		select {
		case <-ctx.Done():
			r.flush(context.WithoutCancel(ctx))
			return ctx.Err()
		case <-r.done:
			r.flush(context.WithoutCancel(ctx))
			return nil
		default:
		}

		err := r.runConnection(ctx)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			r.flush(context.WithoutCancel(ctx))
			return ctx.Err()
		}
		r.logger.Warn("relay disconnected, reconnecting", slog.String("error", err.Error()))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.done:
			return nil
		case <-time.After(delay):
		}
		delay = nextDelay(delay)
	}
}

// nextDelay doubles the reconnect backoff, clamped at maxReconnectDelay.
func nextDelay(d time.Duration) time.Duration {
	d *= 2
	if d > maxReconnectDelay {
		d = maxReconnectDelay
	}
	return d
}

// Close stops the feed.
func (r *Relay) Close() {
	r.closeOnce.Do(func() { close(r.done) })
}

func (r *Relay) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, r.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("feed: connect: %w", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	sub := map[string]string{"type": "subscribe", "channel": "orders"}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("feed: subscribe: %w", err)
	}
	r.logger.Info("relay subscribed", slog.String("url", r.cfg.URL))

	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go r.pingLoop(pingCtx, conn)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.done:
			return nil
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("feed: read: %w", err)
		}
		r.handleMessage(ctx, message)
	}
}

func (r *Relay) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (r *Relay) handleMessage(ctx context.Context, raw []byte) {
	var envelope struct {
		Event string          `json:"event"`
		Order json.RawMessage `json:"order"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return // silently drop unparseable messages
	}
	if envelope.Event != "new-order" || len(envelope.Order) == 0 {
		return
	}

	order, err := decodeWireOrder(envelope.Order)
	if err != nil {
		r.logger.Debug("dropping malformed relay order", slog.String("error", err.Error()))
		return
	}

	r.mu.Lock()
	r.pending = append(r.pending, order)
	full := len(r.pending) >= r.cfg.BatchSize
	r.mu.Unlock()

	if full {
		r.flush(ctx)
	}
}

// flush submits the accumulated orders. A failed batch is dropped after
// logging: the relay is a best-effort side channel and the orders will come
// around again through the primary submission path.
func (r *Relay) flush(ctx context.Context) {
	r.mu.Lock()
	batch := r.pending
	r.pending = nil
	r.mu.Unlock()
	if len(batch) == 0 {
		return
	}

	results, err := r.submitter.Submit(ctx, batch, ingest.SubmitOptions{})
	if err != nil {
		r.logger.Error("relay batch submit failed", slog.Int("orders", len(batch)), slog.String("error", err.Error()))
		return
	}
	var stored int
	for _, res := range results {
		if res.Status == domain.StatusSuccess {
			stored++
		}
	}
	r.logger.Debug("relay batch submitted", slog.Int("orders", len(batch)), slog.Int("stored", stored))
}

// wireOrder is the relay's order shape: integers as decimal strings,
// timestamps as unix seconds.
type wireOrder struct {
	Protocol  string               `json:"protocol"`
	Side      string               `json:"side"`
	Kind      string               `json:"kind"`
	Contract  string               `json:"contract"`
	TokenID   string               `json:"tokenId"`
	TokenIDs  []string             `json:"tokenIds"`
	Maker     string               `json:"maker"`
	Taker     string               `json:"taker"`
	Currency  string               `json:"currency"`
	Price     string               `json:"price"`
	Quantity  int64                `json:"quantity"`
	ValidFrom int64                `json:"validFrom"`
	ValidTo   int64                `json:"validTo"`
	Fees      []domain.DeclaredFee `json:"fees"`
	Zone      string               `json:"zone"`
	Nonce     string               `json:"nonce"`
	Source    string               `json:"source"`
	RawData   json.RawMessage      `json:"rawData"`
	Signature string               `json:"signature"`
}

func decodeWireOrder(raw json.RawMessage) (domain.RawOrderInput, error) {
	var w wireOrder
	if err := json.Unmarshal(raw, &w); err != nil {
		return domain.RawOrderInput{}, fmt.Errorf("feed: decode order: %w", err)
	}

	price := new(big.Int)
	if w.Price != "" {
		if _, ok := price.SetString(w.Price, 10); !ok {
			return domain.RawOrderInput{}, fmt.Errorf("feed: bad price %q", w.Price)
		}
	}

	order := domain.RawOrderInput{
		Protocol:  domain.ProtocolKind(w.Protocol),
		Side:      domain.OrderSide(w.Side),
		Kind:      domain.ScopeKind(w.Kind),
		Contract:  w.Contract,
		TokenID:   w.TokenID,
		TokenIDs:  w.TokenIDs,
		Maker:     w.Maker,
		Taker:     w.Taker,
		Currency:  w.Currency,
		Price:     price,
		Quantity:  w.Quantity,
		Fees:      w.Fees,
		Zone:      w.Zone,
		Nonce:     w.Nonce,
		Source:    w.Source,
		IsNative:  true,
		RawData:   w.RawData,
		Signature: w.Signature,
	}
	if w.ValidFrom > 0 {
		order.ValidFrom = time.Unix(w.ValidFrom, 0).UTC()
	}
	if w.ValidTo > 0 {
		order.ValidTo = time.Unix(w.ValidTo, 0).UTC()
	}
	return order, nil
}
