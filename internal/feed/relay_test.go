package feed

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/floorline/floorline/internal/domain"
	"github.com/floorline/floorline/internal/ingest"
)

type captureSubmitter struct {
	mu      sync.Mutex
	batches [][]domain.RawOrderInput
}

func (c *captureSubmitter) Submit(_ context.Context, raws []domain.RawOrderInput, _ ingest.SubmitOptions) ([]domain.PipelineResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, raws)
	results := make([]domain.PipelineResult, len(raws))
	for i := range results {
		results[i] = domain.PipelineResult{Status: domain.StatusSuccess}
	}
	return results, nil
}

func testRelay(sub Submitter) *Relay {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRelay(RelayConfig{URL: "ws://localhost:0", BatchSize: 2, FlushEvery: time.Minute}, sub, logger)
}

func TestDecodeWireOrder(t *testing.T) {
	raw := json.RawMessage(`{
		"protocol": "seaport",
		"side": "sell",
		"kind": "single-token",
		"contract": "0x1111111111111111111111111111111111111111",
		"tokenId": "42",
		"maker": "0x2222222222222222222222222222222222222222",
		"currency": "0x0000000000000000000000000000000000000000",
		"price": "1000000000000000000",
		"quantity": 1,
		"validFrom": 1700000000,
		"validTo": 1700086400,
		"fees": [{"recipient": "0x4444444444444444444444444444444444444444", "bps": 250}],
		"nonce": "7",
		"source": "opensea.io",
		"signature": "0xabcd"
	}`)

	order, err := decodeWireOrder(raw)
	if err != nil {
		t.Fatal(err)
	}
	if order.Protocol != domain.ProtocolSeaport || order.Side != domain.OrderSideSell {
		t.Errorf("protocol/side = %s/%s", order.Protocol, order.Side)
	}
	if order.Price.String() != "1000000000000000000" {
		t.Errorf("price = %s", order.Price)
	}
	if !order.IsNative {
		t.Error("relay orders must be native submissions")
	}
	if order.ValidFrom.Unix() != 1700000000 || order.ValidTo.Unix() != 1700086400 {
		t.Errorf("validity window = %s .. %s", order.ValidFrom, order.ValidTo)
	}
	if len(order.Fees) != 1 || order.Fees[0].Bps != 250 {
		t.Errorf("fees = %+v", order.Fees)
	}
}

func TestDecodeWireOrderBadPrice(t *testing.T) {
	if _, err := decodeWireOrder(json.RawMessage(`{"price": "not-a-number"}`)); err == nil {
		t.Fatal("bad price accepted")
	}
}

func TestHandleMessageBatches(t *testing.T) {
	sub := &captureSubmitter{}
	relay := testRelay(sub)
	ctx := context.Background()

	msg := func(tokenID string) []byte {
		return []byte(`{"event": "new-order", "order": {
			"protocol": "seaport", "side": "sell", "kind": "single-token",
			"contract": "0x1111111111111111111111111111111111111111",
			"tokenId": "` + tokenID + `",
			"maker": "0x2222222222222222222222222222222222222222",
			"price": "100", "quantity": 1, "nonce": "1", "signature": "0xab"
		}}`)
	}

	relay.handleMessage(ctx, msg("1"))
	if len(sub.batches) != 0 {
		t.Fatal("flushed below batch size")
	}
	relay.handleMessage(ctx, msg("2"))
	if len(sub.batches) != 1 {
		t.Fatalf("got %d batches, want 1", len(sub.batches))
	}
	if len(sub.batches[0]) != 2 {
		t.Errorf("batch holds %d orders", len(sub.batches[0]))
	}

	// Non-order events and junk are dropped without flushing.
	relay.handleMessage(ctx, []byte(`{"event": "heartbeat"}`))
	relay.handleMessage(ctx, []byte(`not json`))
	relay.handleMessage(ctx, []byte(`{"event": "new-order", "order": {"price": "zz"}}`))
	if len(sub.batches) != 1 {
		t.Errorf("junk messages produced batches: %d", len(sub.batches))
	}
}

func TestReconnectBackoffClampsAtMax(t *testing.T) {
	d := reconnectDelay
	for i := 0; i < 10; i++ {
		d = nextDelay(d)
		if d > maxReconnectDelay {
			t.Fatalf("delay %s exceeds cap %s", d, maxReconnectDelay)
		}
	}
	if d != maxReconnectDelay {
		t.Errorf("delay settled at %s, want %s", d, maxReconnectDelay)
	}
}

func TestFlushEmptyIsNoop(t *testing.T) {
	sub := &captureSubmitter{}
	relay := testRelay(sub)
	relay.flush(context.Background())
	if len(sub.batches) != 0 {
		t.Error("empty flush submitted a batch")
	}
}
