package s3blob

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/crypto/sha3"

	"github.com/floorline/floorline/internal/domain"
)

// Relay implements domain.AuditRelay by writing each batch of normalized
// orders as one JSON object under audit/orders/. The object key is derived
// from the batch's order ids, so retrying the same batch overwrites the same
// object instead of duplicating it.
type Relay struct {
	client *s3.Client
	bucket string
}

// NewRelay creates a Relay that writes to the given client's bucket.
func NewRelay(c *Client) *Relay {
	return &Relay{
		client: c.S3(),
		bucket: c.Bucket(),
	}
}

// auditOrder is the serialized audit form of an order.
type auditOrder struct {
	ID              string                  `json:"id"`
	Protocol        string                  `json:"protocol"`
	Side            string                  `json:"side"`
	Fillability     string                  `json:"fillability"`
	Approval        string                  `json:"approval"`
	TokenSetID      string                  `json:"tokenSetId"`
	Maker           string                  `json:"maker"`
	Taker           string                  `json:"taker,omitempty"`
	Price           string                  `json:"price"`
	Value           string                  `json:"value"`
	NormalizedValue string                  `json:"normalizedValue"`
	Currency        string                  `json:"currency"`
	FeeBps          int64                   `json:"feeBps"`
	FeeBreakdown    []domain.FeeBreakdown   `json:"feeBreakdown"`
	MissingRoyalty  []domain.MissingRoyalty `json:"missingRoyalties"`
	ValidFrom       time.Time               `json:"validFrom"`
	ValidTo         time.Time               `json:"validTo"`
	RawData         json.RawMessage         `json:"rawData"`
}

// Relay uploads the batch as a single object.
func (r *Relay) Relay(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	entries := make([]auditOrder, 0, len(orders))
	for _, o := range orders {
		entries = append(entries, auditOrder{
			ID:              o.ID,
			Protocol:        string(o.Protocol),
			Side:            string(o.Side),
			Fillability:     string(o.Fillability),
			Approval:        string(o.Approval),
			TokenSetID:      o.TokenSetID,
			Maker:           o.Maker,
			Taker:           o.Taker,
			Price:           o.Price.String(),
			Value:           o.Value.String(),
			NormalizedValue: o.NormalizedValue.String(),
			Currency:        o.Currency,
			FeeBps:          o.FeeBps,
			FeeBreakdown:    o.FeeBreakdown,
			MissingRoyalty:  o.MissingRoyalties,
			ValidFrom:       o.ValidFrom,
			ValidTo:         o.ValidTo,
			RawData:         o.RawData,
		})
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("s3blob: marshal audit batch: %w", err)
	}

	key := "audit/orders/" + batchKey(orders) + ".json"

	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3blob: put audit batch %s: %w", key, err)
	}
	return nil
}

// batchKey hashes the sorted order ids so the key is stable regardless of
// the order the pipeline's workers finished in.
func batchKey(orders []domain.Order) string {
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	sort.Strings(ids)

	h := sha3.NewLegacyKeccak256()
	for _, id := range ids {
		h.Write([]byte(id))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Compile-time interface check.
var _ domain.AuditRelay = (*Relay)(nil)
