package domain

// Status is the terminal classification of one submitted order. Every order
// accepted by Submit resolves to exactly one Status; infrastructure faults
// are surfaced as errors instead and abort the whole batch.
type Status string

const (
	StatusSuccess                 Status = "success"
	StatusInvalidFormat           Status = "invalid-format"
	StatusAlreadyExists           Status = "already-exists"
	StatusZeroPrice               Status = "zero-price"
	StatusInvalidStartTime        Status = "invalid-start-time"
	StatusExpired                 Status = "expired"
	StatusUnsupportedPaymentToken Status = "unsupported-payment-token"
	StatusUnsupportedZone         Status = "unsupported-zone"
	StatusInvalid                 Status = "invalid"
	StatusInvalidSignature        Status = "invalid-signature"
	StatusNotFillable             Status = "not-fillable"
	StatusInvalidTokenSet         Status = "invalid-token-set"
	StatusFeesTooHigh             Status = "fees-too-high"
	StatusFailedToConvertPrice    Status = "failed-to-convert-price"
	StatusBidTooLow               Status = "bid-too-low"
	StatusUnknownCollection       Status = "unknown-collection"
)

// PipelineResult is the ephemeral per-order outcome of a Submit call. It is
// never persisted.
type PipelineResult struct {
	ID     string
	Status Status

	// Unfillable is set when the order was stored but is not immediately
	// actionable (degraded fillability or approval).
	Unfillable bool
}
