package payment

import "time"

type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusFailed   Status = "failed"
)

// Payment is the customer-reported bank transfer tied to one order. Exactly
// one record exists per order; its status is written only by the verification
// workflow, in lockstep with the order status.
type Payment struct {
	ID             string    `json:"id"`
	OrderID        string    `json:"order_id"`
	TransactionRef string    `json:"transaction_ref"`
	ProofURL       string    `json:"proof_url,omitempty"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
