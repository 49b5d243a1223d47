package contracts

import "time"

// DocumentRequestedEvent asks the document worker to render and store the
// invoice and shipping label for an approved order. Delivery is at-least-once;
// consumers must tolerate replays.
type DocumentRequestedEvent struct {
	EventID     string    `json:"event_id"`
	OrderID     string    `json:"order_id"`
	RequestedAt time.Time `json:"requested_at"`
}

const DocumentRequestedType = "orders.documents.requested"
