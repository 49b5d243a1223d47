package order

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
)

// DocumentsStatus tracks the post-approval document follow-up, decoupled
// from the order status itself.
type DocumentsStatus string

const (
	DocumentsNone      DocumentsStatus = "none"
	DocumentsPending   DocumentsStatus = "pending"
	DocumentsGenerated DocumentsStatus = "generated"
)

type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	TotalPrice      int64           `json:"total_price"`
	Status          Status          `json:"status"`
	ShippingAddress string          `json:"shipping_address"`
	CustomerMobile  string          `json:"customer_mobile"`
	DocumentsStatus DocumentsStatus `json:"documents_status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Item is a line of an order. Price is the unit price captured at purchase
// time; it does not follow later catalog price changes.
type Item struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
	Price     int64  `json:"price"`
}

// ItemDetail is an Item joined with its product name, for document rendering
// and admin views.
type ItemDetail struct {
	Item
	ProductName string `json:"product_name"`
}

type Detail struct {
	Order Order        `json:"order"`
	Items []ItemDetail `json:"items"`
}
