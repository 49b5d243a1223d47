package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrOrderNotFound = errors.New("order not found")

type Service struct {
	pool *pgxpool.Pool
}

func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

type CheckoutItem struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

type CheckoutInput struct {
	Items           []CheckoutItem `json:"items"`
	ShippingAddress string         `json:"shipping_address"`
	CustomerMobile  string         `json:"customer_mobile"`
	TransactionRef  string         `json:"transaction_ref"`
}

func (in CheckoutInput) validate() error {
	if len(in.Items) == 0 {
		return fmt.Errorf("order has no items")
	}
	for _, it := range in.Items {
		if it.Quantity <= 0 {
			return fmt.Errorf("quantity must be positive")
		}
		if _, err := uuid.Parse(it.ProductID); err != nil {
			return fmt.Errorf("invalid product id: %w", err)
		}
	}
	if in.ShippingAddress == "" {
		return fmt.Errorf("shipping address is required")
	}
	if in.TransactionRef == "" {
		return fmt.Errorf("transaction reference is required")
	}
	return nil
}

// Checkout creates the order header, its line items with price captured from
// the catalog at this moment, and the pending payment record, all in one
// transaction. Stock is not touched here; it is only adjusted when an
// administrator approves the payment.
func (s *Service) Checkout(ctx context.Context, userID uuid.UUID, in CheckoutInput) (*Order, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	orderID := uuid.New()

	var total int64
	type priced struct {
		productID uuid.UUID
		quantity  int64
		price     int64
	}
	lines := make([]priced, 0, len(in.Items))
	for _, it := range in.Items {
		productID := uuid.MustParse(it.ProductID)
		var price int64
		err := tx.QueryRow(ctx, `SELECT price FROM products WHERE id = $1`, productID).Scan(&price)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("product %s: not found", it.ProductID)
			}
			return nil, fmt.Errorf("read product price: %w", err)
		}
		total += price * it.Quantity
		lines = append(lines, priced{productID: productID, quantity: it.Quantity, price: price})
	}

	o := &Order{
		ID:              orderID.String(),
		UserID:          userID.String(),
		TotalPrice:      total,
		Status:          StatusPending,
		ShippingAddress: in.ShippingAddress,
		CustomerMobile:  in.CustomerMobile,
		DocumentsStatus: DocumentsNone,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, user_id, total_price, status, shipping_address, customer_mobile, documents_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		orderID, userID, total, StatusPending, in.ShippingAddress, in.CustomerMobile, DocumentsNone, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	for _, ln := range lines {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, price)
			VALUES ($1, $2, $3, $4, $5)`,
			uuid.New(), orderID, ln.productID, ln.quantity, ln.price,
		)
		if err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO payments (id, order_id, transaction_ref, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)`,
		uuid.New(), orderID, in.TransactionRef, "pending", now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) Get(ctx context.Context, userID, orderID uuid.UUID) (*Order, error) {
	var o Order
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, total_price, status, shipping_address, customer_mobile, documents_status, created_at, updated_at
		FROM orders
		WHERE id = $1 AND user_id = $2`,
		orderID, userID,
	).Scan(&o.ID, &o.UserID, &o.TotalPrice, &o.Status, &o.ShippingAddress, &o.CustomerMobile, &o.DocumentsStatus, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &o, nil
}

func (s *Service) GetByID(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	var o Order
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, total_price, status, shipping_address, customer_mobile, documents_status, created_at, updated_at
		FROM orders
		WHERE id = $1`, orderID,
	).Scan(&o.ID, &o.UserID, &o.TotalPrice, &o.Status, &o.ShippingAddress, &o.CustomerMobile, &o.DocumentsStatus, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &o, nil
}

func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	return s.list(ctx, `WHERE user_id = $1`, userID)
}

func (s *Service) ListAll(ctx context.Context) ([]Order, error) {
	return s.list(ctx, ``)
}

func (s *Service) list(ctx context.Context, where string, args ...any) ([]Order, error) {
	query := `
		SELECT id, user_id, total_price, status, shipping_address, customer_mobile, documents_status, created_at, updated_at
		FROM orders ` + where + `
		ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var result []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.TotalPrice, &o.Status, &o.ShippingAddress, &o.CustomerMobile, &o.DocumentsStatus, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

func (s *Service) ItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]Item, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, order_id, product_id, quantity, price
		FROM order_items
		WHERE order_id = $1`, orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Price); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// TransitionStatus moves the order from one status to another in a single
// conditional update. It reports false when the order was no longer in the
// expected status, which is the race-free double-processing guard.
func (s *Service) TransitionStatus(ctx context.Context, orderID uuid.UUID, from, to Status) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`,
		orderID, from, to,
	)
	if err != nil {
		return false, fmt.Errorf("transition order status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Service) SetDocumentsStatus(ctx context.Context, orderID uuid.UUID, status DocumentsStatus) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET documents_status = $2, updated_at = NOW()
		WHERE id = $1`,
		orderID, status,
	)
	if err != nil {
		return fmt.Errorf("set documents status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// GetDetail loads an order with its items joined to product names. Used by
// the document worker and the admin order view.
func (s *Service) GetDetail(ctx context.Context, orderID uuid.UUID) (*Detail, error) {
	o, err := s.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT i.id, i.order_id, i.product_id, i.quantity, i.price, p.name
		FROM order_items i
		JOIN products p ON p.id = i.product_id
		WHERE i.order_id = $1`, orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("query order detail: %w", err)
	}
	defer rows.Close()

	detail := &Detail{Order: *o}
	for rows.Next() {
		var it ItemDetail
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Price, &it.ProductName); err != nil {
			return nil, err
		}
		detail.Items = append(detail.Items, it)
	}
	return detail, rows.Err()
}
