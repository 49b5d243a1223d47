package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrPaymentNotFound = errors.New("payment not found")

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) GetByOrder(ctx context.Context, orderID uuid.UUID) (*Payment, error) {
	var p Payment
	err := s.pool.QueryRow(ctx, `
		SELECT id, order_id, transaction_ref, proof_url, status, created_at, updated_at
		FROM payments
		WHERE order_id = $1`, orderID,
	).Scan(&p.ID, &p.OrderID, &p.TransactionRef, &p.ProofURL, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return &p, nil
}

func (s *Store) UpdateStatusByOrder(ctx context.Context, orderID uuid.UUID, status Status) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE payments
		SET status = $2, updated_at = NOW()
		WHERE order_id = $1`,
		orderID, status,
	)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

// AttachProof records the proof-of-payment URL after the screenshot upload
// succeeds. The upload itself is best-effort at checkout time, so this can
// arrive any time while the payment is still pending.
func (s *Store) AttachProof(ctx context.Context, orderID uuid.UUID, proofURL string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE payments
		SET proof_url = $2, updated_at = NOW()
		WHERE order_id = $1`,
		orderID, proofURL,
	)
	if err != nil {
		return fmt.Errorf("attach proof: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}
