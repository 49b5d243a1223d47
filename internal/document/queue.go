package document

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/domicile785-droid/Cycle-World/internal/contracts"
)

// Queue writes document jobs into the transactional outbox. The dispatcher
// picks them up and publishes to the documents exchange.
type Queue struct {
	pool *pgxpool.Pool
}

func NewQueue(pool *pgxpool.Pool) *Queue {
	return &Queue{pool: pool}
}

func (q *Queue) Enqueue(ctx context.Context, orderID uuid.UUID) error {
	evt := contracts.DocumentRequestedEvent{
		EventID:     uuid.New().String(),
		OrderID:     orderID.String(),
		RequestedAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal document event: %w", err)
	}

	_, err = q.pool.Exec(ctx, `
		INSERT INTO document_outbox (event_id, event_type, payload)
		VALUES ($1, $2, $3)`,
		evt.EventID, contracts.DocumentRequestedType, payload,
	)
	if err != nil {
		return fmt.Errorf("insert document outbox: %w", err)
	}
	return nil
}
