package document

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rabbitmq/amqp091-go"

	"github.com/domicile785-droid/Cycle-World/internal/blobstore"
	"github.com/domicile785-droid/Cycle-World/internal/contracts"
	"github.com/domicile785-droid/Cycle-World/internal/order"
)

// Worker consumes document jobs, renders the invoice and shipping label,
// uploads both to the documents bucket and records their URLs. Every step is
// idempotent per order (stable object paths, upserts keyed by order id), so a
// redelivered job converges to the same result.
type Worker struct {
	pool   *pgxpool.Pool
	orders *order.Service
	blobs  blobstore.Gateway
	bucket string
	logger *slog.Logger
}

func NewWorker(pool *pgxpool.Pool, orders *order.Service, blobs blobstore.Gateway, bucket string, logger *slog.Logger) *Worker {
	return &Worker{
		pool:   pool,
		orders: orders,
		blobs:  blobs,
		bucket: bucket,
		logger: logger,
	}
}

// HandleDelivery is the consumer callback. Malformed events are dropped;
// processing failures nack with requeue so the job retries.
func (w *Worker) HandleDelivery(ctx context.Context, msg amqp091.Delivery) {
	var evt contracts.DocumentRequestedEvent
	if err := json.Unmarshal(msg.Body, &evt); err != nil {
		w.logger.Error("invalid document event", "err", err)
		_ = msg.Nack(false, false)
		return
	}

	if err := w.Process(ctx, evt); err != nil {
		w.logger.Error("document job failed", "order_id", evt.OrderID, "err", err)
		_ = msg.Nack(false, true)
		return
	}

	_ = msg.Ack(false)
}

func (w *Worker) Process(ctx context.Context, evt contracts.DocumentRequestedEvent) error {
	orderID, err := uuid.Parse(evt.OrderID)
	if err != nil {
		return fmt.Errorf("invalid order id: %w", err)
	}

	detail, err := w.orders.GetDetail(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order: %w", err)
	}

	invoice, err := RenderInvoice(detail)
	if err != nil {
		return err
	}
	label, err := RenderShippingLabel(detail)
	if err != nil {
		return err
	}

	invoiceURL, err := w.blobs.Upload(ctx, w.bucket, fmt.Sprintf("%s/invoice.pdf", evt.OrderID), invoice, "application/pdf")
	if err != nil {
		return err
	}
	labelURL, err := w.blobs.Upload(ctx, w.bucket, fmt.Sprintf("%s/shipping-label.pdf", evt.OrderID), label, "application/pdf")
	if err != nil {
		return err
	}

	if err := w.record(ctx, orderID, invoiceURL, labelURL); err != nil {
		return err
	}

	if err := w.orders.SetDocumentsStatus(ctx, orderID, order.DocumentsGenerated); err != nil {
		return err
	}

	w.logger.Info("documents generated", "order_id", evt.OrderID, "invoice", invoiceURL, "label", labelURL)
	return nil
}

func (w *Worker) record(ctx context.Context, orderID uuid.UUID, invoiceURL, labelURL string) error {
	_, err := w.pool.Exec(ctx, `
		INSERT INTO invoices (id, order_id, invoice_number, invoice_url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (order_id) DO UPDATE SET invoice_number = $3, invoice_url = $4`,
		uuid.New(), orderID, InvoiceNumber(orderID.String()), invoiceURL,
	)
	if err != nil {
		return fmt.Errorf("record invoice: %w", err)
	}

	_, err = w.pool.Exec(ctx, `
		INSERT INTO shipping_labels (id, order_id, tracking_number, label_url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (order_id) DO UPDATE SET tracking_number = $3, label_url = $4`,
		uuid.New(), orderID, TrackingNumber(orderID.String()), labelURL,
	)
	if err != nil {
		return fmt.Errorf("record shipping label: %w", err)
	}
	return nil
}
