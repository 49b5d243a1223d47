// Package verification holds the order verification workflow: the only code
// path that moves an order out of pending, keeps the order, its payment and
// product stock consistent, and guarantees the same order is never processed
// twice.
package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/domicile785-droid/Cycle-World/internal/order"
	"github.com/domicile785-droid/Cycle-World/internal/payment"
)

var (
	// ErrAlreadyProcessed means the order was not pending at decision time.
	// Expected on administrator double-clicks and concurrent retries; the
	// losing caller sees this instead of a silently re-applied decision.
	ErrAlreadyProcessed = errors.New("order already processed")
)

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

func ParseDecision(raw string) (Decision, error) {
	switch Decision(raw) {
	case DecisionApprove, DecisionReject:
		return Decision(raw), nil
	}
	return "", fmt.Errorf("unknown decision %q", raw)
}

// StepError is a store write failure after the workflow has started mutating
// state. Earlier steps are not rolled back; the step name tells an operator
// where reconciliation has to pick up.
type StepError struct {
	OrderID string
	Step    string
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("order %s: step %s: %v", e.OrderID, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// OrderStore is the slice of the order store the workflow needs. The status
// transition must be conditional on the previous status, executed atomically
// by the implementation.
type OrderStore interface {
	GetByID(ctx context.Context, orderID uuid.UUID) (*order.Order, error)
	ItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]order.Item, error)
	TransitionStatus(ctx context.Context, orderID uuid.UUID, from, to order.Status) (bool, error)
	SetDocumentsStatus(ctx context.Context, orderID uuid.UUID, status order.DocumentsStatus) error
}

type PaymentStore interface {
	UpdateStatusByOrder(ctx context.Context, orderID uuid.UUID, status payment.Status) error
}

// Inventory must apply the decrement floored at zero in one atomic operation.
type Inventory interface {
	DecrementStock(ctx context.Context, productID uuid.UUID, quantity int64) (int64, error)
}

// DocumentQueue enqueues the invoice/shipping-label follow-up for an approved
// order. Enqueue failures never fail the approval.
type DocumentQueue interface {
	Enqueue(ctx context.Context, orderID uuid.UUID) error
}

// StatusNotifier pushes the applied status to order watchers.
type StatusNotifier interface {
	BroadcastOrderUpdate(orderID, status string)
}

type Receipt struct {
	OrderID  string       `json:"order_id"`
	Decision Decision     `json:"decision"`
	Status   order.Status `json:"status"`
}

type Workflow struct {
	orders    OrderStore
	payments  PaymentStore
	inventory Inventory
	docs      DocumentQueue
	notifier  StatusNotifier
	logger    *slog.Logger
}

func NewWorkflow(orders OrderStore, payments PaymentStore, inventory Inventory, docs DocumentQueue, notifier StatusNotifier, logger *slog.Logger) *Workflow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{
		orders:    orders,
		payments:  payments,
		inventory: inventory,
		docs:      docs,
		notifier:  notifier,
		logger:    logger,
	}
}

// Process applies an administrator's decision to a pending order.
//
// Preconditions fail fast with no side effects: order.ErrOrderNotFound when
// the order does not exist, ErrAlreadyProcessed when it is not pending. The
// pending check is re-verified by the conditional status update, so two
// concurrent calls that both read pending still resolve to exactly one
// winner.
func (w *Workflow) Process(ctx context.Context, orderID uuid.UUID, decision Decision) (*Receipt, error) {
	ord, err := w.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if ord.Status != order.StatusPending {
		return nil, ErrAlreadyProcessed
	}

	switch decision {
	case DecisionApprove:
		return w.approve(ctx, orderID)
	case DecisionReject:
		return w.reject(ctx, orderID)
	}
	return nil, fmt.Errorf("unknown decision %q", decision)
}

func (w *Workflow) approve(ctx context.Context, orderID uuid.UUID) (*Receipt, error) {
	items, err := w.orders.ItemsByOrder(ctx, orderID)
	if err != nil {
		return nil, w.stepFailed(orderID, "fetch items", err)
	}

	ok, err := w.orders.TransitionStatus(ctx, orderID, order.StatusPending, order.StatusApproved)
	if err != nil {
		return nil, w.stepFailed(orderID, "order status", err)
	}
	if !ok {
		// Lost the race to a concurrent decision.
		return nil, ErrAlreadyProcessed
	}

	if err := w.payments.UpdateStatusByOrder(ctx, orderID, payment.StatusVerified); err != nil {
		return nil, w.stepFailed(orderID, "payment status", err)
	}

	// Stock adjustment is best-effort per item: a product that cannot be
	// read or written is logged and skipped, never aborting the approval.
	for _, it := range items {
		productID, err := uuid.Parse(it.ProductID)
		if err != nil {
			w.logger.Error("stock decrement skipped", "order_id", orderID, "product_id", it.ProductID, "err", err)
			continue
		}
		newStock, err := w.inventory.DecrementStock(ctx, productID, it.Quantity)
		if err != nil {
			w.logger.Error("stock decrement skipped", "order_id", orderID, "product_id", it.ProductID, "err", err)
			continue
		}
		w.logger.Info("stock decremented", "order_id", orderID, "product_id", it.ProductID, "quantity", it.Quantity, "stock", newStock)
	}

	w.enqueueDocuments(ctx, orderID)
	w.broadcast(orderID, order.StatusApproved)

	return &Receipt{OrderID: orderID.String(), Decision: DecisionApprove, Status: order.StatusApproved}, nil
}

func (w *Workflow) reject(ctx context.Context, orderID uuid.UUID) (*Receipt, error) {
	ok, err := w.orders.TransitionStatus(ctx, orderID, order.StatusPending, order.StatusRejected)
	if err != nil {
		return nil, w.stepFailed(orderID, "order status", err)
	}
	if !ok {
		return nil, ErrAlreadyProcessed
	}

	if err := w.payments.UpdateStatusByOrder(ctx, orderID, payment.StatusFailed); err != nil {
		return nil, w.stepFailed(orderID, "payment status", err)
	}

	w.broadcast(orderID, order.StatusRejected)

	return &Receipt{OrderID: orderID.String(), Decision: DecisionReject, Status: order.StatusRejected}, nil
}

// enqueueDocuments arranges the invoice and shipping label as an asynchronous
// follow-up. The order stays approved whatever happens here; a failed enqueue
// leaves documents_status at none for a manual retry.
func (w *Workflow) enqueueDocuments(ctx context.Context, orderID uuid.UUID) {
	if w.docs == nil {
		return
	}
	if err := w.orders.SetDocumentsStatus(ctx, orderID, order.DocumentsPending); err != nil {
		w.logger.Error("documents status update failed", "order_id", orderID, "err", err)
		return
	}
	if err := w.docs.Enqueue(ctx, orderID); err != nil {
		w.logger.Error("document job enqueue failed", "order_id", orderID, "err", err)
	}
}

func (w *Workflow) broadcast(orderID uuid.UUID, status order.Status) {
	if w.notifier != nil {
		w.notifier.BroadcastOrderUpdate(orderID.String(), string(status))
	}
}

func (w *Workflow) stepFailed(orderID uuid.UUID, step string, err error) error {
	w.logger.Error("verification step failed", "order_id", orderID, "step", step, "err", err)
	return &StepError{OrderID: orderID.String(), Step: step, Err: err}
}
