package verification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domicile785-droid/Cycle-World/internal/catalog"
	"github.com/domicile785-droid/Cycle-World/internal/order"
	"github.com/domicile785-droid/Cycle-World/internal/payment"
	"github.com/domicile785-droid/Cycle-World/internal/storage/memory"
)

type recordingQueue struct {
	mu       sync.Mutex
	enqueued []string
	fail     error
}

func (q *recordingQueue) Enqueue(_ context.Context, orderID uuid.UUID) error {
	if q.fail != nil {
		return q.fail
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.enqueued = append(q.enqueued, orderID.String())
	return nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	updates []string
}

func (n *recordingNotifier) BroadcastOrderUpdate(orderID, status string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updates = append(n.updates, orderID+":"+status)
}

type failingPayments struct{}

func (failingPayments) UpdateStatusByOrder(context.Context, uuid.UUID, payment.Status) error {
	return errors.New("connection reset")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	store    *memory.Store
	queue    *recordingQueue
	notifier *recordingNotifier
	workflow *Workflow
	orderID  uuid.UUID
	product  uuid.UUID
}

// newFixture seeds one pending order with a single line item of the given
// quantity against a product with the given stock.
func newFixture(t *testing.T, stock, quantity int64) *fixture {
	t.Helper()

	store := memory.NewStore()
	orderID := uuid.New()
	productID := uuid.New()

	store.AddProduct(catalog.Product{ID: productID.String(), Name: "City Cruiser 26", Price: 14500, Stock: stock})
	store.AddOrder(
		order.Order{ID: orderID.String(), UserID: uuid.New().String(), TotalPrice: 14500 * quantity, Status: order.StatusPending, DocumentsStatus: order.DocumentsNone},
		[]order.Item{{ID: uuid.New().String(), OrderID: orderID.String(), ProductID: productID.String(), Quantity: quantity, Price: 14500}},
		payment.Payment{ID: uuid.New().String(), OrderID: orderID.String(), TransactionRef: "UTR123456", Status: payment.StatusPending},
	)

	queue := &recordingQueue{}
	notifier := &recordingNotifier{}
	return &fixture{
		store:    store,
		queue:    queue,
		notifier: notifier,
		workflow: NewWorkflow(store, store, store, queue, notifier, testLogger()),
		orderID:  orderID,
		product:  productID,
	}
}

func TestApprove(t *testing.T) {
	f := newFixture(t, 5, 3)

	receipt, err := f.workflow.Process(context.Background(), f.orderID, DecisionApprove)
	require.NoError(t, err)
	assert.Equal(t, DecisionApprove, receipt.Decision)
	assert.Equal(t, order.StatusApproved, receipt.Status)

	o, _ := f.store.Order(f.orderID.String())
	assert.Equal(t, order.StatusApproved, o.Status)
	assert.Equal(t, order.DocumentsPending, o.DocumentsStatus)

	p, _ := f.store.Payment(f.orderID.String())
	assert.Equal(t, payment.StatusVerified, p.Status)

	prod, _ := f.store.Product(f.product.String())
	assert.Equal(t, int64(2), prod.Stock)

	assert.Equal(t, []string{f.orderID.String()}, f.queue.enqueued)
	assert.Equal(t, []string{f.orderID.String() + ":approved"}, f.notifier.updates)
}

func TestApproveFloorsStockAtZero(t *testing.T) {
	f := newFixture(t, 2, 5)

	_, err := f.workflow.Process(context.Background(), f.orderID, DecisionApprove)
	require.NoError(t, err)

	prod, _ := f.store.Product(f.product.String())
	assert.Equal(t, int64(0), prod.Stock, "stock must never go negative")
}

func TestReject(t *testing.T) {
	f := newFixture(t, 5, 3)

	receipt, err := f.workflow.Process(context.Background(), f.orderID, DecisionReject)
	require.NoError(t, err)
	assert.Equal(t, order.StatusRejected, receipt.Status)

	o, _ := f.store.Order(f.orderID.String())
	assert.Equal(t, order.StatusRejected, o.Status)
	assert.Equal(t, order.DocumentsNone, o.DocumentsStatus)

	p, _ := f.store.Payment(f.orderID.String())
	assert.Equal(t, payment.StatusFailed, p.Status)

	prod, _ := f.store.Product(f.product.String())
	assert.Equal(t, int64(5), prod.Stock, "rejection must not touch stock")
	assert.Empty(t, f.queue.enqueued)
}

func TestRejectTwice(t *testing.T) {
	f := newFixture(t, 5, 3)
	ctx := context.Background()

	_, err := f.workflow.Process(ctx, f.orderID, DecisionReject)
	require.NoError(t, err)

	_, err = f.workflow.Process(ctx, f.orderID, DecisionReject)
	require.ErrorIs(t, err, ErrAlreadyProcessed)

	prod, _ := f.store.Product(f.product.String())
	assert.Equal(t, int64(5), prod.Stock)
}

func TestNonPendingOrderIsAlreadyProcessed(t *testing.T) {
	for _, status := range []order.Status{order.StatusApproved, order.StatusRejected, order.StatusShipped, order.StatusDelivered} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t, 5, 3)
			_, err := f.store.TransitionStatus(context.Background(), f.orderID, order.StatusPending, status)
			require.NoError(t, err)

			for _, decision := range []Decision{DecisionApprove, DecisionReject} {
				_, err := f.workflow.Process(context.Background(), f.orderID, decision)
				require.ErrorIs(t, err, ErrAlreadyProcessed)
			}

			p, _ := f.store.Payment(f.orderID.String())
			assert.Equal(t, payment.StatusPending, p.Status, "no mutation on precondition failure")
			prod, _ := f.store.Product(f.product.String())
			assert.Equal(t, int64(5), prod.Stock)
			assert.Empty(t, f.queue.enqueued)
		})
	}
}

func TestUnknownOrderIsNotFound(t *testing.T) {
	f := newFixture(t, 5, 3)

	_, err := f.workflow.Process(context.Background(), uuid.New(), DecisionApprove)
	require.ErrorIs(t, err, order.ErrOrderNotFound)

	o, _ := f.store.Order(f.orderID.String())
	assert.Equal(t, order.StatusPending, o.Status)
	prod, _ := f.store.Product(f.product.String())
	assert.Equal(t, int64(5), prod.Stock)
}

func TestPaymentWriteFailureIsSurfaced(t *testing.T) {
	f := newFixture(t, 5, 3)
	w := NewWorkflow(f.store, failingPayments{}, f.store, f.queue, f.notifier, testLogger())

	_, err := w.Process(context.Background(), f.orderID, DecisionApprove)
	require.Error(t, err)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "payment status", stepErr.Step)
	assert.Equal(t, f.orderID.String(), stepErr.OrderID)

	// Earlier steps are not rolled back: the order stays approved, which is
	// the reconciliation signal for an operator.
	o, _ := f.store.Order(f.orderID.String())
	assert.Equal(t, order.StatusApproved, o.Status)
}

func TestMissingProductIsSkippedNotFatal(t *testing.T) {
	store := memory.NewStore()
	orderID := uuid.New()
	known := uuid.New()
	missing := uuid.New()

	store.AddProduct(catalog.Product{ID: known.String(), Name: "Trail Blazer 29", Price: 21000, Stock: 4})
	store.AddOrder(
		order.Order{ID: orderID.String(), Status: order.StatusPending, DocumentsStatus: order.DocumentsNone},
		[]order.Item{
			{ID: uuid.New().String(), OrderID: orderID.String(), ProductID: missing.String(), Quantity: 1, Price: 9000},
			{ID: uuid.New().String(), OrderID: orderID.String(), ProductID: known.String(), Quantity: 2, Price: 21000},
		},
		payment.Payment{ID: uuid.New().String(), OrderID: orderID.String(), Status: payment.StatusPending},
	)

	queue := &recordingQueue{}
	w := NewWorkflow(store, store, store, queue, nil, testLogger())

	_, err := w.Process(context.Background(), orderID, DecisionApprove)
	require.NoError(t, err, "a missing product must not abort the approval")

	prod, _ := store.Product(known.String())
	assert.Equal(t, int64(2), prod.Stock, "the readable product is still decremented")
}

func TestDocumentEnqueueFailureDoesNotFailApproval(t *testing.T) {
	f := newFixture(t, 5, 3)
	queue := &recordingQueue{fail: errors.New("outbox unavailable")}
	w := NewWorkflow(f.store, f.store, f.store, queue, f.notifier, testLogger())

	receipt, err := w.Process(context.Background(), f.orderID, DecisionApprove)
	require.NoError(t, err)
	assert.Equal(t, order.StatusApproved, receipt.Status)

	p, _ := f.store.Payment(f.orderID.String())
	assert.Equal(t, payment.StatusVerified, p.Status)
}

// gatedOrders delays both concurrent callers until each has read the order
// as pending, forcing the window the naive read-check-then-write guard is
// vulnerable to.
type gatedOrders struct {
	*memory.Store
	barrier *sync.WaitGroup
}

func (g *gatedOrders) GetByID(ctx context.Context, orderID uuid.UUID) (*order.Order, error) {
	o, err := g.Store.GetByID(ctx, orderID)
	g.barrier.Done()
	g.barrier.Wait()
	return o, err
}

func TestConcurrentApprovalsDecrementOnce(t *testing.T) {
	f := newFixture(t, 5, 3)

	var barrier sync.WaitGroup
	barrier.Add(2)
	gated := &gatedOrders{Store: f.store, barrier: &barrier}
	w := NewWorkflow(gated, f.store, f.store, f.queue, nil, testLogger())

	results := make(chan error, 2)
	for range 2 {
		go func() {
			_, err := w.Process(context.Background(), f.orderID, DecisionApprove)
			results <- err
		}()
	}

	var failures []error
	for range 2 {
		if err := <-results; err != nil {
			failures = append(failures, err)
		}
	}

	require.Len(t, failures, 1, "exactly one caller must win")
	require.ErrorIs(t, failures[0], ErrAlreadyProcessed)

	prod, _ := f.store.Product(f.product.String())
	assert.Equal(t, int64(2), prod.Stock, "stock must be decremented exactly once")
	assert.Len(t, f.queue.enqueued, 1)
}

func TestParseDecision(t *testing.T) {
	d, err := ParseDecision("approve")
	require.NoError(t, err)
	assert.Equal(t, DecisionApprove, d)

	d, err = ParseDecision("reject")
	require.NoError(t, err)
	assert.Equal(t, DecisionReject, d)

	_, err = ParseDecision("ship")
	require.Error(t, err)
}
