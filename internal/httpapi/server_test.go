package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domicile785-droid/Cycle-World/internal/catalog"
	"github.com/domicile785-droid/Cycle-World/internal/order"
	"github.com/domicile785-droid/Cycle-World/internal/payment"
	"github.com/domicile785-droid/Cycle-World/internal/storage/memory"
	"github.com/domicile785-droid/Cycle-World/internal/verification"
)

type noopQueue struct{}

func (noopQueue) Enqueue(context.Context, uuid.UUID) error { return nil }

const testAdminToken = "test-admin-token"

func newTestServer(t *testing.T) (*Server, *memory.Store, uuid.UUID, uuid.UUID) {
	t.Helper()

	store := memory.NewStore()
	orderID := uuid.New()
	productID := uuid.New()

	store.AddProduct(catalog.Product{ID: productID.String(), Name: "City Cruiser 26", Price: 14500, Stock: 5})
	store.AddOrder(
		order.Order{ID: orderID.String(), UserID: uuid.New().String(), TotalPrice: 43500, Status: order.StatusPending, DocumentsStatus: order.DocumentsNone},
		[]order.Item{{ID: uuid.New().String(), OrderID: orderID.String(), ProductID: productID.String(), Quantity: 3, Price: 14500}},
		payment.Payment{ID: uuid.New().String(), OrderID: orderID.String(), TransactionRef: "UTR42", Status: payment.StatusPending},
	)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	workflow := verification.NewWorkflow(store, store, store, noopQueue{}, nil, logger)

	srv := NewServer(Deps{
		Workflow:   workflow,
		AdminToken: testAdminToken,
		Logger:     logger,
	})
	return srv, store, orderID, productID
}

func doAction(srv *Server, orderID, action, token string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(map[string]string{"action": action})
	req := httptest.NewRequest(http.MethodPost, "/admin/orders/"+orderID+"/action", bytes.NewReader(body))
	if token != "" {
		req.Header.Set("X-Admin-Token", token)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestOrderActionApprove(t *testing.T) {
	srv, store, orderID, productID := newTestServer(t)

	rec := doAction(srv, orderID.String(), "approve", testAdminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var receipt verification.Receipt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))
	assert.Equal(t, orderID.String(), receipt.OrderID)
	assert.Equal(t, order.StatusApproved, receipt.Status)

	p, _ := store.Payment(orderID.String())
	assert.Equal(t, payment.StatusVerified, p.Status)
	prod, _ := store.Product(productID.String())
	assert.Equal(t, int64(2), prod.Stock)
}

func TestOrderActionRejectThenConflict(t *testing.T) {
	srv, store, orderID, productID := newTestServer(t)

	rec := doAction(srv, orderID.String(), "reject", testAdminToken)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doAction(srv, orderID.String(), "reject", testAdminToken)
	assert.Equal(t, http.StatusConflict, rec.Code)

	p, _ := store.Payment(orderID.String())
	assert.Equal(t, payment.StatusFailed, p.Status)
	prod, _ := store.Product(productID.String())
	assert.Equal(t, int64(5), prod.Stock)
}

func TestOrderActionUnknownOrder(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	rec := doAction(srv, uuid.New().String(), "approve", testAdminToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrderActionBadRequests(t *testing.T) {
	srv, _, orderID, _ := newTestServer(t)

	rec := doAction(srv, "not-a-uuid", "approve", testAdminToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doAction(srv, orderID.String(), "ship", testAdminToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/admin/orders/"+orderID.String()+"/action", bytes.NewReader([]byte("{")))
	req.Header.Set("X-Admin-Token", testAdminToken)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderActionRequiresAdminToken(t *testing.T) {
	srv, store, orderID, _ := newTestServer(t)

	rec := doAction(srv, orderID.String(), "approve", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doAction(srv, orderID.String(), "approve", "wrong")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	o, _ := store.Order(orderID.String())
	assert.Equal(t, order.StatusPending, o.Status, "rejected requests must not mutate")
}
