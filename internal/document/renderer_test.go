package document

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domicile785-droid/Cycle-World/internal/order"
)

func sampleDetail() *order.Detail {
	return &order.Detail{
		Order: order.Order{
			ID:              "8a6f2c1d-33e1-4b2a-9f70-6d1f52a0beef",
			UserID:          "c3a1d9e0-1111-4fa0-8c55-2b9b921d7a42",
			TotalPrice:      50500,
			Status:          order.StatusApproved,
			ShippingAddress: "14 Residency Road\nSrinagar, 190001",
			CustomerMobile:  "9876543210",
			CreatedAt:       time.Date(2025, 6, 14, 10, 30, 0, 0, time.UTC),
		},
		Items: []order.ItemDetail{
			{Item: order.Item{Quantity: 2, Price: 14500}, ProductName: "City Cruiser 26"},
			{Item: order.Item{Quantity: 1, Price: 21500}, ProductName: "Trail Blazer 29"},
		},
	}
}

func TestRenderInvoice(t *testing.T) {
	data, err := RenderInvoice(sampleDetail())
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.Equal(t, "%PDF", string(data[:4]))
}

func TestRenderShippingLabel(t *testing.T) {
	data, err := RenderShippingLabel(sampleDetail())
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.Equal(t, "%PDF", string(data[:4]))
}

func TestInvoiceNumberStable(t *testing.T) {
	id := "8a6f2c1d-33e1-4b2a-9f70-6d1f52a0beef"
	assert.Equal(t, "CW-INV-A0BEEF", InvoiceNumber(id))
	assert.Equal(t, InvoiceNumber(id), InvoiceNumber(id), "replays must yield the same number")
}

func TestTrackingNumberStable(t *testing.T) {
	id := "8a6f2c1d-33e1-4b2a-9f70-6d1f52a0beef"
	assert.Equal(t, TrackingNumber(id), TrackingNumber(id))
	assert.Contains(t, TrackingNumber(id), "CW-TRK-")
}
