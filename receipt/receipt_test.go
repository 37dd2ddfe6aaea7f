package receipt

import (
	"bytes"
	"testing"
	"time"

	"optimeal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() models.Order {
	return models.Order{
		ID:         42,
		Status:     models.OrderReady,
		TotalPrice: 3100,
		Shift:      "12:00-13:00",
		PickUpTime: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		OrderItems: []models.OrderItem{
			{ProductID: "p1", Product: models.OrderProduct{Name: "Milanesa"}, Quantity: 2, Side: &models.OrderSide{ID: "s1", Name: "Puré"}, Notes: "sin sal", Price: 1200},
			{ProductID: "p2", Product: models.OrderProduct{Name: "Agua"}, Quantity: 1, Price: 700},
		},
	}
}

func TestPayload(t *testing.T) {
	assert.Equal(t, "order:42|12:00-13:00", Payload(sample()))
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, sample()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Greater(t, buf.Len(), 1000)
}

func TestRenderCancelled(t *testing.T) {
	o := sample()
	o.Status = models.OrderCancelled
	var buf bytes.Buffer
	assert.ErrorIs(t, Render(&buf, o), ErrNotPickable)
	assert.Zero(t, buf.Len())
}
