package net

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-markets/obcore/internal/book"
)

func TestWire_SubmitOrderRoundTrip(t *testing.T) {
	req := SubmitOrderRequest{
		Strategy: book.StrategyHedgeFund,
		Side:     book.Sell,
		Kind:     book.Limit,
		Price:    123.25,
		Quantity: 77,
	}
	got, err := decodeSubmitOrder(encodeSubmitOrder(req))
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestWire_SubmitOrderRespRoundTrip(t *testing.T) {
	resp := SubmitOrderResponse{OrderID: 42}
	got, err := decodeSubmitOrderResp(encodeSubmitOrderResp(resp))
	require.NoError(t, err)
	assert.Equal(t, resp, got)
}

func TestWire_CancelOrderRoundTrip(t *testing.T) {
	req := CancelOrderRequest{OrderID: 7}
	got, err := decodeCancelOrder(encodeCancelOrder(req))
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestWire_PriceRespRoundTrip(t *testing.T) {
	resp := PriceResponse{Price: 99.5, HasLevels: true}
	got, err := decodePriceResp(encodePriceResp(resp))
	require.NoError(t, err)
	assert.Equal(t, resp, got)
}

func TestWire_OrdersAtPriceRoundTrip(t *testing.T) {
	o1 := book.NewOrder(book.StrategyAlgorithmic, book.Buy, book.Limit, 100.0, 5)
	o2 := book.NewOrder(book.StrategyOther, book.Buy, book.Limit, 100.0, 3)

	encoded := encodeOrdersAtPriceResp([]*book.Order{o1, o2})
	got, err := decodeOrdersAtPriceResp(encoded)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, o1.ID(), got[0].ID)
	assert.Equal(t, int64(5), got[0].Quantity)
	assert.Equal(t, o2.ID(), got[1].ID)
}

func TestWire_PerfStatsRoundTrip(t *testing.T) {
	resp := PerformanceStatsResponse{
		TotalRequests: 100,
		TotalAccepted: 80,
		UptimeSeconds: 12.5,
		QueueDepth:    3,
	}
	got, err := decodePerfStatsResp(encodePerfStatsResp(resp))
	require.NoError(t, err)
	assert.Equal(t, resp, got)
}

func TestWire_HealthRespRoundTrip(t *testing.T) {
	resp := HealthCheckResponse{
		Healthy:        true,
		Status:         "serving",
		UptimeSeconds:  42.5,
		ActiveOrders:   0,
		TotalProcessed: 17,
	}
	got, err := decodeHealthResp(encodeHealthResp(resp))
	require.NoError(t, err)
	assert.Equal(t, resp, got)
}

func TestWire_MalformedBodyTooShort(t *testing.T) {
	_, err := decodeSubmitOrder([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrMessageTooShort)

	_, err = decodeCancelOrder(nil)
	assert.ErrorIs(t, err, ErrMessageTooShort)
}

func TestWire_DecodeStrategyClampsUnknown(t *testing.T) {
	assert.Equal(t, book.StrategyOther, decodeStrategy(9999))
}
