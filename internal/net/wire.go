package net

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/lattice-markets/obcore/internal/book"
)

// Wire format: every request and response is a RequestType/ResponseStatus
// byte followed by a body of big-endian fields. Most bodies are fixed-size;
// the orders-at-price, health-check and error responses are
// variable-length. Framing is length-prefixed,
// the way fenrir/internal/net/messages.go packs NewOrderMessage — we keep
// the same encoding/binary + BigEndian idiom, extended with a 4-byte
// length prefix in front of every frame so handleConnection can read
// exactly one message per Read rather than relying on a single recv
// containing the whole thing.
var (
	ErrInvalidRequestType = errors.New("net: invalid request type")
	ErrMessageTooShort    = errors.New("net: message too short")
)

// RequestType identifies which of the spec's seven operations a frame
// carries.
type RequestType uint8

const (
	ReqSubmitOrder RequestType = iota
	ReqCancelOrder
	ReqGetBestBid
	ReqGetBestAsk
	ReqGetOrdersAtPrice
	ReqGetPerformanceStats
	ReqHealthCheck
)

// ResponseStatus is the outermost success/failure envelope every response
// carries, mirroring the base spec's (success bool, message string) reply
// shape for every RPC.
type ResponseStatus uint8

const (
	StatusOK ResponseStatus = iota
	StatusError
)

// SubmitOrderRequest mirrors spec.md §6's SubmitOrder request fields.
type SubmitOrderRequest struct {
	Strategy book.Strategy
	Side     book.Side
	Kind     book.Kind
	Price    float64
	Quantity int64
}

const submitOrderBodyLen = 2 + 1 + 1 + 8 + 8 // strategy(u16) side(u8) kind(u8) price(f64) qty(i64)

func encodeSubmitOrder(r SubmitOrderRequest) []byte {
	buf := make([]byte, submitOrderBodyLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(r.Strategy))
	buf[2] = byte(r.Side)
	buf[3] = byte(r.Kind)
	binary.BigEndian.PutUint64(buf[4:12], math.Float64bits(r.Price))
	binary.BigEndian.PutUint64(buf[12:20], uint64(r.Quantity))
	return buf
}

func decodeSubmitOrder(body []byte) (SubmitOrderRequest, error) {
	if len(body) < submitOrderBodyLen {
		return SubmitOrderRequest{}, ErrMessageTooShort
	}
	return SubmitOrderRequest{
		Strategy: decodeStrategy(binary.BigEndian.Uint16(body[0:2])),
		Side:     decodeSide(body[2]),
		Kind:     decodeKind(body[3]),
		Price:    math.Float64frombits(binary.BigEndian.Uint64(body[4:12])),
		Quantity: int64(binary.BigEndian.Uint64(body[12:20])),
	}, nil
}

// SubmitOrderResponse carries back the assigned order id so clients can
// later issue a CancelOrder.
type SubmitOrderResponse struct {
	OrderID uint64
}

const submitOrderRespLen = 8

func encodeSubmitOrderResp(r SubmitOrderResponse) []byte {
	buf := make([]byte, submitOrderRespLen)
	binary.BigEndian.PutUint64(buf, r.OrderID)
	return buf
}

func decodeSubmitOrderResp(body []byte) (SubmitOrderResponse, error) {
	if len(body) < submitOrderRespLen {
		return SubmitOrderResponse{}, ErrMessageTooShort
	}
	return SubmitOrderResponse{OrderID: binary.BigEndian.Uint64(body[0:8])}, nil
}

// CancelOrderRequest identifies the order to cancel.
type CancelOrderRequest struct {
	OrderID uint64
}

const cancelOrderBodyLen = 8

func encodeCancelOrder(r CancelOrderRequest) []byte {
	buf := make([]byte, cancelOrderBodyLen)
	binary.BigEndian.PutUint64(buf, r.OrderID)
	return buf
}

func decodeCancelOrder(body []byte) (CancelOrderRequest, error) {
	if len(body) < cancelOrderBodyLen {
		return CancelOrderRequest{}, ErrMessageTooShort
	}
	return CancelOrderRequest{OrderID: binary.BigEndian.Uint64(body[0:8])}, nil
}

// CancelOrderResponse reports whether the id was found and removed.
type CancelOrderResponse struct {
	Found bool
}

func encodeCancelOrderResp(r CancelOrderResponse) []byte {
	buf := make([]byte, 1)
	if r.Found {
		buf[0] = 1
	}
	return buf
}

func decodeCancelOrderResp(body []byte) (CancelOrderResponse, error) {
	if len(body) < 1 {
		return CancelOrderResponse{}, ErrMessageTooShort
	}
	return CancelOrderResponse{Found: body[0] != 0}, nil
}

// PriceResponse is the shared shape of GetBestBid/GetBestAsk: a price plus
// whether that side of the book currently has any liquidity.
type PriceResponse struct {
	Price     float64
	HasLevels bool
}

func encodePriceResp(r PriceResponse) []byte {
	buf := make([]byte, 9)
	binary.BigEndian.PutUint64(buf[0:8], math.Float64bits(r.Price))
	if r.HasLevels {
		buf[8] = 1
	}
	return buf
}

func decodePriceResp(body []byte) (PriceResponse, error) {
	if len(body) < 9 {
		return PriceResponse{}, ErrMessageTooShort
	}
	return PriceResponse{
		Price:     math.Float64frombits(binary.BigEndian.Uint64(body[0:8])),
		HasLevels: body[8] != 0,
	}, nil
}

// GetOrdersAtPriceRequest identifies a (side, price) level to inspect.
type GetOrdersAtPriceRequest struct {
	Side  book.Side
	Price float64
}

const ordersAtPriceBodyLen = 1 + 8

func encodeOrdersAtPriceReq(r GetOrdersAtPriceRequest) []byte {
	buf := make([]byte, ordersAtPriceBodyLen)
	buf[0] = byte(r.Side)
	binary.BigEndian.PutUint64(buf[1:9], math.Float64bits(r.Price))
	return buf
}

func decodeOrdersAtPriceReq(body []byte) (GetOrdersAtPriceRequest, error) {
	if len(body) < ordersAtPriceBodyLen {
		return GetOrdersAtPriceRequest{}, ErrMessageTooShort
	}
	return GetOrdersAtPriceRequest{
		Side:  decodeSide(body[0]),
		Price: math.Float64frombits(binary.BigEndian.Uint64(body[1:9])),
	}, nil
}

// WireOrder is the read-only projection of internal/book.Order sent back
// on market-data queries.
type WireOrder struct {
	ID       uint64
	Strategy book.Strategy
	Side     book.Side
	Kind     book.Kind
	Price    float64
	Quantity int64
}

const wireOrderLen = 8 + 2 + 1 + 1 + 8 + 8

func encodeOrdersAtPriceResp(orders []*book.Order) []byte {
	buf := make([]byte, 4+wireOrderLen*len(orders))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(orders)))
	off := 4
	for _, o := range orders {
		binary.BigEndian.PutUint64(buf[off:off+8], o.ID())
		binary.BigEndian.PutUint16(buf[off+8:off+10], uint16(o.Strategy()))
		buf[off+10] = byte(o.Side())
		buf[off+11] = byte(o.Kind())
		binary.BigEndian.PutUint64(buf[off+12:off+20], math.Float64bits(o.Price()))
		binary.BigEndian.PutUint64(buf[off+20:off+28], uint64(o.Quantity()))
		off += wireOrderLen
	}
	return buf
}

func decodeOrdersAtPriceResp(body []byte) ([]WireOrder, error) {
	if len(body) < 4 {
		return nil, ErrMessageTooShort
	}
	n := int(binary.BigEndian.Uint32(body[0:4]))
	out := make([]WireOrder, 0, n)
	off := 4
	for i := 0; i < n; i++ {
		if off+wireOrderLen > len(body) {
			return nil, ErrMessageTooShort
		}
		out = append(out, WireOrder{
			ID:       binary.BigEndian.Uint64(body[off : off+8]),
			Strategy: decodeStrategy(binary.BigEndian.Uint16(body[off+8 : off+10])),
			Side:     decodeSide(body[off+10]),
			Kind:     decodeKind(body[off+11]),
			Price:    math.Float64frombits(binary.BigEndian.Uint64(body[off+12 : off+20])),
			Quantity: int64(binary.BigEndian.Uint64(body[off+20 : off+28])),
		})
		off += wireOrderLen
	}
	return out, nil
}

// PerformanceStatsResponse mirrors spec.md §6's GetPerformanceStats reply:
// total, current_ops, peak_ops, queue_depth, queue_capacity, uptime.
type PerformanceStatsResponse struct {
	TotalRequests uint64
	TotalAccepted uint64
	CurrentOps    float64
	PeakOps       float64
	UptimeSeconds float64
	QueueDepth    uint32
	QueueCapacity uint32
}

const perfStatsLen = 8 + 8 + 8 + 8 + 8 + 4 + 4

func encodePerfStatsResp(r PerformanceStatsResponse) []byte {
	buf := make([]byte, perfStatsLen)
	binary.BigEndian.PutUint64(buf[0:8], r.TotalRequests)
	binary.BigEndian.PutUint64(buf[8:16], r.TotalAccepted)
	binary.BigEndian.PutUint64(buf[16:24], math.Float64bits(r.CurrentOps))
	binary.BigEndian.PutUint64(buf[24:32], math.Float64bits(r.PeakOps))
	binary.BigEndian.PutUint64(buf[32:40], math.Float64bits(r.UptimeSeconds))
	binary.BigEndian.PutUint32(buf[40:44], r.QueueDepth)
	binary.BigEndian.PutUint32(buf[44:48], r.QueueCapacity)
	return buf
}

func decodePerfStatsResp(body []byte) (PerformanceStatsResponse, error) {
	if len(body) < perfStatsLen {
		return PerformanceStatsResponse{}, ErrMessageTooShort
	}
	return PerformanceStatsResponse{
		TotalRequests: binary.BigEndian.Uint64(body[0:8]),
		TotalAccepted: binary.BigEndian.Uint64(body[8:16]),
		CurrentOps:    math.Float64frombits(binary.BigEndian.Uint64(body[16:24])),
		PeakOps:       math.Float64frombits(binary.BigEndian.Uint64(body[24:32])),
		UptimeSeconds: math.Float64frombits(binary.BigEndian.Uint64(body[32:40])),
		QueueDepth:    binary.BigEndian.Uint32(body[40:44]),
		QueueCapacity: binary.BigEndian.Uint32(body[44:48]),
	}, nil
}

// HealthCheckResponse mirrors spec.md §6's HealthCheck reply: healthy,
// status_string, uptime_seconds, active_orders, total_orders_processed.
type HealthCheckResponse struct {
	Healthy        bool
	Status         string
	UptimeSeconds  float64
	ActiveOrders   uint64
	TotalProcessed uint64
}

const healthRespFixedLen = 1 + 8 + 8 + 8 + 4 // healthy + uptime + activeOrders + totalProcessed + status length prefix

func encodeHealthResp(r HealthCheckResponse) []byte {
	status := []byte(r.Status)
	buf := make([]byte, healthRespFixedLen+len(status))
	if r.Healthy {
		buf[0] = 1
	}
	binary.BigEndian.PutUint64(buf[1:9], math.Float64bits(r.UptimeSeconds))
	binary.BigEndian.PutUint64(buf[9:17], r.ActiveOrders)
	binary.BigEndian.PutUint64(buf[17:25], r.TotalProcessed)
	binary.BigEndian.PutUint32(buf[25:29], uint32(len(status)))
	copy(buf[29:], status)
	return buf
}

func decodeHealthResp(body []byte) (HealthCheckResponse, error) {
	if len(body) < healthRespFixedLen {
		return HealthCheckResponse{}, ErrMessageTooShort
	}
	statusLen := int(binary.BigEndian.Uint32(body[25:29]))
	if len(body) < healthRespFixedLen+statusLen {
		return HealthCheckResponse{}, ErrMessageTooShort
	}
	return HealthCheckResponse{
		Healthy:        body[0] != 0,
		UptimeSeconds:  math.Float64frombits(binary.BigEndian.Uint64(body[1:9])),
		ActiveOrders:   binary.BigEndian.Uint64(body[9:17]),
		TotalProcessed: binary.BigEndian.Uint64(body[17:25]),
		Status:         string(body[29 : 29+statusLen]),
	}, nil
}

// encodeErrorResp encodes the message field of a StatusError envelope.
func encodeErrorResp(msg string) []byte {
	return []byte(msg)
}

func decodeStrategy(v uint16) book.Strategy {
	if v > uint16(book.StrategyOther) {
		return book.StrategyOther
	}
	return book.Strategy(v)
}

func decodeSide(v byte) book.Side {
	if v == byte(book.Sell) {
		return book.Sell
	}
	return book.Buy
}

func decodeKind(v byte) book.Kind {
	if v == byte(book.Market) {
		return book.Market
	}
	return book.Limit
}
