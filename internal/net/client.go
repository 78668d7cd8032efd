package net

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/lattice-markets/obcore/internal/book"
)

// ErrServer wraps the message field of a StatusError response.
var ErrServer = errors.New("net: server error")

// Client is a thin synchronous request/response wrapper around one TCP
// connection to a Server. It exists so cmd/obclient (and tests) never have
// to touch frame encoding directly.
type Client struct {
	conn net.Conn
}

// Dial connects to address and returns a ready Client.
func Dial(address string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", address, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("net: dial %s: %w", address, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// writeRequestFrame writes a [4-byte length][1-byte RequestType][body]
// frame — the request-side counterpart to writeFrame's response framing.
func writeRequestFrame(conn net.Conn, reqType RequestType, body []byte) error {
	frame := make([]byte, 4+1+len(body))
	binary.BigEndian.PutUint32(frame[0:4], uint32(1+len(body)))
	frame[4] = byte(reqType)
	copy(frame[5:], body)
	_, err := conn.Write(frame)
	return err
}

// readResponseFrame reads one [4-byte length][1-byte status][body] frame.
func readResponseFrame(conn net.Conn) (ResponseStatus, []byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
		return 0, nil, err
	}
	frameLen := binary.BigEndian.Uint32(lenBuf[:])
	if frameLen < 1 || frameLen > maxFrameLen {
		return 0, nil, ErrMessageTooShort
	}
	payload := make([]byte, frameLen)
	if _, err := io.ReadFull(conn, payload); err != nil {
		return 0, nil, err
	}
	return ResponseStatus(payload[0]), payload[1:], nil
}

func (c *Client) call(reqType RequestType, body []byte) (ResponseStatus, []byte, error) {
	if err := writeRequestFrame(c.conn, reqType, body); err != nil {
		return 0, nil, err
	}
	return readResponseFrame(c.conn)
}

// SubmitOrder sends a new order and returns its assigned id.
func (c *Client) SubmitOrder(req SubmitOrderRequest) (uint64, error) {
	status, body, err := c.call(ReqSubmitOrder, encodeSubmitOrder(req))
	if err != nil {
		return 0, err
	}
	if status != StatusOK {
		return 0, fmt.Errorf("%w: %s", ErrServer, string(body))
	}
	resp, err := decodeSubmitOrderResp(body)
	if err != nil {
		return 0, err
	}
	return resp.OrderID, nil
}

// CancelOrder requests cancellation of orderID.
func (c *Client) CancelOrder(orderID uint64) (bool, error) {
	status, body, err := c.call(ReqCancelOrder, encodeCancelOrder(CancelOrderRequest{OrderID: orderID}))
	if err != nil {
		return false, err
	}
	if status != StatusOK {
		return false, fmt.Errorf("%w: %s", ErrServer, string(body))
	}
	resp, err := decodeCancelOrderResp(body)
	if err != nil {
		return false, err
	}
	return resp.Found, nil
}

// BestBid fetches the current top-of-book bid.
func (c *Client) BestBid() (PriceResponse, error) {
	return c.priceQuery(ReqGetBestBid)
}

// BestAsk fetches the current top-of-book ask.
func (c *Client) BestAsk() (PriceResponse, error) {
	return c.priceQuery(ReqGetBestAsk)
}

func (c *Client) priceQuery(reqType RequestType) (PriceResponse, error) {
	status, body, err := c.call(reqType, nil)
	if err != nil {
		return PriceResponse{}, err
	}
	if status != StatusOK {
		return PriceResponse{}, fmt.Errorf("%w: %s", ErrServer, string(body))
	}
	return decodePriceResp(body)
}

// OrdersAtPrice fetches the resting orders at (side, price).
func (c *Client) OrdersAtPrice(side book.Side, price float64) ([]WireOrder, error) {
	status, body, err := c.call(ReqGetOrdersAtPrice, encodeOrdersAtPriceReq(GetOrdersAtPriceRequest{Side: side, Price: price}))
	if err != nil {
		return nil, err
	}
	if status != StatusOK {
		return nil, fmt.Errorf("%w: %s", ErrServer, string(body))
	}
	return decodeOrdersAtPriceResp(body)
}

// PerformanceStats fetches the server's lifetime counters.
func (c *Client) PerformanceStats() (PerformanceStatsResponse, error) {
	status, body, err := c.call(ReqGetPerformanceStats, nil)
	if err != nil {
		return PerformanceStatsResponse{}, err
	}
	if status != StatusOK {
		return PerformanceStatsResponse{}, fmt.Errorf("%w: %s", ErrServer, string(body))
	}
	return decodePerfStatsResp(body)
}

// HealthCheck pings the server and returns its full health report.
func (c *Client) HealthCheck() (HealthCheckResponse, error) {
	status, body, err := c.call(ReqHealthCheck, nil)
	if err != nil {
		return HealthCheckResponse{}, err
	}
	if status != StatusOK {
		return HealthCheckResponse{}, fmt.Errorf("%w: %s", ErrServer, string(body))
	}
	return decodeHealthResp(body)
}
