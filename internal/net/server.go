// Package net is the boundary adapter (component F): it owns the TCP
// listener, the length-prefixed wire codec, and translation between wire
// requests and internal/engine.Engine calls. No push-style reporting
// channel exists here — every response is the synchronous answer to the
// request that produced it, per the base spec's exclusion of execution
// report feedback.
package net

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"github.com/lattice-markets/obcore/internal/book"
	"github.com/lattice-markets/obcore/internal/engine"
)

const (
	defaultNWorkers    = 32
	defaultConnTimeout = 30 * time.Second
	maxFrameLen        = 64 * 1024
)

// Server accepts TCP connections, decodes request frames, and dispatches
// them to the single Engine it was built with.
type Server struct {
	host   string
	port   int
	engine *engine.Engine
	pool   workerPool
	cancel context.CancelFunc

	totalRequests atomic.Uint64

	ready    chan struct{}
	readyOne sync.Once
	addr     net.Addr
}

// New builds a Server bound to eng; it does not listen until Run is called.
func New(host string, port int, eng *engine.Engine) *Server {
	return &Server{
		host:   host,
		port:   port,
		engine: eng,
		pool:   newWorkerPool(defaultNWorkers),
		ready:  make(chan struct{}),
	}
}

// Addr blocks until the listener is bound (or ctx is done) and returns its
// address. Meant for tests that bind to port 0 and need to learn the
// chosen port before dialing.
func (s *Server) Addr(ctx context.Context) (net.Addr, error) {
	select {
	case <-s.ready:
		return s.addr, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TotalRequests returns the lifetime count of request frames read off any
// connection, independent of the matching engine's own processed-commands
// counter (a submit/cancel/query RPC is one TCP request but may or may not
// reach the engine, e.g. a malformed body is rejected before Submit/Cancel
// is ever called).
func (s *Server) TotalRequests() uint64 {
	return s.totalRequests.Load()
}

// Shutdown cancels the context Run is blocked on.
func (s *Server) Shutdown() {
	log.Info().Msg("net: server shutting down")
	if s.cancel != nil {
		s.cancel()
	}
}

// Run listens and serves until ctx is cancelled or a fatal listener error
// occurs. It blocks; callers typically invoke it in its own goroutine.
func (s *Server) Run(ctx context.Context) error {
	defer s.Shutdown()

	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.host, s.port))
	if err != nil {
		return fmt.Errorf("net: unable to start listener: %w", err)
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("net: unable to close listener")
		}
	}()

	s.addr = listener.Addr()
	s.readyOne.Do(func() { close(s.ready) })

	s.pool.Setup(t, s.handleConnection)

	log.Info().Str("address", listener.Addr().String()).Msg("net: server listening")

	t.Go(func() error {
		for {
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return nil
				default:
					log.Error().Err(err).Msg("net: error accepting connection")
					continue
				}
			}
			sessionID := uuid.New().String()
			log.Info().
				Str("session", sessionID).
				Str("remote", conn.RemoteAddr().String()).
				Msg("net: new connection")
			s.pool.AddTask(taggedConn{conn: conn, session: sessionID})
		}
	})

	<-ctx.Done()
	t.Kill(nil)
	return t.Wait()
}

// taggedConn carries a connection plus the session id attached to every
// log line produced while serving it.
type taggedConn struct {
	conn    net.Conn
	session string
}

// handleConnection owns one connection's lifetime: it reads frames in a
// loop, dispatches each synchronously, writes the response, and exits on
// EOF, a read error, or tomb shutdown.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	tc, ok := task.(taggedConn)
	if !ok {
		return ErrInvalidRequestType
	}
	conn := tc.conn
	defer func() {
		if err := conn.Close(); err != nil {
			log.Debug().Str("session", tc.session).Err(err).Msg("net: error closing connection")
		}
	}()

	for {
		select {
		case <-t.Dying():
			return nil
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
			return nil
		}

		reqType, body, err := readFrame(conn)
		if err != nil {
			if err != io.EOF {
				log.Debug().Str("session", tc.session).Err(err).Msg("net: connection read ended")
			}
			return nil
		}

		s.totalRequests.Add(1)
		status, respBody := s.dispatch(reqType, body)
		if err := writeFrame(conn, status, respBody); err != nil {
			log.Debug().Str("session", tc.session).Err(err).Msg("net: write failed")
			return nil
		}
	}
}

// dispatch decodes a request body by type, calls into the engine, and
// encodes the response. Unknown request types and malformed bodies both
// produce a StatusError envelope rather than closing the connection.
func (s *Server) dispatch(reqType RequestType, body []byte) (ResponseStatus, []byte) {
	switch reqType {
	case ReqSubmitOrder:
		return s.handleSubmitOrder(body)
	case ReqCancelOrder:
		return s.handleCancelOrder(body)
	case ReqGetBestBid:
		return s.handleBestBid()
	case ReqGetBestAsk:
		return s.handleBestAsk()
	case ReqGetOrdersAtPrice:
		return s.handleOrdersAtPrice(body)
	case ReqGetPerformanceStats:
		return s.handlePerformanceStats()
	case ReqHealthCheck:
		return s.handleHealthCheck()
	default:
		return StatusError, encodeErrorResp(ErrInvalidRequestType.Error())
	}
}

func (s *Server) handleSubmitOrder(body []byte) (ResponseStatus, []byte) {
	req, err := decodeSubmitOrder(body)
	if err != nil {
		return StatusError, encodeErrorResp(err.Error())
	}
	if req.Kind == book.Limit && req.Quantity <= 0 {
		return StatusError, encodeErrorResp(book.ErrInvalidOrder.Error())
	}
	o := book.NewOrder(req.Strategy, req.Side, req.Kind, req.Price, req.Quantity)
	s.engine.Submit(o)
	return StatusOK, encodeSubmitOrderResp(SubmitOrderResponse{OrderID: o.ID()})
}

func (s *Server) handleCancelOrder(body []byte) (ResponseStatus, []byte) {
	req, err := decodeCancelOrder(body)
	if err != nil {
		return StatusError, encodeErrorResp(err.Error())
	}
	found := s.engine.Cancel(req.OrderID)
	return StatusOK, encodeCancelOrderResp(CancelOrderResponse{Found: found})
}

func (s *Server) handleBestBid() (ResponseStatus, []byte) {
	price, ok := s.engine.BestBid()
	return StatusOK, encodePriceResp(PriceResponse{Price: price, HasLevels: ok})
}

func (s *Server) handleBestAsk() (ResponseStatus, []byte) {
	price, ok := s.engine.BestAsk()
	return StatusOK, encodePriceResp(PriceResponse{Price: price, HasLevels: ok})
}

func (s *Server) handleOrdersAtPrice(body []byte) (ResponseStatus, []byte) {
	req, err := decodeOrdersAtPriceReq(body)
	if err != nil {
		return StatusError, encodeErrorResp(err.Error())
	}
	orders := s.engine.LevelsAt(req.Side, req.Price)
	return StatusOK, encodeOrdersAtPriceResp(orders)
}

func (s *Server) handlePerformanceStats() (ResponseStatus, []byte) {
	_, accepted, currentOps, peakOps, uptime := s.engine.Stats()
	resp := PerformanceStatsResponse{
		TotalRequests: s.totalRequests.Load(),
		TotalAccepted: accepted,
		CurrentOps:    currentOps,
		PeakOps:       peakOps,
		UptimeSeconds: uptime.Seconds(),
		QueueDepth:    uint32(s.engine.QueueDepth()),
		QueueCapacity: uint32(s.engine.QueueCapacity()),
	}
	return StatusOK, encodePerfStatsResp(resp)
}

// handleHealthCheck reports process liveness plus the engine's uptime and
// lifetime processed-command count. active_orders is reported as zero in
// this revision (spec.md §6 permits this: "active_orders may be reported as
// zero in this revision") since the book's resting-order count is not
// tracked separately from the price-indexed maps it lives in.
func (s *Server) handleHealthCheck() (ResponseStatus, []byte) {
	processed, _, _, _, uptime := s.engine.Stats()
	resp := HealthCheckResponse{
		Healthy:        true,
		Status:         "serving",
		UptimeSeconds:  uptime.Seconds(),
		ActiveOrders:   0,
		TotalProcessed: processed,
	}
	return StatusOK, encodeHealthResp(resp)
}

// readFrame reads one [4-byte length][1-byte type][body] frame.
func readFrame(r io.Reader) (RequestType, []byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return 0, nil, err
	}
	frameLen := binary.BigEndian.Uint32(lenBuf[:])
	if frameLen == 0 || frameLen > maxFrameLen {
		return 0, nil, ErrMessageTooShort
	}
	payload := make([]byte, frameLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, err
	}
	return RequestType(payload[0]), payload[1:], nil
}

// writeFrame writes one [4-byte length][1-byte status][body] frame.
func writeFrame(w io.Writer, status ResponseStatus, body []byte) error {
	frame := make([]byte, 4+1+len(body))
	binary.BigEndian.PutUint32(frame[0:4], uint32(1+len(body)))
	frame[4] = byte(status)
	copy(frame[5:], body)
	_, err := w.Write(frame)
	return err
}
