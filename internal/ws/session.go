package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lyric-companion/backend/internal/model"
	"github.com/lyric-companion/backend/internal/state"
)

var (
	// ErrTransport wraps read and write failures on the underlying connection.
	ErrTransport = errors.New("transport error")

	// ErrChannelClosed is returned by a unit whose queue or cursor became unusable,
	// usually because a sibling unit already exited.
	ErrChannelClosed = errors.New("session channel closed")

	// ErrClientClosed is returned by the reader when the peer closed the connection.
	ErrClientClosed = errors.New("client closed connection")

	// ErrSessionStopped is returned when the session was closed from outside.
	ErrSessionStopped = errors.New("session stopped")
)

const (
	// Time allowed to write a message to the peer.
	defaultWriteWait = 10 * time.Second

	// Time allowed to send the close frame on teardown.
	closeGracePeriod = time.Second

	// Outbound queue depth. A second frame waits until the writer took the first.
	outboundQueueSize = 1
)

// Conn is the full-duplex message transport a Session runs over.
// *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Session serves one connected client. It runs three units: a reader decoding
// requests, a writer draining the outbound queue, and a broadcaster following
// the state store. The first of them to exit tears the whole session down.
type Session struct {
	id        string
	conn      Conn
	store     *state.Store
	logger    *zap.Logger
	observer  Observer
	writeWait time.Duration

	queue  chan []byte
	cursor *state.Cursor

	stop     chan struct{}
	stopOnce sync.Once

	framesIn  atomic.Int64
	framesOut atomic.Int64

	mu     sync.Mutex
	reason model.CloseReason
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionLogger sets the session logger.
func WithSessionLogger(logger *zap.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithSessionObserver sets the observer notified of frames and state writes.
func WithSessionObserver(o Observer) SessionOption {
	return func(s *Session) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithWriteWait bounds a single transport write.
func WithWriteWait(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.writeWait = d
		}
	}
}

// NewSession creates a session for conn bound to the shared store. The cursor
// is taken immediately, so changes made after NewSession returns are delivered.
func NewSession(id string, conn Conn, store *state.Store, opts ...SessionOption) *Session {
	s := &Session{
		id:        id,
		conn:      conn,
		store:     store,
		logger:    zap.NewNop(),
		observer:  nopObserver{},
		writeWait: defaultWriteWait,
		queue:     make(chan []byte, outboundQueueSize),
		cursor:    store.Subscribe(),
		stop:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("session_id", id))
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Close stops the session from outside. Run returns shortly after.
func (s *Session) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

// discard releases a session that was never run.
func (s *Session) discard() {
	s.cursor.Close()
}

// CloseReason returns why the session ended, or CloseReasonNone while it runs.
func (s *Session) CloseReason() model.CloseReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Summary returns the frame counters and close reason.
func (s *Session) Summary() model.ConnectionSummary {
	return model.ConnectionSummary{
		CloseReason: s.CloseReason(),
		FramesIn:    s.framesIn.Load(),
		FramesOut:   s.framesOut.Load(),
		ClosedAt:    time.Now(),
	}
}

// Run starts the reader, writer and broadcaster and blocks until the session
// is over. Cancelling ctx tears the session down with a going-away close frame.
// The returned error is the cause that ended the session, nil for a clean
// client close.
func (s *Session) Run(ctx context.Context) error {
	defer s.cursor.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.writeLoop(gctx) })
	g.Go(func() error { return s.readLoop(gctx) })
	g.Go(func() error { return s.broadcastLoop(gctx) })
	g.Go(func() error {
		var err error
		select {
		case <-gctx.Done():
		case <-s.stop:
			err = ErrSessionStopped
		}
		s.closeTransport(ctx)
		return err
	})

	err := g.Wait()
	reason := s.classify(ctx, err)

	s.mu.Lock()
	s.reason = reason
	s.mu.Unlock()

	s.logger.Debug("session ended",
		zap.String("reason", string(reason)),
		zap.Int64("frames_in", s.framesIn.Load()),
		zap.Int64("frames_out", s.framesOut.Load()),
		zap.Error(err))

	if reason == model.CloseReasonClient || reason == model.CloseReasonShutdown {
		return nil
	}
	return err
}

func (s *Session) classify(parent context.Context, err error) model.CloseReason {
	var perr *ProtocolError
	switch {
	case parent.Err() != nil, errors.Is(err, ErrSessionStopped):
		return model.CloseReasonShutdown
	case errors.As(err, &perr):
		return model.CloseReasonProtocol
	case errors.Is(err, ErrClientClosed):
		return model.CloseReasonClient
	default:
		return model.CloseReasonTransport
	}
}

// closeTransport unblocks a pending read. When the server is going away the
// client gets a close frame first.
func (s *Session) closeTransport(parent context.Context) {
	stopped := false
	select {
	case <-s.stop:
		stopped = true
	default:
	}
	if stopped || parent.Err() != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
	}
	_ = s.conn.Close()
}

// writeLoop drains the outbound queue onto the transport as text frames.
func (s *Session) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ErrChannelClosed
		case data := <-s.queue:
			if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeWait)); err != nil {
				return fmt.Errorf("%w: %v", ErrTransport, err)
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return fmt.Errorf("%w: write: %v", ErrTransport, err)
			}
			s.framesOut.Add(1)
			s.observer.FrameOut()
		}
	}
}

// readLoop decodes client frames and dispatches them in order.
func (s *Session) readLoop(ctx context.Context) error {
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ErrChannelClosed
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return ErrClientClosed
			}
			return fmt.Errorf("%w: read: %v", ErrTransport, err)
		}
		s.framesIn.Add(1)

		if messageType != websocket.TextMessage {
			return s.rejectFrame(websocket.CloseUnsupportedData,
				newProtocolError(data, "binary frames are not part of the protocol"))
		}
		// gorilla does not validate text payloads; relayed content must stay UTF-8.
		if !utf8.Valid(data) {
			return s.rejectFrame(websocket.CloseInvalidFramePayloadData,
				newProtocolError(data, "text frame is not valid UTF-8"))
		}

		req, err := DecodeRequest(data)
		if err != nil {
			var perr *ProtocolError
			if errors.As(err, &perr) {
				return s.rejectFrame(websocket.CloseUnsupportedData, perr)
			}
			return err
		}
		s.observer.FrameIn(req.Kind.String())

		if err := s.dispatch(ctx, req); err != nil {
			return err
		}
	}
}

func (s *Session) dispatch(ctx context.Context, req Request) error {
	switch req.Kind {
	case RequestGet:
		return s.enqueue(ctx, StateResponse(s.store.Get()))
	case RequestSet:
		// The reply arrives through the broadcaster, the sender's included.
		s.store.Set(req.State)
		s.observer.StateSet()
		s.logger.Debug("state set", zap.String("state_id", req.State.ID))
		return nil
	case RequestPing:
		return s.enqueue(ctx, PongResponse(req.Payload))
	case RequestPong:
		return nil
	default:
		return fmt.Errorf("unhandled request kind %s", req.Kind)
	}
}

// rejectFrame sends a close frame with code and ends the reader.
func (s *Session) rejectFrame(code int, perr *ProtocolError) error {
	s.observer.ProtocolError()
	s.logger.Warn("rejecting malformed frame", zap.Int("close_code", code), zap.Error(perr))

	msg := websocket.FormatCloseMessage(code, truncateReason(perr.Reason))
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
	return perr
}

// broadcastLoop enqueues a state frame for every change seen on the cursor.
func (s *Session) broadcastLoop(ctx context.Context) error {
	for {
		st, err := s.cursor.Next(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrChannelClosed, err)
		}
		if err := s.enqueue(ctx, StateResponse(st)); err != nil {
			return err
		}
	}
}

// enqueue blocks while the queue is full.
func (s *Session) enqueue(ctx context.Context, resp Response) error {
	data, err := EncodeResponse(resp)
	if err != nil {
		return err
	}
	select {
	case s.queue <- data:
		return nil
	case <-ctx.Done():
		return ErrChannelClosed
	}
}

// Close frame payloads are limited to 125 bytes, two of which hold the code.
func truncateReason(reason string) string {
	const maxReason = 123
	if len(reason) > maxReason {
		return reason[:maxReason]
	}
	return reason
}
