package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lyric-companion/backend/internal/model"
	"github.com/lyric-companion/backend/internal/state"
)

const (
	// Maximum message size allowed from peer. State content is client-defined
	// and can be large.
	defaultMaxMessageSize = 1 << 20

	// Time allowed for audit bookkeeping around a session.
	recordTimeout = 5 * time.Second
)

// SessionRecorder keeps an audit trail of connections. It never sees state content.
type SessionRecorder interface {
	Create(ctx context.Context, rec *model.ConnectionRecord) error
	Finish(ctx context.Context, id string, summary model.ConnectionSummary) error
}

// Config holds hub tuning.
type Config struct {
	// MaxMessageSize caps one inbound frame. Larger frames end the session.
	MaxMessageSize int64
	// WriteWait bounds a single outbound write.
	WriteWait time.Duration
	// CheckOrigin decides whether an upgrade request is allowed. Nil allows all.
	CheckOrigin func(r *http.Request) bool
}

// Hub accepts upgrade requests and runs one Session per client, all bound to
// the same state store. Once the context given to Run is cancelled, new
// connections are refused and live sessions are closed.
type Hub struct {
	store    *state.Store
	recorder SessionRecorder
	observer Observer
	logger   *zap.Logger
	cfg      Config
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[string]*Session
	baseCtx  context.Context
	closing  bool
	wg       sync.WaitGroup
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(logger *zap.Logger) HubOption {
	return func(h *Hub) {
		h.logger = logger
	}
}

// WithRecorder sets the connection audit recorder.
func WithRecorder(r SessionRecorder) HubOption {
	return func(h *Hub) {
		h.recorder = r
	}
}

// WithObserver sets the event observer shared by all sessions.
func WithObserver(o Observer) HubOption {
	return func(h *Hub) {
		if o != nil {
			h.observer = o
		}
	}
}

// WithConfig sets hub tuning.
func WithConfig(cfg Config) HubOption {
	return func(h *Hub) {
		h.cfg = cfg
	}
}

// NewHub creates a Hub serving the given store.
func NewHub(store *state.Store, opts ...HubOption) *Hub {
	h := &Hub{
		store:    store,
		observer: nopObserver{},
		logger:   zap.NewNop(),
		sessions: make(map[string]*Session),
		baseCtx:  context.Background(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.cfg.MaxMessageSize <= 0 {
		h.cfg.MaxMessageSize = defaultMaxMessageSize
	}
	if h.cfg.WriteWait <= 0 {
		h.cfg.WriteWait = defaultWriteWait
	}
	checkOrigin := h.cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     checkOrigin,
	}
	h.logger = h.logger.Named("state-hub")
	return h
}

// Store returns the shared state store.
func (h *Hub) Store() *state.Store {
	return h.store
}

// Run binds the hub to ctx and blocks until it is cancelled, then refuses new
// connections, closes every live session and waits for their handlers to
// finish recording.
func (h *Hub) Run(ctx context.Context) {
	h.mu.Lock()
	h.baseCtx = ctx
	h.mu.Unlock()

	<-ctx.Done()
	h.closeAll()
	h.wg.Wait()
}

// ServeHTTP upgrades the request and serves the session until it ends.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.isClosing() {
		http.Error(w, model.ErrShuttingDown.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		h.logger.Debug("upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(h.cfg.MaxMessageSize)

	sess := NewSession(uuid.NewString(), conn, h.store,
		WithSessionLogger(h.logger),
		WithSessionObserver(h.observer),
		WithWriteWait(h.cfg.WriteWait),
	)

	ctx, ok := h.register(sess)
	if !ok {
		sess.discard()
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
		return
	}
	defer h.unregister(sess)

	h.recordOpen(sess, r)
	h.observer.SessionOpened()
	h.logger.Info("client connected",
		zap.String("session_id", sess.ID()),
		zap.String("remote_addr", r.RemoteAddr))

	if err := sess.Run(ctx); err != nil {
		h.logger.Info("client session failed", zap.String("session_id", sess.ID()), zap.Error(err))
	}

	summary := sess.Summary()
	h.recordFinish(sess, summary)
	h.observer.SessionClosed(summary.CloseReason)
	h.logger.Info("client disconnected",
		zap.String("session_id", sess.ID()),
		zap.String("reason", string(summary.CloseReason)))
}

// Count returns the number of live sessions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// SessionIDs returns the identifiers of live sessions.
func (h *Hub) SessionIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	return ids
}

// IsLive reports whether the session with id is still connected.
func (h *Hub) IsLive(id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.sessions[id]
	return ok
}

// Close refuses new connections and closes all live sessions without waiting
// for Run's context.
func (h *Hub) Close() {
	h.closeAll()
}

func (h *Hub) isClosing() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closing || h.baseCtx.Err() != nil
}

// register adds sess unless the hub is closing, returning the context the
// session must run under.
func (h *Hub) register(sess *Session) (context.Context, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing || h.baseCtx.Err() != nil {
		return nil, false
	}
	h.sessions[sess.ID()] = sess
	h.wg.Add(1)
	return h.baseCtx, true
}

func (h *Hub) unregister(sess *Session) {
	h.mu.Lock()
	delete(h.sessions, sess.ID())
	h.mu.Unlock()
	h.wg.Done()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	h.closing = true
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	if len(sessions) > 0 {
		h.logger.Info("closed live sessions", zap.Int("count", len(sessions)))
	}
}

func (h *Hub) recordOpen(sess *Session, r *http.Request) {
	if h.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	rec := &model.ConnectionRecord{
		ID:          sess.ID(),
		RemoteAddr:  r.RemoteAddr,
		UserAgent:   r.UserAgent(),
		Status:      model.SessionStatusOpen,
		ConnectedAt: time.Now(),
	}
	if err := h.recorder.Create(ctx, rec); err != nil {
		h.logger.Warn("failed to record connection", zap.String("session_id", sess.ID()), zap.Error(err))
	}
}

func (h *Hub) recordFinish(sess *Session, summary model.ConnectionSummary) {
	if h.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := h.recorder.Finish(ctx, sess.ID(), summary); err != nil {
		h.logger.Warn("failed to finish connection record", zap.String("session_id", sess.ID()), zap.Error(err))
	}
}
