package hub

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/juju/clock"
	"github.com/juju/pubsub/v2"
	"golang.org/x/sync/errgroup"

	"github.com/sitetrack/livemux/pkg/wire"
)

// Server errors.
var (
	ErrTopicNotAllowed = errors.New("topic not allowed")
	ErrEmptyEventType  = errors.New("event type is required")
)

// topicPrefix namespaces hub topics on the internal pubsub hub.
const topicPrefix = "livemux.topic."

// update is the message carried on the internal pubsub hub.
type update struct {
	topic   string
	event   string
	payload []byte
}

// Stats are hub-wide counters.
type Stats struct {
	Sessions  int           `json:"sessions"`
	Joins     int           `json:"joins"`
	Published uint64        `json:"published"`
	Delivered uint64        `json:"delivered"`
	Dropped   uint64        `json:"dropped"`
	Uptime    time.Duration `json:"uptime"`
}

// SessionInfo describes one connected client.
type SessionInfo struct {
	ID          string    `json:"id"`
	ClientID    string    `json:"client_id,omitempty"`
	RemoteAddr  string    `json:"remote_addr"`
	Topics      []string  `json:"topics"`
	ConnectedAt time.Time `json:"connected_at"`
}

// Server is the livemux hub.
type Server struct {
	config   Config
	clock    clock.Clock
	logger   *slog.Logger
	auth     *authenticator
	hub      *pubsub.SimpleHub
	upgrader websocket.Upgrader
	tls      *tls.Config

	mu       sync.Mutex
	sessions map[string]*session

	published atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
	startedAt time.Time
}

// New creates a hub server.
func New(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	s := &Server{
		config:   cfg,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		auth:     newAuthenticator(cfg.TokenHashes),
		hub:      pubsub.NewSimpleHub(&pubsub.SimpleHubConfig{}),
		sessions: make(map[string]*session),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	tlsConfig, err := cfg.TLS.load()
	if err != nil {
		return nil, err
	}
	s.tls = tlsConfig
	s.startedAt = s.clock.Now()
	return s, nil
}

// TLSEnabled reports whether Serve wraps connections in TLS.
func (s *Server) TLSEnabled() bool {
	return s.tls != nil
}

// Handler returns the HTTP handler serving the websocket and REST endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/ws", s.serveWS)
	mux.HandleFunc("POST /v1/publish/{topic...}", s.servePublish)
	mux.HandleFunc("GET /v1/stats", s.serveStats)
	mux.HandleFunc("GET /v1/sessions", s.serveSessions)
	mux.HandleFunc("DELETE /v1/sessions/{id}", s.serveDisconnect)
	return mux
}

// ListenAndServe listens on Config.Address and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	l, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(ctx, l)
}

// Serve accepts connections on l until ctx is done, then shuts the HTTP
// server down and disconnects every session.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.tls != nil {
		l = tls.NewListener(l, s.tls)
	}
	s.debugLog("hub listening", "address", l.Addr().String(), "tls", s.tls != nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		s.closeSessions()
		return err
	})
	return g.Wait()
}

// Publish fans an update out to every session joined to topic.
func (s *Server) Publish(topic, eventType string, payload []byte) error {
	if topic == "" {
		return wire.ErrMissingTopic
	}
	if eventType == "" {
		return ErrEmptyEventType
	}
	if !s.config.allows(topic) {
		return fmt.Errorf("%w: %s", ErrTopicNotAllowed, topic)
	}
	s.published.Add(1)
	_ = s.hub.Publish(topicPrefix+topic, update{topic: topic, event: eventType, payload: payload})
	return nil
}

// CloseTopic ends every join on topic with a CLOSED error frame.
// It returns the number of joins closed.
func (s *Server) CloseTopic(topic, reason string) int {
	n := 0
	for _, sess := range s.snapshot() {
		n += sess.closeTopic(topic, reason)
	}
	if n > 0 {
		s.debugLog("topic closed", "topic", topic, "joins", n)
	}
	return n
}

// Disconnect closes every session whose session ID or client ID equals id.
// It returns the number of sessions closed.
func (s *Server) Disconnect(id string) int {
	n := 0
	for _, sess := range s.snapshot() {
		if sess.id == id || sess.clientID == id {
			sess.close(websocket.ClosePolicyViolation, "disconnected by hub")
			n++
		}
	}
	return n
}

// Stats returns hub counters.
func (s *Server) Stats() Stats {
	st := Stats{
		Published: s.published.Load(),
		Delivered: s.delivered.Load(),
		Dropped:   s.dropped.Load(),
		Uptime:    s.clock.Now().Sub(s.startedAt),
	}
	for _, sess := range s.snapshot() {
		st.Sessions++
		st.Joins += sess.joinCount()
	}
	return st
}

// Sessions returns a description of every connected session.
func (s *Server) Sessions() []SessionInfo {
	sessions := s.snapshot()
	infos := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		infos = append(infos, sess.info())
	}
	return infos
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.check(r); err != nil {
		s.warnLog("websocket rejected", "remote", r.RemoteAddr, "error", err)
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.warnLog("problem initiating websocket", "remote", r.RemoteAddr, "error", err)
		return
	}
	conn.SetReadLimit(wire.MaxFrameSize)

	sess := newSession(s, conn, uuid.NewString(), r.Header.Get(wire.ClientIDHeader), r.RemoteAddr)
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	s.debugLog("session started", "session", sess.id, "client", sess.clientID, "remote", sess.remote)
	sess.run()

	s.mu.Lock()
	delete(s.sessions, sess.id)
	s.mu.Unlock()
	s.debugLog("session ended", "session", sess.id)
}

// publishRequest is the JSON body of POST /v1/publish/{topic}.
type publishRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (s *Server) servePublish(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.check(r); err != nil {
		writeJSONError(w, http.StatusUnauthorized, err)
		return
	}

	var req publishRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, wire.MaxFrameSize)).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}

	topic := r.PathValue("topic")
	if err := s.Publish(topic, req.Type, []byte(req.Payload)); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrTopicNotAllowed) {
			status = http.StatusForbidden
		}
		writeJSONError(w, status, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"topic": topic, "type": req.Type})
}

func (s *Server) serveStats(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.check(r); err != nil {
		writeJSONError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Stats())
}

func (s *Server) serveSessions(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.check(r); err != nil {
		writeJSONError(w, http.StatusUnauthorized, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Sessions())
}

func (s *Server) serveDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.check(r); err != nil {
		writeJSONError(w, http.StatusUnauthorized, err)
		return
	}
	n := s.Disconnect(r.PathValue("id"))
	if n == 0 {
		writeJSONError(w, http.StatusNotFound, fmt.Errorf("no session %q", r.PathValue("id")))
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"disconnected": n})
}

func (s *Server) snapshot() []*session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

func (s *Server) closeSessions() {
	for _, sess := range s.snapshot() {
		sess.close(websocket.CloseGoingAway, "hub shutting down")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) debugLog(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *Server) warnLog(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
