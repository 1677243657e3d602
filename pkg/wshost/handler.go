package wshost

import (
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/querysync/internal/errors"
	"github.com/vango-dev/querysync/pkg/snapshot"
	"github.com/vango-dev/querysync/pkg/urlsync"
)

// Recorder observes session activity. A Recorder that also implements
// urlsync.Observer or navbridge.Observer is attached to every session's
// engine and bridge. metrics.Collector implements all three.
type Recorder interface {
	SessionOpened()
	SessionClosed()
	MessageReceived(msgType string, d time.Duration)
	MessageSent(msgType string)
}

// Config configures a Handler.
type Config struct {
	// Schema is the schema every session syncs. Required.
	Schema *snapshot.Schema

	// Options are applied to every session's engine.
	Options []urlsync.Option

	// ReadTimeout closes sessions that stay silent longer.
	// Default: 60 seconds.
	ReadTimeout time.Duration

	// HelloTimeout bounds the wait for the hello frame.
	// Default: 10 seconds.
	HelloTimeout time.Duration

	// MaxMessageSize is the largest accepted frame in bytes.
	// Default: 64KB.
	MaxMessageSize int64

	// CheckOrigin validates the upgrade request origin.
	// Default: SameOriginCheck.
	CheckOrigin func(r *http.Request) bool

	// Recorder observes sessions. Optional.
	Recorder Recorder

	// Logger is the handler logger. Default: slog.Default().
	Logger *slog.Logger
}

// Handler upgrades requests to sync sessions.
type Handler struct {
	config   Config
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[*Session]struct{}
	closing  bool
	wg       sync.WaitGroup
}

// NewHandler validates config and returns a Handler.
func NewHandler(config Config) (*Handler, error) {
	if config.Schema == nil {
		return nil, errors.New("Q022").WithDetail("wshost: schema is required")
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 60 * time.Second
	}
	if config.HelloTimeout <= 0 {
		config.HelloTimeout = 10 * time.Second
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = 64 * 1024
	}
	if config.CheckOrigin == nil {
		config.CheckOrigin = SameOriginCheck
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     config.CheckOrigin,
		},
		logger:   logger.With("component", "wshost"),
		sessions: make(map[*Session]struct{}),
	}, nil
}

// ServeHTTP upgrades the connection and serves the session until it closes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.isClosing() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(h.config.MaxMessageSize)

	s := newSession(conn, &h.config, h.logger.With("remote", r.RemoteAddr))
	if !h.track(s) {
		s.sendError(errors.New("Q031").WithDetail("server shutting down"))
		s.Close()
		return
	}
	defer h.untrack(s)
	defer s.teardown()

	if err := s.handshake(); err != nil {
		s.logger.Warn("handshake failed", "error", err)
		return
	}
	s.ReadLoop()
}

// Sessions returns the number of open sessions.
func (h *Handler) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Shutdown closes every session and waits for their read loops to exit.
// Sessions arriving after Shutdown starts are refused.
func (h *Handler) Shutdown() {
	h.mu.Lock()
	h.closing = true
	sessions := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.sendError(errors.New("Q031").WithDetail("server shutting down"))
		s.Close()
	}
	h.wg.Wait()
}

// track registers s unless shutdown has started.
func (h *Handler) track(s *Session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.sessions[s] = struct{}{}
	h.wg.Add(1)
	return true
}

func (h *Handler) isClosing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closing
}

func (h *Handler) untrack(s *Session) {
	h.mu.Lock()
	delete(h.sessions, s)
	h.mu.Unlock()
	h.wg.Done()
}

// SameOriginCheck accepts requests without an Origin header and requests
// whose Origin host matches the request host.
func SameOriginCheck(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if r.Host == "" {
		return false
	}
	return originURL.Host == r.Host
}

// AllowOrigins returns an origin check accepting the listed origins
// (scheme://host[:port]) in addition to same-origin requests. "*" accepts
// every origin.
func AllowOrigins(origins []string) func(r *http.Request) bool {
	if len(origins) == 0 {
		return SameOriginCheck
	}
	if slices.Contains(origins, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		if SameOriginCheck(r) {
			return true
		}
		return slices.Contains(origins, r.Header.Get("Origin"))
	}
}
