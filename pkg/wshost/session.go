package wshost

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/querysync/internal/errors"
	"github.com/vango-dev/querysync/pkg/history"
	"github.com/vango-dev/querysync/pkg/navbridge"
	"github.com/vango-dev/querysync/pkg/snapshot"
	"github.com/vango-dev/querysync/pkg/urlsync"
)

const writeTimeout = 10 * time.Second

// Session is one connected browser tab.
type Session struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	config  *Config
	logger  *slog.Logger

	host   *Host
	engine *urlsync.Engine
	ctx    context.Context
	cancel context.CancelFunc

	opened bool
	closed atomic.Bool
}

func newSession(conn *websocket.Conn, config *Config, logger *slog.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		conn:   conn,
		config: config,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Host returns the session's address mirror, or nil before the handshake.
func (s *Session) Host() *Host {
	return s.host
}

// Engine returns the session's engine, or nil before the handshake.
func (s *Session) Engine() *urlsync.Engine {
	return s.engine
}

// handshake waits for hello and mounts the engine on the announced address.
func (s *Session) handshake() error {
	s.conn.SetReadDeadline(time.Now().Add(s.config.HelloTimeout))

	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return err
	}
	msg, err := DecodeMessage(data)
	if err != nil {
		s.sendError(err)
		return err
	}
	if msg.Type != TypeHello {
		err := errors.New("Q030").WithDetail("expected hello, got " + msg.Type)
		s.sendError(err)
		return err
	}

	host, err := NewHost(msg.URL, s.send)
	if err != nil {
		s.sendError(err)
		return err
	}
	s.host = host

	bridgeOpts := []navbridge.Option{navbridge.WithLogger(s.logger)}
	if o, ok := s.config.Recorder.(navbridge.Observer); ok {
		bridgeOpts = append(bridgeOpts, navbridge.WithObserver(o))
	}

	opts := make([]urlsync.Option, 0, len(s.config.Options)+3)
	opts = append(opts, s.config.Options...)
	opts = append(opts, urlsync.WithLogger(s.logger), urlsync.WithBridge(navbridge.For(host, bridgeOpts...)))
	if o, ok := s.config.Recorder.(urlsync.Observer); ok {
		opts = append(opts, urlsync.WithObserver(o))
	}

	engine, err := urlsync.New(host, s.config.Schema, s.publish, opts...)
	if err != nil {
		s.sendError(err)
		return err
	}
	s.engine = engine

	if _, err := engine.Mount(s.ctx); err != nil {
		s.sendError(err)
		return err
	}

	s.opened = true
	if s.config.Recorder != nil {
		s.config.Recorder.SessionOpened()
	}
	s.logger.Info("session opened", "url", host.Location().Relative())
	return nil
}

// ReadLoop reads frames until the connection closes. It is the only
// goroutine that touches the engine.
func (s *Session) ReadLoop() {
	for {
		s.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.logger.Error("read error", "error", err)
			}
			return
		}

		start := time.Now()
		msg, err := DecodeMessage(data)
		if err != nil {
			s.logger.Warn("invalid message", "error", err)
			s.sendError(err)
			continue
		}

		switch msg.Type {
		case TypePopState:
			s.handlePopState(msg)

		case TypePatch:
			s.handlePatch(msg)

		default:
			s.logger.Warn("unexpected message type", "type", msg.Type)
			s.sendError(errors.New("Q030").WithDetail(msg.Type + " is not accepted after hello"))
		}

		if s.config.Recorder != nil {
			s.config.Recorder.MessageReceived(msg.Type, time.Since(start))
		}
	}
}

func (s *Session) handlePopState(msg *Message) {
	if err := s.host.PopState(msg.URL); err != nil {
		s.sendError(err)
	}
}

func (s *Session) handlePatch(msg *Message) {
	var opts []urlsync.PatchOption
	if msg.Mode != "" {
		mode, err := history.ParseMode(msg.Mode)
		if err != nil {
			s.sendError(err)
			return
		}
		opts = append(opts, urlsync.WithMode(mode))
	}

	changes := snapshot.Normalize(s.config.Schema, msg.Changes)
	if err := s.engine.Patch(s.ctx, changes, opts...); err != nil {
		s.sendError(err)
	}
}

func (s *Session) publish(values snapshot.Values) {
	if values == nil {
		values = snapshot.Values{}
	}
	s.send(&Message{Type: TypeSnapshot, Values: values})
}

func (s *Session) sendError(err error) {
	s.send(errorMessage(err))
}

// send writes one frame. Frames are dropped once the session is closed.
func (s *Session) send(msg *Message) {
	data, err := msg.Encode()
	if err != nil {
		s.logger.Error("message encode error", "type", msg.Type, "error", err)
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed.Load() {
		return
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Error("write error", "type", msg.Type, "error", err)
		return
	}
	if s.config.Recorder != nil {
		s.config.Recorder.MessageSent(msg.Type)
	}
}

// Close sends a close frame and closes the connection. The read loop then
// exits and the engine is unmounted.
func (s *Session) Close() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed.Swap(true) {
		return
	}
	s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	s.conn.Close()
}

// teardown releases everything the handshake acquired.
func (s *Session) teardown() {
	s.Close()
	s.cancel()
	if s.engine != nil {
		s.engine.Unmount()
	}
	if s.opened && s.config.Recorder != nil {
		s.config.Recorder.SessionClosed()
	}
	if s.host != nil {
		navbridge.Forget(s.host)
	}
	s.logger.Info("session closed")
}
