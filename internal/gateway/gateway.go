// Package gateway exposes the presence registry over websockets. Clients
// connect, authenticate once with {userId, role}, and then only receive;
// domain events originate server-side.
package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/alumnet/alumnet/internal/config"
	"github.com/alumnet/alumnet/internal/identity"
	"github.com/alumnet/alumnet/internal/logger"
	"github.com/alumnet/alumnet/internal/presence"
)

// Options tunes connection handling.
type Options struct {
	Path               string
	SendBuffer         int
	WriteTimeout       time.Duration
	PingInterval       time.Duration
	AuthTimeout        time.Duration
	MaxFramesPerSecond int
	MaxFrameBytes      int64
}

// OptionsFromConfig maps the [server] and [realtime] sections to Options.
func OptionsFromConfig(cfg config.Config) Options {
	rc := cfg.Realtime
	return Options{
		Path:               cfg.Server.WSPath,
		SendBuffer:         rc.SendBuffer,
		WriteTimeout:       rc.WriteTimeoutDuration(),
		PingInterval:       rc.PingIntervalDuration(),
		AuthTimeout:        rc.AuthTimeoutDuration(),
		MaxFramesPerSecond: rc.MaxFramesPerSecond,
		MaxFrameBytes:      rc.MaxFrameBytes,
	}
}

func (o Options) withDefaults() Options {
	if o.Path == "" {
		o.Path = config.DefaultWSPath
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = config.DefaultSendBuffer
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.AuthTimeout <= 0 {
		o.AuthTimeout = 10 * time.Second
	}
	if o.MaxFramesPerSecond <= 0 {
		o.MaxFramesPerSecond = config.DefaultMaxFramesPerSecond
	}
	if o.MaxFrameBytes <= 0 {
		o.MaxFrameBytes = config.DefaultMaxFrameBytes
	}
	return o
}

// Gateway upgrades HTTP requests and runs one session per connection.
type Gateway struct {
	registry *presence.Registry
	upgrader websocket.Upgrader
	opts     Options
	logger   *slog.Logger

	mu       sync.Mutex
	draining bool
	sessions sync.WaitGroup
}

// New creates a gateway serving registry.
func New(log *slog.Logger, registry *presence.Registry, opts Options) *Gateway {
	return &Gateway{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Origin policy is enforced by the upstream gateway.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		opts:   opts.withDefaults(),
		logger: logger.OrDefault(log).With(slog.String("component", "gateway")),
	}
}

// Register mounts the websocket endpoint on the Echo instance.
func (g *Gateway) Register(e *echo.Echo) {
	e.GET(g.opts.Path, echo.WrapHandler(g))
}

// Path returns the endpoint path.
func (g *Gateway) Path() string {
	return g.opts.Path
}

// Wait blocks until every session goroutine has returned. Connections that
// arrive after Wait is called are refused.
func (g *Gateway) Wait() {
	g.mu.Lock()
	g.draining = true
	g.mu.Unlock()
	g.sessions.Wait()
}

// track counts a new session unless the gateway is draining.
func (g *Gateway) track() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.draining {
		return false
	}
	g.sessions.Add(1)
	return true
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !g.track() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	defer g.sessions.Done()

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", slog.String("remote_addr", r.RemoteAddr), slog.Any("error", err))
		return
	}

	s := newSession(uuid.NewString(), conn, g.opts, g.logger)
	if _, err := g.registry.Register(s.id, s); err != nil {
		g.logger.Warn("register connection failed", slog.String("conn_id", s.id), slog.Any("error", err))
		msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server unavailable")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(g.opts.WriteTimeout))
		_ = conn.Close()
		return
	}
	s.logger.Debug("connection opened", slog.String("remote_addr", r.RemoteAddr))

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writePump()
	}()

	authTimer := time.AfterFunc(g.opts.AuthTimeout, func() {
		if _, ok := g.registry.Lookup(s.id); ok {
			return
		}
		s.logger.Info("closing unauthenticated connection")
		s.replyError("", CodeUnauthenticated, "authentication timeout")
		s.closeWith(websocket.ClosePolicyViolation, "authentication timeout")
	})

	g.readLoop(s)

	authTimer.Stop()
	g.registry.Unregister(s.id)
	s.Close()
	<-writerDone
	s.logger.Debug("connection closed")
}

func (g *Gateway) readLoop(s *session) {
	conn := s.conn
	conn.SetReadLimit(g.opts.MaxFrameBytes)
	pongWait := 2 * g.opts.PingInterval
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	limiter := rate.NewLimiter(rate.Limit(g.opts.MaxFramesPerSecond), g.opts.MaxFramesPerSecond)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				s.logger.Debug("read failed", slog.Any("error", err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		if !limiter.Allow() {
			s.replyError("", CodeRateLimited, "too many frames")
			continue
		}
		g.handleFrame(s, data)
	}
}

func (g *Gateway) handleFrame(s *session, data []byte) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		s.replyError("", CodeInvalidArgument, "malformed frame")
		return
	}
	switch frame.Type {
	case FrameAuthenticate:
		g.authenticate(s, frame)
	case FramePing:
		s.reply(FramePong, frame.RequestID, nil)
	default:
		s.logger.Info("client frame rejected", slog.String("type", frame.Type))
		s.replyError(frame.RequestID, CodeForbidden, "clients may not publish frames of type "+frame.Type)
	}
}

// authenticate binds the connection. A malformed identity leaves it unbound.
func (g *Gateway) authenticate(s *session, frame Frame) {
	var p AuthenticatePayload
	if len(frame.Payload) == 0 || json.Unmarshal(frame.Payload, &p) != nil {
		s.replyError(frame.RequestID, CodeInvalidArgument, "authenticate payload must be {userId, role}")
		return
	}
	id := identity.Identity{
		UserID: strings.TrimSpace(p.UserID),
		Role:   identity.Role(strings.ToUpper(strings.TrimSpace(p.Role))),
	}
	conn, err := g.registry.Bind(s.id, id)
	switch {
	case err == nil:
	case errors.Is(err, presence.ErrInvalidIdentity):
		s.replyError(frame.RequestID, CodeInvalidArgument, err.Error())
		return
	case errors.Is(err, presence.ErrAlreadyBound):
		s.replyError(frame.RequestID, CodeAlreadyAuthenticated, "connection is already authenticated")
		return
	default:
		s.logger.Error("bind failed", slog.Any("error", err))
		s.replyError(frame.RequestID, CodeInternal, "authentication failed")
		return
	}

	channels := g.registry.Router().ChannelsOf(s.id)
	names := make([]string, 0, len(channels))
	for _, ch := range channels {
		names = append(names, ch.String())
	}
	s.reply(FrameAuthenticated, frame.RequestID, AuthenticatedPayload{
		ConnectionID: conn.ID,
		UserID:       conn.Identity.UserID,
		Role:         conn.Identity.Role.String(),
		Channels:     names,
	})
}
