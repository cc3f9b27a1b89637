package gateway

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alumnet/alumnet/internal/presence"
)

// session is one websocket connection. It implements presence.Sink: Deliver
// never blocks, and a full send buffer drops the frame.
type session struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	logger *slog.Logger

	writeTimeout time.Duration
	pingInterval time.Duration

	closeOnce   sync.Once
	closeMu     sync.Mutex
	closeCode   int
	closeReason string
}

var _ presence.Sink = (*session)(nil)

func newSession(id string, conn *websocket.Conn, opts Options, log *slog.Logger) *session {
	return &session{
		id:           id,
		conn:         conn,
		send:         make(chan []byte, opts.SendBuffer),
		done:         make(chan struct{}),
		logger:       log.With(slog.String("conn_id", id)),
		writeTimeout: opts.WriteTimeout,
		pingInterval: opts.PingInterval,
		closeCode:    websocket.CloseNormalClosure,
		closeReason:  "server closing",
	}
}

// Deliver queues a routed event frame.
func (s *session) Deliver(env presence.Envelope) bool {
	data, err := json.Marshal(Frame{Type: env.Type, Payload: env.Payload})
	if err != nil {
		s.logger.Error("encode event frame failed", slog.String("type", env.Type), slog.Any("error", err))
		return false
	}
	return s.enqueue(data)
}

// Close stops the writer; it sends a close frame and closes the socket.
func (s *session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *session) closeWith(code int, reason string) {
	s.closeMu.Lock()
	s.closeCode = code
	s.closeReason = reason
	s.closeMu.Unlock()
	s.Close()
}

func (s *session) enqueue(data []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

func (s *session) reply(frameType, requestID string, payload any) {
	data, err := encodeFrame(frameType, requestID, payload)
	if err != nil {
		s.logger.Error("encode frame failed", slog.String("type", frameType), slog.Any("error", err))
		return
	}
	if !s.enqueue(data) {
		s.logger.Warn("reply dropped: send buffer full", slog.String("type", frameType))
	}
}

func (s *session) replyError(requestID, code, message string) {
	s.reply(FrameError, requestID, ErrorPayload{Code: code, Message: message})
}

// writePump owns every write on the socket.
func (s *session) writePump() {
	ticker := time.NewTicker(s.pingInterval)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case data := <-s.send:
			if err := s.write(websocket.TextMessage, data); err != nil {
				s.logger.Debug("write failed", slog.Any("error", err))
				s.Close()
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(s.writeTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.logger.Debug("ping failed", slog.Any("error", err))
				s.Close()
				return
			}
		case <-s.done:
			s.flush()
			s.closeMu.Lock()
			msg := websocket.FormatCloseMessage(s.closeCode, s.closeReason)
			s.closeMu.Unlock()
			_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.writeTimeout))
			return
		}
	}
}

// flush writes frames queued before the session was closed.
func (s *session) flush() {
	for {
		select {
		case data := <-s.send:
			if err := s.write(websocket.TextMessage, data); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (s *session) write(messageType int, data []byte) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return err
	}
	return s.conn.WriteMessage(messageType, data)
}
