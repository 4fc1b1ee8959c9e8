package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"chat-relay/domain/event"
	"chat-relay/runtime"
	"chat-relay/services"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Session is one live websocket connection. It is the EventSink the
// registry holds for this connection: Consume enqueues into the outbox
// without blocking, so a slow reader here never stalls a fan-out to
// other sessions.
type Session struct {
	conn    *websocket.Conn
	outbox  chan ServerFrame
	userID  string
	service services.IChatService
	log     *slog.Logger

	id runtime.SessionID
}

func NewSession(conn *websocket.Conn, userID string, service services.IChatService,
	bufferSize int, log *slog.Logger) *Session {
	if conn != nil {
		conn.SetReadLimit(maxMessageSize)
	}
	return &Session{
		conn:    conn,
		outbox:  make(chan ServerFrame, bufferSize),
		userID:  userID,
		service: service,
		log:     log,
	}
}

// Consume implements contract.EventSink. A full outbox means the client is
// not keeping up; the event is dropped for this session and the client
// recovers the gap from history on its next fetch.
func (s *Session) Consume(e event.DomainEvent) error {
	select {
	case s.outbox <- toFrame(e):
		return nil
	default:
		return fmt.Errorf("session outbox full for user %s", s.userID)
	}
}

// Run registers the session, starts both pumps, and unregisters on the
// first pump exit. The registry tolerates the duplicate disconnect the
// second pump triggers.
func (s *Session) Run(ctx context.Context) {
	s.id = s.service.Connect(s.userID, s)
	s.log.Info("Session connected", "user", s.userID, "session", string(s.id))

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writePump()
	}()
	s.readPump(ctx)

	s.service.Disconnect(s.id)
	_ = s.conn.Close()
	<-done
	s.log.Info("Session closed", "user", s.userID, "session", string(s.id))
}

func (s *Session) readPump(ctx context.Context) {
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("Unexpected websocket close", "user", s.userID, "error", err)
			}
			return
		}

		var frame ClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.reportError(fmt.Errorf("malformed frame: %w", err))
			continue
		}
		s.handle(ctx, frame)
	}
}

// handle dispatches one inbound frame. Send failures are reported back on
// this session only; they never affect other sessions.
func (s *Session) handle(ctx context.Context, frame ClientFrame) {
	switch frame.Action {
	case "subscribe":
		s.service.Subscribe(s.id, frame.ConversationKey)
	case "unsubscribe":
		s.service.Unsubscribe(s.id, frame.ConversationKey)
	case "send_group":
		if _, err := s.service.SendGroup(ctx, s.userID, frame.GroupID, frame.Content); err != nil {
			s.reportError(err)
		}
	case "send_direct":
		if _, err := s.service.SendDirect(ctx, s.userID, frame.To, frame.Content); err != nil {
			s.reportError(err)
		}
	default:
		s.reportError(fmt.Errorf("unknown action %q", frame.Action))
	}
}

func (s *Session) reportError(err error) {
	select {
	case s.outbox <- ServerFrame{Event: "error", Error: err.Error()}:
	default:
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	// Closing the connection here unblocks the read pump if the write
	// side dies first.
	defer func() { _ = s.conn.Close() }()

	for {
		select {
		case frame, ok := <-s.outbox:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := s.conn.WriteJSON(frame); err != nil {
				s.log.Debug("Write failed, closing session", "user", s.userID, "error", err)
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
