/*
Package chat contains the core logic for the realtime chat: authenticated WebSocket sessions
joined to one shared room that broadcasts every message to every participant.

This file defines the Session, one connection moving through the handshake, the joined
read/write loops and the close.
*/
package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"dash/internal/pkg/auth/jwt"
	"dash/internal/pkg/logx"
	"dash/internal/pkg/metrics"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a message sent by the client.
	maxMessageSize = 8192

	// WsCloseCodeSessionKicked is a custom WebSocket Close Code (4000-4999 range)
	// used to signal the client that the session was replaced by a new connection.
	WsCloseCodeSessionKicked = 4001
)

// State is the lifecycle stage of a Session.
type State int32

const (
	// StateConnecting is an upgraded connection not yet reading its handshake.
	StateConnecting State = iota
	// StateAuthenticating waits for the token frame.
	StateAuthenticating
	// StateJoined is a member of the room running both loops.
	StateJoined
	// StateLeaving has stopped its loops and is being detached.
	StateLeaving
	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateJoined:
		return "joined"
	case StateLeaving:
		return "leaving"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	errHandshakeTimeout = errors.New("handshake timed out")
	errHandshakeFrame   = errors.New("first frame is not a text frame")
	errUnknownSubject   = errors.New("token subject does not resolve to a user")
)

// Session is one WebSocket connection attached to the room.
type Session struct {
	manager *Manager
	conn    *websocket.Conn

	// name is the display name, set once authentication succeeds.
	name string

	// send is the participant queue filled by the room.
	send chan string

	state  atomic.Int32
	kicked atomic.Bool

	// deadlineMu orders pong deadline extensions against the cancellation poke.
	deadlineMu sync.Mutex

	// cancel ends both loops.
	cancel context.CancelFunc

	logger zerolog.Logger
}

func newSession(m *Manager, conn *websocket.Conn) *Session {
	return &Session{
		manager: m,
		conn:    conn,
		send:    make(chan string, SubscriberBuffer),
		logger:  logx.Component("session").With().Str("remote_addr", conn.RemoteAddr().String()).Logger(),
	}
}

// State returns the current lifecycle stage.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(state State) {
	s.state.Store(int32(state))
}

// authenticate reads the first frame, which must be a text frame holding a signed
// request token, and resolves the display name of its subject.
func (s *Session) authenticate(ctx context.Context) (string, string, error) {
	s.setState(StateAuthenticating)

	if err := s.conn.SetReadDeadline(time.Now().Add(s.manager.handshakeTimeout)); err != nil {
		return "", "io", err
	}

	// Cancelling ctx expires the deadline so a pending read returns at once.
	stopWatch := context.AfterFunc(ctx, func() {
		s.conn.SetReadDeadline(time.Now())
	})
	messageType, data, err := s.conn.ReadMessage()
	stopWatch()

	if ctx.Err() != nil {
		return "", "shutdown", ctx.Err()
	}
	if err != nil {
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "", "timeout", errHandshakeTimeout
		}
		return "", "io", err
	}
	if messageType != websocket.TextMessage {
		return "", "frame", errHandshakeFrame
	}

	claims, err := jwt.FromSignedToken[jwt.RequestClaims](s.manager.codec, string(data))
	if err != nil {
		return "", "token", err
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.manager.handshakeTimeout)
	defer cancel()

	identity, err := s.manager.identities.FindByID(lookupCtx, claims.UserID())
	if err != nil {
		return "", "identity", errors.Join(errUnknownSubject, err)
	}

	return identity.Username, "", nil
}

// run races the outbound and inbound loops. The first to finish cancels the other;
// run returns once both have exited.
func (s *Session) run(ctx context.Context) {
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.deadlineMu.Lock()
		defer s.deadlineMu.Unlock()

		if err := ctx.Err(); err != nil {
			return err
		}
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		defer s.cancel()
		s.writeLoop(ctx)
	}()

	go func() {
		defer wg.Done()
		defer s.cancel()
		s.readLoop(ctx)
	}()

	<-ctx.Done()

	// Unblock a reader parked in ReadMessage. Pongs arriving later no longer extend it.
	s.deadlineMu.Lock()
	s.conn.SetReadDeadline(time.Now())
	s.deadlineMu.Unlock()

	wg.Wait()
}

// writeLoop copies queued messages to the socket and sends heartbeats.
func (s *Session) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-s.send:
			if msg == sentinel {
				return
			}
			if !s.write(websocket.TextMessage, []byte(msg)) {
				return
			}

		case <-ticker.C:
			if !s.write(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (s *Session) write(messageType int, data []byte) bool {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := s.conn.WriteMessage(messageType, data); err != nil {
		s.logger.Debug().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

// readLoop publishes each inbound text frame as "<name>: <text>". An empty frame or a
// non-text frame ends the session.
func (s *Session) readLoop(ctx context.Context) {
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Info().Err(err).Msg("Error reading message")
			}
			return
		}

		if messageType != websocket.TextMessage {
			s.logger.Debug().Int("message_type", messageType).Msg("Non-text frame, ending session")
			return
		}
		if len(data) == 0 {
			return
		}

		s.manager.room.Publish(s.name + ": " + string(data))
	}
}

// kick closes a session replaced by a newer connection for the same user.
// The kicked session exits without announcing its departure.
func (s *Session) kick() {
	s.kicked.Store(true)

	s.logger.Warn().
		Str("username", s.name).
		Int("close_code", WsCloseCodeSessionKicked).
		Msg("Sending WS Kick message and closing connection.")

	s.closeWith(WsCloseCodeSessionKicked, "Session replaced by new connection.")

	if s.cancel != nil {
		s.cancel()
	}
}

// closeWith sends a close frame. It is safe to call concurrently with the loops.
func (s *Session) closeWith(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	if err := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		s.logger.Debug().Err(err).Int("close_code", code).Msg("Failed to send close frame")
	}
}

// rejectHandshake closes a connection that failed authentication.
func (s *Session) rejectHandshake(reason string, err error) {
	metrics.Default().ChatHandshakeFail.WithLabelValues(reason).Inc()

	s.logger.Warn().
		Err(err).
		Str("reason", reason).
		Msg("WebSocket authentication failed, closing connection.")

	s.closeWith(websocket.ClosePolicyViolation, "authentication failed")
}
