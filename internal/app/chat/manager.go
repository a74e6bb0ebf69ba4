/*
Package chat contains the core logic for the realtime chat: authenticated WebSocket sessions
joined to one shared room that broadcasts every message to every participant.

This file defines the Manager, which authenticates connections, attaches them to the room
and drains them on shutdown.
*/
package chat

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"dash/internal/app/user"
	"dash/internal/pkg/auth/jwt"
	"dash/internal/pkg/logx"
)

// DefaultHandshakeTimeout bounds the wait for the authentication frame.
const DefaultHandshakeTimeout = 10 * time.Second

// IdentityLookup resolves a token subject to its identity.
type IdentityLookup interface {
	FindByID(ctx context.Context, publicID string) (user.Identity, error)
}

// Manager owns the room and every session attached to it.
type Manager struct {
	room       *Room
	codec      *jwt.Codec
	identities IdentityLookup

	handshakeTimeout time.Duration

	// ctx is the parent of every session; cancelling it ends all loops.
	ctx    context.Context
	cancel context.CancelFunc

	// mu orders closing against new sessions registering in wg.
	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup

	logger zerolog.Logger
}

// NewManager returns a Manager verifying handshakes with codec and resolving display
// names through identities. A non-positive handshakeTimeout means DefaultHandshakeTimeout.
func NewManager(codec *jwt.Codec, identities IdentityLookup, handshakeTimeout time.Duration) *Manager {
	if handshakeTimeout <= 0 {
		handshakeTimeout = DefaultHandshakeTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		room:             NewRoom(),
		codec:            codec,
		identities:       identities,
		handshakeTimeout: handshakeTimeout,
		ctx:              ctx,
		cancel:           cancel,
		logger:           logx.Component("chat_manager"),
	}
}

// Serve runs the full lifecycle of an upgraded connection and returns once it is closed.
func (m *Manager) Serve(conn *websocket.Conn) {
	s := newSession(m, conn)
	defer func() {
		s.setState(StateClosed)
		conn.Close()
	}()

	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		s.closeWith(websocket.CloseGoingAway, "server shutting down")
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()
	defer m.wg.Done()

	name, reason, err := s.authenticate(m.ctx)
	if err != nil {
		if m.ctx.Err() != nil {
			s.closeWith(websocket.CloseGoingAway, "server shutting down")
			return
		}
		s.rejectHandshake(reason, err)
		return
	}

	s.name = name
	s.logger = s.logger.With().Str("username", name).Logger()

	ctx, cancel := context.WithCancel(m.ctx)
	defer cancel()
	s.cancel = cancel

	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		s.closeWith(websocket.CloseGoingAway, "server shutting down")
		return
	}
	s.setState(StateJoined)
	replaced := m.room.join(s)
	m.mu.Unlock()

	// The close frame is written outside both locks; a stalled peer must not block the room.
	if replaced != nil {
		replaced.kick()
	}

	s.run(ctx)

	s.setState(StateLeaving)
	if s.kicked.Load() || !m.room.leave(s) {
		s.logger.Info().Msg("Replaced session closed.")
		return
	}

	s.closeWith(websocket.CloseNormalClosure, "")
}

// Participants returns the sorted display names currently joined.
func (m *Manager) Participants() []string {
	return m.room.Participants()
}

// Count returns the number of joined participants.
func (m *Manager) Count() int {
	return m.room.Count()
}

// Shutdown refuses new connections, publishes the sentinel that ends every outbound
// loop and waits for all sessions to close. If ctx expires first, every session is
// cancelled directly and ctx's error is returned once they have exited.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info().Msg("Shutting down chat sessions...")

	m.mu.Lock()
	m.closing = true
	m.mu.Unlock()

	m.room.Publish(sentinel)

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.cancel()
		m.logger.Info().Msg("Chat shutdown complete.")
		return nil

	case <-ctx.Done():
		m.logger.Warn().Msg("Chat shutdown deadline reached, cancelling sessions.")
		m.cancel()
		<-done
		return ctx.Err()
	}
}
