/*
Package chat contains the core logic for the realtime chat: authenticated WebSocket sessions
joined to one shared room that broadcasts every message to every participant.

This file defines the Room, the participant set plus the fan-out to each participant's queue.
*/
package chat

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"dash/internal/pkg/logx"
	"dash/internal/pkg/metrics"
)

// SubscriberBuffer is the number of messages a participant may lag behind before
// further messages are dropped for it.
const SubscriberBuffer = 100

// sentinel is published to end every outbound loop. It is never written to a socket.
const sentinel = ""

// Room is the shared broadcast room.
// A display name is present iff exactly one joined session is attached for that user.
type Room struct {
	// mu protects members and orders every publish.
	mu sync.Mutex

	// members maps a display name to its current session.
	members map[string]*Session

	logger zerolog.Logger
}

// NewRoom returns an empty room.
func NewRoom() *Room {
	return &Room{
		members: make(map[string]*Session),
		logger:  logx.Component("room"),
	}
}

// join attaches s under its name and announces it. An existing session for the same
// name is detached and returned; it receives nothing further and the caller kicks it.
func (r *Room) join(s *Session) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	replaced := r.members[s.name]
	if replaced != nil {
		r.logger.Warn().
			Str("username", s.name).
			Msg("User already connected. Closing old session for replacement.")
	}

	r.members[s.name] = s
	metrics.Default().ChatParticipants.Set(float64(len(r.members)))

	r.logger.Info().
		Str("username", s.name).
		Int("total_users", len(r.members)).
		Msg("User joined room.")

	r.publishLocked(s.name + " joined")

	return replaced
}

// leave detaches s and announces its departure. A session that was already replaced
// leaves silently. It reports whether s was still the current member.
func (r *Room) leave(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.members[s.name]; !ok || current != s {
		r.logger.Debug().
			Str("username", s.name).
			Msg("Ignoring leave for replaced session.")
		return false
	}

	// Unsubscribe first so the leaving session does not queue its own announcement.
	delete(r.members, s.name)
	metrics.Default().ChatParticipants.Set(float64(len(r.members)))

	r.publishLocked(s.name + " left")

	r.logger.Info().
		Str("username", s.name).
		Int("total_users", len(r.members)).
		Msg("User left room.")

	return true
}

// Publish delivers msg to every participant.
func (r *Room) Publish(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.publishLocked(msg)
}

// publishLocked enqueues msg on every participant queue without blocking.
// A full queue drops msg for that participant only.
func (r *Room) publishLocked(msg string) {
	if msg != sentinel {
		metrics.Default().ChatPublished.Inc()
	}

	for name, s := range r.members {
		select {
		case s.send <- msg:
		default:
			metrics.Default().ChatDropped.Inc()
			r.logger.Warn().
				Str("username", name).
				Int("queue_len", len(s.send)).
				Msg("Participant queue full, dropping message.")
		}
	}
}

// Participants returns the sorted display names currently joined.
func (r *Room) Participants() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.members))
	for name := range r.members {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Count returns the number of joined participants.
func (r *Room) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.members)
}
