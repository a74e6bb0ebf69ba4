package chat

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dash/internal/app/user"
	"dash/internal/pkg/auth/jwt"
)

type stubIdentities map[string]string

func (s stubIdentities) FindByID(_ context.Context, publicID string) (user.Identity, error) {
	name, ok := s[publicID]
	if !ok {
		return user.Identity{}, user.ErrNotFound
	}
	return user.Identity{PublicID: publicID, Username: name}, nil
}

type harness struct {
	t       *testing.T
	codec   *jwt.Codec
	manager *Manager
	url     string
}

func newHarness(t *testing.T, identities stubIdentities, handshakeTimeout time.Duration) *harness {
	t.Helper()

	codec, err := jwt.NewCodec(jwt.Settings{
		Secret:   []byte("chat-test-secret-0123456789abcdef"),
		Issuer:   "dash-test",
		Audience: "dash-clients",
		Lifetime: time.Minute,
	})
	require.NoError(t, err)

	manager := NewManager(codec, identities, handshakeTimeout)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		manager.Serve(conn)
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		manager.Shutdown(ctx)
	})

	return &harness{
		t:       t,
		codec:   codec,
		manager: manager,
		url:     "ws" + strings.TrimPrefix(srv.URL, "http"),
	}
}

func (h *harness) dial() *websocket.Conn {
	h.t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(h.url, nil)
	require.NoError(h.t, err)
	h.t.Cleanup(func() { conn.Close() })

	return conn
}

func (h *harness) token(userID string) string {
	h.t.Helper()

	token, err := jwt.IssueRequest(h.codec, userID).ToToken(h.codec)
	require.NoError(h.t, err)
	return token.Value
}

// connect dials, authenticates as userID and waits for the join announcement.
func (h *harness) connect(userID, name string) *websocket.Conn {
	h.t.Helper()

	conn := h.dial()
	send(h.t, conn, h.token(userID))
	assert.Equal(h.t, name+" joined", next(h.t, conn))

	return conn
}

func send(t *testing.T, conn *websocket.Conn, text string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(text)))
}

func next(t *testing.T, conn *websocket.Conn) string {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	messageType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, messageType)

	return string(data)
}

func closeCode(t *testing.T, conn *websocket.Conn) int {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}

		var closeErr *websocket.CloseError
		require.ErrorAs(t, err, &closeErr)
		return closeErr.Code
	}
}

func TestBroadcast(t *testing.T) {
	h := newHarness(t, stubIdentities{"id-alice": "alice", "id-bob": "bob"}, 0)

	alice := h.connect("id-alice", "alice")
	bob := h.connect("id-bob", "bob")
	assert.Equal(t, "bob joined", next(t, alice))

	send(t, alice, "hi")

	assert.Equal(t, "alice: hi", next(t, alice))
	assert.Equal(t, "alice: hi", next(t, bob))

	assert.Equal(t, []string{"alice", "bob"}, h.manager.Participants())
}

func TestBroadcast_PreservesOrder(t *testing.T) {
	h := newHarness(t, stubIdentities{"id-alice": "alice", "id-bob": "bob"}, 0)

	alice := h.connect("id-alice", "alice")
	bob := h.connect("id-bob", "bob")
	assert.Equal(t, "bob joined", next(t, alice))

	for i := range 10 {
		send(t, alice, fmt.Sprintf("m%d", i))
	}

	for i := range 10 {
		want := fmt.Sprintf("alice: m%d", i)
		assert.Equal(t, want, next(t, alice))
		assert.Equal(t, want, next(t, bob))
	}
}

func TestJoinLeaveInvariant(t *testing.T) {
	const n = 20

	identities := stubIdentities{"id-observer": "observer"}
	for i := range n {
		identities[fmt.Sprintf("id-%d", i)] = fmt.Sprintf("user%d", i)
	}
	h := newHarness(t, identities, 0)

	observer := h.connect("id-observer", "observer")

	tokens := make([]string, n)
	for i := range n {
		tokens[i] = h.token(fmt.Sprintf("id-%d", i))
	}

	conns := make([]*websocket.Conn, n)
	dialErrs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, _, err := websocket.DefaultDialer.Dial(h.url, nil)
			if err != nil {
				dialErrs[i] = err
				return
			}
			conns[i] = conn
			dialErrs[i] = conn.WriteMessage(websocket.TextMessage, []byte(tokens[i]))
		}()
	}
	wg.Wait()
	for i := range n {
		require.NoError(t, dialErrs[i])
	}

	joined := collect(t, observer, " joined", n)
	assert.Len(t, joined, n)
	assert.Equal(t, n+1, h.manager.Count())

	for _, conn := range conns {
		require.NoError(t, conn.Close())
	}

	left := collect(t, observer, " left", n)
	assert.Equal(t, joined, left)

	assert.Eventually(t, func() bool { return h.manager.Count() == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"observer"}, h.manager.Participants())

	require.NoError(t, observer.Close())
	assert.Eventually(t, func() bool { return h.manager.Count() == 0 }, 3*time.Second, 10*time.Millisecond)
	assert.Empty(t, h.manager.Participants())
}

// collect reads n announcements ending in suffix and counts them per name.
// Any other message fails the test.
func collect(t *testing.T, conn *websocket.Conn, suffix string, n int) map[string]int {
	t.Helper()

	names := make(map[string]int, n)
	for range n {
		msg := next(t, conn)
		name, ok := strings.CutSuffix(msg, suffix)
		require.True(t, ok, "unexpected message %q", msg)
		names[name]++
	}
	for name, count := range names {
		assert.Equal(t, 1, count, "announcements for %s", name)
	}

	return names
}

func TestLeaveIsAnnounced(t *testing.T) {
	h := newHarness(t, stubIdentities{"id-alice": "alice", "id-bob": "bob"}, 0)

	alice := h.connect("id-alice", "alice")
	bob := h.connect("id-bob", "bob")
	assert.Equal(t, "bob joined", next(t, alice))

	require.NoError(t, bob.Close())

	assert.Equal(t, "bob left", next(t, alice))
	assert.Equal(t, []string{"alice"}, h.manager.Participants())
}

func TestEmptyFrameEndsSession(t *testing.T) {
	h := newHarness(t, stubIdentities{"id-alice": "alice", "id-bob": "bob"}, 0)

	alice := h.connect("id-alice", "alice")
	bob := h.connect("id-bob", "bob")
	assert.Equal(t, "bob joined", next(t, alice))

	send(t, bob, "")

	assert.Equal(t, "bob left", next(t, alice))
	assert.Equal(t, websocket.CloseNormalClosure, closeCode(t, bob))
}

func TestHandshakeRejected(t *testing.T) {
	tests := []struct {
		name  string
		frame func(h *harness, conn *websocket.Conn)
	}{
		{
			name: "garbage token",
			frame: func(h *harness, conn *websocket.Conn) {
				send(h.t, conn, "not-a-token")
			},
		},
		{
			name: "unknown subject",
			frame: func(h *harness, conn *websocket.Conn) {
				send(h.t, conn, h.token("id-ghost"))
			},
		},
		{
			name: "binary frame",
			frame: func(h *harness, conn *websocket.Conn) {
				require.NoError(h.t, conn.WriteMessage(websocket.BinaryMessage, []byte(h.token("id-alice"))))
			},
		},
		{
			name:  "silence",
			frame: func(*harness, *websocket.Conn) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, stubIdentities{"id-alice": "alice"}, 200*time.Millisecond)

			conn := h.dial()
			tt.frame(h, conn)

			assert.Equal(t, websocket.ClosePolicyViolation, closeCode(t, conn))
			assert.Zero(t, h.manager.Count())
		})
	}
}

func TestHandshakeAcceptsSessionToken(t *testing.T) {
	h := newHarness(t, stubIdentities{"id-alice": "alice"}, 0)

	// Any validly signed token for this audience is accepted as request claims.
	token, err := (&jwt.SessionClaims{RegisteredClaims: jwt.IssueRequest(h.codec, "id-alice").RegisteredClaims}).ToToken(h.codec)
	require.NoError(t, err)

	conn := h.dial()
	send(t, conn, token.Value)
	assert.Equal(t, "alice joined", next(t, conn))
}

func TestDuplicateUserReplacesSession(t *testing.T) {
	h := newHarness(t, stubIdentities{"id-alice": "alice"}, 0)

	first := h.connect("id-alice", "alice")
	second := h.connect("id-alice", "alice")

	assert.Equal(t, WsCloseCodeSessionKicked, closeCode(t, first))
	assert.Equal(t, []string{"alice"}, h.manager.Participants())

	// The replaced session leaves silently.
	send(t, second, "still here")
	assert.Equal(t, "alice: still here", next(t, second))
	assert.Equal(t, 1, h.manager.Count())
}

func TestShutdown(t *testing.T) {
	h := newHarness(t, stubIdentities{"id-alice": "alice"}, 0)

	alice := h.connect("id-alice", "alice")

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, h.manager.Shutdown(ctx))

	assert.Equal(t, websocket.CloseNormalClosure, closeCode(t, alice))
	assert.Zero(t, h.manager.Count())

	late := h.dial()
	assert.Equal(t, websocket.CloseGoingAway, closeCode(t, late))
}

func TestShutdown_CancelsPendingHandshake(t *testing.T) {
	h := newHarness(t, stubIdentities{"id-alice": "alice"}, 5*time.Second)

	pending := h.dial()
	// Let the server reach the handshake read.
	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := h.manager.Shutdown(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, websocket.CloseGoingAway, closeCode(t, pending))
}

func TestShutdown_PongsDoNotDelayLeave(t *testing.T) {
	h := newHarness(t, stubIdentities{"id-alice": "alice"}, 0)

	alice := h.connect("id-alice", "alice")

	stop := make(chan struct{})
	pinger := make(chan struct{})
	go func() {
		defer close(pinger)
		for {
			select {
			case <-stop:
				return
			default:
			}
			if err := alice.WriteControl(websocket.PongMessage, nil, time.Now().Add(time.Second)); err != nil {
				return
			}
			time.Sleep(2 * time.Millisecond)
		}
	}()
	t.Cleanup(func() {
		close(stop)
		<-pinger
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, h.manager.Shutdown(ctx))

	assert.Equal(t, websocket.CloseNormalClosure, closeCode(t, alice))
	assert.Zero(t, h.manager.Count())
}

func TestRoom_JoinReturnsReplacedSession(t *testing.T) {
	room := NewRoom()
	first := &Session{name: "alice", send: make(chan string, SubscriberBuffer)}
	second := &Session{name: "alice", send: make(chan string, SubscriberBuffer)}

	assert.Nil(t, room.join(first))
	assert.Equal(t, "alice joined", <-first.send)

	replaced := room.join(second)

	assert.Same(t, first, replaced)
	assert.False(t, first.kicked.Load(), "join must leave the kick to the caller")
	assert.Empty(t, first.send)
	assert.Equal(t, "alice joined", <-second.send)

	// The replaced session no longer owns the membership.
	assert.False(t, room.leave(first))
	assert.Equal(t, []string{"alice"}, room.Participants())
}

func TestRoom_DropsWhenQueueFull(t *testing.T) {
	room := NewRoom()
	s := &Session{name: "slow", send: make(chan string, SubscriberBuffer)}
	room.members[s.name] = s

	for i := range SubscriberBuffer + 5 {
		room.Publish(fmt.Sprintf("m%d", i))
	}

	assert.Len(t, s.send, SubscriberBuffer)
	assert.Equal(t, "m0", <-s.send)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "authenticating", StateAuthenticating.String())
	assert.Equal(t, "joined", StateJoined.String())
	assert.Equal(t, "leaving", StateLeaving.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", State(42).String())
}
