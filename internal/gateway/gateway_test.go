package gateway

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aria/internal/status"
)

type fakeRuntime struct {
	mu      sync.Mutex
	wakes   int
	mic     bool
	queries []string
}

func (f *fakeRuntime) Wake() {
	f.mu.Lock()
	f.wakes++
	f.mu.Unlock()
}

func (f *fakeRuntime) SetMic(on bool) {
	f.mu.Lock()
	f.mic = on
	f.mu.Unlock()
}

func (f *fakeRuntime) Submit(text string) {
	f.mu.Lock()
	f.queries = append(f.queries, text)
	f.mu.Unlock()
}

type fakeAuth struct {
	mu     sync.Mutex
	logins []string
}

func (f *fakeAuth) Signup(_ context.Context, username string) error { return nil }
func (f *fakeAuth) Login(_ context.Context, username string) error {
	f.mu.Lock()
	f.logins = append(f.logins, username)
	f.mu.Unlock()
	return nil
}
func (f *fakeAuth) Logout(context.Context) error { return nil }

func dial(t *testing.T, ch *status.Channel, rt Runtime, auth Auth) *ws.Conn {
	t.Helper()
	srv := httptest.NewServer(NewServer(ch, rt, auth).Handler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readPush(t *testing.T, conn *ws.Conn) Push {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var p Push
	require.NoError(t, conn.ReadJSON(&p))
	return p
}

// waitFor reads pushes until pred matches or the deadline hits.
func waitFor(t *testing.T, conn *ws.Conn, pred func(Push) bool) Push {
	t.Helper()
	for i := 0; i < 50; i++ {
		p := readPush(t, conn)
		if pred(p) {
			return p
		}
	}
	t.Fatal("expected push never arrived")
	return Push{}
}

func TestSnapshotOnConnect(t *testing.T) {
	ch := status.NewChannel(t.TempDir())
	ch.SetStatus(status.Available)
	conn := dial(t, ch, &fakeRuntime{}, &fakeAuth{})

	p := readPush(t, conn)
	assert.Equal(t, "status", p.Kind)
	assert.Equal(t, string(status.FieldStatus), p.Field)
	assert.Equal(t, status.Available, p.Value)
}

func TestStatusChangesArePushed(t *testing.T) {
	ch := status.NewChannel(t.TempDir())
	conn := dial(t, ch, &fakeRuntime{}, &fakeAuth{})

	readPush(t, conn) // drain snapshot
	readPush(t, conn)
	readPush(t, conn)

	ch.SetStatus(status.Thinking)

	p := waitFor(t, conn, func(p Push) bool {
		return p.Field == string(status.FieldStatus) && p.Value == status.Thinking
	})
	assert.Equal(t, "status", p.Kind)
}

func TestQueryCommandReachesRuntime(t *testing.T) {
	ch := status.NewChannel(t.TempDir())
	rt := &fakeRuntime{}
	conn := dial(t, ch, rt, &fakeAuth{})

	require.NoError(t, conn.WriteJSON(Command{Cmd: "query", Arg: "what time is it"}))
	waitFor(t, conn, func(p Push) bool { return p.Kind == "ok" && p.Cmd == "query" })

	rt.mu.Lock()
	defer rt.mu.Unlock()
	assert.Equal(t, []string{"what time is it"}, rt.queries)
}

func TestMicAndWakeCommands(t *testing.T) {
	ch := status.NewChannel(t.TempDir())
	ch.SetWakeEnabled(true)
	rt := &fakeRuntime{}
	conn := dial(t, ch, rt, &fakeAuth{})

	require.NoError(t, conn.WriteJSON(Command{Cmd: "mic"}))
	waitFor(t, conn, func(p Push) bool { return p.Kind == "ok" && p.Cmd == "mic" })
	rt.mu.Lock()
	assert.Equal(t, 1, rt.wakes)
	rt.mu.Unlock()

	require.NoError(t, conn.WriteJSON(Command{Cmd: "mic", Arg: "on"}))
	waitFor(t, conn, func(p Push) bool { return p.Kind == "ok" && p.Cmd == "mic" })
	rt.mu.Lock()
	assert.True(t, rt.mic)
	rt.mu.Unlock()

	require.NoError(t, conn.WriteJSON(Command{Cmd: "wake", Arg: "off"}))
	waitFor(t, conn, func(p Push) bool { return p.Kind == "ok" && p.Cmd == "wake" })
	assert.False(t, ch.WakeEnabled())
	assert.Equal(t, status.WakeWordDisabled, ch.Status())
}

func TestLoginCommand(t *testing.T) {
	ch := status.NewChannel(t.TempDir())
	auth := &fakeAuth{}
	conn := dial(t, ch, &fakeRuntime{}, auth)

	require.NoError(t, conn.WriteJSON(Command{Cmd: "login", Arg: "alice"}))
	waitFor(t, conn, func(p Push) bool { return p.Kind == "ok" && p.Cmd == "login" })

	auth.mu.Lock()
	defer auth.mu.Unlock()
	assert.Equal(t, []string{"alice"}, auth.logins)
}

func TestUnknownCommandError(t *testing.T) {
	ch := status.NewChannel(t.TempDir())
	conn := dial(t, ch, &fakeRuntime{}, &fakeAuth{})

	require.NoError(t, conn.WriteJSON(Command{Cmd: "selfdestruct"}))
	p := waitFor(t, conn, func(p Push) bool { return p.Kind == "error" })
	assert.Contains(t, p.Error, "unknown command")
}
