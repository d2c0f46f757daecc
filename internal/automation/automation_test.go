package automation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aria/internal/intent"
	"aria/pkg/util"
)

type recordingExec struct {
	mu   sync.Mutex
	urls []string
	apps []string
	kill []string

	launchErr error
	perCall   time.Duration
}

func (r *recordingExec) executor() *Executor {
	e := NewExecutor(fakeWriter{}, &fakeSystem{}, "")
	e.openURL = func(_ context.Context, u string) error {
		time.Sleep(r.perCall)
		r.mu.Lock()
		r.urls = append(r.urls, u)
		r.mu.Unlock()
		return nil
	}
	e.launch = func(_ context.Context, app string) error {
		time.Sleep(r.perCall)
		if r.launchErr != nil {
			return r.launchErr
		}
		r.mu.Lock()
		r.apps = append(r.apps, app)
		r.mu.Unlock()
		return nil
	}
	e.closeApp = func(_ context.Context, app string) error {
		r.mu.Lock()
		r.kill = append(r.kill, app)
		r.mu.Unlock()
		return nil
	}
	return e
}

type fakeWriter struct{}

func (fakeWriter) WriteContent(_ context.Context, topic string) (string, error) {
	return "content about " + topic, nil
}

type fakeSystem struct {
	mu    sync.Mutex
	tasks []string
}

func (f *fakeSystem) record(t string) error {
	f.mu.Lock()
	f.tasks = append(f.tasks, t)
	f.mu.Unlock()
	return nil
}

func (f *fakeSystem) Mute(context.Context) error       { return f.record("mute") }
func (f *fakeSystem) Unmute(context.Context) error     { return f.record("unmute") }
func (f *fakeSystem) VolumeUp(context.Context) error   { return f.record("volume up") }
func (f *fakeSystem) VolumeDown(context.Context) error { return f.record("volume down") }

func TestExecuteFanOutCompletesAllBeforeReturn(t *testing.T) {
	rec := &recordingExec{perCall: 20 * time.Millisecond}
	e := rec.executor()

	dec := intent.ParseDecision([]string{"open chrome", "play believer"})
	e.Execute(context.Background(), dec)

	// Both commands finished by the time Execute returned, in any order.
	got := append(append([]string{}, rec.apps...), rec.urls...)
	want := []string{"chrome", "https://www.youtube.com/results?search_query=believer"}
	assert.True(t, util.EqualSlices(want, got,
		func(x, y string) bool { return x == y }, true))
}

func TestExecuteSkipsUnknownEntries(t *testing.T) {
	rec := &recordingExec{}
	e := rec.executor()

	e.Execute(context.Background(), intent.ParseDecision([]string{
		"frobnicate the widget",
		"general what is up",
		"open chrome",
	}))

	assert.Equal(t, []string{"chrome"}, rec.apps)
	assert.Empty(t, rec.urls)
}

func TestOpenAppFallsBackToBrowser(t *testing.T) {
	rec := &recordingExec{launchErr: errors.New("not installed")}
	e := rec.executor()

	require.NoError(t, e.OpenApp(context.Background(), "Spotify Web"))
	assert.Equal(t, []string{"https://www.spotifyweb.com"}, rec.urls)
}

func TestCloseAppNeverTouchesTheBrowser(t *testing.T) {
	rec := &recordingExec{}
	e := rec.executor()

	assert.True(t, e.CloseApp(context.Background(), "Chrome"))
	assert.Empty(t, rec.kill)

	assert.True(t, e.CloseApp(context.Background(), "spotify"))
	assert.Equal(t, []string{"spotify"}, rec.kill)
}

func TestCloseFailureDoesNotFailBatch(t *testing.T) {
	rec := &recordingExec{}
	e := rec.executor()
	e.closeApp = func(context.Context, string) error { return errors.New("no such process") }

	// The batch still runs the open command to completion.
	e.Execute(context.Background(), intent.ParseDecision([]string{"close spotify", "open chrome"}))
	assert.Equal(t, []string{"chrome"}, rec.apps)
}

func TestContentWritesFileAndOpensEditor(t *testing.T) {
	rec := &recordingExec{}
	e := rec.executor()
	e.dataDir = t.TempDir()

	require.NoError(t, e.Content(context.Background(), "Leave Application"))

	path := filepath.Join(e.dataDir, "leaveapplication.txt")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "content about Leave Application", string(data))
	assert.Equal(t, []string{path}, rec.urls)
}

func TestSystemTasks(t *testing.T) {
	sys := &fakeSystem{}
	e := NewExecutor(fakeWriter{}, sys, "")

	for _, task := range []string{"mute", "unmute", "volume up", "volume down"} {
		require.NoError(t, e.System(context.Background(), task))
	}
	assert.Equal(t, []string{"mute", "unmute", "volume up", "volume down"}, sys.tasks)

	assert.Error(t, e.System(context.Background(), "self destruct"))
}
