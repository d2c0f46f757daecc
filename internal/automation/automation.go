// Package automation runs the task verbs of a decision: opening and
// closing applications, playback and searches in the browser, content
// writing and system audio. Commands in one batch are independent and
// run concurrently; each handler owns its own failure.
package automation

import (
	"context"
	"fmt"
	log "log/slog"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"aria/internal/intent"
)

// ContentWriter produces long-form text for the content verb.
type ContentWriter interface {
	WriteContent(ctx context.Context, topic string) (string, error)
}

// SystemControl is the audio sub-surface of the device controller.
type SystemControl interface {
	Mute(ctx context.Context) error
	Unmute(ctx context.Context) error
	VolumeUp(ctx context.Context) error
	VolumeDown(ctx context.Context) error
}

// Executor fans a decision's automation commands out to per-verb
// handlers and fans back in before returning. The browser and launcher
// funcs are injectable so tests never start processes.
type Executor struct {
	content ContentWriter
	system  SystemControl
	dataDir string
	editor  string

	openURL  func(ctx context.Context, u string) error
	launch   func(ctx context.Context, app string) error
	closeApp func(ctx context.Context, app string) error
}

func NewExecutor(content ContentWriter, system SystemControl, dataDir string) *Executor {
	return &Executor{
		content:  content,
		system:   system,
		dataDir:  dataDir,
		editor:   "xdg-open",
		openURL:  openBrowser,
		launch:   launchApp,
		closeApp: killApp,
	}
}

// Execute runs every recognized automation command concurrently and
// waits for all of them. Unrecognized entries are logged and skipped;
// a failing command never fails the batch.
func (e *Executor) Execute(ctx context.Context, dec intent.Decision) {
	g, ctx := errgroup.WithContext(ctx)

	for _, cmd := range dec {
		if !cmd.Category.IsAutomation() {
			if cmd.Category == intent.Unknown {
				log.Warn("No handler for command", "raw", cmd.Raw)
			}
			continue
		}

		g.Go(func() error {
			if err := e.dispatch(ctx, cmd); err != nil {
				log.Error("Failed automation command", "verb", cmd.Category.String(), "err", err)
			}
			return nil
		})
	}

	g.Wait()
}

func (e *Executor) dispatch(ctx context.Context, cmd intent.Command) error {
	switch cmd.Category {
	case intent.Open:
		return e.OpenApp(ctx, cmd.Payload)
	case intent.Close:
		if !e.CloseApp(ctx, cmd.Payload) {
			log.Warn("Could not close application", "app", cmd.Payload)
		}
		return nil
	case intent.Play:
		return e.PlayYouTube(ctx, cmd.Payload)
	case intent.Content:
		return e.Content(ctx, cmd.Payload)
	case intent.GoogleSearch:
		return e.GoogleSearch(ctx, cmd.Payload)
	case intent.YouTubeSearch:
		return e.YouTubeSearch(ctx, cmd.Payload)
	case intent.System:
		return e.System(ctx, cmd.Payload)
	}
	return fmt.Errorf("no handler for category %s", cmd.Category)
}

// OpenApp starts the named application, degrading to opening the
// matching web page when no such binary exists.
func (e *Executor) OpenApp(ctx context.Context, app string) error {
	if err := e.launch(ctx, app); err != nil {
		log.Info("Application not found, opening in browser", "app", app)
		name := strings.ReplaceAll(strings.ToLower(app), " ", "")
		return e.openURL(ctx, fmt.Sprintf("https://www.%s.com", name))
	}
	return nil
}

// CloseApp reports success; failure stays inside the batch. The browser
// hosting the surface is never closed through this path.
func (e *Executor) CloseApp(ctx context.Context, app string) bool {
	if strings.Contains(strings.ToLower(app), "chrome") {
		return true
	}
	return e.closeApp(ctx, app) == nil
}

func (e *Executor) PlayYouTube(ctx context.Context, query string) error {
	return e.openURL(ctx, "https://www.youtube.com/results?search_query="+url.QueryEscape(query))
}

func (e *Executor) GoogleSearch(ctx context.Context, topic string) error {
	return e.openURL(ctx, "https://www.google.com/search?q="+url.QueryEscape(topic))
}

func (e *Executor) YouTubeSearch(ctx context.Context, topic string) error {
	return e.openURL(ctx, "https://www.youtube.com/results?search_query="+url.QueryEscape(topic))
}

// Content writes generated text to a file in the data dir and opens it
// in the editor.
func (e *Executor) Content(ctx context.Context, topic string) error {
	text, err := e.content.WriteContent(ctx, topic)
	if err != nil {
		return fmt.Errorf("write content: %w", err)
	}

	if err := os.MkdirAll(e.dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	name := strings.ReplaceAll(strings.ToLower(topic), " ", "") + ".txt"
	path := filepath.Join(e.dataDir, name)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("save content: %w", err)
	}

	return e.openURL(ctx, path)
}

func (e *Executor) System(ctx context.Context, task string) error {
	switch strings.ToLower(strings.TrimSpace(task)) {
	case "mute":
		return e.system.Mute(ctx)
	case "unmute":
		return e.system.Unmute(ctx)
	case "volume up":
		return e.system.VolumeUp(ctx)
	case "volume down":
		return e.system.VolumeDown(ctx)
	}
	return fmt.Errorf("unknown system task %q", task)
}

func openBrowser(ctx context.Context, u string) error {
	return exec.CommandContext(ctx, "xdg-open", u).Start()
}

func launchApp(ctx context.Context, app string) error {
	bin := strings.ToLower(strings.ReplaceAll(app, " ", "-"))
	if _, err := exec.LookPath(bin); err != nil {
		return err
	}
	return exec.CommandContext(ctx, bin).Start()
}

func killApp(ctx context.Context, app string) error {
	bin := strings.ToLower(strings.ReplaceAll(app, " ", "-"))
	return exec.CommandContext(ctx, "pkill", "-f", bin).Run()
}
