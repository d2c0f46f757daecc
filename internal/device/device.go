// Package device handles direct machine commands: files and folders,
// volume, brightness, power and a system summary. Every handler returns
// a natural-language sentence; failures become sentences too, never
// errors that would stop a listener thread.
package device

import (
	"context"
	"fmt"
	log "log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Keywords route a query to this package before intent classification.
var keywords = []string{
	"file", "folder", "shutdown", "restart", "bluetooth", "wifi", "wi-fi",
	"brightness", "volume", "system info", "laptop info", "create", "make",
	"delete", "remove",
}

// IsDeviceCommand reports whether the query should bypass the
// classifier and go straight to Perform.
func IsDeviceCommand(query string) bool {
	q := strings.ToLower(query)
	for _, k := range keywords {
		if strings.Contains(q, k) {
			return true
		}
	}
	return false
}

// Controller executes machine commands. The runner is injectable so
// tests never shell out.
type Controller struct {
	run func(ctx context.Context, name string, args ...string) error
}

func NewController() *Controller {
	return &Controller{
		run: func(ctx context.Context, name string, args ...string) error {
			return exec.CommandContext(ctx, name, args...).Run()
		},
	}
}

// Perform interprets one device query and returns the sentence to
// speak.
func (c *Controller) Perform(ctx context.Context, query string) string {
	raw := strings.TrimRight(strings.TrimSpace(query), ".?!")
	q := strings.ToLower(raw)

	switch {
	case strings.Contains(q, "shutdown"):
		return c.power(ctx, "poweroff", "Shutting down the machine now.")
	case strings.Contains(q, "restart"):
		return c.power(ctx, "reboot", "Restarting the machine now.")
	case strings.Contains(q, "volume"):
		return c.volume(ctx, q)
	case strings.Contains(q, "brightness"):
		return c.brightness(ctx, q)
	case strings.Contains(q, "system info"), strings.Contains(q, "laptop info"):
		return systemInfo()
	case strings.Contains(q, "folder"):
		return c.folder(raw, q)
	case strings.Contains(q, "file"):
		return c.file(raw, q)
	}

	return "I did not recognize that machine command."
}

func (c *Controller) power(ctx context.Context, verb, ok string) string {
	if err := c.run(ctx, "systemctl", verb); err != nil {
		log.Error("Failed power command", "verb", verb, "err", err)
		return "I could not reach the power controls."
	}
	return ok
}

// Mute, Unmute, VolumeUp, VolumeDown back the automation system verb.
func (c *Controller) Mute(ctx context.Context) error {
	return c.run(ctx, "pactl", "set-sink-mute", "@DEFAULT_SINK@", "1")
}

func (c *Controller) Unmute(ctx context.Context) error {
	return c.run(ctx, "pactl", "set-sink-mute", "@DEFAULT_SINK@", "0")
}

func (c *Controller) VolumeUp(ctx context.Context) error {
	return c.run(ctx, "pactl", "set-sink-volume", "@DEFAULT_SINK@", "+5%")
}

func (c *Controller) VolumeDown(ctx context.Context) error {
	return c.run(ctx, "pactl", "set-sink-volume", "@DEFAULT_SINK@", "-5%")
}

func (c *Controller) volume(ctx context.Context, q string) string {
	var err error
	switch {
	case strings.Contains(q, "up") || strings.Contains(q, "increase"):
		err = c.VolumeUp(ctx)
	case strings.Contains(q, "down") || strings.Contains(q, "decrease"):
		err = c.VolumeDown(ctx)
	case strings.Contains(q, "unmute"):
		err = c.Unmute(ctx)
	case strings.Contains(q, "mute"):
		err = c.Mute(ctx)
	default:
		return "Tell me whether to raise, lower or mute the volume."
	}
	if err != nil {
		log.Error("Failed volume command", "err", err)
		return "I could not change the volume."
	}
	return "Volume adjusted."
}

func (c *Controller) brightness(ctx context.Context, q string) string {
	var arg string
	switch {
	case strings.Contains(q, "up") || strings.Contains(q, "increase"):
		arg = "+10%"
	case strings.Contains(q, "down") || strings.Contains(q, "decrease"):
		arg = "10%-"
	default:
		return "Tell me whether to raise or lower the brightness."
	}
	if err := c.run(ctx, "brightnessctl", "set", arg); err != nil {
		log.Error("Failed brightness command", "err", err)
		return "I could not change the brightness."
	}
	return "Brightness adjusted."
}

func (c *Controller) folder(raw, q string) string {
	path := extractPath(raw, "folder")
	if path == "" {
		return "Tell me the folder path."
	}
	if strings.Contains(q, "delete") || strings.Contains(q, "remove") {
		if err := os.RemoveAll(path); err != nil {
			return fmt.Sprintf("I could not delete the folder at %s.", path)
		}
		return fmt.Sprintf("Folder deleted at %s.", path)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Sprintf("I could not create the folder at %s.", path)
	}
	return fmt.Sprintf("Folder created at %s.", path)
}

func (c *Controller) file(raw, q string) string {
	path := extractPath(raw, "file")
	if path == "" {
		return "Tell me the file path."
	}
	if strings.Contains(q, "delete") || strings.Contains(q, "remove") {
		if err := os.Remove(path); err != nil {
			return fmt.Sprintf("I could not delete the file at %s.", path)
		}
		return fmt.Sprintf("File deleted at %s.", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Sprintf("I could not create the file at %s.", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Sprintf("I could not create the file at %s.", path)
	}
	f.Close()
	return fmt.Sprintf("File created at %s.", path)
}

// extractPath takes everything after the noun ("file"/"folder") joiner
// words and normalizes it: "create a folder called notes" -> ~/Desktop/notes.
// Matching is case-insensitive but the extracted path keeps its casing.
func extractPath(raw, noun string) string {
	idx := strings.Index(strings.ToLower(raw), noun)
	if idx < 0 {
		return ""
	}
	rest := strings.TrimSpace(raw[idx+len(noun):])
	for _, joiner := range []string{"called ", "named ", "at "} {
		if strings.HasPrefix(strings.ToLower(rest), joiner) {
			rest = strings.TrimSpace(rest[len(joiner):])
		}
	}
	rest = strings.Trim(rest, `"'`)
	if rest == "" {
		return ""
	}
	return NormalizePath(rest)
}

// NormalizePath expands ~ and defaults bare names onto the desktop.
func NormalizePath(p string) string {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	if strings.HasPrefix(p, "~") {
		return filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(home, "Desktop", p)
}

func systemInfo() string {
	host, _ := os.Hostname()
	return fmt.Sprintf("You are on %s, running %s on %s with %d CPUs.",
		host, runtime.GOOS, runtime.GOARCH, runtime.NumCPU())
}
