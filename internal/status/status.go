// Package status holds the small shared state every runtime thread reads
// and writes: microphone armed, wake trigger enabled, assistant phase,
// last displayed line and the pending image request. The in-memory copy is
// authoritative; every write is mirrored to a human-readable file so an
// external rendering surface can poll it. There is no atomicity across
// fields, only per-field last-write-wins.
package status

import (
	"fmt"
	log "log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

type Field string

const (
	FieldMic          Field = "microphone"
	FieldWakeTrigger  Field = "wake-trigger"
	FieldStatus       Field = "status"
	FieldLastText     Field = "last-text"
	FieldImageRequest Field = "image-request"
)

// Assistant phases shown on the surface. Exactly one holds at a time;
// only the run loop and handlers transition it.
const (
	Available        = "Available..."
	Listening        = "Listening..."
	Thinking         = "Thinking..."
	Searching        = "Searching..."
	Answering        = "Answering..."
	Translating      = "Translating..."
	WakeWordDisabled = "Wake Word Disabled"
)

// NoImageRequest is the idle value of the image request slot.
const NoImageRequest = "False,False"

var mirrorNames = map[Field]string{
	FieldMic:          "Mic.data",
	FieldWakeTrigger:  "WakeTrigger.data",
	FieldStatus:       "Status.data",
	FieldLastText:     "Responses.data",
	FieldImageRequest: "ImageGeneration.data",
}

// Event is one field change, fanned out to subscribers.
type Event struct {
	Field Field
	Value string
}

type Channel struct {
	dir string

	mu           sync.Mutex
	micArmed     bool
	wakeEnabled  bool
	status       string
	lastText     string
	imageRequest string

	subMu sync.Mutex
	subs  []chan Event
}

func NewChannel(dir string) *Channel {
	return &Channel{
		dir:          dir,
		wakeEnabled:  true,
		status:       Available,
		imageRequest: NoImageRequest,
	}
}

// Load reads the mirror files left by a previous run. Missing or
// unreadable files keep the defaults.
func (c *Channel) Load() {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		log.Warn("Failed to create state dir", "dir", c.dir, "err", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.readMirror(FieldMic); ok {
		c.micArmed = parseBool(v, false)
	}
	if v, ok := c.readMirror(FieldWakeTrigger); ok {
		c.wakeEnabled = parseBool(v, true)
	}
	if v, ok := c.readMirror(FieldImageRequest); ok && v != "" {
		c.imageRequest = v
	}
}

func (c *Channel) MicArmed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.micArmed
}

func (c *Channel) SetMicArmed(armed bool) {
	c.mu.Lock()
	c.micArmed = armed
	c.writeMirror(FieldMic, formatBool(armed))
	c.mu.Unlock()
	c.notify(Event{FieldMic, formatBool(armed)})
}

func (c *Channel) WakeEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wakeEnabled
}

func (c *Channel) SetWakeEnabled(enabled bool) {
	c.mu.Lock()
	c.wakeEnabled = enabled
	c.writeMirror(FieldWakeTrigger, formatBool(enabled))
	c.mu.Unlock()
	c.notify(Event{FieldWakeTrigger, formatBool(enabled)})
}

func (c *Channel) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Channel) SetStatus(s string) {
	c.mu.Lock()
	c.status = s
	c.writeMirror(FieldStatus, s)
	c.mu.Unlock()
	c.notify(Event{FieldStatus, s})
}

func (c *Channel) LastText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastText
}

// SetLastText records the most recent line to display.
func (c *Channel) SetLastText(text string) {
	c.mu.Lock()
	c.lastText = text
	c.writeMirror(FieldLastText, text)
	c.mu.Unlock()
	c.notify(Event{FieldLastText, text})
}

func (c *Channel) ImageRequest() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.imageRequest
}

// SetImageRequest tracks at most one outstanding image job; a newer
// request overwrites a pending one.
func (c *Channel) SetImageRequest(v string) {
	c.mu.Lock()
	c.imageRequest = v
	c.writeMirror(FieldImageRequest, v)
	c.mu.Unlock()
	c.notify(Event{FieldImageRequest, v})
}

// Subscribe returns a channel of field changes. Delivery is best-effort:
// a subscriber that falls behind loses events rather than blocking writers.
func (c *Channel) Subscribe() <-chan Event {
	ch := make(chan Event, 32)
	c.subMu.Lock()
	c.subs = append(c.subs, ch)
	c.subMu.Unlock()
	return ch
}

// Unsubscribe removes a channel handed out by Subscribe and closes it.
// Calling it twice with the same channel is a no-op.
func (c *Channel) Unsubscribe(sub <-chan Event) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for i, ch := range c.subs {
		if ch == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			close(ch)
			return
		}
	}
}

func (c *Channel) notify(ev Event) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// writeMirror swallows failures; the next write of the same field retries.
// Callers must hold c.mu.
func (c *Channel) writeMirror(f Field, value string) {
	path := filepath.Join(c.dir, mirrorNames[f])
	if err := os.WriteFile(path, []byte(value), 0o644); err != nil {
		log.Warn("Failed to mirror field", "field", f, "err", err)
	}
}

func (c *Channel) readMirror(f Field) (string, bool) {
	data, err := os.ReadFile(filepath.Join(c.dir, mirrorNames[f]))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

func parseBool(s string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return true
	case "false":
		return false
	}
	return def
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// EncodeImageRequest builds the "<prompt>,<flag>" slot value.
func EncodeImageRequest(prompt string, pending bool) string {
	return fmt.Sprintf("%s,%s", prompt, formatBool(pending))
}

// DecodeImageRequest splits the slot value. A malformed value decodes as
// no pending request.
func DecodeImageRequest(v string) (prompt string, pending bool) {
	idx := strings.LastIndex(v, ",")
	if idx < 0 {
		return "", false
	}
	return strings.TrimSpace(v[:idx]), parseBool(v[idx+1:], false)
}
