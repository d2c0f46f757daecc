package status

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c := NewChannel(t.TempDir())

	assert.False(t, c.MicArmed())
	assert.True(t, c.WakeEnabled())
	assert.Equal(t, Available, c.Status())
	assert.Equal(t, "", c.LastText())
	assert.Equal(t, NoImageRequest, c.ImageRequest())
}

func TestWriteThenRead(t *testing.T) {
	c := NewChannel(t.TempDir())
	c.Load()

	c.SetMicArmed(true)
	assert.True(t, c.MicArmed())

	c.SetStatus(Thinking)
	assert.Equal(t, Thinking, c.Status())

	c.SetLastText("Aria : hello")
	assert.Equal(t, "Aria : hello", c.LastText())
}

func TestMirrorRoundTrip(t *testing.T) {
	dir := t.TempDir()

	c := NewChannel(dir)
	c.Load()
	c.SetMicArmed(true)
	c.SetWakeEnabled(false)
	c.SetImageRequest(EncodeImageRequest("a red fox", true))

	data, err := os.ReadFile(filepath.Join(dir, "Mic.data"))
	require.NoError(t, err)
	assert.Equal(t, "True", string(data))

	// A fresh channel picks the persisted values back up.
	c2 := NewChannel(dir)
	c2.Load()
	assert.True(t, c2.MicArmed())
	assert.False(t, c2.WakeEnabled())
	assert.Equal(t, "a red fox,True", c2.ImageRequest())
}

func TestLoadCorruptMirrorKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Mic.data"), []byte("garbage"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "WakeTrigger.data"), []byte(""), 0o644))

	c := NewChannel(dir)
	c.Load()

	assert.False(t, c.MicArmed())
	assert.True(t, c.WakeEnabled())
}

func TestMirrorFailureIsSwallowed(t *testing.T) {
	// Point the channel at a path that cannot exist as a directory.
	c := NewChannel(filepath.Join(t.TempDir(), "missing", "deeper"))

	c.SetMicArmed(true)
	assert.True(t, c.MicArmed())
}

func TestSubscribe(t *testing.T) {
	c := NewChannel(t.TempDir())
	events := c.Subscribe()

	c.SetStatus(Listening)

	ev := <-events
	assert.Equal(t, FieldStatus, ev.Field)
	assert.Equal(t, Listening, ev.Value)
}

func TestUnsubscribeClosesAndStopsDelivery(t *testing.T) {
	c := NewChannel(t.TempDir())
	gone := c.Subscribe()
	kept := c.Subscribe()

	c.Unsubscribe(gone)
	_, ok := <-gone
	assert.False(t, ok)

	c.SetStatus(Listening)
	ev := <-kept
	assert.Equal(t, Listening, ev.Value)

	// Unsubscribing the same channel again must not panic or close kept.
	c.Unsubscribe(gone)
	c.SetStatus(Thinking)
	ev = <-kept
	assert.Equal(t, Thinking, ev.Value)
}

func TestSlowSubscriberDropsEvents(t *testing.T) {
	c := NewChannel(t.TempDir())
	c.Subscribe() // never drained

	for i := 0; i < 100; i++ {
		c.SetStatus(Thinking)
	}
	// Writers never block on subscribers; reaching here is the assertion.
	assert.Equal(t, Thinking, c.Status())
}

func TestImageRequestCodec(t *testing.T) {
	prompt, pending := DecodeImageRequest(EncodeImageRequest("generate a cat, big", true))
	assert.Equal(t, "generate a cat, big", prompt)
	assert.True(t, pending)

	_, pending = DecodeImageRequest(NoImageRequest)
	assert.False(t, pending)

	_, pending = DecodeImageRequest("malformed")
	assert.False(t, pending)
}
