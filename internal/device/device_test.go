package device

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsDeviceCommand(t *testing.T) {
	assert.True(t, IsDeviceCommand("Create a folder called notes"))
	assert.True(t, IsDeviceCommand("turn the Volume up"))
	assert.True(t, IsDeviceCommand("shutdown the laptop"))
	assert.False(t, IsDeviceCommand("what is the weather"))
	assert.False(t, IsDeviceCommand("play believer"))
}

func fakeController(calls *[][]string) *Controller {
	return &Controller{run: func(_ context.Context, name string, args ...string) error {
		*calls = append(*calls, append([]string{name}, args...))
		return nil
	}}
}

func TestVolumeCommands(t *testing.T) {
	var calls [][]string
	c := fakeController(&calls)

	out := c.Perform(context.Background(), "turn the volume up")
	assert.Equal(t, "Volume adjusted.", out)
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"pactl", "set-sink-volume", "@DEFAULT_SINK@", "+5%"}, calls[0])

	calls = nil
	c.Perform(context.Background(), "mute the volume")
	require.Len(t, calls, 1)
	assert.Equal(t, "1", calls[0][len(calls[0])-1])

	calls = nil
	c.Perform(context.Background(), "unmute the volume")
	assert.Equal(t, "0", calls[0][len(calls[0])-1])
}

func TestPowerCommands(t *testing.T) {
	var calls [][]string
	c := fakeController(&calls)

	out := c.Perform(context.Background(), "shutdown the machine")
	assert.Equal(t, "Shutting down the machine now.", out)
	assert.Equal(t, []string{"systemctl", "poweroff"}, calls[0])
}

func TestNormalizePath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "x"), NormalizePath("~/x"))
	assert.Equal(t, "/tmp/x", NormalizePath("/tmp/x"))
	assert.Equal(t, filepath.Join(home, "Desktop", "notes"), NormalizePath("notes"))
}

func TestFolderRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "assistant-notes")
	var calls [][]string
	c := fakeController(&calls)

	out := c.Perform(context.Background(), "create a folder at "+dir)
	assert.True(t, strings.HasPrefix(out, "Folder created"))
	_, err := os.Stat(dir)
	require.NoError(t, err)

	out = c.Perform(context.Background(), "delete the folder at "+dir)
	assert.True(t, strings.HasPrefix(out, "Folder deleted"))
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestUnknownCommandIsASentence(t *testing.T) {
	var calls [][]string
	c := fakeController(&calls)

	out := c.Perform(context.Background(), "bluetooth on please")
	assert.NotEmpty(t, out)
	assert.True(t, strings.HasSuffix(out, "."))
}
