package auth

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/tidwall/gjson"
)

// CameraCapture shells out to an external helper that grabs one frame
// and prints a JSON face embedding, either as a bare array or under an
// "embedding" key. The helper is configurable so the daemon does not
// link against camera or face libraries directly.
type CameraCapture struct {
	command string
}

func NewCameraCapture(command string) *CameraCapture {
	if command == "" {
		command = "aria-face-capture"
	}
	return &CameraCapture{command: command}
}

func (c *CameraCapture) Capture(ctx context.Context) ([]float32, error) {
	out, err := exec.CommandContext(ctx, "sh", "-c", c.command).Output()
	if err != nil {
		return nil, fmt.Errorf("face capture helper: %w", err)
	}
	return ParseEmbedding(string(out))
}

// ParseEmbedding extracts the embedding array from helper output.
func ParseEmbedding(raw string) ([]float32, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty capture output")
	}

	arr := gjson.Parse(raw)
	if arr.Get("embedding").Exists() {
		arr = arr.Get("embedding")
	}
	if !arr.IsArray() {
		return nil, fmt.Errorf("capture output is not an embedding array")
	}

	var embedding []float32
	for _, v := range arr.Array() {
		embedding = append(embedding, float32(v.Float()))
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("empty embedding")
	}
	return embedding, nil
}
