// Package audioconv converts between the float32 PCM the capture path
// produces and on-disk wav files, used for debug dumps of recorded
// utterances.
package audioconv

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const sampleRate = 16000

// Float32ToInt16 clamps and scales [-1, 1] samples to signed 16-bit.
func Float32ToInt16(in []float32) []int {
	out := make([]int, len(in))
	for i, f := range in {
		if f > 1 {
			f = 1
		}
		if f < -1 {
			f = -1
		}
		out[i] = int(f * 32767)
	}
	return out
}

// WriteWAV writes mono 16 kHz PCM to path as a 16-bit wav file.
func WriteWAV(path string, pcm []float32) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           Float32ToInt16(pcm),
		SourceBitDepth: 16,
	}

	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav: %w", err)
	}
	return nil
}

// DumpWAV writes a timestamped capture dump into dir.
func DumpWAV(dir string, pcm []float32) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dump dir: %w", err)
	}
	name := fmt.Sprintf("capture_%s.wav", time.Now().Format("20060102T150405"))
	return WriteWAV(filepath.Join(dir, name), pcm)
}
