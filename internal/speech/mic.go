package speech

import (
	"context"
	"fmt"
	log "log/slog"
	"strings"
	"sync"
	"time"

	"aria/internal/audio"
	"aria/pkg/audioconv"
	"aria/pkg/stt"
)

// MicRecognizer records one utterance from the default microphone and
// transcribes it on-device. A mutex keeps listen attempts from ever
// running concurrently with each other.
type MicRecognizer struct {
	mu  sync.Mutex
	rec *audio.Recorder
	tr  *stt.Transcriber

	lang string

	// DebugDir, when set, receives a wav dump of every capture.
	DebugDir string
}

func NewMicRecognizer(rec *audio.Recorder, tr *stt.Transcriber, lang string) *MicRecognizer {
	if lang == "" {
		lang = "auto"
	}
	return &MicRecognizer{rec: rec, tr: tr, lang: lang}
}

func (m *MicRecognizer) Recognize(ctx context.Context, maxDur time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pcm, err := m.rec.RecordUtterance(maxDur)
	if err != nil {
		return "", fmt.Errorf("record: %w", err)
	}
	if len(pcm) == 0 {
		return "", nil
	}

	if m.DebugDir != "" {
		if err := audioconv.DumpWAV(m.DebugDir, pcm); err != nil {
			log.Warn("Failed to dump capture", "err", err)
		}
	}

	tctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	res, err := m.tr.TranscribePCM(tctx, pcm, stt.Options{Language: m.lang})
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}

	return strings.TrimSpace(res.Text), nil
}
