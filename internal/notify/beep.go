// Package notify plays the short chime heard after the wake phrase and
// before voice-password capture.
package notify

import (
	"fmt"
	log "log/slog"
	"os"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
)

var chimePath = "assets/beep.mp3"

// SetChimePath overrides the default chime asset location.
func SetChimePath(path string) {
	if path != "" {
		chimePath = path
	}
}

// Chime plays the chime and blocks until it finishes. A missing or
// undecodable asset is logged, never fatal.
func Chime() {
	if err := play(chimePath); err != nil {
		log.Warn("Failed to play chime", "err", err)
	}
}

func play(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open chime: %w", err)
	}

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("decode chime: %w", err)
	}
	defer streamer.Close()

	if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}

	done := make(chan bool)
	speaker.Play(beep.Seq(streamer, beep.Callback(func() {
		done <- true
	})))
	<-done

	return nil
}
