package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
)

// BeepPlayer plays mp3 buffers through the default output device.
type BeepPlayer struct{}

func NewBeepPlayer() *BeepPlayer { return &BeepPlayer{} }

type nopReadCloser struct{ io.Reader }

func (nopReadCloser) Close() error { return nil }

// Play blocks until the buffer finishes, the context ends or cancelled
// flips. Cancellation is polled; the frame in flight is not preempted.
func (p *BeepPlayer) Play(ctx context.Context, audio []byte, cancelled func() bool) error {
	streamer, format, err := mp3.Decode(nopReadCloser{bytes.NewReader(audio)})
	if err != nil {
		return fmt.Errorf("decode mp3: %w", err)
	}
	defer streamer.Close()

	if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(streamer, beep.Callback(func() {
		close(done)
	})))

	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			speaker.Clear()
			return ctx.Err()
		case <-tick.C:
			if cancelled != nil && cancelled() {
				speaker.Clear()
				return nil
			}
		}
	}
}
