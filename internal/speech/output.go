// Package speech converts utterances to normalized query strings and
// speaks answers back in bounded, interruptible chunks.
package speech

import (
	"context"
	log "log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// MaxChunkLen bounds each synthesized chunk, preferring a sentence break.
const MaxChunkLen = 300

// Token is a cooperative cancellation flag polled by playback between
// and during chunks.
type Token struct {
	cancelled atomic.Bool
}

func NewToken() *Token { return &Token{} }

func (t *Token) Cancel()         { t.cancelled.Store(true) }
func (t *Token) Cancelled() bool { return t.cancelled.Load() }

// Synthesizer turns one chunk of text into playable mp3 audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Player plays one mp3 buffer, polling cancelled between audio frames. A
// chunk in progress finishes its current frame before stopping.
type Player interface {
	Play(ctx context.Context, mp3 []byte, cancelled func() bool) error
}

// Ducker fades other audio streams down while the assistant speaks.
type Ducker interface {
	Duck(ctx context.Context) error
	Restore(ctx context.Context) error
}

// Output is the chunked speech pipeline. The interrupt recognizer is
// optional and only sampled while isSpeaking is set.
type Output struct {
	synth  Synthesizer
	player Player
	ducker Ducker

	interrupt       Recognizer
	interruptPhrase string

	isSpeaking atomic.Bool
}

func NewOutput(synth Synthesizer, player Player) *Output {
	return &Output{
		synth:           synth,
		player:          player,
		interruptPhrase: "cut it",
	}
}

// WithDucker enables fading other audio streams during playback.
func (o *Output) WithDucker(d Ducker) *Output {
	o.ducker = d
	return o
}

// WithInterrupt enables the best-effort voice interrupt listener.
func (o *Output) WithInterrupt(rec Recognizer, phrase string) *Output {
	o.interrupt = rec
	if phrase != "" {
		o.interruptPhrase = strings.ToLower(phrase)
	}
	return o
}

// Speaking reports whether playback is in progress.
func (o *Output) Speaking() bool { return o.isSpeaking.Load() }

// Speak synthesizes and plays text chunk by chunk. Playback stops before
// the next chunk once tok is cancelled; chunks already played are never
// replayed. Synthesis or playback errors end that chunk only.
func (o *Output) Speak(ctx context.Context, text string, tok *Token) {
	text = SanitizeForSpeech(text)
	if text == "" {
		return
	}
	if tok == nil {
		tok = NewToken()
	}

	o.isSpeaking.Store(true)
	defer o.isSpeaking.Store(false)

	if o.interrupt != nil {
		go o.listenForInterrupt(ctx, tok)
	}

	if o.ducker != nil {
		if err := o.ducker.Duck(ctx); err != nil {
			log.Warn("Failed to duck other streams", "err", err)
		}
		defer func() {
			if err := o.ducker.Restore(context.WithoutCancel(ctx)); err != nil {
				log.Warn("Failed to restore other streams", "err", err)
			}
		}()
	}

	for _, chunk := range SplitChunks(text, MaxChunkLen) {
		if tok.Cancelled() {
			log.Info("Playback interrupted")
			return
		}

		audio, err := o.synth.Synthesize(ctx, chunk)
		if err != nil {
			log.Error("Failed to synthesize chunk", "err", err)
			continue
		}

		if tok.Cancelled() {
			return
		}

		if err := o.player.Play(ctx, audio, tok.Cancelled); err != nil {
			log.Error("Failed to play chunk", "err", err)
		}
	}
}

// listenForInterrupt samples short utterances while audio is playing and
// cancels the token on the configured phrase. Detection is best-effort;
// recognition errors just continue the loop.
func (o *Output) listenForInterrupt(ctx context.Context, tok *Token) {
	for o.isSpeaking.Load() && !tok.Cancelled() {
		heard, err := o.interrupt.Recognize(ctx, 3*time.Second)
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(heard), o.interruptPhrase) {
			log.Info("Interrupt phrase detected")
			tok.Cancel()
			return
		}
	}
}

// SplitChunks cuts text into pieces of at most max characters, splitting
// at the last sentence-ending period before the bound when one exists.
func SplitChunks(text string, max int) []string {
	var chunks []string

	remaining := strings.TrimSpace(text)
	for len(remaining) > max {
		idx := strings.LastIndex(remaining[:max], ".")
		if idx == -1 {
			idx = max - 1
		}
		chunk := strings.TrimSpace(remaining[:idx+1])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		remaining = strings.TrimSpace(remaining[idx+1:])
	}

	if remaining != "" {
		chunks = append(chunks, remaining)
	}
	return chunks
}

// SanitizeForSpeech strips characters the synthesizer tends to read out
// loud and collapses the whitespace runs left behind.
func SanitizeForSpeech(text string) string {
	var b strings.Builder
	pendingSpace := false
	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == ',', r == '!', r == '?', r == '\'':
			if pendingSpace && b.Len() > 0 {
				b.WriteRune(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		case r == ' ', r == '\n', r == '\t':
			pendingSpace = true
		}
	}
	return b.String()
}
