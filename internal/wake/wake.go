// Package wake runs the always-on hotword loop. It listens in short
// windows, arms the microphone when the wake phrase is heard, and can
// disable itself on a spoken "stop listening".
package wake

import (
	"context"
	log "log/slog"
	"strings"
	"time"

	"aria/internal/speech"
	"aria/internal/status"
)

const (
	defaultPhrase     = "aria"
	defaultStopPhrase = "stop listening"

	windowDur    = 3 * time.Second
	idleInterval = 500 * time.Millisecond
)

// Listener polls the microphone for the wake phrase while wake
// detection is enabled on the status channel.
type Listener struct {
	rec        speech.Recognizer
	ch         *status.Channel
	phrase     string
	stopPhrase string
	onWake     func()
	onDetect   func()
	onDisable  func()
}

func NewListener(rec speech.Recognizer, ch *status.Channel, onWake func()) *Listener {
	return &Listener{
		rec:        rec,
		ch:         ch,
		phrase:     defaultPhrase,
		stopPhrase: defaultStopPhrase,
		onWake:     onWake,
	}
}

// WithPhrase overrides the wake phrase. Matching is case-insensitive
// substring, so "hey aria" still wakes.
func (l *Listener) WithPhrase(phrase string) *Listener {
	if phrase != "" {
		l.phrase = strings.ToLower(phrase)
	}
	return l
}

// OnDetect registers a hook fired when the wake phrase is heard,
// before the microphone arms. Typically a spoken readiness line.
func (l *Listener) OnDetect(fn func()) *Listener {
	l.onDetect = fn
	return l
}

// OnDisable registers a hook fired after a spoken stop phrase turns
// wake detection off.
func (l *Listener) OnDisable(fn func()) *Listener {
	l.onDisable = fn
	return l
}

// Run blocks until ctx is cancelled. While wake detection is disabled
// or the mic is already armed it idles instead of holding the
// microphone open.
func (l *Listener) Run(ctx context.Context) {
	log.Info("Wake listener started", "phrase", l.phrase)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !l.ch.WakeEnabled() || l.ch.MicArmed() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(idleInterval):
			}
			continue
		}

		heard, err := l.rec.Recognize(ctx, windowDur)
		if err != nil {
			continue
		}
		l.handle(heard)
	}
}

func (l *Listener) handle(heard string) {
	lower := strings.ToLower(heard)

	if strings.Contains(lower, l.stopPhrase) {
		log.Info("Wake word disabled by voice")
		l.ch.SetWakeEnabled(false)
		l.ch.SetStatus(status.WakeWordDisabled)
		if l.onDisable != nil {
			l.onDisable()
		}
		return
	}

	if strings.Contains(lower, l.phrase) {
		log.Info("Wake phrase detected", "heard", heard)
		if l.onDetect != nil {
			l.onDetect()
		}
		if l.onWake != nil {
			l.onWake()
		}
	}
}
