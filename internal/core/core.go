// Package core runs the utterance cycle: wake arms the microphone, the
// poll loop picks up the armed flag, and exactly one cycle at a time
// listens, classifies, routes and responds. Wake triggers arriving
// mid-cycle are dropped, not queued.
package core

import (
	"context"
	log "log/slog"
	"strings"
	"sync/atomic"
	"time"

	"aria/internal/device"
	"aria/internal/dispatch"
	"aria/internal/intent"
	"aria/internal/speech"
	"aria/internal/status"
)

const (
	pollInterval = 100 * time.Millisecond

	// Matches the hotword loop's stop phrase so the command also works
	// when spoken into an already armed microphone.
	stopPhrase = "stop listening"
)

// Classifier maps one query to a decision. Failures come back as an
// empty decision, which ends the cycle silently.
type Classifier interface {
	Classify(ctx context.Context, query string) intent.Decision
}

// Conversation answers plain queries from scoped history.
type Conversation interface {
	Reply(ctx context.Context, query string) (string, error)
}

// Realtime answers queries that need live search grounding.
type Realtime interface {
	Answer(ctx context.Context, query string) (string, error)
}

// Automation fans a decision out to the desktop handlers.
type Automation interface {
	Execute(ctx context.Context, dec intent.Decision)
}

// Devices performs direct hardware commands, returning a short spoken
// acknowledgement.
type Devices interface {
	Perform(ctx context.Context, query string) string
}

// Session reports whether a user is logged in.
type Session func(ctx context.Context) bool

type Runtime struct {
	ch         *status.Channel
	input      *speech.Input
	out        *speech.Output
	classifier Classifier
	chat       Conversation
	realtime   Realtime
	auto       Automation
	devices    Devices
	loggedIn   Session
	chime      func()

	executing atomic.Bool
	manual    atomic.Bool
	done      chan struct{}
	closeOnce atomic.Bool
}

func NewRuntime(
	ch *status.Channel,
	input *speech.Input,
	out *speech.Output,
	classifier Classifier,
	chat Conversation,
	realtime Realtime,
	auto Automation,
	devices Devices,
	loggedIn Session,
) *Runtime {
	return &Runtime{
		ch:         ch,
		input:      input,
		out:        out,
		classifier: classifier,
		chat:       chat,
		realtime:   realtime,
		auto:       auto,
		devices:    devices,
		loggedIn:   loggedIn,
		chime:      func() {},
		done:       make(chan struct{}),
	}
}

// WithChime sets the sound played when the microphone arms.
func (r *Runtime) WithChime(fn func()) *Runtime {
	if fn != nil {
		r.chime = fn
	}
	return r
}

// Done is closed when an exit intent terminates the run loop.
func (r *Runtime) Done() <-chan struct{} { return r.done }

// Wake arms the microphone for one cycle. Safe from any goroutine;
// triggers during a running cycle are ignored by the poll loop until
// the cycle finishes and then picked up at most once.
func (r *Runtime) Wake() {
	if r.ch.MicArmed() {
		return
	}
	r.ch.SetMicArmed(true)
	r.chime()
}

// SetMic switches the manual microphone toggle. Unlike Wake, a manual
// arm persists across cycles: the runtime keeps listening until the
// user switches it off.
func (r *Runtime) SetMic(on bool) {
	r.manual.Store(on)
	r.ch.SetMicArmed(on)
	if on {
		r.chime()
	}
}

// Submit injects a typed query as if it had been spoken, arming the
// microphone with the override in place.
func (r *Runtime) Submit(text string) {
	r.input.SetOverride(text)
	r.ch.SetMicArmed(true)
}

// Run polls the armed flag until ctx is cancelled or an exit intent
// fires. Cycles run on the poll goroutine, so two can never overlap.
func (r *Runtime) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-ticker.C:
		}

		if !r.ch.MicArmed() {
			continue
		}
		if !r.executing.CompareAndSwap(false, true) {
			continue
		}
		r.cycle(ctx)
		r.executing.Store(false)
	}
}

// Greet speaks the startup line once the daemon is wired up.
func (r *Runtime) Greet(ctx context.Context) {
	hour := time.Now().Hour()
	var part string
	switch {
	case hour < 12:
		part = "Good morning"
	case hour < 18:
		part = "Good afternoon"
	default:
		part = "Good evening"
	}
	r.say(ctx, part+"! Initializing Aria. How may I help you?")
}

func (r *Runtime) cycle(ctx context.Context) {
	defer func() {
		// Wake-word and one-shot triggers disarm after the cycle; a
		// manual toggle keeps listening until switched off.
		if !r.manual.Load() {
			r.ch.SetMicArmed(false)
		}
		if r.ch.WakeEnabled() {
			r.ch.SetStatus(status.Available)
		}
	}()

	r.ch.SetStatus(status.Listening)
	query, err := r.input.Query(ctx)
	if err != nil || strings.TrimSpace(query) == "" {
		log.Debug("Empty utterance", "err", err)
		return
	}
	r.ch.SetLastText(query)
	log.Info("Heard", "query", query)

	// "Stop listening" into an armed microphone turns wake detection
	// off instead of going to the classifier as a chat query.
	if strings.Contains(strings.ToLower(query), stopPhrase) {
		log.Info("Wake word disabled by voice")
		r.manual.Store(false)
		r.ch.SetWakeEnabled(false)
		r.ch.SetStatus(status.WakeWordDisabled)
		r.say(ctx, "Wake word disabled. Say nothing, I will wait.")
		return
	}

	// Direct hardware commands skip classification entirely.
	if device.IsDeviceCommand(query) {
		ack := r.devices.Perform(ctx, query)
		r.say(ctx, ack)
		return
	}

	r.ch.SetStatus(status.Thinking)
	dec := r.classifier.Classify(ctx, query)
	action := dispatch.Route(dec, r.loggedIn(ctx))
	log.Info("Routed", "kind", action.Kind.String(), "entries", len(dec))

	switch action.Kind {
	case dispatch.Automation:
		r.auto.Execute(ctx, action.Decision)

	case dispatch.ImageGen:
		r.ch.SetImageRequest(status.EncodeImageRequest(action.Prompt, true))
		r.say(ctx, "Generating images, this may take a moment.")

	case dispatch.LoginRequired:
		r.say(ctx, "Please log in first to generate images.")

	case dispatch.Answer:
		r.answer(ctx, action)

	case dispatch.Exit:
		r.say(ctx, "Goodbye, have a nice day.")
		if r.closeOnce.CompareAndSwap(false, true) {
			close(r.done)
		}

	case dispatch.None:
		// Nothing recognized; end the cycle silently.
	}
}

func (r *Runtime) answer(ctx context.Context, action dispatch.Action) {
	var (
		reply string
		err   error
	)
	if action.Realtime {
		r.ch.SetStatus(status.Searching)
		reply, err = r.realtime.Answer(ctx, action.Query)
	} else {
		reply, err = r.chat.Reply(ctx, action.Query)
	}
	if err != nil {
		log.Error("Reply failed", "realtime", action.Realtime, "err", err)
		r.say(ctx, "Sorry, I could not get an answer.")
		return
	}

	r.ch.SetStatus(status.Answering)
	r.ch.SetLastText(reply)
	r.say(ctx, reply)
}

func (r *Runtime) say(ctx context.Context, text string) {
	if text == "" {
		return
	}
	r.out.Speak(ctx, text, speech.NewToken())
}
