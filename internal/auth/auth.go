// Package auth gates privileged handlers behind a face-plus-voice
// check. Signup and login are small state machines whose transitions
// are pure functions of the current state and the capture or verify
// outcome, so the flows are testable without camera or microphone
// hardware.
package auth

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"math"
	"strings"
	"time"

	"aria/internal/speech"
	"aria/internal/store"
)

// FaceMatchThreshold is the strict upper bound on embedding distance:
// exactly 0.5 fails.
const FaceMatchThreshold = 0.5

const passwordAttempts = 3

type State int

const (
	Anonymous State = iota
	CapturingFace
	CapturingVoicePassword
	Registered
	VerifyingFace
	VerifyingVoicePassword
	Authenticated
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case CapturingFace:
		return "capturing-face"
	case CapturingVoicePassword:
		return "capturing-voice-password"
	case Registered:
		return "registered"
	case VerifyingFace:
		return "verifying-face"
	case VerifyingVoicePassword:
		return "verifying-voice-password"
	case Authenticated:
		return "authenticated"
	}
	return "unknown"
}

// Outcome is the result of one capture or verification step.
type Outcome int

const (
	StepOK Outcome = iota
	StepFailed
)

// NextSignupState advances the signup machine. Any failure returns to
// Anonymous; Registered is terminal.
func NextSignupState(s State, o Outcome) State {
	if o == StepFailed {
		return Anonymous
	}
	switch s {
	case Anonymous:
		return CapturingFace
	case CapturingFace:
		return CapturingVoicePassword
	case CapturingVoicePassword:
		return Registered
	}
	return s
}

// NextLoginState advances the login machine. Any failure returns to
// Anonymous; Authenticated is terminal.
func NextLoginState(s State, o Outcome) State {
	if o == StepFailed {
		return Anonymous
	}
	switch s {
	case Anonymous:
		return VerifyingFace
	case VerifyingFace:
		return VerifyingVoicePassword
	case VerifyingVoicePassword:
		return Authenticated
	}
	return s
}

// FaceProvider captures one clear face embedding, blocking until the
// camera produces one or the user cancels.
type FaceProvider interface {
	Capture(ctx context.Context) ([]float32, error)
}

// Announcer speaks a short prompt to the user.
type Announcer func(ctx context.Context, text string)

var (
	ErrUserExists      = errors.New("username already registered")
	ErrUnknownUser     = errors.New("username not found")
	ErrSessionActive   = errors.New("another user is already logged in")
	ErrFaceMismatch    = errors.New("face did not match")
	ErrVoiceMismatch   = errors.New("voice password did not match")
	ErrCaptureFailed   = errors.New("capture failed")
	ErrNoPassword      = errors.New("no password captured")
	ErrNoActiveSession = errors.New("no active session")
)

// Manager drives the two flows against the store.
type Manager struct {
	store *store.Store
	faces FaceProvider
	voice speech.Recognizer
	say   Announcer
}

func NewManager(st *store.Store, faces FaceProvider, voice speech.Recognizer, say Announcer) *Manager {
	if say == nil {
		say = func(context.Context, string) {}
	}
	return &Manager{store: st, faces: faces, voice: voice, say: say}
}

// Signup registers a new user: one face embedding, then a voice
// password captured in up to three independently timed attempts.
func (m *Manager) Signup(ctx context.Context, username string) error {
	existing, err := m.store.LookupUser(ctx, username)
	if err != nil {
		return fmt.Errorf("signup lookup: %w", err)
	}
	if existing != nil {
		return ErrUserExists
	}

	state := NextSignupState(Anonymous, StepOK)
	log.Info("Signup started", "user", username, "state", state.String())

	embedding, err := m.faces.Capture(ctx)
	if err != nil || len(embedding) == 0 {
		state = NextSignupState(state, StepFailed)
		log.Warn("Face capture failed", "user", username, "err", err)
		return fmt.Errorf("%w: face", ErrCaptureFailed)
	}
	state = NextSignupState(state, StepOK)

	password := m.capturePassword(ctx, "Say your password after the beep")
	if password == "" {
		state = NextSignupState(state, StepFailed)
		log.Warn("Password capture failed", "user", username, "state", state.String())
		return ErrNoPassword
	}
	state = NextSignupState(state, StepOK)

	err = m.store.RegisterUser(ctx, store.User{
		Username: username,
		Face:     embedding,
		Password: password,
	})
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}

	log.Info("Signup complete", "user", username, "state", state.String())
	return nil
}

// Login verifies face then voice and sets the process-wide session.
func (m *Manager) Login(ctx context.Context, username string) error {
	active, err := m.store.ActiveUser(ctx)
	if err != nil {
		return fmt.Errorf("login session check: %w", err)
	}
	if active != "" {
		return ErrSessionActive
	}

	user, err := m.store.LookupUser(ctx, username)
	if err != nil {
		return fmt.Errorf("login lookup: %w", err)
	}
	if user == nil {
		return ErrUnknownUser
	}

	state := NextLoginState(Anonymous, StepOK)

	embedding, err := m.faces.Capture(ctx)
	if err != nil || len(embedding) == 0 {
		state = NextLoginState(state, StepFailed)
		log.Warn("Face capture failed", "user", username, "state", state.String(), "err", err)
		return fmt.Errorf("%w: face", ErrCaptureFailed)
	}
	if !FaceMatches(user.Face, embedding) {
		state = NextLoginState(state, StepFailed)
		log.Warn("Face mismatch", "user", username, "state", state.String())
		return ErrFaceMismatch
	}
	state = NextLoginState(state, StepOK)

	if !m.verifyPassword(ctx, user.Password) {
		state = NextLoginState(state, StepFailed)
		log.Warn("Voice password mismatch", "user", username, "state", state.String())
		return ErrVoiceMismatch
	}
	state = NextLoginState(state, StepOK)

	if err := m.store.SetActiveUser(ctx, username); err != nil {
		return fmt.Errorf("set session: %w", err)
	}

	log.Info("Login complete", "user", username, "state", state.String())
	return nil
}

// Logout clears the session unconditionally when one exists.
func (m *Manager) Logout(ctx context.Context) error {
	active, err := m.store.ActiveUser(ctx)
	if err != nil {
		return fmt.Errorf("logout session check: %w", err)
	}
	if active == "" {
		return ErrNoActiveSession
	}
	return m.store.ClearActiveUser(ctx)
}

func (m *Manager) capturePassword(ctx context.Context, prompt string) string {
	for attempt := 0; attempt < passwordAttempts; attempt++ {
		m.say(ctx, prompt)
		heard, err := m.voice.Recognize(ctx, 5*time.Second)
		if err == nil && strings.TrimSpace(heard) != "" {
			return strings.TrimSpace(heard)
		}
		m.say(ctx, "Please try again")
	}
	return ""
}

func (m *Manager) verifyPassword(ctx context.Context, stored string) bool {
	for attempt := 0; attempt < passwordAttempts; attempt++ {
		m.say(ctx, "Please say your password after the beep")
		heard, err := m.voice.Recognize(ctx, 5*time.Second)
		if err != nil {
			m.say(ctx, "Try again")
			continue
		}
		if strings.EqualFold(strings.TrimSpace(heard), strings.TrimSpace(stored)) {
			return true
		}
		m.say(ctx, "Try again")
	}
	return false
}

// FaceMatches applies the strict threshold to the embedding distance.
func FaceMatches(known, probe []float32) bool {
	return FaceDistance(known, probe) < FaceMatchThreshold
}

// FaceDistance is the Euclidean distance between two embeddings.
// Mismatched lengths compare as infinitely far apart.
func FaceDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
