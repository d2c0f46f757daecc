package speech

import (
	"context"
	"fmt"
	log "log/slog"
	"strings"
	"sync"
	"time"
)

// Recognizer converts one bounded utterance of audio into text.
type Recognizer interface {
	Recognize(ctx context.Context, maxDur time.Duration) (string, error)
}

// Translator converts non-English transcripts to English.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Input produces one normalized query per utterance cycle, from the
// microphone or from a typed override.
type Input struct {
	rec        Recognizer
	translator Translator
	lang       string

	mu       sync.Mutex
	override string

	// Translating is called before a translation round trip so the
	// surface can reflect the phase.
	Translating func()
}

func NewInput(rec Recognizer, lang string) *Input {
	if lang == "" {
		lang = "en"
	}
	return &Input{rec: rec, lang: lang}
}

// WithTranslator enables the non-English input path.
func (in *Input) WithTranslator(tr Translator) *Input {
	in.translator = tr
	return in
}

// SetOverride replaces the next microphone read with typed text.
func (in *Input) SetOverride(text string) {
	in.mu.Lock()
	in.override = text
	in.mu.Unlock()
}

func (in *Input) takeOverride() (string, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	text := in.override
	in.override = ""
	return text, text != ""
}

// Query obtains one utterance and normalizes it. Non-English input goes
// through the translator first.
func (in *Input) Query(ctx context.Context) (string, error) {
	text, ok := in.takeOverride()
	if !ok {
		var err error
		text, err = in.rec.Recognize(ctx, 15*time.Second)
		if err != nil {
			return "", fmt.Errorf("recognize: %w", err)
		}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}

	if !strings.HasPrefix(strings.ToLower(in.lang), "en") && in.translator != nil {
		if in.Translating != nil {
			in.Translating()
		}
		translated, err := in.translator.Translate(ctx, text)
		if err != nil {
			log.Error("Failed to translate input", "err", err)
		} else {
			text = translated
		}
	}

	return FormatQuery(text), nil
}

var questionWords = []string{
	"how", "what", "who", "where", "when", "why", "which", "whose",
	"whom", "can you", "what's", "where's", "how's",
}

// FormatQuery punctuates and capitalizes a raw transcript: question-word
// queries end with "?", everything else with ".".
func FormatQuery(query string) string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return ""
	}

	question := false
	for _, w := range questionWords {
		if strings.Contains(q, w+" ") {
			question = true
			break
		}
	}

	q = strings.TrimRight(q, ".?!")
	if question {
		q += "?"
	} else {
		q += "."
	}

	return strings.ToUpper(q[:1]) + q[1:]
}
