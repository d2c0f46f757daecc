// Package chat is the conversational handler: persona prompt, stored
// history, a realtime clock preamble and a bounded-retry completion.
package chat

import (
	"context"
	"fmt"
	log "log/slog"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"

	"aria/internal/store"
)

const maxAttempts = 2

// Service answers general queries and remembers every turn in the
// store, scoped to the active user or the global log.
type Service struct {
	client    openai.Client
	store     *store.Store
	model     openai.ChatModel
	username  string
	assistant string
}

func New(client openai.Client, st *store.Store, username, assistant string) *Service {
	if username == "" {
		username = "User"
	}
	if assistant == "" {
		assistant = "Aria"
	}
	return &Service{
		client:    client,
		store:     st,
		model:     openai.ChatModelGPT5Nano,
		username:  username,
		assistant: assistant,
	}
}

func (s *Service) persona() string {
	return fmt.Sprintf(`Hello, I am %s, You are a very accurate and advanced AI chatbot named %s which also has real-time up-to-date information from the internet.
*** Do not tell time until I ask, do not talk too much, just answer the question.***
*** Reply in only English, even if the question is in another language.***
*** Do not provide notes in the output, just answer the question and never mention your training data. ***`,
		s.username, s.assistant)
}

/// Scope returns the history scope for the current session: the active
// username, or "" for the global log.
func (s *Service) Scope(ctx context.Context) string {
	user, err := s.store.ActiveUser(ctx)
	if err != nil {
		log.Warn("Failed to read active user", "err", err)
		return ""
	}
	return user
}

// Reply answers one query against the scoped history and appends both
// turns to it. Retries are bounded; the last error is returned once
// attempts are exhausted.
func (s *Service) Reply(ctx context.Context, query string) (string, error) {
	return s.reply(ctx, nil, query)
}

// ReplyGrounded answers with extra system context (e.g. search results)
// prepended for this turn only.
func (s *Service) ReplyGrounded(ctx context.Context, grounding, query string) (string, error) {
	return s.reply(ctx, []string{grounding}, query)
}

func (s *Service) reply(ctx context.Context, grounding []string, query string) (string, error) {
	scope := s.Scope(ctx)

	history, err := s.store.History(ctx, scope)
	if err != nil {
		// Unreadable history degrades to an empty conversation.
		log.Warn("Failed to load history", "err", err)
		history = nil
	}

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+4)
	msgs = append(msgs, openai.SystemMessage(s.persona()))
	for _, g := range grounding {
		msgs = append(msgs, openai.SystemMessage(g))
	}
	msgs = append(msgs, openai.SystemMessage(ClockPreamble(time.Now())))
	for _, m := range history {
		switch m.Role {
		case "user":
			msgs = append(msgs, openai.UserMessage(m.Content))
		case "assistant":
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		}
	}
	msgs = append(msgs, openai.UserMessage(query))

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		answer, err := s.complete(ctx, msgs)
		if err != nil {
			lastErr = err
			log.Error("Failed chat completion", "attempt", attempt, "err", err)
			continue
		}

		answer = CleanAnswer(answer)
		if err := s.store.AppendMessage(ctx, scope, "user", query); err != nil {
			log.Warn("Failed to persist user turn", "err", err)
		}
		if err := s.store.AppendMessage(ctx, scope, "assistant", answer); err != nil {
			log.Warn("Failed to persist assistant turn", "err", err)
		}
		return answer, nil
	}

	return "", fmt.Errorf("chat reply after %d attempts: %w", maxAttempts, lastErr)
}

// EnsureSeed writes the default greeting exchange into the global log
// when it is empty, so the surface never renders a blank conversation.
func (s *Service) EnsureSeed(ctx context.Context) error {
	history, err := s.store.History(ctx, "")
	if err != nil {
		return fmt.Errorf("seed history: %w", err)
	}
	if len(history) > 0 {
		return nil
	}

	seed := [][2]string{
		{"user", fmt.Sprintf("Hello %s, how are you?", s.assistant)},
		{"assistant", fmt.Sprintf("Welcome back %s. I am doing well, how may I help you?", s.username)},
	}
	for _, turn := range seed {
		if err := s.store.AppendMessage(ctx, "", turn[0], turn[1]); err != nil {
			return fmt.Errorf("seed message: %w", err)
		}
	}
	return nil
}

func (s *Service) complete(ctx context.Context, msgs []openai.ChatCompletionMessageParamUnion) (string, error) {
	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: msgs,
		Model:    s.model,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// Translate converts text to English, used for non-English speech input.
func (s *Service) Translate(ctx context.Context, text string) (string, error) {
	answer, err := s.complete(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage("Translate the user's text to English. Output only the translation, nothing else."),
		openai.UserMessage(text),
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

// WriteContent produces long-form content (letters, code, essays) for
// the automation content verb. Not appended to the chat history.
func (s *Service) WriteContent(ctx context.Context, topic string) (string, error) {
	prompt := fmt.Sprintf("Hello, I am %s, You're a content writer. You have to write content like letters, codes, applications, essays, notes, songs, poems etc.", s.username)
	answer, err := s.complete(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(prompt),
		openai.UserMessage(topic),
	})
	if err != nil {
		return "", err
	}
	return CleanAnswer(answer), nil
}

// ClockPreamble gives the model the wall clock, matching the persona's
// claim of real-time awareness.
func ClockPreamble(now time.Time) string {
	return fmt.Sprintf(
		"Please use this real-time information if needed,\nDay: %s\nDate: %s\nMonth: %s\nYear: %s\nTime: %s hours :%s minutes :%s seconds.\n",
		now.Format("Monday"), now.Format("02"), now.Format("January"),
		now.Format("2006"), now.Format("15"), now.Format("04"), now.Format("05"))
}

// CleanAnswer drops empty lines and stray stop tokens from a model
// reply.
func CleanAnswer(answer string) string {
	answer = strings.ReplaceAll(answer, "</s>", "")
	lines := strings.Split(answer, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
