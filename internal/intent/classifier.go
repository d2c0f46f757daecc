package intent

import (
	"context"
	"fmt"
	log "log/slog"
	"strings"

	openai "github.com/openai/openai-go/v3"
)

const decisionPrompt = `You are a very accurate decision-making model which decides what kind of a query is given to you.
You will decide whether a query is a 'general' query, a 'realtime' query, or is asking to perform any task or automation.

*** Do not answer any query, just decide what kind of query is given to you. ***

-> Respond with 'general (query)' if a query can be answered by a llm model (conversational ai chatbot) and doesn't require any up to date information.
-> Respond with 'realtime (query)' if a query can not be answered by a llm model and requires up to date information from the internet.
-> Respond with 'open (application name or website name)' if a query is asking to open any application or website.
-> Respond with 'close (application name)' if a query is asking to close any application.
-> Respond with 'play (song name)' if a query is asking to play any song.
-> Respond with 'generate (image prompt)' if a query is requesting to generate an image.
-> Respond with 'system (task name)' if a query is asking to mute, unmute, volume up or volume down the system.
-> Respond with 'content (topic)' if a query is asking to write any type of content like applications, codes, emails or anything else.
-> Respond with 'google search (topic)' if a query is asking to search a specific topic on google.
-> Respond with 'youtube search (topic)' if a query is asking to search a specific topic on youtube.
-> Respond with 'exit' if the user is saying goodbye or wants to end the conversation.

*** If the query is asking to perform multiple tasks, respond with all of them separated by a comma. ***
*** Respond with 'general (query)' if you can't decide the kind of query. ***`

// Classifier turns one normalized query into a Decision using the
// first-layer decision model.
type Classifier struct {
	client openai.Client
	model  openai.ChatModel
}

func NewClassifier(client openai.Client) *Classifier {
	return &Classifier{client: client, model: openai.ChatModelGPT5Nano}
}

// Classify never fails the cycle: a service error or empty reply yields
// an empty Decision, which the dispatcher treats as nothing to do.
func (c *Classifier) Classify(ctx context.Context, query string) Decision {
	raw, err := c.complete(ctx, query)
	if err != nil {
		log.Error("Failed to classify query", "err", err)
		return nil
	}

	dec := ParseDecision(splitEntries(raw))
	log.Debug("Classified", "query", query, "decision", raw)
	return dec
}

func (c *Classifier) complete(ctx context.Context, query string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(decisionPrompt),
			openai.UserMessage(query),
		},
		Model: c.model,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", fmt.Errorf("empty message content")
	}
	return content, nil
}

func splitEntries(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}
