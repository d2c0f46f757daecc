// Package search is the realtime handler: it grounds a query with web
// results and lets the chat model summarize them.
package search

import (
	"context"
	"fmt"
	"io"
	log "log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

const defaultEndpoint = "https://api.duckduckgo.com/"

// Client fetches instant-answer results.
type Client struct {
	http     *http.Client
	endpoint string
}

func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{http: httpClient, endpoint: defaultEndpoint}
}

// WithEndpoint overrides the instant-answer endpoint, used in tests.
func (c *Client) WithEndpoint(u string) *Client {
	c.endpoint = u
	return c
}

// Snippet is one titled search result.
type Snippet struct {
	Title string
	Text  string
}

// Lookup fetches up to five snippets for the query.
func (c *Client) Lookup(ctx context.Context, query string) ([]Snippet, error) {
	u := fmt.Sprintf("%s?q=%s&format=json&no_html=1&skip_disambig=1",
		c.endpoint, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search request: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read search body: %w", err)
	}

	return ParseSnippets(body), nil
}

// ParseSnippets extracts the abstract and related topics from an
// instant-answer payload.
func ParseSnippets(body []byte) []Snippet {
	var snippets []Snippet

	heading := gjson.GetBytes(body, "Heading").String()
	if abstract := gjson.GetBytes(body, "AbstractText").String(); abstract != "" {
		snippets = append(snippets, Snippet{Title: heading, Text: abstract})
	}

	gjson.GetBytes(body, "RelatedTopics").ForEach(func(_, topic gjson.Result) bool {
		text := topic.Get("Text").String()
		if text == "" {
			return true // grouped topics nest one level deeper
		}
		snippets = append(snippets, Snippet{
			Title: topic.Get("FirstURL").String(),
			Text:  text,
		})
		return len(snippets) < 5
	})

	return snippets
}

// Grounding renders snippets as the context block handed to the model.
func Grounding(query string, snippets []Snippet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The search results for '%s' are:\n[start]\n", query)
	for _, s := range snippets {
		fmt.Fprintf(&b, "Title: %s\nDescription: %s\n\n", s.Title, s.Text)
	}
	b.WriteString("[end]")
	return b.String()
}

// Summarizer is the conversational service that turns grounded context
// into an answer.
type Summarizer interface {
	ReplyGrounded(ctx context.Context, grounding, query string) (string, error)
}

// Engine answers realtime queries: lookup, ground, summarize. A failed
// lookup still asks the model, with an empty grounding block.
type Engine struct {
	client *Client
	chat   Summarizer
}

func NewEngine(client *Client, chat Summarizer) *Engine {
	return &Engine{client: client, chat: chat}
}

func (e *Engine) Answer(ctx context.Context, query string) (string, error) {
	snippets, err := e.client.Lookup(ctx, query)
	if err != nil {
		log.Warn("Failed search lookup", "err", err)
	}
	return e.chat.ReplyGrounded(ctx, Grounding(query, snippets), query)
}
