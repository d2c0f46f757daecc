// Package intent defines the tagged command grammar produced by the
// decision model and the parser that turns raw classifier lines into it.
package intent

import (
	"strings"
)

type Category int

const (
	Unknown Category = iota
	General
	Realtime
	Open
	Close
	Play
	Content
	GoogleSearch
	YouTubeSearch
	System
	Generate
	Exit
)

func (c Category) String() string {
	switch c {
	case General:
		return "general"
	case Realtime:
		return "realtime"
	case Open:
		return "open"
	case Close:
		return "close"
	case Play:
		return "play"
	case Content:
		return "content"
	case GoogleSearch:
		return "google search"
	case YouTubeSearch:
		return "youtube search"
	case System:
		return "system"
	case Generate:
		return "generate"
	case Exit:
		return "exit"
	}
	return "unknown"
}

// IsAutomation reports whether the category is handled by the automation
// executor rather than the chat/search path.
func (c Category) IsAutomation() bool {
	switch c {
	case Open, Close, Play, Content, GoogleSearch, YouTubeSearch, System:
		return true
	}
	return false
}

// Command is one parsed decision entry: a category tag plus its payload.
type Command struct {
	Category Category
	Payload  string
	Raw      string
}

// Decision is the ordered intent list for a single utterance. It is
// produced once per cycle and consumed exactly once by the dispatcher.
type Decision []Command

// Longest prefixes first so "google search" wins over nothing and
// "youtube search" never falls into an unknown bucket.
var prefixes = []struct {
	text string
	cat  Category
}{
	{"google search", GoogleSearch},
	{"youtube search", YouTubeSearch},
	{"general", General},
	{"realtime", Realtime},
	{"content", Content},
	{"generate", Generate},
	{"open", Open},
	{"close", Close},
	{"play", Play},
	{"system", System},
	{"exit", Exit},
	{"bye", Exit},
}

// Parse matches one raw classifier line against the prefix table.
// Unrecognized lines come back as Unknown with the line as payload.
func Parse(line string) Command {
	raw := strings.TrimSpace(line)
	lower := strings.ToLower(raw)

	for _, p := range prefixes {
		if lower == p.text {
			return Command{Category: p.cat, Raw: raw}
		}
		if strings.HasPrefix(lower, p.text+" ") {
			return Command{
				Category: p.cat,
				Payload:  strings.TrimSpace(raw[len(p.text):]),
				Raw:      raw,
			}
		}
	}

	return Command{Category: Unknown, Payload: raw, Raw: raw}
}

// ParseDecision maps classifier output lines into a Decision, dropping
// empty lines. Unknown entries are kept so the executor can log and skip
// them.
func ParseDecision(lines []string) Decision {
	dec := make(Decision, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		dec = append(dec, Parse(line))
	}
	return dec
}

// HasAutomation reports whether any entry routes to the automation
// executor.
func (d Decision) HasAutomation() bool {
	for _, cmd := range d {
		if cmd.Category.IsAutomation() {
			return true
		}
	}
	return false
}

// FirstGenerate returns the prompt of the first image request, if any.
func (d Decision) FirstGenerate() (string, bool) {
	for _, cmd := range d {
		if cmd.Category == Generate {
			return cmd.Payload, true
		}
	}
	return "", false
}

// MergedQuery joins the payloads of every general and realtime entry with
// "and". The second result reports whether any realtime entry was present.
func (d Decision) MergedQuery() (query string, realtime bool, ok bool) {
	var parts []string
	for _, cmd := range d {
		switch cmd.Category {
		case General:
			parts = append(parts, cmd.Payload)
		case Realtime:
			parts = append(parts, cmd.Payload)
			realtime = true
		}
	}
	return strings.Join(parts, " and "), realtime, len(parts) > 0
}

// HasExit reports whether any entry is the terminal exit intent.
func (d Decision) HasExit() bool {
	for _, cmd := range d {
		if cmd.Category == Exit {
			return true
		}
	}
	return false
}
