// Package dispatch turns a classified decision into exactly one routed
// action. The routing order is fixed: automation beats image
// generation, image generation beats conversation, and exit only fires
// when nothing else matched.
package dispatch

import "aria/internal/intent"

type Kind int

const (
	// None means the cycle ends silently.
	None Kind = iota
	// Automation fans the full decision out to the executor.
	Automation
	// ImageGen starts background image generation for Prompt.
	ImageGen
	// LoginRequired is ImageGen attempted without a session.
	LoginRequired
	// Answer sends Query to the conversational model; Realtime marks
	// that the reply must be grounded with a live search.
	Answer
	// Exit speaks a farewell and terminates the run loop.
	Exit
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case Automation:
		return "automation"
	case ImageGen:
		return "imagegen"
	case LoginRequired:
		return "login-required"
	case Answer:
		return "answer"
	case Exit:
		return "exit"
	}
	return "unknown"
}

// Action is the single outcome of routing one decision.
type Action struct {
	Kind     Kind
	Decision intent.Decision // Automation only
	Prompt   string          // ImageGen only
	Query    string          // Answer only
	Realtime bool            // Answer only
}

// Route applies the tie-break policy to a decision. loggedIn gates
// image generation, the one privileged action.
func Route(dec intent.Decision, loggedIn bool) Action {
	if dec.HasAutomation() {
		return Action{Kind: Automation, Decision: dec}
	}
	if prompt, ok := dec.FirstGenerate(); ok {
		if !loggedIn {
			return Action{Kind: LoginRequired, Prompt: prompt}
		}
		return Action{Kind: ImageGen, Prompt: prompt}
	}
	if query, realtime, ok := dec.MergedQuery(); ok {
		return Action{Kind: Answer, Query: query, Realtime: realtime}
	}
	if dec.HasExit() {
		return Action{Kind: Exit}
	}
	return Action{Kind: None}
}
