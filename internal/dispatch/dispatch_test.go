package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"aria/internal/intent"
)

func dec(lines ...string) intent.Decision {
	return intent.ParseDecision(lines)
}

func TestRouteAutomationWinsOverEverything(t *testing.T) {
	a := Route(dec("open spotify", "generate a red dragon", "general what is go", "exit"), true)
	assert.Equal(t, Automation, a.Kind)
	assert.Len(t, a.Decision, 4)
}

func TestRouteGenerateBeatsConversation(t *testing.T) {
	a := Route(dec("generate a red dragon", "general what is go"), true)
	assert.Equal(t, ImageGen, a.Kind)
	assert.Equal(t, "a red dragon", a.Prompt)
}

func TestRouteGenerateRequiresSession(t *testing.T) {
	a := Route(dec("generate a red dragon"), false)
	assert.Equal(t, LoginRequired, a.Kind)
	assert.Equal(t, "a red dragon", a.Prompt)
}

func TestRouteMergesConversationQueries(t *testing.T) {
	a := Route(dec("general who wrote hamlet", "general when was he born"), false)
	assert.Equal(t, Answer, a.Kind)
	assert.Equal(t, "who wrote hamlet and when was he born", a.Query)
	assert.False(t, a.Realtime)
}

func TestRouteAnyRealtimeMakesMergedQueryRealtime(t *testing.T) {
	a := Route(dec("general who is the ceo of openai", "realtime latest openai news"), false)
	assert.Equal(t, Answer, a.Kind)
	assert.Equal(t, "who is the ceo of openai and latest openai news", a.Query)
	assert.True(t, a.Realtime)
}

func TestRouteExitOnlyWhenNothingElse(t *testing.T) {
	assert.Equal(t, Exit, Route(dec("exit"), false).Kind)
	assert.Equal(t, Exit, Route(dec("bye"), false).Kind)

	// Exit mixed with a query routes to the query.
	a := Route(dec("general what time is it", "exit"), false)
	assert.Equal(t, Answer, a.Kind)
}

func TestRouteEmptyAndUnrecognized(t *testing.T) {
	assert.Equal(t, None, Route(nil, true).Kind)
	assert.Equal(t, None, Route(dec("frobnicate the widget"), true).Kind)
}
