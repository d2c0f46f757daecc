package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmbeddingBareArray(t *testing.T) {
	e, err := ParseEmbedding(`[0.25, -0.5, 1.0]`)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -0.5, 1.0}, e)
}

func TestParseEmbeddingObjectForm(t *testing.T) {
	e, err := ParseEmbedding(`{"embedding": [1, 2], "frame": "ignored"}`)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, e)
}

func TestParseEmbeddingRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "not json", `{"frame": "x"}`, `[]`} {
		_, err := ParseEmbedding(raw)
		assert.Error(t, err, "input %q", raw)
	}
}
