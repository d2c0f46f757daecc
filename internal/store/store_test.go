package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "aria.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRegisterAndLookup(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	err := s.RegisterUser(ctx, User{Username: "alice", Face: []float32{0.1, -0.5, 2}, Password: "Blue Sky"})
	require.NoError(t, err)

	u, err := s.LookupUser(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, []float32{0.1, -0.5, 2}, u.Face)
	assert.Equal(t, "Blue Sky", u.Password)

	u, err = s.LookupUser(ctx, "bob")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestRegisterDuplicate(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.RegisterUser(ctx, User{Username: "alice", Face: []float32{1}, Password: "x"}))
	err := s.RegisterUser(ctx, User{Username: "alice", Face: []float32{2}, Password: "y"})
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestListUsernames(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.RegisterUser(ctx, User{Username: "bob", Face: []float32{1}, Password: "x"}))
	require.NoError(t, s.RegisterUser(ctx, User{Username: "alice", Face: []float32{1}, Password: "x"}))

	names, err := s.ListUsernames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, names)
}

func TestHistoryScopes(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendMessage(ctx, "", "user", "hello"))
	require.NoError(t, s.AppendMessage(ctx, "", "assistant", "hi there"))
	require.NoError(t, s.AppendMessage(ctx, "alice", "user", "my question"))

	global, err := s.History(ctx, "")
	require.NoError(t, err)
	require.Len(t, global, 2)
	assert.Equal(t, "user", global[0].Role)
	assert.Equal(t, "hello", global[0].Content)

	scoped, err := s.History(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "my question", scoped[0].Content)
}

func TestSession(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	u, err := s.ActiveUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", u)

	require.NoError(t, s.SetActiveUser(ctx, "alice"))
	u, err = s.ActiveUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", u)

	// Only one session row ever exists.
	require.NoError(t, s.SetActiveUser(ctx, "bob"))
	u, err = s.ActiveUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bob", u)

	require.NoError(t, s.ClearActiveUser(ctx))
	u, err = s.ActiveUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", u)
}

func TestEmbeddingCodec(t *testing.T) {
	in := []float32{0, 1.5, -3.25, 0.000001}
	assert.Equal(t, in, decodeEmbedding(encodeEmbedding(in)))
	assert.Empty(t, decodeEmbedding(nil))
}
