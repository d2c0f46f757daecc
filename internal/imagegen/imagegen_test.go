package imagegen

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aria/internal/status"
)

type countingGen struct {
	calls   atomic.Int32
	failAll bool
}

func (g *countingGen) Generate(_ context.Context, prompt string) ([]byte, error) {
	g.calls.Add(1)
	if g.failAll {
		return nil, errors.New("backend down")
	}
	return []byte("png:" + prompt), nil
}

func newTestService(t *testing.T, gen Generator) (*Service, *status.Channel, *atomic.Int32) {
	t.Helper()
	ch := status.NewChannel(t.TempDir())
	svc := NewService(gen, ch, filepath.Join(t.TempDir(), "images"))
	var opened atomic.Int32
	svc.open = func(string) error { opened.Add(1); return nil }
	return svc, ch, &opened
}

func TestHandleRendersAllVariants(t *testing.T) {
	gen := &countingGen{}
	svc, _, opened := newTestService(t, gen)

	require.NoError(t, svc.Handle(context.Background(), "a red dragon"))

	assert.Equal(t, int32(variantsPerPrompt), gen.calls.Load())
	assert.Equal(t, int32(1), opened.Load())

	entries, err := os.ReadDir(svc.dir)
	require.NoError(t, err)
	assert.Len(t, entries, variantsPerPrompt)
	for _, e := range entries {
		assert.Contains(t, e.Name(), "a-red-dragon")
	}
}

func TestHandleAllVariantsFailed(t *testing.T) {
	svc, _, opened := newTestService(t, &countingGen{failAll: true})

	err := svc.Handle(context.Background(), "anything")
	assert.Error(t, err)
	assert.Zero(t, opened.Load())
}

func TestRunConsumesPendingRequestOnce(t *testing.T) {
	gen := &countingGen{}
	svc, ch, _ := newTestService(t, gen)

	ch.SetImageRequest(status.EncodeImageRequest("a blue fox, watercolor", true))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	assert.Eventually(t, func() bool {
		return gen.calls.Load() == int32(variantsPerPrompt)
	}, 5*time.Second, 20*time.Millisecond)

	// Slot is reset so the prompt is not rendered again.
	assert.Equal(t, status.NoImageRequest, ch.ImageRequest())
}

func TestRunIgnoresIdleSlot(t *testing.T) {
	gen := &countingGen{}
	svc, ch, _ := newTestService(t, gen)
	ch.SetImageRequest(status.NoImageRequest)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	svc.Run(ctx)

	assert.Zero(t, gen.calls.Load())
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "a-red-dragon", slugify("A Red Dragon"))
	assert.Equal(t, "one-two-three-four-five", slugify("one two three four five six"))
	assert.Equal(t, "image", slugify("!!!"))
}
