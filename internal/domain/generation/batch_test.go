package generation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/popgraph/server/internal/model"
	"github.com/popgraph/server/internal/utils/clock"
)

// fakeGenerator records the seeds it was asked to render.
type fakeGenerator struct {
	mu     sync.Mutex
	seeds  []int64
	failAt map[int64]error
	delay  func(seed int64) time.Duration
	onCall func(n int)
}

func (g *fakeGenerator) GenerateOne(ctx context.Context, prompt string, opts *model.GenerationOptions) (*model.GeneratedImage, error) {
	seed := *opts.Seed
	g.mu.Lock()
	g.seeds = append(g.seeds, seed)
	n := len(g.seeds)
	g.mu.Unlock()

	if g.onCall != nil {
		g.onCall(n)
	}
	if g.delay != nil {
		time.Sleep(g.delay(seed))
	}
	if err := g.failAt[seed]; err != nil {
		return nil, err
	}
	return &model.GeneratedImage{Data: []byte(prompt), Seed: seed}, nil
}

func (g *fakeGenerator) calls() []int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]int64(nil), g.seeds...)
}

func newTestOrchestrator(gen Generator, pacing PacingPolicy) (*BatchOrchestrator, *clock.Fake) {
	fake := clock.NewFake(time.UnixMilli(5_000_000_123))
	return NewBatchOrchestrator(gen, pacing, MaxVariants, fake, nil), fake
}

func TestBatchOrchestrator_Run(t *testing.T) {
	t.Run("zero variants issues no calls", func(t *testing.T) {
		gen := &fakeGenerator{}
		o, fake := newTestOrchestrator(gen, DefaultPacingPolicy())

		images, err := o.Run(context.Background(), &model.BatchRequest{Prompt: "p", VariantCount: 0})

		require.NoError(t, err)
		assert.NotNil(t, images)
		assert.Empty(t, images)
		assert.Empty(t, gen.calls())
		assert.Empty(t, fake.Sleeps())
	})

	t.Run("sequential seeds and pacing", func(t *testing.T) {
		gen := &fakeGenerator{}
		o, fake := newTestOrchestrator(gen, DefaultPacingPolicy())

		images, err := o.Run(context.Background(), &model.BatchRequest{
			Prompt:       "p",
			VariantCount: 4,
			BaseSeed:     int64Ptr(100),
		})

		require.NoError(t, err)
		require.Len(t, images, 4)
		for i, img := range images {
			assert.Equal(t, i, img.Index)
			assert.Equal(t, int64(100+i), img.Seed)
		}
		assert.Equal(t, []int64{100, 101, 102, 103}, gen.calls())
		assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second, 2 * time.Second}, fake.Sleeps())
	})

	t.Run("single variant never sleeps", func(t *testing.T) {
		gen := &fakeGenerator{}
		o, fake := newTestOrchestrator(gen, DefaultPacingPolicy())

		_, err := o.Run(context.Background(), &model.BatchRequest{Prompt: "p", VariantCount: 1, BaseSeed: int64Ptr(1)})

		require.NoError(t, err)
		assert.Empty(t, fake.Sleeps())
	})

	t.Run("explicit zero seed is honoured", func(t *testing.T) {
		gen := &fakeGenerator{}
		o, _ := newTestOrchestrator(gen, PacingPolicy{})

		_, err := o.Run(context.Background(), &model.BatchRequest{Prompt: "p", VariantCount: 2, BaseSeed: int64Ptr(0)})

		require.NoError(t, err)
		assert.Equal(t, []int64{0, 1}, gen.calls())
	})

	t.Run("base seed defaults to clock milliseconds", func(t *testing.T) {
		gen := &fakeGenerator{}
		o, _ := newTestOrchestrator(gen, PacingPolicy{})

		_, err := o.Run(context.Background(), &model.BatchRequest{Prompt: "p", VariantCount: 1})

		require.NoError(t, err)
		assert.Equal(t, []int64{5_000_000_123 % (1 << 32)}, gen.calls())
	})

	t.Run("failure returns no partial list", func(t *testing.T) {
		gen := &fakeGenerator{failAt: map[int64]error{12: &UpstreamError{Op: "job", Message: "boom"}}}
		o, _ := newTestOrchestrator(gen, DefaultPacingPolicy())

		images, err := o.Run(context.Background(), &model.BatchRequest{Prompt: "p", VariantCount: 4, BaseSeed: int64Ptr(10)})

		assert.Nil(t, images)
		assert.ErrorIs(t, err, ErrUpstreamFailure)
		assert.Contains(t, err.Error(), "variant 2")
		assert.Equal(t, []int64{10, 11, 12}, gen.calls())
	})

	t.Run("rejects out of range counts", func(t *testing.T) {
		gen := &fakeGenerator{}
		o, _ := newTestOrchestrator(gen, DefaultPacingPolicy())

		for _, k := range []int{-1, MaxVariants + 1} {
			_, err := o.Run(context.Background(), &model.BatchRequest{Prompt: "p", VariantCount: k})
			assert.ErrorIs(t, err, ErrInvalidRequest)
		}
		assert.Empty(t, gen.calls())
	})

	t.Run("cancellation during pacing", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		gen := &fakeGenerator{onCall: func(int) { cancel() }}
		o, _ := newTestOrchestrator(gen, DefaultPacingPolicy())

		images, err := o.Run(ctx, &model.BatchRequest{Prompt: "p", VariantCount: 3, BaseSeed: int64Ptr(1)})

		assert.Nil(t, images)
		assert.ErrorIs(t, err, ErrUpstreamTimeout)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Len(t, gen.calls(), 1)
	})
}

func TestBatchOrchestrator_Bounded(t *testing.T) {
	t.Run("keeps index order when variants finish out of order", func(t *testing.T) {
		gen := &fakeGenerator{delay: func(seed int64) time.Duration {
			// Earlier seeds finish later.
			return time.Duration(20-seed) * time.Millisecond
		}}
		o, fake := newTestOrchestrator(gen, PacingPolicy{Delay: time.Second, Concurrency: 3})

		images, err := o.Run(context.Background(), &model.BatchRequest{Prompt: "p", VariantCount: 5, BaseSeed: int64Ptr(0)})

		require.NoError(t, err)
		require.Len(t, images, 5)
		for i, img := range images {
			assert.Equal(t, i, img.Index)
			assert.Equal(t, int64(i), img.Seed)
		}
		assert.Len(t, fake.Sleeps(), 4)
	})

	t.Run("first failure fails the batch", func(t *testing.T) {
		gen := &fakeGenerator{failAt: map[int64]error{1: errors.New("boom")}}
		o, _ := newTestOrchestrator(gen, PacingPolicy{Concurrency: 2})

		images, err := o.Run(context.Background(), &model.BatchRequest{Prompt: "p", VariantCount: 3, BaseSeed: int64Ptr(0)})

		assert.Nil(t, images)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "variant 1")
	})
}

func TestPacingPolicy(t *testing.T) {
	tests := []struct {
		name     string
		policy   PacingPolicy
		expected PacingPolicy
	}{
		{"default", DefaultPacingPolicy(), PacingPolicy{Delay: 2 * time.Second, Concurrency: 1}},
		{"zero concurrency", PacingPolicy{}, PacingPolicy{Concurrency: 1}},
		{"negative delay", PacingPolicy{Delay: -time.Second, Concurrency: 2}, PacingPolicy{Concurrency: 2}},
		{"capped concurrency", PacingPolicy{Delay: time.Second, Concurrency: 10}, PacingPolicy{Delay: time.Second, Concurrency: MaxConcurrency}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.policy.normalized())
		})
	}

	assert.True(t, DefaultPacingPolicy().Sequential())
	assert.False(t, PacingPolicy{Concurrency: 2}.Sequential())
}
