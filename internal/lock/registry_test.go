package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	r := NewRegistry()

	release, err := r.Acquire(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())

	release()
	assert.Equal(t, 0, r.Len(), "entry should be removed once the last holder releases")
}

func TestReleaseIsIdempotent(t *testing.T) {
	r := NewRegistry()

	release, err := r.Acquire(context.Background(), 7)
	require.NoError(t, err)

	release()
	release() // second call must not panic or double-decrement

	again, err := r.Acquire(context.Background(), 7)
	require.NoError(t, err)
	again()
	assert.Equal(t, 0, r.Len())
}

func TestAcquireRespectsContext(t *testing.T) {
	r := NewRegistry()

	hold, err := r.Acquire(context.Background(), 3)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = r.Acquire(ctx, 3)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	hold()
	assert.Equal(t, 0, r.Len(), "abandoned waiter must not leak an entry")
}

func TestDistinctShowsDoNotContend(t *testing.T) {
	r := NewRegistry()

	rel1, err := r.Acquire(context.Background(), 1)
	require.NoError(t, err)

	// Holding show 1 must not block show 2.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	rel2, err := r.Acquire(ctx, 2)
	require.NoError(t, err)

	assert.Equal(t, 2, r.Len())
	rel1()
	rel2()
	assert.Equal(t, 0, r.Len())
}

func TestMutualExclusionUnderContention(t *testing.T) {
	r := NewRegistry()

	const workers = 50
	var (
		wg      sync.WaitGroup
		counter int // deliberately unguarded; the show lock must serialize access
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			release, err := r.Acquire(context.Background(), 42)
			if err != nil {
				t.Error(err)
				return
			}
			counter++
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, counter)
	assert.Equal(t, 0, r.Len())
}
