package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/keshon/rbot/internal/music/sources"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(q string) Item {
	return Item{Request: sources.Request{Query: q}}
}

func TestFIFOAndCapacity(t *testing.T) {
	q := New(DefaultCapacity)
	for i := 0; i < 10; i++ {
		require.NoError(t, q.Enqueue(item(fmt.Sprint(i))))
	}
	assert.ErrorIs(t, q.Enqueue(item("overflow")), ErrQueueFull)
	assert.Equal(t, 10, q.Len())

	for i := 0; i < 10; i++ {
		got, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, fmt.Sprint(i), got.Request.Query)
	}
	assert.True(t, q.IsEmpty())
	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestDequeueTimesOut(t *testing.T) {
	q := New(1)
	start := time.Now()
	_, err := q.Dequeue(context.Background(), 30*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimedOut)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestDequeueWakesOnEnqueue(t *testing.T) {
	q := New(1)
	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = q.Enqueue(item("late"))
	}()
	got, err := q.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "late", got.Request.Query)
}

func TestDequeueHonoursContext(t *testing.T) {
	q := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.Dequeue(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPeekAndClear(t *testing.T) {
	q := New(5)
	for _, s := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(item(s)))
	}
	peek := q.Peek(2)
	require.Len(t, peek, 2)
	assert.Equal(t, "a", peek[0].Title())

	peek[0].Request.Query = "mutated"
	assert.Equal(t, "a", q.Peek(1)[0].Title())

	assert.Len(t, q.Peek(9), 3)
	assert.Equal(t, 3, q.Clear())
	assert.True(t, q.IsEmpty())
	assert.Nil(t, q.Peek(9))
}

func TestConcurrentProducers(t *testing.T) {
	q := New(100)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = q.Enqueue(item(fmt.Sprint(i)))
		}(i)
	}

	seen := 0
	done := make(chan struct{})
	go func() {
		for seen < 50 {
			if _, err := q.Dequeue(context.Background(), time.Second); err == nil {
				seen++
			}
		}
		close(done)
	}()
	wg.Wait()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not drain the queue")
	}
	assert.Equal(t, 50, seen)
}

func TestTitlePrefersMedia(t *testing.T) {
	it := Item{Request: sources.Request{Query: "q"}, Media: &sources.Media{Title: "Song"}}
	assert.Equal(t, "Song", it.Title())
}
