package adapter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequest(tag string) request {
	return request{ctx: context.WithValue(context.Background(), tagKey{}, tag), done: make(chan error, 1)}
}

type tagKey struct{}

func tagOf(r request) string {
	s, _ := r.ctx.Value(tagKey{}).(string)
	return s
}

func TestRequestQueue_FIFO(t *testing.T) {
	q := newRequestQueue()
	for _, tag := range []string{"A", "B", "C"} {
		require.True(t, q.Enqueue(testRequest(tag)))
	}
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"A", "B", "C"} {
		r, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, tagOf(r))
	}
	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestRequestQueue_WaitSignals(t *testing.T) {
	q := newRequestQueue()

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Enqueue(testRequest("late"))
	}()

	select {
	case <-q.Wait():
	case <-time.After(time.Second):
		t.Fatal("no signal after enqueue")
	}
	r, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, "late", tagOf(r))
}

func TestRequestQueue_Close(t *testing.T) {
	q := newRequestQueue()
	require.True(t, q.Enqueue(testRequest("kept")))

	q.Close()
	q.Close() // idempotent

	assert.False(t, q.Enqueue(testRequest("rejected")))
	assert.False(t, q.Drained(), "queued requests survive close")

	_, ok := q.TryDequeue()
	require.True(t, ok)
	assert.True(t, q.Drained())

	select {
	case <-q.Wait():
	default:
		t.Fatal("wait channel should be closed")
	}
}
