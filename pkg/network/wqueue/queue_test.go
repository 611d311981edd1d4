package wqueue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueOrder(t *testing.T) {
	q := New[int]()
	for i := 0; i < 100; i++ {
		require.NoError(t, q.Push(i))
	}
	assert.Equal(t, 100, q.Len())
	for i := 0; i < 100; i++ {
		v, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueueClose(t *testing.T) {
	q := New[string]()
	require.NoError(t, q.Push("a"))
	require.NoError(t, q.Push("b"))
	q.Close()
	q.Close() // tolerates repeats

	require.Error(t, q.Push("c"))

	// Items queued before close are still drained.
	v, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "a", v)
	v, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, "b", v)

	_, ok = q.Pop()
	require.False(t, ok)
}

func TestQueueBlockingPop(t *testing.T) {
	q := New[int]()
	var wg sync.WaitGroup
	wg.Add(1)
	got := make([]int, 0, 10)
	go func() {
		defer wg.Done()
		for {
			v, ok := q.Pop()
			if !ok {
				return
			}
			got = append(got, v)
		}
	}()
	for i := 0; i < 10; i++ {
		require.NoError(t, q.Push(i))
	}
	q.Close()
	wg.Wait()
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}
