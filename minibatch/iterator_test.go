package minibatch

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metalearn/reptile/omniglot"
)

func testTask(n int) *omniglot.Task {
	task := &omniglot.Task{NumClasses: n}
	for i := 0; i < n; i++ {
		task.Examples = append(task.Examples, omniglot.Example{
			Input: []float32{float32(i)},
			Label: i,
		})
	}
	return task
}

func TestNextFixedSize(t *testing.T) {
	it := New(testTask(7), 3, rand.New(rand.NewSource(1)))
	for i := 0; i < 10; i++ {
		inputs, labels := it.Next()
		require.Len(t, inputs, 3)
		require.Len(t, labels, 3)
	}
}

func TestPassCoversTask(t *testing.T) {
	// 6 examples, batches of 3: every two batches are one full pass
	it := New(testTask(6), 3, rand.New(rand.NewSource(2)))
	seen := make(map[int]int)
	for i := 0; i < 2; i++ {
		_, labels := it.Next()
		for _, label := range labels {
			seen[label]++
		}
	}
	require.Len(t, seen, 6)
	for label, count := range seen {
		assert.Equal(t, 1, count, "label %d", label)
	}
}

func TestWrapRefills(t *testing.T) {
	// 5 examples with batches of 3: batches straddle the reshuffle seam, and
	// after 3 passes worth of draws every example has come up exactly 3 times
	it := New(testTask(5), 3, rand.New(rand.NewSource(3)))
	seen := make(map[int]int)
	for i := 0; i < 5; i++ {
		inputs, labels := it.Next()
		require.Len(t, inputs, 3)
		for _, label := range labels {
			seen[label]++
		}
	}
	require.Len(t, seen, 5)
	for label, count := range seen {
		assert.Equal(t, 3, count, "label %d", label)
	}
}

func TestBatchLargerThanTask(t *testing.T) {
	it := New(testTask(2), 5, rand.New(rand.NewSource(4)))
	inputs, labels := it.Next()
	require.Len(t, inputs, 5)

	seen := make(map[int]int)
	for _, label := range labels {
		seen[label]++
	}
	require.Len(t, seen, 2)
	for label, count := range seen {
		assert.True(t, count >= 2, "label %d drawn %d times", label, count)
	}
}

func TestNeverEnds(t *testing.T) {
	it := New(testTask(3), 4, rand.New(rand.NewSource(5)))
	for i := 0; i < 100; i++ {
		inputs, _ := it.Next()
		require.Len(t, inputs, 4)
	}
}

func TestDeterministic(t *testing.T) {
	a := New(testTask(8), 3, rand.New(rand.NewSource(6)))
	b := New(testTask(8), 3, rand.New(rand.NewSource(6)))
	for i := 0; i < 20; i++ {
		_, labelsA := a.Next()
		_, labelsB := b.Next()
		assert.Equal(t, labelsA, labelsB)
	}
}
