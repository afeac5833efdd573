package minibatch

import (
	"math/rand"

	"github.com/metalearn/reptile/omniglot"
)

// Iterator yields fixed-size batches from a task without ever ending. It walks
// a shuffled permutation of the example indices and reshuffles whenever the
// permutation is exhausted, filling the current batch across the seam, so
// every batch holds exactly the requested number of examples and every full
// pass covers the whole task.
type Iterator struct {
	task      *omniglot.Task
	batchSize int
	rng       *rand.Rand
	order     []int
	cursor    int
}

// New returns an iterator over task. batchSize may exceed the task size, in
// which case a single batch spans multiple shuffled passes.
func New(task *omniglot.Task, batchSize int, rng *rand.Rand) *Iterator {
	return &Iterator{
		task:      task,
		batchSize: batchSize,
		rng:       rng,
		order:     rng.Perm(task.Len()),
	}
}

// Next returns the next batch of inputs and labels. The input slices alias the
// task's examples and must not be modified.
func (it *Iterator) Next() ([][]float32, []int) {
	inputs := make([][]float32, it.batchSize)
	labels := make([]int, it.batchSize)
	for i := 0; i < it.batchSize; i++ {
		if it.cursor == len(it.order) {
			it.rng.Shuffle(len(it.order), func(a, b int) {
				it.order[a], it.order[b] = it.order[b], it.order[a]
			})
			it.cursor = 0
		}
		ex := it.task.Examples[it.order[it.cursor]]
		it.cursor++
		inputs[i] = ex.Input
		labels[i] = ex.Label
	}
	return inputs, labels
}

// BatchSize returns the fixed size of every batch.
func (it *Iterator) BatchSize() int {
	return it.batchSize
}
