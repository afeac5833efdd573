package omniglot

import (
	"math/rand"

	"github.com/pkg/errors"
)

// ErrInsufficientImages is returned when a sampled class has fewer images than
// the requested number of shots. Shots are never silently truncated.
var ErrInsufficientImages = errors.New("not enough images in class")

// Example is a single training instance: a flattened transformed image and its
// label within the task.
type Example struct {
	Input []float32
	Label int
}

// Task is an ephemeral N-way classification problem over sampled characters.
// Labels are positions in the sampled class order, so the same character maps
// to different labels across tasks.
type Task struct {
	NumClasses int
	Examples   []Example
}

// Len returns the number of examples in the task.
func (t *Task) Len() int {
	return len(t.Examples)
}

// Sampler draws few-shot classification tasks from a pool of characters. Every
// call is an independent draw: classes and shots are picked uniformly without
// replacement and nothing about a task is remembered afterwards.
type Sampler struct {
	pool  Pool
	cache *ImageCache
}

// NewSampler returns a sampler over the pool, materializing images through the
// shared cache.
func NewSampler(pool Pool, cache *ImageCache) *Sampler {
	return &Sampler{pool: pool, cache: cache}
}

// NumClasses returns the number of character classes in the sampler's pool.
func (s *Sampler) NumClasses() int {
	return len(s.pool.Classes)
}

// SampleTask draws numClasses distinct characters and shots distinct images
// from each.
func (s *Sampler) SampleTask(rng *rand.Rand, numClasses, shots int) (*Task, error) {
	chars, err := s.sampleClasses(rng, numClasses)
	if err != nil {
		return nil, err
	}

	task := &Task{NumClasses: numClasses}
	for label, char := range chars {
		picks, err := samplePaths(rng, char, shots)
		if err != nil {
			return nil, err
		}
		if err := s.appendExamples(task, picks, label); err != nil {
			return nil, err
		}
	}
	return task, nil
}

// SampleTaskSplit draws classes like SampleTask but shards each character's
// images into disjoint train and test shots. Both shards share the same label
// mapping, so a model adapted on the train shard is scored on unseen drawings
// of the same characters.
func (s *Sampler) SampleTaskSplit(rng *rand.Rand, numClasses, trainShots, testShots int) (*Task, *Task, error) {
	chars, err := s.sampleClasses(rng, numClasses)
	if err != nil {
		return nil, nil, err
	}

	train := &Task{NumClasses: numClasses}
	test := &Task{NumClasses: numClasses}
	for label, char := range chars {
		picks, err := samplePaths(rng, char, trainShots+testShots)
		if err != nil {
			return nil, nil, err
		}
		if err := s.appendExamples(train, picks[:trainShots], label); err != nil {
			return nil, nil, err
		}
		if err := s.appendExamples(test, picks[trainShots:], label); err != nil {
			return nil, nil, err
		}
	}
	return train, test, nil
}

func (s *Sampler) sampleClasses(rng *rand.Rand, numClasses int) ([]*Character, error) {
	if numClasses > len(s.pool.Classes) {
		return nil, errors.Errorf("requested %d classes but the pool holds %d", numClasses, len(s.pool.Classes))
	}
	perm := rng.Perm(len(s.pool.Classes))
	chars := make([]*Character, numClasses)
	for i := range chars {
		chars[i] = s.pool.Classes[perm[i]]
	}
	return chars, nil
}

func samplePaths(rng *rand.Rand, char *Character, n int) ([]string, error) {
	if n > len(char.Images) {
		return nil, errors.Wrapf(ErrInsufficientImages, "class %s has %d images, need %d", char.Name, len(char.Images), n)
	}
	perm := rng.Perm(len(char.Images))
	paths := make([]string, n)
	for i := range paths {
		paths[i] = char.Images[perm[i]]
	}
	return paths, nil
}

func (s *Sampler) appendExamples(task *Task, paths []string, label int) error {
	for _, path := range paths {
		input, err := s.cache.Get(path)
		if err != nil {
			return err
		}
		task.Examples = append(task.Examples, Example{Input: input, Label: label})
	}
	return nil
}
