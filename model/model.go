package model

import (
	"github.com/metalearn/reptile/omniglot"
)

// Config describes the classifier. The harness only requires something that
// maps flattened images to class probabilities and exposes its weights as a
// flat bundle, so the architecture stays swappable.
type Config struct {
	// NumPixels is the flattened input size.
	NumPixels int
	// Hidden lists the widths of the fully connected hidden layers.
	Hidden []int
	// NumClasses is the output width, the N of an N-way task.
	NumClasses int
	// Dropout is the drop probability after each hidden layer in training
	// mode. Zero disables it and keeps adaptation deterministic.
	Dropout float64
}

// DefaultConfig returns the fully connected classifier the Omniglot harness
// trains.
func DefaultConfig(numClasses int) Config {
	return Config{
		NumPixels:  omniglot.NumPixels,
		Hidden:     []int{256, 128, 64},
		NumClasses: numClasses,
	}
}

func (c Config) layerSizes() [][2]int {
	sizes := make([][2]int, 0, len(c.Hidden)+1)
	in := c.NumPixels
	for _, h := range c.Hidden {
		sizes = append(sizes, [2]int{in, h})
		in = h
	}
	return append(sizes, [2]int{in, c.NumClasses})
}
