package device

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Device selects where batches and model state are placed.
type Device int

const (
	// CPU runs everything on the host.
	CPU Device = iota
	// CUDA is accepted on the flag surface for parity with the usual harness
	// flags, but no CUDA backend is linked into this build.
	CUDA
)

func (d Device) String() string {
	if d == CUDA {
		return "cuda"
	}
	return "cpu"
}

// FromFlag maps the numeric --cuda flag onto a Device. Requesting CUDA fails
// loudly rather than silently training on the host.
func FromFlag(cuda int) (Device, error) {
	switch cuda {
	case 0:
		return CPU, nil
	case 1:
		return CPU, errors.New("no CUDA backend is linked into this build, run with --cuda 0")
	default:
		return CPU, errors.Errorf("invalid cuda flag %d, want 0 or 1", cuda)
	}
}

// Placer materializes host-side batches as dense tensors on its device. All
// placement goes through here, so the sampler, iterator and trainer never see
// device specifics.
type Placer struct {
	device Device
}

// NewPlacer returns a placer for the device.
func NewPlacer(d Device) *Placer {
	return &Placer{device: d}
}

// Device returns the placement target.
func (p *Placer) Device() Device {
	return p.device
}

// Inputs packs a batch of flattened images into a (batch, features) tensor.
func (p *Placer) Inputs(batch [][]float32) *tensor.Dense {
	features := 0
	if len(batch) > 0 {
		features = len(batch[0])
	}
	backing := make([]float32, 0, len(batch)*features)
	for _, row := range batch {
		backing = append(backing, row...)
	}
	return tensor.New(tensor.WithShape(len(batch), features), tensor.WithBacking(backing))
}

// Labels one-hot encodes a batch of labels into a (batch, numClasses) tensor
// matching the softmax output of the classifier.
func (p *Placer) Labels(labels []int, numClasses int) *tensor.Dense {
	backing := make([]float32, len(labels)*numClasses)
	for i, label := range labels {
		backing[i*numClasses+label] = 1
	}
	return tensor.New(tensor.WithShape(len(labels), numClasses), tensor.WithBacking(backing))
}
