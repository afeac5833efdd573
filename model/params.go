package model

import (
	"fmt"
	"math"
	"math/rand"
)

// Param is one named tensor of weights held as a flat float32 slice.
type Param struct {
	Name  string
	Shape []int
	Data  []float32
}

func (p *Param) clone() *Param {
	shape := make([]int, len(p.Shape))
	copy(shape, p.Shape)
	data := make([]float32, len(p.Data))
	copy(data, p.Data)
	return &Param{Name: p.Name, Shape: shape, Data: data}
}

// Params is an ordered bundle of named parameter tensors. It is the only model
// state that crosses meta-iterations: machines view its backing slices while
// running and optimizers mutate them in place.
type Params struct {
	Tensors []*Param
}

// NewParams initializes a bundle for the configuration, Glorot uniform for
// weights and zero for biases, drawn from the shared stream.
func NewParams(cfg Config, rng *rand.Rand) *Params {
	params := &Params{}
	for i, sz := range cfg.layerSizes() {
		in, out := sz[0], sz[1]
		limit := math.Sqrt(6 / float64(in+out))

		weight := &Param{Name: weightName(i), Shape: []int{in, out}, Data: make([]float32, in*out)}
		for j := range weight.Data {
			weight.Data[j] = float32((rng.Float64()*2 - 1) * limit)
		}
		bias := &Param{Name: biasName(i), Shape: []int{1, out}, Data: make([]float32, out)}

		params.Tensors = append(params.Tensors, weight, bias)
	}
	return params
}

// Clone returns a deep copy sharing no backing slices with the receiver.
func (p *Params) Clone() *Params {
	out := &Params{Tensors: make([]*Param, len(p.Tensors))}
	for i, t := range p.Tensors {
		out.Tensors[i] = t.clone()
	}
	return out
}

// Size returns the total number of scalar parameters in the bundle.
func (p *Params) Size() int {
	total := 0
	for _, t := range p.Tensors {
		total += len(t.Data)
	}
	return total
}

func weightName(layer int) string { return fmt.Sprintf("fc%d.weight", layer) }
func biasName(layer int) string   { return fmt.Sprintf("fc%d.bias", layer) }
