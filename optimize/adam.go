package optimize

import (
	"math"

	"github.com/pkg/errors"

	"github.com/metalearn/reptile/model"
)

// AdamState holds the moment estimates and step counter of an Adam optimizer,
// keyed by parameter name. The harness owns the state: it is carried across
// optimizer constructions, written into checkpoints, and cloned for side
// branches that must not write back.
type AdamState struct {
	Step int
	M    map[string][]float32
	V    map[string][]float32
}

// NewAdamState returns empty, cold state.
func NewAdamState() *AdamState {
	return &AdamState{M: map[string][]float32{}, V: map[string][]float32{}}
}

// Clone returns a deep copy sharing nothing with the receiver.
func (s *AdamState) Clone() *AdamState {
	out := &AdamState{
		Step: s.Step,
		M:    make(map[string][]float32, len(s.M)),
		V:    make(map[string][]float32, len(s.V)),
	}
	for name, m := range s.M {
		cp := make([]float32, len(m))
		copy(cp, m)
		out.M[name] = cp
	}
	for name, v := range s.V {
		cp := make([]float32, len(v))
		copy(cp, v)
		out.V[name] = cp
	}
	return out
}

func (s *AdamState) moments(name string, n int) (m, v []float32, err error) {
	m, ok := s.M[name]
	if !ok {
		m = make([]float32, n)
		s.M[name] = m
	}
	v, ok = s.V[name]
	if !ok {
		v = make([]float32, n)
		s.V[name] = v
	}
	if len(m) != n || len(v) != n {
		return nil, nil, errors.Errorf("moment state for %s has %d/%d elements, want %d", name, len(m), len(v), n)
	}
	return m, v, nil
}

// Adam applies the Adam update to a parameter bundle. Moments live in an
// externally owned AdamState, so a warm start is just constructing a new Adam
// around carried state.
type Adam struct {
	lr    float64
	beta1 float64
	beta2 float64
	eps   float64
	state *AdamState
}

// NewAdam returns an Adam optimizer around state; nil state starts cold.
func NewAdam(lr, beta1, beta2 float64, state *AdamState) *Adam {
	if state == nil {
		state = NewAdamState()
	}
	return &Adam{lr: lr, beta1: beta1, beta2: beta2, eps: 1e-8, state: state}
}

// State returns the live moment state for the harness to capture back.
func (a *Adam) State() *AdamState {
	return a.state
}

// Step applies one update to the bundle in place from the gradients, which
// must be ordered like the bundle's tensors.
func (a *Adam) Step(params *model.Params, grads [][]float32) error {
	if len(grads) != len(params.Tensors) {
		return errors.Errorf("got %d gradients for %d parameters", len(grads), len(params.Tensors))
	}

	a.state.Step++
	bc1 := 1 - math.Pow(a.beta1, float64(a.state.Step))
	bc2 := 1 - math.Pow(a.beta2, float64(a.state.Step))

	for i, p := range params.Tensors {
		grad := grads[i]
		if len(grad) != len(p.Data) {
			return errors.Errorf("gradient %d has %d elements, parameter %s has %d", i, len(grad), p.Name, len(p.Data))
		}
		m, v, err := a.state.moments(p.Name, len(p.Data))
		if err != nil {
			return err
		}

		// m = beta1*m + (1-beta1)*g
		scal(float32(a.beta1), m)
		Axpy(float32(1-a.beta1), grad, m)

		beta2 := float32(a.beta2)
		for j, g := range grad {
			v[j] = beta2*v[j] + (1-beta2)*g*g
			mhat := float64(m[j]) / bc1
			vhat := float64(v[j]) / bc2
			p.Data[j] -= float32(a.lr * mhat / (math.Sqrt(vhat) + a.eps))
		}
	}
	return nil
}
