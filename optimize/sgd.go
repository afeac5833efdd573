package optimize

import (
	"github.com/pkg/errors"

	"github.com/metalearn/reptile/model"
)

// SGDState holds the momentum buffers of an SGD optimizer. With zero momentum
// it stays empty but is still snapshot, so resumed runs restore the same
// optimizer either way.
type SGDState struct {
	Velocity map[string][]float32
}

// NewSGDState returns empty state.
func NewSGDState() *SGDState {
	return &SGDState{Velocity: map[string][]float32{}}
}

// Clone returns a deep copy sharing nothing with the receiver.
func (s *SGDState) Clone() *SGDState {
	out := &SGDState{Velocity: make(map[string][]float32, len(s.Velocity))}
	for name, v := range s.Velocity {
		cp := make([]float32, len(v))
		copy(cp, v)
		out.Velocity[name] = cp
	}
	return out
}

// SGD applies gradient descent with an optional momentum term. The meta update
// sits behind this type so that interpolating toward adapted parameters is
// literally an optimizer step on the displacement, and any gradient-driven
// optimizer could take its seat.
type SGD struct {
	momentum float64
	state    *SGDState
}

// NewSGD returns an SGD optimizer around state; nil state starts cold.
func NewSGD(momentum float64, state *SGDState) *SGD {
	if state == nil {
		state = NewSGDState()
	}
	return &SGD{momentum: momentum, state: state}
}

// State returns the live momentum state.
func (s *SGD) State() *SGDState {
	return s.state
}

// Step applies p -= lr*g in place, folding the velocity buffer in when
// momentum is set. The learning rate is an argument because the meta schedule
// anneals it on every call.
func (s *SGD) Step(params *model.Params, grads [][]float32, lr float64) error {
	if len(grads) != len(params.Tensors) {
		return errors.Errorf("got %d gradients for %d parameters", len(grads), len(params.Tensors))
	}
	for i, p := range params.Tensors {
		grad := grads[i]
		if len(grad) != len(p.Data) {
			return errors.Errorf("gradient %d has %d elements, parameter %s has %d", i, len(grad), p.Name, len(p.Data))
		}

		step := grad
		if s.momentum > 0 {
			velocity, ok := s.state.Velocity[p.Name]
			if !ok {
				velocity = make([]float32, len(p.Data))
				s.state.Velocity[p.Name] = velocity
			}
			if len(velocity) != len(p.Data) {
				return errors.Errorf("velocity for %s has %d elements, want %d", p.Name, len(velocity), len(p.Data))
			}
			// v = momentum*v + g
			scal(float32(s.momentum), velocity)
			Axpy(1, grad, velocity)
			step = velocity
		}
		Axpy(float32(-lr), step, p.Data)
	}
	return nil
}
