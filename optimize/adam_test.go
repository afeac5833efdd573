package optimize

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metalearn/reptile/model"
)

func testParams(data ...[]float32) *model.Params {
	p := &model.Params{}
	for i, d := range data {
		cp := make([]float32, len(d))
		copy(cp, d)
		p.Tensors = append(p.Tensors, &model.Param{
			Name:  fmt.Sprintf("w%d", i),
			Shape: []int{1, len(d)},
			Data:  cp,
		})
	}
	return p
}

func TestAdamStep(t *testing.T) {
	params := testParams([]float32{1, 2})
	opt := NewAdam(0.1, 0.9, 0.999, nil)

	require.NoError(t, opt.Step(params, [][]float32{{0.5, -0.5}}))

	// On the first step the bias-corrected update is lr*g/(|g|+eps), so each
	// parameter moves by almost exactly the learning rate against the gradient
	assert.InDelta(t, 0.9, params.Tensors[0].Data[0], 1e-3)
	assert.InDelta(t, 2.1, params.Tensors[0].Data[1], 1e-3)
	assert.Equal(t, 1, opt.State().Step)
}

func TestAdamWarmStartContinues(t *testing.T) {
	grads := [][][]float32{
		{{0.5, -0.25}},
		{{0.125, 0.25}},
		{{-0.5, 0.5}},
		{{0.25, 0.125}},
	}

	// One optimizer running four steps
	straight := testParams([]float32{1, -1})
	opt := NewAdam(0.01, 0, 0.999, nil)
	for _, g := range grads {
		require.NoError(t, opt.Step(straight, g))
	}

	// Three steps, then a fresh construction around the captured state
	resumed := testParams([]float32{1, -1})
	first := NewAdam(0.01, 0, 0.999, nil)
	for _, g := range grads[:3] {
		require.NoError(t, first.Step(resumed, g))
	}
	second := NewAdam(0.01, 0, 0.999, first.State())
	require.NoError(t, second.Step(resumed, grads[3]))

	require.Equal(t, straight, resumed)
	require.Equal(t, 4, second.State().Step)
}

func TestAdamStateCloneIsolated(t *testing.T) {
	params := testParams([]float32{1, 2, 3})
	opt := NewAdam(0.1, 0.9, 0.999, nil)
	require.NoError(t, opt.Step(params, [][]float32{{1, 1, 1}}))

	snapshot := opt.State().Clone()
	saved := snapshot.Clone()

	require.NoError(t, opt.Step(params, [][]float32{{-1, 2, -3}}))
	assert.Equal(t, saved, snapshot, "stepping the optimizer must not touch a clone")
	assert.NotEqual(t, saved.M["w0"], opt.State().M["w0"])
}

func TestAdamZeroBeta1(t *testing.T) {
	// The harness runs with betas (0, 0.999): the first moment is then the
	// raw gradient of the latest step
	params := testParams([]float32{0, 0})
	opt := NewAdam(0.001, 0, 0.999, nil)

	require.NoError(t, opt.Step(params, [][]float32{{0.5, -1}}))
	require.NoError(t, opt.Step(params, [][]float32{{0.25, 2}}))

	assert.Equal(t, []float32{0.25, 2}, opt.State().M["w0"])
}

func TestAdamGradMismatch(t *testing.T) {
	params := testParams([]float32{1, 2})
	opt := NewAdam(0.1, 0.9, 0.999, nil)

	require.Error(t, opt.Step(params, nil))
	require.Error(t, opt.Step(params, [][]float32{{1}}))
}
