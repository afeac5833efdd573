package model

import (
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Machine is the classifier compiled for one batch size and mode. Training
// machines carry the gradient graph and dropout; evaluation machines are
// forward only. Weight nodes view the bound bundle's backing slices, so
// in-place optimizer updates are visible to subsequent runs without
// rebinding.
type Machine struct {
	cfg       Config
	batchSize int
	training  bool

	g       *gorgonia.ExprGraph
	x, y    *gorgonia.Node
	probs   *gorgonia.Node
	loss    *gorgonia.Node
	weights []*gorgonia.Node
	vm      gorgonia.VM
}

// NewMachine builds and compiles the classifier graph for the batch size.
func NewMachine(cfg Config, batchSize int, training bool) (*Machine, error) {
	m := &Machine{
		cfg:       cfg,
		batchSize: batchSize,
		training:  training,
		g:         gorgonia.NewGraph(),
	}
	m.x = gorgonia.NewMatrix(m.g, tensor.Float32, gorgonia.WithShape(batchSize, cfg.NumPixels), gorgonia.WithName("x"))
	m.y = gorgonia.NewMatrix(m.g, tensor.Float32, gorgonia.WithShape(batchSize, cfg.NumClasses), gorgonia.WithName("y"))

	out := m.x
	sizes := cfg.layerSizes()
	for i, sz := range sizes {
		var err error
		out, err = m.denseLayer(out, i, sz[0], sz[1], i < len(sizes)-1)
		if err != nil {
			return nil, err
		}
	}

	var err error
	m.probs, err = gorgonia.SoftMax(out)
	if err != nil {
		return nil, errors.Wrap(err, "building softmax")
	}
	m.loss, err = crossEntropy(m.probs, m.y)
	if err != nil {
		return nil, err
	}

	if training {
		if _, err := gorgonia.Grad(m.loss, m.weights...); err != nil {
			return nil, errors.Wrap(err, "building gradient graph")
		}
		m.vm = gorgonia.NewTapeMachine(m.g, gorgonia.BindDualValues(m.weights...))
	} else {
		m.vm = gorgonia.NewTapeMachine(m.g)
	}
	return m, nil
}

// denseLayer adds the weight nodes for one fully connected layer and returns
// its output. Hidden layers get the nonlinearity and, on training machines,
// dropout.
func (m *Machine) denseLayer(in *gorgonia.Node, layer, fanIn, fanOut int, hidden bool) (*gorgonia.Node, error) {
	w := gorgonia.NewMatrix(m.g, tensor.Float32, gorgonia.WithShape(fanIn, fanOut), gorgonia.WithName(weightName(layer)))
	b := gorgonia.NewMatrix(m.g, tensor.Float32, gorgonia.WithShape(1, fanOut), gorgonia.WithName(biasName(layer)))
	m.weights = append(m.weights, w, b)

	out, err := gorgonia.Mul(in, w)
	if err != nil {
		return nil, errors.Wrapf(err, "layer %d matmul", layer)
	}
	out, err = gorgonia.BroadcastAdd(out, b, nil, []byte{0})
	if err != nil {
		return nil, errors.Wrapf(err, "layer %d bias", layer)
	}
	if !hidden {
		return out, nil
	}
	out, err = gorgonia.Rectify(out)
	if err != nil {
		return nil, errors.Wrapf(err, "layer %d relu", layer)
	}
	if m.training && m.cfg.Dropout > 0 {
		out, err = gorgonia.Dropout(out, m.cfg.Dropout)
		if err != nil {
			return nil, errors.Wrapf(err, "layer %d dropout", layer)
		}
	}
	return out, nil
}

// crossEntropy is the mean negative log likelihood of the one-hot labels,
// stabilized with a small epsilon before the log.
func crossEntropy(probs, labels *gorgonia.Node) (*gorgonia.Node, error) {
	eps := gorgonia.NodeFromAny(probs.Graph(), float32(1e-7))
	safe, err := gorgonia.Add(probs, eps)
	if err != nil {
		return nil, errors.Wrap(err, "building loss")
	}
	logProbs, err := gorgonia.Log(safe)
	if err != nil {
		return nil, errors.Wrap(err, "building loss")
	}
	mul, err := gorgonia.HadamardProd(labels, logProbs)
	if err != nil {
		return nil, errors.Wrap(err, "building loss")
	}
	sum, err := gorgonia.Sum(mul, 1)
	if err != nil {
		return nil, errors.Wrap(err, "building loss")
	}
	mean, err := gorgonia.Mean(sum)
	if err != nil {
		return nil, errors.Wrap(err, "building loss")
	}
	loss, err := gorgonia.Neg(mean)
	if err != nil {
		return nil, errors.Wrap(err, "building loss")
	}
	return loss, nil
}

// Bind attaches the parameter bundle to the graph's weight nodes. The bound
// tensors share the bundle's backing slices.
func (m *Machine) Bind(params *Params) error {
	if len(params.Tensors) != len(m.weights) {
		return errors.Errorf("parameter bundle has %d tensors, graph wants %d", len(params.Tensors), len(m.weights))
	}
	for i, node := range m.weights {
		p := params.Tensors[i]
		if p.Name != node.Name() {
			return errors.Errorf("parameter %s does not match graph weight %s", p.Name, node.Name())
		}
		val := tensor.New(tensor.WithShape(p.Shape...), tensor.WithBacking(p.Data))
		if err := gorgonia.Let(node, val); err != nil {
			return errors.Wrapf(err, "binding %s", p.Name)
		}
	}
	return nil
}

// Run executes the graph on one batch and returns the batch loss. On training
// machines the run also leaves fresh parameter gradients, readable through
// Grads until Reset.
func (m *Machine) Run(inputs, labels *tensor.Dense) (float64, error) {
	if err := gorgonia.Let(m.x, inputs); err != nil {
		return 0, errors.Wrap(err, "binding inputs")
	}
	if err := gorgonia.Let(m.y, labels); err != nil {
		return 0, errors.Wrap(err, "binding labels")
	}
	if err := m.vm.RunAll(); err != nil {
		return 0, errors.Wrap(err, "running classifier graph")
	}

	switch v := m.loss.Value().Data().(type) {
	case float32:
		return float64(v), nil
	case []float32:
		return float64(v[0]), nil
	default:
		return 0, errors.Errorf("unexpected loss value type %T", m.loss.Value().Data())
	}
}

// Grads returns the parameter gradients of the last Run, ordered like the
// bound bundle. The slices view live graph state and are only valid until
// Reset.
func (m *Machine) Grads() ([][]float32, error) {
	if !m.training {
		return nil, errors.New("gradients are only available on training machines")
	}
	grads := make([][]float32, len(m.weights))
	for i, node := range m.weights {
		grad, err := node.Grad()
		if err != nil {
			return nil, errors.Wrapf(err, "reading gradient of %s", node.Name())
		}
		grads[i] = grad.Data().([]float32)
	}
	return grads, nil
}

// Probs returns the class probabilities of the last Run as a flat
// (batch x classes) slice, valid until the next Run.
func (m *Machine) Probs() []float32 {
	return m.probs.Value().Data().([]float32)
}

// Reset rewinds the machine so the next batch can run.
func (m *Machine) Reset() {
	m.vm.Reset()
}

// Close releases the compiled machine.
func (m *Machine) Close() error {
	return m.vm.Close()
}

// BatchSize returns the batch size the graph was compiled for.
func (m *Machine) BatchSize() int {
	return m.batchSize
}

// NumClasses returns the output width of the classifier.
func (m *Machine) NumClasses() int {
	return m.cfg.NumClasses
}

// Training reports whether the machine carries the gradient graph.
func (m *Machine) Training() bool {
	return m.training
}
