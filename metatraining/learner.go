package metatraining

import (
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"

	"github.com/metalearn/reptile/device"
	"github.com/metalearn/reptile/minibatch"
	"github.com/metalearn/reptile/model"
	"github.com/metalearn/reptile/optimize"
)

// Learn adapts params in place with steps supervised updates drawn from the
// iterator and returns the loss of the final step.
func Learn(m *model.Machine, params *model.Params, opt *optimize.Adam, placer *device.Placer, batches *minibatch.Iterator, steps int) (float64, error) {
	if err := m.Bind(params); err != nil {
		return 0, err
	}
	var last float64
	for step := 0; step < steps; step++ {
		inputs, labels := batches.Next()
		loss, err := m.Run(placer.Inputs(inputs), placer.Labels(labels, m.NumClasses()))
		if err != nil {
			return 0, errors.Wrapf(err, "inner step %d", step)
		}
		grads, err := m.Grads()
		if err != nil {
			return 0, errors.Wrapf(err, "inner step %d", step)
		}
		if err := opt.Step(params, grads); err != nil {
			return 0, errors.Wrapf(err, "inner step %d", step)
		}
		m.Reset()
		last = loss
	}
	return last, nil
}

// Evaluate scores params on steps forward-only batches and returns the mean
// loss and mean argmax accuracy. The machine must be an evaluation machine,
// so dropout stays off and no gradient state exists to leak.
func Evaluate(m *model.Machine, params *model.Params, placer *device.Placer, batches *minibatch.Iterator, steps int) (float64, float64, error) {
	if m.Training() {
		return 0, 0, errors.New("evaluation needs a forward-only machine")
	}
	if err := m.Bind(params); err != nil {
		return 0, 0, err
	}
	losses := make([]float64, 0, steps)
	accuracies := make([]float64, 0, steps)
	for step := 0; step < steps; step++ {
		inputs, labels := batches.Next()
		loss, err := m.Run(placer.Inputs(inputs), placer.Labels(labels, m.NumClasses()))
		if err != nil {
			return 0, 0, errors.Wrapf(err, "evaluation step %d", step)
		}
		losses = append(losses, loss)
		accuracies = append(accuracies, accuracy(m.Probs(), labels, m.NumClasses()))
		m.Reset()
	}
	meanLoss, err := stats.Mean(losses)
	if err != nil {
		return 0, 0, errors.Wrap(err, "averaging losses")
	}
	meanAccuracy, err := stats.Mean(accuracies)
	if err != nil {
		return 0, 0, errors.Wrap(err, "averaging accuracies")
	}
	return meanLoss, meanAccuracy, nil
}

// accuracy scores argmax predictions against the labels. Ties resolve to the
// lowest class index.
func accuracy(probs []float32, labels []int, numClasses int) float64 {
	correct := 0
	for i, label := range labels {
		row := probs[i*numClasses : (i+1)*numClasses]
		pred := 0
		for j, p := range row {
			if p > row[pred] {
				pred = j
			}
		}
		if pred == label {
			correct++
		}
	}
	return float64(correct) / float64(len(labels))
}
