package metatraining

import (
	"log"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/metalearn/reptile/checkpoint"
	"github.com/metalearn/reptile/device"
	"github.com/metalearn/reptile/metrics"
	"github.com/metalearn/reptile/minibatch"
	"github.com/metalearn/reptile/model"
	"github.com/metalearn/reptile/omniglot"
	"github.com/metalearn/reptile/optimize"
)

// Inputs bundles the collaborators a Trainer drives.
type Inputs struct {
	// MetaTrain samples adaptation tasks and same-distribution
	// validation tasks.
	MetaTrain *omniglot.Sampler
	// MetaTest samples validation tasks from classes the meta-model
	// never adapts on outside evaluation.
	MetaTest *omniglot.Sampler
	// Placer stages batches onto the compute device.
	Placer *device.Placer
	// Sink receives every recorded scalar. Nil discards.
	Sink metrics.Sink
	// Checkpoints persists snapshots on the checkpoint cadence. Nil
	// disables checkpointing.
	Checkpoints *checkpoint.Manager
}

// Stats reports what one meta-iteration did, for progress displays.
type Stats struct {
	Iteration int
	MetaLR    float64
	TrainLoss float64
}

// Trainer owns the meta-model and drives the outer loop. It is single
// threaded: one meta-iteration is fully applied before the next begins, so
// every iteration adapts from the freshest meta-parameters.
type Trainer struct {
	cfg    Config
	inputs Inputs

	rng  *rand.Rand
	meta *model.Params

	trainMachine *model.Machine
	evalMachine  *model.Machine

	metaOpt   *optimize.SGD
	baseState *optimize.AdamState

	// displacement buffers, one per meta tensor, reused across iterations
	slots [][]float32

	ledger      metrics.Ledger
	iteration   int
	resumedFrom int
}

// NewTrainer initializes a fresh meta-model and compiles the machines for a
// run starting at Config.StartIteration.
func NewTrainer(cfg Config, inputs Inputs) (*Trainer, error) {
	rng := rand.New(rand.NewSource(cfg.Seed))
	modelCfg := model.DefaultConfig(cfg.Classes)
	modelCfg.Dropout = cfg.Dropout
	meta := model.NewParams(modelCfg, rng)

	return newTrainer(cfg, inputs, rng, meta,
		optimize.NewSGDState(), optimize.NewAdamState(), metrics.NewLedger(),
		cfg.StartIteration, -1)
}

// Resume rebuilds a trainer from a snapshot, continuing at the saved
// iteration with the saved meta-model, optimizer states and metric history.
func Resume(cfg Config, inputs Inputs, snap *checkpoint.Snapshot) (*Trainer, error) {
	rng := rand.New(rand.NewSource(cfg.Seed))
	return newTrainer(cfg, inputs, rng, snap.MetaParams,
		snap.MetaOpt, snap.BaseOpt, snap.Ledger,
		snap.MetaIteration, snap.MetaIteration)
}

func newTrainer(cfg Config, inputs Inputs, rng *rand.Rand, meta *model.Params,
	metaState *optimize.SGDState, baseState *optimize.AdamState, ledger metrics.Ledger,
	startAt, resumedFrom int) (*Trainer, error) {

	if cfg.MetaIterations <= 0 {
		return nil, errors.Errorf("meta iterations must be positive, got %d", cfg.MetaIterations)
	}
	if cfg.Batch <= 0 {
		return nil, errors.Errorf("batch size must be positive, got %d", cfg.Batch)
	}

	modelCfg := model.DefaultConfig(cfg.Classes)
	modelCfg.Dropout = cfg.Dropout

	trainMachine, err := model.NewMachine(modelCfg, cfg.Batch, true)
	if err != nil {
		return nil, errors.Wrap(err, "compiling training machine")
	}
	evalMachine, err := model.NewMachine(modelCfg, cfg.Batch, false)
	if err != nil {
		trainMachine.Close()
		return nil, errors.Wrap(err, "compiling evaluation machine")
	}

	slots := make([][]float32, len(meta.Tensors))
	for i, p := range meta.Tensors {
		slots[i] = make([]float32, len(p.Data))
	}

	return &Trainer{
		cfg:          cfg,
		inputs:       inputs,
		rng:          rng,
		meta:         meta,
		trainMachine: trainMachine,
		evalMachine:  evalMachine,
		metaOpt:      optimize.NewSGD(0, metaState),
		baseState:    baseState,
		slots:        slots,
		ledger:       ledger,
		iteration:    startAt,
		resumedFrom:  resumedFrom,
	}, nil
}

// Iteration returns the next meta-iteration index to run.
func (t *Trainer) Iteration() int {
	return t.iteration
}

// Done reports whether the loop bound is reached.
func (t *Trainer) Done() bool {
	return t.iteration >= t.cfg.MetaIterations
}

// MetaParams exposes the live meta-parameters, for exporting final weights.
func (t *Trainer) MetaParams() *model.Params {
	return t.meta
}

// Ledger exposes the accumulated metric history.
func (t *Trainer) Ledger() metrics.Ledger {
	return t.ledger
}

// RunIteration executes one meta-iteration: anneal the meta rate, adapt a
// clone of the meta-model on a fresh task, pull the meta-model toward the
// adapted weights, then run whatever the validation and checkpoint cadences
// owe for this index. Both cadences fire at iteration zero.
func (t *Trainer) RunIteration() (Stats, error) {
	if t.Done() {
		return Stats{}, errors.Errorf("meta-iteration %d is past the bound %d", t.iteration, t.cfg.MetaIterations)
	}
	i := t.iteration
	metaLR := t.cfg.MetaLRAt(i)

	task, err := t.inputs.MetaTrain.SampleTask(t.rng, t.cfg.Classes, t.cfg.TrainShotsOrDefault())
	if err != nil {
		return Stats{}, errors.Wrapf(err, "meta-iteration %d", i)
	}

	adapted := t.meta.Clone()
	opt := optimize.NewAdam(t.cfg.LR, t.cfg.Beta1, t.cfg.Beta2, t.baseState)
	batches := minibatch.New(task, t.cfg.Batch, t.rng)
	trainLoss, err := Learn(t.trainMachine, adapted, opt, t.inputs.Placer, batches, t.cfg.Iterations)
	if err != nil {
		return Stats{}, errors.Wrapf(err, "meta-iteration %d", i)
	}
	t.baseState = opt.State()

	if err := t.interpolate(adapted, metaLR); err != nil {
		return Stats{}, errors.Wrapf(err, "meta-iteration %d", i)
	}

	if t.cfg.ValidateEvery > 0 && i%t.cfg.ValidateEvery == 0 {
		if err := t.validate(i, metaLR); err != nil {
			return Stats{}, err
		}
		if t.shouldCheckpoint(i) {
			if err := t.saveCheckpoint(i); err != nil {
				return Stats{}, err
			}
		}
	}

	t.iteration++
	return Stats{Iteration: i, MetaLR: metaLR, TrainLoss: trainLoss}, nil
}

// Run drives the loop from the current iteration to the bound. The progress
// callback, when non-nil, observes every iteration.
func (t *Trainer) Run(progress func(Stats)) error {
	for !t.Done() {
		stats, err := t.RunIteration()
		if err != nil {
			return err
		}
		if progress != nil {
			progress(stats)
		}
	}
	return nil
}

// interpolate pulls the meta-model toward the adapted parameters by metaLR.
// The displacement meta minus adapted fills the gradient slot of each
// tensor, making the interpolation exactly one meta optimizer step.
func (t *Trainer) interpolate(adapted *model.Params, metaLR float64) error {
	if len(adapted.Tensors) != len(t.meta.Tensors) {
		return errors.Errorf("adapted bundle has %d tensors, meta-model has %d", len(adapted.Tensors), len(t.meta.Tensors))
	}
	for i, p := range t.meta.Tensors {
		optimize.Copy(t.slots[i], p.Data)
		optimize.Axpy(-1, adapted.Tensors[i].Data, t.slots[i])
	}
	return t.metaOpt.Step(t.meta, t.slots, metaLR)
}

// validate adapts throwaway clones on one task from each pool and scores
// them on held-out shots, recording per-iteration scalars and logging
// running means.
func (t *Trainer) validate(iteration int, metaLR float64) error {
	log.Printf("meta-iteration %d: meta_lr=%.6f", iteration, metaLR)
	branches := []struct {
		sampler *omniglot.Sampler
		mode    string
	}{
		{t.inputs.MetaTrain, "train"},
		{t.inputs.MetaTest, "val"},
	}
	for _, b := range branches {
		loss, accuracy, err := t.evaluateBranch(b.sampler)
		if err != nil {
			return errors.Wrapf(err, "validating %s pool", b.mode)
		}
		t.record(b.mode+"_loss", iteration, loss)
		t.record(b.mode+"_accuracy", iteration, accuracy)

		meanLoss, err := t.ledger.Mean(b.mode + "_loss")
		if err != nil {
			return err
		}
		meanAccuracy, err := t.ledger.Mean(b.mode + "_accuracy")
		if err != nil {
			return err
		}
		log.Printf("%s: loss=%.4f (mean %.4f) accuracy=%.4f (mean %.4f)",
			b.mode, loss, meanLoss, accuracy, meanAccuracy)
	}
	t.record("meta_lr", iteration, metaLR)
	return nil
}

// evaluateBranch clones everything it touches: the meta-model, and the base
// optimizer state, so whatever evaluation does to its optimizer stays there.
func (t *Trainer) evaluateBranch(sampler *omniglot.Sampler) (float64, float64, error) {
	train, test, err := sampler.SampleTaskSplit(t.rng, t.cfg.Classes, t.cfg.Shots, EvalTestShots)
	if err != nil {
		return 0, 0, err
	}

	adapted := t.meta.Clone()
	opt := optimize.NewAdam(t.cfg.LR, t.cfg.Beta1, t.cfg.Beta2, t.baseState.Clone())
	trainBatches := minibatch.New(train, t.cfg.Batch, t.rng)
	if _, err := Learn(t.trainMachine, adapted, opt, t.inputs.Placer, trainBatches, t.cfg.TestIterations); err != nil {
		return 0, 0, err
	}

	testBatches := minibatch.New(test, t.cfg.Batch, t.rng)
	return Evaluate(t.evalMachine, adapted, t.inputs.Placer, testBatches, 1)
}

func (t *Trainer) record(metric string, iteration int, value float64) {
	t.ledger.Record(metric, iteration, value)
	if t.inputs.Sink == nil {
		return
	}
	if err := t.inputs.Sink.LogScalar(metric, iteration, value); err != nil {
		log.Printf("scalar sink: %v", err)
	}
}

// shouldCheckpoint gates the checkpoint cadence. The iteration a run resumed
// at is not re-saved, since its snapshot is the one just loaded.
func (t *Trainer) shouldCheckpoint(iteration int) bool {
	if t.inputs.Checkpoints == nil || t.cfg.CheckEvery <= 0 {
		return false
	}
	if iteration%t.cfg.CheckEvery != 0 {
		return false
	}
	return iteration != t.resumedFrom
}

// saveCheckpoint snapshots deep copies, so later iterations cannot mutate
// what was captured.
func (t *Trainer) saveCheckpoint(iteration int) error {
	snap := &checkpoint.Snapshot{
		MetaIteration: iteration,
		MetaParams:    t.meta.Clone(),
		MetaOpt:       t.metaOpt.State().Clone(),
		BaseOpt:       t.baseState.Clone(),
		Ledger:        t.ledger.Clone(),
	}
	if err := t.inputs.Checkpoints.Save(snap); err != nil {
		return err
	}
	log.Printf("saved checkpoint %s", t.inputs.Checkpoints.Path(iteration))
	return nil
}

// Close releases the compiled machines.
func (t *Trainer) Close() error {
	err := t.trainMachine.Close()
	if cerr := t.evalMachine.Close(); err == nil {
		err = cerr
	}
	return err
}
