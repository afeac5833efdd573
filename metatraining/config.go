package metatraining

// EvalTestShots is the number of held-out shots per class an evaluation
// scores on, fixed regardless of the shot counts used for adaptation.
const EvalTestShots = 5

// Config carries every knob of a meta-training run. Everything reaches the
// trainer through this struct; nothing reads flags or globals past main.
type Config struct {
	// Classes is the N of each N-way task.
	Classes int
	// Shots is the K of each N-way K-shot evaluation task.
	Shots int
	// TrainShots is the shot count for meta-training tasks. Zero or
	// negative falls back to Shots.
	TrainShots int

	// MetaIterations is the exclusive upper bound of the outer loop.
	MetaIterations int
	// StartIteration is where the outer loop begins, nonzero only when
	// resuming.
	StartIteration int
	// Iterations is the number of inner supervised steps per
	// meta-iteration.
	Iterations int
	// TestIterations is the number of inner steps an evaluation adapts
	// for before scoring.
	TestIterations int

	// Batch is the fixed minibatch size of the inner loop.
	Batch int

	// MetaLR is the base meta learning rate, annealed linearly to zero
	// across the run.
	MetaLR float64
	// LR is the inner Adam learning rate.
	LR float64
	// Beta1 and Beta2 are the inner Adam moment decays.
	Beta1 float64
	Beta2 float64

	// Dropout is the drop probability applied to hidden activations
	// during adaptation.
	Dropout float64

	// ValidateEvery is the evaluation cadence in meta-iterations.
	ValidateEvery int
	// CheckEvery is the checkpoint cadence in meta-iterations.
	// Checkpoints land on validation boundaries.
	CheckEvery int

	// Seed feeds the single random stream behind initialization,
	// sampling and shuffling.
	Seed int64
}

// DefaultConfig mirrors the stock Omniglot run.
func DefaultConfig() Config {
	return Config{
		Classes:        5,
		Shots:          5,
		TrainShots:     10,
		MetaIterations: 100000,
		Iterations:     5,
		TestIterations: 50,
		Batch:          10,
		MetaLR:         1,
		LR:             1e-3,
		Beta1:          0,
		Beta2:          0.999,
		ValidateEvery:  100,
		CheckEvery:     1000,
		Seed:           42,
	}
}

// TrainShotsOrDefault resolves the TrainShots fallback.
func (c Config) TrainShotsOrDefault() int {
	if c.TrainShots <= 0 {
		return c.Shots
	}
	return c.TrainShots
}

// MetaLRAt returns the annealed meta learning rate for an iteration: the
// base rate scaled by the fraction of the run remaining. It decreases
// monotonically and reaches exactly zero at MetaIterations.
func (c Config) MetaLRAt(iteration int) float64 {
	return c.MetaLR * (1 - float64(iteration)/float64(c.MetaIterations))
}
