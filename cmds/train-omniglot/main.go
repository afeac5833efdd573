package main

import (
	"log"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/alexflint/go-arg"
	"github.com/sbwhitecap/tqdm"
	"github.com/sbwhitecap/tqdm/iterators"

	"github.com/metalearn/reptile/checkpoint"
	"github.com/metalearn/reptile/device"
	"github.com/metalearn/reptile/metatraining"
	"github.com/metalearn/reptile/metrics"
	"github.com/metalearn/reptile/omniglot"
	"github.com/metalearn/reptile/serialization"
)

func fail(err error) {
	if err != nil {
		log.Fatalln(err)
	}
}

func main() {
	args := struct {
		Classes    int `help:"classes per task (N in N-way)"`
		Shots      int `help:"shots per class for evaluation tasks"`
		TrainShots int `arg:"--trainshots" help:"shots per class for meta-training tasks, zero or less falls back to --shots"`

		MetaIterations     int `help:"total outer-loop iterations"`
		StartMetaIteration int `help:"outer-loop iteration to start at"`
		Iterations         int `help:"inner supervised steps per meta-iteration"`
		TestIterations     int `help:"inner steps an evaluation adapts for"`
		Batch              int `help:"inner minibatch size"`

		MetaLR  float64 `arg:"--metalr" help:"base meta learning rate, annealed linearly to zero"`
		LR      float64 `arg:"--lr" help:"inner Adam learning rate"`
		Beta1   float64
		Beta2   float64
		Dropout float64 `help:"drop probability for hidden activations during adaptation"`

		Validation    float64 `help:"fraction of character classes held out for meta-testing"`
		ValidateEvery int     `help:"evaluation cadence in meta-iterations"`
		CheckEvery    int     `help:"checkpoint cadence in meta-iterations"`

		Input     string `help:"root directory of the omniglot dataset"`
		LogDir    string `arg:"--logdir,required" help:"directory for checkpoints and scalar logs"`
		Output    string `help:"optional path to write the final meta-parameters to"`
		Resume    string `help:"checkpoint file to resume from"`
		CUDA      int    `arg:"--cuda" help:"set to 1 to run on CUDA"`
		Seed      int64
		CacheSize int `help:"transformed images held in memory"`
	}{
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
		Validation:     0.1,
		ValidateEvery:  100,
		CheckEvery:     1000,
		Input:          "omniglot",
		Seed:           42,
		CacheSize:      omniglot.DefaultCacheSize,
	}
	arg.MustParse(&args)

	dev, err := device.FromFlag(args.CUDA)
	fail(err)

	fail(os.MkdirAll(args.LogDir, os.ModePerm))
	sink, err := metrics.NewJSONLSink(filepath.Join(args.LogDir, "scalars.jsonl"))
	fail(err)
	defer sink.Close()
	manager, err := checkpoint.NewManager(filepath.Join(args.LogDir, "checkpoint"))
	fail(err)

	ds, err := omniglot.Scan(args.Input)
	fail(err)
	metaTrain, metaTest := ds.Split(args.Validation, rand.New(rand.NewSource(args.Seed)))
	log.Printf("scanned %d character classes under %s: %d meta-train, %d meta-test",
		len(ds.Classes), args.Input, len(metaTrain.Classes), len(metaTest.Classes))

	cache, err := omniglot.NewImageCache(args.CacheSize)
	fail(err)

	cfg := metatraining.Config{
		Classes:        args.Classes,
		Shots:          args.Shots,
		TrainShots:     args.TrainShots,
		MetaIterations: args.MetaIterations,
		StartIteration: args.StartMetaIteration,
		Iterations:     args.Iterations,
		TestIterations: args.TestIterations,
		Batch:          args.Batch,
		MetaLR:         args.MetaLR,
		LR:             args.LR,
		Beta1:          args.Beta1,
		Beta2:          args.Beta2,
		Dropout:        args.Dropout,
		ValidateEvery:  args.ValidateEvery,
		CheckEvery:     args.CheckEvery,
		Seed:           args.Seed,
	}
	inputs := metatraining.Inputs{
		MetaTrain:   omniglot.NewSampler(metaTrain, cache),
		MetaTest:    omniglot.NewSampler(metaTest, cache),
		Placer:      device.NewPlacer(dev),
		Sink:        sink,
		Checkpoints: manager,
	}

	var trainer *metatraining.Trainer
	if args.Resume != "" {
		snap, err := checkpoint.Load(args.Resume)
		fail(err)
		trainer, err = metatraining.Resume(cfg, inputs, snap)
		fail(err)
		log.Printf("resumed from %s at meta-iteration %d", args.Resume, trainer.Iteration())
	} else {
		trainer, err = metatraining.NewTrainer(cfg, inputs)
		fail(err)
	}
	defer trainer.Close()

	log.Printf("meta-training %d-way %d-shot on %s, %d iterations to go",
		args.Classes, cfg.TrainShotsOrDefault(), dev, args.MetaIterations-trainer.Iteration())

	var runErr error
	fail(tqdm.With(iterators.Interval(trainer.Iteration(), args.MetaIterations), "meta-training", func(_ interface{}) (brk bool) {
		if _, runErr = trainer.RunIteration(); runErr != nil {
			return true
		}
		return
	}))
	fail(runErr)

	if args.Output != "" {
		fail(serialization.Encode(args.Output, trainer.MetaParams()))
		log.Printf("wrote final meta-parameters to %s", args.Output)
	}
}
