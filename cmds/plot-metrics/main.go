package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/alexflint/go-arg"

	"github.com/metalearn/reptile/checkpoint"
	"github.com/metalearn/reptile/metrics"
)

func fail(err error) {
	if err != nil {
		log.Fatalln(err)
	}
}

func main() {
	args := struct {
		Checkpoint string `help:"snapshot file to plot, overrides --logdir"`
		LogDir     string `arg:"--logdir" help:"training log directory, the newest checkpoint under it is plotted"`
		Output     string `help:"directory to write PNG curves to"`
	}{
		Output: "plots",
	}
	arg.MustParse(&args)

	path := args.Checkpoint
	if path == "" {
		if args.LogDir == "" {
			log.Fatalln("pass --checkpoint or --logdir")
		}
		var err error
		path, err = checkpoint.Latest(filepath.Join(args.LogDir, "checkpoint"))
		fail(err)
	}

	snap, err := checkpoint.Load(path)
	fail(err)
	log.Printf("plotting %d metrics from %s, saved at meta-iteration %d",
		len(snap.Ledger), path, snap.MetaIteration)

	fail(os.MkdirAll(args.Output, os.ModePerm))
	fail(metrics.RenderCurves(snap.Ledger, args.Output))
	log.Printf("wrote curves to %s", args.Output)
}
