// Package main provides the tucker CLI: it reads a run description, spawns
// an SPMD world over the requested process grid, and runs the distributed
// HOOI Tucker decomposition on a random tensor.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"sync"

	"github.com/dustin/go-humanize"
	"k8s.io/klog/v2"

	"github.com/tucker-ml/tucker/internal/comm"
	"github.com/tucker-ml/tucker/internal/config"
	"github.com/tucker-ml/tucker/internal/dist"
	"github.com/tucker-ml/tucker/internal/summary"
	"github.com/tucker-ml/tucker/internal/tensor"
	"github.com/tucker-ml/tucker/internal/tucker"
)

var (
	iters = flag.Int("iters", 5, "number of HOOI sweeps")
	seed  = flag.Int64("seed", 20000905, "base random seed; rank r draws from seed+r")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: tucker [flags] <input-file>")
		os.Exit(2)
	}

	if err := run(flag.Arg(0)); err != nil {
		klog.Errorf("tucker: %v", err)
		klog.Flush()
		os.Exit(1)
	}
	klog.Flush()
}

func run(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	world, err := comm.NewWorld(cfg.WorldSize())
	if err != nil {
		return err
	}
	elemBytes := uint64(cfg.Extents.NumElements()) * 8
	klog.Infof("world of %d ranks over grid %v, %d workers per rank", cfg.WorldSize(), cfg.Par, runtime.GOMAXPROCS(0))
	klog.Infof("tensor %v (%s), target ranks %v, %d sweeps", cfg.Extents, humanize.IBytes(elemBytes), cfg.Ranks, *iters)

	errs := make([]error, cfg.WorldSize())
	var wg sync.WaitGroup
	for r, c := range world {
		wg.Add(1)
		go func(r int, c *comm.Comm) {
			defer wg.Done()
			errs[r] = runRank(c, cfg)
		}(r, c)
	}
	wg.Wait()

	for r, err := range errs {
		if err != nil {
			return fmt.Errorf("rank %d: %w", r, err)
		}
	}
	fmt.Print(summary.String())
	return nil
}

// runRank is the SPMD body: every rank builds its block of the random
// input tensor and joins the decomposition.
func runRank(c *comm.Comm, cfg *config.Config) error {
	d, err := dist.NewCartesianBlock(cfg.Par, c)
	if err != nil {
		return err
	}
	a, err := tensor.NewBlock[float64](d, cfg.Extents)
	if err != nil {
		return err
	}
	a.Randn(rand.New(rand.NewSource(*seed + int64(c.Rank()))))

	_, _, err = tucker.HOOIALS(a, cfg.Ranks, *iters)
	return err
}
