package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/simidx"
)

// indexFlags selects the index when no config file is given.
type indexFlags struct {
	config    string
	kind      string
	dimension int
	distance  string
	capacity  int
	logLevel  string
}

func (f *indexFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.config, "config", "c", "", "YAML index config (overrides the other index flags)")
	cmd.Flags().StringVar(&f.kind, "kind", "mtree", "Tree family: mtree or rstar")
	cmd.Flags().IntVarP(&f.dimension, "dim", "d", 8, "Vector dimension")
	cmd.Flags().StringVar(&f.distance, "distance", "euclidean", "Distance function")
	cmd.Flags().IntVar(&f.capacity, "capacity", 0, "Node capacity (0 = default)")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error); empty disables logging")
}

func (f *indexFlags) load() (simidx.Config, error) {
	if f.config != "" {
		return simidx.LoadConfig(f.config)
	}
	cfg := simidx.Config{
		Kind:      f.kind,
		Dimension: f.dimension,
		Distance:  f.distance,
		Capacity:  f.capacity,
		Log:       simidx.LogConfig{Level: f.logLevel},
	}
	return cfg, cfg.Validate()
}

func (f *indexFlags) open(ctx context.Context) (*simidx.Index[struct{}], simidx.Config, error) {
	cfg, err := f.load()
	if err != nil {
		return nil, cfg, err
	}
	idx, err := simidx.NewFromConfig[struct{}](ctx, cfg)
	if err != nil {
		return nil, cfg, fmt.Errorf("failed to open index: %w", err)
	}
	return idx, cfg, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "simidx",
		Short: "Build, benchmark and check similarity indexes",
		Long: `simidx drives the M-tree and R*-tree indexes of the simidx module.

Example usage:
  simidx bench --kind rstar --dim 2 -n 100000     # Benchmark an in-memory R*-tree
  simidx bench -c index.yaml --bulk               # Benchmark the index of a config file
  simidx check vectors.txt --kind mtree           # Index a vector file and verify the tree`,
		SilenceUsage: true,
	}
	root.AddCommand(newBenchCmd(), newCheckCmd())
	return root
}
