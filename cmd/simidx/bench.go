package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"

	"github.com/hupe1980/simidx"
	"github.com/hupe1980/simidx/model"
	"github.com/hupe1980/simidx/testutil"
)

type benchOptions struct {
	index   indexFlags
	n       int
	queries int
	k       int
	seed    int64
	bulk    bool
	verify  bool
	json    bool
}

// benchReport is the outcome of one benchmark run.
type benchReport struct {
	Kind       string  `json:"kind"`
	Distance   string  `json:"distance"`
	Objects    int     `json:"objects"`
	Height     int     `json:"height"`
	Nodes      int     `json:"nodes"`
	AvgFill    float64 `json:"avg_fill"`
	BuildMs    float64 `json:"build_ms"`
	KNNMeanUs  float64 `json:"knn_mean_us"`
	KNNP99Us   float64 `json:"knn_p99_us"`
	RangeRad   float64 `json:"range_radius"`
	RangeHits  float64 `json:"range_mean_hits"`
	RangeMean  float64 `json:"range_mean_us"`
	Recall     float64 `json:"recall,omitempty"`
	Mismatches int     `json:"range_mismatches,omitempty"`
}

func newBenchCmd() *cobra.Command {
	var opts benchOptions
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark inserts, KNN and range queries on random vectors",
		Long: `Build an index over uniform random vectors and time KNN and range queries.

The range radius is the median distance between queries and indexed vectors
divided by ten. With --verify every answer is compared against a linear scan.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := runBench(cmd, opts)
			if err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), report, opts.json)
		},
	}
	opts.index.register(cmd)
	cmd.Flags().IntVarP(&opts.n, "num", "n", 10000, "Number of indexed vectors")
	cmd.Flags().IntVarP(&opts.queries, "queries", "q", 100, "Number of queries")
	cmd.Flags().IntVarP(&opts.k, "k", "k", 10, "Neighbors per KNN query")
	cmd.Flags().Int64Var(&opts.seed, "seed", 1, "Random seed")
	cmd.Flags().BoolVar(&opts.bulk, "bulk", false, "Bulk load instead of inserting one by one")
	cmd.Flags().BoolVar(&opts.verify, "verify", false, "Compare results against a linear scan")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Output in JSON format")
	return cmd
}

func runBench(cmd *cobra.Command, opts benchOptions) (benchReport, error) {
	ctx := cmd.Context()
	idx, cfg, err := opts.index.open(ctx)
	if err != nil {
		return benchReport{}, err
	}
	defer idx.Close()

	rng := testutil.NewRNG(opts.seed)
	vecs := rng.UniformVectors(opts.n, cfg.Dimension)
	queries := rng.UniformVectors(opts.queries, cfg.Dimension)

	start := time.Now()
	if opts.bulk {
		objs := make([]simidx.Object[struct{}], len(vecs))
		for i, v := range vecs {
			objs[i].Vector = v
		}
		if _, err := idx.BulkLoad(ctx, objs); err != nil {
			return benchReport{}, err
		}
	} else {
		for _, v := range vecs {
			if _, err := idx.Insert(ctx, simidx.Object[struct{}]{Vector: v}); err != nil {
				return benchReport{}, err
			}
		}
	}
	build := time.Since(start)

	stats, err := idx.Stats()
	if err != nil {
		return benchReport{}, err
	}
	report := benchReport{
		Kind:     string(idx.Kind()),
		Distance: idx.Distance().Name(),
		Objects:  idx.Len(),
		Height:   stats.Height,
		Nodes:    stats.Nodes,
		AvgFill:  stats.AvgFill,
		BuildMs:  float64(build.Microseconds()) / 1000,
	}
	if len(queries) == 0 || len(vecs) == 0 {
		return report, nil
	}

	latencies := make([]float64, len(queries))
	var recall float64
	for i, q := range queries {
		start := time.Now()
		res, err := idx.KNN(ctx, q, opts.k)
		if err != nil {
			return benchReport{}, err
		}
		latencies[i] = float64(time.Since(start).Nanoseconds()) / 1000
		if opts.verify {
			truth := testutil.BruteForceKNN(idx.Distance(), vecs, q, opts.k)
			recall += testutil.ComputeRecall(truth, neighbors(res))
		}
	}
	slices.Sort(latencies)
	report.KNNMeanUs = stat.Mean(latencies, nil)
	report.KNNP99Us = stat.Quantile(0.99, stat.Empirical, latencies, nil)
	if opts.verify {
		report.Recall = recall / float64(len(queries))
	}

	report.RangeRad = medianDistance(idx, vecs, queries) / 10
	hits := make([]float64, len(queries))
	for i, q := range queries {
		start := time.Now()
		res, err := idx.Range(ctx, q, report.RangeRad)
		if err != nil {
			return benchReport{}, err
		}
		latencies[i] = float64(time.Since(start).Nanoseconds()) / 1000
		hits[i] = float64(len(res))
		if opts.verify {
			truth := testutil.BruteForceRange(idx.Distance(), vecs, q, report.RangeRad)
			if len(truth) != len(res) {
				report.Mismatches++
			}
		}
	}
	report.RangeMean = stat.Mean(latencies, nil)
	report.RangeHits = stat.Mean(hits, nil)
	return report, nil
}

// medianDistance estimates the median query-to-object distance from a sample.
func medianDistance(idx *simidx.Index[struct{}], vecs, queries []model.Vector) float64 {
	dist := idx.Distance()
	step := max(1, len(vecs)/1000)
	var sample []float64
	for _, q := range queries {
		for i := 0; i < len(vecs); i += step {
			sample = append(sample, dist.Distance(q, vecs[i]))
		}
	}
	slices.Sort(sample)
	return stat.Quantile(0.5, stat.Empirical, sample, nil)
}

// neighbors maps facade ids back to vector positions, which are id-1 for a
// freshly built index.
func neighbors(res []simidx.SearchResult[struct{}]) model.NeighborList {
	out := make(model.NeighborList, len(res))
	for i, r := range res {
		out[i] = model.Neighbor{Distance: r.Distance, ID: r.ID - 1}
	}
	return out
}

func printReport(w io.Writer, r benchReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	fmt.Fprintf(w, "%s (%s): %d objects, height %d, %d nodes, fill %.1f%%\n",
		r.Kind, r.Distance, r.Objects, r.Height, r.Nodes, r.AvgFill*100)
	fmt.Fprintf(w, "build:  %.2f ms\n", r.BuildMs)
	fmt.Fprintf(w, "knn:    mean %.1f µs, p99 %.1f µs\n", r.KNNMeanUs, r.KNNP99Us)
	fmt.Fprintf(w, "range:  radius %.4g, mean %.1f hits, mean %.1f µs\n", r.RangeRad, r.RangeHits, r.RangeMean)
	if r.Recall > 0 {
		fmt.Fprintf(w, "verify: recall %.4f, range mismatches %d\n", r.Recall, r.Mismatches)
	}
	return nil
}
