package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/simidx"
	"github.com/hupe1980/simidx/model"
)

type checkOptions struct {
	index       indexFlags
	bulk        bool
	deleteEvery int
}

func newCheckCmd() *cobra.Command {
	var opts checkOptions
	cmd := &cobra.Command{
		Use:   "check <vectors-file>",
		Short: "Index a vector file and verify the tree invariants",
		Long: `Read one vector per line (comma or whitespace separated, "-" for stdin),
build an index, optionally delete every n-th object, and run the
consistency check. Lines starting with # are ignored.

The dimension is taken from the first vector unless --dim or a config file sets it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args[0], opts)
		},
	}
	opts.index.register(cmd)
	cmd.Flags().BoolVar(&opts.bulk, "bulk", false, "Bulk load instead of inserting one by one")
	cmd.Flags().IntVar(&opts.deleteEvery, "delete-every", 0, "Delete every n-th object before checking (0 = none)")
	return cmd
}

func runCheck(cmd *cobra.Command, path string, opts checkOptions) error {
	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open vectors: %w", err)
		}
		defer f.Close()
		r = f
	}
	vecs, err := readVectors(r)
	if err != nil {
		return err
	}
	if len(vecs) > 0 && opts.index.config == "" && !cmd.Flags().Changed("dim") {
		opts.index.dimension = len(vecs[0])
	}

	ctx := cmd.Context()
	idx, _, err := opts.index.open(ctx)
	if err != nil {
		return err
	}
	defer idx.Close()

	objs := make([]simidx.Object[struct{}], len(vecs))
	for i, v := range vecs {
		objs[i].Vector = v
	}
	var ids []simidx.ObjectID
	if opts.bulk {
		if ids, err = idx.BulkLoad(ctx, objs); err != nil {
			return err
		}
	} else {
		for _, obj := range objs {
			id, err := idx.Insert(ctx, obj)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
	}

	deleted := 0
	if opts.deleteEvery > 0 {
		for i := 0; i < len(ids); i += opts.deleteEvery {
			if err := idx.Delete(ctx, ids[i]); err != nil {
				return err
			}
			deleted++
		}
	}

	out := cmd.OutOrStdout()
	if err := idx.Check(ctx); err != nil {
		fmt.Fprintf(out, "FAIL: %v\n", err)
		return err
	}
	stats, err := idx.Stats()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "OK: %s, %d objects (%d deleted), height %d, %d nodes (%d leaves), fill %.1f%%\n",
		stats.Kind, stats.Size, deleted, stats.Height, stats.Nodes, stats.Leaves, stats.AvgFill*100)
	return nil
}

func readVectors(r io.Reader) ([]model.Vector, error) {
	var vecs []model.Vector
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.FieldsFunc(text, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		v := make(model.Vector, len(fields))
		for i, f := range fields {
			x, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			v[i] = x
		}
		if len(vecs) > 0 && len(v) != len(vecs[0]) {
			return nil, fmt.Errorf("line %d: expected %d coordinates, got %d", line, len(vecs[0]), len(v))
		}
		vecs = append(vecs, v)
	}
	return vecs, sc.Err()
}
