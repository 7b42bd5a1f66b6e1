package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"treeprop/internal/display"
	"treeprop/internal/logging"
	"treeprop/internal/model"
	"treeprop/internal/store"
	"treeprop/pkg/infer"
)

var batchFlags struct {
	model     string
	queries   string
	parallel  int
	dbPath    string
	noHistory bool
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run a file of queries against one model",
	Long: `Batch loads a model once and answers every query in the queries file.
Workers share the immutable graph but each carries its own engine and
message cache, so queries never contend on the memo.`,
	RunE: runBatch,
}

func init() {
	f := batchCmd.Flags()
	f.StringVarP(&batchFlags.model, "model", "m", "", "Model file (YAML or JSON, required)")
	f.StringVarP(&batchFlags.queries, "file", "f", "", "Queries file (YAML, required)")
	f.IntVar(&batchFlags.parallel, "parallel", 1, "Number of parallel workers (1 = serial)")
	f.StringVar(&batchFlags.dbPath, "db", store.DefaultDBPath, "Run-history SQLite path")
	f.BoolVar(&batchFlags.noHistory, "no-history", false, "Do not record these runs")

	_ = batchCmd.MarkFlagRequired("model")
	_ = batchCmd.MarkFlagRequired("file")
}

type batchResult struct {
	spec    model.QuerySpec
	text    string
	run     *store.Run
	err     error
	elapsed time.Duration
}

func runBatch(cmd *cobra.Command, _ []string) error {
	log := logging.New("batch")

	f, err := model.LoadFromPath(batchFlags.model)
	if err != nil {
		return err
	}
	g, err := f.Build()
	if err != nil {
		return err
	}
	qf, err := model.LoadQueries(batchFlags.queries)
	if err != nil {
		return err
	}

	parallel := batchFlags.parallel
	if parallel < 1 {
		parallel = 1
	}
	log.Info("batch starting", "model", f.Name, "queries", len(qf.Queries), "workers", parallel)

	results := make([]batchResult, len(qf.Queries))
	eg, _ := errgroup.WithContext(cmd.Context())
	eg.SetLimit(parallel)
	for i, spec := range qf.Queries {
		i, spec := i, spec
		eg.Go(func() error {
			// One engine per query keeps the engine single-threaded while
			// the graph itself is shared read-only.
			engine := infer.New(g)
			results[i] = runOne(engine, spec)
			return nil
		})
	}
	_ = eg.Wait() // errors captured per result

	hist, err := openHistory(batchFlags.dbPath, batchFlags.noHistory)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer hist.Close()

	out := cmd.OutOrStdout()
	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			fmt.Fprintf(out, "query %s: error: %v\n", r.spec.Query, r.err)
			continue
		}
		fmt.Fprint(out, r.text)
		if _, err := hist.SaveRun(r.run); err != nil {
			log.Warn("failed to record run", "query", r.spec.Query, "error", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d queries failed", failed, len(results))
	}
	return nil
}

func runOne(engine *infer.Engine, spec model.QuerySpec) batchResult {
	res := batchResult{spec: spec}

	query, ev, err := spec.Resolve(engine.Graph())
	if err != nil {
		res.err = err
		return res
	}
	start := time.Now()
	dist, err := engine.Run(query, ev)
	res.elapsed = time.Since(start)
	if err != nil {
		res.err = err
		return res
	}

	res.text = display.Marginal(query, ev, dist)
	plain := make(map[string]float64, len(dist))
	for val, p := range dist {
		plain[string(val)] = p
	}
	res.run = &store.Run{
		Model:        batchFlags.model,
		Query:        query.Name(),
		EvidenceKey:  ev.Key(),
		Distribution: plain,
		Method:       "propagation",
		CacheHits:    int64(engine.Stats().CacheHits),
		DurationMS:   res.elapsed.Milliseconds(),
	}
	return res
}
