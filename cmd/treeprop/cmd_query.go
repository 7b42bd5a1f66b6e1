package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"treeprop/internal/display"
	"treeprop/internal/logging"
	"treeprop/internal/model"
	"treeprop/internal/store"
	"treeprop/pkg/infer"
)

var queryFlags struct {
	model     string
	query     string
	evidence  []string
	method    string
	order     string
	jsonOut   bool
	trace     bool
	dbPath    string
	noHistory bool
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Compute P(query | evidence) on a model",
	Long: `Query loads a model file, runs one marginal computation, and prints
the distribution. Propagation (the default) requires a tree; elimination
also accepts loopy graphs and an explicit --order.`,
	RunE: runQuery,
}

func init() {
	f := queryCmd.Flags()
	f.StringVarP(&queryFlags.model, "model", "m", "", "Model file (YAML or JSON, required)")
	f.StringVarP(&queryFlags.query, "query", "q", "", "Query variable name (required)")
	f.StringArrayVarP(&queryFlags.evidence, "evidence", "e", nil, "Observed value as Var=val (repeatable)")
	f.StringVar(&queryFlags.method, "method", "propagation", "Inference method (propagation, elimination)")
	f.StringVar(&queryFlags.order, "order", "", "Comma-separated elimination order (elimination only; default name-sorted)")
	f.BoolVar(&queryFlags.jsonOut, "json", false, "Print the distribution as JSON")
	f.BoolVar(&queryFlags.trace, "trace", false, "Log every message pass (needs --log-level debug)")
	f.StringVar(&queryFlags.dbPath, "db", store.DefaultDBPath, "Run-history SQLite path")
	f.BoolVar(&queryFlags.noHistory, "no-history", false, "Do not record this run")

	_ = queryCmd.MarkFlagRequired("model")
	_ = queryCmd.MarkFlagRequired("query")
}

func runQuery(cmd *cobra.Command, _ []string) error {
	log := logging.New("query")

	f, err := model.LoadFromPath(queryFlags.model)
	if err != nil {
		return err
	}
	g, err := f.Build()
	if err != nil {
		return err
	}

	bindings, err := parseEvidence(queryFlags.evidence)
	if err != nil {
		return err
	}
	query, ev, err := model.QuerySpec{Query: queryFlags.query, Evidence: bindings}.Resolve(g)
	if err != nil {
		return err
	}

	var opts []infer.Option
	if queryFlags.trace {
		opts = append(opts, infer.WithTrace(logging.New("engine")))
	}
	engine := infer.New(g, opts...)
	start := time.Now()
	var dist infer.Distribution
	switch queryFlags.method {
	case "propagation":
		dist, err = engine.Run(query, ev)
	case "elimination":
		order, oerr := resolveOrder(g, queryFlags.order, query, ev)
		if oerr != nil {
			return oerr
		}
		dist, err = infer.RunElimination(g, order, query, ev)
	default:
		return fmt.Errorf("unknown method %q", queryFlags.method)
	}
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	log.Debug("query done", "model", f.Name, "query", query.Name(),
		"evidence", ev.Key(), "duration", elapsed, "stats", fmt.Sprintf("%+v", engine.Stats()))

	out := cmd.OutOrStdout()
	if queryFlags.jsonOut {
		plain := make(map[string]float64, len(dist))
		for val, p := range dist {
			plain[string(val)] = p
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(plain); err != nil {
			return err
		}
	} else {
		fmt.Fprint(out, display.Marginal(query, ev, dist))
	}

	hist, err := openHistory(queryFlags.dbPath, queryFlags.noHistory)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer hist.Close()

	plain := make(map[string]float64, len(dist))
	for val, p := range dist {
		plain[string(val)] = p
	}
	_, err = hist.SaveRun(&store.Run{
		Model:        queryFlags.model,
		Query:        query.Name(),
		EvidenceKey:  ev.Key(),
		Distribution: plain,
		Method:       queryFlags.method,
		CacheHits:    int64(engine.Stats().CacheHits),
		DurationMS:   elapsed.Milliseconds(),
	})
	if err != nil {
		log.Warn("failed to record run", "error", err)
	}
	return nil
}
