// Package mcp exposes model loading and inference as MCP tools over
// stdio, so agent hosts can query factor-graph models directly.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"treeprop/internal/logging"
	"treeprop/internal/model"
	"treeprop/internal/store"
)

// Methods accepted by the run_query tool.
const (
	MethodPropagation = "propagation"
	MethodElimination = "elimination"
)

// Server wraps the MCP SDK server and manages loaded-model sessions.
type Server struct {
	MCPServer *sdkmcp.Server

	mu       sync.Mutex
	sessions map[string]*Session
	history  store.Store
	log      *slog.Logger
}

// NewServer creates a treeprop MCP server with the inference tools
// registered. history may be nil; runs are then not recorded.
func NewServer(version string, history store.Store) *Server {
	if history == nil {
		history = store.NewMemStore()
	}
	s := &Server{
		MCPServer: sdkmcp.NewServer(
			&sdkmcp.Implementation{Name: "treeprop", Version: version},
			nil,
		),
		sessions: make(map[string]*Session),
		history:  history,
		log:      logging.New("mcp"),
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "load_model",
		Description: "Load a factor-graph model file (YAML or JSON). Returns the model name used by the other tools.",
	}, s.handleLoadModel)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_variables",
		Description: "List the variables of a loaded model with their domains.",
	}, s.handleListVariables)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "run_query",
		Description: "Compute P(query | evidence) on a loaded model. Method is propagation (default, trees only) or elimination.",
	}, s.handleRunQuery)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "clear_cache",
		Description: "Drop a loaded model's memoized messages. Use after editing the model file, then load_model again.",
	}, s.handleClearCache)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_runs",
		Description: "List recent inference runs recorded by this server, newest first.",
	}, s.handleListRuns)
}

func (s *Server) session(name string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[name]
	if !ok {
		return nil, fmt.Errorf("model %q is not loaded; call load_model first", name)
	}
	return sess, nil
}

// --- Tool input/output types ---

type loadModelInput struct {
	Path string `json:"path" jsonschema:"path to the model file (YAML or JSON)"`
}

type loadModelOutput struct {
	Model     string `json:"model"`
	Variables int    `json:"variables"`
	Factors   int    `json:"factors"`
	Tree      bool   `json:"tree"`
}

type listVariablesInput struct {
	Model string `json:"model" jsonschema:"model name from load_model"`
}

type variableInfo struct {
	Name   string   `json:"name"`
	Domain []string `json:"domain"`
	Degree int      `json:"degree"`
}

type listVariablesOutput struct {
	Variables []variableInfo `json:"variables"`
}

type runQueryInput struct {
	Model    string            `json:"model" jsonschema:"model name from load_model"`
	Query    string            `json:"query" jsonschema:"query variable name"`
	Evidence map[string]string `json:"evidence,omitempty" jsonschema:"observed values by variable name"`
	Method   string            `json:"method,omitempty" jsonschema:"propagation (default) or elimination"`
}

type runQueryOutput struct {
	Distribution     map[string]float64 `json:"distribution"`
	CacheHits        int                `json:"cache_hits"`
	MessagesComputed int                `json:"messages_computed"`
	DurationMS       int64              `json:"duration_ms"`
	RunID            int64              `json:"run_id,omitempty"`
}

type clearCacheInput struct {
	Model string `json:"model" jsonschema:"model name from load_model"`
}

type clearCacheOutput struct {
	Dropped int `json:"dropped"`
}

type listRunsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"max runs to return (default 20)"`
}

type runInfo struct {
	ID          int64              `json:"id"`
	Model       string             `json:"model"`
	Query       string             `json:"query"`
	EvidenceKey string             `json:"evidence_key,omitempty"`
	Method      string             `json:"method"`
	Result      map[string]float64 `json:"result"`
}

type listRunsOutput struct {
	Runs  []runInfo `json:"runs"`
	Total int       `json:"total"`
}

// --- Tool handlers ---

func (s *Server) handleLoadModel(_ context.Context, _ *sdkmcp.CallToolRequest, input loadModelInput) (*sdkmcp.CallToolResult, loadModelOutput, error) {
	if input.Path == "" {
		return nil, loadModelOutput{}, fmt.Errorf("path is required")
	}
	sess, err := NewSession(input.Path)
	if err != nil {
		return nil, loadModelOutput{}, err
	}

	s.mu.Lock()
	s.sessions[sess.Name] = sess
	s.mu.Unlock()

	g := sess.Graph()
	s.log.Info("model loaded", "model", sess.Name, "path", input.Path,
		"variables", len(g.Variables()), "factors", len(g.Factors()))

	return nil, loadModelOutput{
		Model:     sess.Name,
		Variables: len(g.Variables()),
		Factors:   len(g.Factors()),
		Tree:      g.CheckTree() == nil,
	}, nil
}

func (s *Server) handleListVariables(_ context.Context, _ *sdkmcp.CallToolRequest, input listVariablesInput) (*sdkmcp.CallToolResult, listVariablesOutput, error) {
	sess, err := s.session(input.Model)
	if err != nil {
		return nil, listVariablesOutput{}, err
	}
	vars := sess.Graph().Variables()
	out := listVariablesOutput{Variables: make([]variableInfo, len(vars))}
	for i, v := range vars {
		domain := make([]string, len(v.Domain()))
		for j, val := range v.Domain() {
			domain[j] = string(val)
		}
		out.Variables[i] = variableInfo{Name: v.Name(), Domain: domain, Degree: v.Degree()}
	}
	return nil, out, nil
}

func (s *Server) handleRunQuery(_ context.Context, _ *sdkmcp.CallToolRequest, input runQueryInput) (*sdkmcp.CallToolResult, runQueryOutput, error) {
	sess, err := s.session(input.Model)
	if err != nil {
		return nil, runQueryOutput{}, err
	}
	if input.Query == "" {
		return nil, runQueryOutput{}, fmt.Errorf("query is required")
	}

	dist, stats, elapsed, err := sess.Query(input.Query, input.Evidence, input.Method)
	if err != nil {
		return nil, runQueryOutput{}, fmt.Errorf("run_query: %w", err)
	}

	result := make(map[string]float64, len(dist))
	for val, p := range dist {
		result[string(val)] = p
	}

	method := input.Method
	if method == "" {
		method = MethodPropagation
	}
	rec := &store.Run{
		Model:        input.Model,
		Query:        input.Query,
		EvidenceKey:  evidenceKey(sess, input.Evidence),
		Distribution: result,
		Method:       method,
		CacheHits:    int64(stats.CacheHits),
		DurationMS:   elapsed.Milliseconds(),
	}
	runID, err := s.history.SaveRun(rec)
	if err != nil {
		s.log.Warn("failed to record run", "error", err)
	}

	return nil, runQueryOutput{
		Distribution:     result,
		CacheHits:        stats.CacheHits,
		MessagesComputed: stats.MessagesComputed,
		DurationMS:       elapsed.Milliseconds(),
		RunID:            runID,
	}, nil
}

func (s *Server) handleClearCache(_ context.Context, _ *sdkmcp.CallToolRequest, input clearCacheInput) (*sdkmcp.CallToolResult, clearCacheOutput, error) {
	sess, err := s.session(input.Model)
	if err != nil {
		return nil, clearCacheOutput{}, err
	}
	dropped := sess.ClearCache()
	s.log.Info("message cache cleared", "model", input.Model, "dropped", dropped)
	return nil, clearCacheOutput{Dropped: dropped}, nil
}

func (s *Server) handleListRuns(_ context.Context, _ *sdkmcp.CallToolRequest, input listRunsInput) (*sdkmcp.CallToolResult, listRunsOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}
	runs, err := s.history.ListRuns(limit)
	if err != nil {
		return nil, listRunsOutput{}, fmt.Errorf("list_runs: %w", err)
	}
	out := listRunsOutput{Runs: make([]runInfo, len(runs)), Total: len(runs)}
	for i, r := range runs {
		out.Runs[i] = runInfo{
			ID:          r.ID,
			Model:       r.Model,
			Query:       r.Query,
			EvidenceKey: r.EvidenceKey,
			Method:      r.Method,
			Result:      r.Distribution,
		}
	}
	return nil, out, nil
}

func evidenceKey(sess *Session, bindings map[string]string) string {
	if len(bindings) == 0 {
		return ""
	}
	ev, err := model.ResolveEvidence(sess.Graph(), bindings)
	if err != nil {
		return ""
	}
	return ev.Key()
}
