package mcp

import (
	"fmt"
	"sync"
	"time"

	"treeprop/internal/model"
	"treeprop/pkg/factorgraph"
	"treeprop/pkg/infer"
)

// Session is one loaded model with its engine and message cache. The
// engine is single-threaded, so every inference call holds the session
// lock; concurrent tool calls against the same model serialize here.
type Session struct {
	Name string
	Path string

	mu     sync.Mutex
	graph  *factorgraph.Graph
	engine *infer.Engine
}

// NewSession loads the model file at path and builds its graph.
func NewSession(path string) (*Session, error) {
	f, err := model.LoadFromPath(path)
	if err != nil {
		return nil, err
	}
	g, err := f.Build()
	if err != nil {
		return nil, err
	}
	return &Session{
		Name:   f.Name,
		Path:   path,
		graph:  g,
		engine: infer.New(g),
	}, nil
}

// Graph returns the session's graph. The graph is immutable, so no lock
// is needed to read it.
func (s *Session) Graph() *factorgraph.Graph { return s.graph }

// Query runs one marginal computation, by propagation or elimination.
func (s *Session) Query(queryName string, evidence map[string]string, method string) (infer.Distribution, infer.Stats, time.Duration, error) {
	query, ev, err := model.QuerySpec{Query: queryName, Evidence: evidence}.Resolve(s.graph)
	if err != nil {
		return nil, infer.Stats{}, 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.engine.Stats()
	start := time.Now()

	var dist infer.Distribution
	switch method {
	case "", MethodPropagation:
		dist, err = s.engine.Run(query, ev)
	case MethodElimination:
		dist, err = infer.RunElimination(s.graph, infer.DefaultOrder(s.graph, query, ev), query, ev)
	default:
		return nil, infer.Stats{}, 0, fmt.Errorf("unknown method %q", method)
	}
	if err != nil {
		return nil, infer.Stats{}, 0, err
	}

	after := s.engine.Stats()
	delta := infer.Stats{
		MessagesComputed: after.MessagesComputed - before.MessagesComputed,
		CacheHits:        after.CacheHits - before.CacheHits,
		CacheMisses:      after.CacheMisses - before.CacheMisses,
		Sweeps:           after.Sweeps - before.Sweeps,
		Runs:             after.Runs - before.Runs,
	}
	return dist, delta, time.Since(start), nil
}

// ClearCache drops the session's memoized messages and reports how many
// were held.
func (s *Session) ClearCache() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.engine.CachedMessages()
	s.engine.ClearMessageCache()
	return n
}

// CachedMessages reports the current memo size.
func (s *Session) CachedMessages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.CachedMessages()
}
