package infer

import (
	"fmt"
	"log/slog"
	"math"

	"treeprop/pkg/factorgraph"
)

// Distribution maps each query-domain value to its probability. Values are
// non-negative and sum to 1 within floating-point tolerance.
type Distribution map[factorgraph.Value]float64

// Engine runs belief propagation over one immutable graph. A run is
// single-threaded and synchronous; the engine must not be used from more
// than one goroutine at a time. Distinct engines may share a Graph, since
// all traversal state is per-run and the graph itself never changes.
type Engine struct {
	g       *factorgraph.Graph
	f2v     *MessageStore // factor-to-variable messages
	v2f     *MessageStore // variable-to-factor messages
	stats   Stats
	metrics *Metrics
	trace   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics attaches Prometheus collectors to the engine.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTrace enables per-sweep and per-message trace logging. Correctness
// is unaffected; intended for debugging model files.
func WithTrace(l *slog.Logger) Option {
	return func(e *Engine) { e.trace = l }
}

// New creates an engine for g with empty message caches.
func New(g *factorgraph.Graph, opts ...Option) *Engine {
	e := &Engine{
		g:   g,
		f2v: NewMessageStore(),
		v2f: NewMessageStore(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Graph returns the engine's graph.
func (e *Engine) Graph() *factorgraph.Graph { return e.g }

// Stats returns the cumulative counters across all runs of this engine.
func (e *Engine) Stats() Stats { return e.stats }

// CachedMessages returns the number of memoized messages in both stores.
func (e *Engine) CachedMessages() int { return e.f2v.Len() + e.v2f.Len() }

// ClearMessageCache drops all memoized messages, for every evidence
// context. Call it when the graph's factor values change.
func (e *Engine) ClearMessageCache() {
	e.f2v.Clear()
	e.v2f.Clear()
}

// Run computes P(query) or P(query | evidence). The query variable must
// not appear in the evidence. Messages memoized under the same canonical
// evidence key are reused, never recomputed.
func (e *Engine) Run(query *factorgraph.Variable, evidence factorgraph.Evidence) (Distribution, error) {
	if query == nil {
		return nil, ErrEmptyQuery
	}
	if v, ok := e.g.VariableByName(query.Name()); !ok || v.ID() != query.ID() {
		return nil, fmt.Errorf("%w: query %q", factorgraph.ErrUnknownVariable, query.Name())
	}
	if err := evidence.Validate(e.g); err != nil {
		return nil, err
	}
	if _, ok := evidence.Observed(query); ok {
		return nil, fmt.Errorf("%w: %q", ErrQueryIsEvidence, query.Name())
	}

	key := evidence.Key()
	e.f2v.EnsureContext(key)
	e.v2f.EnsureContext(key)

	r := &run{
		e:         e,
		g:         e.g,
		query:     query,
		ev:        evidence,
		key:       key,
		varPassed: make([]bool, len(e.g.Variables())),
		facPassed: make([]bool, len(e.g.Factors())),
		varIn:     make([]int, len(e.g.Variables())),
		facIn:     make([]int, len(e.g.Factors())),
	}
	if err := r.seedLeaves(); err != nil {
		return nil, err
	}

	// A tree relays every message within one sweep per layer; anything
	// past the node count means a cycle keeps the query waiting forever.
	bound := e.g.NodeCount() + 1
	sweeps := 0
	for r.varIn[query.ID()] < query.Degree() {
		sweeps++
		if sweeps > bound {
			return nil, fmt.Errorf("%w: exceeded %d sweeps", ErrNotATree, bound)
		}
		fromFactors, fromVariables := r.nextFactors, r.nextVariables
		r.nextFactors, r.nextVariables = nil, nil
		if len(fromFactors) == 0 && len(fromVariables) == 0 {
			return nil, fmt.Errorf("%w: relay stalled after %d sweeps", ErrNotATree, sweeps-1)
		}
		if e.trace != nil {
			e.trace.Debug("relay sweep",
				"sweep", sweeps,
				"factors", len(fromFactors),
				"variables", len(fromVariables),
			)
		}
		for _, fid := range fromFactors {
			if err := r.relayFactor(fid); err != nil {
				return nil, err
			}
		}
		for _, vid := range fromVariables {
			if err := r.relayVariable(vid); err != nil {
				return nil, err
			}
		}
	}

	dist, err := r.assemble()
	if err != nil {
		return nil, err
	}
	e.stats.Sweeps += sweeps
	e.stats.Runs++
	e.metrics.run(sweeps)
	return dist, nil
}

// run holds the traversal-scoped state of one Run call: passed flags and
// incoming-message counts in side tables indexed by arena id, plus the two
// breadth-first relay buffers. Created fresh per run, so the graph nodes
// themselves stay immutable.
type run struct {
	e     *Engine
	g     *factorgraph.Graph
	query *factorgraph.Variable
	ev    factorgraph.Evidence
	key   string

	varPassed []bool
	facPassed []bool
	varIn     []int
	facIn     []int

	nextFactors   []int
	nextVariables []int
}

// domain returns the effective domain of v: the single observed value for
// evidentiary variables, the full domain otherwise.
func (r *run) domain(v *factorgraph.Variable) []factorgraph.Value {
	if val, ok := r.ev.Observed(v); ok {
		return []factorgraph.Value{val}
	}
	return v.Domain()
}

// queueVariable enqueues v for the next sweep once it has received all but
// one of its messages. The query variable never emits.
func (r *run) queueVariable(v *factorgraph.Variable) {
	if v.ID() == r.query.ID() {
		return
	}
	if r.varIn[v.ID()]+1 == v.Degree() {
		r.nextVariables = append(r.nextVariables, v.ID())
	}
}

// queueFactor enqueues f once exactly one incident variable is missing.
func (r *run) queueFactor(f *factorgraph.Factor) {
	if r.facIn[f.ID()]+1 == f.Degree() {
		r.nextFactors = append(r.nextFactors, f.ID())
	}
}

// seedLeaves computes the messages every leaf can emit without waiting:
// single-variable factors send log f(v); single-factor variables (except
// the query) send identically zero messages.
func (r *run) seedLeaves() error {
	for _, f := range r.g.FactorLeaves() {
		to := r.g.Variable(f.VariableIDs()[0])
		if err := r.factorLeafMessage(f, to); err != nil {
			return err
		}
		r.facPassed[f.ID()] = true
		r.varIn[to.ID()]++
		r.queueVariable(to)
	}
	for _, v := range r.g.VariableLeaves() {
		if v.ID() == r.query.ID() {
			continue
		}
		to := r.g.Factor(v.FactorIDs()[0])
		if err := r.variableLeafMessage(v, to); err != nil {
			return err
		}
		r.varPassed[v.ID()] = true
		r.facIn[to.ID()]++
		r.queueFactor(to)
	}
	return nil
}

// relayFactor emits f's message to its single unpassed neighbor.
func (r *run) relayFactor(fid int) error {
	f := r.g.Factor(fid)
	var to *factorgraph.Variable
	for _, vid := range f.VariableIDs() {
		if r.varPassed[vid] {
			continue
		}
		if to != nil {
			return fmt.Errorf("%w: factor %q ready with multiple open neighbors", ErrNotATree, f.Name())
		}
		to = r.g.Variable(vid)
	}
	if to == nil {
		return fmt.Errorf("%w: factor %q ready with no open neighbor", ErrNotATree, f.Name())
	}
	if err := r.factorToVariable(f, to); err != nil {
		return err
	}
	r.facPassed[f.ID()] = true
	r.varIn[to.ID()]++
	r.queueVariable(to)
	return nil
}

// relayVariable emits v's message to its single unpassed neighbor.
func (r *run) relayVariable(vid int) error {
	v := r.g.Variable(vid)
	var to *factorgraph.Factor
	for _, fid := range v.FactorIDs() {
		if r.facPassed[fid] {
			continue
		}
		if to != nil {
			return fmt.Errorf("%w: variable %q ready with multiple open neighbors", ErrNotATree, v.Name())
		}
		to = r.g.Factor(fid)
	}
	if to == nil {
		return fmt.Errorf("%w: variable %q ready with no open neighbor", ErrNotATree, v.Name())
	}
	if err := r.variableToFactor(v, to); err != nil {
		return err
	}
	r.varPassed[v.ID()] = true
	r.facIn[to.ID()]++
	r.queueFactor(to)
	return nil
}

// factorLeafMessage caches the leaf rule: message(v) = log f(v).
func (r *run) factorLeafMessage(f *factorgraph.Factor, to *factorgraph.Variable) error {
	if r.e.f2v.Contains(r.key, f.ID(), to.ID()) {
		r.hit()
		return nil
	}
	values := make(map[factorgraph.Value]float64)
	for _, val := range r.domain(to) {
		p, err := f.Evaluate([]factorgraph.Value{val})
		if err != nil {
			return err
		}
		if p <= 0 {
			return fmt.Errorf("%w: factor %q at %s=%s", ErrNonPositiveFactor, f.Name(), to.Name(), val)
		}
		values[val] = math.Log(p)
	}
	return r.cache(r.e.f2v, newMessage(f.ID(), to.ID(), values), f.Name(), to.Name())
}

// variableLeafMessage caches the identically zero leaf message: a leaf
// variable has nothing to sum yet.
func (r *run) variableLeafMessage(v *factorgraph.Variable, to *factorgraph.Factor) error {
	if r.e.v2f.Contains(r.key, v.ID(), to.ID()) {
		r.hit()
		return nil
	}
	values := make(map[factorgraph.Value]float64)
	for _, val := range r.domain(v) {
		values[val] = 0
	}
	return r.cache(r.e.v2f, newMessage(v.ID(), to.ID(), values), v.Name(), to.Name())
}

// factorToVariable caches the interior factor rule: sum-product exclusion
// of all incident variables but the destination, with max-shift
// log-sum-exp stabilization over the free (non-evidentiary) ones.
func (r *run) factorToVariable(f *factorgraph.Factor, to *factorgraph.Variable) error {
	if r.e.f2v.Contains(r.key, f.ID(), to.ID()) {
		r.hit()
		return nil
	}

	var evidential, free []*factorgraph.Variable
	var fixed []factorgraph.Value
	pos := make(map[int]int, f.Degree())
	for i, vid := range f.VariableIDs() {
		pos[vid] = i
		if vid == to.ID() {
			continue
		}
		v := r.g.Variable(vid)
		if val, ok := r.ev.Observed(v); ok {
			evidential = append(evidential, v)
			fixed = append(fixed, val)
		} else {
			free = append(free, v)
		}
	}
	evidentialMsgs, err := r.e.v2f.Into(r.key, variableIDs(evidential), f.ID())
	if err != nil {
		return err
	}
	freeMsgs, err := r.e.v2f.Into(r.key, variableIDs(free), f.ID())
	if err != nil {
		return err
	}

	// Shift by the largest incoming log value so the exponentials below
	// stay bounded; added back after the logarithm.
	shift := 0.0
	for i, m := range freeMsgs {
		if mm := m.Max(); i == 0 || mm > shift {
			shift = mm
		}
	}
	evidentialTerms := make([]float64, len(evidentialMsgs))
	for i, m := range evidentialMsgs {
		evidentialTerms[i] = m.At(fixed[i])
	}
	evidentialSum := fsum(evidentialTerms)

	args := make([]factorgraph.Value, f.Degree())
	for i, v := range evidential {
		args[pos[v.ID()]] = fixed[i]
	}

	values := make(map[factorgraph.Value]float64)
	for _, tv := range r.domain(to) {
		args[pos[to.ID()]] = tv
		var acc accumulator
		err := eachJoint(free, func(frees []factorgraph.Value) error {
			for i, fv := range free {
				args[pos[fv.ID()]] = frees[i]
			}
			p, err := f.Evaluate(args)
			if err != nil {
				return err
			}
			if p <= 0 {
				return fmt.Errorf("%w: factor %q at %v", ErrNonPositiveFactor, f.Name(), args)
			}
			var w accumulator
			for i, m := range freeMsgs {
				w.add(m.At(frees[i]))
			}
			acc.add(p * math.Exp(w.value()-shift))
			return nil
		})
		if err != nil {
			return err
		}
		total := acc.value()
		if total <= 0 || math.IsNaN(total) {
			return fmt.Errorf("%w: factor %q message to %q vanished", ErrNonPositiveFactor, f.Name(), to.Name())
		}
		values[tv] = evidentialSum + shift + math.Log(total)
	}
	return r.cache(r.e.f2v, newMessage(f.ID(), to.ID(), values), f.Name(), to.Name())
}

// variableToFactor caches the variable rule: for each value, the sum of
// the incoming messages from every other incident factor.
func (r *run) variableToFactor(v *factorgraph.Variable, to *factorgraph.Factor) error {
	if r.e.v2f.Contains(r.key, v.ID(), to.ID()) {
		r.hit()
		return nil
	}
	others := make([]int, 0, v.Degree()-1)
	for _, fid := range v.FactorIDs() {
		if fid != to.ID() {
			others = append(others, fid)
		}
	}
	msgs, err := r.e.f2v.Into(r.key, others, v.ID())
	if err != nil {
		return err
	}
	values := make(map[factorgraph.Value]float64)
	terms := make([]float64, len(msgs))
	for _, val := range r.domain(v) {
		for i, m := range msgs {
			terms[i] = m.At(val)
		}
		values[val] = fsum(terms)
	}
	return r.cache(r.e.v2f, newMessage(v.ID(), to.ID(), values), v.Name(), to.Name())
}

// assemble normalizes the product of the query's incoming messages into
// the final distribution.
func (r *run) assemble() (Distribution, error) {
	msgs, err := r.e.f2v.Into(r.key, r.query.FactorIDs(), r.query.ID())
	if err != nil {
		return nil, err
	}
	domain := r.query.Domain()
	logs := make([]float64, len(domain))
	terms := make([]float64, len(msgs))
	maxLog := math.Inf(-1)
	for i, val := range domain {
		for j, m := range msgs {
			terms[j] = m.At(val)
		}
		logs[i] = fsum(terms)
		if logs[i] > maxLog {
			maxLog = logs[i]
		}
	}
	unnormalized := make([]float64, len(domain))
	for i := range domain {
		unnormalized[i] = math.Exp(logs[i] - maxLog)
	}
	norm := fsum(unnormalized)
	if norm <= 0 || math.IsNaN(norm) {
		return nil, fmt.Errorf("%w: normalization constant for query %q", ErrNonPositiveFactor, r.query.Name())
	}
	dist := make(Distribution, len(domain))
	for i, val := range domain {
		dist[val] = unnormalized[i] / norm
	}
	return dist, nil
}

func (r *run) hit() {
	r.e.stats.CacheHits++
	r.e.metrics.hit()
}

func (r *run) cache(store *MessageStore, m *Message, origin, dest string) error {
	r.e.stats.CacheMisses++
	r.e.stats.MessagesComputed++
	r.e.metrics.miss()
	if r.e.trace != nil {
		r.e.trace.Debug("message computed", "origin", origin, "dest", dest, "evidence", r.key)
	}
	return store.Put(r.key, m)
}

func variableIDs(vars []*factorgraph.Variable) []int {
	ids := make([]int, len(vars))
	for i, v := range vars {
		ids[i] = v.ID()
	}
	return ids
}
