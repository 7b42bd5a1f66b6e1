// Package factorgraph defines the graph model for exact inference:
// categorical random variables, strictly positive factors over them, and
// the bipartite graph tying them together. Graphs are built once through
// a Builder and are immutable afterwards, so a single Graph can be shared
// by any number of inference runs. Traversal bookkeeping lives in the
// inference engine, never on the nodes.
package factorgraph
