package factorgraph

import "errors"

var (
	// ErrUnknownVariable is returned when a name or id does not resolve to a
	// variable of the graph.
	ErrUnknownVariable = errors.New("factorgraph: unknown variable")

	// ErrUnknownValue is returned when a value is not part of a variable's domain.
	ErrUnknownValue = errors.New("factorgraph: value not in domain")

	// ErrDuplicate is returned when a variable, factor, domain value, or table
	// row is defined twice.
	ErrDuplicate = errors.New("factorgraph: duplicate definition")

	// ErrInvalidDefinition is returned for structurally invalid input to the
	// Builder (empty domain, factor without variables, missing table rows).
	ErrInvalidDefinition = errors.New("factorgraph: invalid definition")

	// ErrNotATree is returned by Graph.CheckTree when the bipartite graph
	// contains a cycle or is disconnected.
	ErrNotATree = errors.New("factorgraph: graph is not a tree")
)
