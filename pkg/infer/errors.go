package infer

import "errors"

var (
	// ErrEmptyQuery is returned when Run is called without a query variable.
	ErrEmptyQuery = errors.New("infer: empty query")

	// ErrQueryIsEvidence is returned when the query variable also appears in
	// the evidence.
	ErrQueryIsEvidence = errors.New("infer: query variable is evidential")

	// ErrNotATree is returned when the relay phase exceeds its iteration
	// bound or stalls, which means the graph is cyclic or disconnected.
	ErrNotATree = errors.New("infer: propagation did not terminate, graph is not a tree")

	// ErrNonPositiveFactor is returned when a factor evaluates to a value
	// whose logarithm is undefined. Factors must be strictly positive.
	ErrNonPositiveFactor = errors.New("infer: non-positive factor value")

	// ErrMessageExists is returned by MessageStore.Put on a duplicate key.
	// Messages are write-once per (origin, destination, evidence).
	ErrMessageExists = errors.New("infer: message already cached")

	// ErrMessageMissing is returned by MessageStore.Into when a message the
	// traversal synchronization guarantees should exist is absent. It marks
	// an internal invariant violation, never a user error.
	ErrMessageMissing = errors.New("infer: expected message not cached")

	// ErrBadEliminationOrder is returned when an elimination order does not
	// cover exactly the non-evidential, non-query variables of the graph.
	ErrBadEliminationOrder = errors.New("infer: invalid elimination order")

	// ErrBucketState is returned when bucket operations are called out of
	// order (Partition twice, output before Partition, add after Partition).
	ErrBucketState = errors.New("infer: bucket operation out of order")
)
