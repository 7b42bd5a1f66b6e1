// Package infer implements exact inference over tree-structured factor
// graphs: a belief-propagation engine that relays log-space messages from
// the leaves toward a query variable, and elimination buckets that sum
// variables out one at a time along an externally supplied order. Both
// share the same stabilized log-sum-exp primitive, and the engine memoizes
// every message per evidence assignment so repeated queries against the
// same evidence reuse prior work.
package infer
