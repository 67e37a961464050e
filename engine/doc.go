// Package engine implements the workflow execution engine: the node
// executor registry, the built-in executors, the per-run state tracker, and
// the traversal loop that turns a persisted graph into a sequence of node
// invocations.
//
// A run is single-threaded: the engine waits for each node's executor
// before selecting the next node, which keeps runs deterministic and
// replayable from their logs. Traversal is iterative with a visited-set and
// a step ceiling, so malformed (cyclic) graphs always terminate.
package engine
