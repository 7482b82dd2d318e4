// Package taskrunner hosts the build task registry and the runner that executes the
// dependency closure of requested task names. Tasks are registered into an explicitly
// owned Registry, resolved by exact name or by `*:<suffix>` wildcard, and executed
// depth-first in declaration order with each task running at most once per invocation.
// The runner reports every task state transition on a timestamped status stream and
// applies a configurable FailurePolicy to errors returned by task actions.
package taskrunner
