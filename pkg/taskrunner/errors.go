package taskrunner

import (
	"errors"
	"fmt"
	"strings"
)

const (
	unknownTaskTemplateConstant            = "unknown task '%s'"
	unknownTaskReferrerTemplateConstant    = "unknown task '%s' referenced from '%s'"
	cyclicDependencyTemplateConstant       = "cyclic dependency detected: %s"
	cyclePathSeparatorConstant             = " -> "
	actionFailedTemplateConstant           = "task '%s' failed: %v"
	actionPanicTemplateConstant            = "task action panicked: %v"
	unsupportedFailurePolicyTemplate       = "unsupported failure policy %q"
	registryNotConfiguredMessageConstant   = "task runner registry not configured"
	statusLoggerMissingMessageConstant     = "task runner status logger not configured"
	diagnosticLoggerMissingMessageConstant = "task runner logger not configured"
)

var (
	// ErrRegistryNotConfigured indicates the runner was constructed without a registry.
	ErrRegistryNotConfigured = errors.New(registryNotConfiguredMessageConstant)
	// ErrStatusLoggerNotConfigured indicates a nil status logger was supplied.
	ErrStatusLoggerNotConfigured = errors.New(statusLoggerMissingMessageConstant)
	// ErrLoggerNotConfigured indicates a nil diagnostic logger was supplied.
	ErrLoggerNotConfigured = errors.New(diagnosticLoggerMissingMessageConstant)
	// ErrUnsupportedFailurePolicy indicates a failure policy name outside the supported set.
	ErrUnsupportedFailurePolicy = errors.New("unsupported failure policy")
)

// UnknownTaskError reports a concrete pattern that matched no registered task.
type UnknownTaskError struct {
	Pattern  string
	Referrer string
}

// Error implements the error interface.
func (unknownTaskError UnknownTaskError) Error() string {
	if len(unknownTaskError.Referrer) == 0 {
		return fmt.Sprintf(unknownTaskTemplateConstant, unknownTaskError.Pattern)
	}
	return fmt.Sprintf(unknownTaskReferrerTemplateConstant, unknownTaskError.Pattern, unknownTaskError.Referrer)
}

// CyclicDependencyError reports a task that was re-entered while still in progress.
// Cycle lists the task names along the loop, starting and ending with the re-entered task.
type CyclicDependencyError struct {
	Cycle []string
}

// Error implements the error interface.
func (cyclicDependencyError CyclicDependencyError) Error() string {
	return fmt.Sprintf(cyclicDependencyTemplateConstant, strings.Join(cyclicDependencyError.Cycle, cyclePathSeparatorConstant))
}

// ActionFailedError wraps the error returned by a task action.
type ActionFailedError struct {
	Task string
	Err  error
}

// Error implements the error interface.
func (actionFailedError ActionFailedError) Error() string {
	return fmt.Sprintf(actionFailedTemplateConstant, actionFailedError.Task, actionFailedError.Err)
}

// Unwrap exposes the action error.
func (actionFailedError ActionFailedError) Unwrap() error {
	return actionFailedError.Err
}
