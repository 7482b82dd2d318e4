package taskrunner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	runStartedMessageConstant   = "task run started"
	runCompletedMessageConstant = "task run completed"
	runAbortedMessageConstant   = "task run aborted"
	taskStartedMessageConstant  = "task started"
	taskFinishedMessageConstant = "task finished"
	taskFailedMessageConstant   = "task failed"
	taskReusedMessageConstant   = "task result reused"
	taskNameFieldConstant       = "task"
	taskKindFieldConstant       = "kind"
	requestedNamesFieldConstant = "requested"
	durationFieldConstant       = "duration_ms"
	failurePolicyFieldConstant  = "failure_policy"
	executedCountFieldConstant  = "executed"
	failedCountFieldConstant    = "failed"
)

// Runner executes tasks from a Registry together with their transitive dependencies.
type Runner struct {
	registry      *Registry
	statusLogger  *zap.Logger
	logger        *zap.Logger
	failurePolicy FailurePolicy
	clock         func() time.Time
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner) error

// WithStatusLogger replaces the status stream logger (see NewStatusLogger).
func WithStatusLogger(statusLogger *zap.Logger) RunnerOption {
	return func(runner *Runner) error {
		if statusLogger == nil {
			return ErrStatusLoggerNotConfigured
		}
		runner.statusLogger = statusLogger
		return nil
	}
}

// WithLogger sets the diagnostic logger receiving structured task events.
func WithLogger(logger *zap.Logger) RunnerOption {
	return func(runner *Runner) error {
		if logger == nil {
			return ErrLoggerNotConfigured
		}
		runner.logger = logger
		return nil
	}
}

// WithFailurePolicy selects how action errors affect the run.
func WithFailurePolicy(policy FailurePolicy) RunnerOption {
	return func(runner *Runner) error {
		parsedPolicy, parseError := ParseFailurePolicy(string(policy))
		if parseError != nil {
			return parseError
		}
		runner.failurePolicy = parsedPolicy
		return nil
	}
}

// WithClock replaces the time source used to measure task durations.
func WithClock(clock func() time.Time) RunnerOption {
	return func(runner *Runner) error {
		if clock != nil {
			runner.clock = clock
		}
		return nil
	}
}

// NewRunner constructs a runner over registry. Without options the runner writes status
// lines to standard output, discards diagnostics, and isolates action failures.
func NewRunner(registry *Registry, options ...RunnerOption) (*Runner, error) {
	if registry == nil {
		return nil, ErrRegistryNotConfigured
	}

	runner := &Runner{
		registry:      registry,
		logger:        zap.NewNop(),
		failurePolicy: FailurePolicyIsolate,
		clock:         time.Now,
	}
	for _, option := range options {
		if option == nil {
			continue
		}
		if optionError := option(runner); optionError != nil {
			return nil, optionError
		}
	}
	if runner.statusLogger == nil {
		runner.statusLogger = NewStatusLogger(nil)
	}

	return runner, nil
}

// FailurePolicy reports the policy applied to action errors.
func (runner *Runner) FailurePolicy() FailurePolicy {
	return runner.failurePolicy
}

// Run executes the requested names in order, each with its dependency closure.
func (runner *Runner) Run(executionContext context.Context, names ...string) error {
	_, runError := runner.Execute(executionContext, names...)
	return runError
}

// Execute behaves like Run and additionally returns the per-task outcome of the invocation.
// Resolution failures and cycles abort the invocation. Action failures abort it only under
// FailurePolicyPropagate; under FailurePolicyCollect they are combined into the returned error
// after every requested task has been attempted.
func (runner *Runner) Execute(executionContext context.Context, names ...string) (ExecutionOutcome, error) {
	if executionContext == nil {
		executionContext = context.Background()
	}

	invocation := newInvocation(runner, executionContext)
	runner.logger.Debug(
		runStartedMessageConstant,
		zap.Strings(requestedNamesFieldConstant, names),
		zap.String(failurePolicyFieldConstant, string(runner.failurePolicy)),
	)

	for _, name := range names {
		tasks, resolveError := runner.registry.Resolve(name, nil)
		if resolveError != nil {
			return invocation.abort(resolveError)
		}
		for _, task := range tasks {
			if _, ensureError := invocation.ensure(task); ensureError != nil {
				return invocation.abort(ensureError)
			}
		}
	}

	outcome := invocation.complete()
	runner.logger.Debug(
		runCompletedMessageConstant,
		zap.Int(executedCountFieldConstant, len(outcome.Records)),
		zap.Int(failedCountFieldConstant, outcome.FailedCount()),
		zap.Int64(durationFieldConstant, outcome.Duration.Milliseconds()),
	)

	if runner.failurePolicy == FailurePolicyCollect && len(invocation.failures) > 0 {
		return outcome, multierr.Combine(invocation.failures...)
	}
	return outcome, nil
}

type invocation struct {
	runner     *Runner
	context    context.Context
	startedAt  time.Time
	memo       map[*Task]any
	inProgress map[*Task]struct{}
	path       []*Task
	records    []TaskRecord
	failures   []error
}

func newInvocation(runner *Runner, executionContext context.Context) *invocation {
	return &invocation{
		runner:     runner,
		context:    executionContext,
		startedAt:  runner.clock(),
		memo:       make(map[*Task]any),
		inProgress: make(map[*Task]struct{}),
	}
}

func (invocation *invocation) ensure(task *Task) (any, error) {
	if result, completed := invocation.memo[task]; completed {
		invocation.runner.logger.Debug(taskReusedMessageConstant, zap.String(taskNameFieldConstant, task.name))
		return result, nil
	}
	if _, active := invocation.inProgress[task]; active {
		return nil, invocation.cycleThrough(task)
	}

	invocation.inProgress[task] = struct{}{}
	invocation.path = append(invocation.path, task)
	defer func() {
		delete(invocation.inProgress, task)
		invocation.path = invocation.path[:len(invocation.path)-1]
	}()

	for _, pattern := range task.dependencies {
		dependencies, resolveError := invocation.runner.registry.Resolve(pattern, task)
		if resolveError != nil {
			return nil, resolveError
		}
		for _, dependency := range dependencies {
			if _, dependencyError := invocation.ensure(dependency); dependencyError != nil {
				return nil, dependencyError
			}
		}
	}

	result, executionError := invocation.execute(task)
	if executionError != nil {
		return nil, executionError
	}
	invocation.memo[task] = result
	return result, nil
}

func (invocation *invocation) cycleThrough(task *Task) error {
	startIndex := 0
	for index, candidate := range invocation.path {
		if candidate == task {
			startIndex = index
			break
		}
	}

	cycle := make([]string, 0, len(invocation.path)-startIndex+1)
	for _, member := range invocation.path[startIndex:] {
		cycle = append(cycle, member.name)
	}
	cycle = append(cycle, task.name)
	return CyclicDependencyError{Cycle: cycle}
}

func (invocation *invocation) execute(task *Task) (any, error) {
	statusLogger := invocation.runner.statusLogger
	logger := invocation.runner.logger.With(
		zap.String(taskNameFieldConstant, task.name),
		zap.Stringer(taskKindFieldConstant, task.kind),
	)

	if task.kind == TaskKindGroup {
		statusLogger.Info(finishedStatusMessage(task.name))
		logger.Debug(taskFinishedMessageConstant)
		invocation.records = append(invocation.records, TaskRecord{
			Name:   task.name,
			Kind:   task.kind,
			Status: TaskStatusFinished,
		})
		return nil, nil
	}

	statusLogger.Info(startingStatusMessage(task.name))
	logger.Debug(taskStartedMessageConstant)

	startedAt := invocation.runner.clock()
	result, actionError := invokeAction(invocation.context, task.action)
	elapsed := invocation.runner.clock().Sub(startedAt)

	statusLogger.Info(completedStatusMessage(task.name, elapsed, actionError != nil))

	if actionError != nil {
		logger.Warn(taskFailedMessageConstant, zap.Int64(durationFieldConstant, elapsed.Milliseconds()), zap.Error(actionError))
		invocation.records = append(invocation.records, TaskRecord{
			Name:     task.name,
			Kind:     task.kind,
			Status:   TaskStatusFailed,
			Duration: elapsed,
		})

		failure := ActionFailedError{Task: task.name, Err: actionError}
		switch invocation.runner.failurePolicy {
		case FailurePolicyPropagate:
			return nil, failure
		case FailurePolicyCollect:
			invocation.failures = append(invocation.failures, failure)
		}
		return nil, nil
	}

	logger.Info(taskFinishedMessageConstant, zap.Int64(durationFieldConstant, elapsed.Milliseconds()))
	invocation.records = append(invocation.records, TaskRecord{
		Name:     task.name,
		Kind:     task.kind,
		Status:   TaskStatusFinished,
		Duration: elapsed,
		Result:   result,
	})
	return result, nil
}

func invokeAction(executionContext context.Context, action Action) (result any, actionError error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			result = nil
			actionError = fmt.Errorf(actionPanicTemplateConstant, recovered)
		}
	}()
	return action(executionContext)
}

func (invocation *invocation) complete() ExecutionOutcome {
	return ExecutionOutcome{
		Records:  invocation.records,
		Duration: invocation.runner.clock().Sub(invocation.startedAt),
	}
}

func (invocation *invocation) abort(abortError error) (ExecutionOutcome, error) {
	outcome := invocation.complete()
	invocation.runner.logger.Debug(runAbortedMessageConstant, zap.Error(abortError))
	return outcome, abortError
}
