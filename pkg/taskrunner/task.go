package taskrunner

import "context"

const (
	taskKindGroupNameConstant  = "group"
	taskKindActionNameConstant = "action"
)

// TaskKind distinguishes grouping tasks from tasks that perform work.
type TaskKind int

const (
	// TaskKindGroup marks a task without an action; it only fans out to its dependencies.
	TaskKindGroup TaskKind = iota
	// TaskKindAction marks a task that invokes an Action once its dependencies complete.
	TaskKindAction
)

// String returns the lowercase kind name used in diagnostics.
func (kind TaskKind) String() string {
	if kind == TaskKindAction {
		return taskKindActionNameConstant
	}
	return taskKindGroupNameConstant
}

// Action performs the work of a task and returns its result.
type Action func(ctx context.Context) (any, error)

// Task is a named unit of work with ordered dependency patterns.
type Task struct {
	name         string
	dependencies []string
	kind         TaskKind
	action       Action
}

// NewTask builds an action task when action is non-nil and a group task otherwise.
func NewTask(name string, dependencies []string, action Action) *Task {
	if action == nil {
		return NewGroupTask(name, dependencies)
	}
	return &Task{
		name:         name,
		dependencies: copyPatterns(dependencies),
		kind:         TaskKindAction,
		action:       action,
	}
}

// NewGroupTask builds a task whose only purpose is to run its dependencies.
func NewGroupTask(name string, dependencies []string) *Task {
	return &Task{
		name:         name,
		dependencies: copyPatterns(dependencies),
		kind:         TaskKindGroup,
	}
}

// Name returns the task identifier.
func (task *Task) Name() string {
	return task.name
}

// Dependencies returns a copy of the declared dependency patterns in declaration order.
func (task *Task) Dependencies() []string {
	return copyPatterns(task.dependencies)
}

// Kind reports whether the task is a group or an action task.
func (task *Task) Kind() TaskKind {
	return task.kind
}

func copyPatterns(patterns []string) []string {
	if len(patterns) == 0 {
		return nil
	}
	copied := make([]string, len(patterns))
	copy(copied, patterns)
	return copied
}
