package taskrunner

import (
	"strings"
	"sync"
)

const (
	// NameSeparator splits a task name into its namespace and action segments.
	NameSeparator = ":"
	// WildcardPrefix selects every task sharing the suffix that follows the separator.
	WildcardPrefix = "*"
)

// Registry maps task names to task definitions in registration order.
type Registry struct {
	mutex sync.RWMutex
	tasks map[string]*Task
	order []string
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*Task)}
}

// Register stores a task under name and returns it. A nil action registers a group task.
// Dependencies are not validated until they are resolved during a run.
func (registry *Registry) Register(name string, dependencies []string, action Action) *Task {
	task := NewTask(name, dependencies, action)
	registry.RegisterTask(task)
	return task
}

// RegisterTask stores a prebuilt task. Re-registering a name replaces the previous
// definition while keeping the name's original position in Names.
func (registry *Registry) RegisterTask(task *Task) {
	if task == nil {
		return
	}

	registry.mutex.Lock()
	defer registry.mutex.Unlock()

	if _, exists := registry.tasks[task.name]; !exists {
		registry.order = append(registry.order, task.name)
	}
	registry.tasks[task.name] = task
}

// Names returns every registered task name in registration order.
func (registry *Registry) Names() []string {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()

	names := make([]string, len(registry.order))
	copy(names, registry.order)
	return names
}

// Lookup returns the task registered under the exact name.
func (registry *Registry) Lookup(name string) (*Task, bool) {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()

	task, exists := registry.tasks[name]
	return task, exists
}

// Len reports the number of registered tasks.
func (registry *Registry) Len() int {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()

	return len(registry.order)
}

// Resolve returns the tasks selected by pattern. A `*:<suffix>` pattern selects every task
// whose name ends with `:<suffix>` and may select none. Any other pattern must name a
// registered task exactly; otherwise an UnknownTaskError is returned, carrying the
// referrer's name when the pattern came from a dependency list.
func (registry *Registry) Resolve(pattern string, referrer *Task) ([]*Task, error) {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()

	prefix, suffix, separated := strings.Cut(pattern, NameSeparator)
	if separated && prefix == WildcardPrefix {
		requiredSuffix := NameSeparator + suffix
		matches := make([]*Task, 0)
		for _, name := range registry.order {
			if strings.HasSuffix(name, requiredSuffix) {
				matches = append(matches, registry.tasks[name])
			}
		}
		return matches, nil
	}

	if task, exists := registry.tasks[pattern]; exists {
		return []*Task{task}, nil
	}

	unknownTaskError := UnknownTaskError{Pattern: pattern}
	if referrer != nil {
		unknownTaskError.Referrer = referrer.name
	}
	return nil, unknownTaskError
}
