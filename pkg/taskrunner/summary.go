package taskrunner

import (
	"fmt"
	"strings"
	"time"
)

// TaskStatus is the terminal state of a task within one invocation.
type TaskStatus string

const (
	// TaskStatusFinished marks a group task or an action that returned without error.
	TaskStatusFinished TaskStatus = "finished"
	// TaskStatusFailed marks an action that returned an error.
	TaskStatusFailed TaskStatus = "failed"
)

// TaskRecord describes one executed task in completion order.
type TaskRecord struct {
	Name     string
	Kind     TaskKind
	Status   TaskStatus
	Duration time.Duration
	Result   any
}

// ExecutionOutcome captures the tasks executed by one invocation.
type ExecutionOutcome struct {
	Records  []TaskRecord
	Duration time.Duration
}

// Names returns executed task names in completion order.
func (outcome ExecutionOutcome) Names() []string {
	names := make([]string, 0, len(outcome.Records))
	for _, record := range outcome.Records {
		names = append(names, record.Name)
	}
	return names
}

// Result returns the stored result of the named task when it finished during the invocation.
func (outcome ExecutionOutcome) Result(name string) (any, bool) {
	for _, record := range outcome.Records {
		if record.Name == name {
			return record.Result, record.Status == TaskStatusFinished
		}
	}
	return nil, false
}

// FailedCount reports the number of failed actions.
func (outcome ExecutionOutcome) FailedCount() int {
	failedCount := 0
	for _, record := range outcome.Records {
		if record.Status == TaskStatusFailed {
			failedCount++
		}
	}
	return failedCount
}

// RenderSummaryLine returns the summary line printed after runs touching more than one task.
func RenderSummaryLine(outcome ExecutionOutcome) string {
	taskCount := len(outcome.Records)
	if taskCount <= 1 {
		return ""
	}

	failedCount := outcome.FailedCount()
	parts := []string{
		fmt.Sprintf("Summary: total.tasks=%d", taskCount),
		fmt.Sprintf("%s=%d", TaskStatusFinished, taskCount-failedCount),
		fmt.Sprintf("%s=%d", TaskStatusFailed, failedCount),
	}

	durationHuman := strings.TrimSpace(outcome.Duration.Round(time.Millisecond).String())
	if durationHuman == "" {
		durationHuman = "0s"
	}

	parts = append(parts, fmt.Sprintf("duration_human=%s", durationHuman))
	parts = append(parts, fmt.Sprintf("duration_ms=%d", outcome.Duration.Milliseconds()))

	return strings.Join(parts, " ")
}
