package taskrunner_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tyemirov/buildtask/pkg/taskrunner"
)

func TestFormatDuration(testInstance *testing.T) {
	testCases := []struct {
		name     string
		elapsed  time.Duration
		expected string
	}{
		{name: "zero", elapsed: 0, expected: "0 ms"},
		{name: "sub_millisecond", elapsed: 400 * time.Microsecond, expected: "0 ms"},
		{name: "milliseconds", elapsed: 250 * time.Millisecond, expected: "250 ms"},
		{name: "just_below_second", elapsed: 999 * time.Millisecond, expected: "999 ms"},
		{name: "one_second", elapsed: time.Second, expected: "1.00 s"},
		{name: "fractional_seconds", elapsed: 1500 * time.Millisecond, expected: "1.50 s"},
		{name: "minute", elapsed: 61250 * time.Millisecond, expected: "61.25 s"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expected, taskrunner.FormatDuration(testCase.elapsed))
		})
	}
}

func TestStatusLoggerRendersBracketedTimestamp(testInstance *testing.T) {
	var buffer bytes.Buffer
	clock := newManualClock()
	statusLogger := taskrunner.NewStatusLogger(&buffer, zap.WithClock(clock))

	statusLogger.Info("Starting 'build:js'...")
	require.Equal(testInstance, "[14:03:07] Starting 'build:js'...\n", buffer.String())
}

func TestStatusLoggerRendersRunnerTransitions(testInstance *testing.T) {
	var buffer bytes.Buffer
	clock := newManualClock()

	registry := taskrunner.NewRegistry()
	registry.Register("build:js", nil, func(context.Context) (any, error) {
		clock.Advance(2 * time.Second)
		return nil, nil
	})
	registry.Register("build", []string{"build:js"}, nil)

	runner, runnerError := taskrunner.NewRunner(
		registry,
		taskrunner.WithStatusLogger(taskrunner.NewStatusLogger(&buffer, zap.WithClock(clock))),
		taskrunner.WithClock(clock.Now),
	)
	require.NoError(testInstance, runnerError)
	require.NoError(testInstance, runner.Run(context.Background(), "build"))

	expected := "[14:03:07] Starting 'build:js'...\n" +
		"[14:03:09] Finished 'build:js' after 2.00 s\n" +
		"[14:03:09] Finished 'build'\n"
	require.Equal(testInstance, expected, buffer.String())
}
