package execshell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sort"
)

// OSCommandRunner runs commands as child processes of the current process.
type OSCommandRunner struct {
	outputWriter io.Writer
	errorWriter  io.Writer
}

// OSCommandRunnerOption customizes an OSCommandRunner.
type OSCommandRunnerOption func(*OSCommandRunner)

// WithOutputStreams mirrors child standard output and standard error to the provided writers
// while still capturing them in the ExecutionResult.
func WithOutputStreams(outputWriter io.Writer, errorWriter io.Writer) OSCommandRunnerOption {
	return func(runner *OSCommandRunner) {
		runner.outputWriter = outputWriter
		runner.errorWriter = errorWriter
	}
}

// NewOSCommandRunner constructs a runner backed by os/exec.
func NewOSCommandRunner(options ...OSCommandRunnerOption) *OSCommandRunner {
	runner := &OSCommandRunner{}
	for _, option := range options {
		if option != nil {
			option(runner)
		}
	}
	return runner
}

// Run executes the command. A non-zero exit status is reported through ExecutionResult.ExitCode;
// the returned error is reserved for commands that could not be started or were interrupted.
func (runner *OSCommandRunner) Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	if len(command.Name) == 0 {
		return ExecutionResult{}, ErrCommandNameMissing
	}
	if executionContext == nil {
		executionContext = context.Background()
	}

	process := exec.CommandContext(executionContext, string(command.Name), command.Details.Arguments...)
	process.Dir = command.Details.WorkingDirectory
	if len(command.Details.EnvironmentVariables) > 0 {
		process.Env = mergeEnvironment(os.Environ(), command.Details.EnvironmentVariables)
	}
	if len(command.Details.StandardInput) > 0 {
		process.Stdin = bytes.NewReader(command.Details.StandardInput)
	}

	var standardOutput bytes.Buffer
	var standardError bytes.Buffer
	process.Stdout = teeWriter(&standardOutput, runner.outputWriter)
	process.Stderr = teeWriter(&standardError, runner.errorWriter)

	runError := process.Run()
	result := ExecutionResult{
		StandardOutput: standardOutput.String(),
		StandardError:  standardError.String(),
	}

	if runError == nil {
		return result, nil
	}

	var exitError *exec.ExitError
	if errors.As(runError, &exitError) && executionContext.Err() == nil {
		result.ExitCode = exitError.ExitCode()
		return result, nil
	}
	if contextError := executionContext.Err(); contextError != nil {
		return result, contextError
	}
	return result, runError
}

func teeWriter(capture io.Writer, mirror io.Writer) io.Writer {
	if mirror == nil {
		return capture
	}
	return io.MultiWriter(capture, mirror)
}

func mergeEnvironment(base []string, overrides map[string]string) []string {
	overrideKeys := make([]string, 0, len(overrides))
	for key := range overrides {
		overrideKeys = append(overrideKeys, key)
	}
	sort.Strings(overrideKeys)

	merged := make([]string, 0, len(base)+len(overrides))
	merged = append(merged, base...)
	for _, key := range overrideKeys {
		merged = append(merged, key+"="+overrides[key])
	}
	return merged
}
