package execshell

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	loggerNotConfiguredMessageConstant        = "shell executor logger not configured"
	commandRunnerNotConfiguredMessageConstant = "shell executor command runner not configured"
	commandNameMissingMessageConstant         = "shell command name not provided"
	commandStartMessageConstant               = "command execution starting"
	commandSuccessMessageConstant             = "command execution completed"
	commandFailureMessageConstant             = "command returned non-zero status"
	commandRunnerErrorMessageConstant         = "command execution error"
	commandNameFieldNameConstant              = "command"
	commandArgumentsFieldNameConstant         = "arguments"
	commandLabelFieldNameConstant             = "task"
	workingDirectoryFieldNameConstant         = "working_directory"
	exitCodeFieldNameConstant                 = "exit_code"
	durationFieldNameConstant                 = "duration"
	standardErrorFieldNameConstant            = "stderr"
	failureDetailLineLimitConstant            = 3
)

// CommandName identifies an executable resolved through PATH or given as a path.
type CommandName string

// CommandGit names the git executable.
const CommandGit CommandName = "git"

// CommandDetails describes command invocation properties. Label names the task the command
// belongs to and only appears in logs.
type CommandDetails struct {
	Label                string
	Arguments            []string
	WorkingDirectory     string
	EnvironmentVariables map[string]string
	StandardInput        []byte
}

// ShellCommand represents a fully qualified command invocation.
type ShellCommand struct {
	Name    CommandName
	Details CommandDetails
}

// ExecutionResult captures observable command results.
type ExecutionResult struct {
	StandardOutput string
	StandardError  string
	ExitCode       int
	Duration       time.Duration
}

// CommandRunner executes shell commands.
type CommandRunner interface {
	Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error)
}

// ShellExecutor runs commands through a CommandRunner, logging each lifecycle event either as
// structured fields or as a single human-readable sentence.
type ShellExecutor struct {
	commandRunner        CommandRunner
	logger               *zap.Logger
	humanReadableLogging bool
	messageFormatter     CommandMessageFormatter
	clock                func() time.Time
}

var (
	// ErrLoggerNotConfigured indicates the logger dependency was missing.
	ErrLoggerNotConfigured = errors.New(loggerNotConfiguredMessageConstant)
	// ErrCommandRunnerNotConfigured indicates the command runner dependency was missing.
	ErrCommandRunnerNotConfigured = errors.New(commandRunnerNotConfiguredMessageConstant)
	// ErrCommandNameMissing indicates the command name was not provided.
	ErrCommandNameMissing = errors.New(commandNameMissingMessageConstant)
)

// CommandFailedError reports a command that exited with a non-zero code.
type CommandFailedError struct {
	Command ShellCommand
	Result  ExecutionResult
}

const commandFailureErrorMessageTemplateConstant = "%s command exited with code %d"

// Error names the command and its arguments, followed by the first lines of its error output
// (or standard output when the error stream was empty).
func (commandError CommandFailedError) Error() string {
	baseMessage := fmt.Sprintf(commandFailureErrorMessageTemplateConstant, commandError.Command.Name, commandError.Result.ExitCode)

	if len(commandError.Command.Details.Arguments) > 0 {
		baseMessage = fmt.Sprintf("%s (%s)", baseMessage, strings.Join(commandError.Command.Details.Arguments, " "))
	}

	detail := strings.TrimSpace(commandError.Result.StandardError)
	if len(detail) == 0 {
		detail = strings.TrimSpace(commandError.Result.StandardOutput)
	}
	if summary := summarizeOutput(detail, failureDetailLineLimitConstant); len(summary) > 0 {
		baseMessage = fmt.Sprintf("%s: %s", baseMessage, summary)
	}

	return baseMessage
}

// CommandExecutionError wraps failures to start or wait for a command.
type CommandExecutionError struct {
	Command ShellCommand
	Cause   error
}

const commandExecutionErrorMessageTemplateConstant = "%s command execution failed"

func (executionError CommandExecutionError) Error() string {
	return fmt.Sprintf(commandExecutionErrorMessageTemplateConstant, executionError.Command.Name)
}

// Unwrap exposes the underlying error.
func (executionError CommandExecutionError) Unwrap() error {
	return executionError.Cause
}

// NewShellExecutor builds an executor for the provided runner and logger.
func NewShellExecutor(logger *zap.Logger, commandRunner CommandRunner, humanReadableLogging bool) (*ShellExecutor, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if commandRunner == nil {
		return nil, ErrCommandRunnerNotConfigured
	}
	return &ShellExecutor{
		commandRunner:        commandRunner,
		logger:               logger,
		humanReadableLogging: humanReadableLogging,
		messageFormatter:     CommandMessageFormatter{},
		clock:                time.Now,
	}, nil
}

// Execute runs command and records how long it took. A non-zero exit code is returned as
// CommandFailedError and a runner failure as CommandExecutionError; both discard the output.
func (executor *ShellExecutor) Execute(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	if len(strings.TrimSpace(string(command.Name))) == 0 {
		return ExecutionResult{}, ErrCommandNameMissing
	}

	executor.logEvent(zapcore.InfoLevel, command,
		executor.messageFormatter.BuildStartedMessage(command),
		commandStartMessageConstant,
		zap.Strings(commandArgumentsFieldNameConstant, command.Details.Arguments),
		zap.String(workingDirectoryFieldNameConstant, command.Details.WorkingDirectory),
	)

	startedAt := executor.clock()
	executionResult, runnerError := executor.commandRunner.Run(executionContext, command)
	executionResult.Duration = executor.clock().Sub(startedAt)

	switch {
	case runnerError != nil:
		executor.logEvent(zapcore.ErrorLevel, command,
			executor.messageFormatter.BuildExecutionFailureMessage(command, runnerError),
			commandRunnerErrorMessageConstant,
			zap.Error(runnerError),
		)
		return ExecutionResult{}, CommandExecutionError{Command: command, Cause: runnerError}
	case executionResult.ExitCode != 0:
		executor.logEvent(zapcore.WarnLevel, command,
			executor.messageFormatter.BuildFailureMessage(command, executionResult),
			commandFailureMessageConstant,
			zap.Int(exitCodeFieldNameConstant, executionResult.ExitCode),
			zap.String(standardErrorFieldNameConstant, executionResult.StandardError),
			zap.Duration(durationFieldNameConstant, executionResult.Duration),
		)
		return ExecutionResult{}, CommandFailedError{Command: command, Result: executionResult}
	}

	executor.logEvent(zapcore.InfoLevel, command,
		executor.messageFormatter.BuildSuccessMessage(command),
		commandSuccessMessageConstant,
		zap.Int(exitCodeFieldNameConstant, executionResult.ExitCode),
		zap.Duration(durationFieldNameConstant, executionResult.Duration),
	)
	return executionResult, nil
}

// ExecuteGit runs the git executable with the provided details.
func (executor *ShellExecutor) ExecuteGit(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.Execute(executionContext, ShellCommand{Name: CommandGit, Details: details})
}

func (executor *ShellExecutor) logEvent(level zapcore.Level, command ShellCommand, humanMessage string, structuredMessage string, fields ...zap.Field) {
	if executor.humanReadableLogging {
		executor.logger.Log(level, humanMessage)
		return
	}

	eventFields := make([]zap.Field, 0, len(fields)+2)
	eventFields = append(eventFields, zap.String(commandNameFieldNameConstant, string(command.Name)))
	if label := strings.TrimSpace(command.Details.Label); len(label) > 0 {
		eventFields = append(eventFields, zap.String(commandLabelFieldNameConstant, label))
	}
	executor.logger.Log(level, structuredMessage, append(eventFields, fields...)...)
}

func summarizeOutput(output string, lineLimit int) string {
	if len(output) == 0 {
		return ""
	}
	lines := strings.Split(output, "\n")
	if len(lines) > lineLimit {
		lines = lines[:lineLimit]
	}
	summarized := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); len(trimmed) > 0 {
			summarized = append(summarized, trimmed)
		}
	}
	return strings.Join(summarized, " | ")
}
