package taskfile

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"

	"github.com/tyemirov/buildtask/internal/execshell"
	"github.com/tyemirov/buildtask/pkg/taskrunner"
)

const (
	commandMissingTemplateConstant        = "task %q declares options without a command"
	optionsDecodeErrorTemplateConstant    = "task %q has invalid options: %w"
	registryMissingMessageConstant        = "task registry not configured"
	commandExecutorMissingMessageConstant = "command executor not configured"
)

var (
	// ErrCommandMissing indicates a task with options but no command.
	ErrCommandMissing = errors.New("task command missing")
	// ErrRegistryNotConfigured indicates Register was called without a registry.
	ErrRegistryNotConfigured = errors.New(registryMissingMessageConstant)
	// ErrCommandExecutorNotConfigured indicates a command-backed task without an executor.
	ErrCommandExecutorNotConfigured = errors.New(commandExecutorMissingMessageConstant)
)

// CommandExecutor runs the external command behind a command-backed task.
type CommandExecutor interface {
	Execute(context.Context, execshell.ShellCommand) (execshell.ExecutionResult, error)
}

// CommandOptions configures a command-backed task through its `with` block.
type CommandOptions struct {
	Command          string            `mapstructure:"command"`
	Arguments        []string          `mapstructure:"arguments"`
	WorkingDirectory string            `mapstructure:"working_directory"`
	Environment      map[string]string `mapstructure:"environment"`
}

// Register adds every task definition to registry in declaration order. Definitions with a
// command become action tasks executed through executor; the rest become group tasks.
func (file File) Register(registry *taskrunner.Registry, executor CommandExecutor) error {
	if registry == nil {
		return ErrRegistryNotConfigured
	}

	for definitionIndex := range file.Tasks {
		definition := file.Tasks[definitionIndex]
		options, decodeError := decodeCommandOptions(definition)
		if decodeError != nil {
			return decodeError
		}

		if len(options.Command) == 0 {
			registry.Register(definition.Name, definition.After, nil)
			continue
		}
		if executor == nil {
			return ErrCommandExecutorNotConfigured
		}

		command := file.shellCommand(definition.Name, options)
		registry.Register(definition.Name, definition.After, commandAction(executor, command))
	}

	return nil
}

// CommandFor reports the shell command bound to the named definition, if any.
func (file File) CommandFor(name string) (execshell.ShellCommand, bool, error) {
	for definitionIndex := len(file.Tasks) - 1; definitionIndex >= 0; definitionIndex-- {
		definition := file.Tasks[definitionIndex]
		if definition.Name != name {
			continue
		}
		options, decodeError := decodeCommandOptions(definition)
		if decodeError != nil {
			return execshell.ShellCommand{}, false, decodeError
		}
		if len(options.Command) == 0 {
			return execshell.ShellCommand{}, false, nil
		}
		return file.shellCommand(definition.Name, options), true, nil
	}
	return execshell.ShellCommand{}, false, nil
}

func (file File) shellCommand(taskName string, options CommandOptions) execshell.ShellCommand {
	commandFields := strings.Fields(options.Command)
	arguments := append(append([]string{}, commandFields[1:]...), options.Arguments...)

	workingDirectory := strings.TrimSpace(options.WorkingDirectory)
	switch {
	case len(workingDirectory) == 0:
		workingDirectory = file.BaseDirectory
	case !filepath.IsAbs(workingDirectory) && len(file.BaseDirectory) > 0:
		workingDirectory = filepath.Join(file.BaseDirectory, workingDirectory)
	}

	var environment map[string]string
	if len(options.Environment) > 0 {
		environment = make(map[string]string, len(options.Environment))
		for key, value := range options.Environment {
			environment[key] = value
		}
	}

	return execshell.ShellCommand{
		Name: execshell.CommandName(commandFields[0]),
		Details: execshell.CommandDetails{
			Label:                taskName,
			Arguments:            arguments,
			WorkingDirectory:     workingDirectory,
			EnvironmentVariables: environment,
		},
	}
}

func commandAction(executor CommandExecutor, command execshell.ShellCommand) taskrunner.Action {
	return func(executionContext context.Context) (any, error) {
		executionResult, executionError := executor.Execute(executionContext, command)
		if executionError != nil {
			return nil, executionError
		}
		return executionResult, nil
	}
}

func decodeCommandOptions(definition TaskDefinition) (CommandOptions, error) {
	var options CommandOptions
	if len(definition.Options) == 0 {
		return options, nil
	}

	decoder, decoderError := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		Result:           &options,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       splitArgumentStringHook,
	})
	if decoderError != nil {
		return CommandOptions{}, decoderError
	}
	if decodeError := decoder.Decode(definition.Options); decodeError != nil {
		return CommandOptions{}, fmt.Errorf(optionsDecodeErrorTemplateConstant, definition.Name, decodeError)
	}

	options.Command = strings.TrimSpace(options.Command)
	if len(options.Command) == 0 {
		return CommandOptions{}, fmt.Errorf("%w: %s", ErrCommandMissing, fmt.Sprintf(commandMissingTemplateConstant, definition.Name))
	}
	return options, nil
}

// splitArgumentStringHook lets `arguments: run build` stand for `arguments: [run, build]`.
func splitArgumentStringHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf([]string{}) {
		return data, nil
	}
	return strings.Fields(reflect.ValueOf(data).String()), nil
}
