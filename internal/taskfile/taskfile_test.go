package taskfile_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tyemirov/buildtask/internal/execshell"
	"github.com/tyemirov/buildtask/internal/taskfile"
	"github.com/tyemirov/buildtask/pkg/taskrunner"
)

const (
	testTaskFileDirectoryConstant = "/workspace/project"
	testTaskFileNameConstant      = "tasks.yaml"
	testBuildTaskFileConstant     = `default: [build]
tasks:
  - name: build:js
    with:
      command: npm run
      arguments: [build, --silent]
      working_directory: js
      environment:
        NODE_ENV: production
        RETRIES: 3
  - name: build:css
    with:
      command: sass
      arguments: src/main.scss dist/main.css
  - name: build
    after: [build:js, " *:css ", ""]
`
)

type recordingExecutor struct {
	commands []execshell.ShellCommand
	failures map[execshell.CommandName]error
}

func (executor *recordingExecutor) Execute(_ context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error) {
	executor.commands = append(executor.commands, command)
	if failure, exists := executor.failures[command.Name]; exists {
		return execshell.ExecutionResult{}, failure
	}
	return execshell.ExecutionResult{StandardOutput: string(command.Name)}, nil
}

func writeTaskFile(testInstance *testing.T, fileSystem afero.Fs, content string) string {
	testInstance.Helper()
	taskFilePath := filepath.Join(testTaskFileDirectoryConstant, testTaskFileNameConstant)
	require.NoError(testInstance, fileSystem.MkdirAll(testTaskFileDirectoryConstant, 0o755))
	require.NoError(testInstance, afero.WriteFile(fileSystem, taskFilePath, []byte(content), 0o600))
	return taskFilePath
}

func TestLoaderLoadParsesDefinitions(testInstance *testing.T) {
	fileSystem := afero.NewMemMapFs()
	taskFilePath := writeTaskFile(testInstance, fileSystem, testBuildTaskFileConstant)

	loadedFile, loadError := taskfile.NewLoader(fileSystem).Load(taskFilePath)
	require.NoError(testInstance, loadError)

	require.Equal(testInstance, []string{"build"}, loadedFile.Default)
	require.Equal(testInstance, testTaskFileDirectoryConstant, loadedFile.BaseDirectory)
	require.Len(testInstance, loadedFile.Tasks, 3)
	require.Equal(testInstance, "build:js", loadedFile.Tasks[0].Name)
	require.Equal(testInstance, []string{"build:js", "*:css"}, loadedFile.Tasks[2].After)
	require.Empty(testInstance, loadedFile.Tasks[2].Options)
}

func TestLoaderLoadErrors(testInstance *testing.T) {
	testCases := []struct {
		name            string
		content         string
		path            string
		expectedError   error
		expectedMessage string
	}{
		{
			name:            "path_required",
			path:            " ",
			expectedMessage: "task file path must be provided",
		},
		{
			name:            "missing_file",
			path:            "/workspace/absent.yaml",
			expectedMessage: "failed to load task file",
		},
		{
			name:            "tasks_not_sequence",
			content:         "tasks:\n  build: {}\n",
			expectedMessage: "tasks block must be defined as a sequence of task definitions",
		},
		{
			name:            "default_not_sequence",
			content:         "default: build\ntasks:\n  - name: build\n",
			expectedMessage: "default block must be defined as a sequence of task names",
		},
		{
			name:            "no_tasks",
			content:         "default: []\n",
			expectedMessage: "task file must define at least one task",
		},
		{
			name:          "missing_name",
			content:       "tasks:\n  - name: build\n  - after: [build]\n",
			expectedError: taskfile.ErrTaskNameMissing,
		},
		{
			name:            "invalid_yaml",
			content:         "tasks: [\n",
			expectedMessage: "failed to parse task file",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			fileSystem := afero.NewMemMapFs()
			taskFilePath := testCase.path
			if len(testCase.content) > 0 {
				taskFilePath = writeTaskFile(testInstance, fileSystem, testCase.content)
			}

			_, loadError := taskfile.NewLoader(fileSystem).Load(taskFilePath)
			require.Error(testInstance, loadError)
			if testCase.expectedError != nil {
				require.ErrorIs(testInstance, loadError, testCase.expectedError)
			}
			if len(testCase.expectedMessage) > 0 {
				require.ErrorContains(testInstance, loadError, testCase.expectedMessage)
			}
		})
	}
}

func TestFileRegisterBindsCommandActions(testInstance *testing.T) {
	fileSystem := afero.NewMemMapFs()
	taskFilePath := writeTaskFile(testInstance, fileSystem, testBuildTaskFileConstant)
	loadedFile, loadError := taskfile.NewLoader(fileSystem).Load(taskFilePath)
	require.NoError(testInstance, loadError)

	registry := taskrunner.NewRegistry()
	executor := &recordingExecutor{}
	require.NoError(testInstance, loadedFile.Register(registry, executor))
	require.Equal(testInstance, []string{"build:js", "build:css", "build"}, registry.Names())

	buildTask, found := registry.Lookup("build")
	require.True(testInstance, found)
	require.Equal(testInstance, taskrunner.TaskKindGroup, buildTask.Kind())

	statusCore, statusLogs := observer.New(zapcore.DebugLevel)
	runner, runnerError := taskrunner.NewRunner(registry, taskrunner.WithStatusLogger(zap.New(statusCore)))
	require.NoError(testInstance, runnerError)

	outcome, runError := runner.Execute(context.Background(), loadedFile.Default...)
	require.NoError(testInstance, runError)
	require.Equal(testInstance, []string{"build:js", "build:css", "build"}, outcome.Names())
	require.Len(testInstance, statusLogs.All(), 5)

	require.Equal(testInstance, []execshell.ShellCommand{
		{
			Name: "npm",
			Details: execshell.CommandDetails{
				Label:                "build:js",
				Arguments:            []string{"run", "build", "--silent"},
				WorkingDirectory:     filepath.Join(testTaskFileDirectoryConstant, "js"),
				EnvironmentVariables: map[string]string{"NODE_ENV": "production", "RETRIES": "3"},
			},
		},
		{
			Name: "sass",
			Details: execshell.CommandDetails{
				Label:            "build:css",
				Arguments:        []string{"src/main.scss", "dist/main.css"},
				WorkingDirectory: testTaskFileDirectoryConstant,
			},
		},
	}, executor.commands)

	jsResult, jsFinished := outcome.Result("build:js")
	require.True(testInstance, jsFinished)
	require.Equal(testInstance, execshell.ExecutionResult{StandardOutput: "npm"}, jsResult)
}

func TestFileRegisterReportsCommandFailuresThroughRunner(testInstance *testing.T) {
	parsedFile, parseError := taskfile.Parse([]byte("tasks:\n  - name: lint\n    with:\n      command: golangci-lint run\n"))
	require.NoError(testInstance, parseError)

	commandFailure := errors.New("exit status 1")
	registry := taskrunner.NewRegistry()
	executor := &recordingExecutor{failures: map[execshell.CommandName]error{"golangci-lint": commandFailure}}
	require.NoError(testInstance, parsedFile.Register(registry, executor))

	statusCore, _ := observer.New(zapcore.DebugLevel)
	runner, runnerError := taskrunner.NewRunner(
		registry,
		taskrunner.WithStatusLogger(zap.New(statusCore)),
		taskrunner.WithFailurePolicy(taskrunner.FailurePolicyPropagate),
	)
	require.NoError(testInstance, runnerError)

	runError := runner.Run(context.Background(), "lint")
	require.ErrorIs(testInstance, runError, commandFailure)
	require.Equal(testInstance, []string{"run"}, executor.commands[0].Details.Arguments)
	require.Empty(testInstance, executor.commands[0].Details.WorkingDirectory)
}

func TestFileRegisterValidation(testInstance *testing.T) {
	testCases := []struct {
		name            string
		content         string
		registry        *taskrunner.Registry
		executor        taskfile.CommandExecutor
		expectedError   error
		expectedMessage string
	}{
		{
			name:          "registry_required",
			content:       "tasks:\n  - name: all\n",
			executor:      &recordingExecutor{},
			expectedError: taskfile.ErrRegistryNotConfigured,
		},
		{
			name:          "executor_required_for_commands",
			content:       "tasks:\n  - name: test\n    with:\n      command: go test ./...\n",
			registry:      taskrunner.NewRegistry(),
			expectedError: taskfile.ErrCommandExecutorNotConfigured,
		},
		{
			name:          "options_without_command",
			content:       "tasks:\n  - name: test\n    with:\n      arguments: [./...]\n",
			registry:      taskrunner.NewRegistry(),
			executor:      &recordingExecutor{},
			expectedError: taskfile.ErrCommandMissing,
		},
		{
			name:            "unknown_option",
			content:         "tasks:\n  - name: test\n    with:\n      command: go\n      shell: bash\n",
			registry:        taskrunner.NewRegistry(),
			executor:        &recordingExecutor{},
			expectedMessage: "task \"test\" has invalid options",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			parsedFile, parseError := taskfile.Parse([]byte(testCase.content))
			require.NoError(testInstance, parseError)

			registerError := parsedFile.Register(testCase.registry, testCase.executor)
			require.Error(testInstance, registerError)
			if testCase.expectedError != nil {
				require.ErrorIs(testInstance, registerError, testCase.expectedError)
			}
			if len(testCase.expectedMessage) > 0 {
				require.ErrorContains(testInstance, registerError, testCase.expectedMessage)
			}
		})
	}
}

func TestFileRegisterDuplicateNamesKeepLastDefinition(testInstance *testing.T) {
	parsedFile, parseError := taskfile.Parse([]byte("tasks:\n  - name: test\n    with:\n      command: go test\n  - name: vet\n  - name: test\n    after: [vet]\n"))
	require.NoError(testInstance, parseError)

	registry := taskrunner.NewRegistry()
	require.NoError(testInstance, parsedFile.Register(registry, &recordingExecutor{}))
	require.Equal(testInstance, []string{"test", "vet"}, registry.Names())

	testTask, found := registry.Lookup("test")
	require.True(testInstance, found)
	require.Equal(testInstance, taskrunner.TaskKindGroup, testTask.Kind())
	require.Equal(testInstance, []string{"vet"}, testTask.Dependencies())

	_, bound, lookupError := parsedFile.CommandFor("test")
	require.NoError(testInstance, lookupError)
	require.False(testInstance, bound)
}
