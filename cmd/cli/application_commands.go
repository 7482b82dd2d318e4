package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/tyemirov/buildtask/internal/execshell"
	"github.com/tyemirov/buildtask/internal/taskfile"
	"github.com/tyemirov/buildtask/internal/utils"
	flagutils "github.com/tyemirov/buildtask/internal/utils/flags"
	"github.com/tyemirov/buildtask/pkg/taskrunner"
)

const (
	runCommandUseNameConstant               = "run [pattern...]"
	runCommandShortDescriptionConstant      = "Run tasks and their dependencies"
	runCommandLongDescriptionConstant       = "run executes each requested task name or *:<suffix> wildcard in order. Without arguments it runs the task file's default list, then the configured tasks.default list."
	listCommandUseNameConstant              = "list"
	listCommandAliasConstant                = "ls"
	listCommandShortDescriptionConstant     = "List tasks in registration order"
	listDetailsFlagNameConstant             = "details"
	listDetailsFlagUsageConstant            = "Print a YAML document with dependencies and commands."
	initCommandUseNameConstant              = "init"
	initCommandShortDescriptionConstant     = "Write the default configuration file"
	initCommandLongDescriptionConstant      = "init writes the embedded default configuration to LOCAL (./config.yaml) or USER ($HOME/.buildtask/config.yaml)."
	initScopeFlagNameConstant               = "scope"
	initScopeFlagUsageConstant              = "Where to write the configuration file."
	initForceFlagNameConstant               = "force"
	initForceFlagUsageConstant              = "Overwrite an existing configuration file."
	initSuccessTemplateConstant             = "configuration file created at %s\n"
	versionCommandUseNameConstant           = "version"
	versionCommandShortDescriptionConstant  = "Print the buildtask version"
	noTasksRequestedMessageConstant         = "no tasks requested: pass a task pattern or define a default list"
	taskFileMissingMessageConstant          = "task file path is not configured"
	configurationInitializationDoneConstant = "configuration file created"
	taskFileLoadedMessageConstant           = "task file loaded"
	taskCountFieldConstant                  = "task_count"
	patternsFieldConstant                   = "patterns"
	runRequestedMessageConstant             = "run requested"
)

var errNoTasksRequested = errors.New(noTasksRequestedMessageConstant)

type taskListingEntry struct {
	Name             string            `yaml:"name"`
	After            []string          `yaml:"after,omitempty"`
	Command          string            `yaml:"command,omitempty"`
	WorkingDirectory string            `yaml:"working_directory,omitempty"`
	Environment      map[string]string `yaml:"environment,omitempty"`
}

func (application *Application) registerCommands(rootCommand *cobra.Command) {
	runCommand := &cobra.Command{
		Use:   runCommandUseNameConstant,
		Short: runCommandShortDescriptionConstant,
		Long:  runCommandLongDescriptionConstant,
		RunE:  application.runTasks,
	}

	listCommand := &cobra.Command{
		Use:     listCommandUseNameConstant,
		Aliases: []string{listCommandAliasConstant},
		Short:   listCommandShortDescriptionConstant,
		Args:    cobra.NoArgs,
		RunE:    application.listTasks,
	}
	listCommand.Flags().BoolVar(&application.listDetails, listDetailsFlagNameConstant, false, listDetailsFlagUsageConstant)

	initCommand := &cobra.Command{
		Use:   initCommandUseNameConstant,
		Short: initCommandShortDescriptionConstant,
		Long:  initCommandLongDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  application.initializeConfigurationFile,
	}
	application.initializationScope = flagutils.AddChoiceFlag(
		initCommand.Flags(),
		initScopeFlagNameConstant,
		configurationInitializationScopeLocalConstant,
		[]string{configurationInitializationScopeLocalConstant, configurationInitializationScopeUserConstant},
		initScopeFlagUsageConstant,
	)
	initCommand.Flags().BoolVar(&application.initializationForced, initForceFlagNameConstant, false, initForceFlagUsageConstant)

	versionCommand := &cobra.Command{
		Use:   versionCommandUseNameConstant,
		Short: versionCommandShortDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			application.printVersion(command)
			return nil
		},
	}

	rootCommand.AddCommand(runCommand, listCommand, initCommand, versionCommand)
}

func (application *Application) runTasks(command *cobra.Command, arguments []string) error {
	loadedFile, registry, buildError := application.buildRegistry(command)
	if buildError != nil {
		return buildError
	}

	patterns := resolveRequestedPatterns(arguments, loadedFile.Default, application.configuration.Tasks.Default)
	if len(patterns) == 0 {
		return errNoTasksRequested
	}

	failurePolicy, policyError := taskrunner.ParseFailurePolicy(application.configuration.Tasks.FailurePolicy)
	if policyError != nil {
		return fmt.Errorf(failurePolicyErrorTemplateConstant, policyError)
	}

	runner, runnerError := taskrunner.NewRunner(
		registry,
		taskrunner.WithStatusLogger(taskrunner.NewStatusLogger(utils.NewFlushingWriter(command.OutOrStdout()))),
		taskrunner.WithLogger(application.logger),
		taskrunner.WithFailurePolicy(failurePolicy),
	)
	if runnerError != nil {
		return runnerError
	}

	application.logger.Info(runRequestedMessageConstant, zap.Strings(patternsFieldConstant, patterns))
	outcome, runError := runner.Execute(command.Context(), patterns...)
	if summaryLine := taskrunner.RenderSummaryLine(outcome); len(summaryLine) > 0 {
		fmt.Fprintln(command.OutOrStdout(), summaryLine)
	}
	return runError
}

func (application *Application) listTasks(command *cobra.Command, _ []string) error {
	loadedFile, registry, buildError := application.buildRegistry(command)
	if buildError != nil {
		return buildError
	}

	outputWriter := command.OutOrStdout()
	if !application.listDetails {
		for _, taskName := range registry.Names() {
			fmt.Fprintln(outputWriter, taskName)
		}
		return nil
	}

	entries := make([]taskListingEntry, 0, registry.Len())
	for _, taskName := range registry.Names() {
		task, found := registry.Lookup(taskName)
		if !found {
			continue
		}
		entry := taskListingEntry{Name: taskName, After: task.Dependencies()}

		shellCommand, bound, commandError := loadedFile.CommandFor(taskName)
		if commandError != nil {
			return commandError
		}
		if bound {
			entry.Command = strings.Join(append([]string{string(shellCommand.Name)}, shellCommand.Details.Arguments...), " ")
			entry.WorkingDirectory = shellCommand.Details.WorkingDirectory
			entry.Environment = shellCommand.Details.EnvironmentVariables
		}
		entries = append(entries, entry)
	}

	encoder := yaml.NewEncoder(outputWriter)
	encoder.SetIndent(2)
	if encodeError := encoder.Encode(entries); encodeError != nil {
		return encodeError
	}
	return encoder.Close()
}

func (application *Application) initializeConfigurationFile(command *cobra.Command, _ []string) error {
	initializationPlan, planError := resolveConfigurationInitializationPlan(application.initializationScope.String())
	if planError != nil {
		return planError
	}

	configurationContent, _ := EmbeddedDefaultConfiguration()
	if writeError := writeConfigurationFile(application.fileSystem, initializationPlan, configurationContent, application.initializationForced); writeError != nil {
		return writeError
	}

	application.logger.Info(configurationInitializationDoneConstant, zap.String(configurationFileFieldConstant, initializationPlan.FilePath))
	fmt.Fprintf(command.OutOrStdout(), initSuccessTemplateConstant, initializationPlan.FilePath)
	return nil
}

func (application *Application) buildRegistry(command *cobra.Command) (taskfile.File, *taskrunner.Registry, error) {
	taskFilePath, configured := application.commandContextAccessor.TaskFilePath(command.Context())
	if !configured {
		return taskfile.File{}, nil, errors.New(taskFileMissingMessageConstant)
	}
	if absolutePath, absoluteError := filepath.Abs(taskFilePath); absoluteError == nil {
		taskFilePath = absolutePath
	}

	loadedFile, loadError := taskfile.NewLoader(application.fileSystem).Load(taskFilePath)
	if loadError != nil {
		return taskfile.File{}, nil, loadError
	}

	shellExecutor, executorError := execshell.NewShellExecutor(
		application.logger,
		execshell.NewOSCommandRunner(execshell.WithOutputStreams(command.OutOrStdout(), command.ErrOrStderr())),
		application.humanReadableLoggingEnabled(),
	)
	if executorError != nil {
		return taskfile.File{}, nil, executorError
	}

	registry := taskrunner.NewRegistry()
	if registerError := loadedFile.Register(registry, shellExecutor); registerError != nil {
		return taskfile.File{}, nil, registerError
	}

	application.logger.Debug(
		taskFileLoadedMessageConstant,
		zap.String(taskFileFieldConstant, taskFilePath),
		zap.Int(taskCountFieldConstant, registry.Len()),
	)
	return loadedFile, registry, nil
}

// resolveRequestedPatterns prefers explicit arguments, then the task file's default list, then the configured one.
func resolveRequestedPatterns(arguments []string, fileDefaults []string, configuredDefaults []string) []string {
	for _, candidates := range [][]string{arguments, fileDefaults, configuredDefaults} {
		patterns := make([]string, 0, len(candidates))
		for _, candidate := range candidates {
			if trimmed := strings.TrimSpace(candidate); len(trimmed) > 0 {
				patterns = append(patterns, trimmed)
			}
		}
		if len(patterns) > 0 {
			return patterns
		}
	}
	return nil
}
