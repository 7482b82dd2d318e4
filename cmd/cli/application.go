package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/tyemirov/buildtask/internal/utils"
	flagutils "github.com/tyemirov/buildtask/internal/utils/flags"
	"github.com/tyemirov/buildtask/internal/version"
	"github.com/tyemirov/buildtask/pkg/taskrunner"
)

const (
	applicationNameConstant                         = "buildtask"
	applicationShortDescriptionConstant             = "Run declarative build tasks with their dependencies"
	applicationLongDescriptionConstant              = "buildtask loads a task file, resolves task names and *:<suffix> wildcards, and runs each task once after its dependencies."
	configFileFlagNameConstant                      = "config"
	configFileFlagUsageConstant                     = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant                        = "log-level"
	logLevelFlagUsageConstant                       = "Override the configured log level."
	logFormatFlagNameConstant                       = "log-format"
	logFormatFlagUsageConstant                      = "Override the configured log format (structured or console)."
	taskFileFlagNameConstant                        = "tasks"
	taskFileFlagUsageConstant                       = "Path to the task file."
	failurePolicyFlagNameConstant                   = "failure-policy"
	failurePolicyFlagUsageConstant                  = "How a failing task action affects the run."
	versionFlagNameConstant                         = "version"
	versionFlagUsageConstant                        = "Print the application version and exit"
	versionOutputTemplateConstant                   = "buildtask version: %s\n"
	commonConfigurationKeyConstant                  = "common"
	commonLogLevelConfigKeyConstant                 = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant                = commonConfigurationKeyConstant + ".log_format"
	tasksConfigurationKeyConstant                   = "tasks"
	tasksFileConfigKeyConstant                      = tasksConfigurationKeyConstant + ".file"
	tasksFailurePolicyConfigKeyConstant             = tasksConfigurationKeyConstant + ".failure_policy"
	tasksDefaultConfigKeyConstant                   = tasksConfigurationKeyConstant + ".default"
	defaultTaskFileNameConstant                     = "tasks.yaml"
	environmentPrefixConstant                       = "BUILDTASK"
	configurationNameConstant                       = "config"
	configurationTypeConstant                       = "yaml"
	configurationFileNameConstant                   = configurationNameConstant + "." + configurationTypeConstant
	configurationInitializedMessageConstant         = "configuration initialized"
	configurationLogLevelFieldConstant              = "log_level"
	configurationLogFormatFieldConstant             = "log_format"
	configurationFileFieldConstant                  = "config_file"
	taskFileFieldConstant                           = "task_file"
	configurationLoadErrorTemplateConstant          = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant             = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant                 = "unable to flush logger: %w"
	failurePolicyErrorTemplateConstant              = "invalid failure policy: %w"
	configurationInitializedConsoleTemplateConstant = "%s | log level=%s | log format=%s | config file=%s | task file=%s"
	loggerNotInitializedMessageConstant             = "logger not initialized"
)

type loggerOutputsFactory interface {
	CreateLoggerOutputs(utils.LogLevel, utils.LogFormat) (utils.LoggerOutputs, error)
}

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand            *cobra.Command
	configurationLoader    *utils.ConfigurationLoader
	loggerFactory          loggerOutputsFactory
	logger                 *zap.Logger
	consoleLogger          *zap.Logger
	configuration          ApplicationConfiguration
	configurationMetadata  utils.LoadedConfiguration
	configurationFilePath  string
	logLevelFlagValue      string
	logFormatFlagValue     string
	taskFileFlagValue      string
	failurePolicyFlagValue *flagutils.ChoiceValue
	commandContextAccessor utils.CommandContextAccessor
	fileSystem             afero.Fs
	initializationScope    *flagutils.ChoiceValue
	initializationForced   bool
	listDetails            bool
	versionFlag            bool
	versionResolver        func(context.Context) string
	exitFunction           func(int)
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	application := &Application{
		loggerFactory:          utils.NewLoggerFactory(),
		logger:                 zap.NewNop(),
		consoleLogger:          zap.NewNop(),
		commandContextAccessor: utils.NewCommandContextAccessor(),
		fileSystem:             afero.NewOsFs(),
	}
	application.versionResolver = application.resolveVersion
	application.exitFunction = os.Exit

	application.configurationLoader = utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		application.resolveConfigurationSearchPaths(),
	)

	embeddedConfigurationData, embeddedConfigurationType := EmbeddedDefaultConfiguration()
	application.configurationLoader.SetEmbeddedConfiguration(embeddedConfigurationData, embeddedConfigurationType)

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			if initializationError := application.initializeConfiguration(command); initializationError != nil {
				return initializationError
			}

			versionRequested := application.versionFlag
			if flagValue, flagChanged, flagError := flagutils.BoolFlag(command, versionFlagNameConstant); flagError == nil && flagChanged {
				versionRequested = flagValue
			}

			if versionRequested {
				application.printVersion(command)
				application.exitFunction(0)
			}

			return nil
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			if application.logger == nil {
				return errors.New(loggerNotInitializedMessageConstant)
			}
			return command.Help()
		},
	}

	cobraCommand.SetContext(context.Background())
	cobraCommand.PersistentFlags().StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.taskFileFlagValue, taskFileFlagNameConstant, defaultTaskFileNameConstant, taskFileFlagUsageConstant)
	application.failurePolicyFlagValue = flagutils.AddChoiceFlag(
		cobraCommand.PersistentFlags(),
		failurePolicyFlagNameConstant,
		string(taskrunner.FailurePolicyIsolate),
		taskrunner.FailurePolicyNames(),
		failurePolicyFlagUsageConstant,
	)
	cobraCommand.PersistentFlags().BoolVar(&application.versionFlag, versionFlagNameConstant, false, versionFlagUsageConstant)

	application.registerCommands(cobraCommand)
	application.rootCommand = cobraCommand

	return application
}

// SetOutput redirects the standard output and error streams of every command, diagnostic logs included.
func (application *Application) SetOutput(standardOutput io.Writer, standardError io.Writer) {
	application.rootCommand.SetOut(standardOutput)
	application.rootCommand.SetErr(standardError)
	application.loggerFactory = utils.NewLoggerFactory(utils.WithLogDestination(standardError))
}

// ExecuteContext runs the command hierarchy with the provided arguments and ensures logger flushing.
func (application *Application) ExecuteContext(executionContext context.Context, arguments []string) error {
	application.rootCommand.SetArgs(arguments)

	executionError := application.rootCommand.ExecuteContext(executionContext)
	if syncError := application.flushLogger(); syncError != nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute runs the command hierarchy with the process arguments, cancelling on interrupt.
func (application *Application) Execute() error {
	executionContext, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return application.ExecuteContext(executionContext, os.Args[1:])
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	return NewApplication().Execute()
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:     string(utils.LogLevelError),
		commonLogFormatConfigKeyConstant:    string(utils.LogFormatStructured),
		tasksFileConfigKeyConstant:          defaultTaskFileNameConstant,
		tasksFailurePolicyConfigKeyConstant: string(taskrunner.FailurePolicyIsolate),
		tasksDefaultConfigKeyConstant:       []string{},
	}

	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultValues, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}
	application.configurationMetadata = loadedConfiguration

	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}
	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue
	}
	if application.persistentFlagChanged(command, taskFileFlagNameConstant) {
		application.configuration.Tasks.File = application.taskFileFlagValue
	}
	if application.persistentFlagChanged(command, failurePolicyFlagNameConstant) {
		application.configuration.Tasks.FailurePolicy = application.failurePolicyFlagValue.String()
	}

	if _, policyError := taskrunner.ParseFailurePolicy(application.configuration.Tasks.FailurePolicy); policyError != nil {
		return fmt.Errorf(failurePolicyErrorTemplateConstant, policyError)
	}

	loggerOutputs, loggerCreationError := application.loggerFactory.CreateLoggerOutputs(
		utils.LogLevel(application.configuration.Common.LogLevel),
		utils.LogFormat(application.configuration.Common.LogFormat),
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	application.logger = loggerOutputs.DiagnosticLogger
	if application.logger == nil {
		application.logger = zap.NewNop()
	}
	application.consoleLogger = loggerOutputs.ConsoleLogger
	if application.consoleLogger == nil {
		application.consoleLogger = zap.NewNop()
	}

	application.logConfigurationInitialization()

	if command != nil {
		updatedContext := application.commandContextAccessor.WithConfigurationFilePath(
			command.Context(),
			application.configurationMetadata.ConfigFileUsed,
		)
		updatedContext = application.commandContextAccessor.WithTaskFilePath(updatedContext, application.configuration.Tasks.File)
		updatedContext = application.commandContextAccessor.WithLogLevel(updatedContext, application.configuration.Common.LogLevel)

		command.SetContext(updatedContext)
		if rootCommand := command.Root(); rootCommand != nil {
			rootCommand.SetContext(updatedContext)
		}
	}

	return nil
}

// InitializeForCommand prepares application state for the provided command name without executing command logic.
func (application *Application) InitializeForCommand(commandUse string) error {
	command := &cobra.Command{Use: commandUse}
	command.SetContext(context.Background())
	return application.initializeConfiguration(command)
}

// ConfigFileUsed returns the configuration file path used during initialization.
func (application *Application) ConfigFileUsed() string {
	return application.configurationMetadata.ConfigFileUsed
}

// Configuration returns the effective configuration after initialization.
func (application *Application) Configuration() ApplicationConfiguration {
	return application.configuration
}

func (application *Application) humanReadableLoggingEnabled() bool {
	logFormatValue := strings.TrimSpace(application.configuration.Common.LogFormat)
	return strings.EqualFold(logFormatValue, string(utils.LogFormatConsole))
}

func (application *Application) logConfigurationInitialization() {
	if !strings.EqualFold(strings.TrimSpace(application.configuration.Common.LogLevel), string(utils.LogLevelDebug)) {
		return
	}

	if application.humanReadableLoggingEnabled() {
		bannerMessage := fmt.Sprintf(
			configurationInitializedConsoleTemplateConstant,
			configurationInitializedMessageConstant,
			application.configuration.Common.LogLevel,
			application.configuration.Common.LogFormat,
			application.configurationMetadata.ConfigFileUsed,
			application.configuration.Tasks.File,
		)
		application.consoleLogger.Debug(bannerMessage)
		return
	}

	application.logger.Debug(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
		zap.String(taskFileFieldConstant, application.configuration.Tasks.File),
	)
}

func (application *Application) resolveVersion(executionContext context.Context) string {
	return strings.TrimSpace(version.Detect(executionContext, version.Dependencies{}))
}

func (application *Application) printVersion(command *cobra.Command) {
	executionContext := context.Background()
	outputWriter := io.Writer(os.Stdout)
	if command != nil {
		if commandContext := command.Context(); commandContext != nil {
			executionContext = commandContext
		}
		outputWriter = command.OutOrStdout()
	}
	fmt.Fprintf(outputWriter, versionOutputTemplateConstant, application.versionResolver(executionContext))
}

func (application *Application) flushLogger() error {
	if syncError := application.syncLoggerInstance(application.logger); syncError != nil {
		return syncError
	}
	return application.syncLoggerInstance(application.consoleLogger)
}

// benignLoggerSyncErrors are returned by Sync on terminals, pipes, and closed descriptors.
var benignLoggerSyncErrors = []error{syscall.ENOTSUP, syscall.EINVAL, syscall.EBADF, syscall.ENOTTY}

func (application *Application) syncLoggerInstance(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}

	syncError := logger.Sync()
	for _, benignError := range benignLoggerSyncErrors {
		if errors.Is(syncError, benignError) {
			return nil
		}
	}
	return syncError
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}
	if rootCommand := command.Root(); rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet != nil && flagSet.Changed(flagName) {
			return true
		}
	}
	return false
}
