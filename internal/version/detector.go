package version

import (
	"context"
	"os"
	"runtime/debug"
	"strings"

	"go.uber.org/zap"

	"github.com/tyemirov/buildtask/internal/execshell"
)

const (
	unknownVersionFallbackConstant            = "unknown"
	buildInfoDevelVersionConstant             = "(devel)"
	vcsRevisionSettingConstant                = "vcs.revision"
	vcsModifiedSettingConstant                = "vcs.modified"
	vcsModifiedSuffixConstant                 = "-dirty"
	vcsRevisionLengthConstant                 = 12
	gitDescribeSubcommandConstant             = "describe"
	gitTagsFlagConstant                       = "--tags"
	gitExactMatchFlagConstant                 = "--exact-match"
	gitLongFlagConstant                       = "--long"
	gitDirtyFlagConstant                      = "--dirty"
	gitTerminalPromptEnvironmentNameConstant  = "GIT_TERMINAL_PROMPT"
	gitTerminalPromptEnvironmentValueConstant = "0"
)

// Injected is set at link time with -ldflags "-X github.com/tyemirov/buildtask/internal/version.Injected=v1.0.0".
var Injected string

// GitExecutor runs git subcommands.
type GitExecutor interface {
	ExecuteGit(context.Context, execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// BuildInfoProvider exposes runtime build metadata.
type BuildInfoProvider interface {
	Read() (*debug.BuildInfo, bool)
}

// Dependencies describes the collaborators required for version detection. Zero values select
// runtime build info, a quiet OS-backed git executor, and the current directory.
type Dependencies struct {
	InjectedVersion   string
	BuildInfoProvider BuildInfoProvider
	GitExecutor       GitExecutor
	WorkingDirectory  string
}

type versionSource func(context.Context) string

// Detector resolves the buildtask version from an ordered list of sources.
type Detector struct {
	injectedVersion   string
	buildInfoProvider BuildInfoProvider
	gitExecutor       GitExecutor
	workingDirectory  string
}

// NewDetector constructs a Detector with the supplied dependencies or runtime defaults.
func NewDetector(dependencies Dependencies) (*Detector, error) {
	detector := &Detector{
		injectedVersion:   strings.TrimSpace(dependencies.InjectedVersion),
		buildInfoProvider: dependencies.BuildInfoProvider,
		gitExecutor:       dependencies.GitExecutor,
		workingDirectory:  strings.TrimSpace(dependencies.WorkingDirectory),
	}

	if detector.buildInfoProvider == nil {
		detector.buildInfoProvider = runtimeBuildInfoProvider{}
	}
	if detector.gitExecutor == nil {
		shellExecutor, creationError := execshell.NewShellExecutor(zap.NewNop(), execshell.NewOSCommandRunner(), false)
		if creationError != nil {
			return nil, creationError
		}
		detector.gitExecutor = shellExecutor
	}
	if len(detector.workingDirectory) == 0 {
		if currentDirectory, workingDirectoryError := os.Getwd(); workingDirectoryError == nil {
			detector.workingDirectory = currentDirectory
		}
	}

	return detector, nil
}

// Detect resolves the version using the supplied dependencies, falling back to the link-time value.
func Detect(executionContext context.Context, dependencies Dependencies) string {
	if len(strings.TrimSpace(dependencies.InjectedVersion)) == 0 {
		dependencies.InjectedVersion = Injected
	}
	detector, detectorError := NewDetector(dependencies)
	if detectorError != nil {
		return unknownVersionFallbackConstant
	}
	return detector.Version(executionContext)
}

// Version returns the first non-empty result of: the link-time value, the module version, the
// VCS revision stamped by the go toolchain, an exact tag, and a long git description.
func (detector *Detector) Version(executionContext context.Context) string {
	if detector == nil {
		return unknownVersionFallbackConstant
	}

	sources := []versionSource{
		func(context.Context) string { return detector.injectedVersion },
		detector.moduleVersion,
		detector.vcsRevision,
		detector.describe(gitTagsFlagConstant, gitExactMatchFlagConstant),
		detector.describe(gitTagsFlagConstant, gitLongFlagConstant, gitDirtyFlagConstant),
	}
	for _, source := range sources {
		if resolvedVersion := strings.TrimSpace(source(executionContext)); len(resolvedVersion) > 0 {
			return resolvedVersion
		}
	}
	return unknownVersionFallbackConstant
}

func (detector *Detector) readBuildInfo() *debug.BuildInfo {
	buildInfo, available := detector.buildInfoProvider.Read()
	if !available {
		return nil
	}
	return buildInfo
}

func (detector *Detector) moduleVersion(context.Context) string {
	buildInfo := detector.readBuildInfo()
	if buildInfo == nil || strings.EqualFold(strings.TrimSpace(buildInfo.Main.Version), buildInfoDevelVersionConstant) {
		return ""
	}
	return buildInfo.Main.Version
}

func (detector *Detector) vcsRevision(context.Context) string {
	buildInfo := detector.readBuildInfo()
	if buildInfo == nil {
		return ""
	}

	var revision string
	var modified bool
	for _, setting := range buildInfo.Settings {
		switch setting.Key {
		case vcsRevisionSettingConstant:
			revision = strings.TrimSpace(setting.Value)
		case vcsModifiedSettingConstant:
			modified = setting.Value == "true"
		}
	}

	if len(revision) == 0 {
		return ""
	}
	if len(revision) > vcsRevisionLengthConstant {
		revision = revision[:vcsRevisionLengthConstant]
	}
	if modified {
		revision += vcsModifiedSuffixConstant
	}
	return revision
}

func (detector *Detector) describe(flags ...string) versionSource {
	arguments := append([]string{gitDescribeSubcommandConstant}, flags...)
	return func(executionContext context.Context) string {
		if detector.gitExecutor == nil {
			return ""
		}
		executionResult, executionError := detector.gitExecutor.ExecuteGit(executionContext, execshell.CommandDetails{
			Arguments:            arguments,
			WorkingDirectory:     detector.workingDirectory,
			EnvironmentVariables: map[string]string{gitTerminalPromptEnvironmentNameConstant: gitTerminalPromptEnvironmentValueConstant},
		})
		if executionError != nil {
			return ""
		}
		return executionResult.StandardOutput
	}
}

type runtimeBuildInfoProvider struct{}

func (runtimeBuildInfoProvider) Read() (*debug.BuildInfo, bool) {
	return debug.ReadBuildInfo()
}
