package docs_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/tyemirov/buildtask/cmd/cli"
	"github.com/tyemirov/buildtask/internal/execshell"
	"github.com/tyemirov/buildtask/internal/taskfile"
	"github.com/tyemirov/buildtask/pkg/taskrunner"
)

const (
	documentationFileNameConstant    = "README.md"
	yamlFenceStartConstant           = "```yaml"
	yamlFenceEndConstant             = "```"
	taskFileHeaderMarkerConstant     = "# tasks.yaml"
	configHeaderMarkerConstant       = "# config.yaml"
	parentDirectoryReferenceConstant = ".."
	missingHeaderMessageTemplate     = "README example missing header marker %s"
	missingStartFenceMessageConstant = "README example missing yaml fence start"
	missingEndFenceMessageConstant   = "README example missing yaml fence end"
)

type commandNameExecutor struct {
	executed []string
}

func (executor *commandNameExecutor) Execute(_ context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error) {
	executor.executed = append(executor.executed, string(command.Name))
	return execshell.ExecutionResult{}, nil
}

func readDocumentationSnippet(testInstance *testing.T, headerMarker string) string {
	testInstance.Helper()

	workingDirectory, workingDirectoryError := os.Getwd()
	require.NoError(testInstance, workingDirectoryError)

	documentationPath := filepath.Join(workingDirectory, parentDirectoryReferenceConstant, documentationFileNameConstant)
	contentBytes, readError := os.ReadFile(documentationPath)
	require.NoError(testInstance, readError)

	contentText := string(contentBytes)
	headerIndex := strings.Index(contentText, headerMarker)
	require.NotEqualf(testInstance, -1, headerIndex, missingHeaderMessageTemplate, headerMarker)

	fenceStartIndex := strings.LastIndex(contentText[:headerIndex], yamlFenceStartConstant)
	require.NotEqual(testInstance, -1, fenceStartIndex, missingStartFenceMessageConstant)

	fenceEndRelativeIndex := strings.Index(contentText[headerIndex:], yamlFenceEndConstant)
	require.NotEqual(testInstance, -1, fenceEndRelativeIndex, missingEndFenceMessageConstant)

	return strings.TrimSpace(contentText[fenceStartIndex+len(yamlFenceStartConstant) : headerIndex+fenceEndRelativeIndex])
}

func TestReadmeTaskFileExampleRuns(testInstance *testing.T) {
	snippet := readDocumentationSnippet(testInstance, taskFileHeaderMarkerConstant)

	parsedFile, parseError := taskfile.Parse([]byte(snippet))
	require.NoError(testInstance, parseError)

	registry := taskrunner.NewRegistry()
	executor := &commandNameExecutor{}
	require.NoError(testInstance, parsedFile.Register(registry, executor))
	require.Equal(testInstance, []string{"build:js", "build:css", "build", "lint:go", "lint"}, registry.Names())

	runner, runnerError := taskrunner.NewRunner(registry, taskrunner.WithStatusLogger(zap.NewNop()))
	require.NoError(testInstance, runnerError)

	outcome, runError := runner.Execute(context.Background(), parsedFile.Default...)
	require.NoError(testInstance, runError)
	require.Equal(testInstance, []string{"build:js", "build:css", "build"}, outcome.Names())
	require.Equal(testInstance, []string{"npm", "sass"}, executor.executed)
	require.NotEmpty(testInstance, taskrunner.RenderSummaryLine(outcome))
}

func TestReadmeConfigurationExampleMatchesEmbeddedDefaults(testInstance *testing.T) {
	snippet := readDocumentationSnippet(testInstance, configHeaderMarkerConstant)

	var documented map[string]any
	require.NoError(testInstance, yaml.Unmarshal([]byte(snippet), &documented))

	embeddedContent, _ := cli.EmbeddedDefaultConfiguration()
	var embedded map[string]any
	require.NoError(testInstance, yaml.Unmarshal(embeddedContent, &embedded))

	require.Equal(testInstance, embedded, documented)
}
