package cli

import (
	"errors"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type failingSyncer struct {
	syncError error
}

func (syncer failingSyncer) Write(data []byte) (int, error) {
	return len(data), nil
}

func (syncer failingSyncer) Sync() error {
	return syncer.syncError
}

func TestResolveRequestedPatterns(testInstance *testing.T) {
	testCases := []struct {
		name               string
		arguments          []string
		fileDefaults       []string
		configuredDefaults []string
		expected           []string
	}{
		{name: "arguments_win", arguments: []string{" build ", ""}, fileDefaults: []string{"all"}, configuredDefaults: []string{"ci"}, expected: []string{"build"}},
		{name: "file_defaults", arguments: []string{" "}, fileDefaults: []string{"all"}, configuredDefaults: []string{"ci"}, expected: []string{"all"}},
		{name: "configured_defaults", configuredDefaults: []string{"ci", "*:lint"}, expected: []string{"ci", "*:lint"}},
		{name: "nothing_requested", expected: nil},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expected, resolveRequestedPatterns(testCase.arguments, testCase.fileDefaults, testCase.configuredDefaults))
		})
	}
}

func TestResolveConfigurationInitializationPlanRejectsUnknownScope(testInstance *testing.T) {
	_, planError := resolveConfigurationInitializationPlan(" global ")
	require.EqualError(testInstance, planError, "unsupported initialization scope \"global\"")
}

func TestWriteConfigurationFile(testInstance *testing.T) {
	const directoryPath = "/home/builder/.buildtask"
	configurationPath := filepath.Join(directoryPath, configurationFileNameConstant)

	testCases := []struct {
		name            string
		prepare         func(afero.Fs)
		content         []byte
		overwrite       bool
		expectedMessage string
	}{
		{name: "creates_directory", content: []byte("common: {}\n")},
		{
			name:            "directory_conflict",
			prepare:         func(fileSystem afero.Fs) { _ = afero.WriteFile(fileSystem, directoryPath, []byte("x"), 0o600) },
			content:         []byte("common: {}\n"),
			expectedMessage: "is not a directory",
		},
		{
			name:            "target_is_directory",
			prepare:         func(fileSystem afero.Fs) { _ = fileSystem.MkdirAll(configurationPath, 0o755) },
			content:         []byte("common: {}\n"),
			overwrite:       true,
			expectedMessage: "is a directory",
		},
		{
			name:            "empty_content",
			expectedMessage: configurationInitializationContentUnavailableErrorConstant,
		},
		{
			name:      "overwrite_existing",
			prepare:   func(fileSystem afero.Fs) { _ = afero.WriteFile(fileSystem, configurationPath, []byte("old"), 0o600) },
			content:   []byte("common: {}\n"),
			overwrite: true,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			fileSystem := afero.NewMemMapFs()
			if testCase.prepare != nil {
				testCase.prepare(fileSystem)
			}

			writeError := writeConfigurationFile(
				fileSystem,
				configurationInitializationPlan{DirectoryPath: directoryPath, FilePath: configurationPath},
				testCase.content,
				testCase.overwrite,
			)
			if len(testCase.expectedMessage) > 0 {
				require.ErrorContains(testInstance, writeError, testCase.expectedMessage)
				return
			}
			require.NoError(testInstance, writeError)

			writtenContent, readError := afero.ReadFile(fileSystem, configurationPath)
			require.NoError(testInstance, readError)
			require.Equal(testInstance, testCase.content, writtenContent)
		})
	}
}

func TestSyncLoggerInstanceToleratesUnsupportedTargets(testInstance *testing.T) {
	unexpectedError := errors.New("disk full")

	testCases := []struct {
		name          string
		syncError     error
		expectedError error
	}{
		{name: "success"},
		{name: "enotsup", syncError: syscall.ENOTSUP},
		{name: "einval", syncError: syscall.EINVAL},
		{name: "ebadf", syncError: syscall.EBADF},
		{name: "enotty", syncError: syscall.ENOTTY},
		{name: "other", syncError: unexpectedError, expectedError: unexpectedError},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			core := zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				failingSyncer{syncError: testCase.syncError},
				zapcore.DebugLevel,
			)
			application := &Application{}

			syncError := application.syncLoggerInstance(zap.New(core))
			if testCase.expectedError == nil {
				require.NoError(testInstance, syncError)
				return
			}
			require.ErrorIs(testInstance, syncError, testCase.expectedError)
		})
	}

	require.NoError(testInstance, (&Application{}).syncLoggerInstance(nil))
}
