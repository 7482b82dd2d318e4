// Package taskfile loads declarative task definitions and registers them with a task registry.
package taskfile

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const (
	taskFileLoadErrorTemplateConstant      = "failed to load task file: %w"
	taskFileParseErrorTemplateConstant     = "failed to parse task file: %w"
	taskFilePathRequiredMessageConstant    = "task file path must be provided"
	taskFileEmptyTasksMessageConstant      = "task file must define at least one task"
	taskFileTasksSequenceMessageConstant   = "tasks block must be defined as a sequence of task definitions"
	taskFileDefaultSequenceMessageConstant = "default block must be defined as a sequence of task names"
	taskNameMissingTemplateConstant        = "task definition %d is missing a name"
)

// ErrTaskNameMissing indicates a task definition without a name.
var ErrTaskNameMissing = errors.New("task name missing")

// File is a parsed task file.
type File struct {
	// Default lists the patterns run when no pattern is requested.
	Default []string
	// Tasks holds the definitions in declaration order.
	Tasks []TaskDefinition
	// BaseDirectory anchors relative working directories; it is the task file's directory.
	BaseDirectory string
}

// TaskDefinition declares one task.
type TaskDefinition struct {
	Name    string         `yaml:"name"`
	After   []string       `yaml:"after"`
	Options map[string]any `yaml:"with"`
}

type taskFileDocument struct {
	Default []string         `yaml:"default"`
	Tasks   []TaskDefinition `yaml:"tasks"`
}

// Loader reads task files from a filesystem.
type Loader struct {
	fileSystem afero.Fs
}

// NewLoader constructs a Loader over fileSystem, defaulting to the operating system filesystem.
func NewLoader(fileSystem afero.Fs) Loader {
	if fileSystem == nil {
		fileSystem = afero.NewOsFs()
	}
	return Loader{fileSystem: fileSystem}
}

// Load reads and parses the task file at filePath.
func (loader Loader) Load(filePath string) (File, error) {
	trimmedPath := strings.TrimSpace(filePath)
	if len(trimmedPath) == 0 {
		return File{}, errors.New(taskFilePathRequiredMessageConstant)
	}

	fileSystem := loader.fileSystem
	if fileSystem == nil {
		fileSystem = afero.NewOsFs()
	}

	contentBytes, readError := afero.ReadFile(fileSystem, trimmedPath)
	if readError != nil {
		return File{}, fmt.Errorf(taskFileLoadErrorTemplateConstant, readError)
	}

	parsedFile, parseError := Parse(contentBytes)
	if parseError != nil {
		return File{}, parseError
	}
	parsedFile.BaseDirectory = filepath.Dir(trimmedPath)
	return parsedFile, nil
}

// Parse decodes task file content and validates its shape.
func Parse(contentBytes []byte) (File, error) {
	if shapeError := ensureSequences(contentBytes); shapeError != nil {
		return File{}, fmt.Errorf(taskFileParseErrorTemplateConstant, shapeError)
	}

	var document taskFileDocument
	if unmarshalError := yaml.Unmarshal(contentBytes, &document); unmarshalError != nil {
		return File{}, fmt.Errorf(taskFileParseErrorTemplateConstant, unmarshalError)
	}

	if len(document.Tasks) == 0 {
		return File{}, errors.New(taskFileEmptyTasksMessageConstant)
	}

	parsedFile := File{
		Default: sanitizePatterns(document.Default),
		Tasks:   make([]TaskDefinition, 0, len(document.Tasks)),
	}
	for definitionIndex := range document.Tasks {
		definition := document.Tasks[definitionIndex]
		definition.Name = strings.TrimSpace(definition.Name)
		if len(definition.Name) == 0 {
			return File{}, fmt.Errorf("%w: %s", ErrTaskNameMissing, fmt.Sprintf(taskNameMissingTemplateConstant, definitionIndex+1))
		}
		definition.After = sanitizePatterns(definition.After)
		parsedFile.Tasks = append(parsedFile.Tasks, definition)
	}

	return parsedFile, nil
}

func ensureSequences(contentBytes []byte) error {
	var wrapper struct {
		Default yaml.Node `yaml:"default"`
		Tasks   yaml.Node `yaml:"tasks"`
	}

	if unmarshalError := yaml.Unmarshal(contentBytes, &wrapper); unmarshalError != nil {
		return unmarshalError
	}

	if wrapper.Tasks.Kind != 0 && wrapper.Tasks.Kind != yaml.SequenceNode {
		return errors.New(taskFileTasksSequenceMessageConstant)
	}
	if wrapper.Default.Kind != 0 && wrapper.Default.Kind != yaml.SequenceNode {
		return errors.New(taskFileDefaultSequenceMessageConstant)
	}
	return nil
}

func sanitizePatterns(patterns []string) []string {
	sanitized := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		trimmed := strings.TrimSpace(pattern)
		if len(trimmed) == 0 {
			continue
		}
		sanitized = append(sanitized, trimmed)
	}
	return sanitized
}
