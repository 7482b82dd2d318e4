package utils_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/buildtask/internal/utils"
	"github.com/tyemirov/buildtask/pkg/taskrunner"
)

type bufferedTerminal struct {
	pending   bytes.Buffer
	flushed   []string
	flushFail error
}

func (terminal *bufferedTerminal) Write(data []byte) (int, error) {
	return terminal.pending.Write(data)
}

func (terminal *bufferedTerminal) Flush() error {
	if terminal.flushFail != nil {
		return terminal.flushFail
	}
	terminal.flushed = append(terminal.flushed, terminal.pending.String())
	terminal.pending.Reset()
	return nil
}

func TestFlushingWriterFlushesEveryStatusLine(testInstance *testing.T) {
	terminal := &bufferedTerminal{}
	statusLogger := taskrunner.NewStatusLogger(utils.NewFlushingWriter(terminal))

	statusLogger.Info("Starting 'build:js'...")
	statusLogger.Info("Finished 'build:js' after 12 ms")

	require.Len(testInstance, terminal.flushed, 2)
	require.Regexp(testInstance, `^\[\d{2}:\d{2}:\d{2}\] Starting 'build:js'\.\.\.\n$`, terminal.flushed[0])
	require.Regexp(testInstance, `^\[\d{2}:\d{2}:\d{2}\] Finished 'build:js' after 12 ms\n$`, terminal.flushed[1])
	require.Zero(testInstance, terminal.pending.Len())
}

func TestFlushingWriterReportsFlushFailure(testInstance *testing.T) {
	flushFailure := errors.New("terminal detached")
	terminal := &bufferedTerminal{flushFail: flushFailure}

	bytesWritten, writeError := utils.NewFlushingWriter(terminal).Write([]byte("Finished 'build'\n"))
	require.ErrorIs(testInstance, writeError, flushFailure)
	require.Equal(testInstance, len("Finished 'build'\n"), bytesWritten)
	require.Equal(testInstance, "Finished 'build'\n", terminal.pending.String())
}

func TestFlushingWriterPassesThroughPlainWriters(testInstance *testing.T) {
	destination := &bytes.Buffer{}

	bytesWritten, writeError := utils.NewFlushingWriter(destination).Write([]byte("Summary: total.tasks=1\n"))
	require.NoError(testInstance, writeError)
	require.Equal(testInstance, len("Summary: total.tasks=1\n"), bytesWritten)
	require.Equal(testInstance, "Summary: total.tasks=1\n", destination.String())
}
