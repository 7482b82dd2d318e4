package taskrunner

import (
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	statusTimeLayoutConstant            = "15:04:05"
	statusTimeKeyConstant               = "time"
	statusMessageKeyConstant            = "message"
	statusElementSeparatorConstant      = " "
	startingStatusTemplateConstant      = "Starting '%s'..."
	finishedStatusTemplateConstant      = "Finished '%s'"
	finishedAfterStatusTemplateConstant = "Finished '%s' after %s"
	failedAfterStatusTemplateConstant   = "Failed '%s' after %s"
	millisecondDurationTemplateConstant = "%d ms"
	secondDurationTemplateConstant      = "%.2f s"
	millisecondsPerSecondConstant       = 1000
)

// NewStatusLogger builds the logger that renders task state transitions as
// `[HH:MM:SS] <message>` lines on writer. A nil writer selects standard output.
func NewStatusLogger(writer io.Writer, options ...zap.Option) *zap.Logger {
	if writer == nil {
		writer = os.Stdout
	}

	encoderConfiguration := zapcore.EncoderConfig{
		TimeKey:          statusTimeKeyConstant,
		MessageKey:       statusMessageKeyConstant,
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       encodeStatusTime,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: statusElementSeparatorConstant,
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfiguration),
		zapcore.Lock(zapcore.AddSync(writer)),
		zapcore.DebugLevel,
	)
	return zap.New(core, options...)
}

func encodeStatusTime(timestamp time.Time, encoder zapcore.PrimitiveArrayEncoder) {
	encoder.AppendString("[" + timestamp.Format(statusTimeLayoutConstant) + "]")
}

// FormatDuration renders elapsed time the way status lines report it: whole milliseconds
// below one second, otherwise seconds with two decimals.
func FormatDuration(elapsed time.Duration) string {
	milliseconds := elapsed.Milliseconds()
	if milliseconds >= millisecondsPerSecondConstant {
		return fmt.Sprintf(secondDurationTemplateConstant, float64(milliseconds)/millisecondsPerSecondConstant)
	}
	return fmt.Sprintf(millisecondDurationTemplateConstant, milliseconds)
}

func startingStatusMessage(taskName string) string {
	return fmt.Sprintf(startingStatusTemplateConstant, taskName)
}

func finishedStatusMessage(taskName string) string {
	return fmt.Sprintf(finishedStatusTemplateConstant, taskName)
}

func completedStatusMessage(taskName string, elapsed time.Duration, failed bool) string {
	if failed {
		return fmt.Sprintf(failedAfterStatusTemplateConstant, taskName, FormatDuration(elapsed))
	}
	return fmt.Sprintf(finishedAfterStatusTemplateConstant, taskName, FormatDuration(elapsed))
}
