package utils

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel enumerates supported diagnostic log levels.
type LogLevel string

// Supported log levels.
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogFormat enumerates supported diagnostic log encodings.
type LogFormat string

// Supported log formats.
const (
	LogFormatStructured LogFormat = "structured"
	LogFormatConsole    LogFormat = "console"
)

const (
	unsupportedLogLevelTemplateConstant  = "unsupported log level %q"
	unsupportedLogFormatTemplateConstant = "unsupported log format %q"
	timestampKeyConstant                 = "timestamp"
	levelKeyConstant                     = "level"
	messageKeyConstant                   = "message"
	loggerNameKeyConstant                = "logger"
	callerKeyConstant                    = "caller"
	stacktraceKeyConstant                = "stacktrace"
)

// LoggerOutputs bundles the diagnostic logger with the human-oriented console logger.
// ConsoleLogger is a no-op unless the console format was requested.
type LoggerOutputs struct {
	DiagnosticLogger *zap.Logger
	ConsoleLogger    *zap.Logger
}

// LoggerFactory builds zap loggers writing to standard error unless another destination is configured.
type LoggerFactory struct {
	destination io.Writer
}

// LoggerFactoryOption customizes a LoggerFactory.
type LoggerFactoryOption func(*LoggerFactory)

// WithLogDestination routes diagnostic and console output to destination.
func WithLogDestination(destination io.Writer) LoggerFactoryOption {
	return func(factory *LoggerFactory) {
		if destination != nil {
			factory.destination = destination
		}
	}
}

// NewLoggerFactory constructs a LoggerFactory.
func NewLoggerFactory(options ...LoggerFactoryOption) LoggerFactory {
	factory := LoggerFactory{}
	for _, option := range options {
		if option != nil {
			option(&factory)
		}
	}
	return factory
}

// CreateLoggerOutputs builds loggers for the requested level and format.
func (factory LoggerFactory) CreateLoggerOutputs(requestedLevel LogLevel, requestedFormat LogFormat) (LoggerOutputs, error) {
	level, levelError := parseLogLevel(requestedLevel)
	if levelError != nil {
		return LoggerOutputs{}, levelError
	}

	var destination zapcore.WriteSyncer = zapcore.Lock(os.Stderr)
	if factory.destination != nil {
		destination = zapcore.Lock(zapcore.AddSync(factory.destination))
	}

	switch LogFormat(strings.ToLower(strings.TrimSpace(string(requestedFormat)))) {
	case LogFormatStructured:
		encoderConfiguration := diagnosticEncoderConfiguration()
		encoderConfiguration.EncodeTime = zapcore.ISO8601TimeEncoder
		core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfiguration), destination, level)
		return LoggerOutputs{
			DiagnosticLogger: zap.New(core),
			ConsoleLogger:    zap.NewNop(),
		}, nil
	case LogFormatConsole:
		encoderConfiguration := diagnosticEncoderConfiguration()
		encoderConfiguration.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		encoderConfiguration.EncodeLevel = zapcore.CapitalLevelEncoder
		diagnosticCore := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfiguration), destination, level)

		consoleEncoderConfiguration := zapcore.EncoderConfig{
			MessageKey: messageKeyConstant,
			LineEnding: zapcore.DefaultLineEnding,
		}
		consoleCore := zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncoderConfiguration), destination, level)

		return LoggerOutputs{
			DiagnosticLogger: zap.New(diagnosticCore),
			ConsoleLogger:    zap.New(consoleCore),
		}, nil
	default:
		return LoggerOutputs{}, fmt.Errorf(unsupportedLogFormatTemplateConstant, requestedFormat)
	}
}

func diagnosticEncoderConfiguration() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        timestampKeyConstant,
		LevelKey:       levelKeyConstant,
		NameKey:        loggerNameKeyConstant,
		CallerKey:      callerKeyConstant,
		MessageKey:     messageKeyConstant,
		StacktraceKey:  stacktraceKeyConstant,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

func parseLogLevel(requestedLevel LogLevel) (zapcore.Level, error) {
	switch LogLevel(strings.ToLower(strings.TrimSpace(string(requestedLevel)))) {
	case LogLevelDebug:
		return zapcore.DebugLevel, nil
	case LogLevelInfo:
		return zapcore.InfoLevel, nil
	case LogLevelWarn:
		return zapcore.WarnLevel, nil
	case LogLevelError:
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf(unsupportedLogLevelTemplateConstant, requestedLevel)
	}
}
