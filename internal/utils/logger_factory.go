package utils

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel enumerates supported diagnostic log levels.
type LogLevel string

// LogFormat enumerates supported log encodings.
type LogFormat string

const (
	// LogLevelDebug enables verbose diagnostics.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo reports collection milestones.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn reports dropped timings and other recoverable problems.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError reports failures only.
	LogLevelError LogLevel = "error"

	// LogFormatStructured emits JSON log lines.
	LogFormatStructured LogFormat = "structured"
	// LogFormatConsole emits human-readable log lines.
	LogFormatConsole LogFormat = "console"

	unsupportedLogLevelTemplateConstant  = "unsupported log level %q"
	unsupportedLogFormatTemplateConstant = "unsupported log format %q"
	timestampFieldNameConstant           = "timestamp"
	messageFieldNameConstant             = "message"
	levelFieldNameConstant               = "level"
)

// LoggerOutputs bundles the diagnostic logger with the console logger used for human-facing messages.
type LoggerOutputs struct {
	DiagnosticLogger *zap.Logger
	ConsoleLogger    *zap.Logger
}

// LoggerFactory builds zap loggers for the configured level and format.
type LoggerFactory struct{}

// NewLoggerFactory constructs a LoggerFactory.
func NewLoggerFactory() *LoggerFactory {
	return &LoggerFactory{}
}

// CreateLoggerOutputs builds the diagnostic and console loggers. The console logger is a no-op unless the console format is requested.
func (factory *LoggerFactory) CreateLoggerOutputs(logLevel LogLevel, logFormat LogFormat) (LoggerOutputs, error) {
	zapLevel, levelError := parseLogLevel(logLevel)
	if levelError != nil {
		return LoggerOutputs{}, levelError
	}

	normalizedFormat := LogFormat(strings.ToLower(strings.TrimSpace(string(logFormat))))
	if normalizedFormat != LogFormatStructured && normalizedFormat != LogFormatConsole {
		return LoggerOutputs{}, fmt.Errorf(unsupportedLogFormatTemplateConstant, logFormat)
	}

	errorOutput := zapcore.Lock(zapcore.AddSync(os.Stderr))

	var diagnosticEncoder zapcore.Encoder
	if normalizedFormat == LogFormatStructured {
		diagnosticEncoder = zapcore.NewJSONEncoder(structuredEncoderConfiguration())
	} else {
		diagnosticEncoder = zapcore.NewConsoleEncoder(consoleEncoderConfiguration())
	}

	diagnosticCore := zapcore.NewCore(diagnosticEncoder, errorOutput, zap.NewAtomicLevelAt(zapLevel))
	diagnosticLogger := zap.New(diagnosticCore, zap.ErrorOutput(errorOutput))

	consoleLogger := zap.NewNop()
	if normalizedFormat == LogFormatConsole {
		consoleEncoderSettings := zapcore.EncoderConfig{
			MessageKey:     messageFieldNameConstant,
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeDuration: zapcore.StringDurationEncoder,
		}
		consoleCore := zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncoderSettings), errorOutput, zap.NewAtomicLevelAt(zapcore.DebugLevel))
		consoleLogger = zap.New(consoleCore)
	}

	return LoggerOutputs{
		DiagnosticLogger: diagnosticLogger,
		ConsoleLogger:    consoleLogger,
	}, nil
}

func parseLogLevel(logLevel LogLevel) (zapcore.Level, error) {
	switch LogLevel(strings.ToLower(strings.TrimSpace(string(logLevel)))) {
	case LogLevelDebug:
		return zapcore.DebugLevel, nil
	case LogLevelInfo:
		return zapcore.InfoLevel, nil
	case LogLevelWarn:
		return zapcore.WarnLevel, nil
	case LogLevelError:
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf(unsupportedLogLevelTemplateConstant, logLevel)
	}
}

func structuredEncoderConfiguration() zapcore.EncoderConfig {
	encoderConfiguration := zap.NewProductionEncoderConfig()
	encoderConfiguration.TimeKey = timestampFieldNameConstant
	encoderConfiguration.MessageKey = messageFieldNameConstant
	encoderConfiguration.LevelKey = levelFieldNameConstant
	encoderConfiguration.EncodeTime = zapcore.ISO8601TimeEncoder
	return encoderConfiguration
}

func consoleEncoderConfiguration() zapcore.EncoderConfig {
	encoderConfiguration := zap.NewDevelopmentEncoderConfig()
	encoderConfiguration.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfiguration.EncodeLevel = zapcore.CapitalLevelEncoder
	return encoderConfiguration
}
