package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects how the client logger is built
type Options struct {
	// Debug lowers the level to debug (request traces, session transitions)
	Debug bool
	// Development switches to the human-readable console encoder
	Development bool
	// OutputPaths overrides where logs are written; defaults to stderr so
	// command output on stdout stays clean
	OutputPaths []string
}

// New builds the logger described by opts
func New(opts Options) (*zap.Logger, error) {
	if opts.Development {
		return NewDevelopmentLogger(opts.Debug, opts.OutputPaths...)
	}
	return NewProductionLogger(opts.Debug, opts.OutputPaths...)
}

// NewProductionLogger creates a JSON logger
func NewProductionLogger(debugMode bool, outputPaths ...string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level(debugMode))

	config.Encoding = "json"
	config.EncoderConfig = zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	config.OutputPaths = paths(outputPaths)
	config.ErrorOutputPaths = []string{"stderr"}

	return config.Build()
}

// NewDevelopmentLogger creates a console logger for interactive use
func NewDevelopmentLogger(debugMode bool, outputPaths ...string) (*zap.Logger, error) {
	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(level(debugMode))
	config.OutputPaths = paths(outputPaths)
	config.DisableStacktrace = !debugMode

	return config.Build()
}

// Sync flushes any buffered log entries. Safe to call with a nil logger.
// Syncing stderr fails with EINVAL on some platforms, which is ignored.
func Sync(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}
	if err := logger.Sync(); err != nil && !isIgnorableSyncError(err) {
		return err
	}
	return nil
}

// OrNop returns l, or a no-op logger when l is nil
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

func level(debugMode bool) zapcore.Level {
	if debugMode {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

func paths(p []string) []string {
	if len(p) == 0 {
		return []string{"stderr"}
	}
	return p
}

func isIgnorableSyncError(err error) bool {
	pathErr, ok := err.(*os.PathError)
	if !ok {
		return false
	}
	return pathErr.Path == "/dev/stderr" || pathErr.Path == "/dev/stdout"
}
