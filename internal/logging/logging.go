// Package logging builds the zap loggers used for diagnostics. Command output
// goes to stdout through the output package; logs always go to stderr.
package logging

import (
	"errors"
	"io"
	"os"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a console-encoded logger writing to w (stderr when nil). With
// debug enabled every level is emitted; otherwise only warnings and errors.
func New(debug bool, w io.Writer) *zap.Logger {
	if w == nil {
		w = os.Stderr
	}

	level := zapcore.WarnLevel
	if debug {
		level = zapcore.DebugLevel
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.TimeKey = ""
	if !debug {
		encoderConfig.CallerKey = ""
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(w),
		zap.NewAtomicLevelAt(level),
	)

	opts := []zap.Option{}
	if debug {
		opts = append(opts, zap.AddCaller())
	}
	return zap.New(core, opts...)
}

// Sync flushes logger, ignoring the errors stderr returns on terminals.
func Sync(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}
	err := logger.Sync()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, syscall.ENOTSUP), errors.Is(err, syscall.EINVAL), errors.Is(err, syscall.ENOTTY):
		return nil
	default:
		return err
	}
}
