// Package logger builds the zap loggers used by the wall binaries.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a JSON logger at logLevel writing to the given output paths.
// Empty path lists default to stdout and stderr.
func New(logLevel string, outputStdout []string, outputStderr []string) (*zap.Logger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	atomicLevel, err := zap.ParseAtomicLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", logLevel, err)
	}
	if len(outputStdout) == 0 {
		outputStdout = []string{"stdout"}
	}
	if len(outputStderr) == 0 {
		outputStderr = []string{"stderr"}
	}

	config := zap.Config{
		Level:             atomicLevel,
		Development:       false,
		DisableCaller:     false,
		DisableStacktrace: true,
		Encoding:          "json",
		EncoderConfig:     encoderCfg,
		OutputPaths:       outputStdout,
		ErrorOutputPaths:  outputStderr,
		InitialFields:     map[string]interface{}{},
	}

	return config.Build()
}

// Must is New that panics, for main packages.
func Must(logLevel string) *zap.Logger {
	l, err := New(logLevel, nil, nil)
	if err != nil {
		panic(err)
	}
	return l
}
