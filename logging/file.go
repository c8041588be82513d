package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewFileLogger returns a logger writing to stdout and to a size-rotated file at path. The
// returned closer flushes and closes the file.
func NewFileLogger(name, path string, lvl Level) (Logger, io.Closer) {
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10,
		MaxBackups: 3,
		Compress:   true,
	}
	level := zap.NewAtomicLevelAt(lvl.AsZap())
	encoder := zapcore.NewConsoleEncoder(NewEncoderConfig())
	core := zapcore.NewTee(
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level),
		zapcore.NewCore(encoder, zapcore.AddSync(file), level),
	)
	return newImpl(name, level, core), file
}
