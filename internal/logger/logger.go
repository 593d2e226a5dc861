// Package logger builds the zap logger shared by the services and exposes
// printf-style helpers for the web layer.
package logger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// RotationConfig controls the optional log file.
type RotationConfig struct {
	Filename   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// defaultLogger logs at info level to stderr until SetDefault is called.
var defaultLogger = New("info", "")

func encoderConfig(level zapcore.Level) zapcore.EncoderConfig {
	if level == zapcore.DebugLevel {
		return zap.NewDevelopmentEncoderConfig()
	}
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.EncodeTime = func(t time.Time, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(t.Format("2006-01-02 15:04:05"))
	}
	enc.CallerKey = "caller"
	enc.EncodeCaller = zapcore.ShortCallerEncoder
	enc.LevelKey = "level"
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	enc.MessageKey = "message"
	return enc
}

// New builds a logger writing to stderr and, when file is set, to a rotated
// log file as well.
func New(level string, file string) *zap.Logger {
	return NewWithRotation(level, RotationConfig{Filename: file})
}

func NewWithRotation(level string, rc RotationConfig) *zap.Logger {
	lvl := ParseLevel(level)
	enc := encoderConfig(lvl)

	var encoder zapcore.Encoder
	if lvl == zapcore.DebugLevel {
		encoder = zapcore.NewConsoleEncoder(enc)
	} else {
		encoder = zapcore.NewJSONEncoder(enc)
	}

	cores := []zapcore.Core{zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), lvl)}
	if rc.Filename != "" {
		if rc.MaxSize == 0 {
			rc.MaxSize = 100
		}
		if rc.MaxBackups == 0 {
			rc.MaxBackups = 3
		}
		if rc.MaxAge == 0 {
			rc.MaxAge = 28
		}
		file := &lumberjack.Logger{
			Filename:   rc.Filename,
			MaxSize:    rc.MaxSize,
			MaxBackups: rc.MaxBackups,
			MaxAge:     rc.MaxAge,
			Compress:   rc.Compress,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(file), lvl))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller())
}

// ParseLevel maps a level name to zap's level, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// SetDefault replaces the logger behind the package helpers.
func SetDefault(l *zap.Logger) {
	if l == nil {
		return
	}
	_ = defaultLogger.Sync()
	defaultLogger = l
}

// L returns the default logger.
func L() *zap.Logger {
	return defaultLogger
}

func helper() *zap.Logger {
	return defaultLogger.WithOptions(zap.AddCallerSkip(1))
}

func Debug(format string, args ...any) {
	helper().Debug(fmt.Sprintf(format, args...))
}

func Info(format string, args ...any) {
	helper().Info(fmt.Sprintf(format, args...))
}

func Warn(format string, args ...any) {
	helper().Warn(fmt.Sprintf(format, args...))
}

func Error(format string, args ...any) {
	helper().Error(fmt.Sprintf(format, args...))
}

func Printf(format string, args ...any) {
	helper().Info(fmt.Sprintf(format, args...))
}

func Fatalf(format string, args ...any) {
	helper().Fatal(fmt.Sprintf(format, args...))
}

func Sync() {
	_ = defaultLogger.Sync()
}
