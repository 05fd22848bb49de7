// Package logging configures the process-wide structured logger. Built on
// go.uber.org/zap with a lumberjack-rotated file sink, the same pairing
// the rest of this codebase's ancestry uses for long-running network
// services: a JSON encoder, a level gate driven by config, and a package
// global any component can reach without threading a logger through every
// constructor.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the global logger.
type Options struct {
	Level    string // debug, info, warn, error
	Path     string // file path for rotated logs; empty means stderr only
	Console  bool   // also mirror to stderr
}

var levelMap = map[string]zapcore.Level{
	"debug": zapcore.DebugLevel,
	"info":  zapcore.InfoLevel,
	"warn":  zapcore.WarnLevel,
	"error": zapcore.ErrorLevel,
}

var global *zap.SugaredLogger

func init() {
	// Sane default so packages can log before Init is called (e.g. in tests).
	global = zap.NewNop().Sugar()
}

// Init builds the global logger from opts. Safe to call once at process
// startup; later calls replace the global logger.
func Init(opts Options) *zap.SugaredLogger {
	level, ok := levelMap[opts.Level]
	if !ok {
		level = zapcore.InfoLevel
	}
	enabler := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= level
	})

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var cores []zapcore.Core
	if opts.Path != "" {
		hook := &lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    64,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		}
		files := zapcore.AddSync(hook)
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), files, enabler))
	}
	if opts.Console || opts.Path == "" {
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.Lock(zapcore.AddSync(os.Stderr)), enabler))
	}

	core := zapcore.NewTee(cores...)
	logger := zap.New(core, zap.AddCaller())
	global = logger.Sugar()
	return global
}

// L returns the current global logger.
func L() *zap.SugaredLogger { return global }

// Set replaces the global logger directly, primarily for tests.
func Set(l *zap.SugaredLogger) {
	if l != nil {
		global = l
	}
}
