package main

import (
	"errors"
	"io"
	"log/slog"

	"github.com/lmittmann/tint"
	slogmulti "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

func (e *LogLevel) String() string {
	if e == nil {
		return ""
	}
	return string(*e)
}

func (e *LogLevel) Set(v string) error {
	for _, level := range []LogLevel{LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError} {
		if v == string(level) {
			*e = level
			return nil
		}
	}
	return errors.New(`must be one of "debug", "info", "warn", or "error"`)
}

func (e *LogLevel) Type() string {
	return "log-level"
}

func (e *LogLevel) SlogLevel() slog.Level {
	switch *e {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

type logOptions struct {
	Level  LogLevel
	Format string // "text" or "json"
	File   string
}

// newLogger builds the process logger. Console output goes through tint
// unless JSON is requested; a log file is always JSON and rotated.
func newLogger(opts logOptions, console io.Writer) (*slog.Logger, io.Closer) {
	level := opts.Level.SlogLevel()

	var handler slog.Handler
	if opts.Format == "json" {
		handler = slog.NewJSONHandler(console, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(console, &tint.Options{
			Level:      level,
			TimeFormat: "2006-01-02 15:04:05.000Z07:00",
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				if a.Value.Kind() == slog.KindAny {
					if _, ok := a.Value.Any().(error); ok {
						return tint.Attr(9, a)
					}
				}
				return a
			},
		})
	}

	if opts.File == "" {
		return slog.New(handler), nopCloser{}
	}

	fileLogger := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    10,
		MaxAge:     7,
		MaxBackups: 3,
		Compress:   true,
	}
	fileHandler := slog.NewJSONHandler(fileLogger, &slog.HandlerOptions{Level: level})
	return slog.New(slogmulti.Fanout(handler, fileHandler)), fileLogger
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
