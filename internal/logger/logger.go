// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger provides the single process-wide structured logger used
// by every layer of hierfs. It replaces the original Python filesystem's
// ad hoc "CallCount N Time T" print statements with slog records carrying
// the same intent: one line per dispatched operation.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Severity levels, ordered finer than slog's builtin set: TRACE sits below
// DEBUG, matching gcsfuse's five-level scheme.
const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

var severityNames = map[slog.Level]string{
	LevelTrace: "TRACE",
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARNING",
	LevelError: "ERROR",
}

// ParseLevel maps a config string ("trace", "debug", ...) to a slog.Level,
// defaulting to INFO for anything unrecognized.
func ParseLevel(s string) slog.Level {
	switch s {
	case "trace", "TRACE":
		return LevelTrace
	case "debug", "DEBUG":
		return LevelDebug
	case "warning", "WARNING", "warn", "WARN":
		return LevelWarn
	case "error", "ERROR":
		return LevelError
	case "off", "OFF":
		return slog.Level(1 << 20)
	default:
		return LevelInfo
	}
}

func replaceSeverity(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level := a.Value.Any().(slog.Level)
		name, ok := severityNames[level]
		if !ok {
			name = level.String()
		}
		a.Key = "severity"
		a.Value = slog.StringValue(name)
	}
	return a
}

// New builds a logger writing to w in either "json" or "text" format
// (anything else falls back to text), gated at the given level, the way
// gcsfuse's internal/logger factory switches on a configured format
// string.
func New(w io.Writer, format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: replaceSeverity}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// sessionID correlates every log line emitted by one mount, so concurrent
// or repeated runs don't interleave indistinguishably in a shared log
// file.
var sessionID = uuid.NewString()

var defaultLogger = New(os.Stderr, "text", LevelInfo)

// Init replaces the process-wide logger. logFile may be empty, in which
// case logs go to stderr; otherwise a rotating lumberjack.Logger backs the
// writer.
func Init(logFile, format string, level slog.Level) {
	var w io.Writer = os.Stderr
	if logFile != "" {
		w = &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
	}
	defaultLogger = New(w, format, level).With("mount_id", sessionID)
}

func log(level slog.Level, msg string, args ...any) {
	defaultLogger.Log(context.Background(), level, msg, args...)
}

func Tracef(msg string, args ...any) { log(LevelTrace, msg, args...) }
func Debugf(msg string, args ...any) { log(LevelDebug, msg, args...) }
func Infof(msg string, args ...any)  { log(LevelInfo, msg, args...) }
func Warnf(msg string, args ...any)  { log(LevelWarn, msg, args...) }
func Errorf(msg string, args ...any) { log(LevelError, msg, args...) }

// Op logs a single dispatched Operation Surface call at DEBUG, mirroring
// the original Memory class's per-call trace line.
func Op(name, path string, args ...any) {
	fields := append([]any{"op", name, "path", path}, args...)
	log(LevelDebug, "dispatch", fields...)
}
