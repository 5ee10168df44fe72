/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package log sets up the process-wide slog logger: a console handler, an optional rotating JSON
// file, and a script tag taken from the context.
package log

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	lj "gopkg.in/natefinch/lumberjack.v2"

	"gopcrclicker/internal/version"
)

// Options selects level, console format and an optional log file.
//
// Environment overrides: PCR_LOG_LEVEL (debug|info|warn|error), PCR_LOG_FORMAT (console|json),
// PCR_LOG_FILE and PCR_LOG_SOURCE (true|false).
type Options struct {
	Level     string
	Format    string // console or json
	AddSource bool
	File      string
	// NoConsole silences stderr when File is set.
	NoConsole bool
}

var current atomic.Pointer[slog.Logger]

// L returns the process logger, configuring it from the environment on first use.
func L() *slog.Logger {
	if l := current.Load(); l != nil {
		return l
	}
	Init(FromEnv())
	return current.Load()
}

// Init replaces the process logger and slog's default.
func Init(opts Options) {
	level := parseLevel(opts.Level)
	file := strings.TrimSpace(opts.File)

	var hs fanout
	if file == "" || !opts.NoConsole {
		hs = append(hs, tagScript(consoleFor(opts, level)))
	}
	if file != "" {
		rot := &lj.Logger{Filename: file, MaxSize: 10, MaxBackups: 3, MaxAge: 28, Compress: true}
		hs = append(hs, tagScript(slog.NewJSONHandler(rot, &slog.HandlerOptions{Level: level, AddSource: opts.AddSource})))
	}

	var h slog.Handler = hs
	if len(hs) == 1 {
		h = hs[0]
	}
	l := slog.New(h).With(
		slog.String("app", "gopcrclicker"),
		slog.String("ver", version.Version),
		slog.Time("ts_init", time.Now()),
	)
	current.Store(l)
	slog.SetDefault(l)
}

func consoleFor(opts Options, level slog.Leveler) slog.Handler {
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		return slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level, AddSource: opts.AddSource})
	}
	return newConsoleHandler(os.Stderr, level, opts.AddSource)
}

var envKeys = struct{ level, format, file, source string }{
	"PCR_LOG_LEVEL", "PCR_LOG_FORMAT", "PCR_LOG_FILE", "PCR_LOG_SOURCE",
}

// FromEnvOver returns base with every PCR_LOG_* variable that is set applied on top.
func FromEnvOver(base Options) Options {
	if v, ok := lookup(envKeys.level); ok {
		base.Level = v
	}
	if v, ok := lookup(envKeys.format); ok {
		base.Format = v
	}
	if v, ok := lookup(envKeys.file); ok {
		base.File = v
	}
	if v, ok := lookup(envKeys.source); ok {
		base.AddSource = strings.EqualFold(v, "true")
	}
	return base
}

// FromEnv reads Options from the environment alone: info level on the console by default.
func FromEnv() Options {
	return FromEnvOver(Options{Level: "info", Format: "console"})
}

// lookup treats an empty variable as unset.
func lookup(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

// WithComponent returns the process logger tagged with component=name.
func WithComponent(name string) *slog.Logger { return L().With(slog.String("component", name)) }

func WithOperation(l *slog.Logger, op string) *slog.Logger { return l.With(slog.String("op", op)) }

type scriptKey struct{}

// WithScript tags records logged with ctx (through the *Context methods) with script=name.
func WithScript(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, scriptKey{}, name)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
