/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic in the CLI into a crash report, an autosave of the
// pending record transcript and a non-zero exit.
package crash

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	applog "gopcrclicker/internal/log"
	"gopcrclicker/internal/storage"
	"gopcrclicker/internal/telemetry"
	"gopcrclicker/internal/version"
)

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// Pending exposes a record transcript that has not been saved yet.
type Pending interface {
	PendingRecord() (string, bool)
}

// Session describes what was running when the panic happened. Every field may be empty.
type Session struct {
	Library *storage.Library
	Script  string
	Pending Pending
}

// Recover captures a panic, logs an error with stacktrace,
// writes an error report file, and autosaves the pending record transcript (if any).
//
// Usage: defer crash.Recover(sess)
func Recover(sess *Session) {
	r := recover()
	if r == nil {
		return
	}
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	reportPath, err := writeReport(sess, r, stack)
	if err != nil {
		l.Error("write crash report failed", slog.Any("err", err))
	}
	if path, ok := autosaveRecord(sess); ok {
		l.Info("pending record autosaved", slog.String("path", path))
	}

	if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
		l.Error("failed to write crash message to stderr", slog.Any("err", err))
	}
	if _, err := fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH); err != nil {
		l.Error("failed to write version info to stderr", slog.Any("err", err))
	}
	// Exit with a non-zero code to indicate failure in CLI context.
	exitFn(2)
}

func autosaveRecord(sess *Session) (string, bool) {
	if sess == nil || sess.Library == nil || sess.Pending == nil {
		return "", false
	}
	content, ok := sess.Pending.PendingRecord()
	if !ok {
		return "", false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	rec, err := sess.Library.SaveRecord(ctx, sess.Script, content)
	if err != nil {
		applog.WithComponent("crash").Error("autosave record failed", slog.Any("err", err))
		return "", false
	}
	return rec.Path, true
}

func writeReport(sess *Session, panicVal any, stack []byte) (string, error) {
	dir := os.TempDir()
	if sess != nil && sess.Library != nil {
		dir = filepath.Join(sess.Library.Root, storage.BackupsDirName)
		_ = os.MkdirAll(dir, 0o755)
	}
	stamp := time.Now().Format("20060102-150405")
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", stamp))

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "GoPCRClicker Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if sess != nil {
		if sess.Library != nil {
			_, _ = fmt.Fprintf(&buf, "Library: %s\n", sess.Library.Root)
		}
		if sess.Script != "" {
			_, _ = fmt.Fprintf(&buf, "Script: %s\n", sess.Script)
		}
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return path, err
	}

	// optionally upload the report (opt-in via env)
	telemetry.UploadCrash(buf.Bytes())
	return path, nil
}
