/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce lets bursts of events for one file settle before it is re-indexed.
const watchDebounce = 200 * time.Millisecond

// ScriptEvent reports a script file changed outside the library.
type ScriptEvent struct {
	Name    string
	Removed bool
}

// Watch monitors the scripts folder until ctx is done. Changed scripts are re-indexed,
// removed ones dropped from the index, then fn is called (it may be nil).
func (l *Library) Watch(ctx context.Context, fn func(ScriptEvent)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	dir := filepath.Join(l.Root, ScriptsDirName)
	if err := w.Add(dir); err != nil {
		return err
	}
	log := l.log.With(slog.String("component", "watcher"), slog.String("dir", dir))
	log.Info("watching scripts")

	var (
		mu     sync.Mutex
		timers = map[string]*time.Timer{}
		wg     sync.WaitGroup
	)
	defer func() {
		mu.Lock()
		for _, t := range timers {
			if t.Stop() {
				wg.Done()
			}
		}
		mu.Unlock()
		wg.Wait()
	}()

	schedule := func(name string) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := timers[name]; ok && t.Stop() {
			wg.Done()
		}
		wg.Add(1)
		timers[name] = time.AfterFunc(watchDebounce, func() {
			defer wg.Done()
			mu.Lock()
			delete(timers, name)
			mu.Unlock()
			ev := l.reindexFile(ctx, name)
			if fn != nil {
				fn(ev)
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(ev.Name)
			if strings.HasPrefix(name, ".") || !strings.EqualFold(filepath.Ext(name), scriptExt) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				schedule(name)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Error("watcher error", slog.Any("err", err))
		}
	}
}

// reindexFile brings the index in line with the file's current state on disk.
func (l *Library) reindexFile(ctx context.Context, name string) ScriptEvent {
	b, err := os.ReadFile(filepath.Join(l.Root, ScriptsDirName, name))
	if errors.Is(err, fs.ErrNotExist) {
		if _, err := l.db.ExecContext(ctx, "DELETE FROM documents WHERE script = ?;", name); err != nil {
			l.log.Warn("unindex failed", slog.String("name", name), slog.Any("err", err))
		}
		return ScriptEvent{Name: name, Removed: true}
	}
	if err != nil {
		l.log.Warn("read changed script failed", slog.String("name", name), slog.Any("err", err))
		return ScriptEvent{Name: name}
	}
	if err := indexScriptLines(ctx, l.db, name, string(b)); err != nil {
		l.log.Warn("reindex failed", slog.String("name", name), slog.Any("err", err))
	}
	return ScriptEvent{Name: name}
}
