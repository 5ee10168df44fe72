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
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	applog "gopcrclicker/internal/log"
)

const (
	ScriptsDirName = "scripts"
	RecordsDirName = "records"
	BackupsDirName = "backups"

	scriptExt = ".txt"
)

var (
	ErrNotFound    = errors.New("script not found")
	ErrInvalidName = errors.New("invalid script name")
)

var standardSubDirs = []string{
	ScriptsDirName,
	RecordsDirName,
	BackupsDirName,
}

// Library is an open script library rooted at Root.
type Library struct {
	Root string

	db  *sql.DB
	log *slog.Logger
	now func() time.Time
}

// OpenLibrary creates the library folders under root if needed and opens the index.
func OpenLibrary(root string) (*Library, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root path is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create library root: %w", err)
	}
	for _, d := range standardSubDirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return nil, fmt.Errorf("create subdir %s: %w", d, err)
		}
	}
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return nil, err
	}
	return &Library{
		Root: root,
		db:   db,
		log:  applog.WithComponent("storage").With(slog.String("root", root)),
		now:  time.Now,
	}, nil
}

// Close releases the index.
func (l *Library) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// NormalizeName returns the file name for a script: a bare name gains ".txt".
// Names with path separators or leading dots are rejected.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if !strings.EqualFold(filepath.Ext(name), scriptExt) {
		name += scriptExt
	}
	return name, nil
}

// ScriptPath returns the absolute path of the named script.
func (l *Library) ScriptPath(name string) (string, error) {
	n, err := NormalizeName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.Root, ScriptsDirName, n), nil
}

// SaveScript writes text as the named script with transactional semantics and a timestamped
// backup of the previous version. The script is re-indexed and added to the recent files.
func (l *Library) SaveScript(ctx context.Context, name, text string) error {
	log := applog.WithOperation(l.log, "save_script").With(slog.String("name", name))
	path, err := l.ScriptPath(name)
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(path); statErr == nil {
		if err := l.backup(path); err != nil {
			return fmt.Errorf("backup current script: %w", err)
		}
	}
	if err := writeAtomic(path, []byte(text)); err != nil {
		log.Error("write failed", slog.Any("err", err))
		return err
	}
	base := filepath.Base(path)
	if err := l.SaveScriptSnapshot(ctx, base, text, l.now()); err != nil {
		log.Warn("snapshot failed", slog.Any("err", err))
	}
	if err := indexScriptLines(ctx, l.db, base, text); err != nil {
		log.Warn("index failed", slog.Any("err", err))
	}
	if err := l.touchRecent(ctx, path); err != nil {
		log.Warn("recent update failed", slog.Any("err", err))
	}
	log.Info("script saved", slog.Int("bytes", len(text)))
	return nil
}

// ReadScript returns the named script's text and adds it to the recent files.
// An unreadable script falls back to its latest backup.
func (l *Library) ReadScript(ctx context.Context, name string) (string, error) {
	path, err := l.ScriptPath(name)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		bak, berr := l.latestBackup(filepath.Base(path))
		if berr != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", fmt.Errorf("%w: %s", ErrNotFound, name)
			}
			return "", fmt.Errorf("read script: %w; backup attempt: %v", err, berr)
		}
		l.log.Warn("read from backup", slog.String("name", name), slog.String("backup", bak))
		if b, err = os.ReadFile(bak); err != nil {
			return "", fmt.Errorf("read backup: %w", err)
		}
	}
	if err := l.touchRecent(ctx, path); err != nil {
		l.log.Warn("recent update failed", slog.Any("err", err))
	}
	return string(b), nil
}

// ReadFile reads any text file by path and adds it to the recent files. Paths inside the
// library's scripts folder behave like ReadScript.
func (l *Library) ReadFile(ctx context.Context, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if filepath.Dir(abs) == filepath.Join(l.absRoot(), ScriptsDirName) {
		return l.ReadScript(ctx, filepath.Base(abs))
	}
	b, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", err
	}
	if err := l.touchRecent(ctx, abs); err != nil {
		l.log.Warn("recent update failed", slog.Any("err", err))
	}
	return string(b), nil
}

// ListScripts returns the script file names in the library, sorted.
func (l *Library) ListScripts() ([]string, error) {
	return listTextFiles(filepath.Join(l.Root, ScriptsDirName))
}

func (l *Library) absRoot() string {
	if abs, err := filepath.Abs(l.Root); err == nil {
		return abs
	}
	return l.Root
}

func (l *Library) backup(path string) error {
	stamp := l.now().Format("20060102-150405.000")
	bpath := filepath.Join(l.Root, BackupsDirName, fmt.Sprintf("%s.%s.bak", filepath.Base(path), stamp))
	return copyFile(path, bpath)
}

// latestBackup finds the newest backup of the given script file name.
func (l *Library) latestBackup(base string) (string, error) {
	bdir := filepath.Join(l.Root, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return "", fmt.Errorf("read backups dir: %w", err)
	}
	var candidates []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, base+".") && strings.HasSuffix(name, ".bak") {
			candidates = append(candidates, filepath.Join(bdir, name))
		}
	}
	if len(candidates) == 0 {
		return "", errors.New("no backups found")
	}
	sort.Strings(candidates) // timestamp in name yields lexicographic order
	return candidates[len(candidates)-1], nil
}

func listTextFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !strings.EqualFold(filepath.Ext(e.Name()), scriptExt) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

// writeAtomic writes to a temp file in the same directory, then renames it over path.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(path), os.Getpid(), rand.Int()))
	if err := writeFileSync(temp, data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	// On Windows, replace by removing destination first if needed
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	if err := os.Rename(temp, path); err != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeFileSync writes data to a file and flushes it to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
