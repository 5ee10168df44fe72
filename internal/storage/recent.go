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
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// maxRecent bounds the recent_files table.
const maxRecent = 30

// language=SQL
// dialect=SQLite
const upsertRecentSQL = `INSERT INTO recent_files(path, opened_at) VALUES (?, ?)
	ON CONFLICT(path) DO UPDATE SET opened_at = excluded.opened_at`

// language=SQL
// dialect=SQLite
const pruneRecentSQL = `DELETE FROM recent_files WHERE path NOT IN (
	SELECT path FROM recent_files ORDER BY opened_at DESC LIMIT ?
)`

// language=SQL
// dialect=SQLite
const listRecentSQL = `SELECT path, opened_at FROM recent_files`

// language=SQL
// dialect=SQLite
const deleteRecentSQL = `DELETE FROM recent_files WHERE path = ?`

// RecentFile is a recently opened or saved script.
type RecentFile struct {
	Path     string
	ModTime  time.Time
	OpenedAt time.Time
}

// Name is the file name without directories.
func (r RecentFile) Name() string { return filepath.Base(r.Path) }

func (l *Library) touchRecent(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if _, err := l.db.ExecContext(ctx, upsertRecentSQL, abs, l.now().UTC().Format(tsLayout)); err != nil {
		return fmt.Errorf("upsert recent: %w", err)
	}
	if _, err := l.db.ExecContext(ctx, pruneRecentSQL, maxRecent); err != nil {
		return fmt.Errorf("prune recent: %w", err)
	}
	return nil
}

// RecentFiles returns recent files that still exist, newest modification first.
// Entries whose file is gone are dropped from the index.
func (l *Library) RecentFiles(ctx context.Context) ([]RecentFile, error) {
	rows, err := l.db.QueryContext(ctx, listRecentSQL)
	if err != nil {
		return nil, fmt.Errorf("list recent: %w", err)
	}
	var out []RecentFile
	var gone []string
	for rows.Next() {
		var path, opened string
		if err := rows.Scan(&path, &opened); err != nil {
			_ = rows.Close()
			return nil, err
		}
		fi, err := os.Stat(path)
		if err != nil {
			gone = append(gone, path)
			continue
		}
		ts, _ := time.Parse(tsLayout, opened)
		out = append(out, RecentFile{Path: path, ModTime: fi.ModTime(), OpenedAt: ts})
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()
	for _, p := range gone {
		_, _ = l.db.ExecContext(ctx, deleteRecentSQL, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ModTime.After(out[j].ModTime) })
	return out, nil
}

// RemoveRecent drops path from the recent files. The file itself is untouched.
func (l *Library) RemoveRecent(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	_, err = l.db.ExecContext(ctx, deleteRecentSQL, abs)
	return err
}
