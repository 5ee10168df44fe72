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
	"time"
)

// language=SQL
// dialect=SQLite
const insertScriptSnapshotSQL = `INSERT INTO script_snapshots(script, ts, text) VALUES (?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectLatestScriptSnapshotSQL = `SELECT ts, text FROM script_snapshots WHERE script = ? ORDER BY ts DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const listScriptSnapshotsSQL = `SELECT ts, text FROM script_snapshots WHERE script = ? ORDER BY ts DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneOldScriptSnapshotsSQL = `DELETE FROM script_snapshots WHERE script = ? AND id NOT IN (
	SELECT id FROM script_snapshots WHERE script = ? ORDER BY ts DESC LIMIT ?
)`

// ScriptSnapshot is one saved version of a script's text.
type ScriptSnapshot struct {
	TS   time.Time
	Text string
}

// SaveScriptSnapshot stores the full text of a script version. The history lives in the
// index and is for change tracking only; the script file stays canonical.
func (l *Library) SaveScriptSnapshot(ctx context.Context, script, text string, ts time.Time) error {
	_, err := l.db.ExecContext(ctx, insertScriptSnapshotSQL, script, ts.UTC().Format(tsLayout), text)
	return err
}

// LatestScriptSnapshot returns the newest snapshot of script, or a zero value if there is none.
func (l *Library) LatestScriptSnapshot(ctx context.Context, script string) (ScriptSnapshot, error) {
	var tsStr, txt string
	err := l.db.QueryRowContext(ctx, selectLatestScriptSnapshotSQL, script).Scan(&tsStr, &txt)
	if errors.Is(err, sql.ErrNoRows) {
		return ScriptSnapshot{}, nil
	}
	if err != nil {
		return ScriptSnapshot{}, err
	}
	ts, _ := time.Parse(tsLayout, tsStr)
	return ScriptSnapshot{TS: ts, Text: txt}, nil
}

// ListScriptSnapshots returns up to limit most recent snapshots of script.
func (l *Library) ListScriptSnapshots(ctx context.Context, script string, limit int) ([]ScriptSnapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, listScriptSnapshotsSQL, script, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []ScriptSnapshot
	for rows.Next() {
		var tsStr, txt string
		if err := rows.Scan(&tsStr, &txt); err != nil {
			return nil, err
		}
		ts, _ := time.Parse(tsLayout, tsStr)
		out = append(out, ScriptSnapshot{TS: ts, Text: txt})
	}
	return out, rows.Err()
}

// PruneOldScriptSnapshots keeps at most keepLast snapshots of script and deletes older ones.
func (l *Library) PruneOldScriptSnapshots(ctx context.Context, script string, keepLast int) (int64, error) {
	if keepLast <= 0 {
		return 0, nil
	}
	res, err := l.db.ExecContext(ctx, pruneOldScriptSnapshotsSQL, script, script, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
