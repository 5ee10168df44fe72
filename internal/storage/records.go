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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	applog "gopcrclicker/internal/log"
)

// recordStampLayout is the time suffix of record file names.
const recordStampLayout = "20060102-150405.000"

// language=SQL
// dialect=SQLite
const insertTranscriptSQL = `INSERT INTO record_transcripts(id, source, path, bytes, created_at) VALUES (?, ?, ?, ?, ?)`

// language=SQL
// dialect=SQLite
const listTranscriptsSQL = `SELECT id, source, path, bytes, created_at FROM record_transcripts ORDER BY created_at DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const prunableTranscriptsSQL = `SELECT id, path FROM record_transcripts WHERE id NOT IN (
	SELECT id FROM record_transcripts ORDER BY created_at DESC LIMIT ?
)`

// language=SQL
// dialect=SQLite
const deleteTranscriptSQL = `DELETE FROM record_transcripts WHERE id = ?`

// Record is a saved record transcript.
type Record struct {
	ID        string
	Source    string
	Path      string
	Bytes     int64
	CreatedAt time.Time
}

func newRecordID() string { return uuid.NewString() }

// RecordSaver returns a save function for record transcripts of the given source script.
// Each call writes records/<source>-<stamp>.txt, registers it in the index and the recent
// files. Failures are logged; the save capability has no error channel.
func (l *Library) RecordSaver(ctx context.Context, source string) func(content string) {
	log := applog.WithOperation(l.log, "record_save").With(slog.String("source", source))
	return func(content string) {
		rec, err := l.SaveRecord(ctx, source, content)
		if err != nil {
			log.Error("save record failed", slog.Any("err", err))
			return
		}
		log.Info("record saved", slog.String("id", rec.ID), slog.String("path", rec.Path))
	}
}

// SaveRecord writes one transcript and returns its index entry.
func (l *Library) SaveRecord(ctx context.Context, source, content string) (Record, error) {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	if base == "" || base == "." {
		base = "record"
	}
	now := l.now()
	path := filepath.Join(l.Root, RecordsDirName, fmt.Sprintf("%s-%s%s", base, now.Format(recordStampLayout), scriptExt))
	if err := writeAtomic(path, []byte(content)); err != nil {
		return Record{}, err
	}
	rec := Record{ID: newRecordID(), Source: base, Path: path, Bytes: int64(len(content)), CreatedAt: now}
	if err := insertTranscriptRow(ctx, l.db, rec.ID, rec.Source, rec.Path, rec.Bytes, now); err != nil {
		return Record{}, err
	}
	if err := l.touchRecent(ctx, path); err != nil {
		l.log.Warn("recent update failed", slog.Any("err", err))
	}
	return rec, nil
}

func insertTranscriptRow(ctx context.Context, db *sql.DB, id, source, path string, size int64, created time.Time) error {
	if _, err := db.ExecContext(ctx, insertTranscriptSQL, id, source, path, size, created.UTC().Format(tsLayout)); err != nil {
		return fmt.Errorf("insert transcript: %w", err)
	}
	return nil
}

// sourceFromRecordName recovers the source name from "<source>-<stamp>.txt".
func sourceFromRecordName(name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if len(stem) > len(recordStampLayout)+1 {
		return stem[:len(stem)-len(recordStampLayout)-1]
	}
	return stem
}

// ListRecords returns up to limit transcripts, newest first.
func (l *Library) ListRecords(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, listTranscriptsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Record
	for rows.Next() {
		var r Record
		var ts string
		if err := rows.Scan(&r.ID, &r.Source, &r.Path, &r.Bytes, &ts); err != nil {
			return nil, err
		}
		r.CreatedAt, _ = time.Parse(tsLayout, ts)
		out = append(out, r)
	}
	return out, rows.Err()
}

// PruneRecords keeps the newest keep transcripts and deletes the rest with their files.
func (l *Library) PruneRecords(ctx context.Context, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	rows, err := l.db.QueryContext(ctx, prunableTranscriptsSQL, keep)
	if err != nil {
		return 0, err
	}
	type victim struct{ id, path string }
	var victims []victim
	for rows.Next() {
		var v victim
		if err := rows.Scan(&v.id, &v.path); err != nil {
			_ = rows.Close()
			return 0, err
		}
		victims = append(victims, v)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return 0, err
	}
	_ = rows.Close()
	for _, v := range victims {
		if err := os.Remove(v.path); err != nil && !os.IsNotExist(err) {
			return 0, fmt.Errorf("remove %s: %w", v.path, err)
		}
		if _, err := l.db.ExecContext(ctx, deleteTranscriptSQL, v.id); err != nil {
			return 0, err
		}
	}
	return len(victims), nil
}
