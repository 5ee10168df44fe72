/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoScript is returned when a shared script id does not exist.
var ErrNoScript = errors.New("script not found")

// ScriptInfo is the listing projection of a shared script.
type ScriptInfo struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Author    string    `json:"author"`
	Team      string    `json:"team"`
	Operates  int       `json:"operates"`
	CreatedAt time.Time `json:"created_at"`
}

// SharedScript is a shared script with its text.
type SharedScript struct {
	ScriptInfo
	Body string `json:"body"`
}

// LineHit is one matching script line from a search.
type LineHit struct {
	ScriptID int64  `json:"script_id"`
	Name     string `json:"name"`
	LineNum  int    `json:"line_num"`
	Snippet  string `json:"snippet"`
}

// Store persists shared scripts.
type Store interface {
	Ping(ctx context.Context) error
	List(ctx context.Context, limit int) ([]ScriptInfo, error)
	Get(ctx context.Context, id int64) (SharedScript, error)
	// Put stores s and its lines; an existing script with the same author and name is replaced.
	Put(ctx context.Context, s SharedScript) (ScriptInfo, error)
	Search(ctx context.Context, text string, limit, offset int) ([]LineHit, error)
}

// PGStore implements Store on Postgres.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore { return &PGStore{db: db} }

func (s *PGStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// dialect=PostgreSQL
const listScriptsSQL = `SELECT id, name, author, team, operates, created_at FROM scripts ORDER BY created_at DESC, id DESC LIMIT $1`

func (s *PGStore) List(ctx context.Context, limit int) ([]ScriptInfo, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, listScriptsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("list scripts: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []ScriptInfo
	for rows.Next() {
		var si ScriptInfo
		if err := rows.Scan(&si.ID, &si.Name, &si.Author, &si.Team, &si.Operates, &si.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, si)
	}
	return out, rows.Err()
}

func (s *PGStore) Get(ctx context.Context, id int64) (SharedScript, error) {
	var sc SharedScript
	err := s.db.QueryRowContext(ctx, `SELECT id, name, author, team, operates, created_at, body FROM scripts WHERE id = $1`, id).
		Scan(&sc.ID, &sc.Name, &sc.Author, &sc.Team, &sc.Operates, &sc.CreatedAt, &sc.Body)
	if errors.Is(err, sql.ErrNoRows) {
		return SharedScript{}, ErrNoScript
	}
	if err != nil {
		return SharedScript{}, fmt.Errorf("get script: %w", err)
	}
	return sc, nil
}

func (s *PGStore) Put(ctx context.Context, sc SharedScript) (ScriptInfo, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ScriptInfo{}, fmt.Errorf("begin: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM scripts WHERE author = $1 AND lower(name) = lower($2)`, sc.Author, sc.Name); err != nil {
		_ = tx.Rollback()
		return ScriptInfo{}, fmt.Errorf("replace script: %w", err)
	}
	info := sc.ScriptInfo
	err = tx.QueryRowContext(ctx,
		`INSERT INTO scripts(name, author, team, operates, body) VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		sc.Name, sc.Author, sc.Team, sc.Operates, sc.Body).Scan(&info.ID, &info.CreatedAt)
	if err != nil {
		_ = tx.Rollback()
		return ScriptInfo{}, fmt.Errorf("insert script: %w", err)
	}
	for i, line := range strings.Split(sc.Body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO script_lines(script_id, line_num, text) VALUES ($1, $2, $3)`, info.ID, i+1, line); err != nil {
			_ = tx.Rollback()
			return ScriptInfo{}, fmt.Errorf("insert line: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return ScriptInfo{}, fmt.Errorf("commit: %w", err)
	}
	return info, nil
}

// Search runs a tsvector search over shared script lines, ordered like the local index.
func (s *PGStore) Search(ctx context.Context, text string, limit, offset int) ([]LineHit, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	var (
		args []any
		b    strings.Builder
	)
	// Helper to add parameter and return placeholder like $n
	place := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if strings.TrimSpace(text) != "" {
		q := place(text)
		b.WriteString("SELECT l.script_id, s.name, l.line_num, ")
		b.WriteString("COALESCE(ts_headline('simple', l.text, plainto_tsquery('simple', " + q + "), 'StartSel=[, StopSel=], MaxFragments=1, MaxWords=12'), '') ")
		b.WriteString("FROM script_lines l JOIN scripts s ON s.id = l.script_id ")
		b.WriteString("WHERE l.search_vector @@ plainto_tsquery('simple', " + q + ") ")
	} else {
		b.WriteString("SELECT l.script_id, s.name, l.line_num, '' FROM script_lines l JOIN scripts s ON s.id = l.script_id ")
	}
	b.WriteString("ORDER BY s.name, l.line_num ")
	b.WriteString("LIMIT " + place(limit) + " OFFSET " + place(offset))

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search pg query: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []LineHit
	for rows.Next() {
		var h LineHit
		if err := rows.Scan(&h.ScriptID, &h.Name, &h.LineNum, &h.Snippet); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
