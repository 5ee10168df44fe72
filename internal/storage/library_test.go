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
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openTestLibrary(t *testing.T) *Library {
	t.Helper()
	lib, err := OpenLibrary(t.TempDir())
	if err != nil {
		t.Fatalf("OpenLibrary error: %v", err)
	}
	t.Cleanup(func() { _ = lib.Close() })
	return lib
}

// steppingClock advances one second per call so backup and record names stay unique.
func steppingClock(start time.Time) func() time.Time {
	cur := start
	return func() time.Time {
		cur = cur.Add(time.Second)
		return cur
	}
}

func TestOpenLibraryCreatesStructure(t *testing.T) {
	lib := openTestLibrary(t)
	for _, d := range []string{ScriptsDirName, RecordsDirName, BackupsDirName, IndexDirName} {
		p := filepath.Join(lib.Root, d)
		if fi, err := os.Stat(p); err != nil || !fi.IsDir() {
			t.Fatalf("expected directory %s to exist", p)
		}
	}
}

func TestOpenLibraryRequiresRoot(t *testing.T) {
	if _, err := OpenLibrary("  "); err == nil {
		t.Fatalf("expected error for empty root")
	}
}

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"arena":     "arena.txt",
		"arena.txt": "arena.txt",
		"A.TXT":     "A.TXT",
		" clan ":    "clan.txt",
	}
	for in, want := range cases {
		got, err := NormalizeName(in)
		if err != nil || got != want {
			t.Fatalf("NormalizeName(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "../x", "a/b", "a\\b", ".hidden"} {
		if _, err := NormalizeName(bad); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("NormalizeName(%q) expected ErrInvalidName, got %v", bad, err)
		}
	}
}

func TestSaveAndReadScript(t *testing.T) {
	lib := openTestLibrary(t)
	ctx := context.Background()
	text := "1=Pecorine\n1:20 Pecorine"
	if err := lib.SaveScript(ctx, "arena", text); err != nil {
		t.Fatalf("SaveScript: %v", err)
	}
	got, err := lib.ReadScript(ctx, "arena.txt")
	if err != nil {
		t.Fatalf("ReadScript: %v", err)
	}
	if got != text {
		t.Fatalf("round trip mismatch: %q", got)
	}
	names, err := lib.ListScripts()
	if err != nil {
		t.Fatalf("ListScripts: %v", err)
	}
	if len(names) != 1 || names[0] != "arena.txt" {
		t.Fatalf("unexpected scripts: %v", names)
	}
	if _, err := lib.ReadScript(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveCreatesTimestampedBackup(t *testing.T) {
	lib := openTestLibrary(t)
	lib.now = steppingClock(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()
	if err := lib.SaveScript(ctx, "a", "1=A\n1:00 A"); err != nil {
		t.Fatalf("SaveScript: %v", err)
	}
	if err := lib.SaveScript(ctx, "a", "1=B\n1:00 B"); err != nil {
		t.Fatalf("SaveScript: %v", err)
	}
	ents, err := os.ReadDir(filepath.Join(lib.Root, BackupsDirName))
	if err != nil {
		t.Fatalf("read backups: %v", err)
	}
	if len(ents) != 1 || !strings.HasPrefix(ents[0].Name(), "a.txt.") || !strings.HasSuffix(ents[0].Name(), ".bak") {
		t.Fatalf("expected one backup of a.txt, got %v", ents)
	}
	b, err := os.ReadFile(filepath.Join(lib.Root, BackupsDirName, ents[0].Name()))
	if err != nil || string(b) != "1=A\n1:00 A" {
		t.Fatalf("backup should hold the previous text, got %q (%v)", b, err)
	}
}

func TestReadScriptFallsBackToBackup(t *testing.T) {
	lib := openTestLibrary(t)
	lib.now = steppingClock(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()
	if err := lib.SaveScript(ctx, "a", "old"); err != nil {
		t.Fatalf("SaveScript: %v", err)
	}
	if err := lib.SaveScript(ctx, "a", "new"); err != nil {
		t.Fatalf("SaveScript: %v", err)
	}
	path, _ := lib.ScriptPath("a")
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	got, err := lib.ReadScript(ctx, "a")
	if err != nil {
		t.Fatalf("ReadScript: %v", err)
	}
	if got != "old" {
		t.Fatalf("expected backup contents, got %q", got)
	}
}

func TestReadFileOutsideLibrary(t *testing.T) {
	lib := openTestLibrary(t)
	ctx := context.Background()
	p := filepath.Join(t.TempDir(), "ext.txt")
	if err := os.WriteFile(p, []byte("1=A\n1:00 A"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := lib.ReadFile(ctx, p)
	if err != nil || got != "1=A\n1:00 A" {
		t.Fatalf("ReadFile = %q, %v", got, err)
	}
	recent, err := lib.RecentFiles(ctx)
	if err != nil {
		t.Fatalf("RecentFiles: %v", err)
	}
	if len(recent) != 1 || recent[0].Name() != "ext.txt" {
		t.Fatalf("expected ext.txt in recent files, got %+v", recent)
	}
}

func TestRecentFilesDropMissing(t *testing.T) {
	lib := openTestLibrary(t)
	ctx := context.Background()
	if err := lib.SaveScript(ctx, "a", "1=A\n1:00 A"); err != nil {
		t.Fatalf("SaveScript: %v", err)
	}
	if err := lib.SaveScript(ctx, "b", "1=B\n1:00 B"); err != nil {
		t.Fatalf("SaveScript: %v", err)
	}
	recent, err := lib.RecentFiles(ctx)
	if err != nil || len(recent) != 2 {
		t.Fatalf("expected 2 recent files, got %d (%v)", len(recent), err)
	}
	pa, _ := lib.ScriptPath("a")
	if err := os.Remove(pa); err != nil {
		t.Fatalf("remove: %v", err)
	}
	recent, err = lib.RecentFiles(ctx)
	if err != nil || len(recent) != 1 || recent[0].Name() != "b.txt" {
		t.Fatalf("expected only b.txt, got %+v (%v)", recent, err)
	}
	if err := lib.RemoveRecent(ctx, recent[0].Path); err != nil {
		t.Fatalf("RemoveRecent: %v", err)
	}
	recent, _ = lib.RecentFiles(ctx)
	if len(recent) != 0 {
		t.Fatalf("expected empty recent files, got %+v", recent)
	}
}

func TestRecordSaverAndPrune(t *testing.T) {
	lib := openTestLibrary(t)
	lib.now = steppingClock(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()
	save := lib.RecordSaver(ctx, "arena.txt")
	for _, s := range []string{"one", "two", "three"} {
		save(s)
	}
	recs, err := lib.ListRecords(ctx, 0)
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	if recs[0].Source != "arena" || recs[0].Bytes != int64(len("three")) {
		t.Fatalf("unexpected newest record: %+v", recs[0])
	}
	if got := sourceFromRecordName(filepath.Base(recs[0].Path)); got != "arena" {
		t.Fatalf("sourceFromRecordName = %q", got)
	}
	n, err := lib.PruneRecords(ctx, 1)
	if err != nil || n != 2 {
		t.Fatalf("PruneRecords = %d, %v", n, err)
	}
	ents, _ := os.ReadDir(filepath.Join(lib.Root, RecordsDirName))
	if len(ents) != 1 {
		t.Fatalf("expected one record file left, got %d", len(ents))
	}
	b, _ := os.ReadFile(filepath.Join(lib.Root, RecordsDirName, ents[0].Name()))
	if string(b) != "three" {
		t.Fatalf("newest record should survive, got %q", b)
	}
}

func TestScriptSnapshots(t *testing.T) {
	lib := openTestLibrary(t)
	lib.now = steppingClock(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()
	for _, s := range []string{"v1", "v2", "v3"} {
		if err := lib.SaveScript(ctx, "a", s); err != nil {
			t.Fatalf("SaveScript: %v", err)
		}
	}
	latest, err := lib.LatestScriptSnapshot(ctx, "a.txt")
	if err != nil || latest.Text != "v3" {
		t.Fatalf("LatestScriptSnapshot = %+v, %v", latest, err)
	}
	n, err := lib.PruneOldScriptSnapshots(ctx, "a.txt", 2)
	if err != nil || n != 1 {
		t.Fatalf("PruneOldScriptSnapshots = %d, %v", n, err)
	}
	list, err := lib.ListScriptSnapshots(ctx, "a.txt", 0)
	if err != nil {
		t.Fatalf("ListScriptSnapshots: %v", err)
	}
	if len(list) != 2 || list[0].Text != "v3" || list[1].Text != "v2" {
		t.Fatalf("unexpected snapshots: %+v", list)
	}
	none, err := lib.LatestScriptSnapshot(ctx, "other.txt")
	if err != nil || none.Text != "" {
		t.Fatalf("expected empty snapshot, got %+v (%v)", none, err)
	}
}

func TestWatchReindexesExternalEdits(t *testing.T) {
	lib := openTestLibrary(t)
	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan ScriptEvent, 8)
	done := make(chan error, 1)
	go func() { done <- lib.Watch(ctx, func(ev ScriptEvent) { events <- ev }) }()
	// give the watcher a moment to register
	time.Sleep(100 * time.Millisecond)

	p := filepath.Join(lib.Root, ScriptsDirName, "ext.txt")
	if err := os.WriteFile(p, []byte("1=Kokkoro\n1:00 Kokkoro"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case ev := <-events:
		if ev.Name != "ext.txt" || ev.Removed {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for watch event")
	}
	res, err := lib.Search(context.Background(), SearchQuery{Text: "Kokkoro"})
	if err != nil || len(res) != 2 {
		t.Fatalf("expected external script indexed, got %d (%v)", len(res), err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Watch returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("Watch did not stop")
	}
}
