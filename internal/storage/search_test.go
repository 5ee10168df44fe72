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
	"strings"
	"testing"
)

func TestSearchFullTextAndFilter(t *testing.T) {
	lib := openTestLibrary(t)
	ctx := context.Background()
	if err := lib.SaveScript(ctx, "arena", "2=Kyaru 1=Pecorine\n1:20 Kyaru Pecorine\n1:05 bossub menu"); err != nil {
		t.Fatalf("SaveScript: %v", err)
	}
	if err := lib.SaveScript(ctx, "clan", "1=Kyaru\n1:10 Kyaru"); err != nil {
		t.Fatalf("SaveScript: %v", err)
	}

	res, err := lib.Search(ctx, SearchQuery{Text: "Kyaru"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 4 {
		t.Fatalf("expected 4 hits for Kyaru, got %d: %+v", len(res), res)
	}
	if !strings.Contains(res[0].Snippet, "[Kyaru]") {
		t.Fatalf("expected highlighted snippet, got %q", res[0].Snippet)
	}

	res, err = lib.Search(ctx, SearchQuery{Text: "Kyaru", Script: "clan.txt"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("expected 2 hits in clan.txt, got %d", len(res))
	}
	for _, r := range res {
		if r.Script != "clan.txt" {
			t.Fatalf("filter leaked script %q", r.Script)
		}
	}

	res, err = lib.Search(ctx, SearchQuery{Text: "bossub"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 1 || res[0].LineNum != 3 {
		t.Fatalf("expected bossub on line 3, got %+v", res)
	}
}

func TestSearchReindexReplacesLines(t *testing.T) {
	lib := openTestLibrary(t)
	ctx := context.Background()
	if err := lib.SaveScript(ctx, "a", "1=A\n1:00 A"); err != nil {
		t.Fatalf("SaveScript: %v", err)
	}
	if err := lib.SaveScript(ctx, "a", "1=B\n1:00 B"); err != nil {
		t.Fatalf("SaveScript: %v", err)
	}
	res, err := lib.Search(ctx, SearchQuery{Script: "a.txt"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 2 || res[0].Text != "1=B" {
		t.Fatalf("expected only the new lines, got %+v", res)
	}
}

func TestSearchPagination(t *testing.T) {
	lib := openTestLibrary(t)
	ctx := context.Background()
	if err := lib.SaveScript(ctx, "p", "1=A\n1:20 A\n1:10 A\n1:00 A"); err != nil {
		t.Fatalf("SaveScript: %v", err)
	}
	res, err := lib.Search(ctx, SearchQuery{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 2 || res[0].LineNum != 3 {
		t.Fatalf("unexpected page: %+v", res)
	}
}
