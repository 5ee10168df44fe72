/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package settings

import (
	"errors"
	"testing"
)

func TestImportJSONKeepsDefaultsForMissingFields(t *testing.T) {
	doc := []byte(`{"menuPosition":{"x":1,"y":2},"ub3Position":{"x":30,"y":40}}`)
	s, err := ImportJSON(doc)
	if err != nil {
		t.Fatalf("ImportJSON error: %v", err)
	}
	if s.MenuPosition != (Position{1, 2}) {
		t.Fatalf("menu = %+v", s.MenuPosition)
	}
	if s.UB(3) != (Position{30, 40}) {
		t.Fatalf("ub3 = %+v", s.UB(3))
	}
	if s.BlankPosition != Defaults().BlankPosition {
		t.Fatalf("blank should keep default, got %+v", s.BlankPosition)
	}
	if len(s.PauseActions) != 2 {
		t.Fatalf("expected default pause actions, got %d", len(s.PauseActions))
	}
}

func TestImportJSONRejectsSchemaViolations(t *testing.T) {
	for _, doc := range []string{
		`{"menuPosition":{"x":-1,"y":2}}`,
		`{"menuPosition":{"x":1}}`,
		`{"pauseActions":[{"name":"","position":{"x":1,"y":1}}]}`,
		`[]`,
	} {
		if _, err := ImportJSON([]byte(doc)); !errors.Is(err, ErrInvalidSettings) {
			t.Fatalf("ImportJSON(%s) err = %v, want ErrInvalidSettings", doc, err)
		}
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	s := Defaults()
	s.SpeedPosition = Position{7, 8}
	b, err := ExportJSON(s)
	if err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}
	got, err := ImportJSON(b)
	if err != nil {
		t.Fatalf("ImportJSON: %v", err)
	}
	if got.SpeedPosition != s.SpeedPosition || len(got.PauseActions) != len(s.PauseActions) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestNamedAndLookups(t *testing.T) {
	s := Defaults()
	named := s.Named()
	if len(named) != 9 || named[0].Name != "blank" || named[8].Position != s.UB5Position {
		t.Fatalf("unexpected named list: %+v", named)
	}
	if s.UB(1) != s.UB1Position || s.UB(9) != s.UB5Position {
		t.Fatalf("UB lookup mismatch")
	}
	pa, ok := s.PauseAction("150ms")
	if !ok || pa.PauseBattleDelayTime != 150 {
		t.Fatalf("pause action lookup: %+v %v", pa, ok)
	}
	if _, ok := s.PauseAction("missing"); ok {
		t.Fatalf("expected missing pause action")
	}
}
