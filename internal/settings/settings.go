/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package settings holds the read-only position snapshot the playback cursor taps against.
package settings

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	gojsonschema "github.com/xeipuuv/gojsonschema"
)

// Position is a screen coordinate in device pixels.
type Position struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// PauseAction describes one pause macro. Delays are milliseconds.
type PauseAction struct {
	Name                      string   `json:"name" yaml:"name"`
	Position                  Position `json:"position" yaml:"position"`
	ClosePauseWindowDelayTime int64    `json:"closePauseWindowDelayTime" yaml:"close_pause_window_delay_ms"`
	PauseBattleDelayTime      int64    `json:"pauseBattleDelayTime" yaml:"pause_battle_delay_ms"`
}

// Settings is the fixed set of named tap slots plus the pause actions.
// JSON tags follow the export format of the Android app so settings files can be shared.
type Settings struct {
	BlankPosition Position      `json:"blankPosition" yaml:"blank"`
	MenuPosition  Position      `json:"menuPosition" yaml:"menu"`
	AutoPosition  Position      `json:"autoPosition" yaml:"auto"`
	SpeedPosition Position      `json:"speedPosition" yaml:"speed"`
	UB1Position   Position      `json:"ub1Position" yaml:"ub1"`
	UB2Position   Position      `json:"ub2Position" yaml:"ub2"`
	UB3Position   Position      `json:"ub3Position" yaml:"ub3"`
	UB4Position   Position      `json:"ub4Position" yaml:"ub4"`
	UB5Position   Position      `json:"ub5Position" yaml:"ub5"`
	PauseActions  []PauseAction `json:"pauseActions" yaml:"pause_actions"`
}

// Defaults returns positions calibrated for a 2400x1080 landscape screen.
func Defaults() Settings {
	return Settings{
		BlankPosition: Position{150, 75},
		MenuPosition:  Position{2250, 40},
		AutoPosition:  Position{2280, 830},
		SpeedPosition: Position{2280, 970},
		UB1Position:   Position{1660, 870},
		UB2Position:   Position{1420, 870},
		UB3Position:   Position{1180, 870},
		UB4Position:   Position{940, 870},
		UB5Position:   Position{700, 870},
		PauseActions: []PauseAction{
			{Name: "0ms", Position: Position{30, 200}, ClosePauseWindowDelayTime: 600, PauseBattleDelayTime: 0},
			{Name: "150ms", Position: Position{30, 350}, ClosePauseWindowDelayTime: 600, PauseBattleDelayTime: 150},
		},
	}
}

// NamedPosition pairs a slot with its label.
type NamedPosition struct {
	Name     string
	Position Position
}

// Named lists the tap slots in editor order.
func (s Settings) Named() []NamedPosition {
	return []NamedPosition{
		{"blank", s.BlankPosition},
		{"menu", s.MenuPosition},
		{"auto", s.AutoPosition},
		{"speed", s.SpeedPosition},
		{"ub1", s.UB1Position},
		{"ub2", s.UB2Position},
		{"ub3", s.UB3Position},
		{"ub4", s.UB4Position},
		{"ub5", s.UB5Position},
	}
}

// UB returns the ultimate slot for character number n (1..5). Out of range numbers map to slot 5.
func (s Settings) UB(n int) Position {
	switch n {
	case 1:
		return s.UB1Position
	case 2:
		return s.UB2Position
	case 3:
		return s.UB3Position
	case 4:
		return s.UB4Position
	default:
		return s.UB5Position
	}
}

// PauseAction looks up a pause action by name.
func (s Settings) PauseAction(name string) (PauseAction, bool) {
	for _, pa := range s.PauseActions {
		if pa.Name == name {
			return pa, true
		}
	}
	return PauseAction{}, false
}

//go:embed settings.schema.json
var schemaJSON []byte

// ErrInvalidSettings is returned when an imported document does not match the schema.
var ErrInvalidSettings = errors.New("invalid settings document")

// ImportJSON parses a settings export. Fields missing from the document keep their defaults.
func ImportJSON(data []byte) (Settings, error) {
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schemaJSON), gojsonschema.NewBytesLoader(data))
	if err != nil {
		return Settings{}, fmt.Errorf("validate settings: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return Settings{}, fmt.Errorf("%w: %s", ErrInvalidSettings, strings.Join(msgs, "; "))
	}
	s := Defaults()
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return s, nil
}

// ExportJSON renders settings in the shared JSON format.
func ExportJSON(s Settings) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
