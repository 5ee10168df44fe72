/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package playback

import (
	"context"
	"errors"
	"testing"

	"gopcrclicker/internal/settings"
)

type fakeOverlay struct {
	paused bool
	events []string
	count  int
}

func (o *fakeOverlay) Paused() bool { return o.paused }

func (o *fakeOverlay) HideModal() {
	o.events = append(o.events, "hide")
	o.paused = false
}

func (o *fakeOverlay) ShowModal(n int) {
	o.events = append(o.events, "show")
	o.paused = true
	o.count = n
}

func TestPauseGame_HidesTapsAndShows(t *testing.T) {
	o := &fakeOverlay{paused: true}
	fc := &fakeClicker{}
	blank := settings.Position{X: 1, Y: 2}
	err := PauseGame(context.Background(), o, fc, 3, settings.PauseAction{Name: "0ms"}, blank)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if len(o.events) != 2 || o.events[0] != "hide" || o.events[1] != "show" || o.count != 3 {
		t.Fatalf("overlay events: %+v", o)
	}
	expectTaps(t, fc.all(), pos(blank, 0))
}

func TestPauseGame_NotPausedSkipsHide(t *testing.T) {
	o := &fakeOverlay{}
	fc := &fakeClicker{}
	a := settings.PauseAction{Name: "fast", ClosePauseWindowDelayTime: 1, PauseBattleDelayTime: 1}
	if err := PauseGame(context.Background(), o, fc, 1, a, settings.Position{}); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if len(o.events) != 1 || o.events[0] != "show" {
		t.Fatalf("overlay events: %+v", o.events)
	}
}

func TestPauseGame_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o := &fakeOverlay{}
	fc := &fakeClicker{}
	a := settings.PauseAction{ClosePauseWindowDelayTime: 600}
	err := PauseGame(ctx, o, fc, 1, a, settings.Position{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if len(fc.all()) != 0 || len(o.events) != 0 {
		t.Fatal("cancelled pause should not tap or show")
	}
}
