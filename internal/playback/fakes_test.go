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
	"sync"
	"testing"
	"time"

	"gopcrclicker/internal/script"
	"gopcrclicker/internal/settings"
)

type tap struct {
	X, Y  int
	Start int64
}

type fakeClicker struct {
	mu   sync.Mutex
	taps []tap
}

func (f *fakeClicker) PerformClick(x, y int, startTimeMs int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.taps = append(f.taps, tap{x, y, startTimeMs})
}

func (f *fakeClicker) all() []tap {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tap(nil), f.taps...)
}

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func newManualClock() *manualClock {
	return &manualClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (m *manualClock) now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t
}

func (m *manualClock) advance(d time.Duration) {
	m.mu.Lock()
	m.t = m.t.Add(d)
	m.mu.Unlock()
}

// fakeSleeper returns at once. Waits of at least block park until ctx is done and signal started.
type fakeSleeper struct {
	mu      sync.Mutex
	waits   []time.Duration
	block   time.Duration
	started chan struct{}
}

func (f *fakeSleeper) sleep(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	f.waits = append(f.waits, d)
	f.mu.Unlock()
	if f.block > 0 && d >= f.block {
		if f.started != nil {
			f.started <- struct{}{}
		}
		<-ctx.Done()
		return ctx.Err()
	}
	return ctx.Err()
}

func (f *fakeSleeper) all() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.waits...)
}

func parse(t *testing.T, text string) *script.Script {
	t.Helper()
	s, err := script.ParseText(text)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return s
}

func pos(p settings.Position, start int64) tap { return tap{p.X, p.Y, start} }

func expectTaps(t *testing.T, got []tap, want ...tap) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("taps: got %+v want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tap %d: got %+v want %+v (all %+v)", i, got[i], want[i], got)
		}
	}
}
