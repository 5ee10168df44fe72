/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package device

import (
	"log/slog"
	"sync"

	applog "gopcrclicker/internal/log"
)

// Tap is one recorded dry-run tap.
type Tap struct {
	X, Y        int
	StartTimeMs int64
}

// DryRun logs taps instead of performing them and keeps the most recent ones.
type DryRun struct {
	mu      sync.Mutex
	limit   int
	history []Tap
	log     *slog.Logger
}

// NewDryRun keeps up to limit taps; limit <= 0 keeps 256.
func NewDryRun(limit int) *DryRun {
	if limit <= 0 {
		limit = 256
	}
	return &DryRun{limit: limit, log: applog.WithComponent("device")}
}

func (d *DryRun) PerformClick(x, y int, startTimeMs int64) {
	d.log.Info("tap", slog.Int("x", x), slog.Int("y", y), slog.Int64("start_ms", startTimeMs), slog.Bool("dry_run", true))
	d.mu.Lock()
	defer d.mu.Unlock()
	d.history = append(d.history, Tap{X: x, Y: y, StartTimeMs: startTimeMs})
	if over := len(d.history) - d.limit; over > 0 {
		d.history = append(d.history[:0], d.history[over:]...)
	}
}

// History returns a copy of the recorded taps, oldest first.
func (d *DryRun) History() []Tap {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Tap(nil), d.history...)
}
