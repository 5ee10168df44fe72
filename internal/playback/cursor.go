/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package playback drives a parsed script: cursor navigation, the two-phase click protocol,
// auto-click segments and record mode.
//
// Commands are serialized per Cursor. Snapshot and subscriber callbacks may run on any
// goroutine; subscribers must not call back into Cursor commands.
package playback

import (
	"context"
	"log/slog"
	"sync"
	"time"

	applog "gopcrclicker/internal/log"
	"gopcrclicker/internal/script"
	"gopcrclicker/internal/settings"
)

// Clicker performs a tap. startTimeMs delays the tap after the call returns.
type Clicker interface {
	PerformClick(x, y int, startTimeMs int64)
}

// SaveFunc receives a finished record transcript.
type SaveFunc func(content string)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Option configures a Cursor.
type Option func(*Cursor)

// WithClock replaces time.Now, used for record delays.
func WithClock(now func() time.Time) Option { return func(c *Cursor) { c.now = now } }

// WithSleeper replaces the timer based wait used by auto-click and settle delays.
func WithSleeper(s Sleeper) Option { return func(c *Cursor) { c.sleep = s } }

// WithLogger sets the logger; the default is the playback component logger.
func WithLogger(l *slog.Logger) Option { return func(c *Cursor) { c.log = l } }

// State is a point-in-time copy of the cursor.
type State struct {
	Line      int
	Operate   int
	Current   script.Operate
	Summary   Summary
	IsOn      bool
	Recording bool
	AutoClick bool
	IsStart   bool
	IsEnd     bool
}

// Cursor walks one Script. It never mutates the script.
type Cursor struct {
	script  *script.Script
	clicker Clicker
	log     *slog.Logger
	now     func() time.Time
	sleep   Sleeper

	// opMu serializes commands, including the auto-click loop's steps.
	opMu sync.Mutex

	// mu guards the fields below for Snapshot readers. Writers also hold opMu.
	mu        sync.RWMutex
	line      int
	op        int
	isOn      bool
	recording bool
	autoClick bool
	autoSpeed bool
	summary   Summary

	rec recordState

	subMu   sync.Mutex
	subs    map[int]func(State)
	nextSub int

	// startMu makes cancel-then-register in StartAutoClick and StopAutoClick one step.
	startMu    sync.Mutex
	loopMu     sync.Mutex
	loopCancel context.CancelFunc
	loopDone   chan struct{}
}

// NewCursor positions a cursor at the first operate of s. A nil clicker drops taps.
func NewCursor(s *script.Script, clicker Clicker, opts ...Option) *Cursor {
	c := &Cursor{
		script:  s,
		clicker: clicker,
		now:     time.Now,
		sleep:   sleepCtx,
		subs:    map[int]func(State){},
	}
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		c.log = applog.WithComponent("playback")
	}
	c.summary = c.buildSummary()
	return c
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Script returns the script the cursor walks.
func (c *Cursor) Script() *script.Script { return c.script }

// Snapshot returns the current state.
func (c *Cursor) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stateLocked()
}

func (c *Cursor) stateLocked() State {
	return State{
		Line:      c.line,
		Operate:   c.op,
		Current:   c.script.Lines[c.line][c.op],
		Summary:   c.summary,
		IsOn:      c.isOn,
		Recording: c.recording,
		AutoClick: c.autoClick,
		IsStart:   c.isStart(),
		IsEnd:     c.isEnd(),
	}
}

// Subscribe registers fn for every state change. The returned func removes it.
func (c *Cursor) Subscribe(fn func(State)) (cancel func()) {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()
	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

// update applies fn under the state lock and notifies subscribers.
func (c *Cursor) update(fn func()) {
	c.mu.Lock()
	fn()
	st := c.stateLocked()
	c.mu.Unlock()

	c.subMu.Lock()
	fns := make([]func(State), 0, len(c.subs))
	for _, f := range c.subs {
		fns = append(fns, f)
	}
	c.subMu.Unlock()
	for _, f := range fns {
		f(st)
	}
}

// The helpers below read fields without mu; callers hold opMu, which excludes other writers.

func (c *Cursor) current() script.Operate { return c.script.Lines[c.line][c.op] }
func (c *Cursor) currentLine() []script.Operate { return c.script.Lines[c.line] }
func (c *Cursor) isFirstLine() bool { return c.line <= 0 }
func (c *Cursor) isLastLine() bool { return c.line >= len(c.script.Lines)-1 }
func (c *Cursor) isStart() bool { return c.line <= 0 && c.op <= 0 }
func (c *Cursor) isEnd() bool {
	return c.isLastLine() && c.op >= len(c.currentLine())-1
}

func (c *Cursor) tap(p settings.Position, startTimeMs int64) {
	if c.clicker == nil {
		return
	}
	c.clicker.PerformClick(p.X, p.Y, startTimeMs)
}

// moveTo sets the position, clears isOn and refreshes the summary.
func (c *Cursor) moveTo(line, op int) {
	c.update(func() {
		c.line, c.op = line, op
		c.isOn = false
		c.summary = c.buildSummary()
	})
}

// NextOperate advances one operate, crossing into the next line. No-op at the end.
func (c *Cursor) NextOperate() {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.nextOperate()
}

func (c *Cursor) nextOperate() bool {
	if c.isEnd() {
		return false
	}
	if c.op+1 < len(c.currentLine()) {
		c.moveTo(c.line, c.op+1)
	} else {
		c.moveTo(c.line+1, 0)
	}
	c.log.Debug("next operate", slog.Int("line", c.line), slog.Int("op", c.op))
	return true
}

// PrevOperate steps back one operate, into the previous line's last operate. No-op at the start.
func (c *Cursor) PrevOperate() {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	if c.isStart() {
		return
	}
	if c.op > 0 {
		c.moveTo(c.line, c.op-1)
	} else {
		prev := c.line - 1
		c.moveTo(prev, len(c.script.Lines[prev])-1)
	}
}

// NextLine jumps to the first operate of the next line. No-op on the last line.
func (c *Cursor) NextLine() {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	if c.isLastLine() {
		return
	}
	c.moveTo(c.line+1, 0)
}

// PrevLine jumps to the first operate of the previous line. No-op on the first line.
func (c *Cursor) PrevLine() {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	if c.isFirstLine() {
		return
	}
	c.moveTo(c.line-1, 0)
}

// Restart returns to the first operate and clears a pending first phase.
func (c *Cursor) Restart() {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	if c.isStart() && !c.isOn {
		return
	}
	c.moveTo(0, 0)
}

// ClickSpeed taps the speed toggle once.
func (c *Cursor) ClickSpeed(s settings.Settings) {
	c.tap(s.SpeedPosition, 0)
}

// ClickMenu taps the menu slot once.
func (c *Cursor) ClickMenu(s settings.Settings) {
	c.tap(s.MenuPosition, 0)
}
