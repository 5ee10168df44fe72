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
	"log/slog"
	"time"

	"gopcrclicker/internal/script"
	"gopcrclicker/internal/settings"
)

// StartAutoClick advances past the current Start operate, taps the blank slot to leave the
// pause screen and runs the auto-click loop in the background. Any loop already running is
// stopped first. The loop ends at a Stop operate, at the end of the script, or through
// StopAutoClick or ctx cancellation; on exit it releases speed and taps menu.
func (c *Cursor) StartAutoClick(ctx context.Context, s settings.Settings) {
	c.startMu.Lock()
	defer c.startMu.Unlock()
	c.cancelLoop()

	c.opMu.Lock()
	c.autoSpeed = false
	c.update(func() { c.autoClick = true })
	c.nextOperate()
	c.tap(s.BlankPosition, 0)
	c.opMu.Unlock()

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.loopMu.Lock()
	c.loopCancel, c.loopDone = cancel, done
	c.loopMu.Unlock()

	c.log.Info("auto click started", slog.Int("line", c.Snapshot().Line))
	go c.autoLoop(loopCtx, s, done)
}

// StopAutoClick cancels a running loop and waits for its teardown. When no loop runs it
// steps past the current operate instead.
func (c *Cursor) StopAutoClick(ctx context.Context, s settings.Settings) {
	c.startMu.Lock()
	defer c.startMu.Unlock()
	if c.cancelLoop() {
		return
	}
	c.NextOperate()
}

// WaitAutoClick blocks until the running loop, if any, has exited.
func (c *Cursor) WaitAutoClick() {
	c.loopMu.Lock()
	done := c.loopDone
	c.loopMu.Unlock()
	if done != nil {
		<-done
	}
}

func (c *Cursor) cancelLoop() bool {
	c.loopMu.Lock()
	cancel, done := c.loopCancel, c.loopDone
	c.loopCancel, c.loopDone = nil, nil
	c.loopMu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	<-done
	return true
}

func (c *Cursor) autoLoop(ctx context.Context, s settings.Settings, done chan struct{}) {
	defer func() {
		c.opMu.Lock()
		c.speedOff(ctx, s)
		c.tap(s.MenuPosition, 0)
		c.update(func() { c.autoClick = false })
		c.opMu.Unlock()

		c.loopMu.Lock()
		if c.loopDone == done {
			c.loopCancel, c.loopDone = nil, nil
		}
		c.loopMu.Unlock()
		c.log.Info("auto click stopped", slog.Int("line", c.Snapshot().Line))
		close(done)
	}()

	for ctx.Err() == nil {
		if !c.autoStep(ctx, s) {
			return
		}
	}
}

// autoStep handles the current operate and reports whether the loop continues.
func (c *Cursor) autoStep(ctx context.Context, s settings.Settings) bool {
	c.opMu.Lock()
	op := c.current()
	switch o := op.(type) {
	case script.Stop:
		c.opMu.Unlock()
		return false
	case script.Click:
		wait := time.Duration(o.Delay(c.isOn)) * time.Millisecond
		c.opMu.Unlock()
		if err := c.sleep(ctx, wait); err != nil {
			return false
		}

		c.opMu.Lock()
		defer c.opMu.Unlock()
		if ctx.Err() != nil {
			return false
		}
		finishing := c.isOn && c.isEnd()
		c.handleClick(ctx, s)
		if !c.autoSpeed {
			c.tap(s.SpeedPosition, speedToggleDelayMs)
			c.autoSpeed = true
		}
		return !finishing
	default:
		defer c.opMu.Unlock()
		return c.nextOperate()
	}
}
