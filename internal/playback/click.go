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

	"gopcrclicker/internal/script"
	"gopcrclicker/internal/settings"
)

// speedToggleDelayMs delays the speed tap so it lands after the preceding slot tap.
const speedToggleDelayMs = 60

// HandleClickOperate runs one phase of the two-phase click protocol on the current operate.
// A Click taps its slot on both phases. The first phase marks the operate as on; the second
// advances. While recording, observed delays are written to the transcript and save receives
// it when the recording stops; a nil save keeps the one given to StartRecord.
func (c *Cursor) HandleClickOperate(ctx context.Context, s settings.Settings, save SaveFunc) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	if save != nil && c.recording {
		c.rec.save = save
	}
	c.handleClick(ctx, s)
}

func (c *Cursor) handleClick(ctx context.Context, s settings.Settings) {
	op := c.current()
	click, isClick := op.(script.Click)
	if isClick {
		c.tap(click.Type.Position(s), 0)
	}

	if c.recording {
		if isClick {
			now := c.now()
			diff := int(now.Sub(c.rec.lastClick).Milliseconds())
			c.rec.lastClick = now
			if c.isOn {
				c.rec.delayOff = diff
			} else {
				c.rec.delayOn = diff
				if !c.autoSpeed {
					c.tap(s.SpeedPosition, speedToggleDelayMs)
					c.autoSpeed = true
				}
			}
		}
		if c.isOn {
			c.appendRecorded(op)
			if c.isEnd() {
				c.stopRecord(ctx, s, true)
			}
		}
	}

	if c.isOn {
		if !c.nextOperate() {
			c.update(func() { c.isOn = false })
		}
		if c.recording {
			c.requireStopRecord(ctx, s)
		}
		return
	}
	c.update(func() { c.isOn = true })
	c.log.Debug("first phase", slog.Int("line", c.line), slog.Int("op", c.op))
}
