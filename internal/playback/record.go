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
	"strconv"
	"strings"
	"time"

	"gopcrclicker/internal/script"
	"gopcrclicker/internal/settings"
	"gopcrclicker/internal/timecode"
)

// settleDelay separates the speed-off tap from neighbouring taps.
const settleDelay = 60 * time.Millisecond

// bossUltimateKeywords mark Confirm checkpoints that do not end a recording.
var bossUltimateKeywords = map[string]bool{
	"boss大招": true,
	"bossub": true,
	"bub":    true,
}

type recordState struct {
	buf       strings.Builder
	message   string
	lastClick time.Time
	delayOn   int
	delayOff  int
	save      SaveFunc
}

func (r *recordState) reset() {
	r.buf.Reset()
	r.message = ""
	r.delayOn, r.delayOff = 0, 0
	r.save = nil
}

// IsBossUltimate reports whether op is a boss ultimate checkpoint.
func IsBossUltimate(op script.Operate) bool {
	cf, ok := op.(script.Confirm)
	return ok && bossUltimateKeywords[strings.ToLower(cf.Msg)]
}

// StartRecord begins a transcript at the current operate. The transcript opens with the
// roster and every line before the cursor, marks the segment with "start<message>", and
// records delays for the following Click operates until a non-Click or menu operate is
// reached (boss ultimate checkpoints excepted) or StopRecord is called.
func (c *Cursor) StartRecord(ctx context.Context, s settings.Settings, save SaveFunc) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	if c.recording {
		return
	}
	c.autoSpeed = false
	c.rec.reset()
	c.rec.save = save

	cur := c.current()
	c.rec.message = cur.Message()
	b := &c.rec.buf
	b.WriteString(c.script.TeamLine())
	b.WriteByte('\n')
	for _, l := range c.script.Lines[:c.line] {
		b.WriteString(script.RenderLine(l, c.script.Team))
		b.WriteByte('\n')
	}
	if c.op > 0 {
		b.WriteString(script.RenderLine(c.currentLine()[:c.op], c.script.Team))
	} else {
		b.WriteString(timecode.Plain(cur.Sec()))
	}
	b.WriteString(" start")
	b.WriteString(c.rec.message)

	c.update(func() { c.recording = true })
	c.log.Info("record started", slog.String("message", c.rec.message), slog.Int("line", c.line))

	c.nextOperate()
	if !c.requireStopRecord(ctx, s) {
		c.tap(s.BlankPosition, 0)
		c.rec.lastClick = c.now()
	}
}

// StopRecord ends the recording, appends the unplayed remainder verbatim and hands the
// transcript to the save function. No-op when not recording.
func (c *Cursor) StopRecord(ctx context.Context, s settings.Settings) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	if !c.recording {
		return
	}
	c.stopRecord(ctx, s, false)
}

// PendingRecord returns the transcript recorded so far, if a recording is active.
func (c *Cursor) PendingRecord() (string, bool) {
	c.mu.RLock()
	recording := c.recording
	c.mu.RUnlock()
	if !recording {
		return "", false
	}
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.rec.buf.String(), c.recording
}

// appendRecorded writes op as played, with its observed delays when it is a Click.
func (c *Cursor) appendRecorded(op script.Operate) {
	b := &c.rec.buf
	if c.op == 0 {
		b.WriteByte('\n')
		b.WriteString(timecode.Plain(op.Sec()))
		b.WriteByte(' ')
		b.WriteString(op.Text(c.script.Team))
	} else {
		b.WriteByte(' ')
		b.WriteString(op.Text(c.script.Team))
		if op.Sec() != c.currentLine()[c.op-1].Sec() {
			b.WriteByte('(')
			b.WriteString(timecode.Plain(op.Sec()))
			b.WriteByte(')')
		}
	}
	if _, ok := op.(script.Click); ok {
		b.WriteByte('[')
		b.WriteString(strconv.Itoa(c.rec.delayOn))
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(c.rec.delayOff))
		b.WriteByte(']')
		c.rec.delayOn, c.rec.delayOff = 0, 0
	}
}

// requireStopRecord stops the recording when the current operate cannot be recorded.
func (c *Cursor) requireStopRecord(ctx context.Context, s settings.Settings) bool {
	if !c.recording {
		return true
	}
	op := c.current()
	stop := false
	if cl, ok := op.(script.Click); !ok || cl.Type == script.Menu {
		stop = true
	}
	if IsBossUltimate(op) {
		stop = false
	}
	if stop {
		c.stopRecord(ctx, s, false)
	}
	return stop
}

// stopRecord finalizes the transcript. consumed is true when the current operate has
// already been written by appendRecorded.
func (c *Cursor) stopRecord(ctx context.Context, s settings.Settings, consumed bool) {
	c.speedOff(ctx, s)
	c.tap(s.MenuPosition, 0)
	c.update(func() { c.recording = false })

	b := &c.rec.buf
	line := c.currentLine()
	from := c.op
	var countdown int
	switch {
	case consumed:
		countdown = line[c.op].Sec()
		from = c.op + 1
	case c.op <= 0:
		countdown = line[0].Sec()
		b.WriteByte('\n')
		b.WriteString(timecode.Plain(countdown))
	default:
		countdown = line[c.op-1].Sec()
	}
	b.WriteString(" stop")
	b.WriteString(c.rec.message)
	for _, op := range line[from:] {
		b.WriteByte(' ')
		b.WriteString(script.RenderOperate(op, c.script.Team, &countdown))
	}
	for _, l := range c.script.Lines[c.line+1:] {
		b.WriteByte('\n')
		b.WriteString(script.RenderLine(l, c.script.Team))
	}

	content := b.String()
	save := c.rec.save
	c.log.Info("record stopped", slog.String("message", c.rec.message), slog.Int("bytes", len(content)))
	c.rec.reset()
	if save != nil {
		save(content)
	}
}

// speedOff releases the speed toggle if this cursor pressed it. Settle waits ignore ctx
// cancellation.
func (c *Cursor) speedOff(ctx context.Context, s settings.Settings) {
	if !c.autoSpeed {
		return
	}
	ctx = context.WithoutCancel(ctx)
	_ = c.sleep(ctx, settleDelay)
	c.tap(s.SpeedPosition, 0)
	c.autoSpeed = false
	_ = c.sleep(ctx, settleDelay)
}
