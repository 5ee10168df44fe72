/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package playback

import (
	"strings"

	"gopcrclicker/internal/timecode"
)

// Summary is the three-part "what happened / now / next" display.
//
// Prev holds the previous line (or the start marker) and, on a second row, the current
// line's time code plus the operates before the cursor. Current is the current operate.
// Next holds the operates after the cursor and, on a second row, the next line (or the
// end marker).
type Summary struct {
	Prev    string
	Current string
	Next    string
}

// Strings returns the three parts in display order.
func (s Summary) Strings() [3]string { return [3]string{s.Prev, s.Current, s.Next} }

// Summary returns the current summary.
func (c *Cursor) Summary() Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.summary
}

func (c *Cursor) buildSummary() Summary {
	team := c.script.Team
	line := c.currentLine()

	var prev strings.Builder
	if c.isFirstLine() {
		prev.WriteString(timecode.Colon(c.script.StartSec))
		prev.WriteString(" begin")
	} else {
		pl := c.script.Lines[c.line-1]
		prev.WriteString(timecode.Colon(pl[0].Sec()))
		for _, op := range pl {
			prev.WriteByte(' ')
			prev.WriteString(op.Text(team))
		}
	}
	prev.WriteByte('\n')
	prev.WriteString(timecode.Colon(line[0].Sec()))
	prev.WriteByte(' ')
	for _, op := range line[:c.op] {
		prev.WriteString(op.Text(team))
		prev.WriteByte(' ')
	}

	var next strings.Builder
	for _, op := range line[c.op+1:] {
		next.WriteByte(' ')
		next.WriteString(op.Text(team))
	}
	next.WriteByte('\n')
	if c.isLastLine() {
		next.WriteString("0 end")
	} else {
		nl := c.script.Lines[c.line+1]
		next.WriteString(timecode.Colon(nl[0].Sec()))
		for _, op := range nl {
			next.WriteByte(' ')
			next.WriteString(op.Text(team))
		}
	}

	return Summary{
		Prev:    prev.String(),
		Current: c.current().Text(team),
		Next:    next.String(),
	}
}
