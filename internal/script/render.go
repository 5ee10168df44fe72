/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"regexp"
	"strconv"
	"strings"

	"gopcrclicker/internal/timecode"
)

// confirmSuffix matches confirm text that the parser would otherwise read as an annotation.
var confirmSuffix = regexp.MustCompile(`(\(\d+\)|\[\d+,\d+])$`)

// confirmText escapes free text so it parses back as a Confirm. The parser strips a single
// "auto" before falling back to a Confirm, so keyword-like text gets one.
func confirmText(msg string) string {
	if msg == "" || msg == "menu" {
		return "auto" + msg
	}
	for _, kw := range []string{"auto", "record", "start", "stop"} {
		if strings.HasPrefix(msg, kw) {
			return "auto" + msg
		}
	}
	return msg
}

// RenderOperate renders one token. A "(sec)" annotation is written only when op's seconds
// differ from *countdown, which is then updated. Confirm text ending in something that looks
// like an annotation always gets one.
func RenderOperate(op Operate, team []Chara, countdown *int) string {
	var b strings.Builder
	forceSec := false
	if c, ok := op.(Confirm); ok {
		b.WriteString(confirmText(c.Msg))
		forceSec = confirmSuffix.MatchString(c.Msg)
	} else {
		b.WriteString(op.Text(team))
	}
	if forceSec || op.Sec() != *countdown {
		b.WriteByte('(')
		b.WriteString(timecode.Plain(op.Sec()))
		b.WriteByte(')')
		*countdown = op.Sec()
	}
	if c, ok := op.(Click); ok && c.HasDelays() {
		b.WriteByte('[')
		b.WriteString(strconv.Itoa(*c.DelayOn))
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(*c.DelayOff))
		b.WriteByte(']')
	}
	return b.String()
}

// RenderLine renders a line with its leading time code, e.g. "120 A B(75)[40,120]".
func RenderLine(ops []Operate, team []Chara) string {
	if len(ops) == 0 {
		return ""
	}
	countdown := ops[0].Sec()
	var b strings.Builder
	b.WriteString(timecode.Plain(countdown))
	for _, op := range ops {
		b.WriteByte(' ')
		b.WriteString(RenderOperate(op, team, &countdown))
	}
	return b.String()
}

// Render returns the whole script as text that parses back to an equal script.
func (s *Script) Render() string {
	var b strings.Builder
	b.WriteString(s.TeamLine())
	for _, l := range s.Lines {
		b.WriteByte('\n')
		b.WriteString(RenderLine(l, s.Team))
	}
	return b.String()
}

// LineText is the display form of a line: colon time followed by each operate's text.
func LineText(ops []Operate, team []Chara) string {
	if len(ops) == 0 {
		return ""
	}
	parts := make([]string, 0, len(ops)+1)
	parts = append(parts, timecode.Colon(ops[0].Sec()))
	for _, op := range ops {
		parts = append(parts, op.Text(team))
	}
	return strings.Join(parts, " ")
}
