/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"fmt"
	"strconv"

	"gopcrclicker/internal/settings"
)

// Chara is one roster member declared on line 1 as "<num>=<name>".
type Chara struct {
	Num  int
	Name string
}

// ClickType names the tap target of a Click operate.
type ClickType int

const (
	Set1 ClickType = iota
	Set2
	Set3
	Set4
	Set5
	Auto1
	Auto2
	Auto3
	Auto4
	Auto5
	Menu
)

// SetType returns the ultimate slot type for character number n.
func SetType(n int) ClickType {
	if n < 1 || n > 5 {
		return Set5
	}
	return Set1 + ClickType(n-1)
}

// AutoType returns the auto-toggle type for character number n.
func AutoType(n int) ClickType {
	if n < 1 || n > 5 {
		return Auto5
	}
	return Auto1 + ClickType(n-1)
}

// CharaNum is the roster number referenced by the type, or 0 for Menu.
func (t ClickType) CharaNum() int {
	switch {
	case t >= Set1 && t <= Set5:
		return int(t-Set1) + 1
	case t >= Auto1 && t <= Auto5:
		return int(t-Auto1) + 1
	default:
		return 0
	}
}

// IsAuto reports whether the type toggles auto for a character.
func (t ClickType) IsAuto() bool { return t >= Auto1 && t <= Auto5 }

// Position resolves the tap slot for the type.
func (t ClickType) Position(s settings.Settings) settings.Position {
	switch {
	case t == Menu:
		return s.MenuPosition
	case t.IsAuto():
		return s.AutoPosition
	default:
		return s.UB(t.CharaNum())
	}
}

// Text is the display label: the character name, "auto"+name, or "menu".
func (t ClickType) Text(team []Chara) string {
	if t == Menu {
		return "menu"
	}
	name := "?"
	if c, ok := findNum(team, t.CharaNum()); ok {
		name = c.Name
	}
	if t.IsAuto() {
		return "auto" + name
	}
	return name
}

// Badge is the short category label shown next to the current operate.
func (t ClickType) Badge() string {
	switch {
	case t == Menu:
		return "MENU"
	case t.IsAuto():
		return "AUTO"
	default:
		return "SET"
	}
}

func (t ClickType) String() string {
	switch {
	case t == Menu:
		return "MENU"
	case t.IsAuto():
		return "AUTO" + strconv.Itoa(t.CharaNum())
	case t >= Set1 && t <= Set5:
		return "SET" + strconv.Itoa(t.CharaNum())
	default:
		return fmt.Sprintf("ClickType(%d)", int(t))
	}
}

// Operate is one scripted action at a countdown value. The concrete types are
// Click, Confirm, Record, Start and Stop.
type Operate interface {
	Sec() int
	Message() string
	// Text is the token the operate renders as, without time or delay suffixes.
	Text(team []Chara) string
	// WithSec returns a copy moved to another countdown value.
	WithSec(sec int) Operate
	operate()
}

// Click taps a slot. DelayOn/DelayOff are recorded milliseconds before the first and second phase.
type Click struct {
	Seconds  int
	Type     ClickType
	DelayOn  *int
	DelayOff *int
}

// Confirm is a manual checkpoint with free text, such as a boss ultimate callout.
type Confirm struct {
	Seconds int
	Msg     string
}

// Record begins recording a sub-script named Msg.
type Record struct {
	Seconds int
	Msg     string
}

// Start opens an auto-play segment.
type Start struct {
	Seconds int
	Msg     string
}

// Stop closes an auto-play segment.
type Stop struct {
	Seconds int
	Msg     string
}

func (o Click) Sec() int { return o.Seconds }
func (o Confirm) Sec() int { return o.Seconds }
func (o Record) Sec() int { return o.Seconds }
func (o Start) Sec() int { return o.Seconds }
func (o Stop) Sec() int { return o.Seconds }

func (o Click) Message() string { return "" }
func (o Confirm) Message() string { return o.Msg }
func (o Record) Message() string { return o.Msg }
func (o Start) Message() string { return o.Msg }
func (o Stop) Message() string { return o.Msg }

func (o Click) Text(team []Chara) string { return o.Type.Text(team) }
func (o Confirm) Text([]Chara) string { return o.Msg }
func (o Record) Text([]Chara) string { return "record" + o.Msg }
func (o Start) Text([]Chara) string { return "start" + o.Msg }
func (o Stop) Text([]Chara) string { return "stop" + o.Msg }

func (o Click) WithSec(sec int) Operate { o.Seconds = sec; return o }
func (o Confirm) WithSec(sec int) Operate { o.Seconds = sec; return o }
func (o Record) WithSec(sec int) Operate { o.Seconds = sec; return o }
func (o Start) WithSec(sec int) Operate { o.Seconds = sec; return o }
func (o Stop) WithSec(sec int) Operate { o.Seconds = sec; return o }

func (Click) operate() {}
func (Confirm) operate() {}
func (Record) operate() {}
func (Start) operate() {}
func (Stop) operate() {}

// HasDelays reports whether both recorded delays are present.
func (o Click) HasDelays() bool { return o.DelayOn != nil && o.DelayOff != nil }

// Delay returns the wait before the given phase; a missing value waits 0 ms.
func (o Click) Delay(on bool) int {
	p := o.DelayOn
	if on {
		p = o.DelayOff
	}
	if p == nil {
		return 0
	}
	return *p
}

// Equal compares two operates by value, including delay values.
func Equal(a, b Operate) bool {
	switch x := a.(type) {
	case Click:
		y, ok := b.(Click)
		return ok && x.Seconds == y.Seconds && x.Type == y.Type && intPtrEq(x.DelayOn, y.DelayOn) && intPtrEq(x.DelayOff, y.DelayOff)
	case Confirm, Record, Start, Stop:
		return a == b
	default:
		return false
	}
}

func intPtrEq(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Script is a parsed, immutable timing track.
type Script struct {
	Team     []Chara
	Lines    [][]Operate
	StartSec int
}

// OperateCount is the total number of operates over all lines.
func (s *Script) OperateCount() int {
	n := 0
	for _, l := range s.Lines {
		n += len(l)
	}
	return n
}

// TeamLine renders the roster line, e.g. "3=C 2=B 1=A".
func (s *Script) TeamLine() string {
	b := make([]byte, 0, 16*len(s.Team))
	for i, c := range s.Team {
		if i > 0 {
			b = append(b, ' ')
		}
		b = strconv.AppendInt(b, int64(c.Num), 10)
		b = append(b, '=')
		b = append(b, c.Name...)
	}
	return string(b)
}

func findNum(team []Chara, num int) (Chara, bool) {
	for _, c := range team {
		if c.Num == num {
			return c, true
		}
	}
	return Chara{}, false
}

func findName(team []Chara, name string) (Chara, bool) {
	for _, c := range team {
		if c.Name == name {
			return c, true
		}
	}
	return Chara{}, false
}

// SyntaxError reports a parse failure on a 1-based source line.
type SyntaxError struct {
	LineNum int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d error: %s", e.LineNum, e.Message)
}
