/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package script parses and renders the timing-track language: a roster line followed by
// countdown-keyed lines of tap and checkpoint tokens.
package script

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopcrclicker/internal/timecode"
)

const (
	msgEmptyFile      = "file cannot be empty"
	msgTeamRequired   = "line 1 must define the team, e.g. 1=A 2=B 3=C"
	msgCharaFormat    = "character definition format: 1=name"
	msgCharaNumNaN    = "the value before = must be a number"
	msgCharaNumRange  = "the number before = must be between 1 and 5"
	msgCharaNameEmpty = "the character name after = cannot be empty"
	msgEmptyTrack     = "track cannot be empty, e.g. 121 A B C(113) autoB(59) BOSSUB(57)"
)

var (
	delayPattern   = regexp.MustCompile(`^(\S+)\[(\d+),(\d+)]$`)
	nameSecPattern = regexp.MustCompile(`^(\S+)\((\d+)\)$`)
)

// NormalizeRawSeconds validates a raw time value and reports failures against lineNum.
func NormalizeRawSeconds(raw, lineNum int) (int, error) {
	sec, err := timecode.Normalize(raw)
	if err != nil {
		return 0, &SyntaxError{LineNum: lineNum, Message: err.Error()}
	}
	return sec, nil
}

// ParseTimeToken reads a leading or suffix time token. ok is false when tok is not a time.
func ParseTimeToken(tok string, lineNum int) (sec int, ok bool, err error) {
	sec, ok, err = timecode.ParseToken(tok)
	if err != nil {
		return 0, true, &SyntaxError{LineNum: lineNum, Message: err.Error()}
	}
	return sec, ok, nil
}

// ParseText splits text on newlines and parses it. Carriage returns are dropped.
func ParseText(text string) (*Script, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if text == "" {
		return Parse(nil)
	}
	return Parse(strings.Split(text, "\n"))
}

// Parse builds a Script from raw text lines. Any failure is a *SyntaxError.
func Parse(lines []string) (*Script, error) {
	if len(lines) == 0 {
		return nil, &SyntaxError{LineNum: 1, Message: msgEmptyFile}
	}
	team, err := parseTeam(lines[0])
	if err != nil {
		return nil, err
	}

	var out [][]Operate
	countdown := timecode.PhaseSeconds
	for i := 1; i < len(lines); i++ {
		fields := strings.Fields(lines[i])
		if len(fields) == 0 {
			continue
		}
		lineNum := i + 1
		var ops []Operate

		sec, isTime, err := ParseTimeToken(fields[0], lineNum)
		if err != nil {
			return nil, err
		}
		if isTime {
			if sec > countdown {
				return nil, exceedsErr(lineNum, countdown)
			}
			countdown = sec
		} else {
			op, err := parseOperate(fields[0], lineNum, &countdown, team)
			if err != nil {
				return nil, err
			}
			ops = append(ops, op)
		}
		for _, tok := range fields[1:] {
			op, err := parseOperate(tok, lineNum, &countdown, team)
			if err != nil {
				return nil, err
			}
			ops = append(ops, op)
		}
		if len(ops) > 0 {
			out = append(out, ops)
		}
	}
	if len(out) == 0 {
		return nil, &SyntaxError{LineNum: 2, Message: msgEmptyTrack}
	}

	sort.SliceStable(team, func(a, b int) bool { return team[a].Num > team[b].Num })
	return &Script{Team: team, Lines: out, StartSec: timecode.PhaseSeconds}, nil
}

// LineNum extracts the failing line from a parse error, or 0.
func LineNum(err error) int {
	var se *SyntaxError
	if errors.As(err, &se) {
		return se.LineNum
	}
	return 0
}

func parseTeam(line string) ([]Chara, error) {
	fail := func(msg string) error { return &SyntaxError{LineNum: 1, Message: msg} }

	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil, fail(msgTeamRequired)
	}
	team := make([]Chara, 0, len(parts))
	for _, part := range parts {
		def := strings.Split(part, "=")
		if len(def) < 2 {
			return nil, fail(msgCharaFormat)
		}
		num, err := strconv.Atoi(def[0])
		if err != nil {
			return nil, fail(msgCharaNumNaN)
		}
		if num < 1 || num > 5 {
			return nil, fail(msgCharaNumRange)
		}
		name := def[1]
		if name == "" {
			return nil, fail(msgCharaNameEmpty)
		}
		if _, dup := findNum(team, num); dup {
			return nil, fail(fmt.Sprintf("duplicate character number: %d", num))
		}
		if _, dup := findName(team, name); dup {
			return nil, fail(fmt.Sprintf("duplicate character name: %s", name))
		}
		team = append(team, Chara{Num: num, Name: name})
	}
	return team, nil
}

// parseOperate classifies one token. countdown is shared across the line and may be lowered
// by a "(sec)" suffix.
func parseOperate(tok string, lineNum int, countdown *int, team []Chara) (Operate, error) {
	switch {
	case tok == "menu":
		return Click{Seconds: *countdown, Type: Menu}, nil
	case strings.HasPrefix(tok, "record"):
		return Record{Seconds: *countdown, Msg: tok[len("record"):]}, nil
	case strings.HasPrefix(tok, "start"):
		return Start{Seconds: *countdown, Msg: tok[len("start"):]}, nil
	case strings.HasPrefix(tok, "stop"):
		return Stop{Seconds: *countdown, Msg: tok[len("stop"):]}, nil
	}

	text := tok
	isAuto := strings.HasPrefix(text, "auto")
	if isAuto {
		text = text[len("auto"):]
	}

	var delayOn, delayOff *int
	if m := delayPattern.FindStringSubmatch(text); m != nil {
		if on, err := strconv.Atoi(m[2]); err == nil {
			delayOn = &on
		}
		if off, err := strconv.Atoi(m[3]); err == nil {
			delayOff = &off
		}
		text = m[1]
	}

	if m := nameSecPattern.FindStringSubmatch(text); m != nil {
		sec, ok, err := ParseTimeToken(m[2], lineNum)
		if err != nil {
			return nil, err
		}
		if ok {
			if sec > *countdown {
				return nil, exceedsErr(lineNum, *countdown)
			}
			*countdown = sec
			text = m[1]
		}
	}

	if c, ok := findName(team, text); ok {
		typ := SetType(c.Num)
		if isAuto {
			typ = AutoType(c.Num)
		}
		return Click{Seconds: *countdown, Type: typ, DelayOn: delayOn, DelayOff: delayOff}, nil
	}
	return Confirm{Seconds: *countdown, Msg: text}, nil
}

func exceedsErr(lineNum, countdown int) error {
	return &SyntaxError{LineNum: lineNum, Message: fmt.Sprintf("seconds cannot exceed the previous seconds (%d)", countdown)}
}
