/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"errors"

	"gopcrclicker/internal/timecode"
)

var (
	ErrCompensationRange = errors.New("compensation seconds must be between 0 and 90")
	ErrCompensationEmpty = errors.New("compensation leaves no operates")
)

// ToCompensation returns a new script for joining a phase with sec seconds left. Every operate
// moves earlier by 90-sec; a line ends at its first operate that would go negative, and the
// script ends at the first line left empty. s is not modified.
func (s *Script) ToCompensation(sec int) (*Script, error) {
	if sec < 0 || sec > timecode.PhaseSeconds {
		return nil, ErrCompensationRange
	}
	diff := timecode.PhaseSeconds - sec
	var lines [][]Operate
	for _, l := range s.Lines {
		var ops []Operate
		for _, op := range l {
			shifted := op.Sec() - diff
			if shifted < 0 {
				break
			}
			ops = append(ops, op.WithSec(shifted))
		}
		if len(ops) == 0 {
			break
		}
		lines = append(lines, ops)
	}
	if len(lines) == 0 {
		return nil, ErrCompensationEmpty
	}
	team := make([]Chara, len(s.Team))
	copy(team, s.Team)
	return &Script{Team: team, Lines: lines, StartSec: sec}, nil
}
