/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package timecode converts between countdown seconds and the two textual minute forms used by scripts.
//
// A phase lasts 90 seconds. Scripts may write 1:20 either as "1:20" or as the digit run "120"; both
// normalize to 80 seconds remaining.
package timecode

import (
	"errors"
	"strconv"
	"strings"
)

// PhaseSeconds is the length of a battle phase and the highest valid countdown value.
const PhaseSeconds = 90

var (
	ErrNegative = errors.New("seconds cannot be negative")
	ErrTooLarge = errors.New("seconds cannot exceed 90")
)

// Normalize maps a raw value in [0,90] or [100,130] to countdown seconds.
// Values of 100 and above encode "1SS" and become raw-40.
func Normalize(raw int) (int, error) {
	if raw < 0 {
		return 0, ErrNegative
	}
	if raw > 130 || (raw > PhaseSeconds && raw < 100) {
		return 0, ErrTooLarge
	}
	if raw >= 100 {
		return raw - 40, nil
	}
	return raw, nil
}

// ParseToken reads a time token: a plain integer ("85", "120") or "M:SS" ("1:20").
// ok is false when the token is not a time at all; err is set when it is a time out of range.
func ParseToken(tok string) (sec int, ok bool, err error) {
	if n, convErr := strconv.Atoi(tok); convErr == nil {
		sec, err = Normalize(n)
		return sec, true, err
	}
	if !strings.Contains(tok, ":") {
		return 0, false, nil
	}
	parts := strings.Split(tok, ":")
	if len(parts) != 2 {
		return 0, false, nil
	}
	for _, p := range parts {
		if _, convErr := strconv.Atoi(p); convErr != nil {
			return 0, false, nil
		}
	}
	return ParseToken(parts[0] + parts[1])
}

// Colon renders seconds for display: 65 -> "1:05", 42 -> "42".
func Colon(sec int) string {
	return format(sec, ":")
}

// Plain renders seconds in the script's digit form: 65 -> "105", 42 -> "42".
func Plain(sec int) string {
	return format(sec, "")
}

func format(sec int, sep string) string {
	if sec <= 59 {
		return strconv.Itoa(sec)
	}
	rest := sec - 60
	pad := ""
	if rest <= 9 {
		pad = "0"
	}
	return "1" + sep + pad + strconv.Itoa(rest)
}
