/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package device implements the tap capability: an adb backed clicker for a connected
// Android device and a dry-run clicker that only logs.
package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	applog "gopcrclicker/internal/log"
)

// DefaultTapDuration is how long a tap holds the touch, in milliseconds.
const DefaultTapDuration = 50

const commandTimeout = 10 * time.Second

var serialPattern = regexp.MustCompile(`^[A-Za-z0-9._:\-]+$`)

var ErrInvalidSerial = errors.New("invalid device serial")

// ValidateSerial rejects serials that could smuggle shell syntax into adb arguments.
// An empty serial is allowed and means the only connected device.
func ValidateSerial(serial string) error {
	if serial == "" {
		return nil
	}
	if len(serial) > 256 || !serialPattern.MatchString(serial) {
		return fmt.Errorf("%w: %q", ErrInvalidSerial, serial)
	}
	return nil
}

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// ADB taps through "adb shell input swipe" with identical start and end points.
type ADB struct {
	Path     string
	Serial   string
	Duration int // ms

	run Runner
	log *slog.Logger
	wg  sync.WaitGroup
}

// NewADB returns an adb clicker. An empty path uses "adb" from PATH; a zero duration uses DefaultTapDuration.
func NewADB(path, serial string, durationMs int) (*ADB, error) {
	if err := ValidateSerial(serial); err != nil {
		return nil, err
	}
	if strings.TrimSpace(path) == "" {
		path = "adb"
	}
	if durationMs <= 0 {
		durationMs = DefaultTapDuration
	}
	return &ADB{
		Path:     path,
		Serial:   serial,
		Duration: durationMs,
		run:      execRunner,
		log:      applog.WithComponent("device"),
	}, nil
}

// WithRunner replaces command execution.
func (a *ADB) WithRunner(r Runner) *ADB {
	a.run = r
	return a
}

// Args builds the adb arguments for a tap at (x, y).
func (a *ADB) Args(x, y int) []string {
	var args []string
	if a.Serial != "" {
		args = append(args, "-s", a.Serial)
	}
	xs, ys := strconv.Itoa(x), strconv.Itoa(y)
	return append(args, "shell", "input", "swipe", xs, ys, xs, ys, strconv.Itoa(a.Duration))
}

// PerformClick taps (x, y) after startTimeMs. It returns at once; failures are logged.
func (a *ADB) PerformClick(x, y int, startTimeMs int64) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if startTimeMs > 0 {
			time.Sleep(time.Duration(startTimeMs) * time.Millisecond)
		}
		if err := a.Tap(context.Background(), x, y); err != nil {
			a.log.Warn("tap failed", slog.Int("x", x), slog.Int("y", y), slog.Any("err", err))
		}
	}()
}

// Tap runs one tap synchronously.
func (a *ADB) Tap(ctx context.Context, x, y int) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	out, err := a.run(ctx, a.Path, a.Args(x, y)...)
	if err != nil {
		return fmt.Errorf("adb tap %d,%d: %w, output: %s", x, y, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Wait blocks until every pending tap has finished.
func (a *ADB) Wait() { a.wg.Wait() }

// Devices lists the serials reported by "adb devices" in the device state.
func (a *ADB) Devices(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	out, err := a.run(ctx, a.Path, "devices")
	if err != nil {
		return nil, fmt.Errorf("adb devices: %w", err)
	}
	return parseDevices(string(out)), nil
}

func parseDevices(out string) []string {
	var serials []string
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == "device" {
			serials = append(serials, fields[0])
		}
	}
	return serials
}
