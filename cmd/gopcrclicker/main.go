/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"gopcrclicker/internal/config"
	"gopcrclicker/internal/crash"
	applog "gopcrclicker/internal/log"
	"gopcrclicker/internal/telemetry"
	"gopcrclicker/internal/version"
)

func usage() {
	fmt.Println("GoPCRClicker: timeline scripts for Princess Connect! Re:Dive clan battles")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  gopcrclicker version                           Show version")
	fmt.Println("  gopcrclicker check <file>                      Validate a script")
	fmt.Println("  gopcrclicker render <file>                     Print the canonical form of a script")
	fmt.Println("  gopcrclicker compensate <file> <sec>           Shift a script to compensation time")
	fmt.Println("  gopcrclicker summary <file>                    Print team, lines and operates")
	fmt.Println("  gopcrclicker play [--dry-run] [--from <sec>] <file>")
	fmt.Println("                                                 Open the operator panel, optionally compensated")
	fmt.Println("  gopcrclicker devices                           List adb devices")
	fmt.Println("  gopcrclicker save <file> [name]                Copy a script into the library")
	fmt.Println("  gopcrclicker scripts                           List library scripts")
	fmt.Println("  gopcrclicker recent                            List recent files")
	fmt.Println("  gopcrclicker records                           List saved record transcripts")
	fmt.Println("  gopcrclicker search [--script name] <term>     Search library scripts")
	fmt.Println("  gopcrclicker settings import <json>|export     Tap positions in the Android app format")
	fmt.Println("  gopcrclicker export-pdf <file> <out>           Write a printable timeline sheet")
	fmt.Println("  gopcrclicker serve                             Run the shared script library server")
	fmt.Println("  gopcrclicker share list|fetch <id>|publish <file>|search <term>")
	fmt.Println("  gopcrclicker login <token>|--request <name>    Store the shared library token")
	fmt.Println("  gopcrclicker logout                            Remove the stored token")
}

func main() {
	// .env values never override variables already set in the environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "warning: .env:", err)
	}

	cfg, token, cfgErr := config.Load()
	logOpts := applog.FromEnvOver(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	applog.Init(logOpts)
	l := applog.WithComponent("cli")
	if cfgErr != nil {
		l.Warn("config load failed; using defaults", slog.Any("err", cfgErr))
	}

	tcfg := telemetry.FromEnv()
	tcfg.OptIn = tcfg.OptIn || cfg.General.TelemetryOptIn
	telemetry.SetDefault(tcfg)

	sess := &crash.Session{}
	defer crash.Recover(sess)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	args := os.Args[1:]
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) == 0 {
		usage()
		return
	}

	a := newApp(cfg, token, os.Stdout, sess)
	a.logOpts = logOpts
	err := a.run(ctx, args)
	a.close()
	telemetry.Default().Flush(context.Background())
	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, "Error:", err)
		usage()
		os.Exit(2)
	default:
		l.Error("command failed", slog.String("cmd", args[0]), slog.Any("err", err))
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
