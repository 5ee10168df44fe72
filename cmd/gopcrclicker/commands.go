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
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"gopcrclicker/internal/backend"
	"gopcrclicker/internal/config"
	"gopcrclicker/internal/crash"
	"gopcrclicker/internal/device"
	"gopcrclicker/internal/export"
	applog "gopcrclicker/internal/log"
	"gopcrclicker/internal/panel"
	"gopcrclicker/internal/playback"
	"gopcrclicker/internal/script"
	"gopcrclicker/internal/settings"
	"gopcrclicker/internal/storage"
	"gopcrclicker/internal/telemetry"
	"gopcrclicker/internal/timecode"
	"gopcrclicker/internal/version"
)

var errUsage = errors.New("usage")

func usageErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

type app struct {
	cfg   config.AppConfig
	token string
	out   io.Writer
	sess  *crash.Session
	log   *slog.Logger

	logOpts applog.Options
	lib     *storage.Library

	// overridable in tests
	isTerminal func() bool
	saveConfig func(config.AppConfig, string) error
	runPanel   func(context.Context, panel.Model) error
}

func newApp(cfg config.AppConfig, token string, out io.Writer, sess *crash.Session) *app {
	if sess == nil {
		sess = &crash.Session{}
	}
	return &app{
		cfg:        cfg,
		token:      token,
		out:        out,
		sess:       sess,
		log:        applog.WithComponent("cli"),
		isTerminal: func() bool { return term.IsTerminal(int(os.Stdin.Fd())) },
		saveConfig: config.Save,
		runPanel:   runPanel,
	}
}

func runPanel(ctx context.Context, m panel.Model) error {
	return panel.Run(ctx, m, tea.WithAltScreen())
}

func (a *app) close() {
	if a.lib != nil {
		_ = a.lib.Close()
		a.lib = nil
	}
}

func (a *app) library() (*storage.Library, error) {
	if a.lib != nil {
		return a.lib, nil
	}
	dir, err := a.cfg.Library.Path()
	if err != nil {
		return nil, err
	}
	lib, err := storage.OpenLibrary(dir)
	if err != nil {
		return nil, err
	}
	a.lib = lib
	a.sess.Library = lib
	return lib, nil
}

func (a *app) run(ctx context.Context, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "version", "--version", "-v":
		fmt.Fprintln(a.out, "GoPCRClicker")
		fmt.Fprintln(a.out, version.String())
		return nil
	case "check":
		return a.check(ctx, rest)
	case "render":
		return a.render(ctx, rest)
	case "compensate":
		return a.compensate(ctx, rest)
	case "summary":
		return a.summary(ctx, rest)
	case "play":
		return a.play(ctx, rest)
	case "devices":
		return a.devices(ctx)
	case "save":
		return a.save(ctx, rest)
	case "scripts":
		return a.scripts()
	case "recent":
		return a.recent(ctx)
	case "records":
		return a.records(ctx)
	case "search":
		return a.search(ctx, rest)
	case "settings":
		return a.settings(rest)
	case "export-pdf":
		return a.exportPDF(ctx, rest)
	case "serve":
		return backend.Start(ctx, backend.LoadConfig())
	case "share":
		return a.share(ctx, rest)
	case "login":
		return a.login(ctx, rest)
	case "logout":
		if err := config.ClearToken(); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Token removed.")
		return nil
	case "help", "-h", "--help":
		usage()
		return nil
	}
	return usageErr("unknown command %q", cmd)
}

// loadScript resolves arg as a file path, or else as a library script name, and parses it.
func (a *app) loadScript(ctx context.Context, arg string) (*script.Script, string, error) {
	lib, err := a.library()
	if err != nil {
		return nil, "", err
	}
	var text string
	if _, statErr := os.Stat(arg); statErr == nil {
		text, err = lib.ReadFile(ctx, arg)
	} else {
		text, err = lib.ReadScript(ctx, arg)
	}
	if err != nil {
		return nil, "", err
	}
	name := strings.TrimSuffix(filepath.Base(arg), filepath.Ext(arg))
	a.sess.Script = name
	s, err := script.ParseText(text)
	if err != nil {
		return nil, name, err
	}
	return s, name, nil
}

func (a *app) check(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageErr("check requires <file>")
	}
	s, name, err := a.loadScript(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: ok, %d lines, %d operates\n", name, len(s.Lines), s.OperateCount())
	return nil
}

func (a *app) render(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageErr("render requires <file>")
	}
	s, _, err := a.loadScript(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, s.Render())
	return nil
}

func (a *app) compensate(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usageErr("compensate requires <file> <sec>")
	}
	sec, err := strconv.Atoi(args[1])
	if err != nil {
		return usageErr("compensation seconds %q: %v", args[1], err)
	}
	s, _, err := a.loadScript(ctx, args[0])
	if err != nil {
		return err
	}
	c, err := s.ToCompensation(sec)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, c.Render())
	return nil
}

func (a *app) summary(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageErr("summary requires <file>")
	}
	s, name, err := a.loadScript(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Script: %s\n", name)
	fmt.Fprintf(a.out, "Team: %s\n", s.TeamLine())
	fmt.Fprintf(a.out, "Start: %s\n", timecode.Colon(s.StartSec))
	fmt.Fprintf(a.out, "Lines: %d  Operates: %d\n\n", len(s.Lines), s.OperateCount())
	for _, l := range s.Lines {
		fmt.Fprintln(a.out, script.LineText(l, s.Team))
	}
	return nil
}

func (a *app) clicker(dryRun bool) (playback.Clicker, func(), error) {
	if dryRun {
		return device.NewDryRun(0), func() {}, nil
	}
	adb, err := device.NewADB(a.cfg.Device.ADBPath, a.cfg.Device.Serial, a.cfg.Device.TapDuration)
	if err != nil {
		return nil, nil, err
	}
	return adb, adb.Wait, nil
}

func (a *app) play(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("play", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	dryRun := fs.Bool("dry-run", false, "log taps instead of sending them to the device")
	from := fs.Int("from", 0, "start from a compensation battle with this many seconds left")
	if err := fs.Parse(args); err != nil {
		return usageErr("play: %v", err)
	}
	if fs.NArg() != 1 {
		return usageErr("play requires <file>")
	}
	compensate := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "from" {
			compensate = true
		}
	})
	if !a.isTerminal() {
		return errors.New("play needs an interactive terminal")
	}
	if err := a.quietLogging(); err != nil {
		return err
	}
	s, name, err := a.loadScript(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	if compensate {
		if s, err = s.ToCompensation(*from); err != nil {
			return err
		}
	}
	lib, err := a.library()
	if err != nil {
		return err
	}
	cl, wait, err := a.clicker(*dryRun)
	if err != nil {
		return err
	}
	defer wait()

	cur := playback.NewCursor(s, cl)
	a.sess.Pending = cur

	var autoUsed, recorded atomic.Bool
	cancel := cur.Subscribe(func(st playback.State) {
		if st.AutoClick {
			autoUsed.Store(true)
		}
		if st.Recording {
			recorded.Store(true)
		}
	})
	defer cancel()

	watchCtx, stopWatch := context.WithCancel(ctx)
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		err := lib.Watch(watchCtx, func(ev storage.ScriptEvent) {
			a.log.Info("library script changed", slog.String("name", ev.Name), slog.Bool("removed", ev.Removed))
		})
		if err != nil && watchCtx.Err() == nil {
			a.log.Warn("library watch stopped", slog.Any("err", err))
		}
	}()
	defer func() {
		stopWatch()
		<-watchDone
	}()

	ctx = applog.WithScript(ctx, name)
	// transcripts and pruning still run after an interrupt ends the panel
	persist := context.WithoutCancel(ctx)
	started := time.Now()
	m := panel.New(ctx, name, cur, cl, a.cfg.Positions, lib.RecordSaver(persist, name))
	if err := a.runPanel(ctx, m); err != nil {
		return err
	}
	elapsed := time.Since(started)
	a.log.InfoContext(ctx, "play session finished",
		slog.Duration("elapsed", elapsed), slog.Bool("auto_click", autoUsed.Load()), slog.Bool("recorded", recorded.Load()))
	telemetry.Default().PlaySession(s.OperateCount(), autoUsed.Load(), recorded.Load(), elapsed)

	if keep := a.cfg.Library.KeepRecords; keep > 0 {
		if n, err := lib.PruneRecords(persist, keep); err != nil {
			a.log.Warn("prune records failed", slog.Any("err", err))
		} else if n > 0 {
			a.log.Info("records pruned", slog.Int("removed", n))
		}
	}
	return nil
}

// quietLogging moves logging to a file while the panel owns the terminal.
func (a *app) quietLogging() error {
	opts := a.logOpts
	if opts.File == "" {
		dir, err := a.cfg.Library.Path()
		if err != nil {
			return err
		}
		opts.File = filepath.Join(dir, ".pcr", "panel.log")
	}
	opts.NoConsole = true
	applog.Init(opts)
	a.log = applog.WithComponent("cli")
	return nil
}

func (a *app) devices(ctx context.Context) error {
	adb, err := device.NewADB(a.cfg.Device.ADBPath, a.cfg.Device.Serial, a.cfg.Device.TapDuration)
	if err != nil {
		return err
	}
	serials, err := adb.Devices(ctx)
	if err != nil {
		return err
	}
	if len(serials) == 0 {
		fmt.Fprintln(a.out, "No devices attached.")
		return nil
	}
	for _, s := range serials {
		fmt.Fprintln(a.out, s)
	}
	return nil
}

func (a *app) save(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return usageErr("save requires <file> [name]")
	}
	b, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	if _, err := script.ParseText(string(b)); err != nil {
		return err
	}
	name := filepath.Base(args[0])
	if len(args) == 2 {
		name = args[1]
	}
	lib, err := a.library()
	if err != nil {
		return err
	}
	if err := lib.SaveScript(ctx, name, string(b)); err != nil {
		return err
	}
	path, _ := lib.ScriptPath(name)
	fmt.Fprintln(a.out, "Saved", path)
	return nil
}

func (a *app) scripts() error {
	lib, err := a.library()
	if err != nil {
		return err
	}
	names, err := lib.ListScripts()
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Fprintln(a.out, n)
	}
	return nil
}

func (a *app) recent(ctx context.Context) error {
	lib, err := a.library()
	if err != nil {
		return err
	}
	files, err := lib.RecentFiles(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, f := range files {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Name(), f.ModTime.Local().Format("2006-01-02 15:04"), f.Path)
	}
	return tw.Flush()
}

func (a *app) records(ctx context.Context) error {
	lib, err := a.library()
	if err != nil {
		return err
	}
	recs, err := lib.ListRecords(ctx, 0)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.CreatedAt.Local().Format("2006-01-02 15:04:05"), r.Source, r.Bytes, r.Path)
	}
	return tw.Flush()
}

func (a *app) search(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	only := fs.String("script", "", "restrict results to one script")
	limit := fs.Int("limit", 50, "maximum results")
	if err := fs.Parse(args); err != nil {
		return usageErr("search: %v", err)
	}
	if fs.NArg() == 0 {
		return usageErr("search requires <term>")
	}
	lib, err := a.library()
	if err != nil {
		return err
	}
	q := storage.SearchQuery{Text: strings.Join(fs.Args(), " "), Limit: *limit}
	if *only != "" {
		if q.Script, err = storage.NormalizeName(*only); err != nil {
			return err
		}
	}
	res, err := lib.Search(ctx, q)
	if err != nil {
		return err
	}
	if len(res) == 0 {
		fmt.Fprintln(a.out, "No matches.")
		return nil
	}
	for _, r := range res {
		fmt.Fprintf(a.out, "%s:%d: %s\n", r.Script, r.LineNum, r.Snippet)
	}
	return nil
}

func (a *app) settings(args []string) error {
	if len(args) == 0 {
		return usageErr("settings requires import <json> or export")
	}
	switch args[0] {
	case "export":
		b, err := settings.ExportJSON(a.cfg.Positions)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, string(b))
		return nil
	case "import":
		if len(args) != 2 {
			return usageErr("settings import requires <json>")
		}
		b, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		s, err := settings.ImportJSON(b)
		if err != nil {
			return err
		}
		a.cfg.Positions = s
		if err := a.saveConfig(a.cfg, ""); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Fprintln(a.out, "Imported positions:")
		for _, np := range s.Named() {
			fmt.Fprintf(a.out, "  %-6s %d,%d\n", np.Name, np.Position.X, np.Position.Y)
		}
		return nil
	}
	return usageErr("unknown settings command %q", args[0])
}

func (a *app) exportPDF(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export-pdf", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	font := fs.String("font", "", "TTF font for non-Latin names")
	delays := fs.Bool("delays", false, "print click delays")
	if err := fs.Parse(args); err != nil {
		return usageErr("export-pdf: %v", err)
	}
	if fs.NArg() != 2 {
		return usageErr("export-pdf requires <file> <out>")
	}
	s, name, err := a.loadScript(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	opt := export.PDFOptions{FontPath: *font, IncludeDelays: *delays, Author: "GoPCRClicker " + version.String()}
	if err := export.ScriptPDF(s, name, fs.Arg(1), opt); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Wrote", fs.Arg(1))
	return nil
}

func (a *app) client() *backend.Client {
	c := backend.NewClient(a.cfg.Backend.BaseURL, a.token, a.cfg.Backend.Timeout())
	if a.cfg.Backend.TLSInsecure {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		c = c.WithHTTPClient(&http.Client{Timeout: a.cfg.Backend.Timeout(), Transport: tr})
	}
	return c
}

func (a *app) share(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageErr("share requires list, fetch, publish or search")
	}
	c := a.client()
	switch args[0] {
	case "list":
		list, err := c.ListScripts(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		for _, s := range list {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n", s.ID, s.Name, s.Author, s.Team, s.Operates)
		}
		return tw.Flush()
	case "fetch":
		if len(args) < 2 || len(args) > 3 {
			return usageErr("share fetch requires <id> [name]")
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return usageErr("script id %q: %v", args[1], err)
		}
		sc, err := c.FetchScript(ctx, id)
		if err != nil {
			return err
		}
		if len(args) == 2 {
			fmt.Fprintln(a.out, sc.Body)
			return nil
		}
		lib, err := a.library()
		if err != nil {
			return err
		}
		if err := lib.SaveScript(ctx, args[2], sc.Body); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Saved %q by %s as %s\n", sc.Name, sc.Author, args[2])
		return nil
	case "publish":
		if len(args) < 2 || len(args) > 3 {
			return usageErr("share publish requires <file> [name]")
		}
		b, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		name := strings.TrimSuffix(filepath.Base(args[1]), filepath.Ext(args[1]))
		if len(args) == 3 {
			name = args[2]
		}
		info, err := c.PublishScript(ctx, name, string(b))
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Published %q as #%d (%d operates)\n", info.Name, info.ID, info.Operates)
		return nil
	case "search":
		if len(args) < 2 {
			return usageErr("share search requires <term>")
		}
		hits, err := c.Search(ctx, strings.Join(args[1:], " "), 50)
		if err != nil {
			return err
		}
		for _, h := range hits {
			fmt.Fprintf(a.out, "#%d %s:%d: %s\n", h.ScriptID, h.Name, h.LineNum, h.Snippet)
		}
		return nil
	}
	return usageErr("unknown share command %q", args[0])
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	request := fs.String("request", "", "request a token for this author name from the server")
	if err := fs.Parse(args); err != nil {
		return usageErr("login: %v", err)
	}
	token := strings.TrimSpace(fs.Arg(0))
	if *request != "" {
		t, err := a.client().RequestToken(ctx, *request)
		if err != nil {
			return err
		}
		token = t
	}
	if token == "" {
		return usageErr("login requires <token> or --request <name>")
	}
	if err := config.SetToken(token); err != nil {
		return err
	}
	a.token = token
	fmt.Fprintln(a.out, "Token stored in the system keyring.")
	return nil
}
