/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package panel is the terminal control panel that drives a playback cursor.
package panel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	applog "gopcrclicker/internal/log"
	"gopcrclicker/internal/playback"
	"gopcrclicker/internal/script"
	"gopcrclicker/internal/settings"
	"gopcrclicker/internal/timecode"
)

type stateMsg playback.State

type doneMsg struct {
	action string
	err    error
}

// Model is the bubbletea model of the panel.
type Model struct {
	ctx      context.Context
	cur      *playback.Cursor
	clicker  playback.Clicker
	settings settings.Settings
	save     playback.SaveFunc
	title    string

	state    playback.State
	ov       *overlay
	status   string
	err      error
	keys     keyMap
	help     help.Model
	width    int
	quitting bool
	log      *slog.Logger
}

// New builds a panel for cur. save receives finished record transcripts.
func New(ctx context.Context, title string, cur *playback.Cursor, clicker playback.Clicker, s settings.Settings, save playback.SaveFunc) Model {
	if ctx == nil {
		ctx = context.Background()
	}
	return Model{
		ctx:      ctx,
		cur:      cur,
		clicker:  clicker,
		settings: s,
		save:     save,
		title:    title,
		state:    cur.Snapshot(),
		ov:       &overlay{},
		keys:     defaultKeys(),
		help:     help.New(),
		log:      applog.WithComponent("panel"),
	}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil
	case stateMsg:
		m.state = playback.State(msg)
		return m, nil
	case doneMsg:
		m.state = m.cur.Snapshot()
		m.err = msg.err
		m.status = msg.action
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Act):
		return m, m.act()
	case key.Matches(msg, m.keys.Next):
		return m, m.run("next", func(context.Context) error { m.cur.NextOperate(); return nil })
	case key.Matches(msg, m.keys.Prev):
		return m, m.run("prev", func(context.Context) error { m.cur.PrevOperate(); return nil })
	case key.Matches(msg, m.keys.NextLine):
		return m, m.run("next line", func(context.Context) error { m.cur.NextLine(); return nil })
	case key.Matches(msg, m.keys.PrevLine):
		return m, m.run("prev line", func(context.Context) error { m.cur.PrevLine(); return nil })
	case key.Matches(msg, m.keys.Restart):
		return m, m.run("restart", func(context.Context) error { m.cur.Restart(); return nil })
	case key.Matches(msg, m.keys.Menu):
		return m, m.run("menu", func(context.Context) error { m.cur.ClickMenu(m.settings); return nil })
	case key.Matches(msg, m.keys.Speed):
		return m, m.run("speed", func(context.Context) error { m.cur.ClickSpeed(m.settings); return nil })
	case key.Matches(msg, m.keys.StopRecord):
		return m, m.run("record stopped", func(ctx context.Context) error { m.cur.StopRecord(ctx, m.settings); return nil })
	case key.Matches(msg, m.keys.Pause):
		return m, m.pause()
	}
	return m, nil
}

// act performs the current operate the way its kind demands.
func (m Model) act() tea.Cmd {
	st := m.cur.Snapshot()
	if st.AutoClick {
		return m.run("auto click stopped", func(ctx context.Context) error { m.cur.StopAutoClick(ctx, m.settings); return nil })
	}
	switch st.Current.(type) {
	case script.Record:
		return m.run("recording", func(ctx context.Context) error { m.cur.StartRecord(ctx, m.settings, m.save); return nil })
	case script.Start:
		return m.run("auto click", func(ctx context.Context) error { m.cur.StartAutoClick(ctx, m.settings); return nil })
	case script.Stop:
		return m.run("stop", func(ctx context.Context) error { m.cur.StopAutoClick(ctx, m.settings); return nil })
	default:
		return m.run("", func(ctx context.Context) error { m.cur.HandleClickOperate(ctx, m.settings, m.save); return nil })
	}
}

func (m Model) pause() tea.Cmd {
	if len(m.settings.PauseActions) == 0 {
		return func() tea.Msg { return doneMsg{err: fmt.Errorf("no pause action configured")} }
	}
	_, count := m.ov.snapshot()
	a := m.settings.PauseActions[0]
	return m.run("paused", func(ctx context.Context) error {
		return playback.PauseGame(ctx, m.ov, m.clicker, count+1, a, m.settings.BlankPosition)
	})
}

func (m Model) run(action string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	log := m.log
	return func() tea.Msg {
		err := fn(ctx)
		if err != nil {
			log.WarnContext(ctx, "panel action failed", slog.String("action", action), slog.Any("err", err))
		}
		return doneMsg{action: action, err: err}
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder

	header := []string{titleStyle.Render(m.title)}
	if m.state.Recording {
		header = append(header, recStyle.Render("REC"))
	}
	if m.state.AutoClick {
		header = append(header, autoStyle.Render("AUTO"))
	}
	if m.state.IsOn {
		header = append(header, onStyle.Render("ON"))
	}
	if paused, count := m.ov.snapshot(); paused {
		header = append(header, pausedStyle.Render(fmt.Sprintf("PAUSE %d", count)))
	}
	b.WriteString(strings.Join(header, " "))
	b.WriteString("\n\n")

	sum := m.state.Summary.Strings()
	body := mutedStyle.Render(sum[0]) + currentStyle.Render(sum[1]) + mutedStyle.Render(sum[2])
	b.WriteString(frameStyle.Render(body))
	b.WriteByte('\n')

	if m.state.Current != nil {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("line %d  op %d  @%s", m.state.Line+1, m.state.Operate+1, timecode.Colon(m.state.Current.Sec()))))
		b.WriteByte('\n')
	}
	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render(m.err.Error()))
	case m.status != "":
		b.WriteString(statusStyle.Render(m.status))
	}
	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))
	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}

// Run shows the panel until the user quits or ctx ends. An active auto-click loop is stopped
// and an active recording is saved before Run returns.
func Run(ctx context.Context, m Model, opts ...tea.ProgramOption) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	m.ctx = ctx

	p := tea.NewProgram(m, append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)...)
	unsubscribe := m.cur.Subscribe(func(s playback.State) { p.Send(stateMsg(s)) })
	defer unsubscribe()

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		err = nil
	}

	cancel()
	m.cur.WaitAutoClick()
	m.cur.StopRecord(context.Background(), m.settings)
	return err
}
