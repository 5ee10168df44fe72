/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package panel

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Act        key.Binding
	Next       key.Binding
	Prev       key.Binding
	NextLine   key.Binding
	PrevLine   key.Binding
	Restart    key.Binding
	Menu       key.Binding
	Speed      key.Binding
	Pause      key.Binding
	StopRecord key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Act:        key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "operate")),
		Next:       key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "next")),
		Prev:       key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "prev")),
		NextLine:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓", "next line")),
		PrevLine:   key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑", "prev line")),
		Restart:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "restart")),
		Menu:       key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "menu")),
		Speed:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "speed")),
		Pause:      key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause")),
		StopRecord: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "stop record")),
		Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Act, k.Next, k.Prev, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Act, k.Next, k.Prev, k.NextLine, k.PrevLine},
		{k.Restart, k.Menu, k.Speed, k.Pause, k.StopRecord},
		{k.Help, k.Quit},
	}
}
