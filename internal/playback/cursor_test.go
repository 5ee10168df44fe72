/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package playback

import (
	"context"
	"sync"
	"testing"

	"gopcrclicker/internal/script"
	"gopcrclicker/internal/settings"
)

const threeOps = "1=A 2=B\n90 A B\n80 menu"

func TestCursor_InitialState(t *testing.T) {
	c := NewCursor(parse(t, threeOps), nil)
	st := c.Snapshot()
	if !st.IsStart || st.IsEnd || st.Line != 0 || st.Operate != 0 || st.IsOn {
		t.Fatalf("unexpected initial state: %+v", st)
	}
	if cl, ok := st.Current.(script.Click); !ok || cl.Type != script.Set1 {
		t.Fatalf("current: %+v", st.Current)
	}
}

func TestCursor_NextOperateReachesEndInExactSteps(t *testing.T) {
	s := parse(t, "1=A 2=B\n90 A B startX\n80 menu\n70 B A stopX")
	total := s.OperateCount()
	for startFlat := 0; startFlat < total; startFlat++ {
		c := NewCursor(s, nil)
		for i := 0; i < startFlat; i++ {
			c.NextOperate()
		}
		steps := 0
		for !c.Snapshot().IsEnd {
			c.NextOperate()
			steps++
			if steps > total {
				t.Fatalf("did not reach end from %d", startFlat)
			}
		}
		if want := total - 1 - startFlat; steps != want {
			t.Fatalf("from %d: %d steps, want %d", startFlat, steps, want)
		}
		before := c.Snapshot()
		c.NextOperate()
		if after := c.Snapshot(); after.Line != before.Line || after.Operate != before.Operate {
			t.Fatal("NextOperate moved past the end")
		}
	}
}

func TestCursor_Navigation(t *testing.T) {
	c := NewCursor(parse(t, threeOps), nil)
	c.PrevOperate()
	c.PrevLine()
	if st := c.Snapshot(); !st.IsStart {
		t.Fatalf("moved before start: %+v", st)
	}

	c.NextLine()
	if st := c.Snapshot(); st.Line != 1 || st.Operate != 0 || !st.IsEnd {
		t.Fatalf("next line: %+v", st)
	}
	c.NextLine()
	if st := c.Snapshot(); st.Line != 1 {
		t.Fatalf("moved past last line: %+v", st)
	}

	c.PrevOperate()
	if st := c.Snapshot(); st.Line != 0 || st.Operate != 1 {
		t.Fatalf("prev operate across line: %+v", st)
	}
	c.NextLine()
	c.PrevLine()
	if st := c.Snapshot(); st.Line != 0 || st.Operate != 0 {
		t.Fatalf("prev line: %+v", st)
	}
}

func TestCursor_NavigationClearsIsOn(t *testing.T) {
	ctx := context.Background()
	c := NewCursor(parse(t, threeOps), &fakeClicker{})
	st := settings.Defaults()

	c.HandleClickOperate(ctx, st, nil)
	if !c.Snapshot().IsOn {
		t.Fatal("first phase should set IsOn")
	}
	c.Restart()
	if s := c.Snapshot(); s.IsOn || !s.IsStart {
		t.Fatalf("restart: %+v", s)
	}

	c.HandleClickOperate(ctx, st, nil)
	c.NextLine()
	if c.Snapshot().IsOn {
		t.Fatal("NextLine should clear IsOn")
	}
}

func TestCursor_TwoPhaseClick(t *testing.T) {
	ctx := context.Background()
	fc := &fakeClicker{}
	st := settings.Defaults()
	c := NewCursor(parse(t, "1=A 2=B\n90 A BOSSUB B"), fc)

	c.HandleClickOperate(ctx, st, nil)
	if s := c.Snapshot(); !s.IsOn || s.Operate != 0 {
		t.Fatalf("phase one: %+v", s)
	}
	c.HandleClickOperate(ctx, st, nil)
	if s := c.Snapshot(); s.IsOn || s.Operate != 1 {
		t.Fatalf("phase two: %+v", s)
	}
	expectTaps(t, fc.all(), pos(st.UB1Position, 0), pos(st.UB1Position, 0))

	// Confirm operates go through both phases without tapping
	c.HandleClickOperate(ctx, st, nil)
	c.HandleClickOperate(ctx, st, nil)
	if s := c.Snapshot(); s.Operate != 2 {
		t.Fatalf("confirm: %+v", s)
	}
	if len(fc.all()) != 2 {
		t.Fatalf("confirm tapped: %+v", fc.all())
	}

	// second phase at the end stays put
	c.HandleClickOperate(ctx, st, nil)
	c.HandleClickOperate(ctx, st, nil)
	if s := c.Snapshot(); !s.IsEnd || s.IsOn {
		t.Fatalf("end: %+v", s)
	}
	expectTaps(t, fc.all()[2:], pos(st.UB2Position, 0), pos(st.UB2Position, 0))
}

func TestCursor_NilClickerTolerated(t *testing.T) {
	c := NewCursor(parse(t, threeOps), nil)
	st := settings.Defaults()
	c.HandleClickOperate(context.Background(), st, nil)
	c.HandleClickOperate(context.Background(), st, nil)
	c.ClickMenu(st)
	c.ClickSpeed(st)
	if s := c.Snapshot(); s.Operate != 1 {
		t.Fatalf("state: %+v", s)
	}
}

func TestCursor_SpeedAndMenu(t *testing.T) {
	fc := &fakeClicker{}
	st := settings.Defaults()
	c := NewCursor(parse(t, threeOps), fc)
	c.ClickSpeed(st)
	c.ClickMenu(st)
	expectTaps(t, fc.all(), pos(st.SpeedPosition, 0), pos(st.MenuPosition, 0))
}

func TestCursor_Subscribe(t *testing.T) {
	c := NewCursor(parse(t, threeOps), nil)
	var mu sync.Mutex
	var seen []State
	cancel := c.Subscribe(func(s State) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})
	c.NextOperate()
	c.NextOperate()
	cancel()
	c.PrevOperate()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Fatalf("got %d notifications", len(seen))
	}
	if !seen[1].IsEnd || seen[1].Summary.Current != "menu" {
		t.Fatalf("last state: %+v", seen[1])
	}
}

func TestCursor_Summary(t *testing.T) {
	c := NewCursor(parse(t, threeOps), nil)
	got := c.Summary()
	want := Summary{Prev: "1:30 begin\n1:30 ", Current: "A", Next: " B\n1:20 menu"}
	if got != want {
		t.Fatalf("start summary:\n got %#v\nwant %#v", got, want)
	}

	c.NextOperate()
	got = c.Summary()
	want = Summary{Prev: "1:30 begin\n1:30 A ", Current: "B", Next: "\n1:20 menu"}
	if got != want {
		t.Fatalf("mid summary:\n got %#v\nwant %#v", got, want)
	}

	c.NextOperate()
	got = c.Summary()
	want = Summary{Prev: "1:30 A B\n1:20 ", Current: "menu", Next: "\n0 end"}
	if got != want {
		t.Fatalf("end summary:\n got %#v\nwant %#v", got, want)
	}
	if len(got.Strings()) != 3 {
		t.Fatal("summary must have three parts")
	}
}

func TestCursor_SummaryUsesCompensatedStart(t *testing.T) {
	s := parse(t, "1=A\n90 A\n30 A")
	comp, err := s.ToCompensation(70)
	if err != nil {
		t.Fatal(err)
	}
	c := NewCursor(comp, nil)
	if p := c.Summary().Prev; p != "1:10 begin\n1:10 " {
		t.Fatalf("prev: %q", p)
	}
	if n := c.Summary().Next; n != "\n10 A" {
		t.Fatalf("next: %q", n)
	}
}
