package notify

import (
	"testing"
	"time"
)

type recordingDisplay struct {
	texts  []string
	counts []int
}

func (d *recordingDisplay) ShowMessage(text string, count int) {
	d.texts = append(d.texts, text)
	d.counts = append(d.counts, count)
}

func testConfig() Config {
	return Config{
		FadeIn:       250 * time.Millisecond,
		Visible:      3500 * time.Millisecond,
		FadeOut:      750 * time.Millisecond,
		FullCooldown: 20 * time.Second,
		Spacing:      42,
		AnchorX:      -400,
		AnchorY:      -200,
	}
}

func TestFormat(t *testing.T) {
	if got := Format("Auto pickup 9mm", 30); got != "+ Auto pickup 9mm × 30" {
		t.Fatalf("got=%q", got)
	}
}

func TestLifecycle(t *testing.T) {
	d := &recordingDisplay{}
	th := New(testConfig(), d)
	m := th.Show("Auto pickup Cash", 5)
	if m.Phase != FadingIn || m.Alpha != 0 {
		t.Fatalf("phase=%v alpha=%v", m.Phase, m.Alpha)
	}
	if len(d.texts) != 1 || d.texts[0] != "Auto pickup Cash" || d.counts[0] != 5 {
		t.Fatalf("display=%+v", d)
	}

	th.Advance(125 * time.Millisecond)
	got := th.Active()[0]
	if got.Phase != FadingIn || got.Alpha < 0.49 || got.Alpha > 0.51 {
		t.Fatalf("mid fade-in phase=%v alpha=%v", got.Phase, got.Alpha)
	}

	th.Advance(200 * time.Millisecond)
	got = th.Active()[0]
	if got.Phase != Visible || got.Alpha != 1 {
		t.Fatalf("visible phase=%v alpha=%v", got.Phase, got.Alpha)
	}

	// 0.325s so far; fade-out starts at 3.75s.
	th.Advance(3425*time.Millisecond + 375*time.Millisecond)
	got = th.Active()[0]
	if got.Phase != FadingOut || got.Alpha < 0.49 || got.Alpha > 0.51 {
		t.Fatalf("mid fade-out phase=%v alpha=%v", got.Phase, got.Alpha)
	}

	th.Advance(375 * time.Millisecond)
	if th.Len() != 0 {
		t.Fatalf("len=%d want=0 after fade-out", th.Len())
	}
}

func TestStackingAndRepositionOnRemoval(t *testing.T) {
	th := New(testConfig(), nil)
	th.Show("a", 1)
	th.Advance(time.Second)
	th.Show("b", 1)
	th.Show("c", 1)

	act := th.Active()
	for i, want := range []float64{-200, -242, -284} {
		if act[i].Y != want || act[i].X != -400 {
			t.Fatalf("entry %d at (%v,%v) want y=%v", i, act[i].X, act[i].Y, want)
		}
	}

	// First entry expires at 4.5s; the others shift up one slot.
	th.Advance(3500 * time.Millisecond)
	act = th.Active()
	if len(act) != 2 {
		t.Fatalf("len=%d want=2", len(act))
	}
	if act[0].Text != "+ b × 1" || act[0].Y != -200 || act[1].Y != -242 {
		t.Fatalf("after removal=%+v", act)
	}
}

func TestFullMessageCooldown(t *testing.T) {
	d := &recordingDisplay{}
	th := New(testConfig(), d)

	if _, ok := th.ShowFull("Store full"); !ok {
		t.Fatalf("first full message suppressed")
	}
	admitted := 1
	for i := 0; i < 39; i++ {
		th.Advance(500 * time.Millisecond)
		if _, ok := th.ShowFull("Store full"); ok {
			admitted++
		}
	}
	// 19.5s elapsed.
	if admitted != 1 {
		t.Fatalf("admitted=%d within cooldown", admitted)
	}
	th.Advance(500 * time.Millisecond)
	if _, ok := th.ShowFull("Store full"); !ok {
		t.Fatalf("full message suppressed after cooldown")
	}
	if len(d.texts) != 2 {
		t.Fatalf("display calls=%d want=2", len(d.texts))
	}
}

func TestPickupMessagesNotThrottled(t *testing.T) {
	th := New(testConfig(), nil)
	th.ShowFull("Store full")
	for i := 0; i < 5; i++ {
		th.Show("x", 1)
	}
	if th.Len() != 6 {
		t.Fatalf("len=%d want=6", th.Len())
	}
}

func TestClearRearmsGate(t *testing.T) {
	th := New(testConfig(), nil)
	th.ShowFull("Store full")
	th.Clear()
	if th.Len() != 0 {
		t.Fatalf("len=%d after clear", th.Len())
	}
	if _, ok := th.ShowFull("Store full"); !ok {
		t.Fatalf("gate not re-armed by clear")
	}
}

func TestEmptyTextIgnored(t *testing.T) {
	d := &recordingDisplay{}
	th := New(testConfig(), d)
	th.Show("", 3)
	if th.Len() != 0 || len(d.texts) != 0 {
		t.Fatalf("empty text produced an entry")
	}
}
