// Package notify keeps the stack of on-screen pickup messages and gates the "store full" class.
package notify

import (
	"fmt"
	"time"

	"lootsweep.ai/internal/sim/host"
	"lootsweep.ai/internal/sim/logic/mathx"
	"lootsweep.ai/internal/sim/logic/rates"
)

type Phase int

const (
	FadingIn Phase = iota
	Visible
	FadingOut
)

func (p Phase) String() string {
	switch p {
	case FadingIn:
		return "FADE_IN"
	case Visible:
		return "VISIBLE"
	case FadingOut:
		return "FADE_OUT"
	default:
		return "UNKNOWN"
	}
}

type Kind int

const (
	KindPickup Kind = iota
	KindFull
)

func (k Kind) String() string {
	if k == KindFull {
		return "FULL"
	}
	return "PICKUP"
}

type Config struct {
	FadeIn       time.Duration
	Visible      time.Duration
	FadeOut      time.Duration
	FullCooldown time.Duration

	// Spacing is the vertical distance between stacked entries; Anchor* is the top entry's position.
	Spacing float64
	AnchorX float64
	AnchorY float64
}

// Message is one entry of the stack.
type Message struct {
	ID        uint64
	Text      string
	Count     int
	Kind      Kind
	Phase     Phase
	Alpha     float64
	X         float64
	Y         float64
	CreatedAt time.Duration

	inPhase time.Duration
}

// Format renders the text shown for a message.
func Format(text string, count int) string {
	return fmt.Sprintf("+ %s × %d", text, count)
}

type Throttler struct {
	cfg     Config
	display host.Display

	full   rates.Cooldown
	now    time.Duration
	nextID uint64
	msgs   []*Message
}

// New returns a throttler forwarding every admitted message to display (may be nil).
func New(cfg Config, display host.Display) *Throttler {
	t := &Throttler{display: display}
	t.SetConfig(cfg)
	return t
}

// SetConfig swaps timings and anchor. Entries already on screen keep their progress.
func (t *Throttler) SetConfig(cfg Config) {
	if cfg.Spacing < 0 {
		cfg.Spacing = 0
	}
	t.cfg = cfg
	t.full.Window = cfg.FullCooldown
	t.layout()
}

// Show pushes a pickup message. Pickup messages are never throttled.
func (t *Throttler) Show(text string, count int) Message {
	return t.push(text, count, KindPickup)
}

// ShowFull pushes a capacity-exhaustion message unless one was admitted within the cooldown window.
func (t *Throttler) ShowFull(text string) (Message, bool) {
	if ok, _ := t.full.Allow(t.now); !ok {
		return Message{}, false
	}
	return t.push(text, 1, KindFull), true
}

func (t *Throttler) push(text string, count int, kind Kind) Message {
	if text == "" {
		return Message{}
	}
	if count < 1 {
		count = 1
	}
	t.nextID++
	m := &Message{
		ID:        t.nextID,
		Text:      Format(text, count),
		Count:     count,
		Kind:      kind,
		Phase:     FadingIn,
		CreatedAt: t.now,
	}
	t.msgs = append(t.msgs, m)
	t.settle(m)
	t.layout()
	if t.display != nil {
		t.display.ShowMessage(text, count)
	}
	return *m
}

// Advance moves every entry through its fade schedule and drops those past fade-out.
func (t *Throttler) Advance(dt time.Duration) {
	if dt < 0 {
		dt = 0
	}
	t.now += dt

	kept := t.msgs[:0]
	removed := false
	for _, m := range t.msgs {
		m.inPhase += dt
		if !t.settle(m) {
			removed = true
			continue
		}
		kept = append(kept, m)
	}
	for i := len(kept); i < len(t.msgs); i++ {
		t.msgs[i] = nil
	}
	t.msgs = kept
	if removed {
		t.layout()
	}
}

// settle carries phase overflow forward and recomputes alpha. It reports false once the entry is done.
func (t *Throttler) settle(m *Message) bool {
	for {
		d := t.phaseLen(m.Phase)
		if m.inPhase < d {
			break
		}
		if m.Phase == FadingOut {
			return false
		}
		m.inPhase -= d
		m.Phase++
	}
	switch m.Phase {
	case FadingIn:
		m.Alpha = ratio(m.inPhase, t.cfg.FadeIn)
	case Visible:
		m.Alpha = 1
	case FadingOut:
		m.Alpha = 1 - ratio(m.inPhase, t.cfg.FadeOut)
	}
	return true
}

func (t *Throttler) phaseLen(p Phase) time.Duration {
	switch p {
	case FadingIn:
		return t.cfg.FadeIn
	case Visible:
		return t.cfg.Visible
	default:
		return t.cfg.FadeOut
	}
}

func ratio(n, d time.Duration) float64 {
	if d <= 0 {
		return 1
	}
	return mathx.Clamp01(float64(n) / float64(d))
}

func (t *Throttler) layout() {
	for i, m := range t.msgs {
		m.X = t.cfg.AnchorX
		m.Y = t.cfg.AnchorY - float64(i)*t.cfg.Spacing
	}
}

// Active returns copies of the entries on screen, top first.
func (t *Throttler) Active() []Message {
	out := make([]Message, 0, len(t.msgs))
	for _, m := range t.msgs {
		out = append(out, *m)
	}
	return out
}

func (t *Throttler) Len() int { return len(t.msgs) }

func (t *Throttler) Now() time.Duration { return t.now }

// Clear drops every entry and re-arms the full-message gate.
func (t *Throttler) Clear() {
	t.msgs = nil
	t.full.Reset()
}
