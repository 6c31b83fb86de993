package tuning

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	d := Defaults()
	if d.TickRateHz != 20 {
		t.Fatalf("TickRateHz=%d want=20", d.TickRateHz)
	}
	if d.Scan.RefreshEvery() != 5*time.Second || d.Scan.ClearEvery() != 90*time.Second {
		t.Fatalf("scan timers: refresh=%v clear=%v", d.Scan.RefreshEvery(), d.Scan.ClearEvery())
	}
	if d.Scan.LoadThreshold != 150 || d.Scan.MaxInterval() != 10*time.Second {
		t.Fatalf("load threshold=%d max=%v", d.Scan.LoadThreshold, d.Scan.MaxInterval())
	}
	if d.Scan.GraceDelay() != 500*time.Millisecond {
		t.Fatalf("grace=%v", d.Scan.GraceDelay())
	}
	if d.Notify.FadeIn() != 250*time.Millisecond || d.Notify.Visible() != 3500*time.Millisecond || d.Notify.FadeOut() != 750*time.Millisecond {
		t.Fatalf("notify: %+v", d.Notify)
	}
	if len(d.Rules.AllowKeys) != 6 || len(d.Rules.DenyTags) != 6 || len(d.Rules.ExcludedNames) != 4 {
		t.Fatalf("rules: %+v", d.Rules)
	}
	if d.Rules.WeaponTag != "Gun" {
		t.Fatalf("weapon tag=%q", d.Rules.WeaponTag)
	}
}

func TestParse_OverridesAndDefaults(t *testing.T) {
	tu, err := Parse([]byte(`
tick_rate_hz: 30
scan:
  refresh_every_ms: 2500
rules:
  excluded_names: [storage]
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tu.TickRateHz != 30 {
		t.Fatalf("TickRateHz=%d want=30", tu.TickRateHz)
	}
	if tu.Scan.RefreshEveryMs != 2500 {
		t.Fatalf("RefreshEveryMs=%d want=2500", tu.Scan.RefreshEveryMs)
	}
	if tu.Scan.ClearEveryMs != 90000 {
		t.Fatalf("ClearEveryMs=%d want default", tu.Scan.ClearEveryMs)
	}
	if len(tu.Rules.ExcludedNames) != 1 {
		t.Fatalf("ExcludedNames=%v", tu.Rules.ExcludedNames)
	}
}

func TestParse_UnknownKeySuggestsClosest(t *testing.T) {
	_, err := Parse([]byte("scan:\n  refresh_evry_ms: 10\n"))
	if !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
	if !strings.Contains(err.Error(), `did you mean "scan.refresh_every_ms"`) {
		t.Fatalf("missing suggestion: %v", err)
	}

	_, err = Parse([]byte("zzzzzzzzzzzz: 1\n"))
	if !errors.Is(err, ErrUnknownKey) || strings.Contains(err.Error(), "did you mean") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParse_SchemaViolation(t *testing.T) {
	if _, err := Parse([]byte("tick_rate_hz: -5\n")); err == nil {
		t.Fatalf("expected schema violation")
	}
	if _, err := Parse([]byte("rules:\n  deny_tags: [\"\"]\n")); err == nil {
		t.Fatalf("expected schema violation for empty tag")
	}
}

func TestLoad_RepoConfig(t *testing.T) {
	path := filepath.Join("..", "..", "..", "configs", "tuning.yaml")
	if _, err := os.Stat(path); err != nil {
		t.Skipf("no repo config: %v", err)
	}
	tu, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tu.TickRateHz <= 0 {
		t.Fatalf("TickRateHz=%d", tu.TickRateHz)
	}
}
