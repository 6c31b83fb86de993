package tuning

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"gopkg.in/yaml.v3"

	"lootsweep.ai/internal/protocol/schemas"
)

var ErrUnknownKey = errors.New("unknown key")

type Tuning struct {
	TickRateHz int `yaml:"tick_rate_hz" json:"tick_rate_hz"`

	Scan    ScanTuning    `yaml:"scan" json:"scan"`
	Notify  NotifyTuning  `yaml:"notify" json:"notify"`
	Rules   RuleTuning    `yaml:"rules" json:"rules"`
	Sandbox SandboxTuning `yaml:"sandbox" json:"sandbox"`
}

type ScanTuning struct {
	RefreshEveryMs     int `yaml:"refresh_every_ms" json:"refresh_every_ms"`
	ClearEveryMs       int `yaml:"clear_every_ms" json:"clear_every_ms"`
	PerfEveryMs        int `yaml:"perf_every_ms" json:"perf_every_ms"`
	MinIntervalMs      int `yaml:"min_interval_ms" json:"min_interval_ms"`
	MaxIntervalMs      int `yaml:"max_interval_ms" json:"max_interval_ms"`
	LoadThreshold      int `yaml:"load_threshold" json:"load_threshold"`
	GraceDelayMs       int `yaml:"grace_delay_ms" json:"grace_delay_ms"`
	OpenCollectDelayMs int `yaml:"open_collect_delay_ms" json:"open_collect_delay_ms"`
}

type NotifyTuning struct {
	FadeInMs  int     `yaml:"fade_in_ms" json:"fade_in_ms"`
	VisibleMs int     `yaml:"visible_ms" json:"visible_ms"`
	FadeOutMs int     `yaml:"fade_out_ms" json:"fade_out_ms"`
	SpacingPx float64 `yaml:"spacing_px" json:"spacing_px"`
}

type RuleTuning struct {
	AllowKeys     []string `yaml:"allow_keys" json:"allow_keys,omitempty"`
	DenyTags      []string `yaml:"deny_tags" json:"deny_tags,omitempty"`
	ExcludedNames []string `yaml:"excluded_names" json:"excluded_names,omitempty"`
	WeaponTag     string   `yaml:"weapon_tag" json:"weapon_tag,omitempty"`
}

// SandboxTuning only affects the in-memory host used by cmd/server.
type SandboxTuning struct {
	Seed               int64 `yaml:"seed" json:"seed"`
	SpawnEveryTicks    int   `yaml:"spawn_every_ticks" json:"spawn_every_ticks"`
	MaxContainers      int   `yaml:"max_containers" json:"max_containers"`
	SpawnRadius        int   `yaml:"spawn_radius" json:"spawn_radius"`
	StoreCapacity      int   `yaml:"store_capacity" json:"store_capacity"`
	SnapshotEveryTicks int   `yaml:"snapshot_every_ticks" json:"snapshot_every_ticks"`
}

func Defaults() Tuning {
	var t Tuning
	t.ApplyDefaults()
	return t
}

func (t *Tuning) ApplyDefaults() {
	if t.TickRateHz <= 0 {
		t.TickRateHz = 20
	}
	t.Scan.applyDefaults()
	t.Notify.applyDefaults()
	t.Rules.applyDefaults()
	t.Sandbox.applyDefaults()
}

func (s *ScanTuning) applyDefaults() {
	if s.RefreshEveryMs <= 0 {
		s.RefreshEveryMs = 5000
	}
	if s.ClearEveryMs <= 0 {
		s.ClearEveryMs = 90000
	}
	if s.PerfEveryMs <= 0 {
		s.PerfEveryMs = 10000
	}
	if s.MinIntervalMs <= 0 {
		s.MinIntervalMs = 100
	}
	if s.MaxIntervalMs <= 0 {
		s.MaxIntervalMs = 10000
	}
	if s.MaxIntervalMs < s.MinIntervalMs {
		s.MaxIntervalMs = s.MinIntervalMs
	}
	if s.LoadThreshold <= 0 {
		s.LoadThreshold = 150
	}
	if s.GraceDelayMs <= 0 {
		s.GraceDelayMs = 500
	}
	if s.OpenCollectDelayMs <= 0 {
		s.OpenCollectDelayMs = 100
	}
}

func (n *NotifyTuning) applyDefaults() {
	if n.FadeInMs <= 0 {
		n.FadeInMs = 250
	}
	if n.VisibleMs <= 0 {
		n.VisibleMs = 3500
	}
	if n.FadeOutMs <= 0 {
		n.FadeOutMs = 750
	}
	if n.SpacingPx <= 0 {
		n.SpacingPx = 42
	}
}

func (r *RuleTuning) applyDefaults() {
	if r.AllowKeys == nil {
		r.AllowKeys = []string{
			"Item_Cash", "Item_ColdCore", "Item_FlamingCore",
			"Item_Feather", "Item_BlackDogTag", "Item_SpaceCrystal",
		}
	}
	if r.DenyTags == nil {
		r.DenyTags = []string{"Grip", "Magazine", "Muzzle", "Scope", "Stock", "TecEquip"}
	}
	if r.ExcludedNames == nil {
		r.ExcludedNames = []string{"storage", "base", "tomb", "pet"}
	}
	if r.WeaponTag == "" {
		r.WeaponTag = "Gun"
	}
}

func (s *SandboxTuning) applyDefaults() {
	if s.Seed == 0 {
		s.Seed = 1337
	}
	if s.SpawnEveryTicks <= 0 {
		s.SpawnEveryTicks = 100
	}
	if s.MaxContainers <= 0 {
		s.MaxContainers = 64
	}
	if s.SpawnRadius <= 0 {
		s.SpawnRadius = 24
	}
	if s.StoreCapacity <= 0 {
		s.StoreCapacity = 40
	}
	if s.SnapshotEveryTicks <= 0 {
		s.SnapshotEveryTicks = 6000
	}
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func (s ScanTuning) RefreshEvery() time.Duration     { return ms(s.RefreshEveryMs) }
func (s ScanTuning) ClearEvery() time.Duration       { return ms(s.ClearEveryMs) }
func (s ScanTuning) PerfEvery() time.Duration        { return ms(s.PerfEveryMs) }
func (s ScanTuning) MinInterval() time.Duration      { return ms(s.MinIntervalMs) }
func (s ScanTuning) MaxInterval() time.Duration      { return ms(s.MaxIntervalMs) }
func (s ScanTuning) GraceDelay() time.Duration       { return ms(s.GraceDelayMs) }
func (s ScanTuning) OpenCollectDelay() time.Duration { return ms(s.OpenCollectDelayMs) }

func (n NotifyTuning) FadeIn() time.Duration  { return ms(n.FadeInMs) }
func (n NotifyTuning) Visible() time.Duration { return ms(n.VisibleMs) }
func (n NotifyTuning) FadeOut() time.Duration { return ms(n.FadeOutMs) }

// Load reads a tuning file, rejects unknown keys and schema violations, and fills defaults.
func Load(path string) (Tuning, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, err
	}
	return Parse(raw)
}

func Parse(raw []byte) (Tuning, error) {
	var t Tuning

	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := checkKnownKeys("", doc, reflect.TypeOf(t)); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := validateSchema(doc); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.ApplyDefaults()
	return t, nil
}

func validateSchema(doc map[string]any) error {
	if doc == nil {
		return nil
	}
	s, err := schemas.Compile(schemas.Tuning)
	if err != nil {
		return err
	}
	// Round-trip through JSON so the validator sees JSON-native types.
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return s.Validate(v)
}

func checkKnownKeys(prefix string, doc map[string]any, typ reflect.Type) error {
	known := yamlKeys(typ)
	names := make([]string, 0, len(known))
	for k := range known {
		names = append(names, k)
	}
	sort.Strings(names)

	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ft, ok := known[k]
		if !ok {
			if s := suggest(k, names); s != "" {
				return fmt.Errorf("%w %q (did you mean %q?)", ErrUnknownKey, prefix+k, prefix+s)
			}
			return fmt.Errorf("%w %q", ErrUnknownKey, prefix+k)
		}
		sub, isMap := doc[k].(map[string]any)
		if isMap && ft.Kind() == reflect.Struct {
			if err := checkKnownKeys(prefix+k+".", sub, ft); err != nil {
				return err
			}
		}
	}
	return nil
}

func yamlKeys(typ reflect.Type) map[string]reflect.Type {
	out := map[string]reflect.Type{}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		name := strings.Split(f.Tag.Get("yaml"), ",")[0]
		if name == "" || name == "-" {
			continue
		}
		out[name] = f.Type
	}
	return out
}

// suggest returns the closest known key within a small edit distance.
func suggest(key string, known []string) string {
	best := ""
	bestDist := 0
	for _, k := range known {
		d := levenshtein.ComputeDistance(key, k)
		if best == "" || d < bestDist {
			best, bestDist = k, d
		}
	}
	if best == "" || bestDist > len(key)/2+1 {
		return ""
	}
	return best
}
