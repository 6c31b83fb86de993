package protocol_test

import (
	"encoding/json"
	"testing"

	"lootsweep.ai/internal/protocol"
	"lootsweep.ai/internal/protocol/schemas"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	hud := schemas.MustCompile(schemas.HUD)
	cfg := schemas.MustCompile(schemas.Config)
	tun := schemas.MustCompile(schemas.Tuning)

	validate := func(name string, s interface{ Validate(any) error }, raw []byte) {
		t.Helper()
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if err := s.Validate(v); err != nil {
			t.Fatalf("%s: validate: %v", name, err)
		}
	}

	frame := protocol.HUDMsg{
		Type:            protocol.TypeHUD,
		ProtocolVersion: protocol.Version,
		Tick:            42,
		SessionID:       "s-1",
		Messages: []protocol.HUDMessage{
			{ID: 1, Text: "+ Auto pickup 9mm × 30", Count: 30, Kind: "PICKUP", Phase: "VISIBLE", Alpha: 1, X: -400, Y: -200},
			{ID: 2, Text: "+ Store full × 1", Count: 1, Kind: "FULL", Phase: "FADE_IN", Alpha: 0.2, X: -400, Y: -242},
		},
		Metrics: protocol.HUDMetrics{Active: true, CacheLen: 3},
	}
	b, _ := json.Marshal(frame)
	validate("hud", hud, b)

	empty, _ := json.Marshal(protocol.HUDMsg{Type: protocol.TypeHUD, ProtocolVersion: protocol.Version, Messages: []protocol.HUDMessage{}})
	validate("empty hud", hud, empty)

	validate("config", cfg, []byte(`{"enable_auto_collect":true,"pickup_radius":12,"scan_interval_sec":2}`))
	validate("tuning", tun, []byte(`{"tick_rate_hz":20,"scan":{"refresh_every_ms":5000}}`))
}

func TestSchemas_RejectInvalid(t *testing.T) {
	hud := schemas.MustCompile(schemas.HUD)
	var v any
	_ = json.Unmarshal([]byte(`{"type":"HUD","protocol_version":"1.0","tick":1,"messages":[{"id":1,"text":"x","count":1,"phase":"GONE","alpha":2,"x":0,"y":0}]}`), &v)
	if err := hud.Validate(v); err == nil {
		t.Fatalf("expected invalid phase/alpha rejected")
	}

	cfg := schemas.MustCompile(schemas.Config)
	_ = json.Unmarshal([]byte(`{"message_cooldown_sec":-1}`), &v)
	if err := cfg.Validate(v); err == nil {
		t.Fatalf("expected negative cooldown rejected")
	}
}

func TestDecodeBase(t *testing.T) {
	m, err := protocol.DecodeBase([]byte(`{"type":"SUBSCRIBE","protocol_version":"1.0"}`))
	if err != nil || m.Type != protocol.TypeSubscribe || m.ProtocolVersion != protocol.Version {
		t.Fatalf("got=%+v err=%v", m, err)
	}
}
