package ids

import "testing"

func TestUnloadKeyRoundTrip(t *testing.T) {
	key := UnloadKey(42, 7)
	if key != "42_7" {
		t.Fatalf("key=%q want=42_7", key)
	}
	c, s, ok := ParseUnloadKey(key)
	if !ok {
		t.Fatalf("ParseUnloadKey failed for %q", key)
	}
	if c != 42 || s != 7 {
		t.Fatalf("unexpected parse result: container=%d slot=%d", c, s)
	}
}

func TestParseUnloadKeyRejectsInvalid(t *testing.T) {
	tests := []string{
		"",
		"42",
		"42_x",
		"x_1",
		"42_-1",
	}
	for _, tc := range tests {
		if _, _, ok := ParseUnloadKey(tc); ok {
			t.Fatalf("expected parse failure for %q", tc)
		}
	}
}

func TestWeaponFallbackKey(t *testing.T) {
	got := WeaponFallbackKey("AK-47", 9001, 1.234, -0.25, 10)
	want := "ID:AK-47|Instance:9001|Pos:1.23,-0.25,10.00"
	if got != want {
		t.Fatalf("got=%q want=%q", got, want)
	}

	got = WeaponFallbackKey("", 0, 0, 0, 0)
	if got != "Pos:0.00,0.00,0.00" {
		t.Fatalf("got=%q", got)
	}
}

func TestContainerLabel(t *testing.T) {
	if got := ContainerLabel(12); got != "C12" {
		t.Fatalf("got=%q want=C12", got)
	}
	for _, in := range []string{"C12", "12", " C12 "} {
		n, ok := ParseContainerLabel(in)
		if !ok || n != 12 {
			t.Fatalf("ParseContainerLabel(%q)=%d,%v", in, n, ok)
		}
	}
	if _, ok := ParseContainerLabel("Cx"); ok {
		t.Fatalf("expected failure")
	}
}

func TestParseContainerLabelRejectsInvalid(t *testing.T) {
	for _, in := range []string{"", "C", "c12", "C-1", "12x", "C 12"} {
		if n, ok := ParseContainerLabel(in); ok {
			t.Fatalf("ParseContainerLabel(%q)=%d want failure", in, n)
		}
	}
	if n, ok := uintAfterPrefix("C", "C18446744073709551615"); !ok || n != 18446744073709551615 {
		t.Fatalf("got=%d,%v want=max uint64", n, ok)
	}
	if _, ok := uintAfterPrefix("C", "12"); ok {
		t.Fatalf("expected prefix mismatch")
	}
}
