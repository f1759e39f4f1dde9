package lookup

import (
	"testing"

	"github.com/sisdk/sisdk/pkg/level"
)

func tableWith(kv map[string]string) *Table {
	tb := New()
	for k, v := range kv {
		tb.Set(k, v)
	}
	return tb
}

func TestSizeScenarios(t *testing.T) {
	cases := []struct {
		val  string
		want int64
	}{
		{"1KB", 1024},
		{"1", 1024},
		{"2 mb", 2 * 1024 * 1024},
		{"bad", 5 * 1024}, // falls back to def*1024
	}
	for _, c := range cases {
		tb := tableWith(map[string]string{"maxsize": c.val})
		got := tb.Size("maxsize", 5)
		if got != c.want {
			t.Errorf("Size(%q) = %d, want %d", c.val, got, c.want)
		}
	}

	// Missing key entirely.
	tb := New()
	if got := tb.Size("maxsize", 5); got != 5*1024 {
		t.Errorf("Size missing key = %d, want %d", got, 5*1024)
	}
}

func TestTimespanScenarios(t *testing.T) {
	cases := []struct {
		val  string
		want int64
	}{
		{"1s", 1000},
		{"2m", 120000},
		{"", 7000}, // falls back to def*1000
	}
	for _, c := range cases {
		tb := tableWith(map[string]string{"interval": c.val})
		got := tb.Timespan("interval", 7)
		if got != c.want {
			t.Errorf("Timespan(%q) = %d, want %d", c.val, got, c.want)
		}
	}
}

func TestBool(t *testing.T) {
	tb := tableWith(map[string]string{"a": "TRUE", "b": "1", "c": "yes", "d": "nope"})
	if !tb.Bool("a", false) || !tb.Bool("b", false) || !tb.Bool("c", false) {
		t.Error("expected true values to parse true")
	}
	if tb.Bool("d", false) {
		t.Error("expected 'nope' to parse false")
	}
	if !tb.Bool("missing", true) {
		t.Error("missing key should return default")
	}
}

func TestLevel(t *testing.T) {
	tb := tableWith(map[string]string{"level": "warning"})
	if got := tb.Level("level", level.Debug); got != level.Warning {
		t.Errorf("Level = %v, want Warning", got)
	}
	if got := tb.Level("missing", level.Error); got != level.Error {
		t.Errorf("Level missing = %v, want Error default", got)
	}
}

func TestColorScenarios(t *testing.T) {
	def := Color{A: 1, R: 2, G: 3, B: 4}

	tb := tableWith(map[string]string{"c": "0xFF8040"})
	got := tb.Color("c", def)
	want := Color{A: 255, R: 255, G: 128, B: 64}
	if got != want {
		t.Errorf("0xFF8040 = %+v, want %+v", got, want)
	}

	tb = tableWith(map[string]string{"c": "0x80FF8040"})
	got = tb.Color("c", def)
	want = Color{A: 128, R: 255, G: 128, B: 64}
	if got != want {
		t.Errorf("0x80FF8040 = %+v, want %+v", got, want)
	}

	// Odd-length hex "123" pads to "1230" -> 2 bytes -> not 3 or 4 -> default.
	tb = tableWith(map[string]string{"c": "0x123"})
	got = tb.Color("c", def)
	if got != def {
		t.Errorf("0x123 = %+v, want default %+v", got, def)
	}
}

func TestBytesFixedLength(t *testing.T) {
	tb := tableWith(map[string]string{"key": "hello"})
	out := tb.Bytes("key", 8)
	if len(out) != 8 {
		t.Fatalf("len = %d, want 8", len(out))
	}
	if string(out[:5]) != "hello" || out[5] != 0 || out[6] != 0 || out[7] != 0 {
		t.Errorf("padded bytes = %v", out)
	}

	tb = tableWith(map[string]string{"key": "thisiswaytoolongforthearray"})
	out = tb.Bytes("key", 4)
	if string(out) != "this" {
		t.Errorf("truncated bytes = %q, want %q", out, "this")
	}
}

func TestRotate(t *testing.T) {
	tb := tableWith(map[string]string{"rotate": "daily"})
	if got := tb.Rotate("rotate", RotateNone); got != RotateDaily {
		t.Errorf("Rotate = %v, want RotateDaily", got)
	}
}

func TestCaseInsensitiveKeys(t *testing.T) {
	tb := New()
	tb.Set("MaxSize", "4kb")
	if !tb.Has("maxsize") {
		t.Error("keys should be case-insensitive")
	}
	tb.Delete("MAXSIZE")
	if tb.Has("maxsize") {
		t.Error("delete should be case-insensitive")
	}
}
