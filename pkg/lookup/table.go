// Package lookup implements the typed option lookup table used throughout
// sisdk: a case-insensitive string map with typed accessors for the value
// syntaxes the connections DSL produces (sizes, timespans, colors, levels,
// rotate modes, fixed-length byte arrays).
package lookup

import (
	"strconv"
	"strings"

	"github.com/sisdk/sisdk/pkg/level"
)

// Table is a normalized-key mapping from option name to raw string value.
// Keys are lower-cased on Set, Get, and Delete, matching the "LookupTable"
// data model entry in spec.md.
type Table struct {
	values map[string]string
}

// New returns an empty Table.
func New() *Table {
	return &Table{values: make(map[string]string)}
}

// Set stores value under the lower-cased key.
func (t *Table) Set(key, value string) {
	t.values[strings.ToLower(key)] = value
}

// Delete removes the lower-cased key.
func (t *Table) Delete(key string) {
	delete(t.values, strings.ToLower(key))
}

// Has reports whether key (case-insensitive) is present.
func (t *Table) Has(key string) bool {
	_, ok := t.values[strings.ToLower(key)]
	return ok
}

// StringDefault returns the raw string value for key, or def if absent.
func (t *Table) StringDefault(key, def string) string {
	if v, ok := t.values[strings.ToLower(key)]; ok {
		return v
	}
	return def
}

// Bool parses a boolean option. Trim+lower, true iff the value is one of
// "true", "1", "yes"; any other present value yields false, and only an
// absent key yields def.
func (t *Table) Bool(key string, def bool) bool {
	raw, ok := t.values[strings.ToLower(key)]
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

// Int parses a non-negative decimal integer option; any other content,
// including a missing key, yields def.
func (t *Table) Int(key string, def int) int {
	raw, ok := t.values[strings.ToLower(key)]
	if !ok {
		return def
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return def
		}
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// sizeUnits maps a 2-character, case-insensitive suffix to its multiplier.
var sizeUnits = map[string]int64{
	"kb": 1024,
	"mb": 1024 * 1024,
	"gb": 1024 * 1024 * 1024,
}

// Size parses a size option in bytes. A trailing 2-character unit
// (kb/mb/gb, case-insensitive) selects the multiplier; with no unit the
// value is implicitly KB. A missing key returns def*1024 (the default is
// expressed in KB, matching the teacher's KB-denominated MaxSize default).
func (t *Table) Size(key string, def int64) int64 {
	raw, ok := t.values[strings.ToLower(key)]
	if !ok {
		return def * 1024
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def * 1024
	}

	unit := int64(1024)
	numPart := raw
	if len(raw) > 2 {
		suffix := strings.ToLower(raw[len(raw)-2:])
		if mult, ok := sizeUnits[suffix]; ok {
			unit = mult
			numPart = strings.TrimSpace(raw[:len(raw)-2])
		}
	}

	n, err := strconv.ParseInt(numPart, 10, 64)
	if err != nil {
		return def * 1024
	}
	return n * unit
}

// timespanUnits maps a 1-character suffix to its millisecond multiplier.
var timespanUnits = map[byte]int64{
	's': 1000,
	'm': 60 * 1000,
	'h': 3600 * 1000,
	'd': 86400 * 1000,
}

// Timespan parses a duration option in milliseconds. A trailing 1-character
// unit (s/m/h/d) selects the multiplier; with no unit the value is
// implicitly seconds. A missing key (or unparsable value) returns
// def*1000.
func (t *Table) Timespan(key string, def int64) int64 {
	raw, ok := t.values[strings.ToLower(key)]
	if !ok {
		return def * 1000
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def * 1000
	}

	unit := int64(1000)
	numPart := raw
	if n := len(raw); n > 1 {
		if mult, ok := timespanUnits[raw[n-1]]; ok {
			unit = mult
			numPart = strings.TrimSpace(raw[:n-1])
		}
	}

	n, err := strconv.ParseInt(numPart, 10, 64)
	if err != nil {
		return def * 1000
	}
	return n * unit
}

// Level parses a level option name; unrecognized or missing values return
// def.
func (t *Table) Level(key string, def level.Level) level.Level {
	raw, ok := t.values[strings.ToLower(key)]
	if !ok {
		return def
	}
	if lv, ok := level.Parse(strings.TrimSpace(raw)); ok {
		return lv
	}
	return def
}

// Rotate is the file-rotation interval selector.
type Rotate int

const (
	RotateNone Rotate = iota
	RotateHourly
	RotateDaily
	RotateWeekly
	RotateMonthly
)

// Rotate parses a rotate-mode option; unrecognized or missing values
// return def.
func (t *Table) Rotate(key string, def Rotate) Rotate {
	raw, ok := t.values[strings.ToLower(key)]
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "none":
		return RotateNone
	case "hourly":
		return RotateHourly
	case "daily":
		return RotateDaily
	case "weekly":
		return RotateWeekly
	case "monthly":
		return RotateMonthly
	default:
		return def
	}
}

// Color is an ARGB color value, alpha-first to match the 4-byte on-wire
// form described in spec.md.
type Color struct {
	A, R, G, B byte
}

// Color parses a hex color prefixed by "0x", "&H", or "$". Odd-length hex
// gets a trailing "0" nibble. A 3-byte result is RRGGBB with alpha forced
// to 0xFF; a 4-byte result is AARRGGBB. Anything else (including a missing
// key) returns def.
func (t *Table) Color(key string, def Color) Color {
	raw, ok := t.values[strings.ToLower(key)]
	if !ok {
		return def
	}
	raw = strings.TrimSpace(raw)

	var hex string
	switch {
	case strings.HasPrefix(raw, "0x"), strings.HasPrefix(raw, "0X"):
		hex = raw[2:]
	case strings.HasPrefix(raw, "&H"), strings.HasPrefix(raw, "&h"):
		hex = raw[2:]
	case strings.HasPrefix(raw, "$"):
		hex = raw[1:]
	default:
		return def
	}

	if len(hex)%2 != 0 {
		hex += "0"
	}

	raw2, err := decodeHex(hex)
	if err != nil {
		return def
	}

	switch len(raw2) {
	case 3:
		return Color{A: 0xFF, R: raw2[0], G: raw2[1], B: raw2[2]}
	case 4:
		return Color{A: raw2[0], R: raw2[1], G: raw2[2], B: raw2[3]}
	default:
		return def
	}
}

func decodeHex(s string) ([]byte, error) {
	out := make([]byte, len(s)/2)
	for i := 0; i < len(out); i++ {
		hi, err := hexNibble(s[2*i])
		if err != nil {
			return nil, err
		}
		lo, err := hexNibble(s[2*i+1])
		if err != nil {
			return nil, err
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexNibble(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, strconv.ErrSyntax
	}
}

// Bytes parses a fixed-length byte-array option: the raw string is UTF-8
// encoded, then truncated or zero-padded to exactly n bytes. A missing key
// yields an all-zero array of length n.
func (t *Table) Bytes(key string, n int) []byte {
	raw := t.values[strings.ToLower(key)]
	out := make([]byte, n)
	copy(out, []byte(raw))
	return out
}
