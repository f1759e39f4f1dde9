// Package rotater implements the calendar-bucket boundary detector used by
// file-based protocols to decide when to roll over to a new file
// (spec.md §4.J). It tracks only "which bucket is T in", never the file
// itself — pkg/protocol/fileproto owns the actual rotate-and-reopen.
package rotater

import "time"

// Mode selects the bucket granularity.
type Mode int

const (
	None Mode = iota
	Hourly
	Daily
	Weekly
	Monthly
)

// Rotater tracks the current calendar bucket and reports when a new
// timestamp crosses into a different one.
type Rotater struct {
	mode   Mode
	bucket time.Time
	init   bool
}

// New returns a Rotater for the given mode. It must be seeded with
// Initialize before the first Update.
func New(mode Mode) *Rotater {
	return &Rotater{mode: mode}
}

// Initialize records bucket(t) as the starting point, per spec.md §4.J
// "initialize(T) records bucket(T)".
func (r *Rotater) Initialize(t time.Time) {
	r.bucket = bucketStart(r.mode, t)
	r.init = true
}

// Update reports whether t has crossed into a new bucket relative to the
// last Initialize/Update call, and if so stores the new bucket.
func (r *Rotater) Update(t time.Time) bool {
	next := bucketStart(r.mode, t)
	if !r.init {
		r.bucket = next
		r.init = true
		return false
	}
	if next.Equal(r.bucket) {
		return false
	}
	r.bucket = next
	return true
}

// bucketStart computes the start of the bucket containing t (always in
// UTC, per spec.md §4.J).
func bucketStart(mode Mode, t time.Time) time.Time {
	t = t.UTC()
	switch mode {
	case Hourly:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
	case Daily:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case Weekly:
		return startOfISOWeek(t)
	case Monthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return t
	}
}

// startOfISOWeek returns the Monday (ISO-8601 first day of week) at
// midnight UTC of the week containing t.
func startOfISOWeek(t time.Time) time.Time {
	day := t.Weekday()
	// time.Sunday == 0; ISO week starts Monday, so Sunday is 6 days after
	// the preceding Monday.
	offset := int(day) - int(time.Monday)
	if offset < 0 {
		offset += 7
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return d.AddDate(0, 0, -offset)
}
