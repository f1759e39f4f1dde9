package rotater

import (
	"testing"
	"time"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatal(err)
	}
	return ts
}

func TestHourlyCrossesOnHourBoundary(t *testing.T) {
	r := New(Hourly)
	r.Initialize(mustParse(t, "2026-07-30T10:30:00Z"))
	if r.Update(mustParse(t, "2026-07-30T10:59:59Z")) {
		t.Fatal("should not cross within the same hour")
	}
	if !r.Update(mustParse(t, "2026-07-30T11:00:00Z")) {
		t.Fatal("should cross at the hour boundary")
	}
}

func TestDailyCrossesAtMidnightUTC(t *testing.T) {
	r := New(Daily)
	r.Initialize(mustParse(t, "2026-07-30T23:59:59Z"))
	if !r.Update(mustParse(t, "2026-07-31T00:00:00Z")) {
		t.Fatal("should cross at midnight UTC")
	}
}

func TestMonthlyCrossesAtMonthBoundary(t *testing.T) {
	r := New(Monthly)
	r.Initialize(mustParse(t, "2026-07-31T12:00:00Z"))
	if !r.Update(mustParse(t, "2026-08-01T00:00:00Z")) {
		t.Fatal("should cross at month boundary")
	}
}

func TestWeeklyBucketStartsMonday(t *testing.T) {
	r := New(Weekly)
	// 2026-07-30 is a Thursday.
	r.Initialize(mustParse(t, "2026-07-30T12:00:00Z"))
	// Still the same ISO week (Mon 2026-07-27 .. Sun 2026-08-02).
	if r.Update(mustParse(t, "2026-08-02T23:59:59Z")) {
		t.Fatal("should not cross within the same ISO week")
	}
	if !r.Update(mustParse(t, "2026-08-03T00:00:00Z")) {
		t.Fatal("should cross into the next week starting Monday")
	}
}

func TestUpdateWithoutInitializeSeedsAndReportsNoCrossing(t *testing.T) {
	r := New(Daily)
	if r.Update(mustParse(t, "2026-07-30T00:00:00Z")) {
		t.Fatal("first Update after construction should seed, not report a crossing")
	}
}
