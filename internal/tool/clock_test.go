package tool

import (
	"context"
	"testing"
	"time"
)

// fixedClock pins the tool to a known instant: Sunday 2025-06-01 14:03:07 UTC.
func fixedClock(t *testing.T) *ClockTool {
	t.Helper()
	clock := NewClockTool()
	clock.loc = time.UTC
	clock.now = func() time.Time {
		return time.Date(2025, time.June, 1, 14, 3, 7, 0, time.UTC)
	}
	return clock
}

func TestClockRead_PortugueseLexicon(t *testing.T) {
	r := fixedClock(t).Read()
	if r.DayOfWeek != "domingo" {
		t.Fatalf("expected 'domingo', got %q", r.DayOfWeek)
	}
	if r.Month != "junho" {
		t.Fatalf("expected 'junho', got %q", r.Month)
	}
	want := "domingo, 1 de junho de 2025, 14:03:07"
	if r.Formatted != want {
		t.Fatalf("expected %q, got %q", want, r.Formatted)
	}
}

func TestClockRead_DayNightFlag(t *testing.T) {
	clock := fixedClock(t)
	for _, tc := range []struct {
		hour  int
		isDay bool
	}{
		{5, false}, {6, true}, {17, true}, {18, false}, {23, false},
	} {
		clock.now = func() time.Time {
			return time.Date(2025, time.June, 1, tc.hour, 0, 0, 0, time.UTC)
		}
		if got := clock.Read().IsDay; got != tc.isDay {
			t.Fatalf("hour %d: expected isDay=%v, got %v", tc.hour, tc.isDay, got)
		}
	}
}

func TestClockRead_SingleSample(t *testing.T) {
	clock := fixedClock(t)
	reads := 0
	clock.now = func() time.Time {
		reads++
		return time.Date(2025, time.June, 1, 14, 3, 7, 0, time.UTC)
	}
	clock.Read()
	if reads != 1 {
		t.Fatalf("Read must sample the clock exactly once, sampled %d times", reads)
	}
}

func TestClockExecute_Fields(t *testing.T) {
	out, err := fixedClock(t).Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out["dayOfWeek"] != "domingo" || out["month"] != "junho" {
		t.Fatalf("unexpected lexicon fields: %v", out)
	}
	if out["hours"] != 14 || out["minutes"] != 3 || out["seconds"] != 7 {
		t.Fatalf("unexpected time fields: %v", out)
	}
	if out["isDay"] != true {
		t.Fatalf("expected isDay=true at 14h, got %v", out["isDay"])
	}
	if _, ok := out["timestamp"].(int64); !ok {
		t.Fatalf("timestamp should be epoch millis, got %T", out["timestamp"])
	}
}

func TestNewClockTool_Zone(t *testing.T) {
	clock := NewClockTool()
	r := clock.Read()
	if r.DayOfWeek == "" || r.Month == "" {
		t.Fatalf("reading missing lexicon fields: %+v", r)
	}
}
