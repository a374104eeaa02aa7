package util

import (
	"math"
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for _, s := range []string{"2024-03-01", "2024-03-01T15:04:05Z"} {
		got, ok := ParseDate(s)
		if !ok {
			t.Fatalf("expected ok for %q", s)
		}
		if !got.Equal(want) {
			t.Fatalf("unexpected date %v for %q", got, s)
		}
	}
	if _, ok := ParseDate("yesterday"); ok {
		t.Fatalf("expected failure")
	}
}

func TestParseFloatOrNaN(t *testing.T) {
	v, err := ParseFloatOrNaN(" 1.5 ")
	if err != nil || v != 1.5 {
		t.Fatalf("unexpected %v, %v", v, err)
	}
	v, err = ParseFloatOrNaN("")
	if err != nil || !math.IsNaN(v) {
		t.Fatalf("expected NaN, got %v, %v", v, err)
	}
	if _, err := ParseFloatOrNaN("abc"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" a, ,b ,")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected %v", got)
	}
}
