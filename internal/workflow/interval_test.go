package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const monday = 1

func mustInterval(t *testing.T, day int, start, end string) Interval {
	t.Helper()
	iv, err := NewInterval(day, start, end)
	require.NoError(t, err)
	return iv
}

func TestOverlapsReferenceCases(t *testing.T) {
	a := mustInterval(t, monday, "09:00", "10:00")

	assert.True(t, Overlaps(a, mustInterval(t, monday, "09:30", "10:30")))
	assert.False(t, Overlaps(a, mustInterval(t, monday, "10:00", "11:00")), "adjacent intervals do not overlap")
	assert.False(t, Overlaps(a, mustInterval(t, 2, "09:00", "10:00")), "different days never overlap")
	assert.True(t, Overlaps(a, mustInterval(t, monday, "08:00", "12:00")), "containing interval overlaps")
	assert.True(t, Overlaps(mustInterval(t, monday, "08:00", "12:00"), a), "contained interval overlaps")
}

func TestNewIntervalRejectsMalformedInput(t *testing.T) {
	cases := []struct {
		name       string
		day        int
		start, end string
	}{
		{"day too large", 7, "09:00", "10:00"},
		{"negative day", -1, "09:00", "10:00"},
		{"start equals end", monday, "09:00", "09:00"},
		{"start after end", monday, "11:00", "10:00"},
		{"bad hour", monday, "24:00", "10:00"},
		{"bad minutes", monday, "09:60", "10:00"},
		{"not a clock", monday, "9am", "10:00"},
		{"signed start", monday, "-0:30", "10:00"},
		{"signed hour", monday, "+9:00", "10:00"},
		{"spaced end", monday, "09:00", " 9:30"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewInterval(tc.day, tc.start, tc.end)
			assert.Error(t, err)
		})
	}
}

func TestFindConflictsReportsAllOrderedByStart(t *testing.T) {
	existing := []Interval{
		mustInterval(t, monday, "11:00", "12:00"),
		mustInterval(t, monday, "08:00", "09:30"),
		mustInterval(t, monday, "12:00", "13:00"),
		mustInterval(t, 3, "09:00", "12:00"),
	}
	hits := FindConflicts(mustInterval(t, monday, "09:00", "11:30"), existing)
	assert.Equal(t, []int{1, 0}, hits)
}

func TestParseClockRequiresDigits(t *testing.T) {
	for _, raw := range []string{"-0:30", "+9:00", " 9:00", "09:-1", "09:+5", "0x:00"} {
		_, err := ParseClock(raw)
		assert.Error(t, err, raw)
	}
	minutes, err := ParseClock("23:59")
	require.NoError(t, err)
	assert.Equal(t, 23*60+59, minutes)
}

func TestClockRoundTrip(t *testing.T) {
	rapid.Check(t, func(r *rapid.T) {
		minutes := rapid.IntRange(0, 24*60-1).Draw(r, "minutes")
		parsed, err := ParseClock(FormatClock(minutes))
		if err != nil {
			r.Fatalf("parse %s: %v", FormatClock(minutes), err)
		}
		if parsed != minutes {
			r.Fatalf("got %d want %d", parsed, minutes)
		}
	})
}

func drawInterval(r *rapid.T, label string) Interval {
	day := rapid.IntRange(0, 6).Draw(r, label+"_day")
	start := rapid.IntRange(0, 24*60-2).Draw(r, label+"_start")
	end := rapid.IntRange(start+1, 24*60-1).Draw(r, label+"_end")
	return Interval{Day: day, Start: start, End: end}
}

func TestOverlapsIsSymmetric(t *testing.T) {
	rapid.Check(t, func(r *rapid.T) {
		a := drawInterval(r, "a")
		b := drawInterval(r, "b")
		if Overlaps(a, b) != Overlaps(b, a) {
			r.Fatalf("asymmetric: %+v %+v", a, b)
		}
	})
}

func TestOverlapsMatchesMinuteSampling(t *testing.T) {
	rapid.Check(t, func(r *rapid.T) {
		a := drawInterval(r, "a")
		b := drawInterval(r, "b")
		shared := false
		if a.Day == b.Day {
			for m := a.Start; m < a.End; m++ {
				if m >= b.Start && m < b.End {
					shared = true
					break
				}
			}
		}
		if Overlaps(a, b) != shared {
			r.Fatalf("overlap %v but shared minute %v for %+v %+v", Overlaps(a, b), shared, a, b)
		}
	})
}

func TestIntervalOverlapsItself(t *testing.T) {
	rapid.Check(t, func(r *rapid.T) {
		a := drawInterval(r, "a")
		if !Overlaps(a, a) {
			r.Fatalf("%+v does not overlap itself", a)
		}
	})
}
