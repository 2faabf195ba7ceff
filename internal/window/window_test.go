package window

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PaperNotifier/internal/domain"
)

func TestComputeBootstrap(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)
	w := Compute(nil, 24*time.Hour, now)

	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, now, w.End)
}

func TestComputeFromLastEnd(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	for _, hours := range []int{0, 1, 6, 24, 72} {
		last := time.Date(2024, time.March, 9, 6, 30, 0, 0, time.UTC)
		lookback := time.Duration(hours) * time.Hour
		w := Compute(&last, lookback, now)

		assert.Equal(t, last, w.End)
		assert.Equal(t, w.End.Add(-lookback), w.Start)
		assert.False(t, w.Start.After(w.End))
	}
}

func TestComputeNegativeLookbackNeverInverts(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	w := Compute(nil, -time.Hour, now)
	assert.Equal(t, w.Start, w.End)
}

func TestTimestampRoundTrip(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC)
	raw := FormatTimestamp(ts)
	assert.Equal(t, "20240102030405", raw)

	parsed, err := ParseTimestamp(raw)
	require.NoError(t, err)
	assert.True(t, ts.Equal(parsed))
}

func TestParseTimestampRejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "  ", "2024-01-02", "yesterday"} {
		_, err := ParseTimestamp(raw)
		assert.Error(t, err, raw)
	}
}

func TestAdvance(t *testing.T) {
	t.Parallel()

	day := 24 * time.Hour
	lastEnd := time.Date(2024, time.January, 2, 6, 0, 0, 0, time.UTC)
	last := domain.Window{Start: lastEnd.Add(-day), End: lastEnd}

	tests := []struct {
		name string
		now  time.Time
		want domain.Window
	}{
		{
			name: "same period re-runs the last window",
			now:  lastEnd.Add(3 * time.Hour),
			want: last,
		},
		{
			name: "one period later moves forward",
			now:  lastEnd.Add(day),
			want: domain.Window{Start: lastEnd, End: lastEnd.Add(day)},
		},
		{
			name: "early trigger within slack still moves forward",
			now:  lastEnd.Add(day - time.Minute),
			want: domain.Window{Start: lastEnd, End: lastEnd.Add(day)},
		},
		{
			name: "missed periods widen the window",
			now:  lastEnd.Add(3*day + time.Hour),
			want: domain.Window{Start: lastEnd, End: lastEnd.Add(3 * day)},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Advance(last, day, 5*time.Minute, tc.now)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestTrackerNext(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.January, 3, 6, 0, 1, 0, time.UTC)
	tracker := NewTracker(5*time.Minute, func() time.Time { return now })

	boot := tracker.Next(domain.CrawlState{}, 24*time.Hour)
	assert.Equal(t, now, boot.End)

	lastEnd := time.Date(2024, time.January, 2, 6, 0, 0, 0, time.UTC)
	next := tracker.Next(domain.CrawlState{LastCrawlEnd: &lastEnd}, 24*time.Hour)
	assert.Equal(t, lastEnd, next.Start)
	assert.Equal(t, lastEnd.Add(24*time.Hour), next.End)

	prev := tracker.Last(domain.CrawlState{LastCrawlEnd: &lastEnd}, 24*time.Hour)
	assert.Equal(t, lastEnd, prev.End)
	assert.Equal(t, lastEnd.Add(-24*time.Hour), prev.Start)
}

func TestTrackerLastUsesStoredStart(t *testing.T) {
	t.Parallel()

	tracker := NewTracker(5*time.Minute, nil)
	end := time.Date(2024, time.January, 5, 6, 0, 0, 0, time.UTC)
	start := end.Add(-72 * time.Hour)

	got := tracker.Last(domain.CrawlState{LastCrawlEnd: &end, LastCrawlStart: &start}, 24*time.Hour)
	assert.Equal(t, domain.Window{Start: start, End: end}, got)

	after := end.Add(time.Hour)
	got = tracker.Last(domain.CrawlState{LastCrawlEnd: &end, LastCrawlStart: &after}, 24*time.Hour)
	assert.Equal(t, end.Add(-24*time.Hour), got.Start, "a start past the end is ignored")
}
