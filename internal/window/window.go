// Package window computes crawl windows from persisted crawl state.
package window

import (
	"fmt"
	"strings"
	"time"

	"PaperNotifier/internal/domain"
)

// TimestampLayout is the persisted format of last_crawl_timestamp (YYYYMMDDHHMMSS, UTC).
const TimestampLayout = "20060102150405"

// FormatTimestamp renders t in the persisted layout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp reads a persisted crawl timestamp. Empty input is an error.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty crawl timestamp")
	}
	t, err := time.ParseInLocation(TimestampLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse crawl timestamp %q: %w", raw, err)
	}
	return t, nil
}

// Compute returns the window ending at lastCrawlEnd, or at now when the
// last end is unknown. Start is always end - lookback.
func Compute(lastCrawlEnd *time.Time, lookback time.Duration, now time.Time) domain.Window {
	if lookback < 0 {
		lookback = 0
	}
	end := now.UTC()
	if lastCrawlEnd != nil {
		end = lastCrawlEnd.UTC()
	}
	return domain.Window{Start: end.Add(-lookback), End: end}
}

// Advance moves a previously crawled window forward by the whole lookback
// periods elapsed since its end. When less than one period (plus slack) has
// passed the window is returned unchanged and will be re-crawled.
func Advance(last domain.Window, lookback, slack time.Duration, now time.Time) domain.Window {
	if lookback <= 0 {
		return last
	}
	elapsed := now.UTC().Add(slack).Sub(last.End)
	periods := int64(elapsed / lookback)
	if periods < 1 {
		return last
	}
	return domain.Window{
		Start: last.End,
		End:   last.End.Add(time.Duration(periods) * lookback),
	}
}

// Tracker yields the window for the next crawl and the last completed one.
type Tracker struct {
	slack time.Duration
	now   func() time.Time
}

// NewTracker builds a tracker; now defaults to time.Now.
func NewTracker(slack time.Duration, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{slack: slack, now: now}
}

// Last returns the window of the last successful crawl (or the bootstrap window).
// A stored start covers catch-up windows longer than one lookback period.
func (t *Tracker) Last(state domain.CrawlState, lookback time.Duration) domain.Window {
	w := Compute(state.LastCrawlEnd, lookback, t.now())
	if state.LastCrawlEnd != nil && state.LastCrawlStart != nil && state.LastCrawlStart.Before(w.End) {
		w.Start = state.LastCrawlStart.UTC()
	}
	return w
}

// Next returns the window the next ingestion pass should cover.
func (t *Tracker) Next(state domain.CrawlState, lookback time.Duration) domain.Window {
	now := t.now()
	w := Compute(state.LastCrawlEnd, lookback, now)
	if state.LastCrawlEnd == nil {
		return w
	}
	return Advance(w, lookback, t.slack, now)
}
