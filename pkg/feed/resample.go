package feed

import (
	"fmt"
	"math"
	"time"

	"github.com/raykavin/tradeplan/pkg/core"
	str2duration "github.com/xhit/go-str2duration/v2"
)

// periodStart returns the start of the target period holding t. Weeks
// start on Monday; other periods are truncated from the zero time.
func periodStart(t time.Time, target string, period time.Duration) time.Time {
	if target == "1w" {
		t = t.UTC()
		offset := (int(t.Weekday()) + 6) % 7
		return time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, time.UTC)
	}
	return t.UTC().Truncate(period)
}

// Resample aggregates bars of the source timeframe into the target one.
// The last period is dropped when its final source bar does not reach the
// period end, so a replay never sees a bar that was still forming.
func Resample(bars []core.Bar, source, target string) ([]core.Bar, error) {
	if source == target || len(bars) == 0 {
		return bars, nil
	}

	from, err := str2duration.ParseDuration(source)
	if err != nil {
		return nil, fmt.Errorf("source timeframe: %w", err)
	}
	period, err := str2duration.ParseDuration(target)
	if err != nil {
		return nil, fmt.Errorf("target timeframe: %w", err)
	}
	if period < from {
		return nil, fmt.Errorf("cannot resample %s into shorter %s", source, target)
	}

	var resampled []core.Bar

	var (
		current core.Bar
		start   time.Time
		last    time.Time
	)
	for i, bar := range bars {
		bucket := periodStart(bar.Time, target, period)
		if i == 0 || !bucket.Equal(start) {
			if i > 0 {
				resampled = append(resampled, current)
			}
			current = bar
			current.Time = bucket
			start = bucket
			last = bar.Time
			continue
		}

		current.High = math.Max(current.High, bar.High)
		current.Low = math.Min(current.Low, bar.Low)
		current.Close = bar.Close
		current.Volume += bar.Volume
		last = bar.Time
	}

	end := start.Add(period)
	if target == "1w" {
		// trading weeks end with the Friday session
		end = start.AddDate(0, 0, 5)
	}
	if !last.Add(from).Before(end) {
		resampled = append(resampled, current)
	}

	return resampled, nil
}
