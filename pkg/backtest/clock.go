// Package backtest replays history through the decision pipeline on a single
// global clock and measures the result.
package backtest

import (
	"time"

	"github.com/raykavin/tradeplan/pkg/core"
)

// Clock merges the bars of every instrument into one timeline ordered by
// time, then symbol
type Clock struct {
	queue *core.PriorityQueue
}

// NewClock queues every bar of every series
func NewClock(series ...[]core.Bar) *Clock {
	var items []core.Item
	for _, bars := range series {
		for _, bar := range bars {
			items = append(items, bar)
		}
	}
	return &Clock{queue: core.NewPriorityQueue(items)}
}

// Next pops every bar stamped with the earliest remaining time, in symbol order
func (c *Clock) Next() (time.Time, []core.Bar, bool) {
	head := c.queue.Peek()
	if head == nil {
		return time.Time{}, nil, false
	}

	now := head.(core.Bar).Time
	items := c.queue.PopWhile(func(item core.Item) bool {
		return item.(core.Bar).Time.Equal(now)
	})

	bars := make([]core.Bar, len(items))
	for i, item := range items {
		bars[i] = item.(core.Bar)
	}
	return now, bars, true
}

// Len returns the number of bars not yet replayed
func (c *Clock) Len() int {
	return c.queue.Len()
}
