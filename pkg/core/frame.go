package core

import (
	"fmt"
	"time"
)

// Frame is the column-oriented OHLCV history of one instrument
type Frame struct {
	Symbol string

	Open   Series[float64]
	High   Series[float64]
	Low    Series[float64]
	Close  Series[float64]
	Volume Series[float64]

	Time       []time.Time
	LastUpdate time.Time
}

// NewFrame builds a frame from an ordered bar slice
func NewFrame(symbol string, bars []Bar) *Frame {
	frame := &Frame{
		Symbol: symbol,
		Open:   make(Series[float64], 0, len(bars)),
		High:   make(Series[float64], 0, len(bars)),
		Low:    make(Series[float64], 0, len(bars)),
		Close:  make(Series[float64], 0, len(bars)),
		Volume: make(Series[float64], 0, len(bars)),
		Time:   make([]time.Time, 0, len(bars)),
	}

	for _, bar := range bars {
		frame.append(bar)
	}

	return frame
}

// Len returns the number of bars held by the frame
func (f *Frame) Len() int {
	return len(f.Time)
}

// Append adds a bar to the end of the frame. Bars older than or equal to the
// last stored bar are rejected with ErrInvalidBar.
func (f *Frame) Append(bar Bar) error {
	if f.IsLate(bar) {
		return fmt.Errorf("%w: late bar for %s at %s", ErrInvalidBar, bar.Symbol, bar.Time.Format(time.RFC3339))
	}

	if err := bar.Validate(); err != nil {
		return err
	}

	f.append(bar)
	return nil
}

func (f *Frame) append(bar Bar) {
	f.Open = append(f.Open, bar.Open)
	f.High = append(f.High, bar.High)
	f.Low = append(f.Low, bar.Low)
	f.Close = append(f.Close, bar.Close)
	f.Volume = append(f.Volume, bar.Volume)
	f.Time = append(f.Time, bar.Time)
	f.LastUpdate = bar.Time
}

// IsLate checks if a bar is not newer than the latest one in the frame
func (f *Frame) IsLate(bar Bar) bool {
	return len(f.Time) > 0 && !bar.Time.After(f.Time[len(f.Time)-1])
}

// Bar returns the bar stored at index i
func (f *Frame) Bar(i int) Bar {
	return Bar{
		Symbol: f.Symbol,
		Time:   f.Time[i],
		Open:   f.Open[i],
		High:   f.High[i],
		Low:    f.Low[i],
		Close:  f.Close[i],
		Volume: f.Volume[i],
	}
}

// LastBar returns the most recent bar
func (f *Frame) LastBar() Bar {
	return f.Bar(f.Len() - 1)
}

// Bars returns the frame content as bars
func (f *Frame) Bars() []Bar {
	bars := make([]Bar, f.Len())
	for i := range bars {
		bars[i] = f.Bar(i)
	}
	return bars
}

// Sample returns a subset of the frame with the last 'positions' elements
// Used for bounded look-back windows
func (f *Frame) Sample(positions int) *Frame {
	size := len(f.Time)
	start := size - positions

	if start <= 0 {
		return f
	}

	return &Frame{
		Symbol:     f.Symbol,
		Open:       f.Open.LastValues(positions),
		High:       f.High.LastValues(positions),
		Low:        f.Low.LastValues(positions),
		Close:      f.Close.LastValues(positions),
		Volume:     f.Volume.LastValues(positions),
		Time:       f.Time[start:],
		LastUpdate: f.LastUpdate,
	}
}

// Slice returns the bars in [start, end) as a frame sharing the same storage
func (f *Frame) Slice(start, end int) *Frame {
	if start < 0 {
		start = 0
	}
	if end > f.Len() {
		end = f.Len()
	}
	if start > end {
		start = end
	}

	sliced := &Frame{
		Symbol: f.Symbol,
		Open:   f.Open[start:end],
		High:   f.High[start:end],
		Low:    f.Low[start:end],
		Close:  f.Close[start:end],
		Volume: f.Volume[start:end],
		Time:   f.Time[start:end],
	}
	if end > start {
		sliced.LastUpdate = f.Time[end-1]
	}
	return sliced
}
