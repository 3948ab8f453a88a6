// Package feed loads bar history from CSV files and orders the universe.
package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/raykavin/tradeplan/pkg/core"
	"github.com/raykavin/tradeplan/pkg/decision"
	"github.com/samber/lo"
)

var (
	ErrUnknownSymbol = errors.New("unknown symbol")

	defaultHeaderMap = map[string]int{
		"time": 0, "open": 1, "close": 2, "low": 3, "high": 4, "volume": 5,
	}
	dateLayouts = []string{time.RFC3339, time.DateTime, time.DateOnly}
)

// Source describes the CSV history of one instrument
type Source struct {
	Symbol    string `mapstructure:"symbol" yaml:"symbol"`
	Sector    string `mapstructure:"sector" yaml:"sector"`
	File      string `mapstructure:"file" yaml:"file"`
	Timeframe string `mapstructure:"timeframe" yaml:"timeframe"`
}

// CSVFeed holds the bars of every source, resampled to one timeframe
type CSVFeed struct {
	Timeframe string
	universe  *Universe
	bars      map[string][]core.Bar
}

// NewCSVFeed reads every source and resamples it to the target timeframe.
// An empty target keeps each source timeframe.
func NewCSVFeed(target string, sources ...Source) (*CSVFeed, error) {
	feed := &CSVFeed{
		Timeframe: target,
		universe:  NewUniverse(),
		bars:      make(map[string][]core.Bar),
	}

	for _, source := range sources {
		file, err := os.Open(source.File)
		if err != nil {
			return nil, err
		}
		bars, err := ReadBars(file, source.Symbol)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", source.File, err)
		}

		if target != "" && source.Timeframe != "" {
			if bars, err = Resample(bars, source.Timeframe, target); err != nil {
				return nil, fmt.Errorf("%s: %w", source.Symbol, err)
			}
		}

		feed.Add(source.Symbol, source.Sector, bars)
	}

	return feed, nil
}

// Add registers or replaces the bars of a symbol
func (c *CSVFeed) Add(symbol, sector string, bars []core.Bar) {
	c.universe.Add(symbol, sector)
	c.bars[symbol] = bars
}

// Universe returns the loaded symbols in load order
func (c *CSVFeed) Universe() *Universe {
	return c.universe
}

// Bars returns the bars of a symbol
func (c *CSVFeed) Bars(symbol string) ([]core.Bar, error) {
	bars, ok := c.bars[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return bars, nil
}

// Limit keeps only the bars within duration of each symbol's last bar
func (c *CSVFeed) Limit(duration time.Duration) *CSVFeed {
	for symbol, bars := range c.bars {
		if len(bars) == 0 {
			continue
		}

		start := bars[len(bars)-1].Time.Add(-duration)
		c.bars[symbol] = lo.Filter(bars, func(bar core.Bar, _ int) bool {
			return bar.Time.After(start)
		})
	}
	return c
}

// Instruments returns the universe with its bars, in universe order.
// sector resolves symbols loaded without a sector.
func (c *CSVFeed) Instruments(sector func(symbol string) string) []decision.Instrument {
	symbols := c.universe.Symbols()
	instruments := make([]decision.Instrument, 0, len(symbols))
	for _, symbol := range symbols {
		in := decision.Instrument{
			Symbol: symbol,
			Sector: c.universe.Sector(symbol),
			Bars:   c.bars[symbol],
		}
		if in.Sector == "" && sector != nil {
			in.Sector = sector(symbol)
		}
		instruments = append(instruments, in)
	}
	return instruments
}

// parseHeaders detects a header row and maps column names to indexes
func parseHeaders(headers []string) (map[string]int, bool) {
	if _, err := parseTime(headers[0]); err == nil {
		return defaultHeaderMap, false
	}

	headerMap := make(map[string]int, len(headers))
	for index, header := range headers {
		name := strings.ToLower(strings.TrimSpace(header))
		switch name {
		case "date", "timestamp":
			name = "time"
		}
		headerMap[name] = index
	}

	for name := range defaultHeaderMap {
		if _, ok := headerMap[name]; !ok {
			return nil, true
		}
	}
	return headerMap, true
}

// ReadBars parses OHLCV rows. Without a header row, columns are time, open,
// close, low, high, volume. Times are unix seconds or dates. Rows are
// returned in time order.
func ReadBars(r io.Reader, symbol string) ([]core.Bar, error) {
	lines, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, nil
	}

	headerMap, hasHeader := parseHeaders(lines[0])
	if headerMap == nil {
		return nil, fmt.Errorf("header must name time, open, high, low, close and volume: %v", lines[0])
	}
	if hasHeader {
		lines = lines[1:]
	}

	bars := make([]core.Bar, 0, len(lines))
	for i, line := range lines {
		bar, err := parseBar(line, headerMap, symbol)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		bars = append(bars, bar)
	}

	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Time.Before(bars[j].Time)
	})

	return bars, nil
}

func parseBar(line []string, headerMap map[string]int, symbol string) (core.Bar, error) {
	timestamp, err := parseTime(line[headerMap["time"]])
	if err != nil {
		return core.Bar{}, err
	}

	bar := core.Bar{Symbol: symbol, Time: timestamp}

	for _, field := range []struct {
		name   string
		target *float64
	}{
		{"open", &bar.Open},
		{"high", &bar.High},
		{"low", &bar.Low},
		{"close", &bar.Close},
		{"volume", &bar.Volume},
	} {
		value, err := strconv.ParseFloat(strings.TrimSpace(line[headerMap[field.name]]), 64)
		if err != nil {
			return core.Bar{}, fmt.Errorf("%s: %w", field.name, err)
		}
		*field.target = value
	}

	return bar, nil
}

func parseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(seconds, 0).UTC(), nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q", value)
}
