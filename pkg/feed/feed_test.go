package feed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/raykavin/tradeplan/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestReadBars(t *testing.T) {
	t.Run("header with dates", func(t *testing.T) {
		input := "Date,Open,High,Low,Close,Volume\n" +
			"2024-01-03,11,12,10,11.5,2000\n" +
			"2024-01-02,10,11,9,10.5,1000\n"

		bars, err := ReadBars(strings.NewReader(input), "AAPL")
		require.NoError(t, err)
		require.Len(t, bars, 2)
		assert.Equal(t, date("2024-01-02"), bars[0].Time)
		assert.Equal(t, core.Bar{Symbol: "AAPL", Time: date("2024-01-03"), Open: 11, High: 12, Low: 10, Close: 11.5, Volume: 2000}, bars[1])
	})

	t.Run("default columns", func(t *testing.T) {
		input := "1704153600,10,10.5,9,11,1000\n"

		bars, err := ReadBars(strings.NewReader(input), "AAPL")
		require.NoError(t, err)
		require.Len(t, bars, 1)
		assert.Equal(t, date("2024-01-02"), bars[0].Time)
		assert.Equal(t, 10.5, bars[0].Close)
		assert.Equal(t, 9.0, bars[0].Low)
		assert.Equal(t, 11.0, bars[0].High)
	})

	t.Run("missing column", func(t *testing.T) {
		_, err := ReadBars(strings.NewReader("time,open,close\n"), "AAPL")
		assert.Error(t, err)
	})

	t.Run("bad value", func(t *testing.T) {
		_, err := ReadBars(strings.NewReader("time,open,high,low,close,volume\n2024-01-02,x,1,1,1,1\n"), "AAPL")
		assert.ErrorContains(t, err, "open")
	})
}

func dailyBars(symbol string, from time.Time, n int) []core.Bar {
	bars := make([]core.Bar, 0, n)
	for i := 0; len(bars) < n; i++ {
		t := from.AddDate(0, 0, i)
		if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
			continue
		}
		price := float64(100 + len(bars))
		bars = append(bars, core.Bar{Symbol: symbol, Time: t, Open: price, High: price + 2, Low: price - 1, Close: price + 1, Volume: 100})
	}
	return bars
}

func TestResample(t *testing.T) {
	// Monday 2024-01-01, eleven sessions: two full weeks and a Monday
	bars := dailyBars("AAPL", date("2024-01-01"), 11)

	weekly, err := Resample(bars, "1d", "1w")
	require.NoError(t, err)
	require.Len(t, weekly, 2)

	assert.Equal(t, date("2024-01-01"), weekly[0].Time)
	assert.Equal(t, 100.0, weekly[0].Open)
	assert.Equal(t, 106.0, weekly[0].High)
	assert.Equal(t, 99.0, weekly[0].Low)
	assert.Equal(t, 105.0, weekly[0].Close)
	assert.Equal(t, 500.0, weekly[0].Volume)
	assert.Equal(t, date("2024-01-08"), weekly[1].Time)

	same, err := Resample(bars, "1d", "1d")
	require.NoError(t, err)
	assert.Equal(t, bars, same)

	_, err = Resample(bars, "1d", "1h")
	assert.Error(t, err)
}

func TestCSVFeed(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		return path
	}

	header := "date,open,high,low,close,volume\n"
	msft := write("msft.csv", header+"2024-01-02,10,11,9,10.5,100\n2024-01-03,10.5,12,10,11,100\n2024-01-04,11,13,10,12,100\n")
	aapl := write("aapl.csv", header+"2024-01-02,20,21,19,20.5,100\n")

	feed, err := NewCSVFeed("1d",
		Source{Symbol: "MSFT", Sector: "Software", File: msft, Timeframe: "1d"},
		Source{Symbol: "AAPL", File: aapl, Timeframe: "1d"},
		Source{Symbol: "MSFT", File: msft, Timeframe: "1d"},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"MSFT", "AAPL"}, feed.Universe().Symbols())
	assert.Equal(t, 2, feed.Universe().Len())
	assert.True(t, feed.Universe().Contains("AAPL"))
	assert.False(t, feed.Universe().Contains("NVDA"))

	instruments := feed.Instruments(func(string) string { return "Hardware" })
	require.Len(t, instruments, 2)
	assert.Equal(t, "Software", instruments[0].Sector)
	assert.Equal(t, "Hardware", instruments[1].Sector)
	assert.Len(t, instruments[0].Bars, 3)

	_, err = feed.Bars("NVDA")
	assert.ErrorIs(t, err, ErrUnknownSymbol)

	feed.Limit(36 * time.Hour)
	bars, err := feed.Bars("MSFT")
	require.NoError(t, err)
	assert.Len(t, bars, 2)

	_, err = NewCSVFeed("1d", Source{Symbol: "X", File: filepath.Join(dir, "missing.csv")})
	assert.Error(t, err)
}

func TestUniverse(t *testing.T) {
	u := NewUniverse("NVDA", "AAPL", "NVDA")
	u.Add("MSFT", "Software")
	u.Add("AAPL", "Hardware")

	assert.Equal(t, []string{"NVDA", "AAPL", "MSFT"}, u.Symbols())
	assert.Equal(t, "Hardware", u.Sector("AAPL"))
	assert.Empty(t, u.Sector("NVDA"))
}
