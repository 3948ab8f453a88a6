package indicator

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/raykavin/tradeplan/pkg/core"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func makeBars(symbol string, n int) []core.Bar {
	bars := make([]core.Bar, n)
	price := 100.0
	for i := range bars {
		drift := 0.8*math.Sin(float64(i)/5) + 0.05
		open := price
		closePrice := price + drift
		bars[i] = core.Bar{
			Symbol: symbol,
			Time:   start.AddDate(0, 0, i),
			Open:   open,
			High:   math.Max(open, closePrice) + 0.5,
			Low:    math.Min(open, closePrice) - 0.5,
			Close:  closePrice,
			Volume: 1000 + float64(i%7)*100,
		}
		price = closePrice
	}
	return bars
}

func TestCatalogueLookback(t *testing.T) {
	catalogue := DefaultCatalogue()
	require.Equal(t, 50, catalogue.MinLookback())
	require.Equal(t, DefaultWindow, catalogue.Window())

	_, err := NewCatalogue(10, DefaultDefinitions()...)
	require.Error(t, err)

	dup := smaDefinition(SMA20, 20, true)
	_, err = NewCatalogue(100, dup, dup)
	require.Error(t, err)
}

func TestEngineFreshListing(t *testing.T) {
	engine := NewEngine(nil)

	snapshots, err := engine.Compute(makeBars("NEW", 30))
	require.True(t, errors.Is(err, core.ErrInsufficientHistory))
	require.Empty(t, snapshots)

	_, err = engine.Snapshot(makeBars("NEW", 49))
	require.ErrorIs(t, err, core.ErrInsufficientHistory)
}

func TestEngineInvalidBar(t *testing.T) {
	bars := makeBars("AAPL", 60)
	bars[30].Time = bars[29].Time

	_, err := NewEngine(nil).Compute(bars)
	require.ErrorIs(t, err, core.ErrInvalidBar)

	bars = makeBars("AAPL", 60)
	bars[10].Volume = 0
	_, err = NewEngine(nil).Compute(bars)
	require.ErrorIs(t, err, core.ErrInvalidBar)
}

func TestEngineCompute(t *testing.T) {
	bars := makeBars("AAPL", 120)
	snapshots, err := NewEngine(nil).Compute(bars)
	require.NoError(t, err)
	require.Len(t, snapshots, 71)

	require.Equal(t, bars[49].Time, snapshots[0].Time)
	require.Equal(t, bars[119].Time, snapshots[70].Time)
	require.Equal(t, bars[48], snapshots[0].Previous)

	for i, snapshot := range snapshots {
		require.True(t, snapshot.Has(SMA20, SMA50, EMA9, EMA21, MACDHist, ADXValue, RSIValue, ATRValue, VolumeRatio))
		require.False(t, snapshot.Has(SMA200), "sma_200 needs 200 bars")
		for name, v := range snapshot.Values {
			require.Truef(t, core.Defined(v), "%s undefined at %d", name, i)
		}
		if i > 0 {
			require.True(t, snapshot.Time.After(snapshots[i-1].Time))
		}
	}

	// Ichimoku spans need 78 bars
	require.False(t, snapshots[27].Has(IchimokuSpanB))
	require.True(t, snapshots[28].Has(IchimokuSpanB))
}

func TestEngineSnapshotMatchesReplay(t *testing.T) {
	bars := makeBars("MSFT", 300)
	engine := NewEngine(nil)

	replay, err := engine.Compute(bars)
	require.NoError(t, err)

	for _, end := range []int{50, 140, 270, 300} {
		live, err := engine.Snapshot(bars[:end])
		require.NoError(t, err)
		require.Equal(t, replay[end-50].Values, live.Values)
		require.Equal(t, replay[end-50].PrevValues, live.PrevValues)
	}

	again, err := engine.Compute(bars)
	require.NoError(t, err)
	require.Equal(t, replay, again)
}

func TestEngineFlatSeriesHasNoNaN(t *testing.T) {
	bars := make([]core.Bar, 60)
	for i := range bars {
		bars[i] = core.Bar{Symbol: "FLAT", Time: start.AddDate(0, 0, i), Open: 10, High: 10, Low: 10, Close: 10, Volume: 500}
	}

	snapshot, err := NewEngine(nil).Snapshot(bars)
	require.NoError(t, err)

	_, ok := snapshot.Value(BBPercent)
	require.False(t, ok, "percent b divides by a zero band width")
	for name, v := range snapshot.Values {
		require.Truef(t, core.Defined(v), "%s", name)
	}
	require.InDelta(t, 1.0, snapshot.Values[VolumeRatio], 1e-9)
	require.InDelta(t, 10.0, snapshot.Values[VWAPValue], 1e-9)
}

func TestPoolKeepsInputOrder(t *testing.T) {
	inputs := []Input{
		{Symbol: "NVDA", Bars: makeBars("NVDA", 80)},
		{Symbol: "FRESH", Bars: makeBars("FRESH", 10)},
		{Symbol: "AAPL", Bars: makeBars("AAPL", 60)},
	}

	pool := NewPool(NewEngine(nil), 2)
	outputs, err := pool.ComputeAll(context.Background(), inputs)
	require.NoError(t, err)
	require.Len(t, outputs, 3)

	require.Equal(t, "NVDA", outputs[0].Symbol)
	require.Len(t, outputs[0].Snapshots, 31)
	require.ErrorIs(t, outputs[1].Err, core.ErrInsufficientHistory)
	require.Empty(t, outputs[1].Snapshots)
	require.Equal(t, "AAPL", outputs[2].Symbol)
	require.Len(t, outputs[2].Snapshots, 11)

	latest, err := pool.SnapshotAll(context.Background(), inputs)
	require.NoError(t, err)
	last, ok := latest[0].Last()
	require.True(t, ok)
	require.Equal(t, inputs[0].Bars[79].Time, last.Time)
}

func TestPoolCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPool(NewEngine(nil), 1).ComputeAll(ctx, []Input{{Symbol: "AAPL", Bars: makeBars("AAPL", 60)}})
	require.ErrorIs(t, err, context.Canceled)
}
