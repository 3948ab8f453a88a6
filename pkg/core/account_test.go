package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAccountStateVersioning(t *testing.T) {
	start := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	account := NewAccountState(10_000, 0.02, start)

	next := account.WithPosition(Position{
		Symbol:     "AAPL",
		Sector:     "Technology",
		EntryPrice: 100,
		LastPrice:  110,
		Shares:     10,
		Status:     StatusOpen,
	}, start.Add(time.Hour))
	next.Cash -= 1000
	next = next.Revalue()

	require.Equal(t, uint64(0), account.Version)
	require.Empty(t, account.Positions)
	require.Equal(t, uint64(1), next.Version)
	require.Len(t, next.Positions, 1)
	require.Equal(t, int64(1), next.Positions[0].ID)
	require.InDelta(t, 10_100, next.Equity, 1e-9)
	require.InDelta(t, 1100, next.SectorExposure("Technology"), 1e-9)
	require.InDelta(t, 0.01, next.MonthlyPnL, 1e-9)

	rolled := next.RollMonth(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
	require.Equal(t, 10_100.0, rolled.MonthStartEquity)
	require.Zero(t, rolled.MonthlyPnL)
}

func TestPositionTerminalStatusIsPermanent(t *testing.T) {
	at := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	p := Position{Symbol: "AAPL", EntryPrice: 100, InitialStop: 95, Shares: 10, InitialShares: 10, Status: StatusOpen, OpenedAt: at}

	closed, err := p.Close(StatusStopped, 95, at.Add(24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, StatusStopped, closed.Status)

	_, err = closed.Close(StatusTargetHit, 120, at.Add(48*time.Hour))
	require.ErrorIs(t, err, ErrPositionClosed)

	closed.Realized = -50
	result := closed.Result()
	require.InDelta(t, -1.0, result.RMultiple, 1e-9)
	require.False(t, result.IsWin())
	require.Equal(t, 24*time.Hour, result.Duration)
}

func TestCostModel(t *testing.T) {
	costs := CostModel{FlatFee: 1, SpreadPct: 0.0005, SlippagePct: 0.0005}
	require.InDelta(t, 0.2+0.2, costs.RoundTripPerShare(100, 10), 1e-9)
	require.InDelta(t, 100.05, costs.BuyFill(100), 1e-9)
	require.InDelta(t, 1.5, costs.OrderFee(1000), 1e-9)
}
