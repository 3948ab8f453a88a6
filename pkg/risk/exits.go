package risk

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/raykavin/tradeplan/pkg/core"
)

// ErrGapThroughStop is returned when the fill bar opens at or below the planned stop
var ErrGapThroughStop = errors.New("open gapped through stop")

// Fill is one execution against a position
type Fill struct {
	Kind   core.AuditKind
	Status core.PositionStatus
	Time   time.Time
	Shares int64
	Price  float64
	Fee    float64
	// PnL is the net realised result of a sell, zero for the entry
	PnL float64
}

// CashDelta returns the change in cash caused by the fill
func (f Fill) CashDelta() float64 {
	value := f.Price * float64(f.Shares)
	if f.Kind == core.AuditFill {
		return -(value + f.Fee)
	}
	return value - f.Fee
}

// ExitManager opens positions from plans and walks them bar by bar
// through stops, scaled targets, the trailing stop and the time exit.
type ExitManager struct {
	costs       core.CostModel
	trailing    TrailingStop
	tp1Fraction float64
	maxHold     time.Duration
}

// NewExitManager creates an exit manager from the risk configuration
func NewExitManager(cfg Config, costs core.CostModel) ExitManager {
	return ExitManager{
		costs:       costs,
		trailing:    NewTrailingStop(cfg),
		tp1Fraction: cfg.TP1Fraction,
		maxHold:     cfg.maxHold(),
	}
}

// Open fills a plan at the open of bar, which must follow the signal bar
func (m ExitManager) Open(plan core.TradePlan, bar core.Bar) (core.Position, Fill, error) {
	if !bar.Time.After(plan.Time) {
		return core.Position{}, Fill{}, fmt.Errorf("%w: %s filled at %s for signal at %s",
			core.ErrLookAheadViolation, plan.Symbol, bar.Time.Format(time.RFC3339), plan.Time.Format(time.RFC3339))
	}
	if bar.Open <= plan.Stop {
		return core.Position{}, Fill{}, fmt.Errorf("%w: %s opened %.4f, stop %.4f", ErrGapThroughStop, plan.Symbol, bar.Open, plan.Stop)
	}

	price := m.costs.BuyFill(bar.Open)
	fee := m.costs.OrderFee(price * float64(plan.Shares))

	position := core.Position{
		Symbol:        plan.Symbol,
		Sector:        plan.Sector,
		Strategy:      plan.Strategy,
		Paper:         plan.Paper,
		EntryPrice:    price,
		Stop:          plan.Stop,
		InitialStop:   plan.Stop,
		TP1:           plan.TP1,
		TP2:           plan.TP2,
		ATR:           plan.ATR,
		Shares:        plan.Shares,
		InitialShares: plan.Shares,
		SignalTime:    plan.Time,
		OpenedAt:      bar.Time,
		Highest:       price,
		LastPrice:     price,
		Realized:      -fee,
		Fees:          fee,
		Status:        core.StatusOpen,
	}

	return position, Fill{
		Kind:   core.AuditFill,
		Status: core.StatusOpen,
		Time:   bar.Time,
		Shares: plan.Shares,
		Price:  price,
		Fee:    fee,
	}, nil
}

// OnBar applies one bar to an open position. The stop is checked before
// any target, so a bar touching both is treated as stopped.
func (m ExitManager) OnBar(p core.Position, bar core.Bar) (core.Position, []Fill, error) {
	if !p.IsOpen() {
		return p, nil, fmt.Errorf("%w: %s", core.ErrPositionClosed, p.Symbol)
	}
	if bar.Symbol != p.Symbol {
		return p, nil, fmt.Errorf("bar for %s applied to %s position", bar.Symbol, p.Symbol)
	}
	if bar.Time.Before(p.OpenedAt) {
		return p, nil, fmt.Errorf("%w: %s bar at %s precedes entry", core.ErrLookAheadViolation, p.Symbol, bar.Time.Format(time.RFC3339))
	}

	var fills []Fill

	if bar.Low <= p.Stop {
		price := m.costs.SellFill(math.Min(bar.Open, p.Stop))
		p, fill, err := m.exit(p, price, bar.Time, core.StatusStopped)
		return p, append(fills, fill), err
	}

	if !p.TP1Hit && bar.High >= p.TP1 {
		shares := int64(math.Floor(float64(p.InitialShares) * m.tp1Fraction))
		if shares >= p.Shares {
			shares = p.Shares - 1
		}
		if shares > 0 {
			var fill Fill
			p, fill = m.sell(p, shares, m.costs.SellFill(math.Max(bar.Open, p.TP1)), bar.Time)
			fill.Kind = core.AuditPartial
			fill.Status = core.StatusOpen
			fills = append(fills, fill)
		}
		p.TP1Hit = true
		p.Stop = math.Max(p.Stop, p.EntryPrice)
	}

	if bar.High >= p.TP2 {
		price := m.costs.SellFill(math.Max(bar.Open, p.TP2))
		p, fill, err := m.exit(p, price, bar.Time, core.StatusTargetHit)
		return p, append(fills, fill), err
	}

	p.Highest, p.Stop = m.trailing.Update(p.EntryPrice, p.Stop, p.Highest, p.ATR, m.trailing.Price(bar.High, bar.Close))
	p.LastPrice = bar.Close

	if m.maxHold > 0 && bar.Time.Sub(p.OpenedAt) >= m.maxHold {
		p, fill, err := m.exit(p, m.costs.SellFill(bar.Close), bar.Time, core.StatusTimeExit)
		return p, append(fills, fill), err
	}

	return p, fills, nil
}

// CloseManually liquidates the remaining shares at price
func (m ExitManager) CloseManually(p core.Position, price float64, at time.Time) (core.Position, Fill, error) {
	if !p.IsOpen() {
		return p, Fill{}, fmt.Errorf("%w: %s", core.ErrPositionClosed, p.Symbol)
	}
	return m.exit(p, m.costs.SellFill(price), at, core.StatusManuallyClosed)
}

func (m ExitManager) exit(p core.Position, price float64, at time.Time, status core.PositionStatus) (core.Position, Fill, error) {
	p, fill := m.sell(p, p.Shares, price, at)
	fill.Kind = core.AuditExit
	fill.Status = status

	closed, err := p.Close(status, price, at)
	if err != nil {
		return p, fill, err
	}
	return closed, fill, nil
}

func (m ExitManager) sell(p core.Position, shares int64, price float64, at time.Time) (core.Position, Fill) {
	fee := m.costs.OrderFee(price * float64(shares))
	pnl := (price-p.EntryPrice)*float64(shares) - fee

	p.Shares -= shares
	p.Realized += pnl
	p.Fees += fee

	return p, Fill{
		Time:   at,
		Shares: shares,
		Price:  price,
		Fee:    fee,
		PnL:    pnl,
	}
}
