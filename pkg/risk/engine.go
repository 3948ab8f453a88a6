package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/raykavin/tradeplan/pkg/core"
	"github.com/raykavin/tradeplan/pkg/indicator"
	"github.com/raykavin/tradeplan/pkg/logger"
	"github.com/raykavin/tradeplan/pkg/logger/zerolog"
	"github.com/samber/lo"
)

// Request is a candidate submitted for sizing
type Request struct {
	Candidate core.ScoredCandidate
	// Bars is the history ending at the candidate bar, used for support stops
	Bars    []core.Bar
	Sector  string       // defaults to the configured sector map
	Holding core.Holding // defaults to the configured holding
}

// Engine sizes candidates into trade plans under the account limits
type Engine struct {
	cfg      Config
	costs    core.CostModel
	drawdown DrawdownMachine
	exits    ExitManager
	log      logger.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithCostModel sets the trading cost model
func WithCostModel(costs core.CostModel) Option {
	return func(e *Engine) {
		e.costs = costs
	}
}

// WithLogger sets the logger
func WithLogger(log logger.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// NewEngine creates a risk engine
func NewEngine(cfg Config, options ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid risk config: %w", err)
	}

	engine := &Engine{
		cfg:      cfg,
		costs:    core.DefaultCostModel(),
		drawdown: NewDrawdownMachine(cfg.Drawdown),
		log:      zerolog.Nop(),
	}

	for _, option := range options {
		option(engine)
	}

	engine.exits = NewExitManager(cfg, engine.costs)
	return engine, nil
}

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) Costs() core.CostModel { return e.costs }

func (e *Engine) Drawdown() DrawdownMachine { return e.drawdown }

func (e *Engine) Exits() ExitManager { return e.exits }

// NewAccount creates a NORMAL account with the configured normal risk
func (e *Engine) NewAccount(equity float64, at time.Time) core.AccountState {
	return core.NewAccountState(equity, e.drawdown.RiskFraction(core.StateNormal), at)
}

// Plan turns a candidate into a sized trade plan. accepted lists the plans
// already emitted for the same bar, which count toward every cap.
func (e *Engine) Plan(req Request, account core.AccountState, accepted []core.TradePlan) (core.TradePlan, error) {
	candidate := req.Candidate
	log := e.log.WithFields(map[string]any{
		"symbol": candidate.Symbol,
		"state":  account.State,
	})

	if account.Halted() {
		return core.TradePlan{}, core.ErrTradingHalted
	}

	if _, held := account.Position(candidate.Symbol); held {
		return core.TradePlan{}, fmt.Errorf("%w: %s already held", core.ErrRiskLimitExceeded, candidate.Symbol)
	}
	if lo.ContainsBy(accepted, func(p core.TradePlan) bool { return p.Symbol == candidate.Symbol }) {
		return core.TradePlan{}, fmt.Errorf("%w: %s already planned", core.ErrRiskLimitExceeded, candidate.Symbol)
	}

	paper := account.State == core.StatePaperOnly
	sector := lo.Ternary(req.Sector != "", req.Sector, e.cfg.Sector(candidate.Symbol))
	holding := lo.Ternary(req.Holding != "", req.Holding, e.cfg.Holding)

	open := lo.Filter(account.OpenPositions(), func(p core.Position, _ int) bool { return p.Paper == paper })
	planned := lo.Filter(accepted, func(p core.TradePlan, _ int) bool { return p.Paper == paper })

	limit := e.drawdown.MaxPositions(account.State, e.cfg.MaxOpenPositions)
	if len(open)+len(planned) >= limit {
		return core.TradePlan{}, fmt.Errorf("%w: %d of %d positions in use", core.ErrRiskLimitExceeded, len(open)+len(planned), limit)
	}

	entry := candidate.Close()
	atr, ok := candidate.Snapshot.Value(indicator.ATRValue)
	if !ok {
		return core.TradePlan{}, fmt.Errorf("%w: %s has no ATR", core.ErrInsufficientHistory, candidate.Symbol)
	}

	lows := make([]float64, len(req.Bars))
	for i, bar := range req.Bars {
		lows[i] = bar.Low
	}

	levels, err := e.cfg.Levels(entry, atr, lows, holding)
	if err != nil {
		return core.TradePlan{}, fmt.Errorf("%w: %s", err, candidate.Symbol)
	}

	riskFraction := account.RiskFraction
	if paper {
		riskFraction = e.drawdown.RiskFraction(core.StatePaperOnly)
	}

	shares := PositionSize(account.Equity, riskFraction, entry, levels.Stop)
	sized := shares

	sectorUsed := lo.SumBy(open, func(p core.Position) float64 {
		return lo.Ternary(p.Sector == sector, p.MarketValue(), 0)
	}) + lo.SumBy(planned, func(p core.TradePlan) float64 {
		return lo.Ternary(p.Sector == sector, p.PositionValue(), 0)
	})

	caps := map[string]int64{
		"position": SharesWithin(account.Equity*e.cfg.MaxPositionPct, entry),
		"sector":   SharesWithin(account.Equity*e.cfg.MaxSectorPct-sectorUsed, entry),
	}
	if !paper {
		committed := lo.SumBy(planned, func(p core.TradePlan) float64 { return p.PositionValue() })
		caps["cash"] = SharesWithin(account.Cash-committed-e.costs.FlatFee, e.costs.BuyFill(entry))
	}

	binding := ""
	for _, name := range []string{"position", "sector", "cash"} {
		if allowed, ok := caps[name]; ok && allowed < shares {
			shares, binding = allowed, name
		}
	}

	if shares <= 0 {
		return core.TradePlan{}, fmt.Errorf("%w: %s cap leaves no room for %s", core.ErrRiskLimitExceeded,
			lo.Ternary(binding != "", binding, "risk"), candidate.Symbol)
	}
	if binding != "" {
		log.WithFields(map[string]any{"sized": sized, "capped": shares, "cap": binding}).Debug("position size capped")
	}

	costPerShare := e.costs.RoundTripPerShare(entry, shares)
	rewardRisk := RewardRisk(entry, levels.Stop, levels.TP2, costPerShare)
	if rewardRisk < e.cfg.MinRewardRisk {
		return core.TradePlan{}, fmt.Errorf("%w: %s %.2f < %.2f", core.ErrBelowMinimumRewardRisk,
			candidate.Symbol, rewardRisk, e.cfg.MinRewardRisk)
	}

	plan := core.TradePlan{
		Symbol:        candidate.Symbol,
		Sector:        sector,
		Time:          candidate.Time,
		Strategy:      candidate.Strategy.Name,
		Score:         candidate.Score,
		Tier:          candidate.Tier,
		Holding:       holding,
		Entry:         entry,
		Stop:          levels.Stop,
		TP1:           levels.TP1,
		TP2:           levels.TP2,
		ATR:           atr,
		Shares:        shares,
		RewardRisk:    rewardRisk,
		RiskAmount:    (entry - levels.Stop) * float64(shares),
		RoundTripCost: costPerShare * float64(shares),
		Paper:         paper,
	}

	log.WithFields(map[string]any{
		"shares": plan.Shares,
		"stop":   math.Round(plan.Stop*100) / 100,
		"rr":     math.Round(plan.RewardRisk*100) / 100,
		"paper":  plan.Paper,
	}).Debug("plan accepted")

	return plan, nil
}
