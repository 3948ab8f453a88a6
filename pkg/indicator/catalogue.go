package indicator

import (
	"errors"
	"fmt"

	"github.com/raykavin/tradeplan/pkg/core"
)

// ComputeFunc calculates the output series of a definition over a frame.
// Each returned series has the frame length.
type ComputeFunc func(frame *core.Frame) map[string][]float64

// Definition describes one indicator of the catalogue
type Definition struct {
	Name string
	// Lookback is the number of bars needed before the last value is defined
	Lookback int
	// Required definitions gate snapshot emission; optional ones are simply
	// absent from snapshots until their own look-back is met
	Required bool
	Outputs  []string
	Compute  ComputeFunc
}

// Catalogue is the ordered set of indicators computed for every bar
type Catalogue struct {
	definitions []Definition
	window      int
}

// DefaultWindow is the bounded look-back used to compute a snapshot.
// It covers the longest optional definition with room for smoothing.
const DefaultWindow = 260

// NewCatalogue validates the definitions and the snapshot window size
func NewCatalogue(window int, definitions ...Definition) (*Catalogue, error) {
	if len(definitions) == 0 {
		return nil, errors.New("catalogue has no definitions")
	}

	seen := make(map[string]string)
	required := 0
	for _, def := range definitions {
		if def.Lookback < 1 || def.Compute == nil || len(def.Outputs) == 0 {
			return nil, fmt.Errorf("definition %q is incomplete", def.Name)
		}
		if def.Lookback > window {
			return nil, fmt.Errorf("definition %q needs %d bars, window is %d", def.Name, def.Lookback, window)
		}
		for _, output := range def.Outputs {
			if owner, ok := seen[output]; ok {
				return nil, fmt.Errorf("output %q declared by %q and %q", output, owner, def.Name)
			}
			seen[output] = def.Name
		}
		if def.Required {
			required++
		}
	}

	if required == 0 {
		return nil, errors.New("catalogue has no required definition")
	}

	return &Catalogue{definitions: definitions, window: window}, nil
}

// Definitions returns the catalogue entries in declaration order
func (c *Catalogue) Definitions() []Definition {
	return c.definitions
}

// Window returns the number of bars used to compute one snapshot
func (c *Catalogue) Window() int {
	return c.window
}

// MinLookback is the largest look-back among required definitions
func (c *Catalogue) MinLookback() int {
	lookback := 0
	for _, def := range c.definitions {
		if def.Required && def.Lookback > lookback {
			lookback = def.Lookback
		}
	}
	return lookback
}

func outputs(names ...string) []string { return names }

func single(name string, values []float64) map[string][]float64 {
	return map[string][]float64{name: values}
}

func smaDefinition(name string, period int, required bool) Definition {
	return Definition{
		Name: name, Lookback: period, Required: required, Outputs: outputs(name),
		Compute: func(f *core.Frame) map[string][]float64 {
			return single(name, SMA(f.Close, period))
		},
	}
}

func emaDefinition(name string, period int) Definition {
	return Definition{
		Name: name, Lookback: period, Required: true, Outputs: outputs(name),
		Compute: func(f *core.Frame) map[string][]float64 {
			return single(name, EMA(f.Close, period))
		},
	}
}

// DefaultDefinitions returns the trend, momentum, volatility and volume suite
func DefaultDefinitions() []Definition {
	return []Definition{
		// Trend
		smaDefinition(SMA20, 20, true),
		smaDefinition(SMA50, 50, true),
		smaDefinition(SMA200, 200, false),
		emaDefinition(EMA9, 9),
		emaDefinition(EMA21, 21),
		emaDefinition(EMA50, 50),
		{
			Name: "macd", Lookback: 34, Required: true,
			Outputs: outputs(MACDLine, MACDSignal, MACDHist),
			Compute: func(f *core.Frame) map[string][]float64 {
				line, signal, hist := MACD(f.Close, 12, 26, 9)
				return map[string][]float64{MACDLine: line, MACDSignal: signal, MACDHist: hist}
			},
		},
		{
			Name: "adx", Lookback: 28, Required: true,
			Outputs: outputs(ADXValue, PlusDIValue, MinusDIValue),
			Compute: func(f *core.Frame) map[string][]float64 {
				return map[string][]float64{
					ADXValue:     ADX(f.High, f.Low, f.Close, 14),
					PlusDIValue:  PlusDI(f.High, f.Low, f.Close, 14),
					MinusDIValue: MinusDI(f.High, f.Low, f.Close, 14),
				}
			},
		},
		{
			Name: ParabolicSAR, Lookback: 2, Required: true, Outputs: outputs(ParabolicSAR),
			Compute: func(f *core.Frame) map[string][]float64 {
				return single(ParabolicSAR, SAR(f.High, f.Low, 0.02, 0.2))
			},
		},
		{
			Name: SuperTrendLine, Lookback: 11, Required: true,
			Outputs: outputs(SuperTrendLine, SuperTrendDir),
			Compute: func(f *core.Frame) map[string][]float64 {
				value, direction := SuperTrend(f.High, f.Low, f.Close, 10, 3)
				return map[string][]float64{SuperTrendLine: value, SuperTrendDir: direction}
			},
		},
		{
			Name: "ichimoku", Lookback: 78, Required: false,
			Outputs: outputs(IchimokuTenkan, IchimokuKijun, IchimokuSpanA, IchimokuSpanB),
			Compute: func(f *core.Frame) map[string][]float64 {
				tenkan, kijun, spanA, spanB := Ichimoku(f.High, f.Low, 9, 26, 52)
				return map[string][]float64{
					IchimokuTenkan: tenkan,
					IchimokuKijun:  kijun,
					IchimokuSpanA:  spanA,
					IchimokuSpanB:  spanB,
				}
			},
		},

		// Momentum
		{
			Name: RSIValue, Lookback: 15, Required: true, Outputs: outputs(RSIValue),
			Compute: func(f *core.Frame) map[string][]float64 {
				return single(RSIValue, RSI(f.Close, 14))
			},
		},
		{
			Name: "stoch", Lookback: 18, Required: true, Outputs: outputs(StochK, StochD),
			Compute: func(f *core.Frame) map[string][]float64 {
				k, d := Stoch(f.High, f.Low, f.Close, 14, 3, TypeSMA, 3, TypeSMA)
				return map[string][]float64{StochK: k, StochD: d}
			},
		},
		{
			Name: WilliamsRValue, Lookback: 14, Required: true, Outputs: outputs(WilliamsRValue),
			Compute: func(f *core.Frame) map[string][]float64 {
				return single(WilliamsRValue, WilliamsR(f.High, f.Low, f.Close, 14))
			},
		},
		{
			Name: CCIValue, Lookback: 20, Required: true, Outputs: outputs(CCIValue),
			Compute: func(f *core.Frame) map[string][]float64 {
				return single(CCIValue, CCI(f.High, f.Low, f.Close, 20))
			},
		},
		{
			Name: ROCValue, Lookback: 13, Required: true, Outputs: outputs(ROCValue),
			Compute: func(f *core.Frame) map[string][]float64 {
				return single(ROCValue, ROC(f.Close, 12))
			},
		},
		{
			Name: MFIValue, Lookback: 15, Required: true, Outputs: outputs(MFIValue),
			Compute: func(f *core.Frame) map[string][]float64 {
				return single(MFIValue, MFI(f.High, f.Low, f.Close, f.Volume, 14))
			},
		},

		// Volatility
		{
			Name: ATRValue, Lookback: 15, Required: true, Outputs: outputs(ATRValue, NATRValue),
			Compute: func(f *core.Frame) map[string][]float64 {
				return map[string][]float64{
					ATRValue:  ATR(f.High, f.Low, f.Close, 14),
					NATRValue: NATR(f.High, f.Low, f.Close, 14),
				}
			},
		},
		{
			Name: "bollinger", Lookback: 21, Required: true,
			Outputs: outputs(BBUpper, BBMiddle, BBLower, BBWidth, BBPercent,
				KeltnerUpper, KeltnerMiddle, KeltnerLower, SqueezeOn),
			Compute: func(f *core.Frame) map[string][]float64 {
				upper, middle, lower := BB(f.Close, 20, 2, TypeSMA)
				kcUpper, kcMiddle, kcLower := Keltner(f.High, f.Low, f.Close, 20, 1.5)
				return map[string][]float64{
					BBUpper:       upper,
					BBMiddle:      middle,
					BBLower:       lower,
					BBWidth:       BandWidth(upper, middle, lower),
					BBPercent:     PercentB(f.Close, upper, lower),
					KeltnerUpper:  kcUpper,
					KeltnerMiddle: kcMiddle,
					KeltnerLower:  kcLower,
					SqueezeOn:     Squeeze(upper, lower, kcUpper, kcLower),
				}
			},
		},
		{
			Name: "donchian", Lookback: 21, Required: true,
			Outputs: outputs(DonchianUpper, DonchianLower, DonchianPrior),
			Compute: func(f *core.Frame) map[string][]float64 {
				upper, lower := Donchian(f.High, f.Low, 20)
				return map[string][]float64{
					DonchianUpper: upper,
					DonchianLower: lower,
					DonchianPrior: PriorHigh(f.High, 20),
				}
			},
		},

		// Volume
		{
			Name: VWAPValue, Lookback: 20, Required: true, Outputs: outputs(VWAPValue),
			Compute: func(f *core.Frame) map[string][]float64 {
				return single(VWAPValue, VWAP(f.High, f.Low, f.Close, f.Volume, 20))
			},
		},
		{
			Name: VolumeSMA, Lookback: 20, Required: true, Outputs: outputs(VolumeSMA, VolumeRatio),
			Compute: func(f *core.Frame) map[string][]float64 {
				average := SMA(f.Volume, 20)
				return map[string][]float64{VolumeSMA: average, VolumeRatio: Ratio(f.Volume, average)}
			},
		},
		{
			Name: OBVValue, Lookback: 2, Required: true, Outputs: outputs(OBVValue),
			Compute: func(f *core.Frame) map[string][]float64 {
				return single(OBVValue, OBV(f.Close, f.Volume))
			},
		},
		{
			Name: ADLine, Lookback: 1, Required: true, Outputs: outputs(ADLine),
			Compute: func(f *core.Frame) map[string][]float64 {
				return single(ADLine, Ad(f.High, f.Low, f.Close, f.Volume))
			},
		},
		{
			Name: CMFValue, Lookback: 20, Required: true, Outputs: outputs(CMFValue),
			Compute: func(f *core.Frame) map[string][]float64 {
				return single(CMFValue, CMF(f.High, f.Low, f.Close, f.Volume, 20))
			},
		},
		{
			Name: DollarVol, Lookback: 1, Required: true, Outputs: outputs(DollarVol),
			Compute: func(f *core.Frame) map[string][]float64 {
				return single(DollarVol, DollarVolume(f.Close, f.Volume))
			},
		},
	}
}

// DefaultCatalogue returns the standard catalogue with the default window
func DefaultCatalogue() *Catalogue {
	catalogue, err := NewCatalogue(DefaultWindow, DefaultDefinitions()...)
	if err != nil {
		panic(err)
	}
	return catalogue
}
