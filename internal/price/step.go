package price

import (
	"github.com/shopspring/decimal"

	"github.com/rickgao/emission-engine/internal/model"
)

var (
	two     = decimal.NewFromInt(2)
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Inputs are the values one price step is computed from.
type Inputs struct {
	Current        decimal.Decimal // Latest price (or seed)
	Opening        decimal.Decimal // Trading day opening price
	DailyIncrement decimal.Decimal // Target - Opening for a full day
	Progress       float64         // Fraction of the trading day elapsed
	DriftStrength  decimal.Decimal // Fraction of the gap closed per tick
	VolatilityBand decimal.Decimal // Symmetric random band, e.g. 0.08
	MinPrice       decimal.Decimal // Floor for every emitted price
}

// Outputs are the derived values of one price step.
type Outputs struct {
	Expected   decimal.Decimal
	Drift      decimal.Decimal
	Volatility decimal.Decimal
	Price      decimal.Decimal
	High       decimal.Decimal
	Low        decimal.Decimal
	Average    decimal.Decimal
}

// Step computes the next price from in. rnd must return values in [0, 1) and
// is sampled three times: price volatility, high jitter, low jitter.
func Step(in Inputs, rnd func() float64) Outputs {
	var out Outputs

	out.Expected = in.Opening.Add(in.DailyIncrement.Mul(decimal.NewFromFloat(in.Progress)))
	out.Drift = out.Expected.Sub(in.Current).Mul(in.DriftStrength)

	// uniform(-band, +band)
	shock := decimal.NewFromFloat(2*rnd() - 1).Mul(in.VolatilityBand)
	out.Volatility = in.Current.Mul(shock)

	next := in.Current.Add(out.Drift).Add(out.Volatility)
	out.Price = floor(next, in.MinPrice).Round(model.PricePlaces)

	up := decimal.NewFromFloat(rnd()).Mul(in.VolatilityBand)
	down := decimal.NewFromFloat(rnd()).Mul(in.VolatilityBand)
	out.High = out.Price.Mul(one.Add(up)).Round(model.PricePlaces)
	out.Low = floor(out.Price.Mul(one.Sub(down)), in.MinPrice).Round(model.PricePlaces)
	out.Average = out.High.Add(out.Low).Div(two)

	return out
}

// ChangePercent returns the percent change of price relative to opening.
func ChangePercent(price, opening decimal.Decimal) decimal.Decimal {
	if !opening.IsPositive() {
		return decimal.Zero
	}
	return price.Sub(opening).Div(opening).Mul(hundred).Round(4)
}

func floor(v, min decimal.Decimal) decimal.Decimal {
	if v.LessThan(min) {
		return min
	}
	return v
}
