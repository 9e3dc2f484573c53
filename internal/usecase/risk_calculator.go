package usecase

import (
	"math"

	"github.com/tgparkk/AutoSwingTrade/internal/domain"
)

// ExitContext carries the per-instrument indicator inputs of the exit-level
// formula that are not part of the position itself. The zero thresholds in
// NeutralExitContext contribute nothing.
type ExitContext struct {
	MomentumIndex  float64 // RSI-style oscillator, 0..100
	TechnicalScore float64 // 0..10
}

// NeutralExitContext returns indicator inputs that sit inside the neutral
// bands and therefore add no adjustment.
func NeutralExitContext() ExitContext {
	return ExitContext{MomentumIndex: 50, TechnicalScore: 5}
}

// RiskCalculator holds the parametrized exit-level thresholds. All methods
// are pure: identical inputs always produce identical outputs.
type RiskCalculator struct {
	cfg domain.ExitLevelConfig
}

func NewRiskCalculator(cfg domain.ExitLevelConfig) *RiskCalculator {
	if cfg.TickSize <= 0 {
		cfg.TickSize = 1.0
	}
	return &RiskCalculator{cfg: cfg}
}

// ComputeExitLevels derives take-profit and stop-loss prices from the
// position's entry basis. The percentage starts from the pattern-family base,
// adds the volume / momentum / technical adjustments scaled by the market-cap
// sensitivity multiplier, and the reward:risk ratio of the pattern family
// places the stop below the entry:
//
//	takeProfit = round(price * (1 + pct))
//	stopLoss   = round(price * (1 - pct/R))
//
// Prices are rounded to the instrument's minimum price increment.
func (r *RiskCalculator) ComputeExitLevels(pos *domain.Position, ectx ExitContext) (takeProfit, stopLoss float64) {
	price := pos.AvgPrice
	if price <= 0 {
		price = pos.CurrentPrice
	}
	if price <= 0 {
		return 0, 0
	}

	base, ok := r.cfg.BasePct[pos.PatternType]
	if !ok {
		base = r.cfg.BasePct[domain.PatternBullishEngulfing]
	}

	var adj float64
	if pos.VolumeRatio > r.cfg.VolumeRatioThreshold {
		adj += r.cfg.VolumeAdjustment
	}
	if ectx.MomentumIndex > 0 && ectx.MomentumIndex <= r.cfg.MomentumOversold {
		adj += r.cfg.MomentumAdjustment
	} else if ectx.MomentumIndex >= r.cfg.MomentumOverbought {
		adj -= r.cfg.MomentumAdjustment
	}
	if ectx.TechnicalScore >= r.cfg.TechnicalHighScore {
		adj += r.cfg.TechnicalAdjustment
	} else if ectx.TechnicalScore > 0 && ectx.TechnicalScore <= r.cfg.TechnicalLowScore {
		adj -= r.cfg.TechnicalAdjustment
	}

	mult, ok := r.cfg.CapMultipliers[pos.MarketCapType]
	if !ok {
		mult = 1.0
	}
	pct := base + mult*adj

	rr, ok := r.cfg.RewardRisk[pos.PatternType]
	if !ok || rr <= 0 {
		rr = 2.0
	}

	takeProfit = r.roundToTick(price * (1 + pct))
	stopLoss = r.roundToTick(price * (1 - pct/rr))
	return takeProfit, stopLoss
}

func (r *RiskCalculator) roundToTick(price float64) float64 {
	return math.Round(price/r.cfg.TickSize) * r.cfg.TickSize
}

// ComputeConcentrationRisk measures how lopsided the portfolio is. Weights
// are taken over ACTIVE positions only; a missing or zero total value yields
// a zero-index result rather than a division fault.
func ComputeConcentrationRisk(positions map[string]*domain.Position, equity, maxPositionRatio float64) domain.RiskMetrics {
	var metrics domain.RiskMetrics

	var totalValue float64
	for _, p := range positions {
		if p.Status == domain.PositionClosed {
			continue
		}
		totalValue += p.Value()
	}
	if totalValue <= 0 {
		return metrics
	}

	for code, p := range positions {
		if p.Status == domain.PositionClosed {
			continue
		}
		weight := p.Value() / totalValue
		metrics.ConcentrationIndex += weight * weight
		if weight > metrics.LargestPositionWeight {
			metrics.LargestPositionWeight = weight
			metrics.LargestPositionCode = code
		}
		if weight > maxPositionRatio {
			metrics.PositionsOverLimit++
			metrics.OverLimitCodes = append(metrics.OverLimitCodes, code)
		}
	}
	if equity > 0 {
		metrics.TotalExposure = totalValue / equity
	}
	return metrics
}
