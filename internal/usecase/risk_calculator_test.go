package usecase_test

import (
	"math"
	"testing"

	"github.com/tgparkk/AutoSwingTrade/internal/domain"
	"github.com/tgparkk/AutoSwingTrade/internal/usecase"
)

const epsilon = 0.000001

func floatEquals(a, b float64) bool {
	return (a-b) < epsilon && (b-a) < epsilon
}

func TestComputeExitLevels(t *testing.T) {
	calc := usecase.NewRiskCalculator(domain.DefaultExitLevelConfig())

	tests := []struct {
		name           string
		pos            domain.Position
		ectx           usecase.ExitContext
		wantTakeProfit float64
		wantStopLoss   float64
	}{
		{
			// base 6% + large-cap scaled volume bonus 0.7% = 6.7%, R 2.0
			name: "Large Cap Engulfing With Volume Surge",
			pos: domain.Position{
				AvgPrice:      4865,
				PatternType:   domain.PatternBullishEngulfing,
				MarketCapType: domain.LargeCap,
				VolumeRatio:   2.5,
			},
			ectx:           usecase.NeutralExitContext(),
			wantTakeProfit: 5191,
			wantStopLoss:   4702,
		},
		{
			// base 8%, no adjustments, R 2.5
			name: "Morning Star Neutral",
			pos: domain.Position{
				AvgPrice:      10000,
				PatternType:   domain.PatternMorningStar,
				MarketCapType: domain.MidCap,
				VolumeRatio:   1.0,
			},
			ectx:           usecase.NeutralExitContext(),
			wantTakeProfit: 10800,
			wantStopLoss:   9680,
		},
		{
			// base 5% + volume 1% + oversold 1% + strong technicals 1% = 8%
			name: "Small Cap Hammer All Bonuses",
			pos: domain.Position{
				AvgPrice:      10000,
				PatternType:   domain.PatternHammer,
				MarketCapType: domain.SmallCap,
				VolumeRatio:   3.0,
			},
			ectx:           usecase.ExitContext{MomentumIndex: 30, TechnicalScore: 8},
			wantTakeProfit: 10800,
			wantStopLoss:   9600,
		},
		{
			// base 6% - overbought 1% - weak technicals 1% = 4%
			name: "Overbought Weak Technicals",
			pos: domain.Position{
				AvgPrice:      10000,
				PatternType:   domain.PatternThreeWhiteSoldiers,
				MarketCapType: domain.MidCap,
				VolumeRatio:   1.0,
			},
			ectx:           usecase.ExitContext{MomentumIndex: 75, TechnicalScore: 1},
			wantTakeProfit: 10400,
			wantStopLoss:   9800,
		},
		{
			// unknown pattern falls back to the engulfing base
			name: "Unknown Pattern Fallback",
			pos: domain.Position{
				AvgPrice:      10000,
				PatternType:   domain.PatternType("doji"),
				MarketCapType: domain.MidCap,
			},
			ectx:           usecase.NeutralExitContext(),
			wantTakeProfit: 10600,
			wantStopLoss:   9700,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp, sl := calc.ComputeExitLevels(&tt.pos, tt.ectx)
			if !floatEquals(tp, tt.wantTakeProfit) {
				t.Errorf("takeProfit = %f, want %f", tp, tt.wantTakeProfit)
			}
			if !floatEquals(sl, tt.wantStopLoss) {
				t.Errorf("stopLoss = %f, want %f", sl, tt.wantStopLoss)
			}
			if sl >= tp {
				t.Errorf("stopLoss %f must be below takeProfit %f", sl, tp)
			}
		})
	}
}

func TestComputeExitLevelsDeterministic(t *testing.T) {
	calc := usecase.NewRiskCalculator(domain.DefaultExitLevelConfig())
	pos := domain.Position{
		AvgPrice:      4865,
		PatternType:   domain.PatternBullishEngulfing,
		MarketCapType: domain.LargeCap,
		VolumeRatio:   2.5,
	}

	tp1, sl1 := calc.ComputeExitLevels(&pos, usecase.NeutralExitContext())
	for i := 0; i < 100; i++ {
		tp, sl := calc.ComputeExitLevels(&pos, usecase.NeutralExitContext())
		if tp != tp1 || sl != sl1 {
			t.Fatalf("run %d produced %f/%f, first run produced %f/%f", i, tp, sl, tp1, sl1)
		}
	}
}

func TestComputeExitLevelsZeroPrice(t *testing.T) {
	calc := usecase.NewRiskCalculator(domain.DefaultExitLevelConfig())
	tp, sl := calc.ComputeExitLevels(&domain.Position{}, usecase.NeutralExitContext())
	if tp != 0 || sl != 0 {
		t.Errorf("zero-price position must yield zero levels, got %f/%f", tp, sl)
	}
}

func TestComputeConcentrationRisk(t *testing.T) {
	makePositions := func(values ...float64) map[string]*domain.Position {
		out := make(map[string]*domain.Position)
		for i, v := range values {
			out[string(rune('A'+i))] = &domain.Position{
				Quantity:     1,
				CurrentPrice: v,
				Status:       domain.PositionActive,
			}
		}
		return out
	}

	t.Run("Single Position Index Is One", func(t *testing.T) {
		m := usecase.ComputeConcentrationRisk(makePositions(500000), 1000000, 0.2)
		if !floatEquals(m.ConcentrationIndex, 1.0) {
			t.Errorf("index = %f, want 1.0", m.ConcentrationIndex)
		}
	})

	t.Run("Equal Weights Hit Lower Bound", func(t *testing.T) {
		m := usecase.ComputeConcentrationRisk(makePositions(100, 100, 100, 100), 1000, 0.5)
		if !floatEquals(m.ConcentrationIndex, 0.25) {
			t.Errorf("index = %f, want 0.25", m.ConcentrationIndex)
		}
	})

	t.Run("Index Stays Within Bounds", func(t *testing.T) {
		positions := makePositions(10, 250, 900, 40, 333)
		m := usecase.ComputeConcentrationRisk(positions, 10000, 0.2)
		lower := 1.0 / float64(len(positions))
		if m.ConcentrationIndex < lower-epsilon || m.ConcentrationIndex > 1.0+epsilon {
			t.Errorf("index %f outside [%f, 1]", m.ConcentrationIndex, lower)
		}
	})

	t.Run("Over Limit Positions Counted", func(t *testing.T) {
		m := usecase.ComputeConcentrationRisk(makePositions(900, 100), 1000, 0.2)
		if m.PositionsOverLimit != 1 {
			t.Errorf("over limit = %d, want 1", m.PositionsOverLimit)
		}
		if m.LargestPositionWeight < 0.89 {
			t.Errorf("largest weight = %f, want 0.9", m.LargestPositionWeight)
		}
	})

	t.Run("Empty Portfolio Is Zero", func(t *testing.T) {
		m := usecase.ComputeConcentrationRisk(nil, 1000000, 0.2)
		if m.ConcentrationIndex != 0 || m.TotalExposure != 0 {
			t.Errorf("empty portfolio must be zero-valued, got %+v", m)
		}
	})

	t.Run("Closed Positions Excluded", func(t *testing.T) {
		positions := makePositions(100, 100)
		positions["Z"] = &domain.Position{Quantity: 1, CurrentPrice: 1000, Status: domain.PositionClosed}
		m := usecase.ComputeConcentrationRisk(positions, 1000, 0.6)
		if !floatEquals(m.ConcentrationIndex, 0.5) {
			t.Errorf("index = %f, want 0.5", m.ConcentrationIndex)
		}
	})

	t.Run("Exposure Relative To Equity", func(t *testing.T) {
		m := usecase.ComputeConcentrationRisk(makePositions(300, 200), 1000, 0.8)
		if math.Abs(m.TotalExposure-0.5) > epsilon {
			t.Errorf("exposure = %f, want 0.5", m.TotalExposure)
		}
	})
}
