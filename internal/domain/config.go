package domain

import (
	"fmt"
	"time"
)

// TradingConfig is process-wide configuration, set once at startup and never
// mutated afterwards.
type TradingConfig struct {
	MaxPositionCount int     `yaml:"max_position_count"`
	MaxPositionRatio float64 `yaml:"max_position_ratio"`
	StopLossRatio    float64 `yaml:"stop_loss_ratio"`
	TakeProfitRatio  float64 `yaml:"take_profit_ratio"`
	MinTradeAmount   float64 `yaml:"min_trade_amount"`
	MaxTradeAmount   float64 `yaml:"max_trade_amount"`

	TradingStart string `yaml:"trading_start"` // "09:00"
	TradingEnd   string `yaml:"trading_end"`   // "15:20"

	CheckIntervalMs int           `yaml:"check_interval_ms"`
	CheckInterval   time.Duration `yaml:"-"`
	MaxDailyLoss    float64       `yaml:"max_daily_loss"` // fraction of equity, e.g. 0.03
	MaxDailyTrades  int           `yaml:"max_daily_trades"`

	CommissionRate  float64 `yaml:"commission_rate"`
	TaxRate         float64 `yaml:"tax_rate"` // charged on sells only
	AllowPyramiding bool    `yaml:"allow_pyramiding"`

	Exit ExitLevelConfig `yaml:"exit"`
}

// ExitLevelConfig parametrizes the exit-level formula. The additive
// thresholds are configuration rather than hard-coded breakpoints; the
// defaults reproduce the reference fixtures.
type ExitLevelConfig struct {
	BasePct    map[PatternType]float64 `yaml:"base_pct"`
	RewardRisk map[PatternType]float64 `yaml:"reward_risk"`

	VolumeRatioThreshold float64 `yaml:"volume_ratio_threshold"`
	VolumeAdjustment     float64 `yaml:"volume_adjustment"`

	MomentumOversold   float64 `yaml:"momentum_oversold"`
	MomentumOverbought float64 `yaml:"momentum_overbought"`
	MomentumAdjustment float64 `yaml:"momentum_adjustment"`

	TechnicalHighScore  float64 `yaml:"technical_high_score"`
	TechnicalLowScore   float64 `yaml:"technical_low_score"`
	TechnicalAdjustment float64 `yaml:"technical_adjustment"`

	CapMultipliers map[MarketCapType]float64 `yaml:"cap_multipliers"`

	TickSize float64 `yaml:"tick_size"` // minimum price increment
}

// DefaultTradingConfig mirrors the production defaults of the original
// deployment.
func DefaultTradingConfig() TradingConfig {
	return TradingConfig{
		MaxPositionCount: 10,
		MaxPositionRatio: 0.2,
		StopLossRatio:    -0.05,
		TakeProfitRatio:  0.08,
		MinTradeAmount:   100_000,
		MaxTradeAmount:   1_000_000,
		TradingStart:     "09:00",
		TradingEnd:       "15:20",
		CheckIntervalMs:  10_000,
		CheckInterval:    10 * time.Second,
		MaxDailyLoss:     0.03,
		MaxDailyTrades:   50,
		CommissionRate:   0.00015,
		TaxRate:          0.0023,
		Exit:             DefaultExitLevelConfig(),
	}
}

func DefaultExitLevelConfig() ExitLevelConfig {
	return ExitLevelConfig{
		BasePct: map[PatternType]float64{
			PatternMorningStar:        0.08,
			PatternAbandonedBaby:      0.08,
			PatternBullishEngulfing:   0.06,
			PatternThreeWhiteSoldiers: 0.06,
			PatternHammer:             0.05,
		},
		RewardRisk: map[PatternType]float64{
			PatternMorningStar:        2.5,
			PatternAbandonedBaby:      2.5,
			PatternBullishEngulfing:   2.0,
			PatternThreeWhiteSoldiers: 2.0,
			PatternHammer:             2.0,
		},
		VolumeRatioThreshold: 2.0,
		VolumeAdjustment:     0.01,
		MomentumOversold:     35,
		MomentumOverbought:   70,
		MomentumAdjustment:   0.01,
		TechnicalHighScore:   7.0,
		TechnicalLowScore:    2.0,
		TechnicalAdjustment:  0.01,
		CapMultipliers: map[MarketCapType]float64{
			LargeCap: 0.7,
			MidCap:   1.0,
			SmallCap: 1.0,
		},
		TickSize: 1.0,
	}
}

// Validate rejects configurations the loop cannot run with.
func (c *TradingConfig) Validate() error {
	if c.MaxPositionCount <= 0 {
		return fmt.Errorf("max_position_count must be positive, got %d", c.MaxPositionCount)
	}
	if c.MaxPositionRatio <= 0 || c.MaxPositionRatio > 1 {
		return fmt.Errorf("max_position_ratio must be in (0,1], got %f", c.MaxPositionRatio)
	}
	if c.MinTradeAmount <= 0 || c.MaxTradeAmount < c.MinTradeAmount {
		return fmt.Errorf("trade amount bounds invalid: min=%f max=%f", c.MinTradeAmount, c.MaxTradeAmount)
	}
	if c.CheckIntervalMs > 0 {
		c.CheckInterval = time.Duration(c.CheckIntervalMs) * time.Millisecond
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("check_interval_ms must be positive, got %d", c.CheckIntervalMs)
	}
	if _, err := ParseTimeOfDay(c.TradingStart); err != nil {
		return fmt.Errorf("trading_start: %w", err)
	}
	if _, err := ParseTimeOfDay(c.TradingEnd); err != nil {
		return fmt.Errorf("trading_end: %w", err)
	}
	return nil
}

// ParseTimeOfDay parses "HH:MM" into minutes since midnight.
func ParseTimeOfDay(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	return h*60 + m, nil
}

// WithinTradingHours reports whether t falls inside the configured window on
// a weekday. Weekends are always closed.
func (c *TradingConfig) WithinTradingHours(t time.Time) bool {
	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	start, err := ParseTimeOfDay(c.TradingStart)
	if err != nil {
		return false
	}
	end, err := ParseTimeOfDay(c.TradingEnd)
	if err != nil {
		return false
	}
	now := t.Hour()*60 + t.Minute()
	return now >= start && now <= end
}
