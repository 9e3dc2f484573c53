package domain

import "time"

type PositionStatus string

const (
	PositionActive  PositionStatus = "ACTIVE"
	PositionPartial PositionStatus = "PARTIAL"
	PositionClosed  PositionStatus = "CLOSED"
)

// PatternType is the candle pattern that produced the entry signal.
// It only matters to exit-level math; the bot never detects patterns itself.
type PatternType string

const (
	PatternMorningStar        PatternType = "morning_star"
	PatternBullishEngulfing   PatternType = "bullish_engulfing"
	PatternThreeWhiteSoldiers PatternType = "three_white_soldiers"
	PatternAbandonedBaby      PatternType = "abandoned_baby"
	PatternHammer             PatternType = "hammer"
)

type MarketCapType string

const (
	LargeCap MarketCapType = "large_cap"
	MidCap   MarketCapType = "mid_cap"
	SmallCap MarketCapType = "small_cap"
)

// Position is one held instrument. PositionManager is the only component
// allowed to mutate it.
type Position struct {
	StockCode      string         `json:"stock_code"`
	StockName      string         `json:"stock_name"`
	Quantity       int            `json:"quantity"`
	AvgPrice       float64        `json:"avg_price"`
	CurrentPrice   float64        `json:"current_price"`
	ProfitLoss     float64        `json:"profit_loss"`
	ProfitLossRate float64        `json:"profit_loss_rate"`
	EntryTime      time.Time      `json:"entry_time"`
	LastUpdate     time.Time      `json:"last_update"`
	Status         PositionStatus `json:"status"`
	StopLossPrice  float64        `json:"stop_loss_price"`
	TakeProfit     float64        `json:"take_profit_price"`
	EntryReason    string         `json:"entry_reason"`
	PartialSold    bool           `json:"partial_sold"`

	// Screening provenance, carried through from the entry signal.
	PatternType     PatternType   `json:"pattern_type"`
	MarketCapType   MarketCapType `json:"market_cap_type"`
	PatternStrength float64       `json:"pattern_strength"`
	VolumeRatio     float64       `json:"volume_ratio"`
}

// Value is the current market value of the position.
func (p *Position) Value() float64 {
	return float64(p.Quantity) * p.CurrentPrice
}

// AttentionKind tags which exit condition an attention position crossed.
type AttentionKind string

const (
	AttentionStopLoss   AttentionKind = "STOP_LOSS"
	AttentionTakeProfit AttentionKind = "TAKE_PROFIT"
)

// AttentionPosition pairs a position with the exit condition that fired.
type AttentionPosition struct {
	Position *Position
	Kind     AttentionKind
}

// RiskMetrics is a snapshot of portfolio concentration risk.
type RiskMetrics struct {
	ConcentrationIndex    float64  `json:"concentration_index"` // Herfindahl index over ACTIVE positions
	LargestPositionWeight float64  `json:"largest_position_weight"`
	LargestPositionCode   string   `json:"largest_position_code"`
	PositionsOverLimit    int      `json:"positions_over_limit"`
	OverLimitCodes        []string `json:"over_limit_codes,omitempty"`
	TotalExposure         float64  `json:"total_exposure"` // position value / account equity
}

// PositionAnalysis aggregates the held portfolio for status reporting.
type PositionAnalysis struct {
	TotalPositions  int         `json:"total_positions"`
	TotalValue      float64     `json:"total_value"`
	TotalProfitLoss float64     `json:"total_profit_loss"`
	ProfitLossRate  float64     `json:"profit_loss_rate"`
	ProfitableCount int         `json:"profitable_count"`
	LosingCount     int         `json:"losing_count"`
	LargestPosition *Position   `json:"largest_position,omitempty"`
	BestPerformer   *Position   `json:"best_performer,omitempty"`
	WorstPerformer  *Position   `json:"worst_performer,omitempty"`
	Risk            RiskMetrics `json:"risk"`
}
