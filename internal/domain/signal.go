package domain

import "time"

type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
	SignalHold SignalType = "HOLD"
)

type OrderType string

const (
	OrderMarket     OrderType = "MARKET"
	OrderLimit      OrderType = "LIMIT"
	OrderStopLoss   OrderType = "STOP_LOSS"
	OrderTakeProfit OrderType = "TAKE_PROFIT"
)

// TradingSignal is a proposed action. Signals are consumed once per tick and
// never persisted.
type TradingSignal struct {
	StockCode  string     `json:"stock_code"`
	StockName  string     `json:"stock_name"`
	SignalType SignalType `json:"signal_type"`
	Price      float64    `json:"price"`
	Quantity   int        `json:"quantity"`
	Reason     string     `json:"reason"`
	Confidence float64    `json:"confidence"` // 0.0 .. 1.0
	OrderType  OrderType  `json:"order_type"`
	Priority   int        `json:"priority"`
	Timestamp  time.Time  `json:"timestamp"`
}

// TradeRecord is the immutable audit row written after every order attempt,
// successful or not. StockCode is the back-reference to the originating
// position.
type TradeRecord struct {
	Timestamp     time.Time  `json:"timestamp"`
	TradeType     SignalType `json:"trade_type"`
	StockCode     string     `json:"stock_code"`
	StockName     string     `json:"stock_name"`
	Quantity      int        `json:"quantity"`
	Price         float64    `json:"price"`
	Amount        float64    `json:"amount"`
	Reason        string     `json:"reason"`
	OrderID       string     `json:"order_id"`
	Success       bool       `json:"success"`
	Message       string     `json:"message"`
	Commission    float64    `json:"commission"`
	Tax           float64    `json:"tax"`
	NetAmount     float64    `json:"net_amount"`
	ProfitLoss    float64    `json:"profit_loss"`
	ExecutionTime time.Time  `json:"execution_time"`
}
