package domain

import "time"

// Holding is one instrument as reported by the broker's account inquiry.
type Holding struct {
	StockCode      string  `json:"stock_code"`
	StockName      string  `json:"stock_name"`
	Quantity       int     `json:"quantity"`
	AvgPrice       float64 `json:"avg_price"`
	CurrentPrice   float64 `json:"current_price"`
	ProfitLoss     float64 `json:"profit_loss"`
	ProfitLossRate float64 `json:"profit_loss_rate"`
}

// AccountSnapshot is the broker's view of the account at one instant.
type AccountSnapshot struct {
	Timestamp time.Time `json:"timestamp"`
	Cash      float64   `json:"cash"`   // available for new orders
	Equity    float64   `json:"equity"` // cash + holdings value
	Holdings  []Holding `json:"holdings"`
}

// OrderRequest is what the core hands to the broker.
type OrderRequest struct {
	StockCode string
	Side      SignalType
	Quantity  int
	Price     float64
	OrderType OrderType
}

// OrderResult is the broker's answer to an order submission. A rejected order
// comes back with Success=false and a broker message, not an error.
type OrderResult struct {
	OrderID     string  `json:"order_id"`
	FilledQty   int     `json:"filled_qty"`
	FilledPrice float64 `json:"filled_price"`
	Success     bool    `json:"success"`
	Message     string  `json:"message"`
}
