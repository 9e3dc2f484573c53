package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tgparkk/AutoSwingTrade/internal/domain"
)

// PaperBroker simulates a brokerage account in memory. Orders fill
// immediately at the requested price; quotes come from a mutable price table.
// It is the default broker for dry runs and tests.
type PaperBroker struct {
	mu       sync.Mutex
	cash     float64
	holdings map[string]*domain.Holding
	quotes   map[string]float64
	names    map[string]string
	orderSeq int
}

func NewPaperBroker(initialCash float64) *PaperBroker {
	return &PaperBroker{
		cash:     initialCash,
		holdings: make(map[string]*domain.Holding),
		quotes:   make(map[string]float64),
		names:    make(map[string]string),
	}
}

// SetQuote sets the simulated market price for an instrument.
func (b *PaperBroker) SetQuote(stockCode string, price float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.quotes[stockCode] = price
	if h, ok := b.holdings[stockCode]; ok {
		h.CurrentPrice = price
		h.ProfitLoss = (price - h.AvgPrice) * float64(h.Quantity)
		if h.AvgPrice > 0 {
			h.ProfitLossRate = (price - h.AvgPrice) / h.AvgPrice * 100
		}
	}
}

// SetName sets the display name used for holdings of an instrument.
func (b *PaperBroker) SetName(stockCode, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.names[stockCode] = name
}

func (b *PaperBroker) GetAccountSnapshot(ctx context.Context) (*domain.AccountSnapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	snapshot := &domain.AccountSnapshot{
		Timestamp: time.Now(),
		Cash:      b.cash,
		Equity:    b.cash,
	}
	for _, h := range b.holdings {
		snapshot.Holdings = append(snapshot.Holdings, *h)
		snapshot.Equity += h.CurrentPrice * float64(h.Quantity)
	}
	return snapshot, nil
}

func (b *PaperBroker) GetQuote(ctx context.Context, stockCode string) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	price, ok := b.quotes[stockCode]
	if !ok {
		return 0, domain.NewTransientError("get_quote", fmt.Errorf("no quote for %s", stockCode))
	}
	return price, nil
}

func (b *PaperBroker) SubmitOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if req.Quantity <= 0 || req.Price <= 0 {
		return &domain.OrderResult{Success: false, Message: "invalid quantity or price"}, nil
	}

	b.orderSeq++
	orderID := fmt.Sprintf("PAPER-%06d", b.orderSeq)
	amount := req.Price * float64(req.Quantity)

	switch req.Side {
	case domain.SignalBuy:
		if amount > b.cash {
			return &domain.OrderResult{OrderID: orderID, Success: false, Message: "insufficient cash"}, nil
		}
		b.cash -= amount
		h, ok := b.holdings[req.StockCode]
		if !ok {
			h = &domain.Holding{StockCode: req.StockCode, StockName: b.names[req.StockCode]}
			b.holdings[req.StockCode] = h
		}
		total := h.Quantity + req.Quantity
		h.AvgPrice = (h.AvgPrice*float64(h.Quantity) + amount) / float64(total)
		h.Quantity = total
		h.CurrentPrice = req.Price
	case domain.SignalSell:
		h, ok := b.holdings[req.StockCode]
		if !ok || h.Quantity < req.Quantity {
			return &domain.OrderResult{OrderID: orderID, Success: false, Message: "insufficient holdings"}, nil
		}
		b.cash += amount
		h.Quantity -= req.Quantity
		if h.Quantity == 0 {
			delete(b.holdings, req.StockCode)
		}
	default:
		return &domain.OrderResult{OrderID: orderID, Success: false, Message: "unsupported side"}, nil
	}

	b.quotes[req.StockCode] = req.Price
	return &domain.OrderResult{
		OrderID:     orderID,
		FilledQty:   req.Quantity,
		FilledPrice: req.Price,
		Success:     true,
		Message:     "filled",
	}, nil
}
