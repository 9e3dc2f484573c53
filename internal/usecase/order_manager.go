package usecase

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tgparkk/AutoSwingTrade/internal/domain"
)

// OrderStats is the running order tally, split by side.
type OrderStats struct {
	TotalOrders      int       `json:"total_orders"`
	SuccessfulOrders int       `json:"successful_orders"`
	FailedOrders     int       `json:"failed_orders"`
	BuyOrders        int       `json:"buy_orders"`
	SellOrders       int       `json:"sell_orders"`
	SuccessRate      float64   `json:"success_rate"`
	LastOrderTime    time.Time `json:"last_order_time"`
}

// OrderManager validates, sizes and dispatches orders. It holds no position
// state; only the running statistics, which the web front end may read
// concurrently.
type OrderManager struct {
	broker domain.Broker
	cfg    *domain.TradingConfig
	logger *zap.Logger
	now    func() time.Time

	mu    sync.Mutex
	stats OrderStats
}

func NewOrderManager(broker domain.Broker, cfg *domain.TradingConfig, logger *zap.Logger) *OrderManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderManager{broker: broker, cfg: cfg, logger: logger, now: time.Now}
}

// ExecuteBuy validates and sizes a buy signal against the live account
// snapshot, then submits it. Every attempt yields a TradeRecord; validation
// failures and broker rejections come back as failed records together with
// the classifying error, never as a loop-level fault.
func (o *OrderManager) ExecuteBuy(ctx context.Context, signal domain.TradingSignal,
	snapshot *domain.AccountSnapshot, positions map[string]*domain.Position) (*domain.TradeRecord, error) {

	if len(positions) >= o.cfg.MaxPositionCount {
		err := fmt.Errorf("%w: %d/%d", domain.ErrPositionLimitExceeded, len(positions), o.cfg.MaxPositionCount)
		return o.recordFailure(signal, domain.SignalBuy, err), err
	}
	if pos, held := positions[signal.StockCode]; held && pos.Status != domain.PositionClosed && !o.cfg.AllowPyramiding {
		err := fmt.Errorf("%w: %s", domain.ErrDuplicatePosition, signal.StockCode)
		return o.recordFailure(signal, domain.SignalBuy, err), err
	}

	quantity, amount, err := o.adjustBuyQuantity(signal, snapshot)
	if err != nil {
		return o.recordFailure(signal, domain.SignalBuy, err), err
	}

	result, err := o.submit(ctx, domain.OrderRequest{
		StockCode: signal.StockCode,
		Side:      domain.SignalBuy,
		Quantity:  quantity,
		Price:     signal.Price,
		OrderType: signal.OrderType,
	})
	if err != nil {
		rec := o.recordFailure(signal, domain.SignalBuy, err)
		rec.Quantity = quantity
		return rec, nil // retry exhaustion is an order failure, not a loop fault
	}

	rec := &domain.TradeRecord{
		Timestamp:  o.now(),
		TradeType:  domain.SignalBuy,
		StockCode:  signal.StockCode,
		StockName:  signal.StockName,
		Quantity:   quantity,
		Price:      signal.Price,
		Amount:     amount,
		Reason:     signal.Reason,
		OrderID:    result.OrderID,
		Success:    result.Success,
		Message:    result.Message,
		Commission: amount * o.cfg.CommissionRate,
	}
	rec.NetAmount = rec.Amount + rec.Commission
	if result.Success {
		rec.ExecutionTime = o.now()
		o.logger.Info("buy order filled",
			zap.String("stock_code", signal.StockCode),
			zap.Int("quantity", quantity),
			zap.Float64("price", signal.Price),
			zap.String("order_id", result.OrderID))
	} else {
		o.logger.Warn("buy order rejected",
			zap.String("stock_code", signal.StockCode), zap.String("message", result.Message))
	}
	o.track(domain.SignalBuy, result.Success)
	return rec, nil
}

// adjustBuyQuantity clamps the requested amount to the configured trade
// bounds and the per-position portfolio cap, then floors the share count.
func (o *OrderManager) adjustBuyQuantity(signal domain.TradingSignal, snapshot *domain.AccountSnapshot) (int, float64, error) {
	if signal.Price <= 0 {
		return 0, 0, fmt.Errorf("%w: price %f", domain.ErrQuantityTooSmall, signal.Price)
	}

	amount := signal.Price * float64(signal.Quantity)
	if amount <= 0 {
		amount = o.cfg.MaxTradeAmount
	}
	if amount > o.cfg.MaxTradeAmount {
		amount = o.cfg.MaxTradeAmount
	}
	if amount < o.cfg.MinTradeAmount {
		amount = o.cfg.MinTradeAmount
	}
	if limit := snapshot.Equity * o.cfg.MaxPositionRatio; amount > limit {
		amount = limit
	}

	if amount > snapshot.Cash {
		return 0, 0, fmt.Errorf("%w: need %.0f, cash %.0f", domain.ErrInsufficientFunds, amount, snapshot.Cash)
	}

	quantity := int(math.Floor(amount / signal.Price))
	if quantity <= 0 {
		return 0, 0, fmt.Errorf("%w: amount %.0f at price %.0f", domain.ErrQuantityTooSmall, amount, signal.Price)
	}
	return quantity, signal.Price * float64(quantity), nil
}

// ExecuteSell validates a sell signal against the held position and submits
// it. Oversells never reach the broker.
func (o *OrderManager) ExecuteSell(ctx context.Context, signal domain.TradingSignal,
	positions map[string]*domain.Position) (*domain.TradeRecord, error) {

	pos, held := positions[signal.StockCode]
	if !held || pos.Status == domain.PositionClosed {
		err := fmt.Errorf("%w: %s", domain.ErrUnknownPosition, signal.StockCode)
		return o.recordFailure(signal, domain.SignalSell, err), err
	}
	if signal.Quantity > pos.Quantity {
		err := fmt.Errorf("%w: held %d, sell %d", domain.ErrInsufficientQuantity, pos.Quantity, signal.Quantity)
		return o.recordFailure(signal, domain.SignalSell, err), err
	}
	quantity := signal.Quantity
	if quantity <= 0 {
		quantity = pos.Quantity
	}

	result, err := o.submit(ctx, domain.OrderRequest{
		StockCode: signal.StockCode,
		Side:      domain.SignalSell,
		Quantity:  quantity,
		Price:     signal.Price,
		OrderType: signal.OrderType,
	})
	if err != nil {
		rec := o.recordFailure(signal, domain.SignalSell, err)
		rec.Quantity = quantity
		return rec, nil
	}

	amount := signal.Price * float64(quantity)
	commission := amount * o.cfg.CommissionRate
	tax := amount * o.cfg.TaxRate
	rec := &domain.TradeRecord{
		Timestamp:  o.now(),
		TradeType:  domain.SignalSell,
		StockCode:  signal.StockCode,
		StockName:  signal.StockName,
		Quantity:   quantity,
		Price:      signal.Price,
		Amount:     amount,
		Reason:     signal.Reason,
		OrderID:    result.OrderID,
		Success:    result.Success,
		Message:    result.Message,
		Commission: commission,
		Tax:        tax,
		NetAmount:  amount - commission - tax,
		ProfitLoss: (signal.Price-pos.AvgPrice)*float64(quantity) - commission - tax,
	}
	if result.Success {
		rec.ExecutionTime = o.now()
		o.logger.Info("sell order filled",
			zap.String("stock_code", signal.StockCode),
			zap.Int("quantity", quantity),
			zap.Float64("price", signal.Price),
			zap.Float64("profit_loss", rec.ProfitLoss))
	} else {
		o.logger.Warn("sell order rejected",
			zap.String("stock_code", signal.StockCode), zap.String("message", result.Message))
	}
	o.track(domain.SignalSell, result.Success)
	return rec, nil
}

func (o *OrderManager) submit(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error) {
	result, err := o.broker.SubmitOrder(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("submit %s %s: %w", req.Side, req.StockCode, err)
	}
	return result, nil
}

func (o *OrderManager) recordFailure(signal domain.TradingSignal, side domain.SignalType, cause error) *domain.TradeRecord {
	o.track(side, false)
	return &domain.TradeRecord{
		Timestamp: o.now(),
		TradeType: side,
		StockCode: signal.StockCode,
		StockName: signal.StockName,
		Quantity:  signal.Quantity,
		Price:     signal.Price,
		Reason:    signal.Reason,
		Success:   false,
		Message:   cause.Error(),
	}
}

func (o *OrderManager) track(side domain.SignalType, success bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stats.TotalOrders++
	if side == domain.SignalBuy {
		o.stats.BuyOrders++
	} else {
		o.stats.SellOrders++
	}
	if success {
		o.stats.SuccessfulOrders++
	} else {
		o.stats.FailedOrders++
	}
	o.stats.LastOrderTime = o.now()
}

// Stats returns a copy of the running order statistics.
func (o *OrderManager) Stats() OrderStats {
	o.mu.Lock()
	defer o.mu.Unlock()
	stats := o.stats
	if stats.TotalOrders > 0 {
		stats.SuccessRate = float64(stats.SuccessfulOrders) / float64(stats.TotalOrders) * 100
	}
	return stats
}
