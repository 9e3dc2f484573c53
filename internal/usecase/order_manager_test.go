package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgparkk/AutoSwingTrade/internal/domain"
	"github.com/tgparkk/AutoSwingTrade/internal/usecase"
)

// stubBroker records submitted orders and answers with canned results.
type stubBroker struct {
	submitted []domain.OrderRequest
	result    *domain.OrderResult
	submitErr error
}

func (s *stubBroker) GetAccountSnapshot(ctx context.Context) (*domain.AccountSnapshot, error) {
	return &domain.AccountSnapshot{}, nil
}

func (s *stubBroker) GetQuote(ctx context.Context, stockCode string) (float64, error) {
	return 0, nil
}

func (s *stubBroker) SubmitOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderResult, error) {
	s.submitted = append(s.submitted, req)
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	if s.result != nil {
		return s.result, nil
	}
	return &domain.OrderResult{
		OrderID:     "TEST-1",
		FilledQty:   req.Quantity,
		FilledPrice: req.Price,
		Success:     true,
		Message:     "filled",
	}, nil
}

func newTestOrderManager(broker domain.Broker) (*usecase.OrderManager, *domain.TradingConfig) {
	cfg := domain.DefaultTradingConfig()
	return usecase.NewOrderManager(broker, &cfg, nil), &cfg
}

func buySignal(code string, price float64, qty int) domain.TradingSignal {
	return domain.TradingSignal{
		StockCode:  code,
		StockName:  code + " Corp",
		SignalType: domain.SignalBuy,
		Price:      price,
		Quantity:   qty,
		OrderType:  domain.OrderMarket,
		Reason:     "pattern entry",
	}
}

func TestExecuteBuySizesOrderFromTradeBounds(t *testing.T) {
	broker := &stubBroker{}
	om, _ := newTestOrderManager(broker)
	snapshot := &domain.AccountSnapshot{Cash: 10_000_000, Equity: 10_000_000}

	// no requested quantity: sizing starts from the max trade amount
	rec, err := om.ExecuteBuy(context.Background(), buySignal("005930", 10000, 0), snapshot, map[string]*domain.Position{})
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.True(t, rec.Success)
	assert.Equal(t, 100, rec.Quantity)
	assert.InDelta(t, 1_000_000.0, rec.Amount, epsilon)
	require.Len(t, broker.submitted, 1)
	assert.Equal(t, 100, broker.submitted[0].Quantity)
}

func TestExecuteBuyRespectsPositionLimit(t *testing.T) {
	broker := &stubBroker{}
	om, cfg := newTestOrderManager(broker)
	cfg.MaxPositionCount = 1
	snapshot := &domain.AccountSnapshot{Cash: 10_000_000, Equity: 10_000_000}
	positions := map[string]*domain.Position{
		"000660": {StockCode: "000660", Quantity: 10, Status: domain.PositionActive},
	}

	rec, err := om.ExecuteBuy(context.Background(), buySignal("005930", 10000, 0), snapshot, positions)
	require.ErrorIs(t, err, domain.ErrPositionLimitExceeded)
	require.NotNil(t, rec)
	assert.False(t, rec.Success)
	assert.Empty(t, broker.submitted, "rejected order must not reach the broker")
}

func TestExecuteBuyRejectsDuplicate(t *testing.T) {
	broker := &stubBroker{}
	om, _ := newTestOrderManager(broker)
	snapshot := &domain.AccountSnapshot{Cash: 10_000_000, Equity: 10_000_000}
	positions := map[string]*domain.Position{
		"005930": {StockCode: "005930", Quantity: 10, Status: domain.PositionActive},
	}

	_, err := om.ExecuteBuy(context.Background(), buySignal("005930", 10000, 0), snapshot, positions)
	require.ErrorIs(t, err, domain.ErrDuplicatePosition)
	assert.Empty(t, broker.submitted)
}

func TestExecuteBuyAllowsPyramidingWhenEnabled(t *testing.T) {
	broker := &stubBroker{}
	om, cfg := newTestOrderManager(broker)
	cfg.AllowPyramiding = true
	snapshot := &domain.AccountSnapshot{Cash: 10_000_000, Equity: 10_000_000}
	positions := map[string]*domain.Position{
		"005930": {StockCode: "005930", Quantity: 10, Status: domain.PositionActive},
	}

	rec, err := om.ExecuteBuy(context.Background(), buySignal("005930", 10000, 0), snapshot, positions)
	require.NoError(t, err)
	assert.True(t, rec.Success)
}

func TestExecuteBuyInsufficientFunds(t *testing.T) {
	broker := &stubBroker{}
	om, _ := newTestOrderManager(broker)
	snapshot := &domain.AccountSnapshot{Cash: 50_000, Equity: 10_000_000}

	_, err := om.ExecuteBuy(context.Background(), buySignal("005930", 10000, 0), snapshot, map[string]*domain.Position{})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Empty(t, broker.submitted)
}

func TestExecuteBuyQuantityTooSmall(t *testing.T) {
	broker := &stubBroker{}
	om, _ := newTestOrderManager(broker)
	snapshot := &domain.AccountSnapshot{Cash: 10_000_000, Equity: 10_000_000}

	// price above the max trade amount floors the share count to zero
	_, err := om.ExecuteBuy(context.Background(), buySignal("005930", 2_000_000, 0), snapshot, map[string]*domain.Position{})
	require.ErrorIs(t, err, domain.ErrQuantityTooSmall)
	assert.Empty(t, broker.submitted)
}

func TestExecuteBuyBrokerRejectionIsNotAnError(t *testing.T) {
	broker := &stubBroker{result: &domain.OrderResult{OrderID: "R-1", Success: false, Message: "market closed"}}
	om, _ := newTestOrderManager(broker)
	snapshot := &domain.AccountSnapshot{Cash: 10_000_000, Equity: 10_000_000}

	rec, err := om.ExecuteBuy(context.Background(), buySignal("005930", 10000, 0), snapshot, map[string]*domain.Position{})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.False(t, rec.Success)
	assert.Equal(t, "market closed", rec.Message)
}

func TestExecuteBuyBrokerFailureProducesFailedRecord(t *testing.T) {
	broker := &stubBroker{submitErr: domain.NewTransientError("submit_order", errors.New("timeout"))}
	om, _ := newTestOrderManager(broker)
	snapshot := &domain.AccountSnapshot{Cash: 10_000_000, Equity: 10_000_000}

	rec, err := om.ExecuteBuy(context.Background(), buySignal("005930", 10000, 0), snapshot, map[string]*domain.Position{})
	require.NoError(t, err, "broker failures are recorded, not raised")
	require.NotNil(t, rec)
	assert.False(t, rec.Success)
	assert.Equal(t, 100, rec.Quantity)
}

func TestExecuteSellComputesFeesAndProfit(t *testing.T) {
	broker := &stubBroker{}
	om, cfg := newTestOrderManager(broker)
	positions := map[string]*domain.Position{
		"005930": {StockCode: "005930", Quantity: 100, AvgPrice: 10000, Status: domain.PositionActive},
	}

	sig := domain.TradingSignal{
		StockCode:  "005930",
		SignalType: domain.SignalSell,
		Price:      11000,
		Quantity:   100,
		OrderType:  domain.OrderMarket,
	}
	rec, err := om.ExecuteSell(context.Background(), sig, positions)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.True(t, rec.Success)

	amount := 11000.0 * 100
	commission := amount * cfg.CommissionRate
	tax := amount * cfg.TaxRate
	assert.InDelta(t, commission, rec.Commission, epsilon)
	assert.InDelta(t, tax, rec.Tax, epsilon)
	assert.InDelta(t, amount-commission-tax, rec.NetAmount, epsilon)
	assert.InDelta(t, 1000.0*100-commission-tax, rec.ProfitLoss, epsilon)
}

func TestExecuteSellOversellNeverReachesBroker(t *testing.T) {
	broker := &stubBroker{}
	om, _ := newTestOrderManager(broker)
	positions := map[string]*domain.Position{
		"005930": {StockCode: "005930", Quantity: 10, AvgPrice: 10000, Status: domain.PositionActive},
	}

	sig := domain.TradingSignal{StockCode: "005930", SignalType: domain.SignalSell, Price: 11000, Quantity: 20}
	_, err := om.ExecuteSell(context.Background(), sig, positions)
	require.ErrorIs(t, err, domain.ErrInsufficientQuantity)
	assert.Empty(t, broker.submitted)
	assert.Equal(t, 10, positions["005930"].Quantity)
}

func TestExecuteSellUnknownPosition(t *testing.T) {
	broker := &stubBroker{}
	om, _ := newTestOrderManager(broker)

	sig := domain.TradingSignal{StockCode: "999999", SignalType: domain.SignalSell, Price: 1000, Quantity: 1}
	_, err := om.ExecuteSell(context.Background(), sig, map[string]*domain.Position{})
	require.ErrorIs(t, err, domain.ErrUnknownPosition)
}

func TestStatsSplitBySide(t *testing.T) {
	broker := &stubBroker{}
	om, _ := newTestOrderManager(broker)
	snapshot := &domain.AccountSnapshot{Cash: 10_000_000, Equity: 10_000_000}
	positions := map[string]*domain.Position{
		"005930": {StockCode: "005930", Quantity: 100, AvgPrice: 10000, Status: domain.PositionActive},
	}

	_, err := om.ExecuteBuy(context.Background(), buySignal("000660", 10000, 0), snapshot, positions)
	require.NoError(t, err)

	sellSig := domain.TradingSignal{StockCode: "005930", SignalType: domain.SignalSell, Price: 11000, Quantity: 50}
	_, err = om.ExecuteSell(context.Background(), sellSig, positions)
	require.NoError(t, err)

	// a validation failure counts as a failed order
	_, err = om.ExecuteSell(context.Background(),
		domain.TradingSignal{StockCode: "NOPE", SignalType: domain.SignalSell, Price: 1, Quantity: 1},
		positions)
	require.Error(t, err)

	stats := om.Stats()
	assert.Equal(t, 3, stats.TotalOrders)
	assert.Equal(t, 1, stats.BuyOrders)
	assert.Equal(t, 2, stats.SellOrders)
	assert.Equal(t, 2, stats.SuccessfulOrders)
	assert.Equal(t, 1, stats.FailedOrders)
	assert.InDelta(t, 66.666, stats.SuccessRate, 0.01)
	assert.False(t, stats.LastOrderTime.IsZero())
}
