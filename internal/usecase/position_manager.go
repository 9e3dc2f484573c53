package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tgparkk/AutoSwingTrade/internal/domain"
)

// QuoteFunc resolves the current price of one instrument.
type QuoteFunc func(ctx context.Context, stockCode string) (float64, error)

// PositionManager owns the authoritative stock_code -> Position table. No
// other component mutates Position fields; the loop is the only caller, so
// the table itself needs no locking.
type PositionManager struct {
	cfg       *domain.TradingConfig
	repo      domain.PositionRepository // optional
	logger    *zap.Logger
	positions map[string]*domain.Position
	now       func() time.Time
}

func NewPositionManager(cfg *domain.TradingConfig, repo domain.PositionRepository, logger *zap.Logger) *PositionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PositionManager{
		cfg:       cfg,
		repo:      repo,
		logger:    logger,
		positions: make(map[string]*domain.Position),
		now:       time.Now,
	}
}

// LoadPersisted restores the last-known position set from the repository.
// Only codes not already held are added, so a restart recovers the entry
// metadata (pattern, market cap, volume ratio) that a broker snapshot cannot
// report. Returns the number of positions restored.
func (m *PositionManager) LoadPersisted(ctx context.Context) (int, error) {
	if m.repo == nil {
		return 0, nil
	}
	stored, err := m.repo.ListPositions(ctx)
	if err != nil {
		return 0, fmt.Errorf("list persisted positions: %w", err)
	}
	restored := 0
	for _, pos := range stored {
		if pos == nil || pos.Quantity <= 0 || pos.Status == domain.PositionClosed {
			continue
		}
		if _, known := m.positions[pos.StockCode]; known {
			continue
		}
		p := *pos
		m.positions[pos.StockCode] = &p
		restored++
	}
	if restored > 0 {
		m.logger.Info("persisted positions restored", zap.Int("count", restored))
	}
	return restored, nil
}

// LoadExisting rebuilds the position set from the broker's reported holdings.
// Holdings already known keep their entry metadata but take the broker's
// quantity and average price, which are authoritative; new ones are
// reconstructed with a "reconciled" entry reason. Calling twice with the same
// snapshot yields the same set.
func (m *PositionManager) LoadExisting(ctx context.Context, snapshot *domain.AccountSnapshot) int {
	if snapshot == nil {
		return 0
	}
	loaded := 0
	for _, h := range snapshot.Holdings {
		if h.Quantity <= 0 || h.StockCode == "" {
			continue
		}
		if pos, known := m.positions[h.StockCode]; known {
			if pos.Quantity != h.Quantity || pos.AvgPrice != h.AvgPrice {
				pos.Quantity = h.Quantity
				pos.AvgPrice = h.AvgPrice
				pos.LastUpdate = m.now()
				m.persist(ctx, pos)
			}
			continue
		}
		now := m.now()
		pos := &domain.Position{
			StockCode:      h.StockCode,
			StockName:      h.StockName,
			Quantity:       h.Quantity,
			AvgPrice:       h.AvgPrice,
			CurrentPrice:   h.CurrentPrice,
			ProfitLoss:     h.ProfitLoss,
			ProfitLossRate: h.ProfitLossRate,
			EntryTime:      now,
			LastUpdate:     now,
			Status:         domain.PositionActive,
			EntryReason:    "reconciled",
		}
		m.positions[h.StockCode] = pos
		m.persist(ctx, pos)
		loaded++
	}
	if loaded > 0 {
		m.logSummary()
	}
	return loaded
}

// RefreshPrices updates current prices and derived profit/loss for every
// ACTIVE position. Quantity and average price never change here.
func (m *PositionManager) RefreshPrices(ctx context.Context, quote QuoteFunc) error {
	var firstErr error
	for _, pos := range m.positions {
		if pos.Status == domain.PositionClosed {
			continue
		}
		price, err := quote(ctx, pos.StockCode)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("quote %s: %w", pos.StockCode, err)
			}
			continue
		}
		pos.CurrentPrice = price
		pos.ProfitLoss = (pos.CurrentPrice - pos.AvgPrice) * float64(pos.Quantity)
		if pos.AvgPrice > 0 {
			pos.ProfitLossRate = (pos.CurrentPrice - pos.AvgPrice) / pos.AvgPrice * 100
		}
		pos.LastUpdate = m.now()
	}
	return firstErr
}

// ApplyTrade mutates the position set for a successful trade record. Failed
// records are ignored. A SELL for an unknown code or beyond the held quantity
// fails without touching any position.
func (m *PositionManager) ApplyTrade(ctx context.Context, rec *domain.TradeRecord) error {
	if rec == nil || !rec.Success {
		return nil
	}
	switch rec.TradeType {
	case domain.SignalBuy:
		m.applyBuy(ctx, rec)
		return nil
	case domain.SignalSell:
		return m.applySell(ctx, rec)
	default:
		return fmt.Errorf("trade type %s cannot be applied", rec.TradeType)
	}
}

func (m *PositionManager) applyBuy(ctx context.Context, rec *domain.TradeRecord) {
	now := m.now()
	pos, held := m.positions[rec.StockCode]
	if held {
		total := pos.Quantity + rec.Quantity
		pos.AvgPrice = (pos.AvgPrice*float64(pos.Quantity) + rec.Price*float64(rec.Quantity)) / float64(total)
		pos.Quantity = total
		pos.CurrentPrice = rec.Price
		pos.Status = domain.PositionActive
		pos.LastUpdate = now
		m.persist(ctx, pos)
		m.logger.Debug("position increased",
			zap.String("stock_code", rec.StockCode), zap.Int("quantity", total))
		return
	}
	pos = &domain.Position{
		StockCode:    rec.StockCode,
		StockName:    rec.StockName,
		Quantity:     rec.Quantity,
		AvgPrice:     rec.Price,
		CurrentPrice: rec.Price,
		EntryTime:    now,
		LastUpdate:   now,
		Status:       domain.PositionActive,
		EntryReason:  rec.Reason,
	}
	m.positions[rec.StockCode] = pos
	m.persist(ctx, pos)
	m.logger.Info("position opened",
		zap.String("stock_code", rec.StockCode),
		zap.Int("quantity", rec.Quantity),
		zap.Float64("price", rec.Price))
}

func (m *PositionManager) applySell(ctx context.Context, rec *domain.TradeRecord) error {
	pos, held := m.positions[rec.StockCode]
	if !held {
		return fmt.Errorf("sell %s: %w", rec.StockCode, domain.ErrUnknownPosition)
	}
	if rec.Quantity > pos.Quantity {
		return fmt.Errorf("sell %s: %w (held %d, sell %d)",
			rec.StockCode, domain.ErrInsufficientQuantity, pos.Quantity, rec.Quantity)
	}

	pos.Quantity -= rec.Quantity
	pos.ProfitLoss = (rec.Price-pos.AvgPrice)*float64(rec.Quantity) - rec.Commission - rec.Tax
	pos.LastUpdate = m.now()

	if pos.Quantity == 0 {
		pos.Status = domain.PositionClosed
		m.persist(ctx, pos)
		delete(m.positions, rec.StockCode)
		if m.repo != nil {
			if err := m.repo.DeletePosition(ctx, rec.StockCode); err != nil {
				m.logger.Warn("failed to delete closed position", zap.Error(err))
			}
		}
		m.logger.Info("position closed", zap.String("stock_code", rec.StockCode))
		return nil
	}

	pos.PartialSold = true
	pos.Status = domain.PositionPartial
	m.persist(ctx, pos)
	m.logger.Info("position reduced",
		zap.String("stock_code", rec.StockCode), zap.Int("remaining", pos.Quantity))
	return nil
}

// SetExitLevels records recalculated stop-loss/take-profit prices.
func (m *PositionManager) SetExitLevels(ctx context.Context, stockCode string, takeProfit, stopLoss float64) {
	pos, held := m.positions[stockCode]
	if !held {
		return
	}
	if pos.TakeProfit == takeProfit && pos.StopLossPrice == stopLoss {
		return
	}
	pos.TakeProfit = takeProfit
	pos.StopLossPrice = stopLoss
	m.persist(ctx, pos)
}

// FindAttentionPositions returns positions whose current price crossed a
// configured exit level, tagged with the condition that fired.
func (m *PositionManager) FindAttentionPositions() []domain.AttentionPosition {
	var out []domain.AttentionPosition
	for _, pos := range m.positions {
		if pos.Status == domain.PositionClosed || pos.CurrentPrice <= 0 {
			continue
		}
		switch {
		case pos.StopLossPrice > 0 && pos.CurrentPrice <= pos.StopLossPrice:
			out = append(out, domain.AttentionPosition{Position: pos, Kind: domain.AttentionStopLoss})
		case pos.TakeProfit > 0 && pos.CurrentPrice >= pos.TakeProfit:
			out = append(out, domain.AttentionPosition{Position: pos, Kind: domain.AttentionTakeProfit})
		}
	}
	return out
}

// Analyze aggregates the held portfolio and delegates concentration math to
// the risk calculator.
func (m *PositionManager) Analyze(equity float64) domain.PositionAnalysis {
	analysis := domain.PositionAnalysis{TotalPositions: len(m.positions)}
	var largestValue float64
	bestRate := -1e18
	worstRate := 1e18

	for _, pos := range m.positions {
		value := pos.Value()
		analysis.TotalValue += value
		analysis.TotalProfitLoss += pos.ProfitLoss
		if pos.ProfitLoss > 0 {
			analysis.ProfitableCount++
		} else if pos.ProfitLoss < 0 {
			analysis.LosingCount++
		}
		if value > largestValue {
			largestValue = value
			analysis.LargestPosition = pos
		}
		if pos.ProfitLossRate > bestRate {
			bestRate = pos.ProfitLossRate
			analysis.BestPerformer = pos
		}
		if pos.ProfitLossRate < worstRate {
			worstRate = pos.ProfitLossRate
			analysis.WorstPerformer = pos
		}
	}
	if cost := analysis.TotalValue - analysis.TotalProfitLoss; cost > 0 {
		analysis.ProfitLossRate = analysis.TotalProfitLoss / cost * 100
	}
	analysis.Risk = ComputeConcentrationRisk(m.positions, equity, m.cfg.MaxPositionRatio)
	return analysis
}

// Get returns the held position for a code, or nil.
func (m *PositionManager) Get(stockCode string) *domain.Position {
	return m.positions[stockCode]
}

func (m *PositionManager) Count() int { return len(m.positions) }

// Snapshot returns copies of all held positions for read-only consumers.
func (m *PositionManager) Snapshot() []domain.Position {
	out := make([]domain.Position, 0, len(m.positions))
	for _, pos := range m.positions {
		out = append(out, *pos)
	}
	return out
}

// Positions exposes the live table to the order pipeline for validation.
// Callers must not mutate entries.
func (m *PositionManager) Positions() map[string]*domain.Position {
	return m.positions
}

func (m *PositionManager) persist(ctx context.Context, pos *domain.Position) {
	if m.repo == nil {
		return
	}
	if err := m.repo.UpsertPosition(ctx, pos); err != nil {
		m.logger.Warn("failed to persist position",
			zap.String("stock_code", pos.StockCode), zap.Error(err))
	}
}

func (m *PositionManager) logSummary() {
	var totalValue, totalPL float64
	profitable := 0
	for _, pos := range m.positions {
		totalValue += pos.Value()
		totalPL += pos.ProfitLoss
		if pos.ProfitLoss > 0 {
			profitable++
		}
	}
	m.logger.Info("position summary",
		zap.Int("count", len(m.positions)),
		zap.Float64("total_value", totalValue),
		zap.Float64("profit_loss", totalPL),
		zap.Int("profitable", profitable))
}
