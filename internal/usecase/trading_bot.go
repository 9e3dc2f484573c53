package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tgparkk/AutoSwingTrade/internal/domain"
)

const (
	commandQueueSize = 16
	signalQueueSize  = 64

	// consecutive tick failures before the loop gives up
	maxTickFailures = 3

	dispatchTimeout = 3 * time.Second

	dayLayout = "2006-01-02"
)

// TradingBot runs the periodic control loop. All trading state transitions
// happen on the loop goroutine; the web front end talks to it only through
// Dispatch and SubmitSignal.
type TradingBot struct {
	cfg       *domain.TradingConfig
	logger    *zap.Logger
	broker    domain.Broker
	positions *PositionManager
	orders    *OrderManager
	risk      *RiskCalculator
	trades    domain.TradeRepository // optional

	commands chan domain.Command
	signals  chan domain.TradingSignal
	alerts   *AlertQueue
	now      func() time.Time
	base     context.Context // process context, recorded by Start for restarts via Dispatch

	mu             sync.Mutex
	state          domain.BotState
	lastError      string
	lastTick       time.Time
	lastRisk       domain.RiskMetrics
	dailyDay       string
	dailyTrades    int
	dailyPL        float64
	breakerTripped bool
	tickFailures   int
	loopDone       chan struct{}
}

func NewTradingBot(cfg *domain.TradingConfig, broker domain.Broker, positions *PositionManager,
	orders *OrderManager, risk *RiskCalculator, trades domain.TradeRepository, logger *zap.Logger) *TradingBot {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TradingBot{
		cfg:       cfg,
		logger:    logger,
		broker:    broker,
		positions: positions,
		orders:    orders,
		risk:      risk,
		trades:    trades,
		commands:  make(chan domain.Command, commandQueueSize),
		signals:   make(chan domain.TradingSignal, signalQueueSize),
		alerts:    NewAlertQueue(128),
		now:       time.Now,
		state:     domain.StateStopped,
	}
}

// Alerts is the outbound notification stream for the front end.
func (b *TradingBot) Alerts() *AlertQueue { return b.alerts }

// PositionsSnapshot returns read-only copies of the held positions.
func (b *TradingBot) PositionsSnapshot() []domain.Position { return b.positions.Snapshot() }

// OrderStats returns the running order statistics.
func (b *TradingBot) OrderStats() OrderStats { return b.orders.Stats() }

// State returns the current state machine value.
func (b *TradingBot) State() domain.BotState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Start moves STOPPED to RUNNING and launches the loop goroutine. Starting
// from any other state is rejected; an ERROR bot must be stopped first. A
// failed initialization leaves the bot in ERROR instead of RUNNING.
func (b *TradingBot) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.state != domain.StateStopped {
		state := b.state
		b.mu.Unlock()
		return &domain.InvalidStateError{Command: domain.CmdStart, State: state}
	}
	b.state = domain.StateRunning
	b.lastError = ""
	b.tickFailures = 0
	b.breakerTripped = false
	b.base = ctx
	b.mu.Unlock()

	if err := b.initialize(ctx); err != nil {
		b.mu.Lock()
		b.state = domain.StateError
		b.lastError = err.Error()
		b.mu.Unlock()
		b.logger.Error("trading bot initialization failed", zap.Error(err))
		b.alerts.Publish(domain.AlertError, fmt.Sprintf("bot failed to start: %v", err))
		return err
	}

	b.seedDailyCounters(ctx)

	done := make(chan struct{})
	b.mu.Lock()
	b.loopDone = done
	b.mu.Unlock()

	go b.run(ctx, done)
	b.logger.Info("trading bot started", zap.Duration("check_interval", b.cfg.CheckInterval))
	b.alerts.Publish(domain.AlertInfo, "trading bot started")
	return nil
}

// initialize restores persisted positions, then reconciles them against a
// fresh account snapshot. Without a snapshot the bot cannot trade, so a
// broker failure here aborts the start.
func (b *TradingBot) initialize(ctx context.Context) error {
	restored, err := b.positions.LoadPersisted(ctx)
	if err != nil {
		return fmt.Errorf("restore persisted positions: %w", err)
	}
	snapshot, err := b.broker.GetAccountSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("account snapshot: %w", err)
	}
	reconciled := b.positions.LoadExisting(ctx, snapshot)
	b.logger.Info("trading bot initialized",
		zap.Int("restored", restored),
		zap.Int("reconciled", reconciled),
		zap.Float64("equity", snapshot.Equity))
	return nil
}

// baseCtx returns the process context recorded by the first Start, so a
// restart through Dispatch shares the process lifetime.
func (b *TradingBot) baseCtx() context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.base != nil {
		return b.base
	}
	return context.Background()
}

// Stop requests a stop and waits for the loop goroutine to exit.
func (b *TradingBot) Stop() domain.CommandResult {
	res := b.Dispatch(domain.CmdStop)
	b.mu.Lock()
	done := b.loopDone
	b.mu.Unlock()
	if res.Accepted && done != nil {
		select {
		case <-done:
		case <-time.After(dispatchTimeout):
		}
	}
	return res
}

// SubmitSignal offers an externally produced signal to the loop. It never
// blocks; a full queue refuses the signal.
func (b *TradingBot) SubmitSignal(sig domain.TradingSignal) bool {
	if sig.Timestamp.IsZero() {
		sig.Timestamp = b.now()
	}
	select {
	case b.signals <- sig:
		return true
	default:
		b.logger.Warn("signal queue full, signal refused", zap.String("stock_code", sig.StockCode))
		return false
	}
}

// Dispatch routes a remote-control command. START and STOP of a dead loop are
// handled here directly; commands for a live loop are queued and answered by
// the loop goroutine. The caller always gets a definitive result.
func (b *TradingBot) Dispatch(cmdType domain.CommandType) domain.CommandResult {
	switch cmdType {
	case domain.CmdStatus:
		return domain.CommandResult{Accepted: true, State: b.State(), Status: b.Status()}
	case domain.CmdStart:
		if err := b.Start(b.baseCtx()); err != nil {
			return domain.CommandResult{Accepted: false, Message: err.Error(), State: b.State()}
		}
		return domain.CommandResult{Accepted: true, Message: "started", State: domain.StateRunning}
	case domain.CmdStop:
		b.mu.Lock()
		if b.state == domain.StateStopped {
			b.mu.Unlock()
			err := &domain.InvalidStateError{Command: domain.CmdStop, State: domain.StateStopped}
			return domain.CommandResult{Accepted: false, Message: err.Error(), State: domain.StateStopped}
		}
		if b.state == domain.StateError {
			// loop is already dead; clear the fault directly
			b.state = domain.StateStopped
			b.mu.Unlock()
			b.logger.Info("error state cleared, bot stopped")
			b.alerts.Publish(domain.AlertInfo, "bot stopped")
			return domain.CommandResult{Accepted: true, Message: "stopped", State: domain.StateStopped}
		}
		b.mu.Unlock()
		return b.enqueue(cmdType)
	case domain.CmdPause, domain.CmdResume:
		b.mu.Lock()
		alive := b.state == domain.StateRunning || b.state == domain.StatePaused
		state := b.state
		b.mu.Unlock()
		if !alive {
			err := &domain.InvalidStateError{Command: cmdType, State: state}
			return domain.CommandResult{Accepted: false, Message: err.Error(), State: state}
		}
		return b.enqueue(cmdType)
	default:
		return domain.CommandResult{Accepted: false, Message: fmt.Sprintf("unknown command %s", cmdType), State: b.State()}
	}
}

func (b *TradingBot) enqueue(cmdType domain.CommandType) domain.CommandResult {
	cmd := domain.Command{Type: cmdType, Reply: make(chan domain.CommandResult, 1)}
	select {
	case b.commands <- cmd:
	default:
		return domain.CommandResult{Accepted: false, Message: "command queue full", State: b.State()}
	}
	select {
	case res := <-cmd.Reply:
		return res
	case <-time.After(dispatchTimeout):
		return domain.CommandResult{Accepted: false, Message: "command timed out", State: b.State()}
	}
}

// Status assembles the on-demand status snapshot.
func (b *TradingBot) Status() *domain.BotStatusSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &domain.BotStatusSnapshot{
		State:           b.state,
		PositionCount:   b.positions.Count(),
		TodayProfitLoss: b.dailyPL,
		TodayTrades:     b.dailyTrades,
		LastError:       b.lastError,
		LastTick:        b.lastTick,
		Risk:            b.lastRisk,
	}
}

func (b *TradingBot) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(b.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.setState(domain.StateStopped)
			b.logger.Info("trading bot context cancelled, stopping")
			return
		case cmd := <-b.commands:
			if exit := b.handleCommand(cmd); exit {
				return
			}
		case <-ticker.C:
			if exit := b.runTick(ctx); exit {
				return
			}
		}
	}
}

// runTick executes one cycle and folds the result into the failure counter.
// It reports whether the loop must exit.
func (b *TradingBot) runTick(ctx context.Context) bool {
	exit, err := b.tick(ctx)
	if exit {
		return true
	}
	return b.recordTickResult(err)
}

func (b *TradingBot) recordTickResult(err error) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		b.tickFailures = 0
		return false
	}
	b.tickFailures++
	b.logger.Error("tick failed", zap.Int("consecutive", b.tickFailures), zap.Error(err))
	if b.tickFailures < maxTickFailures {
		return false
	}
	b.state = domain.StateError
	b.lastError = err.Error()
	b.alerts.Publish(domain.AlertError, fmt.Sprintf("bot entered ERROR state: %v", err))
	b.logger.Error("too many consecutive tick failures, entering ERROR state")
	return true
}

// tick is one pass of the control loop: commands first, then gates, then
// account reconciliation, exit levels, and order flow. It reports whether the
// loop must exit and any broker-side failure.
func (b *TradingBot) tick(ctx context.Context) (exit bool, err error) {
	if exit := b.drainCommands(); exit {
		return true, nil
	}
	if b.State() != domain.StateRunning {
		return false, nil
	}

	now := b.now()
	b.rotateDay(now)
	b.mu.Lock()
	b.lastTick = now
	b.mu.Unlock()

	if !b.cfg.WithinTradingHours(now) {
		return false, nil
	}

	snapshot, err := b.broker.GetAccountSnapshot(ctx)
	if err != nil {
		return false, fmt.Errorf("account snapshot: %w", err)
	}

	b.positions.LoadExisting(ctx, snapshot)
	if err := b.positions.RefreshPrices(ctx, b.broker.GetQuote); err != nil {
		return false, fmt.Errorf("refresh prices: %w", err)
	}

	b.updateExitLevels(ctx)

	analysis := b.positions.Analyze(snapshot.Equity)
	b.mu.Lock()
	b.lastRisk = analysis.Risk
	b.mu.Unlock()
	if analysis.Risk.PositionsOverLimit > 0 {
		b.alerts.Publish(domain.AlertWarning,
			fmt.Sprintf("%d position(s) over the weight limit", analysis.Risk.PositionsOverLimit))
	}

	for _, sig := range b.exitSignals() {
		b.processSignal(ctx, snapshot, sig)
		if b.State() != domain.StateRunning {
			return false, nil
		}
	}
	b.drainSignals(ctx, snapshot)
	return false, nil
}

// drainCommands empties the inbound queue without blocking. At most one state
// transition is applied per tick; later transition commands in the same batch
// are rejected.
func (b *TradingBot) drainCommands() (exit bool) {
	transitioned := false
	for {
		select {
		case cmd := <-b.commands:
			if transitioned && cmd.Type != domain.CmdStatus {
				b.reply(cmd, domain.CommandResult{
					Accepted: false,
					Message:  "another state transition was already applied this cycle",
					State:    b.State(),
				})
				continue
			}
			before := b.State()
			if b.handleCommand(cmd) {
				return true
			}
			if b.State() != before {
				transitioned = true
			}
		default:
			return false
		}
	}
}

// handleCommand applies one queued command on the loop goroutine. It reports
// whether the loop must exit.
func (b *TradingBot) handleCommand(cmd domain.Command) (exit bool) {
	switch cmd.Type {
	case domain.CmdStop:
		b.setState(domain.StateStopped)
		b.logger.Info("trading bot stopped")
		b.alerts.Publish(domain.AlertInfo, "bot stopped")
		b.reply(cmd, domain.CommandResult{Accepted: true, Message: "stopped", State: domain.StateStopped})
		return true
	case domain.CmdPause:
		b.mu.Lock()
		if b.state != domain.StateRunning {
			err := &domain.InvalidStateError{Command: cmd.Type, State: b.state}
			state := b.state
			b.mu.Unlock()
			b.reply(cmd, domain.CommandResult{Accepted: false, Message: err.Error(), State: state})
			return false
		}
		b.state = domain.StatePaused
		b.mu.Unlock()
		b.logger.Info("trading bot paused")
		b.alerts.Publish(domain.AlertInfo, "bot paused")
		b.reply(cmd, domain.CommandResult{Accepted: true, Message: "paused", State: domain.StatePaused})
		return false
	case domain.CmdResume:
		b.mu.Lock()
		if b.state != domain.StatePaused {
			err := &domain.InvalidStateError{Command: cmd.Type, State: b.state}
			state := b.state
			b.mu.Unlock()
			b.reply(cmd, domain.CommandResult{Accepted: false, Message: err.Error(), State: state})
			return false
		}
		b.state = domain.StateRunning
		b.breakerTripped = false
		b.mu.Unlock()
		b.logger.Info("trading bot resumed")
		b.alerts.Publish(domain.AlertInfo, "bot resumed")
		b.reply(cmd, domain.CommandResult{Accepted: true, Message: "resumed", State: domain.StateRunning})
		return false
	case domain.CmdStatus:
		b.reply(cmd, domain.CommandResult{Accepted: true, State: b.State(), Status: b.Status()})
		return false
	default:
		err := &domain.InvalidStateError{Command: cmd.Type, State: b.State()}
		b.reply(cmd, domain.CommandResult{Accepted: false, Message: err.Error(), State: b.State()})
		return false
	}
}

func (b *TradingBot) reply(cmd domain.Command, res domain.CommandResult) {
	if cmd.Reply == nil {
		return
	}
	select {
	case cmd.Reply <- res:
	default:
	}
}

func (b *TradingBot) setState(s domain.BotState) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}

// updateExitLevels recomputes stop-loss and take-profit for every held
// position from its recorded pattern provenance.
func (b *TradingBot) updateExitLevels(ctx context.Context) {
	for code, pos := range b.positions.Positions() {
		if pos.Status == domain.PositionClosed {
			continue
		}
		tp, sl := b.risk.ComputeExitLevels(pos, NeutralExitContext())
		if tp > 0 && sl > 0 {
			b.positions.SetExitLevels(ctx, code, tp, sl)
		}
	}
}

// exitSignals converts positions that crossed an exit level into sell
// signals. A first take-profit touch sells half the position; stop-loss and
// repeat take-profit touches exit in full.
func (b *TradingBot) exitSignals() []domain.TradingSignal {
	var out []domain.TradingSignal
	for _, att := range b.positions.FindAttentionPositions() {
		pos := att.Position
		sig := domain.TradingSignal{
			StockCode:  pos.StockCode,
			StockName:  pos.StockName,
			SignalType: domain.SignalSell,
			Price:      pos.CurrentPrice,
			Quantity:   pos.Quantity,
			OrderType:  domain.OrderMarket,
			Timestamp:  b.now(),
		}
		switch att.Kind {
		case domain.AttentionStopLoss:
			sig.Reason = fmt.Sprintf("stop loss hit at %.0f", pos.StopLossPrice)
			sig.Priority = 1
		case domain.AttentionTakeProfit:
			sig.Reason = fmt.Sprintf("take profit hit at %.0f", pos.TakeProfit)
			sig.Priority = 2
			if !pos.PartialSold && pos.Quantity > 1 {
				sig.Quantity = pos.Quantity / 2
				sig.Reason = fmt.Sprintf("take profit hit at %.0f (partial)", pos.TakeProfit)
			}
		}
		out = append(out, sig)
	}
	return out
}

// drainSignals consumes the external signal queue for this tick. Processing
// stops as soon as the bot leaves RUNNING, so a tripped breaker or a queued
// STOP discards the rest of the batch.
func (b *TradingBot) drainSignals(ctx context.Context, snapshot *domain.AccountSnapshot) {
	for {
		if b.State() != domain.StateRunning {
			return
		}
		select {
		case sig := <-b.signals:
			b.processSignal(ctx, snapshot, sig)
		default:
			return
		}
	}
}

func (b *TradingBot) processSignal(ctx context.Context, snapshot *domain.AccountSnapshot, sig domain.TradingSignal) {
	var rec *domain.TradeRecord
	var err error

	switch sig.SignalType {
	case domain.SignalBuy:
		rec, err = b.orders.ExecuteBuy(ctx, sig, snapshot, b.positions.Positions())
	case domain.SignalSell:
		rec, err = b.orders.ExecuteSell(ctx, sig, b.positions.Positions())
	default:
		return
	}
	if err != nil {
		b.logger.Warn("signal refused",
			zap.String("stock_code", sig.StockCode),
			zap.String("signal_type", string(sig.SignalType)),
			zap.Error(err))
	}
	if rec == nil {
		return
	}

	if applyErr := b.positions.ApplyTrade(ctx, rec); applyErr != nil {
		b.logger.Error("trade could not be applied to positions",
			zap.String("stock_code", rec.StockCode), zap.Error(applyErr))
	}
	b.saveTrade(ctx, rec)

	if rec.Success {
		b.mu.Lock()
		b.dailyTrades++
		b.dailyPL += rec.ProfitLoss
		b.mu.Unlock()
		b.alerts.Publish(domain.AlertTrade,
			fmt.Sprintf("%s %s x%d @ %.0f", rec.TradeType, rec.StockCode, rec.Quantity, rec.Price))
		b.checkCircuitBreaker(snapshot.Equity)
	}
}

// checkCircuitBreaker pauses the bot once per day-window when the daily trade
// count or the daily loss limit is breached. The breaker never stops the bot.
func (b *TradingBot) checkCircuitBreaker(equity float64) {
	b.mu.Lock()
	if b.breakerTripped || b.state != domain.StateRunning {
		b.mu.Unlock()
		return
	}
	var reason string
	if b.cfg.MaxDailyTrades > 0 && b.dailyTrades >= b.cfg.MaxDailyTrades {
		reason = fmt.Sprintf("daily trade limit reached (%d)", b.dailyTrades)
	} else if b.cfg.MaxDailyLoss > 0 && equity > 0 && b.dailyPL <= -b.cfg.MaxDailyLoss*equity {
		reason = fmt.Sprintf("daily loss limit reached (%.0f)", b.dailyPL)
	}
	if reason == "" {
		b.mu.Unlock()
		return
	}
	b.breakerTripped = true
	b.state = domain.StatePaused
	b.mu.Unlock()

	b.logger.Warn("circuit breaker tripped, bot paused", zap.String("reason", reason))
	b.alerts.Publish(domain.AlertWarning, "circuit breaker: "+reason)
}

// rotateDay resets the daily counters when the calendar day changes.
func (b *TradingBot) rotateDay(now time.Time) {
	day := now.Format(dayLayout)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dailyDay == day {
		return
	}
	b.dailyDay = day
	b.dailyTrades = 0
	b.dailyPL = 0
	b.breakerTripped = false
}

// seedDailyCounters restores today's trade count and realized profit/loss
// from the audit trail, so a restart cannot reset the circuit breaker.
func (b *TradingBot) seedDailyCounters(ctx context.Context) {
	day := b.now().Format(dayLayout)
	b.mu.Lock()
	b.dailyDay = day
	b.mu.Unlock()
	if b.trades == nil {
		return
	}
	count, pl, err := b.trades.DailyStats(ctx, day)
	if err != nil {
		b.logger.Warn("failed to seed daily counters", zap.Error(err))
		return
	}
	b.mu.Lock()
	b.dailyTrades = count
	b.dailyPL = pl
	b.mu.Unlock()
	if count > 0 {
		b.logger.Info("daily counters restored",
			zap.Int("trades", count), zap.Float64("profit_loss", pl))
	}
}

func (b *TradingBot) saveTrade(ctx context.Context, rec *domain.TradeRecord) {
	if b.trades == nil {
		return
	}
	if err := b.trades.SaveTradeRecord(ctx, rec); err != nil {
		b.logger.Warn("failed to save trade record",
			zap.String("stock_code", rec.StockCode), zap.Error(err))
	}
}
