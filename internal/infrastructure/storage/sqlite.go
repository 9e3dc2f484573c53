package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tgparkk/AutoSwingTrade/internal/domain"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS positions (
			stock_code TEXT PRIMARY KEY,
			stock_name TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			avg_price REAL NOT NULL,
			current_price REAL NOT NULL,
			profit_loss REAL NOT NULL DEFAULT 0,
			profit_loss_rate REAL NOT NULL DEFAULT 0,
			entry_time DATETIME NOT NULL,
			last_update DATETIME NOT NULL,
			status TEXT NOT NULL,
			stop_loss_price REAL NOT NULL DEFAULT 0,
			take_profit_price REAL NOT NULL DEFAULT 0,
			entry_reason TEXT,
			partial_sold BOOLEAN NOT NULL DEFAULT 0,
			pattern_type TEXT,
			market_cap_type TEXT,
			pattern_strength REAL NOT NULL DEFAULT 0,
			volume_ratio REAL NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS trade_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME NOT NULL,
			trade_type TEXT NOT NULL,
			stock_code TEXT NOT NULL,
			stock_name TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			price REAL NOT NULL,
			amount REAL NOT NULL DEFAULT 0,
			reason TEXT,
			order_id TEXT,
			success BOOLEAN NOT NULL,
			message TEXT,
			commission REAL NOT NULL DEFAULT 0,
			tax REAL NOT NULL DEFAULT 0,
			net_amount REAL NOT NULL DEFAULT 0,
			profit_loss REAL NOT NULL DEFAULT 0,
			execution_time DATETIME
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trade_records_timestamp ON trade_records(timestamp);`,
		`CREATE INDEX IF NOT EXISTS idx_trade_records_stock_code ON trade_records(stock_code);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// PositionRepository Implementation

func (s *SQLiteStore) UpsertPosition(ctx context.Context, p *domain.Position) error {
	query := `INSERT INTO positions (stock_code, stock_name, quantity, avg_price, current_price, profit_loss, profit_loss_rate, entry_time, last_update, status, stop_loss_price, take_profit_price, entry_reason, partial_sold, pattern_type, market_cap_type, pattern_strength, volume_ratio)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(stock_code) DO UPDATE SET
			  stock_name=excluded.stock_name,
			  quantity=excluded.quantity,
			  avg_price=excluded.avg_price,
			  current_price=excluded.current_price,
			  profit_loss=excluded.profit_loss,
			  profit_loss_rate=excluded.profit_loss_rate,
			  last_update=excluded.last_update,
			  status=excluded.status,
			  stop_loss_price=excluded.stop_loss_price,
			  take_profit_price=excluded.take_profit_price,
			  entry_reason=excluded.entry_reason,
			  partial_sold=excluded.partial_sold,
			  pattern_type=excluded.pattern_type,
			  market_cap_type=excluded.market_cap_type,
			  pattern_strength=excluded.pattern_strength,
			  volume_ratio=excluded.volume_ratio`
	_, err := s.db.ExecContext(ctx, query,
		p.StockCode, p.StockName, p.Quantity, p.AvgPrice, p.CurrentPrice,
		p.ProfitLoss, p.ProfitLossRate, p.EntryTime, p.LastUpdate, string(p.Status),
		p.StopLossPrice, p.TakeProfit, p.EntryReason, p.PartialSold,
		string(p.PatternType), string(p.MarketCapType), p.PatternStrength, p.VolumeRatio)
	return err
}

func (s *SQLiteStore) DeletePosition(ctx context.Context, stockCode string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM positions WHERE stock_code = ?", stockCode)
	return err
}

func (s *SQLiteStore) ListPositions(ctx context.Context) ([]*domain.Position, error) {
	query := `SELECT stock_code, stock_name, quantity, avg_price, current_price, profit_loss, profit_loss_rate, entry_time, last_update, status, stop_loss_price, take_profit_price, entry_reason, partial_sold, pattern_type, market_cap_type, pattern_strength, volume_ratio FROM positions`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []*domain.Position
	for rows.Next() {
		var p domain.Position
		var status, patternType, marketCapType string
		if err := rows.Scan(&p.StockCode, &p.StockName, &p.Quantity, &p.AvgPrice, &p.CurrentPrice,
			&p.ProfitLoss, &p.ProfitLossRate, &p.EntryTime, &p.LastUpdate, &status,
			&p.StopLossPrice, &p.TakeProfit, &p.EntryReason, &p.PartialSold,
			&patternType, &marketCapType, &p.PatternStrength, &p.VolumeRatio); err != nil {
			return nil, err
		}
		p.Status = domain.PositionStatus(status)
		p.PatternType = domain.PatternType(patternType)
		p.MarketCapType = domain.MarketCapType(marketCapType)
		positions = append(positions, &p)
	}
	return positions, rows.Err()
}

// TradeRepository Implementation

func (s *SQLiteStore) SaveTradeRecord(ctx context.Context, rec *domain.TradeRecord) error {
	query := `INSERT INTO trade_records (timestamp, trade_type, stock_code, stock_name, quantity, price, amount, reason, order_id, success, message, commission, tax, net_amount, profit_loss, execution_time)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		rec.Timestamp, string(rec.TradeType), rec.StockCode, rec.StockName,
		rec.Quantity, rec.Price, rec.Amount, rec.Reason, rec.OrderID,
		rec.Success, rec.Message, rec.Commission, rec.Tax, rec.NetAmount,
		rec.ProfitLoss, rec.ExecutionTime)
	return err
}

func (s *SQLiteStore) ListTradeRecords(ctx context.Context, limit int) ([]*domain.TradeRecord, error) {
	query := `SELECT timestamp, trade_type, stock_code, stock_name, quantity, price, amount, reason, order_id, success, message, commission, tax, net_amount, profit_loss, execution_time FROM trade_records ORDER BY id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.TradeRecord
	for rows.Next() {
		var rec domain.TradeRecord
		var tradeType string
		if err := rows.Scan(&rec.Timestamp, &tradeType, &rec.StockCode, &rec.StockName,
			&rec.Quantity, &rec.Price, &rec.Amount, &rec.Reason, &rec.OrderID,
			&rec.Success, &rec.Message, &rec.Commission, &rec.Tax, &rec.NetAmount,
			&rec.ProfitLoss, &rec.ExecutionTime); err != nil {
			return nil, err
		}
		rec.TradeType = domain.SignalType(tradeType)
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// DailyStats sums today's successful trades so the circuit breaker survives
// a process restart.
func (s *SQLiteStore) DailyStats(ctx context.Context, day string) (int, float64, error) {
	start, err := time.ParseInLocation("2006-01-02", day, time.Local)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid day %q: %w", day, err)
	}
	end := start.AddDate(0, 0, 1)

	query := `SELECT COUNT(*), COALESCE(SUM(profit_loss), 0) FROM trade_records
			  WHERE success = 1 AND timestamp >= ? AND timestamp < ?`
	row := s.db.QueryRowContext(ctx, query, start, end)

	var count int
	var pl float64
	if err := row.Scan(&count, &pl); err != nil {
		return 0, 0, err
	}
	return count, pl, nil
}
