package domain

import "context"

// Broker is the market/account API collaborator. Implementations translate
// transient transport failures into BrokerError with Transient=true; order
// rejections come back as OrderResult with Success=false, not as errors.
type Broker interface {
	GetAccountSnapshot(ctx context.Context) (*AccountSnapshot, error)
	GetQuote(ctx context.Context, stockCode string) (float64, error)
	SubmitOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)
}

// PositionRepository persists the position set across restarts.
type PositionRepository interface {
	UpsertPosition(ctx context.Context, p *Position) error
	DeletePosition(ctx context.Context, stockCode string) error
	ListPositions(ctx context.Context) ([]*Position, error)
}

// TradeRepository is the append-only audit trail.
type TradeRepository interface {
	SaveTradeRecord(ctx context.Context, rec *TradeRecord) error
	ListTradeRecords(ctx context.Context, limit int) ([]*TradeRecord, error)
	// DailyStats returns the number of successful trades and the realized
	// profit/loss recorded on the given day (YYYY-MM-DD).
	DailyStats(ctx context.Context, day string) (int, float64, error)
}
