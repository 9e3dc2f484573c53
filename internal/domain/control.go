package domain

import "time"

// BotState is the control loop's state machine value. TradingBot owns it
// exclusively.
type BotState string

const (
	StateStopped BotState = "STOPPED"
	StateRunning BotState = "RUNNING"
	StatePaused  BotState = "PAUSED"
	StateError   BotState = "ERROR"
)

type CommandType string

const (
	CmdStart  CommandType = "START"
	CmdStop   CommandType = "STOP"
	CmdPause  CommandType = "PAUSE"
	CmdResume CommandType = "RESUME"
	CmdStatus CommandType = "STATUS"
)

// Command is pushed by the remote-control front end into the bot's inbound
// queue. Reply, when set, receives exactly one CommandResult.
type Command struct {
	Type  CommandType
	Reply chan CommandResult
}

type CommandResult struct {
	Accepted bool               `json:"accepted"`
	Message  string             `json:"message"`
	State    BotState           `json:"state"`
	Status   *BotStatusSnapshot `json:"status,omitempty"`
}

type AlertLevel string

const (
	AlertInfo    AlertLevel = "INFO"
	AlertWarning AlertLevel = "WARNING"
	AlertError   AlertLevel = "ERROR"
	AlertTrade   AlertLevel = "TRADE"
)

// Alert is pushed to the outbound queue for the front end.
type Alert struct {
	Level     AlertLevel `json:"level"`
	Message   string     `json:"message"`
	Timestamp time.Time  `json:"timestamp"`
}

// BotStatusSnapshot is the on-demand status view served to the front end.
type BotStatusSnapshot struct {
	State           BotState    `json:"state"`
	PositionCount   int         `json:"position_count"`
	TodayProfitLoss float64     `json:"today_profit_loss"`
	TodayTrades     int         `json:"today_trades"`
	LastError       string      `json:"last_error,omitempty"`
	LastTick        time.Time   `json:"last_tick"`
	Risk            RiskMetrics `json:"risk"`
}
