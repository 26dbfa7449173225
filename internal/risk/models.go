package risk

import (
	"gorm.io/datatypes"
)

// TradeStatus 台账条目的生命周期状态。
type TradeStatus int

const (
	TradeStatusOpen   TradeStatus = 1
	TradeStatusClosed TradeStatus = 2
)

// monthStateModel 每个部署只有一行（id=1），换月时整行重写。
type monthStateModel struct {
	ID               int64          `gorm:"column:id;primaryKey"`
	MonthKey         string         `gorm:"column:month_key"`
	InitialBalance   float64        `gorm:"column:initial_balance"`
	DrawdownCeiling  float64        `gorm:"column:drawdown_ceiling"`
	LastDecisionJSON datatypes.JSON `gorm:"column:last_decision_json;type:TEXT"`
	CreatedAtUnix    int64          `gorm:"column:created_at"`
	UpdatedAtUnix    int64          `gorm:"column:updated_at"`
}

func (monthStateModel) TableName() string { return "risk_month_state" }

type tradeModel struct {
	ID           int64       `gorm:"column:id;primaryKey;autoIncrement"`
	MonthKey     string      `gorm:"column:month_key;index"`
	Coin         string      `gorm:"column:coin;index"`
	Signal       string      `gorm:"column:signal"`
	Structure    string      `gorm:"column:structure"`
	EntryPrice   float64     `gorm:"column:entry_price"`
	StopLoss     float64     `gorm:"column:stop_loss"`
	ProfitTarget float64     `gorm:"column:profit_target"`
	Quantity     float64     `gorm:"column:quantity"`
	Leverage     int         `gorm:"column:leverage"`
	RiskUSD      float64     `gorm:"column:risk_usd"`
	Confidence   float64     `gorm:"column:confidence"`
	Rationale    string      `gorm:"column:rationale"`
	Status       TradeStatus `gorm:"column:status;index"`
	ExitPrice    float64     `gorm:"column:exit_price"`
	ExitReason   string      `gorm:"column:exit_reason"`
	PnL          float64     `gorm:"column:pnl"`
	PnLPct       float64     `gorm:"column:pnl_pct"`
	Won          bool        `gorm:"column:won"`
	OpenedAtUnix int64       `gorm:"column:opened_at"`
	ClosedAtUnix int64       `gorm:"column:closed_at"`
}

func (tradeModel) TableName() string { return "risk_trades" }
