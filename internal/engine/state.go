package engine

import (
	"math"
	"time"

	"helmsman/internal/decision"
	"helmsman/internal/market"
)

const (
	SideLong      = "long"
	SideCloseLong = "close_long"
)

// ExitPlan 开仓时锁定的离场计划，本地风控每轮比对。
type ExitPlan struct {
	StopLoss     float64 `json:"stop_loss"`
	ProfitTarget float64 `json:"profit_target"`
	Invalidation string  `json:"invalidation,omitempty"`
}

// Position 进行中的持仓。LedgerID 关联风控台账条目，平仓时结算用。
type Position struct {
	Coin       string    `json:"coin"`
	Side       string    `json:"side"`
	Quantity   float64   `json:"quantity"`
	EntryPrice float64   `json:"entry_price"`
	Leverage   int       `json:"leverage"`
	RiskUSD    float64   `json:"risk_usd"`
	Confidence float64   `json:"confidence"`
	Plan       ExitPlan  `json:"exit_plan"`
	EntryTime  time.Time `json:"entry_time"`
	OrderID    string    `json:"entry_order_id"`
	LedgerID   int64     `json:"ledger_id"`
}

// TradeRecord 引擎侧的平仓流水，最终导出到 CSV 报告。
// 注意口径与台账不同：pnl 不乘杠杆，pnl_pct 乘杠杆。
type TradeRecord struct {
	Coin       string    `json:"coin"`
	Side       string    `json:"side"`
	Quantity   float64   `json:"quantity"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	Leverage   int       `json:"leverage"`
	PnL        float64   `json:"pnl"`
	PnLPct     float64   `json:"pnl_pct"`
	HoldHours  float64   `json:"hold_hours"`
	Reason     string    `json:"reason"`
	ClosedAt   time.Time `json:"timestamp"`
}

// State 控制循环独占的可变交易状态，单写者，不加锁。
type State struct {
	InitialBalance float64
	Positions      map[string]*Position // 按币种索引
	History        []TradeRecord
}

func NewState() *State {
	return &State{Positions: make(map[string]*Position)}
}

// SharpeRatio 用平仓收益率序列估算，样本不足返回 0。
func (s *State) SharpeRatio() float64 {
	if len(s.History) < 2 {
		return 0
	}
	var sum float64
	for _, t := range s.History {
		sum += t.PnLPct
	}
	mean := sum / float64(len(s.History))
	var variance float64
	for _, t := range s.History {
		d := t.PnLPct - mean
		variance += d * d
	}
	std := math.Sqrt(variance / float64(len(s.History)))
	return mean / (std + 1e-10)
}

// PositionDetail 提示词和状态输出用的持仓视图。
type PositionDetail struct {
	Coin             string
	Quantity         float64
	EntryPrice       float64
	CurrentPrice     float64
	LiquidationPrice float64
	UnrealizedPnL    float64
	NotionalUSD      float64
	Leverage         int
	Confidence       float64
	RiskUSD          float64
	Plan             ExitPlan
}

// AccountInfo 每轮刷新的账户视图。
type AccountInfo struct {
	Balance            float64
	AvailableCash      float64
	TotalReturnPct     float64
	TotalUnrealizedPnL float64
	SharpeRatio        float64
	Positions          []PositionDetail
}

// BuildAccountInfo 把余额和持仓合成账户视图。余额获取失败时的兜底
// 由调用方决定（引擎回落到 10000 模拟资金）。
func BuildAccountInfo(s *State, free, total float64, snapshots map[string]*market.FeatureSnapshot) AccountInfo {
	if s.InitialBalance == 0 {
		s.InitialBalance = total
	}

	var details []PositionDetail
	var unrealized float64
	for coin, pos := range s.Positions {
		snap, ok := snapshots[coin]
		if !ok {
			continue
		}
		price := snap.CurrentPrice
		pnl := (price - pos.EntryPrice) * pos.Quantity
		liquidation := pos.EntryPrice * (1 - 0.9/float64(pos.Leverage))
		if pos.Side != SideLong {
			pnl = -pnl
			liquidation = pos.EntryPrice * (1 + 0.9/float64(pos.Leverage))
		}
		unrealized += pnl
		details = append(details, PositionDetail{
			Coin:             coin,
			Quantity:         pos.Quantity,
			EntryPrice:       pos.EntryPrice,
			CurrentPrice:     price,
			LiquidationPrice: liquidation,
			UnrealizedPnL:    pnl,
			NotionalUSD:      price * pos.Quantity,
			Leverage:         pos.Leverage,
			Confidence:       pos.Confidence,
			RiskUSD:          pos.RiskUSD,
			Plan:             pos.Plan,
		})
	}

	totalValue := total + unrealized
	returnPct := 0.0
	if s.InitialBalance > 0 {
		returnPct = (totalValue - s.InitialBalance) / s.InitialBalance * 100
	}
	return AccountInfo{
		Balance:            total,
		AvailableCash:      free,
		TotalReturnPct:     returnPct,
		TotalUnrealizedPnL: unrealized,
		SharpeRatio:        s.SharpeRatio(),
		Positions:          details,
	}
}

// PromptPositions 转换成提示词需要的精简持仓视图。
func (a AccountInfo) PromptPositions() []decision.PositionContext {
	out := make([]decision.PositionContext, 0, len(a.Positions))
	for _, p := range a.Positions {
		out = append(out, decision.PositionContext{
			Coin:       p.Coin,
			EntryPrice: p.EntryPrice,
			StopLoss:   p.Plan.StopLoss,
			Leverage:   p.Leverage,
		})
	}
	return out
}
