package decision

import (
	"errors"
	"time"

	"helmsman/internal/pkg/convert"
)

// 中文说明：
// 本文件定义经 Validator 归一化后的结构化决策。未经 Validator 的原始
// 模型输出不会流入执行路径。

const (
	SignalBuy  = "buy"
	SignalSell = "sell"
	SignalHold = "hold"
)

// ErrFormat 标记 Advisor 负载整体不可解析/不是对象（DecisionFormatError）。
// 对单轮非致命：调用方记日志并以空决策集继续。
var ErrFormat = errors.New("advisor 负载不是合法的 JSON 决策对象")

// Decision 单币种决策。Signal 必有；其余字段在 hold 时可为零值。
type Decision struct {
	Signal        string  `json:"signal"`
	Structure     string  `json:"structure,omitempty"`
	Trend         string  `json:"trend_20m,omitempty"`
	EntryPrice    float64 `json:"entry_price,omitempty"`
	StopLoss      float64 `json:"stop_loss,omitempty"`
	ProfitTarget  float64 `json:"profit_target,omitempty"`
	RiskUSD       float64 `json:"risk_usd,omitempty"`
	RiskPct       float64 `json:"risk_pct,omitempty"`
	Leverage      int     `json:"leverage,omitempty"`
	Quantity      float64 `json:"quantity,omitempty"`
	Confidence    float64 `json:"confidence,omitempty"`
	Invalidation  string  `json:"invalidation,omitempty"`
	Justification string  `json:"justification,omitempty"`
}

// IsHold 包含未知信号：执行层只对 buy/sell 动作。
func (d Decision) IsHold() bool {
	return d.Signal != SignalBuy && d.Signal != SignalSell
}

// Memory 上一轮决策记忆，随风险账本持久化、注入下一轮提示词。
type Memory struct {
	Coin       string    `json:"coin"`
	Signal     string    `json:"signal"`
	Structure  string    `json:"structure,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	RiskUSD    float64   `json:"risk_usd,omitempty"`
	DecidedAt  time.Time `json:"decided_at"`
}

// fromEntry 把松散类型的 JSON 对象（string/number 混用）坐实成 Decision。
func fromEntry(entry map[string]any) Decision {
	d := Decision{
		Signal:        convert.ToString(entry["signal"]),
		Structure:     convert.ToString(entry["structure"]),
		Trend:         convert.ToString(entry["trend_20m"]),
		EntryPrice:    convert.ToFloat64(entry["entry_price"]),
		StopLoss:      convert.ToFloat64(entry["stop_loss"]),
		ProfitTarget:  convert.ToFloat64(entry["profit_target"]),
		RiskUSD:       convert.ToFloat64(entry["risk_usd"]),
		RiskPct:       convert.ToFloat64(entry["risk_pct"]),
		Leverage:      convert.ToInt(entry["leverage"]),
		Quantity:      convert.ToFloat64(entry["quantity"]),
		Confidence:    convert.ToFloat64(entry["confidence"]),
		Justification: convert.ToString(entry["justification"]),
	}
	d.Invalidation = convert.ToString(entry["invalidation"])
	if d.Invalidation == "" {
		d.Invalidation = convert.ToString(entry["invalidation_condition"])
	}
	if d.Leverage < 1 {
		d.Leverage = 1
	}
	return d
}
