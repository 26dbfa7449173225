package decision

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"helmsman/internal/market"
)

// SystemPrompt 固定的角色设定。
const SystemPrompt = "你是一个专业的加密货币合约交易AI系统。"

// AccountContext 提示词所需的账户视图，由引擎组装。
type AccountContext struct {
	Balance        float64
	AvailableCash  float64
	TotalReturnPct float64
	Positions      []PositionContext
}

// PositionContext 当前持仓的提示词摘要。
type PositionContext struct {
	Coin       string
	EntryPrice float64
	StopLoss   float64
	Leverage   int
}

// MonthContext 月度风险状态的提示词摘要。
type MonthContext struct {
	InitialBalance float64
	DrawdownLimit  float64
	TotalTrades    int
	WinRate        float64
}

// TradeContext 历史交易的提示词摘要。
type TradeContext struct {
	Coin       string
	Signal     string
	EntryPrice float64
	StopLoss   float64
	Structure  string
	Won        bool
}

// PromptInput 聚合一轮决策提示词的全部素材。
type PromptInput struct {
	Coins        []string
	Snapshots    map[string]*market.FeatureSnapshot
	Account      AccountContext
	Month        MonthContext
	RecentTrades []TradeContext // 最近的已记录交易（新在后）
	LastDecision *Memory
}

// BuildUserPrompt 渲染完整的用户提示词。
// 结构沿用固定的「核心框架 / 账户状态 / 记忆 / 市场数据 / 决策任务」布局，
// 市场段按请求币种顺序输出，只包含本轮有有效快照的币种。
func BuildUserPrompt(in PromptInput) string {
	var b strings.Builder

	b.WriteString("你是一个使用【价格行为 + 订单流 + 结构分析】的专业交易AI。\n\n")
	b.WriteString("================== 核心交易框架 ==================\n")
	b.WriteString("1. 趋势周期(20分钟K线)：判断大方向，只顺应主趋势\n")
	b.WriteString("2. 交易周期(5分钟K线)：执行信号，等待结构突破\n")
	b.WriteString("3. 关键原则：顺大逆小，结构未破不重仓，亏损及时止损\n")
	b.WriteString("4. 风险管理：【以损定仓】根据置信度和结构清晰度灵活选择 0.5%-2% 风险\n")
	b.WriteString("   ⚠️ 【硬限制】单笔最高2%亏损 + 月度最高6%累积亏损（两个都不能突破）\n\n")

	monthLoss := in.Month.InitialBalance - in.Account.Balance
	remaining := in.Month.DrawdownLimit - in.Account.Balance
	b.WriteString("================== 账户状态 ==================\n")
	fmt.Fprintf(&b, "账户余额: $%.2f\n", in.Account.Balance)
	fmt.Fprintf(&b, "可用资金: $%.2f\n", in.Account.AvailableCash)
	fmt.Fprintf(&b, "月度初始资金: $%.2f\n", in.Month.InitialBalance)
	fmt.Fprintf(&b, "月度回撤硬止损: $%.2f\n", in.Month.DrawdownLimit)
	fmt.Fprintf(&b, "当月已交易: %d笔 (胜率: %.1f%%)\n", in.Month.TotalTrades, in.Month.WinRate)
	fmt.Fprintf(&b, "当月已亏: $%.2f (离6%%限额还有 $%.2f)\n\n", monthLoss, remaining)

	b.WriteString("当前持仓:\n")
	if len(in.Account.Positions) == 0 {
		b.WriteString("  (无持仓)\n")
	}
	for _, p := range in.Account.Positions {
		fmt.Fprintf(&b, "  %s: 入场%.2f, 止损%.2f, 杠杆%dx\n", p.Coin, p.EntryPrice, p.StopLoss, p.Leverage)
	}

	b.WriteString("\n================== 历史交易（最近5笔） ==================\n")
	if len(in.RecentTrades) == 0 {
		b.WriteString("  (无历史交易)\n")
	}
	start := 0
	if len(in.RecentTrades) > 5 {
		start = len(in.RecentTrades) - 5
	}
	for _, t := range in.RecentTrades[start:] {
		mark := "✗"
		if t.Won {
			mark = "✓"
		}
		fmt.Fprintf(&b, "  %s %s: %s @ %.2f, 止损:%.2f, 结构:%s\n",
			mark, t.Coin, t.Signal, t.EntryPrice, t.StopLoss, orNA(t.Structure))
	}

	b.WriteString("\n================== 上一笔交易逻辑（记忆中） ==================\n")
	if in.LastDecision == nil {
		b.WriteString("(首笔交易)\n")
	} else {
		fmt.Fprintf(&b, "币种: %s, 信号: %s, 结构: %s, 置信度: %.2f, 风险: %.0fUSD\n",
			in.LastDecision.Coin, in.LastDecision.Signal, orNA(in.LastDecision.Structure),
			in.LastDecision.Confidence, in.LastDecision.RiskUSD)
	}

	b.WriteString("\n================== 市场数据 ==================\n")
	for _, coin := range orderedCoins(in) {
		writeMarketSection(&b, in.Snapshots[coin])
	}

	b.WriteString("\n================== 你的决策任务 ==================\n\n")
	b.WriteString("【决策步骤】\n")
	b.WriteString("1. 识别20分钟趋势（多头/空头/无方向）- 检查EMA关系和结构突破\n")
	b.WriteString("2. 在5分钟级别找结构突破或回测点 - 等待最佳进场机会\n")
	b.WriteString("3. 识别止损点 - 围绕近期高低点/关键结构位设置\n")
	b.WriteString("4. 【以损定仓】根据置信度自主决定风险金额（0.5%-2%）\n")
	b.WriteString("5. 根据止损距离计算杠杆和仓位 (quantity = risk_usd / (entry_price × stop_loss_distance_pct))\n\n")
	b.WriteString("【硬性约束 - 必须遵守】\n")
	fmt.Fprintf(&b, "⛔ 单笔亏损不能超过 $%.2f（账户2%%）\n", in.Account.Balance*0.02)
	fmt.Fprintf(&b, "⛔ 月度累积亏损不能超过 $%.2f（月初资金的6%%）\n", in.Month.DrawdownLimit)
	b.WriteString("⛔ 结构未破，不操作；无明显趋势，不操作\n\n")
	b.WriteString("【返回格式 - JSON（不要markdown，必须返回所有币种；严格：返回单个 JSON 对象，非数组）】\n")
	fmt.Fprintf(&b, "为监控的所有币种都返回决策（包括 %s）：\n\n", strings.Join(in.Coins, ", "))
	b.WriteString(`{
    "BTC": {
        "signal": "buy/sell/hold",
        "structure": "空转多/多转空/回测/继续/观望",
        "trend_20m": "上升/下降/无方向",
        "entry_price": 进场价格,
        "stop_loss": 止损价格,
        "profit_target": 止盈目标,
        "risk_usd": 风险金额,
        "risk_pct": 风险占账户百分比,
        "leverage": 杠杆倍数(1-20),
        "quantity": 持仓数量,
        "confidence": 0-1,
        "invalidation": "结构失效条件",
        "justification": "详细分析"
    }
}
`)
	b.WriteString("\n【重要提醒】\n")
	b.WriteString("- 必须返回所有币种的决策，即使都是 HOLD\n")
	b.WriteString("- 结构不清或置信度过低时返回 signal: \"hold\" + 简短说明即可\n")
	b.WriteString("- 宁可少赚也不要乱干，这是生存的第一原则\n")

	return b.String()
}

func writeMarketSection(b *strings.Builder, snap *market.FeatureSnapshot) {
	if snap == nil {
		return
	}
	fmt.Fprintf(b, "\n【%s 市场分析】\n", snap.Coin)
	fmt.Fprintf(b, "价格: %s | 20期EMA: %s | MACD柱: %.4f | RSI(7): %.1f\n",
		FmtPrice(snap.CurrentPrice), FmtPrice(snap.CurrentEMA20), snap.CurrentMACD, snap.CurrentRSI7)
	if snap.DataNote == market.DataQualitySpotFallback {
		b.WriteString("（注意：合约数据不可用，本轮使用现货数据，资金费率/持仓量无效）\n")
	}
	b.WriteString("\n5分钟K线序列（最近10根）：\n")
	fmt.Fprintf(b, "  价格: %s\n", fmtPriceSeries(snap.Minute.MidPrice))
	fmt.Fprintf(b, "  EMA-20: %s\n", fmtPriceSeries(snap.Minute.EMA20))
	fmt.Fprintf(b, "  MACD柱: %s\n", fmtFixedSeries(snap.Minute.MACD, 4))
	fmt.Fprintf(b, "  RSI-7: %s\n\n", fmtFixedSeries(snap.Minute.RSI7, 1))
	fmt.Fprintf(b, "20分钟周期背景（趋势判定）：\n")
	fmt.Fprintf(b, "  EMA-20: %s vs EMA-50: %s\n", FmtPrice(snap.Trend.EMA20), FmtPrice(snap.Trend.EMA50))
	fmt.Fprintf(b, "  MACD柱: %s\n", fmtFixedSeries(snap.Trend.MACDSeries, 4))
	fmt.Fprintf(b, "  RSI-14: %s\n", fmtFixedSeries(snap.Trend.RSI14Series, 1))
	fmt.Fprintf(b, "  波动率(ATR-3): %s, ATR-14: %s\n", FmtPrice(snap.Trend.ATR3), FmtPrice(snap.Trend.ATR14))
	fmt.Fprintf(b, "  成交量: 当前%.2f vs 均量%.2f\n", snap.Trend.CurrentVolume, snap.Trend.AverageVolume)
	fmt.Fprintf(b, "  资金费率: %.6f | 持仓量: %.0f\n", snap.FundingRate, snap.OpenInterest)
	fmt.Fprintf(b, "  24h: 涨跌%.2f%% 高%s 低%s 量%.0f\n",
		snap.Change24hPct, FmtPrice(snap.High24h), FmtPrice(snap.Low24h), snap.Volume24h)
}

func orderedCoins(in PromptInput) []string {
	out := make([]string, 0, len(in.Snapshots))
	for _, coin := range in.Coins {
		if _, ok := in.Snapshots[coin]; ok {
			out = append(out, coin)
		}
	}
	if len(out) == len(in.Snapshots) {
		return out
	}
	// 快照里存在配置顺序之外的币种时兜底补齐，保持确定性输出。
	seen := make(map[string]struct{}, len(out))
	for _, c := range out {
		seen[c] = struct{}{}
	}
	var rest []string
	for coin := range in.Snapshots {
		if _, ok := seen[coin]; !ok {
			rest = append(rest, coin)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// FmtPrice 按数量级选择精度，避免小币种价格被格式化成 0。
func FmtPrice(p float64) string {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return "n/a"
	}
	switch abs := math.Abs(p); {
	case abs < 1:
		return fmt.Sprintf("%.4f", p)
	case abs < 100:
		return fmt.Sprintf("%.2f", p)
	default:
		return fmt.Sprintf("%.1f", p)
	}
}

func fmtPriceSeries(values []float64) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, FmtPrice(v))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func fmtFixedSeries(values []float64, prec int) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, fmt.Sprintf("%.*f", prec, v))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
