package engine

import (
	"context"
	"time"

	"helmsman/internal/decision"
	"helmsman/internal/gateway/exchange"
	"helmsman/internal/logger"
	"helmsman/internal/pkg/symbol"
	"helmsman/internal/risk"
)

const (
	// PerTradeRiskCap 单笔风险占账户余额的上限。
	PerTradeRiskCap = 0.02
	// MarginBuffer 保证金只允许吃掉可用资金的这个比例。
	MarginBuffer = 0.98
)

// Guard 是持仓状态机的唯一执行入口：flat→open 走 openLong 的四道硬检查，
// open→flat 走 CloseLong。所有拒绝只记日志，不触碰交易所。
type Guard struct {
	exchange exchange.Exchange
	ledger   *risk.Ledger
	state    *State
	now      func() time.Time
}

func NewGuard(ex exchange.Exchange, ledger *risk.Ledger, state *State) *Guard {
	return &Guard{exchange: ex, ledger: ledger, state: state, now: time.Now}
}

// Apply 按已校验的决策推进单个币种的状态机。
// 任何交易所/台账错误只影响该币种本轮，不向上传播。
func (g *Guard) Apply(ctx context.Context, coin string, d decision.Decision, price float64, acct AccountInfo) {
	switch d.Signal {
	case decision.SignalBuy:
		if _, held := g.state.Positions[coin]; held {
			// 不加仓：已持仓时的 buy 是无事发生。
			logger.Infof("已持有 %s，跳过加仓信号", coin)
			return
		}
		g.openLong(ctx, coin, d, price, acct)
	case decision.SignalSell:
		if _, held := g.state.Positions[coin]; !held {
			logger.Infof("未持有 %s，无需卖出", coin)
			return
		}
		g.CloseLong(ctx, coin, price, d.Justification)
	default:
		// hold：持仓留给 Monitor 检查，空仓什么都不做。
	}
}

func (g *Guard) openLong(ctx context.Context, coin string, d decision.Decision, price float64, acct AccountInfo) {
	if d.Quantity <= 0 {
		logger.Warnf("%s 数量无效: %v", coin, d.Quantity)
		return
	}

	// 硬限制 1：单笔风险不超过账户 2%。
	maxRisk := acct.Balance * PerTradeRiskCap
	if d.RiskUSD > maxRisk {
		logger.Warnf("⛔ %s 风险 $%.2f 超过单笔限制 $%.2f，拒绝执行", coin, d.RiskUSD, maxRisk)
		return
	}

	// 硬限制 2：月度累积亏损 + 本笔风险不超过月度限额。
	// 注意：余额里已经体现了当月亏损，这里再减一次，预算口径从严。
	stats, err := g.ledger.MonthStats(ctx)
	if err != nil {
		logger.Errorf("%s 读取月度风控失败: %v", coin, err)
		return
	}
	monthLoss := stats.InitialBalance - acct.Balance
	remainingBudget := acct.Balance - stats.DrawdownLimit - monthLoss
	if d.RiskUSD > remainingBudget {
		logger.Warnf("⛔ %s 风险 $%.2f 超过月度剩余预算 $%.2f，拒绝执行", coin, d.RiskUSD, remainingBudget)
		return
	}

	// 保证金检查：合约保证金 = 名义价值 / 杠杆。
	leverage := d.Leverage
	if leverage < 1 {
		leverage = 1
	}
	margin := price * d.Quantity / float64(leverage)
	if margin > acct.AvailableCash*MarginBuffer {
		logger.Warnf("%s 保证金不足: 需要$%.2f，可用$%.2f", coin, margin, acct.AvailableCash)
		return
	}

	sym := symbol.ToExchange(symbol.Perp(coin))
	// 杠杆/逐仓设置失败只告警，不阻断下单。
	if err := g.exchange.SetLeverage(ctx, sym, leverage, "isolated"); err != nil {
		logger.Warnf("设置杠杆或保证金模式失败: %v", err)
	}

	orderID, err := g.exchange.CreateMarketBuy(ctx, sym, d.Quantity)
	if err != nil {
		logger.Errorf("买入 %s 失败: %v", coin, err)
		return
	}
	logger.Infof("✅ 买入成功: %v %s @ $%.2f", d.Quantity, coin, price)

	ledgerID, err := g.ledger.RecordOpen(ctx, risk.TradeOpen{
		Coin:         coin,
		Signal:       decision.SignalBuy,
		Structure:    d.Structure,
		EntryPrice:   price,
		StopLoss:     d.StopLoss,
		ProfitTarget: d.ProfitTarget,
		Quantity:     d.Quantity,
		Leverage:     leverage,
		RiskUSD:      d.RiskUSD,
		Confidence:   d.Confidence,
		Rationale:    d.Justification,
	})
	if err != nil {
		logger.Errorf("%s 台账登记失败: %v", coin, err)
	}

	g.state.Positions[coin] = &Position{
		Coin:       coin,
		Side:       SideLong,
		Quantity:   d.Quantity,
		EntryPrice: price,
		Leverage:   leverage,
		RiskUSD:    d.RiskUSD,
		Confidence: d.Confidence,
		Plan: ExitPlan{
			StopLoss:     d.StopLoss,
			ProfitTarget: d.ProfitTarget,
			Invalidation: d.Invalidation,
		},
		EntryTime: g.now(),
		OrderID:   orderID,
		LedgerID:  ledgerID,
	}
}

// CloseLong 平仓：reduce-only 市价卖出，结算台账，清掉该币种的挂单。
func (g *Guard) CloseLong(ctx context.Context, coin string, price float64, reason string) {
	pos, ok := g.state.Positions[coin]
	if !ok {
		return
	}
	sym := symbol.ToExchange(symbol.Perp(coin))

	if _, err := g.exchange.CreateMarketSell(ctx, sym, pos.Quantity, true); err != nil {
		logger.Errorf("卖出 %s 失败: %v", coin, err)
		return
	}

	pnl := (price - pos.EntryPrice) * pos.Quantity
	pnlPct := 0.0
	if pos.EntryPrice > 0 {
		pnlPct = (price/pos.EntryPrice - 1) * 100 * float64(pos.Leverage)
	}
	logger.Infof("✅ 卖出成功: %v %s @ $%.2f", pos.Quantity, coin, price)
	logger.Infof("   盈亏: $%+.2f (%+.2f%%)", pnl, pnlPct)

	if _, err := g.ledger.RecordClose(ctx, pos.LedgerID, price, reason); err != nil {
		logger.Errorf("%s 台账结算失败: %v", coin, err)
	}

	g.state.History = append(g.state.History, TradeRecord{
		Coin:       coin,
		Side:       SideCloseLong,
		Quantity:   pos.Quantity,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  price,
		Leverage:   pos.Leverage,
		PnL:        pnl,
		PnLPct:     pnlPct,
		HoldHours:  g.now().Sub(pos.EntryTime).Hours(),
		Reason:     reason,
		ClosedAt:   g.now(),
	})

	g.cancelStopOrders(ctx, sym)
	delete(g.state.Positions, coin)
}

// cancelStopOrders 取消该合约下所有未成交委托，失败不致命。
func (g *Guard) cancelStopOrders(ctx context.Context, sym string) {
	orders, err := g.exchange.FetchOpenOrders(ctx, sym)
	if err != nil {
		logger.Warnf("取消订单失败: %v", err)
		return
	}
	for _, o := range orders {
		if err := g.exchange.CancelOrder(ctx, o.ID, sym); err != nil {
			logger.Warnf("取消订单 %s 失败: %v", o.ID, err)
		}
	}
}
