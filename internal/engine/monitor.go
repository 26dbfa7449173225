package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"helmsman/internal/logger"
	"helmsman/internal/market"
)

// Monitor 每轮用最新快照价格复查所有持仓的离场计划。
// 判定顺序固定：先止损后止盈，两线同时触发时止损优先。
type Monitor struct {
	guard *Guard
}

func NewMonitor(guard *Guard) *Monitor {
	return &Monitor{guard: guard}
}

// Check 逐个持仓比对触发条件，触发即走 Guard 的平仓路径。
// 价格比较用 decimal，避免边界价位上的浮点毛刺。
func (m *Monitor) Check(ctx context.Context, snapshots map[string]*market.FeatureSnapshot) {
	for coin, pos := range m.guard.state.Positions {
		snap, ok := snapshots[coin]
		if !ok {
			// 本轮没有该币种的有效快照，留到下一轮再查。
			continue
		}
		price := decimal.NewFromFloat(snap.CurrentPrice)

		if pos.Plan.StopLoss > 0 && price.LessThanOrEqual(decimal.NewFromFloat(pos.Plan.StopLoss)) {
			logger.Warnf("⚠️ %s 触发止损!", coin)
			m.guard.CloseLong(ctx, coin, snap.CurrentPrice, "触发止损")
			continue
		}
		if pos.Plan.ProfitTarget > 0 && price.GreaterThanOrEqual(decimal.NewFromFloat(pos.Plan.ProfitTarget)) {
			logger.Infof("🎯 %s 触发止盈!", coin)
			m.guard.CloseLong(ctx, coin, snap.CurrentPrice, "触发止盈")
		}
	}
}
