// Package engine 实现周期性的「采样 → 风控 → 问询 → 执行」控制循环。
// 循环严格串行：任何一轮内不存在并发写状态的路径。
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"helmsman/internal/decision"
	"helmsman/internal/gateway/exchange"
	"helmsman/internal/gateway/provider"
	"helmsman/internal/logger"
	"helmsman/internal/market"
	"helmsman/internal/risk"
)

// Config 控制循环参数。
type Config struct {
	Coins           []string
	Interval        time.Duration // 轮询间隔
	MaxRunTime      time.Duration // 运行时长上限，0 表示不限
	CheckpointEvery int           // 每 N 轮写一次检查点
	FallbackBalance float64       // 余额获取失败时的模拟资金
	OutputDir       string
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Minute
	}
	if c.MaxRunTime < 0 {
		c.MaxRunTime = 0
	}
	if c.CheckpointEvery <= 0 {
		c.CheckpointEvery = 12
	}
	if c.FallbackBalance <= 0 {
		c.FallbackBalance = 10000
	}
	if c.OutputDir == "" {
		c.OutputDir = "outputs"
	}
	return c
}

// Engine 把所有协作方粘在一个单线程循环里。
type Engine struct {
	cfg       Config
	snapshots *market.SnapshotService
	exchange  exchange.Exchange
	advisor   provider.Advisor
	validator *decision.Validator
	ledger    *risk.Ledger
	state     *State
	guard     *Guard
	monitor   *Monitor
	now       func() time.Time
}

func New(cfg Config, snap *market.SnapshotService, ex exchange.Exchange, adv provider.Advisor, val *decision.Validator, ledger *risk.Ledger) *Engine {
	cfg = cfg.withDefaults()
	state := NewState()
	guard := NewGuard(ex, ledger, state)
	return &Engine{
		cfg:       cfg,
		snapshots: snap,
		exchange:  ex,
		advisor:   adv,
		validator: val,
		ledger:    ledger,
		state:     state,
		guard:     guard,
		monitor:   NewMonitor(guard),
		now:       time.Now,
	}
}

// Run 阻塞运行控制循环，直到 ctx 取消、运行时长耗尽或触发月度硬止损。
// 进入循环前先和台账对账，退出前总会生成最终报告。
func (e *Engine) Run(ctx context.Context) error {
	if err := e.restoreFromLedger(ctx); err != nil {
		return fmt.Errorf("启动对账失败: %w", err)
	}

	logger.InfoBlock(strings.Join([]string{
		"🚀 加密货币AI交易系统启动",
		"AI模型: " + e.advisor.Model(),
		"交易所: " + e.exchange.Name(),
		"监控币种: " + strings.Join(e.cfg.Coins, ", "),
		"检查间隔: " + e.cfg.Interval.String(),
	}, "\n"))

	var deadline time.Time
	if e.cfg.MaxRunTime > 0 {
		deadline = e.now().Add(e.cfg.MaxRunTime)
	}

	var runErr error
	iteration := 0
	for {
		if !deadline.IsZero() && !e.now().Before(deadline) {
			logger.Infof("运行时长已到，退出循环")
			break
		}
		if ctx.Err() != nil {
			logger.Infof("⚠️ 收到退出信号")
			break
		}

		iteration++
		logger.Infof("第 %d 轮 - %s", iteration, e.now().Format("2006-01-02 15:04:05"))

		wait, err := e.runCycle(ctx, iteration)
		if err != nil {
			if errors.Is(err, risk.ErrMonthlyStop) {
				logger.Errorf("⛔ 触发月度硬止损，系统停止！")
				runErr = err
				break
			}
			if errors.Is(err, context.Canceled) {
				break
			}
			// 其余错误只影响本轮。
			logger.Errorf("本轮异常: %v", err)
		}

		if !sleepCtx(ctx, wait) {
			logger.Infof("⚠️ 收到退出信号")
			break
		}
	}

	e.FinalReport()
	return runErr
}

// restoreFromLedger 用台账里仍在持仓的条目重建本地持仓状态。
// 进程重启后离场计划必须继续被 Monitor 复查，不能假设空仓起步。
func (e *Engine) restoreFromLedger(ctx context.Context) error {
	open, err := e.ledger.OpenTrades(ctx)
	if err != nil {
		return err
	}
	for _, t := range open {
		if _, held := e.state.Positions[t.Coin]; held {
			continue
		}
		e.state.Positions[t.Coin] = &Position{
			Coin:       t.Coin,
			Side:       SideLong,
			Quantity:   t.Quantity,
			EntryPrice: t.EntryPrice,
			Leverage:   t.Leverage,
			RiskUSD:    t.RiskUSD,
			Confidence: t.Confidence,
			Plan: ExitPlan{
				StopLoss:     t.StopLoss,
				ProfitTarget: t.ProfitTarget,
			},
			EntryTime: t.OpenedAt,
			LedgerID:  t.ID,
		}
		logger.Infof("💾 恢复持仓: %s %v @ $%.2f (止损 $%.2f)", t.Coin, t.Quantity, t.EntryPrice, t.StopLoss)
	}
	return nil
}

// runCycle 执行一轮，返回进入下一轮前应等待的时长。
func (e *Engine) runCycle(ctx context.Context, iteration int) (time.Duration, error) {
	cycleID := uuid.NewString()[:8]
	logger.Debugf("[%s] 开始采样", cycleID)

	snaps := e.snapshots.BuildAll(ctx, e.cfg.Coins)
	if len(snaps) == 0 {
		logger.Warnf("[%s] 数据获取失败，跳过本轮", cycleID)
		return time.Minute, ctx.Err()
	}

	acct := e.fetchAccountInfo(ctx, snaps)

	// 月度基线对齐与硬止损，任何决策之前先过风控。
	if _, _, err := e.ledger.EnsureMonth(ctx, acct.Balance); err != nil {
		return e.cfg.Interval, err
	}
	remaining, err := e.ledger.CheckStop(ctx, acct.Balance)
	if err != nil {
		return e.cfg.Interval, err
	}
	stats, err := e.ledger.MonthStats(ctx)
	if err != nil {
		return e.cfg.Interval, err
	}
	logger.Infof("✅ 月度风险正常，还可亏损: $%.2f (%.2f%%)", remaining, remaining/stats.InitialBalance*100)

	e.printStatus(acct)

	// 持仓离场计划先于新决策检查，止损不等 AI。
	e.monitor.Check(ctx, snaps)

	decisions := e.askAdvisor(ctx, cycleID, snaps, acct, stats)
	for _, coin := range e.cfg.Coins {
		d, ok := decisions[coin]
		if !ok {
			continue
		}
		snap, ok := snaps[coin]
		if !ok {
			continue
		}
		e.guard.Apply(ctx, coin, d, snap.CurrentPrice, acct)
	}

	if iteration%e.cfg.CheckpointEvery == 0 {
		e.SaveCheckpoint()
	}
	logger.Infof("[%s] ⏳ 等待 %s...", cycleID, e.cfg.Interval)
	return e.cfg.Interval, nil
}

func (e *Engine) fetchAccountInfo(ctx context.Context, snaps map[string]*market.FeatureSnapshot) AccountInfo {
	free, total := e.cfg.FallbackBalance, e.cfg.FallbackBalance
	bal, err := e.exchange.FetchBalance(ctx)
	if err != nil {
		logger.Errorf("获取余额失败: %v", err)
	} else {
		free, total = bal.Free, bal.Total
	}
	return BuildAccountInfo(e.state, free, total, snaps)
}

func (e *Engine) askAdvisor(ctx context.Context, cycleID string, snaps map[string]*market.FeatureSnapshot, acct AccountInfo, stats risk.Stats) map[string]decision.Decision {
	lastMem, err := e.ledger.LastDecision(ctx)
	if err != nil {
		logger.Warnf("[%s] 读取决策记忆失败: %v", cycleID, err)
	}
	recent, err := e.ledger.RecentClosed(ctx, 5)
	if err != nil {
		logger.Warnf("[%s] 读取历史交易失败: %v", cycleID, err)
	}

	in := decision.PromptInput{
		Coins:     e.cfg.Coins,
		Snapshots: snaps,
		Account: decision.AccountContext{
			Balance:        acct.Balance,
			AvailableCash:  acct.AvailableCash,
			TotalReturnPct: acct.TotalReturnPct,
			Positions:      acct.PromptPositions(),
		},
		Month: decision.MonthContext{
			InitialBalance: stats.InitialBalance,
			DrawdownLimit:  stats.DrawdownLimit,
			TotalTrades:    stats.TotalTrades,
			WinRate:        stats.WinRate,
		},
		RecentTrades: toTradeContexts(recent),
		LastDecision: lastMem,
	}

	raw, err := e.advisor.Decide(ctx, decision.SystemPrompt, decision.BuildUserPrompt(in))
	if err != nil {
		logger.Errorf("[%s] AI 决策失败: %v", cycleID, err)
		return nil
	}
	decisions, err := e.validator.Parse(raw, e.cfg.Coins)
	if err != nil {
		logger.Warnf("[%s] AI 返回无法解析: %v", cycleID, err)
		return nil
	}
	return decisions
}

func (e *Engine) printStatus(acct AccountInfo) {
	logger.Infof("📊 账户状态")
	logger.Infof("余额: $%.2f", acct.Balance)
	logger.Infof("可用: $%.2f", acct.AvailableCash)
	logger.Infof("回报率: %+.2f%%", acct.TotalReturnPct)
	if len(acct.Positions) == 0 {
		return
	}
	logger.Infof("持仓 (%d 个):", len(acct.Positions))
	for _, p := range acct.Positions {
		emoji := "🔴"
		if p.UnrealizedPnL > 0 {
			emoji = "🟢"
		}
		logger.Infof("%s %s: $%.2f | 盈亏: $%+.2f | %dx", emoji, p.Coin, p.CurrentPrice, p.UnrealizedPnL, p.Leverage)
	}
}

func toTradeContexts(trades []risk.Trade) []decision.TradeContext {
	out := make([]decision.TradeContext, 0, len(trades))
	for _, t := range trades {
		out = append(out, decision.TradeContext{
			Coin:       t.Coin,
			Signal:     t.Signal,
			EntryPrice: t.EntryPrice,
			StopLoss:   t.StopLoss,
			Structure:  t.Structure,
			Won:        t.Won,
		})
	}
	return out
}

// sleepCtx 可取消的等待，返回 false 表示 ctx 已取消。
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
