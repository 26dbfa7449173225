package risk

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"helmsman/internal/decision"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := NewLedger(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestEnsureMonthIdempotent(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	state, fresh, err := l.EnsureMonth(ctx, 10000)
	require.NoError(t, err)
	require.True(t, fresh)
	require.InDelta(t, 10000, state.InitialBalance, 1e-9)
	require.InDelta(t, 9400, state.DrawdownCeiling, 1e-9)

	// 同月内余额变化不会改写基线。
	again, fresh, err := l.EnsureMonth(ctx, 8930)
	require.NoError(t, err)
	require.False(t, fresh)
	require.Equal(t, state, again)
}

func TestEnsureMonthRolloverClearsTrades(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	base := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return base }

	_, _, err := l.EnsureMonth(ctx, 10000)
	require.NoError(t, err)
	_, err = l.RecordOpen(ctx, TradeOpen{Coin: "BTC", Signal: decision.SignalBuy, EntryPrice: 50000, Quantity: 0.01, Leverage: 5})
	require.NoError(t, err)

	l.now = func() time.Time { return base.AddDate(0, 1, 0) }
	state, fresh, err := l.EnsureMonth(ctx, 9200)
	require.NoError(t, err)
	require.True(t, fresh)
	require.Equal(t, "2026-09", state.MonthKey)
	require.InDelta(t, 9200*0.94, state.DrawdownCeiling, 1e-9)

	trades, err := l.AllTrades(ctx)
	require.NoError(t, err)
	require.Empty(t, trades)
}

func TestCheckStop(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	_, _, err := l.EnsureMonth(ctx, 10000)
	require.NoError(t, err)

	remaining, err := l.CheckStop(ctx, 9500)
	require.NoError(t, err)
	require.InDelta(t, 100, remaining, 1e-9)

	// 跌破止损线（余额比月初亏 650 > 600）触发硬止损。
	remaining, err = l.CheckStop(ctx, 9350)
	require.ErrorIs(t, err, ErrMonthlyStop)
	require.InDelta(t, -50, remaining, 1e-9)

	// 恰好踩线也算触发。
	_, err = l.CheckStop(ctx, 9400)
	require.ErrorIs(t, err, ErrMonthlyStop)
}

func TestRecordOpenUpdatesMemory(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	_, _, err := l.EnsureMonth(ctx, 10000)
	require.NoError(t, err)

	mem, err := l.LastDecision(ctx)
	require.NoError(t, err)
	require.Nil(t, mem)

	id, err := l.RecordOpen(ctx, TradeOpen{
		Coin: "ETH", Signal: decision.SignalBuy, Structure: "空转多",
		EntryPrice: 2500, StopLoss: 2450, Quantity: 0.4, Leverage: 10,
		RiskUSD: 120, Confidence: 0.8,
	})
	require.NoError(t, err)
	require.Positive(t, id)

	mem, err = l.LastDecision(ctx)
	require.NoError(t, err)
	require.NotNil(t, mem)
	require.Equal(t, "ETH", mem.Coin)
	require.Equal(t, decision.SignalBuy, mem.Signal)
	require.InDelta(t, 120, mem.RiskUSD, 1e-9)
}

func TestRecordClosePnL(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	_, _, err := l.EnsureMonth(ctx, 10000)
	require.NoError(t, err)

	// 多头：pnl 含杠杆，pnl_pct 以名义本金计。
	id, err := l.RecordOpen(ctx, TradeOpen{Coin: "BTC", Signal: decision.SignalBuy, EntryPrice: 100, Quantity: 1, Leverage: 10})
	require.NoError(t, err)
	closed, err := l.RecordClose(ctx, id, 110, "profit_target")
	require.NoError(t, err)
	require.NotNil(t, closed)
	require.InDelta(t, 100, closed.PnL, 1e-9)
	require.InDelta(t, 100, closed.PnLPct, 1e-9)
	require.True(t, closed.Won)

	// 空头方向取反。
	id, err = l.RecordOpen(ctx, TradeOpen{Coin: "SOL", Signal: decision.SignalSell, EntryPrice: 200, Quantity: 2, Leverage: 5})
	require.NoError(t, err)
	closed, err = l.RecordClose(ctx, id, 210, "stop_loss")
	require.NoError(t, err)
	require.NotNil(t, closed)
	require.InDelta(t, -100, closed.PnL, 1e-9)
	require.False(t, closed.Won)

	// 未知 id 与重复平仓都是无事发生。
	closed, err = l.RecordClose(ctx, 99999, 1, "")
	require.NoError(t, err)
	require.Nil(t, closed)
	closed, err = l.RecordClose(ctx, id, 220, "again")
	require.NoError(t, err)
	require.Nil(t, closed)
}

func TestMonthStatsAndRecentClosed(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	_, _, err := l.EnsureMonth(ctx, 10000)
	require.NoError(t, err)

	win, err := l.RecordOpen(ctx, TradeOpen{Coin: "BTC", Signal: decision.SignalBuy, EntryPrice: 100, Quantity: 1, Leverage: 1})
	require.NoError(t, err)
	loss, err := l.RecordOpen(ctx, TradeOpen{Coin: "ETH", Signal: decision.SignalBuy, EntryPrice: 100, Quantity: 1, Leverage: 1})
	require.NoError(t, err)
	_, err = l.RecordOpen(ctx, TradeOpen{Coin: "SOL", Signal: decision.SignalBuy, EntryPrice: 100, Quantity: 1, Leverage: 1})
	require.NoError(t, err)

	_, err = l.RecordClose(ctx, win, 120, "tp")
	require.NoError(t, err)
	_, err = l.RecordClose(ctx, loss, 90, "sl")
	require.NoError(t, err)

	stats, err := l.MonthStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, stats.TotalTrades)
	require.Equal(t, 2, stats.ClosedTrades)
	require.Equal(t, 1, stats.OpenTrades)
	require.InDelta(t, 10, stats.TotalPnL, 1e-9)
	require.InDelta(t, 50, stats.WinRate, 1e-9)

	recent, err := l.RecentClosed(ctx, 5)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "BTC", recent[0].Coin)
	require.Equal(t, "ETH", recent[1].Coin)
}
