package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"helmsman/internal/risk"
)

// 进程重启后，台账里仍在持仓的条目要先对账回本地状态，
// 否则离场计划无人复查、台账条目永远挂着。
func TestRestartRestoresOpenPositions(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	ledger, err := risk.NewLedger(path)
	require.NoError(t, err)
	_, _, err = ledger.EnsureMonth(ctx, 10000)
	require.NoError(t, err)
	g := NewGuard(&fakeExchange{}, ledger, NewState())
	g.Apply(ctx, "BTC", buyDecision(), 100, AccountInfo{Balance: 10000, AvailableCash: 10000})
	require.Len(t, g.state.Positions, 1)
	require.NoError(t, ledger.Close())

	// 重启：全新的进程内状态 + 同一个数据库文件。
	reopened, err := risk.NewLedger(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })
	ex := &fakeExchange{}
	e := New(Config{Coins: []string{"BTC"}}, nil, ex, nil, nil, reopened)
	require.NoError(t, e.restoreFromLedger(ctx))

	pos, ok := e.state.Positions["BTC"]
	require.True(t, ok)
	require.InDelta(t, 100, pos.EntryPrice, 1e-9)
	require.InDelta(t, 95, pos.Plan.StopLoss, 1e-9)
	require.InDelta(t, 110, pos.Plan.ProfitTarget, 1e-9)
	require.Equal(t, 10, pos.Leverage)
	require.Positive(t, pos.LedgerID)

	// 跌破止损线：恢复回来的持仓要被正常平掉并结算台账。
	e.monitor.Check(ctx, snapAt(90))
	require.Equal(t, []string{"BTCUSDT"}, ex.sells)
	require.Empty(t, e.state.Positions)

	trades, err := reopened.AllTrades(ctx)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	require.Equal(t, risk.TradeStatusClosed, trades[0].Status)
	require.Equal(t, "触发止损", trades[0].ExitReason)
}

func TestRestoreWithEmptyLedgerStartsFlat(t *testing.T) {
	ctx := context.Background()
	ledger, err := risk.NewLedger(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })
	_, _, err = ledger.EnsureMonth(ctx, 10000)
	require.NoError(t, err)

	e := New(Config{Coins: []string{"BTC"}}, nil, &fakeExchange{}, nil, nil, ledger)
	require.NoError(t, e.restoreFromLedger(ctx))
	require.Empty(t, e.state.Positions)
}
