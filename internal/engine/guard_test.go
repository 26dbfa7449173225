package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"helmsman/internal/decision"
	"helmsman/internal/gateway/exchange"
	"helmsman/internal/market"
	"helmsman/internal/risk"
)

type fakeExchange struct {
	buys       []string
	sells      []string
	cancels    []string
	openOrders []exchange.Order
	buyErr     error
}

func (f *fakeExchange) Name() string { return "fake" }

func (f *fakeExchange) FetchCandles(context.Context, string, string, int) ([]market.Candle, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeExchange) FetchSpotCandles(context.Context, string, string, int) ([]market.Candle, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeExchange) FetchTicker(context.Context, string) (exchange.Ticker, error) {
	return exchange.Ticker{}, fmt.Errorf("not implemented")
}

func (f *fakeExchange) FetchSpotTicker(context.Context, string) (exchange.Ticker, error) {
	return exchange.Ticker{}, fmt.Errorf("not implemented")
}

func (f *fakeExchange) FetchFundingRate(context.Context, string) (float64, error) { return 0, nil }

func (f *fakeExchange) FetchOpenInterest(context.Context, string) (float64, error) { return 0, nil }

func (f *fakeExchange) FetchBalance(context.Context) (exchange.Balance, error) {
	return exchange.Balance{Free: 10000, Total: 10000}, nil
}

func (f *fakeExchange) SetLeverage(context.Context, string, int, string) error { return nil }

func (f *fakeExchange) CreateMarketBuy(_ context.Context, sym string, _ float64) (string, error) {
	if f.buyErr != nil {
		return "", f.buyErr
	}
	f.buys = append(f.buys, sym)
	return fmt.Sprintf("order-%d", len(f.buys)), nil
}

func (f *fakeExchange) CreateMarketSell(_ context.Context, sym string, _ float64, reduceOnly bool) (string, error) {
	if !reduceOnly {
		return "", fmt.Errorf("expected reduce-only close")
	}
	f.sells = append(f.sells, sym)
	return fmt.Sprintf("close-%d", len(f.sells)), nil
}

func (f *fakeExchange) FetchOpenOrders(context.Context, string) ([]exchange.Order, error) {
	return f.openOrders, nil
}

func (f *fakeExchange) CancelOrder(_ context.Context, id, _ string) error {
	f.cancels = append(f.cancels, id)
	return nil
}

func newGuardFixture(t *testing.T) (*Guard, *fakeExchange, *risk.Ledger) {
	t.Helper()
	ledger, err := risk.NewLedger(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })
	_, _, err = ledger.EnsureMonth(context.Background(), 10000)
	require.NoError(t, err)
	ex := &fakeExchange{}
	return NewGuard(ex, ledger, NewState()), ex, ledger
}

func buyDecision() decision.Decision {
	return decision.Decision{
		Signal:       decision.SignalBuy,
		Structure:    "空转多",
		EntryPrice:   100,
		StopLoss:     95,
		ProfitTarget: 110,
		RiskUSD:      150,
		Leverage:     10,
		Quantity:     1,
		Confidence:   0.8,
	}
}

func TestGuardRejectsOversizedRisk(t *testing.T) {
	g, ex, _ := newGuardFixture(t)
	acct := AccountInfo{Balance: 10000, AvailableCash: 10000}

	d := buyDecision()
	d.RiskUSD = 250 // 超过 10000 × 2%
	g.Apply(context.Background(), "BTC", d, 100, acct)

	require.Empty(t, ex.buys)
	require.Empty(t, g.state.Positions)
}

func TestGuardAcceptsWithinBudget(t *testing.T) {
	g, ex, ledger := newGuardFixture(t)
	// 月初 10000 未亏损：单笔上限 200，月度剩余预算 600，风险 150 两道都过。
	acct := AccountInfo{Balance: 10000, AvailableCash: 10000}

	g.Apply(context.Background(), "BTC", buyDecision(), 100, acct)

	require.Equal(t, []string{"BTCUSDT"}, ex.buys)
	pos, ok := g.state.Positions["BTC"]
	require.True(t, ok)
	require.InDelta(t, 100, pos.EntryPrice, 1e-9)
	require.Equal(t, 10, pos.Leverage)
	require.Positive(t, pos.LedgerID)

	open, err := ledger.OpenTrades(context.Background())
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Equal(t, "BTC", open[0].Coin)
}

// 月度预算会把当月亏损扣两次：预算 = 余额 − 止损线 − 当月亏损，
// 比朴素的「余额 − 止损线」更紧。这里钉死该数值行为。
func TestGuardBudgetDoubleCountsMonthLoss(t *testing.T) {
	ctx := context.Background()

	// 亏 200：预算 = 9800 − 9400 − 200 = 200 ≥ 150，放行。
	g, ex, _ := newGuardFixture(t)
	acct := AccountInfo{Balance: 9800, AvailableCash: 9800}
	g.Apply(ctx, "BTC", buyDecision(), 100, acct)
	require.Len(t, ex.buys, 1)

	// 亏 250：朴素口径还剩 350，但预算 = 9750 − 9400 − 250 = 100 < 150，拒绝。
	g, ex, _ = newGuardFixture(t)
	acct = AccountInfo{Balance: 9750, AvailableCash: 9750}
	g.Apply(ctx, "BTC", buyDecision(), 100, acct)
	require.Empty(t, ex.buys)
	require.Empty(t, g.state.Positions)
}

func TestGuardRejectsOnInsufficientMargin(t *testing.T) {
	g, ex, _ := newGuardFixture(t)
	acct := AccountInfo{Balance: 10000, AvailableCash: 5}

	// 名义 100×1，杠杆 10 → 保证金 10 > 5×0.98。
	g.Apply(context.Background(), "BTC", buyDecision(), 100, acct)

	require.Empty(t, ex.buys)
	require.Empty(t, g.state.Positions)
}

func TestGuardNoPyramiding(t *testing.T) {
	g, ex, _ := newGuardFixture(t)
	acct := AccountInfo{Balance: 10000, AvailableCash: 10000}

	g.Apply(context.Background(), "BTC", buyDecision(), 100, acct)
	require.Len(t, ex.buys, 1)

	g.Apply(context.Background(), "BTC", buyDecision(), 101, acct)
	require.Len(t, ex.buys, 1)
	require.InDelta(t, 100, g.state.Positions["BTC"].EntryPrice, 1e-9)
}

func TestGuardSellWithoutPositionIsNoop(t *testing.T) {
	g, ex, _ := newGuardFixture(t)
	acct := AccountInfo{Balance: 10000, AvailableCash: 10000}

	g.Apply(context.Background(), "BTC", decision.Decision{Signal: decision.SignalSell}, 100, acct)
	require.Empty(t, ex.sells)
}

func TestGuardCloseRoundTrip(t *testing.T) {
	g, ex, ledger := newGuardFixture(t)
	ex.openOrders = []exchange.Order{{ID: "stop-1", Symbol: "BTCUSDT"}}
	acct := AccountInfo{Balance: 10000, AvailableCash: 10000}

	g.Apply(context.Background(), "BTC", buyDecision(), 100, acct)
	require.Len(t, g.state.Positions, 1)

	g.CloseLong(context.Background(), "BTC", 102, "触发止盈")

	require.Equal(t, []string{"BTCUSDT"}, ex.sells)
	require.Equal(t, []string{"stop-1"}, ex.cancels)
	require.Empty(t, g.state.Positions)

	// 引擎流水：pnl 不乘杠杆，pnl_pct 乘杠杆。
	require.Len(t, g.state.History, 1)
	rec := g.state.History[0]
	require.InDelta(t, 2, rec.PnL, 1e-9)
	require.InDelta(t, 20, rec.PnLPct, 1e-9)

	// 台账口径：pnl 乘杠杆。
	trades, err := ledger.AllTrades(context.Background())
	require.NoError(t, err)
	require.Len(t, trades, 1)
	require.Equal(t, risk.TradeStatusClosed, trades[0].Status)
	require.InDelta(t, 20, trades[0].PnL, 1e-9)
}

func TestGuardClosePnLScalesWithLeverage(t *testing.T) {
	g, _, _ := newGuardFixture(t)
	acct := AccountInfo{Balance: 10000, AvailableCash: 10000}

	d := buyDecision()
	d.Quantity = 2
	d.Leverage = 5
	g.Apply(context.Background(), "BTC", d, 100, acct)
	g.CloseLong(context.Background(), "BTC", 110, "tp")

	require.Len(t, g.state.History, 1)
	rec := g.state.History[0]
	require.InDelta(t, 20, rec.PnL, 1e-9)    // (110−100)×2，不乘杠杆
	require.InDelta(t, 50, rec.PnLPct, 1e-9) // (110/100−1)×100×5
}
