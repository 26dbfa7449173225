package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"helmsman/internal/market"
)

func openTestPosition(t *testing.T, g *Guard) {
	t.Helper()
	acct := AccountInfo{Balance: 10000, AvailableCash: 10000}
	g.Apply(context.Background(), "BTC", buyDecision(), 100, acct)
	require.Len(t, g.state.Positions, 1)
}

func snapAt(price float64) map[string]*market.FeatureSnapshot {
	return map[string]*market.FeatureSnapshot{
		"BTC": {Coin: "BTC", CurrentPrice: price},
	}
}

func TestMonitorStopLossTrigger(t *testing.T) {
	g, ex, _ := newGuardFixture(t)
	openTestPosition(t, g)
	m := NewMonitor(g)

	m.Check(context.Background(), snapAt(95)) // 恰好踩线也触发

	require.Len(t, ex.sells, 1)
	require.Empty(t, g.state.Positions)
	require.Equal(t, "触发止损", g.state.History[0].Reason)
}

func TestMonitorProfitTargetTrigger(t *testing.T) {
	g, ex, _ := newGuardFixture(t)
	openTestPosition(t, g)
	m := NewMonitor(g)

	m.Check(context.Background(), snapAt(110))

	require.Len(t, ex.sells, 1)
	require.Equal(t, "触发止盈", g.state.History[0].Reason)
}

func TestMonitorHoldsBetweenThresholds(t *testing.T) {
	g, ex, _ := newGuardFixture(t)
	openTestPosition(t, g)
	m := NewMonitor(g)

	m.Check(context.Background(), snapAt(100))

	require.Empty(t, ex.sells)
	require.Len(t, g.state.Positions, 1)
}

func TestMonitorSkipsCoinsWithoutSnapshot(t *testing.T) {
	g, ex, _ := newGuardFixture(t)
	openTestPosition(t, g)
	m := NewMonitor(g)

	m.Check(context.Background(), map[string]*market.FeatureSnapshot{})

	require.Empty(t, ex.sells)
	require.Len(t, g.state.Positions, 1)
}
