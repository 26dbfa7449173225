package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCoins = []string{"BTC", "ETH", "SOL"}

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	schema, err := NewSchemaRegistry("")
	require.NoError(t, err)
	return NewValidator(schema)
}

func TestParseObjectPayload(t *testing.T) {
	v := newTestValidator(t)
	raw := `{
		"BTC": {"signal": "buy", "entry_price": 50000, "stop_loss": 49000, "profit_target": 52000,
		         "risk_usd": 150, "leverage": 10, "quantity": 0.01, "confidence": 0.8,
		         "structure": "空转多", "justification": "结构突破"},
		"ETH": {"signal": "hold", "justification": "无明显结构"}
	}`
	out, err := v.Parse(raw, testCoins)
	require.NoError(t, err)
	require.Len(t, out, 2)

	btc := out["BTC"]
	assert.Equal(t, SignalBuy, btc.Signal)
	assert.InDelta(t, 50000, btc.EntryPrice, 1e-9)
	assert.Equal(t, 10, btc.Leverage)
	assert.False(t, btc.IsHold())
	assert.True(t, out["ETH"].IsHold())
}

func TestParseArrayPayloadMerges(t *testing.T) {
	v := newTestValidator(t)
	raw := `[{"BTC":{"signal":"buy"}}, {"ETH":{"signal":"hold"}}]`
	out, err := v.Parse(raw, testCoins)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, SignalBuy, out["BTC"].Signal)
	assert.Equal(t, SignalHold, out["ETH"].Signal)
}

func TestParseDropsEntryWithoutSignal(t *testing.T) {
	v := newTestValidator(t)
	out, err := v.Parse(`{"BTC":{"structure":"x"}}`, testCoins)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestParseFiltersUnrequestedCoins(t *testing.T) {
	v := newTestValidator(t)
	out, err := v.Parse(`{"DOGE":{"signal":"buy"},"BTC":{"signal":"hold"}}`, testCoins)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Contains(t, out, "BTC")
}

func TestParseNormalizesCase(t *testing.T) {
	v := newTestValidator(t)
	// 币种键小写、信号大写都接受。
	out, err := v.Parse(`{"btc":{"signal":"BUY"}}`, testCoins)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, SignalBuy, out["BTC"].Signal)
}

func TestParseMarkdownFenceAndProse(t *testing.T) {
	v := newTestValidator(t)
	raw := "分析如下：\n```json\n{\"BTC\": {\"signal\": \"sell\", \"justification\": \"多转空\"}}\n```\n以上。"
	out, err := v.Parse(raw, testCoins)
	require.NoError(t, err)
	assert.Equal(t, SignalSell, out["BTC"].Signal)
}

func TestParseStringNumbersCoerced(t *testing.T) {
	v := newTestValidator(t)
	raw := `{"BTC":{"signal":"buy","entry_price":"50000.5","leverage":"5","quantity":"0.02","confidence":"0.7"}}`
	out, err := v.Parse(raw, testCoins)
	require.NoError(t, err)
	btc := out["BTC"]
	assert.InDelta(t, 50000.5, btc.EntryPrice, 1e-9)
	assert.Equal(t, 5, btc.Leverage)
	assert.InDelta(t, 0.02, btc.Quantity, 1e-9)
}

func TestParseInvalidationAlias(t *testing.T) {
	v := newTestValidator(t)
	out, err := v.Parse(`{"BTC":{"signal":"buy","invalidation_condition":"跌破前低"}}`, testCoins)
	require.NoError(t, err)
	assert.Equal(t, "跌破前低", out["BTC"].Invalidation)
}

func TestParseDropsUnknownSignalEnum(t *testing.T) {
	v := newTestValidator(t)
	out, err := v.Parse(`{"BTC":{"signal":"yolo"},"ETH":{"signal":"hold"}}`, testCoins)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Contains(t, out, "ETH")
}

func TestParseFormatErrors(t *testing.T) {
	v := newTestValidator(t)
	for name, raw := range map[string]string{
		"empty":        "",
		"no json":      "今天不建议交易。",
		"broken json":  `{"BTC": {"signal": `,
		"scalar array": `[1, 2, 3]`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Parse(raw, testCoins)
			assert.ErrorIs(t, err, ErrFormat)
		})
	}
}

func TestParseLeverageFloor(t *testing.T) {
	v := newTestValidator(t)
	out, err := v.Parse(`{"BTC":{"signal":"buy","leverage":0}}`, testCoins)
	require.NoError(t, err)
	assert.Equal(t, 1, out["BTC"].Leverage)
}
