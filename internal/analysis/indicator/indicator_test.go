package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constantSeries(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestEMASeedAndConvergence(t *testing.T) {
	values := []float64{10, 20, 30}
	ema := EMA(values, 9)
	require.Len(t, ema, 3)
	// 种子是首个值，alpha = 2/(9+1) = 0.2。
	assert.InDelta(t, 10, ema[0], 1e-12)
	assert.InDelta(t, 0.2*20+0.8*10, ema[1], 1e-12)
	assert.InDelta(t, 0.2*30+0.8*ema[1], ema[2], 1e-12)

	// 恒定序列的 EMA 恒等于该值。
	for _, v := range EMA(constantSeries(7.5, 30), 20) {
		assert.InDelta(t, 7.5, v, 1e-12)
	}
}

func TestRSIConstantSeriesIsHundred(t *testing.T) {
	// 平均跌幅为 0 时约定 RSI=100，而不是除零。
	rsi := RSI(constantSeries(42, 20), 14)
	for i, v := range rsi {
		if i < 14 {
			assert.True(t, math.IsNaN(v), "下标 %d 应是未定义", i)
			continue
		}
		assert.InDelta(t, 100, v, 1e-12)
	}
}

func TestRSIAllLossesIsZero(t *testing.T) {
	values := make([]float64, 20)
	for i := range values {
		values[i] = 100 - float64(i)
	}
	rsi := RSI(values, 14)
	assert.InDelta(t, 0, rsi[len(rsi)-1], 1e-12)
}

func TestRSIBounds(t *testing.T) {
	values := []float64{44, 45, 43, 46, 47, 44, 48, 49, 46, 50, 47, 51, 52, 49, 53, 50, 54}
	for _, v := range RSI(values, 7) {
		if math.IsNaN(v) {
			continue
		}
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
}

func TestATRWindowAndWarmup(t *testing.T) {
	highs := []float64{12, 14, 15, 13}
	lows := []float64{8, 10, 11, 9}
	closes := []float64{10, 13, 12, 11}
	atr := ATR(highs, lows, closes, 3)
	require.Len(t, atr, 4)
	assert.True(t, math.IsNaN(atr[0]))
	assert.True(t, math.IsNaN(atr[1]))
	// TR: [4, 4, 4, 4]（首根退化为 high−low）。
	assert.InDelta(t, 4, atr[2], 1e-12)
	assert.InDelta(t, 4, atr[3], 1e-12)
}

func TestMACDHistogramConstantIsZero(t *testing.T) {
	for _, v := range MACDHistogram(constantSeries(100, 60)) {
		assert.InDelta(t, 0, v, 1e-9)
	}
}

func TestTailValidSkipsWarmup(t *testing.T) {
	series := []float64{math.NaN(), math.NaN(), 1, 2, math.NaN(), 3, 4}
	assert.Equal(t, []float64{2, 3, 4}, TailValid(series, 3))
	assert.Equal(t, []float64{1, 2, 3, 4}, TailValid(series, 10))
}

func TestIsSeriesDegenerate(t *testing.T) {
	// 全 0 且长度 ≥10：退化。
	assert.True(t, IsSeriesDegenerate(constantSeries(0, 10)))
	// 样本不足：退化。
	assert.True(t, IsSeriesDegenerate([]float64{1, 2, 3}))
	// 恒定值（去重后 1 个）：退化。
	assert.True(t, IsSeriesDegenerate(constantSeries(99.5, 30)))
	// 只在两个价位间跳动：退化。
	two := make([]float64, 20)
	for i := range two {
		two[i] = 100 + float64(i%2)
	}
	assert.True(t, IsSeriesDegenerate(two))

	// 20 个严格递增的不同值：正常。
	up := make([]float64, 20)
	for i := range up {
		up[i] = 100 + float64(i)
	}
	assert.False(t, IsSeriesDegenerate(up))
}
