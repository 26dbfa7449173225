// Package indicator 按引擎固定口径计算技术指标。
//
// 口径说明（与决策行为绑定，不可替换为教科书定义）：
//   - EMA 以首个值为种子，alpha = 2/(span+1)，无早期偏差修正；
//   - RSI 使用窗口内涨跌幅的简单滚动均值（非 Wilder 递归平滑）；
//     平均跌幅为 0 时约定 RSI = 100；
//   - ATR 为真实波幅的滚动均值，首根的真实波幅退化为 high-low。
//
// 窗口类指标在样本不足时为 NaN，调用方不得把 NaN 透传给决策层。
package indicator

import (
	"math"
)

// Series 对齐到每根 K 线的指标序列。
type Series struct {
	EMA20  []float64
	EMA50  []float64
	RSI7   []float64
	RSI14  []float64
	MACD   []float64 // MACD histogram: (EMA12-EMA26) - EMA9(EMA12-EMA26)
	ATR3   []float64
	ATR14  []float64
	Closes []float64
}

// Compute 计算全部指标序列，长度与输入对齐。三个入参长度必须一致。
func Compute(highs, lows, closes []float64) Series {
	return Series{
		EMA20:  EMA(closes, 20),
		EMA50:  EMA(closes, 50),
		RSI7:   RSI(closes, 7),
		RSI14:  RSI(closes, 14),
		MACD:   MACDHistogram(closes),
		ATR3:   ATR(highs, lows, closes, 3),
		ATR14:  ATR(highs, lows, closes, 14),
		Closes: closes,
	}
}

// EMA 指数移动平均，种子为首个值。
func EMA(values []float64, span int) []float64 {
	if len(values) == 0 || span <= 0 {
		return nil
	}
	alpha := 2.0 / float64(span+1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// RSI 简单滚动均值口径。下标 < period 的位置为 NaN。
// 平均跌幅为 0（纯上涨或恒定序列）时按约定返回 100。
func RSI(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if period <= 0 || len(values) <= period {
		return out
	}
	for i := period; i < len(values); i++ {
		var gain, loss float64
		for j := i - period + 1; j <= i; j++ {
			delta := values[j] - values[j-1]
			if delta > 0 {
				gain += delta
			} else {
				loss -= delta
			}
		}
		avgGain := gain / float64(period)
		avgLoss := loss / float64(period)
		if avgLoss == 0 {
			out[i] = 100
			continue
		}
		rs := avgGain / avgLoss
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// MACDHistogram = (EMA12 - EMA26) - EMA9(EMA12 - EMA26)。
func MACDHistogram(values []float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	ema12 := EMA(values, 12)
	ema26 := EMA(values, 26)
	macd := make([]float64, len(values))
	for i := range values {
		macd[i] = ema12[i] - ema26[i]
	}
	signal := EMA(macd, 9)
	out := make([]float64, len(values))
	for i := range values {
		out[i] = macd[i] - signal[i]
	}
	return out
}

// ATR 真实波幅的滚动均值。下标 < period-1 的位置为 NaN。
func ATR(highs, lows, closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = math.NaN()
	}
	if period <= 0 || len(closes) < period {
		return out
	}
	tr := make([]float64, len(closes))
	for i := range closes {
		if i == 0 {
			tr[i] = highs[i] - lows[i]
			continue
		}
		prevClose := closes[i-1]
		tr[i] = math.Max(highs[i]-lows[i], math.Max(math.Abs(highs[i]-prevClose), math.Abs(lows[i]-prevClose)))
	}
	var sum float64
	for i, v := range tr {
		sum += v
		if i >= period {
			sum -= tr[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// Last 返回序列末值；空序列返回 NaN。
func Last(series []float64) float64 {
	if len(series) == 0 {
		return math.NaN()
	}
	return series[len(series)-1]
}

// TailValid 返回末尾最多 n 个非 NaN 值，用于对外暴露的短序列窗口。
func TailValid(series []float64, n int) []float64 {
	out := make([]float64, 0, n)
	for i := len(series) - 1; i >= 0 && len(out) < n; i-- {
		if math.IsNaN(series[i]) || math.IsInf(series[i], 0) {
			continue
		}
		out = append(out, series[i])
	}
	// 反转回时间正序
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
