package market

import (
	"sort"
	"time"

	"helmsman/internal/gateway/exchange"
)

// Candle 沿用交易所层的 K 线结构，市场层在其上做聚合与指标计算。
type Candle = exchange.Kline

// Closes 提取收盘价序列。
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Highs 提取最高价序列。
func Highs(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.High
	}
	return out
}

// Lows 提取最低价序列。
func Lows(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Low
	}
	return out
}

// Aggregate 按时间桶聚合 K 线：open 取桶内首根（按输入顺序），close 取末根，
// high/low 取极值，volume 求和。桶起点 = floor(timestamp/bucket)*bucket，
// 输出按桶起点升序。
func Aggregate(candles []Candle, bucket time.Duration) []Candle {
	bucketMs := bucket.Milliseconds()
	if bucketMs <= 0 || len(candles) == 0 {
		return nil
	}
	buckets := make(map[int64]*Candle, len(candles))
	for _, c := range candles {
		start := (c.Timestamp / bucketMs) * bucketMs
		agg, ok := buckets[start]
		if !ok {
			buckets[start] = &Candle{
				Timestamp: start,
				Open:      c.Open,
				High:      c.High,
				Low:       c.Low,
				Close:     c.Close,
				Volume:    c.Volume,
			}
			continue
		}
		if c.High > agg.High {
			agg.High = c.High
		}
		if c.Low < agg.Low {
			agg.Low = c.Low
		}
		agg.Close = c.Close
		agg.Volume += c.Volume
	}
	starts := make([]int64, 0, len(buckets))
	for start := range buckets {
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })
	out := make([]Candle, 0, len(starts))
	for _, start := range starts {
		out = append(out, *buckets[start])
	}
	return out
}

// Tail 返回最后 n 根；不足 n 时返回原切片。
func Tail(candles []Candle, n int) []Candle {
	if n <= 0 || len(candles) <= n {
		return candles
	}
	return candles[len(candles)-n:]
}
