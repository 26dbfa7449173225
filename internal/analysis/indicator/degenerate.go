package indicator

import "math"

const (
	minSeriesLen = 10
	flatStdEps   = 1e-8
	zeroEps      = 1e-8
)

// IsSeriesDegenerate 判断收盘价序列是否退化到不足以支撑指标计算：
// 样本不足 10 根、全 0、四位小数去重后不超过 2 个值、或标准差低于 1e-8。
// 数据质量闸门，不参与指标口径。
func IsSeriesDegenerate(closes []float64) bool {
	if len(closes) < minSeriesLen {
		return true
	}
	allZero := true
	for _, v := range closes {
		if math.Abs(v) > zeroEps {
			allZero = false
			break
		}
	}
	if allZero {
		return true
	}
	distinct := make(map[float64]struct{}, len(closes))
	for _, v := range closes {
		distinct[math.Round(v*10000)/10000] = struct{}{}
	}
	if len(distinct) <= 2 {
		return true
	}
	var mean float64
	for _, v := range closes {
		mean += v
	}
	mean /= float64(len(closes))
	var variance float64
	for _, v := range closes {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(closes))
	return math.Sqrt(variance) < flatStdEps
}
