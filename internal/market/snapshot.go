package market

// 数据质量标记。spot_fallback 表示改用现货代理序列，invalid 表示两个来源
// 都退化（该币种会被整轮剔除，不会出现在快照集合里）。
const (
	DataQualityOK           = "ok"
	DataQualitySpotFallback = "spot_fallback"
	DataQualityInvalid      = "invalid"
)

// MinuteSeries 交易周期（短周期）最近 10 根的指标窗口。
type MinuteSeries struct {
	MidPrice []float64 `json:"mid_price"`
	EMA20    []float64 `json:"ema_20"`
	MACD     []float64 `json:"macd"`
	RSI7     []float64 `json:"rsi_7"`
	RSI14    []float64 `json:"rsi_14"`
}

// TrendContext 趋势周期（聚合周期）的背景指标。
type TrendContext struct {
	EMA20         float64   `json:"ema_20"`
	EMA50         float64   `json:"ema_50"`
	ATR3          float64   `json:"atr_3"`
	ATR14         float64   `json:"atr_14"`
	CurrentVolume float64   `json:"current_volume"`
	AverageVolume float64   `json:"average_volume"`
	MACDSeries    []float64 `json:"macd_series"`
	RSI14Series   []float64 `json:"rsi_14_series"`
}

// FeatureSnapshot 单个币种单轮的特征快照。构建后只读。
type FeatureSnapshot struct {
	Coin          string       `json:"coin"`
	SourceSymbol  string       `json:"source_symbol"`
	CurrentPrice  float64      `json:"current_price"`
	CurrentEMA20  float64      `json:"current_ema_20"`
	CurrentMACD   float64      `json:"current_macd"`
	CurrentRSI7   float64      `json:"current_rsi_7"`
	FundingRate   float64      `json:"funding_rate"`
	OpenInterest  float64      `json:"open_interest"`
	Minute        MinuteSeries `json:"minute_series"`
	Trend         TrendContext `json:"trend_context"`
	Change24hPct  float64      `json:"24h_change_percent"`
	High24h       float64      `json:"24h_high"`
	Low24h        float64      `json:"24h_low"`
	Volume24h     float64      `json:"24h_volume"`
	DataNote      string       `json:"data_note"`
}
