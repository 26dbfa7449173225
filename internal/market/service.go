package market

import (
	"context"
	"time"

	"helmsman/internal/analysis/indicator"
	"helmsman/internal/gateway/exchange"
	"helmsman/internal/logger"
	symbolpkg "helmsman/internal/pkg/symbol"
)

const defaultFundingRate = 0.0001

// SnapshotConfig 控制快照采样的粒度与窗口。
type SnapshotConfig struct {
	CandleInterval string        // 交易周期，如 "5m"
	TrendBucket    time.Duration // 趋势聚合桶，如 20m
	FetchLimit     int           // 原始拉取根数
	ShortWindow    int           // 交易周期保留根数
	TrendWindow    int           // 聚合后保留根数
	AssetDelay     time.Duration // 币种间限流间隔
	SeriesTail     int           // 对外暴露的短窗口长度
}

func (c SnapshotConfig) withDefaults() SnapshotConfig {
	out := c
	if out.CandleInterval == "" {
		out.CandleInterval = "5m"
	}
	if out.TrendBucket <= 0 {
		out.TrendBucket = 20 * time.Minute
	}
	if out.FetchLimit <= 0 {
		out.FetchLimit = 200
	}
	if out.ShortWindow <= 0 {
		out.ShortWindow = 120
	}
	if out.TrendWindow <= 0 {
		out.TrendWindow = 60
	}
	if out.AssetDelay < 0 {
		out.AssetDelay = 0
	}
	if out.SeriesTail <= 0 {
		out.SeriesTail = 10
	}
	return out
}

// SnapshotService 为每个币种构建特征快照（FeatureSnapshotBuilder）。
type SnapshotService struct {
	ex  exchange.Exchange
	cfg SnapshotConfig
}

func NewSnapshotService(ex exchange.Exchange, cfg SnapshotConfig) *SnapshotService {
	return &SnapshotService{ex: ex, cfg: cfg.withDefaults()}
}

// BuildAll 逐币种采样并计算指标，只返回数据有效的币种。
// 单个币种的采集失败只影响该币种，不中断整轮。
func (s *SnapshotService) BuildAll(ctx context.Context, coins []string) map[string]*FeatureSnapshot {
	out := make(map[string]*FeatureSnapshot, len(coins))
	for _, coin := range coins {
		if ctx.Err() != nil {
			return out
		}
		snap, err := s.buildOne(ctx, coin)
		if err != nil {
			logger.Errorf("获取 %s 数据失败: %v", coin, err)
		} else if snap != nil {
			out[coin] = snap
		}
		if s.cfg.AssetDelay > 0 {
			select {
			case <-ctx.Done():
				return out
			case <-time.After(s.cfg.AssetDelay):
			}
		}
	}
	return out
}

// buildOne 返回 (nil, nil) 表示该币种数据退化、本轮剔除。
func (s *SnapshotService) buildOne(ctx context.Context, coin string) (*FeatureSnapshot, error) {
	perp := symbolpkg.Perp(coin)
	logger.Infof("获取 %s 数据...", coin)

	raw, err := s.ex.FetchCandles(ctx, perp, s.cfg.CandleInterval, s.cfg.FetchLimit)
	if err != nil {
		return nil, err
	}
	ticker, err := s.ex.FetchTicker(ctx, perp)
	if err != nil {
		return nil, err
	}

	// 资金费率/未平仓量仅合约可得；失败降级为安全默认值，不致命。
	fundingRate := defaultFundingRate
	if rate, err := s.ex.FetchFundingRate(ctx, perp); err == nil && rate != 0 {
		fundingRate = rate
	}
	var openInterest float64
	if oi, err := s.ex.FetchOpenInterest(ctx, perp); err == nil {
		openInterest = oi
	}

	usedSymbol := perp
	dataNote := DataQualityOK
	short := Tail(raw, s.cfg.ShortWindow)
	trend := Tail(Aggregate(raw, s.cfg.TrendBucket), s.cfg.TrendWindow)

	if indicator.IsSeriesDegenerate(Closes(short)) || indicator.IsSeriesDegenerate(Closes(trend)) {
		spotSym := symbolpkg.Spot(coin)
		spotRaw, serr := s.ex.FetchSpotCandles(ctx, spotSym, s.cfg.CandleInterval, s.cfg.FetchLimit)
		if serr == nil {
			if spotTicker, terr := s.ex.FetchSpotTicker(ctx, spotSym); terr == nil {
				short = Tail(spotRaw, s.cfg.ShortWindow)
				trend = Tail(Aggregate(spotRaw, s.cfg.TrendBucket), s.cfg.TrendWindow)
				ticker = spotTicker
				usedSymbol = spotSym
				dataNote = DataQualitySpotFallback
			} else {
				dataNote = DataQualityInvalid
			}
		} else {
			dataNote = DataQualityInvalid
		}
	}

	if indicator.IsSeriesDegenerate(Closes(short)) || indicator.IsSeriesDegenerate(Closes(trend)) {
		logger.Warnf("%s K线数据退化，本轮跳过 (source=%s, note=%s)", coin, usedSymbol, dataNote)
		return nil, nil
	}

	shortInd := indicator.Compute(Highs(short), Lows(short), Closes(short))
	trendInd := indicator.Compute(Highs(trend), Lows(trend), Closes(trend))
	tail := s.cfg.SeriesTail

	// 资金费率仅在使用合约主数据源时归属；现货代理记 0。
	if symbolpkg.IsSpot(usedSymbol) {
		fundingRate = 0
	}

	var volumeSum float64
	for _, c := range trend {
		volumeSum += c.Volume
	}

	return &FeatureSnapshot{
		Coin:         coin,
		SourceSymbol: usedSymbol,
		CurrentPrice: ticker.Last,
		CurrentEMA20: indicator.Last(shortInd.EMA20),
		CurrentMACD:  indicator.Last(shortInd.MACD),
		CurrentRSI7:  indicator.Last(shortInd.RSI7),
		FundingRate:  fundingRate,
		OpenInterest: openInterest,
		Minute: MinuteSeries{
			MidPrice: indicator.TailValid(shortInd.Closes, tail),
			EMA20:    indicator.TailValid(shortInd.EMA20, tail),
			MACD:     indicator.TailValid(shortInd.MACD, tail),
			RSI7:     indicator.TailValid(shortInd.RSI7, tail),
			RSI14:    indicator.TailValid(shortInd.RSI14, tail),
		},
		Trend: TrendContext{
			EMA20:         indicator.Last(trendInd.EMA20),
			EMA50:         indicator.Last(trendInd.EMA50),
			ATR3:          indicator.Last(trendInd.ATR3),
			ATR14:         indicator.Last(trendInd.ATR14),
			CurrentVolume: trend[len(trend)-1].Volume,
			AverageVolume: volumeSum / float64(len(trend)),
			MACDSeries:    indicator.TailValid(trendInd.MACD, tail),
			RSI14Series:   indicator.TailValid(trendInd.RSI14, tail),
		},
		Change24hPct: ticker.ChangePercent,
		High24h:      ticker.High24h,
		Low24h:       ticker.Low24h,
		Volume24h:    ticker.QuoteVolume,
		DataNote:     dataNote,
	}, nil
}
