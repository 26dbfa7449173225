// Package exchange defines the trading venue capability consumed by the
// engine. Implementations live under gateway/<venue>; the engine never
// talks to a venue SDK directly.
package exchange

import (
	"context"
)

// Kline 单根 K 线，时间戳为毫秒。
type Kline struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

type Exchange interface {
	Name() string

	// Market data. Spot variants back the degraded-data fallback path.
	FetchCandles(ctx context.Context, sym, interval string, limit int) ([]Kline, error)
	FetchSpotCandles(ctx context.Context, sym, interval string, limit int) ([]Kline, error)
	FetchTicker(ctx context.Context, sym string) (Ticker, error)
	FetchSpotTicker(ctx context.Context, sym string) (Ticker, error)
	FetchFundingRate(ctx context.Context, sym string) (float64, error)
	FetchOpenInterest(ctx context.Context, sym string) (float64, error)

	// Account and orders.
	FetchBalance(ctx context.Context) (Balance, error)
	SetLeverage(ctx context.Context, sym string, leverage int, marginMode string) error
	CreateMarketBuy(ctx context.Context, sym string, quantity float64) (orderID string, err error)
	CreateMarketSell(ctx context.Context, sym string, quantity float64, reduceOnly bool) (orderID string, err error)
	FetchOpenOrders(ctx context.Context, sym string) ([]Order, error)
	CancelOrder(ctx context.Context, orderID, sym string) error
}

// Ticker 24h 行情摘要。
type Ticker struct {
	Symbol        string
	Last          float64
	High24h       float64
	Low24h        float64
	ChangePercent float64
	QuoteVolume   float64
}

// Balance 账户 USDT 资金。
type Balance struct {
	Free  float64
	Total float64
}

// Order 未成交委托的最小描述。
type Order struct {
	ID     string
	Symbol string
}
