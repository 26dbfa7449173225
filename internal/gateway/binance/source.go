// Package binance 基于 go-binance SDK 实现 exchange.Exchange。
// 行情与交易走 USD-M 永续接口，降级数据源走现货接口。
package binance

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"helmsman/internal/gateway/exchange"
	"helmsman/internal/market"
	symbolpkg "helmsman/internal/pkg/symbol"

	spot "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
)

const maxKlineLimit = 1500

type Source struct {
	cfg     Config
	futures *futures.Client
	spot    *spot.Client
}

var _ exchange.Exchange = (*Source)(nil)

func New(cfg Config) *Source {
	final := cfg.withDefaults()
	httpClient := &http.Client{Timeout: final.HTTPTimeout}

	fc := futures.NewClient(final.APIKey, final.APISecret)
	fc.BaseURL = strings.TrimSpace(final.BaseURL)
	fc.HTTPClient = httpClient

	sc := spot.NewClient(final.APIKey, final.APISecret)
	sc.BaseURL = strings.TrimSpace(final.SpotBaseURL)
	sc.HTTPClient = httpClient

	return &Source{cfg: final, futures: fc, spot: sc}
}

func (s *Source) Name() string { return "binance" }

func (s *Source) FetchCandles(ctx context.Context, sym, interval string, limit int) ([]market.Candle, error) {
	clean, interval, limit, err := normalizeKlineArgs(sym, interval, limit)
	if err != nil {
		return nil, err
	}
	kls, err := s.futures.NewKlinesService().Symbol(clean).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, market.Candle{
			Timestamp: kl.OpenTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
		})
	}
	return out, nil
}

func (s *Source) FetchSpotCandles(ctx context.Context, sym, interval string, limit int) ([]market.Candle, error) {
	clean, interval, limit, err := normalizeKlineArgs(sym, interval, limit)
	if err != nil {
		return nil, err
	}
	kls, err := s.spot.NewKlinesService().Symbol(clean).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, market.Candle{
			Timestamp: kl.OpenTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
		})
	}
	return out, nil
}

func (s *Source) FetchTicker(ctx context.Context, sym string) (exchange.Ticker, error) {
	clean := symbolpkg.ToExchange(sym)
	stats, err := s.futures.NewListPriceChangeStatsService().Symbol(clean).Do(ctx)
	if err != nil {
		return exchange.Ticker{}, err
	}
	if len(stats) == 0 || stats[0] == nil {
		return exchange.Ticker{}, fmt.Errorf("empty ticker for %s", clean)
	}
	st := stats[0]
	return exchange.Ticker{
		Symbol:        sym,
		Last:          parseFloat(st.LastPrice),
		High24h:       parseFloat(st.HighPrice),
		Low24h:        parseFloat(st.LowPrice),
		ChangePercent: parseFloat(st.PriceChangePercent),
		QuoteVolume:   parseFloat(st.QuoteVolume),
	}, nil
}

func (s *Source) FetchSpotTicker(ctx context.Context, sym string) (exchange.Ticker, error) {
	clean := symbolpkg.ToExchange(sym)
	stats, err := s.spot.NewListPriceChangeStatsService().Symbol(clean).Do(ctx)
	if err != nil {
		return exchange.Ticker{}, err
	}
	if len(stats) == 0 || stats[0] == nil {
		return exchange.Ticker{}, fmt.Errorf("empty spot ticker for %s", clean)
	}
	st := stats[0]
	return exchange.Ticker{
		Symbol:        sym,
		Last:          parseFloat(st.LastPrice),
		High24h:       parseFloat(st.HighPrice),
		Low24h:        parseFloat(st.LowPrice),
		ChangePercent: parseFloat(st.PriceChangePercent),
		QuoteVolume:   parseFloat(st.QuoteVolume),
	}, nil
}

func (s *Source) FetchFundingRate(ctx context.Context, sym string) (float64, error) {
	clean := symbolpkg.ToExchange(sym)
	idx, err := s.futures.NewPremiumIndexService().Symbol(clean).Do(ctx)
	if err != nil {
		return 0, err
	}
	if len(idx) == 0 || idx[0] == nil {
		return 0, fmt.Errorf("empty premium index for %s", clean)
	}
	return parseFloat(idx[0].LastFundingRate), nil
}

func (s *Source) FetchOpenInterest(ctx context.Context, sym string) (float64, error) {
	clean := symbolpkg.ToExchange(sym)
	oi, err := s.futures.NewGetOpenInterestService().Symbol(clean).Do(ctx)
	if err != nil {
		return 0, err
	}
	if oi == nil {
		return 0, fmt.Errorf("empty open interest for %s", clean)
	}
	return parseFloat(oi.OpenInterest), nil
}

func (s *Source) FetchBalance(ctx context.Context) (exchange.Balance, error) {
	balances, err := s.futures.NewGetBalanceService().Do(ctx)
	if err != nil {
		return exchange.Balance{}, err
	}
	for _, b := range balances {
		if b == nil || b.Asset != "USDT" {
			continue
		}
		return exchange.Balance{
			Free:  parseFloat(b.AvailableBalance),
			Total: parseFloat(b.Balance),
		}, nil
	}
	return exchange.Balance{}, fmt.Errorf("no USDT balance entry")
}

func (s *Source) SetLeverage(ctx context.Context, sym string, leverage int, marginMode string) error {
	clean := symbolpkg.ToExchange(sym)
	if leverage < 1 {
		leverage = 1
	}
	if _, err := s.futures.NewChangeLeverageService().Symbol(clean).Leverage(leverage).Do(ctx); err != nil {
		return err
	}
	mt := futures.MarginTypeIsolated
	if strings.EqualFold(marginMode, "cross") {
		mt = futures.MarginTypeCrossed
	}
	// 保证金模式已一致时交易所会报错，视为幂等成功。
	if err := s.futures.NewChangeMarginTypeService().Symbol(clean).MarginType(mt).Do(ctx); err != nil {
		if !strings.Contains(err.Error(), "No need to change margin type") {
			return err
		}
	}
	return nil
}

func (s *Source) CreateMarketBuy(ctx context.Context, sym string, quantity float64) (string, error) {
	return s.createMarketOrder(ctx, sym, quantity, futures.SideTypeBuy, false)
}

func (s *Source) CreateMarketSell(ctx context.Context, sym string, quantity float64, reduceOnly bool) (string, error) {
	return s.createMarketOrder(ctx, sym, quantity, futures.SideTypeSell, reduceOnly)
}

func (s *Source) createMarketOrder(ctx context.Context, sym string, quantity float64, side futures.SideType, reduceOnly bool) (string, error) {
	if quantity <= 0 {
		return "", fmt.Errorf("invalid quantity %v for %s", quantity, sym)
	}
	clean := symbolpkg.ToExchange(sym)
	svc := s.futures.NewCreateOrderService().
		Symbol(clean).
		Side(side).
		Type(futures.OrderTypeMarket).
		Quantity(formatQuantity(quantity))
	if reduceOnly {
		svc = svc.ReduceOnly(true)
	}
	resp, err := svc.Do(ctx)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(resp.OrderID, 10), nil
}

func (s *Source) FetchOpenOrders(ctx context.Context, sym string) ([]exchange.Order, error) {
	clean := symbolpkg.ToExchange(sym)
	orders, err := s.futures.NewListOpenOrdersService().Symbol(clean).Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]exchange.Order, 0, len(orders))
	for _, o := range orders {
		if o == nil {
			continue
		}
		out = append(out, exchange.Order{
			ID:     strconv.FormatInt(o.OrderID, 10),
			Symbol: sym,
		})
	}
	return out, nil
}

func (s *Source) CancelOrder(ctx context.Context, orderID, sym string) error {
	id, err := strconv.ParseInt(strings.TrimSpace(orderID), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid order id %q: %w", orderID, err)
	}
	clean := symbolpkg.ToExchange(sym)
	_, err = s.futures.NewCancelOrderService().Symbol(clean).OrderID(id).Do(ctx)
	return err
}

func normalizeKlineArgs(sym, interval string, limit int) (string, string, int, error) {
	sym = strings.TrimSpace(sym)
	if sym == "" {
		return "", "", 0, fmt.Errorf("symbol is required")
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return "", "", 0, fmt.Errorf("interval is required")
	}
	if limit <= 0 {
		limit = 100
	}
	if limit > maxKlineLimit {
		limit = maxKlineLimit
	}
	return symbolpkg.ToExchange(sym), interval, limit, nil
}

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f
}

func formatQuantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}
