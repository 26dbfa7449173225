package binance

import "time"

const (
	defaultFuturesBaseURL = "https://fapi.binance.com"
	defaultSpotBaseURL    = "https://api.binance.com"
	defaultHTTPTimeout    = 15 * time.Second
)

// Config 描述 Binance 网关的连接参数。
type Config struct {
	APIKey      string
	APISecret   string
	BaseURL     string // USD-M futures REST
	SpotBaseURL string
	HTTPTimeout time.Duration
}

func (c Config) withDefaults() Config {
	out := c
	if out.BaseURL == "" {
		out.BaseURL = defaultFuturesBaseURL
	}
	if out.SpotBaseURL == "" {
		out.SpotBaseURL = defaultSpotBaseURL
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = defaultHTTPTimeout
	}
	return out
}
