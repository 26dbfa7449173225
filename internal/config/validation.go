package config

import (
	"fmt"
	"strings"

	"helmsman/internal/scheduler"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.Advisor.validate(); err != nil {
		return err
	}
	if err := c.Trading.validate(); err != nil {
		return err
	}
	if c.Exchange.Name != "binance" {
		return fmt.Errorf("exchange.name only supports binance, got %q", c.Exchange.Name)
	}
	return nil
}

func (a *AdvisorConfig) validate() error {
	if strings.TrimSpace(a.Model) == "" {
		return fmt.Errorf("advisor.model cannot be empty")
	}
	if strings.TrimSpace(a.APIURL) == "" {
		return fmt.Errorf("advisor.api_url cannot be empty")
	}
	return nil
}

func (t *TradingConfig) validate() error {
	if len(t.Coins) == 0 {
		return fmt.Errorf("trading.coins requires at least one coin")
	}
	for _, coin := range t.Coins {
		if strings.TrimSpace(coin) == "" {
			return fmt.Errorf("trading.coins contains an empty entry")
		}
	}
	if _, ok := scheduler.ParseIntervalDuration(t.Interval); !ok {
		return fmt.Errorf("trading.interval is not a valid interval: %q", t.Interval)
	}
	return nil
}
