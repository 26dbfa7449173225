package config

// 默认值常量
const (
	defaultAppEnv            = "dev"
	defaultAppLogLevel       = "info"
	defaultAppLogPath        = "outputs/helmsman.log"
	defaultAppLLMLogPath     = "outputs/helmsman-llm.log"
	defaultExchangeName      = "binance"
	defaultExchangeTimeout   = 15
	defaultAdvisorTemp       = 0.1
	defaultAdvisorTimeout    = 60
	defaultAdvisorRetries    = 2
	defaultTradingInterval   = "5m"
	defaultTradingDurationH  = 24
	defaultTradingAssetDelay = 500
	defaultTradingCandles    = 200
	defaultTradingFallback   = 10000
	defaultRiskLedgerPath    = "data/risk_ledger.db"
	defaultReportOutputDir   = "outputs"
	defaultReportCheckpoint  = 12
)

var defaultTradingCoins = []string{"BTC", "ETH", "SOL"}

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = defaultAppEnv
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = defaultAppLogLevel
	}
	if c.App.LogPath == "" {
		c.App.LogPath = defaultAppLogPath
	}
	if c.App.LLMLogPath == "" {
		c.App.LLMLogPath = defaultAppLLMLogPath
	}

	if c.Exchange.Name == "" {
		c.Exchange.Name = defaultExchangeName
	}
	if c.Exchange.TimeoutSeconds <= 0 {
		c.Exchange.TimeoutSeconds = defaultExchangeTimeout
	}

	if c.Advisor.Temperature <= 0 {
		c.Advisor.Temperature = defaultAdvisorTemp
	}
	if c.Advisor.TimeoutSeconds <= 0 {
		c.Advisor.TimeoutSeconds = defaultAdvisorTimeout
	}
	if c.Advisor.MaxRetries <= 0 {
		c.Advisor.MaxRetries = defaultAdvisorRetries
	}

	if len(c.Trading.Coins) == 0 {
		c.Trading.Coins = append([]string(nil), defaultTradingCoins...)
	}
	if c.Trading.Interval == "" {
		c.Trading.Interval = defaultTradingInterval
	}
	if c.Trading.DurationHours <= 0 {
		c.Trading.DurationHours = defaultTradingDurationH
	}
	if c.Trading.AssetDelayMS <= 0 {
		c.Trading.AssetDelayMS = defaultTradingAssetDelay
	}
	if c.Trading.CandleLimit <= 0 {
		c.Trading.CandleLimit = defaultTradingCandles
	}
	if c.Trading.FallbackBalance <= 0 {
		c.Trading.FallbackBalance = defaultTradingFallback
	}

	if c.Risk.LedgerPath == "" {
		c.Risk.LedgerPath = defaultRiskLedgerPath
	}

	if c.Report.OutputDir == "" {
		c.Report.OutputDir = defaultReportOutputDir
	}
	if c.Report.CheckpointEvery <= 0 {
		c.Report.CheckpointEvery = defaultReportCheckpoint
	}
}
