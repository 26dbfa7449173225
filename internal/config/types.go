package config

// Config 是 Helmsman 的主配置载体。
type Config struct {
	App      AppConfig      `toml:"app"`
	Exchange ExchangeConfig `toml:"exchange"`
	Advisor  AdvisorConfig  `toml:"advisor"`
	Trading  TradingConfig  `toml:"trading"`
	Risk     RiskConfig     `toml:"risk"`
	Report   ReportConfig   `toml:"report"`
}

type AppConfig struct {
	Env        string `toml:"env"`
	LogLevel   string `toml:"log_level"`
	LogPath    string `toml:"log_path"`
	LLMLogPath string `toml:"llm_log_path"`
}

type ExchangeConfig struct {
	Name           string `toml:"name"`
	APIKey         string `toml:"api_key"`
	APISecret      string `toml:"api_secret"`
	BaseURL        string `toml:"base_url"`
	SpotBaseURL    string `toml:"spot_base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type AdvisorConfig struct {
	APIURL         string  `toml:"api_url"`
	APIKey         string  `toml:"api_key"`
	Model          string  `toml:"model"`
	Temperature    float64 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	MaxRetries     int     `toml:"max_retries"`
}

// TradingConfig 控制循环节奏与监控范围。
type TradingConfig struct {
	Coins           []string `toml:"coins"`
	Interval        string   `toml:"interval"`
	DurationHours   int      `toml:"duration_hours"`
	AssetDelayMS    int      `toml:"asset_delay_ms"`
	CandleLimit     int      `toml:"candle_limit"`
	FallbackBalance float64  `toml:"fallback_balance"`
}

type RiskConfig struct {
	LedgerPath string `toml:"ledger_path"`
	SchemaPath string `toml:"schema_path"`
}

type ReportConfig struct {
	OutputDir       string `toml:"output_dir"`
	CheckpointEvery int    `toml:"checkpoint_every"`
}
