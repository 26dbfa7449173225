// Package app 负责应用级编排：加载配置→初始化依赖→启动控制循环。
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	hlcfg "helmsman/internal/config"
	"helmsman/internal/decision"
	"helmsman/internal/engine"
	"helmsman/internal/gateway/binance"
	"helmsman/internal/gateway/provider"
	"helmsman/internal/logger"
	"helmsman/internal/market"
	"helmsman/internal/risk"
	"helmsman/internal/scheduler"
)

// App 持有全部已接线的部件，Run 之外不暴露内部结构。
type App struct {
	cfg    *hlcfg.Config
	engine *engine.Engine
	ledger *risk.Ledger
	schema *decision.SchemaRegistry
}

// New 根据配置构建应用对象（不启动）。
func New(cfg *hlcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)

	source := binance.New(binance.Config{
		APIKey:      cfg.Exchange.APIKey,
		APISecret:   cfg.Exchange.APISecret,
		BaseURL:     cfg.Exchange.BaseURL,
		SpotBaseURL: cfg.Exchange.SpotBaseURL,
		HTTPTimeout: time.Duration(cfg.Exchange.TimeoutSeconds) * time.Second,
	})

	interval, _ := scheduler.ParseIntervalDuration(cfg.Trading.Interval)
	snapshots := market.NewSnapshotService(source, market.SnapshotConfig{
		CandleInterval: cfg.Trading.Interval,
		FetchLimit:     cfg.Trading.CandleLimit,
		AssetDelay:     time.Duration(cfg.Trading.AssetDelayMS) * time.Millisecond,
	})

	ledger, err := risk.NewLedger(cfg.Risk.LedgerPath)
	if err != nil {
		return nil, fmt.Errorf("初始化风控台账失败: %w", err)
	}

	schema, err := decision.NewSchemaRegistry(cfg.Risk.SchemaPath)
	if err != nil {
		_ = ledger.Close()
		return nil, fmt.Errorf("初始化决策 schema 失败: %w", err)
	}
	if cfg.Risk.SchemaPath != "" {
		if err := schema.StartWatch(); err != nil {
			logger.Warnf("schema 热更新不可用: %v", err)
		}
	}

	advisor := &provider.OpenAIChatClient{
		BaseURL:     cfg.Advisor.APIURL,
		APIKey:      cfg.Advisor.APIKey,
		ModelID:     cfg.Advisor.Model,
		Timeout:     time.Duration(cfg.Advisor.TimeoutSeconds) * time.Second,
		MaxRetries:  cfg.Advisor.MaxRetries,
		Temperature: cfg.Advisor.Temperature,
	}

	coins := make([]string, 0, len(cfg.Trading.Coins))
	for _, c := range cfg.Trading.Coins {
		coins = append(coins, strings.ToUpper(strings.TrimSpace(c)))
	}

	eng := engine.New(engine.Config{
		Coins:           coins,
		Interval:        interval,
		MaxRunTime:      time.Duration(cfg.Trading.DurationHours) * time.Hour,
		CheckpointEvery: cfg.Report.CheckpointEvery,
		FallbackBalance: cfg.Trading.FallbackBalance,
		OutputDir:       cfg.Report.OutputDir,
	}, snapshots, source, advisor, decision.NewValidator(schema), ledger)

	return &App{cfg: cfg, engine: eng, ledger: ledger, schema: schema}, nil
}

// Run 阻塞运行控制循环直到 ctx 取消或引擎自行停止。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.engine == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()
	return a.engine.Run(ctx)
}

func (a *App) Close() {
	if a.schema != nil {
		if err := a.schema.Close(); err != nil {
			logger.Warnf("关闭 schema 监听失败: %v", err)
		}
	}
	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			logger.Warnf("关闭台账失败: %v", err)
		}
	}
}
