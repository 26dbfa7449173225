// Package risk 维护月度风控台账：月初资金、回撤硬止损线、
// 交易流水和上一笔决策记忆，全部落在 SQLite 里，重启后可恢复。
package risk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"helmsman/internal/decision"
	"helmsman/internal/logger"
)

// MonthlyLossFraction 月度最大累计亏损占月初资金的比例。
const MonthlyLossFraction = 0.06

// ErrMonthlyStop 表示账户余额已经跌破月度回撤硬止损线。
var ErrMonthlyStop = errors.New("risk: 已触发月度回撤硬止损")

const stateRowID = 1

// MonthState 当前月的风控基线。
type MonthState struct {
	MonthKey        string
	InitialBalance  float64
	DrawdownCeiling float64
}

// Stats 月度聚合读数，纯读取不产生任何写入。
type Stats struct {
	MonthKey       string
	InitialBalance float64
	DrawdownLimit  float64
	TotalTrades    int
	ClosedTrades   int
	OpenTrades     int
	TotalPnL       float64
	WinRate        float64 // 0-100，按已平仓样本计
}

// TradeOpen 开仓登记入参。
type TradeOpen struct {
	Coin         string
	Signal       string
	Structure    string
	EntryPrice   float64
	StopLoss     float64
	ProfitTarget float64
	Quantity     float64
	Leverage     int
	RiskUSD      float64
	Confidence   float64
	Rationale    string
}

// Trade 台账条目的对外视图。
type Trade struct {
	ID           int64
	Coin         string
	Signal       string
	Structure    string
	EntryPrice   float64
	StopLoss     float64
	ProfitTarget float64
	Quantity     float64
	Leverage     int
	RiskUSD      float64
	Confidence   float64
	Status       TradeStatus
	ExitPrice    float64
	ExitReason   string
	PnL          float64
	PnLPct       float64
	Won          bool
	OpenedAt     time.Time
	ClosedAt     time.Time
}

// Ledger 单写者台账。控制循环是唯一的写入方，所有变更立即落盘。
type Ledger struct {
	db  *gorm.DB
	now func() time.Time
}

// NewLedger 打开（或创建）台账数据库并完成迁移。
func NewLedger(path string) (*Ledger, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("risk ledger: 数据库路径不能为空")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("risk ledger: 创建目录失败: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("risk ledger: 打开数据库失败: %w", err)
	}
	if err := db.AutoMigrate(&monthStateModel{}, &tradeModel{}); err != nil {
		return nil, fmt.Errorf("risk ledger: 迁移失败: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// 单写者模型，不需要连接池并发。
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	return &Ledger{db: db, now: time.Now}, nil
}

// Close 关闭底层数据库连接。
func (l *Ledger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// MonthKeyOf 生成日历月键，如 "2026-08"。
func MonthKeyOf(t time.Time) string {
	return t.Format("2006-01")
}

// EnsureMonth 对齐日历月：换月时以当前余额重置月初基线和止损线并清空流水，
// 同月内重复调用是幂等的（newMonth 返回 false，状态不变）。
func (l *Ledger) EnsureMonth(ctx context.Context, balance float64) (MonthState, bool, error) {
	key := MonthKeyOf(l.now())
	var row monthStateModel
	err := l.db.WithContext(ctx).First(&row, stateRowID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		// 首次启动，视同换月。
	case err != nil:
		return MonthState{}, false, err
	case row.MonthKey == key:
		return MonthState{MonthKey: row.MonthKey, InitialBalance: row.InitialBalance, DrawdownCeiling: row.DrawdownCeiling}, false, nil
	}

	state := MonthState{
		MonthKey:        key,
		InitialBalance:  balance,
		DrawdownCeiling: balance * (1 - MonthlyLossFraction),
	}
	nowUnix := l.now().Unix()
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&tradeModel{}).Error; err != nil {
			return err
		}
		next := monthStateModel{
			ID:              stateRowID,
			MonthKey:        state.MonthKey,
			InitialBalance:  state.InitialBalance,
			DrawdownCeiling: state.DrawdownCeiling,
			CreatedAtUnix:   nowUnix,
			UpdatedAtUnix:   nowUnix,
		}
		return tx.Save(&next).Error
	})
	if err != nil {
		return MonthState{}, false, err
	}
	logger.Infof("🆕 新的交易月 %s：月初资金 $%.2f，硬止损线 $%.2f", state.MonthKey, state.InitialBalance, state.DrawdownCeiling)
	return state, true, nil
}

// CheckStop 判断是否触发月度硬止损。remaining = 余额 − 止损线；
// 余额不高于止损线时返回包装了 ErrMonthlyStop 的错误。
func (l *Ledger) CheckStop(ctx context.Context, balance float64) (float64, error) {
	state, err := l.state(ctx)
	if err != nil {
		return 0, err
	}
	remaining := balance - state.DrawdownCeiling
	if balance <= state.DrawdownCeiling {
		return remaining, fmt.Errorf("余额 $%.2f 已跌破止损线 $%.2f: %w", balance, state.DrawdownCeiling, ErrMonthlyStop)
	}
	return remaining, nil
}

// RecordOpen 登记开仓并更新上一笔决策记忆，返回台账条目 id。
func (l *Ledger) RecordOpen(ctx context.Context, t TradeOpen) (int64, error) {
	state, err := l.state(ctx)
	if err != nil {
		return 0, err
	}
	row := tradeModel{
		MonthKey:     state.MonthKey,
		Coin:         t.Coin,
		Signal:       t.Signal,
		Structure:    t.Structure,
		EntryPrice:   t.EntryPrice,
		StopLoss:     t.StopLoss,
		ProfitTarget: t.ProfitTarget,
		Quantity:     t.Quantity,
		Leverage:     t.Leverage,
		RiskUSD:      t.RiskUSD,
		Confidence:   t.Confidence,
		Rationale:    t.Rationale,
		Status:       TradeStatusOpen,
		OpenedAtUnix: l.now().Unix(),
	}
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		mem := decision.Memory{
			Coin:       t.Coin,
			Signal:     t.Signal,
			Structure:  t.Structure,
			Confidence: t.Confidence,
			RiskUSD:    t.RiskUSD,
			DecidedAt:  l.now(),
		}
		raw, err := json.Marshal(mem)
		if err != nil {
			return err
		}
		return tx.Model(&monthStateModel{}).Where("id = ?", stateRowID).
			Updates(map[string]any{
				"last_decision_json": datatypes.JSON(raw),
				"updated_at":         l.now().Unix(),
			}).Error
	})
	if err != nil {
		return 0, err
	}
	return row.ID, nil
}

// RecordClose 按台账公式结算平仓。id 不存在时视为无事发生。
// pnl = (exit − entry) × quantity × leverage，做空取反；
// pnl_pct = pnl / (entry × quantity) × 100。
func (l *Ledger) RecordClose(ctx context.Context, id int64, exitPrice float64, reason string) (*Trade, error) {
	var row tradeModel
	err := l.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if row.Status == TradeStatusClosed {
		return nil, nil
	}

	pnl := (exitPrice - row.EntryPrice) * row.Quantity * float64(row.Leverage)
	if row.Signal == decision.SignalSell {
		pnl = -pnl
	}
	pnlPct := 0.0
	if row.EntryPrice*row.Quantity != 0 {
		pnlPct = pnl / (row.EntryPrice * row.Quantity) * 100
	}

	row.Status = TradeStatusClosed
	row.ExitPrice = exitPrice
	row.ExitReason = reason
	row.PnL = pnl
	row.PnLPct = pnlPct
	row.Won = pnl > 0
	row.ClosedAtUnix = l.now().Unix()
	if err := l.db.WithContext(ctx).Save(&row).Error; err != nil {
		return nil, err
	}
	out := toTrade(row)
	return &out, nil
}

// MonthStats 当前月聚合读数。
func (l *Ledger) MonthStats(ctx context.Context) (Stats, error) {
	state, err := l.state(ctx)
	if err != nil {
		return Stats{}, err
	}
	var rows []tradeModel
	if err := l.db.WithContext(ctx).Order("id asc").Find(&rows).Error; err != nil {
		return Stats{}, err
	}
	st := Stats{
		MonthKey:       state.MonthKey,
		InitialBalance: state.InitialBalance,
		DrawdownLimit:  state.DrawdownCeiling,
		TotalTrades:    len(rows),
	}
	wins := 0
	for _, r := range rows {
		if r.Status == TradeStatusClosed {
			st.ClosedTrades++
			st.TotalPnL += r.PnL
			if r.Won {
				wins++
			}
		} else {
			st.OpenTrades++
		}
	}
	if st.ClosedTrades > 0 {
		st.WinRate = float64(wins) / float64(st.ClosedTrades) * 100
	}
	return st, nil
}

// OpenTrades 返回仍在持仓状态的台账条目，启动对账用。
func (l *Ledger) OpenTrades(ctx context.Context) ([]Trade, error) {
	return l.list(ctx, l.db.Where("status = ?", TradeStatusOpen))
}

// AllTrades 返回当月全部台账条目（按 id 升序）。
func (l *Ledger) AllTrades(ctx context.Context) ([]Trade, error) {
	return l.list(ctx, l.db)
}

// RecentClosed 返回最近 n 笔已平仓交易，旧在前。
func (l *Ledger) RecentClosed(ctx context.Context, n int) ([]Trade, error) {
	var rows []tradeModel
	err := l.db.WithContext(ctx).
		Where("status = ?", TradeStatusClosed).
		Order("id desc").Limit(n).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]Trade, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		out = append(out, toTrade(rows[i]))
	}
	return out, nil
}

// LastDecision 读取上一笔决策记忆，没有时返回 nil。
func (l *Ledger) LastDecision(ctx context.Context) (*decision.Memory, error) {
	var row monthStateModel
	err := l.db.WithContext(ctx).First(&row, stateRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(row.LastDecisionJSON) == 0 {
		return nil, nil
	}
	var mem decision.Memory
	if err := json.Unmarshal(row.LastDecisionJSON, &mem); err != nil {
		return nil, fmt.Errorf("risk ledger: 决策记忆损坏: %w", err)
	}
	return &mem, nil
}

func (l *Ledger) state(ctx context.Context) (MonthState, error) {
	var row monthStateModel
	if err := l.db.WithContext(ctx).First(&row, stateRowID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return MonthState{}, fmt.Errorf("risk ledger: 月度状态未初始化，先调用 EnsureMonth")
		}
		return MonthState{}, err
	}
	return MonthState{MonthKey: row.MonthKey, InitialBalance: row.InitialBalance, DrawdownCeiling: row.DrawdownCeiling}, nil
}

func (l *Ledger) list(ctx context.Context, q *gorm.DB) ([]Trade, error) {
	var rows []tradeModel
	if err := q.WithContext(ctx).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Trade, 0, len(rows))
	for _, r := range rows {
		out = append(out, toTrade(r))
	}
	return out, nil
}

func toTrade(r tradeModel) Trade {
	t := Trade{
		ID:           r.ID,
		Coin:         r.Coin,
		Signal:       r.Signal,
		Structure:    r.Structure,
		EntryPrice:   r.EntryPrice,
		StopLoss:     r.StopLoss,
		ProfitTarget: r.ProfitTarget,
		Quantity:     r.Quantity,
		Leverage:     r.Leverage,
		RiskUSD:      r.RiskUSD,
		Confidence:   r.Confidence,
		Status:       r.Status,
		ExitPrice:    r.ExitPrice,
		ExitReason:   r.ExitReason,
		PnL:          r.PnL,
		PnLPct:       r.PnLPct,
		Won:          r.Won,
		OpenedAt:     time.Unix(r.OpenedAtUnix, 0),
	}
	if r.ClosedAtUnix > 0 {
		t.ClosedAt = time.Unix(r.ClosedAtUnix, 0)
	}
	return t
}
