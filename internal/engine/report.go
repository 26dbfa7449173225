package engine

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"helmsman/internal/logger"
)

type checkpoint struct {
	Timestamp string `json:"timestamp"`
	Positions int    `json:"positions"`
	Trades    int    `json:"trades"`
}

// SaveCheckpoint 落一份轻量运行快照，崩溃后排查用。
func (e *Engine) SaveCheckpoint() {
	cp := checkpoint{
		Timestamp: e.now().Format(time.RFC3339),
		Positions: len(e.state.Positions),
		Trades:    len(e.state.History),
	}
	if err := os.MkdirAll(e.cfg.OutputDir, 0o755); err != nil {
		logger.Warnf("创建输出目录失败: %v", err)
		return
	}
	raw, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		logger.Warnf("序列化检查点失败: %v", err)
		return
	}
	path := filepath.Join(e.cfg.OutputDir, "checkpoint.json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		logger.Warnf("保存检查点失败: %v", err)
		return
	}
	logger.Infof("💾 检查点已保存")
}

// FinalReport 汇总本次运行的平仓流水并导出 CSV。
func (e *Engine) FinalReport() {
	logger.Infof("📈 最终报告")

	if len(e.state.History) == 0 {
		logger.Infof("无交易记录")
		return
	}

	wins := 0
	var totalPnL float64
	for _, t := range e.state.History {
		totalPnL += t.PnL
		if t.PnL > 0 {
			wins++
		}
	}
	total := len(e.state.History)
	logger.Infof("交易次数: %d", total)
	logger.Infof("胜率: %.1f%% (%d胜/%d负)", float64(wins)/float64(total)*100, wins, total-wins)
	logger.Infof("总盈亏: $%+.2f", totalPnL)

	if err := e.writeTradeHistoryCSV(); err != nil {
		logger.Errorf("导出交易历史失败: %v", err)
		return
	}
	logger.Infof("📁 交易历史已保存到 %s", filepath.Join(e.cfg.OutputDir, "trade_history.csv"))
}

func (e *Engine) writeTradeHistoryCSV() error {
	if err := os.MkdirAll(e.cfg.OutputDir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(e.cfg.OutputDir, "trade_history.csv"))
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"coin", "side", "quantity", "entry_price", "exit_price", "leverage", "pnl", "pnl_pct", "hold_hours", "reason", "timestamp"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, t := range e.state.History {
		row := []string{
			t.Coin,
			t.Side,
			fmt.Sprintf("%v", t.Quantity),
			fmt.Sprintf("%.8f", t.EntryPrice),
			fmt.Sprintf("%.8f", t.ExitPrice),
			fmt.Sprintf("%d", t.Leverage),
			fmt.Sprintf("%.4f", t.PnL),
			fmt.Sprintf("%.4f", t.PnLPct),
			fmt.Sprintf("%.2f", t.HoldHours),
			t.Reason,
			t.ClosedAt.Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
