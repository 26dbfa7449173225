package decision

import (
	"encoding/json"
	"fmt"
	"strings"

	"helmsman/internal/logger"
	"helmsman/internal/pkg/jsonutil"

	"github.com/tidwall/gjson"
)

// Validator 是未类型化模型输出进入执行路径的唯一边界。
type Validator struct {
	schema *SchemaRegistry
}

func NewValidator(schema *SchemaRegistry) *Validator {
	return &Validator{schema: schema}
}

// Parse 把 Advisor 的原始文本归一化为 币种→Decision 映射。
//
// 接受两种形态：单个对象 {"BTC":{...},...}，或单币种对象数组
// [{"BTC":{...}},{"ETH":{...}}]（并集合并，同键后写覆盖）。
// 归一化后仍不是对象、或 JSON 不合法时返回 ErrFormat。
// 缺少 signal 或未通过 schema 校验的条目被丢弃（记日志）。
// 保证：返回映射的键是 coins 的子集，且每个值都有 signal。
func (v *Validator) Parse(raw string, coins []string) (map[string]Decision, error) {
	block, ok := jsonutil.ExtractJSON(raw)
	if !ok {
		return nil, fmt.Errorf("%w: 未找到 JSON 片段", ErrFormat)
	}
	if !gjson.Valid(block) {
		return nil, fmt.Errorf("%w: JSON 不合法", ErrFormat)
	}
	parsed := gjson.Parse(block)

	merged := make(map[string]gjson.Result)
	switch {
	case parsed.IsObject():
		collectEntries(parsed, merged)
	case parsed.IsArray():
		arrayOK := false
		parsed.ForEach(func(_, item gjson.Result) bool {
			if item.IsObject() {
				collectEntries(item, merged)
				arrayOK = true
			}
			return true
		})
		if !arrayOK {
			return nil, fmt.Errorf("%w: 数组元素不是对象", ErrFormat)
		}
	default:
		return nil, fmt.Errorf("%w: 根节点既不是对象也不是数组", ErrFormat)
	}

	requested := make(map[string]struct{}, len(coins))
	for _, c := range coins {
		requested[strings.ToUpper(strings.TrimSpace(c))] = struct{}{}
	}

	out := make(map[string]Decision, len(merged))
	for coin, entry := range merged {
		if _, ok := requested[coin]; !ok {
			logger.Debugf("忽略未请求币种的决策: %s", coin)
			continue
		}
		if strings.TrimSpace(entry.Get("signal").String()) == "" {
			logger.Warnf("%s 决策缺少 signal，移除", coin)
			continue
		}
		decoded, err := decodeEntry(entry.Raw)
		if err != nil {
			logger.Warnf("%s 决策解码失败，移除: %v", coin, err)
			continue
		}
		// 大小写在 schema 校验前统一，避免 "BUY" 被枚举拒掉。
		if sig, ok := decoded["signal"].(string); ok {
			decoded["signal"] = strings.ToLower(strings.TrimSpace(sig))
		}
		if v.schema != nil {
			if err := v.schema.Validate(decoded); err != nil {
				logger.Warnf("%s 决策未通过 schema 校验，移除: %v", coin, err)
				continue
			}
		}
		out[coin] = fromEntry(decoded)
	}
	return out, nil
}

// collectEntries 收集对象里 值为对象 的条目；同键后写覆盖。
func collectEntries(obj gjson.Result, into map[string]gjson.Result) {
	obj.ForEach(func(key, value gjson.Result) bool {
		if !value.IsObject() {
			logger.Debugf("忽略非对象决策条目: %s", key.String())
			return true
		}
		into[strings.ToUpper(strings.TrimSpace(key.String()))] = value
		return true
	})
}

func decodeEntry(raw string) (map[string]any, error) {
	var entry map[string]any
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, err
	}
	return entry, nil
}
