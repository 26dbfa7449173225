// Package jsonutil 从模型自由文本里剥离出 JSON 决策负载。
package jsonutil

import "strings"

const codeFence = "```"

// ExtractJSON 返回 raw 中的 JSON 片段。优先剥离代码围栏；数组按括号配对
// 截取，对象按「首个 { 到最后一个 }」截取（模型偶尔会在对象内部输出不配
// 对的花括号字符串，首尾截取对这类输出更稳）。
func ExtractJSON(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if block, ok := extractFromFence(raw); ok {
		raw = block
	}
	objStart := strings.Index(raw, "{")
	arrStart := strings.Index(raw, "[")
	if arrStart != -1 && (objStart == -1 || arrStart < objStart) {
		if arr, ok := extractBalancedArray(raw[arrStart:]); ok {
			return arr, true
		}
	}
	if objStart == -1 {
		return "", false
	}
	end := strings.LastIndex(raw, "}")
	if end <= objStart {
		return "", false
	}
	return strings.TrimSpace(raw[objStart : end+1]), true
}

func extractFromFence(raw string) (string, bool) {
	start := strings.Index(raw, codeFence)
	if start == -1 {
		return "", false
	}
	rest := raw[start+len(codeFence):]
	end := strings.Index(rest, codeFence)
	if end == -1 {
		return "", false
	}
	block := strings.TrimLeft(rest[:end], "\r\n")
	// 跳过 ```json 之类的语言标记行
	if idx := strings.Index(block, "\n"); idx != -1 {
		first := strings.TrimSpace(block[:idx])
		if first != "" && !strings.ContainsAny(first, "[{") {
			block = block[idx+1:]
		}
	}
	block = strings.TrimSpace(block)
	return block, block != ""
}

func extractBalancedArray(raw string) (string, bool) {
	depth := 0
	inString := false
	escape := false
	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		if inString {
			if escape {
				escape = false
				continue
			}
			switch ch {
			case '\\':
				escape = true
			case '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return strings.TrimSpace(raw[:i+1]), true
			}
		}
	}
	return "", false
}
