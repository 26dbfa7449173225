package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"helmsman/internal/logger"
)

// 中文说明：
// OpenAIChatClient：兼容 OpenAI / DeepSeek / Qwen 的聊天补全接口（/v1/chat/completions）。
// 429/5xx 做有限重试，支持 Retry-After。

type OpenAIChatClient struct {
	BaseURL string
	APIKey  string
	ModelID string
	Timeout time.Duration
	// 为 0 时默认重试 2 次
	MaxRetries  int
	Temperature float64
}

var _ Advisor = (*OpenAIChatClient)(nil)

func (c *OpenAIChatClient) Model() string { return c.ModelID }

func (c *OpenAIChatClient) Decide(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	timeout := c.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 2
	}
	url := endpointURL(c.BaseURL)

	messages := make([]map[string]string, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, map[string]string{"role": "system", "content": systemPrompt})
	}
	messages = append(messages, map[string]string{"role": "user", "content": userPrompt})
	temperature := c.Temperature
	if temperature == 0 {
		temperature = 0.1
	}
	body, _ := json.Marshal(map[string]any{
		"model":       c.ModelID,
		"messages":    messages,
		"temperature": temperature,
	})

	logger.LogLLMRequest(c.ModelID, systemPrompt, userPrompt)

	httpc := &http.Client{Timeout: timeout}
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.APIKey)
		}

		resp, err := httpc.Do(req)
		if err != nil {
			return "", err
		}
		if resp.StatusCode/100 == 2 {
			var r struct {
				Choices []struct {
					Message struct {
						Content string `json:"content"`
					} `json:"message"`
				} `json:"choices"`
			}
			derr := json.NewDecoder(resp.Body).Decode(&r)
			resp.Body.Close()
			if derr != nil {
				return "", derr
			}
			if len(r.Choices) == 0 {
				return "", fmt.Errorf("empty choices")
			}
			out := r.Choices[0].Message.Content
			logger.LogLLMResponse(c.ModelID, out)
			return out, nil
		}

		var eresp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&eresp)
		resp.Body.Close()
		msg := strings.TrimSpace(eresp.Error.Message)
		if msg == "" {
			msg = resp.Status
		}
		lastErr = fmt.Errorf("status=%d: %s", resp.StatusCode, msg)
		if !retryableStatus(resp.StatusCode) || attempt == maxRetries {
			break
		}
		wait := retryAfter(resp.Header.Get("Retry-After"))
		if wait == 0 {
			// 指数退避：0.8s, 1.6s, 3.2s ...
			wait = 800 * time.Millisecond << attempt
			if wait > 8*time.Second {
				wait = 8 * time.Second
			}
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
	return "", lastErr
}

// endpointURL 规范化 BaseURL，避免配置里带了完整的 /chat/completions 导致路径重复。
func endpointURL(base string) string {
	url := strings.TrimSpace(base)
	if url == "" {
		url = "https://api.openai.com/v1"
	}
	url = strings.TrimRight(url, "/")
	url = strings.TrimSuffix(url, "/chat/completions")
	return url + "/chat/completions"
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func retryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
