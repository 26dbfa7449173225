package logger

import (
	"io"
	"log"
	"strings"
	"sync"
)

var (
	llmMu  sync.Mutex
	llmLog *log.Logger
)

// SetLLMWriter 指定 Advisor 请求/响应全文的落盘位置；传 nil 关闭。
func SetLLMWriter(w io.Writer) {
	llmMu.Lock()
	defer llmMu.Unlock()
	if w == nil {
		llmLog = nil
		return
	}
	llmLog = log.New(w, "", log.LstdFlags)
}

func logLLM(kind string, sections map[string]string, order []string) {
	llmMu.Lock()
	l := llmLog
	llmMu.Unlock()
	if l == nil {
		return
	}
	var b strings.Builder
	b.WriteString("[LLM][")
	b.WriteString(kind)
	b.WriteString("]\n")
	for _, title := range order {
		body := sections[title]
		b.WriteString("--- ")
		b.WriteString(title)
		b.WriteString(" ---\n")
		b.WriteString(body)
		if !strings.HasSuffix(body, "\n") {
			b.WriteString("\n")
		}
	}
	b.WriteString("=====\n")
	l.Print(b.String())
}

func LogLLMRequest(model, systemPrompt, userPrompt string) {
	logLLM("request:"+model, map[string]string{
		"SYSTEM": systemPrompt,
		"USER":   userPrompt,
	}, []string{"SYSTEM", "USER"})
}

func LogLLMResponse(model, raw string) {
	logLLM("response:"+model, map[string]string{"RAW": raw}, []string{"RAW"})
}
