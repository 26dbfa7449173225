package provider

import "context"

// Advisor 是外部决策模型的能力抽象：输入提示词，输出自由格式文本。
// 输出格式不做任何保证，由 decision.Validator 兜底。
type Advisor interface {
	Decide(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Model() string
}
