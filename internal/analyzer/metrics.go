package analyzer

import (
	openai "github.com/sashabaranov/go-openai"

	"github.com/yameens/trumpdump/internal/metrics"
)

func recordTokenUsage(model string, usage openai.Usage) {
	metrics.LLMTokensUsed.WithLabelValues(model, "prompt").Add(float64(usage.PromptTokens))
	metrics.LLMTokensUsed.WithLabelValues(model, "completion").Add(float64(usage.CompletionTokens))
}
