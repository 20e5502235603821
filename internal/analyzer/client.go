// Package analyzer wraps the OpenAI API for the two-stage extraction
// pipeline: a facts pass over raw post text, then a market-impact pass over
// the extracted facts. Both passes request JSON output and validate it before
// anything downstream sees it.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/yameens/trumpdump/internal/storage/models"
	"github.com/yameens/trumpdump/pkg/circuitbreaker"
	"github.com/yameens/trumpdump/pkg/logger"
	"github.com/yameens/trumpdump/pkg/retry"
)

const (
	factsSystemPrompt = `You extract structured facts from the provided text.
Hard rules:
a. Do not invent facts, tickers, or numbers. If unsure, use "unknown".
b. Separate direct facts from assumptions.
c. Output must be a single JSON object with exactly these keys: record, facts, claims_requiring_verification, market_relevance_triggers, assumptions.
d. Prefer empty arrays [] over omitting fields.`

	marketSystemPrompt = `You are an institutional, risk-averse market analyst.
You must use only the provided extracted JSON facts as your factual basis.
Do not invent tickers, sectors, or numbers. If uncertain, write "unknown" and add to data_needed_next.
verified_additions MUST be [] (no web verification in this pipeline).
Be conservative by default.
Output must be a single JSON object with exactly these keys: relevance_score_0_100, why_relevant, dominant_verticals_ranked, tickers_ranked, base_case_summary, conservative_case_summary, aggressive_case_summary, facts_used, verified_additions, data_needed_next, inferences.`
)

type Client struct {
	client      *openai.Client
	factsModel  string
	marketModel string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

// Options tunes the completion requests. Zero values fall back to sane
// defaults (temperature 0.2, 60s timeout, no token cap).
type Options struct {
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// PostMeta is the authoritative record metadata injected into the facts
// prompt. TimestampUTC defaults to now when empty.
type PostMeta struct {
	Source       string
	URL          string
	TimestampUTC string
}

func (m PostMeta) withDefaults() PostMeta {
	if m.TimestampUTC == "" {
		m.TimestampUTC = time.Now().UTC().Format("2006-01-02T15:04:05Z")
	}
	return m
}

func NewClient(apiKey, factsModel, marketModel string, opts Options) *Client {
	client := openai.NewClient(apiKey)

	if opts.Temperature == 0 {
		opts.Temperature = 0.2
	}
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}

	cb := circuitbreaker.New("analyzer", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("Analyzer client initialized",
		zap.String("facts_model", factsModel),
		zap.String("market_model", marketModel),
	)

	return &Client{
		client:      client,
		factsModel:  factsModel,
		marketModel: marketModel,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		timeout:     opts.Timeout,
		cb:          cb,
		retryConfig: retryConfig,
	}
}

// ExtractFacts runs the first extraction stage over raw text. Empty text is
// rejected before any API call is made.
func (c *Client) ExtractFacts(ctx context.Context, text string, meta PostMeta) (*models.FactsRecord, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("cannot extract facts from empty text")
	}

	meta = meta.withDefaults()

	userPrompt := fmt.Sprintf(`Record metadata (authoritative):
a. source: %s
b. url: %s
c. timestamp_utc: %s

Text to extract from:
%s

Return JSON matching the schema, including record, facts, claims_requiring_verification, market_relevance_triggers, and assumptions.`,
		meta.Source, meta.URL, meta.TimestampUTC, text)

	logger.Debug("Extracting facts", zap.Int("text_length", len(text)), zap.String("url", meta.URL))

	content, err := c.complete(ctx, c.factsModel, factsSystemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("facts extraction failed: %w", err)
	}

	var facts models.FactsRecord
	if err := parseJSONResponse(content, &facts); err != nil {
		return nil, fmt.Errorf("facts extraction returned invalid JSON: %w", err)
	}

	if err := validateFacts(&facts); err != nil {
		return nil, err
	}

	logger.Info("Facts extraction completed", zap.String("url", meta.URL))

	return &facts, nil
}

// ScoreMarketImpact runs the second stage over already-extracted facts.
// verified_additions is forced to [] regardless of what the model returns.
func (c *Client) ScoreMarketImpact(ctx context.Context, facts *models.FactsRecord) (*models.MarketAnalysis, error) {
	if facts == nil {
		return nil, fmt.Errorf("cannot score market impact without facts")
	}

	factsJSON, err := json.Marshal(facts)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal facts: %w", err)
	}

	userPrompt := fmt.Sprintf(`extracted_facts_json (authoritative):
%s

Using only the extracted facts above, produce a market impact analysis.
Constraints:
a. verified_additions MUST be []
b. Provide confidence_0_1 for each inference
c. Moves must be ranges like "-0.5%% to +0.2%%"
d. If factual basis is weak/unverified, cap relevance_score_0_100 at 60
Return JSON matching the schema.`, string(factsJSON))

	content, err := c.complete(ctx, c.marketModel, marketSystemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("market impact analysis failed: %w", err)
	}

	var analysis models.MarketAnalysis
	if err := parseJSONResponse(content, &analysis); err != nil {
		return nil, fmt.Errorf("market impact returned invalid JSON: %w", err)
	}

	// No web verification happens here, so the model must not claim any.
	analysis.VerifiedAdditions = []string{}

	if err := validateAnalysis(&analysis); err != nil {
		return nil, err
	}

	logger.Info("Market analysis completed",
		zap.Int("relevance_score", analysis.RelevanceScore),
		zap.Int("verticals", len(analysis.DominantVerticalsRanked)),
		zap.Int("tickers", len(analysis.TickersRanked)),
	)

	return &analysis, nil
}

// AnalyzePost runs both stages end to end over a stored post. The post title
// is prepended to the content so short social posts still carry their
// headline context.
func (c *Client) AnalyzePost(ctx context.Context, post *models.Post) (*models.MarketAnalysis, error) {
	var parts []string
	if post.Title != "" {
		parts = append(parts, "Title: "+post.Title)
	}
	if post.Content != "" {
		parts = append(parts, post.Content)
	}

	fullText := strings.Join(parts, "\n\n")
	if strings.TrimSpace(fullText) == "" {
		return nil, fmt.Errorf("post %d has no content to analyze", post.ID)
	}

	meta := PostMeta{
		Source: string(post.Source),
		URL:    post.URL,
	}
	if !post.ScrapedAt.IsZero() {
		meta.TimestampUTC = post.ScrapedAt.UTC().Format("2006-01-02T15:04:05Z")
	}

	facts, err := c.ExtractFacts(ctx, fullText, meta)
	if err != nil {
		return nil, err
	}

	return c.ScoreMarketImpact(ctx, facts)
}

func (c *Client) complete(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	timeout := c.timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: userPrompt,
		},
	}

	var result string

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateChatCompletion(
				ctx,
				openai.ChatCompletionRequest{
					Model:       model,
					Messages:    messages,
					Temperature: c.temperature,
					MaxTokens:   c.maxTokens,
					ResponseFormat: &openai.ChatCompletionResponseFormat{
						Type: openai.ChatCompletionResponseFormatTypeJSONObject,
					},
				},
			)

			if err != nil {
				return fmt.Errorf("failed to create completion: %w", err)
			}

			if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
				return fmt.Errorf("empty response from model")
			}

			logger.Debug("Completion generated",
				zap.String("model", model),
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)

			recordTokenUsage(model, resp.Usage)

			result = resp.Choices[0].Message.Content

			return nil
		})
	})

	if err != nil {
		return "", err
	}

	return result, nil
}
