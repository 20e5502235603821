package analyzer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/yameens/trumpdump/internal/storage/models"
)

func TestCleanJSONResponse(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"plain json", `{"key": "value"}`, `{"key": "value"}`},
		{"json code fence", "```json\n{\"key\": \"value\"}\n```", `{"key": "value"}`},
		{"bare code fence", "```\n{\"key\": \"value\"}\n```", `{"key": "value"}`},
		{"surrounding whitespace", "  {\"key\": \"value\"}  \n", `{"key": "value"}`},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanJSONResponse(tt.content); got != tt.want {
				t.Errorf("cleanJSONResponse() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseJSONResponse(t *testing.T) {
	var analysis models.MarketAnalysis
	content := "```json\n" + `{"relevance_score_0_100": 75, "dominant_verticals_ranked": [{"vertical": "energy", "rationale": "direct target", "confidence_0_1": 0.8}]}` + "\n```"

	if err := parseJSONResponse(content, &analysis); err != nil {
		t.Fatalf("parseJSONResponse() error = %v", err)
	}
	if analysis.RelevanceScore != 75 {
		t.Errorf("RelevanceScore = %d, want 75", analysis.RelevanceScore)
	}
	top := analysis.TopVertical()
	if top == nil || top.Vertical != "energy" {
		t.Errorf("TopVertical() = %+v, want energy", top)
	}

	if err := parseJSONResponse("", &analysis); err == nil {
		t.Error("expected error for empty response")
	}

	err := parseJSONResponse("not valid json {", &analysis)
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if !strings.Contains(err.Error(), "not valid json {") {
		t.Errorf("error should include preview, got %v", err)
	}
}

func validAnalysis() *models.MarketAnalysis {
	return &models.MarketAnalysis{
		RelevanceScore: 75,
		DominantVerticalsRanked: []models.Vertical{
			{Vertical: "steel", Rationale: "tariff target", Confidence: 0.85},
		},
		TickersRanked: []models.TickerImpact{
			{
				TickerOrETF:      "XME",
				Direction:        "up",
				Mechanism:        "domestic producers benefit",
				Confidence:       0.75,
				ConservativeMove: models.MoveRange{Horizon: "2-5d", ExpectedPctRange: "+0.5% to +2.0%"},
				AggressiveMove:   models.MoveRange{Horizon: "1-4w", ExpectedPctRange: "+2.0% to +5.0%"},
			},
		},
		VerifiedAdditions: []string{},
		Inferences: []models.Inference{
			{Inference: "steel prices increase", Confidence: 0.8},
		},
	}
}

func TestValidateAnalysis(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*models.MarketAnalysis)
		wantErr string
	}{
		{"valid", func(a *models.MarketAnalysis) {}, ""},
		{
			"score out of range",
			func(a *models.MarketAnalysis) { a.RelevanceScore = 101 },
			"relevance_score_0_100",
		},
		{
			"vertical confidence out of range",
			func(a *models.MarketAnalysis) { a.DominantVerticalsRanked[0].Confidence = 1.5 },
			"confidence_0_1",
		},
		{
			"bad direction",
			func(a *models.MarketAnalysis) { a.TickersRanked[0].Direction = "sideways" },
			"direction_up_down_mixed",
		},
		{
			"bad horizon",
			func(a *models.MarketAnalysis) { a.TickersRanked[0].ConservativeMove.Horizon = "3mo" },
			"conservative_move.horizon",
		},
		{
			"missing ticker",
			func(a *models.MarketAnalysis) { a.TickersRanked[0].TickerOrETF = "" },
			"ticker_or_etf",
		},
		{
			"inference confidence out of range",
			func(a *models.MarketAnalysis) { a.Inferences[0].Confidence = -0.1 },
			"inferences[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validAnalysis()
			tt.mutate(a)
			err := validateAnalysis(a)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("validateAnalysis() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("validateAnalysis() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateFacts(t *testing.T) {
	facts := &models.FactsRecord{
		Record: models.RecordMeta{
			Source:       "whitehouse",
			URL:          "https://www.whitehouse.gov/briefings-statements/2026/01/example/",
			TimestampUTC: "2026-01-04T12:00:00Z",
		},
		Assumptions: []models.Assumption{
			{Assumption: "policy implemented as stated", Confidence: 0.7},
		},
	}
	if err := validateFacts(facts); err != nil {
		t.Errorf("validateFacts() error = %v", err)
	}

	facts.Assumptions[0].Confidence = 2.0
	if err := validateFacts(facts); err == nil {
		t.Error("expected error for out-of-range assumption confidence")
	}

	facts.Assumptions[0].Confidence = 0.7
	facts.Record.URL = ""
	if err := validateFacts(facts); err == nil {
		t.Error("expected error for missing record url")
	}
}

func TestAnalyzePostRejectsEmptyContent(t *testing.T) {
	c := &Client{}
	_, err := c.AnalyzePost(context.Background(), &models.Post{ID: 7, Source: models.SourceWhiteHouse})
	if err == nil {
		t.Fatal("expected error for post with no content")
	}
	if !strings.Contains(err.Error(), "no content") {
		t.Errorf("error = %v", err)
	}
}

func TestExtractFactsRejectsEmptyText(t *testing.T) {
	c := &Client{}
	_, err := c.ExtractFacts(context.Background(), "   \n ", PostMeta{Source: "whitehouse", URL: "https://example.com"})
	if err == nil {
		t.Fatal("expected error for empty text")
	}
}

// newCompletionServer returns a client whose completions calls hit a local
// server that always answers with the given message content.
func newCompletionServer(t *testing.T, content string) *Client {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"id":     "chatcmpl-test",
			"object": "chat.completion",
			"model":  "test-model",
			"choices": []map[string]any{
				{
					"index":         0,
					"finish_reason": "stop",
					"message": map[string]any{
						"role":    "assistant",
						"content": content,
					},
				},
			},
			"usage": map[string]any{
				"prompt_tokens":     12,
				"completion_tokens": 34,
				"total_tokens":      46,
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)

	c := NewClient("test-key", "facts-model", "market-model", Options{})
	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	c.client = openai.NewClientWithConfig(cfg)
	return c
}

func TestScoreMarketImpactClearsVerifiedAdditions(t *testing.T) {
	payload := `{
		"relevance_score_0_100": 72,
		"why_relevant": ["tariff announcement"],
		"dominant_verticals_ranked": [{"vertical": "steel", "rationale": "direct target", "confidence_0_1": 0.8}],
		"tickers_ranked": [],
		"base_case_summary": "modest sector impact",
		"verified_additions": ["X up 3% premarket", "confirmed by wire services"],
		"inferences": []
	}`
	c := newCompletionServer(t, payload)

	facts := &models.FactsRecord{
		Record: models.RecordMeta{Source: "whitehouse", URL: "https://example.gov/a"},
	}

	analysis, err := c.ScoreMarketImpact(context.Background(), facts)
	if err != nil {
		t.Fatalf("ScoreMarketImpact() error = %v", err)
	}

	if analysis.RelevanceScore != 72 {
		t.Errorf("RelevanceScore = %d, want 72", analysis.RelevanceScore)
	}
	if analysis.VerifiedAdditions == nil {
		t.Fatal("VerifiedAdditions = nil, want empty slice")
	}
	if len(analysis.VerifiedAdditions) != 0 {
		t.Errorf("VerifiedAdditions = %v, want empty", analysis.VerifiedAdditions)
	}
}
