// Package relevance implements the two-stage gate around the extraction
// pipeline: a cheap deterministic heuristic run before any model call, and a
// score/confidence threshold applied to model output before anything is
// served or broadcast.
package relevance

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/yameens/trumpdump/internal/storage/models"
)

const (
	MinContentLength    = 50
	MaxBoilerplateRatio = 0.5

	DefaultMinScore      = 50
	DefaultMinConfidence = 0.65
)

// marketKeywords: at least one must appear for content to be worth analyzing.
var marketKeywords = []string{
	// economic policy
	"tariff", "tariffs", "trade", "import", "export", "sanction", "sanctions",
	"economy", "economic", "gdp", "inflation", "deflation", "recession",
	"stimulus", "spending", "budget", "deficit", "debt", "treasury",

	// financial/market terms
	"market", "markets", "stock", "stocks", "bond", "bonds", "equity",
	"investor", "investors", "investment", "bank", "banks", "banking",
	"fed", "federal reserve", "interest rate", "rates", "monetary",
	"fiscal", "tax", "taxes", "taxation", "revenue",

	// industry verticals
	"oil", "gas", "energy", "semiconductor", "semiconductors", "chip", "chips",
	"tech", "technology", "defense", "military", "healthcare", "pharma",
	"pharmaceutical", "manufacturing", "auto", "automotive", "steel",
	"aluminum", "agriculture", "farming",

	// trade/geopolitics
	"china", "chinese", "russia", "russian", "european", "eu", "nato",
	"bilateral", "multilateral", "agreement", "deal", "treaty",
	"embargo", "restriction", "restrictions", "ban", "banned",

	// policy actions
	"executive order", "regulation", "regulations", "deregulation",
	"policy", "legislation", "bill", "act", "law", "mandate",
	"subsidy", "subsidies", "incentive", "incentives",

	// corporate/business
	"company", "companies", "corporation", "business", "businesses",
	"industry", "sector", "merger", "acquisition", "ipo",
	"earnings", "profit", "profits", "revenues",

	// impact words
	"impact", "affect", "effect", "consequence", "result",
	"increase", "decrease", "rise", "fall", "surge", "plunge",
	"boost", "cut", "slash", "hike", "reduce", "expand",
}

// boilerplatePatterns flag ceremonial, procedural and press-release framing
// that is usually not market-moving.
var boilerplatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)for immediate release`),
	regexp.MustCompile(`(?m)###\s*$`),
	regexp.MustCompile(`(?i)contact:\s*\S+@\S+`),
	regexp.MustCompile(`(?i)press\s*secretary`),

	regexp.MustCompile(`(?i)(birthday|anniversary|congratulat|celebrat)`),
	regexp.MustCompile(`(?i)(medal|honor|award|ceremony|memorial)`),
	regexp.MustCompile(`(?i)(holiday|christmas|thanksgiving|easter|independence day)`),
	regexp.MustCompile(`(?i)(proclamation|observance|recognition)\s+(of|for)`),

	regexp.MustCompile(`(?i)(appoint|nominat)\w*\s+(to serve|as|for)`),
	regexp.MustCompile(`(?i)(resign|retirement|stepping down)`),

	regexp.MustCompile(`(?i)(schedule|itinerary|travel|visit)\s+(for|to|of)`),
	regexp.MustCompile(`(?i)(meeting|summit|conference)\s+with`),

	regexp.MustCompile(`(?i)(god bless america|god bless the united states)`),
	regexp.MustCompile(`(?i)(signing statement|remarks by|readout of)`),
}

// overrideKeywords are strong market signals that let boilerplate-flagged
// content through regardless of the ratio check.
var overrideKeywords = []string{
	"tariff", "sanction", "executive order", "trade", "economic",
	"market", "billion", "trillion", "percent", "rate",
}

// PassesHeuristic reports whether content is worth sending to the model.
// Pure and deterministic: no network, no state.
func PassesHeuristic(content string) bool {
	content = strings.TrimSpace(content)
	if len(content) < MinContentLength {
		return false
	}

	lower := strings.ToLower(content)

	if len(matchedKeywords(lower)) == 0 {
		return false
	}

	matches := matchedBoilerplate(content)
	if len(matches) > 0 {
		if hasOverride(lower) {
			return true
		}
		ratio := float64(len(matches)) / float64(len(boilerplatePatterns))
		if ratio > MaxBoilerplateRatio {
			return false
		}
	}

	return true
}

// HeuristicReason explains the pass/fail decision for operability and tests.
func HeuristicReason(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return "FAIL: empty content"
	}
	if len(content) < MinContentLength {
		return fmt.Sprintf("FAIL: too short (%d < %d chars)", len(content), MinContentLength)
	}

	lower := strings.ToLower(content)

	keywords := matchedKeywords(lower)
	if len(keywords) == 0 {
		return "FAIL: no market keywords found"
	}

	matches := matchedBoilerplate(content)
	if len(matches) > 0 {
		if overrides := matchedOverrides(lower); len(overrides) > 0 {
			return fmt.Sprintf("PASS: boilerplate detected (%d patterns) but overridden by: %v",
				len(matches), head(overrides, 3))
		}
		ratio := float64(len(matches)) / float64(len(boilerplatePatterns))
		if ratio > MaxBoilerplateRatio {
			return fmt.Sprintf("FAIL: too much boilerplate (%.0f%% > %.0f%%)",
				ratio*100, MaxBoilerplateRatio*100)
		}
	}

	return fmt.Sprintf("PASS: %d keywords found: %v", len(keywords), head(keywords, 5))
}

// Gate is the post-model threshold filter. Zero values fall back to the
// package defaults.
type Gate struct {
	MinScore      int
	MinConfidence float64
}

func NewGate(minScore int, minConfidence float64) *Gate {
	if minScore == 0 {
		minScore = DefaultMinScore
	}
	if minConfidence == 0 {
		minConfidence = DefaultMinConfidence
	}
	return &Gate{MinScore: minScore, MinConfidence: minConfidence}
}

// IsRelevant requires both the relevance score and the top vertical's
// confidence to clear their thresholds. Missing verticals fail closed.
func (g *Gate) IsRelevant(analysis *models.MarketAnalysis) bool {
	if analysis == nil {
		return false
	}
	if analysis.RelevanceScore < g.MinScore {
		return false
	}
	top := analysis.TopVertical()
	if top == nil {
		return false
	}
	return top.Confidence >= g.MinConfidence
}

// Reason explains the pass/fail decision of IsRelevant.
func (g *Gate) Reason(analysis *models.MarketAnalysis) string {
	if analysis == nil {
		return "FAIL: no analysis"
	}
	top := analysis.TopVertical()
	if top == nil {
		return fmt.Sprintf("FAIL: no dominant verticals (score=%d)", analysis.RelevanceScore)
	}

	scorePass := analysis.RelevanceScore >= g.MinScore
	confPass := top.Confidence >= g.MinConfidence

	if scorePass && confPass {
		return fmt.Sprintf("PASS: score=%d >= %d, conf=%.2f >= %.2f (vertical=%s)",
			analysis.RelevanceScore, g.MinScore, top.Confidence, g.MinConfidence, top.Vertical)
	}

	var failures []string
	if !scorePass {
		failures = append(failures, fmt.Sprintf("score=%d < %d", analysis.RelevanceScore, g.MinScore))
	}
	if !confPass {
		failures = append(failures, fmt.Sprintf("conf=%.2f < %.2f", top.Confidence, g.MinConfidence))
	}
	return fmt.Sprintf("FAIL: %s (vertical=%s)", strings.Join(failures, ", "), top.Vertical)
}

func matchedKeywords(lower string) []string {
	var out []string
	for _, kw := range marketKeywords {
		if strings.Contains(lower, kw) {
			out = append(out, kw)
		}
	}
	return out
}

func matchedBoilerplate(content string) []string {
	var out []string
	for _, p := range boilerplatePatterns {
		if p.MatchString(content) {
			out = append(out, p.String())
		}
	}
	return out
}

func hasOverride(lower string) bool {
	for _, kw := range overrideKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func matchedOverrides(lower string) []string {
	var out []string
	for _, kw := range overrideKeywords {
		if strings.Contains(lower, kw) {
			out = append(out, kw)
		}
	}
	return out
}

func head(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
