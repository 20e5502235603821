package models

import "time"

// Source identifies where a post was scraped from.
type Source string

const (
	SourceWhiteHouse  Source = "whitehouse"
	SourceTruthSocial Source = "truthsocial"
)

// Post is a scraped item, content-addressed by URL. Immutable once stored.
type Post struct {
	ID        int64
	Source    Source
	URL       string
	Title     string
	Content   string
	IsRepost  bool
	ScrapedAt time.Time
}

// Checkpoint is the per-source cursor over the listing page.
type Checkpoint struct {
	Source      Source
	LastSeenURL string
}

// Analysis is the persisted wrapper around a MarketAnalysis payload.
// TopVertical and TopVerticalConf are denormalized from the first element
// of dominant_verticals_ranked; both nil when the ranked list is empty.
type Analysis struct {
	ID              int64
	PostID          int64
	CreatedAt       time.Time
	RelevanceScore  int
	TopVertical     *string
	TopVerticalConf *float64
	MarketJSON      string
	TickersJSON     string
}

// FactsRecord is the first-stage extraction output. Transient: consumed by
// the market-impact stage, not independently persisted.
type FactsRecord struct {
	Record                      RecordMeta   `json:"record"`
	Facts                       Facts        `json:"facts"`
	ClaimsRequiringVerification []string     `json:"claims_requiring_verification"`
	MarketRelevanceTriggers     []string     `json:"market_relevance_triggers"`
	Assumptions                 []Assumption `json:"assumptions"`
}

type RecordMeta struct {
	Source       string `json:"source"`
	URL          string `json:"url"`
	TimestampUTC string `json:"timestamp_utc"`
}

type Facts struct {
	Actors                []string `json:"actors"`
	Actions               []string `json:"actions"`
	Locations             []string `json:"locations"`
	TimeRefs              []string `json:"time_refs"`
	PolicyTools           []string `json:"policy_tools"`
	TargetsNamed          []string `json:"targets_named"`
	IntensityWords        []string `json:"intensity_words"`
	DirectCompanyMentions []string `json:"direct_company_mentions"`
	DirectTickerMentions  []string `json:"direct_ticker_mentions"`
}

type Assumption struct {
	Assumption string  `json:"assumption"`
	Confidence float64 `json:"confidence_0_1"`
}

// MarketAnalysis is the second-stage scoring output. VerifiedAdditions is
// forced to an empty slice by the pipeline regardless of model output.
type MarketAnalysis struct {
	RelevanceScore          int            `json:"relevance_score_0_100"`
	WhyRelevant             []string       `json:"why_relevant"`
	DominantVerticalsRanked []Vertical     `json:"dominant_verticals_ranked"`
	TickersRanked           []TickerImpact `json:"tickers_ranked"`
	BaseCaseSummary         string         `json:"base_case_summary"`
	ConservativeCaseSummary string         `json:"conservative_case_summary"`
	AggressiveCaseSummary   string         `json:"aggressive_case_summary"`
	FactsUsed               []string       `json:"facts_used"`
	VerifiedAdditions       []string       `json:"verified_additions"`
	DataNeededNext          []string       `json:"data_needed_next"`
	Inferences              []Inference    `json:"inferences"`
}

type Vertical struct {
	Vertical   string  `json:"vertical"`
	Rationale  string  `json:"rationale"`
	Confidence float64 `json:"confidence_0_1"`
}

type TickerImpact struct {
	TickerOrETF         string    `json:"ticker_or_etf"`
	Direction           string    `json:"direction_up_down_mixed"`
	Mechanism           string    `json:"mechanism"`
	Confidence          float64   `json:"confidence_0_1"`
	ConservativeMove    MoveRange `json:"conservative_move"`
	AggressiveMove      MoveRange `json:"aggressive_move"`
	WhatWouldChangeMind []string  `json:"what_would_change_your_mind"`
}

type MoveRange struct {
	Horizon          string `json:"horizon"`
	ExpectedPctRange string `json:"expected_pct_range"`
}

type Inference struct {
	Inference  string  `json:"inference"`
	Confidence float64 `json:"confidence_0_1"`
}

// TopVertical returns the first ranked vertical, or nil when none.
func (m *MarketAnalysis) TopVertical() *Vertical {
	if len(m.DominantVerticalsRanked) == 0 {
		return nil
	}
	return &m.DominantVerticalsRanked[0]
}
