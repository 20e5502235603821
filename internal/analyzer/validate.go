package analyzer

import (
	"fmt"

	"github.com/yameens/trumpdump/internal/storage/models"
)

// ValidationError marks model output that parsed as JSON but violated the
// schema's ranges or enums. Callers treat it as a per-post failure rather
// than an outage.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid model output: %s: %s", e.Field, e.Reason)
}

var validDirections = map[string]bool{
	"up":      true,
	"down":    true,
	"mixed":   true,
	"unknown": true,
}

var validHorizons = map[string]bool{
	"0-2h":    true,
	"1d":      true,
	"2-5d":    true,
	"1-4w":    true,
	"unknown": true,
}

func validateFacts(facts *models.FactsRecord) error {
	if facts.Record.Source == "" {
		return &ValidationError{Field: "record.source", Reason: "missing"}
	}
	if facts.Record.URL == "" {
		return &ValidationError{Field: "record.url", Reason: "missing"}
	}
	for i, a := range facts.Assumptions {
		if a.Confidence < 0 || a.Confidence > 1 {
			return &ValidationError{
				Field:  fmt.Sprintf("assumptions[%d].confidence_0_1", i),
				Reason: fmt.Sprintf("%v out of range [0,1]", a.Confidence),
			}
		}
	}
	return nil
}

func validateAnalysis(analysis *models.MarketAnalysis) error {
	if analysis.RelevanceScore < 0 || analysis.RelevanceScore > 100 {
		return &ValidationError{
			Field:  "relevance_score_0_100",
			Reason: fmt.Sprintf("%d out of range [0,100]", analysis.RelevanceScore),
		}
	}

	for i, v := range analysis.DominantVerticalsRanked {
		if v.Vertical == "" {
			return &ValidationError{
				Field:  fmt.Sprintf("dominant_verticals_ranked[%d].vertical", i),
				Reason: "missing",
			}
		}
		if v.Confidence < 0 || v.Confidence > 1 {
			return &ValidationError{
				Field:  fmt.Sprintf("dominant_verticals_ranked[%d].confidence_0_1", i),
				Reason: fmt.Sprintf("%v out of range [0,1]", v.Confidence),
			}
		}
	}

	for i, t := range analysis.TickersRanked {
		if t.TickerOrETF == "" {
			return &ValidationError{
				Field:  fmt.Sprintf("tickers_ranked[%d].ticker_or_etf", i),
				Reason: "missing",
			}
		}
		if !validDirections[t.Direction] {
			return &ValidationError{
				Field:  fmt.Sprintf("tickers_ranked[%d].direction_up_down_mixed", i),
				Reason: fmt.Sprintf("%q not in {up, down, mixed, unknown}", t.Direction),
			}
		}
		if t.Confidence < 0 || t.Confidence > 1 {
			return &ValidationError{
				Field:  fmt.Sprintf("tickers_ranked[%d].confidence_0_1", i),
				Reason: fmt.Sprintf("%v out of range [0,1]", t.Confidence),
			}
		}
		if !validHorizons[t.ConservativeMove.Horizon] {
			return &ValidationError{
				Field:  fmt.Sprintf("tickers_ranked[%d].conservative_move.horizon", i),
				Reason: fmt.Sprintf("%q not a known horizon", t.ConservativeMove.Horizon),
			}
		}
		if !validHorizons[t.AggressiveMove.Horizon] {
			return &ValidationError{
				Field:  fmt.Sprintf("tickers_ranked[%d].aggressive_move.horizon", i),
				Reason: fmt.Sprintf("%q not a known horizon", t.AggressiveMove.Horizon),
			}
		}
	}

	for i, inf := range analysis.Inferences {
		if inf.Confidence < 0 || inf.Confidence > 1 {
			return &ValidationError{
				Field:  fmt.Sprintf("inferences[%d].confidence_0_1", i),
				Reason: fmt.Sprintf("%v out of range [0,1]", inf.Confidence),
			}
		}
	}

	return nil
}
