package handlers

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/yameens/trumpdump/internal/cache/redis"
	"github.com/yameens/trumpdump/internal/relevance"
	"github.com/yameens/trumpdump/internal/storage/models"
	"github.com/yameens/trumpdump/pkg/logger"
)

// AnalysisStore is the read surface the public API needs.
type AnalysisStore interface {
	GetLatestRelevantAnalysis(minScore int, minConf float64) (*models.Analysis, error)
	GetLatestAnalysisWithTickers() (*models.Analysis, error)
	GetAnalysisByID(id int64) (*models.Analysis, error)
	GetRecentAnalyses(limit int, relevantFirst bool, minScore int, minConf float64) ([]models.Analysis, error)
	GetPostByID(id int64) (*models.Post, error)
	CountAnalyses() (int, error)
	Ping() error
}

type AnalysisHandler struct {
	store    AnalysisStore
	cache    *redis.Client
	gate     *relevance.Gate
	cacheTTL time.Duration
}

func NewAnalysisHandler(store AnalysisStore, cache *redis.Client, gate *relevance.Gate, cacheTTL time.Duration) *AnalysisHandler {
	return &AnalysisHandler{
		store:    store,
		cache:    cache,
		gate:     gate,
		cacheTTL: cacheTTL,
	}
}

// GetLatest returns the most recent analysis passing the relevance gate.
// min_score and min_conf query params override the configured thresholds
// for this request only.
func (h *AnalysisHandler) GetLatest(c *fiber.Ctx) error {
	minScore := c.QueryInt("min_score", h.gate.MinScore)
	if minScore < 0 || minScore > 100 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "min_score must be between 0 and 100",
		})
	}

	minConf := h.gate.MinConfidence
	if raw := c.Query("min_conf"); raw != "" {
		parsed, err := parseConfidence(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "min_conf must be a number between 0 and 1",
			})
		}
		minConf = parsed
	}

	cacheKey := fmt.Sprintf("latest:%d:%g", minScore, minConf)
	var cached fiber.Map
	if hit, err := h.cache.GetResponse(c.Context(), cacheKey, &cached); err == nil && hit {
		return c.JSON(cached)
	}

	analysis, err := h.store.GetLatestRelevantAnalysis(minScore, minConf)
	if err != nil {
		logger.Error("Failed to load latest analysis", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load latest analysis",
		})
	}

	if analysis == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No relevant analysis found",
			"hint":  "Either no analyses exist or none meet the relevance thresholds",
			"thresholds": fiber.Map{
				"min_score": minScore,
				"min_conf":  minConf,
			},
		})
	}

	payload := h.renderAnalysis(analysis)
	if err := h.cache.SetResponse(c.Context(), cacheKey, payload, h.cacheTTL); err != nil {
		logger.Warn("Failed to cache response", zap.Error(err))
	}

	return c.JSON(payload)
}

// GetLatestWithTickers returns the most recent analysis carrying ticker
// impacts, for clients that want the last actionable result.
func (h *AnalysisHandler) GetLatestWithTickers(c *fiber.Ctx) error {
	var cached fiber.Map
	if hit, err := h.cache.GetResponse(c.Context(), "latest-with-tickers", &cached); err == nil && hit {
		return c.JSON(cached)
	}

	analysis, err := h.store.GetLatestAnalysisWithTickers()
	if err != nil {
		logger.Error("Failed to load latest analysis with tickers", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load latest analysis",
		})
	}

	if analysis == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No analysis with ticker impacts found",
			"hint":  "No analyses have been recorded with specific ticker recommendations yet",
		})
	}

	payload := h.renderAnalysis(analysis)
	if err := h.cache.SetResponse(c.Context(), "latest-with-tickers", payload, h.cacheTTL); err != nil {
		logger.Warn("Failed to cache response", zap.Error(err))
	}

	return c.JSON(payload)
}

// GetHistory lists recent analyses as summaries, relevant first by default.
func (h *AnalysisHandler) GetHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "limit must be between 1 and 100",
		})
	}

	relevantFirst := c.QueryBool("relevant_first", true)

	analyses, err := h.store.GetRecentAnalyses(limit, relevantFirst, h.gate.MinScore, h.gate.MinConfidence)
	if err != nil {
		logger.Error("Failed to load history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load history",
		})
	}

	total, err := h.store.CountAnalyses()
	if err != nil {
		logger.Error("Failed to count analyses", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load history",
		})
	}

	summaries := make([]fiber.Map, 0, len(analyses))
	for i := range analyses {
		a := &analyses[i]

		summary := fiber.Map{
			"id":                a.ID,
			"post_id":           a.PostID,
			"created_at_utc":    a.CreatedAt.Unix(),
			"relevance_score":   a.RelevanceScore,
			"top_vertical":      a.TopVertical,
			"top_vertical_conf": a.TopVerticalConf,
			"is_relevant":       h.isRelevant(a),
		}

		if post, err := h.store.GetPostByID(a.PostID); err == nil && post != nil {
			summary["post_title"] = post.Title
			summary["post_url"] = post.URL
		}

		summaries = append(summaries, summary)
	}

	return c.JSON(fiber.Map{
		"analyses": summaries,
		"total":    total,
		"limit":    limit,
	})
}

// GetByID returns one analysis in full, regardless of relevance.
func (h *AnalysisHandler) GetByID(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid analysis id",
		})
	}

	analysis, err := h.store.GetAnalysisByID(int64(id))
	if err != nil {
		logger.Error("Failed to load analysis", zap.Int("id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load analysis",
		})
	}

	if analysis == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": fmt.Sprintf("Analysis with id %d not found", id),
		})
	}

	return c.JSON(h.renderAnalysis(analysis))
}

// renderAnalysis expands a stored row into the full response shape, parsing
// the archived model output back out of market_json.
func (h *AnalysisHandler) renderAnalysis(a *models.Analysis) fiber.Map {
	payload := fiber.Map{
		"id":                a.ID,
		"post_id":           a.PostID,
		"created_at_utc":    a.CreatedAt.Unix(),
		"relevance_score":   a.RelevanceScore,
		"top_vertical":      a.TopVertical,
		"top_vertical_conf": a.TopVerticalConf,
		"verticals":         []models.Vertical{},
		"tickers":           []models.TickerImpact{},
	}

	if a.MarketJSON != "" {
		var market models.MarketAnalysis
		if err := json.Unmarshal([]byte(a.MarketJSON), &market); err != nil {
			logger.Warn("Failed to parse stored analysis payload",
				zap.Int64("analysis_id", a.ID),
				zap.Error(err),
			)
		} else {
			if market.DominantVerticalsRanked != nil {
				payload["verticals"] = market.DominantVerticalsRanked
			}
			if market.TickersRanked != nil {
				payload["tickers"] = market.TickersRanked
			}
			payload["base_case_summary"] = market.BaseCaseSummary
			payload["conservative_case_summary"] = market.ConservativeCaseSummary
			payload["aggressive_case_summary"] = market.AggressiveCaseSummary
		}
	}

	if post, err := h.store.GetPostByID(a.PostID); err == nil && post != nil {
		preview := post.Content
		if len(preview) > 500 {
			preview = preview[:500]
		}
		payload["post"] = fiber.Map{
			"id":              post.ID,
			"source":          post.Source,
			"url":             post.URL,
			"title":           post.Title,
			"content_preview": preview,
			"is_repost":       post.IsRepost,
		}
	}

	return payload
}

func (h *AnalysisHandler) isRelevant(a *models.Analysis) bool {
	return a.RelevanceScore >= h.gate.MinScore &&
		a.TopVerticalConf != nil &&
		*a.TopVerticalConf >= h.gate.MinConfidence
}

func parseConfidence(raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if v < 0 || v > 1 {
		return 0, fmt.Errorf("out of range")
	}
	return v, nil
}
