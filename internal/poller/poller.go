// Package poller drives the scrape, gate, analyze, persist, notify cycle on
// a fixed interval. One tick runs at a time; a tick that overruns the
// interval causes the next one to be skipped rather than queued.
package poller

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yameens/trumpdump/internal/events"
	"github.com/yameens/trumpdump/internal/metrics"
	"github.com/yameens/trumpdump/internal/relevance"
	"github.com/yameens/trumpdump/internal/scraper"
	"github.com/yameens/trumpdump/internal/storage/models"
	"github.com/yameens/trumpdump/pkg/logger"
)

// Store is the persistence surface the poller needs.
type Store interface {
	GetCheckpoint(source models.Source) (string, error)
	SetCheckpoint(source models.Source, lastSeenURL string) error
	GetPostByURL(url string) (*models.Post, error)
	InsertPost(post *models.Post) (int64, error)
	PersistAnalysis(postID int64, analysis *models.MarketAnalysis) (int64, error)
}

// Analyzer runs the extraction pipeline over a stored post.
type Analyzer interface {
	AnalyzePost(ctx context.Context, post *models.Post) (*models.MarketAnalysis, error)
}

type Poller struct {
	store    Store
	analyzer Analyzer
	gate     *relevance.Gate
	bus      *events.Bus
	fetchers []scraper.Fetcher
	interval time.Duration

	tickMu  sync.Mutex
	stateMu sync.Mutex
	lastRun time.Time
	running bool

	trigger chan struct{}
}

func New(store Store, analyzer Analyzer, gate *relevance.Gate, bus *events.Bus, fetchers []scraper.Fetcher, interval time.Duration) *Poller {
	return &Poller{
		store:    store,
		analyzer: analyzer,
		gate:     gate,
		bus:      bus,
		fetchers: fetchers,
		interval: interval,
		trigger:  make(chan struct{}, 1),
	}
}

// Run loops until the context is canceled. The first tick fires immediately
// rather than waiting out one interval.
func (p *Poller) Run(ctx context.Context) {
	p.setRunning(true)
	defer p.setRunning(false)

	logger.Info("Poller started",
		zap.Duration("interval", p.interval),
		zap.Int("sources", len(p.fetchers)),
	)

	p.RunTick(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Poller stopped")
			return
		case <-ticker.C:
			p.RunTick(ctx)
		case <-p.trigger:
			p.RunTick(ctx)
		}
	}
}

// TriggerNow requests an out-of-band tick. Returns false when a trigger is
// already pending.
func (p *Poller) TriggerNow() bool {
	select {
	case p.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// RunTick polls every source once. Returns false when another tick was still
// in progress and this one was skipped.
func (p *Poller) RunTick(ctx context.Context) bool {
	if !p.tickMu.TryLock() {
		logger.Warn("Skipping tick: previous tick still running")
		return false
	}
	defer p.tickMu.Unlock()

	p.stateMu.Lock()
	p.lastRun = time.Now().UTC()
	p.stateMu.Unlock()

	for _, f := range p.fetchers {
		source := string(f.Source())
		start := time.Now()

		if err := p.PollSource(ctx, f); err != nil {
			metrics.PollsTotal.WithLabelValues(source, "error").Inc()
			logger.Error("Poll failed",
				zap.String("source", source),
				zap.Error(err),
			)
		} else {
			metrics.PollsTotal.WithLabelValues(source, "ok").Inc()
		}

		metrics.PollDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	}

	return true
}

// PollSource runs one full cycle for a single source: find the newest
// listing item, store it if unseen, then gate, analyze, persist and notify.
// The checkpoint only advances once the post itself is stored.
func (p *Poller) PollSource(ctx context.Context, f scraper.Fetcher) error {
	source := f.Source()

	item, err := f.LatestItem(ctx)
	if err != nil {
		return err
	}
	if item == nil {
		logger.Debug("No items on listing page", zap.String("source", string(source)))
		return nil
	}

	checkpoint, err := p.store.GetCheckpoint(source)
	if err != nil {
		return err
	}
	if checkpoint == item.URL {
		return nil
	}

	existing, err := p.store.GetPostByURL(item.URL)
	if err != nil {
		return err
	}
	if existing != nil {
		// Seen before the checkpoint caught up (restart, shared URL).
		return p.store.SetCheckpoint(source, item.URL)
	}

	content, err := f.FetchContent(ctx, item.URL)
	if err != nil {
		// Checkpoint stays put so the next tick retries this item.
		return err
	}

	post := &models.Post{
		Source:    source,
		URL:       item.URL,
		Title:     item.Title,
		Content:   content,
		IsRepost:  item.IsRepost,
		ScrapedAt: time.Now().UTC(),
	}

	id, err := p.store.InsertPost(post)
	if err != nil {
		return err
	}
	post.ID = id

	metrics.PostsScraped.WithLabelValues(string(source)).Inc()
	logger.Info("New post stored",
		zap.String("source", string(source)),
		zap.Int64("post_id", id),
		zap.String("url", item.URL),
	)

	if err := p.store.SetCheckpoint(source, item.URL); err != nil {
		return err
	}

	p.analyzePost(ctx, post)

	return nil
}

// analyzePost runs the gate and extraction pipeline. Failures here are
// logged per post and never fail the poll: the post is already stored and
// the checkpoint already advanced.
func (p *Poller) analyzePost(ctx context.Context, post *models.Post) {
	source := string(post.Source)

	if p.analyzer == nil {
		return
	}

	if strings.TrimSpace(post.Content) == "" || !relevance.PassesHeuristic(post.Content) {
		metrics.HeuristicSkips.WithLabelValues(source).Inc()
		logger.Info("Post skipped by heuristic",
			zap.Int64("post_id", post.ID),
			zap.String("reason", relevance.HeuristicReason(post.Content)),
		)
		return
	}

	analysis, err := p.analyzer.AnalyzePost(ctx, post)
	if err != nil {
		metrics.AnalysisFailures.WithLabelValues(source).Inc()
		logger.Error("Analysis failed",
			zap.Int64("post_id", post.ID),
			zap.Error(err),
		)
		return
	}

	analysisID, err := p.store.PersistAnalysis(post.ID, analysis)
	if err != nil {
		metrics.AnalysisFailures.WithLabelValues(source).Inc()
		logger.Error("Failed to persist analysis",
			zap.Int64("post_id", post.ID),
			zap.Error(err),
		)
		return
	}

	relevant := p.gate.IsRelevant(analysis)
	metrics.AnalysesStored.WithLabelValues(source, boolLabel(relevant)).Inc()

	logger.Info("Analysis stored",
		zap.Int64("analysis_id", analysisID),
		zap.Int64("post_id", post.ID),
		zap.Int("relevance_score", analysis.RelevanceScore),
		zap.Bool("relevant", relevant),
	)

	if !relevant {
		logger.Debug("Analysis below relevance gate",
			zap.Int64("analysis_id", analysisID),
			zap.String("reason", p.gate.Reason(analysis)),
		)
		return
	}

	stored := &models.Analysis{
		ID:             analysisID,
		PostID:         post.ID,
		RelevanceScore: analysis.RelevanceScore,
	}
	if top := analysis.TopVertical(); top != nil {
		stored.TopVertical = &top.Vertical
		stored.TopVerticalConf = &top.Confidence
	}

	p.bus.Publish(events.NewNotification(stored, post, analysis))
}

// Status reports scheduler state for the admin surface.
type Status struct {
	Running         bool      `json:"running"`
	IntervalSeconds int       `json:"interval_seconds"`
	LastTick        time.Time `json:"last_tick"`
	Sources         []string  `json:"sources"`
}

func (p *Poller) Status() Status {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()

	sources := make([]string, 0, len(p.fetchers))
	for _, f := range p.fetchers {
		sources = append(sources, string(f.Source()))
	}

	return Status{
		Running:         p.running,
		IntervalSeconds: int(p.interval.Seconds()),
		LastTick:        p.lastRun,
		Sources:         sources,
	}
}

func (p *Poller) Running() bool {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	return p.running
}

func (p *Poller) setRunning(v bool) {
	p.stateMu.Lock()
	p.running = v
	p.stateMu.Unlock()
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
