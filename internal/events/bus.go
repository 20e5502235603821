// Package events fans out analysis notifications to connected stream
// clients. Delivery is best effort: a subscriber that cannot keep up loses
// events rather than blocking the pipeline.
package events

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yameens/trumpdump/internal/metrics"
	"github.com/yameens/trumpdump/internal/storage/models"
	"github.com/yameens/trumpdump/pkg/logger"
)

const subscriberBuffer = 16

// Notification is the payload broadcast when a relevant analysis lands.
type Notification struct {
	ID              int64                 `json:"id"`
	PostID          int64                 `json:"post_id"`
	RelevanceScore  int                   `json:"relevance_score"`
	TopVertical     *string               `json:"top_vertical"`
	TopVerticalConf *float64              `json:"top_vertical_conf"`
	Post            NotificationPost      `json:"post"`
	Verticals       []models.Vertical     `json:"verticals"`
	Tickers         []models.TickerImpact `json:"tickers"`
	BaseCaseSummary string                `json:"base_case_summary"`
}

type NotificationPost struct {
	Source string `json:"source"`
	URL    string `json:"url"`
	Title  string `json:"title,omitempty"`
}

// NewNotification assembles the broadcast payload from a stored analysis,
// its post and the full model output.
func NewNotification(stored *models.Analysis, post *models.Post, analysis *models.MarketAnalysis) *Notification {
	return &Notification{
		ID:              stored.ID,
		PostID:          post.ID,
		RelevanceScore:  analysis.RelevanceScore,
		TopVertical:     stored.TopVertical,
		TopVerticalConf: stored.TopVerticalConf,
		Post: NotificationPost{
			Source: string(post.Source),
			URL:    post.URL,
			Title:  post.Title,
		},
		Verticals:       analysis.DominantVerticalsRanked,
		Tickers:         analysis.TickersRanked,
		BaseCaseSummary: analysis.BaseCaseSummary,
	}
}

// JSON marshals the notification for the wire. Errors cannot happen for
// this payload shape so the result is returned directly.
func (n *Notification) JSON() []byte {
	b, _ := json.Marshal(n)
	return b
}

// Bus is an in-process publish/subscribe hub keyed by subscriber id.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]chan *Notification
	closed bool
}

func NewBus() *Bus {
	return &Bus{
		subs: make(map[string]chan *Notification),
	}
}

// Subscribe registers a new subscriber and returns its id and channel. The
// channel closes when the subscriber is removed or the bus shuts down.
func (b *Bus) Subscribe() (string, <-chan *Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New().String()
	ch := make(chan *Notification, subscriberBuffer)

	if b.closed {
		close(ch)
		return id, ch
	}

	b.subs[id] = ch
	metrics.StreamSubscribers.Set(float64(len(b.subs)))

	logger.Debug("Subscriber added", zap.String("subscriber_id", id), zap.Int("total", len(b.subs)))

	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel. Unknown ids are
// a no-op.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subs[id]
	if !ok {
		return
	}

	delete(b.subs, id)
	close(ch)
	metrics.StreamSubscribers.Set(float64(len(b.subs)))

	logger.Debug("Subscriber removed", zap.String("subscriber_id", id), zap.Int("total", len(b.subs)))
}

// Publish delivers the notification to every subscriber without blocking.
// Subscribers with full buffers are skipped.
func (b *Bus) Publish(n *Notification) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for id, ch := range b.subs {
		select {
		case ch <- n:
		default:
			logger.Warn("Dropping notification for slow subscriber",
				zap.String("subscriber_id", id),
				zap.Int64("analysis_id", n.ID),
			)
		}
	}
}

func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close shuts down the bus and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	metrics.StreamSubscribers.Set(0)
}
