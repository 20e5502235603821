package events

import (
	"encoding/json"
	"testing"

	"github.com/yameens/trumpdump/internal/storage/models"
)

func TestSubscribePublishUnsubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	id1, ch1 := bus.Subscribe()
	_, ch2 := bus.Subscribe()

	if got := bus.SubscriberCount(); got != 2 {
		t.Fatalf("SubscriberCount() = %d, want 2", got)
	}

	n := &Notification{ID: 1, PostID: 10, RelevanceScore: 80}
	bus.Publish(n)

	for i, ch := range []<-chan *Notification{ch1, ch2} {
		select {
		case got := <-ch:
			if got.ID != 1 {
				t.Errorf("subscriber %d got ID %d, want 1", i, got.ID)
			}
		default:
			t.Errorf("subscriber %d did not receive notification", i)
		}
	}

	bus.Unsubscribe(id1)
	if got := bus.SubscriberCount(); got != 1 {
		t.Errorf("SubscriberCount() after unsubscribe = %d, want 1", got)
	}

	if _, ok := <-ch1; ok {
		t.Error("channel should be closed after unsubscribe")
	}
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	_, ch := bus.Subscribe()

	for i := 0; i < subscriberBuffer+5; i++ {
		bus.Publish(&Notification{ID: int64(i)})
	}

	received := 0
	for {
		select {
		case <-ch:
			received++
			continue
		default:
		}
		break
	}

	if received != subscriberBuffer {
		t.Errorf("received %d notifications, want %d buffered", received, subscriberBuffer)
	}
}

func TestCloseShutsDownSubscribers(t *testing.T) {
	bus := NewBus()

	_, ch := bus.Subscribe()
	bus.Close()

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after bus close")
	}
	if got := bus.SubscriberCount(); got != 0 {
		t.Errorf("SubscriberCount() = %d, want 0", got)
	}

	// Publishing and subscribing after close must not panic.
	bus.Publish(&Notification{ID: 1})
	_, ch2 := bus.Subscribe()
	if _, ok := <-ch2; ok {
		t.Error("post-close subscription channel should be closed")
	}
}

func TestUnsubscribeUnknownID(t *testing.T) {
	bus := NewBus()
	defer bus.Close()
	bus.Unsubscribe("no-such-id")
}

func TestNewNotification(t *testing.T) {
	vertical := "energy"
	conf := 0.8

	stored := &models.Analysis{
		ID:              42,
		PostID:          7,
		RelevanceScore:  75,
		TopVertical:     &vertical,
		TopVerticalConf: &conf,
	}
	post := &models.Post{
		ID:     7,
		Source: models.SourceWhiteHouse,
		URL:    "https://www.whitehouse.gov/briefings-statements/2026/08/example/",
		Title:  "Example Statement",
	}
	analysis := &models.MarketAnalysis{
		RelevanceScore: 75,
		DominantVerticalsRanked: []models.Vertical{
			{Vertical: "energy", Confidence: 0.8},
		},
		TickersRanked: []models.TickerImpact{
			{TickerOrETF: "XLE", Direction: "up"},
		},
		BaseCaseSummary: "Energy producers benefit.",
	}

	n := NewNotification(stored, post, analysis)

	if n.ID != 42 || n.PostID != 7 {
		t.Errorf("ids = (%d, %d), want (42, 7)", n.ID, n.PostID)
	}
	if n.TopVertical == nil || *n.TopVertical != "energy" {
		t.Errorf("TopVertical = %v", n.TopVertical)
	}
	if n.Post.Source != "whitehouse" {
		t.Errorf("Post.Source = %q", n.Post.Source)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(n.JSON(), &decoded); err != nil {
		t.Fatalf("JSON() produced invalid JSON: %v", err)
	}
	for _, key := range []string{"id", "post_id", "relevance_score", "top_vertical",
		"top_vertical_conf", "post", "verticals", "tickers", "base_case_summary"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("payload missing key %q", key)
		}
	}
}
