package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yameens/trumpdump/internal/events"
	"github.com/yameens/trumpdump/internal/relevance"
	"github.com/yameens/trumpdump/internal/scraper"
	"github.com/yameens/trumpdump/internal/storage/models"
)

const relevantContent = "The President signed an executive order imposing a 25 percent tariff " +
	"on steel imports, a significant trade policy shift expected to move markets."

type fakeStore struct {
	checkpoints map[models.Source]string
	posts       map[string]*models.Post
	nextPostID  int64
	analyses    []persistedAnalysis

	checkpointErr error
	insertErr     error
	persistErr    error
}

type persistedAnalysis struct {
	postID   int64
	analysis *models.MarketAnalysis
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		checkpoints: make(map[models.Source]string),
		posts:       make(map[string]*models.Post),
		nextPostID:  1,
	}
}

func (s *fakeStore) GetCheckpoint(source models.Source) (string, error) {
	if s.checkpointErr != nil {
		return "", s.checkpointErr
	}
	return s.checkpoints[source], nil
}

func (s *fakeStore) SetCheckpoint(source models.Source, url string) error {
	s.checkpoints[source] = url
	return nil
}

func (s *fakeStore) GetPostByURL(url string) (*models.Post, error) {
	return s.posts[url], nil
}

func (s *fakeStore) InsertPost(post *models.Post) (int64, error) {
	if s.insertErr != nil {
		return 0, s.insertErr
	}
	id := s.nextPostID
	s.nextPostID++
	stored := *post
	stored.ID = id
	s.posts[post.URL] = &stored
	return id, nil
}

func (s *fakeStore) PersistAnalysis(postID int64, analysis *models.MarketAnalysis) (int64, error) {
	if s.persistErr != nil {
		return 0, s.persistErr
	}
	s.analyses = append(s.analyses, persistedAnalysis{postID: postID, analysis: analysis})
	return int64(len(s.analyses)), nil
}

type fakeFetcher struct {
	source     models.Source
	item       *scraper.ListingItem
	content    string
	listingErr error
	contentErr error

	contentCalls int
}

func (f *fakeFetcher) Source() models.Source { return f.source }

func (f *fakeFetcher) LatestItem(ctx context.Context) (*scraper.ListingItem, error) {
	return f.item, f.listingErr
}

func (f *fakeFetcher) FetchContent(ctx context.Context, url string) (string, error) {
	f.contentCalls++
	return f.content, f.contentErr
}

type fakeAnalyzer struct {
	analysis *models.MarketAnalysis
	err      error
	calls    int
}

func (a *fakeAnalyzer) AnalyzePost(ctx context.Context, post *models.Post) (*models.MarketAnalysis, error) {
	a.calls++
	return a.analysis, a.err
}

func relevantAnalysis() *models.MarketAnalysis {
	return &models.MarketAnalysis{
		RelevanceScore: 80,
		DominantVerticalsRanked: []models.Vertical{
			{Vertical: "steel", Confidence: 0.85},
		},
		BaseCaseSummary: "Domestic producers benefit.",
	}
}

func newTestPoller(store Store, analyzer Analyzer, bus *events.Bus, fetchers ...scraper.Fetcher) *Poller {
	return New(store, analyzer, relevance.NewGate(50, 0.65), bus, fetchers, time.Minute)
}

func TestPollSourceStoresAndNotifies(t *testing.T) {
	store := newFakeStore()
	analyzer := &fakeAnalyzer{analysis: relevantAnalysis()}
	bus := events.NewBus()
	defer bus.Close()
	_, ch := bus.Subscribe()

	fetcher := &fakeFetcher{
		source:  models.SourceWhiteHouse,
		item:    &scraper.ListingItem{URL: "https://example.gov/a", Title: "Tariff Action"},
		content: relevantContent,
	}

	p := newTestPoller(store, analyzer, bus, fetcher)
	if err := p.PollSource(context.Background(), fetcher); err != nil {
		t.Fatalf("PollSource() error = %v", err)
	}

	if store.posts["https://example.gov/a"] == nil {
		t.Fatal("post was not stored")
	}
	if got := store.checkpoints[models.SourceWhiteHouse]; got != "https://example.gov/a" {
		t.Errorf("checkpoint = %q", got)
	}
	if len(store.analyses) != 1 {
		t.Fatalf("analyses persisted = %d, want 1", len(store.analyses))
	}

	select {
	case n := <-ch:
		if n.RelevanceScore != 80 {
			t.Errorf("notification score = %d, want 80", n.RelevanceScore)
		}
		if n.TopVertical == nil || *n.TopVertical != "steel" {
			t.Errorf("notification top vertical = %v", n.TopVertical)
		}
	default:
		t.Error("no notification published for relevant analysis")
	}
}

func TestPollSourceCheckpointHit(t *testing.T) {
	store := newFakeStore()
	store.checkpoints[models.SourceWhiteHouse] = "https://example.gov/a"

	fetcher := &fakeFetcher{
		source: models.SourceWhiteHouse,
		item:   &scraper.ListingItem{URL: "https://example.gov/a", Title: "Seen"},
	}

	p := newTestPoller(store, &fakeAnalyzer{}, events.NewBus(), fetcher)
	if err := p.PollSource(context.Background(), fetcher); err != nil {
		t.Fatalf("PollSource() error = %v", err)
	}

	if fetcher.contentCalls != 0 {
		t.Error("content fetched despite checkpoint hit")
	}
	if len(store.posts) != 0 {
		t.Error("post stored despite checkpoint hit")
	}
}

func TestPollSourceExistingPostAdvancesCheckpoint(t *testing.T) {
	store := newFakeStore()
	store.posts["https://example.gov/a"] = &models.Post{ID: 1, URL: "https://example.gov/a"}

	fetcher := &fakeFetcher{
		source: models.SourceWhiteHouse,
		item:   &scraper.ListingItem{URL: "https://example.gov/a"},
	}

	p := newTestPoller(store, &fakeAnalyzer{}, events.NewBus(), fetcher)
	if err := p.PollSource(context.Background(), fetcher); err != nil {
		t.Fatalf("PollSource() error = %v", err)
	}

	if got := store.checkpoints[models.SourceWhiteHouse]; got != "https://example.gov/a" {
		t.Errorf("checkpoint = %q, want advanced", got)
	}
	if fetcher.contentCalls != 0 {
		t.Error("content fetched for already stored post")
	}
}

func TestPollSourceContentErrorKeepsCheckpoint(t *testing.T) {
	store := newFakeStore()

	fetcher := &fakeFetcher{
		source:     models.SourceWhiteHouse,
		item:       &scraper.ListingItem{URL: "https://example.gov/a"},
		contentErr: errors.New("boom"),
	}

	p := newTestPoller(store, &fakeAnalyzer{}, events.NewBus(), fetcher)
	if err := p.PollSource(context.Background(), fetcher); err == nil {
		t.Fatal("PollSource() = nil, want error")
	}

	if got := store.checkpoints[models.SourceWhiteHouse]; got != "" {
		t.Errorf("checkpoint advanced to %q on fetch failure", got)
	}
	if len(store.posts) != 0 {
		t.Error("post stored despite fetch failure")
	}
}

func TestPollSourceEmptyContentSkipsAnalysis(t *testing.T) {
	store := newFakeStore()
	analyzer := &fakeAnalyzer{analysis: relevantAnalysis()}

	fetcher := &fakeFetcher{
		source:  models.SourceTruthSocial,
		item:    &scraper.ListingItem{URL: "https://example.org/statuses/1"},
		content: "",
	}

	p := newTestPoller(store, analyzer, events.NewBus(), fetcher)
	if err := p.PollSource(context.Background(), fetcher); err != nil {
		t.Fatalf("PollSource() error = %v", err)
	}

	if store.posts["https://example.org/statuses/1"] == nil {
		t.Error("empty post should still be stored")
	}
	if got := store.checkpoints[models.SourceTruthSocial]; got != "https://example.org/statuses/1" {
		t.Errorf("checkpoint = %q, want advanced", got)
	}
	if analyzer.calls != 0 {
		t.Error("analyzer called for empty content")
	}
}

func TestPollSourceHeuristicSkip(t *testing.T) {
	store := newFakeStore()
	analyzer := &fakeAnalyzer{analysis: relevantAnalysis()}

	fetcher := &fakeFetcher{
		source:  models.SourceWhiteHouse,
		item:    &scraper.ListingItem{URL: "https://example.gov/b"},
		content: "The President wished everyone a happy holiday season with family and friends gathered.",
	}

	p := newTestPoller(store, analyzer, events.NewBus(), fetcher)
	if err := p.PollSource(context.Background(), fetcher); err != nil {
		t.Fatalf("PollSource() error = %v", err)
	}

	if analyzer.calls != 0 {
		t.Error("analyzer called for content with no market keywords")
	}
	if len(store.analyses) != 0 {
		t.Error("analysis persisted for skipped post")
	}
}

func TestPollSourceAnalysisFailureIsIsolated(t *testing.T) {
	store := newFakeStore()
	analyzer := &fakeAnalyzer{err: errors.New("model unavailable")}

	fetcher := &fakeFetcher{
		source:  models.SourceWhiteHouse,
		item:    &scraper.ListingItem{URL: "https://example.gov/c"},
		content: relevantContent,
	}

	p := newTestPoller(store, analyzer, events.NewBus(), fetcher)
	if err := p.PollSource(context.Background(), fetcher); err != nil {
		t.Fatalf("PollSource() error = %v, analysis failures must not fail the poll", err)
	}

	if store.posts["https://example.gov/c"] == nil {
		t.Error("post should be stored even when analysis fails")
	}
	if got := store.checkpoints[models.SourceWhiteHouse]; got != "https://example.gov/c" {
		t.Errorf("checkpoint = %q, want advanced", got)
	}
}

func TestPollSourceIrrelevantAnalysisNotPublished(t *testing.T) {
	store := newFakeStore()
	analyzer := &fakeAnalyzer{
		analysis: &models.MarketAnalysis{
			RelevanceScore: 20,
			DominantVerticalsRanked: []models.Vertical{
				{Vertical: "misc", Confidence: 0.3},
			},
		},
	}
	bus := events.NewBus()
	defer bus.Close()
	_, ch := bus.Subscribe()

	fetcher := &fakeFetcher{
		source:  models.SourceWhiteHouse,
		item:    &scraper.ListingItem{URL: "https://example.gov/d"},
		content: relevantContent,
	}

	p := newTestPoller(store, analyzer, bus, fetcher)
	if err := p.PollSource(context.Background(), fetcher); err != nil {
		t.Fatalf("PollSource() error = %v", err)
	}

	if len(store.analyses) != 1 {
		t.Fatalf("analyses persisted = %d, want 1 even below gate", len(store.analyses))
	}

	select {
	case <-ch:
		t.Error("irrelevant analysis was published")
	default:
	}
}

func TestRunTickIsolatesSourceFailures(t *testing.T) {
	store := newFakeStore()
	failing := &fakeFetcher{
		source:     models.SourceWhiteHouse,
		listingErr: errors.New("listing down"),
	}
	healthy := &fakeFetcher{
		source:  models.SourceTruthSocial,
		item:    &scraper.ListingItem{URL: "https://example.org/statuses/2"},
		content: relevantContent,
	}

	p := newTestPoller(store, &fakeAnalyzer{analysis: relevantAnalysis()}, events.NewBus(), failing, healthy)
	if ok := p.RunTick(context.Background()); !ok {
		t.Fatal("RunTick() skipped unexpectedly")
	}

	if store.posts["https://example.org/statuses/2"] == nil {
		t.Error("healthy source was not polled after failing source")
	}
}

func TestTriggerNowCoalesces(t *testing.T) {
	p := newTestPoller(newFakeStore(), &fakeAnalyzer{}, events.NewBus())

	if !p.TriggerNow() {
		t.Error("first TriggerNow() = false, want true")
	}
	if p.TriggerNow() {
		t.Error("second TriggerNow() = true, want false while one is pending")
	}
}

func TestStatus(t *testing.T) {
	fetcher := &fakeFetcher{source: models.SourceWhiteHouse}
	p := newTestPoller(newFakeStore(), &fakeAnalyzer{}, events.NewBus(), fetcher)

	status := p.Status()
	if status.Running {
		t.Error("Running = true before Run")
	}
	if status.IntervalSeconds != 60 {
		t.Errorf("IntervalSeconds = %d, want 60", status.IntervalSeconds)
	}
	if len(status.Sources) != 1 || status.Sources[0] != "whitehouse" {
		t.Errorf("Sources = %v", status.Sources)
	}
}
