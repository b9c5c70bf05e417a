package sched

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cenownik/pricewatch/internal/domain/history"
	"github.com/cenownik/pricewatch/internal/domain/notification"
	"github.com/cenownik/pricewatch/internal/domain/offer"
	"github.com/cenownik/pricewatch/internal/scrape"
)

type fakeOffers struct {
	mu      sync.Mutex
	byID    map[int64]*offer.Offer
	updates map[int64]float64
}

func newFakeOffers(offers ...*offer.Offer) *fakeOffers {
	f := &fakeOffers{byID: map[int64]*offer.Offer{}, updates: map[int64]float64{}}
	for _, o := range offers {
		f.byID[o.ID] = o
	}
	return f
}

func (f *fakeOffers) ListRefs(_ context.Context) ([]offer.Ref, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var refs []offer.Ref
	for _, o := range f.byID {
		refs = append(refs, offer.Ref{ID: o.ID, URL: o.URL})
	}
	return refs, nil
}

func (f *fakeOffers) GetByID(_ context.Context, id int64) (*offer.Offer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.byID[id]
	if !ok {
		return nil, errors.New("offer not found")
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOffers) UpdateScraped(_ context.Context, id int64, price float64, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[id] = price
	return nil
}

type fakeHistory struct {
	mu       sync.Mutex
	appended []*history.Observation
}

func (f *fakeHistory) Append(_ context.Context, o *history.Observation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, o)
	return nil
}

func (f *fakeHistory) List(_ context.Context, _ history.Filter) ([]*history.Observation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.appended, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []*notification.Event
}

func (f *fakeNotifier) Dispatch(_ context.Context, ev *notification.Event) notification.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return notification.Result{EmailSent: true}
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// scriptExtractor serves "shop.test" URLs from a fixed script. A nil entry
// simulates a page without a price; a scriptErr entry fails the fetch.
type scriptExtractor struct {
	prices map[string]*float64
	errs   map[string]error
	block  chan struct{}
	active chan struct{}
}

func (s *scriptExtractor) CanHandle(url string) bool {
	return strings.Contains(url, "shop.test")
}

func (s *scriptExtractor) Extract(_ context.Context, url string) (scrape.Result, error) {
	if s.active != nil {
		s.active <- struct{}{}
	}
	if s.block != nil {
		<-s.block
	}
	if err := s.errs[url]; err != nil {
		return scrape.Result{Source: "shop"}, err
	}
	title := "Scripted"
	return scrape.Result{Price: s.prices[url], Title: &title, Source: "shop"}, nil
}

func noopSleep(_ context.Context, _ time.Duration) error { return nil }

func newTestSweeper(offers *fakeOffers, hist *fakeHistory, notifier *fakeNotifier, ext scrape.Extractor) *Sweeper {
	registry := scrape.NewRegistry(zap.NewNop(), ext)
	clock := fixedClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	return NewSweeper(offers, hist, registry, notifier, clock, 0, 0, zap.NewNop()).WithSleep(noopSleep)
}

func fptr(v float64) *float64 { return &v }

func TestProcessPriceChangeWithoutTarget(t *testing.T) {
	offers := newFakeOffers(&offer.Offer{ID: 1, URL: "https://shop.test/a", Price: 100})
	hist := &fakeHistory{}
	notifier := &fakeNotifier{}
	ext := &scriptExtractor{prices: map[string]*float64{"https://shop.test/a": fptr(95)}}

	s := newTestSweeper(offers, hist, notifier, ext)
	require.NoError(t, s.Process(context.Background(), 1))

	require.Len(t, hist.appended, 1)
	obs := hist.appended[0]
	require.Equal(t, int64(1), obs.OfferID)
	require.Equal(t, 95.0, obs.Price)
	require.Equal(t, 100.0, obs.PreviousPrice)
	require.False(t, obs.TargetReached)
	require.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), obs.ObservedAt)

	require.Empty(t, notifier.events)
	require.Equal(t, 95.0, offers.updates[1])
}

func TestProcessTargetReachedNotifies(t *testing.T) {
	hook := "https://discord.com/api/webhooks/1/a"
	offers := newFakeOffers(&offer.Offer{
		ID:          2,
		URL:         "https://shop.test/b",
		Price:       95,
		TargetPrice: fptr(90),
		Owner:       &offer.Owner{ID: 10, Email: "anna@example.com", DiscordWebhookURL: &hook},
	})
	hist := &fakeHistory{}
	notifier := &fakeNotifier{}
	ext := &scriptExtractor{prices: map[string]*float64{"https://shop.test/b": fptr(85)}}

	s := newTestSweeper(offers, hist, notifier, ext)
	require.NoError(t, s.Process(context.Background(), 2))

	require.Len(t, hist.appended, 1)
	require.True(t, hist.appended[0].TargetReached)

	require.Len(t, notifier.events, 1)
	ev := notifier.events[0]
	require.Equal(t, "anna@example.com", ev.UserEmail)
	require.Equal(t, "anna", ev.UserName)
	require.Equal(t, &hook, ev.WebhookURL)
	require.Equal(t, 85.0, ev.NewPrice)
	require.Equal(t, 95.0, ev.PrevPrice)
	require.InDelta(t, 10.53, ev.DropPercent, 0.01)
	require.InDelta(t, 10.0, ev.Savings, 1e-9)
}

func TestProcessUnchangedPriceWritesNoHistory(t *testing.T) {
	offers := newFakeOffers(&offer.Offer{ID: 3, URL: "https://shop.test/c", Price: 100, TargetPrice: fptr(150)})
	hist := &fakeHistory{}
	notifier := &fakeNotifier{}
	ext := &scriptExtractor{prices: map[string]*float64{"https://shop.test/c": fptr(100)}}

	s := newTestSweeper(offers, hist, notifier, ext)
	require.NoError(t, s.Process(context.Background(), 3))

	require.Empty(t, hist.appended)
	require.Empty(t, notifier.events)
	require.Equal(t, 100.0, offers.updates[3])
}

func TestProcessUnsupportedStore(t *testing.T) {
	offers := newFakeOffers(&offer.Offer{ID: 4, URL: "https://elsewhere.test/d", Price: 100})
	hist := &fakeHistory{}
	notifier := &fakeNotifier{}
	ext := &scriptExtractor{}

	s := newTestSweeper(offers, hist, notifier, ext)
	require.NoError(t, s.Process(context.Background(), 4))

	require.Empty(t, hist.appended)
	require.Empty(t, offers.updates)
}

func TestProcessExtractionFailureIsNotFatal(t *testing.T) {
	offers := newFakeOffers(&offer.Offer{ID: 5, URL: "https://shop.test/e", Price: 100})
	hist := &fakeHistory{}
	notifier := &fakeNotifier{}
	ext := &scriptExtractor{errs: map[string]error{"https://shop.test/e": errors.New("connection refused")}}

	s := newTestSweeper(offers, hist, notifier, ext)
	require.NoError(t, s.Process(context.Background(), 5))

	require.Empty(t, hist.appended)
	require.Empty(t, offers.updates)
}

func TestProcessWithoutOwnerSkipsNotification(t *testing.T) {
	offers := newFakeOffers(&offer.Offer{ID: 6, URL: "https://shop.test/f", Price: 95, TargetPrice: fptr(90)})
	hist := &fakeHistory{}
	notifier := &fakeNotifier{}
	ext := &scriptExtractor{prices: map[string]*float64{"https://shop.test/f": fptr(85)}}

	s := newTestSweeper(offers, hist, notifier, ext)
	require.NoError(t, s.Process(context.Background(), 6))

	require.Len(t, hist.appended, 1)
	require.True(t, hist.appended[0].TargetReached)
	require.Empty(t, notifier.events)
}

func TestSweepContinuesAfterPerOfferFailure(t *testing.T) {
	offers := newFakeOffers(
		&offer.Offer{ID: 1, URL: "https://shop.test/a", Price: 100},
		&offer.Offer{ID: 2, URL: "https://shop.test/b", Price: 100},
		&offer.Offer{ID: 3, URL: "https://shop.test/c", Price: 100},
	)
	hist := &fakeHistory{}
	notifier := &fakeNotifier{}
	ext := &scriptExtractor{
		prices: map[string]*float64{
			"https://shop.test/a": fptr(90),
			"https://shop.test/c": fptr(80),
		},
		errs: map[string]error{"https://shop.test/b": errors.New("boom")},
	}

	s := newTestSweeper(offers, hist, notifier, ext)
	require.NoError(t, s.Sweep(context.Background()))

	require.Equal(t, 90.0, offers.updates[1])
	require.Equal(t, 80.0, offers.updates[3])
	require.Len(t, hist.appended, 2)
}

func TestSweepRecordsInterListingDelay(t *testing.T) {
	offers := newFakeOffers(
		&offer.Offer{ID: 1, URL: "https://shop.test/a", Price: 1},
		&offer.Offer{ID: 2, URL: "https://shop.test/b", Price: 1},
		&offer.Offer{ID: 3, URL: "https://shop.test/c", Price: 1},
	)
	ext := &scriptExtractor{prices: map[string]*float64{}}

	var mu sync.Mutex
	var waits []time.Duration
	rec := func(_ context.Context, d time.Duration) error {
		mu.Lock()
		waits = append(waits, d)
		mu.Unlock()
		return nil
	}

	registry := scrape.NewRegistry(zap.NewNop(), ext)
	s := NewSweeper(offers, &fakeHistory{}, registry, &fakeNotifier{}, fixedClock{t: time.Now()},
		2*time.Second, 0, zap.NewNop()).WithSleep(rec)

	require.NoError(t, s.Sweep(context.Background()))
	require.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, waits)
}

func TestSweepSkipsWhenBusy(t *testing.T) {
	offers := newFakeOffers(&offer.Offer{ID: 1, URL: "https://shop.test/a", Price: 1})
	ext := &scriptExtractor{
		prices: map[string]*float64{},
		block:  make(chan struct{}),
		active: make(chan struct{}, 1),
	}

	s := newTestSweeper(offers, &fakeHistory{}, &fakeNotifier{}, ext)

	done := make(chan error, 1)
	go func() { done <- s.Sweep(context.Background()) }()

	<-ext.active
	require.ErrorIs(t, s.Sweep(context.Background()), ErrSweepInProgress)

	close(ext.block)
	require.NoError(t, <-done)
}
