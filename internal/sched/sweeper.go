package sched

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cenownik/pricewatch/internal/domain/history"
	"github.com/cenownik/pricewatch/internal/domain/notification"
	"github.com/cenownik/pricewatch/internal/domain/offer"
	"github.com/cenownik/pricewatch/internal/obs"
	"github.com/cenownik/pricewatch/internal/obs/retry"
	"github.com/cenownik/pricewatch/internal/pricing"
	"github.com/cenownik/pricewatch/internal/scrape"
)

// ErrSweepInProgress reports a tick that found the previous sweep still
// running. Overlap policy is skip-if-busy: history writes are not
// idempotent, so two sweeps must never run against the same listing set.
var ErrSweepInProgress = errors.New("sweep already in progress")

var (
	mSweeps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sweep_runs_total", Help: "Sweeps started",
	})
	mSweepsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sweep_skipped_total", Help: "Ticks skipped because a sweep was running",
	})
	mOffers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sweep_offers_processed_total", Help: "Offers processed",
	})
	mUpdated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sweep_offers_updated_total", Help: "Offers with a freshly extracted price",
	})
	mMatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sweep_target_matches_total", Help: "Target-price matches detected",
	})
	mErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sweep_errors_total", Help: "Per-offer errors (extraction, persistence)",
	})
	mSweepDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "sweep_duration_seconds", Help: "Full sweep duration",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
)

type Notifier interface {
	Dispatch(ctx context.Context, ev *notification.Event) notification.Result
}

// Sweeper runs one full scan-and-process pass over all tracked offers.
// Offers are processed strictly sequentially with a fixed inter-listing
// delay as admission control against the scraped stores; do not parallelize
// without per-source concurrency caps.
type Sweeper struct {
	offers   offer.Repo
	history  history.Repo
	registry *scrape.Registry
	notifier Notifier
	clock    notification.Clock
	sleep    retry.SleepFunc
	delay    time.Duration
	timeout  time.Duration
	busy     sync.Mutex
	log      *zap.Logger
}

func NewSweeper(
	offers offer.Repo,
	hist history.Repo,
	registry *scrape.Registry,
	notifier Notifier,
	clock notification.Clock,
	delay, timeout time.Duration,
	log *zap.Logger,
) *Sweeper {
	return &Sweeper{
		offers:   offers,
		history:  hist,
		registry: registry,
		notifier: notifier,
		clock:    clock,
		sleep:    retry.StdSleep,
		delay:    delay,
		timeout:  timeout,
		log:      log.With(zap.String("component", "sched.sweeper")),
	}
}

// WithSleep replaces the inter-listing wait, for tests.
func (s *Sweeper) WithSleep(sleep retry.SleepFunc) *Sweeper {
	s.sleep = sleep
	return s
}

// Sweep processes every tracked offer once. A single offer's failure is
// logged and skipped; only repository listing errors or context cancellation
// end the sweep early.
func (s *Sweeper) Sweep(ctx context.Context) error {
	if !s.busy.TryLock() {
		mSweepsSkipped.Inc()
		s.log.Warn("sweep tick skipped, previous sweep still running")
		return ErrSweepInProgress
	}
	defer s.busy.Unlock()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	tr := otel.Tracer("sched.sweeper")
	ctx, span := tr.Start(ctx, "sweep")
	defer span.End()

	mSweeps.Inc()
	start := time.Now()

	refs, err := s.offers.ListRefs(ctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("list offers: %w", err)
	}
	span.SetAttributes(attribute.Int("offers.count", len(refs)))
	s.log.Info("sweep started", zap.Int("offers", len(refs)))

	for i, ref := range refs {
		if i > 0 {
			if err := s.sleep(ctx, s.delay); err != nil {
				return err
			}
		}
		if err := s.Process(ctx, ref.ID); err != nil {
			if ctx.Err() != nil {
				span.RecordError(ctx.Err())
				return ctx.Err()
			}
			s.log.Warn("offer processing failed",
				zap.Int64("offer_id", ref.ID),
				zap.Error(err),
			)
		}
	}

	mSweepDur.Observe(time.Since(start).Seconds())
	s.log.Info("sweep finished",
		zap.Int("offers", len(refs)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// Process runs the extract→decide→persist→notify chain for one offer.
func (s *Sweeper) Process(ctx context.Context, id int64) error {
	tr := otel.Tracer("sched.sweeper")
	ctx, span := tr.Start(ctx, "sweep.offer",
		trace.WithAttributes(attribute.Int64("offer.id", id)),
	)
	defer span.End()

	mOffers.Inc()
	log := obs.WithTrace(ctx, s.log).With(zap.Int64("offer_id", id))

	off, err := s.offers.GetByID(ctx, id)
	if err != nil {
		mErrors.Inc()
		span.RecordError(err)
		return fmt.Errorf("get offer: %w", err)
	}

	res, err := s.registry.Extract(ctx, off.URL)
	if err != nil {
		// Network-level failure: same handling as "no price found".
		mErrors.Inc()
		log.Warn("extraction failed", zap.String("url", off.URL), zap.Error(err))
		return nil
	}
	if res.Price == nil {
		log.Debug("no price extracted", zap.String("url", off.URL), zap.String("source", res.Source))
		return nil
	}

	previous := off.Price
	current := *res.Price
	d := pricing.Decide(previous, current, off.TargetPrice)

	title := off.Title
	if res.Title != nil && *res.Title != "" {
		title = *res.Title
	}

	if d.PriceChanged {
		rec := &history.Observation{
			OfferID:           id,
			Price:             current,
			PreviousPrice:     previous,
			TargetPriceAtTime: off.TargetPrice,
			TargetReached:     d.TargetReached,
			ObservedAt:        s.clock.Now().UTC(),
		}
		if err := s.history.Append(ctx, rec); err != nil {
			mErrors.Inc()
			span.RecordError(err)
			return fmt.Errorf("append observation: %w", err)
		}

		if d.TargetReached {
			mMatches.Inc()
			log.Info("target price reached",
				zap.Float64("price", current),
				zap.Float64("target", *off.TargetPrice),
			)
			off.Title = title
			s.maybeNotify(ctx, off, current, previous)
		}
	}

	if err := s.offers.UpdateScraped(ctx, id, current, title, res.Source); err != nil {
		mErrors.Inc()
		span.RecordError(err)
		return fmt.Errorf("update offer: %w", err)
	}
	mUpdated.Inc()

	log.Info("offer updated",
		zap.String("title", title),
		zap.Float64("price", current),
		zap.Bool("changed", d.PriceChanged),
	)
	return nil
}

// maybeNotify dispatches a match event when the offer has a notifiable
// owner. An absent owner or empty email silently skips notification.
func (s *Sweeper) maybeNotify(ctx context.Context, off *offer.Offer, current, previous float64) {
	owner := off.Owner
	if owner == nil || owner.Email == "" {
		s.log.Debug("target reached but offer has no notifiable owner", zap.Int64("offer_id", off.ID))
		return
	}

	name := owner.Username
	if name == "" {
		name, _, _ = strings.Cut(owner.Email, "@")
	}

	ev := &notification.Event{
		UserEmail:   owner.Email,
		UserName:    name,
		WebhookURL:  owner.DiscordWebhookURL,
		Offer:       off,
		NewPrice:    current,
		PrevPrice:   previous,
		DropPercent: pricing.DropPercent(previous, current),
		Savings:     pricing.Savings(previous, current),
	}
	s.notifier.Dispatch(ctx, ev)
}
