package notify

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cenownik/pricewatch/internal/domain/notification"
)

var (
	mEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notify_events_total", Help: "Price-match events dispatched",
	})
	mDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notify_delivered_total", Help: "Deliveries per channel",
	}, []string{"channel"})
	mFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notify_failed_total", Help: "Failed or skipped deliveries per channel",
	}, []string{"channel"})
)

// Dispatcher fans one price-match event out to the email and Discord
// channels. The channels run concurrently and independently: a failure in
// one never prevents or rolls back the other, and the result always reports
// them separately. Dispatch is at-most-once per invocation; there is no
// outer redelivery.
type Dispatcher struct {
	email   *EmailChannel
	discord *DiscordChannel
	log     *zap.Logger
}

func NewDispatcher(email *EmailChannel, discord *DiscordChannel, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		email:   email,
		discord: discord,
		log:     log.With(zap.String("component", "notify.dispatcher")),
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, ev *notification.Event) notification.Result {
	mEvents.Inc()

	tr := otel.Tracer("notify.dispatcher")
	ctx, span := tr.Start(ctx, "notify.dispatch",
		trace.WithAttributes(attribute.Int64("offer.id", ev.Offer.ID)),
	)
	defer span.End()

	var (
		res notification.Result
		wg  sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		res.EmailSent = d.email.Send(ctx, ev)
	}()

	hasWebhook := ev.WebhookURL != nil && *ev.WebhookURL != ""
	if hasWebhook {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payload := d.discord.BuildPriceMatchPayload(ev)
			res.DiscordSent = d.discord.Send(ctx, *ev.WebhookURL, payload)
		}()
	}

	wg.Wait()

	span.SetAttributes(
		attribute.Bool("email.sent", res.EmailSent),
		attribute.Bool("discord.sent", res.DiscordSent),
	)

	if res.EmailSent {
		mDelivered.WithLabelValues("email").Inc()
	} else {
		mFailed.WithLabelValues("email").Inc()
	}
	if hasWebhook {
		if res.DiscordSent {
			mDelivered.WithLabelValues("discord").Inc()
		} else {
			mFailed.WithLabelValues("discord").Inc()
		}
	}

	log := d.log.With(
		zap.Int64("offer_id", ev.Offer.ID),
		zap.Bool("email_sent", res.EmailSent),
		zap.Bool("discord_sent", res.DiscordSent),
	)
	if !res.EmailSent && !res.DiscordSent {
		log.Warn("no notifications delivered")
	} else {
		log.Info("notifications dispatched")
	}
	return res
}
