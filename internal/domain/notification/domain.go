package notification

import (
	"context"
	"time"

	"github.com/cenownik/pricewatch/internal/domain/offer"
)

// Event is a single target-price match handed to the dispatcher.
// DropPercent and Savings are derived from (previous, current) price and are
// zero when no previous price exists. DropPercent is negative when the price
// went up; renderers treat that as "no discount".
type Event struct {
	UserEmail   string
	UserName    string
	WebhookURL  *string
	Offer       *offer.Offer
	NewPrice    float64
	PrevPrice   float64
	DropPercent float64
	Savings     float64
}

// Result reports per-channel delivery. Callers must be able to tell which
// channel(s) delivered, so the two booleans are never collapsed.
type Result struct {
	EmailSent   bool `json:"emailSent"`
	DiscordSent bool `json:"discordSent"`
}

type EmailSender interface {
	Send(ctx context.Context, to, subject, html string) error
	Ready() bool
}

type Clock interface {
	Now() time.Time
}
