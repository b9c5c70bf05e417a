package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cenownik/pricewatch/internal/config"
	"github.com/cenownik/pricewatch/internal/domain/notification"
	"github.com/cenownik/pricewatch/internal/obs/retry"
)

// Only canonical Discord webhook URLs are ever contacted; anything else
// fails before the first network call.
var webhookURLPattern = regexp.MustCompile(`^https://(?:discord|discordapp)\.com/api/webhooks/\d+/[\w-]+$`)

func IsValidWebhookURL(url string) bool {
	return webhookURLPattern.MatchString(url)
}

type WebhookEmbedAuthor struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

type WebhookEmbedImage struct {
	URL string `json:"url"`
}

type WebhookEmbedFooter struct {
	Text    string `json:"text"`
	IconURL string `json:"icon_url,omitempty"`
}

type WebhookEmbed struct {
	Author      *WebhookEmbedAuthor `json:"author,omitempty"`
	Title       string              `json:"title,omitempty"`
	URL         string              `json:"url,omitempty"`
	Color       int                 `json:"color,omitempty"`
	Description string              `json:"description,omitempty"`
	Image       *WebhookEmbedImage  `json:"image,omitempty"`
	Footer      *WebhookEmbedFooter `json:"footer,omitempty"`
}

type WebhookPayload struct {
	Content   string         `json:"content,omitempty"`
	Username  string         `json:"username,omitempty"`
	AvatarURL string         `json:"avatar_url,omitempty"`
	Embeds    []WebhookEmbed `json:"embeds,omitempty"`
}

// DiscordChannel POSTs webhook payloads with a retry budget. HTTP 429 is a
// rate-limit signal, not a failure class: the channel waits out Retry-After
// (seconds, default 5s when absent or unparseable) instead of the
// exponential backoff used for everything else.
type DiscordChannel struct {
	hc            *http.Client
	username      string
	avatarURL     string
	attempts      int
	rateLimitWait time.Duration
	backoffBase   time.Duration
	sleep         retry.SleepFunc
	log           *zap.Logger
}

func NewDiscordChannel(hc *http.Client, cfg config.Discord, attempts int, backoffBase time.Duration, log *zap.Logger) *DiscordChannel {
	if attempts <= 0 {
		attempts = 3
	}
	if backoffBase <= 0 {
		backoffBase = time.Second
	}
	wait := cfg.RateLimitWait
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &DiscordChannel{
		hc:            hc,
		username:      cfg.Username,
		avatarURL:     cfg.AvatarURL,
		attempts:      attempts,
		rateLimitWait: wait,
		backoffBase:   backoffBase,
		sleep:         retry.StdSleep,
		log:           log.With(zap.String("component", "notify.discord")),
	}
}

// WithSleep replaces the inter-attempt wait, for tests.
func (c *DiscordChannel) WithSleep(sleep retry.SleepFunc) *DiscordChannel {
	cp := *c
	cp.sleep = sleep
	return &cp
}

func (c *DiscordChannel) Send(ctx context.Context, webhookURL string, p WebhookPayload) bool {
	if !IsValidWebhookURL(webhookURL) {
		c.log.Error("invalid Discord webhook URL format")
		return false
	}

	if p.Username == "" {
		p.Username = c.username
	}
	if p.AvatarURL == "" {
		p.AvatarURL = c.avatarURL
	}
	body, err := json.Marshal(p)
	if err != nil {
		c.log.Error("marshal webhook payload", zap.Error(err))
		return false
	}

	for attempt := 1; attempt <= c.attempts; attempt++ {
		ok, rateWait, err := c.post(ctx, webhookURL, body)
		if ok {
			c.log.Info("webhook message sent", zap.Int("attempt", attempt))
			return true
		}

		if rateWait > 0 {
			c.log.Warn("discord rate limited", zap.Duration("wait", rateWait))
			// waiting out the window only pays off if an attempt remains
			if attempt == c.attempts {
				break
			}
			if c.sleep(ctx, rateWait) != nil {
				return false
			}
			continue
		}

		c.log.Error("webhook send failed",
			zap.Int("attempt", attempt),
			zap.Int("attempts", c.attempts),
			zap.Error(err),
		)
		if attempt < c.attempts {
			delay := time.Duration(1<<uint(attempt-1)) * c.backoffBase
			if c.sleep(ctx, delay) != nil {
				return false
			}
		}
	}

	c.log.Error("webhook failed after all retries")
	return false
}

func (c *DiscordChannel) post(ctx context.Context, url string, body []byte) (ok bool, rateWait time.Duration, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return false, 0, err
	}
	defer resp.Body.Close()

	if (resp.StatusCode >= 200 && resp.StatusCode < 300) || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return true, 0, nil
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		wait := c.rateLimitWait
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, perr := strconv.Atoi(strings.TrimSpace(ra)); perr == nil && secs >= 0 {
				wait = time.Duration(secs) * time.Second
			}
		}
		return false, wait, nil
	}

	errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return false, 0, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
}

// Validate checks the URL format and probes the webhook with a GET, the way
// Discord exposes webhook metadata. Used by the control surface only.
func (c *DiscordChannel) Validate(ctx context.Context, webhookURL string) (bool, string) {
	if !IsValidWebhookURL(webhookURL) {
		return false, "invalid Discord webhook URL format"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, webhookURL, nil)
	if err != nil {
		return false, err.Error()
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return false, err.Error()
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return true, "webhook is valid"
	}
	return false, fmt.Sprintf("webhook probe returned HTTP %d", resp.StatusCode)
}

// BuildPriceMatchPayload renders a target-price match as a single embed:
// strikethrough previous price, bold new price, drop percentage, target and
// savings lines, first offer image, and a source/id/recipient footer.
func (c *DiscordChannel) BuildPriceMatchPayload(ev *notification.Event) WebhookPayload {
	off := ev.Offer

	priceLine := "**" + formatPLN(ev.NewPrice) + " zł**"
	if ev.PrevPrice > 0 {
		priceLine = "~~" + formatPLN(ev.PrevPrice) + " zł~~ → " + priceLine
	}
	if ev.DropPercent > 0 {
		priceLine += fmt.Sprintf(" *(−%.0f%%)*", ev.DropPercent)
	}

	descLines := []string{priceLine, ""}
	if off.TargetPrice != nil {
		descLines = append(descLines, "Twój próg: "+formatPLN(*off.TargetPrice)+" zł")
	}
	if ev.Savings > 0 {
		descLines = append(descLines, "Oszczędzasz: "+formatPLN(ev.Savings)+" zł")
	}

	embed := WebhookEmbed{
		Author:      &WebhookEmbedAuthor{Name: "CENOWNIK"},
		Title:       off.Title,
		URL:         off.URL,
		Color:       sourceColor(off.Source),
		Description: strings.Join(descLines, "\n"),
		Footer: &WebhookEmbedFooter{
			Text: fmt.Sprintf("%s • #%d • %s",
				strings.ToUpper(sourceDisplayName(off.Source)),
				off.ID,
				strings.ToUpper(ev.UserName),
			),
		},
	}
	if len(off.Images) > 0 {
		embed.Image = &WebhookEmbedImage{URL: off.Images[0]}
	}

	return WebhookPayload{Embeds: []WebhookEmbed{embed}}
}
