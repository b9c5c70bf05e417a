package offer

import "time"

// Owner is the user an offer notifies on a target match. Offers without an
// owner are tracked but never notified.
type Owner struct {
	ID                int64   `json:"id"`
	Email             string  `json:"email"`
	Username          string  `json:"username"`
	DiscordWebhookURL *string `json:"discord_webhook_url"`
}

type Offer struct {
	ID          int64      `json:"id"`
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Images      []string   `json:"images"`
	Price       float64    `json:"price"`
	TargetPrice *float64   `json:"target_price"`
	Source      string     `json:"source"`
	Owner       *Owner     `json:"owner"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Ref is the minimal projection a sweep iterates over.
type Ref struct {
	ID  int64
	URL string
}
