package history

import "time"

// Observation is an append-only price-history record. One is written every
// time an offer's observed price differs from its last known price.
type Observation struct {
	ID                int64     `json:"id"`
	OfferID           int64     `json:"offer_id"`
	Price             float64   `json:"price"`
	PreviousPrice     float64   `json:"previous_price"`
	TargetPriceAtTime *float64  `json:"target_price_at_time"`
	TargetReached     bool      `json:"target_price_reached"`
	ObservedAt        time.Time `json:"created_at"`
}

type Filter struct {
	OfferID           *int64
	TargetReachedOnly bool
	Limit             int
}
