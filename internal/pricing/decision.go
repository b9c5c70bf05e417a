// Package pricing decides what a newly observed price means for a tracked
// offer. Pure functions only; persistence and notification live elsewhere.
package pricing

// Decision is the outcome of comparing a new observation with the offer's
// last known price and configured target.
type Decision struct {
	// PriceChanged gates history writes: an observation is recorded iff
	// the price actually moved.
	PriceChanged bool
	// TargetReached fires only together with PriceChanged-driven
	// processing; without a target it is always false.
	TargetReached bool
}

func Decide(previous, current float64, target *float64) Decision {
	return Decision{
		PriceChanged:  current != previous,
		TargetReached: target != nil && current <= *target,
	}
}

// DropPercent is the relative price drop in percent. Zero when there is no
// usable previous price; negative when the price went up (callers render
// that as "no discount", it is not an error).
func DropPercent(previous, current float64) float64 {
	if previous <= 0 {
		return 0
	}
	return (previous - current) / previous * 100
}

// Savings is the absolute amount saved against the previous price, zero
// when no previous price exists.
func Savings(previous, current float64) float64 {
	if previous <= 0 {
		return 0
	}
	return previous - current
}
