package scheduler

import "time"

// Polling tiers, by priority of applicability. Visibility always overrides
// focus state. OfflineInterval doubles as the backoff ceiling, so sustained
// failure converges on the offline cadence.
const (
	ActiveInterval     = 5 * time.Second
	BackgroundInterval = 10 * time.Second
	HiddenInterval     = 30 * time.Second
	OfflineInterval    = 60 * time.Second

	backoffBase      = 5 * time.Second
	backoffThreshold = 3
)

// Delay is the pure scheduling function: it maps the current visibility,
// focused conversation and consecutive-failure count to the delay before the
// next sync cycle.
//
// Past backoffThreshold consecutive failures the delay doubles per failure
// from backoffBase (failure 4 -> 5s, 5 -> 10s, 6 -> 20s, 7 -> 40s), capped
// at OfflineInterval.
func Delay(visible bool, focusedConversation string, consecutiveFailures int) time.Duration {
	if consecutiveFailures > backoffThreshold {
		exp := consecutiveFailures - backoffThreshold - 1
		// 5s << 4 already exceeds the cap; larger shifts would overflow.
		if exp >= 4 {
			return OfflineInterval
		}
		return backoffBase << exp
	}
	if !visible {
		return HiddenInterval
	}
	if focusedConversation != "" {
		return ActiveInterval
	}
	return BackgroundInterval
}
