package provider

import (
	"time"

	"github.com/rs/zerolog/log"
	gobreaker "github.com/sony/gobreaker/v2"

	"review_sync/internal/adapters/observability"
)

// newBreaker trips on transport failures only; non-2xx responses are answers, not outages.
func newBreaker(name string) *gobreaker.CircuitBreaker[*rawResponse] {
	observability.SetBreakerState(name, 0)
	return gobreaker.NewCircuitBreaker[*rawResponse](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			observability.SetBreakerState(name, stateValue(to))
		},
	})
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return 0
}
