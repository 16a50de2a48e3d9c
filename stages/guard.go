package stages

import (
	"fmt"
	"time"

	"github.com/kbukum/streamkit/eventbus"
	"github.com/kbukum/streamkit/logger"
	"github.com/kbukum/streamkit/module"
	"github.com/kbukum/streamkit/resilience"
)

// Breaker parameters shared by the broker sinks. breaker_failures of 0
// disables the breaker.
const (
	ParamBreakerFailures = "breaker_failures"
	ParamBreakerCooldown = "breaker_cooldown"
)

const (
	defaultBreakerFailures = 5
	defaultBreakerCooldown = 30 * time.Second
)

func checkBreakerParams(params module.ParamSet) error {
	n, err := params.Int(ParamBreakerFailures, defaultBreakerFailures)
	if err != nil {
		return err
	}
	if n < 0 {
		return fmt.Errorf("%s must not be negative", ParamBreakerFailures)
	}
	_, err = params.Duration(ParamBreakerCooldown, defaultBreakerCooldown)
	return err
}

// newSinkBreaker builds the breaker guarding a sink's writes. State changes
// are logged and posted as Warning events.
func newSinkBreaker(b *module.Base, params module.ParamSet) (*resilience.Breaker, error) {
	if err := checkBreakerParams(params); err != nil {
		return nil, err
	}
	n, _ := params.Int(ParamBreakerFailures, defaultBreakerFailures)
	if n == 0 {
		return nil, nil
	}
	cooldown, _ := params.Duration(ParamBreakerCooldown, defaultBreakerCooldown)
	return resilience.NewBreaker(resilience.BreakerConfig{
		Name:        b.Name(),
		MaxFailures: n,
		Cooldown:    cooldown,
		OnStateChange: func(name string, from, to resilience.State) {
			b.Logger().Warn("write breaker changed state", logger.Fields(
				"from", from.String(),
				"to", to.String(),
			))
			b.PostEvent(eventbus.Warning, fmt.Sprintf("write breaker %s -> %s", from, to))
		},
	}), nil
}

// guarded runs fn through br, or directly when br is nil.
func guarded(br *resilience.Breaker, fn func() error) error {
	if br == nil {
		return fn()
	}
	return br.Do(fn)
}
