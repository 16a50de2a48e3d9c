// Package resilience guards stages that talk to external systems.
//
// A Breaker fails writes fast once a backend keeps failing, so a dead
// broker does not hold every frame for a full write timeout:
//
//	br := resilience.NewBreaker(resilience.BreakerConfig{Name: "kafka-out", MaxFailures: 5})
//	err := br.Do(func() error {
//	    return writer.WriteFrames(ctx, f)
//	})
package resilience
