package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by Breaker.Do while the breaker rejects calls.
var ErrOpen = errors.New("circuit breaker is open")

// State is the breaker state.
type State int

const (
	// Closed lets every call through.
	Closed State = iota
	// Open rejects calls until the cooldown has passed.
	Open
	// HalfOpen lets one probe call through.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a Breaker.
type BreakerConfig struct {
	// Name is passed to OnStateChange.
	Name string
	// MaxFailures is the number of consecutive failures that opens the
	// breaker. Defaults to 5.
	MaxFailures int
	// Cooldown is how long the breaker stays open before probing.
	// Defaults to 30s.
	Cooldown time.Duration
	// OnStateChange is called with the breaker lock released.
	OnStateChange func(name string, from, to State)
}

// Breaker counts consecutive failures of the calls it guards.
type Breaker struct {
	cfg BreakerConfig
	now func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// Do runs fn unless the breaker is open, and records its outcome. While a
// half-open probe is in flight, other calls get ErrOpen.
func (b *Breaker) Do(fn func() error) error {
	if !b.acquire() {
		return ErrOpen
	}
	err := fn()
	b.record(err)
	return err
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance()
	return b.state
}

// Failures returns the consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset closes the breaker.
func (b *Breaker) Reset() {
	b.mu.Lock()
	from := b.state
	b.state, b.failures, b.probing = Closed, 0, false
	b.mu.Unlock()
	b.notify(from, Closed)
}

func (b *Breaker) acquire() bool {
	b.mu.Lock()
	from := b.state
	b.advance()
	to := b.state
	ok := false
	switch b.state {
	case Closed:
		ok = true
	case HalfOpen:
		if !b.probing {
			b.probing = true
			ok = true
		}
	}
	b.mu.Unlock()
	b.notify(from, to)
	return ok
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	from := b.state
	if err == nil {
		b.failures = 0
		b.state = Closed
	} else {
		b.failures++
		if b.state == HalfOpen || b.failures >= b.cfg.MaxFailures {
			b.state = Open
			b.openedAt = b.now()
		}
	}
	b.probing = false
	to := b.state
	b.mu.Unlock()
	b.notify(from, to)
}

// advance moves an open breaker to half-open once the cooldown passed.
// mu must be held.
func (b *Breaker) advance() {
	if b.state == Open && b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		b.state = HalfOpen
		b.probing = false
	}
}

func (b *Breaker) notify(from, to State) {
	if from != to && b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.cfg.Name, from, to)
	}
}
