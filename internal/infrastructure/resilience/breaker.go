package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures the circuit breaker behavior
type Settings struct {
	// MaxFailures is the number of consecutive failures that opens the
	// breaker.
	MaxFailures uint32
	// Cooldown is how long the breaker stays open before a probe call is
	// let through.
	Cooldown time.Duration
	// IsFailure classifies call errors. The default ignores nil and
	// context cancellation.
	IsFailure     func(err error) bool
	OnStateChange func(from, to State)
	Now           func() time.Time
}

// Breaker stops calling an operation that keeps failing.
type Breaker struct {
	settings Settings

	mu       sync.Mutex
	state    State
	failures uint32
	until    time.Time
	probing  bool
}

// New creates a new circuit breaker with the given settings
func New(settings Settings) *Breaker {
	if settings.MaxFailures == 0 {
		settings.MaxFailures = 3
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = 30 * time.Second
	}
	if settings.IsFailure == nil {
		settings.IsFailure = defaultIsFailure
	}
	if settings.Now == nil {
		settings.Now = time.Now
	}
	return &Breaker{settings: settings}
}

func defaultIsFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// State returns the current state of the circuit breaker
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh()
	return b.state
}

// Failures returns the current run of consecutive failures.
func (b *Breaker) Failures() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Do runs fn unless the breaker is open. In the half-open state a single
// probe runs at a time and concurrent callers are rejected.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := b.before(); err != nil {
		return err
	}
	err := fn(ctx)
	b.after(err)
	return err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refresh()
	switch b.state {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if b.probing {
			return ErrCircuitOpen
		}
		b.probing = true
	}
	return nil
}

func (b *Breaker) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wasProbe := b.state == StateHalfOpen
	b.probing = false

	switch {
	case err == nil:
		b.failures = 0
		b.setState(StateClosed)
	case !b.settings.IsFailure(err):
		// Neither success nor failure; a half-open breaker waits for the
		// next probe.
	case wasProbe:
		b.failures++
		b.trip()
	default:
		b.failures++
		if b.failures >= b.settings.MaxFailures {
			b.trip()
		}
	}
}

// refresh moves an open breaker to half-open once the cooldown passed.
func (b *Breaker) refresh() {
	if b.state == StateOpen && !b.settings.Now().Before(b.until) {
		b.setState(StateHalfOpen)
	}
}

func (b *Breaker) trip() {
	b.until = b.settings.Now().Add(b.settings.Cooldown)
	b.setState(StateOpen)
}

func (b *Breaker) setState(state State) {
	if b.state == state {
		return
	}
	prev := b.state
	b.state = state
	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(prev, state)
	}
}
