package resilience

import (
	stderrors "errors"
	"sync"
	"time"

	"github.com/kbukum/viewkit/errors"
)

// State is a circuit breaker state.
type State int

const (
	// StateClosed lets every call through.
	StateClosed State = iota
	// StateOpen rejects calls until the cool-down has passed.
	StateOpen
	// StateHalfOpen lets a limited number of probes through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is the cause of calls rejected by an open breaker.
var ErrCircuitOpen = stderrors.New("circuit breaker is open")

// BreakerConfig configures a CircuitBreaker.
type BreakerConfig struct {
	// Name is the guarded service, used in rejections.
	Name string `mapstructure:"-"`
	// MaxFailures is the run of consecutive failures that opens the circuit.
	MaxFailures int `mapstructure:"max_failures" validate:"gte=0"`
	// Cooldown is how long the circuit stays open before probing.
	Cooldown time.Duration `mapstructure:"cooldown"`
	// HalfOpenProbes is the number of calls allowed while half-open; that
	// many successes close the circuit again.
	HalfOpenProbes int `mapstructure:"half_open_probes" validate:"gte=0"`
	// OnStateChange is called with the breaker lock released.
	OnStateChange func(name string, from, to State) `mapstructure:"-"`
}

// ApplyDefaults fills zero-valued fields.
func (c *BreakerConfig) ApplyDefaults() {
	if c.MaxFailures <= 0 {
		c.MaxFailures = 5
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	if c.HalfOpenProbes <= 0 {
		c.HalfOpenProbes = 1
	}
}

// CircuitBreaker fails fast while a service is unhealthy.
type CircuitBreaker struct {
	cfg BreakerConfig
	now func() time.Time

	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	probes      int
	lastFailure time.Time
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	cfg.ApplyDefaults()
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// Execute runs fn unless the circuit is open, in which case it returns a
// SERVICE_UNAVAILABLE error caused by ErrCircuitOpen. Any error from fn
// counts as a failure.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allow() {
		return errors.ServiceUnavailable(cb.cfg.Name).WithCause(ErrCircuitOpen)
	}
	err := fn()
	cb.record(err)
	return err
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	s, change := cb.refreshLocked()
	cb.mu.Unlock()
	cb.notify(change)
	return s
}

// Failures returns the current run of failures.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset closes the circuit.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	change := cb.toStateLocked(StateClosed)
	cb.failures = 0
	cb.mu.Unlock()
	cb.notify(change)
}

type transition struct {
	from, to State
	changed  bool
}

func (cb *CircuitBreaker) notify(t transition) {
	if t.changed && cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.cfg.Name, t.from, t.to)
	}
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	state, change := cb.refreshLocked()
	ok := true
	switch state {
	case StateOpen:
		ok = false
	case StateHalfOpen:
		ok = cb.probes < cb.cfg.HalfOpenProbes
		if ok {
			cb.probes++
		}
	}
	cb.mu.Unlock()
	cb.notify(change)
	return ok
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	var change transition
	if err != nil {
		cb.failures++
		cb.lastFailure = cb.now()
		if cb.state == StateHalfOpen || (cb.state == StateClosed && cb.failures >= cb.cfg.MaxFailures) {
			change = cb.toStateLocked(StateOpen)
		}
	} else {
		switch cb.state {
		case StateClosed:
			cb.failures = 0
		case StateHalfOpen:
			cb.successes++
			if cb.successes >= cb.cfg.HalfOpenProbes {
				change = cb.toStateLocked(StateClosed)
			}
		}
	}
	cb.mu.Unlock()
	cb.notify(change)
}

// refreshLocked moves an open circuit to half-open once the cool-down has
// passed.
func (cb *CircuitBreaker) refreshLocked() (State, transition) {
	var change transition
	if cb.state == StateOpen && cb.now().Sub(cb.lastFailure) >= cb.cfg.Cooldown {
		change = cb.toStateLocked(StateHalfOpen)
	}
	return cb.state, change
}

func (cb *CircuitBreaker) toStateLocked(to State) transition {
	if cb.state == to {
		return transition{}
	}
	from := cb.state
	cb.state = to
	cb.probes, cb.successes = 0, 0
	if to == StateClosed {
		cb.failures = 0
	}
	return transition{from: from, to: to, changed: true}
}
