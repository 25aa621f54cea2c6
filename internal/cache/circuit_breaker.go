package cache

import (
	"errors"
	"sync"
	"time"
)

type CircuitBreakerState int

const (
	CircuitBreakerClosed CircuitBreakerState = iota
	CircuitBreakerOpen
	CircuitBreakerHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case CircuitBreakerOpen:
		return "open"
	case CircuitBreakerHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitBreaker guards calls to a flaky dependency (redis, the AI
// provider). After MaxFailures consecutive failures it rejects calls for
// Timeout, then lets HalfOpenMaxCalls trial calls through; that many successes
// close it again and any failure reopens it.
type CircuitBreaker struct {
	mu              sync.Mutex
	state           CircuitBreakerState
	failureCount    int
	successCount    int
	halfOpenCalls   int
	lastFailureTime time.Time
	now             func() time.Time

	maxFailures      int
	timeout          time.Duration
	halfOpenMaxCalls int
}

type CircuitBreakerConfig struct {
	MaxFailures      int           `json:"max_failures"`
	Timeout          time.Duration `json:"timeout"`
	HalfOpenMaxCalls int           `json:"half_open_max_calls"`
}

func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		MaxFailures:      5,
		Timeout:          30 * time.Second,
		HalfOpenMaxCalls: 3,
	}
}

func NewCircuitBreaker(config *CircuitBreakerConfig) *CircuitBreaker {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}
	if config.HalfOpenMaxCalls <= 0 {
		config.HalfOpenMaxCalls = 1
	}

	return &CircuitBreaker{
		state:            CircuitBreakerClosed,
		now:              time.Now,
		maxFailures:      config.MaxFailures,
		timeout:          config.Timeout,
		halfOpenMaxCalls: config.HalfOpenMaxCalls,
	}
}

var (
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
	ErrTooManyRequests    = errors.New("too many requests")
)

func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.before(); err != nil {
		return err
	}

	err := fn()
	cb.after(err)
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitBreakerOpen:
		if cb.now().Sub(cb.lastFailureTime) < cb.timeout {
			return ErrCircuitBreakerOpen
		}
		cb.state = CircuitBreakerHalfOpen
		cb.successCount = 0
		cb.halfOpenCalls = 0
		fallthrough
	case CircuitBreakerHalfOpen:
		if cb.halfOpenCalls >= cb.halfOpenMaxCalls {
			return ErrTooManyRequests
		}
		cb.halfOpenCalls++
	}
	return nil
}

func (cb *CircuitBreaker) after(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failureCount++
		cb.lastFailureTime = cb.now()

		switch cb.state {
		case CircuitBreakerClosed:
			if cb.failureCount >= cb.maxFailures {
				cb.state = CircuitBreakerOpen
			}
		case CircuitBreakerHalfOpen:
			cb.state = CircuitBreakerOpen
			cb.successCount = 0
		}
		return
	}

	switch cb.state {
	case CircuitBreakerClosed:
		cb.failureCount = 0
	case CircuitBreakerHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.halfOpenMaxCalls {
			cb.state = CircuitBreakerClosed
			cb.failureCount = 0
			cb.successCount = 0
			cb.halfOpenCalls = 0
		}
	}
}

func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) GetStats() map[string]interface{} {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return map[string]interface{}{
		"state":           cb.state.String(),
		"failure_count":   cb.failureCount,
		"success_count":   cb.successCount,
		"last_failure":    cb.lastFailureTime.Unix(),
		"max_failures":    cb.maxFailures,
		"timeout_seconds": cb.timeout.Seconds(),
	}
}
