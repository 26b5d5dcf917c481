package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenk/backoff"
	circuit "github.com/rubyist/circuitbreaker"
)

// ErrCircuitOpen is returned while a host's breaker is tripped.
var ErrCircuitOpen = errors.New("circuit breaker open")

// DefaultTripThreshold is the consecutive failure count that opens a breaker.
const DefaultTripThreshold = 5

// CircuitBreakerFetcher wraps a Getter with per-host circuit breakers.
type CircuitBreakerFetcher struct {
	getter    Getter
	threshold int64
	breakers  map[string]*circuit.Breaker
	mu        sync.RWMutex
}

// NewCircuitBreakerFetcher trips a host's breaker after threshold
// consecutive failures. A threshold <= 0 uses DefaultTripThreshold.
func NewCircuitBreakerFetcher(g Getter, threshold int) *CircuitBreakerFetcher {
	if threshold <= 0 {
		threshold = DefaultTripThreshold
	}
	return &CircuitBreakerFetcher{
		getter:    g,
		threshold: int64(threshold),
		breakers:  make(map[string]*circuit.Breaker),
	}
}

func (cbf *CircuitBreakerFetcher) breaker(host string) *circuit.Breaker {
	cbf.mu.RLock()
	b, ok := cbf.breakers[host]
	cbf.mu.RUnlock()
	if ok {
		return b
	}

	cbf.mu.Lock()
	defer cbf.mu.Unlock()
	if b, ok := cbf.breakers[host]; ok {
		return b
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	b = circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(cbf.threshold),
	})
	cbf.breakers[host] = b
	return b
}

// Get fetches url through the breaker for its host. Not-found responses do
// not count as failures.
func (cbf *CircuitBreakerFetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	host := hostOf(rawURL)
	b := cbf.breaker(host)

	if !b.Ready() {
		return nil, fmt.Errorf("%s: %w", host, ErrCircuitOpen)
	}

	var (
		body     []byte
		notFound error
	)
	err := b.Call(func() error {
		var err error
		body, err = cbf.getter.Get(ctx, rawURL)
		if errors.Is(err, ErrNotFound) {
			notFound = err
			return nil
		}
		return err
	}, 0)
	if errors.Is(err, circuit.ErrBreakerOpen) {
		return nil, fmt.Errorf("%s: %w", host, ErrCircuitOpen)
	}
	if err != nil {
		return nil, err
	}
	if notFound != nil {
		return nil, notFound
	}
	return body, nil
}

// BreakerStates reports "open" or "closed" per host seen so far.
func (cbf *CircuitBreakerFetcher) BreakerStates() map[string]string {
	cbf.mu.RLock()
	defer cbf.mu.RUnlock()

	states := make(map[string]string, len(cbf.breakers))
	for host, b := range cbf.breakers {
		if b.Tripped() {
			states[host] = "open"
		} else {
			states[host] = "closed"
		}
	}
	return states
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}
	return parsed.Host
}
