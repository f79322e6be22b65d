// Package metrics provides a process-wide, gated statsd handle adapted from
// the teacher's HealthLogger (core/system_health_logging.go), swapped from
// prometheus gauges to statsd counters/gauges since this system is
// configured by a *_METRICS_HOST/PORT pair rather than a scrape endpoint.
package metrics

import (
	"fmt"
	"sync"

	"github.com/DataDog/datadog-go/v5/statsd"
)

// Sink wraps a possibly-nil *statsd.Client so every call site can omit a
// nil check; a Sink with no client simply drops every call.
type Sink struct {
	client *statsd.Client
	prefix string
}

var (
	mu      sync.RWMutex
	current = &Sink{} // disabled by default until Init is called
)

// Init configures the process-wide metrics sink. addr is "host:port"; an
// empty addr leaves metrics disabled. Safe to call once at startup from
// either binary's main.
func Init(addr, prefix string) error {
	mu.Lock()
	defer mu.Unlock()
	if addr == "" {
		current = &Sink{}
		return nil
	}
	c, err := statsd.New(addr, statsd.WithNamespace(prefix+"."))
	if err != nil {
		return fmt.Errorf("metrics: dial statsd at %s: %w", addr, err)
	}
	current = &Sink{client: c, prefix: prefix}
	return nil
}

func get() *Sink {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

func (s *Sink) enabled() bool { return s != nil && s.client != nil }

// Incr increments a counter by 1 with the given tags.
func Incr(name string, tags ...string) {
	s := get()
	if !s.enabled() {
		return
	}
	_ = s.client.Incr(name, tags, 1)
}

// Count increments a counter by an arbitrary delta.
func Count(name string, delta int64, tags ...string) {
	s := get()
	if !s.enabled() {
		return
	}
	_ = s.client.Count(name, delta, tags, 1)
}

// Gauge reports an instantaneous value.
func Gauge(name string, value float64, tags ...string) {
	s := get()
	if !s.enabled() {
		return
	}
	_ = s.client.Gauge(name, value, tags, 1)
}

// Timing reports a duration in milliseconds.
func Timing(name string, ms float64, tags ...string) {
	s := get()
	if !s.enabled() {
		return
	}
	_ = s.client.TimeInMilliseconds(name, ms, tags, 1)
}

// Close flushes and releases the underlying client, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if current.client != nil {
		err := current.client.Close()
		current = &Sink{}
		return err
	}
	return nil
}
