// Package runcollector periodically emits a telemetry.ServerSnapshot metric
// for the serve daemon, the same shape the teacher's chainscollector used for
// periodically emitting chain-stack block numbers, adapted to a single
// in-process counter set instead of a map of chain stacks.
package runcollector

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	logger "github.com/rs/zerolog/log"
	"go.uber.org/atomic"

	"github.com/contract-ace/smartace/pkg/telemetry"
)

// Counters holds the serve daemon's cumulative, concurrency-safe counters.
// One *Counters is shared between the HTTP handlers (which increment it per
// request) and the Collector (which reads it on each tick).
type Counters struct {
	requestsServed  atomic.Int64
	violationsTotal atomic.Int64
	startedAt       time.Time
}

// NewCounters returns a Counters whose uptime is measured from now.
func NewCounters() *Counters {
	return &Counters{startedAt: time.Now()}
}

// RecordRequest records one handled /translate request and the violation
// count it produced (zero for a clean translation).
func (c *Counters) RecordRequest(violationCount int) {
	c.requestsServed.Inc()
	if violationCount > 0 {
		c.violationsTotal.Add(int64(violationCount))
	}
}

// snapshot captures Counters at a point in time and implements telemetry.ServerSnapshot.
type snapshot struct {
	requestsServed  int64
	violationsTotal int64
	uptimeMillis    int64
}

func (s snapshot) GetRequestsServed() int64  { return s.requestsServed }
func (s snapshot) GetViolationsTotal() int64 { return s.violationsTotal }
func (s snapshot) GetUptimeMillis() int64    { return s.uptimeMillis }

func (c *Counters) snapshot() telemetry.ServerSnapshot {
	return snapshot{
		requestsServed:  c.requestsServed.Load(),
		violationsTotal: c.violationsTotal.Load(),
		uptimeMillis:    time.Since(c.startedAt).Milliseconds(),
	}
}

// Collector captures a ServerSnapshot metric with a defined frequency.
type Collector struct {
	log              zerolog.Logger
	counters         *Counters
	collectFrequency time.Duration
}

// New returns a new *Collector.
func New(counters *Counters, collectFrequency time.Duration) (*Collector, error) {
	if collectFrequency <= time.Second {
		return nil, fmt.Errorf("collect frequency should be greater than one second")
	}
	return &Collector{
		log:              logger.With().Str("component", "runcollector").Logger(),
		counters:         counters,
		collectFrequency: collectFrequency,
	}, nil
}

// Start collects ServerSnapshot telemetry metrics until the context is canceled.
func (c *Collector) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("gracefully closed")
			return
		case <-time.After(c.collectFrequency):
			if err := telemetry.Collect(ctx, c.counters.snapshot()); err != nil {
				c.log.Error().Err(err).Msg("collecting server snapshot metric")
			}
		}
	}
}
