// Package counters holds the in-memory webhook outcome counters. They are a
// triage aid, not a source of truth: they reset on restart, and the payment
// event ledger remains the durable record of what was processed.
package counters

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	Received  = "received"
	Duplicate = "duplicate"
	Error     = "error"
	Ignored   = "ignored"
)

// Sink is injected wherever outcomes are counted so tests can swap it and
// real telemetry can be composed behind it.
type Sink interface {
	Inc(name string)
	Snapshot() map[string]int64
}

type Memory struct {
	mu     sync.Mutex
	counts map[string]int64
	mirror *prometheus.CounterVec
}

// NewMemory returns an in-memory sink. When mirror is non-nil every
// increment is also reflected into the prometheus counter vec.
func NewMemory(mirror *prometheus.CounterVec) *Memory {
	return &Memory{
		counts: make(map[string]int64),
		mirror: mirror,
	}
}

func (m *Memory) Inc(name string) {
	m.mu.Lock()
	m.counts[name]++
	m.mu.Unlock()

	if m.mirror != nil {
		m.mirror.WithLabelValues(name).Inc()
	}
}

func (m *Memory) Snapshot() map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]int64, len(m.counts))
	for k, v := range m.counts {
		out[k] = v
	}
	return out
}
