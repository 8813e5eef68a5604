// Package metrics holds the Prometheus counters for dispatch.
//
// A nil *Metrics is valid and records nothing, so components can take an
// optional metrics dependency without nil checks at every call site.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Suppression reasons for SuppressedTotal.
const (
	ReasonGuard    = "guard"
	ReasonNoEntity = "no_entity"
)

// Metrics holds the dispatch counters.
type Metrics struct {
	rawEvents          *prometheus.CounterVec
	resolutionFailures *prometheus.CounterVec
	fires              *prometheus.CounterVec
	suppressed         *prometheus.CounterVec
}

// New creates and registers the dispatch metrics.
// Returns nil if reg is nil (nil input = nil feature).
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, nil
	}

	m := &Metrics{
		rawEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "easyevents",
			Subsystem: "dispatch",
			Name:      "raw_events_total",
			Help:      "Raw events handled that matched at least one conversion rule",
		}, []string{"event"}),

		resolutionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "easyevents",
			Subsystem: "dispatch",
			Name:      "resolution_failures_total",
			Help:      "Identifier remaps that produced a nil entity",
		}, []string{"event", "field"}),

		fires: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "easyevents",
			Subsystem: "dispatch",
			Name:      "fires_total",
			Help:      "Derived event notifications",
		}, []string{"event"}),

		suppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "easyevents",
			Subsystem: "dispatch",
			Name:      "suppressed_total",
			Help:      "Fire rules skipped by a guard or a missing entity",
		}, []string{"event", "reason"}),
	}

	for _, c := range []prometheus.Collector{m.rawEvents, m.resolutionFailures, m.fires, m.suppressed} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// RawEvent counts a raw event that had conversion rules.
func (m *Metrics) RawEvent(name string) {
	if m == nil {
		return
	}
	m.rawEvents.WithLabelValues(name).Inc()
}

// ResolutionFailure counts a remap whose identifier did not resolve.
func (m *Metrics) ResolutionFailure(rawEvent, field string) {
	if m == nil {
		return
	}
	m.resolutionFailures.WithLabelValues(rawEvent, field).Inc()
}

// Fire counts a derived event notification.
func (m *Metrics) Fire(event string) {
	if m == nil {
		return
	}
	m.fires.WithLabelValues(event).Inc()
}

// Suppressed counts a skipped fire rule.
func (m *Metrics) Suppressed(event, reason string) {
	if m == nil {
		return
	}
	m.suppressed.WithLabelValues(event, reason).Inc()
}
