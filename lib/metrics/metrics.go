// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "winpipe"

// Message directions, used as the direction label.
const (
	Inbound  = "in"
	Outbound = "out"
)

// Delta byte stages, used as the stage label of delta_bytes_total.
const (
	StageRaw     = "raw"
	StageEncoded = "encoded"
)

// Metrics holds the server's collectors.
type Metrics struct {
	connectionsActive prometheus.Gauge
	connectionsTotal  prometheus.Counter
	messages          *prometheus.CounterVec
	protocolErrors    *prometheus.CounterVec
	deltaRecords      prometheus.Counter
	deltaRegions      prometheus.Counter
	deltaBytes        *prometheus.CounterVec
	bufferMismatches  prometheus.Counter
	sendQueue         prometheus.Histogram
}

// New creates the collectors and registers them with registerer. A
// nil registerer leaves them unregistered, which suits tests that only
// read values back.
func New(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		connectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "connections_active",
			Help:      "Number of client connections currently being served",
		}),

		connectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "connections_total",
			Help:      "Total number of client connections accepted",
		}),

		messages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "messages_total",
			Help:      "Total number of Wayland messages by direction",
		}, []string{"direction"}),

		protocolErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "protocol_errors_total",
			Help:      "Total number of connections terminated by a protocol error, by error kind",
		}, []string{"kind"}),

		deltaRecords: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "delta_records_total",
			Help:      "Total number of delta records sent to renderers",
		}),

		deltaRegions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "delta_regions_total",
			Help:      "Total number of changed regions across all delta records",
		}),

		deltaBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "delta_bytes_total",
			Help:      "Total pixel bytes in delta records, before (raw) and after (encoded) compression",
		}, []string{"stage"}),

		bufferMismatches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "buffer_mismatches_total",
			Help:      "Total number of commits rejected because the buffer no longer matched its mirror",
		}),

		sendQueue: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "send_queue_bytes",
			Help:      "Bytes queued toward the renderer, sampled after each batch of frames",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8), // 1 KiB to 16 MiB
		}),
	}
}

// ConnectionOpened records an accepted connection.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connectionsTotal.Inc()
	m.connectionsActive.Inc()
}

// ConnectionClosed records the end of a connection previously passed
// to ConnectionOpened.
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connectionsActive.Dec()
}

// Messages adds count messages in direction (Inbound or Outbound).
func (m *Metrics) Messages(direction string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.messages.WithLabelValues(direction).Add(float64(count))
}

// ProtocolError records a connection terminated with an error of the
// given kind.
func (m *Metrics) ProtocolError(kind string) {
	if m == nil {
		return
	}
	m.protocolErrors.WithLabelValues(kind).Inc()
}

// DeltaRecord records one delta record with its region count and its
// pixel bytes before and after compression.
func (m *Metrics) DeltaRecord(regions, rawBytes, encodedBytes int) {
	if m == nil {
		return
	}
	m.deltaRecords.Inc()
	m.deltaRegions.Add(float64(regions))
	m.deltaBytes.WithLabelValues(StageRaw).Add(float64(rawBytes))
	m.deltaBytes.WithLabelValues(StageEncoded).Add(float64(encodedBytes))
}

// BufferMismatch records a commit rejected by the mirror engine.
func (m *Metrics) BufferMismatch() {
	if m == nil {
		return
	}
	m.bufferMismatches.Inc()
}

// SendQueue samples the number of bytes waiting for the socket writer.
func (m *Metrics) SendQueue(bytes int) {
	if m == nil {
		return
	}
	m.sendQueue.Observe(float64(bytes))
}
