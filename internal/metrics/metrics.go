// Package metrics provides application-level metrics collection.
// This is a lightweight metrics foundation using atomic counters.
package metrics

import (
	"sync/atomic"
	"time"
)

// Metrics holds application metrics using atomic counters for thread safety.
type Metrics struct {
	// RPC metrics
	rpcCallsTotal   atomic.Int64
	rpcErrorsTotal  atomic.Int64
	rpcLatencyNanos atomic.Int64

	// Chain reconciliation metrics
	reconciliations atomic.Int64
	switchRequests  atomic.Int64
	switchFailures  atomic.Int64
	staleDiscarded  atomic.Int64

	// Operation metrics
	txDispatched   atomic.Int64
	txFailed       atomic.Int64
	signatures     atomic.Int64
	signatureFails atomic.Int64
	queries        atomic.Int64
	queryFailures  atomic.Int64
}

// Global is the global metrics instance.
// Use this for recording metrics throughout the application.
//
//nolint:gochecknoglobals // Intentional global for metrics access
var Global = &Metrics{}

// RecordRPCCall records an RPC call with its duration and success status.
func (m *Metrics) RecordRPCCall(duration time.Duration, err error) {
	m.rpcCallsTotal.Add(1)
	m.rpcLatencyNanos.Add(duration.Nanoseconds())

	if err != nil {
		m.rpcErrorsTotal.Add(1)
	}
}

// RecordReconciliation records one reconciliation attempt and whether it had
// to ask the provider to switch chains.
func (m *Metrics) RecordReconciliation(switched bool, err error) {
	m.reconciliations.Add(1)
	if switched {
		m.switchRequests.Add(1)
	}
	if err != nil {
		m.switchFailures.Add(1)
	}
}

// RecordStaleReconciliation records a reconciliation result discarded because
// a newer selection superseded it.
func (m *Metrics) RecordStaleReconciliation() {
	m.staleDiscarded.Add(1)
}

// RecordDispatch records a transaction dispatch.
func (m *Metrics) RecordDispatch(err error) {
	m.txDispatched.Add(1)
	if err != nil {
		m.txFailed.Add(1)
	}
}

// RecordSignature records a signature request.
func (m *Metrics) RecordSignature(err error) {
	m.signatures.Add(1)
	if err != nil {
		m.signatureFails.Add(1)
	}
}

// RecordQuery records a read-only query.
func (m *Metrics) RecordQuery(err error) {
	m.queries.Add(1)
	if err != nil {
		m.queryFailures.Add(1)
	}
}

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	RPCCallsTotal   int64 `json:"rpc_calls_total"`
	RPCErrorsTotal  int64 `json:"rpc_errors_total"`
	RPCLatencyNanos int64 `json:"rpc_latency_nanos"`
	Reconciliations int64 `json:"reconciliations"`
	SwitchRequests  int64 `json:"switch_requests"`
	SwitchFailures  int64 `json:"switch_failures"`
	StaleDiscarded  int64 `json:"stale_discarded"`
	TxDispatched    int64 `json:"tx_dispatched"`
	TxFailed        int64 `json:"tx_failed"`
	Signatures      int64 `json:"signatures"`
	SignatureFails  int64 `json:"signature_fails"`
	Queries         int64 `json:"queries"`
	QueryFailures   int64 `json:"query_failures"`
}

// Snapshot returns a point-in-time copy of all metrics.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		RPCCallsTotal:   m.rpcCallsTotal.Load(),
		RPCErrorsTotal:  m.rpcErrorsTotal.Load(),
		RPCLatencyNanos: m.rpcLatencyNanos.Load(),
		Reconciliations: m.reconciliations.Load(),
		SwitchRequests:  m.switchRequests.Load(),
		SwitchFailures:  m.switchFailures.Load(),
		StaleDiscarded:  m.staleDiscarded.Load(),
		TxDispatched:    m.txDispatched.Load(),
		TxFailed:        m.txFailed.Load(),
		Signatures:      m.signatures.Load(),
		SignatureFails:  m.signatureFails.Load(),
		Queries:         m.queries.Load(),
		QueryFailures:   m.queryFailures.Load(),
	}
}

// RPCCallsTotal returns the total number of RPC calls made.
func (m *Metrics) RPCCallsTotal() int64 {
	return m.rpcCallsTotal.Load()
}

// RPCErrorsTotal returns the total number of RPC errors.
func (m *Metrics) RPCErrorsTotal() int64 {
	return m.rpcErrorsTotal.Load()
}

// RPCLatencyAvgMs returns the average RPC latency in milliseconds.
// Returns 0 if no calls have been made.
func (m *Metrics) RPCLatencyAvgMs() float64 {
	calls := m.rpcCallsTotal.Load()
	if calls == 0 {
		return 0
	}
	nanos := m.rpcLatencyNanos.Load()
	return float64(nanos) / float64(calls) / 1e6
}

// SwitchRequests returns how many reconciliations asked the provider to switch.
func (m *Metrics) SwitchRequests() int64 {
	return m.switchRequests.Load()
}

// Reset resets all metrics to zero.
// Useful for testing.
func (m *Metrics) Reset() {
	m.rpcCallsTotal.Store(0)
	m.rpcErrorsTotal.Store(0)
	m.rpcLatencyNanos.Store(0)
	m.reconciliations.Store(0)
	m.switchRequests.Store(0)
	m.switchFailures.Store(0)
	m.staleDiscarded.Store(0)
	m.txDispatched.Store(0)
	m.txFailed.Store(0)
	m.signatures.Store(0)
	m.signatureFails.Store(0)
	m.queries.Store(0)
	m.queryFailures.Store(0)
}
