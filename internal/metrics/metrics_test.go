package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	compasserr "github.com/mrz1836/compass/pkg/errors"
)

func TestMetrics_RecordRPCCall(t *testing.T) {
	t.Parallel()
	m := &Metrics{}

	m.RecordRPCCall(100*time.Millisecond, nil)
	assert.Equal(t, int64(1), m.RPCCallsTotal())
	assert.Equal(t, int64(0), m.RPCErrorsTotal())

	m.RecordRPCCall(50*time.Millisecond, compasserr.ErrNetworkError)
	assert.Equal(t, int64(2), m.RPCCallsTotal())
	assert.Equal(t, int64(1), m.RPCErrorsTotal())
	assert.InDelta(t, 75.0, m.RPCLatencyAvgMs(), 0.001)
}

func TestMetrics_RecordReconciliation(t *testing.T) {
	t.Parallel()
	m := &Metrics{}

	m.RecordReconciliation(false, nil)
	m.RecordReconciliation(true, nil)
	m.RecordReconciliation(true, compasserr.ErrChainSwitch)
	m.RecordStaleReconciliation()

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.Reconciliations)
	assert.Equal(t, int64(2), snap.SwitchRequests)
	assert.Equal(t, int64(1), snap.SwitchFailures)
	assert.Equal(t, int64(1), snap.StaleDiscarded)
	assert.Equal(t, int64(2), m.SwitchRequests())
}

func TestMetrics_Operations(t *testing.T) {
	t.Parallel()
	m := &Metrics{}

	m.RecordDispatch(nil)
	m.RecordDispatch(compasserr.ErrTxReverted)
	m.RecordSignature(compasserr.ErrSigningRejected)
	m.RecordQuery(nil)

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.TxDispatched)
	assert.Equal(t, int64(1), snap.TxFailed)
	assert.Equal(t, int64(1), snap.Signatures)
	assert.Equal(t, int64(1), snap.SignatureFails)
	assert.Equal(t, int64(1), snap.Queries)
	assert.Equal(t, int64(0), snap.QueryFailures)
}

func TestMetrics_LatencyNoCalls(t *testing.T) {
	t.Parallel()
	m := &Metrics{}
	assert.InDelta(t, 0.0, m.RPCLatencyAvgMs(), 0)
}

func TestMetrics_Reset(t *testing.T) {
	t.Parallel()
	m := &Metrics{}
	m.RecordRPCCall(time.Millisecond, nil)
	m.RecordReconciliation(true, nil)
	m.RecordDispatch(nil)

	m.Reset()
	assert.Equal(t, Snapshot{}, m.Snapshot())
}

func TestMetrics_Concurrent(t *testing.T) {
	t.Parallel()
	m := &Metrics{}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordRPCCall(time.Millisecond, nil)
			m.RecordQuery(nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(100), m.RPCCallsTotal())
	assert.Equal(t, int64(100), m.Snapshot().Queries)
}
