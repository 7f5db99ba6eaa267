package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetSyncSnapshot(t *testing.T) {
	m := NewMetrics()

	m.RecordMirrorWrite("transactions", "insert", "ok")
	m.RecordMirrorWrite("categories", "delete", "ok")
	m.RecordMirrorWrite("transactions", "insert", "failed")
	m.SetOutboxPending(1)
	m.AddOutboxReplayed(2)
	m.IncrLocalWriteError("finanzo_transactions")
	m.IncrCacheHit("session")
	m.IncrCacheHit("session")
	m.IncrCacheMiss("session")
	m.RecordInit("local", 15*time.Millisecond)

	snap := m.GetSyncSnapshot()

	assert.Equal(t, int64(2), snap.MirrorSucceeded)
	assert.Equal(t, int64(1), snap.MirrorFailed)
	assert.Equal(t, int64(1), snap.OutboxPending)
	assert.Equal(t, int64(2), snap.OutboxReplayed)
	assert.Equal(t, int64(1), snap.LocalWriteFails)
	assert.InDelta(t, 2.0/3.0, snap.CacheHitRate, 1e-9)
	assert.Equal(t, "local", snap.InitSource)
}

func TestNewMetrics_IndependentRegistries(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	a.RecordMirrorWrite("transactions", "insert", "ok")

	assert.Equal(t, int64(1), a.GetSyncSnapshot().MirrorSucceeded)
	assert.Equal(t, int64(0), b.GetSyncSnapshot().MirrorSucceeded)
}
