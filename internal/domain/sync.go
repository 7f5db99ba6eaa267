package domain

import (
	"encoding/json"
	"time"
)

// Remote tables mirrored by the synchronizer.
const (
	EntityTransactions = "transactions"
	EntityEnergyBills  = "energy_bills"
	EntityCategories   = "categories"
	EntityProfiles     = "profiles"
)

// Mirror operations.
const (
	OpInsert = "insert"
	OpDelete = "delete"
	OpUpdate = "update"
)

// PendingWrite is a mirror write waiting in the outbox.
type PendingWrite struct {
	ID       string          `json:"id"`
	UserID   string          `json:"userId"` // remote user the write belongs to
	Entity   string          `json:"entity"`
	Op       string          `json:"op"`
	RowID    string          `json:"rowId"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	QueuedAt time.Time       `json:"queuedAt"`
	Attempts int             `json:"attempts"`
}

// SyncMetrics is returned by GET /v1/metrics/sync.
type SyncMetrics struct {
	MirrorSucceeded int64   `json:"mirrorSucceeded"`
	MirrorFailed    int64   `json:"mirrorFailed"`
	OutboxReplayed  int64   `json:"outboxReplayed"`
	OutboxPending   int64   `json:"outboxPending"`
	LocalWriteFails int64   `json:"localWriteFailures"`
	CacheHitRate    float64 `json:"cacheHitRate"`
	InitSource      string  `json:"initSource"`
}
