package fetchcache

import (
	"time"

	"github.com/kbukum/viewkit/cachekey"
)

// Status is the lifecycle state of an entry.
type Status string

const (
	StatusPending Status = "pending"
	StatusFresh   Status = "fresh"
	StatusStale   Status = "stale"
	StatusError   Status = "error"
)

// Entry is a snapshot of one cached key.
//
// A failed reload keeps the previous value and status and only records Err;
// StatusError is reserved for keys that have never loaded successfully.
type Entry[V any] struct {
	Key        cachekey.Key `json:"-"`
	Status     Status       `json:"status"`
	Value      V            `json:"value"`
	HasValue   bool         `json:"hasValue"`
	Err        error        `json:"-"`
	InsertedAt time.Time    `json:"insertedAt"`
	LastAccess time.Time    `json:"lastAccess"`
}

type entry[V any] struct {
	status     Status
	value      V
	hasValue   bool
	err        error
	insertedAt time.Time
	lastAccess time.Time
	loading    bool
	// gen is bumped by invalidation; a load that started under an older
	// generation lands as stale.
	gen uint64
}

// age moves a fresh entry to stale once its freshness window has passed.
func (e *entry[V]) age(now time.Time, staleTime time.Duration) {
	if e.status == StatusFresh && now.Sub(e.insertedAt) >= staleTime {
		e.status = StatusStale
	}
}

func (e *entry[V]) snapshot(key cachekey.Key) Entry[V] {
	return Entry[V]{
		Key:        key,
		Status:     e.status,
		Value:      e.value,
		HasValue:   e.hasValue,
		Err:        e.err,
		InsertedAt: e.insertedAt,
		LastAccess: e.lastAccess,
	}
}
