// Package cache holds the most recent speedtest result.
package cache

import (
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/m-lab/speedtest-statuspage/pkg/speedtest/model"
)

// slotKey is the only key ever stored in the underlying cache.
const slotKey = "latest"

// Entry is a cached result and the time it was captured.
type Entry struct {
	Result     model.Result
	CapturedAt time.Time
}

// Cache is a single-slot store for the latest result. It is safe for
// concurrent use. A reader sees either no entry or a complete entry from a
// single Write, never a mix of two.
type Cache struct {
	slot *ttlcache.Cache[string, Entry]
	// writeMu serializes Write and Clear.
	writeMu sync.Mutex
}

// New returns an empty Cache. Entries never expire.
func New() *Cache {
	return &Cache{
		slot: ttlcache.New(
			ttlcache.WithDisableTouchOnHit[string, Entry](),
		),
	}
}

// Read returns a copy of the cached result, if any.
func (c *Cache) Read() (model.Result, bool) {
	e, ok := c.Entry()
	return e.Result, ok
}

// Entry returns a copy of the cached entry, if any.
func (c *Cache) Entry() (Entry, bool) {
	item := c.slot.Get(slotKey)
	if item == nil {
		return Entry{}, false
	}
	e := item.Value()
	e.Result = e.Result.Clone()
	return e, true
}

// Write replaces the cached entry with r, captured at the given time.
func (c *Cache) Write(r model.Result, at time.Time) {
	e := Entry{
		Result:     r.Clone(),
		CapturedAt: at,
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.slot.Set(slotKey, e, ttlcache.DefaultTTL)
}

// Clear removes the cached entry. It is only meant for resetting state in
// tests.
func (c *Cache) Clear() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.slot.Delete(slotKey)
}
