package application

import (
	"strings"
	"sync"
	"time"
)

// availabilityCache stores recently resolved day availability to avoid
// recomputing identical queries while bookings remain unchanged. Entries are
// dropped eagerly when a booking touches their day.
type availabilityCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]availabilityCacheEntry
}

type availabilityCacheEntry struct {
	day       DayAvailability
	expiresAt time.Time
}

func newAvailabilityCache(ttl time.Duration, maxEntries int, now func() time.Time) *availabilityCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 128
	}
	if now == nil {
		now = time.Now
	}
	return &availabilityCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]availabilityCacheEntry),
	}
}

func (c *availabilityCache) Get(key string) (DayAvailability, bool) {
	if c == nil {
		return DayAvailability{}, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return DayAvailability{}, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return DayAvailability{}, false
	}
	return cloneDay(entry.day), true
}

func (c *availabilityCache) Store(key string, day DayAvailability) {
	if c == nil {
		return
	}
	cloned := cloneDay(day)
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = availabilityCacheEntry{day: cloned, expiresAt: expiry}
}

// InvalidateDay drops every entry for the given date: the staff member's own
// entry and any roster entry that includes them.
func (c *availabilityCache) InvalidateDay(date, _ string) {
	if c == nil {
		return
	}
	prefix := date + "|"

	c.mu.Lock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}

func (c *availabilityCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *availabilityCache) evictOneLocked() {
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}

func cloneDay(day DayAvailability) DayAvailability {
	out := DayAvailability{Date: day.Date}
	if len(day.Slots) == 0 {
		return out
	}
	out.Slots = make([]Slot, len(day.Slots))
	for i, slot := range day.Slots {
		cloned := slot
		if len(slot.OpenStaffIDs) > 0 {
			cloned.OpenStaffIDs = append([]string(nil), slot.OpenStaffIDs...)
		}
		out.Slots[i] = cloned
	}
	return out
}

func availabilityCacheKey(date, staffID string) string {
	return date + "|" + staffID
}
