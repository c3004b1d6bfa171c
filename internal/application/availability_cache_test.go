package application

import (
	"testing"
	"time"
)

func TestAvailabilityCache_TTL(t *testing.T) {
	t.Parallel()

	current := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	cache := newAvailabilityCache(30*time.Second, 4, func() time.Time { return current })

	day := DayAvailability{Date: "2026-01-12", Slots: []Slot{{Time: "08:00", Open: true}}}
	key := availabilityCacheKey("2026-01-12", "counselor-1")
	cache.Store(key, day)

	if got, ok := cache.Get(key); !ok || got.Date != "2026-01-12" {
		t.Fatalf("expected cache hit, got %v %v", got, ok)
	}

	current = current.Add(31 * time.Second)
	if _, ok := cache.Get(key); ok {
		t.Fatal("expected entry to expire")
	}
}

func TestAvailabilityCache_ReturnsCopies(t *testing.T) {
	t.Parallel()

	cache := newAvailabilityCache(time.Minute, 4, nil)
	key := availabilityCacheKey("2026-01-12", "")
	cache.Store(key, DayAvailability{
		Date:  "2026-01-12",
		Slots: []Slot{{Time: "08:00", Open: true, OpenStaffIDs: []string{"counselor-1"}}},
	})

	first, ok := cache.Get(key)
	if !ok {
		t.Fatal("expected cache hit")
	}
	first.Slots[0].Open = false
	first.Slots[0].OpenStaffIDs[0] = "mutated"

	second, _ := cache.Get(key)
	if !second.Slots[0].Open || second.Slots[0].OpenStaffIDs[0] != "counselor-1" {
		t.Fatal("expected cached entry to be isolated from caller mutation")
	}
}

func TestAvailabilityCache_InvalidateDay(t *testing.T) {
	t.Parallel()

	cache := newAvailabilityCache(time.Minute, 8, nil)
	day := DayAvailability{Date: "2026-01-12"}
	cache.Store(availabilityCacheKey("2026-01-12", "counselor-1"), day)
	cache.Store(availabilityCacheKey("2026-01-12", ""), day)
	cache.Store(availabilityCacheKey("2026-01-13", "counselor-1"), DayAvailability{Date: "2026-01-13"})

	cache.InvalidateDay("2026-01-12", "counselor-1")

	if _, ok := cache.Get(availabilityCacheKey("2026-01-12", "counselor-1")); ok {
		t.Fatal("expected staff entry to be dropped")
	}
	if _, ok := cache.Get(availabilityCacheKey("2026-01-12", "")); ok {
		t.Fatal("expected roster entry to be dropped")
	}
	if _, ok := cache.Get(availabilityCacheKey("2026-01-13", "counselor-1")); !ok {
		t.Fatal("expected other days to survive")
	}
}
