package cache

import (
	"context"
	"testing"
	"time"

	"github.com/mverbeek/windmask-monitor/internal/models"
)

func observation(direction float64, measuredAt time.Time) models.Observation {
	return models.Observation{
		Direction:   &direction,
		MeasuredAt:  &measuredAt,
		RetrievedAt: time.Now().UTC(),
	}
}

// TestKey verifies the cache key format shared by the request path and the
// background poller.
func TestKey(t *testing.T) {
	got := Key("0-20000-0-06240", 6)
	want := "0-20000-0-06240:6h"
	if got != want {
		t.Errorf("Key() = %q, want %q", got, want)
	}
}

// TestInMemoryCache_GetSet verifies that Set stores values and Get retrieves
// them correctly with the expected data.
func TestInMemoryCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	measured := time.Date(2026, 8, 23, 10, 10, 0, 0, time.UTC)
	val := observation(200, measured)
	if err := c.Set(ctx, Key("0-20000-0-06240", 6), val, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := c.Get(ctx, Key("0-20000-0-06240", 6))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if got.Direction == nil || *got.Direction != 200 {
		t.Errorf("Get().Direction = %v, want 200", got.Direction)
	}
	if got.MeasuredAt == nil || !got.MeasuredAt.Equal(measured) {
		t.Errorf("Get().MeasuredAt = %v, want %v", got.MeasuredAt, measured)
	}
}

// TestInMemoryCache_Get_Miss verifies that Get returns ok=false when
// the requested key does not exist in cache.
func TestInMemoryCache_Get_Miss(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	_, ok, err := c.Get(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for miss")
	}
}

// TestInMemoryCache_Get_Expired verifies that Get returns ok=false for
// expired entries and removes them from cache on access.
func TestInMemoryCache_Get_Expired(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	val := observation(90, time.Now().UTC())
	if err := c.Set(ctx, "k", val, time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	time.Sleep(2 * time.Millisecond)

	_, ok, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for expired entry")
	}

	c.mu.Lock()
	_, still := c.data["k"]
	c.mu.Unlock()
	if still {
		t.Error("expired entry should be deleted from cache")
	}
}

// TestInMemoryCache_DistinctLookbacks verifies that the same station with
// different lookback windows uses independent entries.
func TestInMemoryCache_DistinctLookbacks(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	if err := c.Set(ctx, Key("s1", 6), observation(200, time.Now().UTC()), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	_, ok, _ := c.Get(ctx, Key("s1", 12))
	if ok {
		t.Error("Get() with different lookback hit the 6h entry")
	}
}

func TestParseAddrs(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{name: "single", in: "localhost:11211", want: 1},
		{name: "multiple with spaces", in: "host1:11211, host2:11211", want: 2},
		{name: "empty", in: "", want: 0},
		{name: "trailing comma", in: "host1:11211,", want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseAddrs(tt.in); len(got) != tt.want {
				t.Errorf("parseAddrs(%q) = %v, want %d addrs", tt.in, got, tt.want)
			}
		})
	}
}
