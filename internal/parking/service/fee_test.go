package service_test

import (
	"testing"
	"time"

	"github.com/tranbichdiep/smart-parking-management/internal/parking/service"
)

func TestBilledHours(t *testing.T) {
	entry := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		exit time.Time
		want int64
	}{
		{"five minutes still bills one hour", entry.Add(5 * time.Minute), 1},
		{"exactly one hour", entry.Add(1 * time.Hour), 1},
		{"one hour one second rounds up", entry.Add(1*time.Hour + time.Second), 2},
		{"ninety minutes", entry.Add(90 * time.Minute), 2},
		{"full day", entry.Add(24 * time.Hour), 24},
		{"clock skew never bills below one", entry.Add(-10 * time.Minute), 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := service.BilledHours(entry, tc.exit); got != tc.want {
				t.Fatalf("BilledHours = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestBilledHoursMonotonic(t *testing.T) {
	entry := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	prev := int64(0)
	for mins := 1; mins <= 300; mins += 7 {
		got := service.BilledHours(entry, entry.Add(time.Duration(mins)*time.Minute))
		if got < prev {
			t.Fatalf("billed hours decreased: %d minutes -> %d, previous %d", mins, got, prev)
		}
		prev = got
	}
}

func TestComputeFee(t *testing.T) {
	entry := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	if got := service.ComputeFee(entry, entry.Add(90*time.Minute), 10000); got != 20000 {
		t.Fatalf("90 minute fee = %d, want 20000", got)
	}
	if got := service.ComputeFee(entry, entry.Add(10*time.Minute), 10000); got != 10000 {
		t.Fatalf("sub-hour fee = %d, want 10000", got)
	}
}

func TestSubscriptionCoversEntry(t *testing.T) {
	entry := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

	past := entry.Add(-24 * time.Hour)
	future := entry.Add(24 * time.Hour)

	if service.SubscriptionCoversEntry(nil, entry) {
		t.Fatal("nil expiry must not cover")
	}
	if service.SubscriptionCoversEntry(&past, entry) {
		t.Fatal("lapsed subscription must not cover")
	}
	if !service.SubscriptionCoversEntry(&future, entry) {
		t.Fatal("future expiry must cover")
	}
	if !service.SubscriptionCoversEntry(&entry, entry) {
		t.Fatal("expiry exactly at entry must cover")
	}
}
