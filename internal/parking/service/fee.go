package service

import "time"

// secondsPerHour is the billing granularity: any started hour is charged
// in full.
const secondsPerHour = 3600

// BilledHours returns the number of chargeable hours between entry and
// exit: the duration rounded up to whole hours, never less than one even
// for sub-hour stays.
func BilledHours(entry, exit time.Time) int64 {
	secs := int64(exit.Sub(entry) / time.Second)
	if secs < 0 {
		secs = 0
	}
	hours := (secs + secondsPerHour - 1) / secondsPerHour
	if hours < 1 {
		hours = 1
	}
	return hours
}

// ComputeFee is the walk-in parking fee for the stay at the given hourly
// rate. Deterministic, no side effects.
func ComputeFee(entry, exit time.Time, hourlyRate int64) int64 {
	return BilledHours(entry, exit) * hourlyRate
}

// SubscriptionCoversEntry reports whether a monthly subscription with the
// given expiry covered the visit. The comparison is against the entry
// time: a subscription that lapses mid-visit is billed as a walk-in for
// the whole stay. Deliberate policy, confirmed with operations.
func SubscriptionCoversEntry(expiry *time.Time, entry time.Time) bool {
	return expiry != nil && !expiry.Before(entry)
}
