// Package syncx provides shared timestamp helpers for the sync surfaces.
package syncx

import "time"

// NowMs returns the current Unix milliseconds timestamp (UTC).
func NowMs() int64 {
	return time.Now().UTC().UnixMilli()
}

// RFC3339 converts Unix milliseconds to an RFC3339 timestamp string.
func RFC3339(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339Nano)
}

// EnsureMonotonicTimestamp returns a timestamp strictly greater than prev.
// updatedAt must only ever advance, even when the wall clock has not moved
// since the previous write.
func EnsureMonotonicTimestamp(prev int64) int64 {
	now := NowMs()
	if now <= prev {
		return prev + 1
	}
	return now
}
