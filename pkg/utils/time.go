package utils

import "time"

// Now is the store clock. Tests replace it for deterministic timestamps.
var Now = func() time.Time {
	return time.Now().UTC()
}

// NowRFC3339 returns the current time in RFC3339 format
func NowRFC3339() string {
	return Now().Format(time.RFC3339)
}
