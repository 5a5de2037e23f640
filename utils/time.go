// Package utils provides utility functions for the application.
package utils

import (
	"time"
)

// FollowUpDateLayout is the DD/MM/YYYY layout used for follow-up dates
const FollowUpDateLayout = "02/01/2006"

// UTCNow returns the current time in UTC
func UTCNow() time.Time {
	return time.Now().UTC()
}

// UTCNowPtr returns a pointer to the current time in UTC
func UTCNowPtr() *time.Time {
	now := UTCNow()
	return &now
}

// UTCNowAdd returns the current UTC time plus the given duration
func UTCNowAdd(d time.Duration) time.Time {
	return UTCNow().Add(d)
}

// IsExpired checks if the given time is in the past (expired)
func IsExpired(t time.Time) bool {
	return UTCNow().After(t)
}

// ParseFollowUpDate parses a DD/MM/YYYY date
func ParseFollowUpDate(s string) (time.Time, error) {
	return time.Parse(FollowUpDateLayout, s)
}
