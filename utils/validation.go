package utils

import (
	"regexp"
)

var (
	leadPhonePattern = regexp.MustCompile(`^[6-9][0-9]{9}$`)
	userPhonePattern = regexp.MustCompile(`^[0-9]{10}$`)
)

// IsValidLeadPhone reports whether s is a 10 digit mobile number starting with 6-9
func IsValidLeadPhone(s string) bool {
	return leadPhonePattern.MatchString(s)
}

// IsValidUserPhone reports whether s is a 10 digit phone number
func IsValidUserPhone(s string) bool {
	return userPhonePattern.MatchString(s)
}

// IsValidFollowUpDate reports whether s is a real DD/MM/YYYY calendar date
func IsValidFollowUpDate(s string) bool {
	_, err := ParseFollowUpDate(s)
	return err == nil
}
