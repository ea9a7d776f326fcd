// Package util contains small shared helpers that are not part of the public
// API surface: identifier generation and input validation for emails and
// clock times.
package util

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// NewID generates a unique identifier for events and requests.
func NewID() string {
	return uuid.New().String()
}

// emailPattern accepts a simple local@domain.tld shape. It is intentionally
// loose; the contact store owns no stricter contract.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidEmail reports whether s looks like an email address.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// clockPattern accepts H:MM or HH:MM.
var clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

// ValidClockTime reports whether s is a 24h clock time (H:MM or HH:MM) with
// in-range hour and minute.
func ValidClockTime(s string) bool {
	m := clockPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return false
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	return hour <= 23 && minute <= 59
}

// IsEmail reports whether a mentioned participant string is already an email
// address rather than a bare name.
func IsEmail(s string) bool {
	return strings.Contains(s, "@")
}
