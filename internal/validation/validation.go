package validation

import (
	"errors"
	"strconv"
	"strings"
)

// Lookback and refresh bounds for the dashboard controls.
const (
	MinLookbackHours  = 1
	MaxLookbackHours  = 24
	MinRefreshSeconds = 10
	MaxRefreshSeconds = 600
)

// ErrStationEmpty is returned when station id is empty after trim.
var ErrStationEmpty = errors.New("station id is required")

// ErrStationInvalidChars is returned when station id contains disallowed characters.
var ErrStationInvalidChars = errors.New("station id contains invalid characters")

// ErrLookbackOutOfRange is returned when lookback hours fall outside 1-24.
var ErrLookbackOutOfRange = errors.New("lookback hours out of range")

// ErrRefreshOutOfRange is returned when refresh seconds fall outside 10-600.
var ErrRefreshOutOfRange = errors.New("refresh seconds out of range")

// ValidateStationID trims the input and restricts it to WIGOS-style station
// identifiers: digits, letters, and hyphens (e.g. 0-20000-0-06240). Returns
// the trimmed string or an error suitable for 400 INVALID_STATION responses.
func ValidateStationID(input string) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", ErrStationEmpty
	}
	for _, c := range s {
		if !isAllowedStationRune(c) {
			return "", ErrStationInvalidChars
		}
	}
	return s, nil
}

func isAllowedStationRune(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return true
	case r == '-':
		return true
	}
	return false
}

// ParseLookbackHours parses a lookback value in hours, returning def when
// the input is empty. Bounds are inclusive 1-24.
func ParseLookbackHours(input string, def int) (int, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, ErrLookbackOutOfRange
	}
	if n < MinLookbackHours || n > MaxLookbackHours {
		return 0, ErrLookbackOutOfRange
	}
	return n, nil
}

// ParseRefreshSeconds parses a dashboard refresh interval in seconds,
// returning def when the input is empty. Bounds are inclusive 10-600.
func ParseRefreshSeconds(input string, def int) (int, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, ErrRefreshOutOfRange
	}
	if n < MinRefreshSeconds || n > MaxRefreshSeconds {
		return 0, ErrRefreshOutOfRange
	}
	return n, nil
}
