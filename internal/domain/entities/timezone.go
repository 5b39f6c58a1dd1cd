package entities

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidTimezone = errors.New("invalid timezone")

// LoadTimezone resolves a learner timezone. It accepts IANA names and fixed
// UTC offsets such as "UTC+3", "+05:30" or "-7". An empty name is UTC.
func LoadTimezone(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	switch strings.ToUpper(tz) {
	case "", "UTC", "GMT", "ETC/UTC":
		return time.UTC, nil
	}

	if loc, err := time.LoadLocation(tz); err == nil {
		return loc, nil
	}

	offset, ok := parseOffset(strings.TrimPrefix(strings.ToUpper(tz), "UTC"))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, tz)
	}

	sign, abs := '+', offset
	if offset < 0 {
		sign, abs = '-', -offset
	}
	name := fmt.Sprintf("UTC%c%02d:%02d", sign, abs/3600, abs%3600/60)
	return time.FixedZone(name, offset), nil
}

// parseOffset reads "+H", "-HH" or "+HH:MM" into seconds east of UTC.
func parseOffset(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || (s[0] != '+' && s[0] != '-') {
		return 0, false
	}

	hours, minutes, hasMinutes := strings.Cut(s[1:], ":")
	if !hasMinutes {
		minutes = "0"
	}

	h, err := strconv.Atoi(hours)
	if err != nil || h < 0 || h > 14 {
		return 0, false
	}
	m, err := strconv.Atoi(minutes)
	if err != nil || m < 0 || m >= 60 {
		return 0, false
	}

	secs := h*3600 + m*60
	if s[0] == '-' {
		secs = -secs
	}
	return secs, true
}
