package rules

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var sizeUnits = map[string]float64{
	"B":  1,
	"KB": 1 << 10,
	"MB": 1 << 20,
	"GB": 1 << 30,
	"TB": 1 << 40,
}

// ParseSize converts a human size string into bytes. The numeric literal may
// carry decimals; the unit is one of B, KB, MB, GB, TB (case-insensitive) and
// defaults to MB when omitted. Conversion is binary (1024-based).
func ParseSize(value string) (int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("empty size string")
	}

	upper := strings.ToUpper(trimmed)
	unit := "MB"
	numeric := upper
	for _, suffix := range []string{"TB", "GB", "MB", "KB", "B"} {
		if strings.HasSuffix(upper, suffix) {
			unit = suffix
			numeric = strings.TrimSpace(strings.TrimSuffix(upper, suffix))
			break
		}
	}

	if numeric == "" {
		return 0, fmt.Errorf("size %q has no numeric part", value)
	}
	amount, err := strconv.ParseFloat(numeric, 64)
	if err != nil {
		return 0, fmt.Errorf("size %q: %w", value, err)
	}
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, fmt.Errorf("size %q is not a positive amount", value)
	}

	bytes := amount * sizeUnits[unit]
	if bytes > math.MaxInt64 {
		return 0, fmt.Errorf("size %q overflows", value)
	}
	return int64(math.Round(bytes)), nil
}

// ParseWindow converts a recency string into a duration. Supported suffixes:
// "d" (days), "h" (hours), "w" (weeks). A bare number means days.
func ParseWindow(value string) (time.Duration, error) {
	trimmed := strings.TrimSpace(strings.ToLower(value))
	if trimmed == "" {
		return 0, fmt.Errorf("empty window string")
	}

	unit := time.Duration(24) * time.Hour
	numeric := trimmed
	switch {
	case strings.HasSuffix(trimmed, "w"):
		unit = 7 * 24 * time.Hour
		numeric = strings.TrimSpace(strings.TrimSuffix(trimmed, "w"))
	case strings.HasSuffix(trimmed, "d"):
		numeric = strings.TrimSpace(strings.TrimSuffix(trimmed, "d"))
	case strings.HasSuffix(trimmed, "h"):
		unit = time.Hour
		numeric = strings.TrimSpace(strings.TrimSuffix(trimmed, "h"))
	}

	amount, err := strconv.ParseFloat(numeric, 64)
	if err != nil {
		return 0, fmt.Errorf("window %q: %w", value, err)
	}
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, fmt.Errorf("window %q is not a positive amount", value)
	}

	return time.Duration(amount * float64(unit)), nil
}
