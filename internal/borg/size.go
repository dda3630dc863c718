package borg

import (
	"fmt"
	"strconv"
	"strings"
)

var sizeUnits = map[string]float64{
	"B":  1,
	"KB": 1 << 10,
	"MB": 1 << 20,
	"GB": 1 << 30,
	"TB": 1 << 40,
	"PB": 1 << 50,
}

// ParseSize converts a size string like "1.23 GB" (optionally parenthesized)
// to bytes. Units are 1024-based, matching borg's --stats output.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")

	parts := strings.Fields(s)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid size format: %q", s)
	}

	value, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value %q: %w", parts[0], err)
	}

	mult, ok := sizeUnits[strings.ToUpper(parts[1])]
	if !ok {
		return 0, fmt.Errorf("unknown size unit: %q", parts[1])
	}

	return int64(value * mult), nil
}

// FormatSize renders a byte count as a human-readable string with two
// decimals, e.g. "1.23 GB".
func FormatSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}

	units := []string{"B", "KB", "MB", "GB", "TB", "PB"}
	value := float64(bytes)
	i := 0
	for value >= 1024 && i < len(units)-1 {
		value /= 1024
		i++
	}
	return fmt.Sprintf("%.2f %s", value, units[i])
}
