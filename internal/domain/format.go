package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatOffset renders seconds as zero-padded "HH:MM:SS".
// Sub-second parts are truncated, never rounded.
// Example: 3661.9 -> "01:01:01"
func FormatOffset(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		seconds = 0
	}
	total := int64(math.Floor(seconds))
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// ParseOffset parses "HH:MM:SS", "MM:SS" or plain seconds ("75", "75.5").
func ParseOffset(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidOffset)
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidOffset, s)
	}

	var total float64
	for i, p := range parts {
		last := i == len(parts)-1
		if last {
			v, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return 0, fmt.Errorf("%w: %q", ErrInvalidOffset, s)
			}
			if len(parts) > 1 && (v < 0 || v >= 60) {
				return 0, fmt.Errorf("%w: seconds out of range in %q", ErrInvalidOffset, s)
			}
			total = total*60 + v
			continue
		}

		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidOffset, s)
		}
		// minutes must stay below 60 when hours are given
		if i == 1 && v >= 60 {
			return 0, fmt.Errorf("%w: minutes out of range in %q", ErrInvalidOffset, s)
		}
		total = total*60 + float64(v)
	}

	if err := ValidateOffset(total); err != nil {
		return 0, err
	}
	return total, nil
}
