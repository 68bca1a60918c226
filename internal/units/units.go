// Package units converts engine byte counts into display strings and speed limits into engine units
package units

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// Unlimited is the speed limit value meaning no limit
const Unlimited = "0"

// NormalizeLimit converts a "<number><K|M>" limit into whole kilobytes, e.g. "2.5M" becomes "2560K".
// Fractions round half away from zero.
func NormalizeLimit(limit string) (string, error) {
	limit = strings.TrimSpace(limit)
	if limit == Unlimited {
		return limit, nil
	}
	if len(limit) < 2 {
		return "", fmt.Errorf("invalid speed limit %q", limit)
	}

	number, unit := limit[:len(limit)-1], strings.ToUpper(limit[len(limit)-1:])
	value, err := strconv.ParseFloat(number, 64)
	if err != nil || value < 0 {
		return "", fmt.Errorf("invalid speed limit %q", limit)
	}

	switch unit {
	case "K":
	case "M":
		value *= 1024
	default:
		return "", fmt.Errorf("invalid speed limit unit %q in %q", unit, limit)
	}

	return strconv.FormatInt(int64(math.Round(value)), 10) + "K", nil
}

// Size renders a byte count with binary units (KiB, MiB, GiB)
func Size(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}

// Rate renders a download speed in bytes per second. A zero speed is "0".
func Rate(speed int64) string {
	if speed <= 0 {
		return "0"
	}
	return Size(speed) + "/s"
}

// Percent returns floor(completed*100/total) followed by "%"
func Percent(completed, total int64) string {
	return strconv.FormatInt(completed*100/total, 10) + "%"
}

// Duration renders seconds as "1h2m3s", dropping leading zero units
func Duration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}

	switch {
	case seconds >= 3600:
		return fmt.Sprintf("%dh%dm%ds", seconds/3600, seconds%3600/60, seconds%60)
	case seconds >= 60:
		return fmt.Sprintf("%dm%ds", seconds/60, seconds%60)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
