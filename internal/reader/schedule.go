package reader

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SettlementInterval is the funding period used by every supported venue.
const SettlementInterval = 8 * time.Hour

// NextScheduledSettlement returns the next 00:00, 08:00 or 16:00 UTC boundary
// strictly after now.
func NextScheduledSettlement(now time.Time) time.Time {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	slot := now.Hour() / 8
	return day.Add(time.Duration(slot+1) * SettlementInterval)
}

// ParseTimestamp accepts epoch milliseconds (as a JSON string or number
// rendered with %v) or an RFC 3339 string.
func ParseTimestamp(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		if ms <= 0 {
			return time.Time{}, fmt.Errorf("non-positive timestamp %d", ms)
		}
		return time.UnixMilli(ms).UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", v)
}

// ParseRate parses a decimal funding rate such as "-0.000125".
func ParseRate(v string) (float64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, fmt.Errorf("empty rate")
	}
	return strconv.ParseFloat(v, 64)
}
