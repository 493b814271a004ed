package analytics

import (
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const (
	// reports scan a partitioned table; longer ranges get expensive
	maxRangeDays  = 366
	defaultPreset = "30d"
	day           = 24 * time.Hour
)

var presets = map[string]time.Duration{
	"24h": day,
	"7d":  7 * day,
	"30d": 30 * day,
	"90d": 90 * day,
}

var timeNowUTC = func() time.Time { return time.Now().UTC() }

func invalidRange(msg string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, msg)
}

// resolveAnalyticsRange reads either an explicit from/to pair (RFC 3339 or
// YYYY-MM-DD) or a preset ending at now. Without either it uses 30d.
func resolveAnalyticsRange(r *http.Request, now time.Time) (time.Time, time.Time, error) {
	q := r.URL.Query()
	from, to := strings.TrimSpace(q.Get("from")), strings.TrimSpace(q.Get("to"))

	if from == "" && to == "" {
		name := strings.ToLower(strings.TrimSpace(q.Get("preset")))
		if name == "" {
			name = defaultPreset
		}
		span, ok := presets[name]
		if !ok {
			return time.Time{}, time.Time{}, invalidRange("invalid preset")
		}
		return now.Add(-span), now, nil
	}
	if from == "" || to == "" {
		return time.Time{}, time.Time{}, invalidRange("from and to must be provided together")
	}

	start, ok := parseBound(from)
	if !ok {
		return time.Time{}, time.Time{}, invalidRange("invalid from timestamp")
	}
	end, ok := parseBound(to)
	if !ok {
		return time.Time{}, time.Time{}, invalidRange("invalid to timestamp")
	}
	switch {
	case end.Before(start):
		return time.Time{}, time.Time{}, invalidRange("end must be after start")
	case end.Sub(start) > maxRangeDays*day:
		return time.Time{}, time.Time{}, invalidRange("range may not exceed 366 days")
	}
	return start, end, nil
}

func parseBound(v string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
