package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/brightledger/finance-analytics-core/internal/aggregate"
	"github.com/brightledger/finance-analytics-core/internal/errs"
)

// parseLimit reads the limit query parameter, bounding it to [0, max] and
// applying def when absent (§4.8). limit=0 is a valid explicit request for
// an empty result, distinct from the default; anything else out of range
// is rejected.
func parseLimit(r *http.Request, def, max int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || n > max {
		return 0, errs.New(errs.BadRequest, "limit must be an integer in [0, "+strconv.Itoa(max)+"]")
	}
	return n, nil
}

// parseWeek reads the optional week query parameter as YYYY-MM-DD,
// normalised to the Monday of that ISO week in UTC.
func parseWeek(r *http.Request) (*time.Time, error) {
	raw := r.URL.Query().Get("week")
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, errs.New(errs.BadRequest, "week must match YYYY-MM-DD")
	}
	t = aggregate.ISOWeekStartUTC(t)
	return &t, nil
}

func requireQuery(r *http.Request, key string) (string, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return "", errs.New(errs.BadRequest, key+" is required")
	}
	return v, nil
}
