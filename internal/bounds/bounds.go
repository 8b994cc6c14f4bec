// Package bounds caps time-series queries to a maximum number of buckets.
package bounds

// Range is a half-open [From, To) window in unix seconds.
type Range struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// Empty reports whether the range contains no time.
func (r Range) Empty() bool {
	return r.To <= r.From
}

// Buckets returns how many whole intervals fit in the range.
func (r Range) Buckets(interval int64) int64 {
	if r.Empty() || interval <= 0 {
		return 0
	}
	return (r.To - r.From) / interval
}

// LimitedRange clips to so that the range spans at most limit buckets of interval seconds.
//
// from is never moved; a client continues by re-issuing the query from the returned To.
// to <= from yields an empty range anchored at from. A non-positive limit or interval
// leaves the range unbounded.
func LimitedRange(from, to, interval int64, limit int) Range {
	if to <= from {
		return Range{From: from, To: from}
	}

	r := Range{From: from, To: to}
	if interval <= 0 || limit <= 0 {
		return r
	}

	if r.Buckets(interval) > int64(limit) {
		r.To = from + interval*int64(limit)
	}
	return r
}
