// Package domain holds the candle model of the market context.
package domain

import (
	"slices"
	"time"

	"github.com/fd1az/synth-indexer/internal/apperror"
)

// Interval is one of the supported candle widths.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval1d  Interval = "1d"
)

var intervalSeconds = map[Interval]int64{
	Interval1m:  60,
	Interval5m:  5 * 60,
	Interval15m: 15 * 60,
	Interval1h:  60 * 60,
	Interval4h:  4 * 60 * 60,
	Interval1d:  24 * 60 * 60,
}

// AllIntervals returns the supported intervals, finest first.
func AllIntervals() []Interval {
	return []Interval{Interval1m, Interval5m, Interval15m, Interval1h, Interval4h, Interval1d}
}

// ParseInterval validates s against the supported set.
func ParseInterval(s string) (Interval, error) {
	i := Interval(s)
	if !i.Valid() {
		return "", apperror.New(apperror.CodeInvalidInterval, apperror.WithContextf("%q", s))
	}
	return i, nil
}

// ParseIntervals parses and orders a configured list, finest first, without duplicates.
func ParseIntervals(ss []string) ([]Interval, error) {
	out := make([]Interval, 0, len(ss))
	for _, s := range ss {
		i, err := ParseInterval(s)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(out, i) {
			out = append(out, i)
		}
	}
	slices.SortFunc(out, func(a, b Interval) int { return int(a.Seconds() - b.Seconds()) })
	return out, nil
}

// Valid reports whether i is supported.
func (i Interval) Valid() bool {
	_, ok := intervalSeconds[i]
	return ok
}

// Seconds returns the interval length.
func (i Interval) Seconds() int64 {
	return intervalSeconds[i]
}

// Duration returns the interval length as a time.Duration.
func (i Interval) Duration() time.Duration {
	return time.Duration(i.Seconds()) * time.Second
}

// BucketStart floors ts to the interval grid. Negative timestamps floor toward -inf.
func (i Interval) BucketStart(ts int64) int64 {
	n := i.Seconds()
	if n == 0 {
		return ts
	}
	b := ts / n * n
	if ts < 0 && b != ts {
		b -= n
	}
	return b
}

func (i Interval) String() string { return string(i) }

// Finest returns the shortest interval of the list.
func Finest(intervals []Interval) (Interval, bool) {
	if len(intervals) == 0 {
		return "", false
	}
	return slices.MinFunc(intervals, func(a, b Interval) int { return int(a.Seconds() - b.Seconds()) }), true
}
