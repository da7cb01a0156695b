// Package solqc provides quality control and average-year aggregation
// for ground-station solar irradiation time series.
//
// The pipeline operates on one hourly series per station: the measured
// global irradiation ("qo") joined with two simulated baselines, the
// extraterrestrial irradiation at the top of the atmosphere ("toa") and
// the clear-sky irradiation. QC tests mark suspect hours with flags,
// rows are never removed, so the series stays aligned with the calendar
// index throughout.
package solqc

import (
	"sort"
	"time"
)

// SchemaVersion is the current observation schema version.
const SchemaVersion = 1

// =============================================================================
// Flags
// =============================================================================

// Flag is a bitmask of quality-control marks on a single hour.
type Flag uint16

const (
	FlagMissing     Flag = 1 << iota // qo not recorded (or sentinel value)
	FlagNegative                     // qo below zero
	FlagOffset                       // nightly offset: qo > 6 at sza > 93, or qo < -12
	FlagU1                           // upper bound: qo exceeds toa
	FlagU2                           // upper bound: qo exceeds clear-sky ceiling
	FlagL1                           // lower bound: daily mean qo/toa under threshold
	FlagL2                           // lower bound: qo under sza-scaled minimum
	FlagDifference                   // step change in qo/toa between hours
	FlagConsistency                  // daily spread of qo/toa out of bounds
	FlagUnvalidated                  // no baseline at this hour, tests not applicable
)

var flagNames = []struct {
	flag Flag
	name string
}{
	{FlagMissing, "missing"},
	{FlagNegative, "negative"},
	{FlagOffset, "offset"},
	{FlagU1, "u1"},
	{FlagU2, "u2"},
	{FlagL1, "l1"},
	{FlagL2, "l2"},
	{FlagDifference, "difference"},
	{FlagConsistency, "consistency"},
	{FlagUnvalidated, "unvalidated"},
}

// Has reports whether any bit in mask is set.
func (f Flag) Has(mask Flag) bool {
	return f&mask != 0
}

// String returns a pipe-separated list of set flag names, or "ok".
func (f Flag) String() string {
	if f == 0 {
		return "ok"
	}
	s := ""
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			if s != "" {
				s += "|"
			}
			s += fn.name
		}
	}
	return s
}

// =============================================================================
// Record / Series
// =============================================================================

// Record is one hour of station data. Optional quantities are pointers:
// nil means "not available", which is distinct from a measured zero
// (night hours legitimately read 0).
type Record struct {
	Time     time.Time // hour start, UTC
	Qo       *float64  // measured global irradiation, W/m2
	Sza      *float64  // solar zenith angle, degrees (from clear-sky model)
	Toa      *float64  // extraterrestrial irradiation, W/m2
	ClearSky *float64  // simulated clear-sky irradiation, W/m2
	Flags    Flag
}

// Year returns the calendar year of the record.
func (r *Record) Year() int {
	return r.Time.Year()
}

// Sunlit reports whether the hour has any modelled irradiation at all.
// QC statistics over "sunlight hours" use this predicate.
func (r *Record) Sunlit() bool {
	return r.Toa != nil && *r.Toa > 0
}

// Series is an hourly station time series, ordered by time with a
// constant one-hour step (missing hours are present with nil fields).
type Series struct {
	Station string
	Records []Record

	index map[int64]int // unix seconds -> position in Records
}

// NewSeries creates an empty series for the named station.
func NewSeries(station string) *Series {
	return &Series{
		Station: station,
		index:   make(map[int64]int),
	}
}

// Len returns the number of hours in the series.
func (s *Series) Len() int {
	return len(s.Records)
}

// Add appends a record, keeping the time index current.
// Records must be appended in chronological order.
func (s *Series) Add(r Record) {
	s.index[r.Time.Unix()] = len(s.Records)
	s.Records = append(s.Records, r)
}

// At returns the record at the given hour, or nil if absent.
func (s *Series) At(t time.Time) *Record {
	i, ok := s.index[t.Unix()]
	if !ok {
		return nil
	}
	return &s.Records[i]
}

// Years returns the distinct calendar years covered, ascending.
func (s *Series) Years() []int {
	seen := make(map[int]bool)
	for i := range s.Records {
		seen[s.Records[i].Year()] = true
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// Regularize fills the series to a strict hourly frequency between the
// first and last record, inserting empty (all-nil) records for hours
// the input never mentioned. Mirrors resampling the raw file to 1h.
func (s *Series) Regularize() {
	if len(s.Records) < 2 {
		return
	}
	out := NewSeries(s.Station)
	last := s.Records[len(s.Records)-1].Time
	for t := s.Records[0].Time; !t.After(last); t = t.Add(time.Hour) {
		if r := s.At(t); r != nil {
			out.Add(*r)
		} else {
			out.Add(Record{Time: t})
		}
	}
	s.Records = out.Records
	s.index = out.index
}

// TrimPartialYears drops the first and/or last calendar year when the
// series does not cover it completely. Incomplete edge years would bias
// the average year toward their covered season.
func (s *Series) TrimPartialYears() {
	if len(s.Records) == 0 {
		return
	}
	first := s.Records[0].Time
	last := s.Records[len(s.Records)-1].Time

	dropFirst := !(first.Month() == time.January && first.Day() == 1 && first.Hour() == 0)
	dropLast := !(last.Month() == time.December && last.Day() == 31 && last.Hour() == 23)

	if !dropFirst && !dropLast {
		return
	}

	out := NewSeries(s.Station)
	for i := range s.Records {
		y := s.Records[i].Year()
		if dropFirst && y == first.Year() {
			continue
		}
		if dropLast && y == last.Year() {
			continue
		}
		out.Add(s.Records[i])
	}
	s.Records = out.Records
	s.index = out.index
}

// ptr returns a pointer to a copy of v. Loader and test helper.
func ptr(v float64) *float64 {
	p := new(float64)
	*p = v
	return p
}
