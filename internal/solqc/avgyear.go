// Package solqc provides solar irradiation QC utilities.
// This file builds the average year: a synthetic single-year series
// aggregated over all observed years at each calendar position.
package solqc

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Statistic selects the central-tendency measure used to aggregate a
// calendar position across years.
type Statistic int

const (
	StatMean Statistic = iota
	StatMedian
)

func (st Statistic) String() string {
	if st == StatMedian {
		return "median"
	}
	return "mean"
}

// ParseStatistic parses a -stat flag value.
func ParseStatistic(s string) (Statistic, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mean":
		return StatMean, nil
	case "median":
		return StatMedian, nil
	}
	return StatMean, fmt.Errorf("unknown statistic %q (want mean or median)", s)
}

// Window is an inclusive date range removed by visual control before
// aggregation.
type Window struct {
	Start, End time.Time
}

// Contains reports whether t falls inside the window. End is extended
// to the last hour of its day.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End.AddDate(0, 0, 1))
}

// ParseWindows parses a comma-separated list of date ranges in the
// form 2006-01-02..2006-01-05 (single dates allowed).
func ParseWindows(s string) ([]Window, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var windows []Window
	for _, part := range strings.Split(s, ",") {
		bounds := strings.SplitN(part, "..", 2)
		start, err := time.Parse("2006-01-02", strings.TrimSpace(bounds[0]))
		if err != nil {
			return nil, fmt.Errorf("window %q: %w", part, err)
		}
		end := start
		if len(bounds) == 2 {
			end, err = time.Parse("2006-01-02", strings.TrimSpace(bounds[1]))
			if err != nil {
				return nil, fmt.Errorf("window %q: %w", part, err)
			}
		}
		if end.Before(start) {
			return nil, fmt.Errorf("window %q: end before start", part)
		}
		windows = append(windows, Window{Start: start.UTC(), End: end.UTC()})
	}
	return windows, nil
}

// Quality states of an average-year row.
const (
	QualityValid   = "valid"   // aggregated from at least one valid year
	QualityMissing = "missing" // no valid observation in any year
	QualityFilled  = "filled"  // gap filled from neighbouring hours
)

// AvgOptions controls the average-year build.
type AvgOptions struct {
	Statistic   Statistic
	KeepLeapDay bool     // keep Feb 29 as a calendar position
	FillGaps    bool     // fill empty positions from neighbours
	Windows     []Window // visual-control exclusions
}

// AvgRow is one calendar position of the average year. Nil aggregates
// mean "no data": a position can be legitimately zero (polar night)
// and must stay distinguishable from one that never had a valid hour.
type AvgRow struct {
	Month int
	Day   int
	Hour  int

	Qo       *float64 // aggregated measured irradiation
	ClearSky *float64 // aggregated clear-sky baseline
	Toa      *float64 // aggregated extraterrestrial baseline

	Years   int    // distinct years contributing to Qo
	Quality string // valid / missing / filled
}

// AvgTable is the average-year output: one row per calendar position
// in calendar order.
type AvgTable struct {
	Station string
	Rows    []AvgRow
}

type posAgg struct {
	qo     []float64
	years  map[int]bool
	csSum  float64
	csN    int
	toaSum float64
	toaN   int
}

// BuildAverageYear aggregates the series into an average year. A
// record contributes its qo when it passes the QC exclusion mask and
// falls outside every visual-control window; baselines aggregate over
// all hours where the simulation produced a value.
func BuildAverageYear(s *Series, cfg *Config, opts AvgOptions) *AvgTable {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	agg := make(map[int]*posAgg)
	get := func(k int) *posAgg {
		a, ok := agg[k]
		if !ok {
			a = &posAgg{years: make(map[int]bool)}
			agg[k] = a
		}
		return a
	}

	for i := range s.Records {
		r := &s.Records[i]
		k := posKey(r.Time)

		a := get(k)
		if r.ClearSky != nil {
			a.csSum += *r.ClearSky
			a.csN++
		}
		if r.Toa != nil {
			a.toaSum += *r.Toa
			a.toaN++
		}

		if inWindows(r.Time, opts.Windows) || !cfg.Valid(r) {
			continue
		}
		a.qo = append(a.qo, *r.Qo)
		a.years[r.Year()] = true
	}

	table := &AvgTable{Station: s.Station}
	for _, pos := range calendarPositions(opts.KeepLeapDay) {
		row := AvgRow{Month: pos.m, Day: pos.d, Hour: pos.h, Quality: QualityMissing}
		if a, ok := agg[pos.m*10000+pos.d*100+pos.h]; ok {
			if len(a.qo) > 0 {
				row.Qo = ptr(aggregate(a.qo, opts.Statistic))
				row.Years = len(a.years)
				row.Quality = QualityValid
			}
			if a.csN > 0 {
				row.ClearSky = ptr(a.csSum / float64(a.csN))
			}
			if a.toaN > 0 {
				row.Toa = ptr(a.toaSum / float64(a.toaN))
			}
		}
		table.Rows = append(table.Rows, row)
	}

	if opts.FillGaps {
		fillGaps(table)
	}
	return table
}

// MissingPositions returns the number of rows with no aggregate value.
func (t *AvgTable) MissingPositions() int {
	n := 0
	for i := range t.Rows {
		if t.Rows[i].Qo == nil {
			n++
		}
	}
	return n
}

func posKey(t time.Time) int {
	return int(t.Month())*10000 + t.Day()*100 + t.Hour()
}

func inWindows(t time.Time, windows []Window) bool {
	for _, w := range windows {
		if w.Contains(t) {
			return true
		}
	}
	return false
}

func aggregate(vals []float64, st Statistic) float64 {
	if st == StatMedian {
		sorted := append([]float64{}, vals...)
		sort.Float64s(sorted)
		mid := len(sorted) / 2
		if len(sorted)%2 == 1 {
			return sorted[mid]
		}
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

type calPos struct{ m, d, h int }

var daysInMonth = [13]int{0, 31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

func calendarPositions(leapDay bool) []calPos {
	var out []calPos
	for m := 1; m <= 12; m++ {
		days := daysInMonth[m]
		if m == 2 && leapDay {
			days = 29
		}
		for d := 1; d <= days; d++ {
			for h := 0; h < 24; h++ {
				out = append(out, calPos{m, d, h})
			}
		}
	}
	return out
}

// fillGaps replaces empty positions with the mean of the nearest
// preceding and following aggregates (the CM-SAF procedure). Runs at
// the edges take the single available neighbour.
func fillGaps(t *AvgTable) {
	n := len(t.Rows)
	ffill := make([]*float64, n)
	bfill := make([]*float64, n)

	var last *float64
	for i := 0; i < n; i++ {
		if t.Rows[i].Qo != nil {
			last = t.Rows[i].Qo
		}
		ffill[i] = last
	}
	last = nil
	for i := n - 1; i >= 0; i-- {
		if t.Rows[i].Qo != nil {
			last = t.Rows[i].Qo
		}
		bfill[i] = last
	}

	for i := 0; i < n; i++ {
		if t.Rows[i].Qo != nil {
			continue
		}
		switch {
		case ffill[i] != nil && bfill[i] != nil:
			t.Rows[i].Qo = ptr((*ffill[i] + *bfill[i]) / 2)
		case ffill[i] != nil:
			t.Rows[i].Qo = ptr(*ffill[i])
		case bfill[i] != nil:
			t.Rows[i].Qo = ptr(*bfill[i])
		default:
			continue
		}
		t.Rows[i].Quality = QualityFilled
	}
}
