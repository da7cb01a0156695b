// Package solqc provides solar irradiation QC utilities.
// This file summarizes QC results: flag tallies, erroneous-data
// percentages and gap listings for the run report.
package solqc

import (
	"fmt"
	"io"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
)

// FlagTally counts flagged hours per test.
type FlagTally struct {
	Missing     int
	Negative    int
	Offset      int
	U1          int
	U2          int
	L1          int
	L2          int
	Difference  int
	Consistency int
	Unvalidated int
}

func (t *FlagTally) add(f Flag) {
	if f.Has(FlagMissing) {
		t.Missing++
	}
	if f.Has(FlagNegative) {
		t.Negative++
	}
	if f.Has(FlagOffset) {
		t.Offset++
	}
	if f.Has(FlagU1) {
		t.U1++
	}
	if f.Has(FlagU2) {
		t.U2++
	}
	if f.Has(FlagL1) {
		t.L1++
	}
	if f.Has(FlagL2) {
		t.L2++
	}
	if f.Has(FlagDifference) {
		t.Difference++
	}
	if f.Has(FlagConsistency) {
		t.Consistency++
	}
	if f.Has(FlagUnvalidated) {
		t.Unvalidated++
	}
}

// Sum is the total count over all tests (an hour flagged by several
// tests counts once per test).
func (t *FlagTally) Sum() int {
	return t.Missing + t.Negative + t.Offset + t.U1 + t.U2 +
		t.L1 + t.L2 + t.Difference + t.Consistency + t.Unvalidated
}

// String renders the tally as one report line.
func (t *FlagTally) String() string {
	return fmt.Sprintf("missing=%d u1=%d u2=%d l1=%d l2=%d diff=%d neg=%d offset=%d cons=%d unval=%d",
		t.Missing, t.U1, t.U2, t.L1, t.L2, t.Difference,
		t.Negative, t.Offset, t.Consistency, t.Unvalidated)
}

// CountFlags tallies the whole series.
func CountFlags(s *Series) FlagTally {
	var t FlagTally
	for i := range s.Records {
		t.add(s.Records[i].Flags)
	}
	return t
}

// CountFlagsByYear tallies per calendar year.
func CountFlagsByYear(s *Series) map[int]*FlagTally {
	out := make(map[int]*FlagTally)
	for i := range s.Records {
		y := s.Records[i].Year()
		t, ok := out[y]
		if !ok {
			t = &FlagTally{}
			out[y] = t
		}
		t.add(s.Records[i].Flags)
	}
	return out
}

// CountFlagsByMonth tallies per calendar month across all years.
func CountFlagsByMonth(s *Series) map[time.Month]*FlagTally {
	out := make(map[time.Month]*FlagTally)
	for i := range s.Records {
		m := s.Records[i].Time.Month()
		t, ok := out[m]
		if !ok {
			t = &FlagTally{}
			out[m] = t
		}
		t.add(s.Records[i].Flags)
	}
	return out
}

// PESD is the percentage of erroneous sunlight data: the share of
// sunlit hours carrying at least one automatically excluding flag.
func PESD(s *Series, exclude Flag) float64 {
	sunlit, flagged := 0, 0
	for i := range s.Records {
		if !s.Records[i].Sunlit() {
			continue
		}
		sunlit++
		if s.Records[i].Flags.Has(exclude) {
			flagged++
		}
	}
	if sunlit == 0 {
		return 0
	}
	return float64(flagged) / float64(sunlit) * 100
}

// VisualShare is the percentage of hours flagged for visual control
// (offset and consistency suspects are reviewed, not auto-excluded).
func VisualShare(s *Series) float64 {
	if s.Len() == 0 {
		return 0
	}
	flagged := 0
	for i := range s.Records {
		if s.Records[i].Flags.Has(FlagOffset | FlagConsistency) {
			flagged++
		}
	}
	return float64(flagged) / float64(s.Len()) * 100
}

// Period is a closed interval of consecutive hours.
type Period struct {
	Start, End time.Time
}

// MissingPeriods lists runs of consecutive hours with no qo reading.
func MissingPeriods(s *Series) []Period {
	var periods []Period
	var open bool
	var start, last time.Time

	for i := range s.Records {
		r := &s.Records[i]
		if r.Qo == nil {
			if !open {
				start = r.Time
				open = true
			}
			last = r.Time
			continue
		}
		if open {
			periods = append(periods, Period{Start: start, End: last})
			open = false
		}
	}
	if open {
		periods = append(periods, Period{Start: start, End: last})
	}
	return periods
}

// =============================================================================
// Run summary
// =============================================================================

// RunSummary collects everything a run reports at the end.
type RunSummary struct {
	RunID   uuid.UUID
	Station string

	Rows        int
	Years       []int
	Align       AlignStats
	Tally       FlagTally
	ByYear      map[int]*FlagTally
	ByMonth     map[time.Month]*FlagTally
	Gaps        []Period
	PESD        float64
	VisualShare float64

	MissingPositions int // average-year rows without data
	Elapsed          time.Duration
}

// NewRunSummary starts a summary with a fresh run ID.
func NewRunSummary(station string) *RunSummary {
	return &RunSummary{RunID: uuid.New(), Station: station}
}

// Log prints the summary in the standard final-statistics block.
func (r *RunSummary) Log() {
	log.Println("=========================================================")
	log.Println("Final Statistics")
	log.Println("=========================================================")
	log.Printf("Run ID:        %s", r.RunID)
	log.Printf("Station:       %s", r.Station)
	log.Printf("Hours:         %d", r.Rows)
	log.Printf("Years:         %s", formatYears(r.Years))
	log.Printf("Unmatched obs: %d (no baseline, unvalidated)", r.Align.MissingBaseline)
	log.Printf("Extra baseline rows: %d (ignored)", r.Align.ExtraBaseline)
	log.Printf("Flagged:       %d marks (%s)", r.Tally.Sum(), r.Tally.String())
	log.Printf("PESD:          %.2f%%", r.PESD)
	log.Printf("Visual share:  %.2f%%", r.VisualShare)
	if r.MissingPositions > 0 {
		log.Printf("Warning: %d calendar positions have no valid data in any year", r.MissingPositions)
	}
	log.Printf("Elapsed:       %v", r.Elapsed.Round(time.Millisecond))
	log.Println("=========================================================")
}

// WriteReport writes the full run report: headline numbers, flag
// counts per year and per month, and the missing-data periods.
func (r *RunSummary) WriteReport(w io.Writer) {
	fmt.Fprintf(w, "Run ID:    %s\n", r.RunID)
	fmt.Fprintf(w, "Station:   %s\n", r.Station)
	fmt.Fprintf(w, "Hours:     %d\n", r.Rows)
	fmt.Fprintf(w, "Years:     %s\n", formatYears(r.Years))
	fmt.Fprintf(w, "Flags:     %d marks (%s)\n", r.Tally.Sum(), r.Tally.String())
	fmt.Fprintf(w, "PESD:      %.2f%%\n", r.PESD)
	fmt.Fprintf(w, "Visual:    %.2f%%\n", r.VisualShare)
	fmt.Fprintf(w, "Unmatched: %d obs without baseline, %d extra baseline rows\n",
		r.Align.MissingBaseline, r.Align.ExtraBaseline)
	fmt.Fprintf(w, "Elapsed:   %v\n", r.Elapsed.Round(time.Millisecond))

	if len(r.ByYear) > 0 {
		fmt.Fprintf(w, "\nFlags per year\n")
		years := make([]int, 0, len(r.ByYear))
		for y := range r.ByYear {
			years = append(years, y)
		}
		sort.Ints(years)
		for _, y := range years {
			fmt.Fprintf(w, "  %d: %s\n", y, r.ByYear[y].String())
		}
	}

	if len(r.ByMonth) > 0 {
		fmt.Fprintf(w, "\nFlags per month\n")
		for m := time.January; m <= time.December; m++ {
			t, ok := r.ByMonth[m]
			if !ok {
				continue
			}
			fmt.Fprintf(w, "  %s: %s\n", m.String()[:3], t.String())
		}
	}

	if len(r.Gaps) > 0 {
		fmt.Fprintf(w, "\nMissing periods (%d)\n", len(r.Gaps))
		for _, p := range r.Gaps {
			fmt.Fprintf(w, "  %s .. %s\n",
				p.Start.Format("2006-01-02 15:04"), p.End.Format("2006-01-02 15:04"))
		}
	}
}

func formatYears(years []int) string {
	if len(years) == 0 {
		return "none"
	}
	sorted := append([]int{}, years...)
	sort.Ints(sorted)
	if len(sorted) == 1 {
		return fmt.Sprintf("%d", sorted[0])
	}
	return fmt.Sprintf("%d-%d (%d years)", sorted[0], sorted[len(sorted)-1], len(sorted))
}
