// Package solqc provides solar irradiation QC utilities.
// This file contains the automatic quality-control tests.
//
// Every test marks suspect hours with a flag bit, nothing is removed.
// Offset and Consistency route to visual control instead of automatic
// exclusion, matching how the test battery was calibrated.
package solqc

import (
	"math"
	"time"
)

// Config holds the QC thresholds. The clear-sky tolerance and the
// central statistic used downstream are deliberate knobs, not fixed
// rules; defaults follow the calibration on the Bioforsk stations.
type Config struct {
	NightSza       float64 // sza above which the hour counts as night
	OffsetNightMax float64 // max plausible nightly qo
	OffsetNegMin   float64 // min plausible qo before offset suspicion

	ClearSkyTolerance float64 // qo ceiling as multiple of clear-sky
	ClearSkyHighSza   float64 // sza from which the relaxed tolerance applies
	ClearSkyHighTol   float64 // relaxed multiple near the horizon

	L1MinDailyRatio float64 // min daily mean of qo/toa during sunlight
	L2SzaLimit      float64 // sza limit for the lower-bound test

	DiffLimit float64 // max step change of qo/toa between hours
	DiffSza   float64 // sza limit for the step-change test

	ConsistencyLowDiv float64 // daily std must exceed mean divided by this
	ConsistencyMax    float64 // daily std upper bound

	// ExcludeFlags marks an hour invalid for aggregation.
	ExcludeFlags Flag
}

// DefaultConfig returns the thresholds used in the station studies.
func DefaultConfig() *Config {
	return &Config{
		NightSza:          93,
		OffsetNightMax:    6,
		OffsetNegMin:      -12,
		ClearSkyTolerance: 1.1,
		ClearSkyHighSza:   88,
		ClearSkyHighTol:   2.0,
		L1MinDailyRatio:   0.03,
		L2SzaLimit:        80,
		DiffLimit:         0.75,
		DiffSza:           80,
		ConsistencyLowDiv: 16,
		ConsistencyMax:    0.80,
		ExcludeFlags: FlagMissing | FlagNegative | FlagU1 | FlagU2 |
			FlagL1 | FlagL2 | FlagDifference | FlagUnvalidated,
	}
}

// Valid reports whether the record may contribute to aggregation.
func (c *Config) Valid(r *Record) bool {
	return r.Qo != nil && !r.Flags.Has(c.ExcludeFlags)
}

// ApplyAll runs the full test battery in calibration order.
func (c *Config) ApplyAll(s *Series) {
	c.ApplyMissing(s)
	c.ApplyRange(s)
	c.ApplyOffset(s)
	c.ApplyUpperTOA(s)
	c.ApplyUpperClearSky(s)
	c.ApplyLowerDailyMean(s)
	c.ApplyLowerBound(s)
	c.ApplyStepChange(s)
	c.ApplyConsistency(s)
}

// ApplyMissing flags hours with no recorded qo.
func (c *Config) ApplyMissing(s *Series) {
	for i := range s.Records {
		if s.Records[i].Qo == nil {
			s.Records[i].Flags |= FlagMissing
		}
	}
}

// ApplyRange flags physically impossible negative readings.
func (c *Config) ApplyRange(s *Series) {
	for i := range s.Records {
		r := &s.Records[i]
		if r.Qo != nil && *r.Qo < 0 {
			r.Flags |= FlagNegative
		}
	}
}

// ApplyOffset flags instrument offset suspects: non-trivial readings
// deep into the night, or strongly negative readings.
func (c *Config) ApplyOffset(s *Series) {
	for i := range s.Records {
		r := &s.Records[i]
		if r.Qo == nil {
			continue
		}
		if *r.Qo < c.OffsetNegMin {
			r.Flags |= FlagOffset
			continue
		}
		if r.Sza != nil && *r.Sza > c.NightSza && *r.Qo > c.OffsetNightMax {
			r.Flags |= FlagOffset
		}
	}
}

// ApplyUpperTOA flags hours where the measurement exceeds the
// extraterrestrial irradiation (U1).
func (c *Config) ApplyUpperTOA(s *Series) {
	for i := range s.Records {
		r := &s.Records[i]
		if r.Qo != nil && r.Toa != nil && *r.Qo > *r.Toa {
			r.Flags |= FlagU1
		}
	}
}

// ApplyUpperClearSky flags hours where the measurement exceeds the
// clear-sky ceiling by more than the configured tolerance (U2). Near
// the horizon the clear-sky model is weak, so a relaxed multiple
// applies there.
func (c *Config) ApplyUpperClearSky(s *Series) {
	for i := range s.Records {
		r := &s.Records[i]
		if r.Qo == nil || r.ClearSky == nil {
			continue
		}
		tol := c.ClearSkyTolerance
		if r.Sza != nil && *r.Sza >= c.ClearSkyHighSza {
			tol = c.ClearSkyHighTol
		}
		if *r.Qo > tol**r.ClearSky {
			r.Flags |= FlagU2
		}
	}
}

// ApplyLowerDailyMean flags all sunlight hours of days whose mean
// clearness (qo/toa) is implausibly low (L1). A day of near-zero
// readings under a bright model sky points at a covered sensor.
func (c *Config) ApplyLowerDailyMean(s *Series) {
	days := dailyClearness(s)
	for i := range s.Records {
		r := &s.Records[i]
		if !r.Sunlit() {
			continue
		}
		d, ok := days[dayKey(r)]
		if !ok || d.n == 0 {
			continue
		}
		if d.mean() < c.L1MinDailyRatio {
			r.Flags |= FlagL1
		}
	}
}

// ApplyLowerBound flags hours under a zenith-angle-scaled minimum (L2).
func (c *Config) ApplyLowerBound(s *Series) {
	for i := range s.Records {
		r := &s.Records[i]
		if r.Qo == nil || r.Sza == nil || r.Toa == nil {
			continue
		}
		if *r.Sza > c.L2SzaLimit {
			continue
		}
		if *r.Qo < 1e-4*(c.L2SzaLimit-*r.Sza)**r.Toa {
			r.Flags |= FlagL2
		}
	}
}

// ApplyStepChange flags extreme hour-to-hour jumps in clearness.
// Only truly consecutive hours are compared.
func (c *Config) ApplyStepChange(s *Series) {
	prev := math.NaN()
	var prevTime time.Time
	for i := range s.Records {
		r := &s.Records[i]
		cur := math.NaN()
		if r.Qo != nil && r.Toa != nil && *r.Toa > 0 {
			cur = *r.Qo / *r.Toa
		}
		if !math.IsNaN(prev) && !math.IsNaN(cur) &&
			r.Time.Sub(prevTime) == time.Hour &&
			r.Sza != nil && *r.Sza < c.DiffSza &&
			math.Abs(cur-prev) >= c.DiffLimit {
			r.Flags |= FlagDifference
		}
		prev = cur
		prevTime = r.Time
	}
}

// ApplyConsistency flags days whose clearness spread is out of bounds:
// an almost constant ratio or a wildly scattered one, both pointing at
// instrument trouble rather than weather.
func (c *Config) ApplyConsistency(s *Series) {
	days := dailyClearness(s)
	for i := range s.Records {
		r := &s.Records[i]
		if !r.Sunlit() {
			continue
		}
		d, ok := days[dayKey(r)]
		if !ok || d.n < 2 {
			continue
		}
		std := d.std()
		if std < d.mean()/c.ConsistencyLowDiv || std > c.ConsistencyMax {
			r.Flags |= FlagConsistency
		}
	}
}

// ZeroOut sets qo to zero for dark hours (toa == 0): any residual
// reading there is instrument noise, and the dark season must enter
// the average as a true zero rather than noise or a gap.
func ZeroOut(s *Series) {
	for i := range s.Records {
		r := &s.Records[i]
		if r.Toa != nil && *r.Toa == 0 && r.Qo != nil && *r.Qo != 0 {
			r.Qo = ptr(0)
		}
	}
}

// =============================================================================
// Daily clearness statistics
// =============================================================================

type dayStats struct {
	sum, sumSq float64
	n          int
}

func (d *dayStats) add(v float64) {
	d.sum += v
	d.sumSq += v * v
	d.n++
}

func (d *dayStats) mean() float64 {
	if d.n == 0 {
		return math.NaN()
	}
	return d.sum / float64(d.n)
}

// std is the sample standard deviation of the day's clearness values.
func (d *dayStats) std() float64 {
	if d.n < 2 {
		return math.NaN()
	}
	m := d.mean()
	return math.Sqrt((d.sumSq - float64(d.n)*m*m) / float64(d.n-1))
}

func dayKey(r *Record) int {
	return r.Time.Year()*10000 + int(r.Time.Month())*100 + r.Time.Day()
}

// dailyClearness aggregates qo/toa per day over sunlight hours.
func dailyClearness(s *Series) map[int]*dayStats {
	days := make(map[int]*dayStats)
	for i := range s.Records {
		r := &s.Records[i]
		if !r.Sunlit() || r.Qo == nil {
			continue
		}
		k := dayKey(r)
		d, ok := days[k]
		if !ok {
			d = &dayStats{}
			days[k] = d
		}
		d.add(*r.Qo / *r.Toa)
	}
	return days
}
