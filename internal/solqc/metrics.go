// Package solqc provides solar irradiation QC utilities.
// This file contains model-vs-measurement error metrics, all expressed
// as a percentage of the measured mean.
package solqc

import "math"

// MBD is the mean bias deviation of model against measurement.
func MBD(model, measure []float64) float64 {
	if len(model) != len(measure) || len(model) == 0 {
		return math.NaN()
	}
	diff, meas := 0.0, 0.0
	for i := range model {
		diff += model[i] - measure[i]
		meas += measure[i]
	}
	return diff / meas * 100
}

// MAE is the mean absolute error of model against measurement.
func MAE(model, measure []float64) float64 {
	if len(model) != len(measure) || len(model) == 0 {
		return math.NaN()
	}
	diff, meas := 0.0, 0.0
	for i := range model {
		diff += math.Abs(model[i] - measure[i])
		meas += measure[i]
	}
	return diff / meas * 100
}

// RMSD is the root-mean-square deviation of model against measurement.
func RMSD(model, measure []float64) float64 {
	if len(model) != len(measure) || len(model) == 0 {
		return math.NaN()
	}
	sq, meas := 0.0, 0.0
	for i := range model {
		d := model[i] - measure[i]
		sq += d * d
		meas += measure[i]
	}
	n := float64(len(model))
	return math.Sqrt(sq/n) / (meas / n) * 100
}

// RelativeChange is the percent change of x against a reference.
func RelativeChange(x, ref float64) float64 {
	return (x - ref) / ref * 100
}

// PairedValues extracts aligned (aggregate, baseline) slices from an
// average-year table for metric computation, skipping positions where
// either side is missing.
func PairedValues(t *AvgTable, baseline func(*AvgRow) *float64) (model, measure []float64) {
	for i := range t.Rows {
		r := &t.Rows[i]
		b := baseline(r)
		if r.Qo == nil || b == nil {
			continue
		}
		model = append(model, *b)
		measure = append(measure, *r.Qo)
	}
	return model, measure
}
