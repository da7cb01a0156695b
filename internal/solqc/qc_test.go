package solqc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hourRec builds a record n hours after the series base time.
func hourRec(n int, qo, sza, toa, clearSky *float64) Record {
	base := time.Date(1995, 6, 1, 0, 0, 0, 0, time.UTC)
	return Record{
		Time:     base.Add(time.Duration(n) * time.Hour),
		Qo:       qo,
		Sza:      sza,
		Toa:      toa,
		ClearSky: clearSky,
	}
}

func seriesOf(records ...Record) *Series {
	s := NewSeries("test")
	for _, r := range records {
		s.Add(r)
	}
	return s
}

func TestApplyMissing(t *testing.T) {
	s := seriesOf(
		hourRec(0, nil, nil, nil, nil),
		hourRec(1, ptr(100), nil, nil, nil),
	)
	DefaultConfig().ApplyMissing(s)

	assert.True(t, s.Records[0].Flags.Has(FlagMissing))
	assert.False(t, s.Records[1].Flags.Has(FlagMissing))
}

func TestApplyRangeNegative(t *testing.T) {
	s := seriesOf(
		hourRec(0, ptr(-5), nil, nil, nil),
		hourRec(1, ptr(0), nil, nil, nil),
	)
	cfg := DefaultConfig()
	cfg.ApplyRange(s)

	assert.True(t, s.Records[0].Flags.Has(FlagNegative))
	assert.False(t, cfg.Valid(&s.Records[0]), "negative reading must not aggregate")
	assert.True(t, cfg.Valid(&s.Records[1]), "zero is a legitimate reading")
}

func TestApplyOffset(t *testing.T) {
	s := seriesOf(
		hourRec(0, ptr(10), ptr(95), nil, nil),  // bright at night
		hourRec(1, ptr(-20), ptr(40), nil, nil), // strongly negative
		hourRec(2, ptr(3), ptr(95), nil, nil),   // small nightly residual, fine
		hourRec(3, ptr(500), ptr(40), nil, nil), // daytime, fine
	)
	DefaultConfig().ApplyOffset(s)

	assert.True(t, s.Records[0].Flags.Has(FlagOffset))
	assert.True(t, s.Records[1].Flags.Has(FlagOffset))
	assert.False(t, s.Records[2].Flags.Has(FlagOffset))
	assert.False(t, s.Records[3].Flags.Has(FlagOffset))
}

func TestApplyUpperTOA(t *testing.T) {
	s := seriesOf(
		hourRec(0, ptr(1300), nil, ptr(1200), nil),
		hourRec(1, ptr(1100), nil, ptr(1200), nil),
	)
	DefaultConfig().ApplyUpperTOA(s)

	assert.True(t, s.Records[0].Flags.Has(FlagU1))
	assert.False(t, s.Records[1].Flags.Has(FlagU1))
}

func TestApplyUpperClearSky(t *testing.T) {
	s := seriesOf(
		hourRec(0, ptr(1101), ptr(30), nil, ptr(1000)), // over 1.1x ceiling
		hourRec(1, ptr(1050), ptr(30), nil, ptr(1000)), // within tolerance
		hourRec(2, ptr(1500), ptr(89), nil, ptr(1000)), // near horizon, relaxed
		hourRec(3, ptr(2100), ptr(89), nil, ptr(1000)), // over even the relaxed bound
	)
	DefaultConfig().ApplyUpperClearSky(s)

	assert.True(t, s.Records[0].Flags.Has(FlagU2))
	assert.False(t, s.Records[1].Flags.Has(FlagU2))
	assert.False(t, s.Records[2].Flags.Has(FlagU2))
	assert.True(t, s.Records[3].Flags.Has(FlagU2))
}

func TestApplyUpperClearSkyCustomTolerance(t *testing.T) {
	s := seriesOf(hourRec(0, ptr(1150), ptr(30), nil, ptr(1000)))
	cfg := DefaultConfig()
	cfg.ClearSkyTolerance = 1.2
	cfg.ApplyUpperClearSky(s)

	assert.False(t, s.Records[0].Flags.Has(FlagU2))
}

func TestApplyLowerBound(t *testing.T) {
	s := seriesOf(
		// bound = 1e-4 * (80-40) * 1000 = 4
		hourRec(0, ptr(1), ptr(40), ptr(1000), nil),
		hourRec(1, ptr(10), ptr(40), ptr(1000), nil),
		hourRec(2, ptr(0), ptr(85), ptr(100), nil), // past sza limit, skipped
	)
	DefaultConfig().ApplyLowerBound(s)

	assert.True(t, s.Records[0].Flags.Has(FlagL2))
	assert.False(t, s.Records[1].Flags.Has(FlagL2))
	assert.False(t, s.Records[2].Flags.Has(FlagL2))
}

func TestApplyLowerDailyMean(t *testing.T) {
	// Day one: covered sensor, clearness ~0.01 all day.
	// Day two: normal clearness.
	var records []Record
	for h := 8; h < 16; h++ {
		records = append(records, hourRec(h, ptr(10), ptr(60), ptr(1000), nil))
	}
	for h := 32; h < 40; h++ {
		records = append(records, hourRec(h, ptr(500), ptr(60), ptr(1000), nil))
	}
	s := seriesOf(records...)
	DefaultConfig().ApplyLowerDailyMean(s)

	assert.True(t, s.Records[0].Flags.Has(FlagL1))
	assert.True(t, s.Records[7].Flags.Has(FlagL1))
	assert.False(t, s.Records[8].Flags.Has(FlagL1))
}

func TestApplyStepChange(t *testing.T) {
	s := seriesOf(
		hourRec(0, ptr(100), ptr(60), ptr(1000), nil),
		hourRec(1, ptr(900), ptr(60), ptr(1000), nil), // clearness jumps 0.1 -> 0.9
		hourRec(2, ptr(850), ptr(60), ptr(1000), nil),
	)
	DefaultConfig().ApplyStepChange(s)

	assert.False(t, s.Records[0].Flags.Has(FlagDifference))
	assert.True(t, s.Records[1].Flags.Has(FlagDifference))
	assert.False(t, s.Records[2].Flags.Has(FlagDifference))
}

func TestApplyConsistency(t *testing.T) {
	// A suspiciously constant clearness ratio all day.
	var records []Record
	for h := 8; h < 16; h++ {
		records = append(records, hourRec(h, ptr(500), ptr(60), ptr(1000), nil))
	}
	s := seriesOf(records...)
	DefaultConfig().ApplyConsistency(s)

	for i := range s.Records {
		assert.True(t, s.Records[i].Flags.Has(FlagConsistency), "hour %d", i)
	}
}

func TestApplyConsistencyNormalDay(t *testing.T) {
	vals := []float64{200, 350, 500, 620, 640, 520, 380, 240}
	var records []Record
	for i, v := range vals {
		records = append(records, hourRec(8+i, ptr(v), ptr(60), ptr(1000), nil))
	}
	s := seriesOf(records...)
	DefaultConfig().ApplyConsistency(s)

	for i := range s.Records {
		assert.False(t, s.Records[i].Flags.Has(FlagConsistency), "hour %d", i)
	}
}

func TestZeroOut(t *testing.T) {
	s := seriesOf(
		hourRec(0, ptr(3.2), nil, ptr(0), nil), // nightly residual
		hourRec(1, nil, nil, ptr(0), nil),      // missing stays missing
		hourRec(2, ptr(400), nil, ptr(900), nil),
	)
	ZeroOut(s)

	assert.Equal(t, 0.0, *s.Records[0].Qo)
	assert.Nil(t, s.Records[1].Qo, "zero-out must never invent data")
	assert.Equal(t, 400.0, *s.Records[2].Qo)
}

func TestUnvalidatedIsNotInvalid(t *testing.T) {
	r := hourRec(0, ptr(500), nil, nil, nil)
	r.Flags |= FlagUnvalidated
	s := seriesOf(r)

	cfg := DefaultConfig()
	cfg.ApplyAll(s)

	// No bound test fired; the hour is only unvalidated.
	assert.Equal(t, FlagUnvalidated, s.Records[0].Flags)
	assert.False(t, cfg.Valid(&s.Records[0]))

	// An aggregation policy may choose to admit unvalidated hours.
	cfg.ExcludeFlags &^= FlagUnvalidated
	assert.True(t, cfg.Valid(&s.Records[0]))
}

func TestApplyAllScenario(t *testing.T) {
	s := seriesOf(
		hourRec(10, ptr(-5), ptr(50), ptr(1000), ptr(800)),
		hourRec(11, ptr(200), ptr(50), ptr(1000), ptr(800)),
		hourRec(12, nil, ptr(45), ptr(1100), ptr(900)),
	)
	cfg := DefaultConfig()
	cfg.ApplyAll(s)

	require.True(t, s.Records[0].Flags.Has(FlagNegative))
	assert.False(t, cfg.Valid(&s.Records[0]))
	assert.True(t, cfg.Valid(&s.Records[1]))
	assert.True(t, s.Records[2].Flags.Has(FlagMissing))
}

func TestFlagString(t *testing.T) {
	assert.Equal(t, "ok", Flag(0).String())
	assert.Equal(t, "missing|u2", (FlagMissing | FlagU2).String())
}
