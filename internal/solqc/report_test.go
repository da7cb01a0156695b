package solqc

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountFlags(t *testing.T) {
	s := seriesOf(
		hourRec(0, nil, nil, nil, nil),
		hourRec(1, ptr(-5), nil, nil, nil),
		hourRec(2, ptr(100), nil, nil, nil),
	)
	cfg := DefaultConfig()
	cfg.ApplyMissing(s)
	cfg.ApplyRange(s)

	tally := CountFlags(s)
	assert.Equal(t, 1, tally.Missing)
	assert.Equal(t, 1, tally.Negative)
	assert.Equal(t, 2, tally.Sum())
}

func TestCountFlagsByYear(t *testing.T) {
	s := seriesOf(
		atRec(1995, 3, 1, 12, nil, nil, nil, nil),
		atRec(1995, 3, 1, 13, nil, nil, nil, nil),
		atRec(1996, 3, 1, 12, ptr(100), nil, nil, nil),
	)
	DefaultConfig().ApplyMissing(s)

	byYear := CountFlagsByYear(s)
	require.Contains(t, byYear, 1995)
	require.Contains(t, byYear, 1996)
	assert.Equal(t, 2, byYear[1995].Missing)
	assert.Equal(t, 0, byYear[1996].Missing)
}

func TestCountFlagsByMonth(t *testing.T) {
	s := seriesOf(
		atRec(1995, 3, 1, 12, nil, nil, nil, nil),
		atRec(1996, 3, 1, 12, nil, nil, nil, nil),
		atRec(1995, 7, 1, 12, nil, nil, nil, nil),
	)
	DefaultConfig().ApplyMissing(s)

	byMonth := CountFlagsByMonth(s)
	assert.Equal(t, 2, byMonth[time.March].Missing)
	assert.Equal(t, 1, byMonth[time.July].Missing)
}

func TestPESD(t *testing.T) {
	s := seriesOf(
		hourRec(0, ptr(1300), ptr(40), ptr(1200), nil), // sunlit, over toa
		hourRec(1, ptr(600), ptr(40), ptr(1200), nil),  // sunlit, fine
		hourRec(2, ptr(0), ptr(100), ptr(0), nil),      // dark, ignored
	)
	cfg := DefaultConfig()
	cfg.ApplyUpperTOA(s)

	assert.InDelta(t, 50.0, PESD(s, cfg.ExcludeFlags), 1e-9)
}

func TestVisualShare(t *testing.T) {
	s := seriesOf(
		hourRec(0, ptr(10), ptr(95), nil, nil), // offset suspect
		hourRec(1, ptr(0), ptr(95), nil, nil),
	)
	DefaultConfig().ApplyOffset(s)

	assert.InDelta(t, 50.0, VisualShare(s), 1e-9)
}

func TestMissingPeriods(t *testing.T) {
	s := seriesOf(
		hourRec(0, ptr(1), nil, nil, nil),
		hourRec(1, nil, nil, nil, nil),
		hourRec(2, nil, nil, nil, nil),
		hourRec(3, ptr(1), nil, nil, nil),
		hourRec(4, nil, nil, nil, nil),
	)

	periods := MissingPeriods(s)
	require.Len(t, periods, 2)

	base := time.Date(1995, 6, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, base.Add(1*time.Hour), periods[0].Start)
	assert.Equal(t, base.Add(2*time.Hour), periods[0].End)
	assert.Equal(t, base.Add(4*time.Hour), periods[1].Start)
	assert.Equal(t, base.Add(4*time.Hour), periods[1].End)
}

func TestWriteReport(t *testing.T) {
	s := seriesOf(
		atRec(1995, 3, 1, 12, nil, nil, nil, nil),
		atRec(1995, 3, 1, 13, ptr(100), nil, nil, nil),
		atRec(1996, 7, 1, 12, nil, nil, nil, nil),
	)
	DefaultConfig().ApplyMissing(s)

	sum := NewRunSummary("Aas")
	sum.Rows = s.Len()
	sum.Years = s.Years()
	sum.Tally = CountFlags(s)
	sum.ByYear = CountFlagsByYear(s)
	sum.ByMonth = CountFlagsByMonth(s)
	sum.Gaps = MissingPeriods(s)

	var buf bytes.Buffer
	sum.WriteReport(&buf)
	out := buf.String()

	assert.Contains(t, out, "Station:   Aas")
	assert.Contains(t, out, "Flags per year")
	assert.Contains(t, out, "1995: missing=1")
	assert.Contains(t, out, "1996: missing=1")
	assert.Contains(t, out, "Flags per month")
	assert.Contains(t, out, "Mar: missing=1")
	assert.Contains(t, out, "Jul: missing=1")
	assert.Contains(t, out, "Missing periods (2)")
	assert.Contains(t, out, "1995-03-01 12:00 .. 1995-03-01 12:00")
}

func TestRunSummaryIDs(t *testing.T) {
	a := NewRunSummary("Aas")
	b := NewRunSummary("Aas")
	assert.NotEqual(t, a.RunID, b.RunID)
	assert.Equal(t, "Aas", a.Station)
}
