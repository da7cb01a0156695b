package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrimet/solqc/internal/solqc"
)

func TestObsBatchMissingQo(t *testing.T) {
	b := NewObsBatch()
	rec := solqc.Record{Time: time.Date(1995, 6, 1, 12, 0, 0, 0, time.UTC)}

	// No QC battery ran, Flags is empty: the batch still has to mark
	// the absent reading so it cannot read back as a measured zero.
	b.AddRecord("Aas", &rec)

	require.Equal(t, 1, b.Len())
	assert.Equal(t, float32(0), b.Qo.Row(0))
	assert.True(t, solqc.Flag(b.Flags.Row(0)).Has(solqc.FlagMissing))
}

func TestObsBatchMeasuredZero(t *testing.T) {
	b := NewObsBatch()
	qo := 0.0
	rec := solqc.Record{Time: time.Date(1995, 6, 1, 0, 0, 0, 0, time.UTC), Qo: &qo}

	b.AddRecord("Aas", &rec)

	require.Equal(t, 1, b.Len())
	assert.Equal(t, float32(0), b.Qo.Row(0))
	assert.False(t, solqc.Flag(b.Flags.Row(0)).Has(solqc.FlagMissing))
}

func TestObsBatchReset(t *testing.T) {
	b := NewObsBatch()
	qo := 450.0
	rec := solqc.Record{Time: time.Date(1995, 6, 1, 12, 0, 0, 0, time.UTC), Qo: &qo}

	b.AddRecord("Aas", &rec)
	require.Equal(t, 1, b.Len())

	b.Reset()
	assert.Equal(t, 0, b.Len())
}
