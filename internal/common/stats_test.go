package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatsCounters(t *testing.T) {
	s := NewStats()
	s.AddRows(10)
	s.AddRows(5)
	s.AddFlagged(3)
	s.AddBytes(2048)

	assert.Equal(t, uint64(15), s.GetRows())
	assert.Equal(t, uint64(3), s.GetFlagged())
	assert.Equal(t, uint64(2048), s.GetBytes())
}

func TestStatsReset(t *testing.T) {
	s := NewStats()
	s.AddRows(10)
	s.AddBytes(100)
	s.Reset()

	assert.Equal(t, uint64(0), s.GetRows())
	assert.Equal(t, uint64(0), s.GetBytes())
}
