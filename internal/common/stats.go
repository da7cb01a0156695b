package common

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Stats holds atomic counters for pipeline telemetry.
type Stats struct {
	RowsLoaded  uint64 // hours read from input files
	RowsFlagged uint64 // QC marks set
	BytesRead   uint64 // raw input bytes consumed

	// Internal state for reporter
	running  atomic.Bool
	stopCh   chan struct{}
	silent   bool
	lastRows uint64
	lastTime time.Time
}

// NewStats creates a new Stats instance.
func NewStats() *Stats {
	return &Stats{stopCh: make(chan struct{})}
}

// AddRows atomically increments the loaded-rows counter.
func (s *Stats) AddRows(count uint64) {
	atomic.AddUint64(&s.RowsLoaded, count)
}

// AddFlagged atomically increments the QC-marks counter.
func (s *Stats) AddFlagged(count uint64) {
	atomic.AddUint64(&s.RowsFlagged, count)
}

// AddBytes atomically increments the bytes-read counter.
func (s *Stats) AddBytes(count uint64) {
	atomic.AddUint64(&s.BytesRead, count)
}

// GetRows atomically reads the loaded-rows counter.
func (s *Stats) GetRows() uint64 {
	return atomic.LoadUint64(&s.RowsLoaded)
}

// GetFlagged atomically reads the QC-marks counter.
func (s *Stats) GetFlagged() uint64 {
	return atomic.LoadUint64(&s.RowsFlagged)
}

// GetBytes atomically reads the bytes-read counter.
func (s *Stats) GetBytes() uint64 {
	return atomic.LoadUint64(&s.BytesRead)
}

// SetSilent enables or disables silent mode.
func (s *Stats) SetSilent(silent bool) {
	s.silent = silent
}

// StartReporter starts a background goroutine that prints progress
// every 500ms using newline-based output to avoid conflicts with
// log.Printf.
func (s *Stats) StartReporter() {
	if s.running.Load() {
		return // Already running
	}

	s.running.Store(true)
	s.lastTime = time.Now()
	s.lastRows = 0

	go s.reporterLoop()
}

// StopReporter stops the background reporter goroutine.
func (s *Stats) StopReporter() {
	if !s.running.Load() {
		return
	}

	s.running.Store(false)
	close(s.stopCh)
}

func (s *Stats) reporterLoop() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.printStatus()
		}
	}
}

func (s *Stats) printStatus() {
	if s.silent {
		return
	}

	now := time.Now()
	elapsed := now.Sub(s.lastTime).Seconds()
	if elapsed < 0.001 {
		// Avoid division by zero on first tick
		return
	}

	currentRows := s.GetRows()
	deltaRows := currentRows - s.lastRows
	krps := float64(deltaRows) / 1000 / elapsed

	fmt.Printf("[Progress] Rows: %d | Rate: %.1f krows/s | Flagged: %d\n",
		currentRows, krps, s.GetFlagged())

	s.lastRows = currentRows
	s.lastTime = now
}

// Reset resets all counters (useful for testing).
func (s *Stats) Reset() {
	atomic.StoreUint64(&s.RowsLoaded, 0)
	atomic.StoreUint64(&s.RowsFlagged, 0)
	atomic.StoreUint64(&s.BytesRead, 0)
	s.lastRows = 0
	s.lastTime = time.Now()
}
