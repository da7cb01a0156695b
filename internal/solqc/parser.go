// Package solqc provides solar irradiation QC utilities.
// This file contains the station CSV and baseline file loaders.
package solqc

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/pgzip"
)

// Instruments occasionally record +-6999 instead of leaving the value
// out. Treated as "not available" on load.
const sentinelValue = 6999

// =============================================================================
// Errors
// =============================================================================

// DataFormatError reports an input file that cannot be used: required
// columns absent, unparseable timestamps or values. Fatal, the run
// aborts without partial output.
type DataFormatError struct {
	File string
	Line int
	Msg  string
}

func (e *DataFormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Msg)
}

// AlignStats counts the outcome of joining baseline files onto the
// observation series. Misses are reported, never silently dropped.
type AlignStats struct {
	Matched         int // baseline rows joined onto an observation hour
	MissingBaseline int // observation hours left without a baseline
	ExtraBaseline   int // baseline rows with no observation hour
}

// =============================================================================
// Compressed input
// =============================================================================

// openSeriesFile opens the main station series, using parallel gzip
// decompression for .gz archives (multi-year hourly files get large).
func openSeriesFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	gz, err := pgzip.NewReaderN(f, 256*1024, runtime.NumCPU())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("gzip open %s: %w", path, err)
	}
	return &wrappedReadCloser{r: gz, closers: []io.Closer{gz, f}}, nil
}

// openAuxFile opens a baseline file (single-year scale, stream gzip).
func openAuxFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("gzip open %s: %w", path, err)
	}
	return &wrappedReadCloser{r: gz, closers: []io.Closer{gz, f}}, nil
}

type wrappedReadCloser struct {
	r       io.Reader
	closers []io.Closer
}

func (w *wrappedReadCloser) Read(p []byte) (int, error) { return w.r.Read(p) }

func (w *wrappedReadCloser) Close() error {
	var first error
	for _, c := range w.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// =============================================================================
// Station CSV
// =============================================================================

// Required columns in the raw station CSV.
const (
	colTime = "time_measured"
	colQo   = "qo"
)

// LoadStationCSV reads a raw station file: semicolon-delimited with a
// header naming at least time_measured and qo, day-first timestamps,
// one row per hour. The series is regularized to a strict hourly
// frequency so gaps in the file become explicit missing hours.
func LoadStationCSV(path, station string) (*Series, error) {
	rc, err := openSeriesFile(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	reader := csv.NewReader(rc)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, &DataFormatError{File: path, Msg: fmt.Sprintf("cannot read header: %v", err)}
	}

	timeIdx, qoIdx := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(strings.ToLower(name)) {
		case colTime:
			timeIdx = i
		case colQo:
			qoIdx = i
		}
	}
	if timeIdx < 0 || qoIdx < 0 {
		return nil, &DataFormatError{File: path,
			Msg: fmt.Sprintf("required columns %q and %q not found in header %v", colTime, colQo, header)}
	}

	s := NewSeries(station)
	line := 1
	var prev time.Time

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, &DataFormatError{File: path, Line: line, Msg: fmt.Sprintf("csv: %v", err)}
		}
		if len(record) <= timeIdx || len(record) <= qoIdx {
			return nil, &DataFormatError{File: path, Line: line,
				Msg: fmt.Sprintf("row has %d columns, need %d", len(record), max(timeIdx, qoIdx)+1)}
		}

		t, err := parseTimestamp(record[timeIdx])
		if err != nil {
			return nil, &DataFormatError{File: path, Line: line, Msg: err.Error()}
		}
		if !prev.IsZero() && !t.After(prev) {
			return nil, &DataFormatError{File: path, Line: line,
				Msg: fmt.Sprintf("timestamps not strictly increasing at %s", t.Format(time.RFC3339))}
		}
		prev = t

		qo, err := parseValue(record[qoIdx])
		if err != nil {
			return nil, &DataFormatError{File: path, Line: line, Msg: fmt.Sprintf("qo: %v", err)}
		}

		s.Add(Record{Time: t, Qo: qo})
	}

	if s.Len() == 0 {
		return nil, &DataFormatError{File: path, Msg: "no data rows"}
	}

	s.Regularize()
	return s, nil
}

// =============================================================================
// Baseline files
// =============================================================================

// LoadTOA attaches extraterrestrial irradiation to the series. The toa
// file is headerless, one value per hour, aligned positionally with
// the regularized series (the simulation is generated to match the
// station period exactly).
func LoadTOA(path string, s *Series) error {
	rc, err := openAuxFile(path)
	if err != nil {
		return err
	}
	defer rc.Close()

	scanner := bufio.NewScanner(rc)
	i := 0
	line := 0
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		line++
		if text == "" {
			continue
		}
		if i >= s.Len() {
			return &DataFormatError{File: path, Line: line,
				Msg: fmt.Sprintf("more toa values than observation hours (%d)", s.Len())}
		}
		v, err := parseValue(strings.TrimSuffix(text, ";"))
		if err != nil {
			return &DataFormatError{File: path, Line: line, Msg: fmt.Sprintf("toa: %v", err)}
		}
		s.Records[i].Toa = v
		i++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if i != s.Len() {
		return &DataFormatError{File: path,
			Msg: fmt.Sprintf("toa has %d values, series has %d hours", i, s.Len())}
	}
	return nil
}

// LoadClearSky joins the clear-sky simulation onto the series by
// timestamp. Format: whitespace-delimited rows of timestamp, solar
// zenith angle, clear-sky irradiation. Hours without a matching
// baseline are flagged unvalidated and counted, not dropped.
func LoadClearSky(path string, s *Series) (*AlignStats, error) {
	rc, err := openAuxFile(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	scanner := bufio.NewScanner(rc)
	line := 0
	matched := make(map[int64]bool)
	stats := &AlignStats{}

	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		line++
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Fields(text)
		if len(fields) < 3 {
			return nil, &DataFormatError{File: path, Line: line,
				Msg: fmt.Sprintf("need timestamp, sza, clear-sky; got %d fields", len(fields))}
		}

		// Timestamps with a space take two fields ("02.01.1995 13:00").
		tsText := strings.Join(fields[:len(fields)-2], " ")
		t, err := parseTimestamp(tsText)
		if err != nil {
			return nil, &DataFormatError{File: path, Line: line, Msg: err.Error()}
		}

		sza, err := parseValue(fields[len(fields)-2])
		if err != nil {
			return nil, &DataFormatError{File: path, Line: line, Msg: fmt.Sprintf("sza: %v", err)}
		}
		cs, err := parseValue(fields[len(fields)-1])
		if err != nil {
			return nil, &DataFormatError{File: path, Line: line, Msg: fmt.Sprintf("clear-sky: %v", err)}
		}

		r := s.At(t)
		if r == nil {
			stats.ExtraBaseline++
			continue
		}
		r.Sza = sza
		r.ClearSky = cs
		matched[t.Unix()] = true
		stats.Matched++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	for i := range s.Records {
		if !matched[s.Records[i].Time.Unix()] {
			s.Records[i].Flags |= FlagUnvalidated
			stats.MissingBaseline++
		}
	}
	return stats, nil
}

// =============================================================================
// Field parsing
// =============================================================================

// Accepted timestamp layouts. Station exports use day-first dates.
var timestampLayouts = []string{
	"02.01.2006 15:04",
	"02.01.2006 15:04:05",
	"02/01/2006 15:04",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"02.01.2006",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

// parseValue parses a measurement field. Empty fields, NA markers and
// the +-6999 instrument sentinel all map to nil, never to zero.
func parseValue(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "na", "nan", "null":
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid value %q", s)
	}
	if math.IsNaN(v) || math.Abs(v) == sentinelValue {
		return nil, nil
	}
	return ptr(v), nil
}
