// Package solqc provides solar irradiation QC utilities.
// This file writes the average-year table to CSV and Parquet.
package solqc

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/parquet-go/parquet-go"
)

// missingMarker is the explicit "no data" token in CSV output. A bare
// zero would be indistinguishable from a dark-season reading.
const missingMarker = "NA"

// WriteCSV writes the table as comma-delimited text, one row per
// calendar position.
func (t *AvgTable) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	header := []string{"month", "day", "hour", "qo_avg", "clear_sky_avg", "toa_avg", "years", "quality"}
	if err := cw.Write(header); err != nil {
		return err
	}

	for i := range t.Rows {
		r := &t.Rows[i]
		record := []string{
			strconv.Itoa(r.Month),
			strconv.Itoa(r.Day),
			strconv.Itoa(r.Hour),
			formatOptional(r.Qo),
			formatOptional(r.ClearSky),
			formatOptional(r.Toa),
			strconv.Itoa(r.Years),
			r.Quality,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// SaveCSV writes the table to a file.
func (t *AvgTable) SaveCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := t.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func formatOptional(v *float64) string {
	if v == nil {
		return missingMarker
	}
	return strconv.FormatFloat(*v, 'f', 3, 64)
}

// avgParquetRow matches the Parquet schema for average-year output.
// Optional aggregates map to nullable columns.
type avgParquetRow struct {
	Station  string   `parquet:"station"`
	Month    int32    `parquet:"month"`
	Day      int32    `parquet:"day"`
	Hour     int32    `parquet:"hour"`
	Qo       *float64 `parquet:"qo_avg,optional"`
	ClearSky *float64 `parquet:"clear_sky_avg,optional"`
	Toa      *float64 `parquet:"toa_avg,optional"`
	Years    int32    `parquet:"years"`
	Quality  string   `parquet:"quality"`
}

// WriteParquet writes the table as a Parquet file for downstream
// analysis stacks.
func (t *AvgTable) WriteParquet(w io.Writer) error {
	pw := parquet.NewGenericWriter[avgParquetRow](w)

	rows := make([]avgParquetRow, 0, len(t.Rows))
	for i := range t.Rows {
		r := &t.Rows[i]
		rows = append(rows, avgParquetRow{
			Station:  t.Station,
			Month:    int32(r.Month),
			Day:      int32(r.Day),
			Hour:     int32(r.Hour),
			Qo:       r.Qo,
			ClearSky: r.ClearSky,
			Toa:      r.Toa,
			Years:    int32(r.Years),
			Quality:  r.Quality,
		})
	}

	if _, err := pw.Write(rows); err != nil {
		pw.Close()
		return fmt.Errorf("parquet write: %w", err)
	}
	return pw.Close()
}

// SaveParquet writes the table to a Parquet file on disk.
func (t *AvgTable) SaveParquet(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := t.WriteParquet(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
