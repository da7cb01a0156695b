// solqc-export - Average-year table export to Parquet
//
// Runs the QC and average-year pipeline for one or more stations and
// writes each table as a Parquet file for downstream analysis stacks.
//
// Build: CGO_ENABLED=0 go build -ldflags="-s -w" -o build/solqc-export ./cmd/solqc-export

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agrimet/solqc/internal/common"
	"github.com/agrimet/solqc/internal/solqc"
)

// Version can be overridden at build time via -ldflags
var Version = "1.0.0"

func main() {
	cfg := common.DefaultConfig()

	dataDir := flag.String("data-dir", cfg.DataDir, "Data directory root")
	outDir := flag.String("out-dir", "", "Parquet output directory (default <data-dir>/output)")
	stationsArg := flag.String("stations", "", "Comma-separated station names (required)")
	statName := flag.String("stat", "mean", "Aggregation statistic: mean or median")
	fillGaps := flag.Bool("fill-gaps", false, "Fill empty calendar positions from neighbouring hours")
	leapDay := flag.Bool("leap-day", false, "Keep Feb 29 in the average year")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "solqc-export v%s - Average-Year Parquet Exporter\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s -stations NAME[,NAME...] [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Writes avgyear_<station>.parquet per station.\n\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *stationsArg == "" {
		flag.Usage()
		log.Fatal("-stations is required")
	}
	cfg.DataDir = *dataDir
	if *outDir == "" {
		*outDir = cfg.OutputDir()
	}

	statistic, err := solqc.ParseStatistic(*statName)
	if err != nil {
		log.Fatalf("Invalid -stat: %v", err)
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("Cannot create output directory: %v", err)
	}

	log.Println("=========================================================")
	log.Printf("solqc-export v%s", Version)
	log.Println("=========================================================")

	startTime := time.Now()
	qcCfg := solqc.DefaultConfig()
	exported := 0

	for _, station := range strings.Split(*stationsArg, ",") {
		station = strings.TrimSpace(station)
		raw, toa, clearSky := cfg.StationFiles(station)

		series, err := solqc.LoadStationCSV(raw, station)
		if err != nil {
			log.Fatalf("[%s] Load failed: %v", station, err)
		}
		series.TrimPartialYears()

		if err := solqc.LoadTOA(toa, series); err != nil {
			log.Fatalf("[%s] TOA load failed: %v", station, err)
		}
		if _, err := solqc.LoadClearSky(clearSky, series); err != nil {
			log.Fatalf("[%s] Clear-sky load failed: %v", station, err)
		}

		qcCfg.ApplyAll(series)
		solqc.ZeroOut(series)

		table := solqc.BuildAverageYear(series, qcCfg, solqc.AvgOptions{
			Statistic:   statistic,
			KeepLeapDay: *leapDay,
			FillGaps:    *fillGaps,
		})

		out := filepath.Join(*outDir, fmt.Sprintf("avgyear_%s.parquet", station))
		if err := table.SaveParquet(out); err != nil {
			log.Fatalf("[%s] Parquet write failed: %v", station, err)
		}

		log.Printf("[%s] %d rows -> %s", station, len(table.Rows), out)
		exported++
	}

	elapsed := time.Since(startTime)

	log.Println()
	log.Println("=========================================================")
	log.Println("Final Statistics")
	log.Println("=========================================================")
	log.Printf("Stations: %d", exported)
	log.Printf("Elapsed:  %v", elapsed.Round(time.Millisecond))
	log.Println("=========================================================")
}
