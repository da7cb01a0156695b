// solqc-run - Station QC and average-year pipeline
//
// Loads one station's hourly irradiation series plus the simulated
// clear-sky and extraterrestrial baselines, runs the automatic QC
// test battery, builds the average year and writes it as CSV.
//
// Build: CGO_ENABLED=0 go build -ldflags="-s -w" -o build/solqc-run ./cmd/solqc-run

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/agrimet/solqc/internal/common"
	"github.com/agrimet/solqc/internal/solqc"
)

// Version can be overridden at build time via -ldflags
var Version = "1.0.0"

func main() {
	// Local overrides for data dirs and ClickHouse credentials
	_ = godotenv.Load()

	cfg := common.DefaultConfig()

	station := flag.String("station", "", "Station name (required)")
	dataDir := flag.String("data-dir", cfg.DataDir, "Data directory root")
	rawFile := flag.String("raw", "", "Raw station CSV (default <data-dir>/raw_data/<station>.csv)")
	toaFile := flag.String("toa", "", "Extraterrestrial file (default <data-dir>/toa/<station>toa.csv)")
	clearFile := flag.String("clear-sky", "", "Clear-sky file (default <data-dir>/clear_sky/<station>clear.txt)")
	outFile := flag.String("out", "", "Output CSV path (default <data-dir>/output/avgyear_<station>.csv)")
	statName := flag.String("stat", "mean", "Aggregation statistic: mean or median")
	tolerance := flag.Float64("tolerance", 1.1, "Clear-sky ceiling tolerance multiple")
	windowsArg := flag.String("exclude", "", "Visual-control windows, e.g. 1995-05-25..1995-05-25,1996-02-01..1996-02-03")
	fillGaps := flag.Bool("fill-gaps", false, "Fill empty calendar positions from neighbouring hours")
	leapDay := flag.Bool("leap-day", false, "Keep Feb 29 in the average year")
	keepPartial := flag.Bool("keep-partial-years", false, "Keep incomplete first/last years")
	noQC := flag.Bool("no-qc", false, "Skip the automatic QC tests")
	silent := flag.Bool("silent", false, "Suppress progress output")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "solqc-run v%s - Average-Year Irradiation Pipeline\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s -station NAME [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Runs the automatic QC battery over one station's hourly series\n")
		fmt.Fprintf(os.Stderr, "and aggregates it into an average year (one row per calendar hour).\n\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *station == "" {
		flag.Usage()
		log.Fatal("-station is required")
	}
	cfg.DataDir = *dataDir

	raw, toa, clearSky := cfg.StationFiles(*station)
	if *rawFile != "" {
		raw = *rawFile
	}
	if *toaFile != "" {
		toa = *toaFile
	}
	if *clearFile != "" {
		clearSky = *clearFile
	}
	out := *outFile
	if out == "" {
		out = filepath.Join(cfg.OutputDir(), fmt.Sprintf("avgyear_%s.csv", *station))
	}

	statistic, err := solqc.ParseStatistic(*statName)
	if err != nil {
		log.Fatalf("Invalid -stat: %v", err)
	}
	windows, err := solqc.ParseWindows(*windowsArg)
	if err != nil {
		log.Fatalf("Invalid -exclude: %v", err)
	}

	log.Println("=========================================================")
	log.Printf("solqc-run v%s", Version)
	log.Println("=========================================================")
	log.Printf("Station:   %s", *station)

	// Station metadata is optional, but a stations.yaml that exists and
	// does not know the station points at a typo.
	info, known, err := common.ResolveStation(cfg.StationsFile(), *station)
	if err != nil {
		log.Fatalf("Station lookup failed: %v", err)
	}
	if known {
		log.Printf("Location:  %.3fN %.3fE %.1fm (id %d)",
			info.Latitude, info.Longitude, info.Altitude, info.ID)
	}

	log.Printf("Raw:       %s", raw)
	log.Printf("TOA:       %s", toa)
	log.Printf("Clear-sky: %s", clearSky)
	log.Printf("Statistic: %s | Tolerance: %.2f", statistic, *tolerance)

	startTime := time.Now()
	stats := common.NewStats()
	stats.SetSilent(*silent)
	stats.StartReporter()

	summary := solqc.NewRunSummary(*station)

	series, err := solqc.LoadStationCSV(raw, *station)
	if err != nil {
		log.Fatalf("Load failed: %v", err)
	}
	if !*keepPartial {
		series.TrimPartialYears()
	}
	stats.AddRows(uint64(series.Len()))
	stats.AddBytes(fileSize(raw))
	log.Printf("[%s] %d hours loaded", filepath.Base(raw), series.Len())

	if err := solqc.LoadTOA(toa, series); err != nil {
		log.Fatalf("TOA load failed: %v", err)
	}
	align, err := solqc.LoadClearSky(clearSky, series)
	if err != nil {
		log.Fatalf("Clear-sky load failed: %v", err)
	}
	stats.AddBytes(fileSize(toa) + fileSize(clearSky))
	if align.MissingBaseline > 0 {
		log.Printf("Warning: %d hours have no baseline and stay unvalidated", align.MissingBaseline)
	}

	qcCfg := solqc.DefaultConfig()
	qcCfg.ClearSkyTolerance = *tolerance
	if !*noQC {
		qcCfg.ApplyAll(series)
	}
	solqc.ZeroOut(series)

	tally := solqc.CountFlags(series)
	stats.AddFlagged(uint64(tally.Sum()))
	stats.StopReporter()

	table := solqc.BuildAverageYear(series, qcCfg, solqc.AvgOptions{
		Statistic:   statistic,
		KeepLeapDay: *leapDay,
		FillGaps:    *fillGaps,
		Windows:     windows,
	})

	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		log.Fatalf("Cannot create output directory: %v", err)
	}
	if err := table.SaveCSV(out); err != nil {
		log.Fatalf("Write failed: %v", err)
	}
	log.Printf("Average year written to %s (%d rows)", out, len(table.Rows))

	// Compare the average year against the simulated baselines.
	if model, measure := solqc.PairedValues(table, func(r *solqc.AvgRow) *float64 { return r.ClearSky }); len(model) > 0 {
		log.Printf("Clear-sky vs avg qo: MBD %.2f%% | MAE %.2f%% | RMSD %.2f%%",
			solqc.MBD(model, measure), solqc.MAE(model, measure), solqc.RMSD(model, measure))
	}

	summary.Rows = series.Len()
	summary.Years = series.Years()
	summary.Align = *align
	summary.Tally = tally
	summary.ByYear = solqc.CountFlagsByYear(series)
	summary.ByMonth = solqc.CountFlagsByMonth(series)
	summary.Gaps = solqc.MissingPeriods(series)
	summary.PESD = solqc.PESD(series, qcCfg.ExcludeFlags)
	summary.VisualShare = solqc.VisualShare(series)
	summary.MissingPositions = table.MissingPositions()
	summary.Elapsed = time.Since(startTime)

	log.Println()
	summary.Log()

	reportFile := filepath.Join(cfg.OutputDir(), fmt.Sprintf("run_%s_%s.log", *station, summary.RunID))
	f, err := os.Create(reportFile)
	if err != nil {
		log.Printf("Warning: cannot write report file: %v", err)
		return
	}
	fmt.Fprintf(f, "solqc-run v%s Report\n", Version)
	fmt.Fprintf(f, "====================\n")
	summary.WriteReport(f)
	fmt.Fprintf(f, "\nOutput:    %s\n", out)
	f.Close()
	log.Printf("Report: %s", reportFile)
}

// fileSize is best-effort input accounting for the progress counters.
func fileSize(path string) uint64 {
	if fi, err := os.Stat(path); err == nil {
		return uint64(fi.Size())
	}
	return 0
}
