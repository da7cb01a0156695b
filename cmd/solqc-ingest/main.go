// solqc-ingest - QC'd station observations ingestion into ClickHouse
//
// Loads one or more stations, runs the automatic QC battery and
// inserts the flagged hourly observations into ClickHouse for
// cross-station analysis. Table DDL goes through the clickhouse-go
// driver; row data goes through the ch-go native protocol.
//
// Build: CGO_ENABLED=0 go build -ldflags="-s -w" -o build/solqc-ingest ./cmd/solqc-ingest

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ClickHouse/ch-go"
	"github.com/ClickHouse/ch-go/proto"
	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/agrimet/solqc/internal/common"
	"github.com/agrimet/solqc/internal/solqc"
)

// Version can be overridden at build time via -ldflags
var Version = "1.0.0"

const batchLimit = 100_000 // flush every 100k rows

// ObsBatch holds column data for native insert.
//
// Optional quantities are encoded as value 0 plus the corresponding
// flag bit (missing / unvalidated); the flags column disambiguates a
// true zero from an absent reading.
type ObsBatch struct {
	Station   *proto.ColStr
	Date      *proto.ColDate32
	Time      *proto.ColDateTime
	Qo        *proto.ColFloat32
	Sza       *proto.ColFloat32
	Toa       *proto.ColFloat32
	ClearSky  *proto.ColFloat32
	Flags     *proto.ColUInt16
	QCVersion *proto.ColUInt8
}

func NewObsBatch() *ObsBatch {
	return &ObsBatch{
		Station:   new(proto.ColStr),
		Date:      new(proto.ColDate32),
		Time:      new(proto.ColDateTime),
		Qo:        new(proto.ColFloat32),
		Sza:       new(proto.ColFloat32),
		Toa:       new(proto.ColFloat32),
		ClearSky:  new(proto.ColFloat32),
		Flags:     new(proto.ColUInt16),
		QCVersion: new(proto.ColUInt8),
	}
}

func (b *ObsBatch) Reset() {
	b.Station.Reset()
	b.Date.Reset()
	b.Time.Reset()
	b.Qo.Reset()
	b.Sza.Reset()
	b.Toa.Reset()
	b.ClearSky.Reset()
	b.Flags.Reset()
	b.QCVersion.Reset()
}

func (b *ObsBatch) Len() int {
	return b.Time.Rows()
}

func (b *ObsBatch) Input() proto.Input {
	return proto.Input{
		{Name: "station", Data: b.Station},
		{Name: "date", Data: b.Date},
		{Name: "time", Data: b.Time},
		{Name: "qo", Data: b.Qo},
		{Name: "sza", Data: b.Sza},
		{Name: "toa", Data: b.Toa},
		{Name: "clear_sky", Data: b.ClearSky},
		{Name: "flags", Data: b.Flags},
		{Name: "qc_version", Data: b.QCVersion},
	}
}

func (b *ObsBatch) AddRecord(station string, r *solqc.Record) {
	// The missing bit is set here regardless of whether the QC battery
	// ran; otherwise an absent qo is indistinguishable from a zero.
	flags := r.Flags
	if r.Qo == nil {
		flags |= solqc.FlagMissing
	}

	b.Station.Append(station)
	b.Date.Append(r.Time)
	b.Time.Append(r.Time)
	b.Qo.Append(optFloat(r.Qo))
	b.Sza.Append(optFloat(r.Sza))
	b.Toa.Append(optFloat(r.Toa))
	b.ClearSky.Append(optFloat(r.ClearSky))
	b.Flags.Append(uint16(flags))
	b.QCVersion.Append(solqc.SchemaVersion)
}

func optFloat(v *float64) float32 {
	if v == nil {
		return 0
	}
	return float32(*v)
}

func flushBatch(ctx context.Context, conn *ch.Client, tableFQN string, batch *ObsBatch) error {
	if batch.Len() == 0 {
		return nil
	}

	query := fmt.Sprintf("INSERT INTO %s (station, date, time, qo, sza, toa, clear_sky, flags, qc_version) VALUES", tableFQN)
	return conn.Do(ctx, ch.Query{
		Body:  query,
		Input: batch.Input(),
	})
}

// ensureTable creates the observations table when it does not exist.
func ensureTable(ctx context.Context, addr string, cfg *common.Config, tableFQN string) error {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUser,
			Password: cfg.ClickHousePassword,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return fmt.Errorf("clickhouse open: %w", err)
	}
	defer conn.Close()

	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("clickhouse ping: %w", err)
	}

	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    station    LowCardinality(String),
    date       Date32,
    time       DateTime('UTC'),
    qo         Float32,
    sza        Float32,
    toa        Float32,
    clear_sky  Float32,
    flags      UInt16,
    qc_version UInt8
) ENGINE = ReplacingMergeTree
PARTITION BY toYear(date)
ORDER BY (station, time)`, tableFQN)

	return conn.Exec(ctx, query)
}

func main() {
	cfg := common.DefaultConfig()

	chHost := flag.String("ch-host", fmt.Sprintf("%s:%d", cfg.ClickHouseHost, cfg.ClickHousePort), "ClickHouse native address")
	chDB := flag.String("ch-db", cfg.ClickHouseDatabase, "ClickHouse database")
	chTable := flag.String("ch-table", "observations", "ClickHouse table")
	dataDir := flag.String("data-dir", cfg.DataDir, "Data directory root")
	stationsArg := flag.String("stations", "", "Comma-separated station names (required)")
	truncate := flag.Bool("truncate", false, "Truncate table before insert")
	noQC := flag.Bool("no-qc", false, "Skip the automatic QC tests")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "solqc-ingest v%s - Station Observation Ingester\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s -stations NAME[,NAME...] [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Runs QC over each station series and inserts the flagged hourly\n")
		fmt.Fprintf(os.Stderr, "observations into ClickHouse (ch-go native protocol with LZ4).\n\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *stationsArg == "" {
		flag.Usage()
		log.Fatal("-stations is required")
	}
	cfg.DataDir = *dataDir
	cfg.ClickHouseDatabase = *chDB
	stations := strings.Split(*stationsArg, ",")

	log.Println("=========================================================")
	log.Printf("solqc-ingest v%s", Version)
	log.Println("=========================================================")
	log.Printf("Stations: %d", len(stations))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("\nShutdown requested...")
		cancel()
	}()

	tableFQN := fmt.Sprintf("%s.%s", *chDB, *chTable)

	log.Printf("Ensuring table %s...", tableFQN)
	if err := ensureTable(ctx, *chHost, cfg, tableFQN); err != nil {
		log.Fatalf("DDL failed: %v", err)
	}

	log.Printf("Connecting to ClickHouse at %s...", *chHost)
	conn, err := ch.Dial(ctx, ch.Options{
		Address:     *chHost,
		Database:    *chDB,
		User:        cfg.ClickHouseUser,
		Password:    cfg.ClickHousePassword,
		Compression: ch.CompressionLZ4,
	})
	if err != nil {
		log.Fatalf("ClickHouse connection failed: %v", err)
	}
	defer conn.Close()

	if *truncate {
		log.Printf("Truncating table %s...", tableFQN)
		if err := conn.Do(ctx, ch.Query{Body: fmt.Sprintf("TRUNCATE TABLE %s", tableFQN)}); err != nil {
			log.Printf("Truncate warning: %v", err)
		}
	}

	startTime := time.Now()
	totalRows := 0
	qcCfg := solqc.DefaultConfig()
	batch := NewObsBatch()

	for _, station := range stations {
		select {
		case <-ctx.Done():
			log.Fatal("Aborted")
		default:
		}

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
		align, err := solqc.LoadClearSky(clearSky, series)
		if err != nil {
			log.Fatalf("[%s] Clear-sky load failed: %v", station, err)
		}
		if align.MissingBaseline > 0 {
			log.Printf("[%s] %d hours without baseline (unvalidated)", station, align.MissingBaseline)
		}

		if !*noQC {
			qcCfg.ApplyAll(series)
		}
		solqc.ZeroOut(series)

		for i := range series.Records {
			batch.AddRecord(station, &series.Records[i])
			totalRows++

			if batch.Len() >= batchLimit {
				if err := flushBatch(ctx, conn, tableFQN, batch); err != nil {
					log.Fatalf("[%s] Insert error: %v", station, err)
				}
				batch.Reset()
			}
		}

		tally := solqc.CountFlags(series)
		log.Printf("[%s] %d hours, %d QC marks (%s)", station, series.Len(),
			tally.Sum(), filepath.Base(raw))
	}

	if batch.Len() > 0 {
		if err := flushBatch(ctx, conn, tableFQN, batch); err != nil {
			log.Fatalf("Insert error: %v", err)
		}
	}

	elapsed := time.Since(startTime)

	log.Println()
	log.Println("=========================================================")
	log.Println("Final Statistics")
	log.Println("=========================================================")
	log.Printf("Total Rows: %d", totalRows)
	log.Printf("Elapsed:    %v", elapsed.Round(time.Millisecond))
	log.Printf("Rate:       %.0f rows/sec", float64(totalRows)/elapsed.Seconds())
	log.Println("=========================================================")
}
