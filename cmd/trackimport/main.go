// Command trackimport parses GPX, TCX, and FIT files into import drafts.
// Drafts print as JSON; accepted files can be persisted to the activity log
// and their point samples exported to CSV or Parquet.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tricoach"
	"tricoach/config"
	"tricoach/export"
	"tricoach/importer"
	"tricoach/store"
)

func main() {
	var (
		cfgPath    = flag.String("config", "", "Path to TOML config file (optional)")
		save       = flag.Bool("save", false, "Persist accepted drafts to the activity log")
		title      = flag.String("title", "", "Title for saved activities (default derives from sport or file name)")
		sport      = flag.String("sport", "", "Override the detected sport (swim|bike|run|strength|other)")
		srpe       = flag.Int("srpe", 0, "Session RPE (1-10) to record on saved activities")
		csvDir     = flag.String("csv", "", "Directory to write per-file point sample CSVs")
		parquetDir = flag.String("parquet", "", "Directory to write per-file point sample Parquet files")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <activity-file> [<activity-file>...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	var files []importer.BatchFile
	for _, path := range flag.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read failed: %v\n", err)
			os.Exit(1)
		}
		files = append(files, importer.BatchFile{Name: filepath.Base(path), Data: data})
	}

	batch := importer.ParseBatch(files, cfg.BatchLimits())
	if notice := batch.Notice(); notice != "" {
		fmt.Fprintln(os.Stderr, notice)
	}

	if *sport != "" || *srpe != 0 {
		if err := applyOverrides(batch, *sport, *srpe); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(2)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for _, item := range batch.Items {
		if item.Err != nil {
			fmt.Fprintf(os.Stderr, "skipped %v\n", item.Err)
			continue
		}
		if err := enc.Encode(item.Result.Draft); err != nil {
			fmt.Fprintf(os.Stderr, "json encode failed: %v\n", err)
			os.Exit(1)
		}
		if err := exportSamples(item, *csvDir, *parquetDir); err != nil {
			fmt.Fprintf(os.Stderr, "sample export failed: %v\n", err)
			os.Exit(1)
		}
	}

	if *save && batch.Accepted > 0 {
		if err := saveAccepted(cfg.DBPath, batch, *title); err != nil {
			fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "saved %d of %d files\n", batch.Accepted, len(batch.Items))
	}
}

func applyOverrides(batch *importer.BatchResult, sport string, srpe int) error {
	var sportValue *tricoach.Sport
	if sport != "" {
		switch s := tricoach.Sport(sport); s {
		case tricoach.SportSwim, tricoach.SportBike, tricoach.SportRun, tricoach.SportStrength, tricoach.SportOther:
			sportValue = &s
		default:
			return fmt.Errorf("unknown sport %q", sport)
		}
	}
	if srpe != 0 && (srpe < 1 || srpe > 10) {
		return fmt.Errorf("srpe must be 1-10, got %d", srpe)
	}
	for _, item := range batch.Items {
		if item.Err != nil {
			continue
		}
		if sportValue != nil {
			item.Result.Draft.Sport = sportValue
		}
		if srpe != 0 {
			v := srpe
			item.Result.Draft.SRpe = &v
		}
	}
	return nil
}

func exportSamples(item importer.BatchItem, csvDir, parquetDir string) error {
	base := strings.TrimSuffix(item.Name, filepath.Ext(item.Name))
	if csvDir != "" {
		path := filepath.Join(csvDir, base+"_samples.csv")
		if err := export.WriteSamplesCSVFile(path, item.Result.Points); err != nil {
			return err
		}
	}
	if parquetDir != "" {
		path := filepath.Join(parquetDir, base+"_samples.parquet")
		if err := export.WriteSamplesParquetFile(path, item.Result.Points); err != nil {
			return err
		}
	}
	return nil
}

func saveAccepted(dbPath string, batch *importer.BatchResult, title string) error {
	db, err := store.OpenSQLite(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	now := time.Now()
	var activities []tricoach.Activity
	for _, item := range batch.Items {
		if item.Err != nil {
			continue
		}
		activities = append(activities, importer.ToActivity(item.Result.Draft, title, nil, now))
	}
	return db.AddActivities(context.Background(), activities)
}
