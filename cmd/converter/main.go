package main

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/tendant/post-import-pipeline/internal/catalog"
	"github.com/tendant/post-import-pipeline/internal/config"
	"github.com/tendant/post-import-pipeline/internal/loader"
	"github.com/tendant/post-import-pipeline/internal/metrics"
)

// Converter: streams a posts catalog export into relational rows. Posts,
// tag links and sources buffer in memory and land in batched transactions;
// tags are registered on first sight for the whole run.
func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		log.Fatalf("usage: converter <catalog.csv>")
	}
	catalogPath := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Bad configuration: %v", err)
	}
	if err := cfg.ValidateConverter(); err != nil {
		log.Fatalf("Bad configuration: %v", err)
	}
	metrics.Serve(cfg.MetricsAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("Failed to reach database: %v", err)
	}

	schema := catalog.PostColumns(catalog.DefaultBlacklist)
	writer := loader.NewPostgresWriter(db, catalog.TupleColumns(schema))

	if cfg.DeleteAll {
		log.Printf("Deleting all existing content!")
		if err := writer.TruncateAll(ctx); err != nil {
			log.Fatalf("Failed to truncate: %v", err)
		}
	}

	// Tags from skipped rows are registered on purpose; see loader.Options.
	ld := loader.New(writer, loader.Options{TagSkippedRows: true})

	reader, err := catalog.Open(catalogPath)
	if err != nil {
		log.Fatalf("Failed to open catalog: %v", err)
	}
	defer reader.Close()

	log.Printf("Input file %s is %d bytes", catalogPath, reader.TotalBytes())
	progress := catalog.NewProgress(filepath.Base(catalogPath), cfg.LogPercentChange)

	for {
		if err := ctx.Err(); err != nil {
			log.Fatalf("Interrupted: %v", err)
		}

		row, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Fatalf("Failed to read catalog: %v", err)
		}
		progress.Observe(reader.ReadBytes(), reader.TotalBytes(), reader.Rows())

		result, err := catalog.Transform(schema, row)
		if err != nil {
			log.Fatalf("Row %d does not match the schema: %v", reader.Rows(), err)
		}
		if err := ld.Add(ctx, result); err != nil {
			log.Fatalf("Failed to load row %d: %v", reader.Rows(), err)
		}

		if cfg.MaxRows > 0 && reader.Rows() >= cfg.MaxRows {
			log.Printf("Processed %d rows (maximum reached)", reader.Rows())
			break
		}
	}

	if err := ld.Close(ctx); err != nil {
		log.Fatalf("Failed to flush final batch: %v", err)
	}
	log.Printf("Done: %d rows, %d flushes", reader.Rows(), ld.Flushes())
}
