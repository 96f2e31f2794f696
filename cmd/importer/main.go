package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"

	"github.com/tendant/post-import-pipeline/internal/config"
	"github.com/tendant/post-import-pipeline/internal/crop"
	"github.com/tendant/post-import-pipeline/internal/detect"
	"github.com/tendant/post-import-pipeline/internal/metrics"
	"github.com/tendant/post-import-pipeline/internal/pipeline"
	"github.com/tendant/post-import-pipeline/internal/records"
	"github.com/tendant/post-import-pipeline/internal/storage"
)

// Staged importer: reads a posts catalog, downloads originals and publishes
// them (stage 1), obtains face detections (stage 2), then crops, publishes
// and records the result (stage 3). Stages are resumable: originals on disk,
// side-car metadata and already-published objects are not redone. Bound a
// run to a single stage with ITY_STAGE to keep the model's billed hours to
// the inference window.
func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		log.Fatalf("usage: importer <catalog.csv>")
	}
	catalogPath := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Bad configuration: %v", err)
	}
	if err := cfg.ValidateImporter(); err != nil {
		log.Fatalf("Bad configuration: %v", err)
	}

	policy, err := pipeline.ParseExistingPolicy(cfg.ExistingPolicy)
	if err != nil {
		log.Fatalf("Bad configuration: %v", err)
	}

	runID := time.Now().Unix()
	log.Printf("Post importer (Run ID %d)", runID)
	metrics.Serve(cfg.MetricsAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatalf("Failed to load AWS config: %v", err)
	}

	store := storage.NewS3Store(s3.NewFromConfig(awsCfg), cfg.Bucket, cfg.Prefix)
	detector := detect.NewRekognition(rekognition.NewFromConfig(awsCfg), cfg.Bucket, cfg.ModelARN)

	cache, err := detect.NewCache(cfg.MetaDir, detector)
	if err != nil {
		log.Fatalf("Failed to set up metadata cache: %v", err)
	}

	for _, dir := range []string{cfg.OrigDir, cfg.CropDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create %s: %v", dir, err)
		}
	}

	var recordStore pipeline.RecordStore
	if cfg.NoDB {
		log.Printf("Record inserts disabled (ITY_NO_DB)")
	} else {
		recordStore = records.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.DynamoTable)
	}

	coordinator := pipeline.New(
		pipeline.Config{
			CatalogPath:      catalogPath,
			OrigDir:          cfg.OrigDir,
			CropDir:          cfg.CropDir,
			CropPrefix:       cfg.CropPrefix,
			Secret:           cfg.CropSecret,
			Stage:            pipeline.Stage(cfg.Stage),
			Policy:           policy,
			MinConfidence:    cfg.MinConfidence,
			StartAtID:        cfg.StartAtID,
			MaxRows:          cfg.MaxRows,
			LogPercentChange: cfg.LogPercentChange,
			RunID:            runID,
		},
		pipeline.Collaborators{
			Fetcher:  storage.NewFetcher(0),
			Store:    store,
			Detector: cache,
			Cropper:  crop.Deriver{Quality: 80},
			Records:  recordStore,
			Report:   os.Stdout,
		},
	)

	stats, err := coordinator.Run(ctx)
	if err != nil {
		log.Fatalf("Run failed: %v", err)
	}
	log.Printf("Done: %d rows, %d processed, %d finalized, %d abandoned, %d skipped",
		stats.Rows, stats.Processed, stats.Finalized, stats.Abandoned, stats.Skipped)
}
