// Package pipeline drives catalog rows through the fetch-and-publish,
// infer and crop-and-finalize stages. Rows are processed strictly in
// catalog order, one external call at a time; a failed row is abandoned
// and the run moves on.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/tendant/post-import-pipeline/internal/catalog"
	"github.com/tendant/post-import-pipeline/internal/crop"
	"github.com/tendant/post-import-pipeline/internal/metrics"
)

// ReportHeader is the first line of the finalized-post report.
const ReportHeader = "id,orig,crop,rating,score,fav_count,orig_width,orig_height,crop_left,crop_top,crop_width,crop_height"

// Config controls one pipeline run.
type Config struct {
	CatalogPath string

	// OrigDir holds downloaded originals; CropDir holds derived crops.
	OrigDir string
	CropDir string

	// CropPrefix is the sub-namespace crops are published under, e.g.
	// "crop/". Applied on top of the store's own namespace prefix.
	CropPrefix string

	// Secret keys the one-way crop filename derivation.
	Secret string

	// Stage bounds the run to a single stage; StageAll runs the whole
	// chain.
	Stage Stage

	Policy        ExistingPolicy
	MinConfidence float64

	// StartAtID skips rows without side effects until the identifier is
	// observed. Zero starts at the beginning.
	StartAtID int64

	// MaxRows bounds the run. Zero means the whole catalog.
	MaxRows int

	LogPercentChange float64

	// RunID stamps persisted records so an import batch can be told apart
	// later.
	RunID int64
}

// Collaborators are the external services a run talks to. Records and
// Report may be nil.
type Collaborators struct {
	Fetcher  Fetcher
	Store    BlobStore
	Detector DetectLookup
	Cropper  Cropper
	Records  RecordStore
	Report   io.Writer
}

// Stats summarizes a run.
type Stats struct {
	Rows      int
	Processed int
	Skipped   int
	Abandoned int
	Finalized int
}

// Coordinator runs the staged pipeline over one catalog.
type Coordinator struct {
	cfg Config
	col Collaborators
}

// New creates a coordinator.
func New(cfg Config, col Collaborators) *Coordinator {
	return &Coordinator{cfg: cfg, col: col}
}

// Run processes the catalog from start to finish. Row-level failures are
// logged and counted; only catalog access problems end the run early.
func (c *Coordinator) Run(ctx context.Context) (*Stats, error) {
	reader, err := catalog.Open(c.cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	log.Printf("Input file %s is %d bytes", c.cfg.CatalogPath, reader.TotalBytes())
	progress := catalog.NewProgress(filepath.Base(c.cfg.CatalogPath), c.cfg.LogPercentChange)

	if c.col.Report != nil {
		fmt.Fprintln(c.col.Report, ReportHeader)
	}

	stats := &Stats{}
	foundStart := c.cfg.StartAtID == 0

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		row, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("read catalog: %w", err)
		}
		progress.Observe(reader.ReadBytes(), reader.TotalBytes(), reader.Rows())
		stats.Rows++

		post, err := parsePost(row, c.cfg.OrigDir)
		if err != nil {
			log.Printf("Malformed row %d: %v", reader.Rows(), err)
			stats.Abandoned++
			metrics.RowsAbandoned.Inc()
			continue
		}

		if !foundStart {
			if post.ID == c.cfg.StartAtID {
				foundStart = true
			} else {
				log.Printf("Skipping %d because of the resume-from identifier", post.ID)
				continue
			}
		}

		c.processRow(ctx, post, stats)

		if c.cfg.MaxRows > 0 && stats.Rows >= c.cfg.MaxRows {
			log.Printf("Processed %d rows (maximum reached)", stats.Rows)
			break
		}
	}

	return stats, nil
}

func (c *Coordinator) processRow(ctx context.Context, post *Post, stats *Stats) {
	log.Printf(" ---------- Processing %d (%s) ----------", post.ID, post.OrigPath)

	if c.cfg.Stage == StageAll || c.cfg.Stage == StageFetchPublish {
		ok, skip := c.fetchPublish(ctx, post)
		if skip {
			stats.Skipped++
			metrics.RowsSkipped.Inc()
			return
		}
		if !ok {
			stats.Abandoned++
			metrics.RowsAbandoned.Inc()
			return
		}
	}
	if c.cfg.Stage == StageFetchPublish {
		log.Printf("Fetch-and-publish stage bound - moving on to next file")
		stats.Processed++
		metrics.RowsProcessed.Inc()
		return
	}

	det, err := c.col.Detector.Lookup(ctx, post.OrigName, c.col.Store.Key(post.OrigName))
	if err != nil {
		// Treated like "no detection" for this invocation, but the cache
		// leaves it unrecorded so a later run retries.
		log.Printf("Inference failed for %s: %v", post.OrigName, err)
		stats.Abandoned++
		metrics.RowsAbandoned.Inc()
		return
	}
	if c.cfg.Stage == StageInfer {
		log.Printf("Infer stage bound - moving on to next file")
		stats.Processed++
		metrics.RowsProcessed.Inc()
		return
	}

	if det == nil {
		log.Printf("%s did not contain a face.", post.OrigPath)
		stats.Abandoned++
		metrics.RowsAbandoned.Inc()
		return
	}
	if det.Confidence < c.cfg.MinConfidence {
		log.Printf("%s best face confidence level %.0f is too low (< %.0f)",
			post.OrigPath, det.Confidence, c.cfg.MinConfidence)
		stats.Abandoned++
		metrics.RowsAbandoned.Inc()
		return
	}

	rect := crop.Rect(*det.Box, int(post.Width), int(post.Height))
	cropName := crop.Name(post.OrigName, c.cfg.Secret)
	log.Printf("New name for the cropped image will be %s", cropName)

	cropPath, err := c.col.Cropper.Derive(post.OrigPath, rect, c.cfg.CropDir, cropName)
	if err != nil {
		log.Printf("Failed to crop %s: %v", post.OrigPath, err)
		stats.Abandoned++
		metrics.RowsAbandoned.Inc()
		return
	}

	log.Printf("Uploading cropped version for %d", post.ID)
	if err := c.publish(ctx, cropPath, c.col.Store.Key(c.cfg.CropPrefix+cropName), false); err != nil {
		log.Printf("%d failed to upload crop: %v", post.ID, err)
		stats.Abandoned++
		metrics.RowsAbandoned.Inc()
		return
	}

	rec := CropRecord{
		UUID:       strings.ToUpper(uuid.New().String()),
		ID:         post.ID,
		OrigName:   post.OrigName,
		CropName:   cropName,
		Rating:     post.Rating,
		Score:      post.Score,
		FavCount:   post.FavCount,
		OrigWidth:  post.Width,
		OrigHeight: post.Height,
		CropLeft:   rect.Left,
		CropTop:    rect.Top,
		CropWidth:  rect.Width,
		CropHeight: rect.Height,
		RunID:      c.cfg.RunID,
	}

	if c.col.Records != nil {
		// The row still counts as processed when this fails: the report
		// line below preserves it for a later reload.
		if err := c.col.Records.PutCropRecord(ctx, rec); err != nil {
			log.Printf("Failed to insert %d: %v", post.ID, err)
		} else {
			log.Printf("Inserted record for %d with UUID %s", post.ID, rec.UUID)
		}
	}

	c.reportLine(rec)
	stats.Finalized++
	stats.Processed++
	metrics.RowsProcessed.Inc()
}

// fetchPublish acquires the original locally per the existing-file policy
// and publishes it. Publication is idempotent: an object already present in
// the store is not uploaded again unless the policy forced a re-fetch.
func (c *Coordinator) fetchPublish(ctx context.Context, post *Post) (ok, skip bool) {
	forced := false

	if _, err := os.Stat(post.OrigPath); err == nil {
		switch c.cfg.Policy {
		case SkipDownloaded:
			log.Printf("Skipping %d (%s) completely because we already have the file downloaded", post.ID, post.OrigPath)
			return false, true
		case RedownloadExisting:
			log.Printf("Redownloading %d (%s)", post.ID, post.OrigPath)
			if err := c.fetch(ctx, post); err != nil {
				return false, false
			}
			forced = true
		default:
			log.Printf("Already have %d orig %s - using it", post.ID, post.OrigPath)
		}
	} else {
		if err := c.fetch(ctx, post); err != nil {
			return false, false
		}
	}

	if err := c.publish(ctx, post.OrigPath, c.col.Store.Key(post.OrigName), !forced); err != nil {
		log.Printf("%d failed to upload: %v", post.ID, err)
		return false, false
	}
	return true, false
}

func (c *Coordinator) fetch(ctx context.Context, post *Post) error {
	log.Printf("Downloading original for %d (%s)...", post.ID, post.URL)
	metrics.Fetches.Inc()
	if err := c.col.Fetcher.Fetch(ctx, post.URL, post.OrigPath); err != nil {
		log.Printf("Failed to download %s: %v", post.URL, err)
		metrics.FetchFailures.Inc()
		return err
	}
	log.Printf("Downloaded %s", post.URL)
	return nil
}

func (c *Coordinator) publish(ctx context.Context, localPath, key string, skipIfPresent bool) error {
	if skipIfPresent {
		exists, err := c.col.Store.Exists(ctx, key)
		if err == nil && exists {
			log.Printf("Already published %s - skipping upload", key)
			return nil
		}
		// An Exists failure falls through to the upload attempt.
	}

	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer file.Close()

	log.Printf("Uploading %s as %s...", localPath, key)
	metrics.Publishes.Inc()
	if err := c.col.Store.Put(ctx, key, file); err != nil {
		metrics.PublishFailures.Inc()
		return err
	}
	return nil
}

func (c *Coordinator) reportLine(rec CropRecord) {
	if c.col.Report == nil {
		return
	}
	fmt.Fprintf(c.col.Report, "%d,%s,%s,%s,%d,%d,%d,%d,%d,%d,%d,%d\n",
		rec.ID, rec.OrigName, rec.CropName, rec.Rating, rec.Score, rec.FavCount,
		rec.OrigWidth, rec.OrigHeight, rec.CropLeft, rec.CropTop, rec.CropWidth, rec.CropHeight)
}

// parsePost maps the fetch-path catalog columns onto a Post.
func parsePost(row catalog.Row, origDir string) (*Post, error) {
	id, err := strconv.ParseInt(row["id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse id %q: %w", row["id"], err)
	}

	url := row["url"]
	slash := strings.LastIndex(url, "/")
	if url == "" || slash < 0 || slash == len(url)-1 {
		return nil, fmt.Errorf("row %d has no usable url %q", id, url)
	}
	origName := url[slash+1:]

	width, err := strconv.ParseInt(row["image_width"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse image_width %q: %w", row["image_width"], err)
	}
	height, err := strconv.ParseInt(row["image_height"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse image_height %q: %w", row["image_height"], err)
	}

	score := parseCount(row["score"])
	favCount := parseCount(row["fav_count"])

	return &Post{
		ID:       id,
		URL:      url,
		Rating:   row["rating"],
		Score:    score,
		FavCount: favCount,
		Width:    width,
		Height:   height,
		OrigName: origName,
		OrigPath: filepath.Join(origDir, origName),
	}, nil
}

func parseCount(raw string) int64 {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
