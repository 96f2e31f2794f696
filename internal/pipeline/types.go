package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/tendant/post-import-pipeline/internal/crop"
	"github.com/tendant/post-import-pipeline/internal/detect"
)

// Stage identifies one phase of the pipeline. The zero value runs every
// stage in order.
type Stage int

const (
	StageAll Stage = iota
	StageFetchPublish
	StageInfer
	StageCropFinalize
)

// ExistingPolicy decides what happens when an original already exists on
// disk at fetch time.
type ExistingPolicy int

const (
	// ReuseExisting uses the local copy without re-fetching.
	ReuseExisting ExistingPolicy = iota

	// RedownloadExisting fetches again, overwriting the local copy.
	RedownloadExisting

	// SkipDownloaded skips the whole row when the file is already present.
	SkipDownloaded
)

// ParseExistingPolicy maps a configuration string onto a policy.
func ParseExistingPolicy(s string) (ExistingPolicy, error) {
	switch s {
	case "", "reuse":
		return ReuseExisting, nil
	case "redownload":
		return RedownloadExisting, nil
	case "skip":
		return SkipDownloaded, nil
	}
	return ReuseExisting, fmt.Errorf("unknown existing-file policy %q", s)
}

// Post carries one catalog row through the stages.
type Post struct {
	ID       int64
	URL      string
	Rating   string
	Score    int64
	FavCount int64
	Width    int64
	Height   int64

	// OrigName is the basename of the origin URL; OrigPath is where the
	// local copy lives.
	OrigName string
	OrigPath string
}

// CropRecord is the persisted outcome of one finalized post.
type CropRecord struct {
	UUID       string
	ID         int64
	OrigName   string
	CropName   string
	Rating     string
	Score      int64
	FavCount   int64
	OrigWidth  int64
	OrigHeight int64
	CropLeft   int
	CropTop    int
	CropWidth  int
	CropHeight int
	RunID      int64
}

// Fetcher downloads origin content to a local path.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string) error
}

// BlobStore publishes local artifacts to object storage.
type BlobStore interface {
	Key(name string) string
	Put(ctx context.Context, key string, r io.Reader) error
	Exists(ctx context.Context, key string) (bool, error)
}

// DetectLookup obtains the best cached-or-fresh detection for an artifact.
type DetectLookup interface {
	Lookup(ctx context.Context, origName, objectKey string) (*detect.Detection, error)
}

// Cropper derives the cropped artifact for a pixel rectangle.
type Cropper interface {
	Derive(srcPath string, rect crop.PixelRect, dstDir, name string) (string, error)
}

// RecordStore persists finalized crop records.
type RecordStore interface {
	PutCropRecord(ctx context.Context, rec CropRecord) error
}
