package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/tendant/post-import-pipeline/internal/metrics"
)

// Cache memoizes detection results in side-car JSON files keyed by the
// original artifact name, so a re-run never repeats a billed inference call.
// An explicit "no detection" outcome is cached too; only service errors are
// left uncached so a later run can genuinely retry.
type Cache struct {
	dir    string
	client Client
}

// NewCache creates a side-car cache under dir backed by the given client.
func NewCache(dir string, client Client) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create metadata directory: %w", err)
	}
	return &Cache{dir: dir, client: client}, nil
}

func (c *Cache) path(origName string) string {
	return filepath.Join(c.dir, origName+".json")
}

// Lookup returns the best detection for the named artifact, consulting the
// side-car store before the service. A nil detection with a nil error means
// the artifact has no usable region, and that fact is persisted. A service
// error is returned without caching.
func (c *Cache) Lookup(ctx context.Context, origName, objectKey string) (*Detection, error) {
	sidecar := c.path(origName)

	data, err := os.ReadFile(sidecar)
	if err == nil {
		var cached *Detection
		if err := json.Unmarshal(data, &cached); err != nil {
			return nil, fmt.Errorf("corrupt metadata file %s: %w", sidecar, err)
		}
		log.Printf("Metadata file for %s exists: %s", origName, sidecar)
		metrics.DetectCacheHits.Inc()
		return cached, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read metadata file %s: %w", sidecar, err)
	}

	metrics.DetectCacheMisses.Inc()
	log.Printf("Finding custom labels for %s...", objectKey)

	candidates, err := c.client.DetectFaces(ctx, objectKey)
	if err != nil {
		// Not cached: a transport failure now should retry on the next run.
		return nil, err
	}

	best := Best(candidates)
	if err := c.store(sidecar, best); err != nil {
		return nil, err
	}
	log.Printf("Wrote metadata file for %s: %s", origName, sidecar)

	return best, nil
}

func (c *Cache) store(path string, det *Detection) error {
	data, err := json.Marshal(det)
	if err != nil {
		return fmt.Errorf("encode detection: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write metadata file %s: %w", path, err)
	}
	return nil
}
