package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const defaultFetchTimeout = 60 * time.Second

// Fetcher downloads origin content to a local path.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a fetcher. A zero timeout selects the default.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Fetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch retrieves url into dest. Any transport or status failure is returned
// as an error; a partially written file is removed so presence of dest keeps
// meaning "downloaded".
func (f *Fetcher) Fetch(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "post-import-pipeline/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
	}

	file, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		os.Remove(dest)
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return file.Close()
}
