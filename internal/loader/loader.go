// Package loader accumulates transformed catalog rows into bounded batches
// and flushes them as atomic units. It owns the run-wide tag dedup cache.
package loader

import (
	"context"
	"fmt"
	"log"

	"github.com/tendant/post-import-pipeline/internal/catalog"
	"github.com/tendant/post-import-pipeline/internal/metrics"
)

// DefaultFlushThreshold is how many post rows may buffer before a flush.
const DefaultFlushThreshold = 1000

// TagLink ties one post to one assigned tag identifier.
type TagLink struct {
	PostID int64
	TagID  int64
}

// SourceRow ties one post to one declared source URL.
type SourceRow struct {
	PostID int64
	URL    string
}

// Batch holds buffered rows for one transactional flush.
type Batch struct {
	Posts    [][]any
	PostTags []TagLink
	Sources  []SourceRow
}

func (b *Batch) empty() bool {
	return len(b.Posts) == 0 && len(b.PostTags) == 0 && len(b.Sources) == 0
}

// BatchWriter persists tag registrations and flushed batches. Tag
// registration happens immediately on first sight; batches are flushed as a
// single atomic unit.
type BatchWriter interface {
	RegisterTag(ctx context.Context, name string) (int64, error)
	Flush(ctx context.Context, batch *Batch) error
}

// Options tune loader behavior.
type Options struct {
	// FlushThreshold is the post-row count above which a flush is
	// triggered. Zero selects DefaultFlushThreshold.
	FlushThreshold int

	// TagSkippedRows preserves the historical behavior of registering tags
	// from rows that a skip predicate drops: the registration runs before
	// the skip decision can abort the row, so filtered rows still populate
	// the tag table. When false, skipped rows register nothing.
	TagSkippedRows bool
}

// Loader buffers post, tag-link and source rows and assigns each distinct
// tag name an identifier exactly once per run. Not safe for concurrent use;
// the pipeline owns it from a single loop.
type Loader struct {
	writer  BatchWriter
	opts    Options
	tags    map[string]int64
	batch   Batch
	flushes int
}

// New creates a loader on top of the given writer.
func New(writer BatchWriter, opts Options) *Loader {
	if opts.FlushThreshold <= 0 {
		opts.FlushThreshold = DefaultFlushThreshold
	}
	return &Loader{
		writer: writer,
		opts:   opts,
		tags:   make(map[string]int64),
	}
}

// Add buffers one transformed row. Unseen tags are registered first, before
// the skip decision is consulted (see Options.TagSkippedRows); a skipped row
// contributes nothing to the buffers.
func (l *Loader) Add(ctx context.Context, res *catalog.Result) error {
	tags := res.StringList("tags")

	if !res.Skipped || l.opts.TagSkippedRows {
		for _, tag := range tags {
			if _, ok := l.tags[tag]; ok {
				continue
			}
			id, err := l.writer.RegisterTag(ctx, tag)
			if err != nil {
				return fmt.Errorf("register tag %q: %w", tag, err)
			}
			l.tags[tag] = id
			metrics.TagsRegistered.Inc()
		}
	}

	if res.Skipped {
		return nil
	}

	postID := res.Int("id")
	l.batch.Posts = append(l.batch.Posts, res.Tuple)
	for _, src := range res.StringList("sources") {
		l.batch.Sources = append(l.batch.Sources, SourceRow{PostID: postID, URL: src})
	}
	for _, tag := range tags {
		l.batch.PostTags = append(l.batch.PostTags, TagLink{PostID: postID, TagID: l.tags[tag]})
	}

	if len(l.batch.Posts) > l.opts.FlushThreshold {
		return l.flush(ctx)
	}
	return nil
}

// Close flushes whatever remains buffered. The loader is still usable
// afterwards, but a run is expected to close exactly once at stream end.
func (l *Loader) Close(ctx context.Context) error {
	return l.flush(ctx)
}

// Flushes reports how many batch flushes have run.
func (l *Loader) Flushes() int { return l.flushes }

func (l *Loader) flush(ctx context.Context) error {
	if l.batch.empty() {
		return nil
	}
	log.Printf("Got %d buffered post insertions - flushing", len(l.batch.Posts))
	if err := l.writer.Flush(ctx, &l.batch); err != nil {
		return fmt.Errorf("flush batch: %w", err)
	}
	l.flushes++
	metrics.BatchFlushes.Inc()
	l.batch = Batch{}
	return nil
}
