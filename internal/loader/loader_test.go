package loader

import (
	"context"
	"fmt"
	"testing"

	"github.com/tendant/post-import-pipeline/internal/catalog"
)

type fakeWriter struct {
	nextTagID  int64
	registered []string
	flushed    []Batch
}

func (w *fakeWriter) RegisterTag(ctx context.Context, name string) (int64, error) {
	w.nextTagID++
	w.registered = append(w.registered, name)
	return w.nextTagID, nil
}

func (w *fakeWriter) Flush(ctx context.Context, batch *Batch) error {
	copied := Batch{
		Posts:    append([][]any(nil), batch.Posts...),
		PostTags: append([]TagLink(nil), batch.PostTags...),
		Sources:  append([]SourceRow(nil), batch.Sources...),
	}
	w.flushed = append(w.flushed, copied)
	return nil
}

func row(id int64, tags, sources []string, skipped bool) *catalog.Result {
	values := map[string]any{"id": id}
	tagItems := make([]any, len(tags))
	for i, tag := range tags {
		tagItems[i] = tag
	}
	values["tags"] = tagItems
	srcItems := make([]any, len(sources))
	for i, src := range sources {
		srcItems[i] = src
	}
	values["sources"] = srcItems

	return &catalog.Result{
		Values:  values,
		Tuple:   []any{id},
		Skipped: skipped,
	}
}

func TestFlushAtThresholdBoundary(t *testing.T) {
	ctx := context.Background()

	// Exactly the threshold: nothing flushes until stream end.
	w := &fakeWriter{}
	l := New(w, Options{})
	for i := 0; i < 1000; i++ {
		if err := l.Add(ctx, row(int64(i), nil, nil, false)); err != nil {
			t.Fatal(err)
		}
	}
	if len(w.flushed) != 0 {
		t.Fatalf("flushes before close = %d", len(w.flushed))
	}
	if err := l.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if len(w.flushed) != 1 || len(w.flushed[0].Posts) != 1000 {
		t.Fatalf("flushed = %d batches", len(w.flushed))
	}

	// One past the threshold: exactly one flush mid-stream.
	w = &fakeWriter{}
	l = New(w, Options{})
	for i := 0; i < 1001; i++ {
		if err := l.Add(ctx, row(int64(i), nil, nil, false)); err != nil {
			t.Fatal(err)
		}
	}
	if len(w.flushed) != 1 {
		t.Fatalf("flushes = %d, want 1", len(w.flushed))
	}
	if err := l.Close(ctx); err != nil {
		t.Fatal(err)
	}
	// Nothing left over, so close adds no second flush.
	if len(w.flushed) != 1 {
		t.Fatalf("flushes after close = %d, want 1", len(w.flushed))
	}
	if l.Flushes() != 1 {
		t.Fatalf("Flushes() = %d", l.Flushes())
	}
}

func TestTagDedupAcrossRun(t *testing.T) {
	ctx := context.Background()
	w := &fakeWriter{}
	l := New(w, Options{FlushThreshold: 10000, TagSkippedRows: true})

	for i := 0; i < 50; i++ {
		skipped := i%5 == 0
		if err := l.Add(ctx, row(int64(i), []string{"fox"}, nil, skipped)); err != nil {
			t.Fatal(err)
		}
	}
	if err := l.Close(ctx); err != nil {
		t.Fatal(err)
	}

	if len(w.registered) != 1 || w.registered[0] != "fox" {
		t.Fatalf("registered = %v, want exactly one fox", w.registered)
	}

	// 40 non-skipped rows, each linked to the single fox identifier.
	links := w.flushed[0].PostTags
	if len(links) != 40 {
		t.Fatalf("links = %d", len(links))
	}
	for _, link := range links {
		if link.TagID != 1 {
			t.Fatalf("link = %+v", link)
		}
	}
}

func TestSkippedRowStillRegistersTags(t *testing.T) {
	ctx := context.Background()
	w := &fakeWriter{}
	l := New(w, Options{TagSkippedRows: true})

	if err := l.Add(ctx, row(1, []string{"fox", "cute"}, []string{"https://a.example/x"}, true)); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(ctx); err != nil {
		t.Fatal(err)
	}

	if len(w.registered) != 2 {
		t.Fatalf("registered = %v", w.registered)
	}
	// The skipped row contributes nothing else.
	if len(w.flushed) != 0 {
		t.Fatalf("flushed = %v", w.flushed)
	}
}

func TestSkippedRowTaggingCanBeDisabled(t *testing.T) {
	ctx := context.Background()
	w := &fakeWriter{}
	l := New(w, Options{TagSkippedRows: false})

	if err := l.Add(ctx, row(1, []string{"fox"}, nil, true)); err != nil {
		t.Fatal(err)
	}
	if len(w.registered) != 0 {
		t.Fatalf("registered = %v", w.registered)
	}

	// Non-skipped rows register as usual.
	if err := l.Add(ctx, row(2, []string{"fox"}, nil, false)); err != nil {
		t.Fatal(err)
	}
	if len(w.registered) != 1 {
		t.Fatalf("registered = %v", w.registered)
	}
}

func TestSourceAndTagLinkRows(t *testing.T) {
	ctx := context.Background()
	w := &fakeWriter{}
	l := New(w, Options{})

	sources := []string{"https://a.example/1", "https://b.example/2"}
	if err := l.Add(ctx, row(7, []string{"fox", "cute"}, sources, false)); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(ctx); err != nil {
		t.Fatal(err)
	}

	batch := w.flushed[0]
	if len(batch.Posts) != 1 {
		t.Fatalf("posts = %d", len(batch.Posts))
	}
	if len(batch.Sources) != 2 {
		t.Fatalf("sources = %v", batch.Sources)
	}
	for i, src := range batch.Sources {
		if src.PostID != 7 || src.URL != sources[i] {
			t.Fatalf("source[%d] = %+v", i, src)
		}
	}
	if len(batch.PostTags) != 2 {
		t.Fatalf("post tags = %v", batch.PostTags)
	}
	for _, link := range batch.PostTags {
		if link.PostID != 7 {
			t.Fatalf("link = %+v", link)
		}
	}
}

func TestRegisterTagFailureSurfaces(t *testing.T) {
	ctx := context.Background()
	l := New(&failingWriter{}, Options{TagSkippedRows: true})

	if err := l.Add(ctx, row(1, []string{"fox"}, nil, false)); err == nil {
		t.Fatal("expected error")
	}
}

type failingWriter struct{}

func (failingWriter) RegisterTag(ctx context.Context, name string) (int64, error) {
	return 0, fmt.Errorf("database gone")
}

func (failingWriter) Flush(ctx context.Context, batch *Batch) error {
	return fmt.Errorf("database gone")
}
