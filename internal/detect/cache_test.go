package detect

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type fakeClient struct {
	calls      int
	detections []Detection
	err        error
}

func (f *fakeClient) DetectFaces(ctx context.Context, objectKey string) ([]Detection, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.detections, nil
}

func faceAt(confidence float64) Detection {
	return Detection{
		Label:      "yiff-face",
		Confidence: confidence,
		Box:        &Box{Top: 0.1, Left: 0.2, Width: 0.3, Height: 0.4},
	}
}

func TestLookupCachesResult(t *testing.T) {
	client := &fakeClient{detections: []Detection{faceAt(91)}}
	cache, err := NewCache(t.TempDir(), client)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	det, err := cache.Lookup(ctx, "a.png", "prefix/a.png")
	if err != nil {
		t.Fatal(err)
	}
	if det == nil || det.Confidence != 91 {
		t.Fatalf("det = %+v", det)
	}
	if client.calls != 1 {
		t.Fatalf("calls = %d", client.calls)
	}

	// Second lookup is a cache hit: no service call.
	det, err = cache.Lookup(ctx, "a.png", "prefix/a.png")
	if err != nil {
		t.Fatal(err)
	}
	if det == nil || det.Confidence != 91 || det.Box == nil || det.Box.Left != 0.2 {
		t.Fatalf("cached det = %+v", det)
	}
	if client.calls != 1 {
		t.Fatalf("calls after hit = %d", client.calls)
	}
}

func TestLookupCachesAbsence(t *testing.T) {
	client := &fakeClient{detections: []Detection{{Label: "no-geometry", Confidence: 99}}}
	dir := t.TempDir()
	cache, err := NewCache(dir, client)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	det, err := cache.Lookup(ctx, "b.png", "b.png")
	if err != nil {
		t.Fatal(err)
	}
	if det != nil {
		t.Fatalf("det = %+v, want nil", det)
	}

	// The explicit absence is a persisted fact.
	data, err := os.ReadFile(filepath.Join(dir, "b.png.json"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "null" {
		t.Fatalf("sidecar = %q", data)
	}

	if _, err := cache.Lookup(ctx, "b.png", "b.png"); err != nil {
		t.Fatal(err)
	}
	if client.calls != 1 {
		t.Fatalf("calls = %d, absence must not be re-queried", client.calls)
	}
}

func TestLookupDoesNotCacheErrors(t *testing.T) {
	client := &fakeClient{err: errors.New("throttled")}
	dir := t.TempDir()
	cache, err := NewCache(dir, client)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if _, err := cache.Lookup(ctx, "c.png", "c.png"); err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(filepath.Join(dir, "c.png.json")); !os.IsNotExist(err) {
		t.Fatal("service error must not be cached")
	}

	// A later run retries for real.
	client.err = nil
	client.detections = []Detection{faceAt(50)}
	det, err := cache.Lookup(ctx, "c.png", "c.png")
	if err != nil {
		t.Fatal(err)
	}
	if det == nil || client.calls != 2 {
		t.Fatalf("det = %+v calls = %d", det, client.calls)
	}
}

func TestBestPrefersHighestConfidenceWithGeometry(t *testing.T) {
	candidates := []Detection{
		{Label: "no-box", Confidence: 99},
		faceAt(40),
		faceAt(80),
		faceAt(60),
	}
	best := Best(candidates)
	if best == nil || best.Confidence != 80 {
		t.Fatalf("best = %+v", best)
	}
}

func TestBestTieKeepsFirstSeen(t *testing.T) {
	first := faceAt(70)
	first.Label = "first"
	second := faceAt(70)
	second.Label = "second"

	best := Best([]Detection{first, second})
	if best == nil || best.Label != "first" {
		t.Fatalf("best = %+v", best)
	}
}

func TestBestNoCandidates(t *testing.T) {
	if Best(nil) != nil {
		t.Fatal("want nil for empty candidate list")
	}
}
