package crop

import (
	"image"
	"image/color"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/tendant/post-import-pipeline/internal/detect"
)

func TestNameDeterministic(t *testing.T) {
	a := Name("Wolfy123.PNG", "s3cret")
	b := Name("wolfy123.png", "s3cret")
	if a != b {
		t.Fatalf("name is not case-insensitive: %q vs %q", a, b)
	}
	if Name("wolfy123.png", "s3cret") != a {
		t.Fatal("name is not deterministic")
	}
}

func TestNameShape(t *testing.T) {
	name := Name("wolfy123.png", "s3cret")
	if !strings.HasSuffix(name, ".jpg") {
		t.Fatalf("name = %q, want .jpg suffix", name)
	}
	// sha1 hex digest plus extension.
	if len(name) != 40+len(Ext) {
		t.Fatalf("name length = %d", len(name))
	}
	if strings.Contains(name, "wolfy123") {
		t.Fatalf("name %q leaks the original identifier", name)
	}
}

func TestNameDependsOnSecret(t *testing.T) {
	if Name("wolfy123.png", "one") == Name("wolfy123.png", "two") {
		t.Fatal("names collide across secrets")
	}
	if Name("a.png", "s") == Name("b.png", "s") {
		t.Fatal("names collide across originals")
	}
}

func TestRect(t *testing.T) {
	box := detect.Box{Top: 0.2, Left: 0.1, Width: 0.3, Height: 0.4}
	got := Rect(box, 1000, 500)
	want := PixelRect{Left: 100, Top: 100, Width: 300, Height: 200}
	if got != want {
		t.Fatalf("rect = %+v, want %+v", got, want)
	}
}

func TestRectFloors(t *testing.T) {
	box := detect.Box{Top: 0.333, Left: 0.333, Width: 0.333, Height: 0.333}
	got := Rect(box, 100, 100)
	if got.Left != 33 || got.Top != 33 || got.Width != 33 || got.Height != 33 {
		t.Fatalf("rect = %+v", got)
	}
}

func TestFlattenTransparent(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	// (1,1) left fully transparent.

	flat := Flatten(img)
	r, g, b, a := flat.At(1, 1).RGBA()
	if r != 0xffff || g != 0xffff || b != 0xffff || a != 0xffff {
		t.Fatalf("transparent pixel flattened to %v %v %v %v, want white", r, g, b, a)
	}
	r, _, _, _ = flat.At(0, 0).RGBA()
	if r != 0xffff {
		t.Fatalf("red channel lost: %v", r)
	}
}

func TestFlattenOpaquePassthrough(t *testing.T) {
	img := imaging.New(2, 2, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
	if Flatten(img) != image.Image(img) {
		t.Fatal("opaque image should pass through unchanged")
	}
}

func TestDerive(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "orig.png")
	if err := imaging.Save(imaging.New(10, 8, color.NRGBA{R: 200, G: 100, B: 50, A: 255}), src); err != nil {
		t.Fatal(err)
	}

	name := Name("orig.png", "s3cret")
	out, err := Deriver{Quality: 80}.Derive(src, PixelRect{Left: 2, Top: 2, Width: 4, Height: 3}, dir, name)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(out) != name {
		t.Fatalf("out = %q", out)
	}

	img, err := imaging.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 3 {
		t.Fatalf("crop bounds = %v", b)
	}
}
