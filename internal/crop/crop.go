package crop

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/tendant/post-import-pipeline/internal/detect"
)

// PixelRect is a crop rectangle in source pixel coordinates.
type PixelRect struct {
	Left   int
	Top    int
	Width  int
	Height int
}

// Rect converts a normalized bounding box into pixel coordinates for an
// original of the given dimensions. Fractions are floored, matching the
// coordinates recorded alongside the persisted crop.
func Rect(box detect.Box, origWidth, origHeight int) PixelRect {
	return PixelRect{
		Left:   int(box.Left * float64(origWidth)),
		Top:    int(box.Top * float64(origHeight)),
		Width:  int(box.Width * float64(origWidth)),
		Height: int(box.Height * float64(origHeight)),
	}
}

// Deriver cuts crop rectangles out of local originals and writes them as
// opaque JPEGs.
type Deriver struct {
	// Quality is the JPEG encoding quality. Zero means the imaging
	// package default.
	Quality int
}

// Derive extracts rect from the image at srcPath and writes it under dstDir
// as name. Returns the path of the written file.
func (d Deriver) Derive(srcPath string, rect PixelRect, dstDir, name string) (string, error) {
	img, err := imaging.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("open image %s: %w", srcPath, err)
	}

	cropped := imaging.Crop(img, image.Rect(rect.Left, rect.Top, rect.Left+rect.Width, rect.Top+rect.Height))
	flat := Flatten(cropped)

	dst := filepath.Join(dstDir, name)
	opts := []imaging.EncodeOption{}
	if d.Quality > 0 {
		opts = append(opts, imaging.JPEGQuality(d.Quality))
	}
	if err := imaging.Save(flat, dst, opts...); err != nil {
		return "", fmt.Errorf("save crop %s: %w", dst, err)
	}

	return dst, nil
}

// Flatten composites an image with alpha or palette color onto an opaque
// white background. JPEG cannot represent those color models.
func Flatten(img image.Image) image.Image {
	if opaque, ok := img.(interface{ Opaque() bool }); ok && opaque.Opaque() {
		return img
	}
	flat := image.NewRGBA(img.Bounds())
	draw.Draw(flat, flat.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), img, img.Bounds().Min, draw.Over)
	return flat
}
