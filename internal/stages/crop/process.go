package crop

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"folio/internal/fileutil"
)

// Options tune margin detection and output encoding.
type Options struct {
	// Threshold is the luminance difference from the background that marks a
	// pixel as page content.
	Threshold uint8
	// MinCoverage is the fraction of a row or column that must be content for
	// the line to count as part of the page.
	MinCoverage float64
	// Padding is added around the detected page, in source pixels.
	Padding int
	// MaxDimension downscales the longer edge when positive.
	MaxDimension int
	JPEGQuality  int
}

const cornerSample = 5

// Result describes a completed crop.
type Result struct {
	Source image.Rectangle
	Crop   image.Rectangle
	Output image.Point
}

// Process reads infile, crops away the scanner background, optionally
// downscales, and writes outfile atomically in the format implied by its
// extension.
func Process(ctx context.Context, infile, outfile string, opts Options) (Result, error) {
	encode, err := encoderFor(outfile, opts)
	if err != nil {
		return Result{}, err
	}
	src, err := decodeFile(infile)
	if err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	bounds := DetectContent(src, opts)
	out := copyRegion(src, bounds)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	scaled := downscale(out, opts.MaxDimension)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	if err := fileutil.WriteAtomic(outfile, 0o644, func(w io.Writer) error {
		return encode(w, scaled)
	}); err != nil {
		return Result{}, fmt.Errorf("write %s: %w", outfile, err)
	}
	size := scaled.Bounds().Size()
	return Result{Source: src.Bounds(), Crop: bounds, Output: size}, nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

type encodeFunc func(io.Writer, image.Image) error

func encoderFor(path string, opts Options) (encodeFunc, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return png.Encode, nil
	case ".jpg", ".jpeg":
		quality := opts.JPEGQuality
		if quality <= 0 || quality > 100 {
			quality = jpeg.DefaultQuality
		}
		return func(w io.Writer, img image.Image) error {
			return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
		}, nil
	case ".tif", ".tiff":
		return func(w io.Writer, img image.Image) error {
			return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
		}, nil
	case ".bmp":
		return bmp.Encode, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", filepath.Ext(path))
	}
}

// DetectContent returns the bounding box of the page within a scan. The
// background tone is sampled from the four corners; rows and columns whose
// share of differing pixels reaches MinCoverage are page content. When no
// content is found the full image bounds are returned.
func DetectContent(img image.Image, opts Options) image.Rectangle {
	b := img.Bounds()
	if b.Empty() {
		return b
	}
	bg := backgroundLuma(img)
	threshold := int(opts.Threshold)

	w, h := b.Dx(), b.Dy()
	rowHits := make([]int, h)
	colHits := make([]int, w)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if absDiff(luma(img.At(x, y)), bg) > threshold {
				rowHits[y-b.Min.Y]++
				colHits[x-b.Min.X]++
			}
		}
	}

	top, bottom, okRows := span(rowHits, minHits(w, opts.MinCoverage))
	left, right, okCols := span(colHits, minHits(h, opts.MinCoverage))
	if !okRows || !okCols {
		return b
	}
	rect := image.Rect(b.Min.X+left, b.Min.Y+top, b.Min.X+right+1, b.Min.Y+bottom+1)
	if opts.Padding > 0 {
		rect = rect.Inset(-opts.Padding)
	}
	return rect.Intersect(b)
}

func backgroundLuma(img image.Image) int {
	b := img.Bounds()
	n := cornerSample
	if b.Dx() < n {
		n = b.Dx()
	}
	if b.Dy() < n {
		n = b.Dy()
	}
	corners := []image.Point{
		b.Min,
		{X: b.Max.X - n, Y: b.Min.Y},
		{X: b.Min.X, Y: b.Max.Y - n},
		{X: b.Max.X - n, Y: b.Max.Y - n},
	}
	total, count := 0, 0
	for _, c := range corners {
		for y := c.Y; y < c.Y+n; y++ {
			for x := c.X; x < c.X+n; x++ {
				total += luma(img.At(x, y))
				count++
			}
		}
	}
	if count == 0 {
		return 255
	}
	return total / count
}

func luma(c color.Color) int {
	return int(color.GrayModel.Convert(c).(color.Gray).Y)
}

func absDiff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}

func minHits(length int, coverage float64) int {
	hits := int(float64(length) * coverage)
	if hits < 1 {
		return 1
	}
	return hits
}

func span(hits []int, need int) (first, last int, ok bool) {
	first, last = -1, -1
	for i, n := range hits {
		if n >= need {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	return first, last, first >= 0
}

func copyRegion(src image.Image, r image.Rectangle) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Copy(dst, image.Point{}, src, r, draw.Src, nil)
	return dst
}

func downscale(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	longest := max(b.Dx(), b.Dy())
	if maxDim <= 0 || longest <= maxDim {
		return img
	}
	scale := float64(maxDim) / float64(longest)
	w := max(1, int(float64(b.Dx())*scale+0.5))
	h := max(1, int(float64(b.Dy())*scale+0.5))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
