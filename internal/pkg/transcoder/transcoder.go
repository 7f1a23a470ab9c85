package transcoder

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	// Cover payloads arrive in whatever format the library stored them.
	_ "image/gif"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
)

// QualityStep is the fixed decrement for the stepped quality descent.
const QualityStep = 5

// Resize fallback policy, applied only after the quality floor still
// overshoots the byte budget.
const (
	resizeFactorStart = 0.75
	resizeFactorStep  = 0.25
	resizeFactorFloor = 0.25
)

// ErrUnsupportedImage marks input that cannot be decoded. The caller keeps
// the previous cover; there is no retry.
var ErrUnsupportedImage = errors.New("unsupported image")

// Options is the size/quality budget for one compression run. Quality values
// are integers in [1,100].
type Options struct {
	MaxSizeBytes   int
	MinQuality     int
	InitialQuality int
}

// Result is the outcome of one compression run.
type Result struct {
	Bytes   []byte
	Quality int
	// Attempts counts encode passes, including resize passes.
	Attempts int
	// SizeExceeded is set when even the floor quality and floor resize
	// factor could not meet the budget. The oversized bytes are still
	// returned: a best-effort cover beats no cover.
	SizeExceeded bool
}

// Compress re-encodes raw as JPEG within opts.MaxSizeBytes. Deterministic and
// stateless: the same input and options always produce the same output.
//
// The search is a monotonic stepped descent rather than a binary search;
// covers are transcoded rarely and predictability matters more than speed.
// Quality drops from InitialQuality in QualityStep decrements to MinQuality;
// if the floor still overshoots, the image is scaled down in steps before
// the result is flagged SizeExceeded.
func Compress(raw []byte, opts Options) (Result, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrUnsupportedImage, err)
	}

	initial := clampQuality(opts.InitialQuality)
	floor := clampQuality(opts.MinQuality)
	if floor > initial {
		floor = initial
	}

	res := Result{}
	quality := initial
	for {
		encoded, err := encode(img, quality)
		if err != nil {
			return Result{}, err
		}
		res.Attempts++
		res.Bytes = encoded
		res.Quality = quality
		if len(encoded) <= opts.MaxSizeBytes {
			return res, nil
		}
		if quality <= floor {
			break
		}
		quality -= QualityStep
		if quality < floor {
			quality = floor
		}
	}

	// Quality floor reached and still over budget: shrink dimensions.
	for factor := resizeFactorStart; ; factor -= resizeFactorStep {
		encoded, err := encode(scale(img, factor), floor)
		if err != nil {
			return Result{}, err
		}
		res.Attempts++
		res.Bytes = encoded
		if len(encoded) <= opts.MaxSizeBytes {
			return res, nil
		}
		if factor <= resizeFactorFloor {
			res.SizeExceeded = true
			return res, nil
		}
	}
}

func encode(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("jpeg encode at quality %d: %w", quality, err)
	}
	return buf.Bytes(), nil
}

func scale(img image.Image, factor float64) image.Image {
	bounds := img.Bounds()
	w := int(float64(bounds.Dx()) * factor)
	h := int(float64(bounds.Dy()) * factor)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), img, bounds, xdraw.Over, nil)
	return dst
}

func clampQuality(q int) int {
	if q < 1 {
		return 1
	}
	if q > 100 {
		return 100
	}
	return q
}
