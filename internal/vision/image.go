package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// JudgeImageSize is the square edge every image is resized to before being
// sent to the judgment service.
const JudgeImageSize = 800

// DefaultMaxPixels caps width*height of any decoded image.
const DefaultMaxPixels = 40_000_000

// Decode parses JPEG, PNG or WebP bytes into an opaque RGB image, refusing
// canvases larger than DefaultMaxPixels.
func Decode(data []byte) (*image.NRGBA, error) {
	return DecodeLimit(data, DefaultMaxPixels)
}

// DecodeLimit is Decode with an explicit pixel cap. The header is checked
// before any pixel data is allocated. The alpha channel, if any, is dropped
// rather than composited.
func DecodeLimit(data []byte, maxPixels int) (*image.NRGBA, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrDecode)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty %s image", ErrDecode, format)
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, fmt.Errorf("%w: %dx%d %s image exceeds %d pixels", ErrDecode, cfg.Width, cfg.Height, format, maxPixels)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	b := src.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(x, y)).(color.NRGBA)
			c.A = 0xff
			out.SetNRGBA(x-b.Min.X, y-b.Min.Y, c)
		}
	}

	return out, nil
}

// Resize scales img to exactly w×h (aspect ratio is not preserved).
func Resize(img image.Image, w, h int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}

// EncodeJPEG serializes img as JPEG.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeForJudge resizes to the bounded judge square and encodes as JPEG to
// cap request size.
func EncodeForJudge(img image.Image) ([]byte, error) {
	return EncodeJPEG(Resize(img, JudgeImageSize, JudgeImageSize), 85)
}
