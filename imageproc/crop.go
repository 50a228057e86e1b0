// Package imageproc holds the raster transforms applied to post images:
// the square crop used for uploaded photos and the stretch used for
// generated images.
package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"math"
	"net/http"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	_ "golang.org/x/image/webp"
)

const (
	// SquareSize is the edge length of every image attached to a post.
	SquareSize = 720

	jpegQuality   = 80
	maxSourceSize = 20 << 20 // 20MB
	sniffLen      = 512
)

var (
	// ErrNotImage is returned when the input does not sniff as image/*.
	ErrNotImage = errors.New("imageproc: input is not an image")
	// ErrEmptyImage is returned for rasters with a zero dimension.
	ErrEmptyImage = errors.New("imageproc: image has no pixels")
)

// Geometry describes how a source raster maps onto the square output.
type Geometry struct {
	Scale        float64
	ScaledWidth  int
	ScaledHeight int
	// Origin is the top-left corner of the crop window in scaled coordinates.
	Origin image.Point
}

// SquareGeometry computes the uniform scale that brings the smaller side of
// a w x h raster to SquareSize, and the bottom-left anchored crop window.
func SquareGeometry(w, h int) (Geometry, error) {
	if w <= 0 || h <= 0 {
		return Geometry{}, ErrEmptyImage
	}
	scale := math.Max(float64(SquareSize)/float64(w), float64(SquareSize)/float64(h))
	sw := max(int(math.Round(float64(w)*scale)), SquareSize)
	sh := max(int(math.Round(float64(h)*scale)), SquareSize)
	return Geometry{
		Scale:        scale,
		ScaledWidth:  sw,
		ScaledHeight: sh,
		Origin:       image.Pt(0, sh-SquareSize),
	}, nil
}

// CropSquare scales src uniformly and cuts a SquareSize square whose
// bottom-left corner matches the bottom-left corner of the scaled raster.
// Only the crop window is rasterised.
func CropSquare(src image.Image) (*image.RGBA, Geometry, error) {
	sb := src.Bounds()
	g, err := SquareGeometry(sb.Dx(), sb.Dy())
	if err != nil {
		return nil, Geometry{}, err
	}
	dst := image.NewRGBA(image.Rect(0, 0, SquareSize, SquareSize))
	s2d := f64.Aff3{
		g.Scale, 0, -float64(sb.Min.X)*g.Scale - float64(g.Origin.X),
		0, g.Scale, -float64(sb.Min.Y)*g.Scale - float64(g.Origin.Y),
	}
	draw.CatmullRom.Transform(dst, s2d, src, sb, draw.Src, nil)
	return dst, g, nil
}

// CropSquareJPEG reads an encoded image, applies CropSquare and returns the
// JPEG encoding of the result.
func CropSquareJPEG(r io.Reader) ([]byte, error) {
	src, err := Decode(r)
	if err != nil {
		return nil, err
	}
	dst, _, err := CropSquare(src)
	if err != nil {
		return nil, err
	}
	return EncodeJPEG(dst)
}

// Decode sniffs and decodes an image. Inputs whose content type is not
// image/* are rejected with ErrNotImage before decoding.
func Decode(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxSourceSize+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) > maxSourceSize {
		return nil, fmt.Errorf("read image: larger than %d bytes", maxSourceSize)
	}
	if ct := ContentType(data); !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("%w: %s", ErrNotImage, ct)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// ContentType sniffs the MIME type of an encoded payload.
func ContentType(data []byte) string {
	if len(data) > sniffLen {
		data = data[:sniffLen]
	}
	return http.DetectContentType(data)
}

// EncodeJPEG encodes img at the quality used for every post image.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
