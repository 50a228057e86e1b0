package imageproc

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
)

// ErrBadPayload is returned when a base64 image payload cannot be decoded.
var ErrBadPayload = errors.New("imageproc: malformed base64 image payload")

// Stretch resamples src to exactly SquareSize x SquareSize without keeping
// the aspect ratio. Generated images go through this path, uploads do not.
func Stretch(src image.Image) (*image.NRGBA, error) {
	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, ErrEmptyImage
	}
	return imaging.Resize(src, SquareSize, SquareSize, imaging.Linear), nil
}

// StretchJPEG decodes data, stretches it and re-encodes it as JPEG.
func StretchJPEG(data []byte) ([]byte, error) {
	src, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	dst, err := Stretch(src)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, dst, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeBase64 turns the imageBase64 field of a generation response into
// raw bytes. A data: URL prefix and embedded whitespace are tolerated.
func DecodeBase64(payload string) ([]byte, error) {
	if i := strings.Index(payload, ";base64,"); i >= 0 && strings.HasPrefix(payload, "data:") {
		payload = payload[i+len(";base64,"):]
	}
	payload = strings.Join(strings.Fields(payload), "")
	if payload == "" {
		return nil, ErrBadPayload
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return data, nil
}
