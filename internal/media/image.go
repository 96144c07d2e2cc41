// Package media normalizes inbound channel attachments before they
// become part of an agent-facing message.
package media

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// MaxDimension bounds the longer edge of a normalized image; larger
// inbound photos are downscaled to keep multimodal payloads small.
const MaxDimension = 1568

// NormalizeImage decodes raw image bytes (JPEG/PNG/GIF/etc, whatever
// the source format), downsizes it if needed, and re-encodes it as
// JPEG, returning the encoded bytes and their MIME type.
func NormalizeImage(raw []byte) ([]byte, string, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, "", fmt.Errorf("media: decoding image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > MaxDimension || bounds.Dy() > MaxDimension {
		img = imaging.Fit(img, MaxDimension, MaxDimension, imaging.Lanczos)
	}

	var out bytes.Buffer
	if err := imaging.Encode(&out, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, "", fmt.Errorf("media: encoding image: %w", err)
	}
	return out.Bytes(), "image/jpeg", nil
}
