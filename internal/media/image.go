// Package media validates and normalizes uploaded images.
package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"mime"
	"net/http"
	"strings"

	"tdh/internal/models"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	// MaxDimension bounds both sides of a stored image.
	MaxDimension = 1600
	WebPQuality  = 75
	// MaxSourcePixels and MaxSourceSide bound what an upload may declare before it is decoded.
	MaxSourcePixels = 40_000_000
	MaxSourceSide   = 12_000
	ContentType  = "image/webp"
	Extension    = ".webp"
)

// Image is a normalized upload ready for storage.
type Image struct {
	Data   []byte
	Width  int
	Height int
}

// Normalize checks the upload, decodes it, fits it into MaxDimension and
// re-encodes it as WebP. declaredType is the client-supplied content type and may be empty.
func Normalize(content []byte, declaredType string, maxBytes int64) (*Image, error) {
	if len(content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if maxBytes > 0 && int64(len(content)) > maxBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", maxBytes/(1024*1024)))
	}

	detected := http.DetectContentType(content)
	if !isAllowedImageMIME(detected) {
		return nil, models.NewValidationError("Invalid image type")
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > MaxSourceSide || cfg.Height > MaxSourceSide ||
		int64(cfg.Width)*int64(cfg.Height) > MaxSourcePixels {
		return nil, models.NewValidationError("Image dimensions too large")
	}

	decoded, format, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}
	if provided := normalizeContentType(declaredType); strings.HasPrefix(provided, "image/") && !isMatchingContentType(provided, decodedFormatToMime(format)) {
		return nil, models.NewValidationError("Image content type mismatch")
	}

	fitted := resizeToFit(decoded, MaxDimension, MaxDimension)
	encoded, err := encodeWebP(fitted, WebPQuality)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	b := fitted.Bounds()
	return &Image{Data: encoded, Width: b.Dx(), Height: b.Dy()}, nil
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scale := float64(maxWidth) / float64(w)
	if s := float64(maxHeight) / float64(h); s < scale {
		scale = s
	}
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func isMatchingContentType(provided, detected string) bool {
	if provided == "image/jpg" {
		provided = "image/jpeg"
	}
	return provided == detected
}

func decodedFormatToMime(format string) string {
	switch strings.ToLower(format) {
	case "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return ""
	}
}
