package media

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"testing"

	"tdh/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNormalize_SmallImageKeepsSize(t *testing.T) {
	out, err := Normalize(pngBytes(t, 40, 30), "image/png", 1<<20)
	require.NoError(t, err)
	assert.Equal(t, 40, out.Width)
	assert.Equal(t, 30, out.Height)
	assert.Equal(t, "image/webp", http.DetectContentType(out.Data))
}

func TestNormalize_FitsLargeImage(t *testing.T) {
	out, err := Normalize(pngBytes(t, 3200, 800), "", 10<<20)
	require.NoError(t, err)
	assert.Equal(t, MaxDimension, out.Width)
	assert.Equal(t, 400, out.Height)
}

func TestNormalize_Rejections(t *testing.T) {
	valid := pngBytes(t, 10, 10)
	tests := []struct {
		name     string
		content  []byte
		declared string
		max      int64
	}{
		{"empty", nil, "", 1 << 20},
		{"too large", valid, "image/png", 10},
		{"not an image", []byte("hello world, plain text"), "", 1 << 20},
		{"declared mismatch", valid, "image/jpeg", 1 << 20},
		{"truncated", valid[:20], "", 1 << 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.content, tt.declared, tt.max)
			assert.True(t, models.IsCode(err, models.CodeValidation), "got %v", err)
		})
	}
}

// pngHeader returns a PNG that declares w x h but carries no pixel data.
func pngHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 6 // RGBA
	chunk := append([]byte("IHDR"), ihdr...)
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestNormalize_RejectsOversizedDimensions(t *testing.T) {
	tests := []struct {
		name string
		w, h uint32
	}{
		{"too many pixels", 8000, 8000},
		{"too wide", MaxSourceSide + 1, 10},
		{"too tall", 10, MaxSourceSide + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(pngHeader(tt.w, tt.h), "image/png", 2<<20)
			require.Error(t, err)
			assert.True(t, models.IsCode(err, models.CodeValidation), "got %v", err)
			assert.Contains(t, err.Error(), "dimensions")
		})
	}
}
