package util

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 10, 10))))
	return buf.Bytes()
}

func TestDecodeImage(t *testing.T) {
	t.Parallel()

	img, format, err := DecodeImage(encodePNG(t))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, image.Rect(0, 0, 10, 10), img.Bounds())

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 4, 4)), nil))
	_, format, err = DecodeImage(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)

	_, _, err = DecodeImage([]byte("not an image"))
	assert.Error(t, err)
}

func TestOpenImage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "img.png")
	require.NoError(t, os.WriteFile(path, encodePNG(t), 0o644))

	img, err := OpenImage(path)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 10), img.Bounds())

	_, err = OpenImage(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestDownloadImage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(encodePNG(t))
	}))
	defer srv.Close()

	img, err := DownloadImage(srv.URL)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 10), img.Bounds())
}
