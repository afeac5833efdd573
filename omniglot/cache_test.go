package omniglot

import (
	"image"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransform(t *testing.T) {
	black := image.NewGray(image.Rect(0, 0, 105, 105))
	white := image.NewGray(image.Rect(0, 0, 105, 105))
	for i := range white.Pix {
		white.Pix[i] = 255
	}

	ink := transform(black)
	paper := transform(white)
	require.Len(t, ink, NumPixels)
	require.Len(t, paper, NumPixels)
	for i := range ink {
		assert.True(t, ink[i] > 0.9, "black input should transform to ink")
		assert.True(t, paper[i] < 0.1, "white input should transform to background")
	}
}

func TestImageCache(t *testing.T) {
	dir, err := ioutil.TempDir("", "omniglot-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	writeTestClass(t, dir, 3, 2)

	cache, err := NewImageCache(10)
	require.NoError(t, err)

	path := filepath.Join(dir, "00.png")
	first, err := cache.Get(path)
	require.NoError(t, err)
	require.Len(t, first, NumPixels)
	assert.Equal(t, 1, cache.Len())

	second, err := cache.Get(path)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())
	// A hit hands back the cached slice rather than re-decoding
	assert.Same(t, &first[0], &second[0])
}

func TestImageCacheEviction(t *testing.T) {
	dir, err := ioutil.TempDir("", "omniglot-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	writeTestClass(t, dir, 3, 3)

	cache, err := NewImageCache(1)
	require.NoError(t, err)

	for i, name := range []string{"00.png", "01.png", "02.png"} {
		_, err := cache.Get(filepath.Join(dir, name))
		require.NoError(t, err, "image %d", i)
		assert.Equal(t, 1, cache.Len())
	}
}

func TestImageCacheMissingFile(t *testing.T) {
	cache, err := NewImageCache(4)
	require.NoError(t, err)

	_, err = cache.Get("/does/not/exist.png")
	require.Error(t, err)
	assert.Equal(t, 0, cache.Len())
}
