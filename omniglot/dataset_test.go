package omniglot

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io/ioutil"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestClass writes n 28x28 PNGs into dir. Row `signature` is fully inked
// so tests can recover the class from transformed pixels, and one pixel in row
// 26 marks the image index so drawings within a class stay distinct.
func writeTestClass(t *testing.T, dir string, signature, n int) {
	t.Helper()
	require.True(t, signature < 26, "signature row would clash with the index marker")
	require.NoError(t, os.MkdirAll(dir, 0755))

	for i := 0; i < n; i++ {
		img := image.NewGray(image.Rect(0, 0, Side, Side))
		for p := range img.Pix {
			img.Pix[p] = 255
		}
		for x := 0; x < Side; x++ {
			img.SetGray(x, signature, color.Gray{})
		}
		img.SetGray(i%Side, 26, color.Gray{})

		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("%02d.png", i)))
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, img))
		require.NoError(t, f.Close())
	}
}

func newTestDataset(t *testing.T, numClasses, imagesPerClass int) (string, func()) {
	t.Helper()
	dir, err := ioutil.TempDir("", "omniglot-test")
	require.NoError(t, err)
	for c := 0; c < numClasses; c++ {
		writeTestClass(t, filepath.Join(dir, "alphabet", fmt.Sprintf("character%02d", c)), c, imagesPerClass)
	}
	return dir, func() { os.RemoveAll(dir) }
}

func TestScan(t *testing.T) {
	root, cleanup := newTestDataset(t, 4, 3)
	defer cleanup()

	// A class directory sitting directly under the root is picked up too
	writeTestClass(t, filepath.Join(root, "flatclass"), 5, 2)

	ds, err := Scan(root)
	require.NoError(t, err)
	require.Len(t, ds.Classes, 5)

	for _, char := range ds.Classes {
		assert.NotEmpty(t, char.Images)
	}
	// Classes come back sorted by directory for deterministic startup
	assert.Equal(t, filepath.Join("alphabet", "character00"), ds.Classes[0].Name)
	assert.Equal(t, "flatclass", ds.Classes[4].Name)
	assert.Len(t, ds.Classes[0].Images, 3)
	assert.Len(t, ds.Classes[4].Images, 2)
}

func TestScanEmpty(t *testing.T) {
	dir, err := ioutil.TempDir("", "omniglot-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	_, err = Scan(dir)
	require.Error(t, err)
}

func TestSplit(t *testing.T) {
	root, cleanup := newTestDataset(t, 20, 2)
	defer cleanup()

	ds, err := Scan(root)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	metaTrain, metaTest := ds.Split(0.1, rng)
	assert.Len(t, metaTrain.Classes, 18)
	assert.Len(t, metaTest.Classes, 2)

	seen := make(map[string]bool)
	all := append(append([]*Character{}, metaTrain.Classes...), metaTest.Classes...)
	for _, char := range all {
		assert.False(t, seen[char.Name], "class %s appears in both pools", char.Name)
		seen[char.Name] = true
	}
	assert.Len(t, seen, 20)
}

func TestSplitDeterministic(t *testing.T) {
	root, cleanup := newTestDataset(t, 10, 2)
	defer cleanup()

	ds, err := Scan(root)
	require.NoError(t, err)

	_, test1 := ds.Split(0.2, rand.New(rand.NewSource(7)))
	_, test2 := ds.Split(0.2, rand.New(rand.NewSource(7)))
	require.Len(t, test1.Classes, 2)
	for i := range test1.Classes {
		assert.Equal(t, test1.Classes[i].Name, test2.Classes[i].Name)
	}
}
