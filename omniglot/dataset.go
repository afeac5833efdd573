package omniglot

import (
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Character is a single Omniglot character class: a directory of example
// drawings of the same glyph by different writers.
type Character struct {
	// Name is the class directory relative to the dataset root.
	Name string
	// Images holds the image paths for the class, sorted.
	Images []string
}

// Dataset is the scanned corpus of character classes.
type Dataset struct {
	Root    string
	Classes []*Character
}

// Pool is an immutable set of character classes that tasks are sampled from.
// Pools are fixed at startup and shared by reference afterwards.
type Pool struct {
	Classes []*Character
}

// Scan walks the dataset root and collects character classes. Any directory
// that directly contains image files is a class, which covers both the
// standard omniglot/<alphabet>/<character> layout and flat class directories.
func Scan(root string) (*Dataset, error) {
	byDir := make(map[string][]string)
	err := filepath.Walk(root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() || !isImageFile(path) {
			return nil
		}
		dir := filepath.Dir(path)
		byDir[dir] = append(byDir[dir], path)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scanning %s", root)
	}
	if len(byDir) == 0 {
		return nil, errors.Errorf("no character classes under %s", root)
	}

	dirs := make([]string, 0, len(byDir))
	for dir := range byDir {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	classes := make([]*Character, 0, len(dirs))
	for _, dir := range dirs {
		images := byDir[dir]
		sort.Strings(images)
		name, err := filepath.Rel(root, dir)
		if err != nil {
			name = dir
		}
		classes = append(classes, &Character{Name: name, Images: images})
	}
	return &Dataset{Root: root, Classes: classes}, nil
}

// Split partitions the classes into meta-train and meta-test pools. The class
// list is shuffled on rng and the validation fraction is cut off for meta-test,
// so the held-out classes are a uniform draw and the pools are disjoint.
func (d *Dataset) Split(validation float64, rng *rand.Rand) (metaTrain, metaTest Pool) {
	shuffled := make([]*Character, len(d.Classes))
	copy(shuffled, d.Classes)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	numTest := int(validation * float64(len(shuffled)))
	return Pool{Classes: shuffled[numTest:]}, Pool{Classes: shuffled[:numTest]}
}

func isImageFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}
