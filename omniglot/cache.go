package omniglot

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
)

// DefaultCacheSize holds the transformed pixels of the full standard Omniglot
// background set, so a long run decodes each image at most once.
const DefaultCacheSize = 40000

// ImageCache decodes, transforms and caches images keyed by path.
type ImageCache struct {
	cache *lru.Cache
}

// NewImageCache returns a cache holding up to size transformed images.
func NewImageCache(size int) (*ImageCache, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, errors.Wrapf(err, "creating image cache of size %d", size)
	}
	return &ImageCache{cache: c}, nil
}

// Get returns the transformed pixels for the image at path, decoding it on a
// cache miss. The returned slice is shared with the cache and must not be
// modified by the caller.
func (c *ImageCache) Get(path string) ([]float32, error) {
	if cached, ok := c.cache.Get(path); ok {
		return cached.([]float32), nil
	}
	px, err := loadImage(path)
	if err != nil {
		return nil, err
	}
	c.cache.Add(path, px)
	return px, nil
}

// Len returns the number of images currently cached.
func (c *ImageCache) Len() int {
	return c.cache.Len()
}
