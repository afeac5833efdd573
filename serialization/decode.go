package serialization

import (
	"compress/gzip"
	"encoding/gob"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Decoder is an interface that matches gob.Decoder and json.Decoder
type Decoder interface {
	// Decode extracts an object from the stream
	Decode(interface{}) error
}

// Decode loads a single object from the path into out, which must be a pointer.
// If the path ends with .gz then the contents will be decompressed. The encoding
// is then determined by the remaining file extension, which can be .json or .gob.
func Decode(path string, out interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()
	return decodeAs(f, path, out)
}

// decodeAs is like Decode but uses the provided path to determine the
// compression and encoding used in the stream.
func decodeAs(r io.Reader, path string, out interface{}) error {
	trimmed := path

	// Switch on compression
	if strings.HasSuffix(trimmed, ".gz") {
		trimmed = strings.TrimSuffix(trimmed, ".gz")
		gz, err := gzip.NewReader(r)
		if err != nil {
			return errors.Wrapf(err, "decompressing %s", path)
		}
		defer gz.Close()
		r = gz
	}

	// Switch on encoding
	var d Decoder
	switch {
	case strings.HasSuffix(trimmed, ".json"):
		d = json.NewDecoder(r)
	case strings.HasSuffix(trimmed, ".gob"):
		d = gob.NewDecoder(r)
	default:
		return errors.Errorf("could not find decoder for %s", path)
	}

	if err := d.Decode(out); err != nil {
		return errors.Wrapf(err, "decoding %s", path)
	}
	return nil
}
