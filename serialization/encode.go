package serialization

import (
	"compress/gzip"
	"encoding/gob"
	"encoding/json"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Encode writes the object to the path, using the format specified by the file
// extension, which can be .json or .gob. The path may additionally have a .gz
// suffix, in which case the stream will be compressed.
func Encode(path string, obj interface{}) error {
	enc, err := NewEncoder(path)
	if err != nil {
		return err
	}
	if err := enc.Encode(obj); err != nil {
		enc.Close()
		return errors.Wrapf(err, "encoding %s", path)
	}
	return enc.Close()
}

// EncodeAtomic writes the object to a temporary file in the same directory and
// renames it over path, so a reader sees either the previous contents or the
// complete new contents, never a torn write.
func EncodeAtomic(path string, obj interface{}) error {
	f, err := ioutil.TempFile(filepath.Dir(path), filepath.Base(path)+".tmp-")
	if err != nil {
		return errors.Wrapf(err, "creating temp file for %s", path)
	}
	tmp := f.Name()

	enc, err := newEncoderOn(f, path)
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := enc.Encode(obj); err != nil {
		enc.Close()
		os.Remove(tmp)
		return errors.Wrapf(err, "encoding %s", path)
	}
	if err := enc.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "closing %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "replacing %s", path)
	}
	return nil
}

// Encoder is an interface that matches gob.Encoder and json.Encoder
type Encoder interface {
	// Encode adds an item to the stream
	Encode(interface{}) error
}

// EncodeCloser is an encoder that can also close its underlying stream
type EncodeCloser struct {
	encoder Encoder
	closers []io.Closer
}

// Encode writes an object to the underlying stream
func (e *EncodeCloser) Encode(x interface{}) error {
	return e.encoder.Encode(x)
}

// Close closes the underlying stream
func (e *EncodeCloser) Close() error {
	var closeErr error
	// We must close in reverse order
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil {
			closeErr = err
		}
	}
	return closeErr
}

// NewEncoder opens the specified path and returns an encoder that writes in the
// format specified by the file extension, which can be .json or .gob. The path
// may additionally have a .gz suffix, in which case the stream will be compressed.
func NewEncoder(path string) (*EncodeCloser, error) {
	w, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "creating %s", path)
	}
	enc, err := newEncoderOn(w, path)
	if err != nil {
		w.Close()
		return nil, err
	}
	return enc, nil
}

// newEncoderOn builds the encoder chain on an already-open stream, selecting
// compression and encoding from path. EncodeAtomic relies on this split: the
// temp file it writes to does not carry the final extension.
func newEncoderOn(w io.WriteCloser, path string) (*EncodeCloser, error) {
	closers := []io.Closer{w}
	var stream io.Writer = w

	// Switch on compression
	if strings.HasSuffix(path, ".gz") {
		path = strings.TrimSuffix(path, ".gz")
		gz := gzip.NewWriter(stream)
		closers = append(closers, gz)
		stream = gz
	}

	// Switch on encoding
	var e Encoder
	switch {
	case strings.HasSuffix(path, ".json"):
		e = json.NewEncoder(stream)
	case strings.HasSuffix(path, ".gob"):
		e = gob.NewEncoder(stream)
	default:
		return nil, errors.Errorf("could not find encoder for %s", path)
	}

	return &EncodeCloser{
		encoder: e,
		closers: closers,
	}, nil
}
