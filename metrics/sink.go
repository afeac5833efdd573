package metrics

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// Sink receives every scalar as it is recorded, for real-time consumers that
// should not wait for the next checkpoint.
type Sink interface {
	LogScalar(metric string, iteration int, value float64) error
}

// Discard is a Sink that drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) LogScalar(string, int, float64) error { return nil }

// event is one line in the scalar stream.
type event struct {
	Metric    string  `json:"metric"`
	Iteration int     `json:"iteration"`
	Value     float64 `json:"value"`
}

// JSONLSink appends one JSON object per scalar to a log file. Lines hit the
// file as they are written, so the stream can be tailed while training runs.
type JSONLSink struct {
	f   *os.File
	enc *json.Encoder
}

// NewJSONLSink opens the scalar stream at path, appending to an existing one
// so resumed runs keep writing to the same file.
func NewJSONLSink(path string) (*JSONLSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "opening scalar stream %s", path)
	}
	return &JSONLSink{f: f, enc: json.NewEncoder(f)}, nil
}

// LogScalar writes one event line.
func (s *JSONLSink) LogScalar(metric string, iteration int, value float64) error {
	if err := s.enc.Encode(event{Metric: metric, Iteration: iteration, Value: value}); err != nil {
		return errors.Wrapf(err, "writing scalar %s", metric)
	}
	return nil
}

// Close closes the stream.
func (s *JSONLSink) Close() error {
	return s.f.Close()
}
