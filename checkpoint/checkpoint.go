package checkpoint

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/metalearn/reptile/metrics"
	"github.com/metalearn/reptile/model"
	"github.com/metalearn/reptile/optimize"
	"github.com/metalearn/reptile/serialization"
)

// Snapshot is everything needed to continue a run: the meta-model, both
// optimizer states, the loop position, and the metric history. Restoring all
// five makes a resumed run carry on as if it never stopped.
type Snapshot struct {
	MetaIteration int
	MetaParams    *model.Params
	MetaOpt       *optimize.SGDState
	BaseOpt       *optimize.AdamState
	Ledger        metrics.Ledger
}

// Manager writes and reads snapshots under a checkpoint directory.
type Manager struct {
	dir string
}

// NewManager creates the checkpoint directory if needed and returns a manager
// over it. Creation is idempotent, so restarted runs reuse the directory.
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, errors.Wrapf(err, "creating checkpoint dir %s", dir)
	}
	return &Manager{dir: dir}, nil
}

// Dir returns the checkpoint directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Path returns the snapshot file for a meta-iteration.
func (m *Manager) Path(iteration int) string {
	return filepath.Join(m.dir, fmt.Sprintf("check-%d.gob.gz", iteration))
}

// Save writes the snapshot for its iteration. The file appears atomically: a
// reader finds either nothing or a complete snapshot, never a torn one.
func (m *Manager) Save(snap *Snapshot) error {
	if err := serialization.EncodeAtomic(m.Path(snap.MetaIteration), snap); err != nil {
		return errors.Wrapf(err, "saving checkpoint at iteration %d", snap.MetaIteration)
	}
	return nil
}

// Load reads a snapshot from an explicit path. A missing file is an error:
// resuming from a checkpoint that does not exist aborts the run rather than
// silently starting over.
func Load(path string) (*Snapshot, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(err, "checkpoint %s", path)
	}
	var snap Snapshot
	if err := serialization.Decode(path, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Latest returns the snapshot path with the highest iteration in dir, or an
// error when the directory holds none.
func Latest(dir string) (string, error) {
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return "", errors.Wrapf(err, "listing %s", dir)
	}
	best := -1
	var bestPath string
	for _, fi := range entries {
		var iter int
		if _, err := fmt.Sscanf(fi.Name(), "check-%d.gob.gz", &iter); err != nil {
			continue
		}
		if iter > best {
			best = iter
			bestPath = filepath.Join(dir, fi.Name())
		}
	}
	if best < 0 {
		return "", errors.Errorf("no checkpoints under %s", dir)
	}
	return bestPath, nil
}
