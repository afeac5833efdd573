package checkpoint

import (
	"io/ioutil"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metalearn/reptile/metrics"
	"github.com/metalearn/reptile/model"
	"github.com/metalearn/reptile/optimize"
)

func testSnapshot(t *testing.T, iteration int) *Snapshot {
	rng := rand.New(rand.NewSource(17))
	params := model.NewParams(model.Config{
		NumPixels:  4,
		Hidden:     []int{3},
		NumClasses: 2,
	}, rng)

	metaOpt := optimize.NewSGDState()
	metaOpt.Velocity["fc0.weight"] = []float32{0.5, -0.25, 0.125}

	baseOpt := optimize.NewAdamState()
	baseOpt.Step = 42
	baseOpt.M["fc0.weight"] = []float32{1, 2, 3}
	baseOpt.V["fc0.weight"] = []float32{4, 5, 6}

	ledger := metrics.NewLedger()
	ledger.Record("train_loss", 0, 1.5)
	ledger.Record("train_loss", 100, 0.75)
	ledger.Record("val_accuracy", 100, 0.625)

	return &Snapshot{
		MetaIteration: iteration,
		MetaParams:    params,
		MetaOpt:       metaOpt,
		BaseOpt:       baseOpt,
		Ledger:        ledger,
	}
}

func TestPathNaming(t *testing.T) {
	dir, err := ioutil.TempDir("", "checkpoint-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	mgr, err := NewManager(dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "check-1500.gob.gz"), mgr.Path(1500))
	assert.Equal(t, filepath.Join(dir, "check-0.gob.gz"), mgr.Path(0))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir, err := ioutil.TempDir("", "checkpoint-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	mgr, err := NewManager(filepath.Join(dir, "checkpoint"))
	require.NoError(t, err)

	snap := testSnapshot(t, 1000)
	require.NoError(t, mgr.Save(snap))

	loaded, err := Load(mgr.Path(1000))
	require.NoError(t, err)

	require.Equal(t, snap.MetaIteration, loaded.MetaIteration)
	require.Equal(t, snap.MetaParams, loaded.MetaParams)
	require.Equal(t, snap.MetaOpt, loaded.MetaOpt)
	require.Equal(t, snap.BaseOpt, loaded.BaseOpt)
	require.Equal(t, snap.Ledger, loaded.Ledger)
}

func TestSaveLeavesNoTemporaries(t *testing.T) {
	dir, err := ioutil.TempDir("", "checkpoint-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	mgr, err := NewManager(dir)
	require.NoError(t, err)
	require.NoError(t, mgr.Save(testSnapshot(t, 0)))

	entries, err := ioutil.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "check-0.gob.gz", entries[0].Name())
}

func TestLoadMissing(t *testing.T) {
	dir, err := ioutil.TempDir("", "checkpoint-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	_, err = Load(filepath.Join(dir, "check-500.gob.gz"))
	require.Error(t, err)
}

func TestLatest(t *testing.T) {
	dir, err := ioutil.TempDir("", "checkpoint-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	mgr, err := NewManager(dir)
	require.NoError(t, err)

	_, err = Latest(dir)
	require.Error(t, err)

	for _, iteration := range []int{0, 2000, 500} {
		require.NoError(t, mgr.Save(testSnapshot(t, iteration)))
	}

	path, err := Latest(dir)
	require.NoError(t, err)
	assert.Equal(t, mgr.Path(2000), path)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2000, loaded.MetaIteration)
}
