package datasets

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildBundle assembles an in-memory tar.gz bundle: 4 cells, 3 genes
// (one duplicated name), pseudotime with one missing value, cluster
// annotations, a velocity layer and a 2-d embedding.
func buildBundle(t *testing.T) []byte {
	t.Helper()

	files := map[string]string{
		"manifest.yaml": `name: test_small
cells: 4
genes: 3
numeric_obs: [pseudotime]
categorical_obs: [clusters, cluster, timecourse]
layers: [velocity]
embeddings: [umap]
`,
		"X.csv": "cell_id,g1,g2,g1\n" +
			"c1,1,2,3\n" +
			"c2,4,5,6\n" +
			"c3,7,8,9\n" +
			"c4,10,11,12\n",
		"obs.csv": "cell_id,pseudotime,clusters,cluster,timecourse\n" +
			"c1,0.1,alpha,m1,t1\n" +
			"c2,0.2,alpha,m2,t2\n" +
			"c3,0.3,beta,,t3\n" +
			"c4,,beta,,\n",
		"layers/velocity.csv": "cell_id,g1,g2,g1\n" +
			"c1,1,0,0\n" +
			"c2,0,1,0\n" +
			"c3,0,0,1\n" +
			"c4,1,1,1\n",
		"embeddings/umap.csv": "cell_id,d1,d2\n" +
			"c1,0,0\n" +
			"c2,1,0\n" +
			"c3,0,1\n" +
			"c4,1,1\n",
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: name, Mode: 0o644, Size: int64(len(content)),
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	return buf.Bytes()
}

// withTestEntry temporarily points a registry name at a 4x3 bundle
// served over HTTP.
func withTestEntry(t *testing.T, name Name, cells, genes int) string {
	t.Helper()

	bundle := buildBundle(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bundle)
	}))
	t.Cleanup(srv.Close)

	old, had := registry[name]
	registry[name] = entry{url: srv.URL, cells: cells, genes: genes, file: string(name)}
	t.Cleanup(func() {
		if had {
			registry[name] = old
		} else {
			delete(registry, name)
		}
	})

	return srv.URL
}

func TestLoad_DownloadAndParse(t *testing.T) {
	const name = Name("test_small")
	withTestEntry(t, name, 4, 3)
	cache := filepath.Join(t.TempDir(), "bundle.tar.gz")

	var calls int
	ds, err := Load(context.Background(), name,
		WithPath(cache),
		WithProgress(func(done, total int64) { calls++ }),
	)
	require.NoError(t, err)

	assert.Equal(t, 4, ds.NumCells())
	assert.Equal(t, []string{"g1", "g2", "g1-1"}, ds.GeneNames())
	assert.Positive(t, calls)

	pt, err := ds.NumericObs("pseudotime")
	require.NoError(t, err)
	assert.InDelta(t, 0.1, pt[0], 1e-12)
	assert.True(t, math.IsNaN(pt[3]))

	clusters, err := ds.CategoricalObs("clusters")
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "alpha", "beta", "beta"}, clusters)

	assert.True(t, ds.HasLayer("velocity"))
	emb, err := ds.Embedding("umap")
	require.NoError(t, err)
	_, d := emb.Dims()
	assert.Equal(t, 2, d)
}

func TestLoad_CacheReuse(t *testing.T) {
	const name = Name("test_cached")
	withTestEntry(t, name, 4, 3)
	cache := filepath.Join(t.TempDir(), "bundle.tar.gz")

	_, err := Load(context.Background(), name, WithPath(cache))
	require.NoError(t, err)

	// Break the URL: a cached bundle must not hit the network again.
	ent := registry[name]
	ent.url = "http://127.0.0.1:1/nope"
	registry[name] = ent

	_, err = Load(context.Background(), name, WithPath(cache))
	assert.NoError(t, err)
}

func TestLoad_ShapeMismatch(t *testing.T) {
	const name = Name("test_bad_shape")
	withTestEntry(t, name, 2531, 27998)

	_, err := Load(context.Background(), name,
		WithPath(filepath.Join(t.TempDir(), "bundle.tar.gz")))
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestLoad_UnknownDataset(t *testing.T) {
	_, err := Load(context.Background(), Name("nope"))
	assert.ErrorIs(t, err, ErrUnknownDataset)
}

func TestLoad_Cancelled(t *testing.T) {
	const name = Name("test_cancel")
	withTestEntry(t, name, 4, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Load(ctx, name, WithPath(filepath.Join(t.TempDir(), "bundle.tar.gz")))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseBundle_Garbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.tar.gz")
	require.NoError(t, os.WriteFile(path, []byte("not a bundle"), 0o644))

	_, _, err := parseBundle(path)
	assert.ErrorIs(t, err, ErrBadBundle)
}

func TestMorrisSubsets(t *testing.T) {
	withTestEntry(t, ReprogrammingMorris, 4, 3)
	cache := filepath.Join(t.TempDir(), "morris.tar.gz")

	full, err := ReprogrammingMorrisDataset(context.Background(), MorrisFull, WithPath(cache))
	require.NoError(t, err)
	assert.Equal(t, 4, full.NumCells())

	// 48k keeps cells with a cluster label, 85k those with a
	// timecourse label.
	k48, err := ReprogrammingMorrisDataset(context.Background(), Morris48k, WithPath(cache))
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, k48.CellIDs())

	k85, err := ReprogrammingMorrisDataset(context.Background(), Morris85k, WithPath(cache))
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2", "c3"}, k85.CellIDs())

	_, err = ReprogrammingMorrisDataset(context.Background(), MorrisSubset("nope"), WithPath(cache))
	assert.ErrorIs(t, err, ErrUnknownSubset)
}
