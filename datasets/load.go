package datasets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"github.com/Oisin-M/cellrank/cellgraph"
)

// Load fetches (or reuses) the named dataset bundle and assembles it.
// The bundle shape is verified against the registry before any
// annotation parsing; gene names are deduplicated afterwards.
func Load(ctx context.Context, name Name, opts ...Option) (*cellgraph.Dataset, error) {
	ent, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDataset, name)
	}
	cfg := DefaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}

	bundlePath := cfg.Path
	if bundlePath == "" {
		bundlePath = filepath.Join("datasets", ent.file+".tar.gz")
	}
	url := cfg.URL
	if url == "" {
		url = ent.url
	}

	if _, err := os.Stat(bundlePath); cfg.Force || os.IsNotExist(err) {
		if err := fetch(ctx, cfg.Client, url, bundlePath, cfg.Progress); err != nil {
			return nil, err
		}
	}

	ds, _, err := parseBundle(bundlePath)
	if err != nil {
		return nil, err
	}
	if ds.NumCells() != ent.cells || ds.NumGenes() != ent.genes {
		return nil, fmt.Errorf("%w: %q is %dx%d, want %dx%d",
			ErrShapeMismatch, name, ds.NumCells(), ds.NumGenes(), ent.cells, ent.genes)
	}

	return ds, nil
}

// subsetByObsPresence keeps the cells whose categorical annotation at
// key is non-empty, rebuilding every table. The connectivity graph, if
// any, is dropped; it does not survive row selection.
func subsetByObsPresence(ds *cellgraph.Dataset, key string) (*cellgraph.Dataset, error) {
	labels, err := ds.CategoricalObs(key)
	if err != nil {
		return nil, err
	}

	var keep []int
	for i, label := range labels {
		if label != "" {
			keep = append(keep, i)
		}
	}

	ids := ds.CellIDs()
	keptIDs := make([]string, len(keep))
	for t, i := range keep {
		keptIDs[t] = ids[i]
	}

	opts := make([]cellgraph.Option, 0, 8)
	for _, obsKey := range ds.NumericObsKeys() {
		vals, err := ds.NumericObs(obsKey)
		if err != nil {
			return nil, err
		}
		kept := make([]float64, len(keep))
		for t, i := range keep {
			kept[t] = vals[i]
		}
		opts = append(opts, cellgraph.WithNumericObs(obsKey, kept))
	}
	for _, obsKey := range ds.CategoricalObsKeys() {
		vals, err := ds.CategoricalObs(obsKey)
		if err != nil {
			return nil, err
		}
		kept := make([]string, len(keep))
		for t, i := range keep {
			kept[t] = vals[i]
		}
		opts = append(opts, cellgraph.WithCategoricalObs(obsKey, kept))
	}
	for _, layerKey := range ds.LayerKeys() {
		layer, err := ds.Layer(layerKey)
		if err != nil {
			return nil, err
		}
		opts = append(opts, cellgraph.WithLayer(layerKey, pickRows(layer, keep)))
	}
	for _, embKey := range ds.EmbeddingKeys() {
		emb, err := ds.Embedding(embKey)
		if err != nil {
			return nil, err
		}
		opts = append(opts, cellgraph.WithEmbedding(embKey, pickRows(emb, keep)))
	}

	return cellgraph.NewDataset(pickRows(ds.X(), keep), keptIDs, ds.GeneNames(), opts...)
}

func pickRows(m *mat.Dense, rows []int) *mat.Dense {
	_, c := m.Dims()
	out := mat.NewDense(len(rows), c, nil)
	for t, i := range rows {
		out.SetRow(t, m.RawRowView(i))
	}

	return out
}
