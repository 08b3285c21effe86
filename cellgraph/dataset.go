package cellgraph

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// NewDataset validates and assembles an annotated dataset.
//
// Validation order (first failure wins):
//  1. non-empty expression matrix (ErrEmptyDataset);
//  2. cellIDs/geneNames lengths match the matrix (ErrDimMismatch);
//  3. names unique (ErrDuplicateName);
//  4. expression entries finite (ErrNaNInf);
//  5. every option-attached annotation/layer/embedding sized to n_cells
//     (ErrDimMismatch) and finite (ErrNaNInf);
//  6. attached connectivities, if any, sized n×n (ErrDimMismatch).
//
// Complexity: O(n·g) over the expression matrix plus attached content.
func NewDataset(x *mat.Dense, cellIDs, geneNames []string, opts ...Option) (*Dataset, error) {
	if x == nil {
		return nil, ErrEmptyDataset
	}
	n, g := x.Dims()
	if n == 0 || g == 0 {
		return nil, ErrEmptyDataset
	}
	if len(cellIDs) != n {
		return nil, fmt.Errorf("%w: %d cell IDs for %d cells", ErrDimMismatch, len(cellIDs), n)
	}
	if len(geneNames) != g {
		return nil, fmt.Errorf("%w: %d gene names for %d genes", ErrDimMismatch, len(geneNames), g)
	}

	d := &Dataset{
		x:              x,
		cellIDs:        append([]string(nil), cellIDs...),
		geneNames:      append([]string(nil), geneNames...),
		cellIdx:        make(map[string]int, n),
		geneIdx:        make(map[string]int, g),
		numericObs:     make(map[string][]float64),
		categoricalObs: make(map[string][]string),
		layers:         make(map[string]*mat.Dense),
		embeddings:     make(map[string]*mat.Dense),
	}
	for i, id := range d.cellIDs {
		if _, dup := d.cellIdx[id]; dup {
			return nil, fmt.Errorf("%w: cell ID %q", ErrDuplicateName, id)
		}
		d.cellIdx[id] = i
	}
	for j, name := range d.geneNames {
		if _, dup := d.geneIdx[name]; dup {
			return nil, fmt.Errorf("%w: gene %q", ErrDuplicateName, name)
		}
		d.geneIdx[name] = j
	}

	if err := checkFinite(x); err != nil {
		return nil, fmt.Errorf("expression matrix: %w", err)
	}

	for _, opt := range opts {
		opt(d)
	}

	for key, vals := range d.numericObs {
		if len(vals) != n {
			return nil, fmt.Errorf("%w: obs %q has %d values for %d cells", ErrDimMismatch, key, len(vals), n)
		}
	}
	for key, vals := range d.categoricalObs {
		if len(vals) != n {
			return nil, fmt.Errorf("%w: obs %q has %d values for %d cells", ErrDimMismatch, key, len(vals), n)
		}
	}
	for key, m := range d.layers {
		r, c := m.Dims()
		if r != n || c != g {
			return nil, fmt.Errorf("%w: layer %q is %d×%d, want %d×%d", ErrDimMismatch, key, r, c, n, g)
		}
		if err := checkFinite(m); err != nil {
			return nil, fmt.Errorf("layer %q: %w", key, err)
		}
	}
	for key, m := range d.embeddings {
		r, _ := m.Dims()
		if r != n {
			return nil, fmt.Errorf("%w: embedding %q has %d rows for %d cells", ErrDimMismatch, key, r, n)
		}
		if err := checkFinite(m); err != nil {
			return nil, fmt.Errorf("embedding %q: %w", key, err)
		}
	}
	if d.conn != nil && d.conn.N() != n {
		return nil, fmt.Errorf("%w: connectivities over %d cells for %d cells", ErrDimMismatch, d.conn.N(), n)
	}

	return d, nil
}

// NumCells returns the number of cells (rows).
func (d *Dataset) NumCells() int { n, _ := d.x.Dims(); return n }

// NumGenes returns the number of genes (columns).
func (d *Dataset) NumGenes() int { _, g := d.x.Dims(); return g }

// CellIDs returns a copy of the cell identifiers in row order.
func (d *Dataset) CellIDs() []string { return append([]string(nil), d.cellIDs...) }

// GeneNames returns a copy of the gene names in column order.
func (d *Dataset) GeneNames() []string { return append([]string(nil), d.geneNames...) }

// X returns the expression matrix. The returned matrix is shared, not
// copied; callers must treat it as read-only.
func (d *Dataset) X() *mat.Dense { return d.x }

// GeneIndex resolves a gene name to its column index.
func (d *Dataset) GeneIndex(name string) (int, error) {
	j, ok := d.geneIdx[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrGeneNotFound, name)
	}

	return j, nil
}

// Gene returns a copy of one expression column.
func (d *Dataset) Gene(name string) ([]float64, error) {
	j, err := d.GeneIndex(name)
	if err != nil {
		return nil, err
	}

	return mat.Col(nil, j, d.x), nil
}

// LayerGene returns a copy of one column of a named layer.
func (d *Dataset) LayerGene(layer, gene string) ([]float64, error) {
	m, err := d.Layer(layer)
	if err != nil {
		return nil, err
	}
	j, err := d.GeneIndex(gene)
	if err != nil {
		return nil, err
	}

	return mat.Col(nil, j, m), nil
}

// NumericObs returns a copy of a numeric per-cell annotation.
func (d *Dataset) NumericObs(key string) ([]float64, error) {
	vals, ok := d.numericObs[key]
	if !ok {
		return nil, fmt.Errorf("%w: numeric obs %q", ErrObsNotFound, key)
	}

	return append([]float64(nil), vals...), nil
}

// CategoricalObs returns a copy of a categorical per-cell annotation.
func (d *Dataset) CategoricalObs(key string) ([]string, error) {
	vals, ok := d.categoricalObs[key]
	if !ok {
		return nil, fmt.Errorf("%w: categorical obs %q", ErrObsNotFound, key)
	}

	return append([]string(nil), vals...), nil
}

// HasObs reports whether a numeric or categorical annotation exists.
func (d *Dataset) HasObs(key string) bool {
	_, numOK := d.numericObs[key]
	_, catOK := d.categoricalObs[key]

	return numOK || catOK
}

// NumericObsKeys returns the numeric annotation keys, sorted.
func (d *Dataset) NumericObsKeys() []string { return sortedKeys(d.numericObs) }

// CategoricalObsKeys returns the categorical annotation keys, sorted.
func (d *Dataset) CategoricalObsKeys() []string { return sortedKeys(d.categoricalObs) }

// LayerKeys returns the layer names, sorted.
func (d *Dataset) LayerKeys() []string { return sortedKeys(d.layers) }

// EmbeddingKeys returns the embedding names, sorted.
func (d *Dataset) EmbeddingKeys() []string { return sortedKeys(d.embeddings) }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

// Layer returns a named layer (shared, read-only).
func (d *Dataset) Layer(key string) (*mat.Dense, error) {
	m, ok := d.layers[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrLayerNotFound, key)
	}

	return m, nil
}

// HasLayer reports whether a named layer exists.
func (d *Dataset) HasLayer(key string) bool { _, ok := d.layers[key]; return ok }

// Embedding returns a named embedding (shared, read-only).
func (d *Dataset) Embedding(key string) (*mat.Dense, error) {
	m, ok := d.embeddings[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrEmbeddingNotFound, key)
	}

	return m, nil
}

// Conn returns the attached connectivity graph.
func (d *Dataset) Conn() (*Connectivities, error) {
	if d.conn == nil {
		return nil, ErrNoConnectivities
	}

	return d.conn, nil
}

// checkFinite rejects NaN and ±Inf anywhere in m.
func checkFinite(m *mat.Dense) error {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		row := m.RawRowView(i)
		for j := 0; j < c; j++ {
			if math.IsNaN(row[j]) || math.IsInf(row[j], 0) {
				return fmt.Errorf("%w: at (%d,%d)", ErrNaNInf, i, j)
			}
		}
	}

	return nil
}

// MakeUniqueNames disambiguates duplicate names by suffixing "-1", "-2",
// … to repeats, first occurrence kept verbatim. Used by dataset loaders
// after parsing gene names.
func MakeUniqueNames(names []string) []string {
	out := make([]string, len(names))
	seen := make(map[string]int, len(names))
	for i, name := range names {
		count, dup := seen[name]
		if !dup {
			seen[name] = 0
			out[i] = name

			continue
		}
		// Probe until the suffixed name is itself unused.
		for {
			count++
			candidate := fmt.Sprintf("%s-%d", name, count)
			if _, taken := seen[candidate]; !taken {
				seen[name] = count
				seen[candidate] = 0
				out[i] = candidate

				break
			}
		}
	}

	return out
}
