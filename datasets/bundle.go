package datasets

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/Oisin-M/cellrank/cellgraph"
)

// manifest describes a bundle's contents.
type manifest struct {
	Name           string   `yaml:"name"`
	Cells          int      `yaml:"cells"`
	Genes          int      `yaml:"genes"`
	NumericObs     []string `yaml:"numeric_obs"`
	CategoricalObs []string `yaml:"categorical_obs"`
	Layers         []string `yaml:"layers"`
	Embeddings     []string `yaml:"embeddings"`
}

// parseBundle reads a gzipped tar bundle into a dataset. Gene names
// are deduplicated with the standard suffix policy before assembly.
func parseBundle(bundlePath string) (*cellgraph.Dataset, *manifest, error) {
	f, err := os.Open(bundlePath)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	files, err := readArchive(f)
	if err != nil {
		return nil, nil, err
	}

	raw, ok := files["manifest.yaml"]
	if !ok {
		return nil, nil, fmt.Errorf("%w: missing manifest.yaml", ErrBadBundle)
	}
	var mf manifest
	if err := yaml.Unmarshal(raw, &mf); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrBadManifest, err)
	}
	if mf.Cells <= 0 || mf.Genes <= 0 {
		return nil, nil, fmt.Errorf("%w: non-positive shape %dx%d",
			ErrBadManifest, mf.Cells, mf.Genes)
	}

	xRaw, ok := files["X.csv"]
	if !ok {
		return nil, nil, fmt.Errorf("%w: missing X.csv", ErrBadBundle)
	}
	cellIDs, geneNames, x, err := parseMatrixCSV(xRaw)
	if err != nil {
		return nil, nil, err
	}
	if len(cellIDs) != mf.Cells || len(geneNames) != mf.Genes {
		return nil, nil, fmt.Errorf("%w: manifest says %dx%d, X.csv holds %dx%d",
			ErrBadManifest, mf.Cells, mf.Genes, len(cellIDs), len(geneNames))
	}
	geneNames = cellgraph.MakeUniqueNames(geneNames)

	var opts []cellgraph.Option
	if obsRaw, ok := files["obs.csv"]; ok {
		obsOpts, err := parseObsCSV(obsRaw, &mf, len(cellIDs))
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, obsOpts...)
	} else if len(mf.NumericObs)+len(mf.CategoricalObs) > 0 {
		return nil, nil, fmt.Errorf("%w: manifest lists annotations but obs.csv is missing", ErrBadBundle)
	}

	for _, name := range mf.Layers {
		raw, ok := files[path.Join("layers", name+".csv")]
		if !ok {
			return nil, nil, fmt.Errorf("%w: missing layer %q", ErrBadBundle, name)
		}
		_, _, layer, err := parseMatrixCSV(raw)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, cellgraph.WithLayer(name, layer))
	}
	for _, name := range mf.Embeddings {
		raw, ok := files[path.Join("embeddings", name+".csv")]
		if !ok {
			return nil, nil, fmt.Errorf("%w: missing embedding %q", ErrBadBundle, name)
		}
		_, _, emb, err := parseMatrixCSV(raw)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, cellgraph.WithEmbedding(name, emb))
	}

	ds, err := cellgraph.NewDataset(x, cellIDs, geneNames, opts...)
	if err != nil {
		return nil, nil, err
	}

	return ds, &mf, nil
}

// readArchive decompresses a tar.gz stream into a name -> bytes map.
func readArchive(r io.Reader) (map[string][]byte, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadBundle, err)
	}
	defer gz.Close()

	files := make(map[string][]byte)
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadBundle, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadBundle, err)
		}
		files[path.Clean(hdr.Name)] = data
	}

	return files, nil
}

// parseMatrixCSV reads a "cell_id, col..." table into row IDs, column
// names and a dense matrix.
func parseMatrixCSV(raw []byte) ([]string, []string, *mat.Dense, error) {
	records, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrBadBundle, err)
	}
	if len(records) < 2 || len(records[0]) < 2 {
		return nil, nil, nil, fmt.Errorf("%w: empty matrix table", ErrBadBundle)
	}

	cols := records[0][1:]
	ids := make([]string, 0, len(records)-1)
	data := make([]float64, 0, (len(records)-1)*len(cols))
	for rowNum, rec := range records[1:] {
		if len(rec) != len(cols)+1 {
			return nil, nil, nil, fmt.Errorf("%w: row %d has %d fields, want %d",
				ErrBadBundle, rowNum+1, len(rec), len(cols)+1)
		}
		ids = append(ids, rec[0])
		for _, field := range rec[1:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("%w: row %d: %v", ErrBadBundle, rowNum+1, err)
			}
			data = append(data, v)
		}
	}

	return ids, cols, mat.NewDense(len(ids), len(cols), data), nil
}

// parseObsCSV splits the annotation table into numeric and categorical
// options per the manifest; empty numeric fields become NaN.
func parseObsCSV(raw []byte, mf *manifest, cells int) ([]cellgraph.Option, error) {
	records, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadBundle, err)
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("%w: empty obs table", ErrBadBundle)
	}
	if len(records)-1 != cells {
		return nil, fmt.Errorf("%w: obs.csv holds %d cells, want %d",
			ErrBadManifest, len(records)-1, cells)
	}

	colIdx := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		colIdx[name] = i
	}

	numeric := make(map[string]bool, len(mf.NumericObs))
	for _, key := range mf.NumericObs {
		numeric[key] = true
	}

	var opts []cellgraph.Option
	for _, key := range append(append([]string(nil), mf.NumericObs...), mf.CategoricalObs...) {
		idx, ok := colIdx[key]
		if !ok {
			return nil, fmt.Errorf("%w: missing obs column %q", ErrBadManifest, key)
		}
		if numeric[key] {
			vals := make([]float64, cells)
			for i, rec := range records[1:] {
				field := strings.TrimSpace(rec[idx])
				if field == "" {
					vals[i] = math.NaN()

					continue
				}
				v, err := strconv.ParseFloat(field, 64)
				if err != nil {
					return nil, fmt.Errorf("%w: obs %q row %d: %v", ErrBadBundle, key, i+1, err)
				}
				vals[i] = v
			}
			opts = append(opts, cellgraph.WithNumericObs(key, vals))
		} else {
			vals := make([]string, cells)
			for i, rec := range records[1:] {
				vals[i] = rec[idx]
			}
			opts = append(opts, cellgraph.WithCategoricalObs(key, vals))
		}
	}

	return opts, nil
}
