// Package datasets: names, sentinel errors and load options.
package datasets

import (
	"errors"
	"net/http"
)

// Name identifies a registry entry.
type Name string

// Registered datasets.
const (
	// Pancreas is murine pancreas development at E15.5.
	Pancreas Name = "pancreas"

	// PancreasPreprocessed is the pancreas dataset after the basic
	// preprocessing recipe.
	PancreasPreprocessed Name = "pancreas_preprocessed"

	// Lung is murine lung regeneration across 13 time points.
	Lung Name = "lung"

	// ReprogrammingMorris is fibroblast-to-endoderm reprogramming with
	// CellTag clonal information.
	ReprogrammingMorris Name = "reprogramming_morris"

	// ReprogrammingSchiebinger is fibroblast-to-iPSC reprogramming
	// across 39 time points.
	ReprogrammingSchiebinger Name = "reprogramming_schiebinger"

	// ReprogrammingSchiebingerSerum is the serum-condition subset with a
	// precomputed transition matrix.
	ReprogrammingSchiebingerSerum Name = "reprogramming_schiebinger_serum_subset"

	// Zebrafish is zebrafish embryogenesis restricted to the axial
	// mesoderm lineage.
	Zebrafish Name = "zebrafish"

	// BoneMarrow is human CD34+ bone marrow cells.
	BoneMarrow Name = "bone_marrow"
)

// MorrisSubset selects a portion of the Morris reprogramming dataset.
type MorrisSubset string

// Morris subsets, chosen by annotation presence after the full
// download.
const (
	MorrisFull MorrisSubset = "full"
	Morris48k  MorrisSubset = "48k"
	Morris85k  MorrisSubset = "85k"
)

// Sentinel errors.
var (
	// ErrUnknownDataset indicates a name missing from the registry.
	ErrUnknownDataset = errors.New("datasets: unknown dataset")

	// ErrShapeMismatch indicates a bundle whose cell/gene counts differ
	// from the registry entry.
	ErrShapeMismatch = errors.New("datasets: unexpected dataset shape")

	// ErrBadBundle indicates a malformed bundle archive.
	ErrBadBundle = errors.New("datasets: malformed bundle")

	// ErrBadManifest indicates a manifest that does not describe the
	// bundle contents.
	ErrBadManifest = errors.New("datasets: invalid manifest")

	// ErrDownloadFailed indicates a non-success HTTP response.
	ErrDownloadFailed = errors.New("datasets: download failed")

	// ErrUnknownSubset indicates an unsupported Morris subset.
	ErrUnknownSubset = errors.New("datasets: unknown subset")
)

// Options configures Load.
type Options struct {
	// Path is the cache location; empty derives
	// "datasets/<name>.tar.gz" under the working directory.
	Path string

	// URL overrides the registry URL (mirrors, tests).
	URL string

	// Force re-downloads even when the cache file exists.
	Force bool

	// Client is the HTTP client used for downloads.
	Client *http.Client

	// Progress, when set, receives the running and total byte counts
	// during a download (total is -1 when unknown).
	Progress func(done, total int64)
}

// Option mutates Options.
type Option func(*Options)

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{Client: http.DefaultClient}
}

// WithPath sets the cache location.
func WithPath(path string) Option {
	return func(o *Options) { o.Path = path }
}

// WithURL overrides the download URL.
func WithURL(url string) Option {
	return func(o *Options) { o.URL = url }
}

// WithForce re-downloads even when a cached bundle exists.
func WithForce() Option {
	return func(o *Options) { o.Force = true }
}

// WithClient sets the HTTP client (panics on nil, programmer error).
func WithClient(c *http.Client) Option {
	if c == nil {
		panic("datasets: WithClient: nil client")
	}

	return func(o *Options) { o.Client = c }
}

// WithProgress registers a download progress callback.
func WithProgress(fn func(done, total int64)) Option {
	return func(o *Options) { o.Progress = fn }
}
