package datasets

import (
	"context"
	"fmt"

	"github.com/Oisin-M/cellrank/cellgraph"
)

type entry struct {
	url   string
	cells int
	genes int
	file  string
}

// registry mirrors the published figshare bundles; shapes are the
// full-download cell/gene counts.
var registry = map[Name]entry{
	Pancreas: {
		url:   "https://figshare.com/ndownloader/files/25060877",
		cells: 2531, genes: 27998,
		file: "endocrinogenesis_day15.5",
	},
	PancreasPreprocessed: {
		url:   "https://figshare.com/ndownloader/files/25030028",
		cells: 2531, genes: 2000,
		file: "endocrinogenesis_day15.5_preprocessed",
	},
	Lung: {
		url:   "https://figshare.com/ndownloader/files/25038224",
		cells: 24882, genes: 24051,
		file: "lung_regeneration",
	},
	ReprogrammingMorris: {
		url:   "https://figshare.com/ndownloader/files/25503773",
		cells: 104679, genes: 22630,
		file: "reprogramming_morris",
	},
	ReprogrammingSchiebinger: {
		url:   "https://figshare.com/ndownloader/files/28618734",
		cells: 236285, genes: 19089,
		file: "reprogramming_schiebinger",
	},
	ReprogrammingSchiebingerSerum: {
		url:   "https://figshare.com/ndownloader/files/35858033",
		cells: 165892, genes: 19089,
		file: "reprogramming_schiebinger_serum",
	},
	Zebrafish: {
		url:   "https://figshare.com/ndownloader/files/27265280",
		cells: 2434, genes: 23974,
		file: "zebrafish",
	},
	BoneMarrow: {
		url:   "https://figshare.com/ndownloader/files/35826944",
		cells: 5780, genes: 27876,
		file: "bone_marrow",
	},
}

// PancreasDataset loads murine pancreas development at E15.5.
func PancreasDataset(ctx context.Context, opts ...Option) (*cellgraph.Dataset, error) {
	return Load(ctx, Pancreas, opts...)
}

// PancreasPreprocessedDataset loads the preprocessed pancreas data.
func PancreasPreprocessedDataset(ctx context.Context, opts ...Option) (*cellgraph.Dataset, error) {
	return Load(ctx, PancreasPreprocessed, opts...)
}

// LungDataset loads murine lung regeneration.
func LungDataset(ctx context.Context, opts ...Option) (*cellgraph.Dataset, error) {
	return Load(ctx, Lung, opts...)
}

// ZebrafishDataset loads zebrafish axial mesoderm embryogenesis.
func ZebrafishDataset(ctx context.Context, opts ...Option) (*cellgraph.Dataset, error) {
	return Load(ctx, Zebrafish, opts...)
}

// BoneMarrowDataset loads human CD34+ bone marrow cells.
func BoneMarrowDataset(ctx context.Context, opts ...Option) (*cellgraph.Dataset, error) {
	return Load(ctx, BoneMarrow, opts...)
}

// ReprogrammingMorrisDataset loads the Morris reprogramming time
// course, optionally restricted to the 48k (clustered cells) or 85k
// (time-course cells) subset.
func ReprogrammingMorrisDataset(ctx context.Context, subset MorrisSubset, opts ...Option) (*cellgraph.Dataset, error) {
	ds, err := Load(ctx, ReprogrammingMorris, opts...)
	if err != nil {
		return nil, err
	}

	switch subset {
	case MorrisFull, "":
		return ds, nil
	case Morris48k:
		return subsetByObsPresence(ds, "cluster")
	case Morris85k:
		return subsetByObsPresence(ds, "timecourse")
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSubset, subset)
	}
}

// ReprogrammingSchiebingerDataset loads the Schiebinger reprogramming
// time course, optionally restricted to the serum condition.
func ReprogrammingSchiebingerDataset(ctx context.Context, subsetToSerum bool, opts ...Option) (*cellgraph.Dataset, error) {
	name := ReprogrammingSchiebinger
	if subsetToSerum {
		name = ReprogrammingSchiebingerSerum
	}

	return Load(ctx, name, opts...)
}
