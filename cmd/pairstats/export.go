package main

import (
	"path/filepath"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/snehashis1997/DeepReg/datasets"
	"github.com/snehashis1997/DeepReg/monte"
	"github.com/snehashis1997/DeepReg/sampling"
)

type sampleRecord struct {
	FlatIndex int    `json:"flat_index"`
	Moving    [2]int `json:"moving"`
	Fixed     [2]int `json:"fixed"`
	Intra     bool   `json:"intra"`
	Indices   []int  `json:"indices"`
}

type exportFile struct {
	DataDirPath       string          `json:"data_dir_path"`
	NumImagesPerGroup []int           `json:"num_images_per_group"`
	Sampling          sampling.Config `json:"sampling"`
	Epoch             uint64          `json:"epoch"`
	Samples           []sampleRecord  `json:"samples"`
	Audit             *monte.Report   `json:"audit,omitempty"`
}

// writeJSON exports the sample indices of d with the audit report.
func writeJSON(fs afero.Fs, path string, d *datasets.GroupedDataLoader, report *monte.Report) error {
	it := d.SampleIndexGenerator()
	out := exportFile{
		DataDirPath:       d.Config().DataDirPath,
		NumImagesPerGroup: d.NumImagesPerGroup(),
		Sampling:          d.Config().Sampling,
		Epoch:             it.Epoch(),
		Samples:           make([]sampleRecord, 0, it.Len()),
		Audit:             report,
	}
	for it.HasNext() {
		s, err := it.Next()
		if err != nil {
			return err
		}
		out.Samples = append(out.Samples, sampleRecord{
			FlatIndex: s.FlatIndex,
			Moving:    [2]int{s.Moving.Group, s.Moving.Image},
			Fixed:     [2]int{s.Fixed.Group, s.Fixed.Image},
			Intra:     s.Intra(),
			Indices:   s.Indices,
		})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode sample indices")
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", path)
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}
