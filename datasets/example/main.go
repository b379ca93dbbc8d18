package main

// Example command that demonstrates building a GroupedDataLoader over a
// grouped directory layout, walking one epoch of sample indices and
// converting a small batch into gomlx tensors.
//
// Volumes are only read while yielding batches, so the dataset can be much
// larger than memory.
//
// Usage:
//   go run ./datasets/example -data data/train
//
// The directory must contain images/<group>/<image>.raw files written with
// loader.EncodeRaw (and labels/<group>/<image>.raw with -labeled).

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/snehashis1997/DeepReg/datasets"
	"github.com/snehashis1997/DeepReg/loader"
	"github.com/snehashis1997/DeepReg/sampling"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	dataDir := flag.String("data", "data/train", "dataset directory")
	labeled := flag.Bool("labeled", false, "pair labels with the images")
	prob := flag.Float64("prob", 1, "probability of intra-group pairs")
	option := flag.String("option", "forward", "intra-group direction")
	seed := flag.Int64("seed", 0, "sampling seed")
	flag.Parse()

	cfg := sampling.Config{
		Labeled:          *labeled,
		IntraGroupProb:   *prob,
		IntraGroupOption: *option,
		Seed:             sampling.Seed(*seed),
	}
	if *labeled {
		cfg.SampleLabel = sampling.SampleLabelAll
	}
	if err := run(*dataDir, cfg); err != nil {
		log.Fatal().Err(err).Msg("example failed")
	}
}

func run(dataDir string, cfg sampling.Config) error {
	d, err := datasets.NewGroupedDataLoader(datasets.GroupedConfig{
		DataDirPath: dataDir,
		FileLoader:  loader.DirFactory(afero.NewOsFs(), loader.WithDecoder(loader.RawDecoder)),
		Sampling:    cfg,
	})
	if err != nil {
		return errors.WithMessage(err, "failed to create grouped data loader")
	}
	defer d.Close()

	if err := d.ValidateDataFiles(); err != nil {
		return errors.WithMessage(err, "inconsistent data files")
	}
	fmt.Printf("Images per group: %v\n", d.NumImagesPerGroup())
	fmt.Printf("Samples per epoch: %d\n", d.NumSamples())

	// Walk the sample indices without touching the volumes.
	it := d.SampleIndexGenerator()
	for it.HasNext() {
		s, err := it.Next()
		if err != nil {
			return errors.WithMessage(err, "failed to draw sample")
		}
		if s.FlatIndex < 5 {
			fmt.Printf("  sample %d: moving %v fixed %v\n", s.FlatIndex, s.Moving, s.Fixed)
		}
	}

	// Load a first batch as gomlx tensors.
	ds, err := datasets.NewPairDataset("example", d, 4)
	if err != nil {
		return errors.WithMessage(err, "failed to create pair dataset")
	}
	_, inputs, labels, err := ds.Yield()
	if err == io.EOF {
		fmt.Println("Dataset yielded no batch")
		return nil
	}
	if err != nil {
		return errors.WithMessage(err, "failed to yield batch")
	}
	for i, t := range inputs {
		fmt.Printf("  input %d: %s\n", i, t.Shape())
	}
	for i, t := range labels {
		fmt.Printf("  label %d: %s\n", i, t.Shape())
	}
	return nil
}
