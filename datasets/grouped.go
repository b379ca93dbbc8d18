package datasets

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/snehashis1997/DeepReg/loader"
	"github.com/snehashis1997/DeepReg/sampling"
)

// Role names passed to the loader.Factory.
const (
	ImagesName = "images"
	LabelsName = "labels"
)

// ErrNoFileLoader is returned when GroupedConfig has no loader factory.
var ErrNoFileLoader = errors.New("no file loader factory configured")

// GroupedConfig configures a GroupedDataLoader.
type GroupedConfig struct {
	// DataDirPath is handed to the FileLoader factory.
	DataDirPath string

	// ImageShape is the expected shape of every image, checked on load.
	// Empty disables the check.
	ImageShape []int

	FileLoader loader.Factory
	Sampling   sampling.Config

	// Logger defaults to the global zerolog logger.
	Logger *zerolog.Logger
}

// GroupedDataLoader pairs images of a grouped dataset. Moving and fixed
// images come from the same loader, and so do moving and fixed labels.
type GroupedDataLoader struct {
	cfg    GroupedConfig
	store  *GroupStore
	gen    *sampling.Generator
	logger zerolog.Logger

	loaderMovingImage loader.FileLoader
	loaderMovingLabel loader.FileLoader

	closed bool
}

// NewGroupedDataLoader builds the loaders, discovers the groups and
// validates the sampling configuration against them. On error every loader
// opened so far is closed.
func NewGroupedDataLoader(cfg GroupedConfig) (*GroupedDataLoader, error) {
	if cfg.FileLoader == nil {
		return nil, ErrNoFileLoader
	}
	d := &GroupedDataLoader{cfg: cfg, logger: log.Logger}
	if cfg.Logger != nil {
		d.logger = *cfg.Logger
	}
	d.logger = d.logger.With().Str("data_dir", cfg.DataDirPath).Logger()
	d.cfg.ImageShape = append([]int(nil), cfg.ImageShape...)

	if err := d.open(); err != nil {
		_ = d.Close()
		return nil, err
	}
	d.logger.Debug().
		Ints("num_images_per_group", d.store.NumImagesPerGroup()).
		Int("num_samples", d.gen.NumSamples()).
		Bool("exhaustive", d.gen.Exhaustive()).
		Msg("grouped data loader ready")
	return d, nil
}

func (d *GroupedDataLoader) open() error {
	var err error
	d.loaderMovingImage, err = d.cfg.FileLoader(d.cfg.DataDirPath, ImagesName)
	if err != nil {
		return errors.WithMessagef(err, "failed to open %s in %s", ImagesName, d.cfg.DataDirPath)
	}
	roles := map[Role]loader.FileLoader{
		MovingImage: d.loaderMovingImage,
		FixedImage:  d.loaderMovingImage,
	}
	if d.cfg.Sampling.Labeled {
		d.loaderMovingLabel, err = d.cfg.FileLoader(d.cfg.DataDirPath, LabelsName)
		if err != nil {
			return errors.WithMessagef(err, "failed to open %s in %s", LabelsName, d.cfg.DataDirPath)
		}
		roles[MovingLabel] = d.loaderMovingLabel
		roles[FixedLabel] = d.loaderMovingLabel
	}

	d.store, err = DiscoverGroups(roles)
	if err != nil {
		return err
	}
	d.gen, err = sampling.NewGenerator(d.store.NumImagesPerGroup(), d.cfg.Sampling)
	if err != nil {
		return errors.WithMessagef(err, "invalid sampling configuration for %s", d.cfg.DataDirPath)
	}
	return nil
}

// ValidateDataFiles checks that labels agree with the images.
func (d *GroupedDataLoader) ValidateDataFiles() error {
	return d.store.ValidateDataFiles()
}

// NumImagesPerGroup returns the group sizes.
func (d *GroupedDataLoader) NumImagesPerGroup() []int {
	return d.store.NumImagesPerGroup()
}

// SampleIndices is the cached pair list, nil in the lazy-random regime.
func (d *GroupedDataLoader) SampleIndices() []sampling.Pair {
	return d.gen.Pairs()
}

// NumSamples is the number of samples per epoch, before label expansion.
func (d *GroupedDataLoader) NumSamples() int {
	return d.gen.NumSamples()
}

// SampleIndexGenerator starts the sample indices over. Repeated calls yield
// the same sequence; it only depends on the seed.
func (d *GroupedDataLoader) SampleIndexGenerator() *sampling.Iterator {
	return d.gen.Iterator()
}

// SampleIndexGeneratorAt opens a reshuffled epoch of sample indices for
// training loops. Epoch 0 equals SampleIndexGenerator.
func (d *GroupedDataLoader) SampleIndexGeneratorAt(epoch uint64) *sampling.Iterator {
	d.logger.Debug().Uint64("epoch", epoch).Msg("sample index epoch")
	return d.gen.IteratorAt(epoch)
}

// Config returns the configuration the loader was built with.
func (d *GroupedDataLoader) Config() GroupedConfig {
	return d.cfg
}

// Loader returns the file loader of role, if any.
func (d *GroupedDataLoader) Loader(role Role) (loader.FileLoader, bool) {
	if d.store == nil {
		return nil, false
	}
	return d.store.Loader(role)
}

// Close releases the image and label loaders. Closing twice is a no-op.
func (d *GroupedDataLoader) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	var firstErr error
	for _, l := range []loader.FileLoader{d.loaderMovingImage, d.loaderMovingLabel} {
		if l == nil || l.Closed() {
			continue
		}
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = errors.Wrap(err, "failed to close file loader")
		}
	}
	d.logger.Debug().Msg("grouped data loader closed")
	return firstErr
}

// Closed reports whether Close has been called.
func (d *GroupedDataLoader) Closed() bool {
	return d.closed
}
