package datasets

import (
	"io"
	"math/rand/v2"
	"slices"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/pkg/errors"

	"github.com/snehashis1997/DeepReg/loader"
	"github.com/snehashis1997/DeepReg/sampling"
)

// ErrImageShape is returned when a loaded volume does not have the
// configured image shape.
var ErrImageShape = errors.New("unexpected image shape")

// labelStream separates the label-choice stream from the sample stream of
// the same epoch.
const labelStream = 0x9e3779b97f4a7c15

// Example is one moving/fixed pair ready for training. Labels are nil for
// unlabeled data. For labeled data Indices ends with the label channel.
type Example struct {
	MovingImage *loader.Volume
	FixedImage  *loader.Volume
	MovingLabel *loader.Volume
	FixedLabel  *loader.Volume
	Indices     []int
}

// ExampleIterator loads the examples of one epoch.
type ExampleIterator struct {
	d       *GroupedDataLoader
	samples *sampling.Iterator
	rng     *rand.Rand
	pending []*Example
}

// DataGenerator starts the examples over, in the order of
// SampleIndexGenerator.
func (d *GroupedDataLoader) DataGenerator() *ExampleIterator {
	return d.DataGeneratorAt(0)
}

// DataGeneratorAt opens the examples of a reshuffled epoch, see
// SampleIndexGeneratorAt.
func (d *GroupedDataLoader) DataGeneratorAt(epoch uint64) *ExampleIterator {
	e := &ExampleIterator{d: d, samples: d.SampleIndexGeneratorAt(epoch)}
	e.resetRNG()
	return e
}

func (e *ExampleIterator) resetRNG() {
	e.rng = rand.New(rand.NewPCG(e.d.gen.Seed()^labelStream, e.samples.Epoch()))
}

// Reset replays the epoch from its first example.
func (e *ExampleIterator) Reset() {
	e.samples.Reset()
	e.resetRNG()
	e.pending = nil
}

// Epoch is the epoch being iterated.
func (e *ExampleIterator) Epoch() uint64 {
	return e.samples.Epoch()
}

// Next returns the next example, or io.EOF at the end of the epoch.
func (e *ExampleIterator) Next() (*Example, error) {
	for len(e.pending) == 0 {
		if !e.samples.HasNext() {
			return nil, io.EOF
		}
		s, err := e.samples.Next()
		if err != nil {
			return nil, err
		}
		e.pending, err = e.d.examples(s, e.rng)
		if err != nil {
			return nil, err
		}
	}
	ex := e.pending[0]
	e.pending = e.pending[1:]
	return ex, nil
}

// Example loads the volumes of s and expands its labels. With SampleLabel
// "sample" the label channel is drawn from a generator seeded by the sample
// position.
func (d *GroupedDataLoader) Example(s sampling.Sample) ([]*Example, error) {
	rng := rand.New(rand.NewPCG(d.gen.Seed()^labelStream, uint64(s.FlatIndex)))
	return d.examples(s, rng)
}

func (d *GroupedDataLoader) examples(s sampling.Sample, rng *rand.Rand) ([]*Example, error) {
	if d.closed {
		return nil, loader.ErrClosed
	}
	movingImage, err := d.loadImage(d.loaderMovingImage, s.Moving, len(d.cfg.ImageShape))
	if err != nil {
		return nil, err
	}
	fixedImage, err := d.loadImage(d.loaderMovingImage, s.Fixed, len(d.cfg.ImageShape))
	if err != nil {
		return nil, err
	}
	indices := append([]int(nil), s.Indices...)
	if !d.cfg.Sampling.Labeled {
		return []*Example{{MovingImage: movingImage, FixedImage: fixedImage, Indices: indices}}, nil
	}

	movingLabel, err := d.loadImage(d.loaderMovingLabel, s.Moving, 3)
	if err != nil {
		return nil, err
	}
	fixedLabel, err := d.loadImage(d.loaderMovingLabel, s.Fixed, 3)
	if err != nil {
		return nil, err
	}
	numLabels := movingLabel.NumLabels()
	if fixedLabel.NumLabels() != numLabels {
		return nil, errors.Errorf("moving label %v has %d channels but fixed label %v has %d",
			s.Moving, numLabels, s.Fixed, fixedLabel.NumLabels())
	}

	var channels []int
	switch d.cfg.Sampling.SampleLabel {
	case sampling.SampleLabelAll:
		channels = make([]int, numLabels)
		for l := range channels {
			channels[l] = l
		}
	case sampling.SampleLabelSample:
		channels = []int{rng.IntN(numLabels)}
	default:
		return nil, errors.Wrapf(sampling.ErrUnknownSampleLabel, "got %q", d.cfg.Sampling.SampleLabel)
	}

	out := make([]*Example, 0, len(channels))
	for _, l := range channels {
		ml, err := movingLabel.Channel(l)
		if err != nil {
			return nil, err
		}
		fl, err := fixedLabel.Channel(l)
		if err != nil {
			return nil, err
		}
		out = append(out, &Example{
			MovingImage: movingImage,
			FixedImage:  fixedImage,
			MovingLabel: ml,
			FixedLabel:  fl,
			Indices:     append(append([]int(nil), indices...), l),
		})
	}
	return out, nil
}

// loadImage reads one volume and checks its first dims axes against the
// configured image shape.
func (d *GroupedDataLoader) loadImage(l loader.FileLoader, idx sampling.ImageIndex, dims int) (*loader.Volume, error) {
	v, err := l.Data(idx.Group, idx.Image)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to load group %d image %d", idx.Group, idx.Image)
	}
	want := d.cfg.ImageShape
	if len(want) == 0 {
		return v, nil
	}
	dims = min(dims, len(want))
	if len(v.Shape) < dims || !slices.Equal(v.Shape[:dims], want[:dims]) {
		return nil, errors.Wrapf(ErrImageShape, "group %d image %d: want %v, got %v",
			idx.Group, idx.Image, want, v.Shape)
	}
	return v, nil
}

// PairDataset implements gomlx's train.Dataset over a GroupedDataLoader.
//
// Yield returns:
//
//   - spec: the PairDataset itself.
//   - inputs: moving images, fixed images and, for labeled data, moving
//     labels, each shaped [batch_size, d1, d2, d3], followed by the int32
//     indices shaped [batch_size, num_indices].
//   - labels: the fixed labels for labeled data, none otherwise.
//
// Reset moves on to the next epoch, which is reshuffled from the same seed.
type PairDataset struct {
	// BatchSize for yielding batches
	BatchSize int

	// DropIncomplete skips the last batch of an epoch when it is smaller
	// than BatchSize.
	DropIncomplete bool

	name     string
	d        *GroupedDataLoader
	epoch    uint64
	examples *ExampleIterator
}

var (
	_ train.Dataset = (*PairDataset)(nil)
	_ Dataset       = (*PairDataset)(nil)
)

// NewPairDataset creates a dataset yielding batches of batchSize examples.
func NewPairDataset(name string, d *GroupedDataLoader, batchSize int) (*PairDataset, error) {
	if batchSize < 1 {
		return nil, errors.Errorf("batch size must be positive, got %d", batchSize)
	}
	return &PairDataset{
		BatchSize: batchSize,
		name:      name,
		d:         d,
		examples:  d.DataGenerator(),
	}, nil
}

// Name implements train.Dataset.
func (ds *PairDataset) Name() string {
	return ds.name
}

// Len is the number of samples per epoch, before label expansion.
func (ds *PairDataset) Len() int {
	return ds.d.NumSamples()
}

// Example loads the examples of one sample.
func (ds *PairDataset) Example(s sampling.Sample) ([]*Example, error) {
	return ds.d.Example(s)
}

// Batch flattens examples into contiguous buffers.
func (ds *PairDataset) Batch(examples []*Example) (*PairBatchFlat, error) {
	return MakePairBatchFlat(examples)
}

// Yield implements train.Dataset. It returns io.EOF at the end of an epoch.
func (ds *PairDataset) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	batch := make([]*Example, 0, ds.BatchSize)
	for len(batch) < ds.BatchSize {
		ex, err := ds.examples.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, nil, err
		}
		batch = append(batch, ex)
	}
	if len(batch) == 0 || (ds.DropIncomplete && len(batch) < ds.BatchSize) {
		return nil, nil, nil, io.EOF
	}
	flat, err := ds.Batch(batch)
	if err != nil {
		return nil, nil, nil, err
	}
	inputs, labels, err = flat.ToGomlxTensors()
	if err != nil {
		return nil, nil, nil, err
	}
	return ds, inputs, labels, nil
}

// Reset implements train.Dataset by opening the next epoch.
func (ds *PairDataset) Reset() {
	ds.epoch++
	ds.examples = ds.d.DataGeneratorAt(ds.epoch)
}
