package datasets

import (
	"github.com/gomlx/gomlx/pkg/core/tensors"

	"github.com/snehashis1997/DeepReg/sampling"
)

// This package turns grouped image storage into moving/fixed training pairs.
//
// Layout and intended usage:
//
// GroupStore
//   - Holds the file loaders of the four roles (moving/fixed image and label)
//   - Moving and fixed roles share one loader per kind, images and labels
//   - ValidateDataFiles checks that every role agrees with the moving images
//
// GroupedDataLoader
//   - Builds the loaders through a loader.Factory, discovers the groups and
//     validates the sampling configuration against them
//   - Caches the exhaustive pair list, or leaves it nil for lazy sampling
//   - SampleIndexGenerator opens one epoch of sample indices
//
// ExampleIterator and PairDataset
//   - Load the volumes of each sample lazily, expand labels and batch them
//   - PairDataset implements gomlx's train.Dataset
//
// Volumes are only read while yielding, so memory stays bounded by a batch.
type Dataset interface {
	Len() int
	Example(s sampling.Sample) ([]*Example, error)
	Batch(examples []*Example) (*PairBatchFlat, error)

	// To implement gomlx's train.Dataset interface
	Name() string
	Yield() (any, []*tensors.Tensor, []*tensors.Tensor, error)
	Reset()
}
