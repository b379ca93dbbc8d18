package datasets

import (
	"slices"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

// PairBatchFlat stores a batch of examples in flat contiguous buffers.
// Label buffers are empty for unlabeled batches.
type PairBatchFlat struct {
	MovingImages []float32
	FixedImages  []float32
	MovingLabels []float32
	FixedLabels  []float32
	Indices      []int32

	BatchSize  int
	ImageShape []int
	NumIndices int
}

// Labeled reports whether the batch carries labels.
func (b *PairBatchFlat) Labeled() bool {
	return len(b.MovingLabels) > 0
}

// MakePairBatchFlat flattens a batch into contiguous buffers. All examples
// must share the image shape, the number of indices and whether they are
// labeled.
func MakePairBatchFlat(examples []*Example) (*PairBatchFlat, error) {
	if len(examples) == 0 {
		return &PairBatchFlat{}, nil
	}

	first := examples[0]
	shape := append([]int(nil), first.MovingImage.Shape...)
	imageSize := shapeSize(shape)
	numIndices := len(first.Indices)
	labeled := first.MovingLabel != nil

	b := &PairBatchFlat{
		MovingImages: make([]float32, 0, len(examples)*imageSize),
		FixedImages:  make([]float32, 0, len(examples)*imageSize),
		Indices:      make([]int32, 0, len(examples)*numIndices),
		BatchSize:    len(examples),
		ImageShape:   shape,
		NumIndices:   numIndices,
	}
	for i, ex := range examples {
		for _, v := range []struct {
			name  string
			shape []int
		}{
			{"moving image", ex.MovingImage.Shape},
			{"fixed image", ex.FixedImage.Shape},
		} {
			if !slices.Equal(v.shape, shape) {
				return nil, errors.Errorf("inconsistent %s shape at example %d: expected %v, got %v",
					v.name, i, shape, v.shape)
			}
		}
		if len(ex.Indices) != numIndices {
			return nil, errors.Errorf("inconsistent indices at example %d: expected %d, got %d",
				i, numIndices, len(ex.Indices))
		}
		if (ex.MovingLabel != nil) != labeled || (ex.FixedLabel != nil) != labeled {
			return nil, errors.Errorf("example %d mixes labeled and unlabeled data", i)
		}
		b.MovingImages = append(b.MovingImages, ex.MovingImage.Data...)
		b.FixedImages = append(b.FixedImages, ex.FixedImage.Data...)
		for _, idx := range ex.Indices {
			b.Indices = append(b.Indices, int32(idx))
		}
		if !labeled {
			continue
		}
		if len(ex.MovingLabel.Data) != imageSize || len(ex.FixedLabel.Data) != imageSize {
			return nil, errors.Errorf("label of example %d does not match image shape %v", i, shape)
		}
		b.MovingLabels = append(b.MovingLabels, ex.MovingLabel.Data...)
		b.FixedLabels = append(b.FixedLabels, ex.FixedLabel.Data...)
	}
	return b, nil
}

// ToGomlxTensors converts the batch into the inputs and labels yielded by
// PairDataset.
func (b *PairBatchFlat) ToGomlxTensors() (inputs, labels []*tensors.Tensor, err error) {
	if b.BatchSize == 0 {
		return nil, nil, errors.New("cannot convert an empty batch")
	}
	dims := append([]int{b.BatchSize}, b.ImageShape...)
	inputs = []*tensors.Tensor{
		tensors.FromFlatDataAndDimensions(b.MovingImages, dims...),
		tensors.FromFlatDataAndDimensions(b.FixedImages, dims...),
	}
	if b.Labeled() {
		inputs = append(inputs, tensors.FromFlatDataAndDimensions(b.MovingLabels, dims...))
		labels = []*tensors.Tensor{tensors.FromFlatDataAndDimensions(b.FixedLabels, dims...)}
	}
	inputs = append(inputs, tensors.FromFlatDataAndDimensions(b.Indices, b.BatchSize, b.NumIndices))
	return inputs, labels, nil
}
