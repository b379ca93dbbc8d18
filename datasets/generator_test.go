package datasets

import (
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snehashis1997/DeepReg/sampling"
)

// drainExamples reads one epoch of examples.
func drainExamples(t *testing.T, e *ExampleIterator) []*Example {
	t.Helper()
	var out []*Example
	for {
		ex, err := e.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, ex)
	}
}

func TestDataGeneratorLabelAll(t *testing.T) {
	const numLabels = 3
	d := newTestLoader(t, []int{2, 3}, numLabels, sampling.Config{SampleLabel: sampling.SampleLabelAll})
	pairs := d.SampleIndices()
	require.Len(t, pairs, 12)

	examples := drainExamples(t, d.DataGenerator())
	require.Len(t, examples, 12*numLabels)
	for i, ex := range examples {
		pair := pairs[i/numLabels]
		l := i % numLabels
		assert.Equal(t, append(pair.Indices(), l), ex.Indices)
		assert.Equal(t, imageValue(pair.Moving.Group, pair.Moving.Image), ex.MovingImage.Data[0])
		assert.Equal(t, imageValue(pair.Fixed.Group, pair.Fixed.Image), ex.FixedImage.Data[0])
		assert.Equal(t, testShape, ex.MovingLabel.Shape)
		assert.Equal(t, labelValue(pair.Moving.Group, pair.Moving.Image, l), ex.MovingLabel.Data[7])
		assert.Equal(t, labelValue(pair.Fixed.Group, pair.Fixed.Image, l), ex.FixedLabel.Data[0])
	}
}

func TestDataGeneratorLabelSample(t *testing.T) {
	const numLabels = 4
	d := newTestLoader(t, []int{3, 4}, numLabels, sampling.Config{
		SampleLabel:        sampling.SampleLabelSample,
		IntraGroupProb:     0.5,
		IntraGroupOption:   "unconstrained",
		SampleImageInGroup: true,
		Seed:               sampling.Seed(7),
	})

	e := d.DataGenerator()
	first := drainExamples(t, e)
	require.Len(t, first, d.NumSamples())
	for _, ex := range first {
		require.Len(t, ex.Indices, 5)
		l := ex.Indices[4]
		assert.True(t, l >= 0 && l < numLabels, "label index %d", l)
		assert.Equal(t, labelValue(ex.Indices[0], ex.Indices[1], l), ex.MovingLabel.Data[0])
	}

	e.Reset()
	assert.Equal(t, first, drainExamples(t, e))
	assert.Equal(t, first, drainExamples(t, d.DataGenerator()))
}

func TestDataGeneratorExample(t *testing.T) {
	d := newTestLoader(t, []int{2, 3}, 5, sampling.Config{
		SampleLabel: sampling.SampleLabelSample,
		Seed:        sampling.Seed(3),
	})
	it := d.SampleIndexGenerator()
	s, err := it.Next()
	require.NoError(t, err)

	a, err := d.Example(s)
	require.NoError(t, err)
	b, err := d.Example(s)
	require.NoError(t, err)
	require.Len(t, a, 1)
	assert.Equal(t, a[0].Indices, b[0].Indices)
}

func TestDataGeneratorUnlabeled(t *testing.T) {
	d := newTestLoader(t, []int{2, 3}, 0, sampling.Config{IntraGroupProb: 1, IntraGroupOption: "backward"})
	examples := drainExamples(t, d.DataGenerator())
	require.Len(t, examples, 4)
	for _, ex := range examples {
		require.Len(t, ex.Indices, 4)
		assert.Nil(t, ex.MovingLabel)
		assert.Nil(t, ex.FixedLabel)
		assert.Greater(t, ex.Indices[1], ex.Indices[3], "backward pairs move from a later image")
	}
}

func TestDataGeneratorImageShape(t *testing.T) {
	images, _ := memoryLoaders([]int{2, 3}, 0)
	d, err := NewGroupedDataLoader(GroupedConfig{
		ImageShape: []int{3, 3, 3},
		FileLoader: memoryFactory(images, nil),
	})
	require.NoError(t, err)
	defer d.Close()

	_, err = d.DataGenerator().Next()
	assert.True(t, errors.Is(err, ErrImageShape))
}

func TestPairDatasetYield(t *testing.T) {
	d := newTestLoader(t, []int{2, 3}, 0, sampling.Config{})
	ds, err := NewPairDataset("pairs", d, 5)
	require.NoError(t, err)
	assert.Equal(t, "pairs", ds.Name())
	assert.Equal(t, 12, ds.Len())

	for epoch := range 2 {
		var sizes []int
		for {
			spec, inputs, labels, err := ds.Yield()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			assert.Same(t, ds, spec)
			require.Len(t, inputs, 3)
			assert.Empty(t, labels)
			batchSize := inputs[0].Shape().Dimensions[0]
			assert.Equal(t, []int{batchSize, 2, 2, 2}, inputs[0].Shape().Dimensions)
			assert.Equal(t, []int{batchSize, 2, 2, 2}, inputs[1].Shape().Dimensions)
			assert.Equal(t, []int{batchSize, 4}, inputs[2].Shape().Dimensions)
			sizes = append(sizes, batchSize)
		}
		assert.Equal(t, []int{5, 5, 2}, sizes, "epoch %d", epoch)
		ds.Reset()
	}

	ds.DropIncomplete = true
	count := 0
	for {
		_, _, _, err := ds.Yield()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, 2, count)

	_, err = NewPairDataset("bad", d, 0)
	assert.Error(t, err)
}

func TestPairDatasetYieldLabeled(t *testing.T) {
	d := newTestLoader(t, []int{2, 3}, 2, sampling.Config{})
	ds, err := NewPairDataset("labeled", d, 4)
	require.NoError(t, err)

	batches := 0
	for {
		_, inputs, labels, err := ds.Yield()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		require.Len(t, inputs, 4)
		require.Len(t, labels, 1)
		assert.Equal(t, []int{4, 2, 2, 2}, labels[0].Shape().Dimensions)
		assert.Equal(t, []int{4, 5}, inputs[3].Shape().Dimensions)
		batches++
	}
	assert.Equal(t, 6, batches)
}
