package sampling

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intraCount(sizes []int, opt IntraGroupOption) int {
	total := 0
	for _, n := range sizes {
		total += n * (n - 1)
	}
	if opt == Unconstrained {
		return total
	}
	return total / 2
}

func TestCountPairsTwoGroups(t *testing.T) {
	sizes := []int{2, 3}

	assert.Equal(t, 12, CountInterPairs(sizes))

	forward, err := CountIntraPairs(sizes, Forward)
	require.NoError(t, err)
	assert.Equal(t, 4, forward)

	backward, err := CountIntraPairs(sizes, Backward)
	require.NoError(t, err)
	assert.Equal(t, 4, backward)

	unconstrained, err := CountIntraPairs(sizes, Unconstrained)
	require.NoError(t, err)
	assert.Equal(t, 8, unconstrained)
}

func TestInterPairs(t *testing.T) {
	for _, sizes := range [][]int{{2, 3}, {1, 1}, {4, 1, 3}, {5, 5, 5, 5}} {
		pairs, err := InterPairs(sizes)
		require.NoError(t, err)

		n := 0
		for _, ni := range sizes {
			n += ni
		}
		want := n * (n - 1)
		for _, ni := range sizes {
			want -= ni * (ni - 1)
		}
		assert.Len(t, pairs, want, "sizes %v", sizes)

		seen := make(map[Pair]bool, len(pairs))
		for _, p := range pairs {
			assert.False(t, p.Intra(), "intra pair %v in inter list", p)
			assert.False(t, seen[p], "duplicate pair %v", p)
			seen[p] = true
		}
	}
}

func TestInterPairsSingleGroup(t *testing.T) {
	_, err := InterPairs([]int{3})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNeedTwoGroups))
}

func TestIntraPairsDirection(t *testing.T) {
	sizes := []int{3, 1, 4}
	for _, opt := range []IntraGroupOption{Forward, Backward, Unconstrained} {
		pairs, err := IntraPairs(sizes, opt)
		require.NoError(t, err)
		assert.Len(t, pairs, intraCount(sizes, opt), "option %s", opt)

		seen := make(map[Pair]bool, len(pairs))
		for _, p := range pairs {
			require.True(t, p.Intra())
			switch opt {
			case Forward:
				assert.Less(t, p.Moving.Image, p.Fixed.Image)
			case Backward:
				assert.Greater(t, p.Moving.Image, p.Fixed.Image)
			case Unconstrained:
				assert.NotEqual(t, p.Moving.Image, p.Fixed.Image)
			}
			assert.False(t, seen[p], "duplicate pair %v", p)
			seen[p] = true
		}
	}
}

func TestIntraPairsCanonicalOrder(t *testing.T) {
	pairs, err := IntraPairs([]int{3}, Forward)
	require.NoError(t, err)
	want := []Pair{
		{Moving: ImageIndex{0, 0}, Fixed: ImageIndex{0, 1}},
		{Moving: ImageIndex{0, 0}, Fixed: ImageIndex{0, 2}},
		{Moving: ImageIndex{0, 1}, Fixed: ImageIndex{0, 2}},
	}
	assert.Equal(t, want, pairs)
}

func TestIntraPairsUnknownOption(t *testing.T) {
	_, err := IntraPairs([]int{2, 3}, IntraGroupOption("Forward"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownIntraGroupOption))
	assert.Contains(t, err.Error(), "got Forward")
}

func TestNumSamples(t *testing.T) {
	sizes := []int{2, 3}
	tests := []struct {
		name string
		cfg  Config
		want int
	}{
		{"inter", Config{IntraGroupProb: 0, IntraGroupOption: "forward"}, 12},
		{"forward", Config{IntraGroupProb: 1, IntraGroupOption: "forward"}, 4},
		{"backward", Config{IntraGroupProb: 1, IntraGroupOption: "backward"}, 4},
		{"unconstrained", Config{IntraGroupProb: 1, IntraGroupOption: "unconstrained"}, 8},
		{"per group", Config{IntraGroupProb: 0.5, IntraGroupOption: "forward", SampleImageInGroup: true}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NumSamples(sizes, tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := NumSamples(sizes, Config{IntraGroupProb: 0.5})
	assert.True(t, errors.Is(err, ErrMixingIntraInter))
}
