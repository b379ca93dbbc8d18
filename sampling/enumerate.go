package sampling

import (
	"github.com/pkg/errors"
)

// ImageIndex locates one image: the group position in the dataset and the
// image position inside that group.
type ImageIndex struct {
	Group int `json:"group"`
	Image int `json:"image"`
}

// Pair is a moving/fixed image pair.
type Pair struct {
	Moving ImageIndex `json:"moving"`
	Fixed  ImageIndex `json:"fixed"`
}

// Intra reports whether both images belong to the same group.
func (p Pair) Intra() bool {
	return p.Moving.Group == p.Fixed.Group
}

// Indices returns the caller-facing identifiers of the pair:
// moving group, moving image, fixed group, fixed image.
func (p Pair) Indices() []int {
	return []int{p.Moving.Group, p.Moving.Image, p.Fixed.Group, p.Fixed.Image}
}

func totalImages(sizes []int) int {
	total := 0
	for _, n := range sizes {
		total += n
	}
	return total
}

// CountInterPairs is the number of ordered pairs whose images come from two
// different groups: N(N-1) minus the ordered pairs inside each group.
func CountInterPairs(sizes []int) int {
	n := totalImages(sizes)
	count := n * (n - 1)
	for _, ni := range sizes {
		count -= ni * (ni - 1)
	}
	return count
}

// CountIntraPairs is the number of pairs inside groups under opt.
func CountIntraPairs(sizes []int, opt IntraGroupOption) (int, error) {
	ordered := 0
	for _, ni := range sizes {
		ordered += ni * (ni - 1)
	}
	switch opt {
	case Forward, Backward:
		return ordered / 2, nil
	case Unconstrained:
		return ordered, nil
	}
	return 0, &UnknownOptionError{Value: string(opt)}
}

// InterPairs enumerates every inter-group pair. The order is moving group,
// moving image, fixed group, fixed image, each ascending.
func InterPairs(sizes []int) ([]Pair, error) {
	if len(sizes) < 2 {
		return nil, errors.Wrapf(ErrNeedTwoGroups, "got %d group(s)", len(sizes))
	}
	pairs := make([]Pair, 0, CountInterPairs(sizes))
	for gm, nm := range sizes {
		for m := range nm {
			for gf, nf := range sizes {
				if gf == gm {
					continue
				}
				for f := range nf {
					pairs = append(pairs, Pair{
						Moving: ImageIndex{Group: gm, Image: m},
						Fixed:  ImageIndex{Group: gf, Image: f},
					})
				}
			}
		}
	}
	return pairs, nil
}

// IntraPairs enumerates every intra-group pair allowed by opt, group by
// group, ordered by moving position and then fixed position.
func IntraPairs(sizes []int, opt IntraGroupOption) ([]Pair, error) {
	count, err := CountIntraPairs(sizes, opt)
	if err != nil {
		return nil, err
	}
	pairs := make([]Pair, 0, count)
	for g, n := range sizes {
		for m := range n {
			for f := range n {
				if !allowed(opt, m, f) {
					continue
				}
				pairs = append(pairs, Pair{
					Moving: ImageIndex{Group: g, Image: m},
					Fixed:  ImageIndex{Group: g, Image: f},
				})
			}
		}
	}
	return pairs, nil
}

// allowed applies the direction policy to moving position m and fixed
// position f of the same group. opt must already be a known option.
func allowed(opt IntraGroupOption, m, f int) bool {
	switch opt {
	case Forward:
		return m < f
	case Backward:
		return m > f
	default:
		return m != f
	}
}

// ExhaustivePairs returns the full pair list for an exhaustive config:
// inter-group pairs for IntraGroupProb 0 and intra-group pairs for 1.
func ExhaustivePairs(sizes []int, cfg Config) ([]Pair, error) {
	switch cfg.IntraGroupProb {
	case 0:
		return InterPairs(sizes)
	case 1:
		opt, err := ParseIntraGroupOption(cfg.IntraGroupOption)
		if err != nil {
			return nil, err
		}
		return IntraPairs(sizes, opt)
	}
	return nil, errors.Wrapf(ErrMixingIntraInter, "intra_group_prob=%v", cfg.IntraGroupProb)
}

// NumSamples is the number of samples per epoch. It is computed from the
// formulas above without materialising any list: one draw per group in the
// lazy-random regime, the pair count otherwise.
func NumSamples(sizes []int, cfg Config) (int, error) {
	if cfg.SampleImageInGroup {
		return len(sizes), nil
	}
	switch cfg.IntraGroupProb {
	case 0:
		if len(sizes) < 2 {
			return 0, errors.Wrapf(ErrNeedTwoGroups, "got %d group(s)", len(sizes))
		}
		return CountInterPairs(sizes), nil
	case 1:
		opt, err := ParseIntraGroupOption(cfg.IntraGroupOption)
		if err != nil {
			return 0, err
		}
		return CountIntraPairs(sizes, opt)
	}
	return 0, errors.Wrapf(ErrMixingIntraInter, "intra_group_prob=%v", cfg.IntraGroupProb)
}
