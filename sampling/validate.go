package sampling

import (
	"math"

	"github.com/pkg/errors"
)

// Validate checks cfg against the group sizes of a dataset. It returns the
// first violated rule and has no side effects.
//
// The intra_group_option literal is only checked when intra-group pairs can
// be produced (IntraGroupProb > 0); with IntraGroupProb == 0 it is never read.
func Validate(sizes []int, cfg Config) error {
	p := cfg.IntraGroupProb
	if math.IsNaN(p) || p < 0 || p > 1 {
		return errors.Wrapf(ErrInvalidProbability, "got %v", p)
	}
	for g, n := range sizes {
		if n < 1 {
			return errors.Wrapf(ErrEmptyGroup, "group %d", g)
		}
	}
	if p < 1 && len(sizes) < 2 {
		return errors.Wrapf(ErrNeedTwoGroups, "intra_group_prob=%v with %d group(s)", p, len(sizes))
	}
	if !cfg.SampleImageInGroup && p > 0 && p < 1 {
		return errors.Wrapf(ErrMixingIntraInter, "intra_group_prob=%v", p)
	}
	if cfg.intraPossible() {
		if _, err := ParseIntraGroupOption(cfg.IntraGroupOption); err != nil {
			return err
		}
		if cfg.SampleImageInGroup {
			for g, n := range sizes {
				if n < 2 {
					return errors.Wrapf(ErrGroupTooSmall, "group %d has %d image(s)", g, n)
				}
			}
		}
	}
	if cfg.Labeled {
		switch cfg.SampleLabel {
		case SampleLabelAll, SampleLabelSample:
		default:
			return errors.Wrapf(ErrUnknownSampleLabel, "got %q, expected %q or %q",
				cfg.SampleLabel, SampleLabelAll, SampleLabelSample)
		}
	}
	return nil
}
