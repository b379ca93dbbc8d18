package sampling

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNeedTwoGroups is returned when inter-group sampling is possible but the
	// dataset holds a single group.
	ErrNeedTwoGroups = errors.New("need at least two groups for inter-group sampling")
	// ErrMixingIntraInter is returned for 0 < IntraGroupProb < 1 without
	// SampleImageInGroup.
	ErrMixingIntraInter = errors.New("mixing intra and inter groups is not supported without sample_image_in_group")
	// ErrUnknownIntraGroupOption matches every *UnknownOptionError via errors.Is.
	ErrUnknownIntraGroupOption = errors.New("unknown intra_group_option")
	ErrInvalidProbability      = errors.New("intra_group_prob must be within [0, 1]")
	ErrEmptyGroup              = errors.New("group has no images")
	ErrGroupTooSmall           = errors.New("intra-group sampling needs at least two images in every group")
	ErrUnknownSampleLabel      = errors.New("unknown sample_label")
	ErrNoSamples               = errors.New("no valid moving/fixed pairs")
	// ErrExhausted is returned by Iterator.Next once the epoch is consumed.
	ErrExhausted = errors.New("sample iterator exhausted")
)

// UnknownOptionError carries the rejected intra_group_option literal.
type UnknownOptionError struct {
	Value string
}

func (e *UnknownOptionError) Error() string {
	return fmt.Sprintf("unknown intra_group_option, got %s, expected one of %s, %s or %s",
		e.Value, Forward, Backward, Unconstrained)
}

// Is makes errors.Is(err, ErrUnknownIntraGroupOption) hold.
func (e *UnknownOptionError) Is(target error) bool {
	return target == ErrUnknownIntraGroupOption
}
