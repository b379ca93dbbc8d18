// Package sampling decides which moving/fixed image pairs a grouped dataset
// produces. It knows nothing about files or voxels: it works on the number of
// images in each group and a Config, and hands out pairs of
// (group, image) positions.
//
// Two regimes exist:
//
//   - exhaustive, when SampleImageInGroup is false: every valid pair is
//     enumerated once, cached, and replayed each epoch (in canonical order
//     without a seed, or in a seeded permutation);
//   - lazy-random, when SampleImageInGroup is true: each epoch draws one pair
//     per group, with the moving image taken from that group and the fixed
//     image chosen inside the group with probability IntraGroupProb or from
//     another group otherwise.
package sampling

// IntraGroupOption is the direction policy for pairs drawn inside one group.
// Positions refer to the order of images within the group.
type IntraGroupOption string

const (
	// Forward pairs a moving image with a fixed image at a later position.
	Forward IntraGroupOption = "forward"
	// Backward pairs a moving image with a fixed image at an earlier position.
	Backward IntraGroupOption = "backward"
	// Unconstrained allows both orderings.
	Unconstrained IntraGroupOption = "unconstrained"
)

// ParseIntraGroupOption accepts exactly the three lower-case literals.
func ParseIntraGroupOption(s string) (IntraGroupOption, error) {
	switch opt := IntraGroupOption(s); opt {
	case Forward, Backward, Unconstrained:
		return opt, nil
	}
	return "", &UnknownOptionError{Value: s}
}

// SampleLabel selects how label channels of a labeled pair become samples.
type SampleLabel string

const (
	// SampleLabelAll emits one sample per label channel.
	SampleLabelAll SampleLabel = "all"
	// SampleLabelSample emits one sample with a randomly chosen label channel.
	SampleLabelSample SampleLabel = "sample"
	// SampleLabelNone is used for unlabeled data.
	SampleLabelNone SampleLabel = ""
)

// Config is the sampling configuration of a grouped loader. It is treated as
// immutable once a Generator has been built from it.
type Config struct {
	// Labeled tells whether label volumes accompany the images.
	Labeled bool `yaml:"labeled" json:"labeled"`

	// SampleLabel is only consulted when Labeled is true.
	SampleLabel SampleLabel `yaml:"sampleLabel" json:"sample_label"`

	// IntraGroupProb is the probability that a pair is drawn inside one group.
	// Without SampleImageInGroup only 0 (inter-group) and 1 (intra-group) are valid.
	IntraGroupProb float64 `yaml:"intraGroupProb" json:"intra_group_prob"`

	// IntraGroupOption is kept as the raw literal so that a bad value is
	// reported verbatim when it is first needed.
	IntraGroupOption string `yaml:"intraGroupOption" json:"intra_group_option"`

	// SampleImageInGroup switches from exhaustive enumeration to one random
	// draw per group and epoch.
	SampleImageInGroup bool `yaml:"sampleImageInGroup" json:"sample_image_in_group"`

	// Seed makes the order reproducible. Nil means non-reproducible for the
	// lazy-random regime and canonical order for the exhaustive one.
	Seed *int64 `yaml:"seed,omitempty" json:"seed,omitempty"`
}

// Seed returns a pointer to v, for filling Config.Seed.
func Seed(v int64) *int64 {
	return &v
}

// Exhaustive reports whether the full pair list is materialised.
func (c Config) Exhaustive() bool {
	return !c.SampleImageInGroup
}

// intraPossible reports whether any pair may be drawn inside a group, that
// is whether IntraGroupOption is ever consumed.
func (c Config) intraPossible() bool {
	return c.IntraGroupProb > 0
}
