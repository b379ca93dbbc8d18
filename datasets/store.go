package datasets

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/snehashis1997/DeepReg/loader"
)

// Role is the part a file loader plays in a pair.
type Role int

const (
	MovingImage Role = iota
	FixedImage
	MovingLabel
	FixedLabel
)

// allRoles in validation order.
var allRoles = []Role{MovingImage, FixedImage, MovingLabel, FixedLabel}

func (r Role) String() string {
	switch r {
	case MovingImage:
		return "moving image"
	case FixedImage:
		return "fixed image"
	case MovingLabel:
		return "moving label"
	case FixedLabel:
		return "fixed label"
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// ErrNoMovingImages is returned by DiscoverGroups without a moving image loader.
var ErrNoMovingImages = errors.New("no moving image loader")

// DataFileMismatchError reports a role whose files disagree with the moving
// images. Group is -1 when the number of groups differs.
type DataFileMismatchError struct {
	Role  Role
	Group int
	Want  string
	Got   string
}

func (e *DataFileMismatchError) Error() string {
	if e.Group < 0 {
		return fmt.Sprintf("%s files do not match moving image files: want %s, got %s", e.Role, e.Want, e.Got)
	}
	return fmt.Sprintf("%s files do not match moving image files in group %d: want %s, got %s",
		e.Role, e.Group, e.Want, e.Got)
}

// GroupStore is the ordered group structure of a dataset, read from its
// moving image loader.
type GroupStore struct {
	loaders map[Role]loader.FileLoader
	sizes   []int
}

// DiscoverGroups reads the groups of the moving image loader. The other
// roles are optional and are only compared by ValidateDataFiles.
func DiscoverGroups(roles map[Role]loader.FileLoader) (*GroupStore, error) {
	moving, ok := roles[MovingImage]
	if !ok || moving == nil {
		return nil, ErrNoMovingImages
	}
	s := &GroupStore{loaders: make(map[Role]loader.FileLoader, len(roles))}
	for role, l := range roles {
		if l != nil {
			s.loaders[role] = l
		}
	}
	s.sizes = moving.NumImagesPerGroup()
	return s, nil
}

// NumImagesPerGroup returns a copy of the group sizes.
func (s *GroupStore) NumImagesPerGroup() []int {
	return append([]int(nil), s.sizes...)
}

// NumGroups is the number of groups.
func (s *GroupStore) NumGroups() int {
	return len(s.sizes)
}

// Loader returns the loader of role, if any.
func (s *GroupStore) Loader(role Role) (loader.FileLoader, bool) {
	l, ok := s.loaders[role]
	return l, ok
}

// ValidateDataFiles compares every role with the moving images: the number
// of groups, the images per group and the data identifiers must all agree.
// It reads no volume data.
func (s *GroupStore) ValidateDataFiles() error {
	wantIDs := s.loaders[MovingImage].DataIDs()
	for _, role := range allRoles[1:] {
		l, ok := s.loaders[role]
		if !ok {
			continue
		}
		if err := s.compare(role, l, wantIDs); err != nil {
			return err
		}
	}
	return nil
}

func (s *GroupStore) compare(role Role, l loader.FileLoader, wantIDs []string) error {
	sizes := l.NumImagesPerGroup()
	if len(sizes) != len(s.sizes) {
		return &DataFileMismatchError{
			Role:  role,
			Group: -1,
			Want:  fmt.Sprintf("%d groups", len(s.sizes)),
			Got:   fmt.Sprintf("%d groups", len(sizes)),
		}
	}
	for g, n := range sizes {
		if n != s.sizes[g] {
			return &DataFileMismatchError{
				Role:  role,
				Group: g,
				Want:  fmt.Sprintf("%d images", s.sizes[g]),
				Got:   fmt.Sprintf("%d images", n),
			}
		}
	}
	ids := l.DataIDs()
	if len(ids) != len(wantIDs) {
		return &DataFileMismatchError{
			Role:  role,
			Group: -1,
			Want:  fmt.Sprintf("%d identifiers", len(wantIDs)),
			Got:   fmt.Sprintf("%d identifiers", len(ids)),
		}
	}
	group, offset := 0, 0
	for i, id := range ids {
		for group < len(s.sizes) && i >= offset+s.sizes[group] {
			offset += s.sizes[group]
			group++
		}
		if id != wantIDs[i] {
			return &DataFileMismatchError{Role: role, Group: group, Want: wantIDs[i], Got: id}
		}
	}
	return nil
}
