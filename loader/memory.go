package loader

import (
	"fmt"

	"github.com/pkg/errors"
)

// MemoryLoader serves volumes held in memory. Groups are given in order;
// ids are the image positions.
type MemoryLoader struct {
	groups [][]*Volume
	closed bool
}

// NewMemoryLoader wraps groups. The slices are not copied.
func NewMemoryLoader(groups [][]*Volume) *MemoryLoader {
	return &MemoryLoader{groups: groups}
}

// MemoryFactory serves pre-built loaders by role name, ignoring dirPath.
func MemoryFactory(loaders map[string]FileLoader) Factory {
	return func(dirPath, name string) (FileLoader, error) {
		l, ok := loaders[name]
		if !ok {
			return nil, errors.Errorf("no in-memory loader for role %q", name)
		}
		return l, nil
	}
}

// NumImagesPerGroup implements FileLoader.
func (m *MemoryLoader) NumImagesPerGroup() []int {
	sizes := make([]int, len(m.groups))
	for g, vols := range m.groups {
		sizes[g] = len(vols)
	}
	return sizes
}

// DataIDs implements FileLoader.
func (m *MemoryLoader) DataIDs() []string {
	var ids []string
	for g, vols := range m.groups {
		for i := range vols {
			ids = append(ids, fmt.Sprintf("group-%d/%d", g, i))
		}
	}
	return ids
}

// Data implements FileLoader.
func (m *MemoryLoader) Data(group, image int) (*Volume, error) {
	if m.closed {
		return nil, ErrClosed
	}
	if group < 0 || group >= len(m.groups) {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "group %d of %d", group, len(m.groups))
	}
	if image < 0 || image >= len(m.groups[group]) {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "image %d of %d in group %d", image, len(m.groups[group]), group)
	}
	return m.groups[group][image], nil
}

// Close implements FileLoader.
func (m *MemoryLoader) Close() error {
	m.closed = true
	return nil
}

// Closed implements FileLoader.
func (m *MemoryLoader) Closed() bool {
	return m.closed
}
