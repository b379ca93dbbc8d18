// Package loader holds the file-loader collaborators of a grouped dataset.
//
// A FileLoader enumerates the groups of one role (images or labels), gives
// an identifier per image for cross-role consistency checks, loads a volume
// by (group, image) position and releases its storage on Close. The core
// never depends on a concrete layout; variants are chosen through a Factory:
//
//   - DirLoader: <dir>/<name>/<group>/<image><ext> on an afero.Fs;
//   - CSVLoader: a <dir>/<name>.csv manifest with group, image and path columns;
//   - MemoryLoader: volumes held in memory.
package loader

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrClosed is returned by Data once Close has been called.
	ErrClosed = errors.New("file loader is closed")
	// ErrIndexOutOfRange is returned for a (group, image) outside the loader.
	ErrIndexOutOfRange = errors.New("image index out of range")
	// ErrNoGroups is returned when discovery finds nothing.
	ErrNoGroups = errors.New("no groups found")
	// ErrNoDecoder is returned by Data when the loader was built without a decoder.
	ErrNoDecoder = errors.New("no volume decoder configured")
)

// Volume is a dense float32 volume in row-major order. Images are usually
// [d1, d2, d3]; labels may carry a trailing channel axis [d1, d2, d3, L].
type Volume struct {
	Data  []float32
	Shape []int
}

// NumLabels is the size of the channel axis of a 4D label volume, 1 otherwise.
func (v *Volume) NumLabels() int {
	if len(v.Shape) == 4 {
		return v.Shape[3]
	}
	return 1
}

// Channel returns label channel l of a 4D volume as a 3D volume. For 3D
// volumes only channel 0 exists and the volume itself is returned.
func (v *Volume) Channel(l int) (*Volume, error) {
	if len(v.Shape) != 4 {
		if l != 0 {
			return nil, errors.Wrapf(ErrIndexOutOfRange, "label channel %d of a %dD volume", l, len(v.Shape))
		}
		return v, nil
	}
	n := v.Shape[3]
	if l < 0 || l >= n {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "label channel %d of %d", l, n)
	}
	size := v.Shape[0] * v.Shape[1] * v.Shape[2]
	if size < 0 || len(v.Data) != size*n {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "volume shape %v holds %d voxels, got %d", v.Shape, size*n, len(v.Data))
	}
	out := &Volume{Data: make([]float32, size), Shape: append([]int(nil), v.Shape[:3]...)}
	for i := range size {
		out.Data[i] = v.Data[i*n+l]
	}
	return out, nil
}

// FileLoader is the capability a grouped dataset needs from storage.
type FileLoader interface {
	// NumImagesPerGroup returns the image count of every group, in group order.
	NumImagesPerGroup() []int

	// DataIDs returns one identifier per image, group-major. Two roles that
	// describe the same images (for example images and labels) return equal ids.
	DataIDs() []string

	// Data loads the volume at the given position.
	Data(group, image int) (*Volume, error)

	// Close releases the underlying storage. Calling it again is a no-op.
	Close() error

	// Closed reports whether Close has been called.
	Closed() bool
}

// Factory builds the loader of role name (for example "images" or "labels")
// under dirPath.
type Factory func(dirPath, name string) (FileLoader, error)

// groupIndex is the enumeration shared by file-backed loaders: group names,
// and for every group the image ids and their paths.
type groupIndex struct {
	groupNames []string
	ids        [][]string
	paths      [][]string
}

func (x *groupIndex) add(group, id, path string) {
	for g, name := range x.groupNames {
		if name == group {
			x.ids[g] = append(x.ids[g], id)
			x.paths[g] = append(x.paths[g], path)
			return
		}
	}
	x.groupNames = append(x.groupNames, group)
	x.ids = append(x.ids, []string{id})
	x.paths = append(x.paths, []string{path})
}

// NumImagesPerGroup implements FileLoader.
func (x *groupIndex) NumImagesPerGroup() []int {
	sizes := make([]int, len(x.ids))
	for g, ids := range x.ids {
		sizes[g] = len(ids)
	}
	return sizes
}

// DataIDs implements FileLoader. Ids are "<group>/<image>".
func (x *groupIndex) DataIDs() []string {
	var out []string
	for g, ids := range x.ids {
		for _, id := range ids {
			out = append(out, fmt.Sprintf("%s/%s", x.groupNames[g], id))
		}
	}
	return out
}

// GroupNames returns the group names in group order.
func (x *groupIndex) GroupNames() []string {
	return append([]string(nil), x.groupNames...)
}

func (x *groupIndex) path(group, image int) (string, error) {
	if group < 0 || group >= len(x.paths) {
		return "", errors.Wrapf(ErrIndexOutOfRange, "group %d of %d", group, len(x.paths))
	}
	if image < 0 || image >= len(x.paths[group]) {
		return "", errors.Wrapf(ErrIndexOutOfRange, "image %d of %d in group %d", image, len(x.paths[group]), group)
	}
	return x.paths[group][image], nil
}
