package loader

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// DefaultExtensions are the file suffixes a DirLoader enumerates by default.
var DefaultExtensions = []string{".nii.gz", ".nii", ".raw"}

// DirLoader enumerates a grouped directory layout:
//
//	<dirPath>/<name>/<group>/<image><ext>
//
// Groups are the sub-directories of <dirPath>/<name> in lexical order, and
// images are the matching files of each group in lexical order. Files are
// only opened by Data.
type DirLoader struct {
	groupIndex

	fs         afero.Fs
	root       string
	extensions []string
	decoder    Decoder
	closed     bool
}

// DirOption configures a DirLoader.
type DirOption func(*DirLoader)

// WithExtensions replaces DefaultExtensions.
func WithExtensions(exts ...string) DirOption {
	return func(d *DirLoader) {
		d.extensions = exts
	}
}

// WithDecoder sets the decoder used by Data.
func WithDecoder(dec Decoder) DirOption {
	return func(d *DirLoader) {
		d.decoder = dec
	}
}

// NewDirLoader scans <dirPath>/<name> on fs.
func NewDirLoader(fs afero.Fs, dirPath, name string, opts ...DirOption) (*DirLoader, error) {
	d := &DirLoader{
		fs:         fs,
		root:       filepath.Join(dirPath, name),
		extensions: DefaultExtensions,
	}
	for _, opt := range opts {
		opt(d)
	}
	if err := d.scan(); err != nil {
		return nil, err
	}
	return d, nil
}

// DirFactory returns a Factory building DirLoaders on fs.
func DirFactory(fs afero.Fs, opts ...DirOption) Factory {
	return func(dirPath, name string) (FileLoader, error) {
		return NewDirLoader(fs, dirPath, name, opts...)
	}
}

func (d *DirLoader) scan() error {
	groups, err := afero.ReadDir(d.fs, d.root)
	if err != nil {
		return errors.Wrapf(err, "failed to list groups in %s", d.root)
	}
	for _, group := range groups {
		if !group.IsDir() {
			continue
		}
		groupDir := filepath.Join(d.root, group.Name())
		files, err := afero.ReadDir(d.fs, groupDir)
		if err != nil {
			return errors.Wrapf(err, "failed to list images in %s", groupDir)
		}
		found := false
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			id, ok := d.trimExtension(f.Name())
			if !ok {
				continue
			}
			d.add(group.Name(), id, filepath.Join(groupDir, f.Name()))
			found = true
		}
		if !found {
			// keep the group so that validation reports it as empty
			d.groupNames = append(d.groupNames, group.Name())
			d.ids = append(d.ids, nil)
			d.paths = append(d.paths, nil)
		}
	}
	if len(d.groupNames) == 0 {
		return errors.Wrapf(ErrNoGroups, "in %s", d.root)
	}
	return nil
}

func (d *DirLoader) trimExtension(fileName string) (string, bool) {
	for _, ext := range d.extensions {
		if strings.HasSuffix(fileName, ext) && len(fileName) > len(ext) {
			return strings.TrimSuffix(fileName, ext), true
		}
	}
	return "", false
}

// Data implements FileLoader.
func (d *DirLoader) Data(group, image int) (*Volume, error) {
	if d.closed {
		return nil, ErrClosed
	}
	path, err := d.path(group, image)
	if err != nil {
		return nil, err
	}
	if d.decoder == nil {
		return nil, errors.Wrapf(ErrNoDecoder, "reading %s", path)
	}
	f, err := d.fs.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()
	v, err := d.decoder.Decode(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to decode %s", path)
	}
	return v, nil
}

// Close implements FileLoader.
func (d *DirLoader) Close() error {
	d.closed = true
	return nil
}

// Closed implements FileLoader.
func (d *DirLoader) Closed() bool {
	return d.closed
}
