package loader

import (
	"encoding/csv"
	"io"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Common header names for the manifest columns, tried in order.
var (
	groupColumnNames = []string{"group", "group_id", "subject", "subject_id"}
	imageColumnNames = []string{"image", "image_id", "id"}
	pathColumnNames  = []string{"path", "file", "filename"}
)

// CSVLoader reads the group structure of a role from a manifest file
// <dirPath>/<name>.csv. Each row names a group, an image id and the path of
// the file, relative to dirPath unless absolute. Groups keep the order in
// which they first appear and images keep row order inside their group.
type CSVLoader struct {
	groupIndex

	fs       afero.Fs
	manifest string
	decoder  Decoder
	closed   bool
}

// NewCSVLoader parses the manifest of role name under dirPath. dec may be nil
// when only the group structure is needed.
func NewCSVLoader(fs afero.Fs, dirPath, name string, dec Decoder) (*CSVLoader, error) {
	c := &CSVLoader{
		fs:       fs,
		manifest: filepath.Join(dirPath, name+".csv"),
		decoder:  dec,
	}
	if err := c.read(dirPath); err != nil {
		return nil, err
	}
	return c, nil
}

// CSVFactory returns a Factory building CSVLoaders on fs.
func CSVFactory(fs afero.Fs, dec Decoder) Factory {
	return func(dirPath, name string) (FileLoader, error) {
		return NewCSVLoader(fs, dirPath, name, dec)
	}
}

func (c *CSVLoader) read(dirPath string) error {
	f, err := c.fs.Open(c.manifest)
	if err != nil {
		return errors.Wrapf(err, "failed to open manifest %s", c.manifest)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return errors.Wrapf(err, "failed to read header of %s", c.manifest)
	}
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.TrimSpace(strings.ToLower(col))] = i
	}
	groupCol, err := findColumn(colIndex, groupColumnNames)
	if err != nil {
		return errors.WithMessagef(err, "manifest %s", c.manifest)
	}
	imageCol, err := findColumn(colIndex, imageColumnNames)
	if err != nil {
		return errors.WithMessagef(err, "manifest %s", c.manifest)
	}
	pathCol, err := findColumn(colIndex, pathColumnNames)
	if err != nil {
		return errors.WithMessagef(err, "manifest %s", c.manifest)
	}

	row := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrapf(err, "failed to read row %d of %s", row, c.manifest)
		}
		row++
		group := strings.TrimSpace(record[groupCol])
		image := strings.TrimSpace(record[imageCol])
		path := strings.TrimSpace(record[pathCol])
		if group == "" || image == "" {
			return errors.Errorf("row %d of %s has an empty group or image", row, c.manifest)
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(dirPath, path)
		}
		c.add(group, image, path)
	}
	if len(c.groupNames) == 0 {
		return errors.Wrapf(ErrNoGroups, "in manifest %s", c.manifest)
	}
	return nil
}

func findColumn(colIndex map[string]int, names []string) (int, error) {
	for _, name := range names {
		if idx, ok := colIndex[name]; ok {
			return idx, nil
		}
	}
	return -1, errors.Errorf("none of the columns %v found", names)
}

// Data implements FileLoader.
func (c *CSVLoader) Data(group, image int) (*Volume, error) {
	if c.closed {
		return nil, ErrClosed
	}
	path, err := c.path(group, image)
	if err != nil {
		return nil, err
	}
	if c.decoder == nil {
		return nil, errors.Wrapf(ErrNoDecoder, "reading %s", path)
	}
	f, err := c.fs.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()
	v, err := c.decoder.Decode(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to decode %s", path)
	}
	return v, nil
}

// Close implements FileLoader.
func (c *CSVLoader) Close() error {
	c.closed = true
	return nil
}

// Closed implements FileLoader.
func (c *CSVLoader) Closed() bool {
	return c.closed
}
