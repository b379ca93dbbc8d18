package loader

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Decoder turns the bytes of one file into a Volume.
type Decoder interface {
	Decode(r io.Reader) (*Volume, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(r io.Reader) (*Volume, error)

// Decode implements Decoder.
func (f DecoderFunc) Decode(r io.Reader) (*Volume, error) {
	return f(r)
}

const (
	// maxRawRank bounds the header so a corrupt file cannot request a huge shape slice.
	maxRawRank = 8
	// maxRawVoxels bounds the voxel count of one raw volume (4 GiB of float32).
	maxRawVoxels = 1 << 30
)

// RawDecoder reads the little-endian raw volume written by EncodeRaw:
// uint32 rank, rank uint32 dimensions, then the float32 voxels.
var RawDecoder = DecoderFunc(decodeRaw)

func decodeRaw(r io.Reader) (*Volume, error) {
	var rank uint32
	if err := binary.Read(r, binary.LittleEndian, &rank); err != nil {
		return nil, errors.Wrap(err, "failed to read raw volume rank")
	}
	if rank == 0 || rank > maxRawRank {
		return nil, errors.Errorf("invalid raw volume rank %d", rank)
	}
	dims := make([]uint32, rank)
	if err := binary.Read(r, binary.LittleEndian, dims); err != nil {
		return nil, errors.Wrap(err, "failed to read raw volume shape")
	}
	shape := make([]int, rank)
	size := 1
	for i, d := range dims {
		if d == 0 || int(d) > maxRawVoxels/size {
			return nil, errors.Errorf("invalid raw volume shape %v, at most %d voxels", dims, maxRawVoxels)
		}
		shape[i] = int(d)
		size *= int(d)
	}
	data := make([]float32, size)
	if err := binary.Read(r, binary.LittleEndian, data); err != nil {
		return nil, errors.Wrapf(err, "failed to read %d voxels of raw volume %v", size, shape)
	}
	return &Volume{Data: data, Shape: shape}, nil
}

// EncodeRaw writes v in the format read by RawDecoder.
func EncodeRaw(w io.Writer, v *Volume) error {
	size := 1
	dims := make([]uint32, len(v.Shape))
	for i, d := range v.Shape {
		dims[i] = uint32(d)
		size *= d
	}
	if size != len(v.Data) {
		return errors.Errorf("volume shape %v holds %d voxels, got %d", v.Shape, size, len(v.Data))
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(dims))); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, dims); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, v.Data)
}
