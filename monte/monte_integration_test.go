package monte

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"

	"github.com/snehashis1997/DeepReg/datasets"
	"github.com/snehashis1997/DeepReg/loader"
	"github.com/snehashis1997/DeepReg/sampling"
)

// TestIntegrationWithGroupedDataLoader builds a grouped dataset on an
// in-memory filesystem, loads it through the directory layout and audits the
// sampler of the resulting loader. It also checks that the audit agrees with
// what the loader itself yields for the same seed.
func TestIntegrationWithGroupedDataLoader(t *testing.T) {
	fs := afero.NewMemMapFs()
	sizes := []int{3, 2, 4}
	for g, n := range sizes {
		for i := range n {
			var buf bytes.Buffer
			vol := &loader.Volume{Data: make([]float32, 8), Shape: []int{2, 2, 2}}
			if err := loader.EncodeRaw(&buf, vol); err != nil {
				t.Fatalf("failed to encode volume: %v", err)
			}
			path := filepath.Join("/data/train/images", fmt.Sprintf("subject-%d", g), fmt.Sprintf("scan-%d.raw", i))
			if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
			}
			if err := afero.WriteFile(fs, path, buf.Bytes(), 0o644); err != nil {
				t.Fatalf("failed to write %s: %v", path, err)
			}
		}
	}

	cfg := sampling.Config{
		IntraGroupProb:     0.25,
		IntraGroupOption:   "backward",
		SampleImageInGroup: true,
		Seed:               sampling.Seed(5),
	}
	d, err := datasets.NewGroupedDataLoader(datasets.GroupedConfig{
		DataDirPath: "/data/train",
		ImageShape:  []int{2, 2, 2},
		FileLoader:  loader.DirFactory(fs, loader.WithDecoder(loader.RawDecoder)),
		Sampling:    cfg,
	})
	if err != nil {
		t.Fatalf("failed to create grouped data loader: %v", err)
	}
	defer d.Close()

	m, err := NewMonte(d, cfg, 8)
	if err != nil {
		t.Fatalf("failed to create Monte audit: %v", err)
	}
	m.SetEpochs(3)
	report, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("audit failed: %v", err)
	}
	if report.DirectionViolations != 0 {
		t.Fatalf("backward sampling produced %d violations", report.DirectionViolations)
	}
	for g, c := range report.MovingGroupCounts {
		if c != 8*3 {
			t.Fatalf("group %d was moving %v times, want %d", g, c, 8*3)
		}
	}

	// The first audited seed is the loader's own seed: its intra count must
	// match the first three epochs of the loader.
	intra, samples := 0, 0
	for epoch := range uint64(3) {
		it := d.SampleIndexGeneratorAt(epoch)
		for it.HasNext() {
			s, err := it.Next()
			if err != nil {
				t.Fatalf("loader iteration failed: %v", err)
			}
			samples++
			if s.Intra() {
				intra++
			}
		}
	}
	first := report.Results[0]
	if first.Samples != samples || first.Intra != intra {
		t.Fatalf("audit of seed 5 saw %d/%d intra samples, loader yielded %d/%d",
			first.Intra, first.Samples, intra, samples)
	}

	// Volumes load through the same loader.
	ex, err := d.DataGenerator().Next()
	if err != nil {
		t.Fatalf("failed to load first example: %v", err)
	}
	if len(ex.Indices) != 4 {
		t.Fatalf("unexpected indices %v", ex.Indices)
	}
}
