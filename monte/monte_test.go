package monte

import (
	"context"
	"math"
	"testing"

	"github.com/snehashis1997/DeepReg/sampling"
)

// sizesSource is a Source over fixed group sizes.
type sizesSource []int

func (s sizesSource) NumImagesPerGroup() []int { return append([]int(nil), s...) }

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestRunLazyMixed(t *testing.T) {
	cfg := sampling.Config{
		IntraGroupProb:     0.5,
		IntraGroupOption:   "forward",
		SampleImageInGroup: true,
	}
	m, err := NewMonte(sizesSource{4, 5, 6, 7}, cfg, 64)
	if err != nil {
		t.Fatalf("NewMonte returned error: %v", err)
	}
	m.SetEpochs(8)
	m.SetWorkers(4)

	report, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(report.Results) != 64 {
		t.Fatalf("expected 64 seed results, got %d", len(report.Results))
	}
	if !approxEqual(report.IntraMean, 0.5, 0.06) {
		t.Fatalf("intra fraction %.3f too far from 0.5", report.IntraMean)
	}
	if report.IntraStdDev <= 0 {
		t.Fatalf("expected spread across seeds, got std %.3f", report.IntraStdDev)
	}
	if report.DirectionViolations != 0 {
		t.Fatalf("forward sampling produced %d direction violations", report.DirectionViolations)
	}
	// Every group is the moving group exactly once per epoch.
	for g, c := range report.MovingGroupCounts {
		if c != 64*8 {
			t.Fatalf("group %d was moving %v times, want %d", g, c, 64*8)
		}
	}
	if report.CoverageChiSquare != 0 {
		t.Fatalf("expected perfect coverage, got chi-square %v", report.CoverageChiSquare)
	}
	for i, r := range report.Results {
		if r.Seed != int64(i) {
			t.Fatalf("results out of seed order: %d at %d", r.Seed, i)
		}
		if r.Samples != 4*8 {
			t.Fatalf("seed %d: %d samples, want %d", r.Seed, r.Samples, 4*8)
		}
	}
}

func TestRunExhaustive(t *testing.T) {
	sizes := sizesSource{2, 3, 4}
	for _, option := range []string{"forward", "backward", "unconstrained"} {
		cfg := sampling.Config{IntraGroupProb: 1, IntraGroupOption: option, Seed: sampling.Seed(10)}
		m, err := NewMonte(sizes, cfg, 3)
		if err != nil {
			t.Fatalf("%s: NewMonte returned error: %v", option, err)
		}
		m.SetEpochs(2)
		report, err := m.Run(context.Background())
		if err != nil {
			t.Fatalf("%s: Run returned error: %v", option, err)
		}
		want, _ := sampling.CountIntraPairs(sizes, sampling.IntraGroupOption(option))
		for _, r := range report.Results {
			if r.DistinctPairs != want {
				t.Fatalf("%s seed %d: %d distinct pairs, want %d", option, r.Seed, r.DistinctPairs, want)
			}
			if r.Samples != 2*want {
				t.Fatalf("%s seed %d: %d samples, want %d", option, r.Seed, r.Samples, 2*want)
			}
		}
		if report.Results[0].Seed != 10 {
			t.Fatalf("%s: seeds should start at the configured seed, got %d", option, report.Results[0].Seed)
		}
		if report.IntraMean != 1 || report.IntraStdDev != 0 {
			t.Fatalf("%s: intra fraction %v ± %v, want 1 ± 0", option, report.IntraMean, report.IntraStdDev)
		}
		if report.DirectionViolations != 0 {
			t.Fatalf("%s: %d direction violations", option, report.DirectionViolations)
		}
		if !approxEqual(report.CoverageChiSquare, 0, 1e-9) {
			t.Fatalf("%s: exhaustive coverage should match exactly, got %v", option, report.CoverageChiSquare)
		}
	}
}

func TestRunIndependentOfWorkers(t *testing.T) {
	cfg := sampling.Config{
		IntraGroupProb:     0.3,
		IntraGroupOption:   "unconstrained",
		SampleImageInGroup: true,
	}
	run := func(workers int) *Report {
		m, err := NewMonte(sizesSource{3, 3, 5}, cfg, 12)
		if err != nil {
			t.Fatalf("NewMonte returned error: %v", err)
		}
		m.SetEpochs(5)
		m.SetWorkers(workers)
		report, err := m.Run(context.Background())
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
		return report
	}
	a, b := run(1), run(8)
	for i := range a.Results {
		if a.Results[i].Intra != b.Results[i].Intra || a.Results[i].DistinctPairs != b.Results[i].DistinctPairs {
			t.Fatalf("seed %d differs between 1 and 8 workers: %+v vs %+v", a.Results[i].Seed, a.Results[i], b.Results[i])
		}
	}
	if a.IntraMean != b.IntraMean {
		t.Fatalf("intra mean differs: %v vs %v", a.IntraMean, b.IntraMean)
	}
}

func TestViolates(t *testing.T) {
	pair := func(mg, mi, fg, fi int) sampling.Pair {
		return sampling.Pair{
			Moving: sampling.ImageIndex{Group: mg, Image: mi},
			Fixed:  sampling.ImageIndex{Group: fg, Image: fi},
		}
	}
	cases := []struct {
		p      sampling.Pair
		option sampling.IntraGroupOption
		want   bool
	}{
		{pair(0, 0, 0, 1), sampling.Forward, false},
		{pair(0, 1, 0, 0), sampling.Forward, true},
		{pair(0, 1, 0, 0), sampling.Backward, false},
		{pair(0, 0, 0, 1), sampling.Backward, true},
		{pair(0, 1, 0, 0), sampling.Unconstrained, false},
		{pair(0, 1, 0, 1), sampling.Unconstrained, true},
		{pair(0, 1, 1, 0), sampling.Forward, false},
		{pair(0, 0, 0, 1), "", true},
	}
	for _, c := range cases {
		if got := violates(c.p, c.option); got != c.want {
			t.Errorf("violates(%v, %q) = %v, want %v", c.p, c.option, got, c.want)
		}
	}
}

func TestNewMonteErrors(t *testing.T) {
	if _, err := NewMonte(nil, sampling.Config{}, 1); err == nil {
		t.Fatalf("expected error for nil source")
	}
	if _, err := NewMonte(sizesSource{2, 2}, sampling.Config{}, 0); err == nil {
		t.Fatalf("expected error for zero seeds")
	}
	if _, err := NewMonte(sizesSource{2}, sampling.Config{}, 1); err == nil {
		t.Fatalf("expected error for inter-group sampling on a single group")
	}

	m, err := NewMonte(sizesSource{2, 2}, sampling.Config{}, 4)
	if err != nil {
		t.Fatalf("NewMonte returned error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Run(ctx); err == nil {
		t.Fatalf("expected error for a cancelled context")
	}
}
