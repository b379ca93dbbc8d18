// Package monte audits a pair sampler by Monte Carlo: it runs independent
// seeded generators over several epochs and reports how often pairs are
// drawn inside a group, how evenly moving groups are covered and whether
// any pair breaks the configured direction.
package monte

import (
	"context"
	"runtime"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/snehashis1997/DeepReg/sampling"
)

// Source is the minimal view Monte needs of a grouped dataset, satisfied by
// datasets.GroupedDataLoader and loader.FileLoader.
type Source interface {
	NumImagesPerGroup() []int
}

// SeedResult holds the tallies of one generator.
type SeedResult struct {
	Seed    int64 `json:"seed"`
	Samples int   `json:"samples"`
	Intra   int   `json:"intra"`

	// MovingGroupCounts[g] counts samples whose moving image is in group g.
	MovingGroupCounts []int `json:"moving_group_counts"`

	// DirectionViolations counts pairs the configuration forbids, see violates.
	DirectionViolations int `json:"direction_violations"`

	// DistinctPairs is the number of different pairs seen over all epochs.
	DistinctPairs int `json:"distinct_pairs"`
}

// IntraFraction is the share of intra-group samples.
func (r SeedResult) IntraFraction() float64 {
	if r.Samples == 0 {
		return 0
	}
	return float64(r.Intra) / float64(r.Samples)
}

// Report aggregates the results of all seeds.
type Report struct {
	Sizes   []int        `json:"sizes"`
	Epochs  int          `json:"epochs"`
	Results []SeedResult `json:"results"`

	// IntraMean and IntraStdDev summarise IntraFraction across seeds.
	IntraMean   float64 `json:"intra_mean"`
	IntraStdDev float64 `json:"intra_std_dev"`

	// ExpectedIntra is the intra fraction the configuration asks for.
	ExpectedIntra float64 `json:"expected_intra"`

	// MovingGroupCounts sums the per-seed counts; ExpectedGroupCounts is what
	// an unbiased sampler produces on average.
	MovingGroupCounts   []float64 `json:"moving_group_counts"`
	ExpectedGroupCounts []float64 `json:"expected_group_counts"`

	// CoverageChiSquare is the chi-square distance between the observed and
	// expected moving group counts.
	CoverageChiSquare float64 `json:"coverage_chi_square"`

	DirectionViolations int `json:"direction_violations"`
}

// Monte runs the audit of one sampling configuration.
type Monte struct {
	Sizes  []int
	Config sampling.Config

	// Seeds are the generator seeds, one generator each.
	Seeds []int64

	// Epochs drawn from every generator.
	Epochs int

	// Workers bounds the generators run concurrently.
	Workers int

	Logger zerolog.Logger
}

// NewMonte creates an audit of cfg over the groups of src with numSeeds
// generators seeded 0..numSeeds-1, or from *cfg.Seed upwards when set.
//
// The returned Monte runs one epoch per generator on all CPUs. Callers can
// override these via the setter methods provided on Monte.
func NewMonte(src Source, cfg sampling.Config, numSeeds int) (*Monte, error) {
	if src == nil {
		return nil, errors.New("source cannot be nil")
	}
	if numSeeds < 1 {
		return nil, errors.Errorf("number of seeds must be >= 1, got %d", numSeeds)
	}
	sizes := src.NumImagesPerGroup()
	if err := sampling.Validate(sizes, cfg); err != nil {
		return nil, err
	}
	var base int64
	if cfg.Seed != nil {
		base = *cfg.Seed
	}
	seeds := make([]int64, numSeeds)
	for i := range seeds {
		seeds[i] = base + int64(i)
	}
	return &Monte{
		Sizes:   sizes,
		Config:  cfg,
		Seeds:   seeds,
		Epochs:  1,
		Workers: runtime.NumCPU(),
		Logger:  log.Logger,
	}, nil
}

// SetEpochs sets the number of epochs drawn from every generator.
func (m *Monte) SetEpochs(n int) {
	if n > 0 {
		m.Epochs = n
	}
}

// SetWorkers bounds the number of generators run concurrently.
func (m *Monte) SetWorkers(n int) {
	if n > 0 {
		m.Workers = n
	}
}

// Run audits every seed concurrently. Results are ordered as Seeds, so the
// report does not depend on scheduling.
func (m *Monte) Run(ctx context.Context) (*Report, error) {
	if len(m.Seeds) == 0 {
		return nil, errors.New("no seeds to audit")
	}
	if m.Epochs < 1 {
		return nil, errors.Errorf("epochs must be >= 1, got %d", m.Epochs)
	}
	option, err := m.option()
	if err != nil {
		return nil, err
	}

	results := make([]SeedResult, len(m.Seeds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(m.Workers, 1))
	for i, seed := range m.Seeds {
		g.Go(func() error {
			res, err := m.runSeed(gctx, seed, option)
			if err != nil {
				return errors.WithMessagef(err, "seed %d", seed)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report, err := m.summarise(results)
	if err != nil {
		return nil, err
	}
	m.Logger.Debug().
		Int("seeds", len(m.Seeds)).
		Int("epochs", m.Epochs).
		Float64("intra_mean", report.IntraMean).
		Float64("coverage_chi_square", report.CoverageChiSquare).
		Int("direction_violations", report.DirectionViolations).
		Msg("sampler audit done")
	return report, nil
}

// option parses the direction policy when intra pairs may be drawn.
func (m *Monte) option() (sampling.IntraGroupOption, error) {
	if m.Config.IntraGroupProb <= 0 {
		return "", nil
	}
	return sampling.ParseIntraGroupOption(m.Config.IntraGroupOption)
}

func (m *Monte) runSeed(ctx context.Context, seed int64, option sampling.IntraGroupOption) (SeedResult, error) {
	cfg := m.Config
	cfg.Seed = sampling.Seed(seed)
	gen, err := sampling.NewGenerator(m.Sizes, cfg)
	if err != nil {
		return SeedResult{}, err
	}

	res := SeedResult{Seed: seed, MovingGroupCounts: make([]int, len(m.Sizes))}
	seen := make(map[sampling.Pair]struct{})
	for epoch := range uint64(m.Epochs) {
		if err := ctx.Err(); err != nil {
			return SeedResult{}, err
		}
		it := gen.IteratorAt(epoch)
		for it.HasNext() {
			s, err := it.Next()
			if err != nil {
				return SeedResult{}, err
			}
			res.Samples++
			res.MovingGroupCounts[s.Moving.Group]++
			if s.Intra() {
				res.Intra++
			}
			if violates(s.Pair, option) {
				res.DirectionViolations++
			}
			seen[s.Pair] = struct{}{}
		}
	}
	res.DistinctPairs = len(seen)
	return res, nil
}

// violates reports pairs the sampler must never produce under option.
func violates(p sampling.Pair, option sampling.IntraGroupOption) bool {
	if p.Moving == p.Fixed {
		return true
	}
	if !p.Intra() {
		return false
	}
	switch option {
	case sampling.Forward:
		return p.Moving.Image >= p.Fixed.Image
	case sampling.Backward:
		return p.Moving.Image <= p.Fixed.Image
	case sampling.Unconstrained:
		return false
	}
	// intra pair although intra sampling is disabled
	return true
}

func (m *Monte) summarise(results []SeedResult) (*Report, error) {
	report := &Report{
		Sizes:             append([]int(nil), m.Sizes...),
		Epochs:            m.Epochs,
		Results:           results,
		ExpectedIntra:     m.Config.IntraGroupProb,
		MovingGroupCounts: make([]float64, len(m.Sizes)),
	}
	fractions := make([]float64, len(results))
	total := 0
	for i, r := range results {
		fractions[i] = r.IntraFraction()
		total += r.Samples
		report.DirectionViolations += r.DirectionViolations
		for g, c := range r.MovingGroupCounts {
			report.MovingGroupCounts[g] += float64(c)
		}
	}
	report.IntraMean, report.IntraStdDev = stat.MeanStdDev(fractions, nil)
	if len(fractions) == 1 {
		report.IntraStdDev = 0
	}

	expected, err := m.expectedGroupShare()
	if err != nil {
		return nil, err
	}
	report.ExpectedGroupCounts = make([]float64, len(expected))
	for g, share := range expected {
		report.ExpectedGroupCounts[g] = share * float64(total)
	}
	report.CoverageChiSquare = coverageChiSquare(report.MovingGroupCounts, report.ExpectedGroupCounts)
	return report, nil
}

// expectedGroupShare is the share of samples whose moving image lies in each
// group. Lazy sampling draws one sample per group and epoch; exhaustive
// enumeration follows the pair list.
func (m *Monte) expectedGroupShare() ([]float64, error) {
	share := make([]float64, len(m.Sizes))
	if !m.Config.Exhaustive() {
		for g := range share {
			share[g] = 1 / float64(len(m.Sizes))
		}
		return share, nil
	}
	pairs, err := sampling.ExhaustivePairs(m.Sizes, m.Config)
	if err != nil {
		return nil, err
	}
	for _, p := range pairs {
		share[p.Moving.Group]++
	}
	for g := range share {
		share[g] /= float64(len(pairs))
	}
	return share, nil
}

// coverageChiSquare skips groups that are never expected to be drawn; any
// draw from them is already counted as a direction violation.
func coverageChiSquare(obs, exp []float64) float64 {
	var o, e []float64
	for g := range exp {
		if exp[g] > 0 {
			o = append(o, obs[g])
			e = append(e, exp[g])
		}
	}
	if len(e) == 0 {
		return 0
	}
	return stat.ChiSquare(o, e)
}
