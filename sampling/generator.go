package sampling

import (
	"math/rand/v2"
	"sort"

	"github.com/pkg/errors"
)

// Sample is one element of an epoch.
type Sample struct {
	Pair

	// FlatIndex is the position of the sample in its epoch, in [0, NumSamples).
	FlatIndex int

	// Indices are the caller-facing identifiers, see Pair.Indices.
	Indices []int
}

// Generator owns the group sizes, the validated Config and, in the
// exhaustive regime, the cached pair list. Iterators are created from it one
// epoch at a time.
type Generator struct {
	sizes      []int
	cfg        Config
	option     IntraGroupOption
	pairs      []Pair
	numSamples int

	// offsets[g] is the flat position of the first image of group g.
	offsets []int
	total   int

	seed   uint64
	seeded bool
}

// NewGenerator validates cfg against sizes and prepares the sample space.
// In the exhaustive regime the pair list is built here, once.
func NewGenerator(sizes []int, cfg Config) (*Generator, error) {
	if err := Validate(sizes, cfg); err != nil {
		return nil, err
	}
	g := &Generator{
		sizes:   append([]int(nil), sizes...),
		cfg:     cfg,
		offsets: make([]int, len(sizes)),
	}
	for i, n := range g.sizes {
		g.offsets[i] = g.total
		g.total += n
	}
	numSamples, err := NumSamples(g.sizes, cfg)
	if err != nil {
		return nil, err
	}
	g.numSamples = numSamples
	if cfg.intraPossible() {
		opt, err := ParseIntraGroupOption(cfg.IntraGroupOption)
		if err != nil {
			return nil, err
		}
		g.option = opt
	}

	if cfg.Exhaustive() {
		pairs, err := ExhaustivePairs(g.sizes, cfg)
		if err != nil {
			return nil, err
		}
		if len(pairs) == 0 {
			return nil, errors.Wrapf(ErrNoSamples, "group sizes %v", g.sizes)
		}
		if len(pairs) != g.numSamples {
			return nil, errors.Errorf("enumerated %d pairs for group sizes %v, expected %d",
				len(pairs), g.sizes, g.numSamples)
		}
		g.pairs = pairs
	}

	if cfg.Seed != nil {
		g.seed = uint64(*cfg.Seed)
		g.seeded = true
	} else {
		g.seed = rand.Uint64()
	}
	return g, nil
}

// NumSamples is the number of samples in every epoch.
func (g *Generator) NumSamples() int {
	return g.numSamples
}

// Exhaustive reports whether the pair list is materialised.
func (g *Generator) Exhaustive() bool {
	return g.pairs != nil
}

// Pairs returns a copy of the cached pair list in canonical order, or nil in
// the lazy-random regime.
func (g *Generator) Pairs() []Pair {
	if g.pairs == nil {
		return nil
	}
	return append([]Pair(nil), g.pairs...)
}

// Seed is the base seed of every epoch: Config.Seed when given, otherwise
// the one drawn at construction.
func (g *Generator) Seed() uint64 {
	return g.seed
}

// Iterator starts the sample sequence over. Every call on a generator
// yields the same sequence, and two generators built from the same sizes
// and seeded Config agree.
func (g *Generator) Iterator() *Iterator {
	return g.IteratorAt(0)
}

// IteratorAt opens a reshuffled epoch. Epoch 0 is the sequence returned by
// Iterator; other epochs draw from a stream derived from the same seed.
func (g *Generator) IteratorAt(epoch uint64) *Iterator {
	it := &Iterator{gen: g, epoch: epoch}
	it.Reset()
	return it
}

// Iterator walks one epoch. It is not safe for concurrent use; create one
// per consumer.
type Iterator struct {
	gen   *Generator
	epoch uint64
	rng   *rand.Rand
	order []int
	pos   int
}

// Reset rewinds the iterator. The replayed sequence is identical to the
// first pass.
func (it *Iterator) Reset() {
	g := it.gen
	it.pos = 0
	it.rng = rand.New(rand.NewPCG(g.seed, it.epoch))
	switch {
	case g.Exhaustive() && !g.seeded:
		it.order = nil
	case g.Exhaustive():
		it.order = it.rng.Perm(len(g.pairs))
	default:
		it.order = it.rng.Perm(len(g.sizes))
	}
}

// Epoch is the epoch number this iterator replays.
func (it *Iterator) Epoch() uint64 {
	return it.epoch
}

// Len is the number of samples in the epoch.
func (it *Iterator) Len() int {
	return it.gen.numSamples
}

// HasNext reports whether Next will return a sample.
func (it *Iterator) HasNext() bool {
	return it.pos < it.gen.numSamples
}

// Next returns the next sample, or ErrExhausted at the end of the epoch.
func (it *Iterator) Next() (Sample, error) {
	if !it.HasNext() {
		return Sample{}, ErrExhausted
	}
	g := it.gen
	var pair Pair
	if g.Exhaustive() {
		idx := it.pos
		if it.order != nil {
			idx = it.order[it.pos]
		}
		pair = g.pairs[idx]
	} else {
		var err error
		pair, err = g.draw(it.rng, it.order[it.pos])
		if err != nil {
			return Sample{}, err
		}
	}
	s := Sample{Pair: pair, FlatIndex: it.pos, Indices: pair.Indices()}
	it.pos++
	return s, nil
}

// draw picks one pair whose moving image belongs to group.
func (g *Generator) draw(rng *rand.Rand, group int) (Pair, error) {
	if rng.Float64() < g.cfg.IntraGroupProb {
		return g.drawIntra(rng, group)
	}
	return g.drawInter(rng, group), nil
}

// drawIntra picks two distinct positions uniformly and orients them by the
// direction policy.
func (g *Generator) drawIntra(rng *rand.Rand, group int) (Pair, error) {
	n := g.sizes[group]
	a := rng.IntN(n)
	b := rng.IntN(n - 1)
	if b >= a {
		b++
	}
	lo, hi := min(a, b), max(a, b)
	var moving, fixed int
	switch g.option {
	case Forward:
		moving, fixed = lo, hi
	case Backward:
		moving, fixed = hi, lo
	case Unconstrained:
		moving, fixed = a, b
	default:
		return Pair{}, &UnknownOptionError{Value: string(g.option)}
	}
	return Pair{
		Moving: ImageIndex{Group: group, Image: moving},
		Fixed:  ImageIndex{Group: group, Image: fixed},
	}, nil
}

// drawInter picks the moving image uniformly in group and the fixed image
// uniformly among all images of the other groups.
func (g *Generator) drawInter(rng *rand.Rand, group int) Pair {
	moving := rng.IntN(g.sizes[group])
	flat := rng.IntN(g.total - g.sizes[group])
	if flat >= g.offsets[group] {
		flat += g.sizes[group]
	}
	fixedGroup := sort.Search(len(g.offsets), func(i int) bool { return g.offsets[i] > flat }) - 1
	return Pair{
		Moving: ImageIndex{Group: group, Image: moving},
		Fixed:  ImageIndex{Group: fixedGroup, Image: flat - g.offsets[fixedGroup]},
	}
}
