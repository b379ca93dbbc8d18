// Command pairstats inspects the moving/fixed pairs a grouped dataset yields
// for a sampling configuration: group sizes, pair counts, one epoch of sample
// indices, and a Monte Carlo audit of the sampler across seeds.
//
// Usage:
//
//	pairstats -config pairstats.yaml -data data/train -prob 1 -option forward
//
// Flags override the values of the configuration file, which is optional.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/snehashis1997/DeepReg/config"
	"github.com/snehashis1997/DeepReg/datasets"
	"github.com/snehashis1997/DeepReg/monte"
	"github.com/snehashis1997/DeepReg/sampling"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if err := run(context.Background(), afero.NewOsFs(), os.Args[1:], os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("pairstats failed")
	}
}

// options are the command line flags. Only flags set explicitly override the
// configuration file.
type options struct {
	configPath  string
	writeConfig bool
	loadVolumes bool

	data        string
	format      string
	labeled     bool
	sampleLabel string
	prob        float64
	option      string
	inGroup     bool
	seed        int64
	seeds       int
	epochs      int
	workers     int
	batchSize   int
	jsonPath    string
	plotPath    string
	verbose     bool
}

func parseFlags(args []string) (*options, map[string]bool, error) {
	o := &options{}
	fset := flag.NewFlagSet("pairstats", flag.ContinueOnError)
	fset.StringVar(&o.configPath, "config", "pairstats.yaml", "path to YAML configuration (optional)")
	fset.BoolVar(&o.writeConfig, "write-config", false, "write the effective configuration to -config and exit")
	fset.BoolVar(&o.loadVolumes, "load", false, "load every volume of one epoch through the gomlx dataset")
	fset.StringVar(&o.data, "data", "", "dataset directory holding the images (and labels) roles")
	fset.StringVar(&o.format, "format", "", "dataset layout: dir or csv")
	fset.BoolVar(&o.labeled, "labeled", false, "pair labels with the images")
	fset.StringVar(&o.sampleLabel, "sample-label", "", "label expansion for labeled data: all or sample")
	fset.Float64Var(&o.prob, "prob", 0, "probability of intra-group pairs")
	fset.StringVar(&o.option, "option", "", "intra-group direction: forward, backward or unconstrained")
	fset.BoolVar(&o.inGroup, "in-group", false, "draw one random pair per group and epoch instead of enumerating all pairs")
	fset.Int64Var(&o.seed, "seed", 0, "sampling seed")
	fset.IntVar(&o.seeds, "seeds", 0, "number of seeds audited")
	fset.IntVar(&o.epochs, "epochs", 0, "epochs drawn per audited seed")
	fset.IntVar(&o.workers, "workers", 0, "audited seeds run concurrently")
	fset.IntVar(&o.batchSize, "batch-size", 0, "batch size used with -load")
	fset.StringVar(&o.jsonPath, "json", "", "write the first epoch and the audit report as JSON to this path")
	fset.StringVar(&o.plotPath, "plot", "", "write a PNG chart of moving group coverage to this path")
	fset.BoolVar(&o.verbose, "v", false, "debug logging")
	if err := fset.Parse(args); err != nil {
		return nil, nil, err
	}
	set := make(map[string]bool)
	fset.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return o, set, nil
}

// apply overrides cfg with the flags that were set.
func (o *options) apply(cfg *config.Config, set map[string]bool) {
	if set["data"] {
		cfg.Dataset.DataDirPath = o.data
	}
	if set["format"] {
		cfg.Dataset.Format = o.format
	}
	if set["labeled"] {
		cfg.Sampling.Labeled = o.labeled
	}
	if set["sample-label"] {
		cfg.Sampling.SampleLabel = sampling.SampleLabel(o.sampleLabel)
	}
	if set["prob"] {
		cfg.Sampling.IntraGroupProb = o.prob
	}
	if set["option"] {
		cfg.Sampling.IntraGroupOption = o.option
	}
	if set["in-group"] {
		cfg.Sampling.SampleImageInGroup = o.inGroup
	}
	if set["seed"] {
		cfg.Sampling.Seed = sampling.Seed(o.seed)
	}
	if set["seeds"] {
		cfg.Audit.Seeds = o.seeds
	}
	if set["epochs"] {
		cfg.Audit.Epochs = o.epochs
	}
	if set["workers"] {
		cfg.Audit.Workers = o.workers
	}
	if set["batch-size"] {
		cfg.Batch.Size = o.batchSize
	}
	if set["json"] {
		cfg.Output.JSONPath = o.jsonPath
	}
	if set["plot"] {
		cfg.Output.PlotPath = o.plotPath
	}
	if set["v"] {
		cfg.Output.Verbose = o.verbose
	}
}

func run(ctx context.Context, fs afero.Fs, args []string, stdout io.Writer) error {
	opts, set, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := config.LoadConfig(fs, opts.configPath)
	if err != nil {
		return errors.WithMessagef(err, "failed to load %s", opts.configPath)
	}
	opts.apply(cfg, set)

	level := zerolog.InfoLevel
	if cfg.Output.Verbose {
		level = zerolog.DebugLevel
	}
	logger := log.Logger.Level(level)

	if err := cfg.Validate(); err != nil {
		return errors.WithMessage(err, "invalid configuration")
	}
	if opts.writeConfig {
		if err := config.SaveConfig(fs, cfg, opts.configPath); err != nil {
			return err
		}
		logger.Info().Str("path", opts.configPath).Msg("configuration written")
		return nil
	}

	gc, err := cfg.GroupedConfig(fs)
	if err != nil {
		return err
	}
	gc.Logger = &logger
	d, err := datasets.NewGroupedDataLoader(gc)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := d.ValidateDataFiles(); err != nil {
		return err
	}

	if err := printCounts(stdout, d); err != nil {
		return err
	}

	m, err := monte.NewMonte(d, cfg.Sampling, cfg.Audit.Seeds)
	if err != nil {
		return err
	}
	m.SetEpochs(cfg.Audit.Epochs)
	m.SetWorkers(cfg.Audit.Workers)
	m.Logger = logger
	report, err := m.Run(ctx)
	if err != nil {
		return errors.WithMessage(err, "sampler audit failed")
	}
	printReport(stdout, report)

	if cfg.Output.JSONPath != "" {
		if err := writeJSON(fs, cfg.Output.JSONPath, d, report); err != nil {
			return err
		}
		logger.Info().Str("path", cfg.Output.JSONPath).Msg("sample indices written")
	}
	if cfg.Output.PlotPath != "" {
		if err := plotCoverage(fs, cfg.Output.PlotPath, report); err != nil {
			return errors.WithMessage(err, "failed to generate plot")
		}
		logger.Info().Str("path", cfg.Output.PlotPath).Msg("coverage plot written")
	}
	if opts.loadVolumes {
		if err := loadEpoch(stdout, d, cfg); err != nil {
			return err
		}
	}
	return nil
}

func printCounts(w io.Writer, d *datasets.GroupedDataLoader) error {
	sizes := d.NumImagesPerGroup()
	cfg := d.Config().Sampling
	fmt.Fprintf(w, "groups: %d\n", len(sizes))
	fmt.Fprintf(w, "images per group: %v\n", sizes)
	fmt.Fprintf(w, "inter-group pairs: %d\n", sampling.CountInterPairs(sizes))
	if cfg.IntraGroupProb > 0 {
		opt, err := sampling.ParseIntraGroupOption(cfg.IntraGroupOption)
		if err != nil {
			return err
		}
		n, err := sampling.CountIntraPairs(sizes, opt)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "intra-group pairs (%s): %d\n", opt, n)
	}
	mode := "exhaustive"
	if d.SampleIndices() == nil {
		mode = "lazy random"
	}
	fmt.Fprintf(w, "samples per epoch: %d (%s)\n", d.NumSamples(), mode)
	return nil
}

func printReport(w io.Writer, r *monte.Report) {
	fmt.Fprintf(w, "audit: %d seeds x %d epochs\n", len(r.Results), r.Epochs)
	fmt.Fprintf(w, "intra fraction: %.4f ± %.4f (expected %.4f)\n", r.IntraMean, r.IntraStdDev, r.ExpectedIntra)
	counts := make([]string, len(r.MovingGroupCounts))
	for g, c := range r.MovingGroupCounts {
		counts[g] = fmt.Sprintf("%.0f/%.1f", c, r.ExpectedGroupCounts[g])
	}
	fmt.Fprintf(w, "moving group coverage (observed/expected): %s\n", strings.Join(counts, " "))
	fmt.Fprintf(w, "coverage chi-square: %.4f\n", r.CoverageChiSquare)
	fmt.Fprintf(w, "direction violations: %d\n", r.DirectionViolations)
}

// loadEpoch yields one epoch through datasets.PairDataset.
func loadEpoch(w io.Writer, d *datasets.GroupedDataLoader, cfg *config.Config) error {
	ds, err := datasets.NewPairDataset("pairstats", d, cfg.Batch.Size)
	if err != nil {
		return err
	}
	ds.DropIncomplete = cfg.Batch.DropIncomplete
	batches, examples := 0, 0
	for {
		_, inputs, _, err := ds.Yield()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.WithMessagef(err, "failed to yield batch %d", batches)
		}
		batches++
		examples += inputs[0].Shape().Dimensions[0]
	}
	fmt.Fprintf(w, "loaded %d examples in %d batches\n", examples, batches)
	return nil
}
