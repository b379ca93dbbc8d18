package main

import (
	"fmt"
	"image/color"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/snehashis1997/DeepReg/monte"
)

// plotCoverage writes a PNG bar chart of how often each group held the
// moving image (blue) next to the expected count (grey).
func plotCoverage(fs afero.Fs, outPath string, r *monte.Report) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Moving group coverage: %d seeds x %d epochs", len(r.Results), r.Epochs)
	p.Y.Label.Text = "samples"

	width := vg.Points(14)
	observed, err := plotter.NewBarChart(plotter.Values(r.MovingGroupCounts), width)
	if err != nil {
		return err
	}
	observed.Color = color.RGBA{R: 20, G: 80, B: 200, A: 220}
	observed.LineStyle.Width = vg.Length(0)
	observed.Offset = -width / 2

	expected, err := plotter.NewBarChart(plotter.Values(r.ExpectedGroupCounts), width)
	if err != nil {
		return err
	}
	expected.Color = color.RGBA{R: 120, G: 120, B: 120, A: 180}
	expected.LineStyle.Width = vg.Length(0)
	expected.Offset = width / 2

	p.Add(observed, expected, plotter.NewGrid())
	p.Legend.Add("observed", observed)
	p.Legend.Add("expected", expected)
	p.Legend.Top = true

	names := make([]string, len(r.MovingGroupCounts))
	for g := range names {
		names[g] = fmt.Sprintf("g%d", g)
	}
	p.NominalX(names...)

	wt, err := p.WriterTo(8*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return err
	}
	if err := fs.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", outPath)
	}
	f, err := fs.Create(outPath)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", outPath)
	}
	if _, err := wt.WriteTo(f); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "failed to write %s", outPath)
	}
	return f.Close()
}
