package viz

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/omixlab/fuseomics/omics"
)

// palette cycles over distinguishable colors for class groups.
var palette = []color.RGBA{
	{R: 31, G: 119, B: 180, A: 255},
	{R: 255, G: 127, B: 14, A: 255},
	{R: 44, G: 160, B: 44, A: 255},
	{R: 214, G: 39, B: 40, A: 255},
	{R: 148, G: 103, B: 189, A: 255},
	{R: 140, G: 86, B: 75, A: 255},
	{R: 227, G: 119, B: 194, A: 255},
	{R: 127, G: 127, B: 127, A: 255},
}

// ScatterEmbeddings renders a 2D scatter of sample embeddings colored by the
// grouping variable and saves it as a PNG at filename. embedding must be
// samples×2 (see PCA).
func ScatterEmbeddings(embedding *mat.Dense, group *omics.Variable, title, filename string) error {
	rows, cols := embedding.Dims()
	if cols != 2 {
		return fmt.Errorf("expected 2 columns, got %d", cols)
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "PC1"
	p.Y.Label.Text = "PC2"
	p.Legend.Top = true

	if group != nil && group.Kind == omics.Categorical {
		for c := 0; c < group.NumClasses(); c++ {
			pts := make(plotter.XYs, 0, rows)
			for i := 0; i < rows; i++ {
				if group.Class(i) != c {
					continue
				}
				pts = append(pts, plotter.XY{X: embedding.At(i, 0), Y: embedding.At(i, 1)})
			}
			if len(pts) == 0 {
				continue
			}
			s, err := plotter.NewScatter(pts)
			if err != nil {
				return err
			}
			s.Color = palette[c%len(palette)]
			p.Add(s)
			p.Legend.Add(group.Levels[c], s)
		}
	} else {
		pts := make(plotter.XYs, 0, rows)
		for i := 0; i < rows; i++ {
			x, y := embedding.At(i, 0), embedding.At(i, 1)
			if math.IsNaN(x) || math.IsNaN(y) {
				continue
			}
			pts = append(pts, plotter.XY{X: x, Y: y})
		}
		s, err := plotter.NewScatter(pts)
		if err != nil {
			return err
		}
		s.Color = palette[0]
		p.Add(s)
	}
	return p.Save(6*vg.Inch, 6*vg.Inch, filename)
}
