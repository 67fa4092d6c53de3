// Package monitor produces run diagnostics: a rig layout plot and a static
// HTML run report. Nothing here feeds back into reconstruction.
package monitor

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/rigmap/internal/rig"
)

// rigPalette are the glyph colors cycled through per rig.
var rigPalette = []color.RGBA{
	{R: 31, G: 119, B: 180, A: 255},
	{R: 255, G: 127, B: 14, A: 255},
	{R: 44, G: 160, B: 44, A: 255},
	{R: 214, G: 39, B: 40, A: 255},
	{R: 148, G: 103, B: 189, A: 255},
	{R: 140, G: 86, B: 75, A: 255},
}

// PlotRigLayout renders a top-down scatter of camera positions per rig into
// a PNG at outPath. Camera world positions are unchanged by the camera-local
// convention flip, so authoring-frame X/Y serve directly as the ground plane.
// One glyph color per rig with camera name labels, so mis-scaled or
// mis-placed rigs are visible at a glance before a long reconstruction.
func PlotRigLayout(scene *rig.SceneSet, outPath string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("rig layout: %d rigs, %d images", len(scene.Rigs), scene.TotalImages())
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"

	for i, r := range scene.Rigs {
		pts := make(plotter.XYs, 0, len(r.Cameras))
		labels := make([]string, 0, len(r.Cameras))
		for _, cam := range r.Cameras {
			pts = append(pts, plotter.XY{X: cam.Location.X(), Y: cam.Location.Y()})
			labels = append(labels, cam.Name)
		}

		scatter, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("rig %s scatter: %w", r.ID, err)
		}
		scatter.GlyphStyle.Color = rigPalette[i%len(rigPalette)]
		scatter.GlyphStyle.Radius = vg.Points(4)
		p.Add(scatter)
		p.Legend.Add(r.ID, scatter)

		names, err := plotter.NewLabels(plotter.XYLabels{XYs: pts, Labels: labels})
		if err != nil {
			return fmt.Errorf("rig %s labels: %w", r.ID, err)
		}
		p.Add(names)
	}

	if err := p.Save(8*vg.Inch, 8*vg.Inch, outPath); err != nil {
		return fmt.Errorf("saving rig layout plot: %w", err)
	}
	return nil
}
