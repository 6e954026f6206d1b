// Package pngpanel renders frames to a PNG file, scaled up for viewing on
// a desktop while running the simulator.
package pngpanel

import (
	"github.com/fogleman/gg"
	"github.com/pkg/errors"

	"pendant-go/internal/display"
)

type Panel struct {
	path  string
	scale float64
	dc    *gg.Context
}

var _ display.Driver = (*Panel)(nil)

// New draws at display.Width x display.Height logical pixels, each scale
// pixels wide in the image written to path on every Flush.
func New(path string, scale int) *Panel {
	if scale < 1 {
		scale = 1
	}
	dc := gg.NewContext(display.Width*scale, display.Height*scale)
	dc.Scale(float64(scale), float64(scale))
	return &Panel{path: path, scale: float64(scale), dc: dc}
}

func (p *Panel) Clear() {
	p.dc.SetRGB(0, 0, 0)
	p.dc.Clear()
}

func (p *Panel) colour(st display.Style) {
	if st.Inverted {
		p.dc.SetRGB(0, 0, 0)
	} else {
		p.dc.SetRGB(0.55, 0.85, 1)
	}
}

func (p *Panel) DrawText(at display.Point, text string, st display.Style) {
	p.colour(st)
	p.dc.DrawStringAnchored(text, float64(at.X), float64(at.Y)+8, 0, 0.5)
}

func (p *Panel) DrawShape(s display.Shape, st display.Style) {
	p.colour(st)
	switch s.Kind {
	case display.Rect:
		p.dc.DrawRectangle(float64(s.At.X)+0.5, float64(s.At.Y)+0.5, float64(s.W)-1, float64(s.H)-1)
		p.dc.SetLineWidth(1)
		p.dc.Stroke()
	case display.FilledRect:
		p.dc.DrawRectangle(float64(s.At.X), float64(s.At.Y), float64(s.W), float64(s.H))
		p.dc.Fill()
	case display.FilledTriangle:
		p.dc.MoveTo(float64(s.P[0].X), float64(s.P[0].Y))
		p.dc.LineTo(float64(s.P[1].X), float64(s.P[1].Y))
		p.dc.LineTo(float64(s.P[2].X), float64(s.P[2].Y))
		p.dc.ClosePath()
		p.dc.Fill()
	}
}

func (p *Panel) Flush() error {
	return errors.Wrapf(p.dc.SavePNG(p.path), "write %s", p.path)
}
