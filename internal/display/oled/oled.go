// Package oled draws frames on a tinygo pixel display such as the SSD1306.
package oled

import (
	"image/color"

	"pendant-go/errcode"
	"pendant-go/internal/display"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

var (
	on  = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	off = color.RGBA{A: 0xff}
)

// baseline moves a row's top edge to the font baseline.
const baseline = 12

type Panel struct {
	dev  drivers.Displayer
	font tinyfont.Fonter
	w, h int16
}

var _ display.Driver = (*Panel)(nil)

// New wraps dev. Set flip when the panel is mounted upside down.
func New(dev drivers.Displayer, flip bool) *Panel {
	if flip {
		dev = rotated{dev}
	}
	w, h := dev.Size()
	return &Panel{dev: dev, font: &proggy.TinySZ8pt7b, w: w, h: h}
}

func (p *Panel) Clear() {
	p.fill(0, 0, p.w, p.h, off)
}

func (p *Panel) DrawText(at display.Point, text string, st display.Style) {
	c := on
	if st.Inverted {
		c = off
	}
	tinyfont.WriteLine(p.dev, p.font, at.X, at.Y+baseline, text, c)
}

func (p *Panel) DrawShape(s display.Shape, st display.Style) {
	c := on
	if st.Inverted {
		c = off
	}
	switch s.Kind {
	case display.FilledRect:
		p.fill(s.At.X, s.At.Y, s.W, s.H, c)
	case display.Rect:
		p.fill(s.At.X, s.At.Y, s.W, 1, c)
		p.fill(s.At.X, s.At.Y+s.H-1, s.W, 1, c)
		p.fill(s.At.X, s.At.Y, 1, s.H, c)
		p.fill(s.At.X+s.W-1, s.At.Y, 1, s.H, c)
	case display.FilledTriangle:
		p.triangle(s.P, c)
	}
}

// Flush pushes the buffer over the bus. Bus errors are transient: the
// caller drops the frame and draws a fresh one next period.
func (p *Panel) Flush() error {
	if err := p.dev.Display(); err != nil {
		return errcode.Wrap(errcode.TransientBus, "oled flush", err)
	}
	return nil
}

func (p *Panel) fill(x, y, w, h int16, c color.RGBA) {
	for j := y; j < y+h; j++ {
		if j < 0 || j >= p.h {
			continue
		}
		for i := x; i < x+w; i++ {
			if i >= 0 && i < p.w {
				p.dev.SetPixel(i, j, c)
			}
		}
	}
}

// triangle fills every pixel inside or on the edges of t.
func (p *Panel) triangle(t [3]display.Point, c color.RGBA) {
	minX, maxX := t[0].X, t[0].X
	minY, maxY := t[0].Y, t[0].Y
	for _, v := range t[1:] {
		minX, maxX = min(minX, v.X), max(maxX, v.X)
		minY, maxY = min(minY, v.Y), max(maxY, v.Y)
	}
	area := edge(t[0], t[1], t[2])
	if area == 0 {
		return
	}
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			q := display.Point{X: x, Y: y}
			w0, w1, w2 := edge(t[1], t[2], q), edge(t[2], t[0], q), edge(t[0], t[1], q)
			if area < 0 {
				w0, w1, w2 = -w0, -w1, -w2
			}
			if w0 >= 0 && w1 >= 0 && w2 >= 0 && x >= 0 && x < p.w && y >= 0 && y < p.h {
				p.dev.SetPixel(x, y, c)
			}
		}
	}
}

func edge(a, b, c display.Point) int32 {
	return int32(b.X-a.X)*int32(c.Y-a.Y) - int32(b.Y-a.Y)*int32(c.X-a.X)
}

// rotated turns a display through 180 degrees.
type rotated struct{ drivers.Displayer }

func (r rotated) SetPixel(x, y int16, c color.RGBA) {
	w, h := r.Size()
	r.Displayer.SetPixel(w-1-x, h-1-y, c)
}
