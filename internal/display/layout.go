package display

const (
	lineH  = 16
	margin = 2
	glyphW = 6 // advance of the panel font, used to centre the banner
)

// Render lays a frame out on d. It does not flush.
//
//	Mul: X10            ^
//	Axis: X
//	[##### ESTOP #####]      (or Pos: 1234)
//	Vel: 12.5/s
func Render(d Driver, f Frame) {
	lines := f.Lines()
	d.Clear()
	d.DrawText(Point{0, 0}, lines[0], Style{})
	d.DrawText(Point{0, lineH}, lines[1], Style{})

	if f.Estopped || f.Faulted {
		d.DrawShape(Shape{Kind: FilledRect, At: Point{0, 2 * lineH}, W: Width, H: lineH}, Style{})
		x := int16((Width - len(lines[2])*glyphW) / 2)
		d.DrawText(Point{x, 2 * lineH}, lines[2], Style{Inverted: true})
	} else {
		d.DrawText(Point{0, 2 * lineH}, lines[2], Style{})
	}
	d.DrawText(Point{0, 3 * lineH}, lines[3], Style{})

	if f.Moving() {
		d.DrawShape(arrow(f.Delta > 0), Style{})
	}
}

// arrow is the direction marker in the top right corner.
func arrow(up bool) Shape {
	const l, r, top, bot = Width - 14, Width - margin, margin, lineH - margin
	mid := int16((l + r) / 2)
	if up {
		return Shape{Kind: FilledTriangle, P: [3]Point{{mid, top}, {l, bot}, {r, bot}}}
	}
	return Shape{Kind: FilledTriangle, P: [3]Point{{l, top}, {r, top}, {mid, bot}}}
}
