// Package display renders pendant state to a small monochrome panel.
package display

// Panel geometry in pixels.
const (
	Width  = 128
	Height = 64
)

type Point struct{ X, Y int16 }

// Style applies to text and shapes alike.
type Style struct {
	Inverted bool // draw in background colour, e.g. text on a filled banner
}

type ShapeKind uint8

const (
	Rect ShapeKind = iota
	FilledRect
	FilledTriangle
)

type Shape struct {
	Kind ShapeKind
	At   Point // rectangles: top-left corner
	W, H int16
	P    [3]Point // triangles
}

// Driver is the rendering side of a panel. Only Flush touches the bus and
// only Flush can fail.
type Driver interface {
	Clear()
	DrawText(at Point, text string, st Style)
	DrawShape(s Shape, st Style)
	Flush() error
}
