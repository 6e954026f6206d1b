package pngpanel

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"pendant-go/internal/display"
)

func TestFlushWritesScaledImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "panel.png")
	p := New(path, 2)
	display.Render(p, display.Frame{Estopped: true})
	if err := p.Flush(); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 2*display.Width || b.Dy() != 2*display.Height {
		t.Fatalf("bounds %v", b)
	}
	// the estop banner fills row 2
	if r, g, b, _ := img.At(4, 2*40).RGBA(); r == 0 && g == 0 && b == 0 {
		t.Fatal("banner not drawn")
	}
}

func TestFlushReportsBadPath(t *testing.T) {
	p := New(filepath.Join(t.TempDir(), "missing", "panel.png"), 1)
	p.Clear()
	if err := p.Flush(); err == nil {
		t.Fatal("expected an error for a missing directory")
	}
}
