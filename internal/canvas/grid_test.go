package canvas

import "testing"

// TestNewPixelGridWhite tests that a fresh grid is all white
func TestNewPixelGridWhite(t *testing.T) {
	g := NewPixelGrid(4, 3)

	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			if c := g.ColorAt(x, y); c != 0xffffff {
				t.Errorf("Cell (%d,%d) should start white, got %06x", x, y, c)
			}
			if g.Info(x, y).Placed {
				t.Errorf("Cell (%d,%d) should start unplaced", x, y)
			}
		}
	}
}

// TestGridSetAndInfo tests writing a cell and reading it back
func TestGridSetAndInfo(t *testing.T) {
	g := NewPixelGrid(5, 5)

	g.Set(2, 3, 0xff4500, 77, 1000)

	if c := g.ColorAt(2, 3); c != 0xff4500 {
		t.Errorf("Color should be ff4500, got %06x", c)
	}

	info := g.Info(2, 3)
	if !info.Placed {
		t.Error("Cell should report Placed after Set")
	}
	if info.UserID != 77 || info.TimestampMs != 1000 {
		t.Errorf("Cell metadata should be user 77 at 1000, got user %d at %d", info.UserID, info.TimestampMs)
	}

	// Neighbors untouched
	if c := g.ColorAt(3, 3); c != 0xffffff {
		t.Errorf("Neighbor cell should stay white, got %06x", c)
	}
}

// TestGridSetOverwrite tests that the last write to a cell wins
func TestGridSetOverwrite(t *testing.T) {
	g := NewPixelGrid(2, 2)

	g.Set(0, 0, 0xff0000, 1, 1000)
	g.Set(0, 0, 0x00ff00, 2, 2000)

	if c := g.ColorAt(0, 0); c != 0x00ff00 {
		t.Errorf("Color should be the later write 00ff00, got %06x", c)
	}
	info := g.Info(0, 0)
	if info.UserID != 2 || info.TimestampMs != 2000 {
		t.Errorf("Metadata should be the later write, got user %d at %d", info.UserID, info.TimestampMs)
	}
}

// TestGridExport tests the exported raster shape and content
func TestGridExport(t *testing.T) {
	g := NewPixelGrid(3, 2)
	g.Set(1, 0, 0x112233, 9, 500)

	out := g.Export()
	if len(out) != 3*2*3 {
		t.Fatalf("Export should be width*height*3 bytes, got %d", len(out))
	}

	// Cell (1,0) occupies bytes 3..6 in row-major order
	if out[3] != 0x11 || out[4] != 0x22 || out[5] != 0x33 {
		t.Errorf("Exported cell should be 112233, got %02x%02x%02x", out[3], out[4], out[5])
	}

	// Mutating the export must not touch the grid
	out[3] = 0x00
	if c := g.ColorAt(1, 0); c != 0x112233 {
		t.Errorf("Grid should be unaffected by export mutation, got %06x", c)
	}
}
