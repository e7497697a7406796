package canvas

// slotSize is the per-cell stride in the raster buffer: three big-endian
// color bytes plus one reserved byte. The reserved byte must stay zero;
// readers ignore it. The 4-byte alignment keeps cell access a simple
// shift instead of a 3-byte multiply and leaves room for future per-cell
// metadata without relayout.
const slotSize = 4

// CellInfo is the placement metadata for one cell. Zero value means the
// cell has never been written.
type CellInfo struct {
	UserID      uint64
	TimestampMs uint64
	Placed      bool
}

// PixelGrid is the fixed-size raster plus per-cell placement metadata.
// It performs no bounds checking: callers (the placement engine and the
// replay path) validate coordinates first. PixelGrid is not safe for
// concurrent use; the owning Canvas serializes access.
type PixelGrid struct {
	width  int
	height int
	data   []byte // width*height*slotSize raster buffer
	info   []CellInfo
}

// NewPixelGrid allocates a width x height grid with every cell white.
func NewPixelGrid(width, height int) *PixelGrid {
	g := &PixelGrid{
		width:  width,
		height: height,
		data:   make([]byte, width*height*slotSize),
		info:   make([]CellInfo, width*height),
	}
	for i := 0; i < len(g.data); i += slotSize {
		g.data[i] = 0xff
		g.data[i+1] = 0xff
		g.data[i+2] = 0xff
	}
	return g
}

// Width returns the raster width in cells.
func (g *PixelGrid) Width() int { return g.width }

// Height returns the raster height in cells.
func (g *PixelGrid) Height() int { return g.height }

func (g *PixelGrid) offset(x, y int) int {
	return (x + y*g.width) * slotSize
}

// ColorAt returns the packed 24-bit color of the cell.
func (g *PixelGrid) ColorAt(x, y int) uint32 {
	return uint24(g.data[g.offset(x, y):])
}

// Set unconditionally overwrites a cell's color and placement metadata.
func (g *PixelGrid) Set(x, y int, color uint32, userID, timestampMs uint64) {
	off := g.offset(x, y)
	putUint24(g.data[off:], color)
	g.info[x+y*g.width] = CellInfo{UserID: userID, TimestampMs: timestampMs, Placed: true}
}

// Info returns the placement metadata for a cell.
func (g *PixelGrid) Info(x, y int) CellInfo {
	return g.info[x+y*g.width]
}

// Export returns the externally visible raster: 3 bytes per cell (RGB),
// row-major, reserved bytes masked out. The result is a fresh copy and
// safe to hand to callers.
func (g *PixelGrid) Export() []byte {
	out := make([]byte, g.width*g.height*3)
	for cell := 0; cell < g.width*g.height; cell++ {
		copy(out[cell*3:cell*3+3], g.data[cell*slotSize:cell*slotSize+3])
	}
	return out
}
