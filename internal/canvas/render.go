package canvas

import (
	"image/color"
	"io"

	"github.com/fogleman/gg"
)

// RenderPNG draws the current raster into a PNG image, one filled
// square of scale x scale output pixels per cell. A scale below 1 is
// treated as 1.
func (c *Canvas) RenderPNG(w io.Writer, scale int) error {
	if scale < 1 {
		scale = 1
	}

	raster := c.Export()
	width := c.settings.Width
	height := c.settings.Height

	dc := gg.NewContext(width*scale, height*scale)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			off := (x + y*width) * 3
			dc.SetColor(color.NRGBA{R: raster[off], G: raster[off+1], B: raster[off+2], A: 255})
			if scale == 1 {
				dc.SetPixel(x, y)
				continue
			}
			dc.DrawRectangle(float64(x*scale), float64(y*scale), float64(scale), float64(scale))
			dc.Fill()
		}
	}

	return dc.EncodePNG(w)
}
