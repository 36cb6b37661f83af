package cpu

import (
	"image"
	"image/color"
	"image/png"
	"os"
)

var (
	DefaultOn  = color.RGBA{R: 0xFF, G: 0x00, B: 0x00, A: 0xFF}
	DefaultOff = color.RGBA{A: 0xFF}
)

// Pixel reports whether the pixel at (x, y) is lit. Coordinates wrap the
// same way sprites do.
func (c *CPU) Pixel(x, y int) bool {
	x = ((x % Width) + Width) % Width
	y = ((y % Height) + Height) % Height
	return c.Display[y*Width+x] != 0
}

// Framebuffer returns a copy of the 64x32 display, one byte (0 or 1) per
// pixel in row-major order.
func (c *CPU) Framebuffer() [Width * Height]byte {
	return c.Display
}

func (c *CPU) ClearDirty() {
	c.Dirty = false
}

// FramebufferRGBA expands the display into a Width*Height RGBA8888 byte
// slice (length 64*32*4 = 8192) ready for WritePixels.
func (c *CPU) FramebufferRGBA(on, off color.RGBA) []byte {
	pixels := make([]byte, Width*Height*4)
	for i, p := range c.Display {
		col := off
		if p != 0 {
			col = on
		}
		pixels[i*4+0] = col.R
		pixels[i*4+1] = col.G
		pixels[i*4+2] = col.B
		pixels[i*4+3] = col.A
	}
	return pixels
}

// FramebufferImage returns the display scaled by an integer factor.
func (c *CPU) FramebufferImage(on, off color.RGBA, scale int) *image.RGBA {
	if scale < 1 {
		scale = 1
	}
	img := image.NewRGBA(image.Rect(0, 0, Width*scale, Height*scale))
	for y := 0; y < Height*scale; y++ {
		for x := 0; x < Width*scale; x++ {
			col := off
			if c.Display[(y/scale)*Width+x/scale] != 0 {
				col = on
			}
			img.SetRGBA(x, y, col)
		}
	}
	return img
}

// SaveScreenshot encodes the display as a PNG and writes it to filename.
func (c *CPU) SaveScreenshot(filename string, scale int) error {
	img := c.FramebufferImage(DefaultOn, DefaultOff, scale)
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
