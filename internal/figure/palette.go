package figure

import (
	"image/color"

	"gonum.org/v1/plot/palette"
)

// coldPalette returns the fixed ten-step blue-to-yellow ramp used for
// every heatmap panel. A fixed palette with a fixed Min/Max keeps cell
// colors comparable between panels and between runs.
func coldPalette() palette.Palette {
	return fixedPalette{
		color.RGBA{R: 0x08, G: 0x05, B: 0x84, A: 0xff},
		color.RGBA{R: 0x21, G: 0x34, B: 0xa8, A: 0xff},
		color.RGBA{R: 0x2c, G: 0x62, B: 0xc4, A: 0xff},
		color.RGBA{R: 0x2f, G: 0x8e, B: 0xd1, A: 0xff},
		color.RGBA{R: 0x35, G: 0xb5, B: 0xc6, A: 0xff},
		color.RGBA{R: 0x55, G: 0xd3, B: 0xa8, A: 0xff},
		color.RGBA{R: 0x8f, G: 0xe8, B: 0x7c, A: 0xff},
		color.RGBA{R: 0xc8, G: 0xf3, B: 0x55, A: 0xff},
		color.RGBA{R: 0xf2, G: 0xf2, B: 0x3f, A: 0xff},
		color.RGBA{R: 0xfd, G: 0xe7, B: 0x25, A: 0xff},
	}
}

type fixedPalette []color.Color

func (p fixedPalette) Colors() []color.Color { return p }
