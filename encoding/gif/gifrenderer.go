// Package gif renders the orbit of an input under the rotation group as an
// animated GIF: one frame per group element, the rotated image upscaled to
// a readable size with the invariant features printed underneath. If the
// model is equivariant the printed features barely move while the image
// spins.
package gif

import (
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"io"

	"github.com/chewxy/math32"
	"github.com/golang/freetype/truetype"
	"github.com/lilujunai/e2cnn"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/math/fixed"
)

var regular *truetype.Font

const (
	dpi      = 144.0
	fontsize = 10.0
	scale    = 6 // image pixels per input pixel
	maxFeats = 4 // features printed per frame
)

func init() {
	var err error
	if regular, err = truetype.Parse(gomono.TTF); err != nil {
		panic(err)
	}
}

var globPalette = color.Palette{
	color.Gray{0},
	color.Gray{32},
	color.Gray{64},
	color.Gray{96},
	color.Gray{128},
	color.Gray{160},
	color.Gray{192},
	color.Gray{224},
	color.Gray{255},
}

// Encoder accumulates rotation frames into an animated GIF according to the
// e2cnn.OutputEncoder interface.
type Encoder struct {
	font.Drawer
	io.Writer

	out  *gif.GIF
	face font.Face

	h, w        int
	padH, padW  int
	lo, hi      float32
	initialized bool
}

// NewEncoder writes the animation to w when flushed.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{
		Writer: w,
		padH:   10,
		padW:   10,
		out:    &gif.GIF{LoopCount: -1},
		Drawer: font.Drawer{Src: image.Black},
	}
}

// Encode renders one frame.
func (enc *Encoder) Encode(f e2cnn.RotationFrame) error {
	shp := f.Image.Shape()
	ih, iw := shp[2], shp[3]
	data := f.Image.Data().([]float32)

	if !enc.initialized {
		// lazy init of specifications
		enc.face = truetype.NewFace(regular, &truetype.Options{
			Size:    fontsize,
			DPI:     dpi,
			Hinting: font.HintingFull,
		})
		enc.Drawer.Face = enc.face

		enc.w = iw*scale + 2*enc.padW
		enc.h = ih*scale + 2*enc.padH + 3*int(fontsize*dpi/72)
		enc.lo, enc.hi = minMax(data)
		if enc.hi <= enc.lo {
			enc.hi = enc.lo + 1
		}
		enc.initialized = true
	}

	frame := image.NewPaletted(image.Rect(0, 0, enc.w, enc.h), globPalette)
	for i := range frame.Pix {
		frame.Pix[i] = uint8(len(globPalette) - 1) // white background
	}

	for r := 0; r < ih; r++ {
		for c := 0; c < iw; c++ {
			v := (data[r*iw+c] - enc.lo) / (enc.hi - enc.lo)
			if v < 0 {
				v = 0
			} else if v > 1 {
				v = 1
			}
			idx := uint8(v * float32(len(globPalette)-1))
			for dy := 0; dy < scale; dy++ {
				for dx := 0; dx < scale; dx++ {
					frame.SetColorIndex(enc.padW+c*scale+dx, enc.padH+r*scale+dy, idx)
				}
			}
		}
	}

	caption := fmt.Sprintf("g%d %3.0f°", int(f.Element), f.AngleDeg)
	feats := f.Features
	if len(feats) > maxFeats {
		feats = feats[:maxFeats]
	}
	for _, v := range feats {
		caption += fmt.Sprintf(" %+.3f", v)
	}

	enc.Dst = frame
	enc.Dot = fixed.P(enc.padW, enc.padH+ih*scale+int(fontsize*dpi/72))
	enc.DrawString(caption)

	enc.out.Image = append(enc.out.Image, frame)
	enc.out.Delay = append(enc.out.Delay, 50)
	return nil
}

// Flush writes the accumulated animation.
func (enc *Encoder) Flush() error {
	return gif.EncodeAll(enc.Writer, enc.out)
}

func minMax(a []float32) (lo, hi float32) {
	lo, hi = math32.Inf(1), math32.Inf(-1)
	for _, v := range a {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
