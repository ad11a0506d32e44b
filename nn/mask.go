package nn

import (
	"math"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
	"gorgonia.org/vecf32"
)

// MaskModule zeroes every pixel outside the disk inscribed in the image.
// Square image corners are not rotation symmetric; masking them off removes
// the asymmetric information that would otherwise leak through the first
// convolution and break equivariance. Idempotent and field type preserving.
type MaskModule struct {
	tp   *FieldType
	size int
	mask []float32
}

// NewMask builds a disk mask for size×size inputs of type tp; margin shrinks
// the disk radius by that many pixels.
func NewMask(tp *FieldType, size int, margin float64) *MaskModule {
	mask := make([]float32, size*size)
	center := float64(size-1) / 2
	radius := float64(size)/2 - margin
	for r := 0; r < size; r++ {
		for c := 0; c < size; c++ {
			if math.Hypot(float64(r)-center, float64(c)-center) <= radius {
				mask[r*size+c] = 1
			}
		}
	}
	return &MaskModule{tp: tp, size: size, mask: mask}
}

func (l *MaskModule) InType() *FieldType  { return l.tp }
func (l *MaskModule) OutType() *FieldType { return l.tp }

func (l *MaskModule) Forward(in *GeometricTensor) (*GeometricTensor, error) {
	if !in.Type().Equal(l.tp) {
		return nil, errors.WithStack(TypeMismatchError{Want: l.tp, Got: in.Type()})
	}
	shp := in.Shape()
	b, c, h, w := shp[0], shp[1], shp[2], shp[3]
	if h != l.size || w != l.size {
		return nil, errors.WithStack(ShapeMismatchError{Want: l.size, Got: tensor.Shape{h, w}, Msg: "mask size does not match input"})
	}
	src := in.Tensor().Data().([]float32)
	dst := make([]float32, len(src))
	copy(dst, src)
	plane := h * w
	for i := 0; i < b*c; i++ {
		vecf32.Mul(dst[i*plane:(i+1)*plane], l.mask)
	}
	out := tensor.New(tensor.WithShape(b, c, h, w), tensor.WithBacking(dst))
	return Wrap(out, l.tp)
}
