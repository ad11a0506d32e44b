package nn

import (
	"fmt"

	"github.com/lilujunai/e2cnn/group"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// GeometricTensor pairs a raw BCHW float32 tensor with the FieldType
// describing how its channels transform under the group action. It is the
// unit of data flow between equivariant layers.
type GeometricTensor struct {
	t  *tensor.Dense
	tp *FieldType
}

// Wrap binds a raw tensor to a field type. The tensor must be a 4-D float32
// tensor in (batch, channels, height, width) order whose channel dimension
// matches the field type's size.
func Wrap(t *tensor.Dense, tp *FieldType) (*GeometricTensor, error) {
	if t == nil || tp == nil {
		return nil, errors.Errorf("cannot wrap nil tensor or nil field type")
	}
	if t.Dtype() != tensor.Float32 {
		return nil, errors.WithStack(ShapeMismatchError{Want: tensor.Float32, Got: t.Dtype(), Msg: "geometric tensors are float32"})
	}
	if t.Dims() != 4 {
		return nil, errors.WithStack(ShapeMismatchError{Want: 4, Got: t.Dims(), Msg: "geometric tensors are BCHW"})
	}
	if t.Shape()[1] != tp.Size() {
		return nil, errors.WithStack(ShapeMismatchError{Want: tp.Size(), Got: t.Shape()[1], Msg: fmt.Sprintf("channel dimension does not match field type %v", tp)})
	}
	return &GeometricTensor{t: t, tp: tp}, nil
}

// Tensor unwraps the underlying raw tensor. This happens only at the
// network's final boundary, where the invariant features are handed to a
// plain (non-equivariant) collaborator.
func (gt *GeometricTensor) Tensor() *tensor.Dense { return gt.t }

// Type returns the field type.
func (gt *GeometricTensor) Type() *FieldType { return gt.tp }

// Shape returns the underlying tensor shape.
func (gt *GeometricTensor) Shape() tensor.Shape { return gt.t.Shape() }

func (gt *GeometricTensor) String() string {
	return fmt.Sprintf("GeometricTensor%v:%v", gt.t.Shape(), gt.tp)
}

// Transform applies group element e to the tensor: every plane is spatially
// rotated by e's angle and the channels are mixed by the block diagonal
// matrix assembled from each constituent representation's image of e. This
// is the ground truth action the equivariance tests compare layer outputs
// against; the forward pass itself never calls it.
func (gt *GeometricTensor) Transform(e group.Element) (*GeometricTensor, error) {
	shp := gt.t.Shape()
	b, c, h, w := shp[0], shp[1], shp[2], shp[3]
	if h != w {
		return nil, errors.WithStack(ShapeMismatchError{Want: h, Got: w, Msg: "rotation requires square spatial extent"})
	}
	src := gt.t.Data().([]float32)
	rotated := make([]float32, len(src))

	θ := gt.tp.Group().Angle(e)
	plane := h * w
	for i := 0; i < b*c; i++ {
		rotatePlane(src[i*plane:(i+1)*plane], rotated[i*plane:(i+1)*plane], h, w, θ)
	}

	// channel mixing: out[off+i] = Σ_j R(e)[i][j]·in[off+j], per block
	mixed := make([]float32, len(src))
	gt.tp.Blocks(func(_, off int, rep *group.Representation) {
		d := rep.Dim()
		m := rep.Matrix(e)
		for bi := 0; bi < b; bi++ {
			base := bi * c * plane
			for i := 0; i < d; i++ {
				dst := mixed[base+(off+i)*plane : base+(off+i+1)*plane]
				for j := 0; j < d; j++ {
					coef := float32(m[i*d+j])
					if coef == 0 {
						continue
					}
					s := rotated[base+(off+j)*plane : base+(off+j+1)*plane]
					for p := range dst {
						dst[p] += coef * s[p]
					}
				}
			}
		}
	})

	out := tensor.New(tensor.WithShape(b, c, h, w), tensor.WithBacking(mixed))
	return Wrap(out, gt.tp)
}
