package nn

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
	"gorgonia.org/vecf32"
)

// permutationOnly rejects field types containing a representation whose
// group image is not a pure permutation. Pointwise functions commute with
// permutations of a block's channels but not with general channel mixing,
// so applying them to any other representation would silently break
// equivariance.
func permutationOnly(op string, tp *FieldType) error {
	for i := 0; i < tp.Len(); i++ {
		if !tp.Rep(i).IsPermutation() {
			return errors.WithStack(UnsupportedRepresentationError{Op: op, Rep: tp.Rep(i).String()})
		}
	}
	return nil
}

// ReLU applies the rectifier to every channel. Field type is unchanged.
type ReLU struct {
	tp *FieldType
}

// NewReLU builds a rectifier over tp, which may contain only
// permutation representations (trivial, regular).
func NewReLU(tp *FieldType) (*ReLU, error) {
	if err := permutationOnly("ReLU", tp); err != nil {
		return nil, err
	}
	return &ReLU{tp: tp}, nil
}

func (l *ReLU) InType() *FieldType  { return l.tp }
func (l *ReLU) OutType() *FieldType { return l.tp }

func (l *ReLU) Forward(in *GeometricTensor) (*GeometricTensor, error) {
	if !in.Type().Equal(l.tp) {
		return nil, errors.WithStack(TypeMismatchError{Want: l.tp, Got: in.Type()})
	}
	src := in.Tensor().Data().([]float32)
	dst := make([]float32, len(src))
	for i, v := range src {
		if v > 0 {
			dst[i] = v
		}
	}
	out := tensor.New(tensor.WithShape(in.Shape()...), tensor.WithBacking(dst))
	return Wrap(out, l.tp)
}

// InnerBatchNorm normalizes per representation block rather than per raw
// channel: all channels of a block share one mean, variance, scale and
// shift, which keeps the statistics invariant under the block's permutation
// action.
type InnerBatchNorm struct {
	tp       *FieldType
	momentum float32
	epsilon  float32

	gamma, beta *Parameter
	runMean     []float32
	runVar      []float32
	training    bool
}

// NewInnerBatchNorm builds a batch normalization layer over tp. Momentum
// follows the keep-old convention (e.g. 0.997).
func NewInnerBatchNorm(tp *FieldType, momentum, epsilon float32) (*InnerBatchNorm, error) {
	if err := permutationOnly("InnerBatchNorm", tp); err != nil {
		return nil, err
	}
	n := tp.Len()
	gamma := make([]float32, n)
	for i := range gamma {
		gamma[i] = 1
	}
	runVar := make([]float32, n)
	for i := range runVar {
		runVar[i] = 1
	}
	return &InnerBatchNorm{
		tp:       tp,
		momentum: momentum,
		epsilon:  epsilon,
		gamma: &Parameter{
			Name:  fmt.Sprintf("bn%v_gamma", tp),
			Value: tensor.New(tensor.WithShape(n), tensor.WithBacking(gamma)),
		},
		beta: &Parameter{
			Name:  fmt.Sprintf("bn%v_beta", tp),
			Value: tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(n)),
		},
		runMean:  make([]float32, n),
		runVar:   runVar,
		training: true,
	}, nil
}

func (l *InnerBatchNorm) InType() *FieldType { return l.tp }
func (l *InnerBatchNorm) OutType() *FieldType { return l.tp }
func (l *InnerBatchNorm) Parameters() []*Parameter { return []*Parameter{l.gamma, l.beta} }
func (l *InnerBatchNorm) SetTraining() { l.training = true }
func (l *InnerBatchNorm) SetTesting() { l.training = false }

func (l *InnerBatchNorm) Forward(in *GeometricTensor) (*GeometricTensor, error) {
	if !in.Type().Equal(l.tp) {
		return nil, errors.WithStack(TypeMismatchError{Want: l.tp, Got: in.Type()})
	}
	shp := in.Shape()
	b, c, h, w := shp[0], shp[1], shp[2], shp[3]
	plane := h * w
	src := in.Tensor().Data().([]float32)
	dst := make([]float32, len(src))
	copy(dst, src)

	gamma := l.gamma.Data()
	beta := l.beta.Data()
	for i := 0; i < l.tp.Len(); i++ {
		off := l.tp.Offset(i)
		d := l.tp.Rep(i).Dim()

		var mean, varr float32
		if l.training {
			n := float32(b * d * plane)
			for bi := 0; bi < b; bi++ {
				blk := dst[(bi*c+off)*plane : (bi*c+off+d)*plane]
				for _, v := range blk {
					mean += v
				}
			}
			mean /= n
			for bi := 0; bi < b; bi++ {
				blk := dst[(bi*c+off)*plane : (bi*c+off+d)*plane]
				for _, v := range blk {
					dv := v - mean
					varr += dv * dv
				}
			}
			varr /= n
			l.runMean[i] = l.momentum*l.runMean[i] + (1-l.momentum)*mean
			l.runVar[i] = l.momentum*l.runVar[i] + (1-l.momentum)*varr
		} else {
			mean, varr = l.runMean[i], l.runVar[i]
		}

		scale := gamma[i] / math32.Sqrt(varr+l.epsilon)
		for bi := 0; bi < b; bi++ {
			blk := dst[(bi*c+off)*plane : (bi*c+off+d)*plane]
			vecf32.Trans(blk, -mean)
			vecf32.Scale(blk, scale)
			vecf32.Trans(blk, beta[i])
		}
	}
	out := tensor.New(tensor.WithShape(b, c, h, w), tensor.WithBacking(dst))
	return Wrap(out, l.tp)
}
