package nn

import (
	"github.com/chewxy/math32"
	"github.com/lilujunai/e2cnn/group"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// PoolConfig configures antialiased spatial pooling.
type PoolConfig struct {
	Sigma   float64 // width of the Gaussian low pass filter
	Stride  int
	Padding int
}

// DefaultPoolConfig halves the spatial resolution with the blur width used
// by the reference network.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{Sigma: 0.66, Stride: 2, Padding: 1}
}

func (cfg PoolConfig) IsValid() bool {
	return cfg.Sigma > 0 && cfg.Stride >= 1 && cfg.Padding >= 0
}

// PointwiseAvgPoolAntialiased reduces spatial resolution by a Gaussian low
// pass followed by subsampling. The blur bounds the aliasing that plain
// strided subsampling would reintroduce under rotation; the residual error
// for a given sigma/stride ratio is a documented limitation, not a defect.
// Acting purely spatially, it preserves the field type exactly.
type PointwiseAvgPoolAntialiased struct {
	tp   *FieldType
	cfg  PoolConfig
	kern []float32
	size int
}

// NewAvgPoolAntialiased builds the pooling layer; the Gaussian kernel extent
// is derived from sigma and computed once.
func NewAvgPoolAntialiased(tp *FieldType, cfg PoolConfig) (*PointwiseAvgPoolAntialiased, error) {
	if !cfg.IsValid() {
		return nil, errors.Errorf("invalid pool config %+v", cfg)
	}
	σ := float32(cfg.Sigma)
	half := int(math32.Ceil(3 * σ))
	size := 2*half + 1

	kern := make([]float32, size*size)
	var sum float32
	for r := 0; r < size; r++ {
		for c := 0; c < size; c++ {
			dy := float32(r - half)
			dx := float32(c - half)
			v := math32.Exp(-(dx*dx + dy*dy) / (2 * σ * σ))
			kern[r*size+c] = v
			sum += v
		}
	}
	for i := range kern {
		kern[i] /= sum
	}
	return &PointwiseAvgPoolAntialiased{tp: tp, cfg: cfg, kern: kern, size: size}, nil
}

func (l *PointwiseAvgPoolAntialiased) InType() *FieldType  { return l.tp }
func (l *PointwiseAvgPoolAntialiased) OutType() *FieldType { return l.tp }

func (l *PointwiseAvgPoolAntialiased) Forward(in *GeometricTensor) (*GeometricTensor, error) {
	if !in.Type().Equal(l.tp) {
		return nil, errors.WithStack(TypeMismatchError{Want: l.tp, Got: in.Type()})
	}
	shp := in.Shape()
	b, c, h, w := shp[0], shp[1], shp[2], shp[3]
	size, st, pad := l.size, l.cfg.Stride, l.cfg.Padding
	ho := (h+2*pad-size)/st + 1
	wo := (w+2*pad-size)/st + 1
	if ho <= 0 || wo <= 0 {
		return nil, errors.WithStack(ShapeMismatchError{Want: size, Got: tensor.Shape{h, w}, Msg: "input too small for pooling filter"})
	}

	src := in.Tensor().Data().([]float32)
	dst := make([]float32, b*c*ho*wo)
	hp, wp := h+2*pad, w+2*pad
	for i := 0; i < b*c; i++ {
		padded := src[i*h*w : (i+1)*h*w]
		if pad > 0 {
			buf := borrowF32(hp * wp)
			for r := 0; r < h; r++ {
				copy(buf[(r+pad)*wp+pad:], padded[r*w:(r+1)*w])
			}
			padded = buf
		}
		out := dst[i*ho*wo : (i+1)*ho*wo]
		for or := 0; or < ho; or++ {
			for oc := 0; oc < wo; oc++ {
				var acc float32
				for ky := 0; ky < size; ky++ {
					srow := padded[(or*st+ky)*wp+oc*st:]
					krow := l.kern[ky*size : (ky+1)*size]
					for kx, kv := range krow {
						acc += kv * srow[kx]
					}
				}
				out[or*wo+oc] = acc
			}
		}
		if pad > 0 {
			returnF32(padded)
		}
	}
	outT := tensor.New(tensor.WithShape(b, c, ho, wo), tensor.WithBacking(dst))
	return Wrap(outT, l.tp)
}

// GroupPool collapses every regular representation block to a single
// invariant scalar channel by pooling over the block's |G| entries. The
// output field type is one trivial representation per input block.
type GroupPool struct {
	in, out *FieldType
	mean    bool
}

// NewGroupPool pools with max over each block. The input type must consist
// purely of regular representations.
func NewGroupPool(in *FieldType) (*GroupPool, error) { return newGroupPool(in, false) }

// NewGroupPoolMean pools with the mean instead of the max.
func NewGroupPoolMean(in *FieldType) (*GroupPool, error) { return newGroupPool(in, true) }

func newGroupPool(in *FieldType, mean bool) (*GroupPool, error) {
	g := in.Group()
	reg, err := group.Regular(g)
	if err != nil {
		return nil, err
	}
	for i := 0; i < in.Len(); i++ {
		if !in.Rep(i).Equal(reg) {
			return nil, errors.WithStack(UnsupportedRepresentationError{Op: "GroupPool", Rep: in.Rep(i).String()})
		}
	}
	triv, err := group.Trivial(g)
	if err != nil {
		return nil, err
	}
	out, err := RepeatedType(g, triv, in.Len())
	if err != nil {
		return nil, err
	}
	return &GroupPool{in: in, out: out, mean: mean}, nil
}

func (l *GroupPool) InType() *FieldType  { return l.in }
func (l *GroupPool) OutType() *FieldType { return l.out }

func (l *GroupPool) Forward(in *GeometricTensor) (*GeometricTensor, error) {
	if !in.Type().Equal(l.in) {
		return nil, errors.WithStack(TypeMismatchError{Want: l.in, Got: in.Type()})
	}
	shp := in.Shape()
	b, _, h, w := shp[0], shp[1], shp[2], shp[3]
	cin := l.in.Size()
	cout := l.out.Size()
	n := l.in.Group().Order()
	plane := h * w

	src := in.Tensor().Data().([]float32)
	dst := make([]float32, b*cout*plane)
	for bi := 0; bi < b; bi++ {
		for blk := 0; blk < l.in.Len(); blk++ {
			off := l.in.Offset(blk)
			out := dst[(bi*cout+blk)*plane : (bi*cout+blk+1)*plane]
			for p := 0; p < plane; p++ {
				v := src[(bi*cin+off)*plane+p]
				if l.mean {
					for d := 1; d < n; d++ {
						v += src[(bi*cin+off+d)*plane+p]
					}
					v /= float32(n)
				} else {
					for d := 1; d < n; d++ {
						if x := src[(bi*cin+off+d)*plane+p]; x > v {
							v = x
						}
					}
				}
				out[p] = v
			}
		}
	}
	outT := tensor.New(tensor.WithShape(b, cout, h, w), tensor.WithBacking(dst))
	return Wrap(outT, l.out)
}
