package nn

import (
	"fmt"
	"sync"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// ConvConfig configures a steerable convolution layer.
type ConvConfig struct {
	Size     int // spatial kernel extent (Size×Size)
	Stride   int
	Padding  int
	Dilation int

	// basis bandlimiting; see steerableBasis
	MaxFrequency int
	FreqOffset   int
	RingSigma    float64

	Bias bool
}

// DefaultConvConfig returns the configuration for a kernel of the given
// size: unit stride, no padding, bandlimit scaled to the kernel radius.
func DefaultConvConfig(size int) ConvConfig {
	return ConvConfig{
		Size:         size,
		Stride:       1,
		Padding:      0,
		Dilation:     1,
		MaxFrequency: size/2 + 2,
		FreqOffset:   1,
		RingSigma:    0.6,
		Bias:         true,
	}
}

func (cfg ConvConfig) IsValid() bool {
	return cfg.Size >= 1 &&
		cfg.Stride >= 1 &&
		cfg.Dilation >= 1 &&
		cfg.Padding >= 0 &&
		cfg.MaxFrequency >= 0 &&
		cfg.FreqOffset >= 0 &&
		cfg.RingSigma > 0
}

func (cfg ConvConfig) basisConfig() basisConfig {
	return basisConfig{Size: cfg.Size, MaxFrequency: cfg.MaxFrequency, FreqOffset: cfg.FreqOffset, RingSigma: cfg.RingSigma}
}

// R2Conv is a steerable convolution over the plane: a spatial convolution
// whose kernel is a learned linear combination of a precomputed equivariant
// basis, so that convolving a g-transformed input yields the g-transform of
// convolving the untransformed input. Padding is not equivariant; it is the
// dominant source of residual equivariance error near image borders and an
// accepted approximation, not a bug.
type R2Conv struct {
	in, out *FieldType
	cfg     ConvConfig

	// bases[bo][bi] is the kernel space for output block bo, input block bi;
	// offsets[bo][bi] is where its coefficients start in the weight vector.
	bases   [][]*blockBasis
	offsets [][]int
	nCoeff  int

	weights *Parameter
	bias    *Parameter
}

// NewR2Conv builds a steerable convolution from the input field type to the
// output field type. The equivariant filter basis is solved here, once;
// forward calls only mix it with the learned coefficients.
func NewR2Conv(in, out *FieldType, cfg ConvConfig) (*R2Conv, error) {
	if !cfg.IsValid() {
		return nil, errors.Errorf("invalid conv config %+v", cfg)
	}
	if in == nil || out == nil || !in.Group().Equal(out.Group()) {
		return nil, errors.Errorf("conv requires input and output types over the same group")
	}

	l := &R2Conv{
		in:      in,
		out:     out,
		cfg:     cfg,
		bases:   make([][]*blockBasis, out.Len()),
		offsets: make([][]int, out.Len()),
	}
	for bo := 0; bo < out.Len(); bo++ {
		l.bases[bo] = make([]*blockBasis, in.Len())
		l.offsets[bo] = make([]int, in.Len())
		for bi := 0; bi < in.Len(); bi++ {
			bb, err := steerableBasis(in.Rep(bi), out.Rep(bo), cfg.basisConfig())
			if err != nil {
				return nil, errors.Wrapf(err, "solving basis for block (%d,%d)", bo, bi)
			}
			if bb.Dim() == 0 {
				return nil, errors.Errorf("empty equivariant basis for %v→%v at size %d; raise MaxFrequency", in.Rep(bi), out.Rep(bo), cfg.Size)
			}
			l.bases[bo][bi] = bb
			l.offsets[bo][bi] = l.nCoeff
			l.nCoeff += bb.Dim()
		}
	}

	he := math32.Sqrt(2 / float32(in.Size()*cfg.Size*cfg.Size))
	backing := G.Gaussian(0, float64(he))(tensor.Float32, l.nCoeff)
	l.weights = &Parameter{
		Name:  fmt.Sprintf("conv%v→%v_w", in, out),
		Value: tensor.New(tensor.WithShape(l.nCoeff), tensor.WithBacking(backing)),
	}
	if cfg.Bias {
		l.bias = &Parameter{
			Name:  fmt.Sprintf("conv%v→%v_b", in, out),
			Value: tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(out.Len())),
		}
	}
	return l, nil
}

func (l *R2Conv) InType() *FieldType  { return l.in }
func (l *R2Conv) OutType() *FieldType { return l.out }

// BasisDim returns the total number of learnable kernel coefficients.
func (l *R2Conv) BasisDim() int { return l.nCoeff }

func (l *R2Conv) Parameters() []*Parameter {
	if l.bias != nil {
		return []*Parameter{l.weights, l.bias}
	}
	return []*Parameter{l.weights}
}

// ExpandKernel mixes the learned coefficients with the equivariant basis
// into an explicit (Cout, Cin, Size, Size) kernel tensor.
func (l *R2Conv) ExpandKernel() *tensor.Dense {
	size := l.cfg.Size
	cout, cin := l.out.Size(), l.in.Size()
	kern := make([]float32, cout*cin*size*size)
	w := l.weights.Data()

	for bo := 0; bo < l.out.Len(); bo++ {
		dOut := l.out.Rep(bo).Dim()
		oOff := l.out.Offset(bo)
		for bi := 0; bi < l.in.Len(); bi++ {
			dIn := l.in.Rep(bi).Dim()
			iOff := l.in.Offset(bi)
			bb := l.bases[bo][bi]
			cOff := l.offsets[bo][bi]
			for n, basisKern := range bb.kernels {
				coef := w[cOff+n]
				if coef == 0 {
					continue
				}
				for o := 0; o < dOut; o++ {
					for i := 0; i < dIn; i++ {
						src := basisKern[(o*dIn+i)*size*size : (o*dIn+i+1)*size*size]
						dstBase := ((oOff+o)*cin + iOff + i) * size * size
						for p, v := range src {
							kern[dstBase+p] += coef * v
						}
					}
				}
			}
		}
	}
	return tensor.New(tensor.WithShape(cout, cin, size, size), tensor.WithBacking(kern))
}

// Forward performs the convolution. Kernel contributions are data parallel
// across the batch; the WaitGroup join below is the only ordering point.
func (l *R2Conv) Forward(in *GeometricTensor) (*GeometricTensor, error) {
	if !in.Type().Equal(l.in) {
		return nil, errors.WithStack(TypeMismatchError{Want: l.in, Got: in.Type()})
	}
	shp := in.Shape()
	b, cin, h, w := shp[0], shp[1], shp[2], shp[3]
	size, st, pad, dil := l.cfg.Size, l.cfg.Stride, l.cfg.Padding, l.cfg.Dilation
	span := dil*(size-1) + 1
	ho := (h+2*pad-span)/st + 1
	wo := (w+2*pad-span)/st + 1
	if ho <= 0 || wo <= 0 {
		return nil, errors.WithStack(ShapeMismatchError{Want: span, Got: tensor.Shape{h, w}, Msg: "input too small for kernel"})
	}

	kern := l.ExpandKernel().Data().([]float32)
	cout := l.out.Size()
	src := in.Tensor().Data().([]float32)
	dst := make([]float32, b*cout*ho*wo)

	var wg sync.WaitGroup
	for bi := 0; bi < b; bi++ {
		wg.Add(1)
		go func(bi int) {
			defer wg.Done()
			l.convOne(src[bi*cin*h*w:(bi+1)*cin*h*w], dst[bi*cout*ho*wo:(bi+1)*cout*ho*wo], kern, cin, h, w, ho, wo)
		}(bi)
	}
	wg.Wait()

	if l.bias != nil {
		bias := l.bias.Data()
		plane := ho * wo
		for bo := 0; bo < l.out.Len(); bo++ {
			β := bias[bo]
			if β == 0 {
				continue
			}
			d := l.out.Rep(bo).Dim()
			off := l.out.Offset(bo)
			for bi := 0; bi < b; bi++ {
				base := (bi*cout + off) * plane
				for p := 0; p < d*plane; p++ {
					dst[base+p] += β
				}
			}
		}
	}

	out := tensor.New(tensor.WithShape(b, cout, ho, wo), tensor.WithBacking(dst))
	return Wrap(out, l.out)
}

// convOne convolves a single batch item. The input is copied into a zero
// padded scratch plane so the inner loops need no bounds checks.
func (l *R2Conv) convOne(src, dst, kern []float32, cin, h, w, ho, wo int) {
	size, st, pad, dil := l.cfg.Size, l.cfg.Stride, l.cfg.Padding, l.cfg.Dilation
	hp, wp := h+2*pad, w+2*pad

	padded := src
	if pad > 0 {
		padded = borrowF32(cin * hp * wp)
		defer returnF32(padded)
		for c := 0; c < cin; c++ {
			for r := 0; r < h; r++ {
				copy(padded[c*hp*wp+(r+pad)*wp+pad:], src[c*h*w+r*w:c*h*w+(r+1)*w])
			}
		}
	}

	cout := len(dst) / (ho * wo)
	for oc := 0; oc < cout; oc++ {
		for or := 0; or < ho; or++ {
			for ocl := 0; ocl < wo; ocl++ {
				var acc float32
				for ic := 0; ic < cin; ic++ {
					kbase := (oc*cin + ic) * size * size
					for ky := 0; ky < size; ky++ {
						srow := padded[ic*hp*wp+(or*st+ky*dil)*wp+ocl*st:]
						krow := kern[kbase+ky*size : kbase+(ky+1)*size]
						for kx, kv := range krow {
							acc += kv * srow[kx*dil]
						}
					}
				}
				dst[(oc*ho+or)*wo+ocl] = acc
			}
		}
	}
}
