package nn

import (
	"testing"

	"github.com/lilujunai/e2cnn/group"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestReLURejectsIrreps(t *testing.T) {
	g := group.MustC(8)
	irr, _ := group.Irrep(g, 1)
	reg, _ := group.Regular(g)
	ft, _ := NewFieldType(g, reg, irr)

	var ure UnsupportedRepresentationError
	if _, err := NewReLU(ft); !errors.As(err, &ure) {
		t.Fatalf("expected UnsupportedRepresentationError, got %v", err)
	}
	if _, err := NewInnerBatchNorm(ft, 0.997, 1e-5); !errors.As(err, &ure) {
		t.Fatalf("expected UnsupportedRepresentationError, got %v", err)
	}
}

func TestReLUEquivariance(t *testing.T) {
	g := group.MustC(4)
	reg, _ := group.Regular(g)
	ft, _ := RepeatedType(g, reg, 3)
	l, err := NewReLU(ft)
	if err != nil {
		t.Fatal(err)
	}

	x := randomGT(t, ft, 2, 7, 7)
	ref, err := l.Forward(x)
	if err != nil {
		t.Fatal(err)
	}
	// C4 transforms are exact, so relu must commute exactly
	for _, e := range g.Elements() {
		xg, _ := x.Transform(e)
		got, err := l.Forward(xg)
		if err != nil {
			t.Fatal(err)
		}
		want, _ := ref.Transform(e)
		if d := maxAbsDiff(got.Tensor().Data().([]float32), want.Tensor().Data().([]float32)); d > 1e-6 {
			t.Errorf("relu does not commute with element %v: %v", e, d)
		}
	}
}

func TestBatchNormBlockStats(t *testing.T) {
	assert := assert.New(t)
	g := group.MustC(4)
	reg, _ := group.Regular(g)
	triv, _ := group.Trivial(g)
	ft, _ := NewFieldType(g, reg, triv)

	l, err := NewInnerBatchNorm(ft, 0.9, 1e-5)
	if err != nil {
		t.Fatal(err)
	}
	assert.Len(l.Parameters(), 2)

	x := randomGT(t, ft, 4, 6, 6)
	y, err := l.Forward(x)
	if err != nil {
		t.Fatal(err)
	}

	// training mode: each block is normalized to zero mean, unit variance
	shp := y.Shape()
	b, c, plane := shp[0], shp[1], shp[2]*shp[3]
	data := y.Tensor().Data().([]float32)
	for blk := 0; blk < ft.Len(); blk++ {
		off := ft.Offset(blk)
		d := ft.Rep(blk).Dim()
		var mean, varr float64
		n := float64(b * d * plane)
		for bi := 0; bi < b; bi++ {
			for p := 0; p < d*plane; p++ {
				mean += float64(data[(bi*c+off)*plane+p])
			}
		}
		mean /= n
		for bi := 0; bi < b; bi++ {
			for p := 0; p < d*plane; p++ {
				dv := float64(data[(bi*c+off)*plane+p]) - mean
				varr += dv * dv
			}
		}
		varr /= n
		assert.InDelta(0, mean, 1e-4, "block %d mean", blk)
		assert.InDelta(1, varr, 1e-2, "block %d variance", blk)
	}

	// equivariance: block statistics are permutation invariant, so the whole
	// op commutes with exact grid transforms
	ref := y
	for _, e := range g.Elements() {
		xg, _ := x.Transform(e)
		got, err := l.Forward(xg)
		if err != nil {
			t.Fatal(err)
		}
		want, _ := ref.Transform(e)
		if d := maxAbsDiff(got.Tensor().Data().([]float32), want.Tensor().Data().([]float32)); d > 1e-4 {
			t.Errorf("batchnorm does not commute with element %v: %v", e, d)
		}
	}
}

func TestBatchNormModes(t *testing.T) {
	g := group.MustC(4)
	reg, _ := group.Regular(g)
	ft, _ := RepeatedType(g, reg, 2)
	l, err := NewInnerBatchNorm(ft, 0.5, 1e-5)
	if err != nil {
		t.Fatal(err)
	}

	x := randomGT(t, ft, 4, 6, 6)
	if _, err := l.Forward(x); err != nil {
		t.Fatal(err)
	}

	l.SetTesting()
	y1, err := l.Forward(x)
	if err != nil {
		t.Fatal(err)
	}
	y2, err := l.Forward(x)
	if err != nil {
		t.Fatal(err)
	}
	// inference mode uses frozen running statistics: repeat runs agree
	if d := maxAbsDiff(y1.Tensor().Data().([]float32), y2.Tensor().Data().([]float32)); d != 0 {
		t.Errorf("inference mode is not deterministic: %v", d)
	}
}
