package nn

import (
	"testing"

	"github.com/lilujunai/e2cnn/group"
	"github.com/stretchr/testify/assert"
	"gorgonia.org/tensor"
)

func TestMask(t *testing.T) {
	assert := assert.New(t)
	g := group.MustC(8)
	triv, _ := group.Trivial(g)
	ft, _ := NewFieldType(g, triv)

	const size = 9
	l := NewMask(ft, size, 0)
	assert.True(l.InType().Equal(l.OutType()))

	ones := make([]float32, size*size)
	for i := range ones {
		ones[i] = 1
	}
	x, err := Wrap(tensor.New(tensor.WithShape(1, 1, size, size), tensor.WithBacking(ones)), ft)
	if err != nil {
		t.Fatal(err)
	}
	y, err := l.Forward(x)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	data := y.Tensor().Data().([]float32)

	// corners are outside the inscribed disk, the center is inside
	assert.Equal(float32(0), data[0])
	assert.Equal(float32(0), data[size-1])
	assert.Equal(float32(0), data[(size-1)*size])
	assert.Equal(float32(1), data[(size/2)*size+size/2])

	// idempotence: masking a masked tensor changes nothing
	y2, err := l.Forward(y)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if d := maxAbsDiff(data, y2.Tensor().Data().([]float32)); d != 0 {
		t.Errorf("mask is not idempotent: %v", d)
	}

	// the disk maps onto itself under quarter turns, so masking commutes
	// exactly with those; at 45° bilinear resampling blends across the hard
	// disk edge and the two orders differ at boundary pixels
	rnd := randomGT(t, ft, 1, size, size)
	ref, err := l.Forward(rnd)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range []group.Element{0, 2, 4, 6} {
		xg, err := rnd.Transform(e)
		if err != nil {
			t.Fatal(err)
		}
		got, err := l.Forward(xg)
		if err != nil {
			t.Fatal(err)
		}
		want, err := ref.Transform(e)
		if err != nil {
			t.Fatal(err)
		}
		if d := maxAbsDiff(got.Tensor().Data().([]float32), want.Tensor().Data().([]float32)); d > 1e-5 {
			t.Errorf("mask does not commute with element %v: %v", e, d)
		}
	}

	wrong := randomGT(t, ft, 1, size+2, size+2)
	if _, err := l.Forward(wrong); err == nil {
		t.Fatal("mismatched spatial size should be rejected")
	}
}
