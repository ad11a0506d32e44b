package nn

import (
	"testing"

	"github.com/lilujunai/e2cnn/group"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"gorgonia.org/tensor"
)

func TestFieldTypeSize(t *testing.T) {
	assert := assert.New(t)
	g := group.MustC(8)
	triv, _ := group.Trivial(g)
	reg, _ := group.Regular(g)

	ft, err := NewFieldType(g, triv, reg, reg, triv)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(1+8+8+1, ft.Size())
	assert.Equal(4, ft.Len())
	assert.Equal(0, ft.Offset(0))
	assert.Equal(1, ft.Offset(1))
	assert.Equal(9, ft.Offset(2))
	assert.Equal(17, ft.Offset(3))

	var visited int
	ft.Blocks(func(i, off int, rep *group.Representation) {
		assert.Equal(ft.Offset(i), off)
		visited++
	})
	assert.Equal(4, visited)

	rt, err := RepeatedType(g, reg, 16)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(128, rt.Size())
	assert.Equal("C8[16×regular]", rt.String())
}

func TestFieldTypeEqual(t *testing.T) {
	assert := assert.New(t)
	g := group.MustC(8)
	triv, _ := group.Trivial(g)
	reg, _ := group.Regular(g)

	a, _ := NewFieldType(g, triv, reg)
	b, _ := NewFieldType(g, triv, reg)
	c, _ := NewFieldType(g, reg, triv)
	assert.True(a.Equal(b))
	assert.False(a.Equal(c), "order matters")

	g4 := group.MustC(4)
	triv4, _ := group.Trivial(g4)
	reg4, _ := group.Regular(g4)
	d, _ := NewFieldType(g4, triv4, reg4)
	assert.False(a.Equal(d), "different groups are never compatible")
}

func TestTypeBuilderSealed(t *testing.T) {
	g := group.MustC(8)
	reg, _ := group.Regular(g)

	b := NewTypeBuilder(g)
	if err := b.Add(reg, 2); err != nil {
		t.Fatal(err)
	}
	ft := b.Build()
	if ft.Size() != 16 {
		t.Fatalf("expected 16 channels, got %d", ft.Size())
	}

	err := b.Add(reg, 1)
	if err == nil {
		t.Fatal("adding to a sealed builder should fail")
	}
	var ise ImmutableStateError
	if !errors.As(err, &ise) {
		t.Fatalf("expected ImmutableStateError, got %T", errors.Cause(err))
	}
	if ft.Size() != 16 {
		t.Fatal("sealed type must not change")
	}
}

func TestWrapShapes(t *testing.T) {
	g := group.MustC(8)
	reg, _ := group.Regular(g)
	ft, _ := RepeatedType(g, reg, 2) // 16 channels

	good := tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(1, 16, 9, 9))
	if _, err := Wrap(good, ft); err != nil {
		t.Fatalf("valid wrap failed: %+v", err)
	}

	var sme ShapeMismatchError
	bad := tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(1, 15, 9, 9))
	if _, err := Wrap(bad, ft); !errors.As(err, &sme) {
		t.Fatalf("expected ShapeMismatchError for wrong channel count, got %v", err)
	}

	rank3 := tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(16, 9, 9))
	if _, err := Wrap(rank3, ft); !errors.As(err, &sme) {
		t.Fatalf("expected ShapeMismatchError for rank 3, got %v", err)
	}

	f64 := tensor.New(tensor.Of(tensor.Float64), tensor.WithShape(1, 16, 9, 9))
	if _, err := Wrap(f64, ft); !errors.As(err, &sme) {
		t.Fatalf("expected ShapeMismatchError for float64, got %v", err)
	}
}
