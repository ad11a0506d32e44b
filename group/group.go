// Package group provides the cyclic rotation groups and their matrix
// representations, which together form the type system the equivariant
// layers are built on.
package group

import (
	"fmt"
	"math"
)

// Element is a group element. For a cyclic group of order N, elements are
// the rotation indices 0..N-1, with 0 the identity.
type Element int

// Cyclic is the group of planar rotations by multiples of 2π/N.
type Cyclic struct {
	n int
}

// C returns the cyclic rotation group of order n.
func C(n int) (*Cyclic, error) {
	if n < 1 {
		return nil, UnsupportedGroupError{Reason: fmt.Sprintf("cyclic group order must be positive, got %d", n)}
	}
	return &Cyclic{n: n}, nil
}

// MustC is C, for use in model-construction code where an invalid order is
// a programmer error.
func MustC(n int) *Cyclic {
	g, err := C(n)
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return g
}

// Order returns |G|.
func (g *Cyclic) Order() int { return g.n }

// Identity returns the identity element.
func (g *Cyclic) Identity() Element { return 0 }

// Generator returns the rotation by 2π/N. Every element is a power of it.
func (g *Cyclic) Generator() Element { return Element(1 % g.n) }

// Compose returns ab.
func (g *Cyclic) Compose(a, b Element) Element {
	return Element((int(a) + int(b)) % g.n)
}

// Inverse returns a⁻¹.
func (g *Cyclic) Inverse(a Element) Element {
	return Element((g.n - int(a)%g.n) % g.n)
}

// Elements returns all elements in a fixed order, identity first.
func (g *Cyclic) Elements() []Element {
	retVal := make([]Element, g.n)
	for i := range retVal {
		retVal[i] = Element(i)
	}
	return retVal
}

// Angle returns the rotation angle of a in radians.
func (g *Cyclic) Angle(a Element) float64 {
	return 2 * math.Pi * float64(int(a)%g.n) / float64(g.n)
}

func (g *Cyclic) String() string { return g.Name() }

// Name returns the conventional name of the group, e.g. "C8".
func (g *Cyclic) Name() string { return fmt.Sprintf("C%d", g.n) }

// Equal reports whether two groups are the same group.
func (g *Cyclic) Equal(h *Cyclic) bool {
	if g == nil || h == nil {
		return g == h
	}
	return g.n == h.n
}
