package group

import (
	"fmt"
	"math"
)

// Representation is an immutable matrix representation of a cyclic group: a
// d×d orthogonal matrix per group element, forming a homomorphism
// R(ab) = R(a)R(b).
type Representation struct {
	g    *Cyclic
	name string
	dim  int

	// mats[e] is the d×d matrix of element e, row major.
	mats [][]float64

	perm bool // every matrix is a permutation matrix
}

// Group returns the group being represented.
func (r *Representation) Group() *Cyclic { return r.g }

// Name returns the representation's catalog name.
func (r *Representation) Name() string { return r.name }

// Dim returns the dimensionality d of the representation.
func (r *Representation) Dim() int { return r.dim }

// IsPermutation reports whether the image of every group element is a
// permutation matrix. Pointwise nonlinearities are only equivariant for such
// representations.
func (r *Representation) IsPermutation() bool { return r.perm }

// Matrix returns a copy of the d×d matrix representing element e, row major.
func (r *Representation) Matrix(e Element) []float64 {
	m := r.mats[int(e)%r.g.n]
	retVal := make([]float64, len(m))
	copy(retVal, m)
	return retVal
}

func (r *Representation) String() string {
	return fmt.Sprintf("%s:%s(%d)", r.g.Name(), r.name, r.dim)
}

// Equal reports structural equality: same group, same catalog name, same
// dimension. Catalog constructors are deterministic so this coincides with
// matrix equality.
func (r *Representation) Equal(other *Representation) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.g.Equal(other.g) && r.name == other.name && r.dim == other.dim
}

// Trivial returns the 1-dimensional representation mapping every element to
// the identity. Channels of this type are rotation invariant scalars.
func Trivial(g *Cyclic) (*Representation, error) {
	if g == nil {
		return nil, UnsupportedGroupError{Reason: "nil group"}
	}
	mats := make([][]float64, g.n)
	for i := range mats {
		mats[i] = []float64{1}
	}
	return &Representation{g: g, name: "trivial", dim: 1, mats: mats, perm: true}, nil
}

// Regular returns the |G|-dimensional representation given by the group's
// permutation action on itself: element e maps basis vector b_h to b_{eh}.
func Regular(g *Cyclic) (*Representation, error) {
	if g == nil {
		return nil, UnsupportedGroupError{Reason: "nil group"}
	}
	n := g.n
	mats := make([][]float64, n)
	for e := 0; e < n; e++ {
		m := make([]float64, n*n)
		for h := 0; h < n; h++ {
			m[((e+h)%n)*n+h] = 1
		}
		mats[e] = m
	}
	return &Representation{g: g, name: "regular", dim: n, mats: mats, perm: true}, nil
}

// Irrep returns the real irreducible representation of frequency freq.
// Frequency 0 is the trivial representation; frequencies 0 < f < N/2 are the
// 2-dimensional rotation matrices by f·θ; frequency N/2 (even N only) is the
// 1-dimensional sign representation.
func Irrep(g *Cyclic, freq int) (*Representation, error) {
	if g == nil {
		return nil, UnsupportedGroupError{Reason: "nil group"}
	}
	if freq < 0 || 2*freq > g.n {
		return nil, UnsupportedGroupError{Reason: fmt.Sprintf("%s has no irrep of frequency %d", g.Name(), freq)}
	}
	n := g.n
	mats := make([][]float64, n)
	switch {
	case freq == 0:
		return Trivial(g)
	case 2*freq == n:
		for e := 0; e < n; e++ {
			if e%2 == 0 {
				mats[e] = []float64{1}
			} else {
				mats[e] = []float64{-1}
			}
		}
		return &Representation{g: g, name: fmt.Sprintf("irrep%d", freq), dim: 1, mats: mats}, nil
	default:
		for e := 0; e < n; e++ {
			ψ := float64(freq) * g.Angle(Element(e))
			c, s := math.Cos(ψ), math.Sin(ψ)
			mats[e] = []float64{c, -s, s, c}
		}
		return &Representation{g: g, name: fmt.Sprintf("irrep%d", freq), dim: 2, mats: mats}, nil
	}
}
