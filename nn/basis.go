package nn

import (
	"fmt"
	"math"
	"sync"

	"github.com/lilujunai/e2cnn/group"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// basisConfig is the subset of ConvConfig the basis solve depends on.
type basisConfig struct {
	Size         int     // spatial kernel extent (Size×Size)
	MaxFrequency int     // global angular bandlimit
	FreqOffset   int     // per-ring frequency allowance above the ring index
	RingSigma    float64 // width of the Gaussian radial rings
}

// blockBasis is the equivariant kernel space for one (input representation,
// output representation) pair: a list of sampled basis kernels, each of
// shape (dOut, dIn, Size, Size) flattened row major. Solved once, immutable,
// and shared read-only between all layers with the same pair and config.
type blockBasis struct {
	in, out *group.Representation
	cfg     basisConfig
	kernels [][]float32
}

// Dim returns the number of basis kernels.
func (bb *blockBasis) Dim() int { return len(bb.kernels) }

var (
	basisLock  sync.Mutex
	basisCache = make(map[string]*blockBasis)
)

func basisKey(in, out *group.Representation, cfg basisConfig) string {
	return fmt.Sprintf("%v|%v|%d|%d|%d|%g", in, out, cfg.Size, cfg.MaxFrequency, cfg.FreqOffset, cfg.RingSigma)
}

// steerableBasis solves, for one representation pair, the kernel constraint
//
//	K(gx) = ρ_out(g) K(x) ρ_in(g)⁻¹
//
// for the group generator g. Commuting with the generator implies commuting
// with every element of a cyclic group, so no further elements need to be
// stacked. The kernel is expanded in an analytic basis of Gaussian radial
// rings times angular harmonics; per angular frequency the constraint is a
// finite-dimensional null space problem solved by SVD. The surviving null
// vectors are sampled on the discrete kernel grid, restricted to a disk.
func steerableBasis(in, out *group.Representation, cfg basisConfig) (*blockBasis, error) {
	key := basisKey(in, out, cfg)
	basisLock.Lock()
	cached, ok := basisCache[key]
	basisLock.Unlock()
	if ok {
		return cached, nil
	}

	g := in.Group()
	if !g.Equal(out.Group()) {
		return nil, errors.Errorf("representations %v and %v are over different groups", in, out)
	}
	dIn, dOut := in.Dim(), out.Dim()
	D := dOut * dIn
	gen := g.Generator()
	θ := g.Angle(gen)

	// M acts on the (o,i) index pair as K ↦ ρ_out(g) K ρ_in(g)⁻¹.
	rOut := out.Matrix(gen)
	rInInv := in.Matrix(g.Inverse(gen))
	M := mat.NewDense(D, D, nil)
	for o := 0; o < dOut; o++ {
		for i := 0; i < dIn; i++ {
			for o2 := 0; o2 < dOut; o2++ {
				for i2 := 0; i2 < dIn; i2++ {
					M.Set(o*dIn+i, o2*dIn+i2, rOut[o*dOut+o2]*rInInv[i2*dIn+i])
				}
			}
		}
	}

	bb := &blockBasis{in: in, out: out, cfg: cfg}
	maxRing := cfg.Size / 2
	for k := 0; k <= cfg.MaxFrequency; k++ {
		null := frequencyNullspace(M, D, k, θ)
		if len(null) == 0 {
			continue
		}
		for ring := 0; ring <= maxRing; ring++ {
			if k > ringMaxFreq(ring, cfg) {
				continue
			}
			for _, u := range null {
				kern := sampleKernel(u, dOut, dIn, k, ring, cfg)
				if kern != nil {
					bb.kernels = append(bb.kernels, kern)
				}
			}
		}
	}

	basisLock.Lock()
	basisCache[key] = bb
	basisLock.Unlock()
	return bb, nil
}

// ringMaxFreq bandlimits each radial ring: sampling a harmonic of frequency
// much higher than the ring circumference supports would alias under
// rotation, so frequencies above ring+FreqOffset are cut. Ring 0 is the
// center pixel, which carries no angular information at all.
func ringMaxFreq(ring int, cfg basisConfig) int {
	if ring == 0 {
		return 0
	}
	max := ring + cfg.FreqOffset
	if max > cfg.MaxFrequency {
		max = cfg.MaxFrequency
	}
	return max
}

// frequencyNullspace returns an orthonormal basis, as coefficient vectors of
// length T·D (T = 1 for frequency 0, else 2 for the cos/sin pair), of the
// solutions of (L_k ⊗ I − I ⊗ M)u = 0 where L_k is the action of the
// generator rotation on frequency-k harmonic coefficients.
func frequencyNullspace(M *mat.Dense, D, k int, θ float64) [][]float64 {
	T := 2
	if k == 0 {
		T = 1
	}
	n := T * D
	A := mat.NewDense(n, n, nil)

	// L_k = rotation by -kθ acting on (cos, sin) coefficients
	c, s := math.Cos(float64(k)*θ), math.Sin(float64(k)*θ)
	var L []float64
	if k == 0 {
		L = []float64{1}
	} else {
		L = []float64{c, s, -s, c}
	}
	for t := 0; t < T; t++ {
		for t2 := 0; t2 < T; t2++ {
			l := L[t*T+t2]
			if l == 0 {
				continue
			}
			for d := 0; d < D; d++ {
				A.Set(t*D+d, t2*D+d, A.At(t*D+d, t2*D+d)+l)
			}
		}
	}
	for t := 0; t < T; t++ {
		for r := 0; r < D; r++ {
			for cc := 0; cc < D; cc++ {
				A.Set(t*D+r, t*D+cc, A.At(t*D+r, t*D+cc)-M.At(r, cc))
			}
		}
	}

	var svd mat.SVD
	if !svd.Factorize(A, mat.SVDFull) {
		return nil
	}
	vals := svd.Values(nil)
	var v mat.Dense
	svd.VTo(&v)

	const tol = 1e-7
	var retVal [][]float64
	for i := len(vals) - 1; i >= 0; i-- {
		if vals[i] > tol {
			break
		}
		u := make([]float64, n)
		for r := 0; r < n; r++ {
			u[r] = v.At(r, i)
		}
		retVal = append(retVal, u)
	}
	return retVal
}

// sampleKernel evaluates one analytic solution on the discrete kernel grid:
// ring profile × harmonic × coefficient matrix, masked to the inscribed
// disk and L2 normalized. Returns nil if the sampled kernel is numerically
// zero (ring fully outside the disk).
func sampleKernel(u []float64, dOut, dIn, k, ring int, cfg basisConfig) []float32 {
	size := cfg.Size
	D := dOut * dIn
	T := len(u) / D
	center := float64(size-1) / 2
	maxR := float64(size) / 2
	σ := cfg.RingSigma

	kern := make([]float64, D*size*size)
	var norm float64
	for row := 0; row < size; row++ {
		y := float64(row) - center
		for col := 0; col < size; col++ {
			x := float64(col) - center
			r := math.Hypot(x, y)
			if r > maxR {
				continue
			}
			radial := math.Exp(-(r - float64(ring)) * (r - float64(ring)) / (2 * σ * σ))
			var ang [2]float64
			if k == 0 {
				ang[0] = 1
			} else {
				if r < 1e-9 {
					continue // angle undefined at the center
				}
				φ := math.Atan2(y, x)
				ang[0] = math.Cos(float64(k) * φ)
				ang[1] = math.Sin(float64(k) * φ)
			}
			for t := 0; t < T; t++ {
				w := radial * ang[t]
				if w == 0 {
					continue
				}
				for d := 0; d < D; d++ {
					idx := d*size*size + row*size + col
					kern[idx] += u[t*D+d] * w
				}
			}
		}
	}
	for _, v := range kern {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm < 1e-8 {
		return nil
	}
	retVal := make([]float32, len(kern))
	for i, v := range kern {
		retVal[i] = float32(v / norm)
	}
	return retVal
}
