package e2cnn

import (
	"math"

	rng "github.com/leesper/go_rng"
	"github.com/lilujunai/e2cnn/nn"
	"gorgonia.org/tensor"
)

// SyntheticDataset generates smooth pseudo-random images: sums of Gaussian
// rings with low angular frequencies, the kind of signal the equivariant
// pipeline can track through resampling. The label is the number of rings.
// It stands in for a real dataset in tests and demos.
type SyntheticDataset struct {
	Size    int
	MaxRing int

	gauss *rng.GaussianGenerator
	uni   *rng.UniformGenerator
}

// NewSyntheticDataset builds a deterministic synthetic source.
func NewSyntheticDataset(size int, seed int64) *SyntheticDataset {
	return &SyntheticDataset{
		Size:    size,
		MaxRing: 5,
		gauss:   rng.NewGaussianGenerator(seed),
		uni:     rng.NewUniformGenerator(seed + 1),
	}
}

// Next produces the next (image, label) pair.
func (d *SyntheticDataset) Next() (*tensor.Dense, int, error) {
	n := int(d.uni.Int64Range(1, int64(d.MaxRing)+1))
	img := d.render(n, 0)
	return tensor.New(tensor.WithShape(1, 1, d.Size, d.Size), tensor.WithBacking(img)), n, nil
}

// Rotated produces the same kind of image rotated analytically by θ, with
// no resampling error. Useful for isolating a pipeline's own equivariance
// error from the input interpolation error.
func (d *SyntheticDataset) Rotated(rings int, θ float64, seed int64) *tensor.Dense {
	saveG, saveU := d.gauss, d.uni
	d.gauss = rng.NewGaussianGenerator(seed)
	d.uni = rng.NewUniformGenerator(seed + 1)
	img := d.render(rings, θ)
	d.gauss, d.uni = saveG, saveU
	return tensor.New(tensor.WithShape(1, 1, d.Size, d.Size), tensor.WithBacking(img))
}

func (d *SyntheticDataset) render(rings int, θ float64) []float32 {
	type ring struct {
		r, σ, a, ψ float64
		k          int
	}
	specs := make([]ring, rings)
	maxR := float64(d.Size)/2 - 3
	for i := range specs {
		specs[i] = ring{
			r: d.uni.Float64Range(1, maxR),
			σ: d.uni.Float64Range(1.2, 2.2),
			a: d.gauss.Gaussian(0, 0.5),
			ψ: d.uni.Float64Range(0, 2*math.Pi),
			k: int(d.uni.Int64Range(0, 3)),
		}
	}
	center := float64(d.Size-1) / 2
	img := make([]float32, d.Size*d.Size)
	for r := 0; r < d.Size; r++ {
		y := float64(r) - center
		for c := 0; c < d.Size; c++ {
			x := float64(c) - center
			rad := math.Hypot(x, y)
			φ := math.Atan2(y, x)
			var v float64
			for _, s := range specs {
				v += s.a * math.Exp(-(rad-s.r)*(rad-s.r)/(2*s.σ*s.σ)) *
					math.Cos(float64(s.k)*(φ-s.ψ-θ))
			}
			img[r*d.Size+c] = float32(v)
		}
	}
	return img
}

// RotateImage resamples a (1, 1, h, w) image by θ radians about its center,
// the augmentation a training collaborator would apply to real data.
func RotateImage(img *tensor.Dense, θ float64) *tensor.Dense {
	shp := img.Shape()
	h, w := shp[2], shp[3]
	src := img.Data().([]float32)
	dst := make([]float32, len(src))
	nn.RotatePlane(src, dst, h, w, θ)
	return tensor.New(tensor.WithShape(1, 1, h, w), tensor.WithBacking(dst))
}
