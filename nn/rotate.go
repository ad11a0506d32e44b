package nn

import (
	"math"
)

const quarterTurnEps = 1e-9

// RotatePlane rotates a single h×w plane by θ radians about its center into
// dst: exact index permutation for quarter turns, bilinear resampling with
// zero fill otherwise. src and dst must not alias.
func RotatePlane(src, dst []float32, h, w int, θ float64) {
	rotatePlane(src, dst, h, w, θ)
}

// rotatePlane rotates a single h×w plane by θ radians about its center into
// dst. Multiples of a quarter turn are exact index permutations; anything
// else is bilinearly resampled with zero fill outside the source. src and
// dst must not alias.
func rotatePlane(src, dst []float32, h, w int, θ float64) {
	θ = math.Mod(θ, 2*math.Pi)
	if θ < 0 {
		θ += 2 * math.Pi
	}

	k := θ / (math.Pi / 2)
	if math.Abs(k-math.Round(k)) < quarterTurnEps && h == w {
		rotateQuarter(src, dst, w, int(math.Round(k))%4)
		return
	}

	cx := float64(w-1) / 2
	cy := float64(h-1) / 2
	cos, sin := math.Cos(θ), math.Sin(θ)
	for r := 0; r < h; r++ {
		y := float64(r) - cy
		for c := 0; c < w; c++ {
			x := float64(c) - cx
			// inverse-rotate the destination coordinate
			sc := cx + cos*x + sin*y
			sr := cy - sin*x + cos*y
			dst[r*w+c] = bilinear(src, h, w, sr, sc)
		}
	}
}

// rotateQuarter rotates a square n×n plane by k quarter turns.
func rotateQuarter(src, dst []float32, n, k int) {
	switch k {
	case 0:
		copy(dst, src)
	case 1:
		for r := 0; r < n; r++ {
			for c := 0; c < n; c++ {
				dst[r*n+c] = src[(n-1-c)*n+r]
			}
		}
	case 2:
		for r := 0; r < n; r++ {
			for c := 0; c < n; c++ {
				dst[r*n+c] = src[(n-1-r)*n+(n-1-c)]
			}
		}
	case 3:
		for r := 0; r < n; r++ {
			for c := 0; c < n; c++ {
				dst[r*n+c] = src[c*n+(n-1-r)]
			}
		}
	}
}

func bilinear(src []float32, h, w int, r, c float64) float32 {
	r0 := int(math.Floor(r))
	c0 := int(math.Floor(c))
	dr := float32(r - float64(r0))
	dc := float32(c - float64(c0))

	at := func(ri, ci int) float32 {
		if ri < 0 || ri >= h || ci < 0 || ci >= w {
			return 0
		}
		return src[ri*w+ci]
	}
	top := (1-dc)*at(r0, c0) + dc*at(r0, c0+1)
	bot := (1-dc)*at(r0+1, c0) + dc*at(r0+1, c0+1)
	return (1-dr)*top + dr*bot
}
