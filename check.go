package e2cnn

import (
	"bytes"
	"fmt"
	"math"
	"text/tabwriter"

	"github.com/chewxy/math32"
	"github.com/lilujunai/e2cnn/group"
	"github.com/lilujunai/e2cnn/nn"
	"gorgonia.org/tensor"
)

// EquivarianceReport is the observed deviation of the model's invariant
// features for one rotated copy of an input, relative to the unrotated
// reference.
type EquivarianceReport struct {
	Element  group.Element
	AngleDeg float64
	MaxDiff  float32 // max abs deviation, relative to the feature scale
}

// CheckEquivariance evaluates the model on every group-rotated copy of one
// image and reports how far the invariant features drift from the reference
// output. For quarter turn elements the rotation is an exact pixel
// permutation and the drift is float rounding; for the remaining elements
// the input is resampled and the drift is bounded by the documented
// interpolation and antialiasing error.
func CheckEquivariance(m *Model, img *tensor.Dense) ([]EquivarianceReport, error) {
	x, err := nn.Wrap(img, m.InType())
	if err != nil {
		return nil, err
	}

	ref, err := m.Features(img)
	if err != nil {
		return nil, err
	}
	var scale float32
	for _, v := range ref {
		if av := math32.Abs(v); av > scale {
			scale = av
		}
	}
	if scale == 0 {
		scale = 1
	}

	g := m.g
	retVal := make([]EquivarianceReport, 0, g.Order())
	for _, e := range g.Elements() {
		xg, err := x.Transform(e)
		if err != nil {
			return nil, err
		}
		feats, err := m.Features(xg.Tensor())
		if err != nil {
			return nil, err
		}
		var max float32
		for i := range feats {
			d := math32.Abs(feats[i]-ref[i]) / scale
			if d > max {
				max = d
			}
		}
		retVal = append(retVal, EquivarianceReport{
			Element:  e,
			AngleDeg: g.Angle(e) * 180 / math.Pi,
			MaxDiff:  max,
		})
	}
	return retVal, nil
}

// FormatReports renders the reports as an aligned table.
func FormatReports(reports []EquivarianceReport) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "element\tangle\tmax rel diff")
	for _, r := range reports {
		fmt.Fprintf(w, "g%d\t%.0f°\t%.2e\n", int(r.Element), r.AngleDeg, r.MaxDiff)
	}
	w.Flush()
	return buf.String()
}

// Orbit evaluates the model on every group-rotated copy of the image and
// returns one frame per element, ready for an OutputEncoder.
func Orbit(m *Model, img *tensor.Dense) ([]RotationFrame, error) {
	x, err := nn.Wrap(img, m.InType())
	if err != nil {
		return nil, err
	}
	g := m.g
	retVal := make([]RotationFrame, 0, g.Order())
	for _, e := range g.Elements() {
		xg, err := x.Transform(e)
		if err != nil {
			return nil, err
		}
		feats, err := m.Features(xg.Tensor())
		if err != nil {
			return nil, err
		}
		retVal = append(retVal, RotationFrame{
			Element:  e,
			AngleDeg: g.Angle(e) * 180 / math.Pi,
			Image:    xg.Tensor(),
			Features: feats,
		})
	}
	return retVal, nil
}

// diskMean averages each channel of a feature map over the rotation
// symmetric disk, one vector per batch item, discarding the square corners
// that never carry equivariant information.
func diskMean(t *tensor.Dense) [][]float32 {
	shp := t.Shape()
	b, c, h, w := shp[0], shp[1], shp[2], shp[3]
	data := t.Data().([]float32)

	center := float64(h-1) / 2
	radius := float64(h) / 2
	if h >= 8 {
		radius--
	}
	retVal := make([][]float32, b)
	for bi := range retVal {
		vec := make([]float32, c)
		var count float32
		for r := 0; r < h; r++ {
			for cc := 0; cc < w; cc++ {
				if math.Hypot(float64(r)-center, float64(cc)-center) > radius {
					continue
				}
				count++
				for ch := 0; ch < c; ch++ {
					vec[ch] += data[((bi*c+ch)*h+r)*w+cc]
				}
			}
		}
		if count > 0 {
			for ch := range vec {
				vec[ch] /= count
			}
		}
		retVal[bi] = vec
	}
	return retVal
}
