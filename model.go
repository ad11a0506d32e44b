// Package e2cnn builds image classifiers whose predictions are invariant to
// rotations of the input by multiples of 360°/N. Every tensor flowing
// through the network carries a field type describing how its channels
// transform under the rotation group, and every layer is constrained to
// commute with that action; the only residual equivariance error comes from
// padding, resampling and subsampling, which is documented and bounded, not
// exceptional.
package e2cnn

import (
	"fmt"

	"github.com/lilujunai/e2cnn/group"
	"github.com/lilujunai/e2cnn/nn"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Config configures the equivariant feature extractor.
type Config struct {
	Order     int   // rotation group order N
	ImageSize int   // input images are ImageSize×ImageSize, single channel
	Blocks    []int // regular fields per conv block

	MaskMargin float64
	PoolSigma  float64
	FwdOnly    bool // skip batch norm statistics tracking (inference only)
}

// DefaultConf is the reference network: six conv blocks on 29×29 inputs
// over C8, pooled down to 64 invariant features.
func DefaultConf() Config {
	return Config{
		Order:      8,
		ImageSize:  29,
		Blocks:     []int{24, 48, 48, 96, 96, 64},
		MaskMargin: 1,
		PoolSigma:  0.66,
	}
}

// SmallConf is a scaled down preset for tests and demos.
func SmallConf() Config {
	return Config{
		Order:      8,
		ImageSize:  29,
		Blocks:     []int{4, 8},
		MaskMargin: 1,
		PoolSigma:  0.66,
	}
}

func (conf Config) IsValid() bool {
	return conf.Order >= 1 &&
		conf.ImageSize >= 15 &&
		len(conf.Blocks) >= 1 &&
		conf.MaskMargin >= 0 &&
		conf.PoolSigma > 0
}

// Head is the ordinary, non equivariant classifier consuming the invariant
// features. It is an external collaborator: the core only guarantees that
// the features it receives are rotation invariant.
type Head interface {
	Infer(features []float32) (logits []float32, err error)
}

// Model is the equivariant feature extractor: mask, a stack of steerable
// conv blocks with pooling between them, and a final group pooling step
// that collapses the regular fields to invariant scalars.
type Model struct {
	Config

	g    *group.Cyclic
	in   *nn.FieldType
	body *nn.Sequential
}

// New builds a model. Invalid configurations are programmer errors and
// panic, as does a failed basis solve.
func New(conf Config) *Model {
	if !conf.IsValid() {
		panic("Config is not valid. Unable to proceed")
	}
	m := &Model{Config: conf, g: group.MustC(conf.Order)}
	if err := m.init(); err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return m
}

func (m *Model) init() error {
	triv, err := group.Trivial(m.g)
	if err != nil {
		return err
	}
	reg, err := group.Regular(m.g)
	if err != nil {
		return err
	}
	if m.in, err = nn.NewFieldType(m.g, triv); err != nil {
		return err
	}

	var layers []nn.Layer
	layers = append(layers, nn.NewMask(m.in, m.ImageSize, m.MaskMargin))

	cur := m.in
	for i, fields := range m.Blocks {
		out, err := nn.RepeatedType(m.g, reg, fields)
		if err != nil {
			return err
		}
		cfg := nn.DefaultConvConfig(5)
		cfg.Padding = 2
		if i == 0 {
			// lifting block: bigger kernel, trimmed padding like the
			// reference network
			cfg = nn.DefaultConvConfig(7)
			cfg.Padding = 1
		}
		conv, err := nn.NewR2Conv(cur, out, cfg)
		if err != nil {
			return err
		}
		bn, err := nn.NewInnerBatchNorm(out, 0.997, 1e-5)
		if err != nil {
			return err
		}
		relu, err := nn.NewReLU(out)
		if err != nil {
			return err
		}
		layers = append(layers, conv, bn, relu)

		// halve the resolution after every second block
		if i%2 == 1 {
			pcfg := nn.PoolConfig{Sigma: m.PoolSigma, Stride: 2, Padding: 1}
			if i == len(m.Blocks)-1 {
				pcfg.Stride = 1
				pcfg.Padding = 0
			}
			pool, err := nn.NewAvgPoolAntialiased(out, pcfg)
			if err != nil {
				return err
			}
			layers = append(layers, pool)
		}
		cur = out
	}

	gpool, err := nn.NewGroupPool(cur)
	if err != nil {
		return err
	}
	layers = append(layers, gpool)

	if m.body, err = nn.NewSequential(layers...); err != nil {
		return err
	}
	if m.FwdOnly {
		m.body.SetTesting()
	}
	return nil
}

// InType returns the input field type (a single trivial field: grayscale).
func (m *Model) InType() *nn.FieldType { return m.in }

// OutSize returns the number of invariant features the model produces.
func (m *Model) OutSize() int { return m.body.OutType().Size() }

// Body exposes the underlying layer chain.
func (m *Model) Body() *nn.Sequential { return m.body }

// Forward maps a batch of grayscale images (batch, 1, ImageSize, ImageSize)
// to invariant feature maps. The returned tensor is a plain numeric tensor:
// the geometric typing ends here, at the boundary to the classifier head.
func (m *Model) Forward(img *tensor.Dense) (*tensor.Dense, error) {
	x, err := nn.Wrap(img, m.in)
	if err != nil {
		return nil, err
	}
	y, err := m.body.Forward(x)
	if err != nil {
		return nil, err
	}
	return y.Tensor(), nil
}

// Features runs Forward on a single image and averages the remaining
// spatial extent over the rotation symmetric disk, yielding one invariant
// scalar per output field. Batched input is rejected; use FeaturesBatch.
func (m *Model) Features(img *tensor.Dense) ([]float32, error) {
	feats, err := m.FeaturesBatch(img)
	if err != nil {
		return nil, err
	}
	if len(feats) != 1 {
		return nil, errors.WithStack(nn.ShapeMismatchError{Want: 1, Got: len(feats), Msg: "Features takes a single image"})
	}
	return feats[0], nil
}

// FeaturesBatch is Features over a whole batch: one invariant feature
// vector per batch item.
func (m *Model) FeaturesBatch(img *tensor.Dense) ([][]float32, error) {
	out, err := m.Forward(img)
	if err != nil {
		return nil, err
	}
	return diskMean(out), nil
}

// Parameters returns the learnable parameters for the external optimizer.
func (m *Model) Parameters() []*nn.Parameter { return m.body.Parameters() }

// SetTraining and SetTesting switch the statistics tracking layers.
func (m *Model) SetTraining() { m.body.SetTraining() }
func (m *Model) SetTesting()  { m.body.SetTesting() }
