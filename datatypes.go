package e2cnn

import (
	"github.com/lilujunai/e2cnn/group"
	"gorgonia.org/tensor"
)

// Dataset produces (image, label) pairs. Images are single channel float32
// tensors of shape (1, 1, size, size); the label is an integer class id.
// Datasets are external collaborators: the core only touches them at the
// wrap-as-geometric-tensor boundary.
type Dataset interface {
	Next() (img *tensor.Dense, label int, err error)
}

// Augmenter takes an image and produces more images from it, e.g. the
// rotated copies used for training orientation robustness.
type Augmenter func(img *tensor.Dense) []*tensor.Dense

// RotationFrame is one orientation of an input together with the model's
// invariant response, as consumed by output encoders.
type RotationFrame struct {
	Element  group.Element
	AngleDeg float64
	Image    *tensor.Dense // (1, 1, h, w)
	Features []float32
}

// OutputEncoder turns a sequence of rotation frames into some output format.
//
// An example OutputEncoder is the gif Encoder, which animates the orbit of
// an input under the rotation group. Another example would be a logger.
type OutputEncoder interface {
	Encode(f RotationFrame) error
	Flush() error
}
