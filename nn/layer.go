package nn

import (
	"gorgonia.org/tensor"
)

// Layer is anything that maps geometric tensors to geometric tensors while
// preserving the equivariance invariant. InType and OutType are declared at
// construction; Forward rejects inputs of any other type.
type Layer interface {
	Forward(*GeometricTensor) (*GeometricTensor, error)
	InType() *FieldType
	OutType() *FieldType
}

// Parameter is a named learnable tensor. The external optimizer mutates the
// backing slice in place between passes; the layers only ever read it during
// a forward call.
type Parameter struct {
	Name  string
	Value *tensor.Dense
}

// Data returns the parameter's flat float32 backing.
func (p *Parameter) Data() []float32 { return p.Value.Data().([]float32) }

// Parameterized is implemented by layers carrying learnable weights.
type Parameterized interface {
	Parameters() []*Parameter
}

// Trainer is implemented by layers whose behaviour differs between training
// and inference, such as batch normalization.
type Trainer interface {
	SetTraining()
	SetTesting()
}
