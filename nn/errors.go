package nn

import "fmt"

// ShapeMismatchError is returned when a raw tensor's shape violates the
// field type it is being bound to.
type ShapeMismatchError struct {
	Want, Got interface{}
	Msg       string
}

func (err ShapeMismatchError) Error() string {
	return fmt.Sprintf("shape mismatch: %s (want %v, got %v)", err.Msg, err.Want, err.Got)
}

// TypeMismatchError is returned when a geometric tensor's field type is not
// the one a layer was built for.
type TypeMismatchError struct {
	Want, Got *FieldType
}

func (err TypeMismatchError) Error() string {
	return fmt.Sprintf("field type mismatch: layer expects %v, got %v", err.Want, err.Got)
}

// TypeChainMismatchError is returned by Sequential when consecutive layers
// disagree on the field type flowing between them.
type TypeChainMismatchError struct {
	Index   int
	Out, In *FieldType
}

func (err TypeChainMismatchError) Error() string {
	return fmt.Sprintf("type chain mismatch between layer %d and %d: %v flows into %v", err.Index, err.Index+1, err.Out, err.In)
}

// UnsupportedRepresentationError is returned when an operation is applied to
// a representation it cannot preserve equivariance for.
type UnsupportedRepresentationError struct {
	Op  string
	Rep string
}

func (err UnsupportedRepresentationError) Error() string {
	return fmt.Sprintf("%s cannot preserve equivariance for representation %s", err.Op, err.Rep)
}

// ImmutableStateError is returned on attempts to mutate a sealed value.
type ImmutableStateError struct {
	What string
}

func (err ImmutableStateError) Error() string {
	return fmt.Sprintf("%s is immutable once built", err.What)
}
