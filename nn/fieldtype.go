package nn

import (
	"fmt"
	"strings"

	"github.com/lilujunai/e2cnn/group"
	"github.com/pkg/errors"
)

// FieldType describes how a tensor's channel dimension decomposes under the
// group action: an ordered sequence of representations. It is built once at
// model construction time, immutable thereafter, and shared by reference
// between the layers that read it.
type FieldType struct {
	g       *group.Cyclic
	reps    []*group.Representation
	offsets []int // channel offset of each block
	size    int   // total channel count
}

// TypeBuilder accumulates representations for a FieldType. After Build is
// called the builder is sealed and further Adds fail with
// ImmutableStateError.
type TypeBuilder struct {
	g      *group.Cyclic
	reps   []*group.Representation
	sealed bool
}

// NewTypeBuilder returns a builder for field types over g.
func NewTypeBuilder(g *group.Cyclic) *TypeBuilder {
	return &TypeBuilder{g: g}
}

// Add appends count copies of rep.
func (b *TypeBuilder) Add(rep *group.Representation, count int) error {
	if b.sealed {
		return errors.WithStack(ImmutableStateError{What: "field type"})
	}
	if rep == nil || !rep.Group().Equal(b.g) {
		return errors.Errorf("representation %v does not belong to %v", rep, b.g)
	}
	for i := 0; i < count; i++ {
		b.reps = append(b.reps, rep)
	}
	return nil
}

// Build seals the builder and returns the immutable FieldType.
func (b *TypeBuilder) Build() *FieldType {
	b.sealed = true
	ft := &FieldType{
		g:       b.g,
		reps:    make([]*group.Representation, len(b.reps)),
		offsets: make([]int, len(b.reps)),
	}
	copy(ft.reps, b.reps)
	for i, r := range ft.reps {
		ft.offsets[i] = ft.size
		ft.size += r.Dim()
	}
	return ft
}

// NewFieldType builds a field type from an explicit representation sequence.
func NewFieldType(g *group.Cyclic, reps ...*group.Representation) (*FieldType, error) {
	b := NewTypeBuilder(g)
	for _, r := range reps {
		if err := b.Add(r, 1); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

// RepeatedType builds a field type of count copies of a single
// representation, e.g. 24 regular fields.
func RepeatedType(g *group.Cyclic, rep *group.Representation, count int) (*FieldType, error) {
	b := NewTypeBuilder(g)
	if err := b.Add(rep, count); err != nil {
		return nil, err
	}
	return b.Build(), nil
}

// Group returns the symmetry group the type is defined over.
func (ft *FieldType) Group() *group.Cyclic { return ft.g }

// Size returns the total channel count: the sum of the constituent
// representation dimensions.
func (ft *FieldType) Size() int { return ft.size }

// Len returns the number of representation blocks.
func (ft *FieldType) Len() int { return len(ft.reps) }

// Rep returns the i-th representation block.
func (ft *FieldType) Rep(i int) *group.Representation { return ft.reps[i] }

// Offset returns the channel offset of the i-th block.
func (ft *FieldType) Offset(i int) int { return ft.offsets[i] }

// Blocks calls fn for every representation block with its index and channel
// offset, in order.
func (ft *FieldType) Blocks(fn func(i, offset int, rep *group.Representation)) {
	for i, r := range ft.reps {
		fn(i, ft.offsets[i], r)
	}
}

// Equal reports structural equality: same group and same representation
// sequence. This is the compatibility relation for layer chaining.
func (ft *FieldType) Equal(other *FieldType) bool {
	if ft == nil || other == nil {
		return ft == other
	}
	if !ft.g.Equal(other.g) || len(ft.reps) != len(other.reps) {
		return false
	}
	for i := range ft.reps {
		if !ft.reps[i].Equal(other.reps[i]) {
			return false
		}
	}
	return true
}

func (ft *FieldType) String() string {
	if ft == nil {
		return "<nil type>"
	}
	// compress runs of identical reps: "C8[24×regular]"
	var parts []string
	for i := 0; i < len(ft.reps); {
		j := i
		for j < len(ft.reps) && ft.reps[j].Equal(ft.reps[i]) {
			j++
		}
		if j-i > 1 {
			parts = append(parts, fmt.Sprintf("%d×%s", j-i, ft.reps[i].Name()))
		} else {
			parts = append(parts, ft.reps[i].Name())
		}
		i = j
	}
	return fmt.Sprintf("%s[%s]", ft.g.Name(), strings.Join(parts, ","))
}
