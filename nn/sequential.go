package nn

import (
	"fmt"

	"github.com/awalterschulze/gographviz"
	"github.com/pkg/errors"
)

// Sequential chains layers into a linear pipeline. Field type compatibility
// between consecutive layers is validated once, at construction; the forward
// pass just threads the geometric tensor through.
type Sequential struct {
	layers []Layer
	in     *FieldType
	out    *FieldType
}

// NewSequential validates the layer chain and returns the composite. Layer
// i's declared output type must structurally equal layer i+1's declared
// input type.
func NewSequential(layers ...Layer) (*Sequential, error) {
	if len(layers) == 0 {
		return nil, errors.Errorf("sequential requires at least one layer")
	}
	for i := 0; i < len(layers)-1; i++ {
		if !layers[i].OutType().Equal(layers[i+1].InType()) {
			return nil, errors.WithStack(TypeChainMismatchError{
				Index: i,
				Out:   layers[i].OutType(),
				In:    layers[i+1].InType(),
			})
		}
	}
	return &Sequential{
		layers: layers,
		in:     layers[0].InType(),
		out:    layers[len(layers)-1].OutType(),
	}, nil
}

func (s *Sequential) InType() *FieldType  { return s.in }
func (s *Sequential) OutType() *FieldType { return s.out }

// Len returns the number of layers in the chain.
func (s *Sequential) Len() int { return len(s.layers) }

func (s *Sequential) Forward(in *GeometricTensor) (*GeometricTensor, error) {
	cur := in
	var err error
	for i, l := range s.layers {
		if cur, err = l.Forward(cur); err != nil {
			return nil, errors.Wrapf(err, "layer %d (%T)", i, l)
		}
	}
	return cur, nil
}

// Parameters aggregates the learnable parameters of the chain, in layer
// order, for the external optimizer.
func (s *Sequential) Parameters() []*Parameter {
	var retVal []*Parameter
	for _, l := range s.layers {
		if p, ok := l.(Parameterized); ok {
			retVal = append(retVal, p.Parameters()...)
		}
	}
	return retVal
}

func (s *Sequential) SetTraining() {
	for _, l := range s.layers {
		if t, ok := l.(Trainer); ok {
			t.SetTraining()
		}
	}
}

func (s *Sequential) SetTesting() {
	for _, l := range s.layers {
		if t, ok := l.(Trainer); ok {
			t.SetTesting()
		}
	}
}

// ToDot renders the pipeline as a graphviz graph, one node per layer
// labelled with its type signature.
func (s *Sequential) ToDot() string {
	g := gographviz.NewGraph()
	if err := g.SetName("Pipeline"); err != nil {
		panic(err)
	}
	g.SetDir(true)

	prev := ""
	for i, l := range s.layers {
		id := fmt.Sprintf("l%d", i)
		attrs := map[string]string{
			"shape": "box",
			"label": fmt.Sprintf(`"%T\n%v → %v"`, l, l.InType(), l.OutType()),
		}
		g.AddNode("Pipeline", id, attrs)
		if prev != "" {
			g.AddEdge(prev, id, true, nil)
		}
		prev = id
	}
	return g.String()
}
