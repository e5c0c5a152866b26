package extension

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/viant/x"

	"github.com/omixlab/fuseomics/model"
)

// Builder constructs a model architecture from a resolved spec.
type Builder func(spec *model.Spec) (model.Architecture, error)

// Models is a registry of model architectures addressable by class name.
type Models struct {
	types    *Types
	builders map[string]Builder
	mux      sync.RWMutex
}

func (s *Models) Types() *Types {
	return s.types
}

// Register registers a builder under the given class name, replacing any
// previous registration.
func (s *Models) Register(name string, builder Builder) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.builders[name] = builder
}

// Lookup returns the builder for the given class name.
func (s *Models) Lookup(name string) (Builder, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	builder, ok := s.builders[name]
	if !ok {
		return nil, fmt.Errorf("unknown model class: %v (available: %v)", name, s.names())
	}
	return builder, nil
}

// Names lists registered class names in sorted order.
func (s *Models) Names() []string {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.names()
}

func (s *Models) names() []string {
	out := make([]string, 0, len(s.builders))
	for name := range s.builders {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// NewModels creates a model registry pre-populated with the built-in
// architectures; extra Go types are added to the type registry.
func NewModels(goTypes ...*x.Type) *Models {
	ret := &Models{
		types:    NewTypes(),
		builders: make(map[string]Builder),
	}
	ret.types.Register(x.NewType(reflect.TypeOf(model.RunRecord{})))
	for _, t := range goTypes {
		if t != nil {
			ret.types.Register(t)
		}
	}
	ret.Register(model.DirectPredName, func(spec *model.Spec) (model.Architecture, error) {
		return model.NewDirectPred(spec), nil
	})
	ret.Register(model.DirectPredCNNName, func(spec *model.Spec) (model.Architecture, error) {
		return model.NewDirectPredCNN(spec), nil
	})
	ret.Register(model.SupervisedVAEName, func(spec *model.Spec) (model.Architecture, error) {
		return model.NewSupervisedVAE(spec), nil
	})
	ret.Register(model.MultiTripletName, func(spec *model.Spec) (model.Architecture, error) {
		return model.NewMultiTripletNetwork(spec)
	})
	return ret
}
