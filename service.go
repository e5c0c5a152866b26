package fuseomics

import (
	"context"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/x"

	"github.com/omixlab/fuseomics/extension"
	"github.com/omixlab/fuseomics/service/meta"
	rmemory "github.com/omixlab/fuseomics/service/dao/run/memory"
)

// Service is the composition root: it wires the model registry, config
// loader and run record store, and exposes the Runtime that executes
// modelling runs.
type Service struct {
	runtime        *Runtime
	metaService    *meta.Service
	models         *extension.Models
	extensionTypes []*x.Type
	metaBaseURL    string
	metaFsOptions  []storage.Option
}

func (s *Service) init(options []Option) {
	for _, option := range options {
		option(s)
	}
	if s.metaService == nil {
		s.metaService = meta.New(afs.New(), s.metaBaseURL, s.metaFsOptions...)
	}
	if s.models == nil {
		s.models = extension.NewModels(s.extensionTypes...)
	}
	if s.runtime.runDAO == nil {
		s.runtime.runDAO = rmemory.New()
	}
	s.runtime.models = s.models
}

// Runtime returns the run executor.
func (s *Service) Runtime() *Runtime {
	return s.runtime
}

// Models returns the model registry so callers can register custom
// architectures.
func (s *Service) Models() *extension.Models {
	return s.models
}

// RegisterExtensionType adds a Go type to the type registry.
func (s *Service) RegisterExtensionType(aType *x.Type) {
	s.models.Types().Register(aType)
}

// LoadConfig reads a YAML run configuration from any afs-addressable URI,
// applying defaults for unset fields and expanding ${env.KEY} expressions.
func (s *Service) LoadConfig(ctx context.Context, URI string) (*Config, error) {
	config := DefaultConfig()
	if err := s.metaService.Load(ctx, URI, config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// New creates a service with the supplied options; zero options yield a
// fully in-memory setup.
func New(options ...Option) *Service {
	ret := &Service{runtime: &Runtime{}}
	ret.init(options)
	return ret
}
