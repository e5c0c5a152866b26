package fuseomics

import (
	"github.com/viant/afs/storage"
	"github.com/viant/x"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/omixlab/fuseomics/extension"
	"github.com/omixlab/fuseomics/hpo"
	"github.com/omixlab/fuseomics/model"
	"github.com/omixlab/fuseomics/progress"
	"github.com/omixlab/fuseomics/service/dao"
	"github.com/omixlab/fuseomics/service/messaging"
	"github.com/omixlab/fuseomics/service/meta"
	"github.com/omixlab/fuseomics/tracing"
)

// Option customizes the service composition.
type Option func(s *Service)

// WithModels overrides the model registry.
func WithModels(models *extension.Models) Option {
	return func(s *Service) { s.models = models }
}

// WithExtensionTypes registers extra Go types with the type registry.
func WithExtensionTypes(types ...*x.Type) Option {
	return func(s *Service) { s.extensionTypes = types }
}

// WithMetaService sets the config loader service.
func WithMetaService(service *meta.Service) Option {
	return func(s *Service) { s.metaService = service }
}

// WithMetaBaseURL sets the base URL config URIs are resolved against.
func WithMetaBaseURL(url string) Option {
	return func(s *Service) { s.metaBaseURL = url }
}

// WithMetaFsOptions passes storage options to the config loader.
func WithMetaFsOptions(options ...storage.Option) Option {
	return func(s *Service) { s.metaFsOptions = options }
}

// WithRunDAO sets the run record store.
func WithRunDAO(dao dao.Service[string, model.RunRecord]) Option {
	return func(s *Service) { s.runtime.runDAO = dao }
}

// WithTrialQueue sets the queue HPO trials are dispatched through.
func WithTrialQueue(queue messaging.Queue[hpo.Candidate]) Option {
	return func(s *Service) { s.runtime.trialQueue = queue }
}

// WithProgressListener registers a callback invoked with a snapshot after
// every progress update.
func WithProgressListener(listener func(progress.Tracker)) Option {
	return func(s *Service) { s.runtime.progressListener = listener }
}

// WithTracing configures OpenTelemetry tracing. If outputFile is empty the
// stdout exporter is used; otherwise traces are written to the supplied file
// path. The first successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom
// SpanExporter, for example OTLP or Zipkin. The first successful
// initialisation wins.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}
