// Package meta loads YAML documents from any afs-addressable location and
// decodes them into Go values, expanding ${env.KEY} expressions on the way.
package meta

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"gopkg.in/yaml.v3"
)

// Service resolves and decodes YAML resources relative to a base URL.
type Service struct {
	fs        afs.Service
	baseURL   string
	fsOptions []storage.Option
}

// New creates a meta service; baseURL may be empty, in which case URIs are
// used as-is.
func New(fs afs.Service, baseURL string, options ...storage.Option) *Service {
	return &Service{fs: fs, baseURL: baseURL, fsOptions: options}
}

// Load reads the YAML resource at URI, expands environment expressions and
// decodes it into target.
func (s *Service) Load(ctx context.Context, URI string, target interface{}) error {
	URL := s.resolveURL(URI)
	data, err := s.fs.DownloadWithURL(ctx, URL, s.fsOptions...)
	if err != nil {
		return fmt.Errorf("failed to load %v: %w", URL, err)
	}
	expanded := expandEnvExpr(string(data))
	if err = yaml.Unmarshal([]byte(expanded), target); err != nil {
		return fmt.Errorf("failed to decode %v: %w", URL, err)
	}
	return nil
}

// Exists reports whether the resource at URI is present.
func (s *Service) Exists(ctx context.Context, URI string) (bool, error) {
	return s.fs.Exists(ctx, s.resolveURL(URI), s.fsOptions...)
}

func (s *Service) resolveURL(URI string) string {
	if s.baseURL == "" || strings.Contains(URI, "://") {
		return URI
	}
	return s.baseURL + "/" + strings.TrimLeft(path.Clean(URI), "/")
}
