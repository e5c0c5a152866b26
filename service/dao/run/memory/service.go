// Package memory provides an in-memory run record store, used by default and
// in tests.
package memory

import (
	"context"
	"sync"

	"github.com/omixlab/fuseomics/model"
	"github.com/omixlab/fuseomics/service/dao"
)

// Service stores run records in a map. All operations are safe for
// concurrent use and operate on copies so callers cannot mutate stored
// state.
type Service struct {
	records map[string]*model.RunRecord
	mux     sync.RWMutex
}

var _ dao.Service[string, model.RunRecord] = (*Service)(nil)

// Save persists a clone of the supplied record.
func (s *Service) Save(_ context.Context, record *model.RunRecord) error {
	if record == nil {
		return dao.ErrNilEntity
	}
	if record.ID == "" {
		return dao.ErrInvalidID
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	s.records[record.ID] = record.Clone()
	return nil
}

// Load returns a copy of the record or dao.ErrNotFound.
func (s *Service) Load(_ context.Context, id string) (*model.RunRecord, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	s.mux.RLock()
	record, ok := s.records[id]
	s.mux.RUnlock()
	if !ok {
		return nil, dao.ErrNotFound
	}
	return record.Clone(), nil
}

// Delete removes a record.
func (s *Service) Delete(_ context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	if _, ok := s.records[id]; !ok {
		return dao.ErrNotFound
	}
	delete(s.records, id)
	return nil
}

// List returns copies of all records. Parameter filtering is not supported
// by the in-memory store.
func (s *Service) List(_ context.Context, _ ...*dao.Parameter) ([]*model.RunRecord, error) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	out := make([]*model.RunRecord, 0, len(s.records))
	for _, record := range s.records {
		out = append(out, record.Clone())
	}
	return out, nil
}

func New() *Service {
	return &Service{records: map[string]*model.RunRecord{}}
}
