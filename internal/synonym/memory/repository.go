// Package memory provides an in-memory synonym repository for development
// and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/utafrali/catalog-search/internal/domain"
	apperrors "github.com/utafrali/catalog-search/pkg/errors"
)

// Repository stores synonym groups in process memory.
type Repository struct {
	mu   sync.RWMutex
	byID map[string]*domain.Synonym
}

// NewRepository creates an empty in-memory synonym repository.
func NewRepository() *Repository {
	return &Repository{
		byID: make(map[string]*domain.Synonym),
	}
}

func (r *Repository) Create(_ context.Context, syn *domain.Synonym) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.byID {
		if existing.Term == syn.Term {
			return apperrors.AlreadyExists("synonym", "term", syn.Term)
		}
	}
	stored := cloneSynonym(syn)
	r.byID[syn.ID] = &stored
	return nil
}

func (r *Repository) Update(_ context.Context, syn *domain.Synonym) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[syn.ID]; !ok {
		return apperrors.NotFound("synonym", syn.ID)
	}
	for id, existing := range r.byID {
		if id != syn.ID && existing.Term == syn.Term {
			return apperrors.AlreadyExists("synonym", "term", syn.Term)
		}
	}
	stored := cloneSynonym(syn)
	r.byID[syn.ID] = &stored
	return nil
}

func (r *Repository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return apperrors.NotFound("synonym", id)
	}
	delete(r.byID, id)
	return nil
}

func (r *Repository) GetByID(_ context.Context, id string) (*domain.Synonym, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	syn, ok := r.byID[id]
	if !ok {
		return nil, apperrors.NotFound("synonym", id)
	}
	out := cloneSynonym(syn)
	return &out, nil
}

// GetByTerm returns nil without an error when no group matches, mirroring
// the lookup contract bulk import relies on.
func (r *Repository) GetByTerm(_ context.Context, term string) (*domain.Synonym, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, syn := range r.byID {
		if syn.Term == term {
			out := cloneSynonym(syn)
			return &out, nil
		}
	}
	return nil, nil
}

func (r *Repository) List(_ context.Context) ([]domain.Synonym, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(func(*domain.Synonym) bool { return true }), nil
}

func (r *Repository) ListActive(_ context.Context) ([]domain.Synonym, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(func(syn *domain.Synonym) bool { return syn.IsActive }), nil
}

func (r *Repository) collect(keep func(*domain.Synonym) bool) []domain.Synonym {
	out := make([]domain.Synonym, 0, len(r.byID))
	for _, syn := range r.byID {
		if keep(syn) {
			out = append(out, cloneSynonym(syn))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Term < out[j].Term })
	return out
}

func cloneSynonym(syn *domain.Synonym) domain.Synonym {
	out := *syn
	out.Synonyms = append([]string(nil), syn.Synonyms...)
	return out
}
