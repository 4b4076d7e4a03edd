package synonym

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/catalog-search/internal/domain"
	apperrors "github.com/utafrali/catalog-search/pkg/errors"
)

// Repository is the persistence surface the service drives.
type Repository interface {
	Create(ctx context.Context, syn *domain.Synonym) error
	Update(ctx context.Context, syn *domain.Synonym) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Synonym, error)
	GetByTerm(ctx context.Context, term string) (*domain.Synonym, error)
	List(ctx context.Context) ([]domain.Synonym, error)
	ListActive(ctx context.Context) ([]domain.Synonym, error)
}

// Invalidator is notified after every successful write so cached expansion
// tables get rebuilt. The query expander satisfies it.
type Invalidator interface {
	Invalidate()
}

// CreateInput carries the fields of a new synonym group. IsActive defaults
// to true when unset.
type CreateInput struct {
	Term     string   `json:"term" validate:"required,max=100"`
	Synonyms []string `json:"synonyms" validate:"required,min=1,dive,required,max=100"`
	IsActive *bool    `json:"is_active"`
}

// UpdateInput carries a partial update; nil fields are left untouched.
type UpdateInput struct {
	Term     *string  `json:"term" validate:"omitempty,max=100"`
	Synonyms []string `json:"synonyms" validate:"omitempty,min=1,dive,required,max=100"`
	IsActive *bool    `json:"is_active"`
}

// ImportResult summarizes one bulk import: how many groups were created and
// how many were skipped because the term already existed.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// Service owns synonym lifecycle: normalization on write, uniqueness, and
// expander invalidation.
type Service struct {
	repo        Repository
	invalidator Invalidator
	logger      *slog.Logger
}

// NewService creates a synonym service.
func NewService(repo Repository, invalidator Invalidator, logger *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		invalidator: invalidator,
		logger:      logger,
	}
}

// Create stores a new synonym group. The term and every synonym are
// lowercased and trimmed before persisting so expansion lookups stay exact.
func (s *Service) Create(ctx context.Context, input *CreateInput) (*domain.Synonym, error) {
	term := normalizeTerm(input.Term)
	synonyms := normalizeList(input.Synonyms)
	if term == "" || len(synonyms) == 0 {
		return nil, apperrors.InvalidInput("term and at least one synonym are required")
	}

	now := time.Now().UTC()
	syn := &domain.Synonym{
		ID:        uuid.NewString(),
		Term:      term,
		Synonyms:  synonyms,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if input.IsActive != nil {
		syn.IsActive = *input.IsActive
	}

	if err := s.repo.Create(ctx, syn); err != nil {
		return nil, err
	}

	s.invalidator.Invalidate()
	s.logger.Info("synonym created", "term", syn.Term, "synonyms", len(syn.Synonyms))
	return syn, nil
}

// Update applies a partial update to an existing group.
func (s *Service) Update(ctx context.Context, id string, input *UpdateInput) (*domain.Synonym, error) {
	syn, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Term != nil {
		term := normalizeTerm(*input.Term)
		if term == "" {
			return nil, apperrors.InvalidInput("term must not be empty")
		}
		syn.Term = term
	}
	if input.Synonyms != nil {
		synonyms := normalizeList(input.Synonyms)
		if len(synonyms) == 0 {
			return nil, apperrors.InvalidInput("at least one synonym is required")
		}
		syn.Synonyms = synonyms
	}
	if input.IsActive != nil {
		syn.IsActive = *input.IsActive
	}
	syn.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, syn); err != nil {
		return nil, err
	}

	s.invalidator.Invalidate()
	s.logger.Info("synonym updated", "id", id, "term", syn.Term)
	return syn, nil
}

// Delete removes a synonym group.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidator.Invalidate()
	s.logger.Info("synonym deleted", "id", id)
	return nil
}

// Get returns one synonym group.
func (s *Service) Get(ctx context.Context, id string) (*domain.Synonym, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns every synonym group ordered by term.
func (s *Service) List(ctx context.Context) ([]domain.Synonym, error) {
	return s.repo.List(ctx)
}

// Import bulk-creates synonym groups. Existing terms are skipped instead of
// overwritten; the expander is invalidated once at the end when anything was
// imported.
func (s *Service) Import(ctx context.Context, inputs []CreateInput) (*ImportResult, error) {
	result := &ImportResult{}
	now := time.Now().UTC()

	for i := range inputs {
		term := normalizeTerm(inputs[i].Term)
		synonyms := normalizeList(inputs[i].Synonyms)
		if term == "" || len(synonyms) == 0 {
			result.Skipped++
			continue
		}

		existing, err := s.repo.GetByTerm(ctx, term)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			result.Skipped++
			continue
		}

		syn := &domain.Synonym{
			ID:        uuid.NewString(),
			Term:      term,
			Synonyms:  synonyms,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.Create(ctx, syn); err != nil {
			// Lost a race with a concurrent import of the same term.
			if errors.Is(err, apperrors.ErrAlreadyExists) {
				result.Skipped++
				continue
			}
			return nil, err
		}
		result.Imported++
	}

	if result.Imported > 0 {
		s.invalidator.Invalidate()
	}
	s.logger.Info("synonyms imported", "imported", result.Imported, "skipped", result.Skipped)
	return result, nil
}

// ───────────────────────────────── Helpers ─────────────────────────────────

func normalizeTerm(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

// normalizeList lowercases, trims and deduplicates while preserving order.
func normalizeList(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = normalizeTerm(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
