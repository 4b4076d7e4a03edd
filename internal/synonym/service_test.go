package synonym

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog-search/internal/domain"
	apperrors "github.com/utafrali/catalog-search/pkg/errors"
)

// fakeRepo keeps synonym groups in a map keyed by term.
type fakeRepo struct {
	byID   map[string]*domain.Synonym
	byTerm map[string]*domain.Synonym
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		byID:   make(map[string]*domain.Synonym),
		byTerm: make(map[string]*domain.Synonym),
	}
}

func (f *fakeRepo) Create(_ context.Context, syn *domain.Synonym) error {
	if _, exists := f.byTerm[syn.Term]; exists {
		return apperrors.AlreadyExists("synonym", "term", syn.Term)
	}
	stored := *syn
	f.byID[syn.ID] = &stored
	f.byTerm[syn.Term] = &stored
	return nil
}

func (f *fakeRepo) Update(_ context.Context, syn *domain.Synonym) error {
	existing, ok := f.byID[syn.ID]
	if !ok {
		return apperrors.NotFound("synonym", syn.ID)
	}
	delete(f.byTerm, existing.Term)
	stored := *syn
	f.byID[syn.ID] = &stored
	f.byTerm[syn.Term] = &stored
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, id string) error {
	existing, ok := f.byID[id]
	if !ok {
		return apperrors.NotFound("synonym", id)
	}
	delete(f.byTerm, existing.Term)
	delete(f.byID, id)
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id string) (*domain.Synonym, error) {
	syn, ok := f.byID[id]
	if !ok {
		return nil, apperrors.NotFound("synonym", id)
	}
	copied := *syn
	return &copied, nil
}

func (f *fakeRepo) GetByTerm(_ context.Context, term string) (*domain.Synonym, error) {
	syn, ok := f.byTerm[term]
	if !ok {
		return nil, nil
	}
	copied := *syn
	return &copied, nil
}

func (f *fakeRepo) List(_ context.Context) ([]domain.Synonym, error) {
	out := make([]domain.Synonym, 0, len(f.byID))
	for _, syn := range f.byID {
		out = append(out, *syn)
	}
	return out, nil
}

func (f *fakeRepo) ListActive(_ context.Context) ([]domain.Synonym, error) {
	out := make([]domain.Synonym, 0, len(f.byID))
	for _, syn := range f.byID {
		if syn.IsActive {
			out = append(out, *syn)
		}
	}
	return out, nil
}

// countingInvalidator records how many times the expander cache was flushed.
type countingInvalidator struct {
	calls int
}

func (c *countingInvalidator) Invalidate() { c.calls++ }

func newTestService(t *testing.T) (*Service, *fakeRepo, *countingInvalidator) {
	t.Helper()
	repo := newFakeRepo()
	inv := &countingInvalidator{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, inv, logger), repo, inv
}

func TestService_Create_NormalizesTermAndSynonyms(t *testing.T) {
	svc, _, inv := newTestService(t)

	syn, err := svc.Create(context.Background(), &CreateInput{
		Term:     "  GPU ",
		Synonyms: []string{" Graphics Card", "VIDEO CARD ", "graphics card"},
	})
	require.NoError(t, err)

	assert.Equal(t, "gpu", syn.Term)
	assert.Equal(t, []string{"graphics card", "video card"}, syn.Synonyms)
	assert.True(t, syn.IsActive)
	assert.NotEmpty(t, syn.ID)
	assert.Equal(t, 1, inv.calls)
}

func TestService_Create_RejectsEmptyInput(t *testing.T) {
	svc, _, inv := newTestService(t)

	_, err := svc.Create(context.Background(), &CreateInput{Term: "   ", Synonyms: []string{"x"}})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = svc.Create(context.Background(), &CreateInput{Term: "gpu", Synonyms: []string{" ", ""}})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	assert.Zero(t, inv.calls)
}

func TestService_Create_DuplicateTermConflicts(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, &CreateInput{Term: "gpu", Synonyms: []string{"graphics card"}})
	require.NoError(t, err)

	// The same term with different casing still collides.
	_, err = svc.Create(ctx, &CreateInput{Term: "GPU", Synonyms: []string{"video card"}})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
}

func TestService_Update_PartialFields(t *testing.T) {
	svc, _, inv := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, &CreateInput{Term: "gpu", Synonyms: []string{"graphics card"}})
	require.NoError(t, err)

	inactive := false
	updated, err := svc.Update(ctx, created.ID, &UpdateInput{IsActive: &inactive})
	require.NoError(t, err)

	assert.Equal(t, "gpu", updated.Term)
	assert.Equal(t, []string{"graphics card"}, updated.Synonyms)
	assert.False(t, updated.IsActive)
	assert.Equal(t, 2, inv.calls)
}

func TestService_Update_UnknownIDIsNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	term := "gpu"
	_, err := svc.Update(context.Background(), "missing", &UpdateInput{Term: &term})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestService_Delete_InvalidatesExpander(t *testing.T) {
	svc, _, inv := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, &CreateInput{Term: "gpu", Synonyms: []string{"graphics card"}})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))
	assert.Equal(t, 2, inv.calls)

	err = svc.Delete(ctx, created.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestService_Import_SkipsExistingTerms(t *testing.T) {
	svc, _, inv := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, &CreateInput{Term: "laptop", Synonyms: []string{"notebook"}})
	require.NoError(t, err)
	inv.calls = 0

	result, err := svc.Import(ctx, []CreateInput{
		{Term: "gpu", Synonyms: []string{"graphics card"}},
		{Term: "LAPTOP", Synonyms: []string{"ultrabook"}},
		{Term: "tv", Synonyms: []string{"television"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, inv.calls)

	// The existing group was not overwritten.
	existing, err := svc.List(ctx)
	require.NoError(t, err)
	for _, syn := range existing {
		if syn.Term == "laptop" {
			assert.Equal(t, []string{"notebook"}, syn.Synonyms)
		}
	}
}

func TestService_Import_NothingImportedSkipsInvalidation(t *testing.T) {
	svc, _, inv := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, &CreateInput{Term: "gpu", Synonyms: []string{"graphics card"}})
	require.NoError(t, err)
	inv.calls = 0

	result, err := svc.Import(ctx, []CreateInput{
		{Term: "gpu", Synonyms: []string{"video card"}},
		{Term: "", Synonyms: []string{"blank"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Imported)
	assert.Equal(t, 2, result.Skipped)
	assert.Zero(t, inv.calls)
}

func TestService_Import_RepoErrorAborts(t *testing.T) {
	repo := &erroringRepo{err: errors.New("connection lost")}
	inv := &countingInvalidator{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(repo, inv, logger)

	_, err := svc.Import(context.Background(), []CreateInput{
		{Term: "gpu", Synonyms: []string{"graphics card"}},
	})
	assert.Error(t, err)
	assert.Zero(t, inv.calls)
}

// erroringRepo fails every operation.
type erroringRepo struct {
	err error
}

func (e *erroringRepo) Create(context.Context, *domain.Synonym) error { return e.err }
func (e *erroringRepo) Update(context.Context, *domain.Synonym) error { return e.err }
func (e *erroringRepo) Delete(context.Context, string) error          { return e.err }
func (e *erroringRepo) GetByID(context.Context, string) (*domain.Synonym, error) {
	return nil, e.err
}
func (e *erroringRepo) GetByTerm(context.Context, string) (*domain.Synonym, error) {
	return nil, e.err
}
func (e *erroringRepo) List(context.Context) ([]domain.Synonym, error)       { return nil, e.err }
func (e *erroringRepo) ListActive(context.Context) ([]domain.Synonym, error) { return nil, e.err }
