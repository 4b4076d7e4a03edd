package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/pkg/database"
	apperrors "github.com/utafrali/catalog-search/pkg/errors"
)

func newRepoFixture(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	return NewRepository(mock), mock
}

func sampleSynonym() *domain.Synonym {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Synonym{
		ID:        "syn-1",
		Term:      "gpu",
		Synonyms:  []string{"graphics card", "video card"},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func synonymColumnNames() []string {
	return []string{"id", "term", "synonyms", "is_active", "created_at", "updated_at"}
}

func synonymRow(syn *domain.Synonym) *pgxmock.Rows {
	return pgxmock.NewRows(synonymColumnNames()).AddRow(
		syn.ID, syn.Term, syn.Synonyms, syn.IsActive, syn.CreatedAt, syn.UpdatedAt,
	)
}

func TestRepository_Create_Success(t *testing.T) {
	repo, mock := newRepoFixture(t)
	defer mock.Close()

	syn := sampleSynonym()

	mock.ExpectExec("INSERT INTO search_synonyms").
		WithArgs(syn.ID, syn.Term, syn.Synonyms, syn.IsActive, syn.CreatedAt, syn.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), syn))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Create_DuplicateTerm(t *testing.T) {
	repo, mock := newRepoFixture(t)
	defer mock.Close()

	syn := sampleSynonym()

	mock.ExpectExec("INSERT INTO search_synonyms").
		WithArgs(syn.ID, syn.Term, syn.Synonyms, syn.IsActive, syn.CreatedAt, syn.UpdatedAt).
		WillReturnError(errors.New(`ERROR: duplicate key value violates unique constraint (SQLSTATE 23505)`))

	err := repo.Create(context.Background(), syn)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Update_UnknownIDIsNotFound(t *testing.T) {
	repo, mock := newRepoFixture(t)
	defer mock.Close()

	syn := sampleSynonym()

	mock.ExpectExec("UPDATE search_synonyms").
		WithArgs(syn.ID, syn.Term, syn.Synonyms, syn.IsActive, syn.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Update(context.Background(), syn)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetByID(t *testing.T) {
	repo, mock := newRepoFixture(t)
	defer mock.Close()

	syn := sampleSynonym()

	mock.ExpectQuery("SELECT (.+) FROM search_synonyms WHERE id").
		WithArgs(syn.ID).
		WillReturnRows(synonymRow(syn))

	got, err := repo.GetByID(context.Background(), syn.ID)
	require.NoError(t, err)
	assert.Equal(t, syn.Term, got.Term)
	assert.Equal(t, syn.Synonyms, got.Synonyms)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newRepoFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM search_synonyms WHERE id").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(synonymColumnNames()))

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetByTerm_AbsenceIsNil(t *testing.T) {
	repo, mock := newRepoFixture(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT (.+) FROM search_synonyms WHERE term").
		WithArgs("unknown").
		WillReturnRows(pgxmock.NewRows(synonymColumnNames()))

	got, err := repo.GetByTerm(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Nil(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListActive_FiltersInactive(t *testing.T) {
	repo, mock := newRepoFixture(t)
	defer mock.Close()

	syn := sampleSynonym()

	mock.ExpectQuery("WHERE is_active = TRUE").
		WillReturnRows(synonymRow(syn))

	synonyms, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, synonyms, 1)
	assert.Equal(t, "gpu", synonyms[0].Term)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Delete_UnknownIDIsNotFound(t *testing.T) {
	repo, mock := newRepoFixture(t)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM search_synonyms").
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := repo.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
