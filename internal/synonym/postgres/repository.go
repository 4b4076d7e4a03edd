package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/catalog-search/internal/domain"
	"github.com/utafrali/catalog-search/pkg/database"
	apperrors "github.com/utafrali/catalog-search/pkg/errors"
)

const synonymColumns = `id, term, synonyms, is_active, created_at, updated_at`

// Repository persists synonym groups in the search_synonyms table. Terms are
// unique case-insensitively; the service layer lowercases before writing.
type Repository struct {
	pool database.DBTX
}

// NewRepository creates a Postgres-backed synonym repository.
func NewRepository(pool database.DBTX) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new synonym group.
func (r *Repository) Create(ctx context.Context, syn *domain.Synonym) error {
	query := `
		INSERT INTO search_synonyms (id, term, synonyms, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		syn.ID, syn.Term, syn.Synonyms, syn.IsActive, syn.CreatedAt, syn.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("synonym", "term", syn.Term)
		}
		return fmt.Errorf("insert synonym: %w", err)
	}
	return nil
}

// Update rewrites an existing synonym group.
func (r *Repository) Update(ctx context.Context, syn *domain.Synonym) error {
	query := `
		UPDATE search_synonyms
		SET term = $2, synonyms = $3, is_active = $4, updated_at = $5
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query,
		syn.ID, syn.Term, syn.Synonyms, syn.IsActive, syn.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("synonym", "term", syn.Term)
		}
		return fmt.Errorf("update synonym: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("synonym", syn.ID)
	}
	return nil
}

// Delete removes a synonym group by ID.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM search_synonyms WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete synonym: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("synonym", id)
	}
	return nil
}

// GetByID returns one synonym group.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Synonym, error) {
	query := fmt.Sprintf(`SELECT %s FROM search_synonyms WHERE id = $1`, synonymColumns)

	syn, err := scanSynonym(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("synonym", id)
		}
		return nil, fmt.Errorf("get synonym: %w", err)
	}
	return syn, nil
}

// GetByTerm returns the synonym group for an exact lowercase term, or nil
// when no group exists. Absence is not an error here because bulk import
// probes for existing terms.
func (r *Repository) GetByTerm(ctx context.Context, term string) (*domain.Synonym, error) {
	query := fmt.Sprintf(`SELECT %s FROM search_synonyms WHERE term = $1`, synonymColumns)

	syn, err := scanSynonym(r.pool.QueryRow(ctx, query, term))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get synonym by term: %w", err)
	}
	return syn, nil
}

// List returns every synonym group ordered by term.
func (r *Repository) List(ctx context.Context) ([]domain.Synonym, error) {
	query := fmt.Sprintf(`SELECT %s FROM search_synonyms ORDER BY term`, synonymColumns)
	return r.collect(ctx, query)
}

// ListActive returns the active synonym groups the expander loads into its
// lookup table.
func (r *Repository) ListActive(ctx context.Context) ([]domain.Synonym, error) {
	query := fmt.Sprintf(`SELECT %s FROM search_synonyms WHERE is_active = TRUE ORDER BY term`, synonymColumns)
	return r.collect(ctx, query)
}

// ───────────────────────────────── Helpers ─────────────────────────────────

func (r *Repository) collect(ctx context.Context, query string) ([]domain.Synonym, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query synonyms: %w", err)
	}
	defer rows.Close()

	synonyms := make([]domain.Synonym, 0)
	for rows.Next() {
		var syn domain.Synonym
		if err := rows.Scan(&syn.ID, &syn.Term, &syn.Synonyms, &syn.IsActive, &syn.CreatedAt, &syn.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan synonym: %w", err)
		}
		synonyms = append(synonyms, syn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate synonyms: %w", err)
	}
	return synonyms, nil
}

func scanSynonym(row pgx.Row) (*domain.Synonym, error) {
	var syn domain.Synonym
	if err := row.Scan(&syn.ID, &syn.Term, &syn.Synonyms, &syn.IsActive, &syn.CreatedAt, &syn.UpdatedAt); err != nil {
		return nil, err
	}
	return &syn, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
