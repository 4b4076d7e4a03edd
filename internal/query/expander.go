package query

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/utafrali/catalog-search/internal/domain"
)

// SynonymSource provides the active synonym entries the expander works from.
// Satisfied by the synonym repository.
type SynonymSource interface {
	ListActive(ctx context.Context) ([]domain.Synonym, error)
}

// Expander expands normalized queries with synonyms from an in-memory lookup
// table. The table is rebuilt from the source at most once per TTL and can be
// invalidated explicitly when synonyms change.
type Expander struct {
	source SynonymSource
	ttl    time.Duration
	logger *slog.Logger

	mu        sync.RWMutex
	table     map[string][]string
	loadedAt  time.Time
	haveTable bool
}

// NewExpander creates an expander over the given synonym source. A ttl of 0
// or less disables time-based refresh (the table is still rebuilt after
// Invalidate).
func NewExpander(source SynonymSource, ttl time.Duration, logger *slog.Logger) *Expander {
	return &Expander{
		source: source,
		ttl:    ttl,
		logger: logger,
	}
}

// Expand returns the normalized query with synonyms appended. Each term is
// looked up by its exact lowercase form; terms without a synonym entry pass
// through unchanged, and the final term set is deduplicated. Expansion never
// removes a term. If the synonym table cannot be loaded, the normalized query
// is returned as-is (expansion is best-effort).
func (e *Expander) Expand(ctx context.Context, normalized string) string {
	terms := Tokenize(normalized)
	if len(terms) == 0 {
		return normalized
	}

	table := e.lookupTable(ctx)
	if len(table) == 0 {
		return strings.Join(dedup(terms), " ")
	}

	expanded := make([]string, 0, len(terms))
	expanded = append(expanded, terms...)
	for _, term := range terms {
		if syns, ok := table[term]; ok {
			expanded = append(expanded, syns...)
		}
	}

	return strings.Join(dedup(expanded), " ")
}

// Invalidate discards the cached lookup table so the next Expand reloads it.
// Called by the synonym store after every write.
func (e *Expander) Invalidate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.haveTable = false
	e.table = nil
}

// lookupTable returns the current term→synonyms map, reloading it from the
// source when missing or expired.
func (e *Expander) lookupTable(ctx context.Context) map[string][]string {
	e.mu.RLock()
	if e.haveTable && (e.ttl <= 0 || time.Since(e.loadedAt) < e.ttl) {
		table := e.table
		e.mu.RUnlock()
		return table
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	// Another request may have reloaded while we waited for the lock.
	if e.haveTable && (e.ttl <= 0 || time.Since(e.loadedAt) < e.ttl) {
		return e.table
	}

	entries, err := e.source.ListActive(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "synonym table reload failed, expansion skipped",
			slog.String("error", err.Error()),
		)
		if e.haveTable {
			// Keep serving the stale table rather than dropping expansion.
			return e.table
		}
		return nil
	}

	table := make(map[string][]string, len(entries))
	for _, entry := range entries {
		term := strings.ToLower(strings.TrimSpace(entry.Term))
		if term == "" {
			continue
		}
		syns := make([]string, 0, len(entry.Synonyms))
		for _, s := range entry.Synonyms {
			s = strings.ToLower(strings.TrimSpace(s))
			if s != "" {
				syns = append(syns, s)
			}
		}
		table[term] = syns
	}

	e.table = table
	e.loadedAt = time.Now()
	e.haveTable = true
	return table
}

// dedup removes duplicate terms preserving first occurrence order. Multi-word
// synonyms are split so the result is a flat term set.
func dedup(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		for _, word := range strings.Fields(t) {
			if _, ok := seen[word]; ok {
				continue
			}
			seen[word] = struct{}{}
			out = append(out, word)
		}
	}
	return out
}
