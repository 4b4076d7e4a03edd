package domain

import (
	"time"
)

// Synonym is one expansion entry: when a query term equals Term, the Synonyms
// list is appended to the term set. Term and every synonym are stored
// lowercased and trimmed; Term is unique case-insensitively.
type Synonym struct {
	ID        string    `json:"id"`
	Term      string    `json:"term"`
	Synonyms  []string  `json:"synonyms"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
