package domain

import (
	"github.com/google/uuid"
)

type QuestionKind string

const (
	QuestionMultipleChoice QuestionKind = "multiple_choice"
	QuestionNumericScale   QuestionKind = "numeric_scale"
	QuestionBoolean        QuestionKind = "boolean"
	QuestionOpenText       QuestionKind = "open_text"
)

// Question is one item of a session's question set. Immutable for the
// lifetime of the session that carries it.
type Question struct {
	ID       uuid.UUID    `json:"id"`
	Text     string       `json:"text"`
	Kind     QuestionKind `json:"kind"`
	Options  []string     `json:"options,omitempty"` // fixed option set for multiple_choice
	ScaleMin int          `json:"scale_min,omitempty"`
	ScaleMax int          `json:"scale_max,omitempty"`
	// VotingIntention marks questions whose option set is the session's
	// candidate list rather than the Options field.
	VotingIntention bool `json:"voting_intention,omitempty"`
}

// ScaleBounds returns the effective numeric-scale range. Questions authored
// without explicit bounds default to 0..10.
func (q *Question) ScaleBounds() (int, int) {
	if q.ScaleMin == 0 && q.ScaleMax == 0 {
		return 0, 10
	}
	return q.ScaleMin, q.ScaleMax
}
