// Package interview holds the per-pair pipeline: classify the question,
// build the prompt, invoke the model, parse the raw output into a typed
// answer.
package interview

import (
	"regexp"
	"strings"

	"github.com/votalab/sonda/internal/domain"
)

// Shape is the expected answer shape inferred for a question.
type Shape string

const (
	ShapeLabel  Shape = "label"
	ShapeScalar Shape = "scalar"
	ShapeBool   Shape = "bool"
	ShapeText   Shape = "text"
)

// Visualization hints for downstream chart consumers. The core never
// interprets these.
const (
	HintBarChart  = "bar"
	HintGauge     = "gauge"
	HintPie       = "pie"
	HintWordCloud = "wordcloud"
)

// Classification is the derived, non-persisted shape of a question. The
// controller computes it once per question per session.
type Classification struct {
	Kind     domain.QuestionKind
	Shape    Shape
	Options  []string // resolved fixed option set, when Shape is label
	ScaleMin int
	ScaleMax int
	Hint     string
}

// optionListPattern matches a closed list of named entities embedded in
// question text: "A, B ou C" / "A, B or C".
var optionListPattern = regexp.MustCompile(`(?i)([^,.:;?]+(?:,[^,.:;?]+)+\s+(?:ou|or)\s+[^,.:;?]+)`)

// Classify derives the expected answer shape for a question. Pure and
// deterministic: identical input always yields the identical result.
// For voting-intention questions the candidate list becomes the option set.
// Tie-break: question text that embeds a closed option list is classified
// as fixed-option even when declared open_text, which keeps free-text
// parsing load down.
func Classify(q domain.Question, candidates []string) Classification {
	switch q.Kind {
	case domain.QuestionMultipleChoice:
		opts := q.Options
		if q.VotingIntention && len(candidates) > 0 {
			opts = candidates
		}
		return Classification{
			Kind:    q.Kind,
			Shape:   ShapeLabel,
			Options: opts,
			Hint:    HintBarChart,
		}

	case domain.QuestionNumericScale:
		lo, hi := q.ScaleBounds()
		return Classification{
			Kind:     q.Kind,
			Shape:    ShapeScalar,
			ScaleMin: lo,
			ScaleMax: hi,
			Hint:     HintGauge,
		}

	case domain.QuestionBoolean:
		return Classification{
			Kind:  q.Kind,
			Shape: ShapeBool,
			Hint:  HintPie,
		}

	default: // open_text and anything unrecognized
		if q.VotingIntention && len(candidates) > 0 {
			return Classification{
				Kind:    q.Kind,
				Shape:   ShapeLabel,
				Options: candidates,
				Hint:    HintBarChart,
			}
		}
		if opts := extractOptionList(q.Text); len(opts) >= 2 {
			return Classification{
				Kind:    q.Kind,
				Shape:   ShapeLabel,
				Options: opts,
				Hint:    HintBarChart,
			}
		}
		return Classification{
			Kind:  q.Kind,
			Shape: ShapeText,
			Hint:  HintWordCloud,
		}
	}
}

// extractOptionList pulls a closed "A, B ou C" list out of question text.
// Returns nil when no such list is present.
func extractOptionList(text string) []string {
	match := optionListPattern.FindString(text)
	if match == "" {
		return nil
	}

	// Split the final "ou"/"or" conjunction first, then the commas.
	conj := regexp.MustCompile(`(?i)\s+(?:ou|or)\s+`)
	parts := conj.Split(match, 2)
	if len(parts) != 2 {
		return nil
	}

	var opts []string
	for i, piece := range strings.Split(parts[0], ",") {
		piece = strings.TrimSpace(piece)
		if i == 0 {
			// The first comma segment still carries the question lead-in
			// ("Você vai votar em Ana"); keep only the trailing entity.
			piece = trailingEntity(piece)
		}
		if piece != "" {
			opts = append(opts, piece)
		}
	}
	last := strings.TrimSpace(strings.TrimRight(parts[1], "?!. "))
	if last != "" {
		opts = append(opts, last)
	}

	if len(opts) < 2 {
		return nil
	}
	return opts
}

// trailingEntity keeps the trailing run of capitalized words of a segment,
// which is where the first named entity of an embedded list sits.
func trailingEntity(segment string) string {
	words := strings.Fields(segment)
	if len(words) == 0 {
		return ""
	}

	start := len(words)
	for i := len(words) - 1; i >= 0; i-- {
		r := []rune(words[i])[0]
		if r >= 'A' && r <= 'Z' || strings.ContainsRune("ÁÂÃÀÉÊÍÓÔÕÚÇ", r) {
			start = i
			continue
		}
		break
	}
	if start == len(words) {
		// No capitalized tail; fall back to the whole segment.
		return segment
	}
	return strings.Join(words[start:], " ")
}
