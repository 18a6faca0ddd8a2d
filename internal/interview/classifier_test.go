package interview_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/votalab/sonda/internal/domain"
	"github.com/votalab/sonda/internal/interview"
)

func TestClassify_MultipleChoice(t *testing.T) {
	t.Parallel()

	q := domain.Question{
		ID:      uuid.New(),
		Text:    "Qual tema mais importa para você?",
		Kind:    domain.QuestionMultipleChoice,
		Options: []string{"Saúde", "Educação", "Segurança"},
	}

	c := interview.Classify(q, nil)
	assert.Equal(t, interview.ShapeLabel, c.Shape)
	assert.Equal(t, q.Options, c.Options)
	assert.Equal(t, interview.HintBarChart, c.Hint)
}

func TestClassify_VotingIntentionUsesCandidateList(t *testing.T) {
	t.Parallel()

	q := domain.Question{
		ID:              uuid.New(),
		Text:            "Em quem você pretende votar?",
		Kind:            domain.QuestionMultipleChoice,
		VotingIntention: true,
	}
	candidates := []string{"Ana Lima", "Bruno Castro"}

	c := interview.Classify(q, candidates)
	assert.Equal(t, interview.ShapeLabel, c.Shape)
	assert.Equal(t, candidates, c.Options)
}

func TestClassify_NumericScaleDefaultsBounds(t *testing.T) {
	t.Parallel()

	c := interview.Classify(domain.Question{Kind: domain.QuestionNumericScale}, nil)
	assert.Equal(t, interview.ShapeScalar, c.Shape)
	assert.Equal(t, 0, c.ScaleMin)
	assert.Equal(t, 10, c.ScaleMax)
	assert.Equal(t, interview.HintGauge, c.Hint)
}

func TestClassify_Boolean(t *testing.T) {
	t.Parallel()

	c := interview.Classify(domain.Question{Kind: domain.QuestionBoolean}, nil)
	assert.Equal(t, interview.ShapeBool, c.Shape)
	assert.Equal(t, interview.HintPie, c.Hint)
}

func TestClassify_OpenText(t *testing.T) {
	t.Parallel()

	c := interview.Classify(domain.Question{
		Kind: domain.QuestionOpenText,
		Text: "O que você acha da economia?",
	}, nil)
	assert.Equal(t, interview.ShapeText, c.Shape)
	assert.Empty(t, c.Options)
	assert.Equal(t, interview.HintWordCloud, c.Hint)
}

func TestClassify_TieBreakPrefersFixedOptions(t *testing.T) {
	t.Parallel()

	// Declared open text, but the text embeds a closed list of named
	// entities: classified as fixed-option to cut free-text parsing load.
	q := domain.Question{
		Kind: domain.QuestionOpenText,
		Text: "Você vai votar em Ana, Bruno ou Carla?",
	}

	c := interview.Classify(q, nil)
	require.Equal(t, interview.ShapeLabel, c.Shape)
	assert.Equal(t, []string{"Ana", "Bruno", "Carla"}, c.Options)
}

func TestClassify_OpenTextWithCandidatesPrefersFixedOptions(t *testing.T) {
	t.Parallel()

	q := domain.Question{
		Kind:            domain.QuestionOpenText,
		Text:            "Fale sobre sua intenção de voto.",
		VotingIntention: true,
	}
	candidates := []string{"Ana Lima", "Bruno Castro"}

	c := interview.Classify(q, candidates)
	assert.Equal(t, interview.ShapeLabel, c.Shape)
	assert.Equal(t, candidates, c.Options)
}

func TestClassify_Deterministic(t *testing.T) {
	t.Parallel()

	q := domain.Question{
		Kind: domain.QuestionOpenText,
		Text: "Você prefere trem, metrô ou ônibus?",
	}

	first := interview.Classify(q, nil)
	for range 20 {
		assert.Equal(t, first, interview.Classify(q, nil))
	}
}
