package interview

import (
	"fmt"
	"strings"

	"github.com/votalab/sonda/internal/domain"
	"github.com/votalab/sonda/internal/llm"
)

// PromptBuilder turns an agent, a question, and its classification into
// role-tagged model messages. The executor treats the output as opaque.
type PromptBuilder interface {
	Build(agent *domain.Agent, q domain.Question, c Classification) []llm.Message
}

// DefaultPromptBuilder frames the agent persona as the system message and
// asks for a JSON answer so the parser's first layer usually succeeds.
type DefaultPromptBuilder struct{}

var _ PromptBuilder = (*DefaultPromptBuilder)(nil)

func (DefaultPromptBuilder) Build(agent *domain.Agent, q domain.Question, c Classification) []llm.Message {
	var sys strings.Builder
	sys.WriteString("Você é ")
	sys.WriteString(agent.Name)
	sys.WriteString(", respondendo a uma pesquisa de opinião. Responda em primeira pessoa, de acordo com o perfil abaixo.\n\n")
	sys.WriteString(agent.Profile)
	if len(agent.Tags) > 0 {
		sys.WriteString("\n\nTraços de comportamento: ")
		sys.WriteString(strings.Join(agent.Tags, ", "))
	}

	var user strings.Builder
	user.WriteString(q.Text)
	user.WriteString("\n\n")

	switch c.Shape {
	case ShapeScalar:
		fmt.Fprintf(&user, "Responda com um número de %d a %d.\n", c.ScaleMin, c.ScaleMax)
		user.WriteString(`Formato: {"answer": <número>}`)
	case ShapeBool:
		user.WriteString("Responda sim ou não.\n")
		user.WriteString(`Formato: {"answer": <true ou false>}`)
	case ShapeLabel:
		user.WriteString("Escolha exatamente uma das opções: ")
		user.WriteString(strings.Join(c.Options, "; "))
		user.WriteString("\n")
		user.WriteString(`Formato: {"answer": "<opção>"}`)
	default:
		user.WriteString("Responda livremente em um parágrafo curto.\n")
		user.WriteString(`Formato: {"answer": "<sua resposta>"}`)
	}

	return []llm.Message{
		{Role: llm.RoleSystem, Content: sys.String()},
		{Role: llm.RoleUser, Content: user.String()},
	}
}
