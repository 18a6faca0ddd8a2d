package interview

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/votalab/sonda/internal/domain"
)

// Confidence levels per extraction layer. Structured output the model
// declared itself is trusted fully; everything below degrades.
const (
	confDeclared  = 1.0
	confEmbedded  = 0.9
	confHeuristic = 0.6
)

// Answer is the parser's output: a typed value and how reliably it was
// extracted. Confidence 0 means "unanswered", never an error.
type Answer struct {
	Value      domain.AnswerValue
	Confidence float64
}

// payload is the one explicit compatibility table for model output JSON.
// Current schema uses "answer"; legacy emissions used Portuguese field
// names, sometimes nested under "decisao".
type payload struct {
	AnswerField   any      `json:"answer"`
	AnswerText    string   `json:"answer_text"`
	Resposta      any      `json:"resposta"`
	RespostaTexto string   `json:"resposta_texto"`
	Decisao       *decisao `json:"decisao"`
}

type decisao struct {
	RespostaFinal any `json:"resposta_final"`
}

// value resolves the compatibility table in priority order: current schema
// first, then each legacy spelling.
func (p *payload) value() (any, bool) {
	if p.AnswerField != nil {
		return p.AnswerField, true
	}
	if p.AnswerText != "" {
		return p.AnswerText, true
	}
	if p.Resposta != nil {
		return p.Resposta, true
	}
	if p.RespostaTexto != "" {
		return p.RespostaTexto, true
	}
	if p.Decisao != nil && p.Decisao.RespostaFinal != nil {
		return p.Decisao.RespostaFinal, true
	}
	return nil, false
}

// Parse extracts a typed answer from raw model output. Layered fallback,
// in priority order: a structured payload the model declared, a JSON
// object embedded anywhere in the text, shape-specific heuristics, and
// finally an empty zero-confidence answer. It never fails: model output
// format reliability degrades under prompt drift, and requiring exact
// structure would silently drop a large share of valid answers.
func Parse(raw string, structured json.RawMessage, c Classification) Answer {
	// 1. Model-declared structured payload matching the expected shape.
	if len(structured) > 0 {
		if ans, ok := fromJSON(structured, c); ok {
			ans.Confidence = confDeclared
			return ans
		}
	}

	// 2. First balanced-brace JSON span embedded in the text.
	if span := firstJSONObject(raw); span != "" {
		if ans, ok := fromJSON(json.RawMessage(span), c); ok {
			ans.Confidence = confEmbedded
			return ans
		}
	}

	// 3. Shape-specific heuristics on the plain text.
	if ans, ok := heuristic(raw, c); ok {
		ans.Confidence = confHeuristic
		return ans
	}

	// 4. Nothing extractable: unanswered, not an error.
	return Answer{Value: domain.AnswerValue{Type: domain.AnswerNone}, Confidence: 0}
}

// fromJSON decodes a JSON object through the compatibility table and
// coerces the resolved value onto the expected shape.
func fromJSON(data json.RawMessage, c Classification) (Answer, bool) {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Answer{}, false
	}
	v, ok := p.value()
	if !ok {
		return Answer{}, false
	}
	return coerce(v, c)
}

// coerce maps a decoded JSON value onto the classification's shape.
func coerce(v any, c Classification) (Answer, bool) {
	switch c.Shape {
	case ShapeScalar:
		switch n := v.(type) {
		case float64:
			if inScale(n, c) {
				return scalarAnswer(n), true
			}
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil && inScale(f, c) {
				return scalarAnswer(f), true
			}
		}
		return Answer{}, false

	case ShapeBool:
		switch b := v.(type) {
		case bool:
			return boolAnswer(b), true
		case string:
			if yes, ok := lexicalBool(b); ok {
				return boolAnswer(yes), true
			}
		}
		return Answer{}, false

	case ShapeLabel:
		switch s := v.(type) {
		case string:
			if label, ok := matchOption(s, c.Options); ok {
				return labelAnswer(label), true
			}
		case []any:
			// Ranked list: every element must resolve to an option label.
			ranking := make([]string, 0, len(s))
			for _, item := range s {
				str, isStr := item.(string)
				if !isStr {
					return Answer{}, false
				}
				label, ok := matchOption(str, c.Options)
				if !ok {
					return Answer{}, false
				}
				ranking = append(ranking, label)
			}
			if len(ranking) > 0 {
				return Answer{Value: domain.AnswerValue{Type: domain.AnswerRanking, Ranking: ranking}}, true
			}
		}
		return Answer{}, false

	default: // ShapeText
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return textAnswer(s), true
		}
		return Answer{}, false
	}
}

var integerPattern = regexp.MustCompile(`-?\d+`)

// heuristic applies shape-specific extraction to plain text.
func heuristic(raw string, c Classification) (Answer, bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Answer{}, false
	}

	switch c.Shape {
	case ShapeScalar:
		// First integer that falls inside the scale bounds.
		for _, m := range integerPattern.FindAllString(text, -1) {
			n, err := strconv.Atoi(m)
			if err != nil {
				continue
			}
			if inScale(float64(n), c) {
				return scalarAnswer(float64(n)), true
			}
		}
		return Answer{}, false

	case ShapeBool:
		if yes, ok := lexicalBool(text); ok {
			return boolAnswer(yes), true
		}
		return Answer{}, false

	case ShapeLabel:
		if label, ok := matchOption(text, c.Options); ok {
			return labelAnswer(label), true
		}
		return Answer{}, false

	default: // ShapeText: the full text verbatim.
		return textAnswer(raw), true
	}
}

func inScale(n float64, c Classification) bool {
	return n >= float64(c.ScaleMin) && n <= float64(c.ScaleMax)
}

// Lexical yes/no markers, Portuguese first since most personas answer in
// pt-BR, with English fallbacks.
var (
	yesMarkers = []string{"sim", "claro", "com certeza", "concordo", "yes", "true", "definitely"}
	noMarkers  = []string{"não", "nao", "nunca", "discordo", "no", "false", "jamais"}
)

// lexicalBool matches yes/no markers as whole words against the text. The
// earliest marker occurrence wins so "não, de jeito nenhum... talvez sim"
// reads as no.
func lexicalBool(text string) (bool, bool) {
	folded := " " + foldWords(text) + " "

	best := -1
	verdict := false
	scan := func(markers []string, value bool) {
		for _, m := range markers {
			if idx := strings.Index(folded, " "+m+" "); idx >= 0 && (best == -1 || idx < best) {
				best = idx
				verdict = value
			}
		}
	}
	scan(yesMarkers, true)
	scan(noMarkers, false)

	return verdict, best >= 0
}

// foldWords lowercases and reduces punctuation to spaces so markers match
// on word boundaries only.
func foldWords(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r == ' ' || r == '\n' || r == '\t' || ('a' <= r && r <= 'z') || ('0' <= r && r <= '9') || r > 127 {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// matchOption fuzzy-matches free text against a fixed option set:
// exact fold first, then containment either way. The longest containment
// match wins so "Partido Novo" beats "Novo".
func matchOption(text string, options []string) (string, bool) {
	if len(options) == 0 {
		return "", false
	}

	folded := foldOption(text)

	for _, opt := range options {
		if foldOption(opt) == folded {
			return opt, true
		}
	}

	best := ""
	bestLen := 0
	for _, opt := range options {
		fo := foldOption(opt)
		if fo == "" {
			continue
		}
		if strings.Contains(folded, fo) || strings.Contains(fo, folded) {
			if len(fo) > bestLen {
				best = opt
				bestLen = len(fo)
			}
		}
	}
	if best != "" {
		return best, true
	}
	return "", false
}

func foldOption(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// firstJSONObject returns the first balanced-brace span of the text that
// is valid JSON, or "". Brace counting is string-aware so embedded quotes
// and escapes do not unbalance the scan.
func firstJSONObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				span := text[start : i+1]
				if json.Valid([]byte(span)) {
					return span
				}
				return ""
			}
		}
	}
	return ""
}

func scalarAnswer(n float64) Answer {
	return Answer{Value: domain.AnswerValue{Type: domain.AnswerScalar, Scalar: n}}
}

func boolAnswer(b bool) Answer {
	return Answer{Value: domain.AnswerValue{Type: domain.AnswerBool, Bool: b}}
}

func labelAnswer(label string) Answer {
	return Answer{Value: domain.AnswerValue{Type: domain.AnswerLabel, Label: label}}
}

func textAnswer(text string) Answer {
	return Answer{Value: domain.AnswerValue{Type: domain.AnswerText, Text: text}}
}
