package mapping

import (
	"sort"
	"strings"

	"github.com/recoco/recoco-relay/pkg/enums"
)

// Choice is one selectable option of a survey question.
type Choice struct {
	ID    int64  `json:"id"`
	Value string `json:"value"`
	Text  string `json:"text"`
}

// Question is the survey question shape fetched from the upstream portal.
// Never persisted, only classified.
type Question struct {
	ID         int64    `json:"id"`
	Text       string   `json:"text"`
	TextShort  string   `json:"text_short"`
	Slug       string   `json:"slug"`
	IsMultiple bool     `json:"is_multiple"`
	Choices    []Choice `json:"choices"`
}

// ColID returns the column identifier derived from the question slug.
func (q Question) ColID() string {
	return strings.ReplaceAll(q.Slug, "-", "_")
}

const (
	yesNoKey      = "nonoui"
	yesNoMaybeKey = "jenesaispasnonoui"
)

// Classify derives the question type from its shape. The yes/no detection is
// a string heuristic: choice texts are lowercased, stripped of spaces, sorted
// and joined, then compared against fixed literals. A two-choice question
// whose texts are not exactly "Oui"/"Non" degrades to Choices on purpose.
func Classify(q Question) enums.QuestionType {
	if q.IsMultiple {
		return enums.QuestionTypeMultipleChoices
	}
	if len(q.Choices) == 0 {
		return enums.QuestionTypeSimple
	}

	texts := make([]string, 0, len(q.Choices))
	for _, choice := range q.Choices {
		normalized := strings.ToLower(choice.Text)
		normalized = strings.ReplaceAll(normalized, " ", "")
		texts = append(texts, normalized)
	}
	sort.Strings(texts)

	switch strings.Join(texts, "") {
	case yesNoKey:
		return enums.QuestionTypeYesNo
	case yesNoMaybeKey:
		return enums.QuestionTypeYesNoMaybe
	default:
		return enums.QuestionTypeChoices
	}
}
