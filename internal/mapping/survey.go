package mapping

import (
	"strings"

	"github.com/recoco/recoco-relay/pkg/enums"
)

// Answer is one survey answer fetched from the upstream portal, carrying the
// question it answers and the selected choices.
type Answer struct {
	ID         int64    `json:"id"`
	Question   Question `json:"question"`
	Choices    []Choice `json:"choices"`
	Comment    string   `json:"comment"`
	Attachment string   `json:"attachment"`
}

// SurveyAnswerFields maps one survey answer onto a field map keyed by the
// question's column id. The shape of the output depends on the classified
// question type; an attachment adds a sibling field regardless of type.
func SurveyAnswerFields(answer Answer) FieldMap {
	data := FieldMap{}

	colID := answer.Question.ColID()
	if colID == "" {
		return data
	}

	switch Classify(answer.Question) {
	case enums.QuestionTypeSimple:
		data[colID] = answer.Comment

	case enums.QuestionTypeYesNo:
		data[colID] = len(answer.Choices) > 0 &&
			strings.EqualFold(answer.Choices[0].Text, "oui")
		data[colID+"_comment"] = answer.Comment

	case enums.QuestionTypeYesNoMaybe:
		if len(answer.Choices) > 0 {
			data[colID] = strings.ToLower(answer.Choices[0].Text)
		} else {
			data[colID] = ""
		}
		data[colID+"_comment"] = answer.Comment

	case enums.QuestionTypeChoices, enums.QuestionTypeMultipleChoices:
		texts := make([]string, 0, len(answer.Choices))
		for _, choice := range answer.Choices {
			texts = append(texts, choice.Text)
		}
		data[colID] = strings.Join(texts, ",")
		data[colID+"_comment"] = answer.Comment
	}

	if answer.Attachment != "" {
		data[colID+"_attachment"] = answer.Attachment
	}

	return data
}
