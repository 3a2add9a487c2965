package enums

// QuestionType classifies a survey question's shape. It is derived at
// mapping time and never persisted.
type QuestionType string

const (
	QuestionTypeSimple          QuestionType = "simple"
	QuestionTypeYesNo           QuestionType = "yes_no"
	QuestionTypeYesNoMaybe      QuestionType = "yes_no_maybe"
	QuestionTypeChoices         QuestionType = "choices"
	QuestionTypeMultipleChoices QuestionType = "multiple_choices"
)
