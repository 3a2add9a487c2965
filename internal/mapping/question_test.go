package mapping

import (
	"testing"

	"github.com/recoco/recoco-relay/pkg/enums"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name     string
		question Question
		want     enums.QuestionType
	}{
		{
			name: "choices",
			question: Question{
				ID:   6,
				Slug: "etat_general_bati",
				Choices: []Choice{
					{ID: 23, Value: "bon_état", Text: "Bon état général, pas de travaux structurels nécessaires"},
					{ID: 24, Value: "état_moyen", Text: "Etat moyen, travaux importants à prévoir"},
				},
			},
			want: enums.QuestionTypeChoices,
		},
		{
			name: "yes no",
			question: Question{
				ID:   7,
				Slug: "diagnostic-batimentaire",
				Choices: []Choice{
					{ID: 27, Value: "diag_oui", Text: "Oui"},
					{ID: 28, Value: "diag_non", Text: "Non"},
				},
			},
			want: enums.QuestionTypeYesNo,
		},
		{
			name: "yes no maybe",
			question: Question{
				ID:   231,
				Slug: "competence-voirie-de-lepci",
				Choices: []Choice{
					{ID: 548, Value: "EPCI compétence voirie", Text: "Oui"},
					{ID: 549, Value: "Pas voirie EPCI", Text: "Non"},
					{ID: 550, Value: "Compétence voirie inconnue", Text: "Je ne sais pas"},
				},
			},
			want: enums.QuestionTypeYesNoMaybe,
		},
		{
			name: "multiple choices",
			question: Question{
				ID:         85,
				Slug:       "thematiques-2",
				IsMultiple: true,
				Choices: []Choice{
					{ID: 258, Value: "13", Text: "Commerce rural"},
					{ID: 249, Value: "4", Text: "Logement / Habitat"},
				},
			},
			want: enums.QuestionTypeMultipleChoices,
		},
		{
			name: "simple",
			question: Question{
				ID:      13,
				Slug:    "description-du-site",
				Choices: []Choice{},
			},
			want: enums.QuestionTypeSimple,
		},
		{
			name: "two choices that are not oui non degrade to choices",
			question: Question{
				ID:   14,
				Slug: "avis",
				Choices: []Choice{
					{ID: 1, Text: "Plutôt oui"},
					{ID: 2, Text: "Plutôt non"},
				},
			},
			want: enums.QuestionTypeChoices,
		},
		{
			name: "is_multiple wins over choice texts",
			question: Question{
				ID:         15,
				Slug:       "multi-oui-non",
				IsMultiple: true,
				Choices: []Choice{
					{ID: 1, Text: "Oui"},
					{ID: 2, Text: "Non"},
				},
			},
			want: enums.QuestionTypeMultipleChoices,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.question); got != tc.want {
				t.Fatalf("Classify() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestQuestionColID(t *testing.T) {
	q := Question{Slug: "diagnostic-batimentaire"}
	if got := q.ColID(); got != "diagnostic_batimentaire" {
		t.Fatalf("ColID() = %q", got)
	}
}
