package mapping

import (
	"testing"
)

func TestSurveyAnswerFieldsMultipleChoices(t *testing.T) {
	answer := Answer{
		Question: Question{
			Slug:       "thematiques-2",
			IsMultiple: true,
			Choices: []Choice{
				{Text: "Commerce rural"},
				{Text: "Patrimoine"},
			},
		},
		Choices: []Choice{
			{Text: "Commerce rural"},
			{Text: "Patrimoine"},
		},
		Comment: "x",
	}

	data := SurveyAnswerFields(answer)

	if data["thematiques_2"] != "Commerce rural,Patrimoine" {
		t.Fatalf("thematiques_2 = %v", data["thematiques_2"])
	}
	if data["thematiques_2_comment"] != "x" {
		t.Fatalf("thematiques_2_comment = %v", data["thematiques_2_comment"])
	}
}

func TestSurveyAnswerFieldsYesNo(t *testing.T) {
	question := Question{
		Slug: "diagnostic-batimentaire",
		Choices: []Choice{
			{Text: "Oui"},
			{Text: "Non"},
		},
	}

	data := SurveyAnswerFields(Answer{
		Question: question,
		Choices:  []Choice{{Text: "Oui"}},
		Comment:  "réalisé en 2023",
	})
	if data["diagnostic_batimentaire"] != true {
		t.Fatalf("expected true, got %v", data["diagnostic_batimentaire"])
	}
	if data["diagnostic_batimentaire_comment"] != "réalisé en 2023" {
		t.Fatalf("comment = %v", data["diagnostic_batimentaire_comment"])
	}

	data = SurveyAnswerFields(Answer{
		Question: question,
		Choices:  []Choice{{Text: "Non"}},
	})
	if data["diagnostic_batimentaire"] != false {
		t.Fatalf("expected false, got %v", data["diagnostic_batimentaire"])
	}

	data = SurveyAnswerFields(Answer{Question: question})
	if data["diagnostic_batimentaire"] != false {
		t.Fatalf("expected false without selection, got %v", data["diagnostic_batimentaire"])
	}
}

func TestSurveyAnswerFieldsYesNoMaybe(t *testing.T) {
	answer := Answer{
		Question: Question{
			Slug: "competence-voirie-de-lepci",
			Choices: []Choice{
				{Text: "Oui"},
				{Text: "Non"},
				{Text: "Je ne sais pas"},
			},
		},
		Choices: []Choice{{Text: "Je ne sais pas"}},
		Comment: "",
	}

	data := SurveyAnswerFields(answer)

	if data["competence_voirie_de_lepci"] != "je ne sais pas" {
		t.Fatalf("base field = %v", data["competence_voirie_de_lepci"])
	}
	if _, ok := data["competence_voirie_de_lepci_comment"]; !ok {
		t.Fatal("expected comment sibling")
	}
}

func TestSurveyAnswerFieldsSimple(t *testing.T) {
	data := SurveyAnswerFields(Answer{
		Question: Question{Slug: "description-du-site"},
		Comment:  "Ancien site industriel",
	})

	if data["description_du_site"] != "Ancien site industriel" {
		t.Fatalf("base field = %v", data["description_du_site"])
	}
	if _, ok := data["description_du_site_comment"]; ok {
		t.Fatal("simple questions carry no comment sibling")
	}
}

func TestSurveyAnswerFieldsAttachment(t *testing.T) {
	data := SurveyAnswerFields(Answer{
		Question:   Question{Slug: "calendrier"},
		Comment:    "voir PJ",
		Attachment: "https://example.org/calendrier.pdf",
	})

	if data["calendrier_attachment"] != "https://example.org/calendrier.pdf" {
		t.Fatalf("attachment = %v", data["calendrier_attachment"])
	}
}

func TestSurveyAnswerFieldsMissingSlug(t *testing.T) {
	data := SurveyAnswerFields(Answer{Comment: "orphan"})
	if len(data) != 0 {
		t.Fatalf("expected empty map, got %v", data)
	}
}
