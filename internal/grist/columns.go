package grist

import (
	"context"
	"strings"

	"github.com/recoco/recoco-relay/internal/mapping"
	"github.com/recoco/recoco-relay/internal/recoco"
	"github.com/recoco/recoco-relay/pkg/db/models"
	"github.com/recoco/recoco-relay/pkg/enums"
)

// ColumnSpec is one desired column of the project table.
type ColumnSpec struct {
	ColID string
	Label string
	Type  enums.ColumnType
}

// projectColumnSpec is the fixed head of every project table; question
// columns are appended after it. Order is significant.
var projectColumnSpec = []ColumnSpec{
	{ColID: "object_id", Label: "ID", Type: enums.ColumnTypeInt},
	{ColID: "name", Label: "Nom du projet", Type: enums.ColumnTypeText},
	{ColID: "description", Label: "Description du projet", Type: enums.ColumnTypeText},
	{ColID: "tags", Label: "Etiquettes", Type: enums.ColumnTypeChoiceList},
	{ColID: "city", Label: "Commune", Type: enums.ColumnTypeText},
	{ColID: "postal_code", Label: "Code postal", Type: enums.ColumnTypeInt},
	{ColID: "insee", Label: "Code Insee", Type: enums.ColumnTypeInt},
	{ColID: "department", Label: "Département", Type: enums.ColumnTypeText},
	{ColID: "department_code", Label: "Code département", Type: enums.ColumnTypeInt},
	{ColID: "region", Label: "Région", Type: enums.ColumnTypeText},
	{ColID: "region_code", Label: "Code région", Type: enums.ColumnTypeText},
	{ColID: "location", Label: "Lieu", Type: enums.ColumnTypeText},
	{ColID: "latitude", Label: "Latitude", Type: enums.ColumnTypeNumeric},
	{ColID: "longitude", Label: "Longitude", Type: enums.ColumnTypeNumeric},
	{ColID: "organization", Label: "Organisation", Type: enums.ColumnTypeText},
	{ColID: "created", Label: "Créé le", Type: enums.ColumnTypeDateTime},
	{ColID: "modified", Label: "Modifié le", Type: enums.ColumnTypeDateTime},
	{ColID: "inactive_since", Label: "Inactif depuis le", Type: enums.ColumnTypeDateTime},
	{ColID: "active", Label: "Actif", Type: enums.ColumnTypeBool},
	{ColID: "status", Label: "Statut", Type: enums.ColumnTypeText},
	{ColID: "advisors_note", Label: "Note des conseillers", Type: enums.ColumnTypeText},
}

// BuildColumnCatalog computes the full desired column list of a config: the
// fixed project columns followed by one column per survey question, with a
// comment sibling for every non-simple question.
func BuildColumnCatalog(ctx context.Context, client *recoco.Client, maxLabelChars int) ([]ColumnSpec, error) {
	specs := make([]ColumnSpec, 0, len(projectColumnSpec))
	specs = append(specs, projectColumnSpec...)
	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		seen[spec.ColID] = true
	}

	questions, err := client.GetQuestions(ctx)
	if err != nil {
		return nil, err
	}

	for _, question := range questions.Results {
		colID := question.ColID()
		if colID == "" || seen[colID] {
			continue
		}
		seen[colID] = true

		label := columnLabel(question, maxLabelChars)
		specs = append(specs, ColumnSpec{
			ColID: colID,
			Label: label,
			Type:  columnType(question),
		})

		if mapping.Classify(question) == enums.QuestionTypeSimple {
			continue
		}
		commentID := colID + "_comment"
		if seen[commentID] {
			continue
		}
		seen[commentID] = true
		specs = append(specs, ColumnSpec{
			ColID: commentID,
			Label: truncateLabel("Commentaire de "+label, maxLabelChars),
			Type:  enums.ColumnTypeText,
		})
	}

	return specs, nil
}

// ColumnModels converts specs into stored column rows for a config, with
// positions following spec order.
func ColumnModels(cfg *models.GristConfig, specs []ColumnSpec) []models.GristColumn {
	columns := make([]models.GristColumn, 0, len(specs))
	for i, spec := range specs {
		columns = append(columns, models.GristColumn{
			GristConfigID: cfg.ID,
			ColID:         spec.ColID,
			Label:         spec.Label,
			Type:          spec.Type,
			Position:      i,
		})
	}
	return columns
}

// DesiredColumns converts the stored columns of a config into the wire shape
// used for table creation and reconciliation, in position order.
func DesiredColumns(cfg *models.GristConfig) []Column {
	columns := make([]Column, 0, len(cfg.Columns))
	for _, col := range cfg.Columns {
		columns = append(columns, Column{
			ID: col.ColID,
			Fields: ColumnFields{
				Label: col.Label,
				Type:  string(col.Type),
			},
		})
	}
	return columns
}

func columnType(question mapping.Question) enums.ColumnType {
	switch mapping.Classify(question) {
	case enums.QuestionTypeYesNo:
		return enums.ColumnTypeBool
	case enums.QuestionTypeMultipleChoices:
		return enums.ColumnTypeChoiceList
	default:
		return enums.ColumnTypeText
	}
}

func columnLabel(question mapping.Question, maxChars int) string {
	label := question.TextShort
	if label == "" {
		label = question.Text
	}
	if label == "" {
		label = titleFromSlug(question.Slug)
	}
	return truncateLabel(label, maxChars)
}

func truncateLabel(label string, maxChars int) string {
	if maxChars <= 3 {
		return label
	}
	runes := []rune(label)
	if len(runes) <= maxChars {
		return label
	}
	return string(runes[:maxChars-3]) + "..."
}

func titleFromSlug(slug string) string {
	words := strings.Split(strings.ReplaceAll(slug, "_", " "), " ")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
