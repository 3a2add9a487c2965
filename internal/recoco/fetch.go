package recoco

import (
	"context"

	"github.com/recoco/recoco-relay/internal/mapping"
	"github.com/recoco/recoco-relay/pkg/logger"
)

// FetchProjectFields loads a project and the answers of its first survey
// session, flattened into one field map.
func FetchProjectFields(ctx context.Context, logg *logger.Logger, client *Client, projectID int64) (mapping.FieldMap, error) {
	project, err := client.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	data := mapping.ProjectFields(ctx, logg, project)
	if err := mergeSurveyFields(ctx, client, projectID, data); err != nil {
		return nil, err
	}
	return data, nil
}

// ForEachProject iterates over every project of the portal, invoking fn with
// the project id and its flattened field map. Iteration stops on the first
// error returned by fn.
func ForEachProject(ctx context.Context, logg *logger.Logger, client *Client, fn func(projectID int64, fields mapping.FieldMap) error) error {
	projects, err := client.GetProjects(ctx)
	if err != nil {
		return err
	}

	for _, project := range projects {
		id, ok := project["id"].(float64)
		if !ok {
			continue
		}
		projectID := int64(id)

		data := mapping.ProjectFields(ctx, logg, project)
		if err := mergeSurveyFields(ctx, client, projectID, data); err != nil {
			return err
		}
		if err := fn(projectID, data); err != nil {
			return err
		}
	}
	return nil
}

func mergeSurveyFields(ctx context.Context, client *Client, projectID int64, data mapping.FieldMap) error {
	sessions, err := client.GetSurveySessions(ctx, projectID)
	if err != nil {
		return err
	}
	if sessions.Count == 0 || len(sessions.Results) == 0 {
		return nil
	}

	answers, err := client.GetSurveySessionAnswers(ctx, sessions.Results[0].ID)
	if err != nil {
		return err
	}
	for _, answer := range answers.Results {
		data.Merge(mapping.SurveyAnswerFields(answer))
	}
	return nil
}
