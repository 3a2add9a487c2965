package mapping

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/recoco/recoco-relay/pkg/logger"
)

// ProjectFields flattens a project payload into a field map. The commune
// sub-object requires numeric coercion for its codes; a coercion failure is
// logged with the project id and drops the commune block only, the rest of
// the map is still returned.
func ProjectFields(ctx context.Context, logg *logger.Logger, payload map[string]any) FieldMap {
	data := FieldMap{}

	for src, dst := range map[string]string{
		"name":           "name",
		"description":    "description",
		"location":       "location",
		"org_name":       "organization",
		"created_on":     "created",
		"updated_on":     "modified",
		"inactive_since": "inactive_since",
		"status":         "status",
		"advisors_note":  "advisors_note",
	} {
		data[dst] = stringValue(payload[src])
	}

	data["latitude"] = floatValue(payload["latitude"])
	data["longitude"] = floatValue(payload["longitude"])
	data["active"] = payload["inactive_since"] == nil

	if commune, ok := payload["commune"].(map[string]any); ok {
		fields, err := communeFields(commune)
		if err != nil {
			logg.Error(ctx, fmt.Sprintf("mapping commune of project #%v", payload["id"]), err)
		} else {
			data.Merge(fields)
		}
	}

	data["tags"] = joinTags(payload["tags"])

	return data
}

func communeFields(commune map[string]any) (FieldMap, error) {
	postal, err := intValue(commune["postal"])
	if err != nil {
		return nil, fmt.Errorf("postal: %w", err)
	}
	insee, err := intValue(commune["insee"])
	if err != nil {
		return nil, fmt.Errorf("insee: %w", err)
	}

	department, ok := commune["department"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("missing department")
	}
	departmentCode, err := intValue(department["code"])
	if err != nil {
		return nil, fmt.Errorf("department code: %w", err)
	}

	fields := FieldMap{
		"city":            stringValue(commune["name"]),
		"postal_code":     postal,
		"insee":           insee,
		"department":      stringValue(department["name"]),
		"department_code": departmentCode,
	}

	if region, ok := department["region"].(map[string]any); ok {
		fields["region"] = stringValue(region["name"])
		fields["region_code"] = stringValue(region["code"])
	}

	return fields, nil
}

func joinTags(value any) string {
	items, ok := value.([]any)
	if !ok {
		return ""
	}
	tags := make([]string, 0, len(items))
	for _, item := range items {
		tags = append(tags, stringValue(item))
	}
	return strings.Join(tags, ",")
}

func stringValue(value any) string {
	if value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}

func floatValue(value any) float64 {
	f, _ := value.(float64)
	return f
}

func intValue(value any) (int, error) {
	switch v := value.(type) {
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("invalid number %q", v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("invalid number %v", value)
	}
}
