package lescommuns

import (
	"context"
	"strconv"
	"time"

	"github.com/recoco/recoco-relay/pkg/logger"
)

// Collectivite is one territorial entity attached to a registry project.
type Collectivite struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

// Porteur is the registry's project-holder contact. Absent fields are sent
// as JSON null, the registry API distinguishes null from empty string.
type Porteur struct {
	ReferentEmail  *string `json:"referentEmail"`
	ReferentPrenom *string `json:"referentPrenom"`
	ReferentNom    *string `json:"referentNom"`
}

// Projet is the create/update payload of the partner-registry projects API.
type Projet struct {
	Nom                     string         `json:"nom"`
	Description             string         `json:"description"`
	Collectivites           []Collectivite `json:"collectivites"`
	Competences             []string       `json:"competences"`
	Leviers                 []string       `json:"leviers"`
	ExternalID              string         `json:"externalId"`
	Phase                   string         `json:"phase"`
	PhaseStatut             string         `json:"phaseStatut"`
	DateDebutPrevisionnelle string         `json:"dateDebutPrevisionnelle"`
	Porteur                 *Porteur       `json:"porteur"`
}

// PhaseMapping translates a portal project status into a registry phase.
// Every known status currently lands on the same phase, the registry has no
// finer-grained equivalent yet.
func PhaseMapping(status string) string {
	return "Idée"
}

// PhaseStatutMapping translates a portal project status into a registry
// phase progress value.
func PhaseStatutMapping(status string) string {
	switch status {
	case "DONE":
		return "Terminé"
	case "STUCK":
		return "Bloqué"
	case "REJECTED":
		return "Abandonné"
	default:
		return "En cours"
	}
}

// ProjectPayload maps a raw portal project payload into the registry's
// project shape. The commune's insee code becomes the sole Collectivite and
// the first advisor becomes the Porteur contact.
func ProjectPayload(ctx context.Context, logg *logger.Logger, payload map[string]any) Projet {
	projet := Projet{
		Nom:           stringAt(payload, "name"),
		Description:   stringAt(payload, "description"),
		Collectivites: []Collectivite{},
		Competences:   []string{},
		Leviers:       []string{},
		Phase:         PhaseMapping(stringAt(payload, "status")),
		PhaseStatut:   PhaseStatutMapping(stringAt(payload, "status")),
	}

	if id, ok := intAt(payload, "id"); ok {
		projet.ExternalID = strconv.FormatInt(id, 10)
	}

	if commune, ok := payload["commune"].(map[string]any); ok {
		if insee := stringAt(commune, "insee"); insee != "" {
			projet.Collectivites = append(projet.Collectivites, Collectivite{
				Type: "Commune",
				Code: insee,
			})
		}
	}

	if createdOn := stringAt(payload, "created_on"); createdOn != "" {
		date, err := parseDate(createdOn)
		if err != nil {
			logg.Warn(ctx, "unparseable created_on date "+createdOn)
		} else {
			projet.DateDebutPrevisionnelle = date
		}
	}

	if switchtenders, ok := payload["switchtenders"].([]any); ok && len(switchtenders) > 0 {
		if first, ok := switchtenders[0].(map[string]any); ok {
			projet.Porteur = &Porteur{
				ReferentEmail:  optionalString(first, "email"),
				ReferentPrenom: optionalString(first, "firstname"),
				ReferentNom:    optionalString(first, "lastname"),
			}
		}
	}

	return projet
}

func parseDate(value string) (string, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.Format("2006-01-02"), nil
		}
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return "", err
	}
	return parsed.Format("2006-01-02"), nil
}

func stringAt(payload map[string]any, key string) string {
	value, _ := payload[key].(string)
	return value
}

func optionalString(payload map[string]any, key string) *string {
	value, ok := payload[key].(string)
	if !ok {
		return nil
	}
	return &value
}

func intAt(payload map[string]any, key string) (int64, bool) {
	switch value := payload[key].(type) {
	case int64:
		return value, true
	case int:
		return int64(value), true
	case float64:
		return int64(value), true
	case string:
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
