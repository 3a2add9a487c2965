package enums

// ObjectType identifies the upstream object a webhook event refers to.
// Values mirror the dotted model labels emitted by the source API.
type ObjectType string

const (
	ObjectTypeProject        ObjectType = "projects.Project"
	ObjectTypeSurveyAnswer   ObjectType = "survey.Answer"
	ObjectTypeTaggedItem     ObjectType = "taggit.TaggedItem"
	ObjectTypeRecommendation ObjectType = "tasks.Task"
)

// IsProject reports whether the type is the canonical project type.
func (o ObjectType) IsProject() bool {
	return o == ObjectTypeProject
}

// HasProjectParent reports whether the object carries its project id inside
// its payload rather than as its own object id.
func (o ObjectType) HasProjectParent() bool {
	switch o {
	case ObjectTypeSurveyAnswer, ObjectTypeTaggedItem, ObjectTypeRecommendation:
		return true
	default:
		return false
	}
}

// Valid reports whether the value is one of the known object types.
func (o ObjectType) Valid() bool {
	switch o {
	case ObjectTypeProject, ObjectTypeSurveyAnswer, ObjectTypeTaggedItem, ObjectTypeRecommendation:
		return true
	default:
		return false
	}
}
