package mapping

// FieldMap is a flat field-id to value map produced by the payload mappers.
type FieldMap map[string]any

// Merge copies every entry of other into the map, overwriting on conflict.
func (m FieldMap) Merge(other FieldMap) {
	for k, v := range other {
		m[k] = v
	}
}

// Restrict returns the entries of data whose keys appear in desired. An
// empty desired set yields an empty map: a target with no configured fields
// synchronizes nothing.
func Restrict(data FieldMap, desired []string) FieldMap {
	out := FieldMap{}
	for _, key := range desired {
		if value, ok := data[key]; ok {
			out[key] = value
		}
	}
	return out
}
