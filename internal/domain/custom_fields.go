package domain

// CustomFields is the open key-value extension map carried by tickets.
type CustomFields map[string]any

// attachmentsKey receives concat-on-merge treatment so repeated uploads
// accumulate instead of replacing each other.
const attachmentsKey = "attachments"

// Merge applies incoming on top of existing: new keys are added, existing
// keys are overwritten, and array values under "attachments" are
// concatenated. Neither input map is mutated.
func (cf CustomFields) Merge(incoming CustomFields) CustomFields {
	if len(incoming) == 0 && cf == nil {
		return nil
	}
	merged := make(CustomFields, len(cf)+len(incoming))
	for k, v := range cf {
		merged[k] = v
	}
	for k, v := range incoming {
		if k == attachmentsKey {
			if combined, ok := concatArrays(merged[k], v); ok {
				merged[k] = combined
				continue
			}
		}
		merged[k] = v
	}
	return merged
}

func concatArrays(existing, incoming any) ([]any, bool) {
	current, okCurrent := existing.([]any)
	next, okNext := incoming.([]any)
	if !okCurrent || !okNext {
		return nil, false
	}
	combined := make([]any, 0, len(current)+len(next))
	combined = append(combined, current...)
	combined = append(combined, next...)
	return combined, true
}
