package template

import "maps"

// MergeContexts returns a new context holding the keys of every given
// context. Later contexts win; nil contexts are skipped. The inputs are
// never modified.
func MergeContexts(contexts ...map[string]interface{}) map[string]interface{} {
	size := 0
	for _, ctx := range contexts {
		size += len(ctx)
	}

	result := make(map[string]interface{}, size)
	for _, ctx := range contexts {
		maps.Copy(result, ctx)
	}
	return result
}
