package internal

import "strconv"

// Flatten collapses a decoded JSON object into dotted keys, so
// {"repository": {"owner": {"login": "x"}}} yields "repository.owner.login".
// Arrays are kept whole under their own key and also expanded by index,
// which lets rules use both contains(labels, "bug") and labels[0].name.
func Flatten(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for key, value := range data {
		flattenValue(out, key, value)
	}
	return out
}

func flattenValue(out map[string]interface{}, key string, value interface{}) {
	switch typed := value.(type) {
	case map[string]interface{}:
		for child, v := range typed {
			flattenValue(out, key+"."+child, v)
		}
	case []interface{}:
		out[key] = typed
		for i, v := range typed {
			flattenValue(out, key+"["+strconv.Itoa(i)+"]", v)
		}
	default:
		out[key] = value
	}
}
