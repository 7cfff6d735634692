package jsonpath

import (
	"fmt"
	"strings"
)

const (
	pathSuffix    = ".$"
	contextPrefix = "$$"
)

// Resolve builds a value from a parameter template. Object keys ending in
// ".$" take their value from the path they hold, read from input, or from
// contextObject when the path starts with "$$". Every other value is copied
// as a literal.
func Resolve(template any, input any, contextObject any) (any, error) {
	switch t := template.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))

		for key, value := range t {
			if !strings.HasSuffix(key, pathSuffix) {
				resolved, err := Resolve(value, input, contextObject)
				if err != nil {
					return nil, err
				}

				out[key] = resolved

				continue
			}

			path, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("%w: parameter %q must hold a path string", ErrInvalidPath, key)
			}

			resolved, err := resolvePath(path, input, contextObject)
			if err != nil {
				return nil, fmt.Errorf("parameter %q: %w", key, err)
			}

			out[strings.TrimSuffix(key, pathSuffix)] = resolved
		}

		return out, nil
	case []any:
		out := make([]any, len(t))

		for i, value := range t {
			resolved, err := Resolve(value, input, contextObject)
			if err != nil {
				return nil, err
			}

			out[i] = resolved
		}

		return out, nil
	default:
		return t, nil
	}
}

func resolvePath(path string, input any, contextObject any) (any, error) {
	if strings.HasPrefix(path, contextPrefix) {
		return Get(contextObject, path[1:])
	}

	return Get(input, path)
}
