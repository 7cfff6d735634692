// Package jsonpath implements the reference paths used to thread execution
// state between steps: "$", "$.a.b", "$.items[0].name". Paths are translated
// to JSON pointers and evaluated over normalized JSON values.
package jsonpath

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonpointer"
)

const Root = "$"

var (
	ErrInvalidPath = errors.New("invalid path")
	ErrNoMatch     = errors.New("path matched nothing")
)

// PathError reports a path that could not be parsed or resolved.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// Tokens splits a path into its segments. "$" yields no tokens.
func Tokens(path string) ([]string, error) {
	if path == "" || path == Root {
		return nil, nil
	}

	if !strings.HasPrefix(path, Root) {
		return nil, &PathError{Path: path, Err: ErrInvalidPath}
	}

	rest := path[1:]

	var tokens []string

	for rest != "" {
		switch rest[0] {
		case '.':
			rest = rest[1:]

			end := strings.IndexAny(rest, ".[")
			if end < 0 {
				end = len(rest)
			}

			if end == 0 {
				return nil, &PathError{Path: path, Err: ErrInvalidPath}
			}

			tokens = append(tokens, rest[:end])
			rest = rest[end:]
		case '[':
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return nil, &PathError{Path: path, Err: ErrInvalidPath}
			}

			index := rest[1:end]

			_, err := strconv.Atoi(index)
			if err != nil {
				return nil, &PathError{Path: path, Err: fmt.Errorf("%w: non numeric index %q", ErrInvalidPath, index)}
			}

			tokens = append(tokens, index)
			rest = rest[end+1:]
		default:
			return nil, &PathError{Path: path, Err: ErrInvalidPath}
		}
	}

	return tokens, nil
}

// Pointer converts a path to a JSON pointer string.
func Pointer(path string) (string, error) {
	tokens, err := Tokens(path)
	if err != nil {
		return "", err
	}

	var b strings.Builder

	for _, token := range tokens {
		token = strings.ReplaceAll(token, "~", "~0")
		token = strings.ReplaceAll(token, "/", "~1")

		b.WriteByte('/')
		b.WriteString(token)
	}

	return b.String(), nil
}

// Normalize converts any JSON-encodable value into the generic form
// (map[string]any, []any, float64, string, bool, nil). The result never
// aliases the input.
func Normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("value is not JSON encodable: %w", err)
	}

	var out any

	err = json.Unmarshal(data, &out)
	if err != nil {
		return nil, err
	}

	return out, nil
}

// Get resolves path against doc.
func Get(doc any, path string) (any, error) {
	if path == "" || path == Root {
		return doc, nil
	}

	pointer, err := Pointer(path)
	if err != nil {
		return nil, err
	}

	p, err := gojsonpointer.NewJsonPointer(pointer)
	if err != nil {
		return nil, &PathError{Path: path, Err: err}
	}

	value, _, err := p.Get(doc)
	if err != nil {
		return nil, &PathError{Path: path, Err: fmt.Errorf("%w: %v", ErrNoMatch, err)}
	}

	return value, nil
}

// Lookup is Get without the error detail, for predicates.
func Lookup(doc any, path string) (any, bool) {
	value, err := Get(doc, path)

	return value, err == nil
}

// Set returns a copy of doc with value placed at path. Missing intermediate
// objects are created; "$" replaces the whole document.
func Set(doc any, path string, value any) (any, error) {
	tokens, err := Tokens(path)
	if err != nil {
		return nil, err
	}

	if len(tokens) == 0 {
		return value, nil
	}

	root, err := Normalize(doc)
	if err != nil {
		return nil, err
	}

	if root == nil {
		root = map[string]any{}
	}

	_, isObject := root.(map[string]any)
	if !isObject {
		return nil, &PathError{Path: path, Err: fmt.Errorf("%w: cannot set a field on a non object document", ErrInvalidPath)}
	}

	err = ensureParents(root, tokens)
	if err != nil {
		return nil, &PathError{Path: path, Err: err}
	}

	pointer, err := Pointer(path)
	if err != nil {
		return nil, err
	}

	p, err := gojsonpointer.NewJsonPointer(pointer)
	if err != nil {
		return nil, &PathError{Path: path, Err: err}
	}

	out, err := p.Set(root, value)
	if err != nil {
		return nil, &PathError{Path: path, Err: err}
	}

	return out, nil
}

func ensureParents(root any, tokens []string) error {
	node := root

	for _, token := range tokens[:len(tokens)-1] {
		switch current := node.(type) {
		case map[string]any:
			child, ok := current[token]
			if !ok || child == nil {
				child = map[string]any{}
				current[token] = child
			}

			node = child
		case []any:
			index, err := strconv.Atoi(token)
			if err != nil || index < 0 || index >= len(current) {
				return fmt.Errorf("%w: index %s out of range", ErrNoMatch, token)
			}

			node = current[index]
		default:
			return fmt.Errorf("%w: %q is not a container", ErrInvalidPath, token)
		}
	}

	return nil
}

// Merge overlays result onto state when both are objects; otherwise the
// result replaces the state.
func Merge(state any, result any) any {
	base, ok := state.(map[string]any)
	if !ok {
		return result
	}

	overlay, ok := result.(map[string]any)
	if !ok {
		return result
	}

	merged := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		merged[k] = v
	}

	for k, v := range overlay {
		merged[k] = v
	}

	return merged
}
