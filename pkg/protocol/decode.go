package protocol

import (
	"encoding/json"
	"fmt"
)

// DecodeInput converts a task input, usually a map[string]any produced by
// parameter resolution, into T. Decoding failures are domain-invalid.
func DecodeInput[T any](input any) (T, error) {
	var out T

	data, err := json.Marshal(input)
	if err != nil {
		return out, DomainInvalid(fmt.Errorf("encode input: %w", err))
	}

	err = json.Unmarshal(data, &out)
	if err != nil {
		return out, DomainInvalid(fmt.Errorf("decode input: %w", err))
	}

	return out, nil
}
