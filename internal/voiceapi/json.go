package voiceapi

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// pagedList is the paginated envelope the backend uses for some list endpoints.
type pagedList[T any] struct {
	Results []T `json:"results"`
}

// decodeList parses either a plain JSON array or a paginated {"results": [...]}
// object. A null body yields an empty list.
func decodeList[T any](data []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil
	}

	if trimmed[0] == '[' {
		var items []T

		err := parseJSON(trimmed, &items)
		if err != nil {
			return nil, err
		}

		return items, nil
	}

	var page pagedList[T]

	err := parseJSON(trimmed, &page)
	if err != nil {
		return nil, err
	}

	if page.Results == nil {
		return []T{}, nil
	}

	return page.Results, nil
}

// parseJSON parses JSON data into the target interface.
func parseJSON(data []byte, target any) error {
	err := json.Unmarshal(data, target)
	if err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	return nil
}
