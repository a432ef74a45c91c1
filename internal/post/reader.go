package post

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ReadFile loads a normalized items file: a JSON array of Item objects, or an
// object with a top-level "items" array (both shapes are produced by the
// export normalizer, depending on its version). Items with no ID are rejected
// here rather than dropped silently; the file is the contract boundary.
func ReadFile(path string) ([]Item, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("items file: no path configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("items file: %w", err)
	}
	items, err := decodeItems(data)
	if err != nil {
		return nil, fmt.Errorf("items file %s: %w", path, err)
	}
	for i, item := range items {
		if strings.TrimSpace(item.ID) == "" {
			return nil, fmt.Errorf("items file %s: item %d has no id", path, i)
		}
	}
	return items, nil
}

func decodeItems(data []byte) ([]Item, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, errors.New("empty file")
	}

	if strings.HasPrefix(trimmed, "[") {
		var items []Item
		if err := json.Unmarshal([]byte(trimmed), &items); err != nil {
			return nil, fmt.Errorf("parse item array: %w", err)
		}
		return items, nil
	}

	var wrapper struct {
		Items []Item `json:"items"`
	}
	if err := json.Unmarshal([]byte(trimmed), &wrapper); err != nil {
		return nil, fmt.Errorf("parse items object: %w", err)
	}
	if wrapper.Items == nil {
		return nil, errors.New(`no "items" array present`)
	}
	return wrapper.Items, nil
}
