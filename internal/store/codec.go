package store

import (
	"encoding/json"
	"fmt"

	"github.com/dgallion1/pmdaparse/internal/extract"
)

// Active ingredients are structured, so they are kept as a JSON column
// next to the medicine rather than as flat clinical records.

func encodeIngredients(list []extract.ActiveIngredient) (string, error) {
	if len(list) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("encode ingredients: %w", err)
	}
	return string(b), nil
}

func decodeIngredients(s string) ([]extract.ActiveIngredient, error) {
	if s == "" || s == "[]" {
		return nil, nil
	}
	var list []extract.ActiveIngredient
	if err := json.Unmarshal([]byte(s), &list); err != nil {
		return nil, fmt.Errorf("decode ingredients: %w", err)
	}
	return list, nil
}
