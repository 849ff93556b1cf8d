package jsonutils

import (
	"encoding/json"
	"strings"
)

// ToJSON serializes a value to indented JSON.
// Returns an empty string if serialization fails.
func ToJSON(v interface{}) string {
	bytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(bytes))
}
