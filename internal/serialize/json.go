// Package serialize provides the default document serializer.
package serialize

import (
	"encoding/json"
	"fmt"

	"github.com/apereiratl/marten/pkg/marten"
)

// JSONSerializer writes documents as JSON text for jsonb parameters.
type JSONSerializer struct {
	enumStorage marten.EnumStorage
}

// NewJSONSerializer creates a serializer that reports the given enum storage.
func NewJSONSerializer(enumStorage marten.EnumStorage) *JSONSerializer {
	return &JSONSerializer{enumStorage: enumStorage}
}

// ToJSON marshals v. A nil v becomes "null".
func (s *JSONSerializer) ToJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("serialize %T: %w", v, err)
	}
	return string(data), nil
}

// EnumStorage reports how enum values are stored.
func (s *JSONSerializer) EnumStorage() marten.EnumStorage {
	return s.enumStorage
}

var _ marten.Serializer = (*JSONSerializer)(nil)
