package params

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/apereiratl/marten/pkg/marten"
)

// Pair is one named argument.
type Pair struct {
	Name  string
	Type  marten.DbType
	Value string
}

var typeAliases = map[string]marten.DbType{
	"text":        marten.DbTypeText,
	"varchar":     marten.DbTypeVarchar,
	"int":         marten.DbTypeInteger,
	"integer":     marten.DbTypeInteger,
	"smallint":    marten.DbTypeSmallint,
	"bigint":      marten.DbTypeBigint,
	"real":        marten.DbTypeReal,
	"double":      marten.DbTypeDouble,
	"numeric":     marten.DbTypeNumeric,
	"bool":        marten.DbTypeBoolean,
	"boolean":     marten.DbTypeBoolean,
	"uuid":        marten.DbTypeUUID,
	"json":        marten.DbTypeJSONB,
	"jsonb":       marten.DbTypeJSONB,
	"date":        marten.DbTypeDate,
	"timestamp":   marten.DbTypeTimestamp,
	"timestamptz": marten.DbTypeTimestampTZ,
	"interval":    marten.DbTypeInterval,
}

// ParseKeyValuePairs converts "name=value" and "name:type=value" strings
// into pairs, in order. Untyped pairs are text. A repeated name replaces
// the earlier value in place.
//
// Example:
//
//	pairs, err := ParseKeyValuePairs([]string{"docid:uuid=2f1c...", "note=hello"})
func ParseKeyValuePairs(pairs []string) ([]Pair, error) {
	result := make([]Pair, 0, len(pairs))

	for _, raw := range pairs {
		key, value, ok := strings.Cut(raw, "=")
		if !ok {
			return nil, fmt.Errorf("parameter %q is not in name=value format (example: --param docid:uuid=...): %w", raw, marten.ErrInvalidArgument)
		}

		pair, err := newPair(key, value)
		if err != nil {
			return nil, err
		}
		result = upsert(result, pair)
	}

	return result, nil
}

func newPair(key, value string) (Pair, error) {
	name, typeName, typed := strings.Cut(strings.TrimSpace(key), ":")
	if name == "" {
		return Pair{}, fmt.Errorf("parameter has empty name: %q: %w", key, marten.ErrInvalidArgument)
	}

	pair := Pair{Name: name, Type: marten.DbTypeText, Value: value}
	if typed {
		t, ok := typeAliases[strings.ToLower(typeName)]
		if !ok {
			return Pair{}, fmt.Errorf("parameter %q: unknown type %q: %w", name, typeName, marten.ErrInvalidArgument)
		}
		pair.Type = t
	}
	return pair, nil
}

func upsert(pairs []Pair, pair Pair) []Pair {
	for i := range pairs {
		if pairs[i].Name == pair.Name {
			pairs[i] = pair
			return pairs
		}
	}
	return append(pairs, pair)
}

// LoadFile reads NAME=VALUE lines from an .env style file. Every value is
// text: godotenv treats a colon after the name as a YAML style separator, so
// types cannot be written in a file. File order is not kept by the parser,
// so the pairs are sorted by name.
func LoadFile(path string) ([]Pair, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read params file '%s': %w", path, err)
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]Pair, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, Pair{Name: k, Type: marten.DbTypeText, Value: values[k]})
	}
	return pairs, nil
}

// Merge overlays the later sets on the first. Later values win.
func Merge(sets ...[]Pair) []Pair {
	var merged []Pair
	for _, set := range sets {
		for _, p := range set {
			merged = upsert(merged, p)
		}
	}
	return merged
}

// Convert returns the value as the Go type pgx sends for Type.
func (p Pair) Convert() (any, error) {
	v, err := p.convert()
	if err != nil {
		return nil, fmt.Errorf("parameter %q is not a valid %s: %w", p.Name, p.Type, marten.ErrInvalidArgument)
	}
	return v, nil
}

func (p Pair) convert() (any, error) {
	switch p.Type {
	case marten.DbTypeInteger:
		n, err := strconv.ParseInt(p.Value, 10, 32)
		return int32(n), err
	case marten.DbTypeSmallint:
		n, err := strconv.ParseInt(p.Value, 10, 16)
		return int16(n), err
	case marten.DbTypeBigint:
		return strconv.ParseInt(p.Value, 10, 64)
	case marten.DbTypeReal:
		f, err := strconv.ParseFloat(p.Value, 32)
		return float32(f), err
	case marten.DbTypeDouble:
		return strconv.ParseFloat(p.Value, 64)
	case marten.DbTypeBoolean:
		return strconv.ParseBool(p.Value)
	case marten.DbTypeUUID:
		return uuid.Parse(p.Value)
	case marten.DbTypeJSONB:
		if !json.Valid([]byte(p.Value)) {
			return nil, fmt.Errorf("invalid json")
		}
		return p.Value, nil
	case marten.DbTypeDate:
		return time.Parse(time.DateOnly, p.Value)
	case marten.DbTypeTimestamp, marten.DbTypeTimestampTZ:
		return time.Parse(time.RFC3339, p.Value)
	default:
		// numeric and interval go as text and are cast by the server
		return p.Value, nil
	}
}
