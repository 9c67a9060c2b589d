package params

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apereiratl/marten/pkg/marten"
)

func TestParseKeyValuePairs(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		want    []Pair
		wantErr string
	}{
		{
			name:  "single pair",
			input: []string{"env=production"},
			want:  []Pair{{Name: "env", Type: marten.DbTypeText, Value: "production"}},
		},
		{
			name:  "keeps order",
			input: []string{"b=2", "a=1"},
			want: []Pair{
				{Name: "b", Type: marten.DbTypeText, Value: "2"},
				{Name: "a", Type: marten.DbTypeText, Value: "1"},
			},
		},
		{
			name:  "nil input",
			input: nil,
			want:  []Pair{},
		},
		{
			name:  "empty value",
			input: []string{"key="},
			want:  []Pair{{Name: "key", Type: marten.DbTypeText, Value: ""}},
		},
		{
			name:  "value with equals",
			input: []string{"conn=host=localhost dbname=test"},
			want:  []Pair{{Name: "conn", Type: marten.DbTypeText, Value: "host=localhost dbname=test"}},
		},
		{
			name:  "typed",
			input: []string{"total:INT=42", "doc:jsonb={}"},
			want: []Pair{
				{Name: "total", Type: marten.DbTypeInteger, Value: "42"},
				{Name: "doc", Type: marten.DbTypeJSONB, Value: "{}"},
			},
		},
		{
			name:  "duplicate replaces in place",
			input: []string{"env=dev", "other=x", "env:varchar=prod"},
			want: []Pair{
				{Name: "env", Type: marten.DbTypeVarchar, Value: "prod"},
				{Name: "other", Type: marten.DbTypeText, Value: "x"},
			},
		},
		{
			name:    "missing equals",
			input:   []string{"noequalssign"},
			wantErr: "not in name=value format",
		},
		{
			name:    "empty name",
			input:   []string{"=value"},
			wantErr: "empty name",
		},
		{
			name:    "unknown type",
			input:   []string{"x:money=1"},
			wantErr: `unknown type "money"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKeyValuePairs(tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.ErrorIs(t, err, marten.ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPair_Convert(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		pair Pair
		want any
	}{
		{Pair{Type: marten.DbTypeText, Value: "x"}, "x"},
		{Pair{Type: marten.DbTypeInteger, Value: "42"}, int32(42)},
		{Pair{Type: marten.DbTypeSmallint, Value: "7"}, int16(7)},
		{Pair{Type: marten.DbTypeBigint, Value: "9000000000"}, int64(9000000000)},
		{Pair{Type: marten.DbTypeDouble, Value: "1.5"}, 1.5},
		{Pair{Type: marten.DbTypeBoolean, Value: "true"}, true},
		{Pair{Type: marten.DbTypeUUID, Value: id.String()}, id},
		{Pair{Type: marten.DbTypeJSONB, Value: `{"a":1}`}, `{"a":1}`},
		{Pair{Type: marten.DbTypeDate, Value: "2024-02-29"}, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)},
		{Pair{Type: marten.DbTypeNumeric, Value: "12.50"}, "12.50"},
	}

	for _, tt := range tests {
		t.Run(string(tt.pair.Type), func(t *testing.T) {
			got, err := tt.pair.Convert()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPair_Convert_Invalid(t *testing.T) {
	for _, p := range []Pair{
		{Name: "n", Type: marten.DbTypeInteger, Value: "forty"},
		{Name: "n", Type: marten.DbTypeInteger, Value: "9999999999"},
		{Name: "b", Type: marten.DbTypeBoolean, Value: "maybe"},
		{Name: "id", Type: marten.DbTypeUUID, Value: "not-a-uuid"},
		{Name: "doc", Type: marten.DbTypeJSONB, Value: "{"},
		{Name: "at", Type: marten.DbTypeTimestampTZ, Value: "yesterday"},
	} {
		_, err := p.Convert()
		assert.ErrorIs(t, err, marten.ErrInvalidArgument, "%s=%s", p.Type, p.Value)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "args.env")
	content := "# sproc arguments\nnote=\"hello world\"\ntotal=3\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	pairs, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, []Pair{
		{Name: "note", Type: marten.DbTypeText, Value: "hello world"},
		{Name: "total", Type: marten.DbTypeText, Value: "3"},
	}, pairs)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read params file")
}

func TestMerge(t *testing.T) {
	file := []Pair{{Name: "a", Value: "file"}, {Name: "b", Value: "file"}}
	cli := []Pair{{Name: "b", Value: "cli"}, {Name: "c", Value: "cli"}}

	assert.Equal(t, []Pair{
		{Name: "a", Value: "file"},
		{Name: "b", Value: "cli"},
		{Name: "c", Value: "cli"},
	}, Merge(file, cli))
}
