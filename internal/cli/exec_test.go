package cli

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apereiratl/marten/pkg/marten"
)

func TestFormatValue(t *testing.T) {
	id := uuid.MustParse("6c1f0f34-5d1c-4a32-9d1e-1c6c07a3b8d2")

	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"nil", nil, "NULL"},
		{"string", "abc", "abc"},
		{"int", int32(42), "42"},
		{"bool", true, "true"},
		{"bytes", []byte{0xde, 0xad}, `\xdead`},
		{"uuid bytes", [16]byte(id), id.String()},
		{"json object", map[string]any{"total": 3.0}, `{"total":3}`},
		{"json array", []any{1.0, "a"}, `[1,"a"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatValue(tt.value))
		})
	}
}

func TestResultSet_Print(t *testing.T) {
	t.Run("rows", func(t *testing.T) {
		var out bytes.Buffer
		rs := &resultSet{
			columns: []string{"id", "name"},
			rows:    [][]any{{int32(1), "first"}, {int32(22), nil}},
		}
		require.NoError(t, rs.Print(&out))

		assert.Equal(t, "id  name\n1   first\n22  NULL\n(2 rows)\n", out.String())
	})

	t.Run("single row", func(t *testing.T) {
		var out bytes.Buffer
		rs := &resultSet{columns: []string{"count"}, rows: [][]any{{int64(0)}}}
		require.NoError(t, rs.Print(&out))

		assert.Equal(t, "count\n0\n(1 row)\n", out.String())
	})

	t.Run("command tag only", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, (&resultSet{tag: "INSERT 0 1"}).Print(&out))
		assert.Equal(t, "INSERT 0 1\n", out.String())
	})
}

func TestExecCmd_Flags(t *testing.T) {
	cmd := newExecCmd()

	for _, name := range []string{"arg", "mode", "isolation", "retries", "command-timeout", "connection", "host", "metrics-file"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "flag --%s", name)
	}
	assert.Equal(t, "h", cmd.Flags().Lookup("host").Shorthand)
}

func TestExecCmd_UsageErrors(t *testing.T) {
	_, err := runCLI(t, "exec")
	require.Error(t, err)
	assert.Equal(t, marten.ExitUsageError, marten.ExitCodeForError(err))

	_, err = runCLI(t, "exec", "select 1", "--no-such-flag")
	require.Error(t, err)
	assert.Equal(t, marten.ExitUsageError, marten.ExitCodeForError(err))
}

func TestExecCmd_InvalidSessionMode(t *testing.T) {
	clearConnectionEnv(t)

	_, err := runCLI(t, "exec", "select 1",
		"--config-dir", t.TempDir(),
		"--connection", "postgresql://localhost/postgres",
		"--mode", "external")
	require.Error(t, err)
	assert.Equal(t, marten.ExitConfigError, marten.ExitCodeForError(err))
}

// runCLI runs the command tree with args and returns what it wrote to stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})

	err := root.Execute()
	return out.String(), err
}
