package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apereiratl/marten/internal/params"
	"github.com/apereiratl/marten/pkg/marten"
)

func TestLoadSprocArguments(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.env")
	prod := filepath.Join(dir, "prod.env")
	require.NoError(t, os.WriteFile(base, []byte("region=us\nnote=base\n"), 0o600))
	require.NoError(t, os.WriteFile(prod, []byte("region=eu\n"), 0o600))

	pairs, err := loadSprocArguments([]string{base, prod}, []string{"note=cli", "total:integer=3"})
	require.NoError(t, err)

	assert.Equal(t, []params.Pair{
		{Name: "note", Type: marten.DbTypeText, Value: "cli"},
		{Name: "region", Type: marten.DbTypeText, Value: "eu"},
		{Name: "total", Type: marten.DbTypeInteger, Value: "3"},
	}, pairs)
}

func TestLoadSprocArguments_Errors(t *testing.T) {
	_, err := loadSprocArguments([]string{filepath.Join(t.TempDir(), "missing.env")}, nil)
	assert.Error(t, err)

	_, err = loadSprocArguments(nil, []string{"novalue"})
	assert.ErrorIs(t, err, marten.ErrInvalidArgument)
}

func TestBuildSprocBatch(t *testing.T) {
	id := uuid.New()
	pairs := []params.Pair{
		{Name: "doc", Type: marten.DbTypeJSONB, Value: `{"total":3}`},
		{Name: "docid", Type: marten.DbTypeUUID, Value: id.String()},
		{Name: "qty", Type: marten.DbTypeInteger, Value: "7"},
		{Name: "note", Type: marten.DbTypeText, Value: "rush"},
	}

	var result any
	b, err := buildSprocBatch(marten.NewDbObjectName("app.mt_upsert_order"), pairs, &result)
	require.NoError(t, err)

	cmd, err := b.BuildCommand()
	require.NoError(t, err)

	assert.Equal(t,
		`select "app"."mt_upsert_order"(doc := @p0::jsonb, docid := @p1::uuid, qty := @p2::integer, note := @p3::text)`,
		cmd.Text)
	require.Len(t, cmd.Parameters, 4)
	assert.Equal(t, `{"total":3}`, cmd.Parameters[0].Value)
	assert.Equal(t, id, cmd.Parameters[1].Value)
	assert.Equal(t, int32(7), cmd.Parameters[2].Value)
	assert.Equal(t, "rush", cmd.Parameters[3].Value)
	assert.True(t, b.HasCallbacks())
}

func TestBuildSprocBatch_InvalidValue(t *testing.T) {
	var result any

	_, err := buildSprocBatch(marten.NewDbObjectName("app.fn"),
		[]params.Pair{{Name: "doc", Type: marten.DbTypeJSONB, Value: "{"}}, &result)
	assert.ErrorIs(t, err, marten.ErrInvalidArgument)

	_, err = buildSprocBatch(marten.NewDbObjectName("app.fn"),
		[]params.Pair{{Name: "n", Type: marten.DbTypeInteger, Value: "many"}}, &result)
	assert.ErrorIs(t, err, marten.ErrInvalidArgument)
}

func TestSprocCmd_UsageErrors(t *testing.T) {
	_, err := runCLI(t, "sproc")
	require.Error(t, err)
	assert.Equal(t, marten.ExitUsageError, marten.ExitCodeForError(err))

	_, err = runCLI(t, "sproc", "app.fn", "--param", "x:money=1")
	require.Error(t, err)
	assert.Equal(t, marten.ExitUsageError, marten.ExitCodeForError(err))
}
