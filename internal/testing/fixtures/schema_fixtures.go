package fixtures

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/apereiratl/marten/pkg/marten"
)

// SchemaFixtureBuilder builds the SQL for a schema of document tables and
// the stored procedures that write to them.
//
// Example usage:
//
//	fixture := NewSchemaFixtureBuilder("app").
//	    AddDocumentTable("target").
//	    AddUpsertFunction("target").
//	    AddSQL(testing.TraceCallbackSQL("app"))
//	err := fixture.Apply(ctx, pool)
type SchemaFixtureBuilder struct {
	schema     string
	statements []string
}

// NewSchemaFixtureBuilder starts a fixture that (re)creates schema.
func NewSchemaFixtureBuilder(schema string) *SchemaFixtureBuilder {
	quoted := pgx.Identifier{schema}.Sanitize()
	return &SchemaFixtureBuilder{
		schema: schema,
		statements: []string{
			fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", quoted),
			fmt.Sprintf("CREATE SCHEMA %s", quoted),
		},
	}
}

// Schema returns the schema name.
func (b *SchemaFixtureBuilder) Schema() string {
	return b.schema
}

// Table returns the qualified name of a document table created by the fixture.
func (b *SchemaFixtureBuilder) Table(name string) marten.DbObjectName {
	return marten.NewDbObjectName(b.schema + ".mt_doc_" + name)
}

// UpsertFunction returns the qualified name of the upsert function for a table.
func (b *SchemaFixtureBuilder) UpsertFunction(name string) marten.DbObjectName {
	return marten.NewDbObjectName(b.schema + ".mt_upsert_" + name)
}

// AddDocumentTable adds mt_doc_<name>(id uuid primary key, data jsonb, version int).
func (b *SchemaFixtureBuilder) AddDocumentTable(name string) *SchemaFixtureBuilder {
	b.statements = append(b.statements, fmt.Sprintf(`CREATE TABLE %s (
    id      uuid PRIMARY KEY,
    data    jsonb NOT NULL,
    version integer NOT NULL DEFAULT 1
)`, b.Table(name).QualifiedName()))
	return b
}

// AddUpsertFunction adds mt_upsert_<name>(doc jsonb, docid uuid), which inserts
// or replaces a document and returns its new version.
func (b *SchemaFixtureBuilder) AddUpsertFunction(name string) *SchemaFixtureBuilder {
	b.statements = append(b.statements, fmt.Sprintf(`CREATE FUNCTION %s(doc jsonb, docid uuid)
RETURNS integer LANGUAGE sql AS $$
    INSERT INTO %s AS t (id, data) VALUES (docid, doc)
    ON CONFLICT (id) DO UPDATE SET data = excluded.data, version = t.version + 1
    RETURNING version;
$$`, b.UpsertFunction(name).QualifiedName(), b.Table(name).QualifiedName()))
	return b
}

// AddSQL appends arbitrary statements.
func (b *SchemaFixtureBuilder) AddSQL(sql string) *SchemaFixtureBuilder {
	b.statements = append(b.statements, strings.TrimSpace(sql))
	return b
}

// Build returns the statements separated by semicolons.
func (b *SchemaFixtureBuilder) Build() string {
	return strings.Join(b.statements, ";\n") + ";"
}

// Apply runs the fixture. Statements run one at a time so a failure names
// the statement that caused it.
func (b *SchemaFixtureBuilder) Apply(ctx context.Context, conn marten.Querier) error {
	for _, stmt := range b.statements {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply fixture statement '%s': %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

// DocumentStore is the fixture most session tests use: one "target" table
// with its upsert function.
func DocumentStore(schema string) *SchemaFixtureBuilder {
	return NewSchemaFixtureBuilder(schema).
		AddDocumentTable("target").
		AddUpsertFunction("target")
}
