package listing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssnukala/sprinkle-crud6-sub001/core/relation"
	"github.com/ssnukala/sprinkle-crud6-sub001/core/schema"
)

type capturedQuery struct {
	sql  string
	args []any
}

// fakeExecutor records every statement and returns canned rows and counts.
type fakeExecutor struct {
	queries []capturedQuery
	values  []capturedQuery
	rows    []schema.Record
	counts  []any
}

func (f *fakeExecutor) Query(ctx context.Context, sqlText string, args []any) ([]schema.Record, error) {
	f.queries = append(f.queries, capturedQuery{sql: sqlText, args: args})
	return f.rows, nil
}

func (f *fakeExecutor) QueryValue(ctx context.Context, sqlText string, args []any) (any, error) {
	f.values = append(f.values, capturedQuery{sql: sqlText, args: args})
	if len(f.counts) == 0 {
		return int64(0), nil
	}
	value := f.counts[0]
	f.counts = f.counts[1:]
	return value, nil
}

func listingDocument(t *testing.T) *schema.SchemaDocument {
	t.Helper()
	doc := &schema.SchemaDocument{
		Model: "users",
		Table: "users",
		Fields: map[string]*schema.FieldDefinition{
			"id":        {Type: schema.FieldTypeInteger, AutoIncrement: true, Sortable: true, Listable: true},
			"name":      {Type: schema.FieldTypeString, Sortable: true, Filterable: true, Listable: true},
			"email":     {Type: schema.FieldTypeEmail, Filterable: true, ShowIn: schema.StringList{"list"}},
			"secret":    {Type: schema.FieldTypePassword},
			"greeting":  {Type: schema.FieldTypeString, Computed: true, Listable: true, Expression: `name + "!"`},
			"note":      {Type: schema.FieldTypeText},
			"flagged":   {Type: schema.FieldTypeBoolean},
			"joined_at": {Type: schema.FieldTypeDateTime, Sortable: true},
		},
	}
	_, err := schema.Normalize(doc)
	require.NoError(t, err)
	return doc
}

func newTestEngine(exec *fakeExecutor) *Engine {
	return NewEngine(exec, SQLiteDialect{}, DefaultLimits(), nil)
}

func TestList_ProjectsOnlyListableColumns(t *testing.T) {
	exec := &fakeExecutor{}
	_, err := newTestEngine(exec).List(context.Background(), listingDocument(t), Params{})
	require.NoError(t, err)

	require.Len(t, exec.queries, 1)
	assert.Equal(t,
		`SELECT "users"."email" AS "email", "users"."id" AS "id", "users"."name" AS "name" FROM "users" ORDER BY "users"."id" ASC LIMIT 20 OFFSET 0`,
		exec.queries[0].sql)
	assert.Empty(t, exec.queries[0].args)

	// Secret, note, and flagged never opted in and never reach the SQL.
	assert.NotContains(t, exec.queries[0].sql, "secret")
	assert.NotContains(t, exec.queries[0].sql, "note")
	assert.NotContains(t, exec.queries[0].sql, "flagged")
}

func TestList_Counts(t *testing.T) {
	exec := &fakeExecutor{counts: []any{int64(50), []byte("7")}}
	result, err := newTestEngine(exec).List(context.Background(), listingDocument(t), Params{
		Filters: map[string]any{"name": "Ada"},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(50), result.Count)
	assert.Equal(t, int64(7), result.CountFiltered)

	require.Len(t, exec.values, 2)
	assert.Equal(t, `SELECT COUNT(*) FROM "users"`, exec.values[0].sql)
	assert.Empty(t, exec.values[0].args)
	assert.Equal(t, `SELECT COUNT(*) FROM "users" WHERE "users"."name" = ?`, exec.values[1].sql)
	assert.Equal(t, []any{"Ada"}, exec.values[1].args)
}

func TestList_DropsUnknownFilters(t *testing.T) {
	exec := &fakeExecutor{}
	_, err := newTestEngine(exec).List(context.Background(), listingDocument(t), Params{
		Filters: map[string]any{
			"name":   "Ada",
			"secret": "nope",
			"ghost":  1,
		},
	})
	require.NoError(t, err)

	page := exec.queries[0]
	assert.Contains(t, page.sql, `WHERE "users"."name" = ?`)
	assert.NotContains(t, page.sql, "secret")
	assert.NotContains(t, page.sql, "ghost")
	assert.Equal(t, []any{"Ada"}, page.args)
}

func TestList_SearchSpansFilterableFields(t *testing.T) {
	exec := &fakeExecutor{}
	_, err := newTestEngine(exec).List(context.Background(), listingDocument(t), Params{Search: "bob"})
	require.NoError(t, err)

	page := exec.queries[0]
	assert.Contains(t, page.sql, `("users"."email" LIKE ? OR "users"."name" LIKE ?)`)
	assert.Equal(t, []any{"%bob%", "%bob%"}, page.args)
}

func TestList_SortRestrictedToSortableSet(t *testing.T) {
	exec := &fakeExecutor{}
	_, err := newTestEngine(exec).List(context.Background(), listingDocument(t), Params{
		Sorts: map[string]SortDirection{
			"name":  SortDesc,
			"email": SortAsc,          // filterable but not sortable
			"id":    SortDirection(""), // invalid direction
		},
	})
	require.NoError(t, err)

	assert.Contains(t, exec.queries[0].sql, `ORDER BY "users"."name" DESC, "users"."id" ASC`)
}

func TestList_PrimaryKeyTiebreaker(t *testing.T) {
	t.Run("appended when the pk is not sorted", func(t *testing.T) {
		exec := &fakeExecutor{}
		_, err := newTestEngine(exec).List(context.Background(), listingDocument(t), Params{
			Sorts: map[string]SortDirection{"joined_at": SortAsc},
		})
		require.NoError(t, err)
		assert.Contains(t, exec.queries[0].sql, `ORDER BY "users"."joined_at" ASC, "users"."id" ASC`)
	})

	t.Run("omitted when the pk is already sorted", func(t *testing.T) {
		exec := &fakeExecutor{}
		_, err := newTestEngine(exec).List(context.Background(), listingDocument(t), Params{
			Sorts: map[string]SortDirection{"id": SortDesc},
		})
		require.NoError(t, err)
		assert.Contains(t, exec.queries[0].sql, `ORDER BY "users"."id" DESC LIMIT`)
	})
}

func TestList_Pagination(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		exec := &fakeExecutor{}
		_, err := newTestEngine(exec).List(context.Background(), listingDocument(t), Params{Page: 0, Size: 0})
		require.NoError(t, err)
		assert.Contains(t, exec.queries[0].sql, "LIMIT 20 OFFSET 0")
	})

	t.Run("requested page", func(t *testing.T) {
		exec := &fakeExecutor{}
		_, err := newTestEngine(exec).List(context.Background(), listingDocument(t), Params{Page: 3, Size: 10})
		require.NoError(t, err)
		assert.Contains(t, exec.queries[0].sql, "LIMIT 10 OFFSET 20")
	})

	t.Run("size clamped to the maximum", func(t *testing.T) {
		exec := &fakeExecutor{}
		_, err := newTestEngine(exec).List(context.Background(), listingDocument(t), Params{Size: 1000})
		require.NoError(t, err)
		assert.Contains(t, exec.queries[0].sql, "LIMIT 100 OFFSET 0")
	})
}

func TestList_SoftDeleteScope(t *testing.T) {
	doc := listingDocument(t)
	enabled := true
	doc.SoftDelete = &enabled

	exec := &fakeExecutor{}
	_, err := newTestEngine(exec).List(context.Background(), doc, Params{})
	require.NoError(t, err)

	assert.Contains(t, exec.values[0].sql, `WHERE "users"."deleted_at" IS NULL`)
	assert.Contains(t, exec.queries[0].sql, `WHERE "users"."deleted_at" IS NULL`)
}

func TestList_ComputedFieldsEvaluatedOverRows(t *testing.T) {
	exec := &fakeExecutor{rows: []schema.Record{
		{"id": int64(1), "name": "Ada", "email": "ada@example.com"},
	}}
	result, err := newTestEngine(exec).List(context.Background(), listingDocument(t), Params{})
	require.NoError(t, err)

	require.Len(t, result.Rows, 1)
	assert.Equal(t, "Ada!", result.Rows[0]["greeting"])
	// The computed field is never part of the SQL projection.
	assert.NotContains(t, exec.queries[0].sql, "greeting")
}

func TestList_OnlyComputedFieldsSelectsPrimaryKey(t *testing.T) {
	doc := &schema.SchemaDocument{
		Model: "stats",
		Table: "stats",
		Fields: map[string]*schema.FieldDefinition{
			"id":    {Type: schema.FieldTypeInteger},
			"label": {Type: schema.FieldTypeString, Computed: true, Listable: true, Expression: `"row " + string(id)`},
		},
	}
	_, err := schema.Normalize(doc)
	require.NoError(t, err)

	exec := &fakeExecutor{}
	_, err = newTestEngine(exec).List(context.Background(), doc, Params{})
	require.NoError(t, err)

	assert.Contains(t, exec.queries[0].sql, `SELECT "stats"."id" AS "id" FROM "stats"`)
}

func TestList_AnchorColumnStrippedFromRows(t *testing.T) {
	doc := &schema.SchemaDocument{
		Model: "stats",
		Table: "stats",
		Fields: map[string]*schema.FieldDefinition{
			"id":    {Type: schema.FieldTypeInteger},
			"label": {Type: schema.FieldTypeString, Computed: true, Listable: true, Expression: `"row " + string(id)`},
		},
	}
	_, err := schema.Normalize(doc)
	require.NoError(t, err)

	exec := &fakeExecutor{rows: []schema.Record{{"id": int64(7)}}}
	result, err := newTestEngine(exec).List(context.Background(), doc, Params{})
	require.NoError(t, err)

	// The pk was fetched only to feed the expression; it is not listable and
	// must not survive into the output.
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "row 7", result.Rows[0]["label"])
	assert.NotContains(t, result.Rows[0], "id")
}

func TestList_NoListableFields(t *testing.T) {
	doc := &schema.SchemaDocument{
		Model: "vault",
		Table: "vault",
		Fields: map[string]*schema.FieldDefinition{
			"secret": {Type: schema.FieldTypePassword},
		},
	}
	_, err := schema.Normalize(doc)
	require.NoError(t, err)

	_, err = newTestEngine(&fakeExecutor{}).List(context.Background(), doc, Params{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no listable fields")
}

func relatedPlan(t *testing.T) *relation.Plan {
	t.Helper()
	parent := &schema.SchemaDocument{
		Model: "roles",
		Table: "roles",
		Fields: map[string]*schema.FieldDefinition{
			"id": {Type: schema.FieldTypeInteger, Listable: true},
		},
	}
	target := &schema.SchemaDocument{
		Model: "permissions",
		Table: "permissions",
		Fields: map[string]*schema.FieldDefinition{
			"id":   {Type: schema.FieldTypeInteger, Listable: true},
			"slug": {Type: schema.FieldTypeString, Listable: true, Filterable: true},
		},
	}
	_, err := schema.Normalize(parent)
	require.NoError(t, err)
	_, err = schema.Normalize(target)
	require.NoError(t, err)

	return &relation.Plan{
		Relation: "permissions",
		Kind:     relation.PlanPivot,
		Parent:   parent,
		Target:   target,
		Detail:   &schema.DetailDefinition{Model: "permissions"},
		Joins: []relation.Join{{
			Table:       "permission_roles",
			LeftColumn:  "permission_id",
			RightTable:  "permissions",
			RightColumn: "id",
		}},
		FilterTable:  "permission_roles",
		FilterColumn: "role_id",
	}
}

func TestListRelated_PivotQuery(t *testing.T) {
	exec := &fakeExecutor{}
	_, err := newTestEngine(exec).ListRelated(context.Background(), relatedPlan(t), int64(42), Params{})
	require.NoError(t, err)

	page := exec.queries[0]
	assert.Equal(t,
		`SELECT "permissions"."id" AS "id", "permissions"."slug" AS "slug" FROM "permissions"`+
			` JOIN "permission_roles" ON "permission_roles"."permission_id" = "permissions"."id"`+
			` WHERE "permission_roles"."role_id" = ?`+
			` ORDER BY "permissions"."id" ASC LIMIT 20 OFFSET 0`,
		page.sql)
	assert.Equal(t, []any{int64(42)}, page.args)

	// Both counts carry the same scope so Count reflects the relation, not
	// the whole related table.
	for _, value := range exec.values {
		assert.Contains(t, value.sql, `WHERE "permission_roles"."role_id" = ?`)
		assert.Equal(t, []any{int64(42)}, value.args[:1])
	}
}

func TestListRelated_ScopeAndFiltersCompose(t *testing.T) {
	exec := &fakeExecutor{}
	_, err := newTestEngine(exec).ListRelated(context.Background(), relatedPlan(t), int64(42), Params{
		Filters: map[string]any{"slug": "uri_users"},
	})
	require.NoError(t, err)

	page := exec.queries[0]
	assert.Contains(t, page.sql, `WHERE "permission_roles"."role_id" = ? AND "permissions"."slug" = ?`)
	assert.Equal(t, []any{int64(42), "uri_users"}, page.args)
}

func TestPostgresPlaceholderNumbering(t *testing.T) {
	exec := &fakeExecutor{}
	engine := NewEngine(exec, PostgresDialect{}, DefaultLimits(), nil)
	_, err := engine.ListRelated(context.Background(), relatedPlan(t), int64(42), Params{
		Filters: map[string]any{"slug": "uri_users"},
	})
	require.NoError(t, err)

	// Numbering restarts per statement: the filtered count and the page both
	// start from $1.
	assert.Contains(t, exec.values[1].sql, `"permission_roles"."role_id" = $1 AND "permissions"."slug" = $2`)
	assert.Contains(t, exec.queries[0].sql, `"permission_roles"."role_id" = $1 AND "permissions"."slug" = $2`)
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"users"`, SQLiteDialect{}.QuoteIdentifier("users"))
	assert.Equal(t, `"we""ird"`, SQLiteDialect{}.QuoteIdentifier(`we"ird`))
	assert.Equal(t, "$3", PostgresDialect{}.Placeholder(3))
}
