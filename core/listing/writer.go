package listing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ssnukala/sprinkle-crud6-sub001/core/schema"
)

// Write-path SQL generation for collaborators. Create/update endpoints live
// outside this engine, but the column sets they persist must obey the same
// schema rules as everything else: computed fields are virtual and never
// reach an INSERT or UPDATE, auto-increment columns are never inserted, and
// unknown fields are a hard error rather than a silently widened statement.

// InsertColumns returns the columns a collaborator may insert for a model:
// persisted, non-auto-increment fields, sorted for deterministic SQL.
func InsertColumns(doc *schema.SchemaDocument) []string {
	var out []string
	for name, field := range doc.Fields {
		if name == "" || field == nil || !field.Persisted() || field.AutoIncrement {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// UpdateColumns returns the columns a collaborator may update: persisted,
// non-auto-increment fields that are not the primary key.
func UpdateColumns(doc *schema.SchemaDocument) []string {
	var out []string
	for _, name := range InsertColumns(doc) {
		if name != doc.PrimaryKey {
			out = append(out, name)
		}
	}
	return out
}

// BuildInsert generates a parameterized INSERT for one record. Fields absent
// from the schema or excluded from the insertable column set fail loudly.
func BuildInsert(dialect Dialect, doc *schema.SchemaDocument, record schema.Record) (string, []any, error) {
	if len(record) == 0 {
		return "", nil, fmt.Errorf("no fields provided for insert into model %q", doc.Model)
	}

	insertable := make(map[string]bool)
	for _, name := range InsertColumns(doc) {
		insertable[name] = true
	}

	b := &builder{dialect: dialect}
	var columns, placeholders []string
	for _, name := range sortedKeys(record) {
		if err := checkWritable(doc, name, insertable); err != nil {
			return "", nil, err
		}
		columns = append(columns, dialect.QuoteIdentifier(name))
		placeholders = append(placeholders, b.bind(record[name]))
	}

	sqlText := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		dialect.QuoteIdentifier(doc.Table),
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "))
	return sqlText, b.args, nil
}

// BuildUpdate generates a parameterized UPDATE for one record identified by
// its primary key.
func BuildUpdate(dialect Dialect, doc *schema.SchemaDocument, updates schema.Record, id any) (string, []any, error) {
	if len(updates) == 0 {
		return "", nil, fmt.Errorf("no fields provided for update of model %q", doc.Model)
	}

	updatable := make(map[string]bool)
	for _, name := range UpdateColumns(doc) {
		updatable[name] = true
	}

	b := &builder{dialect: dialect}
	var sets []string
	for _, name := range sortedKeys(updates) {
		if err := checkWritable(doc, name, updatable); err != nil {
			return "", nil, err
		}
		sets = append(sets, fmt.Sprintf("%s = %s", dialect.QuoteIdentifier(name), b.bind(updates[name])))
	}

	sqlText := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		dialect.QuoteIdentifier(doc.Table),
		strings.Join(sets, ", "),
		dialect.QuoteIdentifier(doc.PrimaryKey),
		b.bind(id))
	return sqlText, b.args, nil
}

func checkWritable(doc *schema.SchemaDocument, name string, allowed map[string]bool) error {
	field, declared := doc.Fields[name]
	if !declared || field == nil {
		return fmt.Errorf("field %q is not declared in model %q", name, doc.Model)
	}
	if field.Computed {
		return fmt.Errorf("field %q of model %q is computed and cannot be persisted", name, doc.Model)
	}
	if !allowed[name] {
		return fmt.Errorf("field %q of model %q is not writable", name, doc.Model)
	}
	return nil
}
