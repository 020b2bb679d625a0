package listing

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/ssnukala/sprinkle-crud6-sub001/core/relation"
	"github.com/ssnukala/sprinkle-crud6-sub001/core/schema"
	"go.uber.org/zap"
)

// Executor runs parameterized queries against a record store and returns
// rows as schema.Record maps. Implementations live in the sqlite and
// postgres packages; query-execution errors propagate unmodified, the engine
// adds no retry logic.
type Executor interface {
	Query(ctx context.Context, sqlText string, args []any) ([]schema.Record, error)
	QueryValue(ctx context.Context, sqlText string, args []any) (any, error)
}

// Result is the outcome of a listing request.
type Result struct {
	Count         int64           `json:"count"`
	CountFiltered int64           `json:"count_filtered"`
	Rows          []schema.Record `json:"rows"`
}

// Engine builds and executes listing queries for schema-driven models.
type Engine struct {
	executor Executor
	dialect  Dialect
	limits   Limits
	logger   *zap.Logger
}

// NewEngine creates a listing engine over an executor and dialect.
func NewEngine(executor Executor, dialect Dialect, limits Limits, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limits.DefaultSize <= 0 {
		limits = DefaultLimits()
	}
	return &Engine{executor: executor, dialect: dialect, limits: limits, logger: logger}
}

// List returns one page of a model's records, projected to the listable
// field set.
func (e *Engine) List(ctx context.Context, doc *schema.SchemaDocument, p Params) (*Result, error) {
	spec := &querySpec{
		doc:     doc,
		table:   doc.Table,
		columns: doc.ListableFields(),
	}
	return e.run(ctx, spec, p)
}

// ListRelated returns one page of the records reached through a resolved
// relation plan, scoped to the given parent record id. The id is always a
// bound parameter.
func (e *Engine) ListRelated(ctx context.Context, plan *relation.Plan, parentID any, p Params) (*Result, error) {
	spec := &querySpec{
		doc:        plan.Target,
		table:      plan.Target.Table,
		columns:    plan.ListColumns(),
		joins:      plan.Joins,
		scopeTable: plan.FilterTable,
		scopeCol:   plan.FilterColumn,
		scopeValue: parentID,
	}
	return e.run(ctx, spec, p)
}

// querySpec is the trusted half of a listing query: table, projection,
// joins, and relation scope, all taken from schema documents.
type querySpec struct {
	doc     *schema.SchemaDocument
	table   string
	columns []string
	joins   []relation.Join

	scopeTable string
	scopeCol   string
	scopeValue any
}

func (e *Engine) run(ctx context.Context, spec *querySpec, p Params) (*Result, error) {
	projected, computed := e.projection(spec)
	if len(projected) == 0 && len(computed) == 0 {
		return nil, fmt.Errorf("model %q exposes no listable fields", spec.doc.Model)
	}

	count, err := e.count(ctx, spec, nil)
	if err != nil {
		return nil, err
	}

	filtered, err := e.count(ctx, spec, &p)
	if err != nil {
		return nil, err
	}

	rows, err := e.page(ctx, spec, projected, p)
	if err != nil {
		return nil, err
	}

	if err := e.applyComputed(computed, rows); err != nil {
		return nil, err
	}
	stripAnchor(spec, projected, computed, rows)

	return &Result{Count: count, CountFiltered: filtered, Rows: rows}, nil
}

// stripAnchor removes the primary key from fetched rows when it was selected
// only as an anchor for expression evaluation. A field outside the listable
// set never appears in listing output, the anchor included.
func stripAnchor(spec *querySpec, projected []string, computed map[string]*schema.FieldDefinition, rows []schema.Record) {
	if len(projected) > 0 {
		return
	}
	if _, listable := computed[spec.doc.PrimaryKey]; listable {
		return
	}
	for _, row := range rows {
		delete(row, spec.doc.PrimaryKey)
	}
}

// projection splits the listable set into persisted columns (selected in SQL)
// and computed fields (evaluated over the fetched row).
func (e *Engine) projection(spec *querySpec) (persisted []string, computed map[string]*schema.FieldDefinition) {
	computed = make(map[string]*schema.FieldDefinition)
	for _, name := range spec.columns {
		if name == "" {
			continue
		}
		field, ok := spec.doc.Fields[name]
		if !ok || field == nil {
			continue
		}
		if field.Computed {
			if field.Program() != nil {
				computed[name] = field
			}
			continue
		}
		persisted = append(persisted, name)
	}
	return persisted, computed
}

func (e *Engine) count(ctx context.Context, spec *querySpec, p *Params) (int64, error) {
	b := &builder{dialect: e.dialect}

	var sb strings.Builder
	sb.WriteString("SELECT COUNT(*) FROM ")
	sb.WriteString(e.dialect.QuoteIdentifier(spec.table))
	e.writeJoins(&sb, spec)

	where := e.baseConditions(b, spec)
	if p != nil {
		where = append(where, e.filterConditions(b, spec, *p)...)
	}
	writeWhere(&sb, where)

	value, err := e.executor.QueryValue(ctx, sb.String(), b.args)
	if err != nil {
		return 0, fmt.Errorf("count query failed for model %q: %w", spec.doc.Model, err)
	}
	return toInt64(value)
}

func (e *Engine) page(ctx context.Context, spec *querySpec, columns []string, p Params) ([]schema.Record, error) {
	b := &builder{dialect: e.dialect}

	selects := make([]string, 0, len(columns))
	for _, name := range columns {
		selects = append(selects, fmt.Sprintf("%s AS %s",
			qualify(e.dialect, spec.table, name), e.dialect.QuoteIdentifier(name)))
	}
	if len(selects) == 0 {
		// Every projected field is computed; fetch the primary key so
		// expressions have a row to run against.
		selects = append(selects, fmt.Sprintf("%s AS %s",
			qualify(e.dialect, spec.table, spec.doc.PrimaryKey), e.dialect.QuoteIdentifier(spec.doc.PrimaryKey)))
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(selects, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(e.dialect.QuoteIdentifier(spec.table))
	e.writeJoins(&sb, spec)

	where := append(e.baseConditions(b, spec), e.filterConditions(b, spec, p)...)
	writeWhere(&sb, where)

	sb.WriteString(" ORDER BY ")
	sb.WriteString(strings.Join(e.orderBy(spec, p), ", "))

	page, size := p.bounded(e.limits)
	sb.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", size, (page-1)*size))

	e.logger.Debug("Executing listing query",
		zap.String("model", spec.doc.Model),
		zap.String("sql", sb.String()),
		zap.Any("params", b.args))

	rows, err := e.executor.Query(ctx, sb.String(), b.args)
	if err != nil {
		return nil, fmt.Errorf("listing query failed for model %q: %w", spec.doc.Model, err)
	}
	if rows == nil {
		rows = []schema.Record{}
	}
	return rows, nil
}

// baseConditions returns the conditions applied to filtered and unfiltered
// counts alike: relation scoping and soft-delete scoping.
func (e *Engine) baseConditions(b *builder, spec *querySpec) []string {
	var where []string
	if spec.scopeCol != "" {
		where = append(where, fmt.Sprintf("%s = %s",
			qualify(e.dialect, spec.scopeTable, spec.scopeCol), b.bind(spec.scopeValue)))
	}
	if spec.doc.IsSoftDelete() {
		where = append(where, qualify(e.dialect, spec.table, "deleted_at")+" IS NULL")
	}
	return where
}

// filterConditions translates declared filters and free-text search into
// bound SQL conditions. Anything referencing a field outside the filterable
// set is dropped silently: listings stay resilient to stale client state.
func (e *Engine) filterConditions(b *builder, spec *querySpec, p Params) []string {
	filterable := make(map[string]bool)
	for _, name := range spec.doc.FilterableFields() {
		filterable[name] = true
	}

	var where []string
	for _, name := range sortedKeys(p.Filters) {
		if !filterable[name] {
			e.logger.Debug("Dropping filter outside the filterable set",
				zap.String("model", spec.doc.Model), zap.String("field", name))
			continue
		}
		where = append(where, fmt.Sprintf("%s = %s",
			qualify(e.dialect, spec.table, name), b.bind(p.Filters[name])))
	}

	if p.Search != "" && len(filterable) > 0 {
		var likes []string
		for _, name := range spec.doc.FilterableFields() {
			likes = append(likes, fmt.Sprintf("%s LIKE %s",
				qualify(e.dialect, spec.table, name), b.bind("%"+p.Search+"%")))
		}
		where = append(where, "("+strings.Join(likes, " OR ")+")")
	}

	return where
}

// orderBy builds the ORDER BY list: requested sorts restricted to the
// sortable set, then the primary key as an implicit final tiebreaker so
// pagination stays stable across requests.
func (e *Engine) orderBy(spec *querySpec, p Params) []string {
	sortable := make(map[string]bool)
	for _, name := range spec.doc.SortableFields() {
		sortable[name] = true
	}

	var clauses []string
	pkApplied := false
	for _, name := range sortedKeys(p.Sorts) {
		direction := p.Sorts[name]
		if !sortable[name] || !direction.Valid() {
			e.logger.Debug("Dropping sort outside the sortable set",
				zap.String("model", spec.doc.Model), zap.String("field", name))
			continue
		}
		clauses = append(clauses, fmt.Sprintf("%s %s",
			qualify(e.dialect, spec.table, name), strings.ToUpper(string(direction))))
		if name == spec.doc.PrimaryKey {
			pkApplied = true
		}
	}
	if !pkApplied {
		clauses = append(clauses, qualify(e.dialect, spec.table, spec.doc.PrimaryKey)+" ASC")
	}
	return clauses
}

func (e *Engine) writeJoins(sb *strings.Builder, spec *querySpec) {
	for _, join := range spec.joins {
		sb.WriteString(fmt.Sprintf(" JOIN %s ON %s = %s",
			e.dialect.QuoteIdentifier(join.Table),
			qualify(e.dialect, join.Table, join.LeftColumn),
			qualify(e.dialect, join.RightTable, join.RightColumn)))
	}
}

// applyComputed evaluates computed-field expressions over each fetched row.
func (e *Engine) applyComputed(computed map[string]*schema.FieldDefinition, rows []schema.Record) error {
	if len(computed) == 0 {
		return nil
	}
	for _, row := range rows {
		env := map[string]any(row)
		for name, field := range computed {
			value, err := expr.Run(field.Program(), env)
			if err != nil {
				return fmt.Errorf("failed to evaluate computed field %q: %w", name, err)
			}
			row[name] = value
		}
	}
	return nil
}

// builder tracks bound parameters and hands out dialect placeholders.
type builder struct {
	dialect Dialect
	args    []any
}

func (b *builder) bind(value any) string {
	b.args = append(b.args, value)
	return b.dialect.Placeholder(len(b.args))
}

func writeWhere(sb *strings.Builder, conditions []string) {
	if len(conditions) == 0 {
		return
	}
	sb.WriteString(" WHERE ")
	sb.WriteString(strings.Join(conditions, " AND "))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case []byte:
		var n int64
		if _, err := fmt.Sscan(string(v), &n); err != nil {
			return 0, fmt.Errorf("unexpected count value %q", v)
		}
		return n, nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("unexpected count type %T", value)
	}
}
