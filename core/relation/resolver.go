// Package relation resolves a model's declared detail listings into join
// plans. A plan states exactly which tables join on which columns and which
// pivot column is filtered by the parent record's primary key; every
// identifier in it comes from validated schema documents, never from the
// caller. When no declaration matches, resolution fails instead of falling
// back to a guessed column name.
package relation

import (
	"context"
	"fmt"

	"github.com/ssnukala/sprinkle-crud6-sub001/core/schema"
	"go.uber.org/zap"
)

// PlanKind distinguishes the shapes a resolved relation can take.
type PlanKind string

const (
	// PlanDirect filters the related table by a foreign key column pointing
	// at the parent.
	PlanDirect PlanKind = "direct"
	// PlanPivot joins one pivot table between parent and related rows.
	PlanPivot PlanKind = "pivot"
	// PlanChained joins through an intermediate many-to-many relation:
	// parent → pivot → intermediate → pivot → related.
	PlanChained PlanKind = "chained"
)

// Join is a single INNER JOIN step. Left and Right are fully qualified
// {table, column} pairs taken from trusted schema declarations.
type Join struct {
	Table       string
	LeftColumn  string
	RightTable  string
	RightColumn string
}

// Plan is the join/filter recipe for listing records of a relation. The
// listing engine turns it into SQL; the parent record id is always a bound
// parameter, never interpolated.
type Plan struct {
	Relation string
	Kind     PlanKind
	Parent   *schema.SchemaDocument
	Target   *schema.SchemaDocument
	Detail   *schema.DetailDefinition

	// Joins are applied in order starting from the target table.
	Joins []Join

	// FilterTable.FilterColumn = <parent id> scopes the listing.
	FilterTable  string
	FilterColumn string
}

// SchemaFunc returns the normalized schema document for a model. The resolver
// uses it to load related and intermediate model schemas.
type SchemaFunc func(ctx context.Context, model string) (*schema.SchemaDocument, error)

// Resolver builds join plans from relationship declarations.
type Resolver struct {
	schemas SchemaFunc
	logger  *zap.Logger
}

// NewResolver creates a resolver backed by the given schema lookup.
func NewResolver(schemas SchemaFunc, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{schemas: schemas, logger: logger}
}

// Resolve determines how the named relation of a parent model is reached and
// produces the corresponding plan. Resolution order: a detail declaration
// with a foreign_key is a direct relation; otherwise a same-named
// many-to-many relationship on the parent is a pivot relation; otherwise a
// many-to-many relationship reachable through exactly one intermediate
// many-to-many relation is a chained relation. Anything else fails with the
// missing-relationship error.
func (r *Resolver) Resolve(ctx context.Context, parent *schema.SchemaDocument, name string) (*Plan, error) {
	detail := parent.Detail(name)
	if detail == nil {
		return nil, &schema.MissingRelationshipError{
			Model:    parent.Model,
			Relation: name,
			Reason:   "no detail declaration",
		}
	}

	target, err := r.schemas(ctx, detail.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to load related schema %q: %w", detail.Model, err)
	}

	if detail.ForeignKey != nil {
		r.logger.Debug("Resolved direct relation",
			zap.String("model", parent.Model),
			zap.String("relation", name),
			zap.String("foreign_key", *detail.ForeignKey))
		return &Plan{
			Relation:     name,
			Kind:         PlanDirect,
			Parent:       parent,
			Target:       target,
			Detail:       detail,
			FilterTable:  target.Table,
			FilterColumn: *detail.ForeignKey,
		}, nil
	}

	if rel := parent.Relationship(name); rel != nil {
		if rel.Type != schema.RelationManyToMany {
			return nil, &schema.MissingRelationshipError{
				Model:    parent.Model,
				Relation: name,
				Reason:   fmt.Sprintf("relationship is %q, expected %q when detail omits foreign_key", rel.Type, schema.RelationManyToMany),
			}
		}
		r.logger.Debug("Resolved pivot relation",
			zap.String("model", parent.Model),
			zap.String("relation", name),
			zap.String("pivot_table", rel.PivotTable))
		return &Plan{
			Relation: name,
			Kind:     PlanPivot,
			Parent:   parent,
			Target:   target,
			Detail:   detail,
			Joins: []Join{{
				Table:       rel.PivotTable,
				LeftColumn:  rel.RelatedKey,
				RightTable:  target.Table,
				RightColumn: target.PrimaryKey,
			}},
			FilterTable:  rel.PivotTable,
			FilterColumn: rel.ForeignKey,
		}, nil
	}

	return r.resolveChained(ctx, parent, target, detail, name)
}

// resolveChained finds the requested relation behind one intermediate
// many-to-many relation. The walk is capped at two hops: the only known use
// case (e.g. permissions reachable through roles) needs exactly two, and an
// unbounded walk over configuration buys nothing but risk.
func (r *Resolver) resolveChained(ctx context.Context, parent, target *schema.SchemaDocument, detail *schema.DetailDefinition, name string) (*Plan, error) {
	for _, intermediate := range parent.Relationships {
		if intermediate.Type != schema.RelationManyToMany || intermediate.Name == name {
			continue
		}

		// A relationship's name names the related model, so the intermediate
		// schema is looked up by it.
		hop, err := r.schemas(ctx, intermediate.Name)
		if err != nil {
			r.logger.Debug("Skipping intermediate relation without schema",
				zap.String("model", parent.Model),
				zap.String("intermediate", intermediate.Name),
				zap.Error(err))
			continue
		}

		second := hop.Relationship(name)
		if second == nil || second.Type != schema.RelationManyToMany {
			continue
		}

		r.logger.Debug("Resolved chained relation",
			zap.String("model", parent.Model),
			zap.String("relation", name),
			zap.String("intermediate", intermediate.Name))
		return &Plan{
			Relation: name,
			Kind:     PlanChained,
			Parent:   parent,
			Target:   target,
			Detail:   detail,
			Joins: []Join{
				{
					Table:       second.PivotTable,
					LeftColumn:  second.RelatedKey,
					RightTable:  target.Table,
					RightColumn: target.PrimaryKey,
				},
				{
					Table:       hop.Table,
					LeftColumn:  hop.PrimaryKey,
					RightTable:  second.PivotTable,
					RightColumn: second.ForeignKey,
				},
				{
					Table:       intermediate.PivotTable,
					LeftColumn:  intermediate.RelatedKey,
					RightTable:  hop.Table,
					RightColumn: hop.PrimaryKey,
				},
			},
			FilterTable:  intermediate.PivotTable,
			FilterColumn: intermediate.ForeignKey,
		}, nil
	}

	return nil, &schema.MissingRelationshipError{
		Model:    parent.Model,
		Relation: name,
		Reason:   "no matching relationship declaration within two hops",
	}
}

// ListColumns returns the column allow-list for the related listing: the
// detail's explicit list_fields restricted to persisted fields the target
// actually declares, or the target's own listable set when the detail does
// not name any.
func (p *Plan) ListColumns() []string {
	if len(p.Detail.ListFields) == 0 {
		return p.Target.ListableFields()
	}
	var out []string
	for _, name := range p.Detail.ListFields {
		field, ok := p.Target.Fields[name]
		if !ok || field == nil || !field.Persisted() {
			continue
		}
		out = append(out, name)
	}
	return out
}
