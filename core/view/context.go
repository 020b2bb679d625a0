// Package view projects a normalized schema document into context-specific
// views (list, form, detail, metadata) and manages the action set exposed per
// scope. Projection is fail-closed: a field or action that is not explicitly
// tagged for a context never appears in it.
package view

import (
	"strings"

	"github.com/ssnukala/sprinkle-crud6-sub001/core/schema"
)

// View is a context-scoped slice of a schema document, safe to serialize to
// an external caller. Fields holds the union of every requested context's
// field selection; Meta holds non-field context data merged shallowly.
type View struct {
	Model         string                             `json:"model"`
	Table         string                             `json:"table"`
	PrimaryKey    string                             `json:"primary_key"`
	Title         string                             `json:"title,omitempty"`
	SingularTitle string                             `json:"singular_title,omitempty"`
	Contexts      []string                           `json:"contexts"`
	Fields        map[string]*schema.FieldDefinition `json:"fields"`
	Actions       []*schema.ActionDefinition         `json:"actions,omitempty"`
	Meta          map[string]any                     `json:"meta,omitempty"`
}

// SplitContexts expands requested context names, accepting comma-joined
// entries such as "list,form", and drops blanks.
func SplitContexts(contexts []string) []string {
	var out []string
	for _, entry := range contexts {
		for _, part := range strings.Split(entry, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}

// BuildView projects a normalized document into the union of the requested
// contexts. Field maps merge key by key: a field selected by an earlier
// context is never erased when a later context's selection lacks it. Non-field
// context data merges shallowly into Meta, and cannot touch the field union.
func BuildView(doc *schema.SchemaDocument, contexts []string) *View {
	requested := SplitContexts(contexts)

	v := &View{
		Model:         doc.Model,
		Table:         doc.Table,
		PrimaryKey:    doc.PrimaryKey,
		Title:         doc.Title,
		SingularTitle: doc.SingularTitle,
		Contexts:      requested,
		Fields:        make(map[string]*schema.FieldDefinition),
	}

	for _, context := range requested {
		for name, field := range selectFields(doc, context) {
			if _, exists := v.Fields[name]; !exists {
				v.Fields[name] = field
			}
		}
		if extra, ok := doc.Contexts[context]; ok {
			v.mergeMeta(extra)
		}
	}

	seen := make(map[string]bool)
	for _, context := range requested {
		if context != schema.ScopeList && context != schema.ScopeDetail {
			continue
		}
		for _, action := range ActionsForScope(doc, context, nil) {
			if !seen[action.Key] {
				seen[action.Key] = true
				v.Actions = append(v.Actions, action)
			}
		}
	}

	return v
}

// selectFields returns the fields tagged for a context, with sensitive fields
// stripped from contexts they have no business in. Password fields render in
// forms only, regardless of tagging.
func selectFields(doc *schema.SchemaDocument, context string) map[string]*schema.FieldDefinition {
	selected := make(map[string]*schema.FieldDefinition)
	for name, field := range doc.Fields {
		if field == nil || !field.InContext(context) {
			continue
		}
		if field.Type == schema.FieldTypePassword && context != schema.ContextForm {
			continue
		}
		selected[name] = field
	}
	return selected
}

func (v *View) mergeMeta(extra map[string]any) {
	for key, value := range extra {
		if key == "fields" {
			// Context blocks may not replace the merged field union.
			continue
		}
		if v.Meta == nil {
			v.Meta = make(map[string]any)
		}
		v.Meta[key] = value
	}
}
