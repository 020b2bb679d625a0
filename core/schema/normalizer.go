package schema

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
)

// legacyBooleanTypes maps shorthand boolean type declarations still found in
// older schema documents to the canonical {type, ui} pair.
var legacyBooleanTypes = map[string]UIHint{
	"boolean-tgl": UIHintToggle,
	"boolean-chk": UIHintCheckbox,
	"boolean":     UIHintCheckbox,
	"boolean-yn":  UIHintSelect,
	"boolean-sel": UIHintSelect,
}

// Normalize rewrites a validated schema document into its canonical form,
// in place, and returns it. It fills omitted defaults without overwriting
// explicit values, rewrites legacy boolean type shorthands, computes the
// per-field exposure policy, and compiles computed-field expressions.
//
// Normalize is idempotent: normalizing a normalized document yields an
// identical document.
func Normalize(doc *SchemaDocument) (*SchemaDocument, error) {
	normalizeDefaults(doc)

	var issues []Issue
	for name, field := range doc.Fields {
		if field == nil {
			continue
		}
		normalizeFieldType(field)
		field.Policy = &FieldPolicy{
			Sortable:   field.Sortable,
			Filterable: field.Filterable,
			Listable:   field.Listable || field.InContext(ContextList),
		}
		if field.Computed && field.Expression != "" {
			program, err := expr.Compile(field.Expression, expr.AllowUndefinedVariables())
			if err != nil {
				issues = append(issues, Issue{
					Code:    "INVALID_EXPRESSION",
					Message: fmt.Sprintf("computed field %q has an invalid expression: %v", name, err),
					Path:    "fields." + name + ".expression",
				})
				continue
			}
			field.program = program
		}
	}

	if len(issues) > 0 {
		return nil, &InvalidSchemaError{Model: doc.Model, Issues: issues}
	}
	return doc, nil
}

func normalizeDefaults(doc *SchemaDocument) {
	if doc.PrimaryKey == "" {
		doc.PrimaryKey = "id"
	}
	if doc.Timestamps == nil {
		doc.Timestamps = boolPtr(true)
	}
	if doc.SoftDelete == nil {
		doc.SoftDelete = boolPtr(false)
	}
	if doc.DefaultActions == nil {
		doc.DefaultActions = boolPtr(true)
	}
	if doc.Title == "" {
		doc.Title = titleFromModel(doc.Model)
	}
	if doc.SingularTitle == "" {
		doc.SingularTitle = doc.Title
	}
}

// normalizeFieldType rewrites legacy boolean shorthands into the canonical
// {type: boolean, ui: ...} form. An explicitly set ui is never overwritten.
func normalizeFieldType(field *FieldDefinition) {
	hint, ok := legacyBooleanTypes[string(field.Type)]
	if !ok {
		return
	}
	field.Type = FieldTypeBoolean
	if field.UI == "" {
		field.UI = hint
	}
}

func titleFromModel(model string) string {
	words := strings.FieldsFunc(model, func(r rune) bool {
		return r == '_' || r == '-'
	})
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}

func boolPtr(b bool) *bool { return &b }
