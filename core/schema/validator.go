package schema

import (
	"fmt"
)

// Validator accumulates structural issues found in a schema document. A
// document that fails validation is a configuration defect: the error is
// fatal, surfaced to the caller, and never silently patched.
type Validator struct {
	doc    *SchemaDocument
	issues []Issue
}

// NewValidator creates a validator for a single document.
func NewValidator(doc *SchemaDocument) *Validator {
	return &Validator{doc: doc}
}

// Validate checks the structural invariants of a schema document and returns
// an *InvalidSchemaError carrying every issue found, or nil.
func Validate(doc *SchemaDocument) error {
	return NewValidator(doc).Run()
}

// Run performs the validation and returns the collected issues as an error.
func (v *Validator) Run() error {
	v.issues = v.issues[:0]

	v.checkTopLevel()
	v.checkFields()
	v.checkPermissions()
	v.checkActions()
	v.checkRelationships()
	v.checkDetails()

	if len(v.issues) == 0 {
		return nil
	}
	return &InvalidSchemaError{Model: v.doc.Model, Issues: v.issues}
}

func (v *Validator) addIssue(code, message, path string) {
	v.issues = append(v.issues, Issue{Code: code, Message: message, Path: path})
}

func (v *Validator) checkTopLevel() {
	if v.doc.Model == "" {
		v.addIssue("MISSING_MODEL", "schema must declare a model name", "model")
	}
	if v.doc.Table == "" {
		v.addIssue("MISSING_TABLE", "schema must declare a backing table", "table")
	}
}

func (v *Validator) checkFields() {
	if len(v.doc.Fields) == 0 {
		v.addIssue("NO_FIELDS", "schema must declare at least one field", "fields")
		return
	}
	for name, field := range v.doc.Fields {
		if name == "" {
			v.addIssue("BLANK_FIELD_NAME", "field name must not be empty", "fields")
			continue
		}
		if field == nil {
			v.addIssue("NIL_FIELD", fmt.Sprintf("field %q has no definition", name), "fields."+name)
			continue
		}
		if field.Type == "" {
			v.addIssue("MISSING_FIELD_TYPE", fmt.Sprintf("field %q has no type", name), "fields."+name+".type")
		}
	}
}

func (v *Validator) checkPermissions() {
	for operation, key := range v.doc.Permissions {
		if key == "" {
			v.addIssue("BLANK_PERMISSION_KEY",
				fmt.Sprintf("operation %q declares an empty permission key", operation),
				"permissions."+operation)
		}
	}
}

func (v *Validator) checkActions() {
	seen := make(map[string]bool, len(v.doc.Actions))
	for i, action := range v.doc.Actions {
		path := fmt.Sprintf("actions[%d]", i)
		if action == nil {
			v.addIssue("NIL_ACTION", "action has no definition", path)
			continue
		}
		if action.Key == "" {
			v.addIssue("MISSING_ACTION_KEY", "action must declare a key", path+".key")
		} else if seen[action.Key] {
			v.addIssue("DUPLICATE_ACTION_KEY", fmt.Sprintf("action key %q is declared more than once", action.Key), path+".key")
		} else {
			seen[action.Key] = true
		}
		if len(action.Scope) == 0 {
			v.addIssue("MISSING_ACTION_SCOPE",
				fmt.Sprintf("action %q must declare an explicit scope", action.Key), path+".scope")
		}
		if action.Type == ActionTypeFieldUpdate {
			if action.Field == "" {
				v.addIssue("MISSING_ACTION_FIELD",
					fmt.Sprintf("field_update action %q must name a field", action.Key), path+".field")
			} else if _, ok := v.doc.Fields[action.Field]; !ok {
				v.addIssue("UNKNOWN_ACTION_FIELD",
					fmt.Sprintf("field_update action %q names undeclared field %q", action.Key, action.Field), path+".field")
			}
		}
	}
}

func (v *Validator) checkRelationships() {
	for i, rel := range v.doc.Relationships {
		path := fmt.Sprintf("relationships[%d]", i)
		if rel == nil {
			v.addIssue("NIL_RELATIONSHIP", "relationship has no definition", path)
			continue
		}
		if rel.Name == "" {
			v.addIssue("MISSING_RELATIONSHIP_NAME", "relationship must declare a name", path+".name")
		}
		if rel.Type != RelationManyToMany {
			continue
		}
		if rel.PivotTable == "" {
			v.addIssue("MISSING_PIVOT_TABLE",
				fmt.Sprintf("many-to-many relationship %q must declare pivot_table", rel.Name), path+".pivot_table")
		}
		if rel.ForeignKey == "" {
			v.addIssue("MISSING_PIVOT_FOREIGN_KEY",
				fmt.Sprintf("many-to-many relationship %q must declare foreign_key", rel.Name), path+".foreign_key")
		}
		if rel.RelatedKey == "" {
			v.addIssue("MISSING_PIVOT_RELATED_KEY",
				fmt.Sprintf("many-to-many relationship %q must declare related_key", rel.Name), path+".related_key")
		}
	}
}

func (v *Validator) checkDetails() {
	for i, detail := range v.doc.Details {
		path := fmt.Sprintf("details[%d]", i)
		if detail == nil {
			v.addIssue("NIL_DETAIL", "detail has no definition", path)
			continue
		}
		if detail.Model == "" {
			v.addIssue("MISSING_DETAIL_MODEL", "detail must name a related model", path+".model")
		}
		// Presence vs. absence of foreign_key is the sole direct-vs-pivot
		// signal, so present-but-empty is always a defect.
		if detail.ForeignKey != nil && *detail.ForeignKey == "" {
			v.addIssue("EMPTY_DETAIL_FOREIGN_KEY",
				fmt.Sprintf("detail %q declares foreign_key but leaves it empty; omit it for pivot relations", detail.Model),
				path+".foreign_key")
		}
	}
}
