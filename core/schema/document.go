// Package schema defines the per-model schema document that drives the CRUD
// engine, along with the pipeline that turns a raw document into a trusted,
// normalized one: loading, structural validation, normalization, and caching.
//
// A schema document is untrusted configuration. Nothing it declares is exposed
// to listings, sorting, or filtering unless explicitly opted in, and every
// identifier used to build SQL comes from the document only after it has
// passed validation.
package schema

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/expr-lang/expr/vm"
)

// FieldType is the canonical storage type of a field.
type FieldType string

const (
	FieldTypeString      FieldType = "string"
	FieldTypeInteger     FieldType = "integer"
	FieldTypeDecimal     FieldType = "decimal"
	FieldTypeBoolean     FieldType = "boolean"
	FieldTypeText        FieldType = "text"
	FieldTypeDate        FieldType = "date"
	FieldTypeDateTime    FieldType = "datetime"
	FieldTypeEmail       FieldType = "email"
	FieldTypePassword    FieldType = "password"
	FieldTypeJSON        FieldType = "json"
	FieldTypeMultiselect FieldType = "multiselect"
)

// UIHint is a rendering hint for a field, independent of its storage type.
type UIHint string

const (
	UIHintCheckbox UIHint = "checkbox"
	UIHintToggle   UIHint = "toggle"
	UIHintSelect   UIHint = "select"
)

// ActionType identifies how an action is executed by the consumer.
type ActionType string

const (
	ActionTypeForm        ActionType = "form"
	ActionTypeDelete      ActionType = "delete"
	ActionTypeFieldUpdate ActionType = "field_update"
	ActionTypeAPICall     ActionType = "api_call"
	ActionTypeModal       ActionType = "modal"
)

// RelationType identifies how two models are related.
type RelationType string

const (
	RelationBelongsTo  RelationType = "belongs_to"
	RelationManyToMany RelationType = "many_to_many"
)

// Context names recognized by the context filter.
const (
	ContextList     = "list"
	ContextForm     = "form"
	ContextDetail   = "detail"
	ContextMetadata = "metadata"
)

// Scopes in which an action may render.
const (
	ScopeList   = "list"
	ScopeDetail = "detail"
)

// Record is a single database row keyed by column name.
type Record map[string]any

// StringList accepts either a JSON array of strings or a single
// comma-separated string. Schema authors frequently write
// "show_in": "list,form" instead of an array, and both forms must decode to
// the same document.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler for StringList.
func (s *StringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*s = list
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*s = splitList(single)
	return nil
}

// Contains reports whether the list contains the given value.
func (s StringList) Contains(value string) bool {
	for _, v := range s {
		if v == value {
			return true
		}
	}
	return false
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// FieldPolicy is the canonical opt-in exposure policy of a field, computed
// once at normalization time. Downstream consumers read this instead of
// re-deriving it from scattered flags.
type FieldPolicy struct {
	Sortable   bool `json:"sortable"`
	Filterable bool `json:"filterable"`
	Listable   bool `json:"listable"`
}

// FieldDefinition describes a single field of a model.
type FieldDefinition struct {
	Type          FieldType      `json:"type"`
	UI            UIHint         `json:"ui,omitempty"`
	Label         string         `json:"label,omitempty"`
	Required      bool           `json:"required,omitempty"`
	ReadOnly      bool           `json:"readonly,omitempty"`
	Editable      *bool          `json:"editable,omitempty"`
	Sortable      bool           `json:"sortable,omitempty"`
	Filterable    bool           `json:"filterable,omitempty"`
	Listable      bool           `json:"listable,omitempty"`
	ShowIn        StringList     `json:"show_in,omitempty"`
	Computed      bool           `json:"computed,omitempty"`
	AutoIncrement bool           `json:"auto_increment,omitempty"`
	Default       any            `json:"default,omitempty"`
	Validation    map[string]any `json:"validation,omitempty"`

	// Expression computes the value of a computed field from the listed row.
	// Compiled during normalization; a computed field without an expression
	// simply never appears in listing output.
	Expression string `json:"expression,omitempty"`

	// Policy is filled by Normalize and is not part of the wire contract.
	Policy *FieldPolicy `json:"-"`

	program *vm.Program
}

// Program returns the compiled expression for a computed field, or nil.
func (f *FieldDefinition) Program() *vm.Program {
	return f.program
}

// InContext reports whether the field is tagged for the given context.
func (f *FieldDefinition) InContext(context string) bool {
	return f.ShowIn.Contains(context)
}

// Persisted reports whether the field maps to a real column. Computed fields
// are virtual and must never reach insert/update column sets or DDL.
func (f *FieldDefinition) Persisted() bool {
	return !f.Computed
}

// ActionDefinition describes an action a consumer may render for a model.
// Actions without an explicit scope are excluded from every scope-filtered
// view; there is no implicit default placement.
type ActionDefinition struct {
	Key         string         `json:"key"`
	Label       string         `json:"label,omitempty"`
	Type        ActionType     `json:"type"`
	Scope       StringList     `json:"scope,omitempty"`
	Permission  string         `json:"permission,omitempty"`
	Field       string         `json:"field,omitempty"`
	Toggle      bool           `json:"toggle,omitempty"`
	Value       any            `json:"value,omitempty"`
	Confirm     string         `json:"confirm,omitempty"`
	ModalConfig map[string]any `json:"modal_config,omitempty"`
}

// InScope reports whether the action may render in the given scope. An action
// with no scope is in no scope at all.
func (a *ActionDefinition) InScope(scope string) bool {
	return a.Scope.Contains(scope)
}

// RelationshipDefinition declares how a model relates to another one. For
// many-to-many relations the pivot columns are mandatory and are checked by
// the validator.
type RelationshipDefinition struct {
	// Name both identifies the relation and names the related model: a
	// relationship "roles" resolves against the "roles" schema document.
	Name       string       `json:"name"`
	Type       RelationType `json:"type"`
	PivotTable string       `json:"pivot_table,omitempty"`
	ForeignKey string       `json:"foreign_key,omitempty"`
	RelatedKey string       `json:"related_key,omitempty"`
}

// DetailDefinition declares a related listing surfaced for a single record.
// ForeignKey is a pointer on purpose: its presence is the sole signal that the
// relation is direct rather than pivot-mediated, so "present but empty" is a
// validation error, never a fallback.
type DetailDefinition struct {
	Model      string     `json:"model"`
	ForeignKey *string    `json:"foreign_key,omitempty"`
	ListFields StringList `json:"list_fields,omitempty"`
	Title      string     `json:"title,omitempty"`
}

// SchemaDocument is the declarative, per-model configuration driving the
// engine. One document exists per model name; it is loaded on first request,
// validated, normalized once, and cached until explicitly invalidated.
type SchemaDocument struct {
	Model          string                      `json:"model"`
	Table          string                      `json:"table"`
	PrimaryKey     string                      `json:"primary_key,omitempty"`
	Timestamps     *bool                       `json:"timestamps,omitempty"`
	SoftDelete     *bool                       `json:"soft_delete,omitempty"`
	Title          string                      `json:"title,omitempty"`
	SingularTitle  string                      `json:"singular_title,omitempty"`
	DefaultActions *bool                       `json:"default_actions,omitempty"`
	Permissions    map[string]string           `json:"permissions,omitempty"`
	Fields         map[string]*FieldDefinition `json:"fields"`
	Actions        []*ActionDefinition         `json:"actions,omitempty"`
	Relationships  []*RelationshipDefinition   `json:"relationships,omitempty"`
	Details        []*DetailDefinition         `json:"details,omitempty"`

	// Contexts carries non-field per-context data (default sorts, action
	// lists) merged shallowly into context views.
	Contexts map[string]map[string]any `json:"contexts,omitempty"`
}

// HasTimestamps reports whether created/updated tracking is enabled. Defaults
// are filled by Normalize; before that the raw pointer decides.
func (d *SchemaDocument) HasTimestamps() bool {
	return d.Timestamps == nil || *d.Timestamps
}

// IsSoftDelete reports whether the model uses soft deletion.
func (d *SchemaDocument) IsSoftDelete() bool {
	return d.SoftDelete != nil && *d.SoftDelete
}

// DefaultActionsEnabled reports whether default create/edit/delete actions
// should be synthesized from the permissions map.
func (d *SchemaDocument) DefaultActionsEnabled() bool {
	return d.DefaultActions == nil || *d.DefaultActions
}

// Relationship returns the relationship declaration with the given name.
func (d *SchemaDocument) Relationship(name string) *RelationshipDefinition {
	for _, rel := range d.Relationships {
		if rel.Name == name {
			return rel
		}
	}
	return nil
}

// Detail returns the detail declaration for the given related model name.
func (d *SchemaDocument) Detail(name string) *DetailDefinition {
	for _, det := range d.Details {
		if det.Model == name {
			return det
		}
	}
	return nil
}

// Action returns the action with the given key, or nil.
func (d *SchemaDocument) Action(key string) *ActionDefinition {
	for _, action := range d.Actions {
		if action.Key == key {
			return action
		}
	}
	return nil
}

// SortableFields returns the names of fields opted in to sorting, sorted for
// deterministic query generation. Only meaningful after Normalize.
func (d *SchemaDocument) SortableFields() []string {
	return d.fieldsByPolicy(func(p *FieldPolicy) bool { return p.Sortable })
}

// FilterableFields returns the names of fields opted in to filtering.
func (d *SchemaDocument) FilterableFields() []string {
	return d.fieldsByPolicy(func(p *FieldPolicy) bool { return p.Filterable })
}

// ListableFields returns the names of fields opted in to listing output.
func (d *SchemaDocument) ListableFields() []string {
	return d.fieldsByPolicy(func(p *FieldPolicy) bool { return p.Listable })
}

func (d *SchemaDocument) fieldsByPolicy(match func(*FieldPolicy) bool) []string {
	var names []string
	for name, field := range d.Fields {
		if name == "" || field == nil || field.Policy == nil {
			continue
		}
		if match(field.Policy) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of the document via its wire representation.
// Compiled expression programs are not carried over; Normalize restores them.
func (d *SchemaDocument) Clone() (*SchemaDocument, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var out SchemaDocument
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
