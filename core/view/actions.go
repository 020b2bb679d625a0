package view

import (
	"fmt"

	"github.com/ssnukala/sprinkle-crud6-sub001/core/schema"
)

// PermissionFunc reports whether the current caller holds a permission key.
// The engine never implements authorization itself; it only gates action
// synthesis and filtering on declared keys.
type PermissionFunc func(permissionKey string) bool

// defaultAction describes one synthesizable default action.
type defaultAction struct {
	key       string
	operation string
	actType   schema.ActionType
	scope     string
}

// Synthesized defaults are inserted before user-defined actions, in this
// order, and only when the permissions map declares the operation.
var defaultActions = []defaultAction{
	{key: "create", operation: "create", actType: schema.ActionTypeForm, scope: schema.ScopeList},
	{key: "edit", operation: "update", actType: schema.ActionTypeForm, scope: schema.ScopeDetail},
	{key: "delete", operation: "delete", actType: schema.ActionTypeDelete, scope: schema.ScopeDetail},
}

// SynthesizeDefaults returns the document's action list with default
// create/edit/delete actions prepended. A default is added only when no
// existing action already uses its key and the schema's permissions map
// declares the corresponding operation. When default_actions is false the
// declared list is returned unchanged.
func SynthesizeDefaults(doc *schema.SchemaDocument) []*schema.ActionDefinition {
	if !doc.DefaultActionsEnabled() {
		return doc.Actions
	}

	var synthesized []*schema.ActionDefinition
	for _, def := range defaultActions {
		permission, declared := doc.Permissions[def.operation]
		if !declared || doc.Action(def.key) != nil {
			continue
		}
		synthesized = append(synthesized, &schema.ActionDefinition{
			Key:        def.key,
			Label:      defaultActionLabel(def.key, doc),
			Type:       def.actType,
			Scope:      schema.StringList{def.scope},
			Permission: permission,
		})
	}

	return append(synthesized, doc.Actions...)
}

func defaultActionLabel(key string, doc *schema.SchemaDocument) string {
	title := doc.SingularTitle
	if title == "" {
		title = doc.Model
	}
	switch key {
	case "create":
		return "Create " + title
	case "edit":
		return "Edit " + title
	case "delete":
		return "Delete " + title
	}
	return key
}

// NormalizeToggles ensures every toggling field_update action carries a
// confirmation: a confirm message and a modal_config of type confirm are
// filled in when absent, without overwriting explicit values. Actions are
// copied before mutation so the cached schema document stays pristine.
func NormalizeToggles(actions []*schema.ActionDefinition) []*schema.ActionDefinition {
	out := make([]*schema.ActionDefinition, 0, len(actions))
	for _, action := range actions {
		if action.Type != schema.ActionTypeFieldUpdate || !action.Toggle {
			out = append(out, action)
			continue
		}

		normalized := *action
		if normalized.Confirm == "" {
			normalized.Confirm = fmt.Sprintf("Are you sure you want to toggle %s?", action.Field)
		}
		modal := make(map[string]any, len(action.ModalConfig)+1)
		for k, v := range action.ModalConfig {
			modal[k] = v
		}
		if _, ok := modal["type"]; !ok {
			modal["type"] = "confirm"
		}
		normalized.ModalConfig = modal
		out = append(out, &normalized)
	}
	return out
}

// FilterByScope returns only the actions whose scope contains the requested
// scope. Actions with no scope are excluded unconditionally.
func FilterByScope(actions []*schema.ActionDefinition, scope string) []*schema.ActionDefinition {
	var out []*schema.ActionDefinition
	for _, action := range actions {
		if action.InScope(scope) {
			out = append(out, action)
		}
	}
	return out
}

// ActionsForScope runs the full action pipeline for one scope: synthesize
// defaults, normalize toggles, filter by scope, then drop actions whose
// declared permission the caller does not hold. A nil PermissionFunc skips
// the permission filter.
func ActionsForScope(doc *schema.SchemaDocument, scope string, hasPermission PermissionFunc) []*schema.ActionDefinition {
	actions := FilterByScope(NormalizeToggles(SynthesizeDefaults(doc)), scope)
	if hasPermission == nil {
		return actions
	}

	var out []*schema.ActionDefinition
	for _, action := range actions {
		if action.Permission != "" && !hasPermission(action.Permission) {
			continue
		}
		out = append(out, action)
	}
	return out
}
