package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssnukala/sprinkle-crud6-sub001/core/schema"
)

func actionDocument() *schema.SchemaDocument {
	return &schema.SchemaDocument{
		Model:         "roles",
		Table:         "roles",
		SingularTitle: "Role",
		Permissions: map[string]string{
			"create": "create_role",
			"update": "update_role",
			"delete": "delete_role",
		},
		Fields: map[string]*schema.FieldDefinition{
			"id":     {Type: schema.FieldTypeInteger},
			"active": {Type: schema.FieldTypeBoolean},
		},
		Actions: []*schema.ActionDefinition{
			{
				Key:    "toggle_active",
				Type:   schema.ActionTypeFieldUpdate,
				Field:  "active",
				Toggle: true,
				Scope:  schema.StringList{schema.ScopeList},
			},
		},
	}
}

func actionKeys(actions []*schema.ActionDefinition) []string {
	keys := make([]string, 0, len(actions))
	for _, a := range actions {
		keys = append(keys, a.Key)
	}
	return keys
}

func TestSynthesizeDefaults(t *testing.T) {
	t.Run("prepends defaults for declared operations", func(t *testing.T) {
		actions := SynthesizeDefaults(actionDocument())
		assert.Equal(t, []string{"create", "edit", "delete", "toggle_active"}, actionKeys(actions))
	})

	t.Run("uses the singular title in labels", func(t *testing.T) {
		actions := SynthesizeDefaults(actionDocument())
		assert.Equal(t, "Create Role", actions[0].Label)
		assert.Equal(t, "Edit Role", actions[1].Label)
		assert.Equal(t, "Delete Role", actions[2].Label)
	})

	t.Run("skips operations missing from the permissions map", func(t *testing.T) {
		doc := actionDocument()
		delete(doc.Permissions, "update")
		actions := SynthesizeDefaults(doc)
		assert.Equal(t, []string{"create", "delete", "toggle_active"}, actionKeys(actions))
	})

	t.Run("never shadows a declared action key", func(t *testing.T) {
		doc := actionDocument()
		doc.Actions = append(doc.Actions, &schema.ActionDefinition{
			Key:   "edit",
			Type:  schema.ActionTypeModal,
			Scope: schema.StringList{schema.ScopeDetail},
		})
		actions := SynthesizeDefaults(doc)
		assert.Equal(t, []string{"create", "delete", "toggle_active", "edit"}, actionKeys(actions))
		assert.Equal(t, schema.ActionTypeModal, actions[3].Type)
	})

	t.Run("default_actions false returns declared list unchanged", func(t *testing.T) {
		doc := actionDocument()
		disabled := false
		doc.DefaultActions = &disabled
		actions := SynthesizeDefaults(doc)
		assert.Equal(t, []string{"toggle_active"}, actionKeys(actions))
	})
}

func TestNormalizeToggles(t *testing.T) {
	t.Run("fills confirm and modal type", func(t *testing.T) {
		doc := actionDocument()
		actions := NormalizeToggles(doc.Actions)
		require.Len(t, actions, 1)
		assert.Equal(t, "Are you sure you want to toggle active?", actions[0].Confirm)
		assert.Equal(t, "confirm", actions[0].ModalConfig["type"])
	})

	t.Run("does not overwrite explicit values", func(t *testing.T) {
		doc := actionDocument()
		doc.Actions[0].Confirm = "Really?"
		doc.Actions[0].ModalConfig = map[string]any{"type": "danger", "size": "sm"}
		actions := NormalizeToggles(doc.Actions)
		assert.Equal(t, "Really?", actions[0].Confirm)
		assert.Equal(t, "danger", actions[0].ModalConfig["type"])
		assert.Equal(t, "sm", actions[0].ModalConfig["size"])
	})

	t.Run("leaves the source action untouched", func(t *testing.T) {
		doc := actionDocument()
		NormalizeToggles(doc.Actions)
		assert.Empty(t, doc.Actions[0].Confirm)
		assert.Nil(t, doc.Actions[0].ModalConfig)
	})

	t.Run("non-toggle actions pass through", func(t *testing.T) {
		action := &schema.ActionDefinition{Key: "export", Type: schema.ActionTypeAPICall}
		actions := NormalizeToggles([]*schema.ActionDefinition{action})
		require.Len(t, actions, 1)
		assert.Same(t, action, actions[0])
	})
}

func TestFilterByScope(t *testing.T) {
	actions := []*schema.ActionDefinition{
		{Key: "a", Scope: schema.StringList{schema.ScopeList}},
		{Key: "b", Scope: schema.StringList{schema.ScopeList, schema.ScopeDetail}},
		{Key: "c"},
	}

	assert.Equal(t, []string{"a", "b"}, actionKeys(FilterByScope(actions, schema.ScopeList)))
	assert.Equal(t, []string{"b"}, actionKeys(FilterByScope(actions, schema.ScopeDetail)))
}

func TestActionsForScope(t *testing.T) {
	t.Run("nil permission func returns every scoped action", func(t *testing.T) {
		actions := ActionsForScope(actionDocument(), schema.ScopeList, nil)
		assert.Equal(t, []string{"create", "toggle_active"}, actionKeys(actions))
	})

	t.Run("permission filter drops unauthorized actions", func(t *testing.T) {
		granted := func(key string) bool { return key == "update_role" }
		actions := ActionsForScope(actionDocument(), schema.ScopeDetail, granted)
		assert.Equal(t, []string{"edit"}, actionKeys(actions))
	})

	t.Run("actions without a permission survive the filter", func(t *testing.T) {
		denyAll := func(string) bool { return false }
		actions := ActionsForScope(actionDocument(), schema.ScopeList, denyAll)
		assert.Equal(t, []string{"toggle_active"}, actionKeys(actions))
	})
}
