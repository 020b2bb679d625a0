// Package core composes the schema pipeline, the context/action projection,
// the relationship resolver, and the listing engine into one Service, and
// exposes the engine's observable events.
package core

import (
	"context"
	"time"
)

// EngineEventType identifies an observable engine event.
type EngineEventType string

const (
	// SchemaLoaded fires after a document passes validation and
	// normalization and enters the cache.
	SchemaLoaded EngineEventType = "schema:loaded"
	// SchemaInvalidated fires when a cached document is explicitly dropped.
	SchemaInvalidated EngineEventType = "schema:invalidated"
	// RecordsListed fires after a listing or related-listing completes.
	RecordsListed EngineEventType = "records:listed"
)

// EngineEvent carries the context of one observable engine occurrence.
type EngineEvent struct {
	Type      EngineEventType `json:"type"`
	Model     string          `json:"model"`
	Namespace string          `json:"namespace,omitempty"`
	Relation  string          `json:"relation,omitempty"`
	Count     *int64          `json:"count,omitempty"`
	Error     *string         `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// EventCallback handles an engine event. Errors are the subscriber's own
// concern; the engine does not interpret them.
type EventCallback func(ctx context.Context, event EngineEvent) error

// SubscriptionInfo describes a registered event subscription.
type SubscriptionInfo struct {
	ID          string          `json:"id"`
	Event       EngineEventType `json:"event"`
	Label       *string         `json:"label,omitempty"`
	Description *string         `json:"description,omitempty"`
	Unsubscribe func()          `json:"-"`
}

// RegisterSubscriptionOptions configures a new event subscription.
type RegisterSubscriptionOptions struct {
	Event       EngineEventType `json:"event"`
	Label       *string         `json:"label,omitempty"`
	Description *string         `json:"description,omitempty"`
	Callback    EventCallback
}

func newEvent(eventType EngineEventType, namespace, model string) EngineEvent {
	return EngineEvent{
		Type:      eventType,
		Model:     model,
		Namespace: namespace,
		Timestamp: time.Now(),
	}
}
