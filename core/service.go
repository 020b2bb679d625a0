package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/asaidimu/go-events"
	"github.com/google/uuid"
	"github.com/ssnukala/sprinkle-crud6-sub001/core/listing"
	"github.com/ssnukala/sprinkle-crud6-sub001/core/relation"
	"github.com/ssnukala/sprinkle-crud6-sub001/core/schema"
	"github.com/ssnukala/sprinkle-crud6-sub001/core/view"
	"go.uber.org/zap"
)

// ServiceOptions configures a Service. Zero values fall back to the defaults
// from DefaultServiceOptions.
type ServiceOptions struct {
	// Namespace qualifies every schema lookup, typically one per connection.
	Namespace string
	// Limits bounds listing page sizes.
	Limits listing.Limits
	// CacheBackend optionally backs the in-process schema cache.
	CacheBackend schema.CacheBackend
	// Permissions gates action synthesis on declared permission keys. Nil
	// means no gating: every declared action passes.
	Permissions view.PermissionFunc
	// Logger receives engine diagnostics. Nil means no logging.
	Logger *zap.Logger
}

// DefaultServiceOptions returns the stock configuration.
func DefaultServiceOptions() *ServiceOptions {
	return &ServiceOptions{Limits: listing.DefaultLimits()}
}

// Service is the engine's composition root. It owns the schema pipeline
// (load → validate → normalize → cache), projects schemas into context views
// and scoped action sets, and runs listing and related-listing queries. The
// schema cache is the only shared mutable state; everything else is
// request-scoped.
type Service struct {
	loader    schema.Loader
	cache     *schema.Cache
	engine    *listing.Engine
	resolver  *relation.Resolver
	namespace string
	perms     view.PermissionFunc
	logger    *zap.Logger

	bus           *events.TypedEventBus[EngineEvent]
	subscriptions map[string]*SubscriptionInfo
	subMu         sync.RWMutex
}

// NewService wires a Service from a schema loader and a record-store
// executor with its dialect.
func NewService(loader schema.Loader, executor listing.Executor, dialect listing.Dialect, opts *ServiceOptions) (*Service, error) {
	if loader == nil {
		return nil, fmt.Errorf("schema loader is required")
	}
	if opts == nil {
		opts = DefaultServiceOptions()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bus, err := events.NewTypedEventBus[EngineEvent](events.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("could not initialize event bus: %w", err)
	}

	s := &Service{
		loader:        loader,
		cache:         schema.NewCache(opts.CacheBackend),
		namespace:     opts.Namespace,
		perms:         opts.Permissions,
		logger:        logger,
		bus:           bus,
		subscriptions: make(map[string]*SubscriptionInfo),
	}
	s.resolver = relation.NewResolver(s.GetSchema, logger)
	if executor != nil {
		s.engine = listing.NewEngine(executor, dialect, opts.Limits, logger)
	}
	return s, nil
}

// GetSchema returns the validated, normalized schema document for a model,
// loading and caching it on first request.
func (s *Service) GetSchema(ctx context.Context, model string) (*schema.SchemaDocument, error) {
	key := schema.CacheKey(s.namespace, model)
	if doc, ok := s.cache.Get(key); ok {
		return doc, nil
	}

	doc, err := s.loader.Load(ctx, s.namespace, model)
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(doc); err != nil {
		return nil, err
	}
	if _, err := schema.Normalize(doc); err != nil {
		return nil, err
	}

	s.cache.Set(key, doc)
	s.logger.Debug("Schema loaded and cached",
		zap.String("model", model), zap.String("namespace", s.namespace))
	s.emit(newEvent(SchemaLoaded, s.namespace, model))
	return doc, nil
}

// GetContextSchema projects a model's schema into the union of the requested
// contexts, e.g. ["list"] or ["list", "form"].
func (s *Service) GetContextSchema(ctx context.Context, model string, contexts []string) (*view.View, error) {
	doc, err := s.GetSchema(ctx, model)
	if err != nil {
		return nil, err
	}
	return view.BuildView(doc, contexts), nil
}

// GetActionsForScope returns the actions renderable in a scope, with default
// actions synthesized, toggles normalized, and undeclared or unpermitted
// actions excluded.
func (s *Service) GetActionsForScope(ctx context.Context, model, scope string) ([]*schema.ActionDefinition, error) {
	doc, err := s.GetSchema(ctx, model)
	if err != nil {
		return nil, err
	}
	return view.ActionsForScope(doc, scope, s.perms), nil
}

// ListRecords returns one page of a model's records per the request
// parameters, projected to the listable field set.
func (s *Service) ListRecords(ctx context.Context, model string, params listing.Params) (*listing.Result, error) {
	if s.engine == nil {
		return nil, fmt.Errorf("no record store configured")
	}
	doc, err := s.GetSchema(ctx, model)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.List(ctx, doc, params)
	if err != nil {
		return nil, err
	}

	event := newEvent(RecordsListed, s.namespace, model)
	event.Count = &result.CountFiltered
	s.emit(event)
	return result, nil
}

// ListRelatedRecords returns one page of the records related to a single
// parent record through a declared relation.
func (s *Service) ListRelatedRecords(ctx context.Context, model string, recordID any, relationName string, params listing.Params) (*listing.Result, error) {
	if s.engine == nil {
		return nil, fmt.Errorf("no record store configured")
	}
	doc, err := s.GetSchema(ctx, model)
	if err != nil {
		return nil, err
	}

	plan, err := s.resolver.Resolve(ctx, doc, relationName)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.ListRelated(ctx, plan, recordID, params)
	if err != nil {
		return nil, err
	}

	event := newEvent(RecordsListed, s.namespace, model)
	event.Relation = relationName
	event.Count = &result.CountFiltered
	s.emit(event)
	return result, nil
}

// InvalidateSchema drops a model's cached document; the next request reloads
// it from the loader.
func (s *Service) InvalidateSchema(model string) {
	s.cache.Invalidate(schema.CacheKey(s.namespace, model))
	s.emit(newEvent(SchemaInvalidated, s.namespace, model))
}

// RegisterSubscription registers a callback for an engine event and returns
// an id usable with UnregisterSubscription.
func (s *Service) RegisterSubscription(options RegisterSubscriptionOptions) string {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	unsubscribe := s.bus.Subscribe(string(options.Event), options.Callback)
	id := uuid.New().String()

	s.subscriptions[id] = &SubscriptionInfo{
		ID:          id,
		Event:       options.Event,
		Label:       options.Label,
		Description: options.Description,
		Unsubscribe: unsubscribe,
	}
	return id
}

// UnregisterSubscription removes a subscription by its id.
func (s *Service) UnregisterSubscription(id string) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if info, ok := s.subscriptions[id]; ok {
		info.Unsubscribe()
		delete(s.subscriptions, id)
	}
}

// Subscriptions returns every active subscription.
func (s *Service) Subscriptions() []SubscriptionInfo {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	subs := make([]SubscriptionInfo, 0, len(s.subscriptions))
	for _, sub := range s.subscriptions {
		subs = append(subs, *sub)
	}
	return subs
}

func (s *Service) emit(event EngineEvent) {
	if s.bus != nil {
		s.bus.Emit(string(event.Type), event)
	}
}
