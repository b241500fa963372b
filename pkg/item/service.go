package item

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/katya-platform/identity-core/pkg/clients/redis"
	kerr "github.com/katya-platform/identity-core/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope name for item
// spans.
const tracerName = "github.com/katya-platform/identity-core/pkg/item"

// Cache is the key-value surface the service needs. [redis.Client]
// satisfies it. Misses from Get are recognized via [redis.IsMiss].
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) (int64, error)
	Incr(ctx context.Context, key string) (int64, error)
}

// Service wraps the item store with a cache-aside layer. Cache
// unavailability is never fatal: reads fall through to the store, failed
// invalidations are logged and the entry expires by TTL. Primary-store
// failures always propagate.
type Service struct {
	store  Store
	cache  Cache
	ttl    time.Duration
	tracer trace.Tracer
}

// NewService creates a cache-aside item service. A non-positive ttl
// falls back to [DefaultCacheTTL].
func NewService(store Store, cache Cache, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Service{
		store:  store,
		cache:  cache,
		ttl:    ttl,
		tracer: otel.Tracer(tracerName),
	}
}

// GetAll returns all items, serving from the cache when the aggregate
// key is populated and re-populating it from the store otherwise.
func (s *Service) GetAll(ctx context.Context) ([]Item, error) {
	ctx, span := s.tracer.Start(ctx, "item.GetAll")
	defer span.End()

	var cached []Item
	if s.readCache(ctx, span, allItemsKey, &cached) {
		return cached, nil
	}

	items, err := s.store.List(ctx)
	if err != nil {
		return nil, s.fail(span, err)
	}

	s.writeCache(ctx, allItemsKey, items)
	return items, nil
}

// GetByID returns a single item, read-through cached under its own key.
// Returns [kerr.CodeNotFound] when neither the cache nor the store has a
// record for the id.
func (s *Service) GetByID(ctx context.Context, id int64) (*Item, error) {
	ctx, span := s.tracer.Start(ctx, "item.GetByID",
		trace.WithAttributes(attribute.Int64("item.id", id)))
	defer span.End()

	var cached Item
	if s.readCache(ctx, span, itemKey(id), &cached) {
		return &cached, nil
	}

	it, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, s.fail(span, err)
	}
	if it == nil {
		return nil, s.fail(span, kerr.Newf(kerr.CodeNotFound, "item: no item with id %d", id))
	}

	s.writeCache(ctx, itemKey(id), it)
	return it, nil
}

// Create persists a new item, then invalidates the aggregate key so a
// subsequent GetAll within the TTL window cannot miss it.
func (s *Service) Create(ctx context.Context, name, description string) (*Item, error) {
	ctx, span := s.tracer.Start(ctx, "item.Create")
	defer span.End()

	if name == "" {
		return nil, s.fail(span, kerr.New(kerr.CodeValidation, "item: name must not be empty").
			WithFields("name"))
	}

	it := &Item{Name: name, Description: description}
	if err := s.store.Insert(ctx, it); err != nil {
		return nil, s.fail(span, err)
	}

	s.invalidate(ctx, allItemsKey)
	return it, nil
}

// Update persists new field values for an existing item, then
// invalidates both the aggregate key and the item's own key.
func (s *Service) Update(ctx context.Context, id int64, name, description string) (*Item, error) {
	ctx, span := s.tracer.Start(ctx, "item.Update",
		trace.WithAttributes(attribute.Int64("item.id", id)))
	defer span.End()

	if name == "" {
		return nil, s.fail(span, kerr.New(kerr.CodeValidation, "item: name must not be empty").
			WithFields("name"))
	}

	existing, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, s.fail(span, err)
	}
	if existing == nil {
		return nil, s.fail(span, kerr.Newf(kerr.CodeNotFound, "item: no item with id %d", id))
	}

	existing.Name = name
	existing.Description = description
	if err := s.store.Update(ctx, existing); err != nil {
		return nil, s.fail(span, err)
	}

	s.invalidate(ctx, allItemsKey, itemKey(id))
	return existing, nil
}

// Delete removes an item, then invalidates both affected cache keys.
func (s *Service) Delete(ctx context.Context, id int64) error {
	ctx, span := s.tracer.Start(ctx, "item.Delete",
		trace.WithAttributes(attribute.Int64("item.id", id)))
	defer span.End()

	if err := s.store.Delete(ctx, id); err != nil {
		return s.fail(span, err)
	}

	s.invalidate(ctx, allItemsKey, itemKey(id))
	return nil
}

// readCache attempts a cache read into out. Returns true on a usable
// hit. Misses bump the miss counter; Redis failures and undecodable
// entries are logged and treated as misses, falling through to the
// store.
func (s *Service) readCache(ctx context.Context, span trace.Span, key string, out any) bool {
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if redis.IsMiss(err) {
			span.SetAttributes(attribute.Bool("cache.hit", false))
			s.count(ctx, missCounterKey)
		} else {
			slog.WarnContext(ctx, "item: cache read failed, falling through to store",
				"key", key,
				"error", err,
			)
		}
		return false
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		slog.WarnContext(ctx, "item: undecodable cache entry, falling through to store",
			"key", key,
			"error", err,
		)
		return false
	}

	span.SetAttributes(attribute.Bool("cache.hit", true))
	s.count(ctx, hitCounterKey)
	return true
}

// writeCache populates a cache entry after a store read. Failure is
// non-fatal: the next reader pays another store round trip.
func (s *Service) writeCache(ctx context.Context, key string, value any) {
	encoded, err := json.Marshal(value)
	if err != nil {
		slog.WarnContext(ctx, "item: failed to encode cache entry",
			"key", key,
			"error", err,
		)
		return
	}
	if err := s.cache.Set(ctx, key, string(encoded), s.ttl); err != nil {
		slog.WarnContext(ctx, "item: cache populate failed",
			"key", key,
			"error", err,
		)
	}
}

// invalidate deletes cache keys after a committed store write. A failed
// invalidation must not roll back the write; it is logged and the entry
// goes stale until TTL expiry.
func (s *Service) invalidate(ctx context.Context, keys ...string) {
	if _, err := s.cache.Del(ctx, keys...); err != nil {
		slog.WarnContext(ctx, "item: cache invalidation failed, entries stale until TTL expiry",
			"keys", keys,
			"error", err,
		)
	}
}

// count bumps a hit/miss counter, ignoring failures: the counters are
// observability, not correctness.
func (s *Service) count(ctx context.Context, key string) {
	_, _ = s.cache.Incr(ctx, key)
}

// fail records the error on the span and returns it.
func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
