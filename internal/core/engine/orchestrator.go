package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core"
)

var (
	// ErrSourceTimeout marks a source that did not answer within its timeout.
	ErrSourceTimeout = errors.New("source timed out")
	// ErrInvalidPayload marks a source whose payload failed its validity check.
	ErrInvalidPayload = errors.New("source returned an invalid payload")
	// ErrNoFetch marks a source constructed without an invocation.
	ErrNoFetch = errors.New("source has no fetch function")
)

// Cache is the memoization surface the orchestrator needs. Implementations
// absorb their own failures: Get reports a miss, Set drops the write.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// Source is one named, timeout-bounded strategy within a fallback cascade.
// Sources are built per call and hold no state between calls.
type Source[T any] struct {
	Name    string
	Fetch   func(ctx context.Context) (T, error)
	Timeout time.Duration
	// TTL applied when this source's payload is written to the cache.
	TTL time.Duration
	// Valid reports whether a payload counts as success. Nil accepts anything.
	Valid func(T) bool
}

// Attempt records one source invocation.
type Attempt struct {
	Source  string        `json:"source"`
	Elapsed time.Duration `json:"elapsed"`
	Err     error         `json:"-"`
}

// Resolution is the outcome of one Resolve call. It is meant for logging and
// metrics; callers should not branch on it.
type Resolution[T any] struct {
	Source    string
	Index     int
	Payload   T
	Elapsed   time.Duration
	Attempts  []Attempt
	FromCache bool
	// Shared is set when the payload came from a concurrent caller's flight.
	Shared bool
	// Abandoned is set when the inbound context ended before a source succeeded.
	Abandoned bool
}

// Orchestrator resolves fallback cascades with cache-aside memoization.
type Orchestrator struct {
	Cache  Cache
	Logger *logging.Logger
	Clock  core.Clock
	// Collapse shares one cascade between concurrent misses on the same key.
	Collapse bool

	group singleflight.Group
}

// NonEmpty is a validity predicate for list payloads.
func NonEmpty[S ~[]E, E any](items S) bool {
	return len(items) > 0
}

// Resolve returns the cached payload for cacheKey, else the first source in
// order that succeeds, else static. It never fails.
func Resolve[T any](ctx context.Context, o *Orchestrator, cacheKey string, sources []Source[T], static T) Resolution[T] {
	if ctx == nil {
		ctx = context.Background()
	}
	if o == nil {
		o = &Orchestrator{}
	}

	start := o.Clock.Now()
	key := strings.TrimSpace(cacheKey)

	if key != "" {
		if payload, ok := lookup[T](ctx, o, key); ok {
			return Resolution[T]{
				Source:    core.SourceCache,
				Index:     -1,
				Payload:   payload,
				FromCache: true,
				Elapsed:   o.Clock.Now().Sub(start),
			}
		}
	}

	var resolution Resolution[T]
	if key != "" && o.Collapse {
		resolution = collapse(ctx, o, key, sources, static)
	} else {
		resolution = cascade(ctx, o, key, sources, static)
	}

	resolution.Elapsed = o.Clock.Now().Sub(start)
	return resolution
}

func collapse[T any](ctx context.Context, o *Orchestrator, key string, sources []Source[T], static T) Resolution[T] {
	// The payload type is part of the flight key so a shared result always
	// has the caller's type.
	flightKey := fmt.Sprintf("%T|%s", static, key)
	ch := o.group.DoChan(flightKey, func() (any, error) {
		return cascade(ctx, o, key, sources, static), nil
	})

	select {
	case res := <-ch:
		resolution, ok := res.Val.(Resolution[T])
		if !ok {
			return cascade(ctx, o, key, sources, static)
		}
		// The leader's caller went away; run our own cascade if we are still here.
		if resolution.Abandoned && ctx.Err() == nil {
			return cascade(ctx, o, key, sources, static)
		}
		resolution.Shared = res.Shared
		return resolution
	case <-ctx.Done():
		return Resolution[T]{Source: core.SourceStatic, Index: -1, Payload: static, Abandoned: true}
	}
}

func cascade[T any](ctx context.Context, o *Orchestrator, key string, sources []Source[T], static T) Resolution[T] {
	attempts := make([]Attempt, 0, len(sources))

	for i, src := range sources {
		name := sourceName(src, i)
		if err := ctx.Err(); err != nil {
			o.debug("Abandoning remaining sources", zap.String("cache_key", key), zap.String("next_source", name), zap.Error(err))
			return Resolution[T]{Source: core.SourceStatic, Index: -1, Payload: static, Attempts: attempts, Abandoned: true}
		}

		began := o.Clock.Now()
		payload, err := invoke(ctx, src)
		if err == nil && src.Valid != nil && !src.Valid(payload) {
			err = ErrInvalidPayload
		}
		attempts = append(attempts, Attempt{Source: name, Elapsed: o.Clock.Now().Sub(began), Err: err})

		if err != nil {
			o.warn("Source failed, falling back",
				zap.String("cache_key", key),
				zap.String("source", name),
				zap.Int("index", i),
				zap.Error(err))
			continue
		}

		if key != "" {
			store(ctx, o, key, payload, src.TTL)
		}
		return Resolution[T]{Source: name, Index: i, Payload: payload, Attempts: attempts}
	}

	abandoned := ctx.Err() != nil
	if !abandoned {
		o.warn("All sources exhausted, serving static dataset",
			zap.String("cache_key", key),
			zap.Int("attempted", len(attempts)))
	}
	return Resolution[T]{Source: core.SourceStatic, Index: -1, Payload: static, Attempts: attempts, Abandoned: abandoned}
}

// invoke runs src under its own deadline. The fetch runs on its own goroutine
// so a fetch that ignores its context still cannot hold the cascade past the
// deadline; the deferred cancel tells it to stop.
func invoke[T any](ctx context.Context, src Source[T]) (T, error) {
	var zero T
	if src.Fetch == nil {
		return zero, ErrNoFetch
	}

	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if src.Timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, src.Timeout)
	}
	defer cancel()

	type outcome struct {
		payload T
		err     error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("source panicked: %v", r)}
			}
		}()
		payload, err := src.Fetch(callCtx)
		done <- outcome{payload: payload, err: err}
	}()

	select {
	case out := <-done:
		return out.payload, out.err
	case <-callCtx.Done():
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w after %s", ErrSourceTimeout, src.Timeout)
		}
		return zero, callCtx.Err()
	}
}

func lookup[T any](ctx context.Context, o *Orchestrator, key string) (T, bool) {
	var payload T
	if o.Cache == nil {
		return payload, false
	}

	data, ok := o.Cache.Get(ctx, key)
	if !ok || len(data) == 0 {
		return payload, false
	}

	if err := json.Unmarshal(data, &payload); err != nil {
		o.debug("Discarding undecodable cache entry", zap.String("cache_key", key), zap.Error(err))
		var zero T
		return zero, false
	}
	return payload, true
}

func store[T any](ctx context.Context, o *Orchestrator, key string, payload T, ttl time.Duration) {
	if o.Cache == nil || ttl <= 0 {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		o.debug("Skipping cache write for unencodable payload", zap.String("cache_key", key), zap.Error(err))
		return
	}

	// The write outlives the inbound request on purpose: the payload is
	// already fetched.
	o.Cache.Set(context.WithoutCancel(ctx), key, data, ttl)
}

func sourceName[T any](src Source[T], index int) string {
	if name := strings.TrimSpace(src.Name); name != "" {
		return name
	}
	return fmt.Sprintf("source-%d", index)
}

func (o *Orchestrator) warn(msg string, fields ...zap.Field) {
	if o.Logger != nil {
		o.Logger.Warn(msg, fields...)
	}
}

func (o *Orchestrator) debug(msg string, fields ...zap.Field) {
	if o.Logger != nil {
		o.Logger.Debug(msg, fields...)
	}
}
