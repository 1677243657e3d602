// Package urlsync keeps a typed value mapping and a host's query string in
// sync in both directions.
//
// An Engine reads the address into a snapshot on Mount, republishes whenever
// the address changes (programmatic commits by anyone, or back/forward), and
// turns local patches into a single commit when they change the query string.
// Local patches are never published directly: the commit goes through the
// navigation bridge and comes back as a notification, so exactly one path
// derives state from the address.
//
// Example:
//
//	schema := snapshot.MustSchema(snapshot.Number("page"), snapshot.Strings("tags"))
//	e, _ := urlsync.New(host, schema, render,
//	    urlsync.WithDefault("page", 1),
//	    urlsync.WithValidator("page", func(v any) bool { return v.(float64) > 0 }),
//	    urlsync.WithSortKeys(true),
//	)
//	values, _ := e.Mount(ctx)
//	_ = e.Patch(ctx, snapshot.Values{"tags": []string{"go", "web"}}, urlsync.Replace)
//	defer e.Unmount()
//
// An Engine is driven from one goroutine, the host's event loop. Values may be
// read from any goroutine.
package urlsync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/querysync/internal/errors"
	"github.com/vango-dev/querysync/pkg/codec"
	"github.com/vango-dev/querysync/pkg/history"
	"github.com/vango-dev/querysync/pkg/navbridge"
	"github.com/vango-dev/querysync/pkg/query"
	"github.com/vango-dev/querysync/pkg/snapshot"
)

// State is the engine lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateMounting
	StateIdle
	StateUpdating
	StateUnmounted
)

var stateNames = [...]string{"uninitialized", "mounting", "idle", "updating", "unmounted"}

// String returns the state name.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// PublishFunc receives each new snapshot. It is called synchronously.
type PublishFunc func(snapshot.Values)

// PatchFunc applies a patch; see Engine.Patch.
type PatchFunc func(changes snapshot.Values, opts ...PatchOption) error

// Engine synchronizes one schema with one host.
type Engine struct {
	mu      sync.Mutex
	state   State
	current snapshot.Values

	host    history.Host
	bridge  *navbridge.Bridge
	schema  *snapshot.Schema
	reader  *snapshot.Reader
	publish PublishFunc
	cfg     config

	unsubscribe func()

	logger *slog.Logger
	tracer trace.Tracer
}

// New creates an unmounted engine. Every key named by an option must be
// declared in schema.
func New(host history.Host, schema *snapshot.Schema, publish PublishFunc, opts ...Option) (*Engine, error) {
	if host == nil || schema == nil {
		return nil, errors.New("Q022").WithDetail("host and schema are required")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.defaultMode != history.ModePush && cfg.defaultMode != history.ModeReplace {
		return nil, errors.New("Q013").WithDetail(fmt.Sprintf("mode %d", cfg.defaultMode))
	}

	e := &Engine{
		host:    host,
		schema:  schema,
		publish: publish,
		cfg:     cfg,
		logger:  cfg.logger,
		tracer:  otel.Tracer(cfg.tracerName),
	}
	if e.logger == nil {
		e.logger = slog.Default().With("component", "urlsync")
	}
	e.bridge = cfg.bridge
	if e.bridge == nil {
		e.bridge = navbridge.For(host)
	}

	reader, err := snapshot.NewReader(schema, snapshot.Options{
		Defaults:   cfg.defaults,
		Validators: cfg.validators,
		Codecs:     cfg.codecs,
		OnError:    e.handleError,
		Logger:     e.logger,
	})
	if err != nil {
		return nil, err
	}
	e.reader = reader

	return e, nil
}

// Sync creates and mounts an engine, returning the initial snapshot, the
// patch function, and the unmount function.
func Sync(ctx context.Context, host history.Host, schema *snapshot.Schema, publish PublishFunc, opts ...Option) (snapshot.Values, PatchFunc, func(), error) {
	e, err := New(host, schema, publish, opts...)
	if err != nil {
		return nil, nil, nil, err
	}
	values, err := e.Mount(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	patch := func(changes snapshot.Values, opts ...PatchOption) error {
		return e.Patch(ctx, changes, opts...)
	}
	return values, patch, e.Unmount, nil
}

// Schema returns the engine's schema.
func (e *Engine) Schema() *snapshot.Schema {
	return e.schema
}

// Bridge returns the navigation bridge the engine subscribes to.
func (e *Engine) Bridge() *navbridge.Bridge {
	return e.bridge
}

// State returns the lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Values returns the current published snapshot. It must not be modified.
func (e *Engine) Values() snapshot.Values {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Mount installs interception, reads the address, writes missing defaults
// back into it with a single replace commit, and publishes the snapshot.
func (e *Engine) Mount(ctx context.Context) (snapshot.Values, error) {
	ctx, span := e.tracer.Start(ctx, "querysync.Mount", trace.WithAttributes(
		attribute.Int("querysync.keys", e.schema.Len()),
	))
	defer span.End()

	e.mu.Lock()
	if e.state != StateUninitialized && e.state != StateUnmounted {
		state := e.state
		e.mu.Unlock()
		err := errors.Newf(errors.CategoryConfig, "engine already mounted (state %s)", state)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	e.state = StateMounting
	e.mu.Unlock()

	e.bridge.Acquire()
	unsubscribe := e.bridge.Subscribe(e.handleNotify)

	loc := e.host.Location()
	params := query.Parse(loc.RawQuery)
	values := e.reader.ReadParams(params)

	e.mu.Lock()
	e.current = values
	e.unsubscribe = unsubscribe
	e.mu.Unlock()

	materialized := e.materializeDefaults(loc, params)
	span.SetAttributes(attribute.Int("querysync.defaults_written", materialized))

	e.mu.Lock()
	e.state = StateIdle
	e.mu.Unlock()

	e.emit(ctx, values)
	return values, nil
}

// materializeDefaults writes every default whose key is missing from the
// address. It returns the number of keys written.
func (e *Engine) materializeDefaults(loc history.Location, params *query.Params) int {
	work := params.Clone()
	written := 0
	for _, f := range e.schema.Fields() {
		def, ok := e.reader.Default(f.Key)
		if !ok || params.Has(f.Key) {
			continue
		}
		if err := codec.EncodeParam(work, f.Key, f.Kind, def, e.reader.Codec(f.Key)); err != nil {
			e.reader.Report(err, f.Key, fmt.Sprint(def))
			continue
		}
		if work.Has(f.Key) {
			written++
		}
	}
	if written == 0 {
		return 0
	}

	before := e.canonical(params)
	after := e.canonical(work)
	if before == after {
		return 0
	}

	e.logger.Debug("writing defaults into address", "keys", written)
	e.commit(history.ModeReplace, loc.WithQuery(after))
	return written
}

// Patch merges changes into the query string and commits the result if it
// differs from the current query string. A nil value removes its key. Keys
// are processed in schema order. Patch returns an error only for undeclared
// keys or an unmounted engine; encoding failures are reported through the
// error handler and drop the key.
func (e *Engine) Patch(ctx context.Context, changes snapshot.Values, opts ...PatchOption) error {
	pc := patchConfig{mode: e.cfg.defaultMode}
	for _, opt := range opts {
		opt.applyPatch(&pc)
	}

	_, span := e.tracer.Start(ctx, "querysync.Patch", trace.WithAttributes(
		attribute.Int("querysync.changes", len(changes)),
		attribute.String("querysync.mode", pc.mode.String()),
	))
	defer span.End()

	for key := range changes {
		if err := e.schema.CheckKey(key); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	e.mu.Lock()
	if e.state != StateIdle && e.state != StateUpdating {
		state := e.state
		e.mu.Unlock()
		err := errors.New("Q014").WithDetail("state " + state.String())
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	e.mu.Unlock()

	loc := e.host.Location()
	params := query.Parse(loc.RawQuery)
	before := e.canonical(params)

	work := params.Clone()
	for _, f := range e.schema.Fields() {
		value, ok := changes[f.Key]
		if !ok {
			continue
		}
		if value == nil {
			work.Delete(f.Key)
			continue
		}
		if err := codec.EncodeParam(work, f.Key, f.Kind, value, e.reader.Codec(f.Key)); err != nil {
			e.reader.Report(err, f.Key, fmt.Sprint(value))
		}
	}
	after := e.canonical(work)

	if after == before {
		span.SetAttributes(attribute.Bool("querysync.noop", true))
		if e.cfg.observer != nil {
			e.cfg.observer.PatchSkipped()
		}
		return nil
	}
	span.SetAttributes(attribute.Bool("querysync.noop", false))

	e.setState(StateIdle, StateUpdating)
	e.commit(pc.mode, loc.WithQuery(after))
	e.setState(StateUpdating, StateIdle)
	return nil
}

// Unmount stops listening and releases interception. It is idempotent.
func (e *Engine) Unmount() {
	e.mu.Lock()
	if e.state == StateUninitialized || e.state == StateUnmounted {
		e.mu.Unlock()
		return
	}
	unsubscribe := e.unsubscribe
	e.unsubscribe = nil
	e.state = StateUnmounted
	e.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	e.bridge.Release()
}

// Refresh re-reads the address and publishes if the snapshot changed, as if
// a notification had arrived.
func (e *Engine) Refresh() {
	e.handleNotify()
}

// handleNotify recomputes the snapshot and publishes it when it differs.
func (e *Engine) handleNotify() {
	e.mu.Lock()
	if e.state != StateIdle && e.state != StateUpdating {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	ctx, span := e.tracer.Start(context.Background(), "querysync.Notify")
	defer span.End()

	values := e.reader.Read(e.host.Location().RawQuery)

	e.mu.Lock()
	if snapshot.Equal(e.schema, values, e.current) {
		e.mu.Unlock()
		span.SetAttributes(attribute.Bool("querysync.changed", false))
		return
	}
	e.current = values
	e.mu.Unlock()

	span.SetAttributes(attribute.Bool("querysync.changed", true))
	e.emit(ctx, values)
}

func (e *Engine) emit(_ context.Context, values snapshot.Values) {
	if e.cfg.observer != nil {
		e.cfg.observer.Published()
	}
	if e.publish != nil {
		e.publish(values)
	}
}

func (e *Engine) commit(mode history.Mode, loc history.Location) {
	url := loc.Relative()
	e.logger.Debug("committing address", "mode", mode.String(), "url", url)
	history.Commit(e.host, mode, url)
	if e.cfg.observer != nil {
		e.cfg.observer.Committed(mode)
	}
}

func (e *Engine) canonical(p *query.Params) string {
	if !e.cfg.sortKeys {
		return p.Encode()
	}
	sorted := p.Clone()
	sorted.Sort()
	return sorted.Encode()
}

func (e *Engine) setState(from, to State) {
	e.mu.Lock()
	if e.state == from {
		e.state = to
	}
	e.mu.Unlock()
}

// handleError fans a reported failure out to the observer and the user handler.
func (e *Engine) handleError(err error, key, raw string) {
	if e.cfg.observer != nil {
		category := "unknown"
		if t, ok := errors.Lookup(errors.CodeOf(err)); ok {
			category = string(t.Category)
		}
		e.cfg.observer.ErrorReported(category)
	}
	if e.cfg.onError != nil {
		e.cfg.onError(err, key, raw)
	}
}
