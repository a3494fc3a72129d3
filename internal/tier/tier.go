// Package tier runs one group of services concurrently against a snapshot of
// an item and reports each outcome as it arrives.
package tier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"citebroker/internal/messages"
	"citebroker/internal/schema"
	"citebroker/internal/service"
)

// Event is one notification from a running tier. Exactly one event per
// dispatched service carries a Result, followed by a single Done event.
type Event struct {
	Result *service.Outcome

	Done bool
	// Leftovers are services whose minimum item groups were not satisfied.
	Leftovers []service.Caller
	// TimedOut is set on the Done event when the tier deadline cut services off.
	TimedOut bool
}

// Tier is built per request and is not reused.
type Tier struct {
	name     string
	minimums map[string][]schema.Rule
	queue    []service.Caller
	timeout  time.Duration
	logger   *slog.Logger
	messages messages.Catalog
	tracer   trace.Tracer
}

type Option func(*Tier)

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tier) { t.logger = logger }
}

func WithMessages(c messages.Catalog) Option {
	return func(t *Tier) { t.messages = c }
}

// WithTimeout bounds the whole tier. Services still running when it fires
// are reported as warning timeouts.
func WithTimeout(d time.Duration) Option {
	return func(t *Tier) { t.timeout = d }
}

// New creates a tier. minimums maps service names to the item groups the
// item must satisfy before that service is called.
func New(name string, minimums map[string][]schema.Rule, opts ...Option) *Tier {
	t := &Tier{
		name:     name,
		minimums: minimums,
		logger:   slog.Default(),
		tracer:   otel.Tracer("citebroker/internal/tier"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

func (t *Tier) Name() string { return t.name }

// Register appends callers to the queue.
func (t *Tier) Register(callers ...service.Caller) {
	t.queue = append(t.queue, callers...)
}

// Services returns the queued callers.
func (t *Tier) Services() []service.Caller {
	return t.queue
}

// Run dispatches every queued service whose gate passes and returns the
// event stream. The channel is closed after the Done event. call.Item is
// snapshotted once; services only ever see the snapshot.
func (t *Tier) Run(ctx context.Context, call service.Call) <-chan Event {
	var dispatch, leftovers []service.Caller
	for _, c := range t.queue {
		if call.Item != nil && !call.Item.HasMinimum(t.minimums[c.Definition().Name]) {
			leftovers = append(leftovers, c)
			continue
		}
		dispatch = append(dispatch, c)
	}

	events := make(chan Event, len(dispatch)+1)
	if len(dispatch) == 0 {
		events <- Event{Done: true, Leftovers: leftovers}
		close(events)
		return events
	}

	call.Item = call.Item.Clone()
	go t.run(ctx, call, dispatch, leftovers, events)
	return events
}

func (t *Tier) run(ctx context.Context, call service.Call, dispatch, leftovers []service.Caller, events chan<- Event) {
	defer close(events)

	ctx, span := t.tracer.Start(ctx, "tier.run", trace.WithAttributes(
		attribute.String("tier.name", t.name),
		attribute.Int("tier.dispatched", len(dispatch)),
		attribute.Int("tier.leftovers", len(leftovers)),
	))
	defer span.End()

	var cancel context.CancelFunc = func() {}
	if t.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
	}
	defer cancel()

	results := make(chan service.Outcome, len(dispatch))
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range dispatch {
		t.logger.DebugContext(ctx, "dispatching service", "tier", t.name, "service", c.Definition().Name)
		g.Go(func() error {
			results <- t.invoke(gctx, c, call)
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(results)
	}()

	pending := make(map[string]bool, len(dispatch))
	for _, c := range dispatch {
		pending[c.Definition().Name] = true
	}

	timedOut := false
collect:
	for len(pending) > 0 {
		select {
		case out, ok := <-results:
			if !ok {
				break collect
			}
			delete(pending, out.Service)
			events <- Event{Result: &out}
		case <-ctx.Done():
			timedOut = true
			break collect
		}
	}

	if timedOut {
		collectReady(results, pending, events)
		timedOut = len(pending) > 0
	}

	if timedOut {
		for _, c := range dispatch {
			name := c.Definition().Name
			if !pending[name] {
				continue
			}
			out := service.Failed(name, service.SeverityWarning, service.CodeTimeout, t.messages)
			events <- Event{Result: &out}
		}
		t.logger.WarnContext(ctx, "tier timed out", "tier", t.name, "pending", len(pending))
		span.SetAttributes(attribute.Bool("tier.timed_out", true))
	}

	events <- Event{Done: true, Leftovers: leftovers, TimedOut: timedOut}
}

// collectReady forwards outcomes already waiting in results without blocking.
func collectReady(results <-chan service.Outcome, pending map[string]bool, events chan<- Event) {
	for {
		select {
		case out, ok := <-results:
			if !ok {
				return
			}
			delete(pending, out.Service)
			events <- Event{Result: &out}
		default:
			return
		}
	}
}

// invoke calls c and turns a panic into a fatal outcome.
func (t *Tier) invoke(ctx context.Context, c service.Caller, call service.Call) (out service.Outcome) {
	name := c.Definition().Name
	defer func() {
		if r := recover(); r != nil {
			t.logger.ErrorContext(ctx, "service panicked", "tier", t.name, "service", name, "panic", fmt.Sprint(r))
			out = service.Failed(name, service.SeverityFatal, service.CodeServerError, t.messages)
		}
	}()
	out = c.Invoke(ctx, call)
	out.Service = name
	return out
}
