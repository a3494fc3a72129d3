// Package broker turns a request into service calls and streams what comes
// back. For each referent it resolves the eligible services from the rules,
// groups them into tiers in configuration order and runs the tiers one after
// another, merging every result into the referent and forwarding it to the
// client.
package broker

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"citebroker/internal/broker/metrics"
	"citebroker/internal/messages"
	"citebroker/internal/request"
	"citebroker/internal/requestlog"
	"citebroker/internal/schema"
	"citebroker/internal/service"
	dErrors "citebroker/pkg/domain-errors"
)

// DefaultTierTimeout bounds a tier when no timeout is configured.
const DefaultTierTimeout = 20 * time.Second

var (
	ErrBadSocket           = errors.New("no output channel")
	ErrBadRequest          = errors.New("request has no referents")
	ErrBadItem             = errors.New("referent is not valid")
	ErrNoServicesAvailable = errors.New("no services available")
)

// ClientFilter narrows the resolved service names for a request. The
// default keeps every name.
type ClientFilter func(req *request.Request, names []string) []string

// Config is the read-only configuration shared by every request.
type Config struct {
	Registry *schema.Registry
	Rules    *Rules
	Tiers    []service.TierSpec
	// Callers holds one caller per service name. Services missing here are
	// treated as unknown.
	Callers map[string]service.Caller
}

// Broker is safe for concurrent use; per-request state lives in Process.
type Broker struct {
	registry *schema.Registry
	rules    *Rules
	tiers    []service.TierSpec
	callers  map[string]service.Caller
	defs     map[string]service.Definition

	apiVersion   string
	tierTimeout  time.Duration
	messages     messages.Catalog
	clientFilter ClientFilter
	requestLog   requestlog.Publisher
	logger       *slog.Logger
	metrics      *metrics.Metrics
	tracer       trace.Tracer
	now          func() time.Time
}

type Option func(*Broker)

func WithLogger(logger *slog.Logger) Option {
	return func(b *Broker) { b.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Broker) { b.metrics = m }
}

func WithMessages(c messages.Catalog) Option {
	return func(b *Broker) { b.messages = c }
}

// WithAPIVersion sets the api_ver stamped on client messages.
func WithAPIVersion(v string) Option {
	return func(b *Broker) { b.apiVersion = v }
}

// WithTierTimeout bounds each tier. Zero or negative disables the bound.
func WithTierTimeout(d time.Duration) Option {
	return func(b *Broker) { b.tierTimeout = d }
}

func WithClientFilter(f ClientFilter) Option {
	return func(b *Broker) {
		if f != nil {
			b.clientFilter = f
		}
	}
}

// WithRequestLog publishes a summary of every finished request.
func WithRequestLog(p requestlog.Publisher) Option {
	return func(b *Broker) { b.requestLog = p }
}

// WithClock is used in tests to control timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Broker) { b.now = now }
}

func New(cfg Config, opts ...Option) (*Broker, error) {
	if cfg.Registry == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "item registry is required")
	}
	rules := cfg.Rules
	if rules == nil {
		rules = &Rules{}
	}

	b := &Broker{
		registry:     cfg.Registry,
		rules:        rules,
		tiers:        cfg.Tiers,
		callers:      cfg.Callers,
		defs:         make(map[string]service.Definition),
		apiVersion:   "1",
		tierTimeout:  DefaultTierTimeout,
		clientFilter: func(_ *request.Request, names []string) []string { return names },
		logger:       slog.Default(),
		tracer:       otel.Tracer("citebroker/internal/broker"),
		now:          time.Now,
	}
	for _, t := range cfg.Tiers {
		for _, def := range t.Services {
			b.defs[def.Name] = def
		}
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b, nil
}

// Process resolves every referent of req and writes the resulting messages
// to out. It returns once all tiers of all referents have settled. Structural
// failures are recorded on req, reported on out where possible and returned.
// The caller keeps ownership of out.
func (b *Broker) Process(ctx context.Context, req *request.Request, headers http.Header, out chan<- Message) error {
	if out == nil {
		if req != nil {
			req.AddError(ErrBadSocket.Error())
		}
		return dErrors.Wrap(ErrBadSocket, dErrors.CodeInternal, "broker has nowhere to send results")
	}
	if req == nil || len(req.Referents) == 0 {
		if req != nil {
			req.AddError(ErrBadRequest.Error())
		}
		return dErrors.Wrap(ErrBadRequest, dErrors.CodeBadRequest, "nothing to resolve")
	}

	b.metrics.IncrementInFlight()
	defer b.metrics.DecrementInFlight()

	ctx, span := b.tracer.Start(ctx, "broker.process")
	defer span.End()

	r := &run{broker: b, req: req, headers: headers, out: out}
	r.log = b.logger.With("request_id", req.ID)

	var errs []error
	completed := 0
	for _, referent := range req.Referents {
		err := r.resolveReferent(ctx, referent)
		if err == nil {
			completed++
			continue
		}
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			b.metrics.IncrementReferent("aborted")
			break
		}
		errs = append(errs, err)
	}

	if completed > 0 && ctx.Err() == nil {
		if err := r.emit(ctx, Message{Kind: KindComplete, Text: b.messages.Build(messages.BrokerResponseSuccess)}); err != nil {
			errs = append(errs, err)
		}
	}

	req.Finish(b.now())
	b.publish(ctx, req)
	return errors.Join(errs...)
}

func (b *Broker) publish(ctx context.Context, req *request.Request) {
	if b.requestLog == nil {
		return
	}
	if err := b.requestLog.Publish(context.WithoutCancel(ctx), req.Summary()); err != nil {
		b.logger.WarnContext(ctx, "failed to publish request summary", "request_id", req.ID, "error", err)
	}
}

func (b *Broker) displayName(name string) string {
	if def, ok := b.defs[name]; ok && def.DisplayName != "" {
		return def.DisplayName
	}
	return name
}
