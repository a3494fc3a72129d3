// Package service invokes one external lookup service over HTTP and turns
// whatever happens into exactly one classified Outcome. Transient failures
// (warnings) are retried with exponential backoff up to the configured
// attempt budget; errors and fatal failures are returned immediately.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"citebroker/internal/item"
	"citebroker/internal/messages"
	"citebroker/internal/service/metrics"
	"citebroker/internal/translator"
	dErrors "citebroker/pkg/domain-errors"
	"citebroker/pkg/requestcontext"
)

// DefaultMaxResponseBytes caps a response body when no limit is configured.
const DefaultMaxResponseBytes int64 = 10 << 20

// ForwardedHeaders are the only client headers passed on to services.
var ForwardedHeaders = []string{"Accept-Language", "User-Agent", "X-Forwarded-For"}

// Caller is anything a tier can dispatch to.
type Caller interface {
	Definition() Definition
	Invoke(ctx context.Context, call Call) Outcome
}

// Service calls a single configured target.
type Service struct {
	def          Definition
	translator   *translator.Translator
	client       *http.Client
	logger       *slog.Logger
	metrics      *metrics.Metrics
	messages     messages.Catalog
	maxBytes     int64
	retryBackoff time.Duration
	tracer       trace.Tracer
	now          func() time.Time
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithHTTPClient replaces the default client. Per-attempt timeouts come from
// the definition, not from the client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.client = c }
}

func WithMessages(c messages.Catalog) Option {
	return func(s *Service) { s.messages = c }
}

// WithTranslator renames item keys to and from the service vocabulary.
func WithTranslator(t *translator.Translator) Option {
	return func(s *Service) { s.translator = t }
}

// WithMaxResponseBytes caps how much of a response body is read.
func WithMaxResponseBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// WithRetryBackoff sets the initial delay between retried attempts.
func WithRetryBackoff(d time.Duration) Option {
	return func(s *Service) { s.retryBackoff = d }
}

// New builds a Service for def. Disabled definitions are accepted; the
// broker decides whether to dispatch them.
func New(def Definition, opts ...Option) (*Service, error) {
	if def.Name == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "service name is required")
	}
	def.applyDefaults()

	s := &Service{
		def:          def,
		client:       &http.Client{},
		logger:       slog.Default(),
		maxBytes:     DefaultMaxResponseBytes,
		retryBackoff: 100 * time.Millisecond,
		tracer:       otel.Tracer("citebroker/internal/service"),
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

func (s *Service) Definition() Definition { return s.def }

// Invoke calls the service for call.Item and returns one Outcome. call.Item
// may be shared with sibling services and is only read.
func (s *Service) Invoke(ctx context.Context, call Call) Outcome {
	ctx, span := s.tracer.Start(ctx, "service.invoke", trace.WithAttributes(
		attribute.String("service.name", s.def.Name),
		attribute.String("service.tier", s.def.Tier),
	))
	defer span.End()

	txID := uuid.NewString()
	started := s.now()
	log := s.logger.With(
		"service", s.def.Name,
		"transaction_id", txID,
		"request_id", requestcontext.RequestID(ctx),
	)

	var out Outcome
	attempts := 0
	if call.Item == nil {
		out = s.fail(SeverityError, CodeUnknownItem)
	} else if s.def.Target == "" {
		out = s.fail(SeverityFatal, CodeNoTargetDefined)
	} else {
		op := func() error {
			attempts++
			out = s.attempt(ctx, log, txID, call)
			if out.OK() {
				return nil
			}
			if out.Failure.Severity == SeverityWarning {
				return out.Failure
			}
			return backoff.Permanent(out.Failure)
		}
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = s.retryBackoff
		b.MaxElapsedTime = 0
		policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.def.MaxAttempts-1)), ctx)
		_ = backoff.Retry(op, policy)
	}

	out.Service = s.def.Name
	out.Transaction = item.Transaction{
		ID:       txID,
		Service:  s.def.Name,
		Status:   out.Status(),
		Attempts: attempts,
		Started:  started,
		Duration: s.now().Sub(started),
	}
	s.metrics.ObserveCall(s.def.Name, out.Transaction.Status, attempts, out.Transaction.Duration)
	span.SetAttributes(attribute.Int("service.attempts", attempts), attribute.String("service.status", out.Transaction.Status))

	if out.OK() {
		log.InfoContext(ctx, "service responded",
			"items", len(out.Items),
			"attempts", attempts,
			"duration_ms", out.Transaction.Duration.Milliseconds(),
		)
		return out
	}

	span.SetStatus(codes.Error, out.Failure.Message)
	attrs := []any{
		"severity", out.Failure.Severity,
		"code", out.Failure.Code,
		"message", out.Failure.Message,
		"attempts", attempts,
		"duration_ms", out.Transaction.Duration.Milliseconds(),
	}
	switch out.Failure.Severity {
	case SeverityWarning:
		log.WarnContext(ctx, "service call failed", attrs...)
	default:
		log.ErrorContext(ctx, "service call failed", attrs...)
	}
	return out
}

func (s *Service) attempt(ctx context.Context, log *slog.Logger, txID string, call Call) Outcome {
	itemMap := s.translator.TranslateMap(call.Item.ToWireMap(), true)
	body, err := buildPayload(s.now(), txID, call.Item.Type(), itemMap, call.Info)
	if err != nil {
		return s.fail(SeverityError, CodeServerError)
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.def.Timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, s.def.Target, bytes.NewReader(body))
	if err != nil {
		return s.fail(SeverityFatal, CodeNoTargetDefined)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	for _, k := range ForwardedHeaders {
		for _, v := range call.Headers.Values(k) {
			req.Header.Add(k, v)
		}
	}

	log.DebugContext(ctx, "calling service", "target", s.def.Target, "bytes", len(body))

	resp, err := s.client.Do(req)
	if err != nil {
		return s.transportFailure(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return s.transportFailure(err)
	}
	if int64(len(data)) > s.maxBytes {
		return s.fail(SeverityFatal, CodeBufferOverflow)
	}

	return s.classify(resp.StatusCode, data, txID, call.Item)
}

// classify maps a complete HTTP response onto an Outcome.
func (s *Service) classify(status int, data []byte, txID string, original *item.Item) Outcome {
	switch status {
	case http.StatusOK:
		env, err := decodeEnvelope(data, original.Type())
		if err != nil {
			return s.fail(SeverityFatal, CodeBadJSON)
		}
		if env.ID != txID {
			return s.fail(SeverityError, CodeWrongResponse)
		}
		if !env.found {
			return s.fail(SeverityError, CodeUnknownItem)
		}
		items, ok := s.parseItems(env.Items, original)
		if !ok {
			return s.fail(SeverityError, CodeUnknownItem)
		}
		return Outcome{Items: items}

	case http.StatusBadRequest:
		return s.fail(SeverityError, CodeBadRequest)

	case http.StatusNotFound:
		return Outcome{Items: []*item.Item{}}

	default:
		var env errorEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return s.fail(SeverityFatal, CodeServerErrorFatal)
		}
		if env.Error != nil {
			return s.remoteFailure(*env.Error)
		}
		for _, e := range env.Errors {
			if e.Level != "" {
				return s.remoteFailure(e)
			}
		}
		return s.fail(SeverityFatal, CodeServerErrorFatal)
	}
}

func (s *Service) parseItems(raw any, original *item.Item) ([]*item.Item, bool) {
	var elems []any
	switch v := raw.(type) {
	case []any:
		elems = v
	case map[string]any:
		elems = []any{v}
	default:
		return nil, false
	}

	items := make([]*item.Item, 0, len(elems))
	for _, e := range elems {
		m, ok := e.(map[string]any)
		if !ok {
			return nil, false
		}
		it, err := item.FromWireMap(original.Registry(), original.Type(), false, s.translator.TranslateMap(m, false))
		if err != nil {
			return nil, false
		}
		items = append(items, it)
	}
	return items, true
}

func (s *Service) remoteFailure(e remoteError) Outcome {
	if e.Level == "" {
		return s.fail(SeverityFatal, CodeServerErrorFatal)
	}
	msg := e.Message
	if s.messages.Has(msg) {
		msg = s.messages.Build(msg, s.def.Name)
	}
	return Outcome{Failure: &Failure{Severity: ParseSeverity(e.Level), Code: CodeRemoteError, Message: msg}}
}

// transportFailure classifies errors raised before a complete response was read.
func (s *Service) transportFailure(err error) Outcome {
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return s.fail(SeverityWarning, CodeConnectionRefused)
	case isTimeout(err):
		return s.fail(SeverityWarning, CodeTimeout)
	default:
		return s.fail(SeverityError, CodeServerError)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func (s *Service) fail(sev Severity, code Code) Outcome {
	return Outcome{Failure: &Failure{
		Severity: sev,
		Code:     code,
		Message:  s.messages.Build(code.MessageKey(), s.def.Name),
	}}
}
