package broker

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"citebroker/internal/augmenter"
	"citebroker/internal/item"
	"citebroker/internal/messages"
	"citebroker/internal/request"
	"citebroker/internal/service"
	"citebroker/internal/tier"
	dErrors "citebroker/pkg/domain-errors"
)

// run holds the state of one Process call. It is only touched from the
// goroutine running Process.
type run struct {
	broker  *Broker
	req     *request.Request
	headers http.Header
	out     chan<- Message
	log     *slog.Logger
}

func (r *run) resolveReferent(ctx context.Context, referent *item.Item) error {
	b := r.broker

	if referent == nil || !referent.IsValid() {
		b.metrics.IncrementReferent("bad_item")
		text := b.messages.Build(messages.BrokerBadItem)
		r.req.AddError(text)
		r.log.WarnContext(ctx, text, "item", itemString(referent))
		if err := r.emitError(ctx, "", "error", text); err != nil {
			return err
		}
		return dErrors.Wrap(ErrBadItem, dErrors.CodeValidation, text)
	}

	ctx, span := b.tracer.Start(ctx, "broker.resolve", trace.WithAttributes(
		attribute.String("item.type", referent.Type()),
		attribute.String("item.id", referent.ID()),
	))
	plans := b.Resolve(r.req, referent)
	span.SetAttributes(attribute.Int("broker.tiers", len(plans)))
	span.End()

	resolved := 0
	for _, p := range plans {
		resolved += len(p.Services)
	}
	b.metrics.ObserveResolved(resolved)

	if len(plans) == 0 {
		b.metrics.IncrementReferent("no_services")
		text := b.messages.Build(messages.BrokerNoServicesAvailable)
		r.req.AddError(text)
		r.log.InfoContext(ctx, text, "item", referent.String())
		if err := r.emitError(ctx, "", "error", text); err != nil {
			return err
		}
		return dErrors.Wrap(ErrNoServicesAvailable, dErrors.CodeNotFound, text)
	}

	var leftovers []service.Caller
	for _, p := range plans {
		if err := ctx.Err(); err != nil {
			return err
		}
		t := tier.New(p.Tier, b.rules.MinimumItemGroups,
			tier.WithLogger(r.log),
			tier.WithMessages(b.messages),
			tier.WithTimeout(b.tierTimeout),
		)
		t.Register(p.Services...)
		t.Register(leftovers...)

		var err error
		if leftovers, err = r.runTier(ctx, t, referent); err != nil {
			return err
		}
	}

	for _, c := range leftovers {
		r.log.InfoContext(ctx, "service never dispatched, minimum item groups not met",
			"service", c.Definition().Name)
	}

	b.metrics.IncrementReferent("complete")
	return nil
}

// runTier drives t to completion and returns its leftovers.
func (r *run) runTier(ctx context.Context, t *tier.Tier, referent *item.Item) ([]service.Caller, error) {
	b := r.broker
	started := time.Now()
	r.log.DebugContext(ctx, "processing tier", "tier", t.Name(), "services", len(t.Services()))

	call := service.Call{
		Item:    referent,
		Headers: r.headers,
		Info: service.RequestInfo{
			APIVersion:           r.req.ServiceAPIVersion,
			Referrers:            r.req.Referrers,
			RequestorIP:          r.req.Requestor.IP,
			RequestorAffiliation: r.req.Requestor.Affiliation,
			RequestorLanguage:    r.req.Requestor.Language,
			Unmapped:             r.req.Unmapped(),
			OriginalRequest:      r.req.Raw,
		},
	}

	var leftovers []service.Caller
	for ev := range t.Run(ctx, call) {
		if ev.Done {
			leftovers = ev.Leftovers
			b.metrics.ObserveTier(t.Name(), time.Since(started), ev.TimedOut)
			if ev.TimedOut {
				text := b.messages.Build(messages.TierTimeout, t.Name())
				r.req.AddError(text)
				if err := r.emitError(ctx, "", string(service.SeverityWarning), text); err != nil {
					return nil, err
				}
			}
			continue
		}
		if err := r.handleResult(ctx, referent, *ev.Result); err != nil {
			return nil, err
		}
	}
	return leftovers, nil
}

// handleResult merges one service outcome into referent and forwards it.
func (r *run) handleResult(ctx context.Context, referent *item.Item, out service.Outcome) error {
	b := r.broker
	referent.AddTransaction(out.Transaction)
	display := b.displayName(out.Service)

	if !out.OK() {
		f := out.Failure
		r.req.AddError(fmt.Sprintf("%s: %s: %s", out.Service, f.Severity, f.Message))
		return r.emitError(ctx, display, string(f.Severity), f.Message)
	}

	for _, it := range out.Items {
		if it == nil {
			if err := r.emitError(ctx, display, "error", b.messages.Build(messages.TierUnknownItemType, display)); err != nil {
				return err
			}
			continue
		}
		if _, known := b.registry.Definition(it.Type()); !known {
			if err := r.emitError(ctx, display, "error", b.messages.Build(messages.TierUnknownItemType, display)); err != nil {
				return err
			}
			continue
		}
		if it.Type() == referent.Type() {
			augmenter.Augment(referent, it)
		}
		if err := r.emit(ctx, Message{Kind: KindItem, Service: display, ItemType: it.Type(), Item: it.ToWireMap()}); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) emitError(ctx context.Context, svc, level, text string) error {
	return r.emit(ctx, Message{Kind: KindError, Service: svc, Level: level, Text: text})
}

// emit stamps and sends m, giving up when ctx ends.
func (r *run) emit(ctx context.Context, m Message) error {
	m.Time = r.broker.now()
	m.APIVersion = r.broker.apiVersion
	select {
	case r.out <- m:
		r.broker.metrics.IncrementMessage(m.Kind.String())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func itemString(it *item.Item) string {
	if it == nil {
		return "<nil>"
	}
	return it.String()
}
