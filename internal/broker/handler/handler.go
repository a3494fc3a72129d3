// Package handler exposes the broker over HTTP: a newline-delimited JSON
// stream at /resolve, a websocket at /ws and the parsed citation at /citation.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"citebroker/internal/broker"
	"citebroker/internal/item"
	"citebroker/internal/messages"
	"citebroker/internal/request"
	dErrors "citebroker/pkg/domain-errors"
	"citebroker/pkg/platform/httputil"
	"citebroker/pkg/platform/middleware/metadata"
	"citebroker/pkg/requestcontext"
)

const (
	ndjsonContentType = "application/x-ndjson"
	maxQueryBytes     = 64 << 10
)

// Broker resolves a prepared request, writing messages to out.
type Broker interface {
	Process(ctx context.Context, req *request.Request, headers http.Header, out chan<- broker.Message) error
}

// Parser turns a query string into the referent of req.
type Parser interface {
	Parse(raw string, req *request.Request) (*item.Item, error)
}

// Affiliations fills in a requestor's campus and address.
type Affiliations interface {
	Resolve(ctx context.Context, r *request.Requestor, connIP string) error
}

// Handler wires the client facing endpoints to the broker.
type Handler struct {
	broker       Broker
	parser       Parser
	affiliations Affiliations
	messages     messages.Catalog
	logger       *slog.Logger
	upgrader     websocket.Upgrader

	serviceAPIVersion string
	clientAPIVersion  string
	now               func() time.Time
}

type Option func(*Handler)

// WithAffiliations enables consortial lookups before dispatch.
func WithAffiliations(a Affiliations) Option {
	return func(h *Handler) { h.affiliations = a }
}

func WithMessages(c messages.Catalog) Option {
	return func(h *Handler) { h.messages = c }
}

// WithAPIVersions records the versions stamped on every request.
func WithAPIVersions(service, client string) Option {
	return func(h *Handler) {
		h.serviceAPIVersion = service
		h.clientAPIVersion = client
	}
}

// New constructs a handler.
func New(b Broker, parser Parser, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		broker: b,
		parser: parser,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the broker endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/resolve", h.HandleResolve)
	r.Post("/resolve", h.HandleResolve)
	r.Get("/ws", h.HandleSocket)
	r.Get("/citation", h.HandleCitation)
}

// HandleResolve streams the broker's messages for one query. GET reads the
// query string, POST the request body.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	raw, err := rawQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, err := h.prepare(ctx, r, raw)
	if err != nil {
		h.logger.WarnContext(ctx, "unable to parse query", "request_id", requestcontext.RequestID(ctx), "error", err)
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", ndjsonContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)

	h.stream(ctx, req, r.Header, func(m broker.Message) error {
		if err := enc.Encode(m); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
}

// HandleSocket upgrades the connection and resolves every text frame as a
// query, in order. The connection stays open until the client closes it.
func (h *Handler) HandleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.DebugContext(ctx, "websocket closed", "error", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		req, err := h.prepare(ctx, r, string(data))
		if err != nil {
			_ = conn.WriteJSON(broker.Message{
				Kind:       broker.KindError,
				Time:       h.now(),
				APIVersion: h.clientAPIVersion,
				Level:      "error",
				Text:       err.Error(),
			})
			continue
		}
		h.stream(ctx, req, r.Header, func(m broker.Message) error {
			return conn.WriteJSON(m)
		})
	}
}

// HandleCitation returns the item a query string maps onto without resolving it.
func (h *Handler) HandleCitation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := request.New(h.now())
	it, err := h.parser.Parse(r.URL.RawQuery, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, it.ToWireMap())
	h.logger.DebugContext(ctx, "citation parsed", "request_id", req.ID, "type", it.Type())
}

// prepare builds a request from the HTTP exchange and raw, then runs the
// consortial lookup. Lookup failures are recorded on the request only.
func (h *Handler) prepare(ctx context.Context, r *http.Request, raw string) (*request.Request, error) {
	client := metadata.GetClient(ctx)
	if client == (metadata.Client{}) {
		client = metadata.FromRequest(r)
	}

	req := request.New(h.now())
	req.ContentType = r.Header.Get("Content-Type")
	req.ServiceAPIVersion = h.serviceAPIVersion
	req.ClientAPIVersion = h.clientAPIVersion
	req.Requestor.Agent = client.UserAgent
	req.Requestor.Language = client.Language
	for _, ref := range client.Referrers() {
		req.AddReferrer(ref)
	}

	if _, err := h.parser.Parse(raw, req); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "unable to parse query")
	}

	if h.affiliations != nil {
		if err := h.affiliations.Resolve(ctx, &req.Requestor, client.IP); err != nil {
			h.logger.WarnContext(ctx, "consortial lookup failed", "request_id", req.ID, "error", err)
			req.AddError(h.messages.Build(messages.BrokerConsortialError))
		}
	}
	return req, nil
}

// stream runs the broker and hands each message to write until the broker
// settles. A failed write cancels the run.
func (h *Handler) stream(ctx context.Context, req *request.Request, headers http.Header, write func(broker.Message) error) {
	ctx, cancel := context.WithCancel(requestcontext.WithRequestID(ctx, req.ID))
	defer cancel()

	out := make(chan broker.Message)
	done := make(chan error, 1)
	go func() {
		done <- h.broker.Process(ctx, req, headers, out)
		close(out)
	}()

	writeFailed := false
	for m := range out {
		if writeFailed {
			continue
		}
		if err := write(m); err != nil {
			writeFailed = true
			h.logger.InfoContext(ctx, "client went away", "request_id", req.ID, "error", err)
			cancel()
		}
	}

	if err := <-done; err != nil && !writeFailed {
		h.logger.InfoContext(ctx, "request finished with errors", "request_id", req.ID, "error", err)
	}
}

func rawQuery(r *http.Request) (string, error) {
	if r.Method != http.MethodPost {
		return r.URL.RawQuery, nil
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxQueryBytes+1))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeBadRequest, "unable to read request body")
	}
	if len(data) > maxQueryBytes {
		return "", dErrors.New(dErrors.CodeBadRequest, "query too large")
	}
	return string(data), nil
}
