// Package stub serves placeholder content for the "default" service so a
// broker can be exercised end to end without real lookup services.
package stub

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"citebroker/internal/item"
	"citebroker/internal/schema"
	dErrors "citebroker/pkg/domain-errors"
	"citebroker/pkg/platform/httputil"
)

// ExampleValue fills every attribute of a generated item.
const ExampleValue = "example"

type Handler struct {
	registry *schema.Registry
	logger   *slog.Logger
}

func New(registry *schema.Registry, logger *slog.Logger) *Handler {
	return &Handler{registry: registry, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/default", h.handleDefault)
}

func (h *Handler) handleDefault(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return
	}

	root := h.registry.RootType()
	it, err := Example(h.registry, root)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to build example item", "type", root, "error", err)
		httputil.WriteError(w, err)
		return
	}

	body := map[string]any{"id": payload.ID}
	body[schema.CollectionKey(root)] = []any{it.ToWireMap()}
	httputil.WriteJSON(w, http.StatusOK, body)
}

// Example builds an item of typ with every declared attribute set to
// ExampleValue and one example child of each child type.
func Example(registry *schema.Registry, typ string) (*item.Item, error) {
	def, ok := registry.Definition(typ)
	if !ok {
		return nil, dErrors.Wrap(item.ErrUndefinedItemType, dErrors.CodeInvalidInput, typ)
	}
	attrs := make(map[string]item.Value, len(def.Attributes)+len(def.Children))
	for _, a := range def.Attributes {
		attrs[a] = item.Scalar(ExampleValue)
	}
	for _, childType := range def.Children {
		child, err := Example(registry, childType)
		if err != nil {
			return nil, err
		}
		attrs[schema.CollectionKey(childType)] = item.Children(child)
	}
	return item.New(registry, typ, false, attrs)
}
