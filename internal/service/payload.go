package service

import (
	"encoding/json"
	"net/http"
	"time"

	"citebroker/internal/item"
	"citebroker/internal/schema"
)

// RequestInfo is the requestor context forwarded to every service.
type RequestInfo struct {
	APIVersion           string
	Referrers            []string
	RequestorIP          string
	RequestorAffiliation string
	RequestorLanguage    string
	Unmapped             string
	OriginalRequest      string
}

// Call is what a tier hands a service: a read-only item snapshot plus context.
type Call struct {
	Item    *item.Item
	Headers http.Header
	Info    RequestInfo
}

// buildPayload renders the outbound JSON. Item keys are already translated
// to the service vocabulary.
func buildPayload(now time.Time, txID, itemType string, itemMap map[string]any, info RequestInfo) ([]byte, error) {
	doc := map[string]any{
		"time": now.UTC().Format(time.RFC3339Nano),
		"id":   txID,
	}
	if info.APIVersion != "" {
		doc["api_ver"] = info.APIVersion
	}
	if len(info.Referrers) > 0 {
		doc["referrers"] = info.Referrers
	}
	if info.RequestorIP != "" {
		doc["requestor_ip"] = info.RequestorIP
	}
	if info.RequestorAffiliation != "" {
		doc["requestor_affiliation"] = info.RequestorAffiliation
	}
	if info.RequestorLanguage != "" {
		doc["requestor_language"] = info.RequestorLanguage
	}
	if info.Unmapped != "" {
		doc["unmapped"] = info.Unmapped
	}
	if info.OriginalRequest != "" {
		doc["original_request"] = info.OriginalRequest
	}
	if itemMap == nil {
		itemMap = map[string]any{}
	}
	doc[itemType] = itemMap
	return json.Marshal(doc)
}

// responseEnvelope is the success body a service returns.
type responseEnvelope struct {
	ID string
	// Items holds the "<type>s" member, which may be a list or a single object.
	Items any
	found bool
}

func decodeEnvelope(data []byte, itemType string) (responseEnvelope, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return responseEnvelope{}, err
	}
	env := responseEnvelope{}
	env.ID, _ = raw["id"].(string)
	env.Items, env.found = raw[schema.CollectionKey(itemType)]
	return env, nil
}

type remoteError struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error  *remoteError  `json:"error"`
	Errors []remoteError `json:"errors"`
}
