package request

import (
	"time"

	"citebroker/internal/item"
)

// Summary is the serializable record of a finished request.
type Summary struct {
	RequestID         string           `json:"request_id"`
	StartTime         time.Time        `json:"start_time"`
	EndTime           time.Time        `json:"end_time"`
	DurationMS        int64            `json:"duration_ms"`
	ServiceAPIVersion string           `json:"service_api_ver,omitempty"`
	ClientAPIVersion  string           `json:"client_api_ver,omitempty"`
	RequestType       string           `json:"request_type,omitempty"`
	ContentType       string           `json:"request_content_type,omitempty"`
	Requestor         RequestorSummary `json:"requestor"`
	Unmapped          string           `json:"unmapped,omitempty"`
	Request           string           `json:"request,omitempty"`
	Referrers         []string         `json:"referrers,omitempty"`
	Referents         []ReferentRecord `json:"referents,omitempty"`
	Errors            []string         `json:"errors,omitempty"`
}

// RequestorSummary is the logged view of a Requestor.
type RequestorSummary struct {
	Affiliation string   `json:"affiliation,omitempty"`
	IP          string   `json:"ip,omitempty"`
	Language    string   `json:"language,omitempty"`
	Agent       string   `json:"user_agent,omitempty"`
	Client      Client   `json:"client"`
	Identifiers []string `json:"identifiers,omitempty"`
}

// ReferentRecord is a resolved item with the calls made for it.
type ReferentRecord struct {
	ID           string             `json:"id"`
	Type         string             `json:"type"`
	Attributes   map[string]any     `json:"attributes"`
	Transactions []item.Transaction `json:"transactions,omitempty"`
}

// Summary snapshots the request for logging.
func (r *Request) Summary() Summary {
	s := Summary{
		RequestID:         r.ID,
		StartTime:         r.Start,
		EndTime:           r.End,
		DurationMS:        r.Duration().Milliseconds(),
		ServiceAPIVersion: r.ServiceAPIVersion,
		ClientAPIVersion:  r.ClientAPIVersion,
		RequestType:       r.Type,
		ContentType:       r.ContentType,
		Requestor: RequestorSummary{
			Affiliation: r.Requestor.Affiliation,
			IP:          r.Requestor.IP,
			Language:    r.Requestor.Language,
			Agent:       r.Requestor.Agent,
			Client:      r.Requestor.Client(),
			Identifiers: r.Requestor.Identifiers,
		},
		Unmapped:  r.Unmapped(),
		Request:   r.Raw,
		Referrers: r.Referrers,
		Errors:    r.Errors,
	}
	for _, it := range r.Referents {
		s.Referents = append(s.Referents, ReferentRecord{
			ID:           it.ID(),
			Type:         it.Type(),
			Attributes:   it.ToWireMap(),
			Transactions: it.Transactions(),
		})
	}
	return s
}
