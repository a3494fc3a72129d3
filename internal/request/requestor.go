package request

import "github.com/mssola/useragent"

// Requestor describes the party asking for a citation to be resolved.
type Requestor struct {
	Affiliation string
	IP          string
	Agent       string
	Language    string
	Identifiers []string
}

// Client is the parsed form of the requestor's user agent.
type Client struct {
	Browser        string `json:"browser,omitempty"`
	BrowserVersion string `json:"browser_version,omitempty"`
	OS             string `json:"os,omitempty"`
	Mobile         bool   `json:"mobile"`
	Bot            bool   `json:"bot"`
}

// Client parses Agent. An empty agent yields the zero Client.
func (r Requestor) Client() Client {
	if r.Agent == "" {
		return Client{}
	}
	ua := useragent.New(r.Agent)
	name, version := ua.Browser()
	return Client{
		Browser:        name,
		BrowserVersion: version,
		OS:             ua.OS(),
		Mobile:         ua.Mobile(),
		Bot:            ua.Bot(),
	}
}
