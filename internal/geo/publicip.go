package geo

import (
	"context"
	"fmt"
	"net/http"
)

// PublicIPResolver discovers the public address this process egresses from.
type PublicIPResolver interface {
	PublicIP(ctx context.Context) (string, error)
}

// Ipify resolves the public address through an ipify-compatible endpoint
// returning {"ip": "..."}.
type Ipify struct {
	url    string
	client *http.Client
}

// NewIpify returns a resolver calling url.
func NewIpify(url string, client *http.Client) *Ipify {
	return &Ipify{url: url, client: client}
}

// PublicIP implements PublicIPResolver.
func (p *Ipify) PublicIP(ctx context.Context) (string, error) {
	var body struct {
		IP string `json:"ip"`
	}
	if err := getJSON(ctx, p.client, p.url, &body); err != nil {
		return "", err
	}
	a, err := ParseAddress(body.IP)
	if err != nil {
		return "", fmt.Errorf("%w: public ip service returned %q", ErrUpstream, body.IP)
	}
	return a.String(), nil
}
