package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Provider answers a lookup for one address with its own payload variant.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, addr string) (Payload, error)
}

// maxBody caps how much of an upstream response is decoded.
const maxBody = 1 << 20

// NewHTTPClient returns the client used for every outbound call. timeout
// bounds the whole exchange including reading the body.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// getJSON performs a single GET and decodes a 2xx JSON body into dst.
// Every failure is reported as ErrUpstream.
func getJSON(ctx context.Context, client *http.Client, rawURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %w", ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("%w: upstream status %d", ErrUpstream, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(dst); err != nil {
		return fmt.Errorf("%w: decode: %w", ErrUpstream, err)
	}
	return nil
}

func joinPath(base, addr string) string {
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(addr)
}

// IPInfo is the keyed provider (ipinfo.io).
type IPInfo struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewIPInfo returns a provider querying baseURL with token.
func NewIPInfo(baseURL, token string, client *http.Client) *IPInfo {
	return &IPInfo{baseURL: baseURL, token: token, client: client}
}

// Name implements Provider.
func (p *IPInfo) Name() string { return "ipinfo" }

// Fetch implements Provider.
func (p *IPInfo) Fetch(ctx context.Context, addr string) (Payload, error) {
	u := joinPath(p.baseURL, addr) + "?token=" + url.QueryEscape(p.token)
	var out IPInfoPayload
	if err := getJSON(ctx, p.client, u, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// IPAPI is the keyless provider (ip-api.com).
type IPAPI struct {
	baseURL string
	client  *http.Client
}

// NewIPAPI returns a provider querying baseURL.
func NewIPAPI(baseURL string, client *http.Client) *IPAPI {
	return &IPAPI{baseURL: baseURL, client: client}
}

// Name implements Provider.
func (p *IPAPI) Name() string { return "ip-api" }

// Fetch implements Provider. A body with status "fail" is an upstream error
// even though it arrives with 200.
func (p *IPAPI) Fetch(ctx context.Context, addr string) (Payload, error) {
	var out IPAPIPayload
	if err := getJSON(ctx, p.client, joinPath(p.baseURL, addr), &out); err != nil {
		return nil, err
	}
	if strings.EqualFold(out.Status, "fail") {
		return nil, fmt.Errorf("%w: %s", ErrUpstream, out.Message)
	}
	return out, nil
}
