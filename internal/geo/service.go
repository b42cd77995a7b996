package geo

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tbourn/ip-geo-backend/internal/config"
	"github.com/tbourn/ip-geo-backend/internal/domain"
)

var (
	// upstreamCalls counts outbound calls by provider and outcome (ok|error).
	upstreamCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geo_upstream_requests_total",
			Help: "Total number of upstream geolocation calls.",
		},
		[]string{"provider", "outcome"},
	)

	// upstreamLat records outbound call duration in seconds by provider.
	upstreamLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geo_upstream_duration_seconds",
			Help:    "Duration of upstream geolocation calls in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)
)

func init() {
	prometheus.MustRegister(upstreamCalls, upstreamLat)
}

func observe(provider string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	upstreamCalls.WithLabelValues(provider, outcome).Inc()
	upstreamLat.WithLabelValues(provider).Observe(time.Since(start).Seconds())
}

// Service runs one lookup: validate the target, substitute the public address
// for private ones, query the configured provider once, normalize.
type Service struct {
	provider Provider
	public   PublicIPResolver
}

// NewService wires a provider and a public address resolver.
func NewService(provider Provider, public PublicIPResolver) *Service {
	return &Service{provider: provider, public: public}
}

// NewServiceFromConfig selects the provider: the offline database when
// GEOIP_CITY_DB is set, the keyed provider when an API key is set, the keyless
// one otherwise.
func NewServiceFromConfig(cfg config.GeoConfig) (*Service, error) {
	client := NewHTTPClient(cfg.Timeout)
	var p Provider
	switch {
	case cfg.CityDB != "":
		mm, err := OpenMaxMind(cfg.CityDB, cfg.ASNDB)
		if err != nil {
			return nil, err
		}
		p = mm
	case cfg.APIKey != "":
		p = NewIPInfo(cfg.IPInfoURL, cfg.APIKey, client)
	default:
		p = NewIPAPI(cfg.IPAPIURL, client)
	}
	return NewService(p, NewIpify(cfg.PublicIPURL, client)), nil
}

// ProviderName names the configured provider.
func (s *Service) ProviderName() string { return s.provider.Name() }

// Lookup returns the address that was actually queried together with its
// normalized record. Private and loopback targets are replaced by the public
// address first; a failure there aborts the lookup.
func (s *Service) Lookup(ctx context.Context, target string) (string, domain.GeoRecord, error) {
	addr, err := ParseAddress(target)
	if err != nil {
		return "", domain.GeoRecord{}, err
	}
	ip := addr.String()

	if IsPrivateOrLoopback(ip) {
		start := time.Now()
		pub, err := s.public.PublicIP(ctx)
		observe("public-ip", start, err)
		if err != nil {
			return "", domain.GeoRecord{}, err
		}
		ip = pub
	}

	start := time.Now()
	payload, err := s.provider.Fetch(ctx, ip)
	observe(s.provider.Name(), start, err)
	if err != nil {
		if !errors.Is(err, ErrUpstream) && !errors.Is(err, ErrInvalidAddress) {
			err = errors.Join(ErrUpstream, err)
		}
		return "", domain.GeoRecord{}, err
	}

	rec := payload.Normalize()
	if rec.Address == "" {
		rec.Address = ip
	}
	return ip, rec, nil
}

// Close releases provider resources, if any.
func (s *Service) Close() error {
	if c, ok := s.provider.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
