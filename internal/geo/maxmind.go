package geo

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// MaxMind answers lookups from local GeoIP2/GeoLite2 databases. The ASN
// database is optional and only fills the ISP field.
type MaxMind struct {
	city *geoip2.Reader
	asn  *geoip2.Reader
}

// OpenMaxMind opens the city database and, when asnPath is set, the ASN one.
func OpenMaxMind(cityPath, asnPath string) (*MaxMind, error) {
	city, err := geoip2.Open(cityPath)
	if err != nil {
		return nil, fmt.Errorf("open city database: %w", err)
	}
	m := &MaxMind{city: city}
	if asnPath != "" {
		asn, err := geoip2.Open(asnPath)
		if err != nil {
			_ = city.Close()
			return nil, fmt.Errorf("open asn database: %w", err)
		}
		m.asn = asn
	}
	return m, nil
}

// Name implements Provider.
func (m *MaxMind) Name() string { return "maxmind" }

// Fetch implements Provider.
func (m *MaxMind) Fetch(_ context.Context, addr string) (Payload, error) {
	ip := net.ParseIP(addr)
	if ip == nil {
		return nil, ErrInvalidAddress
	}
	rec, err := m.city.City(ip)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	if rec.Country.IsoCode == "" && rec.City.Names["en"] == "" {
		return nil, fmt.Errorf("%w: %s not in database", ErrUpstream, addr)
	}

	out := MaxMindPayload{
		IP:        addr,
		Country:   rec.Country.IsoCode,
		City:      rec.City.Names["en"],
		Latitude:  rec.Location.Latitude,
		Longitude: rec.Location.Longitude,
		TimeZone:  rec.Location.TimeZone,
	}
	if len(rec.Subdivisions) > 0 {
		out.Region = rec.Subdivisions[0].Names["en"]
	}
	if m.asn != nil {
		if a, err := m.asn.ASN(ip); err == nil {
			out.Org = a.AutonomousSystemOrganization
		}
	}
	return out, nil
}

// Close releases both database readers.
func (m *MaxMind) Close() error {
	var errs []error
	if m.city != nil {
		errs = append(errs, m.city.Close())
	}
	if m.asn != nil {
		errs = append(errs, m.asn.Close())
	}
	return errors.Join(errs...)
}
