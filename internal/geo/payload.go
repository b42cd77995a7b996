package geo

import (
	"strconv"
	"strings"

	"github.com/tbourn/ip-geo-backend/internal/domain"
)

// Payload is the raw answer of one provider. Each variant carries its own
// normalization into the canonical record; callers never inspect fields to
// guess which provider answered.
type Payload interface {
	Normalize() domain.GeoRecord
	isPayload()
}

// IPInfoPayload is the keyed provider's response.
type IPInfoPayload struct {
	IP       string `json:"ip"`
	City     string `json:"city"`
	Region   string `json:"region"`
	Country  string `json:"country"`
	Org      string `json:"org"`
	Loc      string `json:"loc"` // "lat,lon"
	Timezone string `json:"timezone"`
}

func (IPInfoPayload) isPayload() {}

// Normalize splits loc into coordinates and maps org to the ISP field.
func (p IPInfoPayload) Normalize() domain.GeoRecord {
	lat, lon := splitLoc(p.Loc)
	return domain.GeoRecord{
		Address:   p.IP,
		Country:   p.Country,
		Region:    p.Region,
		City:      p.City,
		ISPOrOrg:  p.Org,
		Latitude:  lat,
		Longitude: lon,
		Timezone:  p.Timezone,
	}
}

// splitLoc parses "lat,lon"; malformed input yields zeros.
func splitLoc(loc string) (float64, float64) {
	a, b, ok := strings.Cut(loc, ",")
	if !ok {
		return 0, 0
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(a), 64)
	lon, err2 := strconv.ParseFloat(strings.TrimSpace(b), 64)
	if err1 != nil || err2 != nil {
		return 0, 0
	}
	return lat, lon
}

// IPAPIPayload is the keyless provider's response.
type IPAPIPayload struct {
	Status     string  `json:"status"`
	Message    string  `json:"message"`
	Query      string  `json:"query"`
	Country    string  `json:"country"`
	RegionName string  `json:"regionName"`
	City       string  `json:"city"`
	ISP        string  `json:"isp"`
	Org        string  `json:"org"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Timezone   string  `json:"timezone"`
}

func (IPAPIPayload) isPayload() {}

// Normalize maps the flat fields; isp is preferred over org.
func (p IPAPIPayload) Normalize() domain.GeoRecord {
	isp := p.ISP
	if isp == "" {
		isp = p.Org
	}
	return domain.GeoRecord{
		Address:   p.Query,
		Country:   p.Country,
		Region:    p.RegionName,
		City:      p.City,
		ISPOrOrg:  isp,
		Latitude:  p.Lat,
		Longitude: p.Lon,
		Timezone:  p.Timezone,
	}
}

// MaxMindPayload is the answer of the offline database provider.
type MaxMindPayload struct {
	IP        string
	Country   string
	Region    string
	City      string
	Org       string
	Latitude  float64
	Longitude float64
	TimeZone  string
}

func (MaxMindPayload) isPayload() {}

// Normalize copies the already structured fields.
func (p MaxMindPayload) Normalize() domain.GeoRecord {
	return domain.GeoRecord{
		Address:   p.IP,
		Country:   p.Country,
		Region:    p.Region,
		City:      p.City,
		ISPOrOrg:  p.Org,
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Timezone:  p.TimeZone,
	}
}
