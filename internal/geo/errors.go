package geo

import "errors"

var (
	// ErrInvalidAddress is returned when the target is not a valid IP address.
	ErrInvalidAddress = errors.New("invalid ip address")

	// ErrUpstream wraps every provider failure: transport errors, non-2xx
	// statuses, undecodable bodies and provider-reported failures.
	ErrUpstream = errors.New("geolocation lookup failed")
)
