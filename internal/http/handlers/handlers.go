// Package handlers implements the HTTP endpoints of the geolocation API:
//
//   - POST   /auth/login     sign in, sets the session cookie
//   - POST   /auth/logout    clears the session cookie
//   - GET    /auth/me        current user
//   - GET    /geo/lookup     geolocate an address (recorded when signed in)
//   - GET    /history        the caller's recent lookups
//   - DELETE /history        remove some of the caller's lookups
//   - GET    /healthz        liveness with build and store details
//
// Handlers are transport-thin: they bind input, call a service and translate
// the outcome into JSON or an error envelope.
package handlers

import (
	"context"
	"time"

	"github.com/tbourn/ip-geo-backend/internal/auth"
	"github.com/tbourn/ip-geo-backend/internal/domain"
	"github.com/tbourn/ip-geo-backend/internal/services"
)

//
// Service contracts
//

// Authenticator signs users in. *services.AuthService implements it.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*services.Session, error)
}

// HistoryService performs lookups and manages the caller's history.
// *services.HistoryService implements it.
type HistoryService interface {
	Lookup(ctx context.Context, id *auth.Identity, target string) (string, domain.GeoRecord, error)
	List(ctx context.Context, userID string, limit int) ([]domain.HistoryEntry, error)
	Delete(ctx context.Context, userID string, ids []string) error
}

// Pinger reports store reachability for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

//
// Handler wiring
//

// Options carries the transport settings the handlers need.
type Options struct {
	SessionTTL   time.Duration
	SecureCookie bool
	Service      string
	Version      string
	Env          string
}

// Handlers groups the API endpoints.
type Handlers struct {
	authSvc    Authenticator
	historySvc HistoryService
	store      Pinger
	opts       Options

	started time.Time
	now     func() time.Time
}

// New binds the handlers to their services. store may be nil, in which case
// /healthz reports the store as "unknown".
func New(authSvc Authenticator, historySvc HistoryService, store Pinger, opts Options) *Handlers {
	if opts.Service == "" {
		opts.Service = "ip-geo-backend"
	}
	return &Handlers{
		authSvc:    authSvc,
		historySvc: historySvc,
		store:      store,
		opts:       opts,
		started:    time.Now(),
		now:        time.Now,
	}
}
