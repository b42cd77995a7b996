// Geolocation HTTP handler.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/ip-geo-backend/internal/domain"
	"github.com/tbourn/ip-geo-backend/internal/geo"
	"github.com/tbourn/ip-geo-backend/internal/http/middleware"
	"github.com/tbourn/ip-geo-backend/internal/services"
)

// LookupResponse is the result of one lookup. IP is the address that was
// actually geolocated, which differs from the request when a private target
// was replaced by the public address.
type LookupResponse struct {
	IP   string           `json:"ip"   example:"8.8.8.8"`
	Data domain.GeoRecord `json:"data"`
}

// Lookup godoc
// @ID          geoLookup
// @Summary     Geolocate an IP address
// @Description Looks up ?ip=, or the caller's address (X-Forwarded-For, X-Real-IP, peer) when absent. Signed-in lookups are appended to the caller's history.
// @Tags        Geo
// @Produce     json
//
// @Param       ip  query  string  false  "IPv4 or IPv6 address"  example(8.8.8.8)
//
// @Success     200  {object}  handlers.LookupResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid or missing address"
// @Failure     429  {object}  handlers.ErrorResponse  "Rate limited"
// @Failure     500  {object}  handlers.ErrorResponse  "Lookup or history write failed"
// @Router      /geo/lookup [get]
func (h *Handlers) Lookup(c *gin.Context) {
	target, found := geo.ResolveTarget(
		c.Query("ip"),
		c.GetHeader("X-Forwarded-For"),
		c.GetHeader("X-Real-IP"),
		c.Request.RemoteAddr,
	)
	if !found {
		failErr(c, services.ErrMissingTarget)
		return
	}

	ip, rec, err := h.historySvc.Lookup(c.Request.Context(), middleware.IdentityFrom(c), target)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, LookupResponse{IP: ip, Data: rec})
}
