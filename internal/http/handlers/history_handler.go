// History HTTP handlers. Both routes sit behind RequireAuth and are scoped to
// the caller; ids belonging to someone else are ignored on delete.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/ip-geo-backend/internal/domain"
	"github.com/tbourn/ip-geo-backend/internal/http/middleware"
	"github.com/tbourn/ip-geo-backend/internal/repo"
	"github.com/tbourn/ip-geo-backend/internal/utils"
)

// maxDeleteIDs bounds one DELETE /history request.
const maxDeleteIDs = 500

//
// DTOs
//

// HistoryResponse lists entries newest first.
type HistoryResponse struct {
	Items []domain.HistoryEntry `json:"items"`
}

// DeleteHistoryRequest names the entries to remove.
type DeleteHistoryRequest struct {
	IDs []string `json:"ids" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
}

//
// Helpers
//

// historyLimit reads ?limit=, mapping absent, invalid or out-of-range values
// to the page maximum.
func historyLimit(c *gin.Context) int {
	return utils.PageLimit(c.Query("limit"), repo.MaxHistoryPage)
}

// cleanIDs trims ids and drops empty entries.
func cleanIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

//
// Handlers
//

// ListHistory godoc
// @ID          listHistory
// @Summary     List lookup history
// @Description Returns the caller's most recent lookups, newest first.
// @Tags        History
// @Produce     json
// @Security    CookieAuth
//
// @Param       limit  query  int  false  "Maximum entries"  minimum(1) maximum(100) default(100)
//
// @Success     200  {object}  handlers.HistoryResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Not signed in"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /history [get]
func (h *Handlers) ListHistory(c *gin.Context) {
	id := middleware.IdentityFrom(c)
	if id == nil {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, msgUnauthorized)
		return
	}
	items, err := h.historySvc.List(c.Request.Context(), id.UserID, historyLimit(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, HistoryResponse{Items: items})
}

// DeleteHistory godoc
// @ID          deleteHistory
// @Summary     Delete history entries
// @Description Removes the listed entries owned by the caller. Unknown ids and ids owned by others are ignored.
// @Tags        History
// @Accept      json
// @Produce     json
// @Security    CookieAuth
//
// @Param       body  body  handlers.DeleteHistoryRequest  true  "Entry ids"
//
// @Success     200  {object}  handlers.OKResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Missing or malformed ids"
// @Failure     401  {object}  handlers.ErrorResponse  "Not signed in"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /history [delete]
func (h *Handlers) DeleteHistory(c *gin.Context) {
	id := middleware.IdentityFrom(c)
	if id == nil {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, msgUnauthorized)
		return
	}

	var req DeleteHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	ids := cleanIDs(req.IDs)
	if len(ids) == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "ids required")
		return
	}
	if len(ids) > maxDeleteIDs {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "too many ids")
		return
	}

	if err := h.historySvc.Delete(c.Request.Context(), id.UserID, ids); err != nil {
		failErr(c, err)
		return
	}
	okTrue(c)
}
