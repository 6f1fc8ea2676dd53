package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-sync/internal/domain"
	"github.com/tbourn/go-chat-sync/internal/repo"
	"github.com/tbourn/go-chat-sync/internal/services"
)

// PutPermissionsRequest is the desired permission list of a chat.
type PutPermissionsRequest struct {
	Permissions []map[string]any `json:"permissions"`
}

// PutPermissions godoc
// @Summary  Replace a chat's permission list
// @Description Rows are matched by user_id: missing users lose their row, others are updated or created.
// @Tags     Permissions
// @Param    id    path  int                               true  "Chat id"
// @Param    body  body  handlers.PutPermissionsRequest    true  "Desired permissions"
// @Success  200   {object}  reconcile.Changeset
// @Failure  404   {object}  handlers.ErrorResponse  "Chat not found"
// @Failure  422   {object}  handlers.ErrorResponse
// @Router   /chats/{id}/permissions [put]
func (h *Handlers) PutPermissions(c *gin.Context) {
	chatID, good := int64Param(c, "id")
	if !good {
		return
	}
	var req PutPermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Permissions == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "body must carry a permissions array")
		return
	}

	desired := make([]domain.Fields, len(req.Permissions))
	for i, p := range req.Permissions {
		desired[i] = domain.Fields(p)
	}

	cs, err := h.permSvc.Sync(c.Request.Context(), chatID, desired)
	if err != nil {
		failErr(c, err, ErrCodeSyncFailed)
		return
	}
	ok(c, http.StatusOK, cs)
}

// ListPermissions returns a chat's permissions ordered by user id, with a
// weak ETag derived from the row count and latest update.
func (h *Handlers) ListPermissions(c *gin.Context) {
	ctx := c.Request.Context()
	chatID, good := int64Param(c, "id")
	if !good {
		return
	}

	if svc, isSvc := h.permSvc.(*services.PermissionService); isSvc && svc.DB != nil {
		count, maxTS, err := repo.PermissionsStats(ctx, svc.DB, chatID)
		if err == nil && count > 0 {
			etag := fmt.Sprintf(`W/"permissions:%d:%d:%d"`, chatID, count, maxTS.UnixNano())
			if etagMatches(c, etag) {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	perms, err := h.permSvc.List(ctx, chatID)
	if err != nil {
		failErr(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, gin.H{"permissions": perms})
}

// GetPermission returns one user's permission row in a chat.
func (h *Handlers) GetPermission(c *gin.Context) {
	chatID, good := int64Param(c, "id")
	if !good {
		return
	}
	userID, good := int64Param(c, "user_id")
	if !good {
		return
	}
	p, err := h.permSvc.Get(c.Request.Context(), chatID, userID)
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, p)
}
