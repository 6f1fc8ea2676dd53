package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// PutTermRequest carries the text stored under a term id.
type PutTermRequest struct {
	Content *string `json:"content"`
}

// PutTerm creates or replaces term id. Replaying the same body is harmless.
func (h *Handlers) PutTerm(c *gin.Context) {
	id, good := int64Param(c, "id")
	if !good {
		return
	}
	var req PutTermRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Content == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}
	t, err := h.termSvc.Put(c.Request.Context(), id, *req.Content)
	if err != nil {
		failErr(c, err, ErrCodeSyncFailed)
		return
	}
	ok(c, http.StatusOK, t)
}

// GetTerm returns term id.
func (h *Handlers) GetTerm(c *gin.Context) {
	id, good := int64Param(c, "id")
	if !good {
		return
	}
	t, err := h.termSvc.Get(c.Request.Context(), id)
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, t)
}

// DeleteTerm removes term id.
func (h *Handlers) DeleteTerm(c *gin.Context) {
	id, good := int64Param(c, "id")
	if !good {
		return
	}
	if err := h.termSvc.Delete(c.Request.Context(), id); err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}
