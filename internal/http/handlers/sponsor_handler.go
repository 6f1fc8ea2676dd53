// Sponsor and sponsorship HTTP handlers.
//
// Sponsorship bodies may carry a nested "sponsor" object. When present, the
// sponsor is written in the same unit as the record: created when it has no
// id, updated when it does, and linked through sponsor_id.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-sync/internal/domain"
	"github.com/tbourn/go-chat-sync/internal/utils"
)

// CreateSponsor creates a sponsor with a generated id.
func (h *Handlers) CreateSponsor(c *gin.Context) {
	fields, good := bindFields(c)
	if !good {
		return
	}
	s, err := h.sponsorSvc.Create(c.Request.Context(), fields)
	if err != nil {
		failErr(c, err, ErrCodeSyncFailed)
		return
	}
	ok(c, http.StatusCreated, s)
}

// ListSponsors returns every sponsor.
func (h *Handlers) ListSponsors(c *gin.Context) {
	list, err := h.sponsorSvc.List(c.Request.Context())
	if err != nil {
		failErr(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, gin.H{"sponsors": list})
}

// GetSponsor returns one sponsor.
func (h *Handlers) GetSponsor(c *gin.Context) {
	s, err := h.sponsorSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, s)
}

// UpdateSponsor applies the body to an existing sponsor.
func (h *Handlers) UpdateSponsor(c *gin.Context) {
	fields, good := bindFields(c)
	if !good {
		return
	}
	s, err := h.sponsorSvc.Update(c.Request.Context(), c.Param("id"), fields)
	if err != nil {
		failErr(c, err, ErrCodeSyncFailed)
		return
	}
	ok(c, http.StatusOK, s)
}

// DeleteSponsor removes a sponsor. Records that referenced it keep a null
// sponsor_id.
func (h *Handlers) DeleteSponsor(c *gin.Context) {
	if err := h.sponsorSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}

// splitSponsor removes the nested "sponsor" object from fields. present is
// false when the body had no such key; a non-object value fails the request.
func splitSponsor(c *gin.Context, fields domain.Fields) (sponsor domain.Fields, present, good bool) {
	raw, present := fields["sponsor"]
	if !present {
		return nil, false, true
	}
	delete(fields, "sponsor")
	obj, isObj := raw.(map[string]any)
	if !isObj {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "sponsor must be an object")
		return nil, true, false
	}
	return domain.Fields(obj), true, true
}

// CreateSponsorship godoc
// @Summary  Create a sponsorship record
// @Description With a nested sponsor object the sponsor is saved in the same transaction.
// @Tags     Sponsorships
// @Success  201  {object}  domain.SponsorshipHistory
// @Failure  422  {object}  handlers.ErrorResponse
// @Router   /sponsorship-histories [post]
func (h *Handlers) CreateSponsorship(c *gin.Context) {
	fields, good := bindFields(c)
	if !good {
		return
	}
	sponsor, withSponsor, good := splitSponsor(c, fields)
	if !good {
		return
	}

	var (
		rec *domain.SponsorshipHistory
		err error
	)
	if withSponsor {
		rec, err = h.shipSvc.CreateWithSponsor(c.Request.Context(), sponsor, fields)
	} else {
		rec, err = h.shipSvc.Create(c.Request.Context(), fields)
	}
	if err != nil {
		failErr(c, err, ErrCodeSyncFailed)
		return
	}
	ok(c, http.StatusCreated, rec)
}

// ListSponsorships returns records newest first, optionally filtered by
// sponsor_id, has_reached and hidden query parameters.
func (h *Handlers) ListSponsorships(c *gin.Context) {
	var f domain.Filter
	if v := c.Query("sponsor_id"); v != "" {
		f.SponsorID = &v
	}
	for name, dst := range map[string]**bool{"has_reached": &f.HasReached, "hidden": &f.Hidden} {
		b, err := utils.ParseBoolPtr(c.Query(name))
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, name+" must be a boolean")
			return
		}
		*dst = b
	}
	f.Limit = utils.AtoiDefault(c.Query("limit"), 0)

	list, err := h.shipSvc.Find(c.Request.Context(), f)
	if err != nil {
		failErr(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, gin.H{"sponsorship_histories": list})
}

// GetSponsorship returns one record with its sponsor.
func (h *Handlers) GetSponsorship(c *gin.Context) {
	rec, err := h.shipSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, rec)
}

// UpdateSponsorship applies the body to a record; a nested sponsor object
// is saved and linked in the same transaction.
func (h *Handlers) UpdateSponsorship(c *gin.Context) {
	fields, good := bindFields(c)
	if !good {
		return
	}
	sponsor, withSponsor, good := splitSponsor(c, fields)
	if !good {
		return
	}

	var (
		rec *domain.SponsorshipHistory
		err error
	)
	if withSponsor {
		rec, err = h.shipSvc.UpdateWithSponsor(c.Request.Context(), c.Param("id"), sponsor, fields)
	} else {
		rec, err = h.shipSvc.Update(c.Request.Context(), c.Param("id"), fields)
	}
	if err != nil {
		failErr(c, err, ErrCodeSyncFailed)
		return
	}
	ok(c, http.StatusOK, rec)
}

// MarkReachedRequest optionally pins the fulfilment time.
type MarkReachedRequest struct {
	ReachedAt *time.Time `json:"reached_at"`
}

// MarkSponsorshipReached flags a record as fulfilled. Without reached_at the
// first fulfilment time is kept, or now is used.
func (h *Handlers) MarkSponsorshipReached(c *gin.Context) {
	var req MarkReachedRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "reached_at must be an RFC 3339 time")
			return
		}
	}
	rec, err := h.shipSvc.MarkReached(c.Request.Context(), c.Param("id"), req.ReachedAt)
	if err != nil {
		failErr(c, err, ErrCodeSyncFailed)
		return
	}
	ok(c, http.StatusOK, rec)
}

// DeleteSponsorship removes a record.
func (h *Handlers) DeleteSponsorship(c *gin.Context) {
	if err := h.shipSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}
