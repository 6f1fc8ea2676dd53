// Chat HTTP handlers.
//
// This file exposes REST endpoints for chat resources:
//   - PUT    /chats/{id}   (sync: create or update from platform fields)
//   - PATCH  /chats/{id}   (partial update of an existing chat)
//   - GET    /chats/{id}
//   - GET    /chats        (list, paginated, ETag support)
//   - DELETE /chats/{id}
//
// Handlers are transport-thin: they parse input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-sync/internal/domain"
	"github.com/tbourn/go-chat-sync/internal/reconcile"
	"github.com/tbourn/go-chat-sync/internal/repo"
	"github.com/tbourn/go-chat-sync/internal/services"
	"github.com/tbourn/go-chat-sync/internal/utils"
)

//
// Service contracts (context-aware)
//

// ChatService defines chat operations consumed by HTTP handlers.
type ChatService interface {
	Sync(ctx context.Context, id int64, fields domain.Fields) (*domain.Chat, error)
	Get(ctx context.Context, id int64) (*domain.Chat, error)
	ListPage(ctx context.Context, f domain.Filter, page, pageSize int) ([]domain.Chat, int64, error)
	Update(ctx context.Context, id int64, fields domain.Fields) (*domain.Chat, error)
	Delete(ctx context.Context, id int64) error
}

// PermissionService defines per-chat permission list operations.
type PermissionService interface {
	Sync(ctx context.Context, chatID int64, desired []domain.Fields) (reconcile.Changeset, error)
	List(ctx context.Context, chatID int64) ([]domain.Permission, error)
	Get(ctx context.Context, chatID, userID int64) (*domain.Permission, error)
}

// TermService defines operations on operator-managed terms.
type TermService interface {
	Put(ctx context.Context, id int64, content string) (*domain.Term, error)
	Get(ctx context.Context, id int64) (*domain.Term, error)
	Delete(ctx context.Context, id int64) error
}

// SponsorService defines sponsor CRUD.
type SponsorService interface {
	Create(ctx context.Context, fields domain.Fields) (*domain.Sponsor, error)
	Get(ctx context.Context, id string) (*domain.Sponsor, error)
	List(ctx context.Context) ([]domain.Sponsor, error)
	Update(ctx context.Context, id string, fields domain.Fields) (*domain.Sponsor, error)
	Delete(ctx context.Context, id string) error
}

// SponsorshipService defines sponsorship record operations, including the
// compound writes that save a sponsor alongside the record.
type SponsorshipService interface {
	Create(ctx context.Context, fields domain.Fields) (*domain.SponsorshipHistory, error)
	CreateWithSponsor(ctx context.Context, sponsor, fields domain.Fields) (*domain.SponsorshipHistory, error)
	Get(ctx context.Context, id string) (*domain.SponsorshipHistory, error)
	Update(ctx context.Context, id string, fields domain.Fields) (*domain.SponsorshipHistory, error)
	UpdateWithSponsor(ctx context.Context, id string, sponsor, fields domain.Fields) (*domain.SponsorshipHistory, error)
	MarkReached(ctx context.Context, id string, at *time.Time) (*domain.SponsorshipHistory, error)
	Delete(ctx context.Context, id string) error
	Find(ctx context.Context, f domain.Filter) ([]domain.SponsorshipHistory, error)
}

//
// Handler wiring
//

// Services bundles the application services served over HTTP.
type Services struct {
	Chats        ChatService
	Permissions  PermissionService
	Terms        TermService
	Sponsors     SponsorService
	Sponsorships SponsorshipService
}

// Handlers groups HTTP endpoints for every resource. It depends on abstract
// service interfaces to keep transport concerns separate from business logic.
type Handlers struct {
	chatSvc    ChatService
	permSvc    PermissionService
	termSvc    TermService
	sponsorSvc SponsorService
	shipSvc    SponsorshipService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(s Services) *Handlers {
	return &Handlers{
		chatSvc:    s.Chats,
		permSvc:    s.Permissions,
		termSvc:    s.Terms,
		sponsorSvc: s.Sponsors,
		shipSvc:    s.Sponsorships,
	}
}

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListChatsResponse wraps a page of chats and pagination information.
type ListChatsResponse struct {
	Chats      []domain.Chat `json:"chats"`
	Pagination Pagination    `json:"pagination"`
}

//
// Helpers
//

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// int64Param parses path parameter name as a base-10 integer, failing the
// request with 400 when it is not one.
func int64Param(c *gin.Context, name string) (int64, bool) {
	id, err := utils.ParseInt64(c.Param(name))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, name+" must be an integer")
		return 0, false
	}
	return id, true
}

// bindFields decodes a JSON object body into domain.Fields. The "id" key is
// dropped: identifiers come from the path or are generated.
func bindFields(c *gin.Context) (domain.Fields, bool) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil || body == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return nil, false
	}
	delete(body, "id")
	return domain.Fields(body), true
}

// etagMatches sets a weak ETag and reports whether the client already holds
// that version.
func etagMatches(c *gin.Context, etag string) bool {
	c.Header("ETag", etag)
	return c.GetHeader("If-None-Match") == etag
}

//
// Handlers
//

// PutChat godoc
// @Summary  Sync a chat
// @Tags     Chats
// @Param    id    path  int     true  "Platform chat id"
// @Param    body  body  object  true  "Chat fields"
// @Success  200   {object}  domain.Chat
// @Failure  422   {object}  handlers.ErrorResponse
// @Router   /chats/{id} [put]
func (h *Handlers) PutChat(c *gin.Context) {
	id, good := int64Param(c, "id")
	if !good {
		return
	}
	fields, good := bindFields(c)
	if !good {
		return
	}
	ch, err := h.chatSvc.Sync(c.Request.Context(), id, fields)
	if err != nil {
		failErr(c, err, ErrCodeSyncFailed)
		return
	}
	ok(c, http.StatusOK, ch)
}

// PatchChat applies a partial update to an existing chat; unlike PutChat it
// never creates.
func (h *Handlers) PatchChat(c *gin.Context) {
	id, good := int64Param(c, "id")
	if !good {
		return
	}
	fields, good := bindFields(c)
	if !good {
		return
	}
	ch, err := h.chatSvc.Update(c.Request.Context(), id, fields)
	if err != nil {
		failErr(c, err, ErrCodeSyncFailed)
		return
	}
	ok(c, http.StatusOK, ch)
}

// GetChat returns a single chat.
func (h *Handlers) GetChat(c *gin.Context) {
	id, good := int64Param(c, "id")
	if !good {
		return
	}
	ch, err := h.chatSvc.Get(c.Request.Context(), id)
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, ch)
}

// ListChats godoc
// @Summary  List chats (paginated)
// @Description Supports weak ETag via If-None-Match and may return 304.
// @Tags     Chats
// @Param    page          query  int   false  "Page number"     minimum(1) default(1)
// @Param    page_size     query  int   false  "Items per page"  minimum(1) maximum(100) default(20)
// @Param    is_take_over  query  bool  false  "Filter by take-over state"
// @Success  200  {object}  handlers.ListChatsResponse
// @Success  304  {string}  string  "Not Modified"
// @Router   /chats [get]
func (h *Handlers) ListChats(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := utils.Clamp(
		utils.AtoiDefault(c.Query("page"), 1),
		utils.AtoiDefault(c.Query("page_size"), defaultPageSize),
		defaultPageSize, maxPageSize,
	)

	takeOver, err := utils.ParseBoolPtr(c.Query("is_take_over"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "is_take_over must be a boolean")
		return
	}
	f := domain.Filter{IsTakeOver: takeOver}

	// ETag pre-check (best effort).
	if svc, isSvc := h.chatSvc.(*services.ChatService); isSvc && svc.DB != nil {
		count, maxTS, err := repo.ChatsStats(ctx, svc.DB, f)
		if err == nil {
			scope := "all"
			if takeOver != nil {
				scope = fmt.Sprintf("take_over=%t", *takeOver)
			}
			var ts int64
			if maxTS != nil {
				ts = maxTS.UnixNano()
			}
			etag := fmt.Sprintf(`W/"chats:%s:%d:%d:%d:%d"`, scope, page, pageSize, count, ts)
			if etagMatches(c, etag) {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.chatSvc.ListPage(ctx, f, page, pageSize)
	if err != nil {
		failErr(c, err, ErrCodeListFailed)
		return
	}

	totalPages := utils.TotalPages(total, pageSize)
	ok(c, http.StatusOK, ListChatsResponse{
		Chats: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// DeleteChat removes a chat together with its permissions.
func (h *Handlers) DeleteChat(c *gin.Context) {
	id, good := int64Param(c, "id")
	if !good {
		return
	}
	if err := h.chatSvc.Delete(c.Request.Context(), id); err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}
