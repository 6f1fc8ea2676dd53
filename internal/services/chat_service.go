// Package services – ChatService
//
// This file implements the ChatService, which keeps chats in sync with the
// messaging platform. A sync is a create-if-absent, else-update keyed by the
// platform chat id, so replaying the same platform event is harmless. Titles
// are normalized before validation; listing is paginated.
//
// Service-level errors (e.g., ErrChatNotFound) are returned for predictable
// cases so handlers can map them to HTTP results consistently.
package services

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-sync/internal/domain"
)

// ChatRepo defines the read queries required by ChatService.
type ChatRepo interface {
	// GetChat fetches a chat by its platform id.
	GetChat(ctx context.Context, db *gorm.DB, id int64) (*domain.Chat, error)

	// CountChats returns the number of chats matching f for pagination.
	CountChats(ctx context.Context, db *gorm.DB, f domain.Filter) (int64, error)

	// ListChatsPage returns a page of chats matching f.
	ListChatsPage(ctx context.Context, db *gorm.DB, f domain.Filter, offset, limit int) ([]domain.Chat, error)
}

// ChatService provides chat-level operations: sync from the platform,
// lookups, paginated listing, partial updates and deletion.
type ChatService struct {
	// DB is the GORM handle used for reads.
	DB *gorm.DB
	// Repo is the chat query set used by this service.
	Repo ChatRepo
	// Core performs all writes.
	Core Core

	// TitleMaxLen caps stored titles by rune length.
	TitleMaxLen int
}

// NewChatService constructs a ChatService with the default title cap.
func NewChatService(db *gorm.DB, r ChatRepo, core Core) *ChatService {
	return &ChatService{
		DB:          db,
		Repo:        r,
		Core:        core,
		TitleMaxLen: 255,
	}
}

// Sync creates the chat identified by id from fields, or updates the
// existing one. Calling it twice with the same fields leaves the same state.
func (s *ChatService) Sync(ctx context.Context, id int64, fields domain.Fields) (_ *domain.Chat, err error) {
	ctx, span := startSpan(ctx, "chat.sync", attribute.Int64("chat.id", id))
	defer func() { endSpan(span, err) }()

	e, err := s.Core.ReconcileOrCreate(ctx, domain.KindChat, id, s.normalize(fields))
	if err != nil {
		return nil, err
	}
	return e.(*domain.Chat), nil
}

// Get returns the chat identified by id, or ErrChatNotFound.
func (s *ChatService) Get(ctx context.Context, id int64) (*domain.Chat, error) {
	c, err := s.Repo.GetChat(ctx, s.DB, id)
	if err != nil {
		return nil, notFound(err, ErrChatNotFound)
	}
	return c, nil
}

// ListPage returns a page of chats matching f (paginated).
// It applies defaults for invalid page/pageSize and returns total count.
func (s *ChatService) ListPage(ctx context.Context, f domain.Filter, page, pageSize int) ([]domain.Chat, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountChats(ctx, s.DB, f)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Chat{}, 0, nil
	}

	items, err := s.Repo.ListChatsPage(ctx, s.DB, f, offset, pageSize)
	return items, total, err
}

// Update applies fields to an existing chat. Unlike Sync it never creates.
func (s *ChatService) Update(ctx context.Context, id int64, fields domain.Fields) (_ *domain.Chat, err error) {
	ctx, span := startSpan(ctx, "chat.update", attribute.Int64("chat.id", id))
	defer func() { endSpan(span, err) }()

	e, err := s.Core.Update(ctx, domain.KindChat, id, s.normalize(fields))
	if err != nil {
		return nil, notFound(err, ErrChatNotFound)
	}
	return e.(*domain.Chat), nil
}

// Delete removes the chat and, through the foreign key, its permissions.
func (s *ChatService) Delete(ctx context.Context, id int64) (err error) {
	ctx, span := startSpan(ctx, "chat.delete", attribute.Int64("chat.id", id))
	defer func() { endSpan(span, err) }()

	return notFound(s.Core.Delete(ctx, domain.KindChat, id), ErrChatNotFound)
}

// normalize returns a copy of fields with a normalized, clipped title.
func (s *ChatService) normalize(fields domain.Fields) domain.Fields {
	title, ok := fields["title"].(string)
	if !ok {
		return fields
	}
	out := fields.Clone()
	out["title"] = s.clip(normalizeTitle(title))
	return out
}

// clip truncates a chat title to the configured maximum rune length.
func (s *ChatService) clip(title string) string {
	if s.TitleMaxLen > 0 && utf8.RuneCountInString(title) > s.TitleMaxLen {
		return string([]rune(title)[:s.TitleMaxLen])
	}
	return title
}

// normalizeTitle trims whitespace and collapses multiple spaces to one.
func normalizeTitle(s string) string {
	s = whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
	return s
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)
