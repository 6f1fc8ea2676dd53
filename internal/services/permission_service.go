package services

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-sync/internal/domain"
	"github.com/tbourn/go-chat-sync/internal/reconcile"
)

// PermissionRepo defines the read queries required by PermissionService.
type PermissionRepo interface {
	GetChat(ctx context.Context, db *gorm.DB, id int64) (*domain.Chat, error)
	ListPermissions(ctx context.Context, db *gorm.DB, chatID int64) ([]domain.Permission, error)
	GetPermission(ctx context.Context, db *gorm.DB, chatID, userID int64) (*domain.Permission, error)
}

// PermissionService manages the permission list of a chat as a whole.
type PermissionService struct {
	DB   *gorm.DB
	Repo PermissionRepo
	Core Core
}

// NewPermissionService constructs a PermissionService.
func NewPermissionService(db *gorm.DB, r PermissionRepo, core Core) *PermissionService {
	return &PermissionService{DB: db, Repo: r, Core: core}
}

// Sync replaces the chat's permission list with desired, keyed by user_id.
// Users missing from desired lose their row; the rest are updated in place
// or created. The chat must exist when the unit runs.
func (s *PermissionService) Sync(ctx context.Context, chatID int64, desired []domain.Fields) (_ reconcile.Changeset, err error) {
	ctx, span := startSpan(ctx, "permission.sync",
		attribute.Int64("chat.id", chatID),
		attribute.Int("permissions.desired", len(desired)),
	)
	defer func() { endSpan(span, err) }()

	cs, err := s.Core.ReconcileSet(ctx, reconcile.PermissionSet(), chatID, desired)
	if err != nil {
		return reconcile.Changeset{}, notFound(err, ErrChatNotFound)
	}
	return cs, nil
}

// List returns the chat's permissions ordered by user id.
func (s *PermissionService) List(ctx context.Context, chatID int64) ([]domain.Permission, error) {
	if _, err := s.Repo.GetChat(ctx, s.DB, chatID); err != nil {
		return nil, notFound(err, ErrChatNotFound)
	}
	return s.Repo.ListPermissions(ctx, s.DB, chatID)
}

// Get returns the permission of userID in chatID, or ErrPermissionNotFound.
func (s *PermissionService) Get(ctx context.Context, chatID, userID int64) (*domain.Permission, error) {
	p, err := s.Repo.GetPermission(ctx, s.DB, chatID, userID)
	if err != nil {
		return nil, notFound(err, ErrPermissionNotFound)
	}
	return p, nil
}
