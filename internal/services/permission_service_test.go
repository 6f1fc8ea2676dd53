package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-sync/internal/domain"
	"github.com/tbourn/go-chat-sync/internal/lock"
	"github.com/tbourn/go-chat-sync/internal/reconcile"
	"github.com/tbourn/go-chat-sync/internal/repo"
	"github.com/tbourn/go-chat-sync/internal/validation"
)

// repoQueries proxies the repo read functions for the service interfaces.
type repoQueries struct{}

func (repoQueries) GetChat(ctx context.Context, db *gorm.DB, id int64) (*domain.Chat, error) {
	return repo.GetChat(ctx, db, id)
}
func (repoQueries) CountChats(ctx context.Context, db *gorm.DB, f domain.Filter) (int64, error) {
	return repo.CountChats(ctx, db, f)
}
func (repoQueries) ListChatsPage(ctx context.Context, db *gorm.DB, f domain.Filter, offset, limit int) ([]domain.Chat, error) {
	return repo.ListChatsPage(ctx, db, f, offset, limit)
}
func (repoQueries) ListPermissions(ctx context.Context, db *gorm.DB, chatID int64) ([]domain.Permission, error) {
	return repo.ListPermissions(ctx, db, chatID)
}
func (repoQueries) GetPermission(ctx context.Context, db *gorm.DB, chatID, userID int64) (*domain.Permission, error) {
	return repo.GetPermission(ctx, db, chatID, userID)
}
func (repoQueries) GetTerm(ctx context.Context, db *gorm.DB, id int64) (*domain.Term, error) {
	return repo.GetTerm(ctx, db, id)
}
func (repoQueries) GetSponsor(ctx context.Context, db *gorm.DB, id string) (*domain.Sponsor, error) {
	return repo.GetSponsor(ctx, db, id)
}
func (repoQueries) ListSponsors(ctx context.Context, db *gorm.DB) ([]domain.Sponsor, error) {
	return repo.ListSponsors(ctx, db)
}
func (repoQueries) GetSponsorshipHistory(ctx context.Context, db *gorm.DB, id string) (*domain.SponsorshipHistory, error) {
	return repo.GetSponsorshipHistory(ctx, db, id)
}
func (repoQueries) ListSponsorshipHistories(ctx context.Context, db *gorm.DB, f domain.Filter) ([]domain.SponsorshipHistory, error) {
	return repo.ListSponsorshipHistories(ctx, db, f)
}

func newTestCore(t *testing.T) (*gorm.DB, *reconcile.Reconciler) {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "services.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		t.Cleanup(func() { _ = sqlDB.Close() })
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	w := reconcile.NewWriter(validation.New())
	w.Derive(domain.KindSponsorshipHistory, reconcile.ReachedAtDerivation(time.Now))
	return db, reconcile.New(repo.NewStore(db), w, lock.NewKeyedMutex())
}

func TestPermissionService_SyncListGet(t *testing.T) {
	db, core := newTestCore(t)
	ctx := context.Background()
	chats := NewChatService(db, repoQueries{}, core)
	perms := NewPermissionService(db, repoQueries{}, core)

	if _, err := chats.Sync(ctx, -42, domain.Fields{"type": "supergroup", "title": "G"}); err != nil {
		t.Fatalf("sync chat: %v", err)
	}

	cs, err := perms.Sync(ctx, -42, []domain.Fields{
		{"user_id": 2, "flags": map[string]any{"ban": true}},
		{"user_id": 1, "flags": map[string]any{"ban": false}},
	})
	if err != nil {
		t.Fatalf("sync permissions: %v", err)
	}
	if len(cs.Created) != 2 {
		t.Fatalf("changeset = %+v", cs)
	}

	list, err := perms.List(ctx, -42)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].UserID != 1 || list[1].UserID != 2 {
		t.Fatalf("expected users ordered 1,2: %+v", list)
	}

	p, err := perms.Get(ctx, -42, 2)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !p.Flag("ban") {
		t.Fatalf("flags = %v", p.Flags)
	}
	if _, err := perms.Get(ctx, -42, 99); !errors.Is(err, ErrPermissionNotFound) {
		t.Fatalf("expected ErrPermissionNotFound, got %v", err)
	}
}

func TestPermissionService_UnknownChat(t *testing.T) {
	db, core := newTestCore(t)
	perms := NewPermissionService(db, repoQueries{}, core)

	if _, err := perms.Sync(context.Background(), 7, nil); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("Sync: expected ErrChatNotFound, got %v", err)
	}
	if _, err := perms.List(context.Background(), 7); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("List: expected ErrChatNotFound, got %v", err)
	}
}

// staleChatRepo reports every chat as present, like a read taken just
// before a concurrent delete.
type staleChatRepo struct{ repoQueries }

func (staleChatRepo) GetChat(_ context.Context, _ *gorm.DB, id int64) (*domain.Chat, error) {
	return &domain.Chat{ID: id, Type: "group"}, nil
}

func TestPermissionService_ChatDeletedBeforeWrite(t *testing.T) {
	db, core := newTestCore(t)
	perms := NewPermissionService(db, staleChatRepo{}, core)

	_, err := perms.Sync(context.Background(), 31, []domain.Fields{{"user_id": 1}})
	if !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound, got %v", err)
	}
	var n int64
	if err := db.Model(&domain.Permission{}).Count(&n).Error; err != nil || n != 0 {
		t.Fatalf("expected no permissions written, got %d (err=%v)", n, err)
	}
}

func TestTermService_PutGetDelete(t *testing.T) {
	db, core := newTestCore(t)
	ctx := context.Background()
	terms := NewTermService(db, repoQueries{}, core)

	if _, err := terms.Put(ctx, 1, "v1"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := terms.Put(ctx, 1, "v2"); err != nil {
		t.Fatalf("put again: %v", err)
	}
	got, err := terms.Get(ctx, 1)
	if err != nil || got.Content != "v2" {
		t.Fatalf("get = %+v, %v", got, err)
	}
	if _, err := terms.Put(ctx, 2, "  "); !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("blank content should be invalid, got %v", err)
	}
	if err := terms.Delete(ctx, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := terms.Get(ctx, 1); !errors.Is(err, ErrTermNotFound) {
		t.Fatalf("expected ErrTermNotFound, got %v", err)
	}
	if err := terms.Delete(ctx, 1); !errors.Is(err, ErrTermNotFound) {
		t.Fatalf("expected ErrTermNotFound on second delete, got %v", err)
	}
}

func TestChatService_DeleteCascadesPermissions(t *testing.T) {
	db, core := newTestCore(t)
	ctx := context.Background()
	chats := NewChatService(db, repoQueries{}, core)
	perms := NewPermissionService(db, repoQueries{}, core)

	if _, err := chats.Sync(ctx, 5, domain.Fields{"type": "private"}); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if _, err := perms.Sync(ctx, 5, []domain.Fields{{"user_id": 1}}); err != nil {
		t.Fatalf("perms: %v", err)
	}
	if err := chats.Delete(ctx, 5); err != nil {
		t.Fatalf("delete: %v", err)
	}
	left, err := repo.ListPermissions(ctx, db, 5)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("permissions should cascade: %+v", left)
	}
}
