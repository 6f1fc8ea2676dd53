// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides read queries for chats and their
// permission lists. Writes go through the unit of work in unit.go so they
// are validated and reconciled atomically.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
//
// Error semantics:
//   - When a row is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Functions:
//
//   - GetChat(ctx, db, id) -> *domain.Chat, error
//   - CountChats(ctx, db, filter) -> int64, error
//   - ListChatsPage(ctx, db, filter, offset, limit) -> []domain.Chat, error
//   - ListPermissions(ctx, db, chatID) -> []domain.Permission, error
//   - GetPermission(ctx, db, chatID, userID) -> *domain.Permission, error
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-sync/internal/domain"
)

// GetChat fetches a single chat by its platform id. If the record does not
// exist, it returns ErrNotFound.
func GetChat(ctx context.Context, db *gorm.DB, id int64) (*domain.Chat, error) {
	var c domain.Chat
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// CountChats returns the number of chats matching f. Limit is ignored.
func CountChats(ctx context.Context, db *gorm.DB, f domain.Filter) (int64, error) {
	f.Limit = 0
	q, err := applyFilter(db.WithContext(ctx).Model(&domain.Chat{}), domain.KindChat, f)
	if err != nil {
		return 0, err
	}
	var total int64
	err = q.Count(&total).Error
	return total, err
}

// ListChatsPage returns a page of chats matching f, most recently updated
// first. Use CountChats to obtain the total for pagination metadata.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListChatsPage(ctx context.Context, db *gorm.DB, f domain.Filter, offset, limit int) ([]domain.Chat, error) {
	f.Limit = 0
	q, err := applyFilter(db.WithContext(ctx).Model(&domain.Chat{}), domain.KindChat, f)
	if err != nil {
		return nil, err
	}
	var out []domain.Chat
	err = q.Order("updated_at desc").Order("id").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListPermissions returns every permission row of chatID ordered by user.
// It returns an empty slice when the chat has none.
func ListPermissions(ctx context.Context, db *gorm.DB, chatID int64) ([]domain.Permission, error) {
	var out []domain.Permission
	err := db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("user_id").
		Find(&out).Error
	return out, err
}

// GetPermission fetches the permission of userID in chatID, or ErrNotFound.
func GetPermission(ctx context.Context, db *gorm.DB, chatID, userID int64) (*domain.Permission, error) {
	var p domain.Permission
	err := db.WithContext(ctx).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}
