// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (weak ETags) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-sync/internal/domain"
)

// ChatsStats returns the number of chats matching f and the greatest
// UpdatedAt among them. maxUpdatedAt is nil when nothing matches.
func ChatsStats(ctx context.Context, db *gorm.DB, f domain.Filter) (count int64, maxUpdatedAt *time.Time, err error) {
	f.Limit = 0
	q, err := applyFilter(db.WithContext(ctx).Model(&domain.Chat{}), domain.KindChat, f)
	if err != nil {
		return 0, nil, err
	}
	return stats(q)
}

// PermissionsStats returns the size of chatID's permission list and the
// greatest UpdatedAt within it. A list shrinking by deletion changes count,
// so (count, maxUpdatedAt) changes whenever the list does.
func PermissionsStats(ctx context.Context, db *gorm.DB, chatID int64) (count int64, maxUpdatedAt *time.Time, err error) {
	return stats(db.WithContext(ctx).Model(&domain.Permission{}).Where("chat_id = ?", chatID))
}

func stats(q *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	if err = q.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Session(&gorm.Session{}).Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
