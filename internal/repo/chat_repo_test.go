package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/tbourn/go-chat-sync/internal/domain"
)

func TestGetChat_FoundAndNotFound(t *testing.T) {
	db := newTestDB(t, &domain.Chat{})
	ctx := context.Background()

	if err := db.Create(&domain.Chat{ID: -100, Type: "supergroup", Title: "Gophers"}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	got, err := GetChat(ctx, db, -100)
	if err != nil || got.Title != "Gophers" {
		t.Fatalf("GetChat: got=%+v err=%v", got, err)
	}
	if _, err := GetChat(ctx, db, 7); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCountChats_Error_NoTable(t *testing.T) {
	db := newTestDB(t /* no migrations */)
	if _, err := CountChats(context.Background(), db, domain.Filter{}); err == nil {
		t.Fatalf("expected error when table missing")
	}
}

func TestListChatsPage_PaginationOrderAndFilter(t *testing.T) {
	db := newTestDB(t, &domain.Chat{})
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	for i := int64(1); i <= 5; i++ {
		ts := base.Add(time.Duration(i) * time.Hour)
		c := domain.Chat{ID: -i, Type: "group", IsTakeOver: i%2 == 1, CreatedAt: ts, UpdatedAt: ts}
		if err := db.Create(&c).Error; err != nil {
			t.Fatalf("seed %d: %v", c.ID, err)
		}
	}

	total, err := CountChats(ctx, db, domain.Filter{Limit: 1})
	if err != nil || total != 5 {
		t.Fatalf("CountChats = %d, %v; want 5 (limit ignored)", total, err)
	}

	page, err := ListChatsPage(ctx, db, domain.Filter{}, 1, 2)
	if err != nil {
		t.Fatalf("ListChatsPage: %v", err)
	}
	// Most recently updated first: -5, -4, -3, ...; offset 1 → -4, -3.
	if len(page) != 2 || page[0].ID != -4 || page[1].ID != -3 {
		t.Fatalf("unexpected page: %+v", page)
	}

	yes := true
	takeOver, err := ListChatsPage(ctx, db, domain.Filter{IsTakeOver: &yes}, 0, 10)
	if err != nil {
		t.Fatalf("ListChatsPage filtered: %v", err)
	}
	if len(takeOver) != 3 {
		t.Fatalf("expected 3 take-over chats, got %d", len(takeOver))
	}
	for _, c := range takeOver {
		if !c.IsTakeOver {
			t.Fatalf("filter leaked chat %d", c.ID)
		}
	}
}

func TestListPermissions_AndGetPermission(t *testing.T) {
	db := newTestDB(t, domain.Models()...)
	ctx := context.Background()

	if err := db.Create(&domain.Chat{ID: 42, Type: "group"}).Error; err != nil {
		t.Fatalf("seed chat: %v", err)
	}
	if err := db.Create(&domain.Chat{ID: 43, Type: "group"}).Error; err != nil {
		t.Fatalf("seed chat: %v", err)
	}
	for _, p := range []domain.Permission{
		{ChatID: 42, UserID: 3, Flags: datatypes.JSONMap{"ban": true}},
		{ChatID: 42, UserID: 1, Flags: datatypes.JSONMap{"ban": false}},
		{ChatID: 43, UserID: 2},
	} {
		p := p
		if err := db.Create(&p).Error; err != nil {
			t.Fatalf("seed permission: %v", err)
		}
	}

	list, err := ListPermissions(ctx, db, 42)
	if err != nil {
		t.Fatalf("ListPermissions: %v", err)
	}
	if len(list) != 2 || list[0].UserID != 1 || list[1].UserID != 3 {
		t.Fatalf("unexpected list: %+v", list)
	}
	if !list[1].Flag("ban") || list[0].Flag("ban") {
		t.Fatalf("flags did not round-trip: %+v", list)
	}

	p, err := GetPermission(ctx, db, 43, 2)
	if err != nil || p.ChatID != 43 {
		t.Fatalf("GetPermission: %+v %v", p, err)
	}
	if _, err := GetPermission(ctx, db, 42, 2); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
