package services

import (
	"context"
	"errors"
	"testing"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-sync/internal/domain"
	"github.com/tbourn/go-chat-sync/internal/reconcile"
)

// ----- Fakes -----

type fakeChatRepo struct {
	getID   int64
	getChat *domain.Chat
	getErr  error

	countFilter domain.Filter
	countTotal  int64
	countErr    error

	pageOffset int
	pageLimit  int
	pageItems  []domain.Chat
	pageErr    error
}

func (r *fakeChatRepo) GetChat(ctx context.Context, db *gorm.DB, id int64) (*domain.Chat, error) {
	r.getID = id
	return r.getChat, r.getErr
}

func (r *fakeChatRepo) CountChats(ctx context.Context, db *gorm.DB, f domain.Filter) (int64, error) {
	r.countFilter = f
	return r.countTotal, r.countErr
}

func (r *fakeChatRepo) ListChatsPage(ctx context.Context, db *gorm.DB, f domain.Filter, offset, limit int) ([]domain.Chat, error) {
	r.pageOffset, r.pageLimit = offset, limit
	return r.pageItems, r.pageErr
}

// fakeCore records the last write and returns canned results.
type fakeCore struct {
	kind   domain.Kind
	id     any
	fields domain.Fields

	entity domain.Entity
	err    error
}

func (c *fakeCore) ReconcileOrCreate(ctx context.Context, kind domain.Kind, id any, desired domain.Fields) (domain.Entity, error) {
	c.kind, c.id, c.fields = kind, id, desired
	return c.entity, c.err
}

func (c *fakeCore) ReconcileSet(ctx context.Context, spec reconcile.SetSpec, parent any, desired []domain.Fields) (reconcile.Changeset, error) {
	c.kind, c.id = spec.Kind, parent
	return reconcile.Changeset{}, c.err
}

func (c *fakeCore) CreateWithDependent(ctx context.Context, spec reconcile.CompoundSpec, parentFields, template domain.Fields) (domain.Entity, error) {
	c.kind, c.fields = spec.Kind, template
	return c.entity, c.err
}

func (c *fakeCore) UpdateWithDependent(ctx context.Context, spec reconcile.CompoundSpec, parentFields domain.Fields, dependent domain.Entity, changes domain.Fields) (domain.Entity, error) {
	c.kind, c.fields = spec.Kind, changes
	return c.entity, c.err
}

func (c *fakeCore) Create(ctx context.Context, kind domain.Kind, raw domain.Fields) (domain.Entity, error) {
	c.kind, c.fields = kind, raw
	return c.entity, c.err
}

func (c *fakeCore) Get(ctx context.Context, kind domain.Kind, id any) (domain.Entity, error) {
	c.kind, c.id = kind, id
	return c.entity, c.err
}

func (c *fakeCore) Update(ctx context.Context, kind domain.Kind, id any, raw domain.Fields) (domain.Entity, error) {
	c.kind, c.id, c.fields = kind, id, raw
	return c.entity, c.err
}

func (c *fakeCore) Delete(ctx context.Context, kind domain.Kind, id any) error {
	c.kind, c.id = kind, id
	return c.err
}

// ----- Tests -----

func TestNewChatService_Defaults(t *testing.T) {
	r := &fakeChatRepo{}
	core := &fakeCore{}
	s := NewChatService(nil, r, core)

	if s.DB != nil { // DB can be nil in tests
		t.Fatalf("expected nil DB, got %v", s.DB)
	}
	if s.Repo != r || s.Core != core {
		t.Fatalf("dependencies not set")
	}
	if s.TitleMaxLen != 255 {
		t.Fatalf("TitleMaxLen default = 255, got %d", s.TitleMaxLen)
	}
}

func TestNormalizeTitle(t *testing.T) {
	cases := map[string]string{
		"":                      "",
		"   leading   ":         "leading",
		"multi   spaces":        "multi spaces",
		"tabs\tand\nnewlines  ": "tabs and newlines",
		"\t  \n":                "",
	}
	for in, want := range cases {
		if got := normalizeTitle(in); got != want {
			t.Errorf("normalizeTitle(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestClip_UsesRunesNotBytes(t *testing.T) {
	s := NewChatService(nil, &fakeChatRepo{}, &fakeCore{})
	s.TitleMaxLen = 5

	long := "☃☃☃☃☃☃☃"
	got := s.clip(long)
	if utf8.RuneCountInString(got) != 5 {
		t.Fatalf("clip should keep 5 runes, got %d (%q)", utf8.RuneCountInString(got), got)
	}
	if s.clip("hi") != "hi" {
		t.Fatalf("expected passthrough for short input")
	}
}

func TestSync_NormalizesTitleWithoutMutatingInput(t *testing.T) {
	core := &fakeCore{entity: &domain.Chat{ID: -1}}
	s := NewChatService(nil, &fakeChatRepo{}, core)
	s.TitleMaxLen = 3

	in := domain.Fields{"type": "group", "title": "  A   B  C "}
	c, err := s.Sync(context.Background(), -1, in)
	if err != nil {
		t.Fatalf("Sync error: %v", err)
	}
	if c.ID != -1 {
		t.Fatalf("unexpected chat %+v", c)
	}
	if core.kind != domain.KindChat || core.id != int64(-1) {
		t.Fatalf("core got %s/%v", core.kind, core.id)
	}
	if core.fields["title"] != "A B" {
		t.Fatalf("title = %q; want %q", core.fields["title"], "A B")
	}
	if in["title"] != "  A   B  C " {
		t.Fatalf("input mutated: %v", in)
	}
}

func TestSync_PropagatesValidationError(t *testing.T) {
	ve := &domain.ValidationError{Kind: domain.KindChat, Field: "type", Reason: "is invalid"}
	s := NewChatService(nil, &fakeChatRepo{}, &fakeCore{err: ve})

	_, err := s.Sync(context.Background(), 5, domain.Fields{"type": "x"})
	if !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("expected invalid, got %v", err)
	}
}

func TestGet_NotFoundMapsToErrChatNotFound(t *testing.T) {
	r := &fakeChatRepo{getErr: gorm.ErrRecordNotFound}
	s := NewChatService(nil, r, &fakeCore{})

	if _, err := s.Get(context.Background(), 9); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound, got %v", err)
	}
	if r.getID != 9 {
		t.Fatalf("repo got id %d", r.getID)
	}
}

func TestListPage_DefaultsAndTotalZero(t *testing.T) {
	r := &fakeChatRepo{countTotal: 0}
	s := NewChatService(nil, r, &fakeCore{})

	taken := true
	items, total, err := s.ListPage(context.Background(), domain.Filter{IsTakeOver: &taken}, 0, 0)
	if err != nil {
		t.Fatalf("ListPage error: %v", err)
	}
	if total != 0 || len(items) != 0 {
		t.Fatalf("expected empty results when total=0; got total=%d len=%d", total, len(items))
	}
	if r.countFilter.IsTakeOver == nil || !*r.countFilter.IsTakeOver {
		t.Fatalf("filter not forwarded: %+v", r.countFilter)
	}
}

func TestListPage_CountError(t *testing.T) {
	sentinel := errors.New("boom")
	s := NewChatService(nil, &fakeChatRepo{countErr: sentinel}, &fakeCore{})

	_, _, err := s.ListPage(context.Background(), domain.Filter{}, 1, 10)
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected count error to propagate, got %v", err)
	}
}

func TestListPage_OffsetLimit(t *testing.T) {
	r := &fakeChatRepo{countTotal: 42, pageItems: []domain.Chat{{ID: 1}, {ID: 2}}}
	s := NewChatService(nil, r, &fakeCore{})

	items, total, err := s.ListPage(context.Background(), domain.Filter{}, 3, 10)
	if err != nil {
		t.Fatalf("ListPage error: %v", err)
	}
	if total != 42 || len(items) != 2 {
		t.Fatalf("expected 2 items and total 42; got %d/%d", len(items), total)
	}
	if r.pageOffset != 20 || r.pageLimit != 10 {
		t.Fatalf("offset/limit = %d/%d; want 20/10", r.pageOffset, r.pageLimit)
	}

	r2 := &fakeChatRepo{countTotal: 1}
	s2 := NewChatService(nil, r2, &fakeCore{})
	if _, _, err := s2.ListPage(context.Background(), domain.Filter{}, -10, -5); err != nil {
		t.Fatalf("ListPage error: %v", err)
	}
	if r2.pageOffset != 0 || r2.pageLimit != 20 {
		t.Fatalf("expected default offset/limit 0/20; got %d/%d", r2.pageOffset, r2.pageLimit)
	}
}

func TestUpdateAndDelete_NotFound(t *testing.T) {
	nf := &domain.NotFoundError{Kind: domain.KindChat, ID: int64(3)}
	s := NewChatService(nil, &fakeChatRepo{}, &fakeCore{err: nf})

	if _, err := s.Update(context.Background(), 3, domain.Fields{"title": "x"}); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("Update: expected ErrChatNotFound, got %v", err)
	}
	if err := s.Delete(context.Background(), 3); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("Delete: expected ErrChatNotFound, got %v", err)
	}
}

func TestDelete_OtherErrorPassesThrough(t *testing.T) {
	sentinel := errors.New("db down")
	s := NewChatService(nil, &fakeChatRepo{}, &fakeCore{err: sentinel})
	if err := s.Delete(context.Background(), 3); !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel, got %v", err)
	}
}
