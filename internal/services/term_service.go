package services

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-sync/internal/domain"
)

// TermRepo defines the read queries required by TermService.
type TermRepo interface {
	GetTerm(ctx context.Context, db *gorm.DB, id int64) (*domain.Term, error)
}

// TermService stores operator-managed texts under caller-chosen ids.
type TermService struct {
	DB   *gorm.DB
	Repo TermRepo
	Core Core
}

// NewTermService constructs a TermService.
func NewTermService(db *gorm.DB, r TermRepo, core Core) *TermService {
	return &TermService{DB: db, Repo: r, Core: core}
}

// Put creates or replaces the content of term id.
func (s *TermService) Put(ctx context.Context, id int64, content string) (_ *domain.Term, err error) {
	ctx, span := startSpan(ctx, "term.put", attribute.Int64("term.id", id))
	defer func() { endSpan(span, err) }()

	e, err := s.Core.ReconcileOrCreate(ctx, domain.KindTerm, id, domain.Fields{"content": content})
	if err != nil {
		return nil, err
	}
	return e.(*domain.Term), nil
}

// Get returns term id, or ErrTermNotFound.
func (s *TermService) Get(ctx context.Context, id int64) (*domain.Term, error) {
	t, err := s.Repo.GetTerm(ctx, s.DB, id)
	if err != nil {
		return nil, notFound(err, ErrTermNotFound)
	}
	return t, nil
}

// Delete removes term id, or returns ErrTermNotFound.
func (s *TermService) Delete(ctx context.Context, id int64) (err error) {
	ctx, span := startSpan(ctx, "term.delete", attribute.Int64("term.id", id))
	defer func() { endSpan(span, err) }()

	return notFound(s.Core.Delete(ctx, domain.KindTerm, id), ErrTermNotFound)
}
