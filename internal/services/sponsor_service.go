package services

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-sync/internal/domain"
	"github.com/tbourn/go-chat-sync/internal/reconcile"
)

// SponsorRepo defines the read queries required by the sponsor services.
type SponsorRepo interface {
	GetSponsor(ctx context.Context, db *gorm.DB, id string) (*domain.Sponsor, error)
	ListSponsors(ctx context.Context, db *gorm.DB) ([]domain.Sponsor, error)
	GetSponsorshipHistory(ctx context.Context, db *gorm.DB, id string) (*domain.SponsorshipHistory, error)
	ListSponsorshipHistories(ctx context.Context, db *gorm.DB, f domain.Filter) ([]domain.SponsorshipHistory, error)
}

// SponsorService manages sponsors. Identifiers are generated on create.
type SponsorService struct {
	DB   *gorm.DB
	Repo SponsorRepo
	Core Core
}

// NewSponsorService constructs a SponsorService.
func NewSponsorService(db *gorm.DB, r SponsorRepo, core Core) *SponsorService {
	return &SponsorService{DB: db, Repo: r, Core: core}
}

// Create validates fields and inserts a new sponsor.
func (s *SponsorService) Create(ctx context.Context, fields domain.Fields) (_ *domain.Sponsor, err error) {
	ctx, span := startSpan(ctx, "sponsor.create")
	defer func() { endSpan(span, err) }()

	e, err := s.Core.Create(ctx, domain.KindSponsor, fields)
	if err != nil {
		return nil, err
	}
	return e.(*domain.Sponsor), nil
}

// Get returns sponsor id, or ErrSponsorNotFound.
func (s *SponsorService) Get(ctx context.Context, id string) (*domain.Sponsor, error) {
	sp, err := s.Repo.GetSponsor(ctx, s.DB, id)
	if err != nil {
		return nil, notFound(err, ErrSponsorNotFound)
	}
	return sp, nil
}

// List returns every sponsor, oldest first.
func (s *SponsorService) List(ctx context.Context) ([]domain.Sponsor, error) {
	return s.Repo.ListSponsors(ctx, s.DB)
}

// Update applies fields to sponsor id.
func (s *SponsorService) Update(ctx context.Context, id string, fields domain.Fields) (_ *domain.Sponsor, err error) {
	ctx, span := startSpan(ctx, "sponsor.update", attribute.String("sponsor.id", id))
	defer func() { endSpan(span, err) }()

	e, err := s.Core.Update(ctx, domain.KindSponsor, id, fields)
	if err != nil {
		return nil, notFound(err, ErrSponsorNotFound)
	}
	return e.(*domain.Sponsor), nil
}

// Delete removes sponsor id. Its sponsorship records stay, unlinked.
func (s *SponsorService) Delete(ctx context.Context, id string) (err error) {
	ctx, span := startSpan(ctx, "sponsor.delete", attribute.String("sponsor.id", id))
	defer func() { endSpan(span, err) }()

	return notFound(s.Core.Delete(ctx, domain.KindSponsor, id), ErrSponsorNotFound)
}

// SponsorshipService manages sponsorship records and their optional link
// to a sponsor.
type SponsorshipService struct {
	DB   *gorm.DB
	Repo SponsorRepo
	Core Core
}

// NewSponsorshipService constructs a SponsorshipService.
func NewSponsorshipService(db *gorm.DB, r SponsorRepo, core Core) *SponsorshipService {
	return &SponsorshipService{DB: db, Repo: r, Core: core}
}

// Create inserts a sponsorship record. A reached record without reached_at
// is stamped with the current time.
func (s *SponsorshipService) Create(ctx context.Context, fields domain.Fields) (_ *domain.SponsorshipHistory, err error) {
	ctx, span := startSpan(ctx, "sponsorship.create")
	defer func() { endSpan(span, err) }()

	e, err := s.Core.Create(ctx, domain.KindSponsorshipHistory, fields)
	if err != nil {
		return nil, err
	}
	return e.(*domain.SponsorshipHistory), nil
}

// CreateWithSponsor writes sponsor (updating it when it carries an id,
// creating it otherwise) and a new record linked to it, atomically.
func (s *SponsorshipService) CreateWithSponsor(ctx context.Context, sponsor, fields domain.Fields) (_ *domain.SponsorshipHistory, err error) {
	ctx, span := startSpan(ctx, "sponsorship.create_with_sponsor")
	defer func() { endSpan(span, err) }()

	e, err := s.Core.CreateWithDependent(ctx, reconcile.SponsorshipWithSponsor(), sponsor, fields)
	if err != nil {
		return nil, notFound(err, ErrSponsorNotFound)
	}
	return e.(*domain.SponsorshipHistory), nil
}

// Get returns record id with its sponsor, or ErrSponsorshipNotFound.
func (s *SponsorshipService) Get(ctx context.Context, id string) (*domain.SponsorshipHistory, error) {
	h, err := s.Repo.GetSponsorshipHistory(ctx, s.DB, id)
	if err != nil {
		return nil, notFound(err, ErrSponsorshipNotFound)
	}
	return h, nil
}

// Update applies fields to record id.
func (s *SponsorshipService) Update(ctx context.Context, id string, fields domain.Fields) (_ *domain.SponsorshipHistory, err error) {
	ctx, span := startSpan(ctx, "sponsorship.update", attribute.String("sponsorship.id", id))
	defer func() { endSpan(span, err) }()

	e, err := s.Core.Update(ctx, domain.KindSponsorshipHistory, id, fields)
	if err != nil {
		return nil, notFound(err, ErrSponsorshipNotFound)
	}
	return e.(*domain.SponsorshipHistory), nil
}

// UpdateWithSponsor applies fields to record id and links it to sponsor,
// which is written in the same unit.
func (s *SponsorshipService) UpdateWithSponsor(ctx context.Context, id string, sponsor, fields domain.Fields) (_ *domain.SponsorshipHistory, err error) {
	ctx, span := startSpan(ctx, "sponsorship.update_with_sponsor", attribute.String("sponsorship.id", id))
	defer func() { endSpan(span, err) }()

	current, err := s.Core.Get(ctx, domain.KindSponsorshipHistory, id)
	if err != nil {
		return nil, notFound(err, ErrSponsorshipNotFound)
	}
	e, err := s.Core.UpdateWithDependent(ctx, reconcile.SponsorshipWithSponsor(), sponsor, current, fields)
	if err != nil {
		var nf *domain.NotFoundError
		if errors.As(err, &nf) && nf.Kind == domain.KindSponsor {
			return nil, ErrSponsorNotFound
		}
		return nil, notFound(err, ErrSponsorshipNotFound)
	}
	return e.(*domain.SponsorshipHistory), nil
}

// MarkReached flags record id as fulfilled. When at is nil the original
// fulfilment time is kept, or the current time is used for a first mark.
func (s *SponsorshipService) MarkReached(ctx context.Context, id string, at *time.Time) (*domain.SponsorshipHistory, error) {
	fields := domain.Fields{"has_reached": true}
	if at != nil {
		fields["reached_at"] = at.UTC()
	}
	return s.Update(ctx, id, fields)
}

// Delete removes record id.
func (s *SponsorshipService) Delete(ctx context.Context, id string) (err error) {
	ctx, span := startSpan(ctx, "sponsorship.delete", attribute.String("sponsorship.id", id))
	defer func() { endSpan(span, err) }()

	return notFound(s.Core.Delete(ctx, domain.KindSponsorshipHistory, id), ErrSponsorshipNotFound)
}

// Find returns records matching f, newest first, with sponsors preloaded.
func (s *SponsorshipService) Find(ctx context.Context, f domain.Filter) ([]domain.SponsorshipHistory, error) {
	return s.Repo.ListSponsorshipHistories(ctx, s.DB, f)
}
