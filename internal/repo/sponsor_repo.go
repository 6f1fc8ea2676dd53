package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-sync/internal/domain"
)

// GetTerm fetches a term by id, or ErrNotFound.
func GetTerm(ctx context.Context, db *gorm.DB, id int64) (*domain.Term, error) {
	var t domain.Term
	if err := db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// GetSponsor fetches a sponsor by id, or ErrNotFound.
func GetSponsor(ctx context.Context, db *gorm.DB, id string) (*domain.Sponsor, error) {
	var s domain.Sponsor
	if err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSponsors returns every sponsor, oldest first.
func ListSponsors(ctx context.Context, db *gorm.DB) ([]domain.Sponsor, error) {
	var out []domain.Sponsor
	err := db.WithContext(ctx).Order("created_at").Order("id").Find(&out).Error
	return out, err
}

// GetSponsorshipHistory fetches a history record with its sponsor preloaded,
// or ErrNotFound.
func GetSponsorshipHistory(ctx context.Context, db *gorm.DB, id string) (*domain.SponsorshipHistory, error) {
	var h domain.SponsorshipHistory
	err := db.WithContext(ctx).
		Preload("Sponsor").
		Where("id = ?", id).
		First(&h).Error
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// ListSponsorshipHistories returns history records matching f, newest first,
// with their sponsors preloaded.
func ListSponsorshipHistories(ctx context.Context, db *gorm.DB, f domain.Filter) ([]domain.SponsorshipHistory, error) {
	q, err := applyFilter(db.WithContext(ctx).Model(&domain.SponsorshipHistory{}), domain.KindSponsorshipHistory, f)
	if err != nil {
		return nil, err
	}
	var out []domain.SponsorshipHistory
	err = q.Preload("Sponsor").
		Order("created_at desc").
		Order("id").
		Find(&out).Error
	return out, err
}
