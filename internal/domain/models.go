// Package domain defines the persistence models for chats, chat permissions,
// terms, sponsors, and sponsorship records. These types are mapped with GORM
// and form the core data layer reconciled by the reconcile package.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Chat mirrors a chat on the messaging platform. Its identifier is supplied
// by the platform and never generated locally.
//
// Fields:
//   - ID: platform chat id (negative for groups and channels).
//   - Type: one of private, group, supergroup, channel.
//   - IsTakeOver: whether the bot manages joins for this chat.
//   - Left: set once the bot is no longer a member.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Chat struct {
	ID           int64     `json:"id"             gorm:"primaryKey;autoIncrement:false"`
	Type         string    `json:"type"           gorm:"type:varchar(16);not null"`
	Title        string    `json:"title"          gorm:"type:varchar(255)"`
	Username     string    `json:"username"       gorm:"type:varchar(64);index"`
	Description  string    `json:"description"    gorm:"type:text"`
	InviteLink   string    `json:"invite_link"    gorm:"type:varchar(255)"`
	SmallPhotoID string    `json:"small_photo_id" gorm:"type:varchar(255)"`
	BigPhotoID   string    `json:"big_photo_id"   gorm:"type:varchar(255)"`
	IsTakeOver   bool      `json:"is_take_over"   gorm:"not null;index"`
	Left         bool      `json:"left"           gorm:"not null"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for Chat.
func (Chat) TableName() string { return "chats" }

// EntityKind implements Entity.
func (*Chat) EntityKind() Kind { return KindChat }

// PrimaryKey implements Entity.
func (c *Chat) PrimaryKey() any { return c.ID }

// Term is a piece of operator-managed text (such as the terms of service),
// keyed by a caller-chosen id.
type Term struct {
	ID        int64     `json:"id"         gorm:"primaryKey;autoIncrement:false"`
	Content   string    `json:"content"    gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Term.
func (Term) TableName() string { return "terms" }

// EntityKind implements Entity.
func (*Term) EntityKind() Kind { return KindTerm }

// PrimaryKey implements Entity.
func (t *Term) PrimaryKey() any { return t.ID }

// Permission records what a single user may do inside a chat. A user has at
// most one permission row per chat (enforced by unique index).
//
// Fields:
//   - ID: serial primary key assigned by the database.
//   - ChatID / UserID: the natural key (unique together).
//   - Flags: JSON object of permission flags (e.g. {"ban": true}).
//   - Chat: FK association; permissions are cascade-deleted with their chat.
type Permission struct {
	ID        uint              `json:"id"         gorm:"primaryKey"`
	ChatID    int64             `json:"chat_id"    gorm:"not null;uniqueIndex:ux_permission_chat_user,priority:1"`
	UserID    int64             `json:"user_id"    gorm:"not null;uniqueIndex:ux_permission_chat_user,priority:2;index"`
	Flags     datatypes.JSONMap `json:"flags"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`

	Chat *Chat `json:"-" gorm:"foreignKey:ChatID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Permission.
func (Permission) TableName() string { return "permissions" }

// EntityKind implements Entity.
func (*Permission) EntityKind() Kind { return KindPermission }

// PrimaryKey implements Entity.
func (p *Permission) PrimaryKey() any { return p.ID }

// Flag reports whether the named permission flag is set to true.
func (p *Permission) Flag(name string) bool {
	v, ok := p.Flags[name].(bool)
	return ok && v
}

// Sponsor is a supporter of the project. Its id is an opaque UUID generated
// at creation and never reused.
type Sponsor struct {
	ID           string    `json:"id"           gorm:"type:char(36);primaryKey"`
	Title        string    `json:"title"        gorm:"type:varchar(64);not null"`
	Avatar       string    `json:"avatar"       gorm:"type:varchar(255)"`
	Homepage     string    `json:"homepage"     gorm:"type:varchar(255)"`
	Introduction string    `json:"introduction" gorm:"type:text"`
	Contact      string    `json:"contact"      gorm:"type:varchar(128)"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for Sponsor.
func (Sponsor) TableName() string { return "sponsors" }

// EntityKind implements Entity.
func (*Sponsor) EntityKind() Kind { return KindSponsor }

// PrimaryKey implements Entity.
func (s *Sponsor) PrimaryKey() any { return s.ID }

// SponsorshipHistory records a single sponsorship pledge and whether it has
// been fulfilled. SponsorID stays nil until a sponsor is attached.
//
// A reached record always carries ReachedAt; the reconcile writer derives it
// when the caller does not supply one.
type SponsorshipHistory struct {
	ID         string     `json:"id"          gorm:"type:char(36);primaryKey"`
	SponsorID  *string    `json:"sponsor_id"  gorm:"type:char(36);index"`
	ExpectedTo string     `json:"expected_to" gorm:"type:varchar(64)"`
	Amount     int64      `json:"amount"      gorm:"not null"`
	HasReached bool       `json:"has_reached" gorm:"not null;index"`
	ReachedAt  *time.Time `json:"reached_at"`
	Hidden     bool       `json:"hidden"      gorm:"not null"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`

	// Sponsor is a read-through convenience; writes never persist it.
	Sponsor *Sponsor `json:"sponsor,omitempty" gorm:"foreignKey:SponsorID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

// TableName returns the database table name for SponsorshipHistory.
func (SponsorshipHistory) TableName() string { return "sponsorship_histories" }

// EntityKind implements Entity.
func (*SponsorshipHistory) EntityKind() Kind { return KindSponsorshipHistory }

// PrimaryKey implements Entity.
func (h *SponsorshipHistory) PrimaryKey() any { return h.ID }

// Models lists every persisted model, in dependency order, for migrations.
func Models() []any {
	return []any{
		&Chat{},
		&Term{},
		&Permission{},
		&Sponsor{},
		&SponsorshipHistory{},
	}
}
