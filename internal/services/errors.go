// Package services defines the application operations for chats, chat
// permissions, terms, sponsors, and sponsorship records on top of the
// reconcile core. This file centralizes service-level error values so that
// they can be consistently returned by service methods and checked by
// callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer. Validation and conflict failures are returned as the
// core's typed errors (domain.ErrInvalid, domain.ErrConflict) unchanged.
package services

import (
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-sync/internal/domain"
)

var (
	// ErrChatNotFound indicates that the requested chat does not exist.
	ErrChatNotFound = errors.New("chat not found")

	// ErrPermissionNotFound indicates that the user has no permission row in
	// the chat.
	ErrPermissionNotFound = errors.New("permission not found")

	// ErrTermNotFound indicates that the requested term does not exist.
	ErrTermNotFound = errors.New("term not found")

	// ErrSponsorNotFound indicates that the requested sponsor does not exist.
	ErrSponsorNotFound = errors.New("sponsor not found")

	// ErrSponsorshipNotFound indicates that the requested sponsorship record
	// does not exist.
	ErrSponsorshipNotFound = errors.New("sponsorship not found")
)

// notFound maps both the core's *domain.NotFoundError and GORM's
// ErrRecordNotFound to sentinel; other errors pass through.
func notFound(err, sentinel error) error {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}
