// internal/matchstore/store.go

package matchstore

import (
	"context"
	"errors"
	"strconv"
)

var (
	ErrNotFound     = errors.New("match not found")
	ErrConflict     = errors.New("match already exists")
	ErrForbidden    = errors.New("not allowed to confirm this match")
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
	ErrBadCursor    = errors.New("invalid cursor")

	ErrHousingNotFound = errors.New("housing not found")
	ErrNoHousing       = errors.New("only users with housing can list a room")
)

// Store persists match records.
//
// Create fails with ErrConflict when a record from -> to already exists or
// the pair is already Matched. Confirm only succeeds for the toUser of a
// Pending record: an unknown id gives ErrNotFound, a Matched record
// ErrConflict and any other caller ErrForbidden.
type Store interface {
	List(ctx context.Context, userID int64, cursor string, limit int) (*Page, error)
	Create(ctx context.Context, from, to int64) (*Match, error)
	Confirm(ctx context.Context, id string, userID int64) (*Match, error)
	IsMatched(ctx context.Context, a, b int64) (bool, error)
	UserExists(ctx context.Context, id int64) (bool, error)
}

// UserStore persists accounts and the room listings they own.
type UserStore interface {
	HousingStore

	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UpdateUser(ctx context.Context, u *User) error
	// Recommendations returns users other than userID that userID has not
	// liked yet, oldest accounts first.
	Recommendations(ctx context.Context, userID int64, limit int) ([]User, error)
}

// HousingStore persists room listings. ListHousing returns a user's listings
// newest first.
type HousingStore interface {
	CreateHousing(ctx context.Context, h *Housing) error
	GetHousing(ctx context.Context, id int64) (*Housing, error)
	ListHousing(ctx context.Context, ownerID int64) ([]Housing, error)
}

// parseCursor decodes the opaque cursor: the sequence number of the last
// record of the previous page.
func parseCursor(cursor string) (int64, error) {
	if cursor == "" {
		return 0, nil
	}
	seq, err := strconv.ParseInt(cursor, 10, 64)
	if err != nil || seq < 0 {
		return 0, ErrBadCursor
	}
	return seq, nil
}

func formatCursor(seq int64) string {
	return strconv.FormatInt(seq, 10)
}
