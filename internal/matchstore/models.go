// internal/matchstore/models.go

package matchstore

import (
	"time"

	"github.com/lib/pq"
)

// Status of a stored match record.
type Status string

const (
	StatusPending Status = "Pending"
	StatusMatched Status = "Matched"
)

// Match is one directional like. A pair of users may hold at most one record
// per direction; once either record is Matched no new ones are accepted.
type Match struct {
	ID        string    `json:"id" db:"id"`
	FromUser  int64     `json:"fromUser" db:"from_user"`
	ToUser    int64     `json:"toUser" db:"to_user"`
	Status    Status    `json:"status" db:"status"`
	Seq       int64     `json:"-" db:"seq"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Involves reports whether userID is on either side.
func (m *Match) Involves(userID int64) bool {
	return m.FromUser == userID || m.ToUser == userID
}

// Page is one slice of a user's match list.
type Page struct {
	Matches    []Match `json:"matches"`
	NextCursor string  `json:"nextCursor,omitempty"`
}

// User is an account of the reference store.
type User struct {
	ID           int64          `json:"id_user" db:"id"`
	Email        string         `json:"email" db:"email"`
	PasswordHash string         `json:"-" db:"password_hash"`
	Name         string         `json:"name" db:"name"`
	Age          int            `json:"age,omitempty" db:"age"`
	Gender       string         `json:"gender,omitempty" db:"gender"`
	PhoneNumber  string         `json:"phone_number,omitempty" db:"phone_number"`
	UserType     UserType       `json:"user_type" db:"user_type"`
	Images       pq.StringArray `json:"user_images" db:"user_images"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}

// PublicUser is what other users may see of an account.
type PublicUser struct {
	ID       int64          `json:"id_user"`
	Name     string         `json:"name"`
	Age      int            `json:"age,omitempty"`
	Gender   string         `json:"gender,omitempty"`
	UserType UserType       `json:"user_type,omitempty"`
	Images   pq.StringArray `json:"user_images"`
}

func (u *User) Public() PublicUser {
	images := u.Images
	if images == nil {
		images = pq.StringArray{}
	}
	return PublicUser{
		ID:       u.ID,
		Name:     u.Name,
		Age:      u.Age,
		Gender:   u.Gender,
		UserType: u.UserType,
		Images:   images,
	}
}

// UserType says whether an account offers a room or looks for one.
type UserType string

const (
	UserWithHousing    UserType = "user_w_housing"
	UserWithoutHousing UserType = "user_wo_housing"
)

// Housing is a room listing owned by a user with housing.
type Housing struct {
	ID             int64     `json:"id_housing" db:"id"`
	OwnerID        int64     `json:"id_user" db:"owner_id"`
	Address        string    `json:"address" db:"address"`
	RegionID       int       `json:"id_region,omitempty" db:"region_id"`
	ComunaID       int       `json:"id_comuna,omitempty" db:"comuna_id"`
	Rent           int       `json:"rent" db:"rent"`
	Size           int       `json:"size" db:"size"`
	AvailableRoom  int       `json:"available_room" db:"available_room"`
	PetsAllowed    bool      `json:"pets_allowed" db:"pets_allowed"`
	SmokingAllowed bool      `json:"smoking_allowed" db:"smoking_allowed"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Tokens is the token pair handed out on login and refresh.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int    `json:"expiresIn"`
}
