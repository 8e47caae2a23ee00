package matchstore

import (
	"encoding/json"
	"fmt"
)

// CreateMatchRequest accepts both body shapes clients send to POST /match:
// {fromUser, toUser, targetUserId} and {target}.
type CreateMatchRequest struct {
	FromUser     *int64 `json:"fromUser"`
	ToUser       *int64 `json:"toUser"`
	TargetUserID *int64 `json:"targetUserId"`
	Target       *int64 `json:"target"`
}

// likeInput is the normalized create request.
type likeInput struct {
	TargetUserID int64 `json:"targetUserId" validate:"required,gt=0"`
}

// targetOnlyInput is what strict mode requires.
type targetOnlyInput struct {
	Target int64 `json:"target" validate:"required,gt=0"`
}

func (r *CreateMatchRequest) directional() bool {
	return r.FromUser != nil || r.ToUser != nil || r.TargetUserID != nil
}

// target picks the target user, preferring the explicit field names.
func (r *CreateMatchRequest) target() int64 {
	for _, v := range []*int64{r.Target, r.TargetUserID, r.ToUser} {
		if v != nil {
			return *v
		}
	}
	return 0
}

// ConfirmMatchRequest is the body of PUT /match. The id may arrive as a
// string or a number.
type ConfirmMatchRequest struct {
	MatchID json.RawMessage `json:"matchId"`
	Confirm *bool           `json:"confirm"`
}

func (r *ConfirmMatchRequest) id() (string, error) {
	if len(r.MatchID) == 0 || string(r.MatchID) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(r.MatchID, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(r.MatchID, &n); err != nil {
		return "", fmt.Errorf("matchId must be a string or number")
	}
	return n.String(), nil
}

type confirmInput struct {
	MatchID string `json:"matchId" validate:"required"`
	Confirm bool   `json:"confirm" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest is the body of POST /user and POST /auth/register. The
// mobile client sends only email, password and user_type; the profile is
// filled in later.
type RegisterRequest struct {
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=8,max=100"`
	UserType UserType `json:"user_type" validate:"omitempty,oneof=user_w_housing user_wo_housing"`
	Name     string   `json:"name" validate:"max=100"`
	Age      int      `json:"age" validate:"omitempty,min=18,max=120"`
	Gender   string   `json:"gender" validate:"max=30"`
	Images   []string `json:"user_images" validate:"max=10,dive,url"`
}

type UpdateProfileRequest struct {
	Name        string   `json:"name" validate:"max=100"`
	Age         int      `json:"age" validate:"omitempty,min=18,max=120"`
	Gender      string   `json:"gender" validate:"max=30"`
	PhoneNumber string   `json:"phone_number" validate:"max=30"`
	Images      []string `json:"user_images" validate:"omitempty,max=10,dive,url"`
}

// CreateHousingRequest is the body of POST /housing.
type CreateHousingRequest struct {
	Address        string `json:"address" validate:"required,max=200"`
	RegionID       int    `json:"id_region" validate:"omitempty,min=1"`
	ComunaID       int    `json:"id_comuna" validate:"omitempty,min=1"`
	Rent           int    `json:"rent" validate:"required,gt=0"`
	Size           int    `json:"size" validate:"required,gt=0"`
	AvailableRoom  int    `json:"available_room" validate:"omitempty,min=1,max=20"`
	PetsAllowed    bool   `json:"pets_allowed"`
	SmokingAllowed bool   `json:"smoking_allowed"`
}

// AuthResponse is returned by login, in the shape the mobile client reads.
type AuthResponse struct {
	User   *User   `json:"user"`
	Tokens *Tokens `json:"tokens"`
}

// ChatMessage is a chat frame relayed between matched users.
type ChatMessage struct {
	From   int64  `json:"from"`
	To     int64  `json:"to"`
	Text   string `json:"text"`
	SentAt string `json:"sentAt"`
}
