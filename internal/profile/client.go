// internal/profile/client.go
// Client for the user profile and recommendation endpoints

package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/turumi/turumi-match/internal/common/httpclient"
	"github.com/turumi/turumi-match/internal/identity"
	"github.com/turumi/turumi-match/internal/match"
)

const (
	opRecommendations = "recommendations"
	opGetProfile      = "get_profile"
	opUpdateProfile   = "update_profile"
)

// Profile is a user as the API returns it. Email and phone number are only
// sent for the caller's own profile.
type Profile struct {
	ID          int64    `json:"id_user"`
	Name        string   `json:"name"`
	Email       string   `json:"email,omitempty"`
	Age         int      `json:"age,omitempty"`
	Gender      string   `json:"gender,omitempty"`
	PhoneNumber string   `json:"phone_number,omitempty"`
	UserType    string   `json:"user_type,omitempty"`
	Images      []string `json:"user_images"`
}

// UnmarshalJSON also accepts "id" for the user id.
func (p *Profile) UnmarshalJSON(b []byte) error {
	type plain Profile
	var aux struct {
		plain
		LegacyID int64 `json:"id"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*p = Profile(aux.plain)
	if p.ID == 0 {
		p.ID = aux.LegacyID
	}
	return nil
}

// Photo returns the first image or "".
func (p *Profile) Photo() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// Update holds the editable profile fields; zero values are left unchanged.
type Update struct {
	Name        string   `json:"name,omitempty"`
	Age         int      `json:"age,omitempty"`
	Gender      string   `json:"gender,omitempty"`
	PhoneNumber string   `json:"phone_number,omitempty"`
	Images      []string `json:"user_images,omitempty"`
}

type Client struct {
	baseURL string
	http    httpclient.Doer
	logger  *zap.Logger
	now     func() time.Time
}

func NewClient(baseURL string, doer httpclient.Doer, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: doer, logger: logger, now: time.Now}
}

// Recommendations lists candidate users for the caller. The caller itself is
// filtered out if the server includes it.
func (c *Client) Recommendations(ctx context.Context, id identity.Identity) ([]Profile, error) {
	var resp struct {
		Recommendations []Profile `json:"recommendations"`
	}
	if err := c.call(ctx, opRecommendations, http.MethodGet, "/user/recommendations", id, nil, &resp); err != nil {
		return nil, err
	}

	out := make([]Profile, 0, len(resp.Recommendations))
	for _, p := range resp.Recommendations {
		if p.ID != id.UserID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *Client) Get(ctx context.Context, id identity.Identity, userID int64) (*Profile, error) {
	var p Profile
	if err := c.call(ctx, opGetProfile, http.MethodGet, "/user/"+strconv.FormatInt(userID, 10), id, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Update edits the caller's own profile.
func (c *Client) Update(ctx context.Context, id identity.Identity, u Update) (*Profile, error) {
	var p Profile
	if err := c.call(ctx, opUpdateProfile, http.MethodPut, "/user/"+strconv.FormatInt(id.UserID, 10), id, u, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) call(ctx context.Context, op, method, path string, id identity.Identity, body, out interface{}) error {
	if err := id.Check(c.now()); err != nil {
		return &match.RequestError{Kind: match.ErrAuth, Op: op, Err: err}
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return &match.RequestError{Kind: match.ErrTransport, Op: op, Err: err}
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &match.RequestError{Kind: match.ErrTransport, Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+id.BearerToken)
	req.Header.Set("accesstoken", id.BearerToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &match.RequestError{Kind: match.ErrTransport, Op: op, Err: err}
	}
	defer resp.Body.Close()

	if err := match.ClassifyResponse(op, resp); err != nil {
		c.logger.Debug("profile request failed", zap.String("op", op), zap.Error(err))
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &match.RequestError{Kind: match.ErrTransport, Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
