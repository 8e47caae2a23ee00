// internal/housing/client.go
// Client for the room listing endpoints

package housing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/turumi/turumi-match/internal/common/httpclient"
	"github.com/turumi/turumi-match/internal/common/utils"
	"github.com/turumi/turumi-match/internal/identity"
	"github.com/turumi/turumi-match/internal/match"
)

const (
	opCreate = "create_housing"
	opGet    = "get_housing"
	opList   = "list_housing"
)

// Listing is a room offered by a user with housing.
type Listing struct {
	ID             int64     `json:"id_housing"`
	OwnerID        int64     `json:"id_user"`
	Address        string    `json:"address"`
	RegionID       int       `json:"id_region,omitempty"`
	ComunaID       int       `json:"id_comuna,omitempty"`
	Rent           int       `json:"rent"`
	Size           int       `json:"size"`
	AvailableRoom  int       `json:"available_room"`
	PetsAllowed    bool      `json:"pets_allowed"`
	SmokingAllowed bool      `json:"smoking_allowed"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewListing is validated before it is sent.
type NewListing struct {
	Address        string `json:"address" validate:"required,max=200"`
	RegionID       int    `json:"id_region,omitempty" validate:"omitempty,min=1"`
	ComunaID       int    `json:"id_comuna,omitempty" validate:"omitempty,min=1"`
	Rent           int    `json:"rent" validate:"required,gt=0"`
	Size           int    `json:"size" validate:"required,gt=0"`
	AvailableRoom  int    `json:"available_room" validate:"required,min=1,max=20"`
	PetsAllowed    bool   `json:"pets_allowed"`
	SmokingAllowed bool   `json:"smoking_allowed"`
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

// Create lists a room owned by the caller.
func (c *Client) Create(ctx context.Context, id identity.Identity, in NewListing) (*Listing, error) {
	err := utils.ValidateStruct(in)
	var fe *utils.FieldError
	if errors.As(err, &fe) {
		return nil, &match.RequestError{Kind: match.ErrValidation, Op: opCreate, Field: fe.Field, Message: fe.Message}
	}
	if err != nil {
		return nil, err
	}

	var resp struct {
		Housing Listing `json:"housing"`
	}
	if err := c.call(ctx, opCreate, http.MethodPost, "/housing", id, in, &resp); err != nil {
		return nil, err
	}
	if resp.Housing.ID == 0 {
		return nil, &match.RequestError{Kind: match.ErrTransport, Op: opCreate, Message: "response without id_housing"}
	}

	c.logger.Info("housing listed", zap.Int64("housing_id", resp.Housing.ID))
	return &resp.Housing, nil
}

func (c *Client) Get(ctx context.Context, id identity.Identity, housingID int64) (*Listing, error) {
	var resp struct {
		Housing Listing `json:"housing"`
	}
	if err := c.call(ctx, opGet, http.MethodGet, "/housing/"+strconv.FormatInt(housingID, 10), id, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Housing, nil
}

// List returns the listings of ownerID, newest first.
func (c *Client) List(ctx context.Context, id identity.Identity, ownerID int64) ([]Listing, error) {
	var resp struct {
		Housing []Listing `json:"housing"`
	}
	path := "/housing?user=" + strconv.FormatInt(ownerID, 10)
	if err := c.call(ctx, opList, http.MethodGet, path, id, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Housing == nil {
		resp.Housing = []Listing{}
	}
	return resp.Housing, nil
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
		c.logger.Debug("housing request failed", zap.String("op", op), zap.Error(err))
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &match.RequestError{Kind: match.ErrTransport, Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
