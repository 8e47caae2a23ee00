// internal/match/repository.go

package match

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/turumi/turumi-match/internal/common/httpclient"
	"github.com/turumi/turumi-match/internal/identity"
)

// Repository is the remote match store as seen by the reconciler.
type Repository interface {
	ListMatches(ctx context.Context, id identity.Identity) ([]Record, error)
	CreatePendingMatch(ctx context.Context, id identity.Identity, target int64) (*Record, error)
	ConfirmMatch(ctx context.Context, matchID ID, id identity.Identity) (*Record, error)
}

const (
	opList    = "list_matches"
	opCreate  = "create_pending_match"
	opConfirm = "confirm_match"

	matchPath = "/match"

	// maxPages bounds cursor draining against a store that never stops.
	maxPages = 1000
)

type httpRepository struct {
	baseURL string
	client  httpclient.Doer
	logger  *zap.Logger
	now     func() time.Time
}

// NewHTTPRepository talks to the store at baseURL through client.
func NewHTTPRepository(baseURL string, client httpclient.Doer, logger *zap.Logger) Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &httpRepository{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger,
		now:     time.Now,
	}
}

type listResponse struct {
	Matches    []Record `json:"matches"`
	NextCursor string   `json:"nextCursor"`
}

func (r *httpRepository) ListMatches(ctx context.Context, id identity.Identity) ([]Record, error) {
	if err := id.Check(r.now()); err != nil {
		return nil, identityError(opList, id, err)
	}

	var (
		all    []Record
		cursor string
		seen   = map[string]bool{}
	)
	for page := 0; ; page++ {
		if page >= maxPages {
			return nil, transportError(opList, fmt.Errorf("more than %d pages", maxPages))
		}

		path := matchPath
		if cursor != "" {
			path += "?cursor=" + url.QueryEscape(cursor)
		}

		raw, err := r.do(ctx, opList, http.MethodGet, path, id, nil)
		if err != nil {
			return nil, err
		}

		resp, err := decodeList(raw)
		if err != nil {
			return nil, transportError(opList, err)
		}
		all = append(all, resp.Matches...)

		if resp.NextCursor == "" {
			break
		}
		if seen[resp.NextCursor] {
			return nil, transportError(opList, fmt.Errorf("cursor %q repeated", resp.NextCursor))
		}
		seen[resp.NextCursor] = true
		cursor = resp.NextCursor
	}

	r.logger.Debug("listed matches", zap.Int64("user_id", id.UserID), zap.Int("count", len(all)))
	return all, nil
}

// decodeList accepts the documented envelope and a bare array.
func decodeList(raw []byte) (*listResponse, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var recs []Record
		if err := json.Unmarshal(trimmed, &recs); err != nil {
			return nil, fmt.Errorf("decode matches: %w", err)
		}
		return &listResponse{Matches: recs}, nil
	}

	var resp listResponse
	if err := json.Unmarshal(trimmed, &resp); err != nil {
		return nil, fmt.Errorf("decode matches: %w", err)
	}
	return &resp, nil
}

func (r *httpRepository) CreatePendingMatch(ctx context.Context, id identity.Identity, target int64) (*Record, error) {
	if err := id.Check(r.now()); err != nil {
		return nil, identityError(opCreate, id, err)
	}

	for i, shape := range createShapes {
		raw, err := r.do(ctx, opCreate, http.MethodPost, matchPath, id, shape.body(id.UserID, target))
		if err == nil {
			rec, derr := decodeRecord(raw)
			if derr != nil {
				return nil, transportError(opCreate, derr)
			}
			return rec, nil
		}

		last := i == len(createShapes)-1
		if last || !shouldFallBack(err) {
			return nil, err
		}

		shapeFallbacksTotal.Inc()
		r.logger.Warn("create rejected, retrying with next payload shape",
			zap.String("rejected_shape", shape.String()),
			zap.String("next_shape", createShapes[i+1].String()),
			zap.Int64("target", target),
			zap.Error(err),
		)
	}

	// unreachable: the loop returns on the last shape
	return nil, transportError(opCreate, errors.New("no payload shapes configured"))
}

func (r *httpRepository) ConfirmMatch(ctx context.Context, matchID ID, id identity.Identity) (*Record, error) {
	if err := id.Check(r.now()); err != nil {
		return nil, identityError(opConfirm, id, err)
	}

	raw, err := r.do(ctx, opConfirm, http.MethodPut, matchPath, id, confirmPayload{MatchID: matchID, Confirm: true})
	if err != nil {
		return nil, err
	}
	rec, err := decodeRecord(raw)
	if err != nil {
		return nil, transportError(opConfirm, err)
	}
	return rec, nil
}

// decodeRecord accepts a bare record or one wrapped in "match" or "data".
func decodeRecord(raw []byte) (*Record, error) {
	var env struct {
		Match json.RawMessage `json:"match"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err == nil {
		switch {
		case len(env.Match) > 0 && string(env.Match) != "null":
			raw = env.Match
		case len(env.Data) > 0 && string(env.Data) != "null":
			raw = env.Data
		}
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode match: %w", err)
	}
	return &rec, nil
}

// do sends one request and returns the body of a 2xx response. Every
// failure comes back as a *RequestError.
func (r *httpRepository) do(ctx context.Context, op, method, path string, id identity.Identity, body interface{}) (raw []byte, err error) {
	start := time.Now()
	defer func() { recordRequest(op, err, time.Since(start)) }()

	var reader io.Reader
	if body != nil {
		buf, merr := json.Marshal(body)
		if merr != nil {
			return nil, transportError(op, fmt.Errorf("encode body: %w", merr))
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return nil, transportError(op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+id.BearerToken)
	req.Header.Set("accesstoken", id.BearerToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, transportError(op, err)
	}
	defer resp.Body.Close()

	if err := ClassifyResponse(op, resp); err != nil {
		return nil, err
	}

	raw, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(op, fmt.Errorf("read body: %w", err))
	}
	return raw, nil
}
