// internal/match/errors.go

package match

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/turumi/turumi-match/internal/identity"
)

var (
	ErrAuth        = errors.New("authentication required")
	ErrTransport   = errors.New("remote API unavailable")
	ErrValidation  = errors.New("request rejected by remote API")
	ErrNotFound    = errors.New("match not found")
	ErrConflict    = errors.New("match already confirmed")
	ErrInvalidLike = errors.New("invalid like")
)

// codeTokenExpired is sent by the API with a 401 when the access token lapsed.
const codeTokenExpired = "ACCESS_TOKEN_EXPIRED"

// RequestError is a classified failure of a remote call. Kind is one of the
// package sentinels, so errors.Is(err, ErrValidation) works through it.
type RequestError struct {
	Kind       error
	Op         string
	StatusCode int
	Code       string
	Field      string
	Message    string
	Err        error
}

func (e *RequestError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *RequestError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// MentionsTarget reports whether a validation failure concerns the target
// user field of a create request.
func (e *RequestError) MentionsTarget() bool {
	if !errors.Is(e.Kind, ErrValidation) {
		return false
	}
	for _, s := range []string{e.Field, e.Code, e.Message} {
		if strings.Contains(strings.ToLower(s), "target") {
			return true
		}
	}
	return false
}

// AsRequestError unwraps err to a *RequestError.
func AsRequestError(err error) (*RequestError, bool) {
	var re *RequestError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

func authError(op string, err error) error {
	return &RequestError{Kind: ErrAuth, Op: op, Err: err}
}

func transportError(op string, err error) error {
	return &RequestError{Kind: ErrTransport, Op: op, Err: err}
}

// identityError maps a failed identity check to ErrAuth.
func identityError(op string, id identity.Identity, err error) error {
	if errors.Is(err, identity.ErrNoSession) || errors.Is(err, identity.ErrSessionExpired) {
		return authError(op, err)
	}
	return authError(op, fmt.Errorf("identity for user %d: %w", id.UserID, err))
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Field   string `json:"field"`
}

// ClassifyResponse returns nil for 2xx responses and a *RequestError
// otherwise. It consumes the body of non-2xx responses.
func ClassifyResponse(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body errorBody
	_ = json.Unmarshal(raw, &body)

	msg := body.Message
	if msg == "" {
		msg = body.Error
	}
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}

	re := &RequestError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Code:       body.Code,
		Field:      body.Field,
		Message:    msg,
	}

	switch {
	case body.Code == codeTokenExpired,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden:
		re.Kind = ErrAuth
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnprocessableEntity:
		re.Kind = ErrValidation
	case resp.StatusCode == http.StatusNotFound:
		re.Kind = ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		re.Kind = ErrConflict
	default:
		re.Kind = ErrTransport
	}
	return re
}

// kindLabel is the metric label for an error.
func kindLabel(err error) string {
	switch {
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidLike):
		return "invalid_like"
	case errors.Is(err, ErrTransport), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "transport"
	default:
		return "other"
	}
}

// UserMessage is the text shown to the user for a reconciliation result.
// Every error kind maps to the same retry prompt.
func UserMessage(outcome *Outcome, err error) string {
	if err != nil {
		return "Something went wrong. Please try again."
	}
	if outcome == nil {
		return ""
	}
	switch outcome.Kind {
	case Matched:
		return "It's a match!"
	case PendingCreated:
		return "Like sent."
	case AlreadyExists:
		if outcome.Record.Status == StatusMatched {
			return "You are already matched with this person."
		}
		return "You already liked this person."
	default:
		return ""
	}
}
