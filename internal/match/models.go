// internal/match/models.go

package match

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ID is the store-assigned match identifier. The backend has sent it both as
// a number and as a string, so decoding accepts either.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("match id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Status of a match record.
type Status string

const (
	StatusPending Status = "Pending"
	StatusMatched Status = "Matched"
)

func (s *Status) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("match status: %w", err)
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStatus accepts any casing of pending/matched.
func ParseStatus(raw string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending":
		return StatusPending, nil
	case "matched":
		return StatusMatched, nil
	default:
		return "", fmt.Errorf("unknown match status %q", raw)
	}
}

// Record is one directional match record owned by the remote store.
type Record struct {
	ID       ID     `json:"id"`
	FromUser int64  `json:"fromUser"`
	ToUser   int64  `json:"toUser"`
	Status   Status `json:"status"`
}

// Between reports whether the record links a and b in either direction.
func (r Record) Between(a, b int64) bool {
	return (r.FromUser == a && r.ToUser == b) || (r.FromUser == b && r.ToUser == a)
}

// Involves reports whether userID is on either side of the record.
func (r Record) Involves(userID int64) bool {
	return r.FromUser == userID || r.ToUser == userID
}

// Counterpart returns the other side of the record for userID.
func (r Record) Counterpart(userID int64) int64 {
	if r.FromUser == userID {
		return r.ToUser
	}
	return r.FromUser
}

// flexInt decodes user ids sent as numbers or numeric strings.
type flexInt struct {
	set bool
	v   int64
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	}
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return fmt.Errorf("user id: %w", err)
	}
	f.set, f.v = true, v
	return nil
}

// wireRecord lists every field alias observed from the backend.
type wireRecord struct {
	ID        ID      `json:"id"`
	IDMatch   ID      `json:"id_match"`
	MatchID   ID      `json:"matchId"`
	FromUser  flexInt `json:"fromUser"`
	FromSnake flexInt `json:"from_user"`
	FromLong  flexInt `json:"id_user_from"`
	ToUser    flexInt `json:"toUser"`
	ToSnake   flexInt `json:"to_user"`
	ToLong    flexInt `json:"id_user_to"`
	Status    *Status `json:"status"`
}

func firstID(ids ...ID) ID {
	for _, id := range ids {
		if id != "" {
			return id
		}
	}
	return ""
}

func firstInt(vals ...flexInt) (int64, bool) {
	for _, v := range vals {
		if v.set {
			return v.v, true
		}
	}
	return 0, false
}

func (r *Record) UnmarshalJSON(b []byte) error {
	var w wireRecord
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}

	id := firstID(w.ID, w.IDMatch, w.MatchID)
	if id == "" {
		return fmt.Errorf("match record without id")
	}
	from, ok := firstInt(w.FromUser, w.FromSnake, w.FromLong)
	if !ok {
		return fmt.Errorf("match record %s without fromUser", id)
	}
	to, ok := firstInt(w.ToUser, w.ToSnake, w.ToLong)
	if !ok {
		return fmt.Errorf("match record %s without toUser", id)
	}
	if w.Status == nil {
		return fmt.Errorf("match record %s without status", id)
	}

	*r = Record{ID: id, FromUser: from, ToUser: to, Status: *w.Status}
	return nil
}

// LikeEvent is a single "actor likes target" interaction.
type LikeEvent struct {
	Actor  int64
	Target int64
}

// OutcomeKind is the terminal state of a reconciliation.
type OutcomeKind int

const (
	Matched OutcomeKind = iota + 1
	PendingCreated
	AlreadyExists
)

func (k OutcomeKind) String() string {
	switch k {
	case Matched:
		return "matched"
	case PendingCreated:
		return "pending_created"
	case AlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

// Outcome is returned by the reconciler for a like event.
type Outcome struct {
	Kind   OutcomeKind
	Record Record
}
