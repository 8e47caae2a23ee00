// internal/match/payload.go
// Request bodies for the /match endpoint.
//
// The create endpoint has accepted different body shapes over time. The shapes
// are a closed list tried in order; the second one is only sent when the
// first is rejected with a validation error about the target user. Drop the
// fallback once the backend settles on one shape.

package match

type createShape int

const (
	shapeDirectional createShape = iota
	shapeTargetOnly
)

// createShapes is the declared try order.
var createShapes = []createShape{shapeDirectional, shapeTargetOnly}

func (s createShape) String() string {
	switch s {
	case shapeDirectional:
		return "directional"
	case shapeTargetOnly:
		return "target_only"
	default:
		return "unknown"
	}
}

type directionalPayload struct {
	FromUser     int64 `json:"fromUser"`
	ToUser       int64 `json:"toUser"`
	TargetUserID int64 `json:"targetUserId"`
}

type targetOnlyPayload struct {
	Target int64 `json:"target"`
}

func (s createShape) body(actor, target int64) interface{} {
	if s == shapeTargetOnly {
		return targetOnlyPayload{Target: target}
	}
	return directionalPayload{FromUser: actor, ToUser: target, TargetUserID: target}
}

type confirmPayload struct {
	MatchID ID   `json:"matchId"`
	Confirm bool `json:"confirm"`
}

// shouldFallBack reports whether a failed create may be retried with the
// next shape.
func shouldFallBack(err error) bool {
	re, ok := AsRequestError(err)
	return ok && re.MentionsTarget()
}
