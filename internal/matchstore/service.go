// internal/matchstore/service.go

package matchstore

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/turumi/turumi-match/internal/common/utils"
)

const defaultPageSize = 50

// Notifier pushes realtime events to connected users.
type Notifier interface {
	NotifyLike(target int64, m *Match)
	NotifyMatch(a, b int64, m *Match)
}

type nopNotifier struct{}

func (nopNotifier) NotifyLike(int64, *Match)         {}
func (nopNotifier) NotifyMatch(int64, int64, *Match) {}

// Service applies the match rules on top of a Store.
type Service struct {
	store    Store
	users    UserStore
	notifier Notifier
	logger   *zap.Logger
	pageSize int
}

func NewService(store Store, users UserStore, notifier Notifier, pageSize int, logger *zap.Logger) *Service {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Service{
		store:    store,
		users:    users,
		notifier: notifier,
		logger:   logger,
		pageSize: pageSize,
	}
}

// SetNotifier replaces the notifier; used when the hub is built after the
// service.
func (s *Service) SetNotifier(n Notifier) {
	if n == nil {
		n = nopNotifier{}
	}
	s.notifier = n
}

// List returns one page of records involving userID. A limit outside
// 1..pageSize falls back to pageSize.
func (s *Service) List(ctx context.Context, userID int64, cursor string, limit int) (*Page, error) {
	if limit <= 0 || limit > s.pageSize {
		limit = s.pageSize
	}
	return s.store.List(ctx, userID, cursor, limit)
}

// Like records "actor likes target" as a Pending record.
func (s *Service) Like(ctx context.Context, actor, target int64) (m *Match, err error) {
	defer func() { recordWrite("create", err) }()

	if target == actor {
		return nil, &utils.FieldError{Field: "targetUserId", Message: "targetUserId must differ from the current user"}
	}
	exists, err := s.store.UserExists(ctx, target)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &utils.FieldError{Field: "targetUserId", Message: "targetUserId does not match any user"}
	}

	m, err = s.store.Create(ctx, actor, target)
	if err != nil {
		return nil, err
	}

	s.logger.Info("pending match created",
		zap.String("match_id", m.ID),
		zap.Int64("from_user", actor),
		zap.Int64("to_user", target),
	)
	s.notifier.NotifyLike(target, m)
	return m, nil
}

// Confirm turns a Pending record addressed to userID into Matched.
func (s *Service) Confirm(ctx context.Context, userID int64, id string) (m *Match, err error) {
	defer func() { recordWrite("confirm", err) }()

	m, err = s.store.Confirm(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("match confirmed",
		zap.String("match_id", m.ID),
		zap.Int64("from_user", m.FromUser),
		zap.Int64("to_user", m.ToUser),
	)
	s.notifier.NotifyMatch(m.FromUser, m.ToUser, m)
	return m, nil
}

// CanChat reports whether a and b may message each other.
func (s *Service) CanChat(ctx context.Context, a, b int64) (bool, error) {
	if a == b {
		return false, nil
	}
	return s.store.IsMatched(ctx, a, b)
}

func (s *Service) Recommendations(ctx context.Context, userID int64) ([]User, error) {
	return s.users.Recommendations(ctx, userID, s.pageSize)
}

func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.users.GetUser(ctx, id)
}

// UpdateProfile changes the caller's own profile fields.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, req *UpdateProfileRequest) (*User, error) {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.Name != "" {
		u.Name = req.Name
	}
	if req.Age != 0 {
		u.Age = req.Age
	}
	if req.Gender != "" {
		u.Gender = req.Gender
	}
	if req.PhoneNumber != "" {
		u.PhoneNumber = req.PhoneNumber
	}
	if req.Images != nil {
		u.Images = req.Images
	}
	if err := s.users.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// isClientError reports errors caused by the request rather than the store.
func isClientError(err error) bool {
	var fe *utils.FieldError
	return errors.As(err, &fe) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrBadCursor)
}

// CreateHousing lists a room for ownerID. Only accounts registered as
// user_w_housing may list one.
func (s *Service) CreateHousing(ctx context.Context, ownerID int64, req *CreateHousingRequest) (*Housing, error) {
	u, err := s.users.GetUser(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if u.UserType != UserWithHousing {
		return nil, ErrNoHousing
	}

	rooms := req.AvailableRoom
	if rooms == 0 {
		rooms = 1
	}
	h := &Housing{
		OwnerID:        ownerID,
		Address:        req.Address,
		RegionID:       req.RegionID,
		ComunaID:       req.ComunaID,
		Rent:           req.Rent,
		Size:           req.Size,
		AvailableRoom:  rooms,
		PetsAllowed:    req.PetsAllowed,
		SmokingAllowed: req.SmokingAllowed,
	}
	if err := s.users.CreateHousing(ctx, h); err != nil {
		return nil, err
	}

	s.logger.Info("housing listed", zap.Int64("owner_id", ownerID), zap.Int64("housing_id", h.ID))
	return h, nil
}

func (s *Service) GetHousing(ctx context.Context, id int64) (*Housing, error) {
	return s.users.GetHousing(ctx, id)
}

func (s *Service) ListHousing(ctx context.Context, ownerID int64) ([]Housing, error) {
	return s.users.ListHousing(ctx, ownerID)
}
