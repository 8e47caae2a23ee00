// internal/matchstore/handlers.go

package matchstore

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/turumi/turumi-match/internal/auth"
	"github.com/turumi/turumi-match/internal/common/utils"
)

const refreshCookie = "refreshToken"

type Handler struct {
	service  *Service
	accounts *Accounts
	logger   *zap.Logger
	// strict rejects the directional create shape.
	strict bool
}

func NewHandler(service *Service, accounts *Accounts, strict bool, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, accounts: accounts, strict: strict, logger: logger}
}

func (h *Handler) ListMatches(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserIDFromContext(r.Context())

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		l, err := strconv.Atoi(raw)
		if err != nil || l < 1 {
			utils.RespondWithErrorCode(w, http.StatusBadRequest, "INVALID_LIMIT", "limit", "limit must be a positive integer")
			return
		}
		limit = l
	}

	page, err := h.service.List(r.Context(), userID, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, page)
}

func (h *Handler) CreateMatch(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserIDFromContext(r.Context())

	var req CreateMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	target, err := h.resolveTarget(userID, &req)
	if err != nil {
		h.respondError(w, err)
		return
	}

	m, err := h.service.Like(r.Context(), userID, target)
	if err != nil {
		h.respondError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, m)
}

// resolveTarget validates the create body according to the payload mode.
func (h *Handler) resolveTarget(userID int64, req *CreateMatchRequest) (int64, error) {
	if h.strict {
		in := targetOnlyInput{}
		if req.Target != nil {
			in.Target = *req.Target
		}
		if err := utils.ValidateStruct(in); err != nil {
			return 0, err
		}
		return in.Target, nil
	}

	if req.FromUser != nil && *req.FromUser != userID {
		return 0, &utils.FieldError{Field: "fromUser", Message: "fromUser must be the current user"}
	}
	if !req.directional() && req.Target == nil {
		return 0, &utils.FieldError{Field: "targetUserId", Message: "targetUserId is required"}
	}

	in := likeInput{TargetUserID: req.target()}
	if err := utils.ValidateStruct(in); err != nil {
		return 0, err
	}
	return in.TargetUserID, nil
}

func (h *Handler) ConfirmMatch(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserIDFromContext(r.Context())

	var req ConfirmMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	id, err := req.id()
	if err != nil {
		utils.RespondWithErrorCode(w, http.StatusBadRequest, "VALIDATION_ERROR", "matchId", err.Error())
		return
	}

	in := confirmInput{MatchID: id, Confirm: req.Confirm != nil && *req.Confirm}
	if err := utils.ValidateStruct(in); err != nil {
		h.respondError(w, err)
		return
	}

	m, err := h.service.Confirm(r.Context(), userID, in.MatchID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, m)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, err)
		return
	}

	u, err := h.accounts.Register(r.Context(), &req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, map[string]interface{}{"user": u})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, err)
		return
	}

	resp, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    resp.Tokens.RefreshToken,
		Path:     "/auth",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	utils.RespondWithJSON(w, http.StatusOK, resp)
}

// Refresh reads the refresh token from the cookie or the bearer header.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := auth.ExtractToken(r)
	if c, err := r.Cookie(refreshCookie); err == nil && c.Value != "" {
		token = c.Value
	}
	if token == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Missing refresh token")
		return
	}

	tokens, err := h.accounts.Refresh(r.Context(), token)
	if err != nil {
		h.respondError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"tokens": tokens})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.Logout(r.Context(), auth.ExtractToken(r)); err != nil {
		h.respondError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: refreshCookie, Value: "", Path: "/auth", MaxAge: -1})
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserIDFromContext(r.Context())

	users, err := h.service.Recommendations(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	public := make([]PublicUser, 0, len(users))
	for i := range users {
		public = append(public, users[i].Public())
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"recommendations": public})
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	u, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if callerID, _ := auth.GetUserIDFromContext(r.Context()); callerID != u.ID {
		utils.RespondWithJSON(w, http.StatusOK, u.Public())
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, u)
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserIDFromContext(r.Context())

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}
	if id != userID {
		utils.RespondWithError(w, http.StatusForbidden, "Cannot edit another user's profile")
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, err)
		return
	}

	u, err := h.service.UpdateProfile(r.Context(), userID, &req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, u)
}

func (h *Handler) CreateHousing(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserIDFromContext(r.Context())

	var req CreateHousingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.respondError(w, err)
		return
	}

	housing, err := h.service.CreateHousing(r.Context(), userID, &req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, map[string]interface{}{"housing": housing})
}

func (h *Handler) GetHousing(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid housing ID")
		return
	}

	housing, err := h.service.GetHousing(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"housing": housing})
}

// ListHousing returns the listings of ?user=, or of the caller.
func (h *Handler) ListHousing(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := auth.GetUserIDFromContext(r.Context())
	if raw := r.URL.Query().Get("user"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 1 {
			utils.RespondWithErrorCode(w, http.StatusBadRequest, "VALIDATION_ERROR", "user", "user must be a positive integer")
			return
		}
		ownerID = id
	}

	list, err := h.service.ListHousing(r.Context(), ownerID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"housing": list})
}

// respondError maps service errors onto the status codes clients classify.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var fe *utils.FieldError
	switch {
	case errors.As(err, &fe):
		utils.RespondWithErrorCode(w, http.StatusBadRequest, "VALIDATION_ERROR", fe.Field, fe.Message)
	case errors.Is(err, ErrBadCursor):
		utils.RespondWithErrorCode(w, http.StatusBadRequest, "VALIDATION_ERROR", "cursor", err.Error())
	case errors.Is(err, ErrTokenExpired):
		utils.RespondWithErrorCode(w, http.StatusUnauthorized, auth.CodeTokenExpired, "", "Access token expired")
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidToken):
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrNoHousing):
		utils.RespondWithError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUserNotFound), errors.Is(err, ErrHousingNotFound):
		utils.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrConflict), errors.Is(err, ErrEmailTaken):
		utils.RespondWithError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("request failed", zap.Error(err))
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}
