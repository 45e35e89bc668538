package auth

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-orangelink-go/internal/auth/identity"
	userentity "github.com/ovaphlow/pitchfork/service-orangelink-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/response"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/validation"
)

// Handler exposes HTTP endpoints for the session lifecycle.
type Handler struct {
	sessions *SessionManager
	logger   *zap.SugaredLogger
}

func NewHandler(sessions *SessionManager, logger *zap.SugaredLogger) *Handler {
	return &Handler{sessions: sessions, logger: logger}
}

type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Username    string `json:"username" validate:"required,min=3,max=30,handle"`
	Password    string `json:"password" validate:"required,min=8,max=72,password"`
	DisplayName string `json:"display_name" validate:"omitempty,max=50"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, h.logger, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if err := validation.Struct(req); err != nil {
		response.Error(w, h.logger, err)
		return
	}
	res, err := h.sessions.Register(r.Context(), userentity.NewUser{
		Email:       req.Email,
		Username:    req.Username,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		h.logger.Debugw("register failed", "username", req.Username, "err", err)
		response.Error(w, h.logger, err)
		return
	}
	response.Created(w, res)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, h.logger, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := validation.Struct(req); err != nil {
		response.Error(w, h.logger, err)
		return
	}
	res, err := h.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Debugw("login failed", "err", err)
		response.Error(w, h.logger, err)
		return
	}
	response.OK(w, res)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, h.logger, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		response.Error(w, h.logger, err)
		return
	}
	pair, err := h.sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.OK(w, pair)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	id, _ := identity.From(r.Context())
	var req LogoutRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, h.logger, err)
		return
	}
	if err := h.sessions.Logout(r.Context(), id.UserID, strings.TrimSpace(req.RefreshToken)); err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.NoContent(w)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, _ := identity.From(r.Context())
	response.OK(w, id)
}

// Deactivate closes the caller's account and ends all of its sessions.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, _ := identity.From(r.Context())
	if err := h.sessions.Deactivate(r.Context(), id.UserID); err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.NoContent(w)
}
