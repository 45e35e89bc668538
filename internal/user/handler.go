package user

import (
	"context"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-orangelink-go/internal/auth/identity"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/apperr"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/request"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/response"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/validation"
)

// ViewRecorder records a profile view. It never fails the caller.
type ViewRecorder interface {
	RecordProfileView(ctx context.Context, username string, meta request.Meta)
}

// Handler exposes profile endpoints.
type Handler struct {
	svc    *UserService
	views  ViewRecorder
	logger *zap.SugaredLogger
}

func NewHandler(svc *UserService, views ViewRecorder, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, views: views, logger: logger}
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, _ := identity.From(r.Context())
	u, err := h.svc.GetMyProfile(r.Context(), id.UserID)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.OK(w, u)
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	id, _ := identity.From(r.Context())
	var patch entity.ProfilePatch
	if err := response.Decode(r, &patch); err != nil {
		response.Error(w, h.logger, err)
		return
	}
	u, err := h.svc.UpdateProfile(r.Context(), id.UserID, patch)
	if err != nil {
		h.logger.Debugw("profile update rejected", "user_id", id.UserID, "err", err)
		response.Error(w, h.logger, err)
		return
	}
	response.OK(w, u)
}

func (h *Handler) CheckUsername(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	var c validation.Collector
	c.Var("username", username, "min=3,max=30,handle")
	if c.Err() != nil {
		response.OK(w, map[string]any{"available": false, "username": username})
		return
	}
	ok, err := h.svc.CheckUsernameAvailable(r.Context(), username)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.OK(w, map[string]any{"available": ok, "username": username})
}

// PublicProfile serves an active user's page. The view is recorded alongside
// the read; its outcome never changes the response.
func (h *Handler) PublicProfile(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	meta := request.MetaFrom(r)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.views.RecordProfileView(context.WithoutCancel(r.Context()), username, meta)
	}()

	p, err := h.svc.GetPublicProfile(r.Context(), username)
	wg.Wait()
	if err != nil {
		if !apperr.Is(err, apperr.NotFound) {
			h.logger.Warnw("public profile read failed", "username", username, "err", err)
		}
		response.Error(w, h.logger, err)
		return
	}
	response.OK(w, p)
}
