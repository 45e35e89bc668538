package assist

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-orangelink-go/internal/auth/identity"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/response"
)

type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Bio(w http.ResponseWriter, r *http.Request) {
	id, _ := identity.From(r.Context())
	s, err := h.svc.SuggestBio(r.Context(), id.UserID)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.OK(w, s)
}

func (h *Handler) LinkTitle(w http.ResponseWriter, r *http.Request) {
	id, _ := identity.From(r.Context())
	s, err := h.svc.OptimizeLinkTitle(r.Context(), id.UserID, r.PathValue("id"))
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.OK(w, s)
}
