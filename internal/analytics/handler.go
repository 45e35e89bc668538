package analytics

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

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	id, _ := identity.From(r.Context())
	sum, err := h.svc.GetSummary(r.Context(), id.UserID)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.OK(w, sum)
}
