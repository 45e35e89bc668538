package link

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-orangelink-go/internal/auth/identity"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/internal/link/entity"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/request"
	"github.com/ovaphlow/pitchfork/service-orangelink-go/pkg/response"
)

// Handler exposes owner and public link endpoints.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	id, _ := identity.From(r.Context())
	links, err := h.svc.List(r.Context(), id.UserID)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.OK(w, links)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	id, _ := identity.From(r.Context())
	var in entity.NewLink
	if err := response.Decode(r, &in); err != nil {
		response.Error(w, h.logger, err)
		return
	}
	l, err := h.svc.Create(r.Context(), id.UserID, in)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.Created(w, l)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, _ := identity.From(r.Context())
	var p entity.Patch
	if err := response.Decode(r, &p); err != nil {
		response.Error(w, h.logger, err)
		return
	}
	l, err := h.svc.Update(r.Context(), r.PathValue("id"), id.UserID, p)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.OK(w, l)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, _ := identity.From(r.Context())
	if err := h.svc.Delete(r.Context(), r.PathValue("id"), id.UserID); err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.NoContent(w)
}

func (h *Handler) Reorder(w http.ResponseWriter, r *http.Request) {
	id, _ := identity.From(r.Context())
	var req entity.ReorderRequest
	if err := response.Decode(r, &req); err != nil {
		response.Error(w, h.logger, err)
		return
	}
	if err := h.svc.Reorder(r.Context(), id.UserID, req.Links); err != nil {
		response.Error(w, h.logger, err)
		return
	}
	links, err := h.svc.List(r.Context(), id.UserID)
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.OK(w, links)
}

func (h *Handler) PublicLinks(w http.ResponseWriter, r *http.Request) {
	links, err := h.svc.ListPublic(r.Context(), r.PathValue("username"))
	if err != nil {
		response.Error(w, h.logger, err)
		return
	}
	out := make([]entity.PublicLink, 0, len(links))
	for _, l := range links {
		out = append(out, l.Public())
	}
	response.OK(w, out)
}

// Click records an anonymous click. Unknown links answer the same as known ones.
func (h *Handler) Click(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RecordClick(r.Context(), r.PathValue("id"), request.MetaFrom(r)); err != nil {
		response.Error(w, h.logger, err)
		return
	}
	response.NoContent(w)
}
