package meetings

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/niveshya/leadops/internal/platform/httpx"
	"github.com/niveshya/leadops/internal/rbac"
	"github.com/niveshya/leadops/internal/shared"
)

// multipartOverhead allows for boundaries and part headers around the audio bytes.
const multipartOverhead = 1 << 20

// Handler exposes meeting audio upload and download.
type Handler struct {
	logger  *slog.Logger
	service *AudioService
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *AudioService, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers meeting routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireAny(shared.PermCreateMeetings, shared.PermEditMeetings)).Post("/{id}/audio", h.uploadAudio)
	r.With(h.rbac.RequireAny(shared.PermViewMeetings)).Get("/{id}/audio", h.downloadAudio)
}

func (h *Handler) uploadAudio(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.service.maxBytes+multipartOverhead)
	mr, err := r.MultipartReader()
	if err != nil {
		httpx.RespondError(w, errors.Join(shared.ErrValidation, err))
		return
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			httpx.RespondError(w, shared.NewFieldError(shared.ErrValidation, AudioFormField, ""))
			return
		}
		if err != nil {
			httpx.RespondError(w, errors.Join(shared.ErrValidation, err))
			return
		}
		if part.FormName() != AudioFormField {
			_ = part.Close()
			continue
		}
		principal, _ := shared.PrincipalFromContext(r.Context())
		result, err := h.service.StoreAudio(r.Context(), principal, chi.URLParam(r, "id"), AudioUpload{
			Filename:    part.FileName(),
			ContentType: part.Header.Get("Content-Type"),
			Body:        part,
		})
		_ = part.Close()
		if err != nil {
			h.fail(w, "upload audio", err)
			return
		}
		httpx.JSON(w, http.StatusOK, result)
		return
	}
}

func (h *Handler) downloadAudio(w http.ResponseWriter, r *http.Request) {
	rec, f, err := h.service.OpenAudio(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "download audio", err)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", rec.MIMEType)
	name := rec.OriginalFilename
	if name == "" {
		name = rec.Filename
	}
	http.ServeContent(w, r, name, rec.UploadedAt, f)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if status, _ := httpx.StatusFor(err); status >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
