// Package handler is the thin HTTP layer over the register service. Handlers
// delegate to the service and translate coded domain errors; business logic
// never lives here.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"profreg/internal/register/models"
	"profreg/internal/register/service"
	dErrors "profreg/pkg/domain-errors"
)

// editorHeader carries the acting editor's identifier, set by the identity
// proxy in front of this service.
const editorHeader = "X-Editor"

type Handler struct {
	service *service.Service
	logger  *slog.Logger
}

func New(svc *service.Service, logger *slog.Logger) *Handler {
	return &Handler{service: svc, logger: logger}
}

func (h *Handler) CreateEntity(w http.ResponseWriter, r *http.Request) {
	var req CreateEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid JSON body"))
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		writeError(w, err)
		return
	}
	kind, err := models.ParseKind(req.Kind)
	if err != nil {
		writeError(w, err)
		return
	}

	entity, version, err := h.service.CreateEntity(r.Context(), service.CreateEntityInput{
		Kind:           kind,
		Name:           req.Name,
		Summary:        req.Summary,
		Qualifications: req.Qualifications,
		Legislation:    req.Legislation,
		CreatedBy:      r.Header.Get(editorHeader),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"entity":  entity,
		"version": version,
	})
}

func (h *Handler) DeriveDraft(w http.ResponseWriter, r *http.Request) {
	entityID, ok := pathUUID(w, r, "entityID")
	if !ok {
		return
	}
	version, err := h.service.DeriveDraft(r.Context(), entityID, r.Header.Get(editorHeader))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, version)
}

func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	entityID, ok := pathUUID(w, r, "entityID")
	if !ok {
		return
	}
	versions, err := h.service.ListVersions(r.Context(), entityID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Confirm)
}

func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Publish)
}

func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Archive)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id uuid.UUID) (*models.Version, error)) {
	versionID, ok := pathUUID(w, r, "versionID")
	if !ok {
		return
	}
	version, err := op(r.Context(), versionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, version)
}

func (h *Handler) Rename(w http.ResponseWriter, r *http.Request) {
	kind, err := models.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, err)
		return
	}
	newSlug, err := h.service.Rename(r.Context(), kind, req.OldName, req.NewName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"slug": newSlug})
}

// PublicRecord serves the live version of a record by kind and slug.
func (h *Handler) PublicRecord(w http.ResponseWriter, r *http.Request) {
	kind, err := models.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, err)
		return
	}
	entity, live, err := h.service.GetLiveBySlug(r.Context(), kind, chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entity":  entity,
		"version": live,
	})
}

func pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, param+" must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError centralizes domain error translation to HTTP responses so every
// handler produces the same JSON error envelope.
func writeError(w http.ResponseWriter, err error) {
	var de *dErrors.Error
	status := http.StatusInternalServerError
	code := string(dErrors.CodeInternal)
	message := "internal error"
	if errors.As(err, &de) {
		status = dErrors.ToHTTPStatus(de.Code)
		code = string(de.Code)
		message = de.Message
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             code,
		"error_description": message,
	})
}
