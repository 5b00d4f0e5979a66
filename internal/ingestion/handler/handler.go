// Package handler serves the indexer's HTTP API: docset publish requests
// and job status.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
)

// maxBodyBytes bounds publish request bodies.
const maxBodyBytes = 64 << 10

type Handler struct {
	publisher *publisher.Publisher
	logger    *slog.Logger
}

func New(pub *publisher.Publisher) *Handler {
	return &Handler{
		publisher: pub,
		logger:    slog.Default().With("component", "ingestion-handler"),
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/docsets", h.Publish)
	mux.HandleFunc("GET /api/v1/jobs/{id}", h.Job)
}

// Publish serves POST /api/v1/docsets.
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req ingestion.PublishRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validator.ValidatePublishRequest(&req); err != nil {
		var verr *validator.ValidationError
		if errors.As(err, &verr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": verr.Fields,
			})
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.publisher.Submit(ctx, &req)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		log.Error("docset publish failed",
			"docset", req.Docset,
			"version", req.Version,
			"error", err,
			"status_code", status,
		)
		h.writeError(w, status, "docset publish failed")
		return
	}
	log.Info("docset accepted",
		"job_id", resp.JobID,
		"docset", resp.Docset,
		"version", resp.Version,
	)
	h.writeJSON(w, http.StatusAccepted, resp)
}

// Job serves GET /api/v1/jobs/{id}.
func (h *Handler) Job(w http.ResponseWriter, r *http.Request) {
	job, err := h.publisher.Job(r.Context(), r.PathValue("id"))
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		msg := err.Error()
		if status == http.StatusInternalServerError {
			h.logger.Error("job lookup failed", "error", err)
			msg = "internal error"
		}
		h.writeError(w, status, msg)
		return
	}
	h.writeJSON(w, http.StatusOK, job)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
