// internal/adapters/http_server/handlers.go
package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"property_reviews/internal/app"
	"property_reviews/internal/domain"
)

const maxBodyBytes = 64 << 10

type Moderator interface {
	Submit(ctx context.Context, sub domain.Submission) (app.SubmitResult, error)
	Publish(ctx context.Context, reviewID string) (domain.PropertyTop5, error)
}

type Top5Reader interface {
	GetTop5(ctx context.Context, propertyID string) (domain.PropertyTop5, error)
}

type Handlers struct {
	M Moderator
	Q Top5Reader
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type submitResponse struct {
	Message string        `json:"message,omitempty"`
	Status  domain.Status `json:"status"`
	Review  domain.Review `json:"review"`
}

type publishResponse struct {
	PropertyID  string                  `json:"property_id"`
	Top5Reviews []domain.ReviewSnapshot `json:"top_5_reviews"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Post("/api/reviews", h.submitReview)
	s.mux.Post("/api/reviews/{id}/publish", h.publishReview)
	s.mux.Get("/api/properties/{id}/top5", h.getTop5)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps the domain taxonomy onto HTTP. Validation is checked
// first: an unknown property on submit is both a validation and a
// not-found error and is answered with 400.
func writeError(w http.ResponseWriter, r *http.Request, err error, notFoundDetail string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeProblem(w, http.StatusBadRequest, "Invalid Input", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", notFoundDetail)
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "the request was rolled back; retry later")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal response")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func (h *Handlers) submitReview(w http.ResponseWriter, r *http.Request) {
	var sub domain.Submission
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&sub); err != nil {
		detail := "body must be a JSON review object"
		if errors.Is(err, io.EOF) {
			detail = "request body is empty"
		}
		writeProblem(w, http.StatusBadRequest, "Invalid Input", detail)
		return
	}

	res, err := h.M.Submit(r.Context(), sub)
	if err != nil {
		writeError(w, r, err, "property not found")
		return
	}

	if res.Status == domain.StatusPending {
		writeJSON(w, http.StatusOK, submitResponse{Message: "held for moderation", Status: res.Status, Review: res.Review})
		return
	}
	writeJSON(w, http.StatusCreated, submitResponse{Status: res.Status, Review: res.Review})
}

func (h *Handlers) publishReview(w http.ResponseWriter, r *http.Request) {
	out, err := h.M.Publish(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err, "review not found")
		return
	}
	writeJSON(w, http.StatusOK, publishResponse{PropertyID: out.PropertyID, Top5Reviews: out.Top5Reviews})
}

func (h *Handlers) getTop5(w http.ResponseWriter, r *http.Request) {
	out, err := h.Q.GetTop5(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err, "property not found")
		return
	}

	etag, body := calcETagAndBody(out)
	// If client already has this version, short-circuit.
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag) // include ETag on 304
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write getTop5 body")
	}
}
