// internal/adapters/http_server/handlers.go
package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"reviewsync/internal/app"
	"reviewsync/internal/domain"
)

const maxReviewPage = 200

type Handlers struct {
	Q   *app.QueryService
	Log zerolog.Logger
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/v1/businesses/{placeID}", h.getBusiness)
	s.mux.Get("/v1/businesses/{placeID}/reviews", h.listReviews)
}

func (h *Handlers) writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		h.Log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// lookupFailed maps a read error to 404 or 500.
func (h *Handlers) lookupFailed(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, domain.ErrNotFound) {
		h.writeProblem(w, http.StatusNotFound, "Not Found", what+" not found")
		return
	}
	h.Log.Error().Err(err).Str("what", what).Msg("read failed")
	h.writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return "", nil, err
	}
	sum := sha1.Sum(body)
	return `W/"` + hex.EncodeToString(sum[:]) + `"`, body, nil
}

func (h *Handlers) writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	etag, body, err := calcETagAndBody(v)
	if err != nil {
		h.Log.Error().Err(err).Msg("marshal response failed")
		h.writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.Log.Error().Err(err).Msg("write body failed")
	}
}

func (h *Handlers) getBusiness(w http.ResponseWriter, r *http.Request) {
	placeID := strings.TrimSpace(chi.URLParam(r, "placeID"))
	if placeID == "" {
		h.writeProblem(w, http.StatusBadRequest, "Invalid place id", "place id is required")
		return
	}
	resp, err := h.Q.GetBusiness(r.Context(), placeID)
	if err != nil {
		h.lookupFailed(w, err, "business")
		return
	}
	h.writeJSON(w, r, resp)
}

func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	placeID := strings.TrimSpace(chi.URLParam(r, "placeID"))
	if placeID == "" {
		h.writeProblem(w, http.StatusBadRequest, "Invalid place id", "place id is required")
		return
	}

	limit := app.DefaultReviewPage
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > maxReviewPage {
			h.writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 200")
			return
		}
		limit = l
	}

	out, err := h.Q.ListReviews(r.Context(), placeID, limit)
	if err != nil {
		h.lookupFailed(w, err, "reviews")
		return
	}
	h.writeJSON(w, r, out)
}
