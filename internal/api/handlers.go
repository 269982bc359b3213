package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"craftlab.io/title-forge/internal/core"
	"craftlab.io/title-forge/internal/ratelimit"
	"craftlab.io/title-forge/internal/store"
)

const (
	maxTopicLength    = 200
	maxTitleLength    = 200
	maxCategoryLength = 50

	defaultGenerationCount = 5
	minGenerationCount     = 1
	maxGenerationCount     = 10
)

// TitleGenerator is what the handlers need from the generation service.
type TitleGenerator interface {
	Generate(ctx context.Context, topic string, count int, excludeTitles []string) ([]core.GeneratedTitle, error)
}

type APIHandler struct {
	titleService TitleGenerator
	dbStore      *store.SQLiteStore
	limiter      *ratelimit.Limiter
}

func NewAPIHandler(ts TitleGenerator, db *store.SQLiteStore, limiter *ratelimit.Limiter) *APIHandler {
	return &APIHandler{
		titleService: ts,
		dbStore:      db,
		limiter:      limiter,
	}
}

// apiResponse is the uniform envelope every endpoint returns.
type apiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, resp apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeData(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, apiResponse{Success: true, Data: data, Message: message})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiResponse{Success: false, Error: message})
}

func (h *APIHandler) RateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.limiter.Allow(ratelimit.KeyFromRequest(r)) {
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type GenerateTitlesRequest struct {
	Topic         string   `json:"topic"`
	Count         *int     `json:"count,omitempty"`
	ExcludeTitles []string `json:"excludeTitles,omitempty"`
}

func (h *APIHandler) GenerateTitlesHandler(w http.ResponseWriter, r *http.Request) {
	var req GenerateTitlesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		writeError(w, http.StatusBadRequest, "Topic is required and must be a non-empty string")
		return
	}
	if len(topic) > maxTopicLength {
		writeError(w, http.StatusBadRequest, "Topic must be less than 200 characters")
		return
	}

	count := defaultGenerationCount
	if req.Count != nil {
		count = *req.Count
	}
	if count < minGenerationCount || count > maxGenerationCount {
		writeError(w, http.StatusBadRequest, "Count must be between 1 and 10")
		return
	}

	titles, err := h.titleService.Generate(r.Context(), topic, count, req.ExcludeTitles)
	if err != nil {
		log.Printf("Error generating titles for topic %q: %v", topic, err)
		writeError(w, http.StatusInternalServerError, "Failed to generate titles")
		return
	}

	// Best-effort history write: a failure here must not affect the response.
	if payload, err := json.Marshal(titles); err == nil {
		if err := h.dbStore.AppendHistory(topic, string(payload)); err != nil {
			log.Printf("Failed to save generation history for topic %q: %v", topic, err)
		}
	}

	writeData(w, http.StatusOK, titles, "")
}

func (h *APIHandler) ListTitlesHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filters := store.TitleFilters{
		Search:   query.Get("search"),
		Category: query.Get("category"),
	}
	if query.Has("isFavorite") {
		isFavorite := query.Get("isFavorite") == "true"
		filters.IsFavorite = &isFavorite
	}

	titles, err := h.dbStore.ListTitles(filters)
	if err != nil {
		log.Printf("Error fetching titles: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch titles")
		return
	}
	writeData(w, http.StatusOK, titles, "")
}

type SaveTitleRequest struct {
	Topic    string  `json:"topic"`
	Title    string  `json:"title"`
	Category *string `json:"category,omitempty"`
}

func (h *APIHandler) SaveTitleHandler(w http.ResponseWriter, r *http.Request) {
	var req SaveTitleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		writeError(w, http.StatusBadRequest, "Topic is required and must be a non-empty string")
		return
	}
	if len(topic) > maxTopicLength {
		writeError(w, http.StatusBadRequest, "Topic must be less than 200 characters")
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		writeError(w, http.StatusBadRequest, "Title is required and must be a non-empty string")
		return
	}
	if len(title) > maxTitleLength {
		writeError(w, http.StatusBadRequest, "Title must be less than 200 characters")
		return
	}

	// A whitespace-only category counts as absent.
	var category *string
	if req.Category != nil {
		trimmed := strings.TrimSpace(*req.Category)
		if len(trimmed) > maxCategoryLength {
			writeError(w, http.StatusBadRequest, "Category must be less than 50 characters")
			return
		}
		if trimmed != "" {
			category = &trimmed
		}
	}

	saved, err := h.dbStore.CreateTitle(topic, title, category)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusConflict, "This title has already been saved for this topic")
			return
		}
		log.Printf("Error saving title for topic %q: %v", topic, err)
		writeError(w, http.StatusInternalServerError, "Failed to save title")
		return
	}

	writeData(w, http.StatusCreated, saved, "Title saved successfully")
}

func (h *APIHandler) GetTitleHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "titleID")

	saved, err := h.dbStore.GetTitle(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Title not found")
			return
		}
		log.Printf("Error fetching title %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch title")
		return
	}
	writeData(w, http.StatusOK, saved, "")
}

type UpdateTitleRequest struct {
	Title      *string `json:"title"`
	Category   *string `json:"category"`
	IsFavorite *bool   `json:"isFavorite"`
}

func (h *APIHandler) UpdateTitleHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "titleID")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	var req UpdateTitleRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	// A second decode into raw keys distinguishes "category": null (clear it)
	// from category omitted (leave it alone).
	var rawFields map[string]json.RawMessage
	if err := json.Unmarshal(body, &rawFields); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	var patch store.TitleUpdate

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			writeError(w, http.StatusBadRequest, "Title must be a non-empty string")
			return
		}
		if len(title) > maxTitleLength {
			writeError(w, http.StatusBadRequest, "Title must be less than 200 characters")
			return
		}
		patch.Title = &title
	}

	if _, present := rawFields["category"]; present {
		patch.CategorySet = true
		if req.Category != nil {
			trimmed := strings.TrimSpace(*req.Category)
			if len(trimmed) > maxCategoryLength {
				writeError(w, http.StatusBadRequest, "Category must be a string with less than 50 characters")
				return
			}
			if trimmed != "" {
				patch.Category = &trimmed
			}
		}
	}

	patch.IsFavorite = req.IsFavorite

	updated, err := h.dbStore.UpdateTitle(id, patch)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Title not found")
			return
		}
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusConflict, "This title has already been saved for this topic")
			return
		}
		log.Printf("Error updating title %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to update title")
		return
	}

	writeData(w, http.StatusOK, updated, "Title updated successfully")
}

func (h *APIHandler) DeleteTitleHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "titleID")

	if err := h.dbStore.DeleteTitle(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Title not found")
			return
		}
		log.Printf("Error deleting title %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to delete title")
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "Title deleted successfully"})
}
