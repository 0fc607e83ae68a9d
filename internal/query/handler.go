package query

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Handler serves the read-only dashboard endpoints over the metric
// tables. Authentication for these routes lives in the outer layer.
type Handler struct {
	service *Service
	now     func() time.Time
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger,
	}
}

func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	to := h.now()
	from := to.AddDate(0, 0, -30)

	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			h.badRequest(w, "from must be YYYY-MM-DD")
			return
		}
		from = parsed
	}
	if v := q.Get("to"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			h.badRequest(w, "to must be YYYY-MM-DD")
			return
		}
		to = parsed
	}

	overview, err := h.service.Overview(r.Context(), from, to)
	if err != nil {
		h.serverError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, overview)
}

func (h *Handler) ActiveUsers(w http.ResponseWriter, r *http.Request) {
	window := intParam(r, "window", 7)

	series, err := h.service.ActiveUsers(r.Context(), window)
	if err != nil {
		h.serverError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, series)
}

func (h *Handler) Retention(w http.ResponseWriter, r *http.Request) {
	cohortStart := r.URL.Query().Get("cohortStart")
	if cohortStart == "" {
		h.badRequest(w, "cohortStart (YYYY-MM-DD) is required")
		return
	}
	cohortDay, err := time.Parse("2006-01-02", cohortStart)
	if err != nil {
		h.badRequest(w, "cohortStart must be YYYY-MM-DD")
		return
	}

	windows, err := parseWindows(r.URL.Query().Get("windows"))
	if err != nil {
		h.badRequest(w, "windows must be a comma-separated list of day offsets")
		return
	}

	retention, err := h.service.Retention(r.Context(), cohortDay, windows)
	if err != nil {
		h.serverError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, retention)
}

func (h *Handler) TopPosts(w http.ResponseWriter, r *http.Request) {
	metric := r.URL.Query().Get("metric")
	if metric == "" {
		metric = "views"
	}
	period := intParam(r, "period", 7)
	limit := intParam(r, "limit", 10)

	top, err := h.service.TopPosts(r.Context(), metric, period, limit)
	if err != nil {
		if errors.Is(err, ErrInvalidMetric) {
			h.badRequest(w, err.Error())
			return
		}
		h.serverError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, top)
}

func (h *Handler) PostDetails(w http.ResponseWriter, r *http.Request) {
	postID := r.PathValue("postId")

	details, err := h.service.PostDetails(r.Context(), postID)
	if err != nil {
		if errors.Is(err, ErrPostNotFound) {
			h.writeJSON(w, http.StatusNotFound, map[string]string{"message": err.Error()})
			return
		}
		h.serverError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, details)
}

func (h *Handler) TrendingSearches(w http.ResponseWriter, r *http.Request) {
	period := intParam(r, "period", 7)
	limit := intParam(r, "limit", 10)

	trending, err := h.service.TrendingSearches(r.Context(), period, limit)
	if err != nil {
		h.serverError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, trending)
}

func parseWindows(raw string) ([]int, error) {
	if raw == "" {
		return []int{1, 7, 30}, nil
	}

	parts := strings.Split(raw, ",")
	windows := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return nil, errors.New("invalid window")
		}
		windows = append(windows, n)
	}
	return windows, nil
}

func intParam(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func (h *Handler) badRequest(w http.ResponseWriter, message string) {
	h.writeJSON(w, http.StatusBadRequest, map[string]string{"message": message})
}

func (h *Handler) serverError(w http.ResponseWriter, err error) {
	h.logger.Error("Query failed", zap.Error(err))
	h.writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "server error"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
