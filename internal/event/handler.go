package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler exposes the ingestion boundary: a JSON array or single object
// of event payloads plus a required X-Idempotency-Key header.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

type eventPayload struct {
	Event     string   `json:"event"`
	UserID    *string  `json:"userId"`
	PostID    *string  `json:"postId"`
	SessionID string   `json:"sessionId"`
	Metadata  Metadata `json:"metadata"`
}

type ingestResponse struct {
	StoredCount int `json:"storedCount"`
}

type errorResponse struct {
	Message string `json:"message"`
}

func (h *Handler) IngestEvents(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-Idempotency-Key")

	payloads, err := decodePayloads(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request body: " + err.Error()})
		return
	}

	batch := make([]*Event, 0, len(payloads))
	for _, p := range payloads {
		ev, err := p.toEvent()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
			return
		}
		batch = append(batch, ev)
	}

	stored, err := h.service.IngestBatch(r.Context(), token, batch, clientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, ErrDuplicateRequest):
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Message: "duplicate request based on idempotency key"})
		case IsValidation(err):
			writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
		default:
			h.logger.Error("Ingestion failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "failed to store events"})
		}
		return
	}

	writeJSON(w, http.StatusAccepted, ingestResponse{StoredCount: stored})
}

// decodePayloads accepts either a JSON array of payloads or a single
// payload object.
func decodePayloads(r *http.Request) ([]eventPayload, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, err
	}

	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var payloads []eventPayload
		if err := json.Unmarshal(raw, &payloads); err != nil {
			return nil, err
		}
		return payloads, nil
	}

	var single eventPayload
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, err
	}
	return []eventPayload{single}, nil
}

func (p *eventPayload) toEvent() (*Event, error) {
	ev := &Event{
		EventType: p.Event,
		PostID:    p.PostID,
		SessionID: p.SessionID,
		Metadata:  p.Metadata,
	}
	// Server-derived only.
	ev.Metadata.IPHash = ""

	if p.UserID != nil && *p.UserID != "" {
		userID, err := parseUserID(*p.UserID)
		if err != nil {
			return nil, err
		}
		ev.UserID = userID
	}

	return ev, nil
}

func parseUserID(s string) (*uuid.UUID, error) {
	userID, err := uuid.Parse(s)
	if err != nil {
		return nil, ErrInvalidUserID
	}
	return &userID, nil
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
