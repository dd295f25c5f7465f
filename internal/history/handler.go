package history

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"stancesense-cloud/internal/auth"
	"stancesense-cloud/internal/storage"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

// Store is the narrow persistence contract for history queries and journal
// writes.
type Store interface {
	Save(ctx context.Context, collection, docID string, document any) error
	List(ctx context.Context, collection string, limit int) ([]json.RawMessage, error)
}

// Handler serves the historical-query and journal endpoints.
type Handler struct {
	store  Store
	logger *log.Logger
}

// NewHandler constructs a history handler.
func NewHandler(store Store, logger *log.Logger) (*Handler, error) {
	if store == nil {
		return nil, errors.New("history: nil store")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{store: store, logger: logger}, nil
}

// ServeHTTP routes the handled paths.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	switch {
	case r.URL.Path == "/api/v1/history/processed" && r.Method == http.MethodGet:
		h.list(w, r, userID, storage.CollectionProcessedData)
	case r.URL.Path == "/api/v1/history/alerts" && r.Method == http.MethodGet:
		h.list(w, r, userID, storage.CollectionAlerts)
	case r.URL.Path == "/api/v1/medications" && r.Method == http.MethodGet:
		h.list(w, r, userID, storage.CollectionMedications)
	case r.URL.Path == "/api/v1/medications" && r.Method == http.MethodPost:
		h.logEntry(w, r, userID, storage.CollectionMedications)
	case r.URL.Path == "/api/v1/notes" && r.Method == http.MethodGet:
		h.list(w, r, userID, storage.CollectionNotes)
	case r.URL.Path == "/api/v1/notes" && r.Method == http.MethodPost:
		h.logEntry(w, r, userID, storage.CollectionNotes)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, userID, collection string) {
	limit := parseLimit(r)
	items, err := h.store.List(r.Context(), storage.UserCollection(userID, collection), limit)
	if err != nil {
		h.logger.Printf("history: list %s failed for %s: %v", collection, userID, err)
		http.Error(w, "history query error", http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []json.RawMessage{}
	}
	writeJSON(w, map[string]any{"items": items})
}

// logEntry records an arbitrary journal document (medication dose, patient
// note) with a server-side timestamp and id.
func (h *Handler) logEntry(w http.ResponseWriter, r *http.Request, userID, collection string) {
	var entry map[string]any
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if len(entry) == 0 {
		http.Error(w, "empty entry", http.StatusBadRequest)
		return
	}
	id := uuid.NewString()
	entry["id"] = id
	if _, ok := entry["timestamp"]; !ok {
		entry["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	}
	if err := h.store.Save(r.Context(), storage.UserCollection(userID, collection), id, entry); err != nil {
		h.logger.Printf("history: save %s failed for %s: %v", collection, userID, err)
		http.Error(w, "save error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, map[string]any{"status": "saved", "id": id})
}

func parseLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
